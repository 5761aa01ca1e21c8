/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"

	"github.com/tomoncle/exemplar/database"
	"github.com/tomoncle/exemplar/types"
)

// BunBackend stores T in a relational table through bun. Every session is
// a database transaction. Updates use FetchMergeWrite.
type BunBackend[T any] struct {
	db *bun.DB
}

// NewBunBackend returns a relational backend for T on db.
func NewBunBackend[T any](db *bun.DB) *BunBackend[T] {
	return &BunBackend[T]{db: db}
}

func (b *BunBackend[T]) DB() *bun.DB { return b.db }

func (b *BunBackend[T]) UpdateStrategy() UpdateStrategy { return FetchMergeWrite }

func (b *BunBackend[T]) Begin(ctx context.Context) (Session[T], error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &bunSession[T]{db: b.db, tx: tx}, nil
}

type bunSession[T any] struct {
	db *bun.DB
	tx bun.Tx
}

func (s *bunSession[T]) Find(ctx context.Context, q types.QuerySpec) ([]*T, error) {
	var entities []*T
	query := s.tx.NewSelect().Model(&entities)
	for _, p := range q.Predicates {
		query = query.Where("? = ?", bun.Ident(p.Field), p.Value)
	}
	if err := page(query, q).Scan(ctx); err != nil {
		return nil, err
	}
	return entities, nil
}

func (s *bunSession[T]) FindOne(ctx context.Context, q types.QuerySpec) (*T, error) {
	var entity T
	query := s.tx.NewSelect().Model(&entity)
	for _, p := range q.Predicates {
		query = query.Where("? = ?", bun.Ident(p.Field), p.Value)
	}
	q.Limit = 1
	if err := page(query, q).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(ErrNotFound, "%s", q)
		}
		return nil, err
	}
	return &entity, nil
}

func (s *bunSession[T]) Count(ctx context.Context, q types.QuerySpec) (int64, error) {
	query := s.tx.NewSelect().Model((*T)(nil))
	for _, p := range q.Predicates {
		query = query.Where("? = ?", bun.Ident(p.Field), p.Value)
	}
	total, err := query.Count(ctx)
	return int64(total), err
}

func (s *bunSession[T]) Save(ctx context.Context, record *T, key *types.Predicate) error {
	if key == nil {
		return s.Insert(ctx, record)
	}
	fields := s.dataColumns(key.Field)
	if len(fields) == 0 {
		return s.Insert(ctx, record)
	}
	if s.db.HasFeature(feature.InsertOnConflict) {
		return s.upsertWithPostgresqlOrSQLite(ctx, record, key.Field, fields)
	} else if s.db.HasFeature(feature.InsertOnDuplicateKey) {
		return s.upsertWithMySQL(ctx, record, fields)
	}
	return s.upsertFallback(ctx, record, key)
}

func (s *bunSession[T]) Insert(ctx context.Context, record *T) error {
	_, err := s.tx.NewInsert().Model(record).Exec(ctx)
	return duplicate(err)
}

func (s *bunSession[T]) DeleteMatching(ctx context.Context, q types.QuerySpec) (int64, error) {
	query := s.tx.NewDelete().Model((*T)(nil))
	if q.MatchesAll() {
		query = query.Where("1 = 1")
	}
	for _, p := range q.Predicates {
		query = query.Where("? = ?", bun.Ident(p.Field), p.Value)
	}
	res, err := query.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *bunSession[T]) Commit(ctx context.Context) error { return s.tx.Commit() }

func (s *bunSession[T]) Rollback(ctx context.Context) error { return s.tx.Rollback() }

// dataColumns lists the columns an upsert rewrites: all but the key.
func (s *bunSession[T]) dataColumns(key string) []string {
	table := s.db.Table(reflect.TypeOf((*T)(nil)).Elem())
	fields := make([]string, 0, len(table.Fields))
	for _, f := range table.Fields {
		if f.Name != key {
			fields = append(fields, f.Name)
		}
	}
	return fields
}

func (s *bunSession[T]) upsertWithMySQL(ctx context.Context, record *T, fields []string) error {
	var queryArgs []string
	for _, field := range fields {
		queryArgs = append(queryArgs, fmt.Sprintf("%s = VALUES(%s)", bun.Ident(field), bun.Ident(field)))
	}
	_, err := s.tx.NewInsert().
		Model(record).
		On("DUPLICATE KEY UPDATE " + strings.Join(queryArgs, ", ")).
		Exec(ctx)
	return err
}

func (s *bunSession[T]) upsertWithPostgresqlOrSQLite(ctx context.Context, record *T, key string, fields []string) error {
	var queryArgs []string
	for _, field := range fields {
		queryArgs = append(queryArgs, fmt.Sprintf("%s = EXCLUDED.%s", bun.Ident(field), bun.Ident(field)))
	}
	_, err := s.tx.NewInsert().
		Model(record).
		On("CONFLICT (" + key + ") DO UPDATE").
		Set(strings.Join(queryArgs, ", ")).
		Exec(ctx)
	return err
}

// upsertFallback updates by key and inserts when nothing was updated.
func (s *bunSession[T]) upsertFallback(ctx context.Context, record *T, key *types.Predicate) error {
	res, err := s.tx.NewUpdate().
		Model(record).
		Where("? = ?", bun.Ident(key.Field), key.Value).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	return s.Insert(ctx, record)
}

func page(query *bun.SelectQuery, q types.QuerySpec) *bun.SelectQuery {
	if q.Sort != nil {
		query = query.OrderExpr("? "+q.Sort.Direction.Name(), bun.Ident(q.Sort.Field))
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}
	return query
}

func duplicate(err error) error {
	if err == nil {
		return nil
	}
	if _, kind := database.ClassifyStoreError(err); kind == database.DuplicateKeyErr {
		return &DuplicateError{Err: err}
	}
	return err
}
