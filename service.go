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

package exemplar

import (
	"context"
	"reflect"

	"github.com/pkg/errors"

	"github.com/tomoncle/exemplar/database"
	"github.com/tomoncle/exemplar/meta"
	"github.com/tomoncle/exemplar/qbe"
	"github.com/tomoncle/exemplar/repository"
	"github.com/tomoncle/exemplar/types"
)

type Service[T any] interface {
	// Find returns the records equal to example on all its non-null
	// properties. An empty example returns every record.
	Find(ctx context.Context, example *T, opts ...qbe.QueryOption) ([]*T, error)

	// FindOne returns the first record matching example, or
	// repository.ErrNotFound.
	FindOne(ctx context.Context, example *T, opts ...qbe.QueryOption) (*T, error)

	// FindByID looks a record up by its identity.
	FindByID(ctx context.Context, id any) (*T, error)

	// Count returns how many records match example.
	Count(ctx context.Context, example *T) (int64, error)

	// Page returns one page of the records matching example.
	Page(ctx context.Context, example *T, page *types.PageRequest) (*types.Pagination[T], error)

	// Save creates record, or replaces the stored one with the same identity.
	Save(ctx context.Context, record *T) error

	// Insert creates record. An existing identity fails with
	// repository.ErrDuplicate.
	Insert(ctx context.Context, record *T) error

	// UpdateByID merges the non-null properties of partial into the record
	// with the given id and returns the number of records touched.
	UpdateByID(ctx context.Context, id any, partial *T) (int64, error)

	// Update merges partial into every record matching query.
	Update(ctx context.Context, query *T, partial *T, opts ...MutationOption) (int64, error)

	// Delete removes the record with the identity of record.
	Delete(ctx context.Context, record *T) (int64, error)

	// DeleteByID removes the record with the given id.
	DeleteByID(ctx context.Context, id any) (int64, error)

	// DeleteMany removes every record matching example.
	DeleteMany(ctx context.Context, example *T, opts ...MutationOption) (int64, error)
}

type baseServiceImpl[T any] struct {
	backend repository.Backend[T]
	catalog *meta.Catalog
	entry   *meta.Entry
	logger  database.Logger
}

// NewService returns the Service of T over backend. Properties of T are
// resolved through catalog, a fresh default catalog when nil; metadata
// errors are reported here rather than on first use.
func NewService[T any](backend repository.Backend[T], catalog *meta.Catalog, opts ...Option) (Service[T], error) {
	if backend == nil {
		return nil, errors.New("exemplar: backend is nil")
	}
	if catalog == nil {
		catalog = meta.NewCatalog()
	}
	entry, err := meta.ResolveFor[T](catalog)
	if err != nil {
		return nil, err
	}
	o := serviceOptions{logger: database.GetLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	return &baseServiceImpl[T]{
		backend: backend,
		catalog: catalog,
		entry:   entry,
		logger:  o.logger,
	}, nil
}

// inSession runs fn in one unit of work, committed when fn succeeds and
// rolled back otherwise.
func inSession[T, R any](ctx context.Context, s *baseServiceImpl[T], fn func(repository.Session[T]) (R, error)) (result R, err error) {
	sess, err := s.backend.Begin(ctx)
	if err != nil {
		return result, err
	}
	defer func() {
		if r := recover(); r != nil {
			_ = sess.Rollback(ctx)
			panic(r)
		}
	}()
	result, err = fn(sess)
	if err != nil {
		if is, kind := database.ClassifyStoreError(err); is {
			s.logger.Error("Store operation failed", "type", s.entry.Type(), "kind", kind, "error", err)
		}
		if rbErr := sess.Rollback(ctx); rbErr != nil {
			s.logger.Warn("Rollback failed", "type", s.entry.Type(), "error", rbErr)
		}
		var zero R
		return zero, err
	}
	if err := sess.Commit(ctx); err != nil {
		var zero R
		return zero, err
	}
	return result, nil
}

func (s *baseServiceImpl[T]) Find(ctx context.Context, example *T, opts ...qbe.QueryOption) ([]*T, error) {
	q, err := qbe.BuildQuery(s.catalog, s.example(example), opts...)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Find", "type", s.entry.Type(), "query", q)
	return inSession(ctx, s, func(sess repository.Session[T]) ([]*T, error) {
		return sess.Find(ctx, q)
	})
}

func (s *baseServiceImpl[T]) FindOne(ctx context.Context, example *T, opts ...qbe.QueryOption) (*T, error) {
	q, err := qbe.BuildQuery(s.catalog, s.example(example), opts...)
	if err != nil {
		return nil, err
	}
	return inSession(ctx, s, func(sess repository.Session[T]) (*T, error) {
		return sess.FindOne(ctx, q)
	})
}

func (s *baseServiceImpl[T]) FindByID(ctx context.Context, id any) (*T, error) {
	key, err := s.key(id)
	if err != nil {
		return nil, err
	}
	return inSession(ctx, s, func(sess repository.Session[T]) (*T, error) {
		return sess.FindOne(ctx, types.QuerySpec{Predicates: []types.Predicate{key}})
	})
}

func (s *baseServiceImpl[T]) Count(ctx context.Context, example *T) (int64, error) {
	q, err := qbe.BuildQuery(s.catalog, s.example(example))
	if err != nil {
		return 0, err
	}
	return inSession(ctx, s, func(sess repository.Session[T]) (int64, error) {
		return sess.Count(ctx, q)
	})
}

func (s *baseServiceImpl[T]) Page(ctx context.Context, example *T, page *types.PageRequest) (*types.Pagination[T], error) {
	if page == nil {
		page = types.NewDefaultPageRequest(1, 10)
	}
	q, err := qbe.BuildQuery(s.catalog, s.example(example), qbe.Paged(page))
	if err != nil {
		return nil, err
	}
	return inSession(ctx, s, func(sess repository.Session[T]) (*types.Pagination[T], error) {
		result := types.NewDefaultPagination[T](page.GetPage(), page.GetPageSize())
		total, err := sess.Count(ctx, q)
		if err != nil {
			return nil, err
		}
		result.Total = total
		if total == 0 || int64(q.Offset) >= total {
			return result, nil
		}
		items, err := sess.Find(ctx, q)
		if err != nil {
			return nil, err
		}
		result.Items = items
		return result, nil
	})
}

func (s *baseServiceImpl[T]) Save(ctx context.Context, record *T) error {
	if record == nil {
		return errors.New("exemplar: record is nil")
	}
	key, err := s.recordKey(record)
	if err != nil && !errors.Is(err, ErrMissingIdentityValue) && !errors.Is(err, meta.ErrNoIdentity) {
		return err
	}
	_, err = inSession(ctx, s, func(sess repository.Session[T]) (struct{}, error) {
		return struct{}{}, sess.Save(ctx, record, key)
	})
	return err
}

func (s *baseServiceImpl[T]) Insert(ctx context.Context, record *T) error {
	if record == nil {
		return errors.New("exemplar: record is nil")
	}
	_, err := inSession(ctx, s, func(sess repository.Session[T]) (struct{}, error) {
		return struct{}{}, sess.Insert(ctx, record)
	})
	return err
}

func (s *baseServiceImpl[T]) UpdateByID(ctx context.Context, id any, partial *T) (int64, error) {
	key, err := s.key(id)
	if err != nil {
		return 0, err
	}
	update, err := qbe.BuildUpdate(s.catalog, s.example(partial))
	if err != nil {
		return 0, err
	}
	if update.IsNoOp() {
		return 0, nil
	}
	scope := types.QuerySpec{Predicates: []types.Predicate{key}}
	return s.update(ctx, scope, update, false)
}

func (s *baseServiceImpl[T]) Update(ctx context.Context, query *T, partial *T, opts ...MutationOption) (int64, error) {
	o := newMutationOptions(opts)
	scope, err := qbe.BuildQuery(s.catalog, s.example(query))
	if err != nil {
		return 0, err
	}
	if scope.MatchesAll() && !o.allowMatchAll {
		return 0, errors.Wrapf(ErrMatchAll, "update %s", s.entry.Type())
	}
	update, err := qbe.BuildUpdate(s.catalog, s.example(partial))
	if err != nil {
		return 0, err
	}
	if update.IsNoOp() {
		return 0, nil
	}
	if scope.MatchesAll() {
		s.logger.Warn("Updating every record", "type", s.entry.Type(), "fields", update.Fields())
	}
	return s.update(ctx, scope, update, true)
}

// update dispatches on the strategy of the backend.
func (s *baseServiceImpl[T]) update(ctx context.Context, scope types.QuerySpec, update types.UpdateSpec, multi bool) (int64, error) {
	s.logger.Debug("Update", "type", s.entry.Type(), "strategy", s.backend.UpdateStrategy(), "scope", scope, "fields", update.Fields())
	switch s.backend.UpdateStrategy() {
	case repository.AtomicPartial:
		return inSession(ctx, s, func(sess repository.Session[T]) (int64, error) {
			updater, ok := sess.(repository.PartialUpdater)
			if !ok {
				return 0, repository.ErrPartialUpdateUnsupported
			}
			return updater.UpdateFields(ctx, scope, update, multi)
		})
	default:
		return s.fetchMergeWrite(ctx, scope, update, multi)
	}
}

// fetchMergeWrite reads the targets in one unit of work and writes them
// back in another. A write committed between the two is overwritten.
func (s *baseServiceImpl[T]) fetchMergeWrite(ctx context.Context, scope types.QuerySpec, update types.UpdateSpec, multi bool) (int64, error) {
	identity, err := s.entry.RequireIdentity()
	if err != nil {
		return 0, err
	}
	if !multi {
		scope.Limit = 1
	}
	records, err := inSession(ctx, s, func(sess repository.Session[T]) ([]*T, error) {
		return sess.Find(ctx, scope)
	})
	if err != nil || len(records) == 0 {
		return 0, err
	}

	keys := make([]types.Predicate, len(records))
	for i, record := range records {
		if err := qbe.ApplyUpdate(s.catalog, record, update); err != nil {
			return 0, err
		}
		value, err := identity.Get(record)
		if err != nil {
			return 0, err
		}
		if qbe.IsNull(value) {
			return 0, errors.Wrapf(ErrMissingIdentityValue, "stored %s", s.entry.Type())
		}
		keys[i] = types.Predicate{Field: identity.Name(), Value: value}
	}
	return inSession(ctx, s, func(sess repository.Session[T]) (int64, error) {
		for i, record := range records {
			if err := sess.Save(ctx, record, &keys[i]); err != nil {
				return 0, err
			}
		}
		return int64(len(records)), nil
	})
}

func (s *baseServiceImpl[T]) Delete(ctx context.Context, record *T) (int64, error) {
	key, err := s.recordKey(record)
	if err != nil {
		return 0, err
	}
	return s.deleteMatching(ctx, types.QuerySpec{Predicates: []types.Predicate{*key}})
}

func (s *baseServiceImpl[T]) DeleteByID(ctx context.Context, id any) (int64, error) {
	key, err := s.key(id)
	if err != nil {
		return 0, err
	}
	return s.deleteMatching(ctx, types.QuerySpec{Predicates: []types.Predicate{key}})
}

func (s *baseServiceImpl[T]) DeleteMany(ctx context.Context, example *T, opts ...MutationOption) (int64, error) {
	o := newMutationOptions(opts)
	q, err := qbe.BuildQuery(s.catalog, s.example(example))
	if err != nil {
		return 0, err
	}
	if q.MatchesAll() && !o.allowMatchAll {
		return 0, errors.Wrapf(ErrMatchAll, "delete %s", s.entry.Type())
	}
	if q.MatchesAll() {
		s.logger.Warn("Deleting every record", "type", s.entry.Type())
	}
	return s.deleteMatching(ctx, q)
}

func (s *baseServiceImpl[T]) deleteMatching(ctx context.Context, q types.QuerySpec) (int64, error) {
	s.logger.Debug("Delete", "type", s.entry.Type(), "query", q)
	return inSession(ctx, s, func(sess repository.Session[T]) (int64, error) {
		return sess.DeleteMatching(ctx, q)
	})
}

// example turns a nil example into an empty one.
func (s *baseServiceImpl[T]) example(example *T) *T {
	if example == nil {
		return new(T)
	}
	return example
}

// key is the identity predicate for id.
func (s *baseServiceImpl[T]) key(id any) (types.Predicate, error) {
	identity, err := s.entry.RequireIdentity()
	if err != nil {
		return types.Predicate{}, err
	}
	value := deref(id)
	if qbe.IsNull(value) {
		return types.Predicate{}, errors.Wrapf(ErrMissingIdentityValue, "%s.%s", s.entry.Type(), identity.Name())
	}
	return types.Predicate{Field: identity.Name(), Value: value}, nil
}

// recordKey is the identity predicate of record. A null identity returns
// ErrMissingIdentityValue.
func (s *baseServiceImpl[T]) recordKey(record *T) (*types.Predicate, error) {
	identity, err := s.entry.RequireIdentity()
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, errors.Wrapf(ErrMissingIdentityValue, "nil %s", s.entry.Type())
	}
	value, err := identity.Get(record)
	if err != nil {
		return nil, err
	}
	if qbe.IsNull(value) {
		return nil, errors.Wrapf(ErrMissingIdentityValue, "%s.%s", s.entry.Type(), identity.Name())
	}
	return &types.Predicate{Field: identity.Name(), Value: value}, nil
}

func deref(v any) any {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}
