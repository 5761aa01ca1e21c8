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

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tomoncle/exemplar/types"
)

// MongoOption configures a MongoBackend.
type MongoOption func(*mongoOptions)

type mongoOptions struct {
	transactions bool
}

// WithTransactions runs every unit of work in a multi-document transaction.
// It needs a replica set or sharded cluster.
func WithTransactions() MongoOption {
	return func(o *mongoOptions) { o.transactions = true }
}

// MongoBackend stores T as documents of one collection. Updates are sent
// as a single $set command.
type MongoBackend[T any] struct {
	client     *mongo.Client
	collection *mongo.Collection
	opts       mongoOptions
}

// NewMongoBackend returns a document backend for T over collection.
func NewMongoBackend[T any](client *mongo.Client, collection *mongo.Collection, opts ...MongoOption) *MongoBackend[T] {
	b := &MongoBackend[T]{client: client, collection: collection}
	for _, opt := range opts {
		opt(&b.opts)
	}
	return b
}

func (b *MongoBackend[T]) Collection() *mongo.Collection { return b.collection }

func (b *MongoBackend[T]) UpdateStrategy() UpdateStrategy { return AtomicPartial }

func (b *MongoBackend[T]) Begin(ctx context.Context) (Session[T], error) {
	sess, err := b.client.StartSession()
	if err != nil {
		return nil, errors.Wrap(err, "start mongo session")
	}
	if b.opts.transactions {
		if err := sess.StartTransaction(); err != nil {
			sess.EndSession(ctx)
			return nil, errors.Wrap(err, "start mongo transaction")
		}
	}
	return &mongoSession[T]{
		sess:         sess,
		collection:   b.collection,
		transactions: b.opts.transactions,
	}, nil
}

type mongoSession[T any] struct {
	sess         mongo.Session
	collection   *mongo.Collection
	transactions bool
}

func (s *mongoSession[T]) ctx(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, s.sess)
}

func (s *mongoSession[T]) Find(ctx context.Context, q types.QuerySpec) ([]*T, error) {
	ctx = s.ctx(ctx)
	cur, err := s.collection.Find(ctx, filterDoc(q), findOptions(q))
	if err != nil {
		return nil, err
	}
	var entities []*T
	if err := cur.All(ctx, &entities); err != nil {
		return nil, err
	}
	return entities, nil
}

func (s *mongoSession[T]) FindOne(ctx context.Context, q types.QuerySpec) (*T, error) {
	opts := options.FindOne()
	if q.Sort != nil {
		opts.SetSort(sortDoc(q.Sort))
	}
	if q.Offset > 0 {
		opts.SetSkip(int64(q.Offset))
	}
	var entity T
	err := s.collection.FindOne(s.ctx(ctx), filterDoc(q), opts).Decode(&entity)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.Wrapf(ErrNotFound, "%s", q)
		}
		return nil, err
	}
	return &entity, nil
}

func (s *mongoSession[T]) Count(ctx context.Context, q types.QuerySpec) (int64, error) {
	return s.collection.CountDocuments(s.ctx(ctx), filterDoc(q))
}

func (s *mongoSession[T]) Save(ctx context.Context, record *T, key *types.Predicate) error {
	if key == nil {
		return s.Insert(ctx, record)
	}
	filter := bson.D{{Key: key.Field, Value: key.Value}}
	_, err := s.collection.ReplaceOne(s.ctx(ctx), filter, record, options.Replace().SetUpsert(true))
	return err
}

func (s *mongoSession[T]) Insert(ctx context.Context, record *T) error {
	_, err := s.collection.InsertOne(s.ctx(ctx), record)
	return duplicate(err)
}

func (s *mongoSession[T]) DeleteMatching(ctx context.Context, q types.QuerySpec) (int64, error) {
	res, err := s.collection.DeleteMany(s.ctx(ctx), filterDoc(q))
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *mongoSession[T]) UpdateFields(ctx context.Context, scope types.QuerySpec, update types.UpdateSpec, multi bool) (int64, error) {
	if update.IsNoOp() {
		return 0, nil
	}
	var (
		res *mongo.UpdateResult
		err error
	)
	if multi {
		res, err = s.collection.UpdateMany(s.ctx(ctx), filterDoc(scope), updateDoc(update))
	} else {
		res, err = s.collection.UpdateOne(s.ctx(ctx), filterDoc(scope), updateDoc(update))
	}
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

func (s *mongoSession[T]) Commit(ctx context.Context) error {
	defer s.sess.EndSession(ctx)
	if s.transactions {
		return s.sess.CommitTransaction(ctx)
	}
	return nil
}

// Rollback aborts the transaction when one is open. Without transactions
// writes already acknowledged by the server stay applied.
func (s *mongoSession[T]) Rollback(ctx context.Context) error {
	defer s.sess.EndSession(ctx)
	if s.transactions {
		return s.sess.AbortTransaction(ctx)
	}
	return nil
}

func filterDoc(q types.QuerySpec) bson.D {
	filter := bson.D{}
	for _, p := range q.Predicates {
		filter = append(filter, bson.E{Key: p.Field, Value: p.Value})
	}
	return filter
}

func updateDoc(u types.UpdateSpec) bson.D {
	set := make(bson.D, 0, len(u.Assignments))
	for _, a := range u.Assignments {
		set = append(set, bson.E{Key: a.Field, Value: a.Value})
	}
	return bson.D{{Key: "$set", Value: set}}
}

func sortDoc(s *types.Sort) bson.D {
	order := 1
	if s.Direction == types.Desc {
		order = -1
	}
	return bson.D{{Key: s.Field, Value: order}}
}

func findOptions(q types.QuerySpec) *options.FindOptions {
	opts := options.Find()
	if q.Sort != nil {
		opts.SetSort(sortDoc(q.Sort))
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	if q.Offset > 0 {
		opts.SetSkip(int64(q.Offset))
	}
	return opts
}
