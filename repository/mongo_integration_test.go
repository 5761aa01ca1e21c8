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
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tomoncle/exemplar/types"
)

// newMongoBackend connects to MONGO_URI and returns a backend over a fresh
// collection with a unique index on id. The test is skipped without a server.
func newMongoBackend(t *testing.T) *MongoBackend[account] {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	require.NoError(t, client.Ping(ctx, nil))

	coll := client.Database("exemplar_test").Collection("accounts_" + uuid.NewString())
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = coll.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return NewMongoBackend[account](client, coll)
}

func TestMongoBackend(t *testing.T) {
	b := newMongoBackend(t)
	sessionContract(t, b)
}

func TestMongoUpdateFields(t *testing.T) {
	b := newMongoBackend(t)
	seed(t, Backend[account](b), fixtures()...)

	update := types.UpdateSpec{Assignments: []types.Assignment{{Field: "note", Value: "vip"}}}

	n := within(t, Backend[account](b), func(ctx context.Context, s Session[account]) int64 {
		n, err := partialUpdater(t, s).UpdateFields(ctx, types.ByKey("age", int64(30)), update, false)
		require.NoError(t, err)
		return n
	})
	assert.Equal(t, int64(1), n)

	n = within(t, Backend[account](b), func(ctx context.Context, s Session[account]) int64 {
		n, err := partialUpdater(t, s).UpdateFields(ctx, types.ByKey("age", int64(30)), update, true)
		require.NoError(t, err)
		return n
	})
	assert.Equal(t, int64(3), n)

	n = within(t, Backend[account](b), func(ctx context.Context, s Session[account]) int64 {
		n, err := partialUpdater(t, s).UpdateFields(ctx, types.ByKey("id", int64(3)), types.NoOp, false)
		require.NoError(t, err)
		return n
	})
	assert.Zero(t, n)

	vips := within(t, Backend[account](b), func(ctx context.Context, s Session[account]) []*account {
		found, err := s.Find(ctx, types.QuerySpec{
			Predicates: []types.Predicate{{Field: "note", Value: "vip"}},
			Sort:       &types.Sort{Field: "name", Direction: types.Asc},
		})
		require.NoError(t, err)
		return found
	})
	assert.Equal(t, []string{"alice", "bob", "carol"}, nameList(vips))
	assert.Equal(t, "carol@example.com", vips[2].Email)
	assert.Equal(t, int64(30), *vips[2].Age)
}
