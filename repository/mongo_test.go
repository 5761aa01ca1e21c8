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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/tomoncle/exemplar/types"
)

func TestFilterDoc(t *testing.T) {
	assert.Equal(t, bson.D{}, filterDoc(types.QuerySpec{}))

	q := types.QuerySpec{Predicates: []types.Predicate{
		{Field: "email", Value: "a@b.com"},
		{Field: "age", Value: int64(30)},
	}}
	assert.Equal(t, bson.D{{Key: "email", Value: "a@b.com"}, {Key: "age", Value: int64(30)}}, filterDoc(q))
}

func TestUpdateDoc(t *testing.T) {
	u := types.UpdateSpec{Assignments: []types.Assignment{{Field: "name", Value: "New Name"}}}
	assert.Equal(t, bson.D{{Key: "$set", Value: bson.D{{Key: "name", Value: "New Name"}}}}, updateDoc(u))
}

func TestFindOptions(t *testing.T) {
	opts := findOptions(types.QuerySpec{})
	assert.Nil(t, opts.Limit)
	assert.Nil(t, opts.Skip)
	assert.Nil(t, opts.Sort)

	opts = findOptions(types.QuerySpec{
		Sort:   &types.Sort{Field: "name", Direction: types.Desc},
		Limit:  10,
		Offset: 20,
	})
	require.NotNil(t, opts.Limit)
	require.NotNil(t, opts.Skip)
	assert.Equal(t, int64(10), *opts.Limit)
	assert.Equal(t, int64(20), *opts.Skip)
	assert.Equal(t, bson.D{{Key: "name", Value: -1}}, opts.Sort)

	assert.Equal(t, bson.D{{Key: "name", Value: 1}}, sortDoc(&types.Sort{Field: "name"}))
}

func TestMongoBackendOptions(t *testing.T) {
	b := NewMongoBackend[account](nil, nil, WithTransactions())
	assert.True(t, b.opts.transactions)
	assert.Equal(t, AtomicPartial, b.UpdateStrategy())
	assert.Nil(t, b.Collection())
}
