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

package qbe

import (
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/multierr"

	"github.com/tomoncle/exemplar/meta"
	"github.com/tomoncle/exemplar/types"
)

type user struct {
	ID       *int64  `bun:"id,pk"`
	Name     string  `bun:"name"`
	Email    string  `bun:"email"`
	Password string  `bun:"password"`
	Age      int     `bun:"age"`
	Nickname *string `bun:"nickname"`
}

func ptr[V any](v V) *V { return &v }

func newCatalog() *meta.Catalog {
	return meta.NewCatalog(meta.WithNaming(meta.BunNaming))
}

func TestBuildQueryEmptyExampleMatchesAll(t *testing.T) {
	q, err := BuildQuery(newCatalog(), &user{})
	require.NoError(t, err)
	assert.Empty(t, q.Predicates)
	assert.True(t, q.MatchesAll())
	assert.Nil(t, q.Sort)
	assert.Zero(t, q.Limit)
	assert.Zero(t, q.Offset)
}

func TestBuildQuerySingleField(t *testing.T) {
	q, err := BuildQuery(newCatalog(), &user{Email: "a@b.com"})
	require.NoError(t, err)
	assert.Equal(t, []types.Predicate{{Field: "email", Value: "a@b.com"}}, q.Predicates)
}

func TestBuildQuerySkipsBlankText(t *testing.T) {
	q, err := BuildQuery(newCatalog(), &user{Name: "  ", Email: "x@y.com", Nickname: ptr("\t")})
	require.NoError(t, err)
	assert.Equal(t, []types.Predicate{{Field: "email", Value: "x@y.com"}}, q.Predicates)
}

func TestBuildQueryDeclarationOrder(t *testing.T) {
	q, err := BuildQuery(newCatalog(), user{ID: ptr(int64(3)), Password: "pw", Name: "ada"})
	require.NoError(t, err)
	assert.Equal(t, []types.Predicate{
		{Field: "id", Value: int64(3)},
		{Field: "name", Value: "ada"},
		{Field: "password", Value: "pw"},
	}, q.Predicates)
}

func TestBuildQuerySortAndPaging(t *testing.T) {
	q, err := BuildQuery(newCatalog(), &user{}, SortBy("Name", types.Desc), Limit(10), Offset(20))
	require.NoError(t, err)
	assert.True(t, q.MatchesAll())
	require.NotNil(t, q.Sort)
	assert.Equal(t, types.Sort{Field: "name", Direction: types.Desc}, *q.Sort)
	assert.Equal(t, 10, q.Limit)
	assert.Equal(t, 20, q.Offset)
	assert.Equal(t, "<all> ORDER BY name DESC LIMIT 10 OFFSET 20", q.String())
}

func TestBuildQueryPaged(t *testing.T) {
	q, err := BuildQuery(newCatalog(), &user{}, Paged(types.NewPageRequest(3, 10, "email", types.Asc)))
	require.NoError(t, err)
	assert.Equal(t, 10, q.Limit)
	assert.Equal(t, 20, q.Offset)
	assert.Equal(t, "email", q.Sort.Field)
}

func TestBuildQueryNilPageIsIgnored(t *testing.T) {
	q, err := BuildQuery(newCatalog(), &user{}, Limit(5), Paged(nil))
	require.NoError(t, err)
	assert.Equal(t, 5, q.Limit)
	assert.Zero(t, q.Offset)
	assert.Nil(t, q.Sort)
}

func TestBuildQueryInvalidOptions(t *testing.T) {
	c := newCatalog()

	_, err := BuildQuery(c, &user{}, Limit(-1))
	assert.ErrorIs(t, err, ErrInvalidPage)

	_, err = BuildQuery(c, &user{}, Offset(-5))
	assert.ErrorIs(t, err, ErrInvalidPage)

	_, err = BuildQuery(c, &user{}, SortBy("shoe_size", types.Asc))
	assert.ErrorIs(t, err, meta.ErrUnknownProperty)

	_, err = BuildQuery(c, &user{}, SortBy("name", types.Direction(9)))
	assert.ErrorIs(t, err, ErrInvalidSort)

	_, err = BuildQuery(c, 42)
	assert.ErrorIs(t, err, meta.ErrNotStruct)
}

func TestBuildUpdateDropsIdentity(t *testing.T) {
	u, err := BuildUpdate(newCatalog(), &user{ID: ptr(int64(5)), Name: "New Name"})
	require.NoError(t, err)
	assert.Equal(t, []types.Assignment{{Field: "name", Value: "New Name"}}, u.Assignments)
	assert.Equal(t, []string{"name"}, u.Fields())
}

func TestBuildUpdateIdentityOnlyIsNoOp(t *testing.T) {
	u, err := BuildUpdate(newCatalog(), &user{ID: ptr(int64(5))})
	require.NoError(t, err)
	assert.True(t, u.IsNoOp())
	assert.Equal(t, types.NoOp, u)
}

func TestBuildUpdateBlankFieldsIsNoOp(t *testing.T) {
	u, err := BuildUpdate(newCatalog(), &user{Name: " ", Email: "", Nickname: ptr("  ")})
	require.NoError(t, err)
	assert.True(t, u.IsNoOp())
}

func TestApplyUpdate(t *testing.T) {
	c := newCatalog()
	target := &user{ID: ptr(int64(5)), Name: "Old", Email: "a@b.com", Age: 40}
	spec, err := BuildUpdate(c, &user{Name: "New Name", Nickname: ptr("nn")})
	require.NoError(t, err)

	require.NoError(t, ApplyUpdate(c, target, spec))
	assert.Equal(t, "New Name", target.Name)
	assert.Equal(t, "nn", *target.Nickname)
	assert.Equal(t, "a@b.com", target.Email)
	assert.Equal(t, 40, target.Age)
	assert.Equal(t, int64(5), *target.ID)

	require.NoError(t, ApplyUpdate(c, target, types.NoOp))
}

func TestApplyUpdateCollectsFailures(t *testing.T) {
	c := newCatalog()
	target := &user{ID: ptr(int64(5)), Name: "Old"}
	spec := types.UpdateSpec{Assignments: []types.Assignment{
		{Field: "id", Value: int64(9)},
		{Field: "shoe_size", Value: 44},
		{Field: "email", Value: 12},
		{Field: "name", Value: "Applied"},
	}}

	err := ApplyUpdate(c, target, spec)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 3)
	assert.ErrorIs(t, err, meta.ErrUnknownProperty)
	assert.ErrorIs(t, err, errIdentityAssignment)

	var perr *meta.PropertyError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "id", perr.Property)

	assert.Equal(t, "Applied", target.Name)
	assert.Equal(t, int64(5), *target.ID)
}

type flaky struct {
	Good string
	Bad  string
}

func TestExtractKeepsSiblingsOnAccessorFailure(t *testing.T) {
	c := meta.NewCatalog()
	require.NoError(t, meta.Register[flaky](c,
		meta.Prop[flaky]("good", func(f *flaky) any { return f.Good }, nil),
		meta.Prop[flaky]("bad", func(f *flaky) any { panic("unreadable") }, nil),
		meta.Prop[flaky]("worse", func(f *flaky) any { panic("also unreadable") }, nil),
	))

	fields, err := Extract(c, &flaky{Good: "ok"})
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	require.Len(t, fields, 1)
	assert.Equal(t, "good", fields[0].Property.Name())
	assert.Equal(t, "ok", fields[0].Value)

	q, err := BuildQuery(c, &flaky{Good: "ok"})
	require.Error(t, err)
	assert.Empty(t, q.Predicates)

	var perr *meta.PropertyError
	assert.True(t, errors.As(err, &perr))
}

type label string

type tagged struct {
	Kind label
}

func TestIsNull(t *testing.T) {
	assert.True(t, IsNull(nil))
	assert.True(t, IsNull(""))
	assert.True(t, IsNull(" \n\t"))
	assert.True(t, IsNull(label("  ")))
	assert.False(t, IsNull("x"))
	assert.False(t, IsNull(0))
	assert.False(t, IsNull(false))

	q, err := BuildQuery(meta.NewCatalog(), &tagged{Kind: " "})
	require.NoError(t, err)
	assert.True(t, q.MatchesAll())
}

type document struct {
	ID    primitive.ObjectID `bson:"_id"`
	Email string             `bson:"email"`
}

type row struct {
	ID    uuid.UUID `bun:"id,pk"`
	Email string    `bun:"email"`
}

func TestBuildQuerySkipsUnsetArrayIdentity(t *testing.T) {
	q, err := BuildQuery(meta.NewCatalog(meta.WithNaming(meta.BSONNaming)), &document{Email: "a@b.com"})
	require.NoError(t, err)
	assert.Equal(t, []types.Predicate{{Field: "email", Value: "a@b.com"}}, q.Predicates)

	q, err = BuildQuery(newCatalog(), &row{Email: "a@b.com"})
	require.NoError(t, err)
	assert.Equal(t, []types.Predicate{{Field: "email", Value: "a@b.com"}}, q.Predicates)

	u, err := BuildUpdate(newCatalog(), &row{})
	require.NoError(t, err)
	assert.True(t, u.IsNoOp())
}

func TestBuildQueryKeepsSetArrayIdentity(t *testing.T) {
	oid := primitive.NewObjectID()
	q, err := BuildQuery(meta.NewCatalog(meta.WithNaming(meta.BSONNaming)), &document{ID: oid})
	require.NoError(t, err)
	assert.Equal(t, []types.Predicate{{Field: "_id", Value: oid}}, q.Predicates)

	id := uuid.New()
	q, err = BuildQuery(newCatalog(), &row{ID: id})
	require.NoError(t, err)
	assert.Equal(t, []types.Predicate{{Field: "id", Value: id.String()}}, q.Predicates)
}
