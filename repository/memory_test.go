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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/exemplar/meta"
	"github.com/tomoncle/exemplar/types"
)

func partialUpdater(t *testing.T, s Session[account]) PartialUpdater {
	t.Helper()
	u, ok := s.(PartialUpdater)
	require.True(t, ok)
	return u
}

func TestMemoryUpdateFields(t *testing.T) {
	b := NewMemoryBackend[account](newCatalog())
	seed(t, b, fixtures()...)
	var backend Backend[account] = b

	note := "vip"
	update := types.UpdateSpec{Assignments: []types.Assignment{{Field: "note", Value: note}}}

	n := within(t, backend, func(ctx context.Context, s Session[account]) int64 {
		n, err := partialUpdater(t, s).UpdateFields(ctx, types.ByKey("age", 30), update, false)
		require.NoError(t, err)
		return n
	})
	assert.Equal(t, int64(1), n)

	n = within(t, backend, func(ctx context.Context, s Session[account]) int64 {
		n, err := partialUpdater(t, s).UpdateFields(ctx, types.ByKey("age", 30), update, true)
		require.NoError(t, err)
		return n
	})
	assert.Equal(t, int64(3), n)

	vips := within(t, backend, func(ctx context.Context, s Session[account]) []*account {
		found, err := s.Find(ctx, types.ByKey("note", "vip"))
		require.NoError(t, err)
		return found
	})
	assert.Len(t, vips, 3)

	n = within(t, backend, func(ctx context.Context, s Session[account]) int64 {
		n, err := partialUpdater(t, s).UpdateFields(ctx, types.ByKey("id", 3), types.NoOp, false)
		require.NoError(t, err)
		return n
	})
	assert.Zero(t, n)
}

func TestMemoryUpdateFieldsIsAllOrNothing(t *testing.T) {
	b := NewMemoryBackend[account](newCatalog())
	seed(t, b, fixtures()...)
	var backend Backend[account] = b

	update := types.UpdateSpec{Assignments: []types.Assignment{
		{Field: "name", Value: "renamed"},
		{Field: "age", Value: "not a number"},
	}}
	within(t, backend, func(ctx context.Context, s Session[account]) struct{} {
		_, err := partialUpdater(t, s).UpdateFields(ctx, types.QuerySpec{}, update, true)
		var perr *meta.PropertyError
		assert.ErrorAs(t, err, &perr)
		return struct{}{}
	})

	renamed := within(t, backend, func(ctx context.Context, s Session[account]) int64 {
		n, err := s.Count(ctx, types.ByKey("name", "renamed"))
		require.NoError(t, err)
		return n
	})
	assert.Zero(t, renamed)
}

func TestMemoryReturnsCopies(t *testing.T) {
	b := NewMemoryBackend[account](newCatalog())
	seed(t, b, fixtures()...)
	var backend Backend[account] = b

	got := within(t, backend, func(ctx context.Context, s Session[account]) *account {
		got, err := s.FindOne(ctx, types.ByKey("id", 1))
		require.NoError(t, err)
		return got
	})
	got.Name = "mutated"
	*got.Age = 99
	*got.ID = 7

	again := within(t, backend, func(ctx context.Context, s Session[account]) *account {
		again, err := s.FindOne(ctx, types.ByKey("id", 1))
		require.NoError(t, err)
		return again
	})
	assert.Equal(t, "carol", again.Name)
	assert.Equal(t, int64(30), *again.Age)

	thirty := within(t, backend, func(ctx context.Context, s Session[account]) int64 {
		n, err := s.Count(ctx, types.ByKey("age", 30))
		require.NoError(t, err)
		return n
	})
	assert.Equal(t, int64(3), thirty)
}

func TestMemoryKeepsOwnCopyOfWrites(t *testing.T) {
	b := NewMemoryBackend[account](newCatalog())
	var backend Backend[account] = b

	note := "original"
	inserted := &account{ID: i64(1), Name: "erin", Email: "erin@example.com", Age: i64(25), Note: &note}
	saved := &account{ID: i64(2), Name: "frank", Email: "frank@example.com", Age: i64(50)}
	within(t, backend, func(ctx context.Context, s Session[account]) struct{} {
		require.NoError(t, s.Insert(ctx, inserted))
		require.NoError(t, s.Save(ctx, saved, &types.Predicate{Field: "id", Value: int64(2)}))
		return struct{}{}
	})
	note = "hijacked"
	*inserted.Age = 1
	*saved.Age = 1

	found := within(t, backend, func(ctx context.Context, s Session[account]) []*account {
		found, err := s.Find(ctx, types.QuerySpec{Sort: &types.Sort{Field: "id", Direction: types.Asc}})
		require.NoError(t, err)
		return found
	})
	require.Len(t, found, 2)
	assert.Equal(t, "original", *found[0].Note)
	assert.Equal(t, int64(25), *found[0].Age)
	assert.Equal(t, int64(50), *found[1].Age)
	assert.NotSame(t, inserted.Note, found[0].Note)
}

func TestCloneDeepCopies(t *testing.T) {
	type inner struct {
		Tags []string
	}
	type nested struct {
		Ptr   *inner
		Attrs map[string]*int64
		List  []*string
		Any   any
		Fixed [2]*int64
		Empty []int
		when  *int64
	}
	s := "x"
	src := &nested{
		Ptr:   &inner{Tags: []string{"a"}},
		Attrs: map[string]*int64{"k": i64(1)},
		List:  []*string{&s},
		Any:   &inner{Tags: []string{"b"}},
		Fixed: [2]*int64{i64(2)},
		when:  i64(3),
	}

	c := clone(src)
	c.Ptr.Tags[0] = "changed"
	*c.Attrs["k"] = 10
	*c.List[0] = "changed"
	c.Any.(*inner).Tags[0] = "changed"
	*c.Fixed[0] = 20

	assert.Equal(t, "a", src.Ptr.Tags[0])
	assert.Equal(t, int64(1), *src.Attrs["k"])
	assert.Equal(t, "x", s)
	assert.Equal(t, "b", src.Any.(*inner).Tags[0])
	assert.Equal(t, int64(2), *src.Fixed[0])
	assert.Nil(t, c.Fixed[1])
	assert.Nil(t, c.Empty)
	assert.Same(t, src.when, c.when)
}

func TestMemoryUnknownField(t *testing.T) {
	b := NewMemoryBackend[account](newCatalog())
	var backend Backend[account] = b
	within(t, backend, func(ctx context.Context, s Session[account]) struct{} {
		_, err := s.Find(ctx, types.ByKey("shoe_size", 44))
		assert.ErrorIs(t, err, meta.ErrUnknownProperty)
		_, err = s.Find(ctx, types.QuerySpec{Sort: &types.Sort{Field: "shoe_size"}})
		assert.ErrorIs(t, err, meta.ErrUnknownProperty)
		return struct{}{}
	})
}

func TestMemorySortPutsNullsFirst(t *testing.T) {
	b := NewMemoryBackend[account](newCatalog())
	seed(t, b,
		&account{ID: i64(1), Name: "old", Age: i64(70)},
		&account{ID: i64(2), Name: "unknown"},
		&account{ID: i64(3), Name: "young", Age: i64(20)},
	)
	var backend Backend[account] = b

	asc := within(t, backend, func(ctx context.Context, s Session[account]) []*account {
		found, err := s.Find(ctx, types.QuerySpec{Sort: &types.Sort{Field: "age", Direction: types.Asc}})
		require.NoError(t, err)
		return found
	})
	assert.Equal(t, []string{"unknown", "young", "old"}, nameList(asc))

	desc := within(t, backend, func(ctx context.Context, s Session[account]) []*account {
		found, err := s.Find(ctx, types.QuerySpec{Sort: &types.Sort{Field: "age", Direction: types.Desc}, Offset: 5})
		require.NoError(t, err)
		return found
	})
	assert.Empty(t, desc)
}

func TestMemoryBeginHonoursContext(t *testing.T) {
	b := NewMemoryBackend[account](newCatalog())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Begin(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEqualValues(t *testing.T) {
	now := time.Now()
	assert.True(t, equalValues(int64(5), 5))
	assert.True(t, equalValues(uint8(5), 5.0))
	assert.False(t, equalValues(5, "5"))
	assert.True(t, equalValues(now, now.UTC()))
	assert.True(t, equalValues(nil, nil))
	assert.False(t, equalValues(nil, 0))

	type code string
	assert.True(t, equalValues(code("x"), "x"))
}

func TestCompareValues(t *testing.T) {
	assert.Equal(t, -1, compareValues(nil, 1))
	assert.Equal(t, 1, compareValues("b", "a"))
	assert.Equal(t, 0, compareValues(int32(3), 3.0))
	assert.Equal(t, -1, compareValues(false, true))
	assert.Equal(t, -1, compareValues(time.Unix(1, 0), time.Unix(2, 0)))
}
