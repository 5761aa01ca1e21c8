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

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirection(t *testing.T) {
	d, ok := ParseDirection(" DESC ")
	assert.True(t, ok)
	assert.Equal(t, Desc, d)
	assert.Equal(t, "DESC", d.Name())
	assert.Equal(t, "descending", d.Desc())
	assert.Equal(t, 1, d.Number())

	d, ok = ParseDirection("ascending")
	assert.True(t, ok)
	assert.Equal(t, Asc, d)

	d, ok = ParseDirection("sideways")
	assert.False(t, ok)
	assert.False(t, d.IsValid())
	assert.Equal(t, IllegalValue, d.Number())
	assert.Equal(t, IllegalName, d.String())
}

func TestPageRequestDefaults(t *testing.T) {
	p := NewDefaultPageRequest(0, 0)
	assert.Equal(t, 1, p.GetPage())
	assert.Equal(t, 10, p.GetPageSize())
	assert.Equal(t, 0, p.GetOffset())
	assert.Nil(t, p.GetSort())

	p = NewPageRequest(4, 25, "name", Desc)
	assert.Equal(t, 75, p.GetOffset())
	assert.Equal(t, &Sort{Field: "name", Direction: Desc}, p.GetSort())
}

func TestPaginationPages(t *testing.T) {
	p := NewDefaultPagination[struct{}](1, 10)
	assert.Equal(t, 0, p.Pages())
	assert.NotNil(t, p.Items)

	p.Total = 21
	assert.Equal(t, 3, p.Pages())
	p.Total = 20
	assert.Equal(t, 2, p.Pages())
}

func TestQuerySpecString(t *testing.T) {
	q := QuerySpec{
		Predicates: []Predicate{{Field: "email", Value: "a@b.com"}, {Field: "name", Value: "ada"}},
		Limit:      1,
	}
	assert.False(t, q.MatchesAll())
	assert.Equal(t, "email = a@b.com AND name = ada LIMIT 1", q.String())
	assert.Equal(t, "id = 5", ByKey("id", 5).String())
}

func TestUpdateSpec(t *testing.T) {
	assert.True(t, NoOp.IsNoOp())
	assert.Empty(t, NoOp.Fields())

	u := UpdateSpec{Assignments: []Assignment{{Field: "name", Value: "x"}, {Field: "age", Value: 3}}}
	assert.False(t, u.IsNoOp())
	assert.Equal(t, []string{"name", "age"}, u.Fields())
}
