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
	"fmt"
	"strings"
)

// Predicate is a single field equality condition.
type Predicate struct {
	Field string
	Value any
}

func (p Predicate) String() string { return fmt.Sprintf("%s = %v", p.Field, p.Value) }

// Sort is a single sort key. Multi-key ordering is not supported.
type Sort struct {
	Field     string
	Direction Direction
}

// QuerySpec is a conjunction of equality predicates with optional ordering
// and pagination. Limit 0 means unbounded and Offset 0 means no skip.
type QuerySpec struct {
	Predicates []Predicate
	Sort       *Sort
	Limit      int
	Offset     int
}

// MatchesAll reports whether the query has no predicates and therefore
// selects every record of the collection.
func (q QuerySpec) MatchesAll() bool { return len(q.Predicates) == 0 }

// ByKey returns a query selecting records whose key field equals value.
func ByKey(field string, value any) QuerySpec {
	return QuerySpec{Predicates: []Predicate{{Field: field, Value: value}}}
}

func (q QuerySpec) String() string {
	var b strings.Builder
	if q.MatchesAll() {
		b.WriteString("<all>")
	}
	for i, p := range q.Predicates {
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.WriteString(p.String())
	}
	if q.Sort != nil {
		fmt.Fprintf(&b, " ORDER BY %s %s", q.Sort.Field, q.Sort.Direction)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	if q.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", q.Offset)
	}
	return b.String()
}

// Assignment sets Field to Value on every record an update targets.
type Assignment struct {
	Field string
	Value any
}

// UpdateSpec is the set of assignments produced from a partial record.
// An empty set is the NoOp marker: there is nothing to change. It never
// means "set these fields to null".
type UpdateSpec struct {
	Assignments []Assignment
}

// NoOp is the update that changes nothing.
var NoOp = UpdateSpec{}

func (u UpdateSpec) IsNoOp() bool { return len(u.Assignments) == 0 }

// Fields returns the assigned field names in order.
func (u UpdateSpec) Fields() []string {
	fields := make([]string, 0, len(u.Assignments))
	for _, a := range u.Assignments {
		fields = append(fields, a.Field)
	}
	return fields
}
