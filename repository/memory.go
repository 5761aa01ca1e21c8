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
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/tomoncle/exemplar/meta"
	"github.com/tomoncle/exemplar/qbe"
	"github.com/tomoncle/exemplar/types"
)

// MemoryBackend keeps records of T in process. Writes are applied as soon
// as a session issues them, the way a document store without transactions
// behaves, and field updates are atomic per call.
type MemoryBackend[T any] struct {
	catalog *meta.Catalog

	mu      sync.Mutex
	records []*T
}

// NewMemoryBackend returns an empty in-memory backend. Properties are
// resolved through catalog.
func NewMemoryBackend[T any](catalog *meta.Catalog) *MemoryBackend[T] {
	return &MemoryBackend[T]{catalog: catalog}
}

func (b *MemoryBackend[T]) UpdateStrategy() UpdateStrategy { return AtomicPartial }

func (b *MemoryBackend[T]) Begin(ctx context.Context) (Session[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entry, err := meta.ResolveFor[T](b.catalog)
	if err != nil {
		return nil, err
	}
	return &memorySession[T]{backend: b, entry: entry}, nil
}

// Len returns the number of stored records.
func (b *MemoryBackend[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

type memorySession[T any] struct {
	backend *MemoryBackend[T]
	entry   *meta.Entry
}

func (s *memorySession[T]) Find(ctx context.Context, q types.QuerySpec) ([]*T, error) {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	matched, err := s.match(q)
	if err != nil {
		return nil, err
	}
	if q.Sort != nil {
		if err := s.sortIndexes(matched, *q.Sort); err != nil {
			return nil, err
		}
	}
	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[q.Offset:]
		}
	}
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	out := make([]*T, 0, len(matched))
	for _, i := range matched {
		out = append(out, clone(s.backend.records[i]))
	}
	return out, nil
}

func (s *memorySession[T]) FindOne(ctx context.Context, q types.QuerySpec) (*T, error) {
	q.Limit = 1
	found, err := s.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "%s", q)
	}
	return found[0], nil
}

func (s *memorySession[T]) Count(ctx context.Context, q types.QuerySpec) (int64, error) {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	matched, err := s.match(q)
	return int64(len(matched)), err
}

func (s *memorySession[T]) Save(ctx context.Context, record *T, key *types.Predicate) error {
	if key == nil {
		return s.Insert(ctx, record)
	}
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	matched, err := s.match(types.ByKey(key.Field, key.Value))
	if err != nil {
		return err
	}
	if len(matched) > 0 {
		s.backend.records[matched[0]] = clone(record)
		return nil
	}
	s.backend.records = append(s.backend.records, clone(record))
	return nil
}

func (s *memorySession[T]) Insert(ctx context.Context, record *T) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	if id, ok := s.entry.Identity(); ok {
		value, err := id.Get(record)
		if err != nil {
			return err
		}
		if value != nil {
			matched, err := s.match(types.ByKey(id.Name(), value))
			if err != nil {
				return err
			}
			if len(matched) > 0 {
				return errors.Wrapf(ErrDuplicate, "%s = %v", id.Name(), value)
			}
		}
	}
	s.backend.records = append(s.backend.records, clone(record))
	return nil
}

func (s *memorySession[T]) DeleteMatching(ctx context.Context, q types.QuerySpec) (int64, error) {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	matched, err := s.match(q)
	if err != nil || len(matched) == 0 {
		return 0, err
	}
	drop := make(map[int]struct{}, len(matched))
	for _, i := range matched {
		drop[i] = struct{}{}
	}
	kept := s.backend.records[:0]
	for i, r := range s.backend.records {
		if _, ok := drop[i]; !ok {
			kept = append(kept, r)
		}
	}
	for i := len(kept); i < len(s.backend.records); i++ {
		s.backend.records[i] = nil
	}
	s.backend.records = kept
	return int64(len(matched)), nil
}

func (s *memorySession[T]) UpdateFields(ctx context.Context, scope types.QuerySpec, update types.UpdateSpec, multi bool) (int64, error) {
	if update.IsNoOp() {
		return 0, nil
	}
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	matched, err := s.match(scope)
	if err != nil {
		return 0, err
	}
	if !multi && len(matched) > 1 {
		matched = matched[:1]
	}
	// Apply to copies first so a failing assignment leaves the store intact.
	updated := make([]*T, len(matched))
	for n, i := range matched {
		updated[n] = clone(s.backend.records[i])
		if err := qbe.ApplyUpdate(s.backend.catalog, updated[n], update); err != nil {
			return 0, err
		}
	}
	for n, i := range matched {
		s.backend.records[i] = updated[n]
	}
	return int64(len(matched)), nil
}

func (s *memorySession[T]) Commit(ctx context.Context) error { return nil }

func (s *memorySession[T]) Rollback(ctx context.Context) error { return nil }

// match returns the indexes of the stored records satisfying every predicate.
func (s *memorySession[T]) match(q types.QuerySpec) ([]int, error) {
	props := make([]*meta.PropertyDescriptor, len(q.Predicates))
	for n, p := range q.Predicates {
		prop, err := s.entry.Lookup(p.Field)
		if err != nil {
			return nil, err
		}
		props[n] = prop
	}
	var matched []int
next:
	for i, r := range s.backend.records {
		for n, p := range q.Predicates {
			v, err := props[n].Get(r)
			if err != nil {
				return nil, err
			}
			if !equalValues(v, p.Value) {
				continue next
			}
		}
		matched = append(matched, i)
	}
	return matched, nil
}

func (s *memorySession[T]) sortIndexes(idx []int, by types.Sort) error {
	prop, err := s.entry.Lookup(by.Field)
	if err != nil {
		return err
	}
	keys := make(map[int]any, len(idx))
	for _, i := range idx {
		v, err := prop.Get(s.backend.records[i])
		if err != nil {
			return err
		}
		keys[i] = v
	}
	sort.SliceStable(idx, func(a, b int) bool {
		c := compareValues(keys[idx[a]], keys[idx[b]])
		if by.Direction == types.Desc {
			return c > 0
		}
		return c < 0
	})
	return nil
}

// clone deep-copies record so pointers, slices and maps held by the store
// are never shared with callers.
func clone[T any](record *T) *T {
	c := new(T)
	copyValue(reflect.ValueOf(c).Elem(), reflect.ValueOf(record).Elem())
	return c
}

func copyValue(dst, src reflect.Value) {
	switch src.Kind() {
	case reflect.Ptr:
		if src.IsNil() {
			dst.Set(reflect.Zero(src.Type()))
			return
		}
		p := reflect.New(src.Type().Elem())
		copyValue(p.Elem(), src.Elem())
		dst.Set(p)
	case reflect.Interface:
		if src.IsNil() {
			dst.Set(reflect.Zero(src.Type()))
			return
		}
		v := reflect.New(src.Elem().Type()).Elem()
		copyValue(v, src.Elem())
		dst.Set(v)
	case reflect.Slice:
		if src.IsNil() {
			dst.Set(reflect.Zero(src.Type()))
			return
		}
		s := reflect.MakeSlice(src.Type(), src.Len(), src.Len())
		for i := 0; i < src.Len(); i++ {
			copyValue(s.Index(i), src.Index(i))
		}
		dst.Set(s)
	case reflect.Map:
		if src.IsNil() {
			dst.Set(reflect.Zero(src.Type()))
			return
		}
		m := reflect.MakeMapWithSize(src.Type(), src.Len())
		iter := src.MapRange()
		for iter.Next() {
			v := reflect.New(src.Type().Elem()).Elem()
			copyValue(v, iter.Value())
			m.SetMapIndex(iter.Key(), v)
		}
		dst.Set(m)
	case reflect.Array:
		for i := 0; i < src.Len(); i++ {
			copyValue(dst.Index(i), src.Index(i))
		}
	case reflect.Struct:
		// Unexported fields keep the shallow copy made here.
		dst.Set(src)
		for i := 0; i < src.NumField(); i++ {
			if f := dst.Field(i); f.CanSet() {
				copyValue(f, src.Field(i))
			}
		}
	default:
		dst.Set(src)
	}
}

func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Equal(bt)
		}
	}
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
		if ra.Kind() == reflect.String && rb.Kind() == reflect.String {
			return ra.String() == rb.String()
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders nil first, then numbers, strings, times and bools by
// their natural order. Other values compare by their printed form.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return order(af < bf, af > bf)
		}
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return order(at.Before(bt), at.After(bt))
		}
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Kind() == reflect.String && rb.Kind() == reflect.String {
		return order(ra.String() < rb.String(), ra.String() > rb.String())
	}
	if ra.Kind() == reflect.Bool && rb.Kind() == reflect.Bool {
		return order(!ra.Bool() && rb.Bool(), ra.Bool() && !rb.Bool())
	}
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	return order(as < bs, as > bs)
}

func order(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
