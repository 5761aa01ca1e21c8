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

	"github.com/tomoncle/exemplar/types"
)

var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("repository: record not found")

	// ErrDuplicate is returned when an insert collides with an existing identity
	// or unique key. Store backends return it as a *DuplicateError.
	ErrDuplicate = errors.New("repository: duplicate record")

	// ErrPartialUpdateUnsupported is returned when an AtomicPartial backend
	// hands out sessions that can not run field level updates.
	ErrPartialUpdateUnsupported = errors.New("repository: session does not support partial updates")
)

// DuplicateError carries the driver error behind a duplicate key rejection.
// It matches ErrDuplicate with errors.Is and unwraps to the driver error.
type DuplicateError struct {
	Err error
}

func (e *DuplicateError) Error() string {
	return ErrDuplicate.Error() + ": " + e.Err.Error()
}

func (e *DuplicateError) Unwrap() error { return e.Err }

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }

// UpdateStrategy is how a backend merges a partial record into stored ones.
type UpdateStrategy int

const (
	// FetchMergeWrite reads the records in one unit of work, merges the
	// assignments in memory and writes whole records back in another. Two
	// writers racing on the same record can lose an update.
	FetchMergeWrite UpdateStrategy = iota

	// AtomicPartial sends the assignments as a single field level update
	// command; the store applies it atomically per record.
	AtomicPartial
)

func (s UpdateStrategy) String() string {
	switch s {
	case FetchMergeWrite:
		return "fetch-merge-write"
	case AtomicPartial:
		return "atomic-partial"
	default:
		return "unknown"
	}
}

// Backend hands out units of work over one collection or table of T.
type Backend[T any] interface {
	Begin(ctx context.Context) (Session[T], error)
	UpdateStrategy() UpdateStrategy
}

// Session is one unit of work. Callers end every session with exactly one
// Commit or Rollback; both release it.
type Session[T any] interface {
	// Find returns the records matching q, honouring its sort and paging.
	Find(ctx context.Context, q types.QuerySpec) ([]*T, error)

	// FindOne returns the first record matching q or ErrNotFound.
	FindOne(ctx context.Context, q types.QuerySpec) (*T, error)

	// Count returns how many records match the predicates of q.
	Count(ctx context.Context, q types.QuerySpec) (int64, error)

	// Save creates or replaces record. key is the identity predicate, nil
	// when the record has no identity value yet.
	Save(ctx context.Context, record *T, key *types.Predicate) error

	// Insert creates record and fails with ErrDuplicate if it exists.
	Insert(ctx context.Context, record *T) error

	// DeleteMatching removes the records matching the predicates of q.
	DeleteMatching(ctx context.Context, q types.QuerySpec) (int64, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// PartialUpdater is implemented by sessions of AtomicPartial backends.
type PartialUpdater interface {
	// UpdateFields applies update to the first (multi false) or every
	// (multi true) record matching scope and returns the matched count.
	UpdateFields(ctx context.Context, scope types.QuerySpec, update types.UpdateSpec, multi bool) (int64, error)
}
