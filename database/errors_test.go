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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestClassifyStoreError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		is   bool
		kind ErrorKind
	}{
		{"nil", nil, false, UnknownErr},
		{"no rows", fmt.Errorf("scan: %w", sql.ErrNoRows), true, NoRowsErr},
		{"no documents", mongo.ErrNoDocuments, true, NoRowsErr},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, true, DuplicateKeyErr},
		{"mysql no table", fmt.Errorf("query: %w", &mysql.MySQLError{Number: 1146}), true, NoTableErr},
		{"mysql foreign key", &mysql.MySQLError{Number: 1452}, true, ForeignKeyViolationErr},
		{"mysql other", &mysql.MySQLError{Number: 1}, true, UnknownErr},
		{"pq duplicate", &pq.Error{Code: "23505"}, true, DuplicateKeyErr},
		{"pq not null", fmt.Errorf("insert: %w", &pq.Error{Code: "23502"}), true, NotNullViolationErr},
		{"pq other", &pq.Error{Code: "XX000"}, true, UnknownErr},
		{"mongo duplicate", mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}, true, DuplicateKeyErr},
		{"mongo timeout", fmt.Errorf("find: %w", context.DeadlineExceeded), true, TimeoutErr},
		{"sqlite unique", errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)"), true, DuplicateKeyErr},
		{"sqlite no table", errors.New("SQL logic error: no such table: users (1)"), true, NoTableErr},
		{"sqlite not null", errors.New("NOT NULL constraint failed: users.name"), true, NotNullViolationErr},
		{"unrelated", errors.New("connection refused"), false, UnknownErr},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			is, kind := ClassifyStoreError(tc.err)
			assert.Equal(t, tc.is, is)
			assert.Equal(t, tc.kind, kind, "got %s", kind)
		})
	}
}

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, "duplicate_key", DuplicateKeyErr.String())
	assert.Equal(t, "timeout", TimeoutErr.String())
	assert.Equal(t, "unknown", ErrorKind(99).String())
}
