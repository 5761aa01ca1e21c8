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

package exemplar

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/exemplar/database"
	"github.com/tomoncle/exemplar/repository"
)

func TestServiceOverInitDB(t *testing.T) {
	ctx := context.Background()
	database.RegisterModel[member](0)

	cfg := database.DefaultConfig()
	cfg.Connection.Type = "sqlite"
	cfg.Connection.DBName = filepath.Join(t.TempDir(), "exemplar.db")
	cfg.Connection.MaxOpenConns = 1
	cfg.Connection.HealthCheckInterval = 0
	cfg.Connection.EnsureTables = true
	_, err := database.InitDB(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.CloseDB(ctx) })

	c := newCatalog()
	svc, err := NewService[member](repository.NewBunBackend[member](database.GetDB()), c, WithLogger(database.GetLogger()))
	require.NoError(t, err)
	seedMembers(t, svc)

	m, err := svc.FindOne(ctx, &member{Email: "linus@example.com", Password: "pw3"})
	require.NoError(t, err)
	assert.Equal(t, "Linus", m.Name)

	n, err := svc.UpdateByID(ctx, *m.ID, &member{Team: str("core")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	core, err := svc.Count(ctx, &member{Team: str("core")})
	require.NoError(t, err)
	assert.Equal(t, int64(3), core)

	err = svc.Insert(ctx, &member{ID: i64(9), Name: "Copy", Email: "ada@example.com"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	assert.True(t, database.GetHealthStatus(ctx).Healthy)
}
