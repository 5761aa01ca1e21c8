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
	"fmt"
	"sync"

	"github.com/uptrace/bun"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	globalMu      sync.RWMutex
	globalFactory *BaseDatabaseFactory
)

// GetDB returns the global bun database, or nil before InitDB.
func GetDB() *bun.DB {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalFactory == nil {
		return nil
	}
	return globalFactory.GetDB()
}

// GetMongo returns the global MongoDB manager, or nil when InitDB had no
// mongo configuration.
func GetMongo() AbstractMongoManager {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalFactory == nil {
		return nil
	}
	return globalFactory.GetMongoManager()
}

// GetMongoCollection is a shortcut for GetMongo().Collection(name).
func GetMongoCollection(name string) (*mongo.Collection, error) {
	m := GetMongo()
	if m == nil || m.Client() == nil {
		return nil, fmt.Errorf("mongo not initialized")
	}
	return m.Collection(name), nil
}

// GetDatabaseFactory returns the global database factory.
func GetDatabaseFactory() *BaseDatabaseFactory {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalFactory
}

// InitDB opens the stores named in cfg and installs them globally. The SQL
// part is skipped when Connection.Type is empty, the MongoDB part when
// Mongo.Database is empty.
func InitDB(ctx context.Context, cfg *Config) (*BaseDatabaseFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	factory := NewDatabaseFactory()
	if cfg.Connection.Type != "" {
		if _, err := factory.CreateFromConfig(&cfg.Connection); err != nil {
			return nil, fmt.Errorf("failed to create database manager: %w", err)
		}
	}
	if cfg.Mongo.Database != "" {
		if _, err := factory.CreateMongoFromConfig(&cfg.Mongo); err != nil {
			return nil, fmt.Errorf("failed to create mongo manager: %w", err)
		}
	}
	if err := factory.InitializeDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if db := factory.GetDB(); db != nil {
		db.RegisterModel(RegisteredModelInstances()...)
	}

	globalMu.Lock()
	globalFactory = factory
	globalMu.Unlock()
	return factory, nil
}

// CloseDB closes the global connections.
func CloseDB(ctx context.Context) error {
	globalMu.Lock()
	factory := globalFactory
	globalFactory = nil
	globalMu.Unlock()
	if factory == nil {
		return nil
	}
	return factory.Close(ctx)
}

// GetHealthStatus returns the current SQL health status.
func GetHealthStatus(ctx context.Context) *HealthStatus {
	if factory := GetDatabaseFactory(); factory != nil {
		return factory.GetHealthStatus(ctx)
	}
	return &HealthStatus{LastError: "Database not initialized"}
}

// GetDatabaseStats returns global SQL connection statistics.
func GetDatabaseStats() *DBStats {
	if factory := GetDatabaseFactory(); factory != nil {
		return factory.GetStats()
	}
	return &DBStats{}
}
