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
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

var supportedTypes = []string{"mysql", "postgres", "sqlite"}

// BaseDatabaseFactory creates the store managers from configuration and
// provides helpers for initialization, health checks and statistics.
type BaseDatabaseFactory struct {
	manager      AbstractDatabaseManager
	mongo        AbstractMongoManager
	ensureTables bool
	logger       Logger
}

// NewDatabaseFactory returns a new database factory using the global logger.
func NewDatabaseFactory() *BaseDatabaseFactory {
	return &BaseDatabaseFactory{
		logger: GetLogger(),
	}
}

// CreateFromConfig constructs a SQL manager from cfg after applying the
// environment overrides.
func (f *BaseDatabaseFactory) CreateFromConfig(cfg *ConnectionConfig) (AbstractDatabaseManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	f.overrideFromEnv(cfg)

	supported := false
	for _, t := range supportedTypes {
		if strings.EqualFold(cfg.Type, t) {
			supported = true
			break
		}
	}
	if !supported {
		return nil, fmt.Errorf("unsupported database type: %s, supported types: %v", cfg.Type, supportedTypes)
	}

	manager := NewDatabaseManager(cfg)
	manager.SetLogger(f.logger)
	f.manager = manager
	f.ensureTables = cfg.EnsureTables
	return manager, nil
}

// CreateMongoFromConfig constructs a MongoDB manager from cfg after applying
// the environment overrides.
func (f *BaseDatabaseFactory) CreateMongoFromConfig(cfg *MongoConfig) (AbstractMongoManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mongo configuration cannot be empty")
	}
	f.overrideMongoFromEnv(cfg)
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo uri cannot be empty")
	}
	manager := NewMongoManager(cfg)
	manager.SetLogger(f.logger)
	f.mongo = manager
	return manager, nil
}

// overrideFromEnv overrides configuration values from environment variables.
func (f *BaseDatabaseFactory) overrideFromEnv(cfg *ConnectionConfig) {
	if typ := os.Getenv("DB_TYPE"); typ != "" {
		cfg.Type = typ
	}
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if username := os.Getenv("DB_USERNAME"); username != "" {
		cfg.Username = username
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if dbname := os.Getenv("DB_NAME"); dbname != "" {
		cfg.DBName = dbname
	}
	if sslmode := os.Getenv("DB_SSLMODE"); sslmode != "" {
		cfg.SSLMode = sslmode
	}
	if maxIdle := os.Getenv("DB_MAX_IDLE_CONNS"); maxIdle != "" {
		if val, err := strconv.Atoi(maxIdle); err == nil {
			cfg.MaxIdleConns = val
		}
	}
	if maxOpen := os.Getenv("DB_MAX_OPEN_CONNS"); maxOpen != "" {
		if val, err := strconv.Atoi(maxOpen); err == nil {
			cfg.MaxOpenConns = val
		}
	}
	if maxLifetime := os.Getenv("DB_CONN_MAX_LIFETIME"); maxLifetime != "" {
		if val, err := strconv.Atoi(maxLifetime); err == nil {
			cfg.ConnMaxLifetime = time.Duration(val) * time.Second
		}
	}
	if enableQueryLog := os.Getenv("DB_ENABLE_QUERY_LOG"); enableQueryLog != "" {
		cfg.EnableQueryLog = enableQueryLog == "true"
	}
}

func (f *BaseDatabaseFactory) overrideMongoFromEnv(cfg *MongoConfig) {
	if uri := os.Getenv("MONGO_URI"); uri != "" {
		cfg.URI = uri
	}
	if name := os.Getenv("MONGO_DATABASE"); name != "" {
		cfg.Database = name
	}
}

// InitializeDatabase connects every created manager and, when the SQL
// config asks for it, creates the tables of the registered models.
func (f *BaseDatabaseFactory) InitializeDatabase(ctx context.Context) error {
	if f.manager == nil && f.mongo == nil {
		return fmt.Errorf("database manager not created")
	}
	if f.manager != nil {
		if err := f.manager.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		if f.ensureTables {
			if err := f.manager.EnsureTables(ctx); err != nil {
				return fmt.Errorf("failed to create tables: %w", err)
			}
		}
	}
	if f.mongo != nil {
		if err := f.mongo.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to mongo: %w", err)
		}
	}
	f.logger.Info("Database initialization completed")
	return nil
}

func (f *BaseDatabaseFactory) GetManager() AbstractDatabaseManager {
	return f.manager
}

func (f *BaseDatabaseFactory) GetMongoManager() AbstractMongoManager {
	return f.mongo
}

// GetDB returns the bun database, or nil if not initialized.
func (f *BaseDatabaseFactory) GetDB() *bun.DB {
	if f.manager == nil {
		return nil
	}
	return f.manager.GetDB()
}

// SetLogger sets the logger on the factory and its managers.
func (f *BaseDatabaseFactory) SetLogger(logger Logger) {
	f.logger = logger
	if f.manager != nil {
		f.manager.SetLogger(logger)
	}
	if f.mongo != nil {
		f.mongo.SetLogger(logger)
	}
}

// Close closes every connection the factory opened.
func (f *BaseDatabaseFactory) Close(ctx context.Context) error {
	var firstErr error
	if f.manager != nil {
		firstErr = f.manager.Disconnect()
	}
	if f.mongo != nil {
		if err := f.mongo.Disconnect(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// GetHealthStatus returns the SQL health status from the manager.
func (f *BaseDatabaseFactory) GetHealthStatus(ctx context.Context) *HealthStatus {
	if f.manager == nil {
		return &HealthStatus{
			LastError:     "Database manager not initialized",
			LastCheckTime: time.Now(),
		}
	}
	return f.manager.HealthCheck(ctx)
}

// GetStats returns SQL connection statistics from the manager.
func (f *BaseDatabaseFactory) GetStats() *DBStats {
	if f.manager == nil {
		return &DBStats{}
	}
	return f.manager.GetStats()
}
