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
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type defaultMongoManager struct {
	config *MongoConfig
	client *mongo.Client
	logger Logger
	mu     sync.RWMutex
}

// NewMongoManager returns an AbstractMongoManager for config. A nil config
// means DefaultMongoConfig.
func NewMongoManager(config *MongoConfig) AbstractMongoManager {
	if config == nil {
		config = DefaultMongoConfig()
	}
	return &defaultMongoManager{config: config}
}

func (mm *defaultMongoManager) clientOptions() *options.ClientOptions {
	opts := options.Client().ApplyURI(mm.config.URI)
	if mm.config.ConnectTimeout > 0 {
		opts.SetConnectTimeout(mm.config.ConnectTimeout)
		opts.SetServerSelectionTimeout(mm.config.ConnectTimeout)
	}
	if mm.config.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(mm.config.MaxPoolSize)
	}
	return opts
}

func (mm *defaultMongoManager) Connect(ctx context.Context) error {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if mm.client != nil {
		return nil
	}
	if mm.config.Database == "" {
		return fmt.Errorf("mongo database name cannot be empty")
	}
	client, err := mongo.Connect(ctx, mm.clientOptions())
	if err != nil {
		return fmt.Errorf("failed to create mongo client: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("mongo connection test failed: %w", err)
	}
	mm.client = client
	if mm.logger != nil {
		mm.logger.Info("MongoDB connected", "database", mm.config.Database)
	}
	return nil
}

func (mm *defaultMongoManager) Disconnect(ctx context.Context) error {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if mm.client == nil {
		return nil
	}
	err := mm.client.Disconnect(ctx)
	mm.client = nil
	if mm.logger != nil {
		if err != nil {
			mm.logger.Error("Failed to close mongo connection", "error", err)
		} else {
			mm.logger.Info("MongoDB connection closed")
		}
	}
	return err
}

func (mm *defaultMongoManager) Ping(ctx context.Context) error {
	client := mm.Client()
	if client == nil {
		return fmt.Errorf("mongo not connected")
	}
	return client.Ping(ctx, readpref.Primary())
}

func (mm *defaultMongoManager) HealthCheck(ctx context.Context) *HealthStatus {
	start := time.Now()
	status := &HealthStatus{LastCheckTime: start}
	client := mm.Client()
	if client == nil {
		status.LastError = "MongoDB not initialized"
		return status
	}
	ctxTimeout, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()
	err := client.Ping(ctxTimeout, readpref.Primary())
	status.ResponseTime = time.Since(start)
	status.Healthy = err == nil
	status.Connected = err == nil
	status.ActiveConns = client.NumberSessionsInProgress()
	if err != nil {
		status.LastError = err.Error()
	}
	return status
}

func (mm *defaultMongoManager) Client() *mongo.Client {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.client
}

func (mm *defaultMongoManager) Database() *mongo.Database {
	client := mm.Client()
	if client == nil {
		return nil
	}
	return client.Database(mm.config.Database)
}

func (mm *defaultMongoManager) Collection(name string) *mongo.Collection {
	db := mm.Database()
	if db == nil {
		return nil
	}
	return db.Collection(name)
}

func (mm *defaultMongoManager) SetLogger(logger Logger) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.logger = logger
}
