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
	"reflect"
	"sort"
	"sync"

	"github.com/uptrace/bun"
)

var defaultRegistry = newModelRegistry()

// SQLModel is a bun model whose table EnsureTables creates. Instance
// returns a struct pointer; lower Priority values are created first.
type SQLModel interface {
	Instance() interface{}
	Priority() int
}

// ModelRegistry stores SQL models and exposes them in a deterministic order.
type ModelRegistry interface {
	Register(model SQLModel)
	Models() []SQLModel
}

type modelRegistry struct {
	mu     sync.RWMutex
	models []SQLModel
	index  map[reflect.Type]int
}

func newModelRegistry() ModelRegistry {
	return &modelRegistry{index: map[reflect.Type]int{}}
}

// Register adds model. Registering a type again replaces its priority.
func (r *modelRegistry) Register(model SQLModel) {
	typ := reflect.TypeOf(model.Instance())
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.index[typ]; ok {
		r.models[i] = model
		return
	}
	r.index[typ] = len(r.models)
	r.models = append(r.models, model)
}

// Models returns the models by ascending priority, registration order
// breaking ties.
func (r *modelRegistry) Models() []SQLModel {
	r.mu.RLock()
	result := make([]SQLModel, len(r.models))
	copy(result, r.models)
	r.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Priority() < result[j].Priority()
	})
	return result
}

type modelOf[T any] struct {
	priority int
}

func (m modelOf[T]) Instance() interface{} { return (*T)(nil) }

func (m modelOf[T]) Priority() int { return m.priority }

// Model returns the SQLModel of T.
func Model[T any](priority int) SQLModel {
	return modelOf[T]{priority: priority}
}

// RegisterModel adds T to the default registry.
func RegisterModel[T any](priority int) {
	defaultRegistry.Register(Model[T](priority))
}

// GetRegisteredModels returns all models registered in the default registry
// sorted by ascending priority.
func GetRegisteredModels() []SQLModel {
	return defaultRegistry.Models()
}

func RegisteredModelInstances() []interface{} {
	models := GetRegisteredModels()
	modelInstances := make([]interface{}, len(models))
	for i, model := range models {
		modelInstances[i] = model.Instance()
	}
	return modelInstances
}

// CreateTables creates the table of every model that does not have one yet.
func CreateTables(ctx context.Context, db bun.IDB, models ...SQLModel) error {
	for _, m := range models {
		if _, err := db.NewCreateTable().Model(m.Instance()).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table for %T: %w", m.Instance(), err)
		}
	}
	return nil
}
