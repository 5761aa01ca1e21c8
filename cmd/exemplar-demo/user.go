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

package main

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/tomoncle/exemplar/database"
)

// User is the account record of the demo. The same struct maps to the
// users table and to the users collection.
type User struct {
	bun.BaseModel `bun:"table:users" bson:"-"`

	ID        string    `bun:"id,pk" bson:"_id" json:"id"`
	Name      string    `bun:"name,notnull" bson:"name" json:"name"`
	Email     string    `bun:"email,notnull,unique" bson:"email" json:"email"`
	Password  string    `bun:"password,notnull" bson:"password" json:"-"`
	CreatedAt time.Time `bun:"created_at,nullzero" bson:"created_at,omitempty" json:"created_at"`
}

func init() {
	database.RegisterModel[User](0)
}
