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

// Package exemplar reads and writes records by example. A partially
// populated record is the query: its non-null properties must all match.
// Another partially populated record is the update: its non-null properties
// are merged into the matching records.
//
//	catalog := meta.NewCatalog(meta.WithNaming(meta.BunNaming))
//	users, err := exemplar.NewService[User](repository.NewBunBackend[User](db), catalog)
//	...
//	u, err := users.FindOne(ctx, &User{Email: email, Password: password})
//	n, err := users.UpdateByID(ctx, u.ID, &User{Name: "New Name"})
package exemplar
