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

// Package meta discovers and caches, per record type, the persisted
// properties and the identity property used by query and merge by example.
//
// A Catalog is an explicit object: build one at process start, hand it to
// every service that needs it and keep it for the life of the process.
// Entries are created on first use, either derived from struct tags or
// installed up front with Register, and are never changed afterwards.
package meta
