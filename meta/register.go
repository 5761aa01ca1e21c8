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

package meta

import (
	"reflect"

	"github.com/pkg/errors"
)

type PropOption func(*PropertyDescriptor)

// Identity marks the property as the record identity.
func Identity() PropOption {
	return func(p *PropertyDescriptor) { p.identity = true }
}

// Prop declares a property of T by hand. get returns the current value and
// nil when unset; set may be nil for read-only properties.
//
//	meta.Prop[User]("email",
//		func(u *User) any { return u.Email },
//		func(u *User, v any) error { u.Email = v.(string); return nil })
func Prop[T any](name string, get func(*T) any, set func(*T, any) error, opts ...PropOption) *PropertyDescriptor {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	p := &PropertyDescriptor{
		owner:  typ,
		name:   name,
		goName: name,
		get: func(record reflect.Value) (any, error) {
			return get(addrOf[T](record)), nil
		},
	}
	if set != nil {
		p.set = func(record reflect.Value, value any) error {
			return set(record.Addr().Interface().(*T), value)
		}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register installs a hand-written property table for T, replacing struct
// tag discovery for that type. It fails if T was already resolved or the
// table is inconsistent.
func Register[T any](c *Catalog, props ...*PropertyDescriptor) error {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if typ.Kind() != reflect.Struct {
		return errors.Wrapf(ErrNotStruct, "%s", typ)
	}
	for _, p := range props {
		if p.owner != typ {
			return errors.Wrapf(ErrInconsistentEntry, "property %s belongs to %s, not %s", p.name, p.owner, typ)
		}
	}
	entry := newEntry(typ, props)
	if entry.err != nil {
		return entry.err
	}
	if _, loaded := c.entries.LoadOrStore(typ, entry); loaded {
		return errors.Wrapf(ErrAlreadyResolved, "%s", typ)
	}
	return nil
}

func addrOf[T any](record reflect.Value) *T {
	if record.CanAddr() {
		return record.Addr().Interface().(*T)
	}
	cp := reflect.New(record.Type())
	cp.Elem().Set(record)
	return cp.Interface().(*T)
}
