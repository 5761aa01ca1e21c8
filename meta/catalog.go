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
	"github.com/puzpuzpuz/xsync/v3"
)

// Entry is the catalog record for one type. It is immutable.
type Entry struct {
	typ        reflect.Type
	properties []*PropertyDescriptor
	identity   *PropertyDescriptor
	byName     map[string]*PropertyDescriptor
	err        error
}

func (e *Entry) Type() reflect.Type { return e.typ }

// Properties returns the persisted properties in declaration order.
func (e *Entry) Properties() []*PropertyDescriptor {
	out := make([]*PropertyDescriptor, len(e.properties))
	copy(out, e.properties)
	return out
}

// Identity returns the identity property, if the type has one.
func (e *Entry) Identity() (*PropertyDescriptor, bool) {
	return e.identity, e.identity != nil
}

// RequireIdentity is Identity for callers that cannot proceed without one.
func (e *Entry) RequireIdentity() (*PropertyDescriptor, error) {
	if e.identity == nil {
		return nil, errors.Wrapf(ErrNoIdentity, "%s", e.typ)
	}
	return e.identity, nil
}

// Lookup finds a property by store name or Go name.
func (e *Entry) Lookup(name string) (*PropertyDescriptor, error) {
	if p, ok := e.byName[name]; ok {
		return p, nil
	}
	return nil, errors.Wrapf(ErrUnknownProperty, "%s.%s", e.typ, name)
}

func newEntry(typ reflect.Type, props []*PropertyDescriptor) *Entry {
	e := &Entry{
		typ:        typ,
		properties: props,
		byName:     make(map[string]*PropertyDescriptor, len(props)*2),
	}
	for _, p := range props {
		if p.identity {
			if e.identity != nil {
				e.err = errors.Wrapf(ErrInconsistentEntry, "%s: identities %s and %s", typ, e.identity.name, p.name)
				return e
			}
			e.identity = p
		}
		if prev, ok := e.byName[p.name]; ok && prev != p {
			e.err = errors.Wrapf(ErrInconsistentEntry, "%s: store name %q used twice", typ, p.name)
			return e
		}
		e.byName[p.name] = p
		if _, ok := e.byName[p.goName]; !ok {
			e.byName[p.goName] = p
		}
	}
	return e
}

// Catalog caches one Entry per record type for the life of the process.
// It is safe for concurrent use: the first resolution of a type computes its
// entry exactly once and every caller observes that same entry.
type Catalog struct {
	naming  Naming
	entries *xsync.MapOf[reflect.Type, *Entry]
}

type Option func(*Catalog)

// WithNaming selects how struct tags are read. The default is DefaultNaming.
func WithNaming(n Naming) Option {
	return func(c *Catalog) {
		if n != nil {
			c.naming = n
		}
	}
}

func NewCatalog(opts ...Option) *Catalog {
	c := &Catalog{
		naming:  DefaultNaming,
		entries: xsync.NewMapOf[reflect.Type, *Entry](),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve returns the entry for typ, deriving it on first use.
func (c *Catalog) Resolve(typ reflect.Type) (*Entry, error) {
	if typ == nil {
		return nil, ErrNotStruct
	}
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, errors.Wrapf(ErrNotStruct, "%s", typ)
	}
	entry, _ := c.entries.LoadOrCompute(typ, func() *Entry {
		return c.derive(typ)
	})
	if entry.err != nil {
		return nil, entry.err
	}
	return entry, nil
}

// ResolveValue resolves the type of record.
func (c *Catalog) ResolveValue(record any) (*Entry, error) {
	return c.Resolve(reflect.TypeOf(record))
}

// ResolveFor resolves T.
func ResolveFor[T any](c *Catalog) (*Entry, error) {
	return c.Resolve(reflect.TypeOf((*T)(nil)).Elem())
}

// Len reports how many types have entries.
func (c *Catalog) Len() int { return c.entries.Size() }

func (c *Catalog) derive(typ reflect.Type) *Entry {
	props := make([]*PropertyDescriptor, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		if sf.Anonymous || !sf.IsExported() || isPrimitive(sf.Type) {
			continue
		}
		tag := c.naming.Parse(sf)
		if tag.Transient || tag.Name == "" {
			continue
		}
		props = append(props, &PropertyDescriptor{
			owner:    typ,
			name:     tag.Name,
			goName:   sf.Name,
			identity: tag.Identity,
			get:      fieldGetter(sf.Index),
			set:      fieldSetter(sf.Index),
		})
	}
	return newEntry(typ, props)
}
