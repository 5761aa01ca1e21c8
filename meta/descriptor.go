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
	"database/sql"
	"database/sql/driver"
	"reflect"

	"github.com/pkg/errors"
)

type getterFunc func(record reflect.Value) (any, error)

type setterFunc func(record reflect.Value, value any) error

// PropertyDescriptor is one persisted property of a record type: its store
// name, whether it is the identity, and how to read and write it.
type PropertyDescriptor struct {
	owner    reflect.Type
	name     string
	goName   string
	identity bool
	get      getterFunc
	set      setterFunc
}

// Name returns the field name used by the store (column or document key).
func (p *PropertyDescriptor) Name() string { return p.name }

// GoName returns the Go struct field name, or the registered name for
// properties installed with Register.
func (p *PropertyDescriptor) GoName() string { return p.goName }

func (p *PropertyDescriptor) IsIdentity() bool { return p.identity }

// Get reads the property from record, which may be a struct or a pointer to
// one. Null values come back as nil: nil pointers, maps, slices and
// interfaces, driver.Valuer values reporting nil, zero structs such as an
// unset time.Time, and zero ids like an unset uuid.UUID. Pointers are dereferenced and valuers normalized.
func (p *PropertyDescriptor) Get(record any) (value any, err error) {
	rv, err := p.recordValue(record, false)
	if err != nil {
		return nil, p.fail("get", err)
	}
	defer func() {
		if r := recover(); r != nil {
			value, err = nil, p.fail("get", errors.Errorf("panic: %v", r))
		}
	}()
	raw, err := p.get(rv)
	if err != nil {
		return nil, p.fail("get", err)
	}
	value, err = normalize(raw)
	if err != nil {
		return nil, p.fail("get", err)
	}
	return value, nil
}

// Set writes value onto record, which must be a non-nil pointer to a struct.
func (p *PropertyDescriptor) Set(record any, value any) (err error) {
	if p.set == nil {
		return p.fail("set", errNoMutator)
	}
	rv, err := p.recordValue(record, true)
	if err != nil {
		return p.fail("set", err)
	}
	defer func() {
		if r := recover(); r != nil {
			err = p.fail("set", errors.Errorf("panic: %v", r))
		}
	}()
	if err := p.set(rv, value); err != nil {
		return p.fail("set", err)
	}
	return nil
}

func (p *PropertyDescriptor) fail(op string, err error) error {
	return &PropertyError{Type: p.owner, Property: p.name, Op: op, Err: err}
}

func (p *PropertyDescriptor) recordValue(record any, addressable bool) (reflect.Value, error) {
	rv := reflect.ValueOf(record)
	if !rv.IsValid() {
		return reflect.Value{}, errNilRecord
	}
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return reflect.Value{}, errNilRecord
		}
		rv = rv.Elem()
	} else if addressable {
		return reflect.Value{}, errors.Errorf("record %T is not addressable", record)
	}
	if rv.Type() != p.owner {
		return reflect.Value{}, errors.Errorf("record %s is not %s", rv.Type(), p.owner)
	}
	return rv, nil
}

type zeroer interface {
	IsZero() bool
}

func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		if rv.IsNil() {
			return nil, nil
		}
	}
	// Unset ids such as primitive.ObjectID and uuid.UUID are zero arrays and
	// would otherwise pass as values, the latter through its Valuer.
	if z, ok := v.(zeroer); ok && z.IsZero() {
		return nil, nil
	}
	if rv.Kind() == reflect.Array && rv.IsZero() {
		return nil, nil
	}
	if valuer, ok := v.(driver.Valuer); ok {
		dv, err := valuer.Value()
		if err != nil {
			return nil, err
		}
		return dv, nil
	}
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		return normalize(rv.Elem().Interface())
	case reflect.Struct:
		if rv.IsZero() {
			return nil, nil
		}
	}
	return v, nil
}

// isPrimitive reports whether a field of type t can never be null.
func isPrimitive(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	}
	return false
}

func fieldGetter(index []int) getterFunc {
	return func(record reflect.Value) (any, error) {
		return record.FieldByIndex(index).Interface(), nil
	}
}

func fieldSetter(index []int) setterFunc {
	return func(record reflect.Value, value any) error {
		return assign(record.FieldByIndex(index), value)
	}
}

func assign(field reflect.Value, value any) error {
	if !field.CanSet() {
		return errors.New("field is not settable")
	}
	if value == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}
	if scanner, ok := field.Addr().Interface().(sql.Scanner); ok {
		return scanner.Scan(value)
	}
	src := reflect.ValueOf(value)
	target := field.Type()
	if src.Type().AssignableTo(target) {
		field.Set(src)
		return nil
	}
	if target.Kind() == reflect.Ptr {
		elem := reflect.New(target.Elem())
		if err := assign(elem.Elem(), value); err != nil {
			return err
		}
		field.Set(elem)
		return nil
	}
	if src.Kind() == reflect.Ptr {
		if src.IsNil() {
			field.Set(reflect.Zero(target))
			return nil
		}
		return assign(field, src.Elem().Interface())
	}
	if convertible(src.Type(), target) {
		field.Set(src.Convert(target))
		return nil
	}
	return errors.Errorf("cannot assign %T to %s", value, target)
}

func convertible(src, dst reflect.Type) bool {
	if !src.ConvertibleTo(dst) {
		return false
	}
	if src.Kind() == dst.Kind() {
		return true
	}
	return isNumeric(src.Kind()) && isNumeric(dst.Kind())
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
