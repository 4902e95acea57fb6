//go:build !plist_noreflect

package plist

import (
	"encoding"
	"errors"
	"reflect"
	"sort"
	"time"
)

// Marshaler is the interface implemented by types that can substitute another
// value for themselves when being marshalled.
type Marshaler interface {
	MarshalPlist() (interface{}, error)
}

type unknownTypeError struct {
	typ reflect.Type
}

func (u *unknownTypeError) Error() string {
	return "plist: can't marshal value of type " + u.typ.String()
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Ptr:
		return v.IsNil()
	}
	return false
}

var (
	plistMarshalerType = reflect.TypeOf((*Marshaler)(nil)).Elem()
	textMarshalerType  = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	timeType           = reflect.TypeOf((*time.Time)(nil)).Elem()
	uidType            = reflect.TypeOf(UID(0))
	valueType          = reflect.TypeOf((*Value)(nil)).Elem()
)

// implementsInterface reports whether val or its address satisfies
// interfaceType, returning whichever receiver does.
func implementsInterface(val reflect.Value, interfaceType reflect.Type) (interface{}, bool) {
	if val.CanInterface() && val.Type().Implements(interfaceType) {
		return val.Interface(), true
	}
	if val.CanAddr() {
		pv := val.Addr()
		if pv.CanInterface() && pv.Type().Implements(interfaceType) {
			return pv.Interface(), true
		}
	}
	return nil, false
}

func marshalStruct(typ reflect.Type, val reflect.Value) (Value, error) {
	tinfo, err := getTypeInfo(typ)
	if err != nil {
		return nil, err
	}

	dict := &Dictionary{}
	for _, finfo := range tinfo.fields {
		value := finfo.value(val)
		if !value.IsValid() || finfo.omitEmpty && isEmptyValue(value) {
			continue
		}
		v, err := marshalValue(value)
		if err != nil {
			return nil, err
		}
		dict.Set(finfo.name, v)
	}

	return dict, nil
}

// marshalValue converts an arbitrary Go value into its property-list
// representation. Struct fields appear in declaration order; map keys are
// sorted so that output is deterministic.
func marshalValue(val reflect.Value) (Value, error) {
	if !val.IsValid() {
		return nil, errors.New("plist: can't marshal untyped nil")
	}
	typ := val.Type()

	// Pre-converted values pass through untouched.
	if typ.Implements(valueType) {
		return val.Interface().(Value), nil
	}

	// time.Time implements TextMarshaler, but we need to store it as a date
	if typ == timeType {
		return Date(val.Interface().(time.Time)), nil
	}
	if val.Kind() == reflect.Ptr || (val.Kind() == reflect.Interface && val.NumMethod() == 0) {
		ival := val.Elem()
		if ival.IsValid() && ival.Type() == timeType {
			return Date(ival.Interface().(time.Time)), nil
		}
	}

	if typ == uidType {
		return UID(val.Uint()), nil
	}

	if receiver, can := implementsInterface(val, plistMarshalerType); can {
		inner, err := receiver.(Marshaler).MarshalPlist()
		if err != nil {
			return nil, err
		}
		return marshalValue(reflect.ValueOf(inner))
	}

	if receiver, can := implementsInterface(val, textMarshalerType); can {
		s, err := receiver.(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return nil, err
		}
		return String(s), nil
	}

	// Descend into pointers or interfaces
	if val.Kind() == reflect.Ptr || (val.Kind() == reflect.Interface && val.NumMethod() == 0) {
		val = val.Elem()
		if !val.IsValid() {
			return nil, &unknownTypeError{typ}
		}
		typ = val.Type()
	}

	if val.Kind() == reflect.Struct {
		return marshalStruct(typ, val)
	}

	switch val.Kind() {
	case reflect.String:
		return String(val.String()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return integerFromInt(val.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Integer{Value: val.Uint()}, nil
	case reflect.Float32:
		return Real{Value: val.Float()}, nil
	case reflect.Float64:
		return Real{Wide: true, Value: val.Float()}, nil
	case reflect.Bool:
		return Boolean(val.Bool()), nil
	case reflect.Slice, reflect.Array:
		if typ.Elem().Kind() == reflect.Uint8 {
			var bytes []byte
			if val.Kind() == reflect.Slice {
				bytes = val.Bytes()
			} else {
				bytes = make([]byte, val.Len())
				reflect.Copy(reflect.ValueOf(bytes), val)
			}
			return Data(bytes), nil
		}

		values := make([]Value, val.Len())
		for idx := range values {
			v, err := marshalValue(val.Index(idx))
			if err != nil {
				return nil, err
			}
			values[idx] = v
		}
		return &Array{Values: values}, nil
	case reflect.Map:
		if typ.Key().Kind() != reflect.String {
			return nil, &unknownTypeError{typ}
		}

		keys := make([]string, 0, val.Len())
		for _, keyv := range val.MapKeys() {
			keys = append(keys, keyv.String())
		}
		sort.Strings(keys)

		dict := &Dictionary{}
		for _, k := range keys {
			v, err := marshalValue(val.MapIndex(reflect.ValueOf(k).Convert(typ.Key())))
			if err != nil {
				return nil, err
			}
			dict.Set(k, v)
		}
		return dict, nil
	default:
		return nil, &unknownTypeError{typ}
	}
}
