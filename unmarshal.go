//go:build !plist_noreflect

package plist

import (
	"encoding"
	"errors"
	"fmt"
	"math"
	"reflect"
	"runtime"
	"time"
)

// Unmarshaler is the interface implemented by types that can unmarshal
// themselves from a property list value. The argument decodes the value into
// whatever the receiver passes it.
type Unmarshaler interface {
	UnmarshalPlist(unmarshal func(interface{}) error) error
}

var (
	plistUnmarshalerType = reflect.TypeOf((*Unmarshaler)(nil)).Elem()
	textUnmarshalerType  = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// decodeState carries the options and the dotted path of the value currently
// being decoded, for error reporting.
type decodeState struct {
	lax  bool
	path string
}

func (d *decodeState) mismatch(dest reflect.Type, pval Value) *TypeMismatchError {
	return &TypeMismatchError{Path: d.path, Expected: dest.String(), Found: pval.TypeName()}
}

// unmarshalTree decodes root into the value pointed to by v.
func unmarshalTree(root Value, v interface{}, lax bool) (err error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New("plist: unmarshal target must be a non-nil pointer")
	}

	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(runtime.Error); ok {
				panic(r)
			}
			err = r.(error)
		}
	}()

	d := &decodeState{lax: lax, path: "root"}
	d.unmarshal(root, rv)
	return nil
}

func (d *decodeState) unmarshalPlistInterface(pval Value, unmarshalable Unmarshaler) {
	err := unmarshalable.UnmarshalPlist(func(i interface{}) (err error) {
		defer func() {
			if r := recover(); r != nil {
				if _, ok := r.(runtime.Error); ok {
					panic(r)
				}
				err = r.(error)
			}
		}()
		d.unmarshal(pval, reflect.ValueOf(i))
		return
	})

	if err != nil {
		panic(err)
	}
}

func (d *decodeState) unmarshalLaxString(s string, val reflect.Value) {
	switch val.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		val.SetInt(mustParseInt(s, 10, 64))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		val.SetUint(mustParseUint(s, 10, 64))
	case reflect.Float32, reflect.Float64:
		val.SetFloat(mustParseFloat(s, 64))
	case reflect.Bool:
		val.SetBool(mustParseBool(s))
	case reflect.Struct:
		if val.Type() == timeType {
			t, err := time.Parse(textPlistTimeLayout, s)
			if err != nil {
				panic(err)
			}
			val.Set(reflect.ValueOf(t.In(time.UTC)))
			return
		}
		fallthrough
	default:
		panic(d.mismatch(val.Type(), String(s)))
	}
}

func (d *decodeState) unmarshal(pval Value, val reflect.Value) {
	if pval == nil {
		return
	}

	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			val.Set(reflect.New(val.Type().Elem()))
		}
		val = val.Elem()
	}

	if val.Kind() == reflect.Interface && val.NumMethod() == 0 {
		val.Set(reflect.ValueOf(d.valueInterface(pval)))
		return
	}

	// time.Time implements TextUnmarshaler, but dates decode directly
	if date, ok := pval.(Date); ok {
		if val.Type() == timeType {
			val.Set(reflect.ValueOf(time.Time(date)))
			return
		}
		panic(d.mismatch(val.Type(), pval))
	}

	if receiver, can := implementsInterface(val, plistUnmarshalerType); can {
		d.unmarshalPlistInterface(pval, receiver.(Unmarshaler))
		return
	}

	if val.Type() != timeType {
		if receiver, can := implementsInterface(val, textUnmarshalerType); can {
			str, ok := pval.(String)
			if !ok {
				panic(d.mismatch(val.Type(), pval))
			}
			if err := receiver.(encoding.TextUnmarshaler).UnmarshalText([]byte(str)); err != nil {
				panic(err)
			}
			return
		}
	}

	typ := val.Type()

	switch pval := pval.(type) {
	case String:
		if val.Kind() == reflect.String {
			val.SetString(string(pval))
			return
		}
		if d.lax {
			d.unmarshalLaxString(string(pval), val)
			return
		}
		panic(d.mismatch(typ, pval))
	case Integer:
		switch val.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			i, ok := pval.Int()
			if !ok || val.OverflowInt(i) {
				panic(errorf(ErrIntegerOverflow, "value %d does not fit %v at %s", pval.Value, typ, d.path))
			}
			val.SetInt(i)
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			if pval.Signed && int64(pval.Value) < 0 || val.OverflowUint(pval.Value) {
				panic(errorf(ErrIntegerOverflow, "value %d does not fit %v at %s", int64(pval.Value), typ, d.path))
			}
			val.SetUint(pval.Value)
		default:
			panic(d.mismatch(typ, pval))
		}
	case Real:
		if val.Kind() == reflect.Float32 || val.Kind() == reflect.Float64 {
			val.SetFloat(pval.Value)
		} else {
			panic(d.mismatch(typ, pval))
		}
	case Boolean:
		if val.Kind() == reflect.Bool {
			val.SetBool(bool(pval))
		} else {
			panic(d.mismatch(typ, pval))
		}
	case Data:
		if val.Kind() == reflect.Slice && typ.Elem().Kind() == reflect.Uint8 {
			val.SetBytes([]byte(pval))
		} else {
			panic(d.mismatch(typ, pval))
		}
	case UID:
		if typ == uidType {
			val.SetUint(uint64(pval))
			return
		}
		switch val.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if uint64(pval) > math.MaxInt64 || val.OverflowInt(int64(pval)) {
				panic(errorf(ErrIntegerOverflow, "UID %d does not fit %v at %s", uint64(pval), typ, d.path))
			}
			val.SetInt(int64(pval))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			if val.OverflowUint(uint64(pval)) {
				panic(errorf(ErrIntegerOverflow, "UID %d does not fit %v at %s", uint64(pval), typ, d.path))
			}
			val.SetUint(uint64(pval))
		default:
			panic(d.mismatch(typ, pval))
		}
	case *Array:
		d.unmarshalArray(pval, val)
	case *Dictionary:
		d.unmarshalDictionary(pval, val)
	}
}

func (d *decodeState) unmarshalArray(a *Array, val reflect.Value) {
	var n int
	if val.Kind() == reflect.Slice {
		// Grow the slice to hold the incoming values.
		cnt := len(a.Values) + val.Len()
		if cnt >= val.Cap() {
			ncap := 2 * cnt
			if ncap < 4 {
				ncap = 4
			}
			grown := reflect.MakeSlice(val.Type(), val.Len(), ncap)
			reflect.Copy(grown, val)
			val.Set(grown)
		}
		n = val.Len()
		val.SetLen(cnt)
	} else if val.Kind() == reflect.Array {
		if len(a.Values) > val.Cap() {
			panic(fmt.Errorf("plist: attempted to unmarshal %d values into an array of size %d at %s", len(a.Values), val.Cap(), d.path))
		}
	} else {
		panic(d.mismatch(val.Type(), a))
	}

	outer := d.path
	a.Range(func(i int, sval Value) {
		d.path = fmt.Sprintf("%s[%d]", outer, i)
		d.unmarshal(sval, val.Index(n))
		n++
	})
	d.path = outer
}

func (d *decodeState) unmarshalDictionary(dict *Dictionary, val reflect.Value) {
	typ := val.Type()
	switch val.Kind() {
	case reflect.Struct:
		tinfo, err := getTypeInfo(typ)
		if err != nil {
			panic(err)
		}

		// Decode into a scratch copy so that a failure partway through
		// leaves the destination untouched.
		scratch := reflect.New(typ).Elem()
		scratch.Set(val)

		outer := d.path
		for _, finfo := range tinfo.fields {
			if sval, ok := dict.Get(finfo.name); ok {
				d.path = outer + "." + finfo.name
				d.unmarshal(sval, finfo.value(scratch))
			}
		}
		d.path = outer
		val.Set(scratch)
	case reflect.Map:
		if typ.Key().Kind() != reflect.String {
			panic(d.mismatch(typ, dict))
		}
		if val.IsNil() {
			val.Set(reflect.MakeMap(typ))
		}

		outer := d.path
		dict.Range(func(i int, k string, sval Value) {
			d.path = outer + "." + k
			keyv := reflect.ValueOf(k).Convert(typ.Key())
			mapElem := reflect.New(typ.Elem()).Elem()
			d.unmarshal(sval, mapElem)
			val.SetMapIndex(keyv, mapElem)
		})
		d.path = outer
	default:
		panic(d.mismatch(typ, dict))
	}
}

/* *Interface is modelled after encoding/json */
func (d *decodeState) valueInterface(pval Value) interface{} {
	switch pval := pval.(type) {
	case String:
		return string(pval)
	case Integer:
		if pval.Signed {
			return int64(pval.Value)
		}
		return pval.Value
	case Real:
		if pval.Wide {
			return pval.Value
		}
		return float32(pval.Value)
	case Boolean:
		return bool(pval)
	case Data:
		return []byte(pval)
	case Date:
		return time.Time(pval)
	case UID:
		return pval
	case *Array:
		out := make([]interface{}, len(pval.Values))
		pval.Range(func(i int, subv Value) {
			out[i] = d.valueInterface(subv)
		})
		return out
	case *Dictionary:
		out := make(map[string]interface{}, pval.Len())
		pval.Range(func(i int, k string, subv Value) {
			out[k] = d.valueInterface(subv)
		})
		return out
	}
	return nil
}
