//go:build !plist_noreflect

package plist

import (
	"bytes"
	"reflect"
)

// Marshal returns the property list encoding of v in the given format.
//
// Strings, integers, floats and booleans encode unchanged. Slices and arrays
// encode as arrays, except []byte, which becomes data. Maps must have string
// keys and encode as dictionaries with sorted keys. Structs encode as
// dictionaries of their exported fields, in declaration order; field names
// and omission are controlled by `plist:"name[,omitempty]"` tags, and a name
// of "-" skips the field. time.Time encodes as a date and plist.UID as a UID.
// Types implementing Marshaler or encoding.TextMarshaler encode through
// those interfaces.
func Marshal(v interface{}, format int) ([]byte, error) {
	return MarshalIndent(v, format, "")
}

// MarshalIndent is like Marshal, but indents nested elements with indent.
func MarshalIndent(v interface{}, format int, indent string) ([]byte, error) {
	buf := &bytes.Buffer{}
	opts := []Option{Format(format)}
	if indent != "" {
		opts = append(opts, Indent(indent))
	}
	if err := NewEncoder(buf, opts...).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal parses a property list in any supported format and stores the
// result in the value pointed to by v. It returns the detected format.
func Unmarshal(data []byte, v interface{}) (int, error) {
	dec := NewDecoder(bytes.NewReader(data))
	err := dec.Decode(v)
	return dec.Format, err
}

// MarshalEvents writes the events describing v to c.
func MarshalEvents(v interface{}, c Consumer) error {
	pval, err := marshalValue(reflect.ValueOf(v))
	if err != nil {
		return err
	}
	return CopyEvents(c, NewValueReader(pval))
}

// UnmarshalEvents reads one value's events from p and unmarshals the result
// into the value pointed to by v.
func UnmarshalEvents(p Producer, v interface{}) error {
	b := NewValueBuilder()
	if err := CopyEvents(b, p); err != nil {
		return err
	}
	pval, err := b.Value()
	if err != nil {
		return err
	}
	return unmarshalTree(pval, v, false)
}

// Encode writes the property list encoding of v to the stream.
func (p *Encoder) Encode(v interface{}) error {
	if p.optionErr != nil {
		return p.optionErr
	}
	pval, err := marshalValue(reflect.ValueOf(v))
	if err != nil {
		return err
	}
	return p.EncodeValue(pval)
}

// Decode reads a property list from the stream and unmarshals it into v.
func (p *Decoder) Decode(v interface{}) error {
	pval, err := p.DecodeValue()
	if err != nil {
		return err
	}
	return unmarshalTree(pval, v, p.lax)
}
