package plist

import (
	"sort"
	"time"
)

// Value is one property-list value: a dictionary, an array, or one of the
// seven scalar kinds. The set of implementations is closed.
type Value interface {
	TypeName() string

	value() // seals the union
}

// A Dictionary is an ordered mapping from unique string keys to Values.
// Iteration order is insertion order.
type Dictionary struct {
	keys   []string
	values []Value
}

func (*Dictionary) TypeName() string { return "dictionary" }
func (*Dictionary) value()           {}

func (p *Dictionary) Len() int {
	return len(p.keys)
}

// Get returns the value stored under key, if any.
func (p *Dictionary) Get(key string) (Value, bool) {
	for i, k := range p.keys {
		if k == key {
			return p.values[i], true
		}
	}
	return nil, false
}

// Set stores value under key, replacing any value already stored there.
// New keys are appended in insertion order.
func (p *Dictionary) Set(key string, value Value) *Dictionary {
	for i, k := range p.keys {
		if k == key {
			p.values[i] = value
			return p
		}
	}
	p.keys = append(p.keys, key)
	p.values = append(p.values, value)
	return p
}

// Keys returns the dictionary's keys in insertion order. The slice is shared;
// callers must not modify it.
func (p *Dictionary) Keys() []string {
	return p.keys
}

func (p *Dictionary) Range(r func(int, string, Value)) {
	for i, k := range p.keys {
		r(i, k, p.values[i])
	}
}

// sortKeys reorders the dictionary into lexical key order. The XML and text
// formats traditionally emit sorted dictionaries; the binary format does not
// care.
func (p *Dictionary) sortKeys() {
	sort.Sort(p)
}

func (p *Dictionary) Less(i, j int) bool { return p.keys[i] < p.keys[j] }
func (p *Dictionary) Swap(i, j int) {
	p.keys[i], p.keys[j] = p.keys[j], p.keys[i]
	p.values[i], p.values[j] = p.values[j], p.values[i]
}

// An Array is an ordered sequence of Values.
type Array struct {
	Values []Value
}

func (*Array) TypeName() string { return "array" }
func (*Array) value()           {}

func (p *Array) Range(r func(int, Value)) {
	for i, v := range p.Values {
		r(i, v)
	}
}

type String string

func (String) TypeName() string { return "string" }
func (String) value()           {}

// An Integer holds a signedness flag and a 64-bit magnitude: the binary
// format stores negative values sign-extended, so the full uint64 range and
// the full int64 range are both representable.
type Integer struct {
	Signed bool
	Value  uint64
}

func (Integer) TypeName() string { return "integer" }
func (Integer) value()           {}

// Int returns the integer as an int64 and whether it fits.
func (p Integer) Int() (int64, bool) {
	if p.Signed {
		return int64(p.Value), true
	}
	return int64(p.Value), p.Value < 1<<63
}

func integerFromInt(v int64) Integer {
	if v < 0 {
		return Integer{Signed: true, Value: uint64(v)}
	}
	return Integer{Value: uint64(v)}
}

// A Real is a floating-point value. Wide records whether it carries more
// precision than a float32, which controls its width on binary encode.
type Real struct {
	Wide  bool
	Value float64
}

func (Real) TypeName() string { return "real" }
func (Real) value()           {}

type Boolean bool

func (Boolean) TypeName() string { return "boolean" }
func (Boolean) value()           {}

type Data []byte

func (Data) TypeName() string { return "data" }
func (Data) value()           {}

type Date time.Time

func (Date) TypeName() string { return "date" }
func (Date) value()           {}

func (p Date) Time() time.Time { return time.Time(p) }

// A UID is a reference-style integer as used by NSKeyedArchiver. It is a
// distinct kind: it never compares equal to an Integer.
type UID uint64

func (UID) TypeName() string { return "UID" }
func (UID) value()           {}

// toDict returns the CF$UID dictionary representation used by the XML format,
// which has no native UID element.
func (p UID) toDict() *Dictionary {
	return (&Dictionary{}).Set("CF$UID", Integer{Value: uint64(p)})
}
