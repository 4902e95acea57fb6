package plist

import (
	"errors"
	"io"
)

// A ValueReader is a Producer that walks a Value tree in depth-first order.
// The walk keeps an explicit stack; tree depth never turns into Go stack
// depth.
type ValueReader struct {
	stack []valueReaderItem
	err   error
}

// Exactly one of single, dict and arr is set. single holds a value whose
// events have not begun; dict and arr hold collections mid-iteration.
type valueReaderItem struct {
	single Value
	dict   *Dictionary
	arr    *Array
	index  int
}

func NewValueReader(v Value) *ValueReader {
	return &ValueReader{stack: []valueReaderItem{{single: v}}}
}

func (p *ValueReader) NextEvent() (Event, error) {
	if p.err != nil {
		return Event{}, p.err
	}
	if len(p.stack) == 0 {
		return Event{}, io.EOF
	}

	top := &p.stack[len(p.stack)-1]
	switch {
	case top.single != nil || top.dict == nil && top.arr == nil:
		v := top.single
		p.stack = p.stack[:len(p.stack)-1]
		return p.beginValue(v)
	case top.arr != nil:
		if top.index < len(top.arr.Values) {
			v := top.arr.Values[top.index]
			top.index++
			return p.beginValue(v)
		}
		p.stack = p.stack[:len(p.stack)-1]
		return EndCollection(), nil
	default:
		d := top.dict
		if top.index < d.Len() {
			i := top.index
			top.index++
			// The value's events follow the key event.
			p.stack = append(p.stack, valueReaderItem{single: d.values[i]})
			return Scalar(String(d.keys[i])), nil
		}
		p.stack = p.stack[:len(p.stack)-1]
		return EndCollection(), nil
	}
}

func (p *ValueReader) beginValue(v Value) (Event, error) {
	switch v := v.(type) {
	case nil:
		p.err = errors.New("plist: nil value in tree")
		return Event{}, p.err
	case *Dictionary:
		p.stack = append(p.stack, valueReaderItem{dict: v})
		return StartDictionary(int64(v.Len())), nil
	case *Array:
		p.stack = append(p.stack, valueReaderItem{arr: v})
		return StartArray(int64(len(v.Values))), nil
	default:
		return Scalar(v), nil
	}
}
