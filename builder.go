package plist

import (
	"errors"
	"fmt"
)

// sizeHintClamp bounds the preallocation a consumer performs on behalf of a
// size hint. Hints are advisory and may lie; memory is committed only as
// events actually arrive.
const sizeHintClamp = 4096

func clampSizeHint(n int64) int {
	if n < 0 {
		return 0
	}
	if n > sizeHintClamp {
		return sizeHintClamp
	}
	return int(n)
}

// A ValueBuilder is a Consumer that materializes the event stream into a
// Value tree. It accepts every well-nested event sequence.
type ValueBuilder struct {
	stack []builderFrame
	root  Value
	done  bool
	err   error
}

type builderFrame struct {
	dict   *Dictionary
	arr    *Array
	key    string
	hasKey bool
}

func NewValueBuilder() *ValueBuilder {
	return &ValueBuilder{}
}

func (p *ValueBuilder) WriteEvent(event Event) error {
	if p.err != nil {
		return p.err
	}
	if p.done {
		p.err = errors.New("plist: event after end of document")
		return p.err
	}

	switch event.Kind {
	case EventStartArray:
		p.stack = append(p.stack, builderFrame{
			arr: &Array{Values: make([]Value, 0, clampSizeHint(event.Len))},
		})
	case EventStartDictionary:
		n := clampSizeHint(event.Len)
		p.stack = append(p.stack, builderFrame{
			dict: &Dictionary{keys: make([]string, 0, n), values: make([]Value, 0, n)},
		})
	case EventEndCollection:
		if len(p.stack) == 0 {
			p.err = errors.New("plist: unbalanced end of collection")
			return p.err
		}
		frame := p.stack[len(p.stack)-1]
		p.stack = p.stack[:len(p.stack)-1]
		if frame.hasKey {
			p.err = errors.New("plist: dictionary key without value")
			return p.err
		}
		if frame.dict != nil {
			p.place(frame.dict)
		} else {
			p.place(frame.arr)
		}
	case EventScalar:
		if event.Value == nil {
			p.err = errors.New("plist: scalar event without a value")
			return p.err
		}
		p.place(event.Value)
	default:
		p.err = fmt.Errorf("plist: unknown event kind %d", event.Kind)
		return p.err
	}
	return p.err
}

func (p *ValueBuilder) place(v Value) {
	if len(p.stack) == 0 {
		p.root = v
		p.done = true
		return
	}

	frame := &p.stack[len(p.stack)-1]
	if frame.arr != nil {
		frame.arr.Values = append(frame.arr.Values, v)
		return
	}

	if !frame.hasKey {
		key, ok := v.(String)
		if !ok {
			p.err = fmt.Errorf("plist: dictionary key must be a string, not %s", v.TypeName())
			return
		}
		frame.key = string(key)
		frame.hasKey = true
		return
	}

	frame.dict.Set(frame.key, v)
	frame.hasKey = false
}

// Value returns the finished tree. It fails if the stream ended early or any
// event was rejected.
func (p *ValueBuilder) Value() (Value, error) {
	if p.err != nil {
		return nil, p.err
	}
	if !p.done {
		return nil, errors.New("plist: incomplete event stream")
	}
	return p.root, nil
}
