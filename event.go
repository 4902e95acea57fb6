package plist

import (
	"fmt"
	"io"
)

// An EventKind discriminates the tokens of the format-neutral event stream.
type EventKind uint8

const (
	EventInvalid EventKind = iota
	EventStartArray
	EventStartDictionary
	EventEndCollection
	EventScalar
)

var eventKindNames = map[EventKind]string{
	EventInvalid:         "invalid",
	EventStartArray:      "StartArray",
	EventStartDictionary: "StartDictionary",
	EventEndCollection:   "EndCollection",
	EventScalar:          "scalar",
}

// An Event is one token in the uniform stream shared by every physical
// format. A well-formed stream describes exactly one value in depth-first
// order: every StartArray/StartDictionary is matched by one EndCollection,
// and dictionary entries alternate a string scalar (the key) with one value.
type Event struct {
	Kind EventKind

	// Len is the advisory element count for EventStartArray (elements) and
	// EventStartDictionary (key/value pairs), or -1 when unknown. It exists
	// for preallocation only; consumers must detect the real end of a
	// collection from EndCollection, never from Len.
	Len int64

	// Value carries the payload of an EventScalar. It is always a leaf kind,
	// never *Dictionary or *Array.
	Value Value
}

func StartArray(n int64) Event      { return Event{Kind: EventStartArray, Len: n} }
func StartDictionary(n int64) Event { return Event{Kind: EventStartDictionary, Len: n} }
func EndCollection() Event          { return Event{Kind: EventEndCollection} }
func Scalar(v Value) Event          { return Event{Kind: EventScalar, Value: v} }

// name describes the event for error messages: the kind for structural
// events, the scalar's type name otherwise.
func (e Event) name() string {
	if e.Kind == EventScalar {
		if e.Value == nil {
			return "scalar(nil)"
		}
		return e.Value.TypeName()
	}
	return eventKindNames[e.Kind]
}

func (e Event) String() string {
	switch e.Kind {
	case EventStartArray, EventStartDictionary:
		if e.Len < 0 {
			return eventKindNames[e.Kind]
		}
		return fmt.Sprintf("%s(%d)", eventKindNames[e.Kind], e.Len)
	case EventScalar:
		return fmt.Sprintf("%s(%v)", e.name(), e.Value)
	}
	return eventKindNames[e.Kind]
}

// A Producer emits the event sequence for exactly one value. NextEvent
// returns io.EOF after the final event. Any other error poisons the stream:
// every subsequent call returns the same error, and a consumer must discard
// all state built from earlier events.
type Producer interface {
	NextEvent() (Event, error)
}

// A Consumer accepts the event sequence for exactly one value, in producer
// order. A Consumer that returns an error is poisoned in the same way a
// failed Producer is.
type Consumer interface {
	WriteEvent(Event) error
}

// CopyEvents drains src into dst, stopping at the first error from either
// side. It is the pump connecting any format reader to any format writer or
// value builder without an intermediate tree.
func CopyEvents(dst Consumer, src Producer) error {
	for {
		event, err := src.NextEvent()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := dst.WriteEvent(event); err != nil {
			return err
		}
	}
}
