package plist

import (
	"errors"
	"fmt"
)

// Sentinel decode failures. Errors returned by the parsers wrap one of these;
// use errors.Is to classify a failure without inspecting its message.
var (
	// ErrTruncatedInput is reported when the input ends before a complete
	// header, trailer, object or field could be read.
	ErrTruncatedInput = errors.New("truncated input")

	// ErrMalformedHeader is reported when the magic number or version of a
	// binary property list is wrong.
	ErrMalformedHeader = errors.New("malformed header")

	// ErrUnsupportedWidth is reported when a trailer or object declares an
	// integer width outside the set the format permits.
	ErrUnsupportedWidth = errors.New("unsupported integer width")

	// ErrInvalidObjectReference is reported for object indices at or beyond
	// the object count, offsets pointing outside the object table, and
	// objects that (directly or transitively) contain themselves.
	ErrInvalidObjectReference = errors.New("invalid object reference")

	// ErrIntegerOverflow is reported when an encoded integer does not fit
	// the supported integer range. Values are never silently truncated.
	ErrIntegerOverflow = errors.New("integer overflow")

	// ErrTrailingData is reported when bytes remain that are not accounted
	// for by the object table, offset table and trailer.
	ErrTrailingData = errors.New("trailing data")
)

// A ParseError describes a failure to decode a property list. It carries the
// physical format, the byte offset nearest the failure (-1 when the format
// does not expose one), and the underlying cause, which is one of the
// sentinel errors above or a format-specific error.
type ParseError struct {
	Format int
	Offset int64
	Err    error
}

func (e *ParseError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("plist: error parsing %s property list: %v", FormatNames[e.Format], e.Err)
	}
	return fmt.Sprintf("plist: error parsing %s property list at offset 0x%x: %v", FormatNames[e.Format], e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// A TypeMismatchError is returned by the reflection bridge when an event of
// one kind arrives for a destination that expects another. Path names the
// offending field, rooted at "root" (e.g. "root.items[2].count").
type TypeMismatchError struct {
	Path     string
	Expected string
	Found    string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("plist: type mismatch at %s: cannot decode %s into %s", e.Path, e.Found, e.Expected)
}

// errorf produces the wrapped errors the sentinels classify: the sentinel
// stays on the unwrap chain, the detail stays in the message.
func errorf(sentinel error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{sentinel}, args...)...)
}
