package plist

import (
	"bytes"
	"io"
)

// A Decoder reads a property list from an input stream, detecting the
// physical format from its leading bytes.
type Decoder struct {
	// Format is the format of the decoded document. It is valid after
	// DecodeValue or Decode returns successfully.
	Format int

	reader    io.ReadSeeker
	lax       bool
	optionErr error
}

// NewDecoder returns a Decoder reading from r. The input must be seekable:
// format detection reads a few bytes and rewinds.
func NewDecoder(r io.ReadSeeker, opts ...Option) *Decoder {
	p := &Decoder{Format: InvalidFormat, reader: r}
	p.optionErr = applyOptions(p, opts)
	return p
}

func (p *Decoder) unmarshalerSetLax(b bool) (bool, error) {
	p.lax = b
	return true, nil
}

func (p *Decoder) generatorSetIndent(string) (bool, error) {
	return false, nil
}

func (p *Decoder) encoderSetFormat(int) (bool, error) {
	return false, nil
}

// DecodeValue reads the whole document and returns its value tree.
func (p *Decoder) DecodeValue() (Value, error) {
	if p.optionErr != nil {
		return nil, p.optionErr
	}

	producer, err := p.producer()
	if err != nil {
		return nil, err
	}

	builder := NewValueBuilder()
	if err := CopyEvents(builder, producer); err != nil {
		return nil, err
	}
	return builder.Value()
}

// producer sniffs the format and returns an event producer for the document.
// Text property lists do not stream; they are parsed eagerly and replayed.
func (p *Decoder) producer() (Producer, error) {
	header := make([]byte, 7)
	n, err := io.ReadFull(p.reader, header)
	if err != nil && n == 0 {
		return nil, &ParseError{
			Format: InvalidFormat,
			Err:    errorf(ErrTruncatedInput, "document shorter than any property list"),
		}
	}
	header = header[:n]
	if _, err := p.reader.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	switch {
	case bytes.Equal(header, []byte("bplist0")):
		buf, err := io.ReadAll(p.reader)
		if err != nil {
			return nil, err
		}
		p.Format = BinaryFormat
		return NewBinaryParser(buf), nil
	case bytes.ContainsRune(header, '<'):
		p.Format = XMLFormat
		return NewXMLParser(p.reader), nil
	default:
		parser := NewTextParser(p.reader)
		v, err := parser.Parse()
		if err != nil {
			return nil, err
		}
		p.Format = parser.Format()
		return NewValueReader(v), nil
	}
}
