package plist

import (
	"fmt"
	"io"
)

// An Encoder writes property lists to an output stream. The zero format is
// XML; use Format or NewEncoderForFormat for binary output.
type Encoder struct {
	writer    io.Writer
	format    int
	indent    string
	optionErr error
}

// NewEncoder returns an Encoder that writes an XML property list to w.
func NewEncoder(w io.Writer, opts ...Option) *Encoder {
	p := &Encoder{writer: w, format: XMLFormat}
	p.optionErr = applyOptions(p, opts)
	return p
}

// NewEncoderForFormat returns an Encoder that writes the given format to w.
func NewEncoderForFormat(w io.Writer, format int, opts ...Option) *Encoder {
	return NewEncoder(w, append([]Option{Format(format)}, opts...)...)
}

func (p *Encoder) unmarshalerSetLax(bool) (bool, error) {
	return false, nil
}

func (p *Encoder) generatorSetIndent(i string) (bool, error) {
	p.indent = i
	return true, nil
}

func (p *Encoder) encoderSetFormat(f int) (bool, error) {
	switch f {
	case AutomaticFormat:
		p.format = XMLFormat
	case XMLFormat, BinaryFormat:
		p.format = f
	default:
		return false, fmt.Errorf("plist: cannot encode the %s format", FormatNames[f])
	}
	return true, nil
}

// EncodeValue writes the property list encoding of the value tree v.
func (p *Encoder) EncodeValue(v Value) error {
	if p.optionErr != nil {
		return p.optionErr
	}
	return CopyEvents(p.consumer(), NewValueReader(v))
}

func (p *Encoder) consumer() Consumer {
	if p.format == BinaryFormat {
		return NewBinaryGenerator(p.writer)
	}
	g := NewXMLGenerator(p.writer)
	if p.indent != "" {
		g.Indent(p.indent, 0)
	}
	return g
}
