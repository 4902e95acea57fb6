package plist

import (
	"bufio"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"
)

const (
	xmlHEADER     string = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"
	xmlDOCTYPE           = `<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">` + "\n"
	xmlArrayTag          = "array"
	xmlDataTag           = "data"
	xmlDateTag           = "date"
	xmlDictTag           = "dict"
	xmlFalseTag          = "false"
	xmlIntegerTag        = "integer"
	xmlKeyTag            = "key"
	xmlPlistTag          = "plist"
	xmlRealTag           = "real"
	xmlStringTag         = "string"
	xmlTrueTag           = "true"
)

func formatXMLFloat(f float64, bitSize int) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	return strconv.FormatFloat(f, 'g', -1, bitSize)
}

// An XMLGenerator is a Consumer that emits an XML property list, wrapped in
// the customary <plist version="1.0"> document.
type XMLGenerator struct {
	*bufio.Writer

	indent     string
	depth      int
	putNewline bool
	lineLength int

	stack   []xmlGenFrame
	started bool
	done    bool
	err     error
}

type xmlGenFrame struct {
	dict      bool
	expectKey bool
}

func NewXMLGenerator(w io.Writer) *XMLGenerator {
	return &XMLGenerator{Writer: bufio.NewWriter(w)}
}

// Indent enables pretty-printing. i is written once per nesting level; if
// lineLength is greater than zero, base64 data is broken into lines of that
// many characters.
func (p *XMLGenerator) Indent(i string, lineLength int) {
	p.indent = i
	p.lineLength = lineLength
}

func (p *XMLGenerator) WriteEvent(e Event) (outErr error) {
	if p.err != nil {
		return p.err
	}
	if p.done {
		p.err = errors.New("plist: event after document end")
		return p.err
	}

	defer func() {
		if r := recover(); r != nil {
			p.err = r.(error)
			outErr = p.err
		}
	}()

	if !p.started {
		p.started = true
		p.WriteString(xmlHEADER)
		p.WriteString(xmlDOCTYPE)
		p.openTag(`plist version="1.0"`)
	}

	switch e.Kind {
	case EventStartDictionary:
		if err := p.valuePosition(); err != nil {
			return err
		}
		p.openTag(xmlDictTag)
		p.stack = append(p.stack, xmlGenFrame{dict: true, expectKey: true})
	case EventStartArray:
		if err := p.valuePosition(); err != nil {
			return err
		}
		p.openTag(xmlArrayTag)
		p.stack = append(p.stack, xmlGenFrame{})
	case EventEndCollection:
		if len(p.stack) == 0 {
			p.err = errors.New("plist: unbalanced end of collection")
			return p.err
		}
		frame := p.stack[len(p.stack)-1]
		p.stack = p.stack[:len(p.stack)-1]
		if frame.dict {
			if !frame.expectKey {
				p.err = errors.New("plist: dictionary key without value")
				return p.err
			}
			p.closeTag(xmlDictTag)
		} else {
			p.closeTag(xmlArrayTag)
		}
		if len(p.stack) == 0 {
			return p.finish()
		}
	case EventScalar:
		if len(p.stack) > 0 {
			frame := &p.stack[len(p.stack)-1]
			if frame.dict && frame.expectKey {
				key, ok := e.Value.(String)
				if !ok {
					p.err = errors.New("plist: dictionary key must be a string")
					return p.err
				}
				p.element(xmlKeyTag, string(key))
				frame.expectKey = false
				return nil
			}
		}
		if err := p.valuePosition(); err != nil {
			return err
		}
		p.writeScalar(e.Value)
		if len(p.stack) == 0 {
			return p.finish()
		}
	default:
		p.err = fmt.Errorf("plist: unknown event kind %d", e.Kind)
		return p.err
	}
	return nil
}

func (p *XMLGenerator) valuePosition() error {
	if len(p.stack) == 0 {
		return nil
	}
	frame := &p.stack[len(p.stack)-1]
	if frame.dict {
		if frame.expectKey {
			p.err = errors.New("plist: dictionary key must be a string")
			return p.err
		}
		frame.expectKey = true
	}
	return nil
}

func (p *XMLGenerator) writeScalar(v Value) {
	switch v := v.(type) {
	case String:
		p.element(xmlStringTag, string(v))
	case Integer:
		if v.Signed {
			p.element(xmlIntegerTag, strconv.FormatInt(int64(v.Value), 10))
		} else {
			p.element(xmlIntegerTag, strconv.FormatUint(v.Value, 10))
		}
	case Real:
		bitSize := 32
		if v.Wide {
			bitSize = 64
		}
		p.element(xmlRealTag, formatXMLFloat(v.Value, bitSize))
	case Boolean:
		if bool(v) {
			p.element(xmlTrueTag, "")
		} else {
			p.element(xmlFalseTag, "")
		}
	case Data:
		p.element(xmlDataTag, base64.StdEncoding.EncodeToString([]byte(v)))
	case Date:
		p.element(xmlDateTag, time.Time(v).In(time.UTC).Format(time.RFC3339))
	case UID:
		// XML has no UID type; NSKeyedArchiver writes a one-entry
		// dictionary instead.
		p.openTag(xmlDictTag)
		p.element(xmlKeyTag, "CF$UID")
		p.element(xmlIntegerTag, strconv.FormatUint(uint64(v), 10))
		p.closeTag(xmlDictTag)
	default:
		panic(fmt.Errorf("plist: unknown scalar %T", v))
	}
}

func (p *XMLGenerator) finish() error {
	p.done = true
	p.closeTag(xmlPlistTag)
	if len(p.indent) > 0 {
		p.WriteByte('\n')
	}
	p.err = p.Flush()
	return p.err
}

func (p *XMLGenerator) openTag(n string) {
	p.writeIndent(1)
	p.WriteByte('<')
	p.WriteString(n)
	p.WriteByte('>')
}

func (p *XMLGenerator) closeTag(n string) {
	p.writeIndent(-1)
	p.WriteString("</")
	p.WriteString(n)
	p.WriteByte('>')
}

func (p *XMLGenerator) element(n string, v string) {
	if p.lineLength > 0 && n == xmlDataTag {
		p.elementWithLineLength(n, v)
		return
	}
	p.writeIndent(0)
	if len(v) == 0 {
		p.WriteByte('<')
		p.WriteString(n)
		p.WriteString("/>")
	} else {
		p.WriteByte('<')
		p.WriteString(n)
		p.WriteByte('>')

		err := xml.EscapeText(p.Writer, []byte(v))
		if err != nil {
			panic(err)
		}

		p.WriteString("</")
		p.WriteString(n)
		p.WriteByte('>')
	}
}

func (p *XMLGenerator) elementWithLineLength(n string, v string) {
	p.openTag(n)

	var upperBound int
	// shifting the length by -1 avoids an extra empty line when len(v) is
	// an integer multiple of the line length
	for i := 0; i <= (len(v)-1)/p.lineLength; i++ {
		upperBound = (i + 1) * p.lineLength
		if upperBound > len(v) {
			upperBound = len(v)
		}
		p.writeIndent(0)
		p.WriteString(v[i*p.lineLength : upperBound])
	}

	p.closeTag(n)
}

func (p *XMLGenerator) writeIndent(delta int) {
	if len(p.indent) == 0 {
		return
	}

	if delta < 0 {
		p.depth--
	}

	if p.putNewline {
		// from encoding/xml/marshal.go; it seems to be intended
		// to suppress the first newline.
		p.WriteByte('\n')
	} else {
		p.putNewline = true
	}
	for i := 0; i < p.depth; i++ {
		p.WriteString(p.indent)
	}
	if delta > 0 {
		p.depth++
	}
}
