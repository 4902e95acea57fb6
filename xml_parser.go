package plist

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"runtime"
	"time"
)

// An XMLParser is a Producer that decodes an XML property list. It streams:
// events are emitted as the underlying tokenizer advances, except for a short
// lookahead at every <dict> to recognize the CF$UID form NSKeyedArchiver uses
// for UIDs, which XML property lists cannot express directly.
type XMLParser struct {
	xmlDecoder *xml.Decoder
	stack      []xmlParserFrame
	pending    []Event

	inPlist     bool // saw the <plist> wrapper
	plistClosed bool
	finished    bool // the root value is complete
	err         error
}

type xmlParserFrame struct {
	dict      bool
	expectKey bool
}

func NewXMLParser(r io.Reader) *XMLParser {
	return &XMLParser{xmlDecoder: xml.NewDecoder(r)}
}

func (p *XMLParser) error(e string, args ...interface{}) {
	panic(fmt.Errorf(e, args...))
}

func (p *XMLParser) unexpected(token xml.Token) {
	p.error("unexpected XML element `%v`", token)
}

func (p *XMLParser) NextEvent() (event Event, outErr error) {
	if p.err != nil {
		return Event{}, p.err
	}

	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(runtime.Error); ok {
				panic(r)
			}
			p.err = &ParseError{Format: XMLFormat, Offset: p.xmlDecoder.InputOffset(), Err: r.(error)}
			event, outErr = Event{}, p.err
		}
	}()

	if len(p.pending) > 0 {
		event = p.pending[0]
		p.pending = p.pending[1:]
		p.noteDelivered(event)
		return event, nil
	}

	if p.finished {
		p.drainEpilogue()
		return Event{}, io.EOF
	}

	for {
		token, err := p.xmlDecoder.Token()
		if err == io.EOF {
			p.error("unexpected end of document")
		}
		if err != nil {
			panic(err)
		}

		switch token := token.(type) {
		case xml.StartElement:
			if token.Name.Local == "plist" && !p.inPlist && len(p.stack) == 0 {
				p.inPlist = true
				continue
			}
			event = p.handleStart(token)
			p.noteDelivered(event)
			return event, nil
		case xml.EndElement:
			if len(p.stack) > 0 {
				frame := p.stack[len(p.stack)-1]
				p.stack = p.stack[:len(p.stack)-1]
				if frame.dict && !frame.expectKey {
					p.error("missing value in dictionary")
				}
				event = EndCollection()
				p.noteDelivered(event)
				return event, nil
			}
			if token.Name.Local == "plist" {
				p.error("empty plist")
			}
			p.unexpected(token)
		case xml.CharData, xml.Comment, xml.ProcInst, xml.Directive:
			continue
		default:
			p.unexpected(token)
		}
	}
}

func (p *XMLParser) noteDelivered(e Event) {
	if len(p.stack) == 0 && (e.Kind == EventScalar || e.Kind == EventEndCollection) {
		p.finished = true
	}
}

// drainEpilogue consumes whatever legally follows the root value: the
// closing </plist> if one was opened, whitespace and comments, then EOF.
func (p *XMLParser) drainEpilogue() {
	for {
		token, err := p.xmlDecoder.Token()
		if err == io.EOF {
			if p.inPlist && !p.plistClosed {
				p.error("unclosed <plist>")
			}
			return
		}
		if err != nil {
			panic(err)
		}
		switch token := token.(type) {
		case xml.EndElement:
			if p.inPlist && !p.plistClosed && token.Name.Local == "plist" {
				p.plistClosed = true
				continue
			}
			p.unexpected(token)
		case xml.CharData, xml.Comment, xml.ProcInst:
			continue
		default:
			p.unexpected(token)
		}
	}
}

// valueDelivered records that the enclosing dictionary (if any) received a
// value where it expected one.
func (p *XMLParser) valueDelivered() {
	if len(p.stack) == 0 {
		return
	}
	frame := &p.stack[len(p.stack)-1]
	if frame.dict {
		if frame.expectKey {
			p.error("missing key in dictionary")
		}
		frame.expectKey = true
	}
}

func (p *XMLParser) handleStart(element xml.StartElement) Event {
	switch element.Name.Local {
	case "key":
		if len(p.stack) == 0 || !p.stack[len(p.stack)-1].dict {
			p.error("<key> outside dictionary")
		}
		frame := &p.stack[len(p.stack)-1]
		if !frame.expectKey {
			p.error("unexpected <key> (expected a value)")
		}
		s := p.getNextString(element)
		frame.expectKey = false
		return Scalar(String(s))
	case "dict":
		p.valueDelivered()
		return p.startDictionary()
	case "array":
		p.valueDelivered()
		p.stack = append(p.stack, xmlParserFrame{})
		return StartArray(-1)
	case "string":
		p.valueDelivered()
		return Scalar(String(p.getNextString(element)))
	case "integer":
		p.valueDelivered()
		return Scalar(p.parseIntegerElement(element))
	case "real":
		p.valueDelivered()
		return Scalar(Real{Wide: true, Value: mustParseFloat(p.mustGetNextString(element), 64)})
	case "true", "false":
		p.valueDelivered()
		b := element.Name.Local == "true"
		p.skip()
		return Scalar(Boolean(b))
	case "date":
		p.valueDelivered()
		return Scalar(p.parseDateElement(element))
	case "data":
		p.valueDelivered()
		return Scalar(p.parseDataElement(element))
	default:
		p.unexpected(element)
	}
	return Event{}
}

// startDictionary looks one entry ahead so that the single-entry form
// <dict><key>CF$UID</key><integer>n</integer></dict> comes out as a UID
// scalar. Everything else is replayed through the pending queue.
func (p *XMLParser) startDictionary() Event {
	p.stack = append(p.stack, xmlParserFrame{dict: true, expectKey: true})
	frame := &p.stack[len(p.stack)-1]

	token := p.nextMeaningful()
	switch token := token.(type) {
	case xml.EndElement:
		p.stack = p.stack[:len(p.stack)-1]
		p.pending = append(p.pending, EndCollection())
		return StartDictionary(0)
	case xml.StartElement:
		if token.Name.Local != "key" {
			p.error("missing key in dictionary")
		}
		key := p.getNextString(token)
		if key != "CF$UID" {
			frame.expectKey = false
			p.pending = append(p.pending, Scalar(String(key)))
			return StartDictionary(-1)
		}

		valueToken := p.nextMeaningful()
		start, ok := valueToken.(xml.StartElement)
		if !ok {
			p.error("missing value in dictionary")
		}
		if start.Name.Local != "integer" {
			// A CF$UID key with a non-integer value is an ordinary
			// dictionary after all. handleStart may queue events of its
			// own, which belong after the value's opening event.
			frame.expectKey = false
			p.pending = append(p.pending, Scalar(String(key)))
			mark := len(p.pending)
			valueEvent := p.handleStart(start)
			p.pending = append(p.pending, Event{})
			copy(p.pending[mark+1:], p.pending[mark:])
			p.pending[mark] = valueEvent
			return StartDictionary(-1)
		}

		uid := p.parseIntegerElement(start)
		switch after := p.nextMeaningful().(type) {
		case xml.EndElement:
			p.stack = p.stack[:len(p.stack)-1]
			return Scalar(UID(uid.Value))
		case xml.StartElement:
			if after.Name.Local != "key" {
				p.error("missing key in dictionary")
			}
			next := p.getNextString(after)
			frame.expectKey = false
			p.pending = append(p.pending,
				Scalar(String(key)), Scalar(uid), Scalar(String(next)))
			return StartDictionary(-1)
		default:
			p.unexpected(after)
		}
	default:
		p.unexpected(token)
	}
	return Event{}
}

func (p *XMLParser) next() xml.Token {
	token, err := p.xmlDecoder.Token()
	if err != nil {
		panic(err)
	}
	return token
}

func (p *XMLParser) nextMeaningful() xml.Token {
	for {
		switch token := p.next().(type) {
		case xml.CharData, xml.Comment:
			continue
		default:
			return token
		}
	}
}

func (p *XMLParser) skip() {
	if err := p.xmlDecoder.Skip(); err != nil {
		panic(err)
	}
}

// opening tag has been consumed
func (p *XMLParser) getNextString(element xml.StartElement) string {
	var s string
outer:
	for {
		token := p.next()
		switch token := token.(type) {
		case xml.EndElement:
			break outer
		case xml.CharData:
			s += string(token)
		case xml.Comment:
			continue outer
		default:
			p.unexpected(token)
		}
	}
	return s
}

func (p *XMLParser) mustGetNextString(element xml.StartElement) string {
	s := trimSpace(p.getNextString(element))
	if len(s) == 0 {
		p.error("empty <%s>", element.Name.Local)
	}
	return s
}

func (p *XMLParser) parseIntegerElement(element xml.StartElement) Integer {
	s := p.mustGetNextString(element)

	if s[0] == '-' {
		s, base := unsignedGetBase(s[1:])
		if s == "" {
			p.error("empty <integer>")
		}
		n := mustParseInt("-"+s, base, 64)
		return Integer{Signed: true, Value: uint64(n)}
	}

	s, base := unsignedGetBase(s)
	if s == "" {
		p.error("empty <integer>")
	}
	return Integer{Value: mustParseUint(s, base, 64)}
}

func (p *XMLParser) parseDateElement(element xml.StartElement) Date {
	s := p.mustGetNextString(element)

	t, err := time.ParseInLocation(time.RFC3339, s, time.UTC)
	if err != nil {
		panic(err)
	}
	return Date(t)
}

func (p *XMLParser) parseDataElement(element xml.StartElement) Data {
	s := []byte(p.getNextString(element))

	offset := 0
	for i, v := range s {
		if v != ' ' && v != '\t' && v != '\n' && v != '\r' {
			if offset != i {
				s[offset] = s[i]
			}
			offset++
		}
	}
	s = s[:offset]

	data := make([]byte, base64.StdEncoding.DecodedLen(offset))
	l, err := base64.StdEncoding.Decode(data, s)
	if err != nil {
		panic(err)
	}
	return Data(data[:l])
}

func unsignedGetBase(s string) (string, int) {
	if len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:], 16
	}
	return s, 10
}

func trimSpace(s string) string {
	b, e := 0, len(s)
	for ; b < e; b++ {
		if !whitespace.ContainsByte(s[b]) {
			break
		}
	}
	for ; e > b; e-- {
		if !whitespace.ContainsByte(s[e-1]) {
			break
		}
	}
	return s[b:e]
}
