package plist

import (
	"bufio"
	"encoding/hex"
	"errors"
	"io"
	"runtime"
	"strings"
	"time"
)

const textPlistTimeLayout = "2006-01-02 15:04:05 -0700"

type byteReader interface {
	io.Reader
	io.ByteScanner
	Peek(n int) ([]byte, error)
	ReadBytes(delim byte) ([]byte, error)
}

// A TextParser reads the old-style OpenStep property list format, including
// the GNUstep extensions for typed scalars. Text property lists do not stream
// well (the format has no length prefixes and needs arbitrary lookahead), so
// the parser produces a whole Value; wrap it in a ValueReader to obtain
// events.
type TextParser struct {
	reader             byteReader
	whitespaceReplacer *strings.Replacer
	format             int
}

func NewTextParser(r io.Reader) *TextParser {
	var reader byteReader
	if rd, ok := r.(byteReader); ok {
		reader = rd
	} else {
		reader = bufio.NewReader(r)
	}
	return &TextParser{
		reader:             reader,
		whitespaceReplacer: strings.NewReplacer("\t", "", "\n", "", " ", "", "\r", ""),
		format:             OpenStepFormat,
	}
}

// Format reports the detected variant, OpenStepFormat or GNUStepFormat. It is
// only meaningful after Parse returns.
func (p *TextParser) Format() int {
	return p.format
}

func (p *TextParser) Parse() (pval Value, parseError error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(runtime.Error); ok {
				panic(r)
			}
			parseError = &ParseError{Format: p.format, Offset: -1, Err: r.(error)}
		}
	}()
	pval = p.parsePlistValue()

	p.chugWhitespace()
	if _, err := p.reader.ReadByte(); err != io.EOF {
		panic(errorf(ErrTrailingData, "text document continues after root value"))
	}
	return
}

func (p *TextParser) chugWhitespace() {
ws:
	for {
		c, err := p.reader.ReadByte()
		if err != nil && err != io.EOF {
			panic(err)
		}
		if err == io.EOF {
			return
		}
		if !whitespace.ContainsByte(c) {
			if c == '/' {
				// A / at the end of the file is not the beginning of a comment.
				cs, err := p.reader.Peek(1)
				if err != nil && err != io.EOF {
					panic(err)
				}
				if err == io.EOF {
					return
				}
				switch cs[0] {
				case '/':
					for {
						c, err = p.reader.ReadByte()
						if err != nil && err != io.EOF {
							panic(err)
						} else if err == io.EOF {
							break
						}
						if c == '\n' || c == '\r' {
							break
						}
					}
				case '*':
					// Peek returned a value here, so it is safe to read.
					_, _ = p.reader.ReadByte()
					star := false
					for {
						c, err = p.reader.ReadByte()
						if err != nil {
							panic(err)
						}
						if c == '*' {
							star = true
						} else if c == '/' && star {
							break
						} else {
							star = false
						}
					}
				default:
					p.reader.UnreadByte() // Not the beginning of a // or /* comment
					break ws
				}
				continue
			}
			p.reader.UnreadByte()
			break
		}
	}
}

func (p *TextParser) parseQuotedString() String {
	escaping := false
	s := ""
	for {
		byt, err := p.reader.ReadByte()
		// EOF here is an error: we're inside a quoted string!
		if err != nil {
			panic(err)
		}
		c := rune(byt)
		if !escaping {
			if c == '"' {
				break
			} else if c == '\\' {
				escaping = true
				continue
			}
		} else {
			escaping = false
			// Everything that is not listed here passes through unharmed.
			switch c {
			case 'a':
				c = '\a'
			case 'b':
				c = '\b'
			case 'v':
				c = '\v'
			case 'f':
				c = '\f'
			case 't':
				c = '\t'
			case 'r':
				c = '\r'
			case 'n':
				c = '\n'
			case 'x', 'u', 'U': // hex and unicode
				l := 4
				if c == 'x' {
					l = 2
				}
				hex := make([]byte, l)
				if _, err := io.ReadFull(p.reader, hex); err != nil {
					panic(err)
				}
				newc := mustParseInt(string(hex), 16, 16)
				c = rune(newc)
			case '0', '1', '2', '3', '4', '5', '6', '7': // octal!
				oct := make([]byte, 3)
				oct[0] = uint8(c)
				if _, err := io.ReadFull(p.reader, oct[1:]); err != nil {
					panic(err)
				}
				newc := mustParseInt(string(oct), 8, 16)
				c = rune(newc)
			}
		}
		s += string(c)
	}
	return String(s)
}

func (p *TextParser) parseUnquotedString() String {
	s := ""
	for {
		c, err := p.reader.ReadByte()
		if err != nil {
			if err == io.EOF {
				break
			}
			panic(err)
		}
		// If we encounter a character that must be quoted, we're done.
		if gsQuotable.ContainsByte(c) {
			p.reader.UnreadByte()
			break
		}
		s += string(c)
	}

	if s == "" {
		panic(errors.New("invalid unquoted string (found an unquoted character that should be quoted?)"))
	}

	return String(s)
}

func (p *TextParser) parseDictionary() *Dictionary {
	dict := &Dictionary{}
	for {
		p.chugWhitespace()

		c, err := p.reader.ReadByte()
		// EOF here is an error: we're inside a dictionary!
		if err != nil {
			panic(err)
		}

		var key String
		if c == '}' {
			break
		} else if c == '"' {
			key = p.parseQuotedString()
		} else {
			p.reader.UnreadByte() // Whoops, ate part of the string
			key = p.parseUnquotedString()
		}

		p.chugWhitespace()
		c, err = p.reader.ReadByte()
		if err != nil {
			panic(err)
		}

		if c != '=' {
			panic(errors.New("missing = in dictionary"))
		}

		// whitespace is guzzled within
		val := p.parsePlistValue()

		p.chugWhitespace()
		c, err = p.reader.ReadByte()
		if err != nil {
			panic(err)
		}

		if c != ';' {
			panic(errors.New("missing ; in dictionary"))
		}

		dict.Set(string(key), val)
	}

	return dict
}

func (p *TextParser) parseArray() *Array {
	values := make([]Value, 0, 32)
	for {
		p.chugWhitespace()

		c, err := p.reader.ReadByte()
		// EOF here is an error: we're inside an array!
		if err != nil {
			panic(err)
		}

		if c == ')' {
			break
		} else if c == ',' {
			continue
		}

		p.reader.UnreadByte()
		pval := p.parsePlistValue()
		if str, ok := pval.(String); ok && string(str) == "" {
			continue
		}
		values = append(values, pval)
	}
	return &Array{Values: values}
}

func (p *TextParser) parseGNUStepValue(v []byte) Value {
	if len(v) < 3 {
		panic(errors.New("invalid GNUstep extended value"))
	}
	typ := v[1]
	v = v[2:]
	switch typ {
	case 'I':
		if v[0] == '-' {
			n := mustParseInt(string(v), 10, 64)
			return Integer{Signed: true, Value: uint64(n)}
		}
		n := mustParseUint(string(v), 10, 64)
		return Integer{Value: n}
	case 'R':
		n := mustParseFloat(string(v), 64)
		return Real{Wide: true, Value: n}
	case 'B':
		return Boolean(v[0] == 'Y')
	case 'D':
		t, err := time.Parse(textPlistTimeLayout, string(v))
		if err != nil {
			panic(err)
		}
		return Date(t.In(time.UTC))
	}
	panic(errors.New("invalid GNUstep type " + string(typ)))
}

func (p *TextParser) parsePlistValue() Value {
	p.chugWhitespace()

	c, err := p.reader.ReadByte()
	if err != nil {
		panic(err)
	}
	switch c {
	case '<':
		bytes, err := p.reader.ReadBytes('>')
		if err != nil {
			panic(err)
		}
		bytes = bytes[:len(bytes)-1]

		if len(bytes) == 0 {
			panic(errors.New("invalid empty angle-bracketed element"))
		}

		if bytes[0] == '*' {
			p.format = GNUStepFormat
			return p.parseGNUStepValue(bytes)
		}

		s := p.whitespaceReplacer.Replace(string(bytes))
		data, err := hex.DecodeString(s)
		if err != nil {
			panic(err)
		}
		return Data(data)
	case '"':
		return p.parseQuotedString()
	case '{':
		return p.parseDictionary()
	case '(':
		return p.parseArray()
	default:
		if gsQuotable.ContainsByte(c) {
			panic(errors.New("unexpected quotable character outside a string"))
		}
		p.reader.UnreadByte() // Place back in buffer for parseUnquotedString
		return p.parseUnquotedString()
	}
}
