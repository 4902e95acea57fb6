package plist

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
	"unicode/utf16"

	"github.com/cespare/xxhash/v2"
)

// A BinaryGenerator is a Consumer that encodes the event stream as a
// bplist00 document. Objects are assigned indices in first-seen order, with
// structurally equal leaves interned to a single index; the encoded document
// is written out in one piece when the top object completes.
type BinaryGenerator struct {
	writer  io.Writer
	objects []bplistGenObject
	intern  map[uint64][]uint64 // xxhash64 of a leaf's encoding -> indices
	stack   []bplistGenFrame
	done    bool
	err     error
}

// A generator object is either an encoded leaf or a collection of child
// indices (interleaved key, value for dictionaries).
type bplistGenObject struct {
	leaf []byte
	dict bool
	refs []uint64
}

type bplistGenFrame struct {
	index uint64
}

func NewBinaryGenerator(w io.Writer) *BinaryGenerator {
	return &BinaryGenerator{
		writer: w,
		intern: make(map[uint64][]uint64),
	}
}

func (p *BinaryGenerator) WriteEvent(event Event) error {
	if p.err != nil {
		return p.err
	}
	if p.done {
		p.err = errors.New("plist: event after end of document")
		return p.err
	}

	switch event.Kind {
	case EventStartArray, EventStartDictionary:
		idx, err := p.addObject(bplistGenObject{dict: event.Kind == EventStartDictionary})
		if err != nil {
			p.err = err
			return p.err
		}
		p.stack = append(p.stack, bplistGenFrame{index: idx})
	case EventEndCollection:
		if len(p.stack) == 0 {
			p.err = errors.New("plist: unbalanced end of collection")
			return p.err
		}
		frame := p.stack[len(p.stack)-1]
		p.stack = p.stack[:len(p.stack)-1]
		obj := &p.objects[frame.index]
		if obj.dict && len(obj.refs)%2 != 0 {
			p.err = errors.New("plist: dictionary key without value")
			return p.err
		}
		if len(p.stack) == 0 {
			p.done = true
			p.err = p.flush()
			return p.err
		}
	case EventScalar:
		if event.Value == nil {
			p.err = errors.New("plist: scalar event without a value")
			return p.err
		}
		leaf, err := encodeBplistLeaf(event.Value)
		if err != nil {
			p.err = err
			return p.err
		}
		idx := p.internLeaf(leaf)
		if err := p.place(idx, event.Value); err != nil {
			p.err = err
			return p.err
		}
		if len(p.stack) == 0 {
			p.done = true
			p.err = p.flush()
			return p.err
		}
	default:
		p.err = fmt.Errorf("plist: unknown event kind %d", event.Kind)
		return p.err
	}
	return nil
}

// addObject appends a fresh object and attaches it to the open collection.
func (p *BinaryGenerator) addObject(obj bplistGenObject) (uint64, error) {
	idx := uint64(len(p.objects))
	p.objects = append(p.objects, obj)
	if len(p.stack) == 0 {
		if idx != 0 {
			return 0, errors.New("plist: more than one root value")
		}
		return idx, nil
	}

	parent := &p.objects[p.stack[len(p.stack)-1].index]
	if parent.dict && len(parent.refs)%2 == 0 {
		return 0, errors.New("plist: dictionary key must be a string, not a collection")
	}
	parent.refs = append(parent.refs, idx)
	return idx, nil
}

// internLeaf reuses the index of an identically encoded leaf if one exists.
func (p *BinaryGenerator) internLeaf(leaf []byte) uint64 {
	h := xxhash.Sum64(leaf)
	for _, cand := range p.intern[h] {
		if bytes.Equal(p.objects[cand].leaf, leaf) {
			return cand
		}
	}
	idx := uint64(len(p.objects))
	p.objects = append(p.objects, bplistGenObject{leaf: leaf})
	p.intern[h] = append(p.intern[h], idx)
	return idx
}

func (p *BinaryGenerator) place(idx uint64, v Value) error {
	if len(p.stack) == 0 {
		if idx != 0 {
			return errors.New("plist: more than one root value")
		}
		return nil
	}

	parent := &p.objects[p.stack[len(p.stack)-1].index]
	if parent.dict && len(parent.refs)%2 == 0 {
		if _, ok := v.(String); !ok {
			return fmt.Errorf("plist: dictionary key must be a string, not %s", v.TypeName())
		}
	}
	parent.refs = append(parent.refs, idx)
	return nil
}

// flush serializes the object graph: every object in index order, then the
// offset table, then the trailer, using the smallest structural widths that
// can address the result.
func (p *BinaryGenerator) flush() error {
	numObjects := uint64(len(p.objects))
	refSize := minimumSizedIntWidth(numObjects)

	offsets := make([]uint64, numObjects)
	pos := uint64(bplistHeaderLen)
	for i, obj := range p.objects {
		offsets[i] = pos
		if obj.leaf != nil {
			pos += uint64(len(obj.leaf))
		} else {
			cnt := uint64(len(obj.refs))
			if obj.dict {
				cnt /= 2
			}
			var tag uint8 = bpTagArray
			if obj.dict {
				tag = bpTagDictionary
			}
			pos += uint64(len(countedBplistTag(tag, cnt))) + uint64(len(obj.refs))*uint64(refSize)
		}
	}

	tableOff := pos
	offsetSize := minimumSizedIntWidth(tableOff + 1)

	var buf bytes.Buffer
	buf.Grow(int(tableOff) + int(numObjects)*int(offsetSize) + bplistTrailerLen)
	buf.WriteString("bplist00")

	for _, obj := range p.objects {
		if obj.leaf != nil {
			buf.Write(obj.leaf)
			continue
		}
		cnt := uint64(len(obj.refs))
		if obj.dict {
			cnt /= 2
			buf.Write(countedBplistTag(bpTagDictionary, cnt))
			// Keys first, then values: the refs are stored interleaved.
			for i := uint64(0); i < cnt; i++ {
				writeSizedInt(&buf, obj.refs[i*2], refSize)
			}
			for i := uint64(0); i < cnt; i++ {
				writeSizedInt(&buf, obj.refs[i*2+1], refSize)
			}
			continue
		}
		buf.Write(countedBplistTag(bpTagArray, cnt))
		for _, ref := range obj.refs {
			writeSizedInt(&buf, ref, refSize)
		}
	}

	for _, off := range offsets {
		writeSizedInt(&buf, off, offsetSize)
	}

	trailer := [bplistTrailerLen]byte{6: offsetSize, 7: refSize}
	binary.BigEndian.PutUint64(trailer[8:], numObjects)
	binary.BigEndian.PutUint64(trailer[16:], 0) // the root is always object 0
	binary.BigEndian.PutUint64(trailer[24:], tableOff)
	buf.Write(trailer[:])

	_, err := p.writer.Write(buf.Bytes())
	return err
}

// minimumSizedIntWidth returns the narrowest of the widths this encoder
// emits (1, 2, 4 or 8 bytes) able to represent max.
func minimumSizedIntWidth(max uint64) uint8 {
	switch {
	case max <= 1<<8:
		return 1
	case max <= 1<<16:
		return 2
	case max <= 1<<32:
		return 4
	}
	return 8
}

func writeSizedInt(buf *bytes.Buffer, v uint64, nbytes uint8) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[8-nbytes:])
}

// countedBplistTag encodes a tag byte under the general size rule: counts
// below 15 are stored in the low nibble, larger ones as a following integer
// object.
func countedBplistTag(tag uint8, cnt uint64) []byte {
	if cnt < 0xF {
		return []byte{tag | uint8(cnt)}
	}
	return append([]byte{tag | 0x0F}, encodeBplistInteger(Integer{Value: cnt})...)
}

func encodeBplistInteger(v Integer) []byte {
	if v.Signed && int64(v.Value) < 0 {
		// Negative values are stored sign-extended to eight bytes.
		var b [9]byte
		b[0] = bpTagInteger | 0x3
		binary.BigEndian.PutUint64(b[1:], v.Value)
		return b[:]
	}
	switch {
	case v.Value < 1<<8:
		return []byte{bpTagInteger, byte(v.Value)}
	case v.Value < 1<<16:
		b := []byte{bpTagInteger | 0x1, 0, 0}
		binary.BigEndian.PutUint16(b[1:], uint16(v.Value))
		return b
	case v.Value < 1<<32:
		b := []byte{bpTagInteger | 0x2, 0, 0, 0, 0}
		binary.BigEndian.PutUint32(b[1:], uint32(v.Value))
		return b
	case v.Value < 1<<63:
		var b [9]byte
		b[0] = bpTagInteger | 0x3
		binary.BigEndian.PutUint64(b[1:], v.Value)
		return b[:]
	}
	// Unsigned values above the int64 range take the 16-byte form, which
	// eight-byte (signed) integers cannot carry.
	var b [17]byte
	b[0] = bpTagInteger | 0x4
	binary.BigEndian.PutUint64(b[9:], v.Value)
	return b[:]
}

func encodeBplistLeaf(v Value) ([]byte, error) {
	switch v := v.(type) {
	case Boolean:
		if v {
			return []byte{bpTagBoolTrue}, nil
		}
		return []byte{bpTagBoolFalse}, nil
	case Integer:
		// Builds without 16-byte integer support refuse to write what
		// they could not read back.
		if !wideIntegersEnabled && !v.Signed && v.Value > math.MaxInt64 {
			return nil, errorf(ErrIntegerOverflow, "unsigned value %d needs a 16-byte integer", v.Value)
		}
		return encodeBplistInteger(v), nil
	case Real:
		if v.Wide {
			var b [9]byte
			b[0] = bpTagReal | 0x3
			binary.BigEndian.PutUint64(b[1:], math.Float64bits(v.Value))
			return b[:], nil
		}
		var b [5]byte
		b[0] = bpTagReal | 0x2
		binary.BigEndian.PutUint32(b[1:], math.Float32bits(float32(v.Value)))
		return b[:], nil
	case Date:
		t := time.Time(v)
		secs := float64(t.Unix()-bplistEpochDelta) + float64(t.Nanosecond())/float64(time.Second)
		var b [9]byte
		b[0] = bpTagDate | 0x3
		binary.BigEndian.PutUint64(b[1:], math.Float64bits(secs))
		return b[:], nil
	case Data:
		return append(countedBplistTag(bpTagData, uint64(len(v))), v...), nil
	case String:
		ascii := true
		for i := 0; i < len(v); i++ {
			if v[i] >= 0x80 {
				ascii = false
				break
			}
		}
		if ascii {
			return append(countedBplistTag(bpTagASCIIString, uint64(len(v))), v...), nil
		}
		units := utf16.Encode([]rune(string(v)))
		b := countedBplistTag(bpTagUTF16String, uint64(len(units)))
		for _, u := range units {
			b = append(b, byte(u>>8), byte(u))
		}
		return b, nil
	case UID:
		var nbytes uint8 = 8
		switch {
		case uint64(v) < 1<<8:
			nbytes = 1
		case uint64(v) < 1<<16:
			nbytes = 2
		case uint64(v) < 1<<32:
			nbytes = 4
		}
		b := []byte{bpTagUID | (nbytes - 1)}
		for i := int(nbytes) - 1; i >= 0; i-- {
			b = append(b, byte(uint64(v)>>(8*uint(i))))
		}
		return b, nil
	}
	return nil, fmt.Errorf("plist: cannot encode %s in a binary property list", v.TypeName())
}
