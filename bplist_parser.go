package plist

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"runtime"
	"time"
	"unicode/utf16"
)

// A BinaryParser is a Producer that decodes a complete bplist00 buffer. The
// format is not forward-streamable: the structural widths and the root index
// live in a trailer at the end of the buffer, so the whole input must be in
// memory before the first event.
type BinaryParser struct {
	buf      []byte
	trailer  bplistTrailer
	offtable []uint64

	stack    []bplistStackItem
	inflight map[uint64]bool // collection indices currently being resolved

	started bool
	lastOff uint64
	err     error
}

// Each stack item is one partially emitted collection (or the virtual root).
// refs holds the child object indices in emission order; for dictionaries
// they are interleaved key, value, key, value.
type bplistStackItem struct {
	ref  uint64
	refs []uint64
	next int
	dict bool
	root bool
}

func NewBinaryParser(data []byte) *BinaryParser {
	return &BinaryParser{buf: data}
}

// NextEvent returns the next event of the top object's depth-first walk, or
// io.EOF once the object is complete. The first decode error poisons the
// parser.
func (p *BinaryParser) NextEvent() (event Event, outErr error) {
	if p.err != nil {
		return Event{}, p.err
	}

	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(runtime.Error); ok {
				panic(r)
			}
			p.err = &ParseError{Format: BinaryFormat, Offset: int64(p.lastOff), Err: r.(error)}
			event, outErr = Event{}, p.err
		}
	}()

	if !p.started {
		p.open()
		p.started = true
	}

	for {
		if len(p.stack) == 0 {
			return Event{}, io.EOF
		}

		top := &p.stack[len(p.stack)-1]
		if top.next < len(top.refs) {
			ref := top.refs[top.next]
			needKey := top.dict && top.next%2 == 0
			top.next++
			return p.parseObjectRef(ref, needKey), nil
		}

		item := p.stack[len(p.stack)-1]
		p.stack = p.stack[:len(p.stack)-1]
		delete(p.inflight, item.ref)
		if !item.root {
			return EndCollection(), nil
		}
		// The top object is complete; the next call reports io.EOF.
	}
}

// open validates the header and trailer and loads the offset table. The
// check order is deliberate: a structurally sound file with bytes appended
// shifts the trailer window, and the offset-table extent check is the only
// one that reliably identifies that case as trailing data rather than as a
// garbled-trailer artifact.
func (p *BinaryParser) open() {
	p.lastOff = 0
	if len(p.buf) < bplistMinimumLen {
		panic(errorf(ErrTruncatedInput, "%d bytes is too short for a binary property list", len(p.buf)))
	}
	if string(p.buf[0:6]) != "bplist" {
		panic(errorf(ErrMalformedHeader, "mismatched magic"))
	}
	v0, v1 := p.buf[6], p.buf[7]
	if v0 != '0' || v1 < '0' || v1 > '1' {
		panic(errorf(ErrMalformedHeader, "unsupported version %c%c", v0, v1))
	}

	trailerOff := uint64(len(p.buf) - bplistTrailerLen)
	p.lastOff = trailerOff
	t := &p.trailer
	copy(t.Unused[:], p.buf[trailerOff:])
	t.SortVersion = p.buf[trailerOff+5]
	t.OffsetIntSize = p.buf[trailerOff+6]
	t.ObjectRefSize = p.buf[trailerOff+7]
	t.NumObjects = binary.BigEndian.Uint64(p.buf[trailerOff+8:])
	t.TopObject = binary.BigEndian.Uint64(p.buf[trailerOff+16:])
	t.OffsetTableOffset = binary.BigEndian.Uint64(p.buf[trailerOff+24:])

	if !validSizedIntWidth(t.OffsetIntSize) {
		panic(errorf(ErrUnsupportedWidth, "illegal offset size %d", t.OffsetIntSize))
	}

	// The offset table must run exactly from OffsetTableOffset to the
	// trailer; any slack is unaccounted-for input.
	if t.OffsetTableOffset >= trailerOff {
		panic(errorf(ErrTrailingData, "offset table at 0x%x overlaps trailer at 0x%x", t.OffsetTableOffset, trailerOff))
	}
	tableLen := trailerOff - t.OffsetTableOffset
	if tableLen%uint64(t.OffsetIntSize) != 0 || tableLen/uint64(t.OffsetIntSize) != t.NumObjects {
		panic(errorf(ErrTrailingData, "%d bytes between offset table and trailer not covered by %d objects", tableLen, t.NumObjects))
	}

	if !validSizedIntWidth(t.ObjectRefSize) {
		panic(errorf(ErrUnsupportedWidth, "illegal object reference size %d", t.ObjectRefSize))
	}
	if t.OffsetTableOffset < bplistHeaderLen {
		panic(errorf(ErrInvalidObjectReference, "offset table begins inside header"))
	}
	if t.ObjectRefSize < 8 && t.NumObjects > uint64(1)<<(8*t.ObjectRefSize) {
		panic(errorf(ErrInvalidObjectReference, "%d objects is more than the object reference size (%d bytes) can address", t.NumObjects, t.ObjectRefSize))
	}
	if t.TopObject >= t.NumObjects {
		panic(errorf(ErrInvalidObjectReference, "top object index %d out of range (%d objects)", t.TopObject, t.NumObjects))
	}

	p.offtable = make([]uint64, t.NumObjects)
	pos := t.OffsetTableOffset
	for i := uint64(0); i < t.NumObjects; i++ {
		off, _, next := p.sizedInt(pos, int(t.OffsetIntSize), trailerOff)
		if off < bplistHeaderLen || off >= t.OffsetTableOffset {
			p.lastOff = pos
			panic(errorf(ErrInvalidObjectReference, "object %d starts at 0x%x, outside the object table", i, off))
		}
		p.offtable[i] = off
		pos = next
	}

	p.inflight = make(map[uint64]bool)
	p.stack = []bplistStackItem{{root: true, refs: []uint64{t.TopObject}}}
}

// bytesAt bounds-checks and returns n bytes of the object region starting at
// off. limit is the end of the readable region.
func (p *BinaryParser) bytesAt(off, n, limit uint64) []byte {
	if n > limit || off > limit-n {
		panic(errorf(ErrTruncatedInput, "%d bytes at 0x%x extend past 0x%x", n, off, limit))
	}
	return p.buf[off : off+n]
}

// sizedInt reads an unsigned big-endian integer of 1, 2, 3, 4, 8 or 16
// bytes, returned as (low, high) halves along with the following offset.
func (p *BinaryParser) sizedInt(off uint64, nbytes int, limit uint64) (lo uint64, hi uint64, next uint64) {
	b := p.bytesAt(off, uint64(nbytes), limit)
	next = off + uint64(nbytes)
	switch nbytes {
	case 1:
		return uint64(b[0]), 0, next
	case 2:
		return uint64(binary.BigEndian.Uint16(b)), 0, next
	case 3:
		return uint64(b[0])<<16 | uint64(b[1])<<8 | uint64(b[2]), 0, next
	case 4:
		return uint64(binary.BigEndian.Uint32(b)), 0, next
	case 8:
		return binary.BigEndian.Uint64(b), 0, next
	case 16:
		return binary.BigEndian.Uint64(b[8:]), binary.BigEndian.Uint64(b), next
	}
	panic(errorf(ErrUnsupportedWidth, "illegal integer size %d", nbytes))
}

// countForTag resolves the general size rule: a low nibble below 15 is a
// literal count; 15 means an encoded integer object follows.
func (p *BinaryParser) countForTag(tag uint8, off uint64) (cnt uint64, next uint64) {
	cnt = uint64(tag & 0x0F)
	next = off
	if cnt != 0xF {
		return cnt, next
	}

	intTag := p.bytesAt(next, 1, p.trailer.OffsetTableOffset)[0]
	next++
	if intTag&0xF0 != bpTagInteger {
		panic(errorf(ErrTruncatedInput, "long count is not followed by an integer (tag 0x%02x)", intTag))
	}
	nbytes := 1 << (intTag & 0x0F)
	if nbytes > 8 {
		panic(errorf(ErrUnsupportedWidth, "%d-byte count", nbytes))
	}
	cnt, _, next = p.sizedInt(next, nbytes, p.trailer.OffsetTableOffset)
	return cnt, next
}

func (p *BinaryParser) objectRefsAt(off uint64, cnt uint64) ([]uint64, uint64) {
	refSize := uint64(p.trailer.ObjectRefSize)
	// Overflow-safe form of off + cnt*refSize > OffsetTableOffset.
	if cnt > p.trailer.OffsetTableOffset/refSize || off+cnt*refSize > p.trailer.OffsetTableOffset {
		panic(errorf(ErrTruncatedInput, "%d object references at 0x%x extend past the object table", cnt, off))
	}

	refs := make([]uint64, cnt)
	for i := range refs {
		ref, _, next := p.sizedInt(off, int(refSize), p.trailer.OffsetTableOffset)
		if ref >= p.trailer.NumObjects {
			p.lastOff = off
			panic(errorf(ErrInvalidObjectReference, "reference to object %d out of range (%d objects)", ref, p.trailer.NumObjects))
		}
		refs[i] = ref
		off = next
	}
	return refs, off
}

func (p *BinaryParser) parseObjectRef(ref uint64, needKey bool) Event {
	if p.inflight[ref] {
		panic(errorf(ErrInvalidObjectReference, "object %d contains itself", ref))
	}

	off := p.offtable[ref]
	p.lastOff = off
	limit := p.trailer.OffsetTableOffset
	tag := p.bytesAt(off, 1, limit)[0]
	pos := off + 1

	if needKey && tag&0xF0 != bpTagASCIIString && tag&0xF0 != bpTagUTF16String {
		panic(fmt.Errorf("dictionary key is not a string (tag 0x%02x)", tag))
	}

	switch tag & 0xF0 {
	case bpTagNull:
		switch tag {
		case bpTagBoolTrue:
			return Scalar(Boolean(true))
		case bpTagBoolFalse:
			return Scalar(Boolean(false))
		}
		panic(fmt.Errorf("unexpected object tag 0x%02x", tag))
	case bpTagInteger:
		nbytes := 1 << (tag & 0x0F)
		switch {
		case nbytes <= 4:
			lo, _, _ := p.sizedInt(pos, nbytes, limit)
			return Scalar(Integer{Value: lo})
		case nbytes == 8:
			lo, _, _ := p.sizedInt(pos, 8, limit)
			// Eight-byte integers are signed two's complement.
			return Scalar(Integer{Signed: int64(lo) < 0, Value: lo})
		case nbytes == 16 && wideIntegersEnabled:
			lo, hi, _ := p.sizedInt(pos, 16, limit)
			switch {
			case hi == 0:
				return Scalar(Integer{Value: lo})
			case hi == math.MaxUint64 && int64(lo) < 0:
				return Scalar(Integer{Signed: true, Value: lo})
			}
			panic(errorf(ErrIntegerOverflow, "16-byte integer 0x%016x%016x out of range", hi, lo))
		}
		panic(errorf(ErrUnsupportedWidth, "%d-byte integer", nbytes))
	case bpTagReal:
		switch tag & 0x0F {
		case 2:
			lo, _, _ := p.sizedInt(pos, 4, limit)
			return Scalar(Real{Wide: false, Value: float64(math.Float32frombits(uint32(lo)))})
		case 3:
			lo, _, _ := p.sizedInt(pos, 8, limit)
			return Scalar(Real{Wide: true, Value: math.Float64frombits(lo)})
		}
		panic(errorf(ErrUnsupportedWidth, "illegal real size (tag 0x%02x)", tag))
	case bpTagDate:
		if tag&0x0F != 3 {
			panic(errorf(ErrUnsupportedWidth, "illegal date size (tag 0x%02x)", tag))
		}
		lo, _, _ := p.sizedInt(pos, 8, limit)
		val := math.Float64frombits(lo) + bplistEpochDelta
		sec, fsec := math.Modf(val)
		return Scalar(Date(time.Unix(int64(sec), int64(fsec*float64(time.Second))).In(time.UTC)))
	case bpTagData:
		cnt, pos := p.countForTag(tag, pos)
		b := p.bytesAt(pos, cnt, limit)
		data := make([]byte, cnt)
		copy(data, b)
		return Scalar(Data(data))
	case bpTagASCIIString:
		cnt, pos := p.countForTag(tag, pos)
		return Scalar(String(p.bytesAt(pos, cnt, limit)))
	case bpTagUTF16String:
		cnt, pos := p.countForTag(tag, pos)
		if cnt > math.MaxUint64/2 {
			panic(errorf(ErrTruncatedInput, "%d UTF-16 code units", cnt))
		}
		b := p.bytesAt(pos, cnt*2, limit)
		units := make([]uint16, cnt)
		for i := range units {
			units[i] = binary.BigEndian.Uint16(b[i*2:])
		}
		return Scalar(String(utf16.Decode(units)))
	case bpTagUID:
		// Unlike integers, the low nibble is nbytes-1, not log2(nbytes).
		nbytes := int(tag&0x0F) + 1
		if nbytes > 8 {
			panic(errorf(ErrUnsupportedWidth, "%d-byte UID", nbytes))
		}
		var lo uint64
		b := p.bytesAt(pos, uint64(nbytes), limit)
		for _, c := range b {
			lo = lo<<8 | uint64(c)
		}
		return Scalar(UID(lo))
	case bpTagArray:
		cnt, pos := p.countForTag(tag, pos)
		refs, _ := p.objectRefsAt(pos, cnt)
		p.inflight[ref] = true
		p.stack = append(p.stack, bplistStackItem{ref: ref, refs: refs})
		return StartArray(int64(cnt))
	case bpTagDictionary:
		cnt, pos := p.countForTag(tag, pos)
		if cnt > math.MaxUint64/2 {
			panic(errorf(ErrTruncatedInput, "%d dictionary entries", cnt))
		}
		keyRefs, pos := p.objectRefsAt(pos, cnt)
		valueRefs, _ := p.objectRefsAt(pos, cnt)
		refs := make([]uint64, 0, cnt*2)
		for i := uint64(0); i < cnt; i++ {
			refs = append(refs, keyRefs[i], valueRefs[i])
		}
		p.inflight[ref] = true
		p.stack = append(p.stack, bplistStackItem{ref: ref, refs: refs, dict: true})
		return StartDictionary(int64(cnt))
	}
	panic(fmt.Errorf("unexpected object tag 0x%02x", tag))
}
