package plist

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// buildBplist assembles a binary property list from raw encoded objects in
// index order, using the given structural widths. Width combinations the
// generator would never choose are expressible here.
func buildBplist(objects [][]byte, offsetSize, refSize byte, top uint64) []byte {
	var buf bytes.Buffer
	buf.WriteString("bplist00")
	offsets := make([]uint64, len(objects))
	for i, obj := range objects {
		offsets[i] = uint64(buf.Len())
		buf.Write(obj)
	}
	tableOff := uint64(buf.Len())
	for _, off := range offsets {
		writeSizedInt(&buf, off, offsetSize)
	}
	trailer := [bplistTrailerLen]byte{6: offsetSize, 7: refSize}
	binary.BigEndian.PutUint64(trailer[8:], uint64(len(objects)))
	binary.BigEndian.PutUint64(trailer[16:], top)
	binary.BigEndian.PutUint64(trailer[24:], tableOff)
	buf.Write(trailer[:])
	return buf.Bytes()
}

func sizedBytes(v uint64, w byte) []byte {
	var buf bytes.Buffer
	writeSizedInt(&buf, v, w)
	return buf.Bytes()
}

func parseBplist(data []byte) (Value, error) {
	b := NewValueBuilder()
	if err := CopyEvents(b, NewBinaryParser(data)); err != nil {
		return nil, err
	}
	return b.Value()
}

// goldenBplist is {"a": true}: three objects, one-byte offsets and refs.
var goldenBplist = []byte{
	'b', 'p', 'l', 'i', 's', 't', '0', '0',
	0xD1, 0x01, 0x02, // {key 1: value 2}
	0x51, 'a',
	0x09,
	0x08, 0x0B, 0x0D, // offset table
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x01,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x03,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x0E,
}

func TestBplistParseGolden(t *testing.T) {
	p := NewBinaryParser(goldenBplist)

	want := []Event{
		StartDictionary(1),
		Scalar(String("a")),
		Scalar(Boolean(true)),
		EndCollection(),
	}
	for _, wantEvent := range want {
		e, err := p.NextEvent()
		require.NoError(t, err)
		require.Equal(t, wantEvent, e)
	}

	_, err := p.NextEvent()
	require.Equal(t, io.EOF, err)
	_, err = p.NextEvent()
	require.Equal(t, io.EOF, err)
}

func TestBplistStructuralWidths(t *testing.T) {
	want := (&Dictionary{}).Set("a", Boolean(true))

	for _, w := range []byte{1, 2, 3, 4, 8} {
		dict := append([]byte{0xD1}, sizedBytes(1, w)...)
		dict = append(dict, sizedBytes(2, w)...)
		data := buildBplist([][]byte{dict, {0x51, 'a'}, {0x09}}, w, w, 0)

		got, err := parseBplist(data)
		require.NoError(t, err, "width %d", w)
		if diff := cmp.Diff(Value(want), got, valueCmpOptions); diff != "" {
			t.Fatalf("width %d mismatch (-want +got):\n%s", w, diff)
		}
	}
}

func TestBplistTrailingData(t *testing.T) {
	data := append(append([]byte{}, goldenBplist...), 0x00)
	_, err := parseBplist(data)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrTrailingData), "got %v", err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, BinaryFormat, perr.Format)
}

func TestBplistTruncated(t *testing.T) {
	for _, data := range [][]byte{
		nil,
		[]byte("bplist00"),
		goldenBplist[:39],
	} {
		_, err := parseBplist(data)
		require.True(t, errors.Is(err, ErrTruncatedInput), "got %v", err)
	}
}

func TestBplistMalformedHeader(t *testing.T) {
	bad := append([]byte{}, goldenBplist...)
	bad[0] = 'x'
	_, err := parseBplist(bad)
	require.True(t, errors.Is(err, ErrMalformedHeader), "got %v", err)

	badVersion := append([]byte{}, goldenBplist...)
	badVersion[6], badVersion[7] = '9', '9'
	_, err = parseBplist(badVersion)
	require.True(t, errors.Is(err, ErrMalformedHeader), "got %v", err)
}

func TestBplistUnsupportedWidths(t *testing.T) {
	trailerOff := len(goldenBplist) - bplistTrailerLen

	badOffsetSize := append([]byte{}, goldenBplist...)
	badOffsetSize[trailerOff+6] = 5
	_, err := parseBplist(badOffsetSize)
	require.True(t, errors.Is(err, ErrUnsupportedWidth), "got %v", err)

	badRefSize := append([]byte{}, goldenBplist...)
	badRefSize[trailerOff+7] = 5
	_, err = parseBplist(badRefSize)
	require.True(t, errors.Is(err, ErrUnsupportedWidth), "got %v", err)
}

func TestBplistInvalidReferences(t *testing.T) {
	subtest(t, "TopObjectOutOfRange", func(t *testing.T) {
		bad := append([]byte{}, goldenBplist...)
		trailerOff := len(bad) - bplistTrailerLen
		bad[trailerOff+23] = 5
		_, err := parseBplist(bad)
		require.True(t, errors.Is(err, ErrInvalidObjectReference), "got %v", err)
	})

	subtest(t, "OffsetOutsideObjectTable", func(t *testing.T) {
		bad := append([]byte{}, goldenBplist...)
		bad[14] = 200 // object 0 offset
		_, err := parseBplist(bad)
		require.True(t, errors.Is(err, ErrInvalidObjectReference), "got %v", err)
	})

	subtest(t, "RefBeyondObjectCount", func(t *testing.T) {
		data := buildBplist([][]byte{{0xD1, 0x01, 0x09}, {0x51, 'a'}, {0x09}}, 1, 1, 0)
		_, err := parseBplist(data)
		require.True(t, errors.Is(err, ErrInvalidObjectReference), "got %v", err)
	})

	subtest(t, "SelfContainingArray", func(t *testing.T) {
		data := buildBplist([][]byte{{0xA1, 0x00}}, 1, 1, 0)
		_, err := parseBplist(data)
		require.True(t, errors.Is(err, ErrInvalidObjectReference), "got %v", err)
	})

	subtest(t, "IndirectCycle", func(t *testing.T) {
		// 0 is an array holding 1; 1 is an array holding 0.
		data := buildBplist([][]byte{{0xA1, 0x01}, {0xA1, 0x00}}, 1, 1, 0)
		_, err := parseBplist(data)
		require.True(t, errors.Is(err, ErrInvalidObjectReference), "got %v", err)
	})

	// Sharing is not a cycle: both array slots reference object 1.
	subtest(t, "SharedLeafIsLegal", func(t *testing.T) {
		data := buildBplist([][]byte{{0xA2, 0x01, 0x01}, {0x51, 'a'}}, 1, 1, 0)
		got, err := parseBplist(data)
		require.NoError(t, err)
		want := &Array{Values: []Value{String("a"), String("a")}}
		if diff := cmp.Diff(Value(want), got, valueCmpOptions); diff != "" {
			t.Fatalf("mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestBplistNonStringDictionaryKey(t *testing.T) {
	data := buildBplist([][]byte{{0xD1, 0x01, 0x01}, {0x09}}, 1, 1, 0)
	_, err := parseBplist(data)
	require.Error(t, err)
}

func TestBplistUnexpectedTag(t *testing.T) {
	for _, obj := range [][]byte{{0x00}, {0x0F}, {0xF0}} {
		_, err := parseBplist(buildBplist([][]byte{obj}, 1, 1, 0))
		require.Error(t, err, "tag %#x", obj[0])
	}
}

func TestBplistLongCount(t *testing.T) {
	// A 20-byte ASCII string stores its count as a following integer object.
	s := "abcdefghijklmnopqrst"
	obj := append([]byte{0x5F, 0x10, 20}, s...)
	got, err := parseBplist(buildBplist([][]byte{obj}, 1, 1, 0))
	require.NoError(t, err)
	require.Equal(t, Value(String(s)), got)
}

func TestBplistUTF16String(t *testing.T) {
	obj := []byte{0x62, 0x4E, 0x16, 0x75, 0x4C} // 世界, two code units
	got, err := parseBplist(buildBplist([][]byte{obj}, 1, 1, 0))
	require.NoError(t, err)
	require.Equal(t, Value(String("世界")), got)
}

func TestBplistUIDWidths(t *testing.T) {
	for _, tc := range []struct {
		obj  []byte
		want UID
	}{
		{[]byte{0x80, 0x2A}, UID(42)},
		{[]byte{0x81, 0x01, 0x00}, UID(256)},
		{[]byte{0x83, 0x01, 0x00, 0x00, 0x00}, UID(1 << 24)},
		{[]byte{0x87, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, UID(1<<64 - 1)},
	} {
		got, err := parseBplist(buildBplist([][]byte{tc.obj}, 1, 1, 0))
		require.NoError(t, err)
		require.Equal(t, Value(tc.want), got)
	}
}

func TestBplistEightByteIntegerIsSigned(t *testing.T) {
	obj := []byte{0x13, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	got, err := parseBplist(buildBplist([][]byte{obj}, 1, 1, 0))
	require.NoError(t, err)
	require.Equal(t, Value(integerFromInt(-1)), got)
}

func TestBplistParserPoisons(t *testing.T) {
	p := NewBinaryParser([]byte("bplist00"))
	_, err := p.NextEvent()
	require.Error(t, err)
	_, err2 := p.NextEvent()
	require.Equal(t, err, err2)
}

func BenchmarkBplistParse(b *testing.B) {
	var buf bytes.Buffer
	if err := CopyEvents(NewBinaryGenerator(&buf), NewValueReader(plistValueTree)); err != nil {
		b.Fatal(err)
	}
	data := buf.Bytes()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := NewBinaryParser(data)
		for {
			if _, err := p.NextEvent(); err != nil {
				break
			}
		}
	}
}
