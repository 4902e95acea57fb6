package plist

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestDecoderFormatDetection(t *testing.T) {
	subtest(t, "Binary", func(t *testing.T) {
		d := NewDecoder(bytes.NewReader(goldenBplist))
		v, err := d.DecodeValue()
		require.NoError(t, err)
		require.Equal(t, BinaryFormat, d.Format)
		want := (&Dictionary{}).Set("a", Boolean(true))
		if diff := cmp.Diff(Value(want), v, valueCmpOptions); diff != "" {
			t.Fatalf("mismatch (-want +got):\n%s", diff)
		}
	})

	subtest(t, "XML", func(t *testing.T) {
		d := NewDecoder(strings.NewReader(plistValueTreeAsXML))
		v, err := d.DecodeValue()
		require.NoError(t, err)
		require.Equal(t, XMLFormat, d.Format)
		require.NotNil(t, v)
	})

	subtest(t, "OpenStep", func(t *testing.T) {
		d := NewDecoder(strings.NewReader(plistValueTreeAsOpenStep))
		v, err := d.DecodeValue()
		require.NoError(t, err)
		require.Equal(t, OpenStepFormat, d.Format)
		require.NotNil(t, v)
	})

	subtest(t, "GNUStep", func(t *testing.T) {
		d := NewDecoder(strings.NewReader(plistValueTreeAsGNUStep))
		v, err := d.DecodeValue()
		require.NoError(t, err)
		require.Equal(t, GNUStepFormat, d.Format)
		require.NotNil(t, v)
	})
}

func TestDecoderShortInput(t *testing.T) {
	_, err := NewDecoder(strings.NewReader("{a=b")).DecodeValue()
	require.Error(t, err)

	_, err = NewDecoder(strings.NewReader("")).DecodeValue()
	require.Error(t, err)
}

func TestDecoderShortTextDocuments(t *testing.T) {
	for _, test := range []struct {
		data string
		want Value
	}{
		{"{}", &Dictionary{}},
		{"()", &Array{}},
		{"hi", String("hi")},
	} {
		d := NewDecoder(strings.NewReader(test.data))
		v, err := d.DecodeValue()
		require.NoError(t, err, "%q", test.data)
		require.Equal(t, OpenStepFormat, d.Format)
		if diff := cmp.Diff(test.want, v, valueCmpOptions); diff != "" {
			t.Fatalf("%q mismatch (-want +got):\n%s", test.data, diff)
		}
	}
}

func TestEncodeDecodeValue(t *testing.T) {
	for _, format := range []int{XMLFormat, BinaryFormat} {
		for _, td := range tests {
			td := td
			subtest(t, FormatNames[format]+"/"+td.Name, func(t *testing.T) {
				if td.SkipDecodeXML && format == XMLFormat {
					t.Skip("value does not survive an XML round trip")
				}
				if td.WideOnly && format == BinaryFormat && !wideIntegersEnabled {
					t.Skip("needs 16-byte integer support")
				}

				var buf bytes.Buffer
				require.NoError(t, NewEncoderForFormat(&buf, format).EncodeValue(td.Value))

				d := NewDecoder(bytes.NewReader(buf.Bytes()))
				got, err := d.DecodeValue()
				require.NoError(t, err)
				require.Equal(t, format, d.Format)

				want := td.Value
				if r, ok := want.(Real); ok && !r.Wide && format == XMLFormat {
					want = Real{Wide: true, Value: r.Value}
				}
				if diff := cmp.Diff(want, got, valueCmpOptions); diff != "" {
					t.Fatalf("mismatch (-want +got):\n%s", diff)
				}
			})
		}
	}
}
