package plist

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

type nilWriter struct{}

func (w nilWriter) Write(p []byte) (int, error) {
	return len(p), nil
}

func subtest(t *testing.T, name string, f func(t *testing.T)) {
	t.Run(name, f)
}

// valueCmpOptions makes cmp.Diff usable on Value trees: dictionaries keep
// their entries in unexported slices, dates wrap time.Time, and NaN reals
// must compare equal to themselves.
var valueCmpOptions = cmp.Options{
	cmp.AllowUnexported(Dictionary{}),
	cmpopts.EquateEmpty(),
	cmp.Comparer(func(a, b Date) bool { return time.Time(a).Equal(time.Time(b)) }),
	cmp.Comparer(func(a, b Real) bool {
		if a.Wide != b.Wide {
			return false
		}
		return a.Value == b.Value || math.IsNaN(a.Value) && math.IsNaN(b.Value)
	}),
}

var xmlPreamble string = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
`

type TestData struct {
	Name  string
	Value Value
	XML   string

	// SkipDecodeXML marks values whose XML form does not decode back to
	// the identical tree.
	SkipDecodeXML bool

	// WideOnly marks values whose binary form needs 16-byte integer
	// support to decode.
	WideOnly bool
}

var tests = []TestData{
	{
		Name:  "String",
		Value: String("Hello"),
		XML:   `<string>Hello</string>`,
	},
	{
		Name:  "StringNeedingEscape",
		Value: String("a < b & c"),
		XML:   `<string>a &lt; b &amp; c</string>`,
	},
	{
		Name: "UTF8Strings",
		Value: &Array{Values: []Value{
			String("Hello, ASCII"),
			String("Hello, 世界"),
		}},
		XML: `<array><string>Hello, ASCII</string><string>Hello, 世界</string></array>`,
	},
	{
		Name: "Integers",
		Value: &Array{Values: []Value{
			Integer{Value: 1},
			Integer{Value: 255},
			Integer{Value: 256},
			Integer{Value: 65536},
			Integer{Value: 4294967296},
			integerFromInt(-1),
			integerFromInt(-127),
			Integer{Value: math.MaxInt64},
		}},
		XML: `<array><integer>1</integer><integer>255</integer><integer>256</integer><integer>65536</integer><integer>4294967296</integer><integer>-1</integer><integer>-127</integer><integer>9223372036854775807</integer></array>`,
	},
	{
		Name:  "HugeUnsignedInteger",
		Value:    Integer{Value: math.MaxUint64},
		XML:      `<integer>18446744073709551615</integer>`,
		WideOnly: true,
	},
	{
		Name: "Reals",
		Value: &Array{Values: []Value{
			Real{Wide: false, Value: 32},
			Real{Wide: true, Value: 64},
			Real{Wide: true, Value: 1.5},
		}},
		XML: `<array><real>32</real><real>64</real><real>1.5</real></array>`,
		// XML has no notion of real width; everything decodes wide.
		SkipDecodeXML: true,
	},
	{
		Name:  "Infinity",
		Value: Real{Wide: true, Value: math.Inf(1)},
		XML:   `<real>inf</real>`,
	},
	{
		Name:  "NaN",
		Value: Real{Wide: true, Value: math.NaN()},
		XML:   `<real>nan</real>`,
	},
	{
		Name: "Booleans",
		Value: &Array{Values: []Value{
			Boolean(true),
			Boolean(false),
		}},
		XML: `<array><true/><false/></array>`,
	},
	{
		Name:  "Data",
		Value: Data{1, 2, 3, 4},
		XML:   `<data>AQIDBA==</data>`,
	},
	{
		Name:  "Date",
		Value: Date(time.Date(2013, 11, 27, 0, 34, 0, 0, time.UTC)),
		XML:   `<date>2013-11-27T00:34:00Z</date>`,
	},
	{
		Name:  "UID",
		Value: UID(42),
		XML:   `<dict><key>CF$UID</key><integer>42</integer></dict>`,
	},
	{
		Name:  "EmptyDictionary",
		Value: &Dictionary{},
		XML:   `<dict></dict>`,
	},
	{
		Name:  "EmptyArray",
		Value: &Array{},
		XML:   `<array></array>`,
	},
	{
		Name: "NestedStructure",
		Value: (&Dictionary{}).
			Set("name", String("pony")).
			Set("sizes", &Array{Values: []Value{
				Integer{Value: 1},
				Integer{Value: 2},
			}}).
			Set("metadata", (&Dictionary{}).
				Set("empty", &Array{}).
				Set("ok", Boolean(true))),
		XML: `<dict><key>name</key><string>pony</string><key>sizes</key><array><integer>1</integer><integer>2</integer></array><key>metadata</key><dict><key>empty</key><array></array><key>ok</key><true/></dict></dict>`,
	},
	{
		Name: "DuplicateLeaves",
		Value: &Array{Values: []Value{
			String("twin"),
			String("twin"),
			Integer{Value: 7},
			Integer{Value: 7},
		}},
		XML: `<array><string>twin</string><string>twin</string><integer>7</integer><integer>7</integer></array>`,
	},
}

// plistValueTree is a tree exercising every kind at once; the fixtures below
// hold its rendering in each format that can carry it.
var plistValueTree Value = (&Dictionary{}).
	Set("intarray", &Array{Values: []Value{
		Integer{Value: 1},
		Integer{Value: 8},
		Integer{Value: 16},
		Integer{Value: 32},
		Integer{Value: 64},
	}}).
	Set("floats", &Array{Values: []Value{
		Real{Wide: false, Value: 32},
		Real{Wide: true, Value: 64},
	}}).
	Set("booleans", &Array{Values: []Value{
		Boolean(true),
		Boolean(false),
	}}).
	Set("strings", &Array{Values: []Value{
		String("Hello, ASCII"),
		String("Hello, 世界"),
	}}).
	Set("data", Data{1, 2, 3, 4}).
	Set("date", Date(time.Date(2013, 11, 27, 0, 34, 0, 0, time.UTC)))

var plistValueTreeAsXML = xmlPreamble + `<plist version="1.0"><dict><key>intarray</key><array><integer>1</integer><integer>8</integer><integer>16</integer><integer>32</integer><integer>64</integer></array><key>floats</key><array><real>32</real><real>64</real></array><key>booleans</key><array><true/><false/></array><key>strings</key><array><string>Hello, ASCII</string><string>Hello, 世界</string></array><key>data</key><data>AQIDBA==</data><key>date</key><date>2013-11-27T00:34:00Z</date></dict></plist>`

var plistValueTreeAsOpenStep = `{
	intarray = (1, 8, 16, 32, 64);
	strings = ("Hello, ASCII", "Hello, 世界");
	data = <01020304>;
}`

var plistValueTreeAsGNUStep = `{
	intarray = (<*I1>, <*I8>, <*I16>, <*I32>, <*I64>);
	floats = (<*R32>, <*R64>);
	booleans = (<*BY>, <*BN>);
	data = <01020304>;
	date = <*D2013-11-27 00:34:00 +0000>;
}`
