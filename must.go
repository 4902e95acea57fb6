package plist

import "strconv"

// Panicking strconv wrappers for use inside the parsers, which funnel all
// failures through a single recover site.

func mustParseInt(str string, base, bits int) int64 {
	i, err := strconv.ParseInt(str, base, bits)
	if err != nil {
		panic(err)
	}
	return i
}

func mustParseUint(str string, base, bits int) uint64 {
	i, err := strconv.ParseUint(str, base, bits)
	if err != nil {
		panic(err)
	}
	return i
}

func mustParseFloat(str string, bits int) float64 {
	f, err := strconv.ParseFloat(str, bits)
	if err != nil {
		panic(err)
	}
	return f
}

func mustParseBool(str string) bool {
	b, err := strconv.ParseBool(str)
	if err != nil {
		panic(err)
	}
	return b
}
