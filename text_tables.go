package plist

// The tables below are generated by internal/cmd/tabler.

type characterSet [4]uint64

func (s characterSet) Contains(ch rune) bool {
	return ch >= 0 && ch <= 255 && s.ContainsByte(byte(ch))
}

func (s characterSet) ContainsByte(ch byte) bool {
	return (s[ch/64]>>(ch%64))&1 == 1
}

// Bitmap of characters that must be inside a quoted string
// when written to an old-style property list
// Low bits represent lower characters, and each uint64 represents 64 characters.
var gsQuotable = characterSet{
	0x78001385ffffffff,
	0xa800000138000000,
	0xffffffffffffffff,
	0xffffffffffffffff,
}

var whitespace = characterSet{
	0x0000000100003f00,
	0x0000000000000000,
	0x0000000000000000,
	0x0000000000000000,
}
