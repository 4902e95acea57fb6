package plist

type bplistTrailer struct {
	Unused            [5]uint8
	SortVersion       uint8
	OffsetIntSize     uint8
	ObjectRefSize     uint8
	NumObjects        uint64
	TopObject         uint64
	OffsetTableOffset uint64
}

const (
	bpTagNull        uint8 = 0x00
	bpTagBoolFalse         = 0x08
	bpTagBoolTrue          = 0x09
	bpTagFill              = 0x0F
	bpTagInteger           = 0x10
	bpTagReal              = 0x20
	bpTagDate              = 0x30
	bpTagData              = 0x40
	bpTagASCIIString       = 0x50
	bpTagUTF16String       = 0x60
	bpTagUID               = 0x80
	bpTagArray             = 0xA0
	bpTagDictionary        = 0xD0
)

const (
	bplistHeaderLen  = 8
	bplistTrailerLen = 32
	bplistMinimumLen = bplistHeaderLen + bplistTrailerLen
)

// The structural integer widths a trailer may declare. Three-byte offsets are
// real: Apple's encoder emits them for files between 64KiB and 16MiB.
func validSizedIntWidth(n uint8) bool {
	switch n {
	case 1, 2, 3, 4, 8:
		return true
	}
	return false
}

// Seconds between 2001-01-01T00:00:00Z (the binary format's date epoch) and
// the Unix epoch.
const bplistEpochDelta = 978307200
