//go:build !plist_wideint

package plist

// Integer objects wider than eight bytes are rejected with
// ErrUnsupportedWidth, and the binary writer refuses unsigned values above
// the int64 range rather than emit a document this build could not decode.
// Build with -tags plist_wideint to accept the values among them that fit
// the 64-bit range.
const wideIntegersEnabled = false
