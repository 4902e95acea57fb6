//go:build plist_wideint

package plist

// Integer objects wider than eight bytes are accepted when their value fits
// the 64-bit signed or unsigned range. This capability is unstable; its
// behavior may change between minor releases.
const wideIntegersEnabled = true
