// Package plist implements encoding and decoding of Apple's "property list" format.
// Property lists come in three sorts: binary (bplist00), XML and plain text (OpenStep/GNUstep).
// plist reads all three and writes the binary and XML kinds.
//
// All physical formats are bridged through a single stream of Events. A Producer
// (a format parser, or a Value being walked) emits a well-nested event sequence
// for exactly one property-list value; a Consumer (a format generator, a Value
// builder, or the reflection bridge) accepts it. The mapping between property
// lists and Go objects is described in the documentation for Marshal and Unmarshal.
package plist
