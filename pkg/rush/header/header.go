// Package header provides typed views over protocol header bytes.
//
// Each header type wraps a byte slice — either a freshly allocated,
// heap-owned buffer or a caller-supplied region of packet data — and
// exposes field accessors that convert to and from network byte order.
// Multi-byte fields are read and written with encoding/binary's BigEndian
// codec directly against the backing slice; there is no intermediate
// struct representation to keep in sync with the wire layout.
package header

import "fmt"

// view is the common backing store embedded by every concrete header type.
type view struct {
	b []byte
}

// newView allocates a zeroed, heap-owned backing buffer of size bytes.
func newView(size int) view {
	return view{b: make([]byte, size)}
}

// fromBytes wraps an existing byte slice as a header view, asserting that
// it is large enough to hold the header.
func fromBytes(b []byte, size int) view {
	if len(b) < size {
		panic(fmt.Sprintf("rush/header: buffer too small: have %d bytes, need %d", len(b), size))
	}
	return view{b: b[:size]}
}

// Bytes returns the header's backing byte slice.
func (v view) Bytes() []byte { return v.b }
