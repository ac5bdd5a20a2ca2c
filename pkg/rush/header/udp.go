package header

import (
	"encoding/binary"

	"github.com/netshaper/rush/pkg/rush/checksum"
)

// UDPSize is the byte length of a UDP header.
const UDPSize = 8

// UDP is a typed view over a UDP header.
type UDP struct{ view }

// NewUDP allocates a fresh, zeroed UDP header.
func NewUDP() UDP { return UDP{newView(UDPSize)} }

// UDPFromBytes wraps b as a UDP header view.
func UDPFromBytes(b []byte) UDP { return UDP{fromBytes(b, UDPSize)} }

func (h UDP) SrcPort() uint16 { return binary.BigEndian.Uint16(h.b[0:2]) }

func (h UDP) SetSrcPort(p uint16) { binary.BigEndian.PutUint16(h.b[0:2], p) }

func (h UDP) DstPort() uint16 { return binary.BigEndian.Uint16(h.b[2:4]) }

func (h UDP) SetDstPort(p uint16) { binary.BigEndian.PutUint16(h.b[2:4], p) }

// Len returns the UDP length field (header + payload, in bytes).
func (h UDP) Len() uint16 { return binary.BigEndian.Uint16(h.b[4:6]) }

func (h UDP) SetLen(l uint16) { binary.BigEndian.PutUint16(h.b[4:6], l) }

func (h UDP) Checksum() uint16 { return binary.BigEndian.Uint16(h.b[6:8]) }

func (h UDP) SetChecksum(c uint16) { binary.BigEndian.PutUint16(h.b[6:8], c) }

// ChecksumCompute computes and stores the UDP checksum over the fixed
// header plus payload, seeded with init (normally the bitwise complement
// of the IPv4 pseudo-header checksum).
func (h UDP) ChecksumCompute(payload []byte, length int, init uint16) {
	h.SetChecksum(0)
	hsum := checksum.Ipsum(h.Bytes(), UDPSize, init)
	h.SetChecksum(checksum.Ipsum(payload, length, ^hsum))
}
