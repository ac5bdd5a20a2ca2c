package header

import (
	"encoding/binary"

	"github.com/netshaper/rush/pkg/rush/checksum"
)

// TCPSize is the byte length of a TCP header without options.
const TCPSize = 20

// TCP is a typed view over a TCP header (options, if any, follow the
// fixed portion and are not modeled here).
type TCP struct{ view }

// NewTCP allocates a fresh, zeroed TCP header.
func NewTCP() TCP { return TCP{newView(TCPSize)} }

// TCPFromBytes wraps b as a TCP header view.
func TCPFromBytes(b []byte) TCP { return TCP{fromBytes(b, TCPSize)} }

func (h TCP) SrcPort() uint16 { return binary.BigEndian.Uint16(h.b[0:2]) }

func (h TCP) SetSrcPort(p uint16) { binary.BigEndian.PutUint16(h.b[0:2], p) }

func (h TCP) DstPort() uint16 { return binary.BigEndian.Uint16(h.b[2:4]) }

func (h TCP) SetDstPort(p uint16) { binary.BigEndian.PutUint16(h.b[2:4], p) }

func (h TCP) Seq() uint32 { return binary.BigEndian.Uint32(h.b[4:8]) }

func (h TCP) SetSeq(seq uint32) { binary.BigEndian.PutUint32(h.b[4:8], seq) }

func (h TCP) Ack() uint32 { return binary.BigEndian.Uint32(h.b[8:12]) }

func (h TCP) SetAck(ack uint32) { binary.BigEndian.PutUint32(h.b[8:12], ack) }

// DataOffset returns the 4-bit data-offset field, in 32-bit words.
func (h TCP) DataOffset() uint8 { return h.b[12] >> 4 }

// SetDataOffset sets the 4-bit data-offset field.
func (h TCP) SetDataOffset(offset uint8) {
	h.b[12] = (offset&0xf)<<4 | (h.b[12] & 0x0f)
}

// Size returns the full TCP header size in bytes, honoring the data
// offset but never reporting less than the fixed 20-byte header.
func (h TCP) Size() int {
	words := int(h.DataOffset())
	if words < 5 {
		words = 5
	}
	return words * 4
}

func (h TCP) WindowSize() uint16 { return binary.BigEndian.Uint16(h.b[14:16]) }

func (h TCP) SetWindowSize(w uint16) { binary.BigEndian.PutUint16(h.b[14:16], w) }

func (h TCP) Checksum() uint16 { return binary.BigEndian.Uint16(h.b[16:18]) }

func (h TCP) SetChecksum(c uint16) { binary.BigEndian.PutUint16(h.b[16:18], c) }

func (h TCP) UrgentPointer() uint16 { return binary.BigEndian.Uint16(h.b[18:20]) }

func (h TCP) SetUrgentPointer(p uint16) { binary.BigEndian.PutUint16(h.b[18:20], p) }

// ChecksumCompute computes and stores the TCP checksum over the fixed
// header plus payload, seeded with init (normally the bitwise complement
// of the IPv4 pseudo-header checksum).
func (h TCP) ChecksumCompute(payload []byte, length int, init uint16) {
	h.SetChecksum(0)
	hsum := checksum.Ipsum(h.Bytes(), TCPSize, init)
	h.SetChecksum(checksum.Ipsum(payload, length, ^hsum))
}
