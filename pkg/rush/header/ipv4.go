package header

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/netshaper/rush/pkg/rush/checksum"
)

// IPv4Size is the byte length of an IPv4 header without options.
const IPv4Size = 20

// Well-known IP protocol numbers.
const (
	ProtocolTCP = 6
	ProtocolUDP = 17
)

// Address is an IPv4 address held in network byte order.
type Address [4]byte

// ParseAddress parses a dotted-decimal IPv4 address string.
func ParseAddress(s string) (Address, error) {
	var a Address
	ip := net.ParseIP(s)
	if ip == nil {
		return a, fmt.Errorf("rush/header: parse IPv4 address %q", s)
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return a, fmt.Errorf("rush/header: %q is not an IPv4 address", s)
	}
	copy(a[:], ip4)
	return a, nil
}

// FormatAddress renders an IPv4 address in dotted-decimal form.
func FormatAddress(a Address) string {
	return net.IP(a[:]).String()
}

// IPv4 is a typed view over an IPv4 header.
type IPv4 struct{ view }

// NewIPv4 allocates a fresh IPv4 header with version 4, IHL set to the
// header's own size in 32-bit words, and total length set to the header
// size (callers are expected to grow total length as payload is added).
func NewIPv4() IPv4 {
	h := IPv4{newView(IPv4Size)}
	h.SetVersion(4)
	h.SetIHL(IPv4Size / 4)
	h.SetTotalLength(IPv4Size)
	return h
}

// IPv4FromBytes wraps b as an IPv4 header view.
func IPv4FromBytes(b []byte) IPv4 { return IPv4{fromBytes(b, IPv4Size)} }

func (h IPv4) Version() uint8 { return h.b[0] >> 4 }

func (h IPv4) SetVersion(v uint8) { h.b[0] = (v << 4) | (h.b[0] & 0x0f) }

func (h IPv4) IHL() uint8 { return h.b[0] & 0x0f }

func (h IPv4) SetIHL(ihl uint8) { h.b[0] = (h.b[0] & 0xf0) | (ihl & 0x0f) }

func (h IPv4) TotalLength() uint16 { return binary.BigEndian.Uint16(h.b[2:4]) }

func (h IPv4) SetTotalLength(l uint16) { binary.BigEndian.PutUint16(h.b[2:4], l) }

func (h IPv4) ID() uint16 { return binary.BigEndian.Uint16(h.b[4:6]) }

func (h IPv4) SetID(id uint16) { binary.BigEndian.PutUint16(h.b[4:6], id) }

func (h IPv4) Flags() uint8 { return uint8(h.b[6] >> 5) }

func (h IPv4) SetFlags(flags uint8) {
	h.b[6] = (flags&0x7)<<5 | (h.b[6] & 0x1f)
}

func (h IPv4) FragmentOffset() uint16 {
	return binary.BigEndian.Uint16(h.b[6:8]) & 0x1fff
}

func (h IPv4) SetFragmentOffset(off uint16) {
	v := binary.BigEndian.Uint16(h.b[6:8])
	v = (v & 0xe000) | (off & 0x1fff)
	binary.BigEndian.PutUint16(h.b[6:8], v)
}

func (h IPv4) TTL() uint8 { return h.b[8] }

func (h IPv4) SetTTL(ttl uint8) { h.b[8] = ttl }

func (h IPv4) Protocol() uint8 { return h.b[9] }

func (h IPv4) SetProtocol(p uint8) { h.b[9] = p }

func (h IPv4) Checksum() uint16 { return binary.BigEndian.Uint16(h.b[10:12]) }

func (h IPv4) SetChecksum(c uint16) { binary.BigEndian.PutUint16(h.b[10:12], c) }

func (h IPv4) Src() Address {
	var a Address
	copy(a[:], h.b[12:16])
	return a
}

func (h IPv4) SetSrc(a Address) { copy(h.b[12:16], a[:]) }

func (h IPv4) Dst() Address {
	var a Address
	copy(a[:], h.b[16:20])
	return a
}

func (h IPv4) SetDst(a Address) { copy(h.b[16:20], a[:]) }

// Swap exchanges the source and destination addresses.
func (h IPv4) Swap() {
	src, dst := h.Src(), h.Dst()
	h.SetSrc(dst)
	h.SetDst(src)
}

// ChecksumCompute computes and stores the header checksum in place.
func (h IPv4) ChecksumCompute() {
	h.SetChecksum(0)
	h.SetChecksum(checksum.Ipsum(h.Bytes(), IPv4Size, 0))
}

// ChecksumOK reports whether the header's stored checksum is valid.
func (h IPv4) ChecksumOK() bool {
	return checksum.Ipsum(h.Bytes(), IPv4Size, 0) == 0
}

// pseudoHeaderSize is the byte length of the IPv4 pseudo-header used to
// seed TCP/UDP checksums: src(4) + dst(4) + zero(1) + protocol(1) + ulp
// length(2).
const pseudoHeaderSize = 12

// PseudoChecksum computes the ones-complement checksum of the IPv4
// pseudo-header for an upper-layer protocol of length ulpLen.
func (h IPv4) PseudoChecksum(protocol uint8, ulpLen uint16) uint16 {
	var ph [pseudoHeaderSize]byte
	src, dst := h.Src(), h.Dst()
	copy(ph[0:4], src[:])
	copy(ph[4:8], dst[:])
	ph[8] = 0
	ph[9] = protocol
	binary.BigEndian.PutUint16(ph[10:12], ulpLen)
	return checksum.Ipsum(ph[:], pseudoHeaderSize, 0)
}
