package header

import (
	"encoding/binary"
	"fmt"
	"net"
)

// EthernetSize is the byte length of an Ethernet header (no 802.1Q tag).
const EthernetSize = 14

// TypeIPv4 is the EtherType value identifying an IPv4 payload.
const TypeIPv4 = 0x0800

// MACAddress is a 6-byte Ethernet hardware address.
type MACAddress [6]byte

// ParseMAC parses a colon-separated MAC address string such as
// "52:54:00:02:02:02".
func ParseMAC(s string) (MACAddress, error) {
	var m MACAddress
	hw, err := net.ParseMAC(s)
	if err != nil {
		return m, fmt.Errorf("rush/header: parse MAC %q: %w", s, err)
	}
	if len(hw) != 6 {
		return m, fmt.Errorf("rush/header: MAC %q is not 6 bytes", s)
	}
	copy(m[:], hw)
	return m, nil
}

// FormatMAC renders a MAC address in colon-separated hex form.
func FormatMAC(m MACAddress) string {
	return net.HardwareAddr(m[:]).String()
}

// Ethernet is a typed view over an Ethernet header.
type Ethernet struct{ view }

// NewEthernet allocates a fresh, zeroed Ethernet header.
func NewEthernet() Ethernet { return Ethernet{newView(EthernetSize)} }

// EthernetFromBytes wraps b as an Ethernet header view.
func EthernetFromBytes(b []byte) Ethernet { return Ethernet{fromBytes(b, EthernetSize)} }

func (h Ethernet) Dst() MACAddress {
	var m MACAddress
	copy(m[:], h.b[0:6])
	return m
}

func (h Ethernet) SetDst(addr MACAddress) { copy(h.b[0:6], addr[:]) }

func (h Ethernet) Src() MACAddress {
	var m MACAddress
	copy(m[:], h.b[6:12])
	return m
}

func (h Ethernet) SetSrc(addr MACAddress) { copy(h.b[6:12], addr[:]) }

func (h Ethernet) EtherType() uint16 { return binary.BigEndian.Uint16(h.b[12:14]) }

func (h Ethernet) SetEtherType(t uint16) { binary.BigEndian.PutUint16(h.b[12:14], t) }

// Swap exchanges the source and destination addresses.
func (h Ethernet) Swap() {
	dst, src := h.Dst(), h.Src()
	h.SetDst(src)
	h.SetSrc(dst)
}
