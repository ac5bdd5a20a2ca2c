package header

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// realTCPPacket is a captured Ethernet+IPv4+TCP frame (IPv4 header
// checksum zeroed, TCP checksum zeroed) used to cross-check header field
// decoding and checksum computation against known values.
var realTCPPacket = []byte{
	0x52, 0x54, 0x00, 0x02, 0x02, 0x02, 0x52, 0x54, 0x00, 0x01, 0x01, 0x01, 0x08, 0x00, 0x45, 0x00,
	0x00, 0x34, 0x59, 0x1a, 0x40, 0x00, 0x40, 0x06, 0x00, 0x00, 0xc0, 0xa8, 0x14, 0xa9, 0x6b, 0x15,
	0xf0, 0xb4, 0xde, 0x0b, 0x01, 0xbb, 0xe7, 0xdb, 0x57, 0xbc, 0x91, 0xcd, 0x18, 0x32, 0x80, 0x10,
	0x05, 0x9f, 0x00, 0x00, 0x00, 0x00, 0x01, 0x01, 0x08, 0x0a, 0x06, 0x0c, 0x5c, 0xbd, 0xfa, 0x4a,
	0xe1, 0x65,
}

func TestTCPChecksumAgainstRealPacket(t *testing.T) {
	ipBase := EthernetSize
	tcpBase := ipBase + IPv4Size
	payloadBase := tcpBase + TCPSize
	payload := realTCPPacket[payloadBase:]

	ip := IPv4FromBytes(realTCPPacket[ipBase:])
	tcp := TCPFromBytes(realTCPPacket[tcpBase:])

	pseudo := ip.PseudoChecksum(ProtocolTCP, uint16(TCPSize+len(payload)))
	tcp.ChecksumCompute(payload, len(payload), ^pseudo)

	assert.Equal(t, uint16(0x382a), tcp.Checksum(), "computed TCP checksum should match the known-good value")

	assert.EqualValues(t, 8, tcp.DataOffset())
	assert.Equal(t, 32, tcp.Size())

	tcp.SetDataOffset(0)
	assert.Equal(t, 20, tcp.Size(), "data offset below the minimum header size clamps to 20 bytes")

	assert.EqualValues(t, 3889911740, tcp.Seq())
	tcp.SetSeq(42)
	assert.EqualValues(t, 42, tcp.Seq())
}

func TestTCPPortRoundTrip(t *testing.T) {
	tcp := NewTCP()
	tcp.SetSrcPort(56843)
	tcp.SetDstPort(443)
	assert.EqualValues(t, 56843, tcp.SrcPort())
	assert.EqualValues(t, 443, tcp.DstPort())
}
