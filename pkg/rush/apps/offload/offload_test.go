package offload

import (
	"testing"

	"github.com/netshaper/rush/pkg/rush/engine"
	"github.com/netshaper/rush/pkg/rush/header"
	"github.com/netshaper/rush/pkg/rush/link"
	"github.com/netshaper/rush/pkg/rush/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAppState() *engine.AppState {
	return &engine.AppState{
		Input:  make(map[string]*link.Link),
		Output: make(map[string]*link.Link),
	}
}

func buildUDPPacket(payload []byte) (*packet.Packet, header.IPv4, header.UDP) {
	p := packet.Allocate()
	eth := header.EthernetFromBytes(p.Data[:header.EthernetSize])
	eth.SetEtherType(header.TypeIPv4)

	ip := header.IPv4FromBytes(p.Data[header.EthernetSize:])
	ip.SetIHL(header.IPv4Size / 4)
	ip.SetProtocol(header.ProtocolUDP)
	src, _ := header.ParseAddress("10.0.0.1")
	dst, _ := header.ParseAddress("10.0.0.2")
	ip.SetSrc(src)
	ip.SetDst(dst)

	udpOfs := header.EthernetSize + header.IPv4Size
	udp := header.UDPFromBytes(p.Data[udpOfs:])
	udp.SetLen(uint16(header.UDPSize + len(payload)))
	copy(p.Data[udpOfs+header.UDPSize:], payload)

	p.Length = uint16(udpOfs + header.UDPSize + len(payload))
	return p, ip, udp
}

func TestChecksumFillsInOffloadedUDPChecksum(t *testing.T) {
	payload := []byte("hello")
	p, ip, udp := buildUDPPacket(payload)

	protoLength := p.Length - header.EthernetSize - header.IPv4Size
	pseudo := ip.PseudoChecksum(header.ProtocolUDP, protoLength)
	udp.SetChecksum(^pseudo)

	maybeFillInChecksum(p)

	assert.NotEqual(t, ^pseudo, udp.Checksum())
	packet.Free(p)
}

func TestChecksumLeavesPresentChecksumAlone(t *testing.T) {
	payload := []byte("hello")
	p, _, udp := buildUDPPacket(payload)
	udp.SetChecksum(0xbeef)

	maybeFillInChecksum(p)

	assert.EqualValues(t, 0xbeef, udp.Checksum())
	packet.Free(p)
}

func buildTCPPacket(payload []byte) *packet.Packet {
	p := packet.Allocate()
	eth := header.EthernetFromBytes(p.Data[:header.EthernetSize])
	eth.SetEtherType(header.TypeIPv4)

	ip := header.IPv4FromBytes(p.Data[header.EthernetSize:])
	ip.SetIHL(header.IPv4Size / 4)
	ip.SetProtocol(header.ProtocolTCP)

	tcpOfs := header.EthernetSize + header.IPv4Size
	tcp := header.TCPFromBytes(p.Data[tcpOfs:])
	tcp.SetDataOffset(header.TCPSize / 4)
	tcp.SetSeq(1000)
	copy(p.Data[tcpOfs+header.TCPSize:], payload)

	p.Length = uint16(tcpOfs + header.TCPSize + len(payload))
	return p
}

func TestTSDForwardsUndersizedSegmentUnchanged(t *testing.T) {
	app := TSD{MSS: 1400}.New()
	state := newAppState()
	in := link.New()
	out := link.New()
	state.Input["input"] = in
	state.Output["output"] = out

	p := buildTCPPacket(make([]byte, 100))
	in.Transmit(p)

	app.(*tsdApp).Push(state)

	require.False(t, out.Empty())
	assert.True(t, in.Empty())
	got := out.Receive()
	assert.Equal(t, p.Length, got.Length)
	packet.Free(got)
}

func TestTSDSplitsOversizedSegmentAndAdvancesSeq(t *testing.T) {
	app := TSD{MSS: 100}.New()
	state := newAppState()
	in := link.New()
	out := link.New()
	state.Input["input"] = in
	state.Output["output"] = out

	payload := make([]byte, 250)
	for i := range payload {
		payload[i] = byte(i)
	}
	p := buildTCPPacket(payload)
	in.Transmit(p)

	app.(*tsdApp).Push(state)

	var segs []*packet.Packet
	for !out.Empty() {
		segs = append(segs, out.Receive())
	}
	require.Len(t, segs, 3)

	tcpOfs := header.EthernetSize + header.IPv4Size
	seq := uint32(1000)
	for i, s := range segs {
		tcp := header.TCPFromBytes(s.Data[tcpOfs:])
		assert.Equal(t, seq, tcp.Seq(), "segment %d seq", i)
		segLen := int(s.Length) - (tcpOfs + header.TCPSize)
		seq += uint32(segLen)
		packet.Free(s)
	}
}

func TestTSDIgnoresNonTCPPackets(t *testing.T) {
	app := TSD{MSS: 100}.New()
	state := newAppState()
	in := link.New()
	out := link.New()
	state.Input["input"] = in
	state.Output["output"] = out

	p, _, _ := buildUDPPacket(make([]byte, 300))
	in.Transmit(p)

	app.(*tsdApp).Push(state)

	require.False(t, out.Empty())
	got := out.Receive()
	assert.Same(t, p, got)
	packet.Free(got)
}
