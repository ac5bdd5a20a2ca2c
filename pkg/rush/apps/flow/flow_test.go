package flow

import (
	"os"
	"path/filepath"
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

func buildTCPPacket(src, dst header.Address, srcPort, dstPort uint16, payloadLen int) *packet.Packet {
	p := packet.Allocate()
	eth := header.EthernetFromBytes(p.Data[:header.EthernetSize])
	eth.SetEtherType(header.TypeIPv4)

	ip := header.IPv4FromBytes(p.Data[header.EthernetSize:])
	ip.SetIHL(header.IPv4Size / 4)
	ip.SetProtocol(header.ProtocolTCP)
	ip.SetSrc(src)
	ip.SetDst(dst)

	tcpBase := header.EthernetSize + header.IPv4Size
	tcp := header.TCPFromBytes(p.Data[tcpBase:])
	tcp.SetSrcPort(srcPort)
	tcp.SetDstPort(dstPort)

	p.Length = uint16(tcpBase + header.TCPSize + payloadLen)
	return p
}

func addr(a, b, c, d byte) header.Address { return header.Address{a, b, c, d} }

func TestSplitRoutesToMatchingFlowLabel(t *testing.T) {
	app := Split{Flows: []Flow{
		{Label: "web", Dir: DirDst, Protocol: header.ProtocolTCP, PortMin: 443, PortMax: 443},
	}}.New()
	state := newAppState()
	in := link.New()
	web := link.New()
	def := link.New()
	state.Input["input"] = in
	state.Output["web"] = web
	state.Output["default"] = def

	in.Transmit(buildTCPPacket(addr(10, 0, 0, 1), addr(10, 0, 0, 2), 51000, 443, 0))
	in.Transmit(buildTCPPacket(addr(10, 0, 0, 1), addr(10, 0, 0, 2), 51000, 22, 0))

	app.(*splitApp).Push(state)

	require.False(t, web.Empty())
	packet.Free(web.Receive())
	require.False(t, def.Empty())
	packet.Free(def.Receive())
	assert.True(t, in.Empty())
}

func TestSplitFallsThroughToDefaultWithoutMatch(t *testing.T) {
	app := Split{Flows: []Flow{
		{Label: "web", Dir: DirDst, Protocol: header.ProtocolTCP, PortMin: 443, PortMax: 443},
	}}.New()
	state := newAppState()
	in := link.New()
	def := link.New()
	state.Input["input"] = in
	state.Output["default"] = def

	in.Transmit(buildTCPPacket(addr(10, 0, 0, 1), addr(10, 0, 0, 2), 51000, 8080, 0))
	app.(*splitApp).Push(state)

	require.False(t, def.Empty())
	packet.Free(def.Receive())
}

func TestSplitWildcardIPMatchesAnyAddress(t *testing.T) {
	app := Split{Flows: []Flow{
		{Label: "any", Dir: DirSrc, Protocol: header.ProtocolTCP, PortMin: 0, PortMax: 65535},
	}}.New()
	state := newAppState()
	in := link.New()
	any := link.New()
	state.Input["input"] = in
	state.Output["any"] = any

	in.Transmit(buildTCPPacket(addr(172, 16, 4, 4), addr(8, 8, 8, 8), 1234, 443, 0))
	app.(*splitApp).Push(state)

	require.False(t, any.Empty())
	packet.Free(any.Receive())
}

func TestTopCountsIntoMappedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowtop.bin")
	app := Top{Path: path, Dir: DirDst}.New()
	state := newAppState()
	in := link.New()
	out := link.New()
	state.Input["input"] = in
	state.Output["output"] = out

	p := buildTCPPacket(addr(10, 0, 0, 1), addr(10, 0, 0, 2), 51000, 443, 100)
	in.Transmit(p)

	app.(*topApp).Push(state)
	require.False(t, out.Empty())
	packet.Free(out.Receive())

	app.(*topApp).Stop()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, TopFileSize)

	id := flowID(binaryLittleEndianUint32(addr(10, 0, 0, 2)), header.ProtocolTCP, 443)
	slot := int(fmix64(id)&topMask) * slotSize
	packets := littleEndianUint64(data[slot : slot+8])
	assert.EqualValues(t, 1, packets)
	storedID := littleEndianUint64(data[slot+16 : slot+24])
	assert.Equal(t, id, storedID)
}

func binaryLittleEndianUint32(a header.Address) uint32 {
	return uint32(a[0]) | uint32(a[1])<<8 | uint32(a[2])<<16 | uint32(a[3])<<24
}

func littleEndianUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
