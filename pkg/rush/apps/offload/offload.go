// Package offload implements two apps that undo the checksum and
// segmentation offloads a host's network stack normally leaves to the
// NIC: Checksum fills in checksums the kernel skipped, and TSD splits
// oversized TCP segments back down to a maximum segment size.
package offload

import (
	"fmt"

	"github.com/netshaper/rush/pkg/rush/engine"
	"github.com/netshaper/rush/pkg/rush/header"
	"github.com/netshaper/rush/pkg/rush/link"
	"github.com/netshaper/rush/pkg/rush/packet"
)

// Checksum fills in TCP/UDP checksums that a sending host's kernel left
// as the checksum-offload sentinel (the ones' complement of the IPv4
// pseudo-header checksum), so that downstream apps see standards-valid
// packets. Packets that aren't IPv4, or carry IP options, or aren't
// TCP/UDP, are forwarded unexamined.
type Checksum struct{}

func (Checksum) New() engine.App { return &checksumApp{} }

type checksumApp struct{}

func (*checksumApp) Push(state *engine.AppState) {
	input := state.Input["input"]
	output := state.Output["output"]
	for !input.Empty() {
		p := input.Receive()
		maybeFillInChecksum(p)
		output.Transmit(p)
	}
}

func maybeFillInChecksum(p *packet.Packet) {
	eth := header.EthernetFromBytes(p.Data[:header.EthernetSize])
	if eth.EtherType() != header.TypeIPv4 {
		return
	}

	ipOfs := header.EthernetSize
	ip := header.IPv4FromBytes(p.Data[ipOfs:])
	if ip.IHL() > 5 {
		return
	}

	protoOfs := ipOfs + header.IPv4Size
	protoLength := p.Length - uint16(protoOfs)

	switch ip.Protocol() {
	case header.ProtocolTCP:
		tcp := header.TCPFromBytes(p.Data[protoOfs:])
		pseudo := ip.PseudoChecksum(header.ProtocolTCP, protoLength)
		if tcp.Checksum() == ^pseudo {
			payloadOfs := protoOfs + header.TCPSize
			payloadLength := int(p.Length) - payloadOfs
			tcp.ChecksumCompute(p.Data[payloadOfs:], payloadLength, ^pseudo)
		}
	case header.ProtocolUDP:
		udp := header.UDPFromBytes(p.Data[protoOfs:])
		pseudo := ip.PseudoChecksum(header.ProtocolUDP, protoLength)
		if udp.Checksum() == ^pseudo {
			payloadOfs := protoOfs + header.UDPSize
			payloadLength := int(p.Length) - payloadOfs
			udp.ChecksumCompute(p.Data[payloadOfs:], payloadLength, ^pseudo)
		}
	}
}

// TSD (TCP Segment Deoptimization) splits TCP payloads larger than MSS
// into multiple packets, counteracting the generic segmentation offload
// a host kernel normally performs. It does not compute real checksums
// for the segments it emits; it marks them with the checksum-offload
// sentinel instead, leaving that to a downstream Checksum app.
type TSD struct{ MSS uint16 }

func (c TSD) New() engine.App {
	if c.MSS == 0 {
		panic(fmt.Sprintf("offload: invalid MSS %d", c.MSS))
	}
	return &tsdApp{mss: c.MSS}
}

type tsdApp struct{ mss uint16 }

func (a *tsdApp) Push(state *engine.AppState) {
	input := state.Input["input"]
	output := state.Output["output"]
	for !input.Empty() {
		forwardTCPSegments(output, input.Receive(), a.mss)
	}
}

func forwardTCPSegments(output *link.Link, p *packet.Packet, mss uint16) {
	eth := header.EthernetFromBytes(p.Data[:header.EthernetSize])
	if eth.EtherType() != header.TypeIPv4 {
		output.Transmit(p)
		return
	}

	ipOfs := header.EthernetSize
	ip := header.IPv4FromBytes(p.Data[ipOfs:])
	if ip.IHL() > 5 || ip.Protocol() != header.ProtocolTCP {
		output.Transmit(p)
		return
	}

	tcpOfs := ipOfs + header.IPv4Size
	tcp := header.TCPFromBytes(p.Data[tcpOfs:])

	payloadOfs := min(tcpOfs+tcp.Size(), int(p.Length))
	payloadLength := int(p.Length) - payloadOfs

	if payloadLength <= int(mss) {
		output.Transmit(p)
		return
	}

	dataOfs := payloadOfs
	dataLength := payloadLength
	for dataLength > 0 {
		s := packet.Allocate()
		segLen := min(int(mss), dataLength)

		s.Length = uint16(payloadOfs + segLen)
		ip.SetTotalLength(s.Length - uint16(ipOfs))
		ip.ChecksumCompute()
		pseudo := ip.PseudoChecksum(header.ProtocolTCP, s.Length-uint16(tcpOfs))
		tcp.SetChecksum(^pseudo)

		copy(s.Data[:payloadOfs], p.Data[:payloadOfs])
		copy(s.Data[payloadOfs:payloadOfs+segLen], p.Data[dataOfs:dataOfs+segLen])
		output.Transmit(s)

		dataOfs += segLen
		dataLength -= segLen
		tcp.SetSeq(tcp.Seq() + uint32(segLen))
	}
	packet.Free(p)
}
