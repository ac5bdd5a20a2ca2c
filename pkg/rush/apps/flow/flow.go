// Package flow implements flow classification (Split) and per-flow
// traffic accounting (Top) over Ethernet/IPv4/TCP/UDP packets.
package flow

import (
	"github.com/netshaper/rush/pkg/rush/engine"
	"github.com/netshaper/rush/pkg/rush/header"
	"github.com/netshaper/rush/pkg/rush/packet"
)

// Dir selects which address/port of a packet a Flow or Top app inspects.
type Dir int

const (
	DirSrc Dir = iota
	DirDst
)

// Flow describes a single flow-classification rule. A zero IP or
// Protocol matches any value; IPv6, address prefixes, and protocols
// other than TCP/UDP port matching are not implemented, matching the
// original engine.
type Flow struct {
	Label    string
	Dir      Dir
	IP       header.Address
	Protocol uint8
	PortMin  uint16
	PortMax  uint16
}

// Split routes packets to a labeled output port based on the first
// matching Flow rule, falling back to the "default" port.
type Split struct{ Flows []Flow }

func (c Split) New() engine.App {
	return &splitApp{flows: append([]Flow(nil), c.Flows...)}
}

type splitApp struct{ flows []Flow }

func (a *splitApp) Push(state *engine.AppState) {
	input := state.Input["input"]
	def := state.Output["default"]
	for !input.Empty() {
		p := input.Receive()
		output := def
		for _, f := range a.flows {
			if flowMatch(p, f) {
				output = state.Output[f.Label]
				break
			}
		}
		output.Transmit(p)
	}
}

func flowMatch(p *packet.Packet, f Flow) bool {
	eth := header.EthernetFromBytes(p.Data[:])
	if eth.EtherType() != header.TypeIPv4 {
		return false
	}

	ip := header.IPv4FromBytes(p.Data[header.EthernetSize:])
	if ip.IHL() > 5 {
		return false
	}

	addr := ip.Dst()
	if f.Dir == DirSrc {
		addr = ip.Src()
	}
	if !isZeroAddress(f.IP) && addr != f.IP {
		return false
	}
	if f.Protocol != 0 && ip.Protocol() != f.Protocol {
		return false
	}

	protoOfs := header.EthernetSize + header.IPv4Size
	var port uint16
	switch f.Protocol {
	case header.ProtocolTCP:
		tcp := header.TCPFromBytes(p.Data[protoOfs:])
		port = tcp.DstPort()
		if f.Dir == DirSrc {
			port = tcp.SrcPort()
		}
	case header.ProtocolUDP:
		udp := header.UDPFromBytes(p.Data[protoOfs:])
		port = udp.DstPort()
		if f.Dir == DirSrc {
			port = udp.SrcPort()
		}
	default:
		return true
	}
	return port >= f.PortMin && port <= f.PortMax
}

func isZeroAddress(a header.Address) bool {
	return a == header.Address{}
}
