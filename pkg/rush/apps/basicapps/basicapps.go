// Package basicapps provides the small set of apps used to build and test
// app networks: a synthetic packet source, a sink, and the two basic
// fan-in/fan-out shapes (Join, Tee).
package basicapps

import (
	"github.com/netshaper/rush/pkg/rush/engine"
	"github.com/netshaper/rush/pkg/rush/packet"
)

// Source generates synthetic packets of a fixed size on every output
// port, as fast as link capacity allows.
type Source struct{ Size uint16 }

func (c Source) New() engine.App { return &sourceApp{size: c.Size} }

type sourceApp struct{ size uint16 }

func (a *sourceApp) Pull(state *engine.AppState) {
	for _, output := range state.Output {
		for i := 0; i < engine.PullNPackets; i++ {
			p := packet.Allocate()
			clear(p.Data[:a.size])
			p.Length = a.size
			output.Transmit(p)
		}
	}
}

// Sink drains and frees every packet it receives.
type Sink struct{}

func (Sink) New() engine.App { return &sinkApp{} }

type sinkApp struct{}

func (*sinkApp) Push(state *engine.AppState) {
	for _, input := range state.Input {
		for !input.Empty() {
			packet.Free(input.Receive())
		}
	}
}

// Join forwards packets from every input port to the single port named
// "output".
type Join struct{}

func (Join) New() engine.App { return &joinApp{} }

type joinApp struct{}

func (*joinApp) Push(state *engine.AppState) {
	output, ok := state.Output["output"]
	if !ok {
		return
	}
	for _, input := range state.Input {
		for !input.Empty() {
			output.Transmit(input.Receive())
		}
	}
}

// Tee copies every input packet to every output port, freeing the
// original once it has been cloned to each destination.
type Tee struct{}

func (Tee) New() engine.App { return &teeApp{} }

type teeApp struct{}

func (*teeApp) Push(state *engine.AppState) {
	for _, input := range state.Input {
		for !input.Empty() {
			p := input.Receive()
			for _, output := range state.Output {
				output.Transmit(packet.Clone(p))
			}
			packet.Free(p)
		}
	}
}
