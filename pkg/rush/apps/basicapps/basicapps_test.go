package basicapps

import (
	"testing"

	"github.com/netshaper/rush/pkg/rush/engine"
	"github.com/netshaper/rush/pkg/rush/link"
	"github.com/netshaper/rush/pkg/rush/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAppState(app engine.App) *engine.AppState {
	return &engine.AppState{
		App:    app,
		Input:  make(map[string]*link.Link),
		Output: make(map[string]*link.Link),
	}
}

func TestSourceFillsAndTransmits(t *testing.T) {
	app := Source{Size: 64}.New()
	state := newAppState(app)
	out := link.New()
	state.Output["output"] = out

	app.(*sourceApp).Pull(state)

	require.False(t, out.Empty())
	p := out.Receive()
	assert.EqualValues(t, 64, p.Length)
	for _, b := range p.Data[:64] {
		assert.Zero(t, b)
	}
	packet.Free(p)
}

func TestSinkDrainsAllInputs(t *testing.T) {
	app := Sink{}.New()
	state := newAppState(app)
	in := link.New()
	state.Input["input"] = in

	p := packet.Allocate()
	p.Length = 10
	in.Transmit(p)

	app.(*sinkApp).Push(state)
	assert.True(t, in.Empty())
}

func TestJoinForwardsAllInputsToOutput(t *testing.T) {
	app := Join{}.New()
	state := newAppState(app)
	in1, in2 := link.New(), link.New()
	out := link.New()
	state.Input["in1"] = in1
	state.Input["in2"] = in2
	state.Output["output"] = out

	p1, p2 := packet.Allocate(), packet.Allocate()
	in1.Transmit(p1)
	in2.Transmit(p2)

	app.(*joinApp).Push(state)

	assert.True(t, in1.Empty())
	assert.True(t, in2.Empty())
	count := 0
	for !out.Empty() {
		packet.Free(out.Receive())
		count++
	}
	assert.Equal(t, 2, count)
}

func TestJoinWithoutOutputIsANoop(t *testing.T) {
	app := Join{}.New()
	state := newAppState(app)
	in := link.New()
	state.Input["input"] = in
	in.Transmit(packet.Allocate())

	assert.NotPanics(t, func() { app.(*joinApp).Push(state) })
	assert.False(t, in.Empty())
	packet.Free(in.Receive())
}

func TestTeeClonesToEveryOutputAndFreesOriginal(t *testing.T) {
	app := Tee{}.New()
	state := newAppState(app)
	in := link.New()
	out1, out2 := link.New(), link.New()
	state.Input["input"] = in
	state.Output["out1"] = out1
	state.Output["out2"] = out2

	p := packet.Allocate()
	p.Length = 7
	in.Transmit(p)

	app.(*teeApp).Push(state)

	require.False(t, out1.Empty())
	require.False(t, out2.Empty())
	a := out1.Receive()
	b := out2.Receive()
	assert.EqualValues(t, 7, a.Length)
	assert.EqualValues(t, 7, b.Length)
	assert.NotSame(t, a, b)
	packet.Free(a)
	packet.Free(b)
}
