// Package qos implements traffic-shaping apps: probabilistic loss,
// constant latency, jitter, and token-bucket rate limiting.
package qos

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/netshaper/rush/pkg/rush/engine"
	"github.com/netshaper/rush/pkg/rush/packet"
)

// Loss drops a fixed fraction of forwarded packets.
type Loss struct {
	// Ratio is the fraction of packets dropped, in [0.0, 1.0].
	Ratio float64
}

func (c Loss) New() engine.App {
	if c.Ratio < 0.0 || c.Ratio > 1.0 {
		panic(fmt.Sprintf("qos: loss ratio %v out of range [0.0, 1.0]", c.Ratio))
	}
	return &lossApp{ratio: c.Ratio}
}

type lossApp struct{ ratio float64 }

func (a *lossApp) Push(state *engine.AppState) {
	input := state.Input["input"]
	output := state.Output["output"]
	for !input.Empty() {
		p := input.Receive()
		if rand.Float64() >= a.ratio {
			output.Transmit(p)
		} else {
			packet.Free(p)
		}
	}
}

// Latency delays every forwarded packet by a fixed amount of time,
// preserving order.
type Latency struct {
	Delay    time.Duration
	Capacity int
}

func (c Latency) New() engine.App {
	return &latencyApp{delay: c.Delay, queue: newDelayQueue(c.Capacity)}
}

type latencyApp struct {
	delay time.Duration
	queue *delayQueue
}

func (a *latencyApp) Push(state *engine.AppState) {
	input := state.Input["input"]
	if !input.Empty() && !a.queue.full() {
		a.queue.enqueueDelay(state.Now.Add(a.delay))
	}
	for !input.Empty() && !a.queue.full() {
		a.queue.enqueuePacket(input.Receive())
	}
}

func (a *latencyApp) Pull(state *engine.AppState) {
	output := state.Output["output"]
	for !a.queue.empty() && a.queue.needTx(state.Now) {
		output.Transmit(a.queue.dequeuePacket())
	}
}

func (a *latencyApp) Stop() { a.queue.drain() }

// Jitter delays forwarded packets by a random amount, optionally
// reordering packets that weren't delayed ahead of ones that were.
type Jitter struct {
	// Max is the maximum jitter delay applied to a packet.
	Max time.Duration
	// Strength is the probability, in [0.0, 1.0], that a given packet is
	// delayed at all.
	Strength float64
	// Reorder, when true, forwards undelayed packets immediately instead
	// of queueing them in arrival order behind delayed ones.
	Reorder  bool
	Capacity int
}

func (c Jitter) New() engine.App {
	return &jitterApp{
		max:      c.Max,
		strength: c.Strength,
		reorder:  c.Reorder,
		queue:    newDelayQueue(c.Capacity),
	}
}

type jitterApp struct {
	max      time.Duration
	strength float64
	reorder  bool
	queue    *delayQueue
}

func (a *jitterApp) Push(state *engine.AppState) {
	input := state.Input["input"]
	output := state.Output["output"]
	for !input.Empty() && !a.queue.full() {
		addJitter := rand.Float64() < a.strength
		if addJitter {
			jitter := time.Duration(rand.Float64() * float64(a.max))
			a.queue.enqueueDelay(state.Now.Add(jitter))
		}
		switch {
		case !addJitter && a.reorder:
			output.Transmit(input.Receive())
		case !a.queue.full():
			a.queue.enqueuePacket(input.Receive())
		}
	}
}

func (a *jitterApp) Pull(state *engine.AppState) {
	output := state.Output["output"]
	for !a.queue.empty() && a.queue.needTx(state.Now) {
		output.Transmit(a.queue.dequeuePacket())
	}
}

func (a *jitterApp) Stop() { a.queue.drain() }

// RateLimiter shapes throughput to a target bitrate using a single token
// bucket, dropping packets that would overdraw it.
type RateLimiter struct {
	// Rate is the target throughput in bits per second.
	Rate uint64
}

const (
	rateLimiterScale = 1_000_000 // microseconds per second
	rateLimiterTick  = 100       // microseconds between token refills
)

func (c RateLimiter) New() engine.App {
	capacity := c.Rate * rateLimiterScale
	initial := c.Rate * rateLimiterScale / (rateLimiterScale / rateLimiterTick)
	return &rateLimiterApp{
		rate:     c.Rate,
		capacity: capacity,
		tokens:   initial,
	}
}

type rateLimiterApp struct {
	rate     uint64
	capacity uint64
	tokens   uint64
	lastTime time.Time
}

func (a *rateLimiterApp) Push(state *engine.AppState) {
	input := state.Input["input"]
	output := state.Output["output"]

	if a.lastTime.IsZero() {
		a.lastTime = state.Now
	} else if usElapsed := uint64(state.Now.Sub(a.lastTime).Microseconds()); usElapsed >= rateLimiterTick {
		a.lastTime = state.Now
		a.tokens = min(a.tokens+a.rate*usElapsed, a.capacity)
	}

	for !input.Empty() {
		p := input.Receive()
		cost := packet.BitLength(p) * rateLimiterScale
		if cost <= a.tokens {
			a.tokens -= cost
			output.Transmit(p)
		} else {
			packet.Free(p)
		}
	}
}
