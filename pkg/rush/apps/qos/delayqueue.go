package qos

import (
	"time"

	"github.com/netshaper/rush/pkg/rush/packet"
)

// delayEntry is either a bare delay marker (queued ahead of a batch of
// packets to push their transmission time out uniformly) or a packet
// waiting to be forwarded once the queue has worked through any delay
// markers ahead of it.
type delayEntry struct {
	isDelay bool
	delay   time.Time
	packet  *packet.Packet
}

// delayQueue is a bounded FIFO of packets interleaved with delay markers,
// used by Latency and Jitter to hold packets until their transmission
// time arrives.
type delayQueue struct {
	items    []delayEntry
	capacity int
}

func newDelayQueue(capacity int) *delayQueue {
	return &delayQueue{capacity: capacity}
}

func (q *delayQueue) full() bool  { return len(q.items) >= q.capacity }
func (q *delayQueue) empty() bool { return len(q.items) == 0 }

func (q *delayQueue) enqueueDelay(ttx time.Time) {
	if q.full() {
		panic("qos: delay queue overflow")
	}
	q.items = append(q.items, delayEntry{isDelay: true, delay: ttx})
}

func (q *delayQueue) enqueuePacket(p *packet.Packet) {
	if q.full() {
		panic("qos: delay queue overflow")
	}
	q.items = append(q.items, delayEntry{packet: p})
}

// needTx reports whether the head of the queue is ready to transmit,
// popping a delay marker whose time has arrived.
func (q *delayQueue) needTx(now time.Time) bool {
	front := &q.items[0]
	if !front.isDelay {
		return true
	}
	if !now.Before(front.delay) {
		q.items = q.items[1:]
		return true
	}
	return false
}

func (q *delayQueue) dequeuePacket() *packet.Packet {
	front := q.items[0]
	q.items = q.items[1:]
	if front.isDelay {
		panic("qos: expected packet, found delay marker")
	}
	return front.packet
}

// drain frees every queued packet, discarding delay markers. Call this
// when an app backed by a delayQueue is torn down.
func (q *delayQueue) drain() {
	for !q.empty() {
		front := q.items[0]
		q.items = q.items[1:]
		if !front.isDelay {
			packet.Free(front.packet)
		}
	}
}
