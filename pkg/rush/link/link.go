// Package link implements the bounded, single-producer single-consumer
// ring buffers that carry packets between apps in the engine's network.
package link

import "github.com/netshaper/rush/pkg/rush/packet"

// ringSize is the size of the underlying circular buffer. One slot is
// always left empty to distinguish a full ring from an empty one, so the
// usable capacity is ringSize-1.
const ringSize = 1024

// MaxPackets is the number of packets a Link can hold before Transmit
// starts dropping.
const MaxPackets = ringSize - 1

// Link is a unidirectional, fixed-capacity queue of packets.
//
// A Link must not be discarded while non-empty; Close drains and frees any
// packets still queued, mirroring the invariant that every packet is
// always owned by exactly one of: the freelist, a link, or an app.
type Link struct {
	packets [ringSize]*packet.Packet
	read    int
	write   int

	TxPackets uint64
	TxBytes   uint64
	TxDrop    uint64
	RxPackets uint64
	RxBytes   uint64
}

// New allocates a new, empty Link.
func New() *Link {
	return &Link{}
}

// Empty reports whether the link has no queued packets.
func (l *Link) Empty() bool {
	return l.read == l.write
}

// Full reports whether the link has no remaining capacity.
func (l *Link) Full() bool {
	return (l.write+1)&(ringSize-1) == l.read
}

// Receive dequeues the next packet. It panics if the link is empty; callers
// must check Empty first.
func (l *Link) Receive() *packet.Packet {
	if l.Empty() {
		panic("rush/link: receive from empty link")
	}
	p := l.packets[l.read]
	l.packets[l.read] = nil
	l.read = (l.read + 1) & (ringSize - 1)
	l.RxPackets++
	l.RxBytes += uint64(p.Length)
	return p
}

// Transmit enqueues a packet on the link. If the link is full the packet is
// freed and counted as dropped instead.
func (l *Link) Transmit(p *packet.Packet) {
	if l.Full() {
		l.TxDrop++
		packet.Free(p)
		return
	}
	l.TxPackets++
	l.TxBytes += uint64(p.Length)
	l.packets[l.write] = p
	l.write = (l.write + 1) & (ringSize - 1)
}

// Close drains and frees any packets still queued on the link. Call this
// when an app (and its links) is being torn down.
func (l *Link) Close() {
	for !l.Empty() {
		packet.Free(l.Receive())
	}
}
