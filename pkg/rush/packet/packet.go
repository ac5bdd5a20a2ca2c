// Package packet defines the fixed-capacity packet buffer used throughout
// the engine and a bounded freelist that apps allocate packets from.
//
// A packet is at every moment owned by exactly one of: the freelist, a
// link, or the app code currently holding it. Losing track of a packet
// (letting it become unreachable without returning it via Free) is a bug;
// the freelist arms a finalizer on every packet it creates so that such a
// leak panics instead of silently shrinking the pool.
package packet

import (
	"runtime"
	"sync"
)

// PayloadSize is the maximum amount of payload any packet can carry. It is
// sized to the largest packet the Linux kernel will hand us, including
// TCP segments reassembled by generic segmentation offload.
const PayloadSize = 65535

// Packet is a single buffer of network data together with its length.
type Packet struct {
	Length uint16
	Data   [PayloadSize]byte
}

// maxPackets bounds how many packets the freelist will ever hold at once.
const maxPackets = 1_000_000

// firstAllocationStep is the number of packets created the first time the
// freelist needs to grow; each subsequent growth doubles the step.
const firstAllocationStep = 1000

type stats struct {
	mu        sync.Mutex
	frees     uint64
	freeBytes uint64
	freeBits  uint64
}

var globalStats stats

// Stats snapshots the cumulative accounting of freed packets. The engine's
// load report reads these counters; see pkg/rush/engine.
type Stats struct {
	Frees     uint64
	FreeBytes uint64
	FreeBits  uint64
}

// GetStats returns a snapshot of the current freed-packet counters.
func GetStats() Stats {
	globalStats.mu.Lock()
	defer globalStats.mu.Unlock()
	return Stats{
		Frees:     globalStats.frees,
		FreeBytes: globalStats.freeBytes,
		FreeBits:  globalStats.freeBits,
	}
}

type freelist struct {
	mu        sync.Mutex
	list      []*Packet
	allocated int
	step      int
}

var fl = &freelist{step: firstAllocationStep}

// Preallocate ensures at least n packets have been created and added to
// the freelist, growing it in the usual geometric steps if necessary.
func Preallocate(n int) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	for fl.allocated < n {
		fl.growLocked()
	}
}

func (f *freelist) growLocked() {
	if f.allocated+f.step > maxPackets {
		panic("rush/packet: packet allocation overflow")
	}
	for i := 0; i < f.step; i++ {
		p := &Packet{}
		runtime.SetFinalizer(p, leaked)
		f.list = append(f.list, p)
	}
	f.allocated += f.step
	f.step *= 2
}

func leaked(p *Packet) {
	panic("rush/packet: packet garbage collected without being freed")
}

// Allocate takes a packet with Length 0 off the freelist, growing the
// freelist first if it is empty. A reused packet's Data still holds the
// bytes of its previous use; they are not cleared.
func Allocate() *Packet {
	fl.mu.Lock()
	if len(fl.list) == 0 {
		fl.growLocked()
	}
	n := len(fl.list) - 1
	p := fl.list[n]
	fl.list[n] = nil
	fl.list = fl.list[:n]
	fl.mu.Unlock()
	return p
}

// Free returns a packet to the freelist and updates the global freed-byte
// accounting. The packet must not be used again by the caller.
func Free(p *Packet) {
	globalStats.mu.Lock()
	globalStats.frees++
	globalStats.freeBytes += uint64(p.Length)
	globalStats.freeBits += BitLength(p)
	globalStats.mu.Unlock()

	p.Length = 0

	fl.mu.Lock()
	if len(fl.list) >= maxPackets {
		fl.mu.Unlock()
		panic("rush/packet: packet freelist overflow")
	}
	fl.list = append(fl.list, p)
	fl.mu.Unlock()
}

// Clone returns a new packet holding a copy of p's data and length.
func Clone(p *Packet) *Packet {
	c := Allocate()
	copy(c.Data[:p.Length], p.Data[:p.Length])
	c.Length = p.Length
	return c
}

// BitLength returns the number of bits of physical capacity a packet of
// this length requires on the wire, accounting for the Ethernet preamble,
// minimum frame size, CRC, and inter-packet gap.
// https://netoptimizer.blogspot.com/2014/05/the-calculations-10gbits-wirespeed.html
func BitLength(p *Packet) uint64 {
	l := uint64(p.Length)
	if l < 60 {
		l = 60
	}
	return (12 + 8 + l + 4) * 8
}
