package flow

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/netshaper/rush/pkg/rush/engine"
	"github.com/netshaper/rush/pkg/rush/header"
	"github.com/netshaper/rush/pkg/rush/packet"
	"golang.org/x/sys/unix"
)

const (
	// topSlots is the number of counter slots in a flow-top file.
	topSlots = 2048
	topMask  = topSlots - 1

	// slotSize is the byte layout of one slot: three little-endian u64
	// words (packets, bits, id).
	slotSize = 24

	// TopFileSize is the total size of the memory-mapped counter file.
	TopFileSize = topSlots * slotSize
)

// Top profiles traffic into a fixed-size table of per-flow counters,
// backed by a file memory-mapped with golang.org/x/sys/unix so that the
// counters survive process restarts and can be read by another process
// without going through this engine at all.
type Top struct {
	// Path is the file the counter table is memory-mapped from. It is
	// created and truncated to TopFileSize if it doesn't already have
	// that size.
	Path string
	Dir  Dir
}

func (c Top) New() engine.App {
	mapped, err := openTopMap(c.Path)
	if err != nil {
		panic(fmt.Sprintf("flow: mmap flow-top file %q: %v", c.Path, err))
	}
	return &topApp{mapped: mapped, dir: c.Dir}
}

type topApp struct {
	mapped []byte
	dir    Dir
}

func (a *topApp) Stop() { _ = unix.Munmap(a.mapped) }

func (a *topApp) Push(state *engine.AppState) {
	input := state.Input["input"]
	output := state.Output["output"]
	for !input.Empty() {
		p := input.Receive()
		topCount(a.mapped, a.dir, p)
		output.Transmit(p)
	}
}

func openTopMap(path string) ([]byte, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() != TopFileSize {
		if err := f.Truncate(TopFileSize); err != nil {
			return nil, err
		}
	}
	return unix.Mmap(int(f.Fd()), 0, TopFileSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

// topCount classifies p by address/protocol/port in direction dir and
// increments the matching slot's packet/bit counters, creating the slot
// if it was unused.
func topCount(mapped []byte, dir Dir, p *packet.Packet) {
	var addr uint32
	var protocol uint8
	var port uint16

	eth := header.EthernetFromBytes(p.Data[:])
	if eth.EtherType() == header.TypeIPv4 {
		ip := header.IPv4FromBytes(p.Data[header.EthernetSize:])
		a := ip.Dst()
		if dir == DirSrc {
			a = ip.Src()
		}
		// The ipv4 component of a flow id is the address's bytes read as a
		// little-endian u32, not the dotted-quad numeric value: this
		// matches the raw in-memory reinterpretation the original engine
		// performs and is what TestTopCountsIntoMappedFile checks.
		addr = binary.LittleEndian.Uint32(a[:])
		protocol = ip.Protocol()

		if ip.IHL() == IPv4MinIHL {
			ofs := header.EthernetSize + header.IPv4Size
			switch protocol {
			case header.ProtocolTCP:
				tcp := header.TCPFromBytes(p.Data[ofs:])
				port = tcp.DstPort()
				if dir == DirSrc {
					port = tcp.SrcPort()
				}
			case header.ProtocolUDP:
				udp := header.UDPFromBytes(p.Data[ofs:])
				port = udp.DstPort()
				if dir == DirSrc {
					port = udp.SrcPort()
				}
			}
		}
	}

	id := flowID(addr, protocol, port)
	slot := int(fmix64(id)&topMask) * slotSize
	bits := uint64(p.Length) * 8

	packets := binary.LittleEndian.Uint64(mapped[slot : slot+8])
	binary.LittleEndian.PutUint64(mapped[slot:slot+8], packets+1)

	curBits := binary.LittleEndian.Uint64(mapped[slot+8 : slot+16])
	binary.LittleEndian.PutUint64(mapped[slot+8:slot+16], curBits+bits)

	binary.LittleEndian.PutUint64(mapped[slot+16:slot+24], id)
}

// IPv4MinIHL is the IHL value of an IPv4 header with no options, the only
// shape Top and Split parse port numbers out of.
const IPv4MinIHL = header.IPv4Size / 4

func flowID(addr uint32, protocol uint8, port uint16) uint64 {
	return uint64(port)<<48 | uint64(protocol)<<32 | uint64(addr)
}

// fmix64 is Murmur3's 64-bit finalizer, used to scatter flow ids evenly
// across the counter table.
func fmix64(k uint64) uint64 {
	k ^= k >> 33
	k *= 0xff51afd7ed558ccd
	k ^= k >> 33
	k *= 0xc4ceb9fe1a85ec53
	k ^= k >> 33
	return k
}
