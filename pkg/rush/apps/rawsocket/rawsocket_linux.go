//go:build linux

// Package rawsocket implements a NIC-facing app backed by an AF_PACKET
// raw socket: pull reads frames off the wire, push writes them back out.
package rawsocket

import (
	"fmt"

	"github.com/netshaper/rush/pkg/rush/engine"
	"github.com/netshaper/rush/pkg/rush/packet"
	"golang.org/x/sys/unix"
)

// RawSocket binds a non-blocking AF_PACKET socket to a network interface
// and exposes it as a pull/push app.
type RawSocket struct{ Ifname string }

func (c RawSocket) New() engine.App {
	fd, err := openRawSocket(c.Ifname)
	if err != nil {
		panic(fmt.Sprintf("rawsocket: open %q: %v", c.Ifname, err))
	}
	return &rawSocketApp{fd: fd}
}

type rawSocketApp struct{ fd int }

func (a *rawSocketApp) Pull(state *engine.AppState) {
	output, ok := state.Output["output"]
	if !ok {
		return
	}
	for i := 0; i < engine.PullNPackets && canPoll(a.fd, unix.POLLIN); i++ {
		p := packet.Allocate()
		n, err := unix.Read(a.fd, p.Data[:])
		if err != nil {
			packet.Free(p)
			if err == unix.EAGAIN {
				return
			}
			panic(fmt.Sprintf("rawsocket: read: %v", err))
		}
		p.Length = uint16(n)
		output.Transmit(p)
	}
}

func (a *rawSocketApp) Push(state *engine.AppState) {
	input, ok := state.Input["input"]
	if !ok {
		return
	}
	for !input.Empty() && canPoll(a.fd, unix.POLLOUT) {
		p := input.Receive()
		n, err := unix.Write(a.fd, p.Data[:p.Length])
		if err != nil || n != int(p.Length) {
			packet.Free(p)
			panic(fmt.Sprintf("rawsocket: write: %v", err))
		}
		packet.Free(p)
	}
}

func (a *rawSocketApp) Stop() { _ = unix.Close(a.fd) }

func openRawSocket(ifname string) (int, error) {
	index, err := unix.IfNametoindex(ifname)
	if err != nil {
		return -1, err
	}

	proto := htons(unix.ETH_P_ALL)
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW|unix.SOCK_NONBLOCK, int(proto))
	if err != nil {
		return -1, err
	}

	addr := &unix.SockaddrLinklayer{Protocol: proto, Ifindex: int(index)}
	if err := unix.Bind(fd, addr); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// canPoll blocks for at most an instant to check whether fd is ready for
// the given event, retrying on EINTR, matching the original's select(2)
// retry loop.
func canPoll(fd int, events int16) bool {
	fds := []unix.PollFd{{Fd: int32(fd), Events: events}}
	for {
		n, err := unix.Poll(fds, 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			panic(fmt.Sprintf("rawsocket: poll: %v", err))
		}
		return n == 1 && fds[0].Revents&events != 0
	}
}

func htons(v int) uint16 {
	return uint16(v>>8) | uint16(v<<8)
}
