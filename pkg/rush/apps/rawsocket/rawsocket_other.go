//go:build !linux

// Package rawsocket implements a NIC-facing app backed by an AF_PACKET
// raw socket. Raw packet sockets are a Linux-only facility; on other
// platforms RawSocket refuses to construct rather than silently no-op.
package rawsocket

import (
	"fmt"
	"runtime"

	"github.com/netshaper/rush/pkg/rush/engine"
)

// RawSocket is accepted on every platform so configurations can name it
// uniformly, but New panics outside Linux.
type RawSocket struct{ Ifname string }

func (c RawSocket) New() engine.App {
	panic(fmt.Sprintf("rawsocket: AF_PACKET sockets are not supported on %s", runtime.GOOS))
}
