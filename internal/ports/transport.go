package ports

import (
	"context"
	"net"
)

// DatagramWriter sends datagrams to a fixed destination.
type DatagramWriter interface {
	// WriteDatagram sends b as a single datagram.
	WriteDatagram(ctx context.Context, b []byte) error

	Close() error
}

// DatagramReader receives datagrams.
type DatagramReader interface {
	// ReadDatagram reads one datagram into buf and returns its length and source.
	// Returns net.ErrClosed after Close.
	ReadDatagram(buf []byte) (int, net.Addr, error)

	// LocalAddr returns the bound address.
	LocalAddr() net.Addr

	Close() error
}
