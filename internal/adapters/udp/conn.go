// Package udp binds the datagram ports to UDP sockets.
package udp

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Socket buffer defaults from the capture scripts.
const (
	DefaultSendBuffer    = 65507 * 2
	DefaultReceiveBuffer = 256 * 1024
)

// Writer sends datagrams to one fixed destination.
type Writer struct {
	conn *net.UDPConn
}

// Dial connects a UDP socket to addr. sendBuffer <= 0 keeps the OS default.
func Dial(addr string, sendBuffer int) (*Writer, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if sendBuffer > 0 {
		if err := conn.SetWriteBuffer(sendBuffer); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set send buffer: %w", err)
		}
	}
	return &Writer{conn: conn}, nil
}

// WriteDatagram implements ports.DatagramWriter. A context deadline becomes
// the socket write deadline.
func (w *Writer) WriteDatagram(ctx context.Context, b []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline, _ := ctx.Deadline()
	if err := w.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	_, err := w.conn.Write(b)
	return err
}

// LocalAddr returns the local address of the socket.
func (w *Writer) LocalAddr() net.Addr { return w.conn.LocalAddr() }

// RemoteAddr returns the destination.
func (w *Writer) RemoteAddr() net.Addr { return w.conn.RemoteAddr() }

// Close implements ports.DatagramWriter.
func (w *Writer) Close() error { return w.conn.Close() }

// Reader receives datagrams on a bound UDP socket.
type Reader struct {
	conn *net.UDPConn
}

// Listen binds addr. receiveBuffer <= 0 keeps the OS default.
func Listen(addr string, receiveBuffer int) (*Reader, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	if receiveBuffer > 0 {
		if err := conn.SetReadBuffer(receiveBuffer); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set receive buffer: %w", err)
		}
	}
	return &Reader{conn: conn}, nil
}

// ReadDatagram implements ports.DatagramReader.
func (r *Reader) ReadDatagram(buf []byte) (int, net.Addr, error) {
	n, addr, err := r.conn.ReadFromUDP(buf)
	if err != nil {
		return 0, nil, err
	}
	return n, addr, nil
}

// SetReadDeadline bounds the next ReadDatagram.
func (r *Reader) SetReadDeadline(t time.Time) error { return r.conn.SetReadDeadline(t) }

// LocalAddr implements ports.DatagramReader.
func (r *Reader) LocalAddr() net.Addr { return r.conn.LocalAddr() }

// Close implements ports.DatagramReader.
func (r *Reader) Close() error { return r.conn.Close() }

// ResolveSender parses an expected sender as host:port or a bare host.
// A bare host matches any source port.
func ResolveSender(s string) (*net.UDPAddr, error) {
	if s == "" {
		return nil, nil
	}
	if _, _, err := net.SplitHostPort(s); err == nil {
		return net.ResolveUDPAddr("udp", s)
	}
	ip, err := net.ResolveIPAddr("ip", s)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", s, err)
	}
	return &net.UDPAddr{IP: ip.IP, Zone: ip.Zone}, nil
}
