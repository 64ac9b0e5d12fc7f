package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"
)

// udpReadBufferSize fits any datagram a sender can reasonably emit; RTP
// over UDP stays under the path MTU in practice.
const udpReadBufferSize = 64 * 1024

// UDPSource receives datagrams from a bound UDP socket. An idle timeout
// of zero waits forever.
type UDPSource struct {
	log         *slog.Logger
	conn        *net.UDPConn
	idleTimeout time.Duration
	buf         []byte
}

// ListenUDP binds addr and returns a source over the socket. If log is
// nil, slog.Default() is used.
func ListenUDP(addr string, idleTimeout time.Duration, log *slog.Logger) (*UDPSource, error) {
	if log == nil {
		log = slog.Default()
	}
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("udp resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("udp listen on %s: %w", addr, err)
	}
	log = log.With("component", "udp-source")
	log.Info("listening", "addr", conn.LocalAddr())
	return &UDPSource{
		log:         log,
		conn:        conn,
		idleTimeout: idleTimeout,
		buf:         make([]byte, udpReadBufferSize),
	}, nil
}

// LocalAddr returns the bound address, useful when listening on port 0.
func (s *UDPSource) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// Receive blocks for the next datagram. It returns io.EOF once the idle
// timeout elapses with no traffic, and the context error if ctx is
// cancelled. The returned data is valid until the next call.
func (s *UDPSource) Receive(ctx context.Context) (Datagram, error) {
	deadline := time.Time{}
	if s.idleTimeout > 0 {
		deadline = time.Now().Add(s.idleTimeout)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok && (deadline.IsZero() || ctxDeadline.Before(deadline)) {
		deadline = ctxDeadline
	}
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return Datagram{}, fmt.Errorf("udp set deadline: %w", err)
	}

	stop := context.AfterFunc(ctx, func() {
		s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	n, addr, err := s.conn.ReadFromUDP(s.buf)
	if err != nil {
		if ctx.Err() != nil {
			return Datagram{}, ctx.Err()
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			s.log.Info("idle timeout, ending session", "timeout", s.idleTimeout)
			return Datagram{}, io.EOF
		}
		return Datagram{}, fmt.Errorf("udp read: %w", err)
	}
	return Datagram{Data: s.buf[:n], Addr: addr}, nil
}

// Close releases the socket.
func (s *UDPSource) Close() error {
	return s.conn.Close()
}
