package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	srtgo "github.com/zsiec/srtgo"
)

// srtReadBufferSize is the read buffer for SRT socket reads.
// 1316 bytes = 7 MPEG-TS packets (188 * 7), the standard SRT payload size.
const srtReadBufferSize = 1316 * 10

// srtLatencyNs is the SRT latency setting in nanoseconds (120ms).
const srtLatencyNs = 120_000_000

// SRTSource listens on an SRT port, accepts the first publisher, and
// yields its reads as datagrams. Later connection attempts are rejected
// while the first publisher is active.
type SRTSource struct {
	log           *slog.Logger
	closeListener func()
	conn          *srtgo.Conn
	buf           []byte
}

// ListenSRT binds addr and waits for a publisher with a non-empty stream
// ID. It blocks until a connection is accepted or ctx is cancelled. If
// log is nil, slog.Default() is used.
func ListenSRT(ctx context.Context, addr string, log *slog.Logger) (*SRTSource, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "srt-source")

	cfg := srtgo.DefaultConfig()
	cfg.Latency = srtLatencyNs

	l, err := srtgo.Listen(addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("SRT listen on %s: %w", addr, err)
	}
	log.Info("listening", "addr", addr)

	l.SetAcceptRejectFunc(func(req srtgo.ConnRequest) srtgo.RejectReason {
		if req.StreamID == "" {
			return srtgo.RejPeer
		}
		return 0
	})

	stop := context.AfterFunc(ctx, func() { l.Close() })
	defer stop()

	conn, err := l.Accept()
	if err != nil {
		l.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("SRT accept: %w", err)
	}
	log.Info("publish", "stream_id", conn.StreamID(), "remote", conn.RemoteAddr())

	return &SRTSource{
		log:           log,
		closeListener: func() { l.Close() },
		conn:          conn,
		buf:           make([]byte, srtReadBufferSize),
	}, nil
}

// StreamID returns the publisher's stream ID.
func (s *SRTSource) StreamID() string { return s.conn.StreamID() }

// Receive blocks for the next read from the publisher. A closed
// connection ends the session with io.EOF. The returned data is valid
// until the next call.
func (s *SRTSource) Receive(ctx context.Context) (Datagram, error) {
	if ctx.Err() != nil {
		return Datagram{}, ctx.Err()
	}
	n, err := s.conn.Read(s.buf)
	if err != nil {
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return Datagram{}, io.EOF
		}
		return Datagram{}, fmt.Errorf("SRT read: %w", err)
	}
	return Datagram{Data: s.buf[:n], Addr: s.remoteAddr()}, nil
}

func (s *SRTSource) remoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// Close shuts down the connection and the listener.
func (s *SRTSource) Close() error {
	s.conn.Close()
	s.closeListener()
	return nil
}
