// Package source provides datagram sources for live probing. Each source
// yields one received chunk per call so the probe layer can treat UDP
// datagrams and SRT reads uniformly.
package source

import (
	"context"
	"net"
)

// Datagram is one received chunk and where it came from.
type Datagram struct {
	Data []byte
	Addr net.Addr
}

// Source yields datagrams until the stream ends. Receive returns io.EOF
// when the source decides the session is over, such as an idle timeout
// or a closed peer.
type Source interface {
	Receive(ctx context.Context) (Datagram, error)
	Close() error
}
