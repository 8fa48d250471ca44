package domain

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
)

// Headers maps header names to values. Lookup is by exact name.
type Headers map[string]string

// Peer is the remote end of a stream.
type Peer struct {
	Addr netip.Addr
	Port uint16
}

// String renders the peer as host:port.
func (p Peer) String() string {
	return netip.AddrPortFrom(p.Addr, p.Port).String()
}

// ParsePeer parses a "host:port" or bare host remote address.
func ParsePeer(remote string) (*Peer, error) {
	host, port, err := net.SplitHostPort(remote)
	if err != nil {
		// No port component
		host, port = remote, ""
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil, fmt.Errorf("invalid peer address %q: %w", remote, err)
	}

	p := &Peer{Addr: addr.Unmap()}
	if port != "" {
		n, err := strconv.ParseUint(port, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid peer port %q: %w", remote, err)
		}
		p.Port = uint16(n)
	}
	return p, nil
}

// RequestContext is the snapshot of a stream taken at activation time.
// It is read-only once built.
type RequestContext struct {
	StreamID string
	Method   string
	Host     string
	Path     string
	// Headers is nil when the pipeline provided no header mapping at all.
	Headers Headers
	// Peer is nil when the remote address is unknown.
	Peer  *Peer
	Owner Owner
}

// Header returns the value of the header with the exact given name.
func (rc *RequestContext) Header(name string) (string, bool) {
	if rc == nil || rc.Headers == nil {
		return "", false
	}
	v, ok := rc.Headers[name]
	return v, ok
}
