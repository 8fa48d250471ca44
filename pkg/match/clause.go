package match

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/aretw0/reqtrace/pkg/domain"
)

// Clause is a single condition of a Spec.
type Clause interface {
	Match(streamID string, rc *domain.RequestContext, opts domain.Options) bool
	fmt.Stringer
}

// PredicateFunc is an arbitrary operator-provided condition.
type PredicateFunc func(streamID string, rc *domain.RequestContext, opts domain.Options) bool

// Predicate delegates to a user function. Name is only used for display.
type Predicate struct {
	Name string
	Fn   PredicateFunc
}

func (c Predicate) Match(streamID string, rc *domain.RequestContext, opts domain.Options) (ok bool) {
	if c.Fn == nil {
		return false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return c.Fn(streamID, rc, opts)
}

func (c Predicate) String() string {
	name := c.Name
	if name == "" {
		name = "anonymous"
	}
	return "predicate(" + name + ")"
}

// Method matches the request method exactly.
type Method struct{ Value string }

func (c Method) Match(_ string, rc *domain.RequestContext, _ domain.Options) bool {
	return rc != nil && rc.Method == c.Value
}

func (c Method) String() string { return "method == " + c.Value }

// Host matches the request host exactly.
type Host struct{ Value string }

func (c Host) Match(_ string, rc *domain.RequestContext, _ domain.Options) bool {
	return rc != nil && rc.Host == c.Value
}

func (c Host) String() string { return "host == " + c.Value }

// Path matches the request path exactly.
type Path struct{ Value string }

func (c Path) Match(_ string, rc *domain.RequestContext, _ domain.Options) bool {
	return rc != nil && rc.Path == c.Value
}

func (c Path) String() string { return "path == " + c.Value }

// PathPrefix matches when the request path starts with Value.
// An empty Value always matches.
type PathPrefix struct{ Value string }

func (c PathPrefix) Match(_ string, rc *domain.RequestContext, _ domain.Options) bool {
	return rc != nil && strings.HasPrefix(rc.Path, c.Value)
}

func (c PathPrefix) String() string { return "path starts with " + c.Value }

// HeaderPresent matches when a header with exactly Name exists.
type HeaderPresent struct{ Name string }

func (c HeaderPresent) Match(_ string, rc *domain.RequestContext, _ domain.Options) bool {
	_, ok := rc.Header(c.Name)
	return ok
}

func (c HeaderPresent) String() string { return "header " + c.Name + " present" }

// HeaderEquals matches when header Name exists with exactly Value.
type HeaderEquals struct {
	Name  string
	Value string
}

func (c HeaderEquals) Match(_ string, rc *domain.RequestContext, _ domain.Options) bool {
	v, ok := rc.Header(c.Name)
	return ok && v == c.Value
}

func (c HeaderEquals) String() string { return "header " + c.Name + " == " + c.Value }

// PeerIP matches the peer address, ignoring the port.
type PeerIP struct{ Addr netip.Addr }

func (c PeerIP) Match(_ string, rc *domain.RequestContext, _ domain.Options) bool {
	if rc == nil || rc.Peer == nil {
		return false
	}
	return rc.Peer.Addr == c.Addr
}

func (c PeerIP) String() string { return "peer == " + c.Addr.String() }
