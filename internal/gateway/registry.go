package gateway

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/denishrana09/smpp-gateway/pkg/codes"
)

// session is one bound client connection.
type session struct {
	id       string
	clientID string
	systemID string
	conn     net.Conn
	writer   *bufio.Writer
	readMu   sync.Mutex
	writeMu  sync.Mutex
	boundAt  time.Time

	// nextSeq numbers server-initiated PDUs (deliver_sm). Guarded by
	// writeMu since it is only touched on the write path.
	nextSeq int32
}

// registry tracks bound sessions per client. A client may hold several
// concurrent binds up to its configured connection cap.
type registry struct {
	mu      sync.RWMutex
	clients map[string]map[string]*session
}

func newRegistry() *registry {
	return &registry{clients: make(map[string]map[string]*session)}
}

// register adds the session, enforcing the client's connection cap.
func (r *registry) register(ss *session, maxConnections int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.clients[ss.clientID]
	if !ok {
		conns = make(map[string]*session)
		r.clients[ss.clientID] = conns
	}
	if maxConnections > 0 && int32(len(conns)) >= maxConnections {
		return fmt.Errorf("client %s has %d bound connections (cap %d): %w",
			ss.clientID, len(conns), maxConnections, codes.ErrCapacityExceeded)
	}
	conns[ss.id] = ss
	return nil
}

// deregister removes the session and drops the client entry once its last
// connection is gone.
func (r *registry) deregister(ss *session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.clients[ss.clientID]
	if !ok {
		return
	}
	delete(conns, ss.id)
	if len(conns) == 0 {
		delete(r.clients, ss.clientID)
	}
}

// lookup finds one specific connection of a client.
func (r *registry) lookup(clientID, connID string) (*session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ss, ok := r.clients[clientID][connID]
	return ss, ok
}

// anySession returns an arbitrary bound connection of the client.
func (r *registry) anySession(clientID string) (*session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, ss := range r.clients[clientID] {
		return ss, true
	}
	return nil, false
}

// connectionCount reports how many binds a client currently holds.
func (r *registry) connectionCount(clientID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients[clientID])
}

// snapshot returns every bound session, used during shutdown.
func (r *registry) snapshot() []*session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*session, 0, len(r.clients))
	for _, conns := range r.clients {
		for _, ss := range conns {
			out = append(out, ss)
		}
	}
	return out
}
