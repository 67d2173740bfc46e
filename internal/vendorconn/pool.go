package vendorconn

import (
	"sort"
	"sync"

	"github.com/denishrana09/smpp-gateway/internal/database"
	"github.com/denishrana09/smpp-gateway/pkg/codes"
)

// hostSession is one vendor host with its transport, lifecycle status and
// consecutive failure count. All fields after host are guarded by the
// owning pool's mutex.
type hostSession struct {
	host         database.VendorHost
	transport    Transport
	status       string
	failureCount int
}

// vendorPool holds every session for one vendor plus the round-robin
// cursor used to spread load across equal-priority hosts.
type vendorPool struct {
	mu     sync.Mutex
	vendor database.Vendor
	hosts  map[string]*hostSession
	cursor int
}

func newVendorPool(vendor database.Vendor) *vendorPool {
	return &vendorPool{
		vendor: vendor,
		hosts:  make(map[string]*hostSession),
	}
}

// hostConfig returns a copy of the host row for a registered host.
func (p *vendorPool) hostConfig(hostID string) (database.VendorHost, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	hs, ok := p.hosts[hostID]
	if !ok {
		return database.VendorHost{}, false
	}
	return hs.host, true
}

// ensureHost registers the host if unknown and returns whether a connect
// attempt should start. Hosts already connecting or active are left alone.
func (p *vendorPool) ensureHost(host database.VendorHost) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	hs, ok := p.hosts[host.ID]
	if !ok {
		p.hosts[host.ID] = &hostSession{host: host, status: codes.HostStatusConnecting}
		return true
	}

	hs.host = host
	if hs.status == codes.HostStatusFailed {
		hs.status = codes.HostStatusConnecting
		hs.failureCount = 0
		return true
	}
	return false
}

// markActive installs the transport after a successful bind.
func (p *vendorPool) markActive(hostID string, t Transport) {
	p.mu.Lock()
	defer p.mu.Unlock()

	hs, ok := p.hosts[hostID]
	if !ok {
		return
	}
	hs.transport = t
	hs.status = codes.HostStatusActive
	hs.failureCount = 0
}

// markFailure records a failed connect, dropped session or rejected submit
// and reports the new consecutive failure count. The displaced transport,
// if any, is returned so the caller can close it outside the lock.
func (p *vendorPool) markFailure(hostID string, maxFailures int) (failures int, retry bool, displaced Transport) {
	p.mu.Lock()
	defer p.mu.Unlock()

	hs, ok := p.hosts[hostID]
	if !ok {
		return 0, false, nil
	}
	displaced = hs.transport
	hs.transport = nil
	hs.failureCount++
	if hs.failureCount >= maxFailures {
		hs.status = codes.HostStatusFailed
		return hs.failureCount, false, displaced
	}
	hs.status = codes.HostStatusConnecting
	return hs.failureCount, true, displaced
}

// removeHost drops the host from the pool, returning its transport so the
// caller can close it outside the lock.
func (p *vendorPool) removeHost(hostID string) Transport {
	p.mu.Lock()
	defer p.mu.Unlock()

	hs, ok := p.hosts[hostID]
	if !ok {
		return nil
	}
	delete(p.hosts, hostID)
	return hs.transport
}

// selectHost picks the next active host and returns its transport. Active
// hosts are sorted by priority ascending and rotated round-robin across the
// whole set, so N consecutive selections visit each of N active hosts once.
// The cursor folds into the current active count, so hosts joining or
// leaving cannot push it out of range.
func (p *vendorPool) selectHost(exclude map[string]bool) (database.VendorHost, Transport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var active []*hostSession
	for _, hs := range p.hosts {
		if hs.status != codes.HostStatusActive || hs.transport == nil || exclude[hs.host.ID] {
			continue
		}
		active = append(active, hs)
	}
	if len(active) == 0 {
		return database.VendorHost{}, nil, codes.ErrNoActiveHost
	}

	sort.SliceStable(active, func(i, j int) bool {
		if active[i].host.Priority != active[j].host.Priority {
			return active[i].host.Priority < active[j].host.Priority
		}
		return active[i].host.ID < active[j].host.ID
	})

	idx := p.cursor % len(active)
	p.cursor = (idx + 1) % len(active)
	return active[idx].host, active[idx].transport, nil
}

// snapshotTransports returns every live transport for shutdown.
func (p *vendorPool) snapshotTransports() []Transport {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Transport, 0, len(p.hosts))
	for _, hs := range p.hosts {
		if hs.transport != nil {
			out = append(out, hs.transport)
		}
	}
	return out
}

// hostIDs returns every registered host id.
func (p *vendorPool) hostIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, 0, len(p.hosts))
	for id := range p.hosts {
		out = append(out, id)
	}
	return out
}
