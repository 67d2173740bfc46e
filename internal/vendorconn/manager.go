package vendorconn

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/denishrana09/smpp-gateway/internal/config"
	"github.com/denishrana09/smpp-gateway/internal/database"
	"github.com/denishrana09/smpp-gateway/internal/logging"
	"github.com/denishrana09/smpp-gateway/internal/queue"
	"github.com/denishrana09/smpp-gateway/pkg/codes"
	"github.com/denishrana09/smpp-gateway/pkg/receipt"
)

// inFlightMessage correlates a vendor message id back to the originating
// client and message row.
type inFlightMessage struct {
	internalID string
	clientID   string
	vendorID   string
	hostID     string
}

// Manager owns every vendor pool. It connects hosts, retries dropped
// sessions, picks hosts for outbound submits and resolves delivery
// receipts against the in-flight table.
type Manager struct {
	cfg       config.VendorConfig
	dbQueries database.Querier
	factory   TransportFactory
	publisher ReportPublisher
	relay     DeliveryRelay

	pools    cmap.ConcurrentMap[string, *vendorPool]
	inFlight cmap.ConcurrentMap[string, inFlightMessage]

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewManager creates a manager with no pools. Pools are added per vendor
// via ConnectToVendor. relay may be nil when no client sessions exist, for
// example in tests.
func NewManager(cfg config.VendorConfig, q database.Querier, factory TransportFactory, publisher ReportPublisher, relay DeliveryRelay) *Manager {
	return &Manager{
		cfg:       cfg,
		dbQueries: q,
		factory:   factory,
		publisher: publisher,
		relay:     relay,
		pools:     cmap.New[*vendorPool](),
		inFlight:  cmap.New[inFlightMessage](),
		stopCh:    make(chan struct{}),
	}
}

// ConnectToVendor loads the vendor's credentials and active hosts from the
// database and starts a bind attempt for each host. Calling it again for a
// known vendor re-syncs the host set instead.
func (m *Manager) ConnectToVendor(ctx context.Context, vendorID string) error {
	logCtx := logging.ContextWithVendorID(ctx, vendorID)

	vendor, err := m.dbQueries.GetVendorByID(ctx, vendorID)
	if err != nil {
		return fmt.Errorf("loading vendor %s: %w", vendorID, err)
	}

	pool := newVendorPool(vendor)
	if !m.pools.SetIfAbsent(vendorID, pool) {
		return m.RefreshVendor(ctx, vendorID)
	}

	hosts, err := m.dbQueries.GetActiveVendorHosts(ctx, vendorID)
	if err != nil {
		return fmt.Errorf("loading hosts for vendor %s: %w", vendorID, err)
	}
	if len(hosts) == 0 {
		slog.WarnContext(logCtx, "Vendor has no active hosts configured")
	}

	for _, host := range hosts {
		if pool.ensureHost(host) {
			m.spawnConnect(vendorID, host.ID)
		}
	}
	slog.InfoContext(logCtx, "Vendor pool initialised", slog.Int("host_count", len(hosts)))
	return nil
}

// RefreshVendor re-reads the vendor's host rows and reconciles the pool:
// new and re-activated hosts get a bind attempt, hosts deactivated in the
// database are closed and dropped. The control API calls this after an
// operator flips a host's active flag.
func (m *Manager) RefreshVendor(ctx context.Context, vendorID string) error {
	pool, ok := m.pools.Get(vendorID)
	if !ok {
		return m.ConnectToVendor(ctx, vendorID)
	}
	logCtx := logging.ContextWithVendorID(ctx, vendorID)

	hosts, err := m.dbQueries.GetActiveVendorHosts(ctx, vendorID)
	if err != nil {
		return fmt.Errorf("refreshing hosts for vendor %s: %w", vendorID, err)
	}

	activeInDB := make(map[string]bool, len(hosts))
	for _, host := range hosts {
		activeInDB[host.ID] = true
		if pool.ensureHost(host) {
			m.spawnConnect(vendorID, host.ID)
		}
	}

	for _, id := range pool.hostIDs() {
		if activeInDB[id] {
			continue
		}
		if t := pool.removeHost(id); t != nil {
			_ = t.Close()
		}
		slog.InfoContext(logCtx, "Removed deactivated vendor host", slog.String("host_id", id))
	}
	return nil
}

func (m *Manager) spawnConnect(vendorID, hostID string) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.connectHost(vendorID, hostID)
	}()
}

// connectHost performs one bind attempt for one host. On failure the retry
// schedule is delegated to handleHostFailure.
func (m *Manager) connectHost(vendorID, hostID string) {
	select {
	case <-m.stopCh:
		return
	default:
	}

	pool, ok := m.pools.Get(vendorID)
	if !ok {
		return
	}
	host, ok := pool.hostConfig(hostID)
	if !ok {
		return
	}

	logCtx := logging.ContextWithVendorID(context.Background(), vendorID)
	logCtx = logging.ContextWithHostID(logCtx, hostID)
	slog.InfoContext(logCtx, "Connecting to vendor host",
		slog.String("host", host.Host), slog.Int("port", int(host.Port)))

	connectCtx, cancel := context.WithTimeout(logCtx, m.cfg.ConnectTimeout)
	defer cancel()

	events := TransportEvents{
		OnClosed: func(hID string) {
			m.handleSessionClosed(vendorID, hID)
		},
		OnReceipt: func(hID string, rcpt receipt.Receipt) {
			m.handleDeliveryReceipt(vendorID, hID, rcpt)
		},
	}

	t, err := m.factory.Connect(connectCtx, pool.vendor, host, events)
	if err != nil {
		slog.WarnContext(logCtx, "Vendor host bind failed", slog.Any("error", err))
		m.handleHostFailure(logCtx, vendorID, hostID)
		return
	}

	pool.markActive(hostID, t)
	slog.InfoContext(logCtx, "Vendor host active")
}

// handleHostFailure counts a consecutive failure and either schedules a
// delayed reconnect or parks the host as failed until an operator
// re-activates it.
func (m *Manager) handleHostFailure(ctx context.Context, vendorID, hostID string) {
	pool, ok := m.pools.Get(vendorID)
	if !ok {
		return
	}

	failures, retry, displaced := pool.markFailure(hostID, m.cfg.MaxFailures)
	if displaced != nil {
		_ = displaced.Close()
	}
	if !retry {
		slog.ErrorContext(ctx, "Vendor host marked failed, manual re-activation required",
			slog.Int("consecutive_failures", failures))
		return
	}

	slog.InfoContext(ctx, "Scheduling vendor host reconnect",
		slog.Int("consecutive_failures", failures),
		slog.Duration("delay", m.cfg.ReconnectDelay))
	time.AfterFunc(m.cfg.ReconnectDelay, func() {
		m.connectHost(vendorID, hostID)
	})
}

func (m *Manager) handleSessionClosed(vendorID, hostID string) {
	select {
	case <-m.stopCh:
		return
	default:
	}

	logCtx := logging.ContextWithVendorID(context.Background(), vendorID)
	logCtx = logging.ContextWithHostID(logCtx, hostID)
	slog.WarnContext(logCtx, "Vendor session dropped")
	m.handleHostFailure(logCtx, vendorID, hostID)
}

// SendMessage submits the message over the selected vendor. On a submit
// failure the host enters the same failure handling as a dropped session
// and the message fails over to the vendor's next active host; every host
// is tried at most once, so the loop always terminates. Failover never
// crosses to another vendor, that choice belongs to the routing engine.
func (m *Manager) SendMessage(ctx context.Context, vendorID string, msg queue.IncomingMessage) error {
	logCtx := logging.ContextWithMessageID(ctx, msg.InternalID)
	logCtx = logging.ContextWithClientID(logCtx, msg.ClientID)
	logCtx = logging.ContextWithVendorID(logCtx, vendorID)

	pool, ok := m.pools.Get(vendorID)
	if !ok {
		return fmt.Errorf("vendor %s has no pool: %w", vendorID, codes.ErrNoActiveHost)
	}

	tried := make(map[string]bool)
	var lastErr error
	for {
		host, transport, err := pool.selectHost(tried)
		if err != nil {
			if lastErr != nil {
				return fmt.Errorf("vendor %s: all hosts exhausted: %w", vendorID, lastErr)
			}
			return fmt.Errorf("vendor %s: %w", vendorID, err)
		}
		tried[host.ID] = true
		hostCtx := logging.ContextWithHostID(logCtx, host.ID)

		res, err := transport.Submit(ctx, SubmitRequest{
			Source:      msg.Source,
			Destination: msg.Destination,
			Content:     msg.Content,
		})
		if err != nil {
			lastErr = err
			slog.WarnContext(hostCtx, "Submit failed, failing over to next host", slog.Any("error", err))
			m.handleHostFailure(hostCtx, vendorID, host.ID)
			continue
		}

		m.inFlight.Set(res.VendorMessageID, inFlightMessage{
			internalID: msg.InternalID,
			clientID:   msg.ClientID,
			vendorID:   vendorID,
			hostID:     host.ID,
		})

		if err := m.dbQueries.CreateMessage(ctx, database.CreateMessageParams{
			ID:              msg.InternalID,
			ClientID:        msg.ClientID,
			VendorID:        vendorID,
			HostID:          host.ID,
			VendorMessageID: res.VendorMessageID,
			Source:          msg.Source,
			Destination:     msg.Destination,
			Content:         msg.Content,
			Status:          codes.MsgStatusSent,
			Direction:       codes.DirectionOutbound,
		}); err != nil {
			// The vendor already accepted the message; losing the row
			// costs audit history, not delivery.
			slog.ErrorContext(hostCtx, "Failed to persist accepted message", slog.Any("error", err))
		}

		slog.InfoContext(hostCtx, "Message accepted by vendor",
			slog.String("vendor_msg_id", res.VendorMessageID))
		return nil
	}
}

// handleDeliveryReceipt resolves a receipt against the in-flight table,
// persists the status, publishes the report event and relays it to the
// client's bound session. Unmatched receipts are logged and dropped.
func (m *Manager) handleDeliveryReceipt(vendorID, hostID string, rcpt receipt.Receipt) {
	logCtx := logging.ContextWithVendorID(context.Background(), vendorID)
	logCtx = logging.ContextWithHostID(logCtx, hostID)
	logCtx = logging.ContextWithVendorMsgID(logCtx, rcpt.MessageID)

	entry, ok := m.inFlight.Get(rcpt.MessageID)
	if !ok {
		slog.WarnContext(logCtx, "Delivery receipt has no in-flight message",
			slog.Any("error", codes.ErrCorrelationMiss),
			slog.String("status", rcpt.Status))
		return
	}
	logCtx = logging.ContextWithMessageID(logCtx, entry.internalID)
	logCtx = logging.ContextWithClientID(logCtx, entry.clientID)

	ctx, cancel := context.WithTimeout(logCtx, 10*time.Second)
	defer cancel()

	if err := m.dbQueries.UpdateMessageStatus(ctx, database.UpdateMessageStatusParams{
		ID:       entry.internalID,
		VendorID: entry.vendorID,
		HostID:   entry.hostID,
		Status:   rcpt.Status,
	}); err != nil {
		slog.ErrorContext(ctx, "Failed to persist delivery status", slog.Any("error", err))
	}

	if err := m.publisher.PublishDeliveryReport(ctx, queue.DeliveryReportEvent{
		InternalID:      entry.internalID,
		VendorMessageID: rcpt.MessageID,
		ClientID:        entry.clientID,
		VendorID:        entry.vendorID,
		HostID:          entry.hostID,
		Status:          rcpt.Status,
		Timestamp:       time.Now().UTC(),
	}); err != nil {
		slog.ErrorContext(ctx, "Failed to publish delivery report event", slog.Any("error", err))
	}

	if m.relay != nil {
		if err := m.relay.RelayDeliveryReport(ctx, entry.clientID, entry.internalID, rcpt.Status); err != nil {
			slog.WarnContext(ctx, "Failed to relay delivery report to client", slog.Any("error", err))
		}
	}

	if codes.IsTerminalStatus(rcpt.Status) {
		m.inFlight.Remove(rcpt.MessageID)
		slog.DebugContext(ctx, "In-flight entry resolved", slog.String("status", rcpt.Status))
	} else {
		slog.DebugContext(ctx, "Intermediate delivery status, keeping correlation",
			slog.String("status", rcpt.Status))
	}
}

// Shutdown stops reconnect scheduling and closes every vendor session.
func (m *Manager) Shutdown(ctx context.Context) error {
	slog.InfoContext(ctx, "Shutting down vendor connection manager")
	m.stopOnce.Do(func() { close(m.stopCh) })

	var closeWg sync.WaitGroup
	for item := range m.pools.IterBuffered() {
		for _, t := range item.Val.snapshotTransports() {
			closeWg.Add(1)
			go func(t Transport) {
				defer closeWg.Done()
				_ = t.Close()
			}(t)
		}
	}
	closeWg.Wait()
	m.wg.Wait()
	slog.InfoContext(ctx, "Vendor connection manager shutdown complete")
	return nil
}
