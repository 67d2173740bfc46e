package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denishrana09/smpp-gateway/internal/config"
	"github.com/denishrana09/smpp-gateway/internal/queue"
	"github.com/denishrana09/smpp-gateway/internal/routing"
	"github.com/denishrana09/smpp-gateway/pkg/codes"
)

type stubSelector struct {
	candidate routing.Candidate
	err       error
	calls     int
}

func (s *stubSelector) SelectVendor(context.Context, config.ClientRoute) (routing.Candidate, error) {
	s.calls++
	return s.candidate, s.err
}

type stubSender struct {
	err  error
	sent []string
}

func (s *stubSender) SendMessage(_ context.Context, vendorID string, msg queue.IncomingMessage) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, vendorID+"/"+msg.InternalID)
	return nil
}

func testRoutes() *config.Routes {
	return &config.Routes{Clients: map[string]config.ClientRoute{
		"client-1": {
			ClientID:        "client-1",
			RoutingStrategy: codes.StrategyPriority,
			Vendors:         []config.CandidateVendor{{ID: "v-1", Priority: 1}},
		},
	}}
}

func msg(clientID string) queue.IncomingMessage {
	return queue.IncomingMessage{InternalID: "msg-1", ClientID: clientID, Source: "ACME", Destination: "2348010000001", Content: "hi"}
}

func TestDispatchSendsToSelectedVendor(t *testing.T) {
	selector := &stubSelector{candidate: routing.Candidate{VendorID: "v-1"}}
	sender := &stubSender{}
	d := NewDispatcher(testRoutes(), selector, sender)

	require.NoError(t, d.Dispatch(context.Background(), msg("client-1")))
	assert.Equal(t, []string{"v-1/msg-1"}, sender.sent)
}

func TestDispatchDropsUnroutedClient(t *testing.T) {
	selector := &stubSelector{}
	sender := &stubSender{}
	d := NewDispatcher(testRoutes(), selector, sender)

	require.NoError(t, d.Dispatch(context.Background(), msg("client-unknown")))
	assert.Zero(t, selector.calls)
	assert.Empty(t, sender.sent)
}

func TestDispatchDropsWhenNoVendorAvailable(t *testing.T) {
	selector := &stubSelector{err: codes.ErrNoVendorAvailable}
	sender := &stubSender{}
	d := NewDispatcher(testRoutes(), selector, sender)

	require.NoError(t, d.Dispatch(context.Background(), msg("client-1")))
	assert.Empty(t, sender.sent)
}

func TestDispatchSurfacesSnapshotErrors(t *testing.T) {
	selector := &stubSelector{err: errors.New("database down")}
	d := NewDispatcher(testRoutes(), selector, &stubSender{})

	err := d.Dispatch(context.Background(), msg("client-1"))
	assert.ErrorContains(t, err, "database down")
}

func TestDispatchDropsWhenAllHostsExhausted(t *testing.T) {
	selector := &stubSelector{candidate: routing.Candidate{VendorID: "v-1"}}
	sender := &stubSender{err: codes.ErrNoActiveHost}
	d := NewDispatcher(testRoutes(), selector, sender)

	require.NoError(t, d.Dispatch(context.Background(), msg("client-1")))
	assert.Empty(t, sender.sent)
}
