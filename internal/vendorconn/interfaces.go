// Package vendorconn maintains upstream SMPP binds to vendor hosts and
// submits outbound messages over them. Each vendor owns a pool of host
// sessions; the manager selects hosts, fails over between them within a
// vendor, and correlates delivery receipts back to internal message ids.
package vendorconn

import (
	"context"

	"github.com/denishrana09/smpp-gateway/internal/database"
	"github.com/denishrana09/smpp-gateway/internal/queue"
	"github.com/denishrana09/smpp-gateway/pkg/receipt"
)

// SubmitRequest is a single outbound message handed to a transport.
type SubmitRequest struct {
	Source      string
	Destination string
	Content     string
}

// SubmitResult carries the vendor-assigned message id returned in the
// submit response.
type SubmitResult struct {
	VendorMessageID string
}

// Transport is one bound session to a vendor host.
type Transport interface {
	Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error)
	Close() error
}

// TransportEvents are callbacks a transport invokes asynchronously. Both
// may be called from the transport's read goroutine and must not block.
type TransportEvents struct {
	// OnClosed fires when the session drops for any reason other than an
	// explicit Close call.
	OnClosed func(hostID string)
	// OnReceipt fires for every delivery receipt read off the session.
	OnReceipt func(hostID string, rcpt receipt.Receipt)
}

// TransportFactory dials and binds a session to one vendor host. The
// production factory speaks SMPP via gosmpp; tests substitute fakes.
type TransportFactory interface {
	Connect(ctx context.Context, vendor database.Vendor, host database.VendorHost, events TransportEvents) (Transport, error)
}

// ReportPublisher emits delivery report events onto the queue.
type ReportPublisher interface {
	PublishDeliveryReport(ctx context.Context, ev queue.DeliveryReportEvent) error
}

// DeliveryRelay forwards a resolved delivery report to the client's bound
// session. Implemented by the gateway.
type DeliveryRelay interface {
	RelayDeliveryReport(ctx context.Context, clientID, internalID, status string) error
}
