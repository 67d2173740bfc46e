// Package dispatch bridges the queue and the vendor layer: it takes each
// consumed submission, asks the routing engine for a vendor and hands the
// message to that vendor's connection pool.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/denishrana09/smpp-gateway/internal/config"
	"github.com/denishrana09/smpp-gateway/internal/logging"
	"github.com/denishrana09/smpp-gateway/internal/queue"
	"github.com/denishrana09/smpp-gateway/internal/routing"
	"github.com/denishrana09/smpp-gateway/pkg/codes"
)

// VendorSelector picks a vendor for a client's message.
type VendorSelector interface {
	SelectVendor(ctx context.Context, route config.ClientRoute) (routing.Candidate, error)
}

// MessageSender submits a message through a vendor's host pool.
type MessageSender interface {
	SendMessage(ctx context.Context, vendorID string, msg queue.IncomingMessage) error
}

// Dispatcher routes consumed submissions to vendors.
type Dispatcher struct {
	routes   *config.Routes
	selector VendorSelector
	sender   MessageSender
}

// NewDispatcher wires the routing table, engine and vendor manager.
func NewDispatcher(routes *config.Routes, selector VendorSelector, sender MessageSender) *Dispatcher {
	return &Dispatcher{routes: routes, selector: selector, sender: sender}
}

// Dispatch handles one consumed message. Messages that cannot be routed
// are dropped with a log line; the client already holds an accepted
// submit response, so delivery failure surfaces through the absence of a
// receipt, not through an error to the consumer loop.
func (d *Dispatcher) Dispatch(ctx context.Context, msg queue.IncomingMessage) error {
	logCtx := logging.ContextWithMessageID(ctx, msg.InternalID)
	logCtx = logging.ContextWithClientID(logCtx, msg.ClientID)

	route, ok := d.routes.ClientRoute(msg.ClientID)
	if !ok {
		slog.ErrorContext(logCtx, "Dropping message for client without routing config")
		return nil
	}

	selected, err := d.selector.SelectVendor(logCtx, route)
	if err != nil {
		if errors.Is(err, codes.ErrNoVendorAvailable) {
			slog.ErrorContext(logCtx, "Dropping message, no vendor available", slog.Any("error", err))
			return nil
		}
		return fmt.Errorf("selecting vendor for message %s: %w", msg.InternalID, err)
	}

	logCtx = logging.ContextWithVendorID(logCtx, selected.VendorID)
	if err := d.sender.SendMessage(logCtx, selected.VendorID, msg); err != nil {
		slog.ErrorContext(logCtx, "Dropping message, vendor submission failed", slog.Any("error", err))
		return nil
	}
	return nil
}
