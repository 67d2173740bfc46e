package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/linxGnu/gosmpp/data"
	"github.com/linxGnu/gosmpp/pdu"

	"github.com/denishrana09/smpp-gateway/internal/logging"
	"github.com/denishrana09/smpp-gateway/pkg/codes"
	"github.com/denishrana09/smpp-gateway/pkg/receipt"
)

// RelayDeliveryReport pushes a delivery receipt to the client as a
// deliver_sm. It prefers the connection the message arrived on and falls
// back to any other bind the client still holds. A terminal status also
// retires the message's origin entry, so later duplicates are dropped.
func (s *Server) RelayDeliveryReport(ctx context.Context, clientID, internalID, status string) error {
	logCtx := logging.ContextWithClientID(ctx, clientID)
	logCtx = logging.ContextWithMessageID(logCtx, internalID)

	origin, tracked := s.origins.Get(internalID)
	if codes.IsTerminalStatus(status) {
		defer s.origins.Remove(internalID)
	}

	var ss *session
	var ok bool
	if tracked {
		ss, ok = s.registry.lookup(origin.clientID, origin.connID)
	}
	if !ok {
		ss, ok = s.registry.anySession(clientID)
	}
	if !ok {
		slog.WarnContext(logCtx, "No bound session for delivery report", slog.String("status", status))
		return fmt.Errorf("client %s has no bound session", clientID)
	}

	raw, err := buildReceiptPDU(ss, internalID, status)
	if err != nil {
		return fmt.Errorf("building delivery receipt for %s: %w", internalID, err)
	}

	ss.writeMu.Lock()
	n, werr := ss.writer.Write(raw)
	if werr == nil && n != len(raw) {
		werr = fmt.Errorf("short write (%d of %d bytes)", n, len(raw))
	}
	if werr == nil {
		werr = ss.writer.Flush()
	}
	ss.writeMu.Unlock()
	if werr != nil {
		slog.ErrorContext(logCtx, "Failed to write delivery receipt", slog.Any("error", werr))
		return fmt.Errorf("writing delivery receipt to client %s: %w", clientID, werr)
	}

	slog.InfoContext(logCtx, "Delivery report relayed", slog.String("status", status))
	return nil
}

// buildReceiptPDU marshals a deliver_sm carrying the standard receipt text
// for the message.
func buildReceiptPDU(ss *session, internalID, status string) ([]byte, error) {
	p := pdu.NewDeliverSM().(*pdu.DeliverSM)

	srcAddr := pdu.NewAddress()
	srcAddr.SetTon(0)
	srcAddr.SetNpi(0)
	p.SourceAddr = srcAddr

	destAddr := pdu.NewAddress()
	destAddr.SetTon(0)
	destAddr.SetNpi(0)
	p.DestAddr = destAddr

	// esm_class 0x04 marks the PDU as a delivery receipt.
	p.EsmClass = 0x04
	p.RegisteredDelivery = 0

	text := receipt.Format(internalID, status, time.Now())
	if err := p.Message.SetMessageWithEncoding(text, data.GSM7BIT); err != nil {
		return nil, err
	}

	ss.writeMu.Lock()
	ss.nextSeq++
	p.SetSequenceNumber(ss.nextSeq)
	ss.writeMu.Unlock()

	buf := pdu.NewBuffer(nil)
	p.Marshal(buf)
	return buf.Bytes(), nil
}
