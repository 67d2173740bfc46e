package vendorconn

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/linxGnu/gosmpp"
	"github.com/linxGnu/gosmpp/data"
	"github.com/linxGnu/gosmpp/pdu"

	"github.com/denishrana09/smpp-gateway/internal/config"
	"github.com/denishrana09/smpp-gateway/internal/database"
	"github.com/denishrana09/smpp-gateway/internal/logging"
	"github.com/denishrana09/smpp-gateway/pkg/codes"
	"github.com/denishrana09/smpp-gateway/pkg/receipt"
)

var _ TransportFactory = (*SMPPFactory)(nil)

// SMPPFactory builds transceiver sessions to vendor hosts via gosmpp.
type SMPPFactory struct {
	cfg config.VendorConfig
}

// NewSMPPFactory creates the production transport factory.
func NewSMPPFactory(cfg config.VendorConfig) *SMPPFactory {
	return &SMPPFactory{cfg: cfg}
}

// submitOutcome is delivered from the gosmpp callbacks to the goroutine
// blocked in Submit.
type submitOutcome struct {
	vendorMessageID string
	err             error
}

// smppTransport wraps one bound gosmpp session.
type smppTransport struct {
	cfg     config.VendorConfig
	hostID  string
	session *gosmpp.Session
	events  TransportEvents

	// pendingSubmits maps PDU sequence number to the channel the submitter
	// waits on. Entries are removed by whichever callback resolves them.
	pendingSubmits sync.Map

	closeMu sync.Mutex
	closed  bool
}

// Connect dials the host and binds a transceiver session. Reconnection is
// owned by the manager, so the session's auto-rebind is disabled.
func (f *SMPPFactory) Connect(ctx context.Context, vendor database.Vendor, host database.VendorHost, events TransportEvents) (Transport, error) {
	t := &smppTransport{
		cfg:    f.cfg,
		hostID: host.ID,
		events: events,
	}

	auth := gosmpp.Auth{
		SMSC:     fmt.Sprintf("%s:%d", host.Host, host.Port),
		SystemID: vendor.SystemID,
		Password: vendor.Password,
	}

	settings := gosmpp.Settings{
		EnquireLink:  f.cfg.EnquireLink,
		ReadTimeout:  f.cfg.RequestTimeout + 5*time.Second,
		WriteTimeout: f.cfg.RequestTimeout,

		WindowedRequestTracking: &gosmpp.WindowedRequestTracking{
			MaxWindowSize:         uint8(f.cfg.MaxWindowSize),
			PduExpireTimeOut:      f.cfg.RequestTimeout,
			ExpireCheckTimer:      5 * time.Second,
			EnableAutoRespond:     false,
			OnReceivedPduRequest:  t.handleReceivedPduRequest,
			OnExpectedPduResponse: t.handleExpectedPduResponse,
			OnExpiredPduRequest:   t.handleExpiredPduRequest,
			OnClosePduRequest:     t.handleClosePduRequest,
		},

		OnReceivingError: t.onReceivingError,
		OnClosed:         t.onClosed,
	}

	sess, err := gosmpp.NewSession(gosmpp.TRXConnector(gosmpp.NonTLSDialer, auth), settings, 0)
	if err != nil {
		return nil, fmt.Errorf("binding to %s: %w", auth.SMSC, err)
	}
	t.session = sess

	logCtx := logging.ContextWithHostID(ctx, host.ID)
	slog.InfoContext(logCtx, "Vendor session bound",
		slog.String("vendor_id", vendor.ID),
		slog.String("smsc", auth.SMSC))
	return t, nil
}

// Submit sends one SubmitSM and waits for the matching SubmitSMResp.
func (t *smppTransport) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	p, err := buildSubmitSM(req)
	if err != nil {
		return SubmitResult{}, err
	}

	// Register the waiter before handing the PDU to the session so the
	// response callback can never race past us.
	ch := make(chan submitOutcome, 1)
	seq := p.GetSequenceNumber()
	t.pendingSubmits.Store(seq, ch)

	if err := t.session.Transceiver().Submit(p); err != nil {
		t.pendingSubmits.Delete(seq)
		return SubmitResult{}, fmt.Errorf("submitting to host %s: %w", t.hostID, err)
	}

	select {
	case outcome := <-ch:
		if outcome.err != nil {
			return SubmitResult{}, outcome.err
		}
		return SubmitResult{VendorMessageID: outcome.vendorMessageID}, nil
	case <-time.After(t.cfg.RequestTimeout):
		t.pendingSubmits.Delete(seq)
		return SubmitResult{}, fmt.Errorf("host %s: submit response timed out", t.hostID)
	case <-ctx.Done():
		t.pendingSubmits.Delete(seq)
		return SubmitResult{}, ctx.Err()
	}
}

func (t *smppTransport) Close() error {
	t.closeMu.Lock()
	t.closed = true
	t.closeMu.Unlock()
	return t.session.Close()
}

func buildSubmitSM(req SubmitRequest) (*pdu.SubmitSM, error) {
	p := pdu.NewSubmitSM().(*pdu.SubmitSM)

	srcAddr := pdu.NewAddress()
	srcAddr.SetTon(5)
	srcAddr.SetNpi(0)
	if err := srcAddr.SetAddress(req.Source); err != nil {
		return nil, fmt.Errorf("invalid source address %q: %w", req.Source, err)
	}
	p.SourceAddr = srcAddr

	destAddr := pdu.NewAddress()
	destAddr.SetTon(1)
	destAddr.SetNpi(1)
	if err := destAddr.SetAddress(req.Destination); err != nil {
		return nil, fmt.Errorf("invalid destination address %q: %w", req.Destination, err)
	}
	p.DestAddr = destAddr

	if err := p.Message.SetMessageWithEncoding(req.Content, data.GSM7BIT); err != nil {
		return nil, fmt.Errorf("encoding message content: %w", err)
	}

	p.ProtocolID = 0
	p.RegisteredDelivery = 1
	p.ReplaceIfPresentFlag = 0
	p.EsmClass = 0

	return p, nil
}

func (t *smppTransport) handleReceivedPduRequest(p pdu.PDU) (pdu.PDU, bool) {
	logCtx := logging.ContextWithHostID(context.Background(), t.hostID)
	logCtx = logging.ContextWithPDUInfo(logCtx, p.GetHeader().CommandID.String(), p.GetSequenceNumber())

	switch pd := p.(type) {
	case *pdu.DeliverSM:
		t.processDeliverSM(logCtx, pd)
		return pd.GetResponse(), false

	case *pdu.EnquireLink:
		slog.DebugContext(logCtx, "Received EnquireLink from vendor")
		return pd.GetResponse(), false

	case *pdu.Unbind:
		slog.InfoContext(logCtx, "Received Unbind from vendor")
		go func() { _ = t.Close() }()
		return pd.GetResponse(), false

	default:
		slog.WarnContext(logCtx, "Unexpected PDU from vendor")
	}
	return nil, false
}

// processDeliverSM extracts a delivery receipt and hands it to the manager.
// Non-receipt deliver_sm PDUs (mobile originated traffic) are acknowledged
// and dropped; this gateway only routes outbound.
func (t *smppTransport) processDeliverSM(ctx context.Context, p *pdu.DeliverSM) {
	if p.EsmClass&0x04 == 0 {
		slog.DebugContext(ctx, "Ignoring non-receipt DeliverSM from vendor")
		return
	}

	text, err := p.Message.GetMessage()
	if err != nil {
		slog.WarnContext(ctx, "Failed to decode DeliverSM short_message", slog.Any("error", err))
		return
	}

	rcpt, err := receipt.Parse(text)
	if err != nil {
		slog.WarnContext(ctx, "Failed to parse delivery receipt", slog.Any("error", err))
		return
	}

	if t.events.OnReceipt != nil {
		t.events.OnReceipt(t.hostID, rcpt)
	}
}

func (t *smppTransport) handleExpectedPduResponse(response gosmpp.Response) {
	reqPDU := response.OriginalRequest.PDU

	resp, ok := response.PDU.(*pdu.SubmitSMResp)
	if !ok {
		return
	}

	seq := reqPDU.GetSequenceNumber()
	val, loaded := t.pendingSubmits.LoadAndDelete(seq)
	if !loaded {
		logCtx := logging.ContextWithHostID(context.Background(), t.hostID)
		slog.WarnContext(logCtx, "SubmitSMResp for unknown sequence number",
			slog.Int("seq_num", int(seq)))
		return
	}
	ch := val.(chan submitOutcome)

	status := resp.GetHeader().CommandStatus
	if status != data.ESME_ROK {
		ch <- submitOutcome{err: fmt.Errorf("host %s: status 0x%08X: %w", t.hostID, uint32(status), codes.ErrSubmissionRejected)}
		return
	}
	ch <- submitOutcome{vendorMessageID: resp.MessageID}
}

func (t *smppTransport) handleExpiredPduRequest(p pdu.PDU) bool {
	if _, ok := p.(*pdu.SubmitSM); ok {
		t.resolvePendingWithError(p.GetSequenceNumber(), fmt.Errorf("host %s: submit expired without response", t.hostID))
		return false
	}
	if _, ok := p.(*pdu.EnquireLink); ok {
		// Keepalive went unanswered, the link is dead.
		logCtx := logging.ContextWithHostID(context.Background(), t.hostID)
		slog.ErrorContext(logCtx, "EnquireLink expired, closing stale session")
		return true
	}
	return false
}

func (t *smppTransport) handleClosePduRequest(p pdu.PDU) {
	if _, ok := p.(*pdu.SubmitSM); ok {
		t.resolvePendingWithError(p.GetSequenceNumber(), fmt.Errorf("host %s: session closed before submit response", t.hostID))
	}
}

func (t *smppTransport) resolvePendingWithError(seq int32, err error) {
	val, loaded := t.pendingSubmits.LoadAndDelete(seq)
	if !loaded {
		return
	}
	val.(chan submitOutcome) <- submitOutcome{err: err}
}

func (t *smppTransport) onReceivingError(err error) {
	logCtx := logging.ContextWithHostID(context.Background(), t.hostID)
	slog.ErrorContext(logCtx, "Error reading from vendor session", slog.Any("error", err))
}

func (t *smppTransport) onClosed(state gosmpp.State) {
	t.closeMu.Lock()
	requested := t.closed
	t.closeMu.Unlock()

	logCtx := logging.ContextWithHostID(context.Background(), t.hostID)
	slog.WarnContext(logCtx, "Vendor session closed", slog.String("state", state.String()))

	if !requested && t.events.OnClosed != nil {
		t.events.OnClosed(t.hostID)
	}
}
