// Package gateway terminates SMPP sessions from downstream clients. It
// authenticates binds against the client table, acknowledges submit_sm
// immediately with an internal message id, hands accepted messages to the
// queue and pushes delivery receipts back over the client's bind.
package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/linxGnu/gosmpp/data"
	"github.com/linxGnu/gosmpp/pdu"
	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/denishrana09/smpp-gateway/internal/config"
	"github.com/denishrana09/smpp-gateway/internal/database"
	"github.com/denishrana09/smpp-gateway/internal/logging"
	"github.com/denishrana09/smpp-gateway/internal/queue"
)

// SMPP command ids handled by the server.
const (
	cmdBindReceiver    uint32 = 0x00000001
	cmdBindTransmitter uint32 = 0x00000002
	cmdSubmitSM        uint32 = 0x00000004
	cmdUnbind          uint32 = 0x00000006
	cmdBindTransceiver uint32 = 0x00000009
	cmdEnquireLink     uint32 = 0x00000015

	respBit uint32 = 0x80000000

	maxPDULength = 64 * 1024
)

// pduHeader is the fixed 16-byte SMPP PDU header.
type pduHeader struct {
	Length         uint32
	CommandID      uint32
	CommandStatus  uint32
	SequenceNumber uint32
}

// IncomingPublisher hands accepted messages to the queue.
type IncomingPublisher interface {
	PublishIncoming(ctx context.Context, msg queue.IncomingMessage) error
}

// msgOrigin remembers which client connection submitted a message so its
// delivery receipts can go back over the same bind.
type msgOrigin struct {
	clientID string
	connID   string
}

// Server is the client-facing SMPP listener.
type Server struct {
	cfg       config.ServerConfig
	dbQueries database.Querier
	publisher IncomingPublisher
	registry  *registry

	// origins maps internal message id to the submitting connection.
	// Entries live until a terminal delivery status arrives.
	origins cmap.ConcurrentMap[string, msgOrigin]

	listener net.Listener
	shutdown chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewServer creates an unstarted server.
func NewServer(cfg config.ServerConfig, q database.Querier, publisher IncomingPublisher) *Server {
	return &Server{
		cfg:       cfg,
		dbQueries: q,
		publisher: publisher,
		registry:  newRegistry(),
		origins:   cmap.New[msgOrigin](),
		shutdown:  make(chan struct{}),
	}
}

// ListenAndServe listens on the configured address and serves until
// Shutdown is called.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts client connections on the given listener.
func (s *Server) Serve(ln net.Listener) error {
	s.listener = ln
	slog.Info("SMPP gateway listening", slog.String("address", ln.Addr().String()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				slog.Info("SMPP listener closed")
				return nil
			default:
				slog.Error("Failed to accept connection", slog.Any("error", err))
				time.Sleep(100 * time.Millisecond)
				continue
			}
		}

		logCtx := logging.ContextWithRemoteAddr(context.Background(), conn.RemoteAddr().String())
		slog.InfoContext(logCtx, "Accepted SMPP connection")

		ss := &session{
			id:     uuid.NewString(),
			conn:   conn,
			writer: bufio.NewWriter(conn),
		}
		logCtx = logging.ContextWithConnectionID(logCtx, ss.id)

		s.wg.Add(1)
		go s.handleSession(logCtx, ss)
	}
}

// handleSession runs the read loop for one connection. A protocol or I/O
// error only tears down this session, never the server.
func (s *Server) handleSession(ctx context.Context, ss *session) {
	bound := false
	defer func() {
		if bound {
			s.registry.deregister(ss)
		}
		_ = ss.conn.Close()
		slog.InfoContext(ctx, "Closed SMPP client connection")
		s.wg.Done()
	}()

	r := bufio.NewReader(ss.conn)

	for {
		_ = ss.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))

		hdr, raw, err := s.readPDU(r, ss)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				slog.InfoContext(ctx, "Client closed connection")
			case errors.Is(err, net.ErrClosed):
				slog.InfoContext(ctx, "Connection closed during shutdown")
			default:
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					slog.InfoContext(ctx, "Client connection idle, closing")
				} else {
					slog.WarnContext(ctx, "Error reading PDU", slog.Any("error", err))
				}
			}
			return
		}

		logCtx := logging.ContextWithPDUInfo(ctx, commandName(hdr.CommandID), int32(hdr.SequenceNumber))
		if ss.systemID != "" {
			logCtx = logging.ContextWithSystemID(logCtx, ss.systemID)
		}

		isBindCmd := hdr.CommandID == cmdBindTransceiver ||
			hdr.CommandID == cmdBindReceiver || hdr.CommandID == cmdBindTransmitter
		if !bound && !isBindCmd {
			slog.WarnContext(logCtx, "Command before bind")
			s.writeStatusResponse(ss, hdr, uint32(data.ESME_RINVBNDSTS))
			s.flush(logCtx, ss)
			continue
		}

		switch {
		case isBindCmd:
			if bound {
				slog.WarnContext(logCtx, "Bind on already bound session")
				s.writeStatusResponse(ss, hdr, uint32(data.ESME_RALYBND))
			} else {
				bound = s.handleBind(logCtx, ss, hdr, raw[16:])
				if !bound {
					// Reject response was already written, drop the
					// connection after it flushes.
					s.flush(logCtx, ss)
					return
				}
			}
		case hdr.CommandID == cmdSubmitSM:
			s.handleSubmitSM(logCtx, ss, hdr, raw)
		case hdr.CommandID == cmdUnbind:
			slog.InfoContext(logCtx, "Client unbinding")
			s.writeStatusResponse(ss, hdr, uint32(data.ESME_ROK))
			s.flush(logCtx, ss)
			return
		case hdr.CommandID == cmdEnquireLink:
			slog.DebugContext(logCtx, "EnquireLink")
			s.writeStatusResponse(ss, hdr, uint32(data.ESME_ROK))
		default:
			slog.WarnContext(logCtx, "Unhandled command")
			s.writeStatusResponse(ss, hdr, uint32(data.ESME_RINVCMDID))
		}

		if !s.flush(logCtx, ss) {
			return
		}
	}
}

// readPDU reads one full PDU and returns the parsed header plus the raw
// bytes including the header.
func (s *Server) readPDU(r *bufio.Reader, ss *session) (pduHeader, []byte, error) {
	ss.readMu.Lock()
	defer ss.readMu.Unlock()

	raw := make([]byte, 16)
	if _, err := io.ReadFull(r, raw); err != nil {
		return pduHeader{}, nil, err
	}

	hdr := pduHeader{
		Length:         binary.BigEndian.Uint32(raw[0:4]),
		CommandID:      binary.BigEndian.Uint32(raw[4:8]),
		CommandStatus:  binary.BigEndian.Uint32(raw[8:12]),
		SequenceNumber: binary.BigEndian.Uint32(raw[12:16]),
	}
	if hdr.Length < 16 || hdr.Length > maxPDULength {
		return hdr, nil, fmt.Errorf("invalid PDU length %d", hdr.Length)
	}

	if bodyLen := int(hdr.Length) - 16; bodyLen > 0 {
		raw = append(raw, make([]byte, bodyLen)...)
		if _, err := io.ReadFull(r, raw[16:]); err != nil {
			return hdr, nil, fmt.Errorf("reading PDU body (%d bytes): %w", bodyLen, err)
		}
	}
	return hdr, raw, nil
}

// writeHeaderBody writes a PDU built from a header and optional body.
func (s *Server) writeHeaderBody(ss *session, hdr pduHeader, body []byte) error {
	hdr.Length = uint32(16 + len(body))

	buf := make([]byte, hdr.Length)
	binary.BigEndian.PutUint32(buf[0:], hdr.Length)
	binary.BigEndian.PutUint32(buf[4:], hdr.CommandID)
	binary.BigEndian.PutUint32(buf[8:], hdr.CommandStatus)
	binary.BigEndian.PutUint32(buf[12:], hdr.SequenceNumber)
	copy(buf[16:], body)

	return s.writeRaw(ss, buf)
}

// writeRaw writes pre-marshalled PDU bytes under the session write lock.
func (s *Server) writeRaw(ss *session, raw []byte) error {
	ss.writeMu.Lock()
	defer ss.writeMu.Unlock()

	n, err := ss.writer.Write(raw)
	if err == nil && n != len(raw) {
		err = io.ErrShortWrite
	}
	return err
}

// writeStatusResponse answers a request with a header-only response PDU.
func (s *Server) writeStatusResponse(ss *session, reqHdr pduHeader, status uint32) {
	respHdr := pduHeader{
		CommandID:      reqHdr.CommandID | respBit,
		CommandStatus:  status,
		SequenceNumber: reqHdr.SequenceNumber,
	}
	if err := s.writeHeaderBody(ss, respHdr, nil); err != nil {
		slog.Warn("Failed to write response PDU", slog.Any("error", err), slog.String("system_id", ss.systemID))
	}
}

func (s *Server) flush(ctx context.Context, ss *session) bool {
	ss.writeMu.Lock()
	err := ss.writer.Flush()
	ss.writeMu.Unlock()
	if err != nil {
		slog.WarnContext(ctx, "Error flushing to client", slog.Any("error", err))
		return false
	}
	return true
}

// readCString reads a NUL-terminated string from b, returning the string
// and bytes consumed.
func readCString(b []byte) (string, int, bool) {
	idx := bytes.IndexByte(b, 0x00)
	if idx == -1 {
		return "", 0, false
	}
	return string(b[:idx]), idx + 1, true
}

// handleBind authenticates the bind and registers the session. All reject
// paths answer with bind-failed and report false, which closes the
// connection. The response deliberately does not distinguish unknown
// system ids from bad passwords.
func (s *Server) handleBind(ctx context.Context, ss *session, hdr pduHeader, body []byte) bool {
	systemID, n, ok := readCString(body)
	if !ok || systemID == "" {
		slog.WarnContext(ctx, "Bind rejected: missing system_id")
		s.writeStatusResponse(ss, hdr, uint32(data.ESME_RINVSYSID))
		return false
	}
	logCtx := logging.ContextWithSystemID(ctx, systemID)

	password, _, ok := readCString(body[n:])
	if !ok {
		slog.WarnContext(logCtx, "Bind rejected: malformed password field")
		s.writeStatusResponse(ss, hdr, uint32(data.ESME_RINVPASWD))
		return false
	}

	authCtx, cancel := context.WithTimeout(logCtx, 5*time.Second)
	defer cancel()
	client, err := s.dbQueries.GetClientBySystemID(authCtx, systemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			slog.WarnContext(logCtx, "Bind rejected: unknown system_id")
			s.writeStatusResponse(ss, hdr, uint32(data.ESME_RBINDFAIL))
			return false
		}
		slog.ErrorContext(logCtx, "Bind auth lookup failed", slog.Any("error", err))
		s.writeStatusResponse(ss, hdr, uint32(data.ESME_RSYSERR))
		return false
	}
	if client.Password != password {
		slog.WarnContext(logCtx, "Bind rejected: invalid password")
		s.writeStatusResponse(ss, hdr, uint32(data.ESME_RBINDFAIL))
		return false
	}

	ss.systemID = systemID
	ss.clientID = client.ID
	ss.boundAt = time.Now()
	logCtx = logging.ContextWithClientID(logCtx, client.ID)

	if err := s.registry.register(ss, client.MaxConnections); err != nil {
		slog.WarnContext(logCtx, "Bind rejected: connection cap reached", slog.Any("error", err))
		s.writeStatusResponse(ss, hdr, uint32(data.ESME_RBINDFAIL))
		return false
	}

	respHdr := pduHeader{
		CommandID:      hdr.CommandID | respBit,
		CommandStatus:  uint32(data.ESME_ROK),
		SequenceNumber: hdr.SequenceNumber,
	}
	respBody := append([]byte(s.cfg.SystemID), 0x00)
	if err := s.writeHeaderBody(ss, respHdr, respBody); err != nil {
		slog.ErrorContext(logCtx, "Failed to write bind response", slog.Any("error", err))
		s.registry.deregister(ss)
		return false
	}

	slog.InfoContext(logCtx, "Client bound",
		slog.Int("bound_connections", s.registry.connectionCount(client.ID)))
	return true
}

// handleSubmitSM acknowledges the submission with a fresh internal message
// id and hands the message to the queue. The client gets its response
// before the message travels any further; delivery outcome follows later
// as a receipt.
func (s *Server) handleSubmitSM(ctx context.Context, ss *session, hdr pduHeader, raw []byte) {
	parsed, err := pdu.Parse(bytes.NewReader(raw))
	if err != nil {
		slog.WarnContext(ctx, "Failed to parse submit_sm", slog.Any("error", err))
		s.writeStatusResponse(ss, hdr, uint32(data.ESME_RINVMSGLEN))
		return
	}
	submit, ok := parsed.(*pdu.SubmitSM)
	if !ok {
		s.writeStatusResponse(ss, hdr, uint32(data.ESME_RINVCMDID))
		return
	}

	content, err := submit.Message.GetMessage()
	if err != nil {
		slog.WarnContext(ctx, "Failed to decode submit_sm content", slog.Any("error", err))
		s.writeStatusResponse(ss, hdr, uint32(data.ESME_RINVMSGLEN))
		return
	}

	internalID := uuid.NewString()
	logCtx := logging.ContextWithMessageID(ctx, internalID)
	logCtx = logging.ContextWithClientID(logCtx, ss.clientID)

	s.origins.Set(internalID, msgOrigin{clientID: ss.clientID, connID: ss.id})

	resp := submit.GetResponse().(*pdu.SubmitSMResp)
	resp.MessageID = internalID

	respBuf := pdu.NewBuffer(nil)
	resp.Marshal(respBuf)
	if err := s.writeRaw(ss, respBuf.Bytes()); err != nil {
		slog.ErrorContext(logCtx, "Failed to write submit_sm_resp", slog.Any("error", err))
		s.origins.Remove(internalID)
		return
	}

	msg := queue.IncomingMessage{
		InternalID:   internalID,
		ClientID:     ss.clientID,
		Source:       submit.SourceAddr.Address(),
		Destination:  submit.DestAddr.Address(),
		Content:      content,
		ConnectionID: ss.id,
	}

	// Publish after the ack so a slow broker cannot stall the client's
	// submit window.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		pubCtx, cancel := context.WithTimeout(logCtx, 10*time.Second)
		defer cancel()
		if err := s.publisher.PublishIncoming(pubCtx, msg); err != nil {
			slog.ErrorContext(logCtx, "Failed to publish incoming message", slog.Any("error", err))
			s.origins.Remove(internalID)
			return
		}
		slog.InfoContext(logCtx, "Message accepted and queued",
			slog.String("source", msg.Source), slog.String("destination", msg.Destination))
	}()
}

// Shutdown closes the listener, drops every client connection and waits
// for the handlers to drain.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.InfoContext(ctx, "Shutting down SMPP gateway")
	s.stopOnce.Do(func() { close(s.shutdown) })
	if s.listener != nil {
		_ = s.listener.Close()
	}

	for _, ss := range s.registry.snapshot() {
		_ = ss.conn.Close()
	}

	s.wg.Wait()
	slog.InfoContext(ctx, "SMPP gateway shutdown complete")
	return nil
}

func commandName(id uint32) string {
	switch id {
	case cmdBindReceiver:
		return "bind_receiver"
	case cmdBindTransmitter:
		return "bind_transmitter"
	case cmdBindTransceiver:
		return "bind_transceiver"
	case cmdSubmitSM:
		return "submit_sm"
	case cmdUnbind:
		return "unbind"
	case cmdEnquireLink:
		return "enquire_link"
	default:
		return fmt.Sprintf("0x%08X", id)
	}
}
