package gateway

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/linxGnu/gosmpp/data"
	"github.com/linxGnu/gosmpp/pdu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denishrana09/smpp-gateway/internal/config"
	"github.com/denishrana09/smpp-gateway/internal/database"
	"github.com/denishrana09/smpp-gateway/internal/queue"
	"github.com/denishrana09/smpp-gateway/pkg/codes"
	"github.com/denishrana09/smpp-gateway/pkg/receipt"
)

type clientQuerier struct {
	database.Querier

	clients map[string]database.Client
}

func (q *clientQuerier) GetClientBySystemID(_ context.Context, systemID string) (database.Client, error) {
	c, ok := q.clients[systemID]
	if !ok {
		return database.Client{}, pgx.ErrNoRows
	}
	return c, nil
}

type channelPublisher struct {
	mu       sync.Mutex
	messages chan queue.IncomingMessage
}

func newChannelPublisher() *channelPublisher {
	return &channelPublisher{messages: make(chan queue.IncomingMessage, 16)}
}

func (p *channelPublisher) PublishIncoming(_ context.Context, msg queue.IncomingMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages <- msg
	return nil
}

func startTestServer(t *testing.T, q database.Querier, pub IncomingPublisher) *Server {
	t.Helper()

	srv := NewServer(config.ServerConfig{
		Addr:        "127.0.0.1:0",
		ReadTimeout: 5 * time.Second,
		SystemID:    "GATEWAY",
	}, q, pub)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	require.Eventually(t, func() bool { return srv.listener != nil }, 2*time.Second, time.Millisecond)
	return srv
}

func dialServer(t *testing.T, srv *Server) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", srv.listener.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	return conn
}

// bindPDU builds a raw bind_transceiver request.
func bindPDU(seq uint32, systemID, password string) []byte {
	body := append([]byte(systemID), 0x00)
	body = append(body, []byte(password)...)
	body = append(body, 0x00)
	body = append(body, 0x00)             // system_type
	body = append(body, 0x34, 0x00, 0x00) // interface_version, addr_ton, addr_npi
	body = append(body, 0x00)             // address_range

	raw := make([]byte, 16+len(body))
	binary.BigEndian.PutUint32(raw[0:], uint32(len(raw)))
	binary.BigEndian.PutUint32(raw[4:], cmdBindTransceiver)
	binary.BigEndian.PutUint32(raw[8:], 0)
	binary.BigEndian.PutUint32(raw[12:], seq)
	copy(raw[16:], body)
	return raw
}

func headerOnlyPDU(cmd, seq uint32) []byte {
	raw := make([]byte, 16)
	binary.BigEndian.PutUint32(raw[0:], 16)
	binary.BigEndian.PutUint32(raw[4:], cmd)
	binary.BigEndian.PutUint32(raw[12:], seq)
	return raw
}

// readRawPDU reads one PDU off the wire and returns its header and body.
func readRawPDU(t *testing.T, r io.Reader) (pduHeader, []byte) {
	t.Helper()

	hdrBytes := make([]byte, 16)
	_, err := io.ReadFull(r, hdrBytes)
	require.NoError(t, err)

	hdr := pduHeader{
		Length:         binary.BigEndian.Uint32(hdrBytes[0:4]),
		CommandID:      binary.BigEndian.Uint32(hdrBytes[4:8]),
		CommandStatus:  binary.BigEndian.Uint32(hdrBytes[8:12]),
		SequenceNumber: binary.BigEndian.Uint32(hdrBytes[12:16]),
	}
	body := make([]byte, hdr.Length-16)
	_, err = io.ReadFull(r, body)
	require.NoError(t, err)
	return hdr, body
}

func bindClient(t *testing.T, conn net.Conn, r *bufio.Reader, systemID, password string) pduHeader {
	t.Helper()
	_, err := conn.Write(bindPDU(1, systemID, password))
	require.NoError(t, err)
	hdr, _ := readRawPDU(t, r)
	require.Equal(t, cmdBindTransceiver|respBit, hdr.CommandID)
	return hdr
}

func submitPDU(t *testing.T, seq int32, source, dest, content string) []byte {
	t.Helper()

	p := pdu.NewSubmitSM().(*pdu.SubmitSM)
	srcAddr := pdu.NewAddress()
	require.NoError(t, srcAddr.SetAddress(source))
	p.SourceAddr = srcAddr
	destAddr := pdu.NewAddress()
	require.NoError(t, destAddr.SetAddress(dest))
	p.DestAddr = destAddr
	require.NoError(t, p.Message.SetMessageWithEncoding(content, data.GSM7BIT))
	p.RegisteredDelivery = 1
	p.SetSequenceNumber(seq)

	buf := pdu.NewBuffer(nil)
	p.Marshal(buf)
	return buf.Bytes()
}

func defaultQuerier() *clientQuerier {
	return &clientQuerier{clients: map[string]database.Client{
		"acme": {ID: "client-1", SystemID: "acme", Password: "s3cret", MaxConnections: 2},
	}}
}

func TestBindSuccess(t *testing.T) {
	srv := startTestServer(t, defaultQuerier(), newChannelPublisher())
	conn := dialServer(t, srv)
	r := bufio.NewReader(conn)

	hdr := bindClient(t, conn, r, "acme", "s3cret")
	assert.Equal(t, uint32(data.ESME_ROK), hdr.CommandStatus)
	assert.Equal(t, 1, srv.registry.connectionCount("client-1"))
}

func TestBindRejectsBadCredentials(t *testing.T) {
	srv := startTestServer(t, defaultQuerier(), newChannelPublisher())

	for _, tc := range []struct {
		name     string
		systemID string
		password string
	}{
		{"wrong password", "acme", "nope"},
		{"unknown system id", "ghost", "s3cret"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			conn := dialServer(t, srv)
			r := bufio.NewReader(conn)

			hdr := bindClient(t, conn, r, tc.systemID, tc.password)
			assert.Equal(t, uint32(data.ESME_RBINDFAIL), hdr.CommandStatus)

			// Server closes the connection after a rejected bind.
			_, err := r.ReadByte()
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestBindEnforcesConnectionCap(t *testing.T) {
	srv := startTestServer(t, defaultQuerier(), newChannelPublisher())

	for i := 0; i < 2; i++ {
		conn := dialServer(t, srv)
		r := bufio.NewReader(conn)
		hdr := bindClient(t, conn, r, "acme", "s3cret")
		require.Equal(t, uint32(data.ESME_ROK), hdr.CommandStatus)
	}

	conn := dialServer(t, srv)
	r := bufio.NewReader(conn)
	hdr := bindClient(t, conn, r, "acme", "s3cret")
	assert.Equal(t, uint32(data.ESME_RBINDFAIL), hdr.CommandStatus)
}

func TestConcurrentBindsRespectConnectionCap(t *testing.T) {
	srv := startTestServer(t, defaultQuerier(), newChannelPublisher())
	addr := srv.listener.Addr().String()

	// Sample the registry while binds race so a transient overshoot of the
	// cap is caught, not just the settled state.
	stop := make(chan struct{})
	maxSeen := make(chan int, 1)
	go func() {
		max := 0
		for {
			select {
			case <-stop:
				maxSeen <- max
				return
			default:
				if n := srv.registry.connectionCount("client-1"); n > max {
					max = n
				}
				time.Sleep(100 * time.Microsecond)
			}
		}
	}()

	const attempts = 8
	statuses := make(chan uint32, attempts)
	conns := make(chan net.Conn, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, err := net.Dial("tcp", addr)
			if err != nil {
				statuses <- ^uint32(0)
				return
			}
			conns <- conn
			_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
			if _, err := conn.Write(bindPDU(1, "acme", "s3cret")); err != nil {
				statuses <- ^uint32(0)
				return
			}
			hdrBytes := make([]byte, 16)
			if _, err := io.ReadFull(conn, hdrBytes); err != nil {
				statuses <- ^uint32(0)
				return
			}
			length := binary.BigEndian.Uint32(hdrBytes[0:4])
			if length > 16 {
				if _, err := io.ReadFull(conn, make([]byte, length-16)); err != nil {
					statuses <- ^uint32(0)
					return
				}
			}
			statuses <- binary.BigEndian.Uint32(hdrBytes[8:12])
		}()
	}
	wg.Wait()
	close(stop)
	close(conns)
	for conn := range conns {
		defer conn.Close()
	}

	accepted, rejected := 0, 0
	for i := 0; i < attempts; i++ {
		switch status := <-statuses; status {
		case uint32(data.ESME_ROK):
			accepted++
		case uint32(data.ESME_RBINDFAIL):
			rejected++
		default:
			t.Fatalf("unexpected bind response status 0x%08X", status)
		}
	}

	assert.Equal(t, 2, accepted)
	assert.Equal(t, attempts-2, rejected)
	assert.LessOrEqual(t, <-maxSeen, 2)
	assert.Equal(t, 2, srv.registry.connectionCount("client-1"))
}

func TestCommandBeforeBindIsRejected(t *testing.T) {
	srv := startTestServer(t, defaultQuerier(), newChannelPublisher())
	conn := dialServer(t, srv)
	r := bufio.NewReader(conn)

	_, err := conn.Write(headerOnlyPDU(cmdEnquireLink, 9))
	require.NoError(t, err)

	hdr, _ := readRawPDU(t, r)
	assert.Equal(t, cmdEnquireLink|respBit, hdr.CommandID)
	assert.Equal(t, uint32(data.ESME_RINVBNDSTS), hdr.CommandStatus)
}

func TestSubmitAckedAndQueued(t *testing.T) {
	pub := newChannelPublisher()
	srv := startTestServer(t, defaultQuerier(), pub)
	conn := dialServer(t, srv)
	r := bufio.NewReader(conn)
	bindClient(t, conn, r, "acme", "s3cret")

	_, err := conn.Write(submitPDU(t, 2, "ACME", "2348010000001", "hello there"))
	require.NoError(t, err)

	parsed, err := pdu.Parse(r)
	require.NoError(t, err)
	resp, ok := parsed.(*pdu.SubmitSMResp)
	require.True(t, ok)
	assert.NotEmpty(t, resp.MessageID)
	assert.Equal(t, int32(2), resp.GetSequenceNumber())

	select {
	case msg := <-pub.messages:
		assert.Equal(t, resp.MessageID, msg.InternalID)
		assert.Equal(t, "client-1", msg.ClientID)
		assert.Equal(t, "ACME", msg.Source)
		assert.Equal(t, "2348010000001", msg.Destination)
		assert.Equal(t, "hello there", msg.Content)
		assert.NotEmpty(t, msg.ConnectionID)
	case <-time.After(2 * time.Second):
		t.Fatal("message never reached the queue")
	}

	assert.True(t, srv.origins.Has(resp.MessageID))
}

func TestEnquireLinkAndUnbind(t *testing.T) {
	srv := startTestServer(t, defaultQuerier(), newChannelPublisher())
	conn := dialServer(t, srv)
	r := bufio.NewReader(conn)
	bindClient(t, conn, r, "acme", "s3cret")

	_, err := conn.Write(headerOnlyPDU(cmdEnquireLink, 7))
	require.NoError(t, err)
	hdr, _ := readRawPDU(t, r)
	assert.Equal(t, cmdEnquireLink|respBit, hdr.CommandID)
	assert.Equal(t, uint32(data.ESME_ROK), hdr.CommandStatus)

	_, err = conn.Write(headerOnlyPDU(cmdUnbind, 8))
	require.NoError(t, err)
	hdr, _ = readRawPDU(t, r)
	assert.Equal(t, cmdUnbind|respBit, hdr.CommandID)
	assert.Equal(t, uint32(data.ESME_ROK), hdr.CommandStatus)

	require.Eventually(t, func() bool {
		return srv.registry.connectionCount("client-1") == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRelayDeliveryReport(t *testing.T) {
	pub := newChannelPublisher()
	srv := startTestServer(t, defaultQuerier(), pub)
	conn := dialServer(t, srv)
	r := bufio.NewReader(conn)
	bindClient(t, conn, r, "acme", "s3cret")

	_, err := conn.Write(submitPDU(t, 2, "ACME", "2348010000001", "hello"))
	require.NoError(t, err)
	parsed, err := pdu.Parse(r)
	require.NoError(t, err)
	internalID := parsed.(*pdu.SubmitSMResp).MessageID
	<-pub.messages

	require.NoError(t, srv.RelayDeliveryReport(context.Background(), "client-1", internalID, codes.MsgStatusDelivered))

	parsed, err = pdu.Parse(r)
	require.NoError(t, err)
	deliver, ok := parsed.(*pdu.DeliverSM)
	require.True(t, ok)
	assert.Equal(t, byte(0x04), deliver.EsmClass)

	text, err := deliver.Message.GetMessage()
	require.NoError(t, err)
	rcpt, err := receipt.Parse(text)
	require.NoError(t, err)
	assert.Equal(t, internalID, rcpt.MessageID)
	assert.Equal(t, codes.MsgStatusDelivered, rcpt.Status)

	// Terminal status retires the correlation entry.
	assert.False(t, srv.origins.Has(internalID))
}

func TestRelayDeliveryReportFallsBackToAnotherBind(t *testing.T) {
	pub := newChannelPublisher()
	srv := startTestServer(t, defaultQuerier(), pub)

	connA := dialServer(t, srv)
	rA := bufio.NewReader(connA)
	bindClient(t, connA, rA, "acme", "s3cret")

	_, err := connA.Write(submitPDU(t, 2, "ACME", "2348010000001", "hello"))
	require.NoError(t, err)
	parsed, err := pdu.Parse(rA)
	require.NoError(t, err)
	internalID := parsed.(*pdu.SubmitSMResp).MessageID
	<-pub.messages

	connB := dialServer(t, srv)
	rB := bufio.NewReader(connB)
	bindClient(t, connB, rB, "acme", "s3cret")

	// The originating connection goes away, the receipt must use the
	// surviving bind.
	_ = connA.Close()
	require.Eventually(t, func() bool {
		return srv.registry.connectionCount("client-1") == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, srv.RelayDeliveryReport(context.Background(), "client-1", internalID, codes.MsgStatusExpired))

	parsed, err = pdu.Parse(rB)
	require.NoError(t, err)
	_, ok := parsed.(*pdu.DeliverSM)
	assert.True(t, ok)
}

func TestRelayDeliveryReportWithoutBoundSession(t *testing.T) {
	srv := startTestServer(t, defaultQuerier(), newChannelPublisher())

	err := srv.RelayDeliveryReport(context.Background(), "client-1", "msg-1", codes.MsgStatusDelivered)
	assert.Error(t, err)
}

func TestRegistryCapAndCleanup(t *testing.T) {
	r := newRegistry()
	a := &session{id: "c-1", clientID: "client-1"}
	b := &session{id: "c-2", clientID: "client-1"}
	c := &session{id: "c-3", clientID: "client-1"}

	require.NoError(t, r.register(a, 2))
	require.NoError(t, r.register(b, 2))
	assert.ErrorIs(t, r.register(c, 2), codes.ErrCapacityExceeded)

	r.deregister(a)
	require.NoError(t, r.register(c, 2))

	r.deregister(b)
	r.deregister(c)
	assert.Equal(t, 0, r.connectionCount("client-1"))
	_, ok := r.anySession("client-1")
	assert.False(t, ok)
}
