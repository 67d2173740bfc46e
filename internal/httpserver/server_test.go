package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denishrana09/smpp-gateway/internal/availability"
	"github.com/denishrana09/smpp-gateway/internal/config"
	"github.com/denishrana09/smpp-gateway/internal/database"
)

type stubSnapshots struct {
	snap availability.Snapshot
	err  error
}

func (s *stubSnapshots) Get(context.Context) (availability.Snapshot, error) {
	return s.snap, s.err
}

type stubRefresher struct {
	err       error
	refreshed []string
}

func (s *stubRefresher) RefreshVendor(_ context.Context, vendorID string) error {
	if s.err != nil {
		return s.err
	}
	s.refreshed = append(s.refreshed, vendorID)
	return nil
}

type hostQuerier struct {
	database.Querier

	err     error
	updates []database.SetVendorHostActiveParams
}

func (q *hostQuerier) SetVendorHostActive(_ context.Context, arg database.SetVendorHostActiveParams) error {
	if q.err != nil {
		return q.err
	}
	q.updates = append(q.updates, arg)
	return nil
}

func newTestHandler(q database.Querier, snaps SnapshotReader, refresher VendorRefresher) http.Handler {
	return NewServer(config.HTTPConfig{}, q, snaps, refresher).Handler()
}

func TestHealthz(t *testing.T) {
	h := newTestHandler(&hostQuerier{}, &stubSnapshots{}, &stubRefresher{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAvailabilityEndpoint(t *testing.T) {
	snaps := &stubSnapshots{snap: availability.Snapshot{{
		ID:              "v-1",
		SystemID:        "vendor1",
		ActiveHostCount: 2,
		MessagePrice:    decimal.NewFromFloat(0.015),
	}}}
	h := newTestHandler(&hostQuerier{}, snaps, &stubRefresher{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/vendors/availability", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Vendors []availability.VendorAvailability `json:"vendors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Vendors, 1)
	assert.Equal(t, "v-1", body.Vendors[0].ID)
	assert.Equal(t, int32(2), body.Vendors[0].ActiveHostCount)
}

func TestAvailabilityEndpointError(t *testing.T) {
	h := newTestHandler(&hostQuerier{}, &stubSnapshots{err: errors.New("database down")}, &stubRefresher{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/vendors/availability", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSetHostActive(t *testing.T) {
	q := &hostQuerier{}
	refresher := &stubRefresher{}
	h := newTestHandler(q, &stubSnapshots{}, refresher)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/vendors/v-1/hosts/h-1/active", strings.NewReader(`{"active":true}`))
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, q.updates, 1)
	assert.Equal(t, database.SetVendorHostActiveParams{ID: "h-1", VendorID: "v-1", IsActive: true}, q.updates[0])
	assert.Equal(t, []string{"v-1"}, refresher.refreshed)
}

func TestSetHostActiveUnknownHost(t *testing.T) {
	q := &hostQuerier{err: pgx.ErrNoRows}
	h := newTestHandler(q, &stubSnapshots{}, &stubRefresher{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/vendors/v-1/hosts/h-missing/active", strings.NewReader(`{"active":false}`))
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetHostActiveBadBody(t *testing.T) {
	h := newTestHandler(&hostQuerier{}, &stubSnapshots{}, &stubRefresher{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/vendors/v-1/hosts/h-1/active", strings.NewReader(`not json`))
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetHostActiveRefreshFailureStillPersists(t *testing.T) {
	q := &hostQuerier{}
	h := newTestHandler(q, &stubSnapshots{}, &stubRefresher{err: errors.New("vendor unreachable")})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/vendors/v-1/hosts/h-1/active", strings.NewReader(`{"active":true}`))
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Len(t, q.updates, 1)
}
