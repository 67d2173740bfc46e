package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denishrana09/smpp-gateway/internal/database"
)

type fakeQuerier struct {
	database.Querier

	createClientErr error
	createdClients  []database.CreateClientParams

	clients  map[string]database.Client
	vendors  map[string]database.Vendor
	messages []database.Message

	createHostErr error
	createdHosts  []database.CreateVendorHostParams
	deletedIDs    []string
	deleteErr     error
}

func (f *fakeQuerier) CreateClient(_ context.Context, arg database.CreateClientParams) (database.Client, error) {
	if f.createClientErr != nil {
		return database.Client{}, f.createClientErr
	}
	f.createdClients = append(f.createdClients, arg)
	now := time.Now()
	return database.Client{
		ID:              arg.ID,
		SystemID:        arg.SystemID,
		Password:        arg.Password,
		MaxConnections:  arg.MaxConnections,
		RoutingStrategy: arg.RoutingStrategy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func (f *fakeQuerier) GetClientByID(_ context.Context, id string) (database.Client, error) {
	c, ok := f.clients[id]
	if !ok {
		return database.Client{}, pgx.ErrNoRows
	}
	return c, nil
}

func (f *fakeQuerier) ListClients(_ context.Context, _ database.ListClientsParams) ([]database.Client, error) {
	var out []database.Client
	for _, c := range f.clients {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeQuerier) CountClients(context.Context) (int64, error) {
	return int64(len(f.clients)), nil
}

func (f *fakeQuerier) DeleteClient(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedIDs = append(f.deletedIDs, id)
	return nil
}

func (f *fakeQuerier) GetVendorByID(_ context.Context, id string) (database.Vendor, error) {
	v, ok := f.vendors[id]
	if !ok {
		return database.Vendor{}, pgx.ErrNoRows
	}
	return v, nil
}

func (f *fakeQuerier) CreateVendorHost(_ context.Context, arg database.CreateVendorHostParams) (database.VendorHost, error) {
	if f.createHostErr != nil {
		return database.VendorHost{}, f.createHostErr
	}
	f.createdHosts = append(f.createdHosts, arg)
	return database.VendorHost{
		ID:       arg.ID,
		VendorID: arg.VendorID,
		Host:     arg.Host,
		Port:     arg.Port,
		Priority: arg.Priority,
		IsActive: arg.IsActive,
	}, nil
}

func (f *fakeQuerier) ListMessages(_ context.Context, arg database.ListMessagesParams) ([]database.Message, error) {
	var out []database.Message
	for _, m := range f.messages {
		if arg.ClientID == "" || m.ClientID == arg.ClientID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeQuerier) CountMessages(_ context.Context, clientID string) (int64, error) {
	var n int64
	for _, m := range f.messages {
		if clientID == "" || m.ClientID == clientID {
			n++
		}
	}
	return n, nil
}

func newTestRouter(q database.Querier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupRoutes(router.Group("/api/v1"), q)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func uniqueViolation() *pgconn.PgError {
	return &pgconn.PgError{Code: "23505"}
}

func foreignKeyViolation() *pgconn.PgError {
	return &pgconn.PgError{Code: "23503"}
}

func TestCreateClientAppliesDefaults(t *testing.T) {
	q := &fakeQuerier{}
	router := newTestRouter(q)

	w := doJSON(t, router, http.MethodPost, "/api/v1/clients", gin.H{
		"system_id": "acme",
		"password":  "s3cret",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, q.createdClients, 1)
	created := q.createdClients[0]
	assert.Equal(t, "acme", created.SystemID)
	assert.Equal(t, int32(1), created.MaxConnections)
	assert.Equal(t, "priority", created.RoutingStrategy)
	assert.NotEmpty(t, created.ID)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "acme", resp["system_id"])
	assert.NotContains(t, resp, "password")
}

func TestCreateClientRejectsBadBody(t *testing.T) {
	q := &fakeQuerier{}
	router := newTestRouter(q)

	w := doJSON(t, router, http.MethodPost, "/api/v1/clients", gin.H{"system_id": "acme"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, q.createdClients)
}

func TestCreateClientDuplicateSystemID(t *testing.T) {
	q := &fakeQuerier{createClientErr: uniqueViolation()}
	router := newTestRouter(q)

	w := doJSON(t, router, http.MethodPost, "/api/v1/clients", gin.H{
		"system_id": "acme",
		"password":  "s3cret",
	})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetClientNotFound(t *testing.T) {
	q := &fakeQuerier{clients: map[string]database.Client{}}
	router := newTestRouter(q)

	w := doJSON(t, router, http.MethodGet, "/api/v1/clients/missing", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListClientsEmptyPage(t *testing.T) {
	q := &fakeQuerier{clients: map[string]database.Client{}}
	router := newTestRouter(q)

	w := doJSON(t, router, http.MethodGet, "/api/v1/clients", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data       []any `json:"data"`
		Pagination struct {
			Total  int64 `json:"total"`
			Limit  int32 `json:"limit"`
			Offset int32 `json:"offset"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Data)
	assert.Equal(t, int64(0), resp.Pagination.Total)
	assert.Equal(t, int32(DefaultLimit), resp.Pagination.Limit)
}

func TestDeleteClient(t *testing.T) {
	q := &fakeQuerier{}
	router := newTestRouter(q)

	w := doJSON(t, router, http.MethodDelete, "/api/v1/clients/client-1", nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"client-1"}, q.deletedIDs)
}

func TestDeleteClientWithHistoryConflicts(t *testing.T) {
	q := &fakeQuerier{deleteErr: foreignKeyViolation()}
	router := newTestRouter(q)

	w := doJSON(t, router, http.MethodDelete, "/api/v1/clients/client-1", nil)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateVendorHostDefaultsToActive(t *testing.T) {
	q := &fakeQuerier{}
	router := newTestRouter(q)

	w := doJSON(t, router, http.MethodPost, "/api/v1/vendors/v-1/hosts", gin.H{
		"host": "smpp.carrier.example",
		"port": 2775,
	})

	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, q.createdHosts, 1)
	created := q.createdHosts[0]
	assert.Equal(t, "v-1", created.VendorID)
	assert.True(t, created.IsActive)
}

func TestCreateVendorHostUnknownVendor(t *testing.T) {
	q := &fakeQuerier{createHostErr: foreignKeyViolation()}
	router := newTestRouter(q)

	w := doJSON(t, router, http.MethodPost, "/api/v1/vendors/missing/hosts", gin.H{
		"host": "smpp.carrier.example",
		"port": 2775,
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListMessagesScopedToClient(t *testing.T) {
	q := &fakeQuerier{messages: []database.Message{
		{ID: "m-1", ClientID: "client-1", Status: "DELIVERED"},
		{ID: "m-2", ClientID: "client-2", Status: "SENT"},
	}}
	router := newTestRouter(q)

	w := doJSON(t, router, http.MethodGet, "/api/v1/messages?client_id=client-1", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
		Pagination struct {
			Total int64 `json:"total"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "m-1", resp.Data[0].ID)
	assert.Equal(t, int64(1), resp.Pagination.Total)
}

func TestPaginationCapsLimit(t *testing.T) {
	q := &fakeQuerier{clients: map[string]database.Client{
		"c-1": {ID: "c-1", SystemID: "acme"},
	}}
	router := newTestRouter(q)

	w := doJSON(t, router, http.MethodGet, "/api/v1/clients?limit=5000&offset=0", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Pagination struct {
			Limit int32 `json:"limit"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int32(MaxLimit), resp.Pagination.Limit)
}
