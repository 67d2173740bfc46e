// Package httpserver exposes the operational control surface: health,
// vendor availability and host activation. Client SMS traffic never flows
// through HTTP, that stays on the SMPP listener.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/denishrana09/smpp-gateway/internal/availability"
	"github.com/denishrana09/smpp-gateway/internal/config"
	"github.com/denishrana09/smpp-gateway/internal/database"
	"github.com/denishrana09/smpp-gateway/internal/logging"
)

// SnapshotReader serves the current vendor availability view.
type SnapshotReader interface {
	Get(ctx context.Context) (availability.Snapshot, error)
}

// VendorRefresher re-syncs a vendor's host pool after a config change.
type VendorRefresher interface {
	RefreshVendor(ctx context.Context, vendorID string) error
}

// Server is the operational HTTP API.
type Server struct {
	cfg        config.HTTPConfig
	dbQueries  database.Querier
	snapshots  SnapshotReader
	refresher  VendorRefresher
	httpServer *http.Server
	stopOnce   sync.Once
}

// NewServer creates an unstarted control API server.
func NewServer(cfg config.HTTPConfig, q database.Querier, snapshots SnapshotReader, refresher VendorRefresher) *Server {
	return &Server{
		cfg:       cfg,
		dbQueries: q,
		snapshots: snapshots,
		refresher: refresher,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /vendors/availability", s.handleAvailability)
	mux.HandleFunc("POST /vendors/{vendorID}/hosts/{hostID}/active", s.handleSetHostActive)
	return mux
}

// ListenAndServe starts the HTTP server and blocks until shutdown.
func (s *Server) ListenAndServe() error {
	if s.httpServer != nil {
		return errors.New("http server already started")
	}

	s.httpServer = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
	}

	slog.Info("Control API listening", slog.String("address", s.cfg.Addr))
	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("Control API stopped")
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		if s.httpServer != nil {
			err = s.httpServer.Shutdown(ctx)
		}
	})
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshots.Get(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to read availability snapshot", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "availability unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vendors": snap})
}

type setHostActiveRequest struct {
	Active bool `json:"active"`
}

// handleSetHostActive flips a host's active flag and tells the vendor
// manager to reconcile its pool. Activating a parked host is how an
// operator brings a failed host back into rotation.
func (s *Server) handleSetHostActive(w http.ResponseWriter, r *http.Request) {
	vendorID := r.PathValue("vendorID")
	hostID := r.PathValue("hostID")
	logCtx := logging.ContextWithVendorID(r.Context(), vendorID)
	logCtx = logging.ContextWithHostID(logCtx, hostID)

	var req setHostActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	err := s.dbQueries.SetVendorHostActive(logCtx, database.SetVendorHostActiveParams{
		ID:       hostID,
		VendorID: vendorID,
		IsActive: req.Active,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "vendor host not found"})
			return
		}
		slog.ErrorContext(logCtx, "Failed to update vendor host", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "update failed"})
		return
	}

	if err := s.refresher.RefreshVendor(logCtx, vendorID); err != nil {
		// The flag is persisted; the periodic availability refresh will
		// still converge, so report the partial success.
		slog.ErrorContext(logCtx, "Host flag updated but pool refresh failed", slog.Any("error", err))
		writeJSON(w, http.StatusAccepted, map[string]any{"active": req.Active, "refreshed": false})
		return
	}

	slog.InfoContext(logCtx, "Vendor host flag updated", slog.Bool("active", req.Active))
	writeJSON(w, http.StatusOK, map[string]any{"active": req.Active, "refreshed": true})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("Failed to encode HTTP response", slog.Any("error", err))
	}
}
