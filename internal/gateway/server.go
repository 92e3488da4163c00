// Package gateway serves the local store to terminals on the workshop LAN.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/vbonduro/shopsync/internal/device"
	"github.com/vbonduro/shopsync/internal/ledger"
	"github.com/vbonduro/shopsync/internal/service"
	"github.com/vbonduro/shopsync/internal/syncer"
)

const shutdownTimeout = 5 * time.Second

// SyncRunner runs a synchronization on demand. *syncer.Scheduler implements it.
type SyncRunner interface {
	Run(ctx context.Context) (*syncer.Result, error)
}

// Services are the components the gateway calls. Sync may be nil, in which
// case on-demand sync is unavailable.
type Services struct {
	Device      *device.Service
	Ledger      *ledger.Service
	Maintenance *service.MaintenanceService
	Requests    *service.RequestService
	Receipts    *service.ReceiptService
	Shifts      *service.ShiftService
	Fleet       *service.FleetService
	Snapshot    *service.SnapshotService
	Sync        SyncRunner
}

type Server struct {
	services Services
	mux      *http.ServeMux
	logger   *slog.Logger
}

func NewServer(services Services, logger *slog.Logger) *Server {
	s := &Server{
		services: services,
		mux:      http.NewServeMux(),
		logger:   logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/device", s.handleDevice)

	s.mux.HandleFunc("GET /api/inventory", s.handleInventory)
	s.mux.HandleFunc("GET /api/inventory/low-stock", s.handleLowStock)
	s.mux.HandleFunc("POST /api/inventory/move", s.handleRecordMovement)
	s.mux.HandleFunc("GET /api/inventory/{partId}/history", s.handleHistory)
	s.mux.HandleFunc("GET /api/parts", s.handleListParts)
	s.mux.HandleFunc("POST /api/parts", s.handleCreatePart)
	s.mux.HandleFunc("DELETE /api/parts/{id}", s.handleDeletePart)

	s.mux.HandleFunc("GET /api/maintenance", s.handleListMaintenance)
	s.mux.HandleFunc("POST /api/maintenance", s.handleStartMaintenance)
	s.mux.HandleFunc("GET /api/maintenance/{id}", s.handleGetMaintenance)
	s.mux.HandleFunc("POST /api/maintenance/{id}/complete", s.handleCompleteMaintenance)
	s.mux.HandleFunc("POST /api/maintenance/{id}/advance", s.handleAdvanceMaintenance)
	s.mux.HandleFunc("POST /api/maintenance/{id}/parts", s.handleAddPart)

	s.mux.HandleFunc("GET /api/requests", s.handleListRequests)
	s.mux.HandleFunc("POST /api/requests", s.handleCreateRequest)
	s.mux.HandleFunc("GET /api/requests/{id}", s.handleGetRequest)
	s.mux.HandleFunc("POST /api/requests/{id}/decision", s.handleDecideRequest)
	s.mux.HandleFunc("POST /api/requests/{id}/fulfill", s.handleFulfillRequest)

	s.mux.HandleFunc("GET /api/receipts", s.handleListReceipts)
	s.mux.HandleFunc("POST /api/receipts", s.handleCreateReceipt)
	s.mux.HandleFunc("GET /api/receipts/{id}", s.handleGetReceipt)
	s.mux.HandleFunc("POST /api/receipts/{id}/paid", s.handleMarkReceiptPaid)
	s.mux.HandleFunc("POST /api/receipts/{id}/image", s.handleUploadReceiptImage)
	s.mux.HandleFunc("GET /api/receipts/{id}/image", s.handleGetReceiptImage)

	s.mux.HandleFunc("GET /api/shifts", s.handleListShifts)
	s.mux.HandleFunc("POST /api/shifts", s.handleCreateShift)
	s.mux.HandleFunc("POST /api/shifts/end", s.handleEndShift)
	s.mux.HandleFunc("GET /api/shifts/latest", s.handleLatestShift)
	s.mux.HandleFunc("GET /api/shifts/{id}", s.handleGetShift)

	s.mux.HandleFunc("GET /api/vehicles", s.handleListVehicles)
	s.mux.HandleFunc("GET /api/mechanics", s.handleListMechanics)
	s.mux.HandleFunc("GET /api/sync/snapshot", s.handleSnapshot)
	s.mux.HandleFunc("POST /api/sync/vehicles", s.handleReplaceVehicles)
	s.mux.HandleFunc("POST /api/sync/mechanics", s.handleReplaceMechanics)
	s.mux.HandleFunc("POST /api/sync/run", s.handleRunSync)
}

// securityHeaders sets browser hardening headers on every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger(s.logger, securityHeaders(s.authenticate(s.mux))).ServeHTTP(w, r)
}

// Serve accepts connections on l until ctx is cancelled, then shuts down
// gracefully. It returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(l) }()
	s.logger.Info("gateway listening", "addr", l.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("gateway stopped")
	return nil
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}
