package services

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"github.com/Telepatic-Kodes/rei-os/src/lib"
	"github.com/Telepatic-Kodes/rei-os/src/models"
)

const (
	maxRequestBodyBytes = 1 << 20
	shutdownTimeout     = 5 * time.Second
)

// syncRateLimit allows one manual sync every ten seconds with a burst of three.
var syncRateLimit = rate.Every(10 * time.Second)

// TriggerServer is the local HTTP surface for manual syncs, status and
// alert settings.
type TriggerServer struct {
	syncs   *SyncService
	alerts  *AlertService
	limiter *rate.Limiter
	logger  *lib.Logger
}

// NewTriggerServer creates the server.
func NewTriggerServer(syncs *SyncService, alerts *AlertService) *TriggerServer {
	return &TriggerServer{
		syncs:   syncs,
		alerts:  alerts,
		limiter: rate.NewLimiter(syncRateLimit, 3),
		logger:  lib.NewLogger("trigger-server"),
	}
}

// Handler returns the route table.
func (s *TriggerServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sync", s.handleSync)
	mux.HandleFunc("GET /api/sync-status", s.handleSyncStatus)
	mux.HandleFunc("GET /api/alert-status", s.handleAlertStatus)
	mux.HandleFunc("GET /api/settings/alerts", s.handleGetAlertSettings)
	mux.HandleFunc("POST /api/settings/alerts", s.handlePostAlertSettings)
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *TriggerServer) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return lib.WrapError(err, lib.ErrCodeSystem, "failed to listen").WithContext("addr", addr)
	}

	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(ln) }()

	s.logger.Info("Trigger server listening", map[string]interface{}{
		"addr": ln.Addr().String(),
	})

	select {
	case err := <-errCh:
		return lib.WrapError(err, lib.ErrCodeSystem, "trigger server failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return lib.WrapError(err, lib.ErrCodeSystem, "trigger server shutdown failed")
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return lib.WrapError(err, lib.ErrCodeSystem, "trigger server failed")
	}
	return nil
}

type syncResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	DurationMs *int64 `json:"durationMs,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (s *TriggerServer) handleSync(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, syncResponse{Error: "Too many sync requests"})
		return
	}

	// A client disconnect must not abort a run holding the lock.
	outcome := s.syncs.RunAllSyncs(context.WithoutCancel(r.Context()))

	switch outcome.Status {
	case models.SyncSkipped:
		writeJSON(w, http.StatusConflict, syncResponse{Error: "Sync already in progress"})
	case models.SyncError:
		msg := outcome.Error
		if msg == "" {
			msg = "Sync failed"
		}
		writeJSON(w, http.StatusInternalServerError, syncResponse{Error: msg})
	default:
		writeJSON(w, http.StatusOK, syncResponse{
			Success:    true,
			Message:    "Sync completed successfully",
			DurationMs: &outcome.DurationMs,
		})
	}
}

type syncStatusResponse struct {
	*models.SyncStatus
	Running     bool `json:"running"`
	NeverSynced bool `json:"neverSynced,omitempty"`
}

func (s *TriggerServer) handleSyncStatus(w http.ResponseWriter, _ *http.Request) {
	resp := syncStatusResponse{Running: s.syncs.IsRunning()}

	status, err := s.syncs.Status()
	switch {
	case IsNotExist(err):
		resp.NeverSynced = true
	case err != nil:
		s.logger.Error("Failed to read sync status", map[string]interface{}{
			"error": err.Error(),
		})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to read sync status"})
		return
	default:
		resp.SyncStatus = status
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *TriggerServer) handleAlertStatus(w http.ResponseWriter, _ *http.Request) {
	alerts := s.alerts.Active()
	if alerts == nil {
		alerts = []models.AlertResult{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"alerts": alerts})
}

func (s *TriggerServer) handleGetAlertSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.alerts.LoadConfig())
}

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func (s *TriggerServer) handlePostAlertSettings(w http.ResponseWriter, r *http.Request) {
	var cfg models.AlertConfig
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	if err := s.alerts.SaveConfig(&cfg); err != nil {
		if lib.IsErrorCode(err, lib.ErrCodeValidation) {
			details := lo.Map(lib.ValidationIssues(err), func(issue lib.FieldIssue, _ int) string {
				return issue.String()
			})
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Validation failed", Details: details})
			return
		}
		s.logger.Error("Failed to save alert config", map[string]interface{}{
			"error": err.Error(),
		})
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to save alert config"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
