// Package webhook runs the local callback receiver: it records every
// inbound POST on /callback and exposes a handful of introspection
// endpoints for the polling scripts.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"datasweep/internal/domain"
	"datasweep/internal/infra/middleware"
	"datasweep/internal/store/callback"
)

const (
	maxBodySize   = 10 * 1024 * 1024
	recentWindow  = 10
	serviceName   = "datasweep webhook receiver"
	resultsPrefix = "batch_results_"

	// Generous: providers may retry callbacks in bursts.
	rateLimitPerMin = 300
	rateLimitBurst  = 50
)

// Server is the callback receiver. Start binds the listener (":0" is
// supported, see BoundAddr), Stop shuts down gracefully.
type Server struct {
	store      *callback.FileStore
	logger     *slog.Logger
	addr       string
	resultsDir string
	httpSrv    *http.Server
	boundAddr  string
}

// NewServer creates a receiver around store. resultsDir is where
// batch-result payloads are saved; empty means the current directory.
func NewServer(store *callback.FileStore, addr, resultsDir string, logger *slog.Logger) *Server {
	if resultsDir == "" {
		resultsDir = "."
	}
	return &Server{
		store:      store,
		logger:     logger,
		addr:       addr,
		resultsDir: resultsDir,
	}
}

// Router builds the receiver's route table. ctx bounds the rate
// limiter's background eviction.
func (s *Server) Router(ctx context.Context) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.PerIPRateLimit(ctx, rateLimitPerMin, rateLimitBurst))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)

	r.Get("/callback", s.handleCallbackProbe)
	r.Head("/callback", s.handleCallbackHead)
	r.Options("/callback", s.handleCallbackOptions)
	r.Post("/callback", s.handleCallbackPost)

	r.Get("/webhooks", s.handleWebhooks)
	r.Post("/webhooks/clear", s.handleClear)

	r.Get("/test", s.handleTest)
	r.Post("/test", s.handleTest)

	return r
}

// Start begins serving. Non-blocking; the listener runs in a goroutine.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(ctx),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.boundAddr = ln.Addr().String()

	go func() {
		s.logger.Info("webhook receiver started", "addr", s.boundAddr)
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("webhook receiver error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the receiver.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// BoundAddr returns the actual bound address of the receiver.
func (s *Server) BoundAddr() string { return s.boundAddr }

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":   serviceName,
		"status":    "online",
		"timestamp": time.Now().Format(time.RFC3339),
		"endpoints": map[string]string{
			"/":               "Server status",
			"/callback":       "Webhook endpoint",
			"/webhooks":       "View received webhooks",
			"/webhooks/clear": "Clear stored webhooks",
			"/health":         "Health check",
			"/test":           "Echo endpoint",
		},
		"callbacks_received": s.store.Total(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   "webhook-receiver",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleCallbackProbe answers provider validation checks. Must not
// mutate state.
func (s *Server) handleCallbackProbe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"message":         "Webhook is active and ready to receive callbacks",
		"timestamp":       time.Now().Format(time.RFC3339),
		"callbacks_count": s.store.Total(),
	})
}

func (s *Server) handleCallbackHead(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Webhook-Status", "active")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleCallbackOptions(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, HEAD, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleCallbackPost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		s.writeError(w, fmt.Errorf("read body: %w", err))
		return
	}

	rec := domain.CallbackRecord{
		Timestamp:  time.Now().Format(time.RFC3339),
		Method:     r.Method,
		Headers:    flattenHeaders(r.Header),
		RemoteAddr: remoteHost(r.RemoteAddr),
		Data:       parsePayload(body),
	}

	seq, err := s.store.Append(rec)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Info("callback received",
		"seq", seq,
		"from", rec.RemoteAddr,
		"content_type", r.Header.Get("Content-Type"),
	)
	s.handleBatchResults(rec.Data)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "success",
		"message":     "Callback received and processed",
		"timestamp":   time.Now().Format(time.RFC3339),
		"callback_id": seq,
	})
}

func (s *Server) handleWebhooks(w http.ResponseWriter, r *http.Request) {
	total := s.store.Total()
	recent := s.store.Recent(recentWindow)
	writeJSON(w, http.StatusOK, map[string]any{
		"total":     total,
		"callbacks": recent,
		"message":   fmt.Sprintf("Showing last %d of %d callbacks", len(recent), total),
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Clear(); err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("callback store cleared")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "cleared",
		"message": "All webhooks cleared",
	})
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		body, _ := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "test successful",
			"method":   "POST",
			"received": parsePayload(body),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "test successful",
		"method":  "GET",
		"message": "Server is working correctly",
	})
}

// handleBatchResults tallies and saves payloads that carry a batch
// verification result set. Best effort; failures only log.
func (s *Server) handleBatchResults(data json.RawMessage) {
	var payload struct {
		BatchID string `json:"batch_id"`
		Results []struct {
			IsAdult bool `json:"is_adult"`
		} `json:"results"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || len(payload.Results) == 0 {
		return
	}

	adults := 0
	for _, r := range payload.Results {
		if r.IsAdult {
			adults++
		}
	}
	s.logger.Info("batch verification results",
		"batch_id", payload.BatchID,
		"total", len(payload.Results),
		"adults", adults,
		"minors", len(payload.Results)-adults,
	)

	name := resultsPrefix + time.Now().Format("20060102_150405") + ".json"
	path := filepath.Join(s.resultsDir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		s.logger.Warn("save batch results", "error", err)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		s.logger.Warn("save batch results", "error", err)
		return
	}
	s.logger.Info("batch results saved", "path", path)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.logger.Error("callback processing failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"status":  "error",
		"message": err.Error(),
	})
}

// parsePayload keeps structured bodies structured: valid JSON is
// stored as-is regardless of the declared content type, and
// unparseable text is wrapped as {"raw_data": ...}.
func parsePayload(body []byte) json.RawMessage {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return json.RawMessage(`{}`)
	}
	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	return rawWrap(trimmed)
}

func rawWrap(text string) json.RawMessage {
	wrapped, err := json.Marshal(map[string]string{"raw_data": text})
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(wrapped)
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = strings.Join(v, ", ")
	}
	return out
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
