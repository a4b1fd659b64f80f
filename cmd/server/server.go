package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/trove-labs/auction-view/internal/config"
	"github.com/trove-labs/auction-view/internal/fetch"
	"github.com/trove-labs/auction-view/internal/registry"
	"github.com/trove-labs/auction-view/internal/resolver"
	"github.com/trove-labs/auction-view/internal/session"
	"github.com/trove-labs/auction-view/internal/types"
)

const version = "1.0.0"

// startTime records when the service was initialized for uptime reporting
var startTime = time.Now()

// TransportHealth reports the per-network RPC transport state
type TransportHealth interface {
	Health() []fetch.ChainHealth
}

// Server exposes one session to the presentation layer over HTTP
type Server struct {
	config    config.Config
	session   *session.Session
	registry  *registry.Registry
	transport TransportHealth
	gatherer  prometheus.Gatherer
	server    *http.Server
}

// NewServer creates the HTTP surface for sess
func NewServer(cfg config.Config, sess *session.Session, reg *registry.Registry, transport TransportHealth, gatherer prometheus.Gatherer) *Server {
	return &Server{
		config:    cfg,
		session:   sess,
		registry:  reg,
		transport: transport,
		gatherer:  gatherer,
	}
}

// Handler returns the routed API
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /resolution", s.handleResolution)
	mux.HandleFunc("GET /notification", s.handleNotification)
	mux.HandleFunc("DELETE /notification", s.handleDismiss)
	mux.HandleFunc("GET /auctions", s.handleAuctions)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("POST /network", s.handleNetwork)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /status", s.handleStatus)
	return mux
}

// Start serves until ctx is done, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("Server starting on port %s", s.config.Port)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("error starting server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logrus.Info("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logrus.Info("Server stopped")
	return nil
}

// handleResolution returns the auction-house resolution, or the resolution of
// ?role= on the active network
func (s *Server) handleResolution(w http.ResponseWriter, r *http.Request) {
	role := r.URL.Query().Get("role")
	if role == "" {
		if _, ok := s.session.Network(); !ok {
			errorResponse(w, http.StatusConflict, session.ErrNoNetwork.Error())
			return
		}
		writeJSON(w, http.StatusOK, s.session.Resolution())
		return
	}

	res, err := s.session.Resolve(r.Context(), types.ContractRole(role))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, resolver.ErrInvalidRole):
		errorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrNoNetwork):
		errorResponse(w, http.StatusConflict, err.Error())
	default:
		errorResponse(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleNotification(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Notifications().Current())
}

// handleDismiss clears the notification with ?id=, or whatever is pending
// when no id is given
func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	notes := s.session.Notifications()
	dismissed := true
	if id := r.URL.Query().Get("id"); id != "" {
		dismissed = notes.Dismiss(id)
	} else {
		notes.Hide()
	}
	writeJSON(w, http.StatusOK, map[string]bool{"dismissed": dismissed})
}

func (s *Server) handleAuctions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Auctions())
}

// networkRequest is the body of POST /network, as a wallet reports it
type networkRequest struct {
	ChainID *uint64 `json:"chainId"`
}

func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	var req networkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChainID == nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body: expected {\"chainId\": <number>}")
		return
	}

	res, err := s.session.SwitchNetwork(r.Context(), types.ChainID(*req.ChainID))
	switch {
	case errors.Is(err, session.ErrInvalidNetwork):
		errorResponse(w, http.StatusBadRequest, err.Error())
	case err != nil:
		errorResponse(w, http.StatusInternalServerError, fmt.Sprintf("Error switching network: %v", err))
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

// handleEvents streams resolution, notification and auction updates as
// server-sent events until the client goes away. Each stream starts with its
// current value.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// the stream outlives the server's write timeout
	_ = rc.SetWriteDeadline(time.Time{})

	resolutions, stopResolutions := s.session.SubscribeResolution()
	defer stopResolutions()
	notes, stopNotes := s.session.Notifications().Subscribe()
	defer stopNotes()
	auctions, stopAuctions := s.session.SubscribeAuctions()
	defer stopAuctions()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		logrus.Warnf("Event stream unsupported: %v", err)
		return
	}

	for {
		var event string
		var payload interface{}
		var ok bool
		select {
		case <-r.Context().Done():
			return
		case payload, ok = <-resolutions:
			event = "resolution"
		case payload, ok = <-notes:
			event = "notification"
		case payload, ok = <-auctions:
			event = "auctions"
		}
		if !ok {
			return
		}

		data, err := json.Marshal(payload)
		if err != nil {
			logrus.Warnf("Failed to encode %s event: %v", event, err)
			continue
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// handleHealth is a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"version":   version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleMetrics exposes Prometheus metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if !s.config.EnableMetrics || s.gatherer == nil {
		http.Error(w, "Metrics disabled", http.StatusServiceUnavailable)
		return
	}
	promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

// handleStatus provides detailed service status information
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.session.Auctions()
	status := map[string]interface{}{
		"status":    "operational",
		"uptime":    time.Since(startTime).String(),
		"version":   version,
		"supported": s.registry.Supported(),
		"fallback":  s.registry.FallbackChain(),
		"rpc":       s.transport.Health(),
		"view": map[string]interface{}{
			"state":         snap.State,
			"generation":    snap.Generation,
			"informational": snap.Informational,
			"auctions":      len(snap.Views),
			"unavailable":   len(snap.Unavailable),
		},
		"configuration": map[string]interface{}{
			"poll_interval": s.config.PollInterval.String(),
			"rpc_timeout":   s.config.RPCTimeout.String(),
			"locale":        s.config.DisplayLocale,
		},
	}
	if id, ok := s.session.Network(); ok {
		status["network"] = id
	}
	writeJSON(w, http.StatusOK, status)
}
