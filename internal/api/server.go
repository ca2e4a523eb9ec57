// Package api provides the REST and WebSocket surface for starting scans,
// watching their progress, and inspecting the blacklist, on top of the
// gorilla/mux router the teacher uses for its own API server.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/pingcrafty/mcscan/internal/api/middleware"
	"github.com/pingcrafty/mcscan/internal/auth"
	"github.com/pingcrafty/mcscan/internal/blacklist"
	"github.com/pingcrafty/mcscan/internal/config"
	"github.com/pingcrafty/mcscan/internal/logging"
	"github.com/pingcrafty/mcscan/internal/metrics"
	"github.com/pingcrafty/mcscan/internal/orchestrator"
)

const (
	serverShutdownTimeout = 30 * time.Second
	writeWait             = 10 * time.Second
	pongWait              = 60 * time.Second
	pingPeriod            = pongWait * 9 / 10
)

// Server serves the scan-control REST API and progress WebSocket.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	cfg        *config.Config
	blacklist  *blacklist.Blacklist
	logger     *logging.Logger
	metrics    *metrics.Registry
	startTime  time.Time
	upgrader   websocket.Upgrader

	mu    sync.RWMutex
	scans map[uuid.UUID]*runningScan

	// apiKeyHash is the bcrypt hash of cfg.API.APIKey, computed once at
	// startup so request-path authentication never holds the plaintext key.
	apiKeyHash string
}

type runningScan struct {
	orchestrator *orchestrator.Orchestrator
	cancel       context.CancelFunc
	startedAt    time.Time
}

// New builds a Server bound to cfg.API's listen address. bl may be nil if
// the blacklist is disabled.
func New(cfg *config.Config, bl *blacklist.Blacklist) (*Server, error) {
	s := &Server{
		router:    mux.NewRouter(),
		cfg:       cfg,
		blacklist: bl,
		logger:    logging.Default(),
		metrics:   metrics.NewRegistry(),
		startTime: time.Now(),
		scans:     make(map[uuid.UUID]*runningScan),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	if cfg.API.APIKey != "" {
		if !auth.IsValidAPIKeyFormat(cfg.API.APIKey) {
			return nil, fmt.Errorf("api.api_key is not a valid key (generate one with 'mcscan config generate-key')")
		}
		hash, err := auth.HashAPIKey(cfg.API.APIKey)
		if err != nil {
			return nil, fmt.Errorf("hashing api.api_key: %w", err)
		}
		s.apiKeyHash = hash
	}

	s.setupRoutes()
	s.setupMiddleware()

	s.httpServer = &http.Server{
		Addr:           net.JoinHostPort(cfg.API.ListenAddr, strconv.Itoa(cfg.API.Port)),
		Handler:        s.router,
		ReadTimeout:    cfg.API.RequestTimeout,
		WriteTimeout:   cfg.API.RequestTimeout,
		MaxHeaderBytes: int(cfg.API.MaxRequestSize),
	}

	return s, nil
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.logger.InfoDaemon("starting API server", "address", s.httpServer.Addr)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("API server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errChan:
		return err
	}
}

// Stop gracefully shuts the server down, waiting for in-flight requests.
func (s *Server) Stop() error {
	s.logger.InfoDaemon("stopping API server")
	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/healthz", s.healthzHandler).Methods(http.MethodGet)
	api.HandleFunc("/blacklist", s.blacklistHandler).Methods(http.MethodGet)
	api.HandleFunc("/scans", s.createScanHandler).Methods(http.MethodPost)
	api.HandleFunc("/scans/{id}/stats", s.scanStatsHandler).Methods(http.MethodGet)
	api.HandleFunc("/scans/{id}/events", s.scanEventsHandler).Methods(http.MethodGet)
}

// setupMiddleware wires the shared middleware chain: recovery outermost so a
// panic anywhere below it is caught and logged, request/response logging and
// metrics wrap every route, then security headers, content-type, CORS and
// API-key checks gate access, with the request timeout innermost.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery(s.logger.Logger))
	s.router.Use(middleware.Logging(s.logger.Logger))
	s.router.Use(middleware.Metrics(s.metrics))
	s.router.Use(middleware.SecurityHeaders())
	s.router.Use(middleware.ContentType())

	if s.cfg.API.CORS.Enabled {
		s.router.Use(handlers.CORS(
			handlers.AllowedOrigins(s.cfg.API.CORS.AllowedOrigins),
			handlers.AllowedHeaders(s.cfg.API.CORS.AllowedHeaders),
			handlers.AllowedMethods(s.cfg.API.CORS.AllowedMethods),
		))
	}
	if s.apiKeyHash != "" {
		s.router.Use(middleware.Authentication([]string{s.apiKeyHash}, s.logger.Logger))
	}
	s.router.Use(middleware.RequestTimeout(s.cfg.API.RequestTimeout))
}

// healthzHandler reports process liveness.
func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}

// blacklistHandler lists the currently loaded blacklist entries.
func (s *Server) blacklistHandler(w http.ResponseWriter, r *http.Request) {
	if s.blacklist == nil {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"enabled": false, "entries": []string{}})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"enabled": true,
		"entries": s.blacklist.Entries(),
	})
}

// createScanRequest describes a target source plus an orchestrator config
// override for a scan started through the API.
type createScanRequest struct {
	Discovery    config.DiscoveryConfig `json:"discovery"`
	Orchestrator orchestrator.Config    `json:"orchestrator,omitempty"`
}

// createScanHandler starts a scan against a target source built from the
// request body and returns its ID for later polling/streaming.
func (s *Server) createScanHandler(w http.ResponseWriter, r *http.Request) {
	var req createScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	source, err := req.Discovery.BuildSource(r.Context(), s.cfg.Advanced)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	cfg := req.Orchestrator
	if cfg.Pool.Size == 0 {
		cfg = s.cfg.BuildOrchestratorConfig()
	}

	o := orchestrator.New(cfg, source, nil)
	scanCtx, cancel := context.WithCancel(context.Background())
	id := uuid.New()

	s.mu.Lock()
	s.scans[id] = &runningScan{orchestrator: o, cancel: cancel, startedAt: time.Now()}
	s.mu.Unlock()

	go func() {
		if err := o.Run(scanCtx); err != nil {
			s.logger.ErrorScan("scan failed", id.String(), err)
		}
	}()

	s.writeJSON(w, http.StatusAccepted, map[string]interface{}{"id": id})
}

func (s *Server) lookupScan(r *http.Request) (uuid.UUID, *runningScan, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rs, ok := s.scans[id]
	return id, rs, ok
}

// scanStatsHandler returns a snapshot of a running scan's counters.
func (s *Server) scanStatsHandler(w http.ResponseWriter, r *http.Request) {
	_, rs, ok := s.lookupScan(r)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("scan not found"))
		return
	}
	s.writeJSON(w, http.StatusOK, rs.orchestrator.Stats().Snapshot())
}

// scanEventsHandler upgrades to a WebSocket and streams progress events
// for a scan until the client disconnects or the scan finishes.
func (s *Server) scanEventsHandler(w http.ResponseWriter, r *http.Request) {
	_, rs, ok := s.lookupScan(r)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("scan not found"))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events, unsubscribe := rs.orchestrator.Subscribe()
	defer unsubscribe()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go drainReads(conn)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// drainReads discards client messages, keeping the read deadline (and
// therefore the pong handler) alive; the client never sends us anything.
func drainReads(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
