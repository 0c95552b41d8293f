// Package server hosts the tallyd control surfaces: the unix control socket
// and the HTTP API. Both sit over the same registry, actuator, and
// reconciliation loop; the server owns none of the domain logic.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/jmylchreest/tallyd/internal/actuator"
	"github.com/jmylchreest/tallyd/internal/apikey"
	"github.com/jmylchreest/tallyd/internal/config"
	"github.com/jmylchreest/tallyd/internal/events"
	"github.com/jmylchreest/tallyd/internal/http/handlers"
	"github.com/jmylchreest/tallyd/internal/http/mw"
	"github.com/jmylchreest/tallyd/internal/http/routes"
	"github.com/jmylchreest/tallyd/internal/reconcile"
	"github.com/jmylchreest/tallyd/internal/registry"
	"github.com/jmylchreest/tallyd/internal/utils"
	"github.com/jmylchreest/tallyd/internal/ws"
)

// BuildInfo carries the daemon's build identity for the version endpoint.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// Server manages the tallyd control surfaces: the unix socket protocol and
// the optional HTTP API.
type Server struct {
	logger        *slog.Logger
	cfg           *config.Config
	registry      *registry.Registry
	actuator      *actuator.Actuator
	loop          *reconcile.Loop
	levelVar      *slog.LevelVar
	build         BuildInfo
	socketPath    string
	listener      net.Listener
	shutdown      chan struct{}
	wg            sync.WaitGroup
	apikeyManager *apikey.Manager
	rootCtx       context.Context
	rootCancel    context.CancelFunc
	httpServer    *http.Server
	eventBus      *events.Bus
	ready         atomic.Bool
}

// New creates a new server instance over the daemon's core components.
func New(logger *slog.Logger, cfg *config.Config, reg *registry.Registry, act *actuator.Actuator, loop *reconcile.Loop, bus *events.Bus, levelVar *slog.LevelVar, build BuildInfo) *Server {
	apikeyMgr := apikey.NewManager(cfg, logger)
	rootCtx, rootCancel := context.WithCancel(context.Background())

	return &Server{
		logger:        logger,
		cfg:           cfg,
		registry:      reg,
		actuator:      act,
		loop:          loop,
		levelVar:      levelVar,
		build:         build,
		socketPath:    cfg.Server.UnixSocket,
		shutdown:      make(chan struct{}),
		apikeyManager: apikeyMgr,
		rootCtx:       rootCtx,
		rootCancel:    rootCancel,
		eventBus:      bus,
	}
}

// SetReady flips the readiness probe. The daemon calls this once the control
// listener is attached and the initial sweep has been kicked off.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Start begins listening on the control socket and, when configured, the
// HTTP API.
func (s *Server) Start() error {
	s.logger.Info("Starting tallyd server")

	// Ensure socket directory exists
	sockDir := filepath.Dir(s.socketPath)
	if err := os.MkdirAll(sockDir, 0755); err != nil {
		return fmt.Errorf("failed to create socket directory %s: %w", sockDir, err)
	}

	// Remove existing socket file if it exists
	if _, err := os.Stat(s.socketPath); err == nil {
		if err := os.Remove(s.socketPath); err != nil {
			return fmt.Errorf("failed to remove existing socket file %s: %w", s.socketPath, err)
		}
	}

	// Start listening on Unix socket
	var err error
	s.listener, err = net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket %s: %w", s.socketPath, err)
	}
	s.logger.Info("Listening on Unix socket", "path", s.socketPath)

	s.wg.Add(1)
	go s.acceptConnections()

	// Start HTTP server if API is configured
	if s.cfg.API.ListenAddress != "" {
		s.logger.Info("Starting HTTP API server", "address", s.cfg.API.ListenAddress)

		// Create handler implementations
		statusHandler := &handlers.StatusHandler{Status: s.loop, Devices: s.registry}
		deviceHandler := &handlers.DeviceHandler{Devices: s.registry, Actuator: s.actuator}
		tallyHandler := &handlers.TallyHandler{Actuator: s.actuator}
		apiKeyHandler := &handlers.APIKeyHandler{Manager: s.apikeyManager}
		loggingHandler := &handlers.LoggingHandler{Logger: s.logger, Level: s.levelVar}
		readyHandler := &handlers.ReadyHandler{Ready: s.ready.Load}

		// Create Chi router with global middleware.
		// Rate limiting runs before auth to blunt brute-force attempts; the
		// health probes and the docs stay public.
		router := chi.NewRouter()
		router.Use(mw.RequestLogging(s.logger))
		router.Use(mw.RateLimitByIP(mw.DefaultRateLimitConfig()))
		router.Use(mw.APIKeyAuth(s.logger, s.apikeyManager,
			"/healthz", "/readyz", "/api/v1/health", "/api/v1/version",
			"/openapi.json", "/openapi.yaml", "/docs", "/schemas"))

		// Create Huma API
		humaConfig := routes.NewHumaConfig(s.build.Version, "")
		api := humachi.New(router, humaConfig)

		// Register all routes via shared registration
		routes.Register(api, &routes.Handlers{
			HealthCheck: handlers.HealthCheck,
			ReadyCheck:  readyHandler.ReadyCheck,
			Version:     handlers.VersionCheck(s.build.Version, s.build.Commit, s.build.BuildDate),
			Status:      statusHandler,
			Device:      deviceHandler,
			Tally:       tallyHandler,
			APIKey:      apiKeyHandler,
			Logging:     loggingHandler,
		})

		// Start the WebSocket hub and register the events endpoint as a raw
		// Chi route; Huma cannot describe an upgraded connection. Auth is
		// already covered by the router-level middleware.
		wsHub := ws.NewHub(s.logger, s.eventBus)
		s.wg.Go(func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("panic in WebSocket hub", "recover", r)
				}
			}()
			wsHub.Run(s.rootCtx)
		})
		router.Get("/api/v1/events", ws.Handler(wsHub, s.logger))

		s.httpServer = &http.Server{
			Addr:         s.cfg.API.ListenAddress,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		s.wg.Go(func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("panic in HTTP server goroutine", "recover", r)
				}
			}()
			if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.Error("HTTP server failed", "error", err)
			}
			s.logger.Info("HTTP server stopped")
		})
	}

	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() {
	s.logger.Info("Shutting down tallyd server")
	s.ready.Store(false)
	s.rootCancel()
	close(s.shutdown)

	if s.listener != nil {
		s.logger.Info("Closing Unix socket listener")
		s.listener.Close()
	}

	if s.httpServer != nil {
		s.logger.Info("Shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown failed", "error", err)
		}
	}

	s.logger.Info("Waiting for services to stop...")
	s.wg.Wait()
	s.logger.Info("tallyd server shut down gracefully")
}

func (s *Server) acceptConnections() {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in acceptConnections", "recover", r)
		}
	}()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				s.logger.Info("Socket listener shutting down")
				return
			default:
				s.logger.Error("Failed to accept connection", "error", err)
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in connection handler", "recover", r)
		}
	}()

	// Create a context that is cancelled when the server shuts down
	ctx, cancel := context.WithCancel(s.rootCtx)
	defer cancel()

	go func() {
		select {
		case <-s.shutdown:
			cconn, ok := conn.(*net.UnixConn)
			if ok {
				cconn.CloseRead() // Force connection to unblock for shutdown
			}
			cancel()
		case <-ctx.Done():
			return
		}
	}()

	reader := bufio.NewReader(conn)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err != nil {
			if errors.Is(err, io.EOF) || strings.Contains(err.Error(), "use of closed network connection") {
				s.logger.Debug("Client disconnected")
			} else {
				s.logger.Error("Failed to read from connection", "error", err)
			}
			return
		}

		var req map[string]any
		if err := json.Unmarshal(line, &req); err != nil {
			s.logger.Error("Failed to unmarshal request", "error", err, "request", string(line))
			s.sendError(conn, "", fmt.Sprintf("invalid JSON request: %s", err))
			continue
		}

		action, _ := req["action"].(string)
		id, _ := req["id"].(string)             // Optional request ID for client tracking
		data, _ := req["data"].(map[string]any) // Data payload

		s.logger.Debug("Received request", "action", action, "id", id, "data", data)

		switch action {
		case "ping":
			s.sendResponse(conn, id, map[string]any{"message": "pong"})

		case "health":
			s.sendResponse(conn, id, map[string]any{"health": "ok"})

		case "status":
			s.handleStatus(conn, id)

		case "list_devices":
			s.sendResponse(conn, id, map[string]any{"devices": s.deviceMap()})

		case "get_device":
			deviceID, _ := data["id"].(string)
			if deviceID == "" {
				s.sendError(conn, id, "missing device ID for get_device")
				continue
			}
			device, ok := s.registry.Find(deviceID)
			if !ok {
				s.sendError(conn, id, fmt.Sprintf("device not found: %s", deviceID))
				continue
			}
			m, err := toMap(handlers.DeviceFromConfig(device, s.registry.Resolved(deviceID)))
			if err != nil {
				s.logger.Error("Failed to marshal device for socket response", "id", deviceID, "error", err)
				s.sendError(conn, id, "internal error marshaling device")
				continue
			}
			s.sendResponse(conn, id, map[string]any{"device": m})

		case "set_device_state":
			deviceID, _ := data["id"].(string)
			if deviceID == "" {
				s.sendError(conn, id, "missing id for set_device_state")
				continue
			}
			on, err := boolFromData(data, "on")
			if err != nil {
				s.sendError(conn, id, fmt.Sprintf("invalid 'on' value for set_device_state: %s", err))
				continue
			}
			result, err := s.actuator.SetDevice(ctx, deviceID, on)
			if err != nil {
				s.sendError(conn, id, fmt.Sprintf("failed to set device %s state: %s", deviceID, err))
				continue
			}
			m, err := toMap(result)
			if err != nil {
				s.sendError(conn, id, "internal error marshaling result")
				continue
			}
			if result.Outcome != actuator.OutcomeSuccess {
				s.sendResponse(conn, id, map[string]any{"status": "failed", "result": m})
				continue
			}
			s.sendResponse(conn, id, map[string]any{"result": m})

		case "set_tally":
			on, err := boolFromData(data, "on")
			if err != nil {
				s.sendError(conn, id, fmt.Sprintf("invalid 'on' value for set_tally: %s", err))
				continue
			}
			batch := s.actuator.SetAll(ctx, on)
			m, err := toMap(batch)
			if err != nil {
				s.sendError(conn, id, "internal error marshaling batch")
				continue
			}
			if batch.Succeeded() < len(batch.Results) {
				s.sendResponse(conn, id, map[string]any{"status": "partial", "batch": m})
				continue
			}
			s.sendResponse(conn, id, map[string]any{"batch": m})

		case "refresh_devices":
			if err := s.registry.Refresh(ctx); err != nil {
				s.sendError(conn, id, fmt.Sprintf("discovery sweep failed: %s", err))
				continue
			}
			s.sendResponse(conn, id, map[string]any{"devices": s.deviceMap()})

		case "apikey_add":
			name, _ := data["name"].(string)
			expiresInStr, _ := data["expires_in"].(string)
			var expiresIn time.Duration
			if expiresInStr != "" {
				// Try Go duration string first (e.g., "720h", "30m"), then seconds-as-float for backward compat
				d, err := time.ParseDuration(expiresInStr)
				if err != nil {
					expiresInSecs, err2 := strconv.ParseFloat(expiresInStr, 64)
					if err2 != nil {
						s.sendError(conn, id, fmt.Sprintf("invalid expires_in format (use Go duration like '720h' or seconds): %s", err))
						continue
					}
					expiresIn = time.Duration(expiresInSecs * float64(time.Second))
				} else {
					expiresIn = d
				}
			}
			if name == "" {
				s.sendError(conn, id, "missing name for apikey_add")
				continue
			}
			apiKey, err := s.apikeyManager.CreateAPIKey(name, expiresIn)
			if err != nil {
				s.sendError(conn, id, fmt.Sprintf("failed to create API key: %s", err))
				continue
			}
			s.sendResponse(conn, id, map[string]any{"key": apiKeyMap(*apiKey)})

		case "apikey_list":
			keys := s.apikeyManager.ListAPIKeys()
			responseKeys := make([]map[string]any, len(keys))
			for i, k := range keys {
				responseKeys[i] = apiKeyMap(k)
			}
			s.sendResponse(conn, id, map[string]any{"keys": responseKeys})

		case "apikey_delete":
			key, _ := data["key"].(string)
			if key == "" {
				s.sendError(conn, id, "missing key for apikey_delete")
				continue
			}
			if err := s.apikeyManager.DeleteAPIKey(key); err != nil {
				s.sendError(conn, id, fmt.Sprintf("failed to delete API key: %s", err))
				continue
			}
			s.sendResponse(conn, id, nil)

		case "apikey_set_disabled_status":
			keyOrName, _ := data["key_or_name"].(string)
			if keyOrName == "" {
				s.sendError(conn, id, "missing key_or_name for apikey_set_disabled_status")
				continue
			}

			// Accept disabled as bool or string for compatibility with both HTTP and legacy socket clients
			var disabled bool
			switch v := data["disabled"].(type) {
			case bool:
				disabled = v
			case string:
				var err error
				disabled, err = strconv.ParseBool(v)
				if err != nil {
					s.sendError(conn, id, fmt.Sprintf("invalid boolean value for disabled state: %s", err))
					continue
				}
			default:
				s.sendError(conn, id, "missing or invalid disabled state for apikey_set_disabled_status")
				continue
			}

			updatedKey, err := s.apikeyManager.SetAPIKeyDisabledStatus(keyOrName, disabled)
			if err != nil {
				s.sendError(conn, id, fmt.Sprintf("failed to set API key disabled status: %s", err))
				continue
			}
			s.sendResponse(conn, id, map[string]any{"key": apiKeyMap(*updatedKey)})

		case "get_level":
			s.sendResponse(conn, id, map[string]any{"level": handlers.LevelToString(s.levelVar.Level())})

		case "set_level":
			level, _ := data["level"].(string)
			if level == "" {
				s.sendError(conn, id, "missing level for set_level")
				continue
			}
			validated := utils.ValidateLogLevel(level)
			if validated != level {
				s.sendError(conn, id, fmt.Sprintf("invalid log level %q; must be debug, info, warn, or error", level))
				continue
			}
			s.levelVar.Set(utils.GetLogLevel(validated))
			s.logger.Info("Log level changed via socket", "level", validated)
			s.sendResponse(conn, id, map[string]any{"level": validated})

		default:
			s.logger.Warn("received unknown action", "action", action)
			s.sendError(conn, id, "unknown action: "+action)
		}
	}
}

// handleStatus sends the transport snapshot, the last batch, and the fleet.
func (s *Server) handleStatus(conn net.Conn, id string) {
	snap := s.loop.Snapshot()

	transportMap, err := toMap(handlers.TransportFromState(snap.Transport))
	if err != nil {
		s.sendError(conn, id, "internal error marshaling transport state")
		return
	}

	resp := map[string]any{
		"transport": transportMap,
		"devices":   s.deviceMap(),
	}
	if snap.LastBatch != nil {
		batchMap, err := toMap(handlers.BatchFromActuator(*snap.LastBatch))
		if err != nil {
			s.sendError(conn, id, "internal error marshaling last batch")
			return
		}
		resp["last_batch"] = batchMap
	}
	s.sendResponse(conn, id, resp)
}

// deviceMap builds the socket representation of the configured fleet.
func (s *Server) deviceMap() map[string]any {
	devices := s.registry.All()
	result := make(map[string]any, len(devices))
	for _, d := range devices {
		m, err := toMap(handlers.DeviceFromConfig(d, s.registry.Resolved(d.DeviceID)))
		if err != nil {
			s.logger.Error("Failed to marshal device for socket response", "id", d.DeviceID, "error", err)
			continue
		}
		result[d.DeviceID] = m
	}
	return result
}

func (s *Server) sendResponse(conn net.Conn, id string, data map[string]any) {
	response := map[string]any{"status": "ok"}
	if id != "" {
		response["id"] = id
	}
	maps.Copy(response, data)
	if err := json.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Error("Failed to send response", "error", err)
	}
}

func (s *Server) sendError(conn net.Conn, id string, message string) {
	s.logger.Error("Sending error response to client", "id", id, "message", message)
	response := map[string]any{"error": message}
	if id != "" {
		response["id"] = id
	}
	if err := json.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Error("Failed to send error response", "error", err)
	}
}

// toMap round-trips a struct through JSON into a generic map for socket
// responses.
func toMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// apiKeyMap builds the socket representation of an API key.
func apiKeyMap(k config.APIKey) map[string]any {
	return map[string]any{
		"name":         k.Name,
		"key":          k.Key, // Client side will decide on obfuscation if needed for display
		"created_at":   k.CreatedAt.Format(time.RFC3339Nano),
		"expires_at":   k.ExpiresAt.Format(time.RFC3339Nano),
		"last_used_at": k.LastUsedAt.Format(time.RFC3339Nano),
		"disabled":     k.IsDisabled(),
	}
}

// boolFromData extracts a boolean that may arrive as a JSON bool or a string
// ("true"/"false") from legacy socket clients.
func boolFromData(data map[string]any, key string) (bool, error) {
	switch v := data[key].(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(v)
	case nil:
		return false, fmt.Errorf("missing %q", key)
	default:
		return false, fmt.Errorf("unexpected type %T for %q", v, key)
	}
}
