package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"farmchain/core"
	"farmchain/integrations/eventlog"
	"farmchain/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	moduleName      = "farm"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeModulePaused   = -32002
	codeRateLimited    = -32020
)

// ServerConfig tunes the JSON-RPC listener.
type ServerConfig struct {
	// AuthToken guards mutating methods. Empty leaves them open, which is only
	// meant for local development ledgers.
	AuthToken         string
	RateLimitPerSec   float64
	RateLimitBurst    int
	ReadHeaderTimeout time.Duration
	// DevMethods exposes dev_mine and dev_increaseTime.
	DevMethods bool
	// JWT accepts HS256 bearer tokens in addition to AuthToken.
	JWT JWTConfig
}

type handlerFunc func(ctx context.Context, params json.RawMessage) (interface{}, *RPCError)

type method struct {
	handler  handlerFunc
	mutating bool
	dev      bool
}

// Server exposes the staking ledger over JSON-RPC 2.0.
type Server struct {
	node    *core.Node
	events  *eventlog.Store
	cfg     ServerConfig
	logger  *slog.Logger
	limiter *rateLimiter
	auth    *tokenVerifier
	methods map[string]method

	httpServer *http.Server
}

// NewServer builds a server for node. events may be nil, in which case
// farm_events reports that the index is disabled.
func NewServer(node *core.Node, events *eventlog.Store, cfg ServerConfig, logger *slog.Logger) (*Server, error) {
	if node == nil {
		return nil, fmt.Errorf("rpc: node required")
	}
	var err error
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 5 * time.Second
	}
	s := &Server{
		node:    node,
		events:  events,
		cfg:     cfg,
		logger:  logger,
		limiter: newRateLimiter(cfg.RateLimitPerSec, cfg.RateLimitBurst),
	}
	s.methods = s.farmMethods()
	if s.auth, err = newTokenVerifier(cfg.JWT); err != nil {
		return nil, err
	}
	return s, nil
}

// Handler returns the HTTP routes served by the node.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get(wsEventsPattern, s.handleEventsWS)
	r.With(s.limiter.middleware).Post("/", s.handle)
	return otelhttp.NewHandler(r, "farmchain.rpc")
}

// Serve listens on addr until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) Serve(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("json-rpc server listening", slog.String("addr", listener.Addr().String()))
		errCh <- s.httpServer.Serve(listener)
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string { return e.Message }

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	m, ok := s.methods[req.Method]
	if !ok || (m.dev && !s.cfg.DevMethods) {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}
	if m.mutating || m.dev {
		if authErr := s.requireAuth(r, m); authErr != nil {
			observability.ModuleMetrics().Observe(moduleName, req.Method, authErr.Code, time.Since(start))
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
	}
	if len(req.Params) > 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "at most one parameter object expected", nil)
		return
	}
	var params json.RawMessage
	if len(req.Params) == 1 {
		params = req.Params[0]
	}

	result, rpcErr := m.handler(r.Context(), params)
	if rpcErr != nil {
		observability.ModuleMetrics().Observe(moduleName, req.Method, rpcErr.Code, time.Since(start))
		s.logger.Debug("rpc call failed",
			slog.String("method", req.Method),
			slog.String("requestId", w.Header().Get(requestIDHeader)),
			slog.Int("code", rpcErr.Code),
			slog.String("error", rpcErr.Message))
		writeError(w, httpStatusFor(rpcErr.Code), req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	observability.ModuleMetrics().Observe(moduleName, req.Method, 0, time.Since(start))
	writeResult(w, req.ID, result)
}

func httpStatusFor(code int) int {
	switch code {
	case codeUnauthorized:
		return http.StatusUnauthorized
	case codeServerError:
		return http.StatusInternalServerError
	case codeMethodNotFound:
		return http.StatusNotFound
	case codeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadRequest
	}
}
