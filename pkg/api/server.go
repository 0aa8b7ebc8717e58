package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/codeb-dev/codeb/pkg/config"
	"github.com/codeb-dev/codeb/pkg/control"
	"github.com/codeb-dev/codeb/pkg/log"
	"github.com/codeb-dev/codeb/pkg/metrics"
	"github.com/codeb-dev/codeb/pkg/types"
)

// maxRequestBody bounds the envelope size; no tool carries payloads.
const maxRequestBody = 1 << 20

// Server is the HTTP front end: a single POST / endpoint dispatching
// tool envelopes, plus /healthz and /metrics.
type Server struct {
	cfg  *config.Config
	ctl  *control.Controller
	http *http.Server
}

// NewServer builds the server over the controller.
func NewServer(cfg *config.Config, ctl *control.Controller) *Server {
	s := &Server{cfg: cfg, ctl: ctl}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleTool)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", metrics.Handler())

	s.http = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until the listener closes.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr, err)
	}
	logger := log.WithComponent("api")
	logger.Info().Str("addr", s.cfg.ListenAddr).Msg("API listening")
	if err := s.http.Serve(lis); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop drains in-flight requests and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// request is the tool envelope. Params stays raw until the tool is
// known.
type request struct {
	Tool   string          `json:"tool"`
	Params json.RawMessage `json:"params"`
}

// response is the envelope reply. Exactly one of Result or Error/Code
// is populated.
type response struct {
	Success bool   `json:"success"`
	Tool    string `json:"tool,omitempty"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func (s *Server) handleTool(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, "", types.E(types.KindValidation, "method %s not allowed, POST required", r.Method))
		return
	}

	var req request
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, "", types.Wrap(types.KindValidation, err, "malformed request envelope"))
		return
	}
	if req.Tool == "" {
		writeError(w, "", types.E(types.KindValidation, "missing tool name"))
		return
	}

	auth, err := s.ctl.Teams().Authenticate(r.Context(), bearerToken(r))
	if err != nil {
		writeError(w, req.Tool, err)
		return
	}

	result, err := s.dispatch(r.Context(), auth, req)
	if err != nil {
		writeError(w, req.Tool, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Tool: req.Tool, Result: result})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// bearerToken extracts the presented secret: Authorization: Bearer by
// preference, the X-CodeB-Token header as a fallback for callers that
// cannot set Authorization.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return token
		}
	}
	return r.Header.Get("X-CodeB-Token")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := log.WithComponent("api")
		logger.Error().Err(err).Msg("response encode failed")
	}
}

func writeError(w http.ResponseWriter, tool string, err error) {
	kind := types.KindOf(err)
	writeJSON(w, statusFor(kind), response{
		Success: false,
		Tool:    tool,
		Error:   err.Error(),
		Code:    string(kind),
	})
}

// statusFor maps error kinds to HTTP status codes. Conflict covers
// every "valid request, wrong state" refusal; infrastructure failures
// are the server's fault and say so.
func statusFor(kind types.ErrorKind) int {
	switch kind {
	case types.KindUnauthenticated:
		return http.StatusUnauthorized
	case types.KindForbidden, types.KindRoleEscalation:
		return http.StatusForbidden
	case types.KindNotFound:
		return http.StatusNotFound
	case types.KindValidation:
		return http.StatusBadRequest
	case types.KindBusy, types.KindTargetBusy, types.KindNotDeployed,
		types.KindNoPreviousVersion, types.KindPreviousUnhealthy,
		types.KindUnhealthy, types.KindPortExhausted, types.KindHealthTimeout:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
