package meshapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/agentgateway/agentgateway/internal/mesh"
)

// tokenHeader is the header leaves use to carry their mesh token, both on
// the way in (/mesh/register, /mesh/logs) and on the way out
// (/mesh/register's response).
const tokenHeader = "X-Mesh-Token"

// Handler holds the registry the mesh endpoints operate against.
type Handler struct {
	registry *mesh.Registry
	logger   *zap.Logger
}

// NewHandler builds a Handler for the four mesh endpoints.
func NewHandler(registry *mesh.Registry, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{registry: registry, logger: logger.Named("mesh_handler")}
}

// registerRequest is the JSON body POST /mesh/register accepts: a
// mesh.Heartbeat verbatim.
type registerRequest = mesh.Heartbeat

// Register implements POST /mesh/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		plaintextResponse(w, http.StatusMethodNotAllowed, "method not allowed\n")
		return
	}

	var hb registerRequest
	if err := decodeJSON(w, r, &hb); err != nil {
		plaintextResponse(w, http.StatusBadRequest, fmt.Sprintf("invalid heartbeat: %v\n", err))
		return
	}

	providedToken := r.Header.Get(tokenHeader)
	tokenProvided := providedToken != ""

	token, err := h.registry.Register(hb, providedToken, tokenProvided)
	if err != nil {
		h.logger.Warn("mesh registration denied",
			zap.String("service", hb.ServiceName),
			zap.Error(err))
		plaintextResponse(w, http.StatusForbidden, fmt.Sprintf("mesh registration denied: %v\n", err))
		return
	}

	w.Header().Set(tokenHeader, token)
	plaintextResponse(w, http.StatusOK, "registered\n")
}

// Nodes implements GET /mesh/nodes.
func (h *Handler) Nodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		plaintextResponse(w, http.StatusMethodNotAllowed, "method not allowed\n")
		return
	}

	nodes := h.registry.GetNodes()
	if nodes == nil {
		nodes = []mesh.Heartbeat{}
	}

	if err := jsonPrettyResponse(w, http.StatusOK, nodes); err != nil {
		h.logger.Error("failed to serialize mesh nodes", zap.Error(err))
		plaintextResponse(w, http.StatusInternalServerError, "failed to serialize nodes\n")
	}
}

// Events implements GET /mesh/events, a server-sent-event stream of mesh
// registry mutations.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		plaintextResponse(w, http.StatusMethodNotAllowed, "method not allowed\n")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		plaintextResponse(w, http.StatusInternalServerError, "streaming unsupported\n")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	sub := h.registry.Subscribe()

	for {
		event, ok, lagged := sub.Recv(ctx)
		if !ok && !lagged {
			return // client disconnected
		}
		if lagged {
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
			continue
		}

		body, err := json.Marshal(event)
		if err != nil {
			h.logger.Error("failed to serialize mesh event", zap.Error(err))
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", body); err != nil {
			return
		}
		flusher.Flush()
	}
}

// logsRequest is the JSON body POST /mesh/logs accepts.
type logsRequest struct {
	ServiceName string        `json:"serviceName"`
	Logs        []interface{} `json:"logs"`
}

// Logs implements POST /mesh/logs: forwards each log line to the host's
// log sink under a mesh_leaf-tagged logger, after validating the caller's
// token against the registry.
func (h *Handler) Logs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		plaintextResponse(w, http.StatusMethodNotAllowed, "method not allowed\n")
		return
	}

	var body logsRequest
	if err := decodeJSON(w, r, &body); err != nil {
		plaintextResponse(w, http.StatusBadRequest, fmt.Sprintf("invalid log batch: %v\n", err))
		return
	}

	serviceName := body.ServiceName
	if serviceName == "" {
		serviceName = "unknown"
	}

	token := r.Header.Get(tokenHeader)
	if token == "" || !h.registry.ValidateToken(serviceName, token) {
		plaintextResponse(w, http.StatusForbidden, "mesh logs denied: invalid token\n")
		return
	}

	leafLogger := h.logger.Named("mesh_leaf").With(zap.String("service", serviceName))
	for _, entry := range body.Logs {
		leafLogger.Info("leaf log", zap.Any("entry", entry))
	}

	plaintextResponse(w, http.StatusOK, "logs processed\n")
}
