package meshapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/agentgateway/agentgateway/internal/mesh"
	"github.com/agentgateway/agentgateway/internal/store"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	registry := mesh.New(mesh.Config{
		Store:       store.NewMemStore(),
		JournalPath: filepath.Join(t.TempDir(), "journal.jsonl"),
		Logger:      zap.NewNop(),
	})
	return NewHandler(registry, zap.NewNop())
}

func doRegister(t *testing.T, h *Handler, body string, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mesh/register", bytes.NewBufferString(body))
	if token != "" {
		req.Header.Set(tokenHeader, token)
	}
	rec := httptest.NewRecorder()
	h.Register(rec, req)
	return rec
}

func TestRegisterFirstRegistrationReturnsToken(t *testing.T) {
	h := newTestHandler(t)

	rec := doRegister(t, h, `{"serviceName":"tool-a","transport":"streamable","port":9000,"activeSessions":0}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	if rec.Body.String() != "registered\n" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "registered\n")
	}
	token := rec.Header().Get(tokenHeader)
	if len(token) != 32 {
		t.Fatalf("token = %q, want a 32-character token", token)
	}
}

func TestRegisterRejectsMalformedBody(t *testing.T) {
	h := newTestHandler(t)

	rec := doRegister(t, h, `not json`, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestRegisterRejectsMissingTransport(t *testing.T) {
	h := newTestHandler(t)

	rec := doRegister(t, h, `{"serviceName":"tool-a","port":9000}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusBadRequest, rec.Body.String())
	}
}

func TestRegisterRejectsUnknownTransport(t *testing.T) {
	h := newTestHandler(t)

	rec := doRegister(t, h, `{"serviceName":"tool-a","transport":"tcp","port":9000}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusBadRequest, rec.Body.String())
	}
}

func TestRegisterRejectsWrongMethod(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/mesh/register", nil)
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestRegisterWrongTokenIsForbidden(t *testing.T) {
	h := newTestHandler(t)

	doRegister(t, h, `{"serviceName":"tool-a","transport":"sse","port":9000}`, "")

	rec := doRegister(t, h, `{"serviceName":"tool-a","transport":"sse","port":9000}`, "wrong-token")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestNodesReturnsJSONArray(t *testing.T) {
	h := newTestHandler(t)
	doRegister(t, h, `{"serviceName":"tool-a","transport":"streamable","port":9000}`, "")

	req := httptest.NewRequest(http.MethodGet, "/mesh/nodes", nil)
	rec := httptest.NewRecorder()
	h.Nodes(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var nodes []mesh.Heartbeat
	if err := json.Unmarshal(rec.Body.Bytes(), &nodes); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if len(nodes) != 1 || nodes[0].ServiceName != "tool-a" {
		t.Fatalf("nodes = %+v, want one entry for tool-a", nodes)
	}
}

func TestNodesEmptyRegistryReturnsEmptyArray(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/mesh/nodes", nil)
	rec := httptest.NewRecorder()
	h.Nodes(rec, req)

	if got := rec.Body.String(); got != "[]" {
		t.Errorf("body = %q, want %q", got, "[]")
	}
}

func TestLogsRequiresValidToken(t *testing.T) {
	h := newTestHandler(t)
	first := doRegister(t, h, `{"serviceName":"tool-a","transport":"sse","port":9000}`, "")
	token := first.Header().Get(tokenHeader)

	req := httptest.NewRequest(http.MethodPost, "/mesh/logs",
		bytes.NewBufferString(`{"serviceName":"tool-a","logs":[{"level":"info","msg":"hello"}]}`))
	req.Header.Set(tokenHeader, token)
	rec := httptest.NewRecorder()
	h.Logs(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
}

func TestLogsFromUnknownServiceIsForbidden(t *testing.T) {
	h := newTestHandler(t)
	first := doRegister(t, h, `{"serviceName":"tool-a","transport":"sse","port":9000}`, "")
	token := first.Header().Get(tokenHeader)

	req := httptest.NewRequest(http.MethodPost, "/mesh/logs",
		bytes.NewBufferString(`{"serviceName":"ghost","logs":[{"level":"info","msg":"hello"}]}`))
	req.Header.Set(tokenHeader, token)
	rec := httptest.NewRecorder()
	h.Logs(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestLogsDefaultsServiceNameToUnknown(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/mesh/logs", bytes.NewBufferString(`{"logs":[]}`))
	req.Header.Set(tokenHeader, "whatever")
	rec := httptest.NewRecorder()
	h.Logs(rec, req)

	// "unknown" is never a registered service, so this must still be
	// rejected — but via the same ValidateToken path used for any other
	// service name, never a panic or a 400 for the missing field.
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestEventsStreamsRegistrationAsSSE(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/mesh/events", nil)
	ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
	defer cancel()
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		h.Events(rec, req)
		close(done)
	}()

	// Give the handler a moment to subscribe before publishing, then
	// register a node and cancel the stream.
	time.Sleep(20 * time.Millisecond)
	doRegister(t, h, `{"serviceName":"tool-a","transport":"sse","port":9000}`, "")
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Events() handler did not return after context cancellation")
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"nodeUpdated"`)) {
		t.Errorf("body = %q, want it to contain a nodeUpdated event", rec.Body.String())
	}
}
