// Package meshapi adapts HTTP request/response framing to mesh.Registry
// operations: register, nodes, events, logs. The wire contract here is
// plaintext bodies with a terminating newline, or raw JSON for
// /mesh/nodes — not a {"data": ...}/{"error": ...} envelope.
package meshapi

import (
	"encoding/json"
	"net/http"
)

// plaintextResponse writes a plaintext body with the given status code.
// Every body these endpoints return ends in a newline, so callers pass msg
// already newline-terminated.
func plaintextResponse(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}

// jsonPrettyResponse writes payload as pretty-printed JSON with the given
// status code. Used by GET /mesh/nodes.
func jsonPrettyResponse(w http.ResponseWriter, status int, payload any) error {
	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
	return nil
}

// decodeJSON decodes the request body into dst, capping it at 1MB since a
// leaf heartbeat or log batch is never legitimately larger than that.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	return json.NewDecoder(r.Body).Decode(dst)
}
