package mesh

import (
	"github.com/agentgateway/agentgateway/internal/store"
)

// resourceKey returns the config-store resource name for a service, e.g.
// "mesh-tool-a".
func resourceKey(serviceName string) string {
	return "mesh-" + serviceName
}

// transportPath returns the URL path and protocol discriminator projected
// for a given transport: "/sse" for Sse, "/mcp" for Streamable, each with
// its own protocol discriminator. Heartbeat.UnmarshalJSON guarantees every
// Heartbeat decoded off the wire already carries one of these two values;
// the explicit cases here (rather than an Sse/default split) keep that
// guarantee visible at the call site instead of silently reinterpreting a
// third value as Streamable.
func transportPath(t TransportType) (path string, protocol store.Protocol) {
	switch t {
	case TransportSse:
		return "/sse", store.ProtocolSse
	case TransportStreamable:
		return "/mcp", store.ProtocolStreamableHTTP
	default:
		return "/mcp", store.ProtocolStreamableHTTP
	}
}

// buildBackendResource builds the Backend resource projected for hb: a
// single MCP target named "primary" in namespace "default", pointing at
// localhost:hb.Port.
func buildBackendResource(hb Heartbeat) store.Resource {
	path, protocol := transportPath(hb.Transport)
	key := resourceKey(hb.ServiceName)

	return store.Resource{
		Backend: store.Backend{
			Key:       key,
			Name:      hb.ServiceName,
			Namespace: "default",
			Targets: []store.McpTarget{
				{
					Name:     "primary",
					Host:     "localhost",
					Port:     hb.Port,
					Path:     path,
					Protocol: protocol,
				},
			},
		},
	}
}

// projectToStore installs hb's backend resource into the config store.
func projectToStore(handler store.Handler, hb Heartbeat) error {
	resource := buildBackendResource(hb)
	update := store.UpsertResource(resourceKey(hb.ServiceName), resource)
	return handler.Handle([]store.Update{update})
}

// evictFromStore retracts serviceName's backend resource from the config
// store. Errors are the reaper's to log, not propagate.
func evictFromStore(handler store.Handler, serviceName string) error {
	update := store.RemoveResource(resourceKey(serviceName))
	return handler.Handle([]store.Update{update})
}
