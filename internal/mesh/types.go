// Package mesh implements the gateway's mesh control surface: discovery of
// local MCP leaf services via authenticated heartbeats, projection of those
// leaves into the gateway's config store, zombie eviction, and an in-process
// event broadcast consumed by the admin HTTP surface.
package mesh

import (
	"encoding/json"
	"fmt"
)

// TransportType selects the MCP transport a leaf speaks, which in turn
// selects the URL path and protocol discriminator used when the node is
// projected into the config store.
type TransportType string

const (
	TransportSse        TransportType = "sse"
	TransportStreamable TransportType = "streamable"
)

// Heartbeat is the wire payload a leaf service sends to /mesh/register, and
// the shape returned by /mesh/nodes and embedded in broadcast events.
type Heartbeat struct {
	ServiceName       string        `json:"serviceName"`
	Transport         TransportType `json:"transport"`
	Port              uint16        `json:"port"`
	ActiveSessions    int           `json:"activeSessions"`
	PID               *int          `json:"pid,omitempty"`
	Addr              string        `json:"addr,omitempty"`
	SamplingSupported bool          `json:"samplingSupported,omitempty"`
	// IsBlessed is never trusted from the wire on input — the registry
	// stamps it on every accepted registration. It is still emitted on
	// output so /mesh/nodes and broadcast events can report it.
	IsBlessed bool `json:"isBlessed"`
}

// UnmarshalJSON decodes a Heartbeat and rejects one whose transport is
// anything other than exactly "sse" or "streamable" — transport is a
// required, closed-set field on the wire, so a missing field (left at its
// zero value) and an unrecognized value are both a decode error rather
// than silently defaulting to one transport.
func (hb *Heartbeat) UnmarshalJSON(data []byte) error {
	type alias Heartbeat
	aux := (*alias)(hb)
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	switch hb.Transport {
	case TransportSse, TransportStreamable:
		return nil
	default:
		return fmt.Errorf("transport must be %q or %q, got %q", TransportSse, TransportStreamable, hb.Transport)
	}
}

// Event is the broadcast variant published on registration and eviction.
// Exactly one of Updated/Removed is set, selected by Kind.
type Event struct {
	Kind    EventKind `json:"-"`
	Updated Heartbeat `json:"-"`
	Removed string    `json:"-"`
}

// EventKind discriminates the two Event variants.
type EventKind int

const (
	EventNodeUpdated EventKind = iota
	EventNodeRemoved
)

// MarshalJSON renders an Event as {"nodeUpdated": Heartbeat} or
// {"nodeRemoved": "service_name"}.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case EventNodeRemoved:
		return json.Marshal(struct {
			NodeRemoved string `json:"nodeRemoved"`
		}{NodeRemoved: e.Removed})
	default:
		return json.Marshal(struct {
			NodeUpdated Heartbeat `json:"nodeUpdated"`
		}{NodeUpdated: e.Updated})
	}
}

// NewNodeUpdated constructs a NodeUpdated event.
func NewNodeUpdated(hb Heartbeat) Event {
	return Event{Kind: EventNodeUpdated, Updated: hb}
}

// NewNodeRemoved constructs a NodeRemoved event.
func NewNodeRemoved(serviceName string) Event {
	return Event{Kind: EventNodeRemoved, Removed: serviceName}
}
