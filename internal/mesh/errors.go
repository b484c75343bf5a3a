package mesh

import "errors"

// Sentinel errors returned by Registry.Register. Callers compare with
// errors.Is, matching the pattern used throughout this codebase's
// ambient error handling.
var (
	// ErrTokenRequired is returned when a heartbeat for an already-registered
	// service arrives with no X-Mesh-Token.
	ErrTokenRequired = errors.New("mesh: token required for existing service")

	// ErrInvalidToken is returned when a heartbeat for an already-registered
	// service arrives with a token that does not match the stored one.
	ErrInvalidToken = errors.New("mesh: invalid token")

	// ErrProjectionFailed is returned when the heartbeat was accepted into
	// the in-memory table but projecting it into the config store failed.
	// The in-memory insert is not rolled back — see registry.go.
	ErrProjectionFailed = errors.New("mesh: projection to config store failed")
)
