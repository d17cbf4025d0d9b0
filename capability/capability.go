// Package capability defines the contracts for platform capabilities the
// verification flow depends on: the WebAuthn authenticator and the camera.
// The core treats these as external providers with a fixed request/response
// contract; hosts supply real implementations, tests use capfakes.
package capability

import (
	"context"
	"encoding/json"

	"github.com/cloudspacetechs/acidcheck/api"
)

// Credential is the transport-ready outcome of an authenticator operation.
// Payload is the credential serialized with binary fields re-encoded as
// base64url text, ready to POST to the backend.
type Credential struct {
	Payload           json.RawMessage
	AuthenticatorData string
}

// Authenticator is the platform credential capability (WebAuthn-class).
// Options handed to it carry challenge nonces and credential IDs already
// decoded to raw bytes.
type Authenticator interface {
	// Create registers a new credential (enrollment path).
	Create(ctx context.Context, opts api.CreationOptions) (*Credential, error)
	// Get asserts an existing credential (login path).
	Get(ctx context.Context, opts api.AssertionOptions) (*Credential, error)
}

// Frame is one captured still image, JPEG-encoded.
type Frame []byte

// Feed is an open camera stream. Close releases the underlying tracks and
// must be called on every exit path.
type Feed interface {
	// Capture grabs the next frame. Frames are strictly ordered.
	Capture(ctx context.Context) (Frame, error)
	Close() error
}

// Camera is the platform camera capability.
type Camera interface {
	// Probe briefly acquires the camera to confirm it starts, then releases
	// it. A probe failure means the capability is unavailable, not broken.
	Probe(ctx context.Context) error
	// Open acquires a live feed.
	Open(ctx context.Context) (Feed, error)
}
