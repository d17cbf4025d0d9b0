// Package devicetrust persists the long-lived opaque token that marks a
// device as previously verified. The store is the only state permitted to
// outlive a verification session.
package devicetrust

import "context"

// Store reads and writes the device-trust token. Implementations need not
// enforce expiry; the backend decides whether a presented token still
// counts.
type Store interface {
	// Token returns the stored token, or "" when the device has none.
	Token(ctx context.Context) (string, error)
	// Save replaces the stored token. Empty tokens are ignored.
	Save(ctx context.Context, token string) error
}
