// Package geo resolves a best-effort device position for the trust check.
package geo

import (
	"context"

	"github.com/cloudspacetechs/acidcheck/api"
)

// Unknown is the sentinel coordinate pair reported when geolocation is
// denied or unavailable.
const Unknown = "unknown"

// Locator is the platform geolocation capability. External collaborator:
// host environments supply an implementation; tests use funcs.
type Locator interface {
	CurrentPosition(ctx context.Context) (api.Position, error)
}

// LocatorFunc adapts a function to the Locator interface.
type LocatorFunc func(ctx context.Context) (api.Position, error)

func (f LocatorFunc) CurrentPosition(ctx context.Context) (api.Position, error) {
	return f(ctx)
}

// Resolve returns the device position, falling back to the unknown sentinel
// pair on any failure. It never returns an error: a denied or missing
// geolocation capability must not block the trust check.
func Resolve(ctx context.Context, locator Locator) api.Position {
	if locator == nil {
		return api.Position{Latitude: Unknown, Longitude: Unknown}
	}
	pos, err := locator.CurrentPosition(ctx)
	if err != nil || pos.Latitude == "" || pos.Longitude == "" {
		return api.Position{Latitude: Unknown, Longitude: Unknown}
	}
	return pos
}
