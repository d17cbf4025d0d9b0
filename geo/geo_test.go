package geo_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/cloudspacetechs/acidcheck/api"
	"github.com/cloudspacetechs/acidcheck/geo"
)

func TestResolve(t *testing.T) {
	t.Run("nil locator yields unknown pair", func(t *testing.T) {
		pos := geo.Resolve(context.Background(), nil)
		require.Equal(t, api.Position{Latitude: "unknown", Longitude: "unknown"}, pos)
	})

	t.Run("locator failure yields unknown pair, never an error", func(t *testing.T) {
		locator := geo.LocatorFunc(func(_ context.Context) (api.Position, error) {
			return api.Position{}, errors.New("permission denied")
		})
		pos := geo.Resolve(context.Background(), locator)
		require.Equal(t, api.Position{Latitude: "unknown", Longitude: "unknown"}, pos)
	})

	t.Run("partial position yields unknown pair", func(t *testing.T) {
		locator := geo.LocatorFunc(func(_ context.Context) (api.Position, error) {
			return api.Position{Latitude: "6.5244"}, nil
		})
		pos := geo.Resolve(context.Background(), locator)
		require.Equal(t, api.Position{Latitude: "unknown", Longitude: "unknown"}, pos)
	})

	t.Run("successful lookup passes through", func(t *testing.T) {
		locator := geo.LocatorFunc(func(_ context.Context) (api.Position, error) {
			return api.Position{Latitude: "6.5244", Longitude: "3.3792"}, nil
		})
		pos := geo.Resolve(context.Background(), locator)
		require.Equal(t, api.Position{Latitude: "6.5244", Longitude: "3.3792"}, pos)
	})
}
