package trust_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/cloudspacetechs/acidcheck/api"
	"github.com/cloudspacetechs/acidcheck/devicetrust"
	"github.com/cloudspacetechs/acidcheck/geo"
	"github.com/cloudspacetechs/acidcheck/session"
	"github.com/cloudspacetechs/acidcheck/telemetry/telemetryfakes"
	"github.com/cloudspacetechs/acidcheck/trust"
)

type fakeChecker struct {
	resp     *api.IdentityResponse
	err      error
	requests []api.IdentityRequest
}

func (fc *fakeChecker) CheckIdentity(_ context.Context, req api.IdentityRequest) (*api.IdentityResponse, error) {
	fc.requests = append(fc.requests, req)
	if fc.err != nil {
		return nil, fc.err
	}
	return fc.resp, nil
}

func newEvaluator(t *testing.T, checker *fakeChecker, store devicetrust.Store, sess *session.Manager) *trust.Evaluator {
	t.Helper()
	e, err := trust.NewEvaluator(checker, telemetryfakes.NewFakeCollector(), nil, store, sess)
	require.NoError(t, err)
	return e
}

func TestEvaluator_Evaluate(t *testing.T) {
	t.Run("trusted device seeds session and skips challenge", func(t *testing.T) {
		sess, err := session.NewManager("acid-1")
		require.NoError(t, err)
		checker := &fakeChecker{resp: &api.IdentityResponse{
			Challenge:  0,
			LoginToken: "tok123",
			LoginAID:   "sess-7",
		}}

		decision := newEvaluator(t, checker, devicetrust.NewInMemoryStore(), sess).Evaluate(context.Background())

		require.True(t, decision.Trusted)
		require.Equal(t, "tok123", sess.AuthToken())
		require.Equal(t, "sess-7", sess.SessionID())
	})

	t.Run("nonzero challenge keeps token unset", func(t *testing.T) {
		sess, err := session.NewManager("acid-1")
		require.NoError(t, err)
		checker := &fakeChecker{resp: &api.IdentityResponse{
			Challenge:        3,
			LoginToken:       "should-not-be-kept",
			LoginAID:         "sess-8",
			UserFaceCaptured: true,
		}}

		decision := newEvaluator(t, checker, devicetrust.NewInMemoryStore(), sess).Evaluate(context.Background())

		require.False(t, decision.Trusted)
		require.Equal(t, 3, decision.Challenge)
		require.True(t, decision.Captured.Face)
		require.Empty(t, sess.AuthToken())
		require.Equal(t, "sess-8", sess.SessionID())
	})

	t.Run("persists a fresh device token only when none was supplied", func(t *testing.T) {
		sess, err := session.NewManager("acid-1")
		require.NoError(t, err)
		store := devicetrust.NewInMemoryStore()
		checker := &fakeChecker{resp: &api.IdentityResponse{Challenge: 1, DeviceToken: "dev-tok"}}

		newEvaluator(t, checker, store, sess).Evaluate(context.Background())

		token, err := store.Token(context.Background())
		require.NoError(t, err)
		require.Equal(t, "dev-tok", token)
	})

	t.Run("supplies a stored device token on the check", func(t *testing.T) {
		sess, err := session.NewManager("acid-1")
		require.NoError(t, err)
		store := devicetrust.NewInMemoryStore()
		require.NoError(t, store.Save(context.Background(), "existing-tok"))
		checker := &fakeChecker{resp: &api.IdentityResponse{Challenge: 1, DeviceToken: "newer-tok"}}

		newEvaluator(t, checker, store, sess).Evaluate(context.Background())

		require.Len(t, checker.requests, 1)
		require.Equal(t, "existing-tok", checker.requests[0].Token)

		token, err := store.Token(context.Background())
		require.NoError(t, err)
		require.Equal(t, "existing-tok", token)
	})

	t.Run("geolocation falls back to the unknown pair", func(t *testing.T) {
		sess, err := session.NewManager("acid-1")
		require.NoError(t, err)
		checker := &fakeChecker{resp: &api.IdentityResponse{Challenge: 1}}
		locator := geo.LocatorFunc(func(_ context.Context) (api.Position, error) {
			return api.Position{}, errors.New("denied")
		})
		e, err := trust.NewEvaluator(checker, telemetryfakes.NewFakeCollector(), locator, devicetrust.NewInMemoryStore(), sess)
		require.NoError(t, err)

		e.Evaluate(context.Background())

		require.Len(t, checker.requests, 1)
		require.Equal(t, api.Position{Latitude: "unknown", Longitude: "unknown"}, checker.requests[0].Position)
	})

	t.Run("check failure is non-fatal and forces method selection", func(t *testing.T) {
		sess, err := session.NewManager("acid-1")
		require.NoError(t, err)
		checker := &fakeChecker{err: errors.New("connection refused")}

		decision := newEvaluator(t, checker, devicetrust.NewInMemoryStore(), sess).Evaluate(context.Background())

		require.False(t, decision.Trusted)
		require.Error(t, decision.Err)
	})
}
