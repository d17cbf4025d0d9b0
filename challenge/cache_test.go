package challenge_test

import (
	"context"
	"testing"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/require"

	"github.com/cloudspacetechs/acidcheck/api"
	"github.com/cloudspacetechs/acidcheck/challenge"
)

type fakeIssuer struct {
	registrationCalls int
	assertionCalls    int
	registrationErr   error
}

func (fi *fakeIssuer) GenerateRegistrationChallenge(_ context.Context, _ string) (*api.CreationOptions, error) {
	fi.registrationCalls++
	if fi.registrationErr != nil {
		return nil, fi.registrationErr
	}
	return &api.CreationOptions{
		Challenge: protocol.URLEncodedBase64{0x01, 0x02, 0x03, byte(fi.registrationCalls)},
	}, nil
}

func (fi *fakeIssuer) GenerateAssertionChallenge(_ context.Context, _ string) (*api.AssertionOptions, error) {
	fi.assertionCalls++
	return &api.AssertionOptions{
		Challenge: protocol.URLEncodedBase64{0x0a, 0x0b, byte(fi.assertionCalls)},
	}, nil
}

func TestCache_Get(t *testing.T) {
	t.Run("memoizes one issuance per kind", func(t *testing.T) {
		issuer := &fakeIssuer{}
		cache, err := challenge.NewCache(issuer, "acid-1")
		require.NoError(t, err)

		first, err := cache.Get(context.Background(), challenge.Registration)
		require.NoError(t, err)
		second, err := cache.Get(context.Background(), challenge.Registration)
		require.NoError(t, err)

		require.Equal(t, 1, issuer.registrationCalls)
		require.Same(t, first, second)
		require.Equal(t, []byte(first.Creation.Challenge), []byte(second.Creation.Challenge))
	})

	t.Run("kinds are cached independently", func(t *testing.T) {
		issuer := &fakeIssuer{}
		cache, err := challenge.NewCache(issuer, "acid-1")
		require.NoError(t, err)

		reg, err := cache.Get(context.Background(), challenge.Registration)
		require.NoError(t, err)
		assert, err := cache.Get(context.Background(), challenge.Assertion)
		require.NoError(t, err)

		require.Equal(t, 1, issuer.registrationCalls)
		require.Equal(t, 1, issuer.assertionCalls)
		require.NotNil(t, reg.Creation)
		require.Nil(t, reg.Assertion)
		require.NotNil(t, assert.Assertion)
		require.Nil(t, assert.Creation)
	})

	t.Run("failed issuance is not cached", func(t *testing.T) {
		issuer := &fakeIssuer{registrationErr: context.DeadlineExceeded}
		cache, err := challenge.NewCache(issuer, "acid-1")
		require.NoError(t, err)

		_, err = cache.Get(context.Background(), challenge.Registration)
		require.Error(t, err)

		issuer.registrationErr = nil
		ch, err := cache.Get(context.Background(), challenge.Registration)
		require.NoError(t, err)
		require.NotNil(t, ch.Creation)
		require.Equal(t, 2, issuer.registrationCalls)
	})
}

func TestNewCache_Validation(t *testing.T) {
	_, err := challenge.NewCache(nil, "acid-1")
	require.Error(t, err)

	_, err = challenge.NewCache(&fakeIssuer{}, "")
	require.Error(t, err)
}
