package passkey_test

import (
	"context"
	"testing"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/cloudspacetechs/acidcheck/api"
	"github.com/cloudspacetechs/acidcheck/capability/capfakes"
	"github.com/cloudspacetechs/acidcheck/challenge"
	"github.com/cloudspacetechs/acidcheck/devicetrust"
	"github.com/cloudspacetechs/acidcheck/method"
	"github.com/cloudspacetechs/acidcheck/method/passkey"
	"github.com/cloudspacetechs/acidcheck/session"
	"github.com/cloudspacetechs/acidcheck/ui/uifakes"
)

type fakeBackend struct {
	registrationCalls int
	assertionCalls    int

	registerResp *api.CredentialResponse
	registerErr  error
	verifyResp   *api.CredentialResponse
	verifyErr    error

	lastRegister api.RegisterCredentialRequest
	lastVerify   api.VerifyCredentialRequest
}

func (fb *fakeBackend) GenerateRegistrationChallenge(_ context.Context, _ string) (*api.CreationOptions, error) {
	fb.registrationCalls++
	return &api.CreationOptions{
		Challenge: protocol.URLEncodedBase64{0x01, 0x02},
		User: protocol.UserEntity{
			CredentialEntity: protocol.CredentialEntity{Name: "acid-1"},
			DisplayName:      "acid-1",
			ID:               "dXNlci0x", // base64url on the wire
		},
	}, nil
}

func (fb *fakeBackend) GenerateAssertionChallenge(_ context.Context, _ string) (*api.AssertionOptions, error) {
	fb.assertionCalls++
	return &api.AssertionOptions{
		Challenge: protocol.URLEncodedBase64{0x0a, 0x0b},
		AllowedCredentials: []protocol.CredentialDescriptor{
			{Type: protocol.PublicKeyCredentialType, CredentialID: protocol.URLEncodedBase64{0x10, 0x11}},
		},
	}, nil
}

func (fb *fakeBackend) RegisterCredential(_ context.Context, req api.RegisterCredentialRequest) (*api.CredentialResponse, error) {
	fb.lastRegister = req
	if fb.registerErr != nil {
		return nil, fb.registerErr
	}
	return fb.registerResp, nil
}

func (fb *fakeBackend) VerifyCredential(_ context.Context, req api.VerifyCredentialRequest) (*api.CredentialResponse, error) {
	fb.lastVerify = req
	if fb.verifyErr != nil {
		return nil, fb.verifyErr
	}
	return fb.verifyResp, nil
}

type controllerDeps struct {
	backend       *fakeBackend
	authenticator *capfakes.FakeAuthenticator
	sess          *session.Manager
	store         *devicetrust.InMemoryStore
	presenter     *uifakes.Recorder
	ctrl          *passkey.Controller
}

func newDeps(t *testing.T, updateMode bool) *controllerDeps {
	t.Helper()

	var sessOptions []session.ManagerOption
	if updateMode {
		sessOptions = append(sessOptions, session.WithUpdateMode())
	}
	sess, err := session.NewManager("acid-1", sessOptions...)
	require.NoError(t, err)

	backend := &fakeBackend{}
	cache, err := challenge.NewCache(backend, "acid-1")
	require.NoError(t, err)

	deps := &controllerDeps{
		backend:       backend,
		authenticator: capfakes.NewFakeAuthenticator(),
		sess:          sess,
		store:         devicetrust.NewInMemoryStore(),
		presenter:     uifakes.NewRecorder(),
	}
	deps.ctrl, err = passkey.NewController(backend, cache, deps.authenticator, sess, deps.store, deps.presenter)
	require.NoError(t, err)
	return deps
}

func TestController_Login(t *testing.T) {
	t.Run("success persists tokens", func(t *testing.T) {
		deps := newDeps(t, false)
		deps.sess.SetSessionID("sess-1")
		deps.backend.verifyResp = &api.CredentialResponse{
			Message:     "verified",
			LoginToken:  "tok-pk",
			DeviceToken: "dev-pk",
		}

		res, err := deps.ctrl.Start(context.Background())
		require.NoError(t, err)

		require.Equal(t, method.OutcomeSuccess, res.Outcome)
		require.Equal(t, "tok-pk", deps.sess.AuthToken())
		require.Equal(t, "sess-1", deps.backend.lastVerify.LoginAID)

		token, err := deps.store.Token(context.Background())
		require.NoError(t, err)
		require.Equal(t, "dev-pk", token)
	})

	t.Run("missing confirmation suspends", func(t *testing.T) {
		deps := newDeps(t, false)
		deps.backend.verifyResp = &api.CredentialResponse{}

		res, err := deps.ctrl.Start(context.Background())
		require.NoError(t, err)

		require.Equal(t, method.OutcomeSuspended, res.Outcome)
		require.NotEmpty(t, deps.presenter.LastError())
		require.Empty(t, deps.sess.AuthToken())
	})

	t.Run("authenticator rejection does not burn the challenge", func(t *testing.T) {
		deps := newDeps(t, false)
		deps.backend.verifyResp = &api.CredentialResponse{Message: "verified"}
		deps.authenticator.GetErr = errors.New("user dismissed prompt")

		res, err := deps.ctrl.Start(context.Background())
		require.NoError(t, err)
		require.Equal(t, method.OutcomeSuspended, res.Outcome)

		// Retry reuses the memoized challenge rather than re-issuing.
		deps.authenticator.GetErr = nil
		res, err = deps.ctrl.Start(context.Background())
		require.NoError(t, err)
		require.Equal(t, method.OutcomeSuccess, res.Outcome)
		require.Equal(t, 1, deps.backend.assertionCalls)
	})
}

func TestController_Enroll(t *testing.T) {
	t.Run("decodes the user handle before the authenticator sees it", func(t *testing.T) {
		deps := newDeps(t, true)
		deps.backend.registerResp = &api.CredentialResponse{Message: "registered"}

		res, err := deps.ctrl.Start(context.Background())
		require.NoError(t, err)
		require.Equal(t, method.OutcomeSuccess, res.Outcome)

		opts := deps.authenticator.LastCreateOptions()
		require.NotNil(t, opts)
		require.Equal(t, protocol.URLEncodedBase64([]byte("user-1")), opts.User.ID)
		require.Equal(t, []byte{0x01, 0x02}, []byte(opts.Challenge))
	})

	t.Run("submits the serialized credential", func(t *testing.T) {
		deps := newDeps(t, true)
		deps.backend.registerResp = &api.CredentialResponse{Message: "registered"}

		_, err := deps.ctrl.Start(context.Background())
		require.NoError(t, err)

		require.Equal(t, "acid-1", deps.backend.lastRegister.ACID)
		require.JSONEq(t, `{"id":"fake-cred","type":"public-key"}`, string(deps.backend.lastRegister.Payload))
		require.NotEmpty(t, deps.backend.lastRegister.AuthenticatorData)
	})

	t.Run("network failure suspends without retry", func(t *testing.T) {
		deps := newDeps(t, true)
		deps.backend.registerErr = errors.New("connection reset")

		res, err := deps.ctrl.Start(context.Background())
		require.NoError(t, err)
		require.Equal(t, method.OutcomeSuspended, res.Outcome)
		require.Equal(t, 1, deps.authenticator.CreateCalls())
	})
}
