// Package passkey drives the platform-credential (WebAuthn-class)
// verification protocol.
package passkey

import (
	"context"
	"encoding/base64"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/cloudspacetechs/acidcheck/api"
	"github.com/cloudspacetechs/acidcheck/capability"
	"github.com/cloudspacetechs/acidcheck/challenge"
	"github.com/cloudspacetechs/acidcheck/devicetrust"
	acerrors "github.com/cloudspacetechs/acidcheck/internal/errors"
	"github.com/cloudspacetechs/acidcheck/method"
	"github.com/cloudspacetechs/acidcheck/session"
	"github.com/cloudspacetechs/acidcheck/ui"
)

// Exchanger is the slice of the backend client the controller needs.
type Exchanger interface {
	RegisterCredential(ctx context.Context, req api.RegisterCredentialRequest) (*api.CredentialResponse, error)
	VerifyCredential(ctx context.Context, req api.VerifyCredentialRequest) (*api.CredentialResponse, error)
}

// Controller runs the passkey enrollment or login exchange. Failures are
// never retried automatically; the user returns to method selection.
type Controller struct {
	exchanger     Exchanger
	challenges    *challenge.Cache
	authenticator capability.Authenticator
	sess          *session.Manager
	store         devicetrust.Store
	presenter     ui.Presenter
	logger        zerolog.Logger
}

// ControllerOption modifies a Controller instance.
type ControllerOption func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(logger zerolog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

// NewController creates a passkey controller.
func NewController(exchanger Exchanger, challenges *challenge.Cache, authenticator capability.Authenticator, sess *session.Manager, store devicetrust.Store, presenter ui.Presenter, options ...ControllerOption) (*Controller, error) {
	if exchanger == nil {
		return nil, errors.New("[NewController] exchanger is required")
	}
	if challenges == nil {
		return nil, errors.New("[NewController] challenge cache is required")
	}
	if authenticator == nil {
		return nil, errors.New("[NewController] authenticator is required")
	}
	if sess == nil {
		return nil, errors.New("[NewController] session manager is required")
	}
	if store == nil {
		return nil, errors.New("[NewController] device trust store is required")
	}
	if presenter == nil {
		return nil, errors.New("[NewController] presenter is required")
	}

	c := &Controller{
		exchanger:     exchanger,
		challenges:    challenges,
		authenticator: authenticator,
		sess:          sess,
		store:         store,
		presenter:     presenter,
		logger:        zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

func (c *Controller) Method() method.Method {
	return method.Passkey
}

// Start runs the enrollment path in update mode and the login path
// otherwise.
func (c *Controller) Start(ctx context.Context) (method.Result, error) {
	if c.sess.UpdateMode() {
		return c.enroll(ctx)
	}
	return c.login(ctx)
}

// Cancel is a no-op: the exchange holds no hardware and a pending
// authenticator prompt is dismissed by the platform itself.
func (c *Controller) Cancel() {}

func (c *Controller) enroll(ctx context.Context) (method.Result, error) {
	ch, err := c.challenges.Get(ctx, challenge.Registration)
	if err != nil {
		return c.suspend(err, "could not obtain a registration challenge")
	}

	opts := *ch.Creation
	decodeUserHandle(&opts)

	cred, err := c.authenticator.Create(ctx, opts)
	if err != nil {
		return c.suspend(acerrors.Wrapf(acerrors.ErrAuthenticatorRejected, "create: %v", err), "credential creation was refused")
	}

	resp, err := c.exchanger.RegisterCredential(ctx, api.RegisterCredentialRequest{
		ACID:              c.sess.SubjectID(),
		Payload:           cred.Payload,
		AuthenticatorData: cred.AuthenticatorData,
	})
	if err != nil {
		return c.suspend(err, "could not store the new credential")
	}
	if resp.Message == "" {
		return c.suspend(acerrors.ErrMissingConfirm, "the server did not confirm the credential")
	}

	c.logger.Info().Str("method", c.Method().String()).Msg("credential registered")
	return method.Result{Outcome: method.OutcomeSuccess}, nil
}

func (c *Controller) login(ctx context.Context) (method.Result, error) {
	ch, err := c.challenges.Get(ctx, challenge.Assertion)
	if err != nil {
		return c.suspend(err, "could not obtain a login challenge")
	}

	cred, err := c.authenticator.Get(ctx, *ch.Assertion)
	if err != nil {
		return c.suspend(acerrors.Wrapf(acerrors.ErrAuthenticatorRejected, "get: %v", err), "credential assertion was refused")
	}

	resp, err := c.exchanger.VerifyCredential(ctx, api.VerifyCredentialRequest{
		ACID:     c.sess.SubjectID(),
		Payload:  cred.Payload,
		LoginAID: c.sess.SessionID(),
	})
	if err != nil {
		return c.suspend(err, "could not verify the credential")
	}
	if resp.Message == "" {
		return c.suspend(acerrors.ErrMissingConfirm, "the server did not confirm the assertion")
	}

	c.sess.SetAuthToken(resp.LoginToken)
	if err := c.store.Save(ctx, resp.DeviceToken); err != nil {
		c.logger.Warn().Err(err).Msg("device trust token save failed")
	}

	c.logger.Info().Str("method", c.Method().String()).Msg("credential verified")
	return method.Result{Outcome: method.OutcomeSuccess}, nil
}

func (c *Controller) suspend(err error, text string) (method.Result, error) {
	c.logger.Warn().Err(err).Str("method", c.Method().String()).Msg("passkey exchange failed")
	c.presenter.ShowError(c.Method(), text)
	return method.Result{Outcome: method.OutcomeSuspended, ErrorText: text, Err: err}, nil
}

// decodeUserHandle converts the user handle from its base64url wire form to
// raw bytes before the options reach the authenticator. The challenge nonce
// and credential IDs are typed URLEncodedBase64 and decode on unmarshal;
// the user handle is loosely typed on the wire and needs the same treatment
// here.
func decodeUserHandle(opts *api.CreationOptions) {
	handle, ok := opts.User.ID.(string)
	if !ok {
		return
	}
	raw, err := base64.RawURLEncoding.DecodeString(handle)
	if err != nil {
		return
	}
	opts.User.ID = protocol.URLEncodedBase64(raw)
}
