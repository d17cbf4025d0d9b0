// Package totp drives the authenticator-app verification protocol: QR
// provisioning during enrollment, six-digit code verification in both
// flows.
package totp

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/cloudspacetechs/acidcheck/api"
	"github.com/cloudspacetechs/acidcheck/devicetrust"
	acerrors "github.com/cloudspacetechs/acidcheck/internal/errors"
	"github.com/cloudspacetechs/acidcheck/method"
	"github.com/cloudspacetechs/acidcheck/session"
	"github.com/cloudspacetechs/acidcheck/ui"
)

// Verifier is the slice of the backend client the controller needs.
type Verifier interface {
	GenerateTOTP(ctx context.Context, acid string) (*api.TOTPProvisioning, error)
	VerifyTOTP(ctx context.Context, req api.VerifyCodeRequest) (*api.CodeResponse, error)
}

// Controller handles TOTP enrollment and login. Code rejection never
// consumes a retry budget; the user may resubmit indefinitely.
type Controller struct {
	verifier  Verifier
	sess      *session.Manager
	store     devicetrust.Store
	presenter ui.Presenter
	logger    zerolog.Logger
}

// ControllerOption modifies a Controller instance.
type ControllerOption func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(logger zerolog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

// NewController creates a TOTP controller.
func NewController(verifier Verifier, sess *session.Manager, store devicetrust.Store, presenter ui.Presenter, options ...ControllerOption) (*Controller, error) {
	if verifier == nil {
		return nil, errors.New("[NewController] verifier is required")
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
		verifier:  verifier,
		sess:      sess,
		store:     store,
		presenter: presenter,
		logger:    zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

func (c *Controller) Method() method.Method {
	return method.TOTP
}

// Start requests and displays the provisioning payload in update mode, or
// goes straight to the code prompt for login. Either way the method stays
// active awaiting a code.
func (c *Controller) Start(ctx context.Context) (method.Result, error) {
	if c.sess.UpdateMode() {
		prov, err := c.verifier.GenerateTOTP(ctx, c.sess.SubjectID())
		if err != nil {
			text := "could not generate a provisioning code"
			c.logger.Warn().Err(err).Msg("totp provisioning failed")
			c.presenter.ShowError(c.Method(), text)
			return method.Result{Outcome: method.OutcomeSuspended, ErrorText: text, Err: err}, nil
		}
		c.presenter.ShowProvisioningQR(prov.QRCodeDataURL)
		return method.Result{Outcome: method.OutcomePending}, nil
	}

	c.presenter.ShowCodePrompt(c.Method(), "Enter OTP registered via your authenticator app")
	return method.Result{Outcome: method.OutcomePending}, nil
}

// Cancel is a no-op: the controller holds no hardware and no timers.
func (c *Controller) Cancel() {}

// SubmitCode verifies a completed six-digit entry. A protocol rejection
// surfaces the server's error text verbatim and leaves the method active.
func (c *Controller) SubmitCode(ctx context.Context, code string) (method.Result, error) {
	deviceToken, err := c.store.Token(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("device trust store read failed")
		deviceToken = ""
	}

	resp, err := c.verifier.VerifyTOTP(ctx, api.VerifyCodeRequest{
		ACID:        c.sess.SubjectID(),
		OTP:         code,
		DeviceToken: deviceToken,
		LoginAID:    c.sess.SessionID(),
	})
	if err != nil {
		text := "verification is temporarily unavailable"
		c.logger.Warn().Err(err).Msg("totp verify failed")
		c.presenter.ShowError(c.Method(), text)
		return method.Result{Outcome: method.OutcomeSuspended, ErrorText: text, Err: err}, nil
	}

	if !resp.Success {
		c.presenter.ShowError(c.Method(), resp.Error)
		return method.Result{
			Outcome:   method.OutcomePending,
			ErrorText: resp.Error,
			Err:       acerrors.ErrCodeRejected,
		}, nil
	}

	c.sess.SetAuthToken(resp.LoginToken)
	if err := c.store.Save(ctx, resp.DeviceToken); err != nil {
		c.logger.Warn().Err(err).Msg("device trust token save failed")
	}

	c.logger.Info().Str("method", c.Method().String()).Msg("code verified")
	return method.Result{Outcome: method.OutcomeSuccess}, nil
}
