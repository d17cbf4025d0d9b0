// Package tpn drives the trusted-party-number protocol: number enrollment,
// out-of-band code dispatch, and six-digit code verification.
package tpn

import (
	"context"
	"strings"

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
	RegisterTPN(ctx context.Context, req api.RegisterTPNRequest) (*api.CodeResponse, error)
	SendCode(ctx context.Context, req api.SendCodeRequest) (*api.CodeResponse, error)
	VerifyTPN(ctx context.Context, req api.VerifyCodeRequest) (*api.CodeResponse, error)
}

// Controller handles trusted-party enrollment and login. Like TOTP, code
// rejection leaves the method active for resubmission.
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

// NewController creates a trusted-party controller.
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
	return method.TrustedParty
}

// Start prompts for a number in update mode. For login it dispatches a code
// to the registered trusted party first; a failed dispatch suspends the
// method immediately rather than waiting on an input the user cannot
// complete.
func (c *Controller) Start(ctx context.Context) (method.Result, error) {
	if c.sess.UpdateMode() {
		c.presenter.ShowNumberPrompt("Enter a trusted phone number which can help authenticate you if your device is compromised")
		return method.Result{Outcome: method.OutcomePending}, nil
	}

	deviceToken, err := c.store.Token(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("device trust store read failed")
		deviceToken = ""
	}

	resp, err := c.verifier.SendCode(ctx, api.SendCodeRequest{
		ACID:        c.sess.SubjectID(),
		DeviceToken: deviceToken,
		LoginAID:    c.sess.SessionID(),
	})
	if err != nil || !resp.Success {
		text := "could not reach your trusted party, please try another method"
		if err == nil {
			err = acerrors.Wrapf(acerrors.ErrDispatchFailed, "%s", resp.Error)
		}
		c.logger.Warn().Err(err).Msg("tpn dispatch failed")
		c.presenter.ShowError(c.Method(), text)
		return method.Result{Outcome: method.OutcomeSuspended, ErrorText: text, Err: err}, nil
	}

	c.presenter.ShowCodePrompt(c.Method(), "Enter the 6 digit code sent to the trusted party on your account")
	return method.Result{Outcome: method.OutcomePending}, nil
}

// Cancel is a no-op: the controller holds no hardware and no timers.
func (c *Controller) Cancel() {}

// RegisterNumber enrolls a trusted-party number, then flips into code entry
// with a masked confirmation of the destination.
func (c *Controller) RegisterNumber(ctx context.Context, number string) (method.Result, error) {
	resp, err := c.verifier.RegisterTPN(ctx, api.RegisterTPNRequest{
		ACID: c.sess.SubjectID(),
		TPN:  number,
	})
	if err != nil {
		text := "registration is temporarily unavailable"
		c.logger.Warn().Err(err).Msg("tpn registration failed")
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

	c.presenter.ShowCodePrompt(c.Method(), "Enter the 6 digit code sent to "+MaskNumber(number))
	return method.Result{Outcome: method.OutcomePending}, nil
}

// SubmitCode verifies a completed six-digit entry against the TPN endpoint.
func (c *Controller) SubmitCode(ctx context.Context, code string) (method.Result, error) {
	resp, err := c.verifier.VerifyTPN(ctx, api.VerifyCodeRequest{
		ACID:     c.sess.SubjectID(),
		OTP:      code,
		LoginAID: c.sess.SessionID(),
	})
	if err != nil {
		text := "verification is temporarily unavailable"
		c.logger.Warn().Err(err).Msg("tpn verify failed")
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

// MaskNumber hides all but the last three digits of a phone-number-like
// string.
func MaskNumber(number string) string {
	trimmed := strings.TrimSpace(number)
	if len(trimmed) <= 3 {
		return trimmed
	}
	return strings.Repeat("*", len(trimmed)-3) + trimmed[len(trimmed)-3:]
}
