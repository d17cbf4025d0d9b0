// Package trust performs the initial trust check that decides whether the
// session needs a verification challenge at all.
package trust

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/cloudspacetechs/acidcheck/api"
	"github.com/cloudspacetechs/acidcheck/devicetrust"
	"github.com/cloudspacetechs/acidcheck/geo"
	"github.com/cloudspacetechs/acidcheck/session"
	"github.com/cloudspacetechs/acidcheck/telemetry"
)

// Decision is the interpreted outcome of the trust check.
type Decision struct {
	// Trusted means challenge == 0: the session is authenticated without
	// further verification.
	Trusted bool
	// Challenge is the raw backend challenge flag.
	Challenge int
	// Captured reports which factors the backend has enrolled for this
	// subject, letting the presenter pre-filter the method menu.
	Captured CapturedMethods
	// Err is set when the check itself failed. A failed check is never
	// fatal; the orchestrator falls back to presenting all methods.
	Err error
}

// CapturedMethods mirrors the enrollment flags of the trust response.
type CapturedMethods struct {
	Face     bool
	WebAuthn bool
	TOTP     bool
}

// Checker is the slice of the backend client the evaluator needs.
type Checker interface {
	CheckIdentity(ctx context.Context, req api.IdentityRequest) (*api.IdentityResponse, error)
}

// Evaluator assembles the telemetry bundle, submits the trust check, and
// seeds the session manager from the response.
type Evaluator struct {
	checker   Checker
	collector telemetry.Collector
	locator   geo.Locator
	store     devicetrust.Store
	sess      *session.Manager
	logger    zerolog.Logger
}

// EvaluatorOption modifies an Evaluator instance.
type EvaluatorOption func(*Evaluator)

// WithLogger sets the logger used for trust-check diagnostics.
func WithLogger(logger zerolog.Logger) EvaluatorOption {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// NewEvaluator creates a trust evaluator. locator may be nil; position then
// resolves to the unknown sentinel pair.
func NewEvaluator(checker Checker, collector telemetry.Collector, locator geo.Locator, store devicetrust.Store, sess *session.Manager, options ...EvaluatorOption) (*Evaluator, error) {
	if checker == nil {
		return nil, errors.New("[NewEvaluator] checker is required")
	}
	if collector == nil {
		return nil, errors.New("[NewEvaluator] collector is required")
	}
	if store == nil {
		return nil, errors.New("[NewEvaluator] store is required")
	}
	if sess == nil {
		return nil, errors.New("[NewEvaluator] session manager is required")
	}

	e := &Evaluator{
		checker:   checker,
		collector: collector,
		locator:   locator,
		store:     store,
		sess:      sess,
		logger:    zerolog.Nop(),
	}
	for _, opt := range options {
		opt(e)
	}
	return e, nil
}

// Evaluate runs the trust check once per session. Side effects on success:
// the server-issued session id is stored, a returned bearer token is kept
// when the device is fully trusted, and a returned device-trust token is
// persisted when none was supplied.
func (e *Evaluator) Evaluate(ctx context.Context) Decision {
	position := geo.Resolve(ctx, e.locator)

	deviceToken, err := e.store.Token(ctx)
	if err != nil {
		// A broken store reads as an untrusted device.
		e.logger.Warn().Err(err).Msg("device trust store read failed")
		deviceToken = ""
	}

	snapshot := e.collector.Snapshot()

	resp, err := e.checker.CheckIdentity(ctx, api.IdentityRequest{
		Data:            snapshot.Fingerprint,
		ACID:            e.sess.SubjectID(),
		Token:           deviceToken,
		Position:        position,
		InjectedLinks:   snapshot.InjectedLinks,
		InjectedScripts: snapshot.InjectedScripts,
	})
	if err != nil {
		e.logger.Warn().Err(err).Msg("trust check failed, falling back to method selection")
		return Decision{Trusted: false, Challenge: -1, Err: err}
	}

	e.sess.SetSessionID(resp.LoginAID)
	if resp.Challenge == 0 {
		e.sess.SetAuthToken(resp.LoginToken)
	}
	if deviceToken == "" && resp.DeviceToken != "" {
		if err := e.store.Save(ctx, resp.DeviceToken); err != nil {
			e.logger.Warn().Err(err).Msg("device trust token save failed")
		}
	}

	e.logger.Info().
		Int("challenge", resp.Challenge).
		Bool("trusted", resp.Challenge == 0).
		Msg("trust check complete")

	return Decision{
		Trusted:   resp.Challenge == 0,
		Challenge: resp.Challenge,
		Captured: CapturedMethods{
			Face:     resp.UserFaceCaptured,
			WebAuthn: resp.WebAuthnCaptured,
			TOTP:     resp.TOTPCaptured,
		},
	}
}
