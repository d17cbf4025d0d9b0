// Package acidcheck wires the verification components into a ready-to-run
// orchestrator. Hosts supply the platform capabilities and a presenter;
// everything else is constructed from configuration.
package acidcheck

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/cloudspacetechs/acidcheck/api"
	"github.com/cloudspacetechs/acidcheck/capability"
	"github.com/cloudspacetechs/acidcheck/challenge"
	"github.com/cloudspacetechs/acidcheck/devicetrust"
	"github.com/cloudspacetechs/acidcheck/geo"
	"github.com/cloudspacetechs/acidcheck/internal/config"
	"github.com/cloudspacetechs/acidcheck/method"
	"github.com/cloudspacetechs/acidcheck/method/face"
	"github.com/cloudspacetechs/acidcheck/method/passkey"
	"github.com/cloudspacetechs/acidcheck/method/totp"
	"github.com/cloudspacetechs/acidcheck/method/tpn"
	"github.com/cloudspacetechs/acidcheck/orchestrator"
	"github.com/cloudspacetechs/acidcheck/session"
	"github.com/cloudspacetechs/acidcheck/telemetry"
	"github.com/cloudspacetechs/acidcheck/trust"
	"github.com/cloudspacetechs/acidcheck/ui"
)

// Config re-exports the runtime configuration.
type Config = config.Config

// NewConfig parses configuration from environment variables.
func NewConfig() (*Config, error) {
	return config.New()
}

// Capabilities bundles everything the host environment must provide.
type Capabilities struct {
	Authenticator capability.Authenticator
	Camera        capability.Camera
	Locator       geo.Locator // optional; nil resolves to the unknown pair
	Collector     telemetry.Collector
	Presenter     ui.Presenter
	TrustStore    devicetrust.Store
}

// VerifierOption modifies the assembled verifier.
type VerifierOption func(*builder)

type builder struct {
	logger     zerolog.Logger
	updateMode bool
}

// WithLogger sets the logger threaded through every component.
func WithLogger(logger zerolog.Logger) VerifierOption {
	return func(b *builder) {
		b.logger = logger
	}
}

// WithUpdateMode runs the enrollment/update flow instead of login.
func WithUpdateMode() VerifierOption {
	return func(b *builder) {
		b.updateMode = true
	}
}

// New assembles an orchestrator for one verification session of subjectID.
func New(cfg *Config, subjectID string, caps Capabilities, options ...VerifierOption) (*orchestrator.Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("[New] config is required")
	}
	if caps.Authenticator == nil {
		return nil, errors.New("[New] authenticator capability is required")
	}
	if caps.Camera == nil {
		return nil, errors.New("[New] camera capability is required")
	}
	if caps.Collector == nil {
		return nil, errors.New("[New] telemetry collector is required")
	}
	if caps.Presenter == nil {
		return nil, errors.New("[New] presenter is required")
	}
	if caps.TrustStore == nil {
		return nil, errors.New("[New] device trust store is required")
	}

	b := &builder{logger: zerolog.Nop()}
	for _, opt := range options {
		opt(b)
	}

	client, err := api.NewClient(cfg.BaseURL,
		api.WithTimeout(cfg.HTTPTimeout),
		api.WithLogger(b.logger),
	)
	if err != nil {
		return nil, err
	}

	sessOptions := []session.ManagerOption{}
	if b.updateMode {
		sessOptions = append(sessOptions, session.WithUpdateMode())
	}
	sess, err := session.NewManager(subjectID, sessOptions...)
	if err != nil {
		return nil, err
	}

	challenges, err := challenge.NewCache(client, subjectID)
	if err != nil {
		return nil, err
	}

	evaluator, err := trust.NewEvaluator(client, caps.Collector, caps.Locator, caps.TrustStore, sess,
		trust.WithLogger(b.logger))
	if err != nil {
		return nil, err
	}

	passkeyCtrl, err := passkey.NewController(client, challenges, caps.Authenticator, sess, caps.TrustStore, caps.Presenter,
		passkey.WithLogger(b.logger))
	if err != nil {
		return nil, err
	}
	faceCtrl, err := face.NewController(client, caps.Camera, sess, caps.TrustStore, caps.Presenter,
		face.WithLogger(b.logger),
		face.WithTiming(cfg.FaceWarmUp, cfg.FaceFrameInterval, cfg.FaceRetryBackoff),
		face.WithBurst(cfg.FaceFrameCount, uint64(cfg.FaceMaxRetries)))
	if err != nil {
		return nil, err
	}
	totpCtrl, err := totp.NewController(client, sess, caps.TrustStore, caps.Presenter,
		totp.WithLogger(b.logger))
	if err != nil {
		return nil, err
	}
	tpnCtrl, err := tpn.NewController(client, sess, caps.TrustStore, caps.Presenter,
		tpn.WithLogger(b.logger))
	if err != nil {
		return nil, err
	}

	return orchestrator.New(sess, evaluator,
		[]method.Controller{passkeyCtrl, faceCtrl, totpCtrl, tpnCtrl},
		client, caps.Collector, caps.Presenter,
		orchestrator.WithLogger(b.logger))
}
