// Package orchestrator implements the top-level verification state
// machine. It owns one session's mutable state end to end; nothing here
// survives across sessions except the device-trust store it was given.
package orchestrator

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/cloudspacetechs/acidcheck/api"
	acerrors "github.com/cloudspacetechs/acidcheck/internal/errors"
	"github.com/cloudspacetechs/acidcheck/method"
	"github.com/cloudspacetechs/acidcheck/session"
	"github.com/cloudspacetechs/acidcheck/telemetry"
	"github.com/cloudspacetechs/acidcheck/trust"
	"github.com/cloudspacetechs/acidcheck/ui"
)

// State is the orchestrator's observable position in the verification flow.
type State int

const (
	StateInit State = iota
	StateTrustChecking
	StateMethodSelection
	StateMethodActive
	StateFinalizing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateTrustChecking:
		return "trust-checking"
	case StateMethodSelection:
		return "method-selection"
	case StateMethodActive:
		return "method-active"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Finisher is the slice of the backend client used to report the outcome.
type Finisher interface {
	FinishSession(ctx context.Context, req api.FinishRequest) (*api.FinishResponse, error)
}

// Evaluator runs the initial trust check.
type Evaluator interface {
	Evaluate(ctx context.Context) trust.Decision
}

// Orchestrator drives one verification session. The driver model is
// single-threaded and cooperative: the presentation layer calls Start,
// SelectMethod, SubmitCode, and so on in response to user actions, and each
// call runs the protocol as far as it can before returning.
type Orchestrator struct {
	sess        *session.Manager
	evaluator   Evaluator
	controllers map[method.Method]method.Controller
	finisher    Finisher
	collector   telemetry.Collector
	presenter   ui.Presenter
	logger      zerolog.Logger

	lock     sync.Mutex
	state    State
	active   method.Controller
	counts   map[method.Method]int
	attempts []method.Attempt
}

// Option modifies an Orchestrator instance.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// New creates an orchestrator for one verification session. controllers
// must cover every method the presenter can offer.
func New(sess *session.Manager, evaluator Evaluator, controllers []method.Controller, finisher Finisher, collector telemetry.Collector, presenter ui.Presenter, options ...Option) (*Orchestrator, error) {
	if sess == nil {
		return nil, errors.New("[New] session manager is required")
	}
	if evaluator == nil {
		return nil, errors.New("[New] evaluator is required")
	}
	if len(controllers) == 0 {
		return nil, errors.New("[New] at least one controller is required")
	}
	if finisher == nil {
		return nil, errors.New("[New] finisher is required")
	}
	if collector == nil {
		return nil, errors.New("[New] collector is required")
	}
	if presenter == nil {
		return nil, errors.New("[New] presenter is required")
	}

	byMethod := make(map[method.Method]method.Controller, len(controllers))
	for _, c := range controllers {
		if _, exists := byMethod[c.Method()]; exists {
			return nil, errors.Errorf("[New] duplicate controller for method %s", c.Method())
		}
		byMethod[c.Method()] = c
	}

	o := &Orchestrator{
		sess:        sess,
		evaluator:   evaluator,
		controllers: byMethod,
		finisher:    finisher,
		collector:   collector,
		presenter:   presenter,
		logger:      zerolog.Nop(),
		state:       StateInit,
		counts:      make(map[method.Method]int),
	}
	for _, opt := range options {
		opt(o)
	}
	return o, nil
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.state
}

// Attempts returns the attempt records accumulated so far.
func (o *Orchestrator) Attempts() []method.Attempt {
	o.lock.Lock()
	defer o.lock.Unlock()
	out := make([]method.Attempt, len(o.attempts))
	copy(out, o.attempts)
	return out
}

// Start runs the trust check. A trusted verdict finalizes immediately;
// anything else, including a failed check, presents the method choices.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.transition(StateInit, StateTrustChecking); err != nil {
		return err
	}

	decision := o.evaluator.Evaluate(ctx)
	if decision.Trusted {
		o.logger.Info().Msg("device trusted, skipping method selection")
		return o.finalize(ctx)
	}

	o.setState(StateMethodSelection)
	o.presenter.ShowMethodSelection(o.sess.UpdateMode())
	return nil
}

// SelectMethod activates one verification method. Exactly one method is
// active at a time: a previously active controller is cancelled, releasing
// any held capability, before the new one starts.
func (o *Orchestrator) SelectMethod(ctx context.Context, m method.Method) error {
	o.lock.Lock()
	if o.state != StateMethodSelection && o.state != StateMethodActive {
		defer o.lock.Unlock()
		return o.invalidStateLocked("SelectMethod")
	}
	previous := o.active
	ctrl, ok := o.controllers[m]
	if !ok {
		o.lock.Unlock()
		return errors.Errorf("[Orchestrator.SelectMethod] no controller for method %s", m)
	}
	o.active = ctrl
	o.state = StateMethodActive
	o.lock.Unlock()

	if previous != nil && previous != ctrl {
		previous.Cancel()
	}

	o.presenter.ShowMethodActive(m)
	o.logger.Info().Str("method", m.String()).Msg("method activated")

	res, err := ctrl.Start(ctx)
	if err != nil {
		return errors.Wrap(err, "Orchestrator.SelectMethod Start")
	}
	return o.handleResult(ctx, ctrl, res)
}

// CancelMethod stops the active method and returns to method selection with
// the prior UI state restored.
func (o *Orchestrator) CancelMethod() error {
	o.lock.Lock()
	if o.state != StateMethodActive || o.active == nil {
		o.lock.Unlock()
		return acerrors.ErrNoActiveMethod
	}
	ctrl := o.active
	o.active = nil
	o.state = StateMethodSelection
	o.lock.Unlock()

	ctrl.Cancel()
	o.recordAttempt(ctrl.Method(), method.Result{Outcome: method.OutcomeSuspended, Err: acerrors.ErrMethodCancelled})
	o.presenter.ShowMethodSelection(o.sess.UpdateMode())
	o.logger.Info().Str("method", ctrl.Method().String()).Msg("method cancelled")
	return nil
}

// SubmitCode routes a completed six-digit entry to the active method.
func (o *Orchestrator) SubmitCode(ctx context.Context, code string) error {
	ctrl, err := o.activeController()
	if err != nil {
		return err
	}
	submitter, ok := ctrl.(method.CodeSubmitter)
	if !ok {
		return acerrors.Wrapf(acerrors.ErrUnsupported, "method %s does not accept codes", ctrl.Method())
	}

	res, err := submitter.SubmitCode(ctx, code)
	if err != nil {
		return errors.Wrap(err, "Orchestrator.SubmitCode")
	}
	return o.handleResult(ctx, ctrl, res)
}

// SubmitTrustedNumber routes a trusted-party number registration to the
// active method.
func (o *Orchestrator) SubmitTrustedNumber(ctx context.Context, number string) error {
	ctrl, err := o.activeController()
	if err != nil {
		return err
	}
	registrar, ok := ctrl.(method.NumberRegistrar)
	if !ok {
		return acerrors.Wrapf(acerrors.ErrUnsupported, "method %s does not accept numbers", ctrl.Method())
	}

	res, err := registrar.RegisterNumber(ctx, number)
	if err != nil {
		return errors.Wrap(err, "Orchestrator.SubmitTrustedNumber")
	}
	return o.handleResult(ctx, ctrl, res)
}

// Finish ends the session early but still delivers the outcome report. For
// hosts that close the flow before a method succeeds.
func (o *Orchestrator) Finish(ctx context.Context) error {
	o.lock.Lock()
	if o.state == StateDone {
		o.lock.Unlock()
		return acerrors.ErrSessionFinished
	}
	ctrl := o.active
	o.active = nil
	o.lock.Unlock()

	if ctrl != nil {
		ctrl.Cancel()
	}
	return o.finalize(ctx)
}

// Teardown cancels any active method and clears the session without
// reporting an outcome. For host pages that remove the surface mid-flow.
func (o *Orchestrator) Teardown() {
	o.lock.Lock()
	ctrl := o.active
	o.active = nil
	o.state = StateDone
	o.lock.Unlock()

	if ctrl != nil {
		ctrl.Cancel()
	}
	o.sess.Clear()
	o.presenter.Dismiss()
}

// handleResult applies a controller's result. A result from a controller
// that is no longer active is stale: it belongs to a method that was
// cancelled or replaced while its Start was still unwinding, and must not
// touch the state the replacement already established.
func (o *Orchestrator) handleResult(ctx context.Context, ctrl method.Controller, res method.Result) error {
	o.lock.Lock()
	if o.active != ctrl {
		o.lock.Unlock()
		o.logger.Debug().Str("method", ctrl.Method().String()).Msg("dropping result from inactive method")
		return nil
	}
	o.counts[ctrl.Method()]++
	o.attempts = append(o.attempts, method.NewAttempt(ctrl.Method(), o.counts[ctrl.Method()], res))

	switch res.Outcome {
	case method.OutcomePending:
		// Method stays active awaiting input.
		o.lock.Unlock()
		return nil

	case method.OutcomeSuccess:
		o.lock.Unlock()
		o.presenter.ShowResult("Identity successfully verified. Press continue to proceed")
		return o.finalize(ctx)

	case method.OutcomeSuspended:
		o.active = nil
		o.state = StateMethodSelection
		o.lock.Unlock()
		o.presenter.ShowMethodSelection(o.sess.UpdateMode())
		return nil

	case method.OutcomeFallback:
		o.lock.Unlock()
		o.logger.Info().
			Str("from", ctrl.Method().String()).
			Str("to", res.Fallback.String()).
			Msg("routing to fallback method")
		return o.SelectMethod(ctx, res.Fallback)

	default:
		o.lock.Unlock()
		return errors.Errorf("Orchestrator.handleResult unknown outcome %d", res.Outcome)
	}
}

// finalize reports the telemetry bundle and outcome, then terminates the
// session. The report is best-effort: a failed call is logged and never
// blocks the transition to done.
func (o *Orchestrator) finalize(ctx context.Context) error {
	o.setState(StateFinalizing)

	snapshot := o.collector.Snapshot()
	_, err := o.finisher.FinishSession(ctx, api.FinishRequest{
		ACID:      o.sess.SubjectID(),
		SessionID: o.sess.SessionID(),
		Token:     o.sess.AuthToken(),
		Events:    snapshot.Events,
	})
	if err != nil {
		o.logger.Warn().Err(err).Msg("outcome report failed")
	}

	o.lock.Lock()
	o.active = nil
	o.state = StateDone
	o.lock.Unlock()

	o.presenter.Dismiss()
	o.logger.Info().Msg("session finished")
	return nil
}

func (o *Orchestrator) activeController() (method.Controller, error) {
	o.lock.Lock()
	defer o.lock.Unlock()
	if o.state != StateMethodActive || o.active == nil {
		return nil, acerrors.ErrNoActiveMethod
	}
	return o.active, nil
}

func (o *Orchestrator) recordAttempt(m method.Method, res method.Result) {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.counts[m]++
	o.attempts = append(o.attempts, method.NewAttempt(m, o.counts[m], res))
}

func (o *Orchestrator) setState(s State) {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.state = s
}

func (o *Orchestrator) transition(from, to State) error {
	o.lock.Lock()
	defer o.lock.Unlock()
	if o.state == StateDone {
		return acerrors.ErrSessionFinished
	}
	if o.state != from {
		return errors.Errorf("[Orchestrator] invalid transition %s -> %s from %s", from, to, o.state)
	}
	o.state = to
	return nil
}

func (o *Orchestrator) invalidStateLocked(op string) error {
	if o.state == StateDone {
		return acerrors.ErrSessionFinished
	}
	return errors.Errorf("[Orchestrator.%s] not selectable in state %s", op, o.state)
}
