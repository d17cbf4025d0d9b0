// Package face drives the camera liveness protocol: a warm-up delay, a
// fixed burst of frames, classification by the backend, and a bounded retry
// loop.
package face

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/cloudspacetechs/acidcheck/api"
	"github.com/cloudspacetechs/acidcheck/capability"
	"github.com/cloudspacetechs/acidcheck/devicetrust"
	acerrors "github.com/cloudspacetechs/acidcheck/internal/errors"
	"github.com/cloudspacetechs/acidcheck/method"
	"github.com/cloudspacetechs/acidcheck/session"
	"github.com/cloudspacetechs/acidcheck/ui"
)

const (
	defaultWarmUp        = 1500 * time.Millisecond
	defaultFrameInterval = 150 * time.Millisecond
	defaultRetryBackoff  = 500 * time.Millisecond
	defaultFrameCount    = 8
	defaultMaxRetries    = 2
)

// Uploader is the slice of the backend client the controller needs.
type Uploader interface {
	UploadFaceBurst(ctx context.Context, frames [][]byte, fields map[string]string) (*api.UploadResponse, error)
}

// Controller captures frame bursts and submits them for liveness
// classification. The camera is released on every exit path: success,
// exhaustion, and cancel.
type Controller struct {
	uploader  Uploader
	camera    capability.Camera
	sess      *session.Manager
	store     devicetrust.Store
	presenter ui.Presenter
	logger    zerolog.Logger

	warmUp        time.Duration
	frameInterval time.Duration
	retryBackoff  time.Duration
	frameCount    int
	maxRetries    uint64

	lock       sync.Mutex
	activeFeed capability.Feed
	cancelRun  context.CancelFunc
}

// ControllerOption modifies a Controller instance.
type ControllerOption func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(logger zerolog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithTiming overrides the warm-up, inter-frame, and retry delays
// (primarily for testing).
func WithTiming(warmUp, frameInterval, retryBackoff time.Duration) ControllerOption {
	return func(c *Controller) {
		c.warmUp = warmUp
		c.frameInterval = frameInterval
		c.retryBackoff = retryBackoff
	}
}

// WithBurst overrides the burst shape and retry budget.
func WithBurst(frameCount int, maxRetries uint64) ControllerOption {
	return func(c *Controller) {
		c.frameCount = frameCount
		c.maxRetries = maxRetries
	}
}

// NewController creates a face-liveness controller.
func NewController(uploader Uploader, camera capability.Camera, sess *session.Manager, store devicetrust.Store, presenter ui.Presenter, options ...ControllerOption) (*Controller, error) {
	if uploader == nil {
		return nil, errors.New("[NewController] uploader is required")
	}
	if camera == nil {
		return nil, errors.New("[NewController] camera is required")
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
		uploader:      uploader,
		camera:        camera,
		sess:          sess,
		store:         store,
		presenter:     presenter,
		logger:        zerolog.Nop(),
		warmUp:        defaultWarmUp,
		frameInterval: defaultFrameInterval,
		retryBackoff:  defaultRetryBackoff,
		frameCount:    defaultFrameCount,
		maxRetries:    defaultMaxRetries,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

func (c *Controller) Method() method.Method {
	return method.Face
}

// Start probes the camera, then runs capture bursts until the backend
// reports a liveness signal or the retry budget runs out. The attempt
// counter starts fresh on every call.
func (c *Controller) Start(ctx context.Context) (method.Result, error) {
	if err := c.camera.Probe(ctx); err != nil {
		// No camera is not an error condition: route to the out-of-band
		// fallback method instead.
		c.logger.Info().Err(err).Msg("camera probe failed, falling back to trusted party")
		return method.Result{
			Outcome:  method.OutcomeFallback,
			Fallback: method.TrustedParty,
			Err:      acerrors.Wrapf(acerrors.ErrCameraUnavailable, "probe: %v", err),
		}, nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	feed, err := c.camera.Open(runCtx)
	if err != nil {
		return c.suspend(acerrors.Wrapf(acerrors.ErrCameraUnavailable, "open: %v", err), "could not start the camera")
	}

	c.lock.Lock()
	c.activeFeed = feed
	c.cancelRun = cancel
	c.lock.Unlock()
	defer c.releaseFeed()

	if err := sleepCtx(runCtx, c.warmUp); err != nil {
		return c.suspend(acerrors.ErrMethodCancelled, "")
	}

	attempt := 0
	operation := func() error {
		attempt++
		return c.captureAndClassify(runCtx, attempt)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryBackoff), c.maxRetries),
		runCtx,
	)

	if err := backoff.Retry(operation, policy); err != nil {
		if runCtx.Err() != nil || acerrors.Is(err, acerrors.ErrMethodCancelled) {
			return method.Result{Outcome: method.OutcomeSuspended, Err: acerrors.ErrMethodCancelled}, nil
		}
		exhausted := acerrors.Wrapf(acerrors.ErrRetryExhausted, "after %d attempts: %v", attempt, err)
		return c.suspend(exhausted, "face verification did not succeed, please try another method")
	}

	c.logger.Info().Int("attempts", attempt).Msg("liveness confirmed")
	return method.Result{Outcome: method.OutcomeSuccess}, nil
}

// Cancel aborts any in-flight capture or timer and releases the camera
// synchronously.
func (c *Controller) Cancel() {
	c.lock.Lock()
	cancel := c.cancelRun
	c.cancelRun = nil
	c.lock.Unlock()

	if cancel != nil {
		cancel()
	}
	c.releaseFeed()
}

// captureAndClassify runs one full burst. Frames are captured in strict
// sequence order; the upload never starts on a partial burst.
func (c *Controller) captureAndClassify(ctx context.Context, attempt int) error {
	feed := c.activeFeedRef()
	if feed == nil {
		return backoff.Permanent(acerrors.ErrMethodCancelled)
	}

	frames := make([][]byte, 0, c.frameCount)
	for i := 0; i < c.frameCount; i++ {
		frame, err := feed.Capture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(acerrors.ErrMethodCancelled)
			}
			return errors.Wrapf(err, "Controller.captureAndClassify frame %d", i)
		}
		frames = append(frames, frame)

		if i < c.frameCount-1 {
			if err := sleepCtx(ctx, c.frameInterval); err != nil {
				return backoff.Permanent(acerrors.ErrMethodCancelled)
			}
		}
	}

	fields := map[string]string{
		"acid":     c.sess.SubjectID(),
		"loginAID": c.sess.SessionID(),
	}
	if c.sess.UpdateMode() {
		fields["updateToken"] = c.sess.AuthToken()
	}

	resp, err := c.uploader.UploadFaceBurst(ctx, frames, fields)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(acerrors.ErrMethodCancelled)
		}
		c.logger.Warn().Err(err).Int("attempt", attempt).Msg("burst upload failed")
		return errors.Wrap(err, "Controller.captureAndClassify upload")
	}

	if resp.Result.Error != "" {
		c.logger.Warn().Str("error", resp.Result.Error).Int("attempt", attempt).Msg("classification error")
		return errors.Errorf("classification error: %s", resp.Result.Error)
	}
	if resp.Result.CountSurprised <= 0 {
		c.logger.Debug().Int("attempt", attempt).Msg("no liveness signal")
		return errors.New("no liveness signal")
	}

	c.sess.SetAuthToken(resp.LoginToken)
	if err := c.store.Save(ctx, resp.DeviceToken); err != nil {
		c.logger.Warn().Err(err).Msg("device trust token save failed")
	}
	return nil
}

func (c *Controller) activeFeedRef() capability.Feed {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.activeFeed
}

func (c *Controller) releaseFeed() {
	c.lock.Lock()
	feed := c.activeFeed
	c.activeFeed = nil
	c.lock.Unlock()

	if feed != nil {
		if err := feed.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("camera release failed")
		}
	}
}

func (c *Controller) suspend(err error, text string) (method.Result, error) {
	c.logger.Warn().Err(err).Str("method", c.Method().String()).Msg("face verification suspended")
	if text != "" {
		c.presenter.ShowError(c.Method(), text)
	}
	return method.Result{Outcome: method.OutcomeSuspended, ErrorText: text, Err: err}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
