package capfakes

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/cloudspacetechs/acidcheck/capability"
)

var _ capability.Camera = (*FakeCamera)(nil)

// FakeCamera tracks how many feeds are open so tests can assert the
// single-holder invariant and release-on-exit behavior.
type FakeCamera struct {
	ProbeErr error
	OpenErr  error
	FrameErr error
	Frame    []byte

	lock         sync.Mutex
	probeCalls   int
	openCalls    int
	activeFeeds  int
	captureCalls int
}

func NewFakeCamera() *FakeCamera {
	return &FakeCamera{Frame: []byte{0xff, 0xd8, 0xff, 0xe0}}
}

func (fc *FakeCamera) Probe(_ context.Context) error {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fc.probeCalls++
	return fc.ProbeErr
}

func (fc *FakeCamera) Open(_ context.Context) (capability.Feed, error) {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fc.openCalls++
	if fc.OpenErr != nil {
		return nil, fc.OpenErr
	}
	fc.activeFeeds++
	return &fakeFeed{camera: fc}, nil
}

func (fc *FakeCamera) ProbeCalls() int {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	return fc.probeCalls
}

func (fc *FakeCamera) OpenCalls() int {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	return fc.openCalls
}

// ActiveFeeds reports feeds opened but not yet closed.
func (fc *FakeCamera) ActiveFeeds() int {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	return fc.activeFeeds
}

func (fc *FakeCamera) CaptureCalls() int {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	return fc.captureCalls
}

type fakeFeed struct {
	camera *FakeCamera
	closed bool
	lock   sync.Mutex
}

func (ff *fakeFeed) Capture(_ context.Context) (capability.Frame, error) {
	ff.lock.Lock()
	if ff.closed {
		ff.lock.Unlock()
		return nil, errors.New("capture on closed feed")
	}
	ff.lock.Unlock()

	ff.camera.lock.Lock()
	defer ff.camera.lock.Unlock()
	ff.camera.captureCalls++
	if ff.camera.FrameErr != nil {
		return nil, ff.camera.FrameErr
	}
	return ff.camera.Frame, nil
}

func (ff *fakeFeed) Close() error {
	ff.lock.Lock()
	defer ff.lock.Unlock()
	if ff.closed {
		return nil
	}
	ff.closed = true

	ff.camera.lock.Lock()
	defer ff.camera.lock.Unlock()
	ff.camera.activeFeeds--
	return nil
}
