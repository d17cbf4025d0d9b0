package capfakes

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/cloudspacetechs/acidcheck/api"
	"github.com/cloudspacetechs/acidcheck/capability"
)

var _ capability.Authenticator = (*FakeAuthenticator)(nil)

// FakeAuthenticator records the options it receives and returns canned
// credentials.
type FakeAuthenticator struct {
	CreateErr error
	GetErr    error
	Cred      *capability.Credential

	lock        sync.Mutex
	createOpts  []api.CreationOptions
	assertOpts  []api.AssertionOptions
	createCalls int
	getCalls    int
}

func NewFakeAuthenticator() *FakeAuthenticator {
	return &FakeAuthenticator{
		Cred: &capability.Credential{
			Payload:           json.RawMessage(`{"id":"fake-cred","type":"public-key"}`),
			AuthenticatorData: "ZmFrZS1hdXRoLWRhdGE",
		},
	}
}

func (fa *FakeAuthenticator) Create(_ context.Context, opts api.CreationOptions) (*capability.Credential, error) {
	fa.lock.Lock()
	defer fa.lock.Unlock()
	fa.createCalls++
	fa.createOpts = append(fa.createOpts, opts)
	if fa.CreateErr != nil {
		return nil, fa.CreateErr
	}
	return fa.Cred, nil
}

func (fa *FakeAuthenticator) Get(_ context.Context, opts api.AssertionOptions) (*capability.Credential, error) {
	fa.lock.Lock()
	defer fa.lock.Unlock()
	fa.getCalls++
	fa.assertOpts = append(fa.assertOpts, opts)
	if fa.GetErr != nil {
		return nil, fa.GetErr
	}
	return fa.Cred, nil
}

func (fa *FakeAuthenticator) CreateCalls() int {
	fa.lock.Lock()
	defer fa.lock.Unlock()
	return fa.createCalls
}

func (fa *FakeAuthenticator) GetCalls() int {
	fa.lock.Lock()
	defer fa.lock.Unlock()
	return fa.getCalls
}

// LastCreateOptions returns the most recent creation options, or nil.
func (fa *FakeAuthenticator) LastCreateOptions() *api.CreationOptions {
	fa.lock.Lock()
	defer fa.lock.Unlock()
	if len(fa.createOpts) == 0 {
		return nil
	}
	return &fa.createOpts[len(fa.createOpts)-1]
}

// LastAssertOptions returns the most recent assertion options, or nil.
func (fa *FakeAuthenticator) LastAssertOptions() *api.AssertionOptions {
	fa.lock.Lock()
	defer fa.lock.Unlock()
	if len(fa.assertOpts) == 0 {
		return nil
	}
	return &fa.assertOpts[len(fa.assertOpts)-1]
}
