// Package challenge memoizes server-issued passkey challenges. Challenges
// may be single-use nonces tied to their first issuance, so a retry after a
// failed local crypto operation must reuse the cached value instead of
// asking the backend for a fresh one.
package challenge

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/cloudspacetechs/acidcheck/api"
)

// Kind distinguishes the two passkey challenge flavors.
type Kind int

const (
	// Registration challenges come from /generate-challenge (enrollment).
	Registration Kind = iota
	// Assertion challenges come from /generate-login.
	Assertion
)

func (k Kind) String() string {
	switch k {
	case Registration:
		return "registration"
	case Assertion:
		return "assertion"
	default:
		return "unknown"
	}
}

// Challenge is one cached server challenge. Exactly one of Creation and
// Assertion is set, matching Kind.
type Challenge struct {
	Kind      Kind
	Creation  *api.CreationOptions
	Assertion *api.AssertionOptions
	IssuedAt  time.Time
}

// Issuer requests challenges from the backend. Satisfied by *api.Client.
type Issuer interface {
	GenerateRegistrationChallenge(ctx context.Context, acid string) (*api.CreationOptions, error)
	GenerateAssertionChallenge(ctx context.Context, acid string) (*api.AssertionOptions, error)
}

// Cache holds at most one in-flight challenge per kind for one session.
type Cache struct {
	issuer    Issuer
	subjectID string
	nowFunc   func() time.Time

	lock    sync.Mutex
	entries map[Kind]*Challenge
}

// CacheOption modifies a Cache instance.
type CacheOption func(*Cache)

// WithNowFunc sets the clock (primarily for testing).
func WithNowFunc(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.nowFunc = now
	}
}

// NewCache creates a per-session challenge cache for subjectID.
func NewCache(issuer Issuer, subjectID string, options ...CacheOption) (*Cache, error) {
	if issuer == nil {
		return nil, errors.New("[NewCache] issuer is required")
	}
	if subjectID == "" {
		return nil, errors.New("[NewCache] subjectID is required")
	}

	c := &Cache{
		issuer:    issuer,
		subjectID: subjectID,
		nowFunc:   time.Now,
		entries:   make(map[Kind]*Challenge),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Get returns the cached challenge for kind, issuing one from the backend
// on first use. Subsequent calls within the session return the identical
// cached value and never hit the network again.
func (c *Cache) Get(ctx context.Context, kind Kind) (*Challenge, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if cached, ok := c.entries[kind]; ok {
		return cached, nil
	}

	entry := &Challenge{Kind: kind, IssuedAt: c.nowFunc()}
	switch kind {
	case Registration:
		opts, err := c.issuer.GenerateRegistrationChallenge(ctx, c.subjectID)
		if err != nil {
			return nil, errors.Wrap(err, "Cache.Get registration")
		}
		entry.Creation = opts
	case Assertion:
		opts, err := c.issuer.GenerateAssertionChallenge(ctx, c.subjectID)
		if err != nil {
			return nil, errors.Wrap(err, "Cache.Get assertion")
		}
		entry.Assertion = opts
	default:
		return nil, errors.Errorf("Cache.Get unknown kind %d", kind)
	}

	c.entries[kind] = entry
	return entry, nil
}
