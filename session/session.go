// Package session owns the per-verification session identifier and bearer
// token lifecycle.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/cloudspacetechs/acidcheck/internal/utils"
)

// Introspection reports what the manager can tell about the bearer token it
// holds. The token is opaque to the client; when it happens to be a JWT the
// claims are decoded without signature verification, purely so embedders can
// notice a stale token before presenting it.
type Introspection struct {
	Active  bool
	Subject string
	Exp     *int64
	Iat     *int64
}

// Manager holds the mutable session state for one verification run. Only
// the trust evaluator and method controllers mutate it; the orchestrator
// clears it on teardown.
type Manager struct {
	lock       sync.RWMutex
	subjectID  string
	sessionID  string
	authToken  string
	updateMode bool
	nowFunc    func() time.Time
}

// ManagerOption modifies a Manager instance.
type ManagerOption func(*Manager)

// WithNowFunc sets the clock (primarily for testing).
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// WithUpdateMode marks the session as an enrollment/update run: method
// success updates stored credentials rather than unlocking a resource.
func WithUpdateMode() ManagerOption {
	return func(m *Manager) {
		m.updateMode = true
	}
}

// NewManager creates a session for the given subject.
func NewManager(subjectID string, options ...ManagerOption) (*Manager, error) {
	if strings.TrimSpace(subjectID) == "" {
		return nil, errors.New("[NewManager] subjectID is required")
	}

	m := &Manager{
		subjectID: subjectID,
		nowFunc:   time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

func (m *Manager) SubjectID() string {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.subjectID
}

func (m *Manager) UpdateMode() bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.updateMode
}

// SessionID returns the server-issued session identifier, or "" before the
// trust check assigns one.
func (m *Manager) SessionID() string {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.sessionID
}

// SetSessionID stores the server-issued identifier. Empty values are
// ignored so a later response without one cannot unset it.
func (m *Manager) SetSessionID(id string) {
	if id == "" {
		return
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	m.sessionID = id
}

// AuthToken returns the bearer credential, or "" before any method
// succeeds.
func (m *Manager) AuthToken() string {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.authToken
}

// SetAuthToken stores the bearer credential. Empty values are ignored.
func (m *Manager) SetAuthToken(token string) {
	if token == "" {
		return
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	m.authToken = token
}

// Clear wipes all per-session state. The manager must not be reused after
// a clear without constructing a fresh one.
func (m *Manager) Clear() {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.sessionID = ""
	m.authToken = ""
}

// Introspect decodes the held bearer token's claims when it is a JWT. The
// signature is not verified; Active only reflects the exp claim against the
// manager's clock. Opaque non-JWT tokens introspect as active.
func (m *Manager) Introspect() (*Introspection, error) {
	m.lock.RLock()
	token := m.authToken
	now := m.nowFunc
	m.lock.RUnlock()

	if strings.TrimSpace(token) == "" {
		return &Introspection{Active: false}, nil
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		// Not a JWT. Treat the opaque token as usable.
		return &Introspection{Active: true}, nil
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return &Introspection{Active: false}, errors.New("error extracting claims")
	}

	sub, _ := claims["sub"].(string)
	iat, _ := claims["iat"].(float64)
	exp, _ := claims["exp"].(float64)

	out := &Introspection{
		Active:  true,
		Subject: sub,
		Exp:     utils.Ptr(int64(exp)),
		Iat:     utils.Ptr(int64(iat)),
	}
	if utils.Value(out.Exp) > 0 && now().Unix() > utils.Value(out.Exp) {
		out.Active = false
	}
	return out, nil
}
