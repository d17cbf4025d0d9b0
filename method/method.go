// Package method defines the verification methods and the controller
// contract each one implements.
package method

import (
	"context"

	"github.com/google/uuid"
)

// Method identifies one verification factor.
type Method int

const (
	// Passkey uses a platform-backed public-key credential.
	Passkey Method = iota
	// Face performs a liveness capture burst against the camera.
	Face
	// TOTP accepts a time-based one-time passcode.
	TOTP
	// TrustedParty verifies a code dispatched to an out-of-band contact.
	TrustedParty
)

func (m Method) String() string {
	switch m {
	case Passkey:
		return "passkey"
	case Face:
		return "face"
	case TOTP:
		return "totp"
	case TrustedParty:
		return "trusted-party"
	default:
		return "unknown"
	}
}

// Outcome classifies how a controller invocation ended.
type Outcome int

const (
	// OutcomePending means the method stays active awaiting further input
	// (a code entry or number registration).
	OutcomePending Outcome = iota
	// OutcomeSuccess means the protocol completed and tokens are persisted.
	OutcomeSuccess
	// OutcomeSuspended means the method failed or was cancelled; the user
	// returns to method selection.
	OutcomeSuspended
	// OutcomeFallback routes the user to an alternate method because a
	// required capability is unavailable.
	OutcomeFallback
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeSuccess:
		return "success"
	case OutcomeSuspended:
		return "suspended"
	case OutcomeFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Result is what a controller reports back to the orchestrator.
type Result struct {
	Outcome Outcome
	// Fallback names the alternate method when Outcome is OutcomeFallback.
	Fallback Method
	// ErrorText is server-provided text meant for the user, surfaced
	// verbatim near the relevant input.
	ErrorText string
	// Err carries the failure for logging and classification.
	Err error
}

// Attempt is a transient record of one controller invocation.
type Attempt struct {
	ID            string
	Method        Method
	AttemptNumber int
	Outcome       Outcome
	ErrorDetail   string
}

// NewAttempt builds an attempt record with a fresh identifier.
func NewAttempt(m Method, number int, res Result) Attempt {
	detail := res.ErrorText
	if detail == "" && res.Err != nil {
		detail = res.Err.Error()
	}
	return Attempt{
		ID:            uuid.New().String(),
		Method:        m,
		AttemptNumber: number,
		Outcome:       res.Outcome,
		ErrorDetail:   detail,
	}
}

// Controller drives one verification protocol. Exactly one controller is
// active at a time; the orchestrator cancels the previous one before
// starting the next.
type Controller interface {
	Method() Method
	// Start runs the protocol as far as it can without user input.
	Start(ctx context.Context) (Result, error)
	// Cancel invalidates pending work and releases held capabilities. It
	// must be safe to call at any point, including after completion.
	Cancel()
}

// CodeSubmitter is implemented by controllers that accept a six-digit code.
type CodeSubmitter interface {
	SubmitCode(ctx context.Context, code string) (Result, error)
}

// NumberRegistrar is implemented by controllers that enroll a trusted-party
// number.
type NumberRegistrar interface {
	RegisterNumber(ctx context.Context, number string) (Result, error)
}
