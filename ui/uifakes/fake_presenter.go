package uifakes

import (
	"sync"

	"github.com/cloudspacetechs/acidcheck/method"
	"github.com/cloudspacetechs/acidcheck/ui"
)

var _ ui.Presenter = (*Recorder)(nil)

// Call is one recorded presenter invocation.
type Call struct {
	Op      string
	Method  method.Method
	Text    string
	Update  bool
	DataURL string
}

// Recorder captures every presenter call for assertions.
type Recorder struct {
	lock  sync.Mutex
	calls []Call
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) record(c Call) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.calls = append(r.calls, c)
}

func (r *Recorder) ShowMethodSelection(updateMode bool) {
	r.record(Call{Op: "method-selection", Update: updateMode})
}

func (r *Recorder) ShowMethodActive(m method.Method) {
	r.record(Call{Op: "method-active", Method: m})
}

func (r *Recorder) ShowCodePrompt(m method.Method, message string) {
	r.record(Call{Op: "code-prompt", Method: m, Text: message})
}

func (r *Recorder) ShowNumberPrompt(message string) {
	r.record(Call{Op: "number-prompt", Text: message})
}

func (r *Recorder) ShowProvisioningQR(dataURL string) {
	r.record(Call{Op: "provisioning-qr", DataURL: dataURL})
}

func (r *Recorder) ShowResult(message string) {
	r.record(Call{Op: "result", Text: message})
}

func (r *Recorder) ShowError(m method.Method, text string) {
	r.record(Call{Op: "error", Method: m, Text: text})
}

func (r *Recorder) Dismiss() {
	r.record(Call{Op: "dismiss"})
}

// Calls returns a copy of everything recorded so far.
func (r *Recorder) Calls() []Call {
	r.lock.Lock()
	defer r.lock.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallsFor filters recorded calls by op name.
func (r *Recorder) CallsFor(op string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// LastError returns the most recent error text shown, or "".
func (r *Recorder) LastError() string {
	errCalls := r.CallsFor("error")
	if len(errCalls) == 0 {
		return ""
	}
	return errCalls[len(errCalls)-1].Text
}
