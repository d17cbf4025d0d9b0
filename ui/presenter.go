// Package ui is the boundary with the presentation surface. The core never
// renders; it tells the presenter what to show and the presenter calls back
// into the orchestrator on user action.
package ui

import "github.com/cloudspacetechs/acidcheck/method"

// Presenter receives display instructions from the core. Implementations
// must not block; they schedule rendering and return.
type Presenter interface {
	// ShowMethodSelection presents the method choices. updateMode switches
	// the copy between login and credential-update flows.
	ShowMethodSelection(updateMode bool)
	// ShowMethodActive activates the panel for one method.
	ShowMethodActive(m method.Method)
	// ShowCodePrompt reveals the six-digit entry for m. message names the
	// code destination (masked where applicable).
	ShowCodePrompt(m method.Method, message string)
	// ShowNumberPrompt reveals the trusted-party number input.
	ShowNumberPrompt(message string)
	// ShowProvisioningQR displays an authenticator-app provisioning image.
	ShowProvisioningQR(dataURL string)
	// ShowResult displays a success panel.
	ShowResult(message string)
	// ShowError surfaces error text near m's input, verbatim.
	ShowError(m method.Method, text string)
	// Dismiss tears the surface down once the session finishes.
	Dismiss()
}
