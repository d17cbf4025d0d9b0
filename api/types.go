package api

import (
	"encoding/json"

	"github.com/go-webauthn/webauthn/protocol"
)

// Position is a best-effort device location. Latitude and longitude are
// strings on the wire because the backend accepts the sentinel "unknown"
// when geolocation is denied or absent.
type Position struct {
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

// IdentityRequest is the trust-check payload sent to POST /identity.
type IdentityRequest struct {
	Data            json.RawMessage `json:"data"`
	ACID            string          `json:"acid"`
	Token           string          `json:"token,omitempty"`
	Position        Position        `json:"position"`
	InjectedLinks   []string        `json:"injectedLinks"`
	InjectedScripts []string        `json:"injectedScripts"`
}

// IdentityResponse is the trust-check verdict. Challenge == 0 means the
// device is fully trusted and no further method is required.
type IdentityResponse struct {
	Challenge        int    `json:"challenge"`
	LoginToken       string `json:"loginToken,omitempty"`
	DeviceToken      string `json:"deviceToken,omitempty"`
	LoginAID         string `json:"loginAID,omitempty"`
	UserFaceCaptured bool   `json:"userFaceCaptured,omitempty"`
	WebAuthnCaptured bool   `json:"webAuthnCaptured,omitempty"`
	TOTPCaptured     bool   `json:"totpCaptured,omitempty"`
}

// ChallengeRequest asks the backend to issue a passkey challenge.
type ChallengeRequest struct {
	ACID string `json:"acid"`
}

// RegisterCredentialRequest carries a serialized credential-creation result
// to POST /credentials/register. Payload is the credential in the wire's
// base64url JSON form, exactly as the authenticator capability produced it.
type RegisterCredentialRequest struct {
	ACID              string          `json:"acid"`
	Payload           json.RawMessage `json:"payload"`
	AuthenticatorData string          `json:"authenticatorData,omitempty"`
}

// VerifyCredentialRequest carries a serialized assertion result to
// POST /credentials/verify.
type VerifyCredentialRequest struct {
	ACID     string          `json:"acid"`
	Payload  json.RawMessage `json:"payload"`
	LoginAID string          `json:"loginAID,omitempty"`
}

// CredentialResponse is returned by the two passkey endpoints. A non-empty
// Message signals acceptance.
type CredentialResponse struct {
	Message     string `json:"message,omitempty"`
	LoginToken  string `json:"loginToken,omitempty"`
	DeviceToken string `json:"deviceToken,omitempty"`
}

// CreationOptions aliases the WebAuthn credential-creation options. The
// protocol types decode the wire's base64url challenge into raw bytes on
// unmarshal.
type CreationOptions = protocol.PublicKeyCredentialCreationOptions

// AssertionOptions aliases the WebAuthn credential-request options.
type AssertionOptions = protocol.PublicKeyCredentialRequestOptions

// ClassificationResult is the inner result object of the face-upload
// response. CountSurprised > 0 is the liveness success signal.
type ClassificationResult struct {
	Error          string `json:"error,omitempty"`
	CountSurprised int    `json:"countSurprised"`
}

// UploadResponse is returned by POST /upload.
type UploadResponse struct {
	Result      ClassificationResult `json:"result"`
	LoginToken  string               `json:"loginToken,omitempty"`
	DeviceToken string               `json:"deviceToken,omitempty"`
}

// TOTPProvisioning is returned by GET /generate-totp during enrollment.
type TOTPProvisioning struct {
	QRCodeDataURL string `json:"qrCodeDataURL"`
	Secret        string `json:"secret,omitempty"`
}

// VerifyCodeRequest carries a six-digit code to the TOTP or TPN verify
// endpoint.
type VerifyCodeRequest struct {
	ACID        string `json:"acid"`
	OTP         string `json:"otp"`
	DeviceToken string `json:"deviceToken,omitempty"`
	LoginAID    string `json:"loginAID,omitempty"`
}

// SendCodeRequest triggers an out-of-band code dispatch.
type SendCodeRequest struct {
	ACID        string `json:"acid"`
	DeviceToken string `json:"deviceToken,omitempty"`
	LoginAID    string `json:"loginAID,omitempty"`
}

// RegisterTPNRequest enrolls a trusted-party phone number.
type RegisterTPNRequest struct {
	ACID string `json:"acid"`
	TPN  string `json:"tpn"`
}

// CodeResponse is the shared response shape of the code endpoints. When
// Success is false, Error holds server-provided text meant for the user.
type CodeResponse struct {
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
	Message     string `json:"message,omitempty"`
	LoginToken  string `json:"loginToken,omitempty"`
	DeviceToken string `json:"deviceToken,omitempty"`
}

// FinishRequest reports the session outcome and the recorded interaction
// events to POST /sessions/finish.
type FinishRequest struct {
	ACID      string          `json:"acid"`
	SessionID string          `json:"session_id,omitempty"`
	Token     string          `json:"token,omitempty"`
	Events    json.RawMessage `json:"events,omitempty"`
}

// FinishResponse acknowledges the outcome report.
type FinishResponse struct {
	Message string `json:"message,omitempty"`
}
