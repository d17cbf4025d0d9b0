// Package api implements the HTTP client for the verification backend. All
// endpoints exchange JSON except the face-liveness upload, which is
// multipart form data.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	acerrors "github.com/cloudspacetechs/acidcheck/internal/errors"
)

const defaultTimeout = 30 * time.Second

// Client talks to the verification backend. It is safe for use by a single
// verification session; the orchestrator serializes all calls.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// ClientOption modifies a Client instance.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client (primarily for testing).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout bounds every backend call. The original widget waited on the
// network indefinitely; a stalled backend should suspend the method, not the
// whole page.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// NewClient creates a backend client rooted at baseURL.
func NewClient(baseURL string, options ...ClientOption) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("[NewClient] baseURL is required")
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     zerolog.Nop(),
	}

	for _, opt := range options {
		opt(c)
	}

	return c, nil
}

// CheckIdentity performs the initial trust check.
func (c *Client) CheckIdentity(ctx context.Context, req IdentityRequest) (*IdentityResponse, error) {
	var resp IdentityResponse
	if err := c.postJSON(ctx, "/identity", req, &resp); err != nil {
		return nil, errors.Wrap(err, "Client.CheckIdentity")
	}
	return &resp, nil
}

// GenerateRegistrationChallenge issues a passkey creation challenge. The
// returned options carry the challenge nonce and user handle already decoded
// from their base64url wire form.
func (c *Client) GenerateRegistrationChallenge(ctx context.Context, acid string) (*CreationOptions, error) {
	var opts CreationOptions
	if err := c.postJSON(ctx, "/generate-challenge", ChallengeRequest{ACID: acid}, &opts); err != nil {
		return nil, errors.Wrap(err, "Client.GenerateRegistrationChallenge")
	}
	return &opts, nil
}

// GenerateAssertionChallenge issues a passkey login challenge.
func (c *Client) GenerateAssertionChallenge(ctx context.Context, acid string) (*AssertionOptions, error) {
	var opts AssertionOptions
	if err := c.postJSON(ctx, "/generate-login", ChallengeRequest{ACID: acid}, &opts); err != nil {
		return nil, errors.Wrap(err, "Client.GenerateAssertionChallenge")
	}
	return &opts, nil
}

// RegisterCredential submits a created credential for storage.
func (c *Client) RegisterCredential(ctx context.Context, req RegisterCredentialRequest) (*CredentialResponse, error) {
	var resp CredentialResponse
	if err := c.postJSON(ctx, "/credentials/register", req, &resp); err != nil {
		return nil, errors.Wrap(err, "Client.RegisterCredential")
	}
	return &resp, nil
}

// VerifyCredential submits an assertion for verification.
func (c *Client) VerifyCredential(ctx context.Context, req VerifyCredentialRequest) (*CredentialResponse, error) {
	var resp CredentialResponse
	if err := c.postJSON(ctx, "/credentials/verify", req, &resp); err != nil {
		return nil, errors.Wrap(err, "Client.VerifyCredential")
	}
	return &resp, nil
}

// UploadFaceBurst sends a complete burst of JPEG frames to the
// classification endpoint. Frames are appended in capture order under the
// "images" field; fields carries acid/loginAID/updateToken values.
func (c *Client) UploadFaceBurst(ctx context.Context, frames [][]byte, fields map[string]string) (*UploadResponse, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for i, frame := range frames {
		part, err := writer.CreateFormFile("images", fmt.Sprintf("image_%d.jpg", i))
		if err != nil {
			return nil, errors.Wrap(err, "Client.UploadFaceBurst CreateFormFile")
		}
		if _, err := part.Write(frame); err != nil {
			return nil, errors.Wrap(err, "Client.UploadFaceBurst Write")
		}
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, errors.Wrap(err, "Client.UploadFaceBurst WriteField")
		}
	}
	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(err, "Client.UploadFaceBurst Close")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", body)
	if err != nil {
		return nil, errors.Wrap(err, "Client.UploadFaceBurst NewRequest")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var resp UploadResponse
	if err := c.do(req, &resp); err != nil {
		return nil, errors.Wrap(err, "Client.UploadFaceBurst")
	}
	return &resp, nil
}

// GenerateTOTP fetches a provisioning payload for authenticator-app
// enrollment.
func (c *Client) GenerateTOTP(ctx context.Context, acid string) (*TOTPProvisioning, error) {
	query := url.Values{"acid": {acid}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/generate-totp?"+query.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "Client.GenerateTOTP NewRequest")
	}
	req.Header.Set("Content-Type", "application/json")

	var resp TOTPProvisioning
	if err := c.do(req, &resp); err != nil {
		return nil, errors.Wrap(err, "Client.GenerateTOTP")
	}
	return &resp, nil
}

// VerifyTOTP checks a six-digit authenticator code.
func (c *Client) VerifyTOTP(ctx context.Context, req VerifyCodeRequest) (*CodeResponse, error) {
	var resp CodeResponse
	if err := c.postJSON(ctx, "/verify-totp", req, &resp); err != nil {
		return nil, errors.Wrap(err, "Client.VerifyTOTP")
	}
	return &resp, nil
}

// SendCode dispatches a one-time code to the registered trusted party.
func (c *Client) SendCode(ctx context.Context, req SendCodeRequest) (*CodeResponse, error) {
	var resp CodeResponse
	if err := c.postJSON(ctx, "/send-totp", req, &resp); err != nil {
		return nil, errors.Wrap(err, "Client.SendCode")
	}
	return &resp, nil
}

// RegisterTPN enrolls a trusted-party phone number.
func (c *Client) RegisterTPN(ctx context.Context, req RegisterTPNRequest) (*CodeResponse, error) {
	var resp CodeResponse
	if err := c.postJSON(ctx, "/register-tpn", req, &resp); err != nil {
		return nil, errors.Wrap(err, "Client.RegisterTPN")
	}
	return &resp, nil
}

// VerifyTPN checks a six-digit trusted-party code.
func (c *Client) VerifyTPN(ctx context.Context, req VerifyCodeRequest) (*CodeResponse, error) {
	var resp CodeResponse
	if err := c.postJSON(ctx, "/verify-tpn", req, &resp); err != nil {
		return nil, errors.Wrap(err, "Client.VerifyTPN")
	}
	return &resp, nil
}

// FinishSession reports the final telemetry bundle and session outcome.
func (c *Client) FinishSession(ctx context.Context, req FinishRequest) (*FinishResponse, error) {
	var resp FinishResponse
	if err := c.postJSON(ctx, "/sessions/finish", req, &resp); err != nil {
		return nil, errors.Wrap(err, "Client.FinishSession")
	}
	return &resp, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("path", req.URL.Path).Msg("backend request failed")
		return acerrors.Wrapf(acerrors.ErrBackendUnreachable, "%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("backend request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return acerrors.Wrapf(acerrors.ErrUnexpectedStatus, "%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
