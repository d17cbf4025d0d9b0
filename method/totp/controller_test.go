package totp_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/cloudspacetechs/acidcheck/api"
	"github.com/cloudspacetechs/acidcheck/devicetrust"
	"github.com/cloudspacetechs/acidcheck/method"
	"github.com/cloudspacetechs/acidcheck/method/totp"
	"github.com/cloudspacetechs/acidcheck/session"
	"github.com/cloudspacetechs/acidcheck/ui/uifakes"
)

type fakeVerifier struct {
	provisioning *api.TOTPProvisioning
	generateErr  error
	verifyResp   *api.CodeResponse
	verifyErr    error
	lastVerify   api.VerifyCodeRequest
	verifyCalls  int
}

func (fv *fakeVerifier) GenerateTOTP(_ context.Context, _ string) (*api.TOTPProvisioning, error) {
	if fv.generateErr != nil {
		return nil, fv.generateErr
	}
	return fv.provisioning, nil
}

func (fv *fakeVerifier) VerifyTOTP(_ context.Context, req api.VerifyCodeRequest) (*api.CodeResponse, error) {
	fv.lastVerify = req
	fv.verifyCalls++
	if fv.verifyErr != nil {
		return nil, fv.verifyErr
	}
	return fv.verifyResp, nil
}

func newController(t *testing.T, verifier *fakeVerifier, updateMode bool) (*totp.Controller, *session.Manager, *devicetrust.InMemoryStore, *uifakes.Recorder) {
	t.Helper()

	var sessOptions []session.ManagerOption
	if updateMode {
		sessOptions = append(sessOptions, session.WithUpdateMode())
	}
	sess, err := session.NewManager("acid-1", sessOptions...)
	require.NoError(t, err)

	store := devicetrust.NewInMemoryStore()
	presenter := uifakes.NewRecorder()
	ctrl, err := totp.NewController(verifier, sess, store, presenter)
	require.NoError(t, err)
	return ctrl, sess, store, presenter
}

func TestController_Start(t *testing.T) {
	t.Run("login goes straight to the code prompt", func(t *testing.T) {
		ctrl, _, _, presenter := newController(t, &fakeVerifier{}, false)

		res, err := ctrl.Start(context.Background())
		require.NoError(t, err)

		require.Equal(t, method.OutcomePending, res.Outcome)
		require.Len(t, presenter.CallsFor("code-prompt"), 1)
		require.Empty(t, presenter.CallsFor("provisioning-qr"))
	})

	t.Run("enrollment displays the provisioning QR", func(t *testing.T) {
		verifier := &fakeVerifier{provisioning: &api.TOTPProvisioning{QRCodeDataURL: "data:image/png;base64,abc"}}
		ctrl, _, _, presenter := newController(t, verifier, true)

		res, err := ctrl.Start(context.Background())
		require.NoError(t, err)

		require.Equal(t, method.OutcomePending, res.Outcome)
		qr := presenter.CallsFor("provisioning-qr")
		require.Len(t, qr, 1)
		require.Equal(t, "data:image/png;base64,abc", qr[0].DataURL)
	})

	t.Run("provisioning failure suspends", func(t *testing.T) {
		verifier := &fakeVerifier{generateErr: errors.New("boom")}
		ctrl, _, _, _ := newController(t, verifier, true)

		res, err := ctrl.Start(context.Background())
		require.NoError(t, err)
		require.Equal(t, method.OutcomeSuspended, res.Outcome)
	})
}

func TestController_SubmitCode(t *testing.T) {
	t.Run("rejection surfaces the server text and permits resubmission", func(t *testing.T) {
		verifier := &fakeVerifier{verifyResp: &api.CodeResponse{Success: false, Error: "bad code"}}
		ctrl, sess, _, presenter := newController(t, verifier, false)

		res, err := ctrl.SubmitCode(context.Background(), "111111")
		require.NoError(t, err)

		require.Equal(t, method.OutcomePending, res.Outcome)
		require.Equal(t, "bad code", res.ErrorText)
		require.Equal(t, "bad code", presenter.LastError())
		require.Empty(t, sess.AuthToken())

		// Unlimited resubmission: a later correct code still succeeds.
		verifier.verifyResp = &api.CodeResponse{Success: true, LoginToken: "tok-otp"}
		res, err = ctrl.SubmitCode(context.Background(), "222222")
		require.NoError(t, err)
		require.Equal(t, method.OutcomeSuccess, res.Outcome)
		require.Equal(t, "tok-otp", sess.AuthToken())
		require.Equal(t, 2, verifier.verifyCalls)
	})

	t.Run("success persists both tokens", func(t *testing.T) {
		verifier := &fakeVerifier{verifyResp: &api.CodeResponse{
			Success:     true,
			LoginToken:  "tok-otp",
			DeviceToken: "dev-otp",
		}}
		ctrl, sess, store, _ := newController(t, verifier, false)

		res, err := ctrl.SubmitCode(context.Background(), "123456")
		require.NoError(t, err)

		require.Equal(t, method.OutcomeSuccess, res.Outcome)
		require.Equal(t, "tok-otp", sess.AuthToken())

		token, err := store.Token(context.Background())
		require.NoError(t, err)
		require.Equal(t, "dev-otp", token)
	})

	t.Run("sends the cached device token and session id", func(t *testing.T) {
		verifier := &fakeVerifier{verifyResp: &api.CodeResponse{Success: true}}
		ctrl, sess, store, _ := newController(t, verifier, false)
		require.NoError(t, store.Save(context.Background(), "dev-known"))
		sess.SetSessionID("sess-4")

		_, err := ctrl.SubmitCode(context.Background(), "123456")
		require.NoError(t, err)

		require.Equal(t, "dev-known", verifier.lastVerify.DeviceToken)
		require.Equal(t, "sess-4", verifier.lastVerify.LoginAID)
		require.Equal(t, "123456", verifier.lastVerify.OTP)
	})

	t.Run("transport failure suspends", func(t *testing.T) {
		verifier := &fakeVerifier{verifyErr: errors.New("timeout")}
		ctrl, _, _, _ := newController(t, verifier, false)

		res, err := ctrl.SubmitCode(context.Background(), "123456")
		require.NoError(t, err)
		require.Equal(t, method.OutcomeSuspended, res.Outcome)
	})
}
