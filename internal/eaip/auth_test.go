package eaip

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"eaipviewer/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	portal := newFakePortal(t)
	client := portal.client(t, telemetry.NewRecorder())

	require.Equal(t, StateUnauthenticated, client.Auth.State())

	err := client.Login(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	require.Equal(t, StateAuthenticated, client.Auth.State())
	require.True(t, client.Session.Authenticated())
	require.Equal(t, "user-uuid-1", client.Session.UserId())
	require.NotEmpty(t, client.Session.CaptchaId())
	// the publication call only succeeds when the token header and all
	// identity cookies were installed
	require.Equal(t, []string{"captcha", "login", "publications"}, portal.Events())
}

func TestLoginFailures(t *testing.T) {
	testCases := []struct {
		name    string
		setup   func(p *fakePortal)
		solver  CaptchaSolver
		stage   AuthStage
		message string
	}{
		{
			name:    "wrong captcha",
			setup:   func(p *fakePortal) { p.answer = "other" },
			stage:   StageCredentials,
			message: "验证码错误",
		},
		{
			name:    "wrong password",
			setup:   func(p *fakePortal) { p.password = "something else" },
			stage:   StageCredentials,
			message: "用户名或密码错误",
		},
		{
			name:  "captcha unavailable",
			setup: func(p *fakePortal) { p.captchaStatus = http.StatusServiceUnavailable },
			stage: StageCaptcha,
		},
		{
			name: "solver gives up",
			solver: CaptchaSolverFunc(func(context.Context, []byte) (string, error) {
				return "", errors.New("operator went home")
			}),
			stage: StageSolve,
		},
		{
			name: "blank answer",
			solver: CaptchaSolverFunc(func(context.Context, []byte) (string, error) {
				return "  \n", nil
			}),
			stage: StageSolve,
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			portal := newFakePortal(t)
			// setup changes what the portal expects, the client keeps sending
			// the original credentials
			client := portal.client(t, telemetry.NewRecorder())
			if test.setup != nil {
				test.setup(portal)
			}
			if test.solver != nil {
				client.Auth.opts.Solver = test.solver
			}

			err := client.Login(context.Background())

			var authErr *AuthError
			require.ErrorAs(t, err, &authErr)
			require.Equal(t, test.stage, authErr.Stage)
			if test.message != "" {
				require.Equal(t, test.message, authErr.Message)
				require.Contains(t, err.Error(), test.message)
			}
			require.Equal(t, StateFailed, client.Auth.State())
			require.False(t, client.Session.Authenticated())
			require.True(t, IsPortalError(err))
		})
	}
}

func TestLoginReplacesIdentity(t *testing.T) {
	portal := newFakePortal(t)
	client := portal.client(t, telemetry.NewRecorder())

	err := client.Login(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	firstCaptcha := client.Session.CaptchaId()

	portal.answer = "nope"
	err = client.Login(context.Background())
	require.Error(t, err)
	require.False(t, client.Session.Authenticated())
	require.Empty(t, client.Session.Token())

	portal.answer = "x7k2"
	err = client.Login(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	require.NotEqual(t, firstCaptcha, client.Session.CaptchaId())
	require.Equal(t, 3, count(portal.Events(), "captcha"))
}

func TestPublicationsFailureKeepsLogin(t *testing.T) {
	portal := newFakePortal(t)
	recorder := telemetry.NewRecorder()
	client := portal.client(t, recorder)

	client.Auth.session.http.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if strings.HasSuffix(req.URL, path_publications) {
			portal.expireSession()
		}
		return nil
	})

	err := client.Login(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, StateAuthenticated, client.Auth.State())
	require.True(t, recorder.Has(telemetry.KindWarning, report_authenticator_publications))
}

func TestAuthStateString(t *testing.T) {
	require.Equal(t, "captcha_issued", StateCaptchaIssued.String())
	require.Equal(t, "AuthState(9)", AuthState(9).String())
}
