package eaip

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"eaipviewer/internal/components/telemetry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// CaptchaSolver transcribes a captcha image. Implementations may block for
// as long as a human needs.
type CaptchaSolver interface {
	SolveCaptcha(ctx context.Context, image []byte) (string, error)
}

type CaptchaSolverFunc func(ctx context.Context, image []byte) (string, error)

func (f CaptchaSolverFunc) SolveCaptcha(ctx context.Context, image []byte) (string, error) {
	return f(ctx, image)
}

type AuthState int

const (
	StateUnauthenticated AuthState = iota
	StateCaptchaIssued
	StateAuthenticated
	StateFailed
)

func (s AuthState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateCaptchaIssued:
		return "captcha_issued"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("AuthState(%d)", int(s))
}

type Credentials struct {
	Username string
	Password string
}

type AuthOptions struct {
	Credentials Credentials
	Solver      CaptchaSolver
	Encryptor   Encryptor
	// generates captcha correlation ids, defaults to uuid.NewString
	NewCaptchaId func() string
	// skips the best-effort publication list request after a login
	SkipPublications bool
	Telemetry        telemetry.API
}

const (
	report_authenticator_login        = "authenticator.login"
	report_authenticator_publications = "authenticator.publications"
)

// Authenticator runs the captcha login flow and installs the resulting
// identity into a Session. Every call to Login starts from scratch with a
// new captcha, there is no way to refresh a token without one.
type Authenticator struct {
	session *Session
	opts    AuthOptions
	tel     telemetry.API
	state   AuthState
}

func NewAuthenticator(session *Session, opts AuthOptions) (*Authenticator, error) {
	if opts.Solver == nil {
		return nil, fmt.Errorf("a captcha solver is required")
	}
	if opts.Encryptor == nil {
		encryptor, err := NewRSAEncryptor(DefaultPublicKey)
		if err != nil {
			return nil, err
		}
		opts.Encryptor = encryptor
	}
	if opts.NewCaptchaId == nil {
		opts.NewCaptchaId = uuid.NewString
	}
	tel := opts.Telemetry
	if tel == nil {
		tel = telemetry.SlogAPI{}
	}
	return &Authenticator{
		session: session,
		opts:    opts,
		tel:     telemetry.NewScopedAPI("authenticator", tel),
		state:   StateUnauthenticated,
	}, nil
}

func (a *Authenticator) State() AuthState {
	return a.state
}

func (a *Authenticator) fail(span trace.Span, err *AuthError) error {
	a.state = StateFailed
	a.tel.ReportWarning(report_authenticator_login, err)
	span.RecordError(err)
	span.SetStatus(codes.Error, string(err.Stage))
	return err
}

// Login performs Unauthenticated -> CaptchaIssued -> Authenticated, or ends
// in Failed with an *AuthError.
func (a *Authenticator) Login(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "authenticator:Login")
	defer span.End()

	a.session.Invalidate()
	a.state = StateUnauthenticated

	image, err := a.issueCaptcha(ctx)
	if err != nil {
		return a.fail(span, &AuthError{Stage: StageCaptcha, Err: err})
	}
	a.state = StateCaptchaIssued

	answer, err := a.opts.Solver.SolveCaptcha(ctx, image)
	if err != nil {
		return a.fail(span, &AuthError{Stage: StageSolve, Err: err})
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return a.fail(span, &AuthError{Stage: StageSolve, Message: "empty captcha answer"})
	}

	authErr := a.submit(ctx, answer)
	if authErr != nil {
		return a.fail(span, authErr)
	}
	a.state = StateAuthenticated
	a.tel.ReportDebug("logged in", a.opts.Credentials.Username)

	if !a.opts.SkipPublications {
		data, err := requestPublications(ctx, a.session)
		if err != nil {
			a.tel.ReportWarning(report_authenticator_publications, err)
		} else {
			a.tel.ReportDebug("publication list fetched", countEntries(data))
		}
	}
	return nil
}

func (a *Authenticator) issueCaptcha(ctx context.Context) ([]byte, error) {
	id := a.opts.NewCaptchaId()
	a.session.captchaId = id

	query := url.Values{}
	query.Set("captchaId", id)
	res, err := a.session.Request(ctx, http.MethodGet, path_captcha+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if res.StatusCode() != http.StatusOK {
		return nil, protocolErrorf("captcha: status %d", res.StatusCode())
	}
	if len(res.Body()) == 0 {
		return nil, protocolErrorf("captcha: empty image")
	}
	return res.Body(), nil
}

type loginRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Captcha   string `json:"captcha"`
	CaptchaId string `json:"captchaId"`
}

type loginData struct {
	Token    string `json:"token"`
	UserUuid string `json:"eaipUserUuid"`
}

func (a *Authenticator) submit(ctx context.Context, answer string) *AuthError {
	if a.session.captchaId == "" {
		return &AuthError{Stage: StageCredentials, Message: "no captcha has been issued"}
	}
	password, err := a.opts.Encryptor.Encrypt(a.opts.Credentials.Password)
	if err != nil {
		return &AuthError{Stage: StageCredentials, Err: fmt.Errorf("encrypt password: %w", err)}
	}

	res, err := a.session.Request(ctx, http.MethodPost, path_login, loginRequest{
		Username:  a.opts.Credentials.Username,
		Password:  password,
		Captcha:   answer,
		CaptchaId: a.session.captchaId,
	})
	if err != nil {
		return &AuthError{Stage: StageCredentials, Err: err}
	}
	parsed, err := decodeReply[loginData](res)
	if err != nil {
		return &AuthError{Stage: StageCredentials, Err: err}
	}
	if parsed.RetCode != codeOk {
		message := parsed.RetMsg
		if message == "" {
			message = fmt.Sprintf("result code %d", parsed.RetCode)
		}
		return &AuthError{Stage: StageCredentials, Message: message}
	}
	if parsed.Data.Token == "" || parsed.Data.UserUuid == "" {
		return &AuthError{
			Stage: StageCredentials,
			Err:   protocolErrorf("login reply is missing the token or user id"),
		}
	}

	a.session.SetUserId(parsed.Data.UserUuid)
	a.session.SetCredentialToken(parsed.Data.Token)
	return nil
}

// requestPublications lists the publications visible on the login page.
func requestPublications(ctx context.Context, session *Session) (json.RawMessage, error) {
	res, err := session.Request(ctx, http.MethodPost, path_publications, struct{}{})
	if err != nil {
		return nil, err
	}
	parsed, err := decodeReply[json.RawMessage](res)
	if err != nil {
		return nil, err
	}
	if parsed.expired() {
		return nil, ErrSessionExpired
	}
	if parsed.RetCode == codeFailure {
		return nil, protocolErrorf("publication list: %s", parsed.RetMsg)
	}
	return parsed.Data, nil
}

// countEntries returns the length of data when it is a list or a page
// wrapping one.
func countEntries(data json.RawMessage) int {
	var entries []json.RawMessage
	if json.Unmarshal(data, &entries) == nil {
		return len(entries)
	}
	var page struct {
		Data []json.RawMessage `json:"data"`
	}
	if json.Unmarshal(data, &page) == nil {
		return len(page.Data)
	}
	return 0
}
