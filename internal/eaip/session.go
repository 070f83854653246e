package eaip

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"eaipviewer/internal/components/telemetry"
	"eaipviewer/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

const DefaultBaseUrl = "https://www.eaipchina.cn/eaip"

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/134.0.0.0 Safari/537.36 Edg/134.0.0.0"

type SessionOptions struct {
	// defaults to DefaultBaseUrl
	BaseUrl string
	// optional http(s) or socks5 proxy url
	Proxy              string
	InsecureSkipVerify bool
	// wraps the transport with browser-like TLS and header settings
	BrowserTransport bool
	// 0 means unlimited
	RequestsPerSecond float64
	// defaults to 30 seconds
	Timeout time.Duration
	// defaults to DefaultRetryPolicy
	Retry *RetryPolicy
	// replaces the underlying transport, Proxy, InsecureSkipVerify and
	// BrowserTransport are ignored when set
	Transport http.RoundTripper
	// when set, every exchange is written to it
	InstrumentOutput restyutil.InstrumentOutput
	Telemetry        telemetry.API
}

// Session owns the cookies, headers and token of one portal identity.
// It is not safe for concurrent use.
type Session struct {
	baseUrl *url.URL
	http    *resty.Client
	retry   RetryPolicy
	tel     telemetry.API

	token     string
	userId    string
	captchaId string
}

func NewSession(opts SessionOptions) (*Session, error) {
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	retry := DefaultRetryPolicy()
	if opts.Retry != nil {
		retry = *opts.Retry
	}
	tel := opts.Telemetry
	if tel == nil {
		tel = telemetry.SlogAPI{}
	}
	tel = telemetry.NewScopedAPI("session", tel)

	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}
	origin := fmt.Sprintf("%s://%s", baseUrl.Scheme, baseUrl.Host)

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.SetTimeout(opts.Timeout)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetHeaders(map[string]string{
		"Accept":             "application/json, text/plain, */*",
		"Accept-Language":    "en-US",
		"Origin":             origin,
		"Referer":            origin + "/",
		"Sec-Fetch-Dest":     "empty",
		"Sec-Fetch-Mode":     "cors",
		"Sec-Fetch-Site":     "same-origin",
		"User-Agent":         userAgent,
		"sec-ch-ua":          `"Chromium";v="134", "Not:A-Brand";v="24", "Microsoft Edge";v="134"`,
		"sec-ch-ua-mobile":   "?0",
		"sec-ch-ua-platform": `"Windows"`,
	})

	if opts.Transport != nil {
		client.SetTransport(opts.Transport)
	} else {
		if opts.Proxy != "" {
			client.SetProxy(opts.Proxy)
		}
		if opts.InsecureSkipVerify {
			client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
		}
		if opts.BrowserTransport {
			client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
		}
	}

	if opts.RequestsPerSecond > 0 {
		limiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(client, tel)
	restyutil.InstrumentClient(client, tracer, opts.InstrumentOutput)

	return &Session{
		baseUrl: baseUrl,
		http:    client,
		retry:   retry,
		tel:     tel,
	}, nil
}

const report_session_request = "session.request"

// Request sends a request with the session's cookies and headers. A non-nil
// body is sent as JSON. Transport failures are retried according to the
// retry policy and surface as *TransportError once exhausted, any response
// that arrives is returned as is, whatever its status.
func (s *Session) Request(ctx context.Context, method, path string, body any) (*resty.Response, error) {
	var res *resty.Response
	attempts, err := s.retry.Do(
		ctx,
		func() error {
			req := s.http.R().SetContext(ctx)
			if body != nil {
				req.SetHeader("Content-Type", "application/json").SetBody(body)
			}
			var err error
			res, err = req.Execute(method, path)
			return err
		},
		func(err error, attempt int) {
			s.tel.ReportWarning(
				report_session_request,
				fmt.Errorf("%s %s attempt %d: %w", method, path, attempt, err),
			)
		},
	)
	if err != nil {
		return nil, &TransportError{Attempts: attempts, Err: err}
	}
	return res, nil
}

func (s *Session) setCookie(name, value string) {
	s.http.GetClient().Jar.SetCookies(s.baseUrl, []*http.Cookie{{
		Name:  name,
		Value: value,
		Path:  "/",
	}})
}

func (s *Session) expireCookie(name string) {
	s.http.GetClient().Jar.SetCookies(s.baseUrl, []*http.Cookie{{
		Name:   name,
		Path:   "/",
		MaxAge: -1,
	}})
}

// SetCredentialToken installs the login token as both the `token` header
// and the `username` cookie.
func (s *Session) SetCredentialToken(token string) {
	s.token = token
	s.http.SetHeader("token", token)
	s.setCookie("username", token)
}

// SetUserId installs the user id cookie under both spellings the portal reads.
func (s *Session) SetUserId(id string) {
	s.userId = id
	s.setCookie("userid", id)
	s.setCookie("userId", id)
}

// Invalidate drops the session identity, privileged calls will fail until a
// login installs a new one.
func (s *Session) Invalidate() {
	s.token = ""
	s.userId = ""
	s.captchaId = ""
	s.http.Header.Del("token")
	s.expireCookie("username")
	s.expireCookie("userid")
	s.expireCookie("userId")
}

func (s *Session) Authenticated() bool {
	return s.token != "" && s.userId != ""
}

func (s *Session) Token() string {
	return s.token
}

func (s *Session) UserId() string {
	return s.userId
}

func (s *Session) CaptchaId() string {
	return s.captchaId
}

// IsSessionExpired reports whether res carries the session expiry signature.
func (s *Session) IsSessionExpired(res *resty.Response) bool {
	if res == nil {
		return false
	}
	return IsSessionExpired(res.Body())
}
