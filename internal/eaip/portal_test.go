package eaip

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"eaipviewer/internal/components/telemetry"
)

var fakeCaptchaImage = []byte("\xff\xd8\xff\xe0fake-jpeg")

const expiredReply = `{"retCode":0,"retMsg":"login has expired, please log in again","data":null}`

// fakePortal imitates the portal endpoints the client talks to.
type fakePortal struct {
	t      testing.TB
	key    *rsa.PrivateKey
	server *httptest.Server

	username string
	password string
	answer   string

	mutex     sync.Mutex
	events    []string
	captchaId string
	token     string
	userId    string
	logins    int

	// package list call numbers (1-based) that answer with expiry
	expirePackageCalls map[int]bool
	alwaysExpire       bool
	packageCalls       int
	packages           []Package

	captchaStatus int
	catalogStatus int
	catalog       string
	adminReplies  []string
}

func newFakePortal(t testing.TB) *fakePortal {
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatal(err)
	}
	p := &fakePortal{
		t:                  t,
		key:                key,
		username:           "pilot",
		password:           "hunter2",
		answer:             "x7k2",
		expirePackageCalls: map[int]bool{},
		packages: []Package{
			{DataName: "EAIP2024-13.V1.4", FilePath: "packageFile/BASELINE/2024-13", DataStatus: "HISTORY"},
			{DataName: "EAIP2025-02.V1.5", FilePath: "packageFile/BASELINE/2025-02", DataStatus: StatusCurrentlyIssued},
		},
		captchaStatus: http.StatusOK,
		catalogStatus: http.StatusOK,
		catalog:       `[{"name_cn":"ENR 6 航路图","Is_Modified":"N","children":[]}]`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /eaip/login/captcha", p.handleCaptcha)
	mux.HandleFunc("POST /eaip/login/login", p.handleLogin)
	mux.HandleFunc("POST /eaip/publication/listByLoginPage", p.handlePublications)
	mux.HandleFunc("POST /eaip/package/listPage", p.handlePackages)
	mux.HandleFunc("POST /eaip/user/validSuperAdmin", p.handleAdmin)
	mux.HandleFunc("GET /eaip/{path...}", p.handleCatalog)
	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakePortal) baseUrl() string {
	return p.server.URL + "/eaip"
}

func (p *fakePortal) record(event string) {
	p.events = append(p.events, event)
}

func (p *fakePortal) Events() []string {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return append([]string(nil), p.events...)
}

func (p *fakePortal) Logins() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.logins
}

// expireSession forgets the issued token, as if it timed out server side.
func (p *fakePortal) expireSession() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.token = ""
}

func (p *fakePortal) authorized(r *http.Request) bool {
	if p.token == "" || r.Header.Get("token") != p.token {
		return false
	}
	for _, name := range []string{"userid", "userId"} {
		cookie, err := r.Cookie(name)
		if err != nil || cookie.Value != p.userId {
			return false
		}
	}
	cookie, err := r.Cookie("username")
	return err == nil && cookie.Value == p.token
}

func writeJson(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(body))
}

func (p *fakePortal) handleCaptcha(w http.ResponseWriter, r *http.Request) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.record("captcha")

	if p.captchaStatus != http.StatusOK {
		w.WriteHeader(p.captchaStatus)
		return
	}
	p.captchaId = r.URL.Query().Get("captchaId")
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(fakeCaptchaImage)
}

func (p *fakePortal) handleLogin(w http.ResponseWriter, r *http.Request) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.record("login")

	var req loginRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if req.CaptchaId == "" || req.CaptchaId != p.captchaId || req.Captcha != p.answer {
		writeJson(w, `{"retCode":"500","retMsg":"验证码错误"}`)
		return
	}
	ciphertext, err := base64.StdEncoding.DecodeString(req.Password)
	if err != nil {
		writeJson(w, `{"retCode":500,"retMsg":"bad password encoding"}`)
		return
	}
	plaintext, err := rsa.DecryptPKCS1v15(rand.Reader, p.key, ciphertext)
	if err != nil || req.Username != p.username || string(plaintext) != p.password {
		writeJson(w, `{"retCode":500,"retMsg":"用户名或密码错误"}`)
		return
	}

	p.logins++
	p.token = "token-" + time.Now().Format("150405.000000")
	p.userId = "user-uuid-1"
	out, _ := json.Marshal(map[string]any{
		"retCode": 200,
		"retMsg":  "success",
		"data": map[string]any{
			"token":        p.token,
			"eaipUserUuid": p.userId,
		},
	})
	writeJson(w, string(out))
}

func (p *fakePortal) handlePublications(w http.ResponseWriter, r *http.Request) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.authorized(r) {
		p.record("publications:anonymous")
		writeJson(w, expiredReply)
		return
	}
	p.record("publications")
	writeJson(w, `{"retCode":200,"retMsg":"ok","data":[{"name":"AIP"},{"name":"AIC"}]}`)
}

func (p *fakePortal) handlePackages(w http.ResponseWriter, r *http.Request) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.packageCalls++
	p.record("packages")

	if p.alwaysExpire || p.expirePackageCalls[p.packageCalls] || !p.authorized(r) {
		writeJson(w, expiredReply)
		return
	}
	out, _ := json.Marshal(map[string]any{
		"retCode": 200,
		"retMsg":  "ok",
		"data":    map[string]any{"data": p.packages},
	})
	writeJson(w, string(out))
}

func (p *fakePortal) handleAdmin(w http.ResponseWriter, r *http.Request) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.record("admin")

	if !p.authorized(r) {
		writeJson(w, expiredReply)
		return
	}
	writeJson(w, `{"retCode":200,"retMsg":"not an administrator","data":false}`)
}

func (p *fakePortal) handleCatalog(w http.ResponseWriter, r *http.Request) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.record("catalog:" + r.PathValue("path"))

	if !p.authorized(r) {
		writeJson(w, expiredReply)
		return
	}
	if p.catalogStatus != http.StatusOK {
		w.WriteHeader(p.catalogStatus)
		return
	}
	writeJson(w, p.catalog)
}

// solver answers with the captcha text the portal expects at creation time.
func (p *fakePortal) solver() CaptchaSolver {
	answer := p.answer
	return CaptchaSolverFunc(func(ctx context.Context, image []byte) (string, error) {
		if string(image) != string(fakeCaptchaImage) {
			p.t.Errorf("solver got unexpected image %q", image)
		}
		return " " + answer + "\n", nil
	})
}

func (p *fakePortal) client(t testing.TB, tel telemetry.API) *Client {
	client, err := NewClient(Options{
		Session: SessionOptions{
			BaseUrl: p.baseUrl(),
			Retry:   &RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond},
		},
		Credentials: Credentials{Username: p.username, Password: p.password},
		Solver:      p.solver(),
		Encryptor:   NewRSAEncryptorFromKey(&p.key.PublicKey),
		Fetcher: FetcherOptions{
			PrimeDelay: time.Millisecond,
		},
		Telemetry: tel,
	})
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func count(events []string, event string) int {
	n := 0
	for _, e := range events {
		if e == event {
			n++
		}
	}
	return n
}
