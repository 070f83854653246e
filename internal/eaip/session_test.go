package eaip

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"eaipviewer/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

// flakyTransport fails the first `failures` round trips with a network error
// and answers every later one with an empty JSON object.
type flakyTransport struct {
	failures int32
	calls    atomic.Int32
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	n := f.calls.Add(1)
	if n <= f.failures {
		return nil, errors.New("connection reset by peer")
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Status:     "200 OK",
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader("{}")),
		Request:    req,
	}, nil
}

func newFlakySession(t testing.TB, transport *flakyTransport, tel telemetry.API) *Session {
	session, err := NewSession(SessionOptions{
		BaseUrl:   "http://portal.invalid/eaip",
		Retry:     &RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond},
		Transport: transport,
		Telemetry: tel,
	})
	if err != nil {
		t.Fatal(err)
	}
	return session
}

func TestRequestRetriesTransportFailures(t *testing.T) {
	recorder := telemetry.NewRecorder()
	transport := &flakyTransport{failures: 2}
	session := newFlakySession(t, transport, recorder)

	res, err := session.Request(context.Background(), http.MethodPost, path_packages, struct{}{})
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, http.StatusOK, res.StatusCode())
	require.Equal(t, int32(3), transport.calls.Load())
	require.Len(t, recorder.Reports(telemetry.KindWarning), 2)
}

func TestRequestGivesUpAfterMaxAttempts(t *testing.T) {
	transport := &flakyTransport{failures: 3}
	session := newFlakySession(t, transport, telemetry.NewRecorder())

	_, err := session.Request(context.Background(), http.MethodGet, "/anything", nil)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	require.Equal(t, 3, transportErr.Attempts)
	require.Contains(t, err.Error(), "connection reset by peer")
	require.Equal(t, int32(3), transport.calls.Load())
	require.True(t, IsPortalError(err))
}

func TestRequestDoesNotRetryErrorStatus(t *testing.T) {
	portal := newFakePortal(t)
	portal.catalogStatus = http.StatusInternalServerError
	portal.token = "fixed"
	portal.userId = "someone"

	session, err := NewSession(SessionOptions{
		BaseUrl:   portal.baseUrl(),
		Retry:     &RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond},
		Telemetry: telemetry.NewRecorder(),
	})
	if err != nil {
		t.Fatal(err)
	}
	session.SetUserId("someone")
	session.SetCredentialToken("fixed")

	res, err := session.Request(context.Background(), http.MethodGet, "/some/file", nil)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, http.StatusInternalServerError, res.StatusCode())
	require.Equal(t, []string{"catalog:some/file"}, portal.Events())
}

func TestSessionIdentity(t *testing.T) {
	portal := newFakePortal(t)
	portal.token = "tok"
	portal.userId = "uid"

	session, err := NewSession(SessionOptions{
		BaseUrl:   portal.baseUrl(),
		Telemetry: telemetry.NewRecorder(),
	})
	if err != nil {
		t.Fatal(err)
	}

	session.SetUserId("uid")
	session.SetCredentialToken("tok")
	require.True(t, session.Authenticated())

	res, err := session.Request(context.Background(), http.MethodPost, path_admin, struct{}{})
	if err != nil {
		t.Fatal(err)
	}
	require.False(t, session.IsSessionExpired(res))

	session.Invalidate()
	require.False(t, session.Authenticated())

	res, err = session.Request(context.Background(), http.MethodPost, path_admin, struct{}{})
	if err != nil {
		t.Fatal(err)
	}
	require.True(t, session.IsSessionExpired(res))
}

func TestIsSessionExpired(t *testing.T) {
	testCases := []struct {
		body     string
		expected bool
	}{
		{body: expiredReply, expected: true},
		{body: `{"retCode":"0","retMsg":"login has expired"}`, expected: true},
		{body: `{"retCode":200,"retMsg":"login has expired"}`, expected: false},
		{body: `{"retCode":0,"retMsg":"failure"}`, expected: false},
		{body: `{"retMsg":"login has expired"}`, expected: true},
		{body: `[{"name_cn":"login has expired"}]`, expected: false},
		{body: `not json`, expected: false},
		{body: ``, expected: false},
	}

	for _, test := range testCases {
		require.Equal(t, test.expected, IsSessionExpired([]byte(test.body)), test.body)
	}
}

func TestRetryPolicyStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{MaxAttempts: 5, Delay: time.Millisecond}

	attempts, err := policy.Do(ctx, func() error {
		cancel()
		return errors.New("unreachable")
	}, nil)

	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestRetryPolicyNotifies(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}

	var notified []int
	attempts, err := policy.Do(context.Background(), func() error {
		return errors.New("down")
	}, func(_ error, attempt int) {
		notified = append(notified, attempt)
	})

	require.EqualError(t, err, "down")
	require.Equal(t, 3, attempts)
	require.Equal(t, []int{1, 2}, notified)
}
