package eaip

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
)

const (
	codeOk      = 200
	codeFailure = 0

	expiredMarker = "login has expired"
)

// resultCode accepts both `"retCode": 200` and `"retCode": "200"`.
type resultCode int

func (c *resultCode) UnmarshalJSON(b []byte) error {
	text := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if text == "" || text == "null" {
		*c = 0
		return nil
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return err
	}
	*c = resultCode(n)
	return nil
}

type reply[T any] struct {
	RetCode resultCode `json:"retCode"`
	RetMsg  string     `json:"retMsg"`
	Data    T          `json:"data"`
}

func (r reply[T]) expired() bool {
	return sessionExpired(int(r.RetCode), r.RetMsg)
}

func sessionExpired(code int, message string) bool {
	return code == codeFailure && strings.Contains(message, expiredMarker)
}

// IsSessionExpired reports whether body is a reply carrying the session
// expiry signature. Bodies that are not replies are never expired.
func IsSessionExpired(body []byte) bool {
	var envelope reply[json.RawMessage]
	err := json.Unmarshal(body, &envelope)
	if err != nil {
		return false
	}
	return envelope.expired()
}

func decodeReply[T any](res *resty.Response) (reply[T], error) {
	var out reply[T]
	if res.StatusCode() != http.StatusOK {
		return out, protocolErrorf("%s %s: status %d", res.Request.Method, res.Request.URL, res.StatusCode())
	}
	body := res.Body()
	if len(bytes.TrimSpace(body)) == 0 {
		return out, protocolErrorf("%s %s: empty body", res.Request.Method, res.Request.URL)
	}
	err := json.Unmarshal(body, &out)
	if err != nil {
		return out, protocolErrorf("%s %s: decode reply: %s", res.Request.Method, res.Request.URL, err)
	}
	return out, nil
}
