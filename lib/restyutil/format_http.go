package restyutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/go-resty/resty/v2"
)

const redacted = "<redacted>"

// headers whose values carry session identity
var redactedHeaders = []string{"Token", "Cookie", "Set-Cookie"}

func formatHeaders(headers http.Header) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		hidden := slices.Contains(redactedHeaders, http.CanonicalHeaderKey(k))
		for _, v := range headers[k] {
			if hidden {
				v = redacted
			}
			lines = append(lines, k+": "+v)
		}
	}
	return strings.Join(lines, "\n")
}

// formatBody indents json payloads and summarizes anything that is not text.
func formatBody(contentType string, body []byte) string {
	if len(body) == 0 {
		return "<EMPTY BODY>"
	}
	if strings.HasPrefix(contentType, "image/") || strings.HasPrefix(contentType, "application/octet-stream") {
		return fmt.Sprintf("<%d bytes of %s>", len(body), contentType)
	}
	trimmed := bytes.TrimPrefix(body, []byte("\ufeff"))
	if json.Valid(trimmed) {
		var out bytes.Buffer
		if json.Indent(&out, trimmed, "", "  ") == nil {
			return out.String()
		}
	}
	return string(body)
}

func formatRequestBody(req *http.Request) string {
	if req.GetBody == nil {
		return "<NO BODY AVAILABLE>"
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("failed to get request body: %s", err.Error())
	}
	contents, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("failed to read request body: %s", err.Error())
	}
	return formatBody(req.Header.Get("Content-Type"), contents)
}

func formatHttpMessage(res *resty.Response) string {
	var out strings.Builder

	out.WriteString("---- REQUEST ----\n\n")
	fmt.Fprintf(&out, "%s %s\n\n", res.Request.Method, res.Request.URL)
	if raw := res.Request.RawRequest; raw != nil {
		fmt.Fprintf(&out, "%s\n\n%s\n\n", formatHeaders(raw.Header), formatRequestBody(raw))
	}

	location := res.Request.URL
	if res.RawResponse != nil {
		if redirected, err := res.RawResponse.Location(); err == nil {
			location = redirected.String()
		}
	}

	out.WriteString("---- RESPONSE ----\n\n")
	fmt.Fprintf(&out, "%d %s\n\n", res.StatusCode(), location)
	fmt.Fprintf(&out, "%s\n\n", formatHeaders(res.Header()))
	out.WriteString(formatBody(res.Header().Get("Content-Type"), res.Body()))
	return out.String()
}
