package restyutil

import (
	"bytes"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatHeaders(t *testing.T) {
	headers := http.Header{}
	headers.Set("Origin", "https://www.eaipchina.cn")
	headers.Set("Token", "abc")
	headers.Add("Accept", "application/json")

	require.Equal(
		t,
		"Accept: application/json\nOrigin: https://www.eaipchina.cn\nToken: <redacted>",
		formatHeaders(headers),
	)
	require.Equal(t, "", formatHeaders(http.Header{}))
}

func TestFormatRequestBody(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "https://www.eaipchina.cn/eaip/login/captcha", nil)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "<NO BODY AVAILABLE>", formatRequestBody(req))

	req, err = http.NewRequest(http.MethodPost, "https://www.eaipchina.cn/eaip/package/listPage", bytes.NewBufferString("{}"))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "{}", formatRequestBody(req))

	// draining the original body must not affect the formatted copy
	_, err = io.ReadAll(req.Body)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "{}", formatRequestBody(req))
}

func TestFormatBody(t *testing.T) {
	table := []struct {
		name        string
		contentType string
		body        string
		expected    string
	}{
		{name: "empty", body: "", expected: "<EMPTY BODY>"},
		{name: "captcha image", contentType: "image/jpeg", body: "\xff\xd8\xff", expected: "<3 bytes of image/jpeg>"},
		{name: "json reply", contentType: "application/json", body: `{"retCode":200,"data":[]}`, expected: "{\n  \"retCode\": 200,\n  \"data\": []\n}"},
		{name: "bom prefixed catalog", body: "\ufeff[]", expected: "[]"},
		{name: "plain text", contentType: "text/html", body: "<html></html>", expected: "<html></html>"},
	}
	for _, row := range table {
		t.Run(row.name, func(t *testing.T) {
			require.Equal(t, row.expected, formatBody(row.contentType, []byte(row.body)))
		})
	}
}

func TestFormatHeadersRedactsCookies(t *testing.T) {
	headers := http.Header{}
	headers.Add("Set-Cookie", "userid=1")
	headers.Add("Set-Cookie", "username=tok")
	require.Equal(t, "Set-Cookie: <redacted>\nSet-Cookie: <redacted>", formatHeaders(headers))
}
