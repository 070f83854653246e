package aip

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	resolver := NewResolver("https://www.eaipchina.cn/eaip", "packageFile/BASELINE/2025-02")

	testCases := []struct {
		path     string
		expected string
	}{
		{
			path:     "/Data/EAIP2025-02.V1.5/Terminal/ZBAA/abc.pdf",
			expected: "https://www.eaipchina.cn/eaip/packageFile/BASELINE/2025-02/Terminal/ZBAA/abc.pdf",
		},
		{
			path:     "Terminal/ZBAA/abc.pdf",
			expected: "https://www.eaipchina.cn/eaip/packageFile/BASELINE/2025-02/Terminal/ZBAA/abc.pdf",
		},
		{
			path:     "/Data/EAIP2025-02.V1.5/Terminal//ZBAA/abc.pdf",
			expected: "https://www.eaipchina.cn/eaip/packageFile/BASELINE/2025-02/Terminal/ZBAA/abc.pdf",
		},
		{
			path:     "/abc.pdf",
			expected: "https://www.eaipchina.cn/eaip/packageFile/BASELINE/2025-02/abc.pdf",
		},
		{
			path:     "abc.pdf",
			expected: "https://www.eaipchina.cn/eaip/packageFile/BASELINE/2025-02/abc.pdf",
		},
	}

	for _, test := range testCases {
		require.Equal(t, test.expected, resolver.Resolve(test.path), test.path)
	}
}

func TestWriteLocators(t *testing.T) {
	var out bytes.Buffer
	err := WriteLocators(&out, []Locator{
		{Name: "ZBAA 北京/首都", URL: "https://example.com/a.pdf"},
		{Name: "ZBAA-1A", URL: "https://example.com/b.pdf"},
	})
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "ZBAA 北京/首都: https://example.com/a.pdf\nZBAA-1A: https://example.com/b.pdf", out.String())

	out.Reset()
	err = WriteLocators(&out, nil)
	if err != nil {
		t.Fatal(err)
	}
	require.Empty(t, out.String())
}

func TestRender(t *testing.T) {
	tree := []FilteredNode{
		{
			Name:       "AD 2 机场清单",
			IsModified: "N",
			Children: []FilteredNode{
				{
					Name:       "ZBAA 北京/首都",
					IsModified: "Y",
					Children: []FilteredNode{
						leaf("ZBAA-1A", "N"),
						leaf("ZBAA-2", "Y"),
					},
				},
				leaf("", "N"),
			},
		},
		leaf("ENR 6 航路图", "Y"),
	}

	var out bytes.Buffer
	err := Render(&out, tree)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, `- AD 2 机场清单
  * ZBAA 北京/首都
    - ZBAA-1A
    * ZBAA-2
  - (untitled)
* ENR 6 航路图
`, out.String())

	out.Reset()
	err = Render(&out, nil)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, emptyTreeNotice+"\n", out.String())
	require.Equal(t, 6, Count(tree))
}
