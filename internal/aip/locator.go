package aip

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/purell"
)

// Locator points at the source document of a retained node.
type Locator struct {
	Name string
	URL  string
}

func (l Locator) String() string {
	return fmt.Sprintf("%s: %s", l.Name, l.URL)
}

// Resolver turns document paths from the catalog into absolute URLs within
// one package.
type Resolver struct {
	prefix string
}

func NewResolver(baseUrl, filePath string) *Resolver {
	return &Resolver{
		prefix: strings.TrimRight(baseUrl, "/") + "/" + strings.Trim(filePath, "/") + "/",
	}
}

const normalizeFlags = purell.FlagsSafe | purell.FlagRemoveDuplicateSlashes

// Resolve joins docPath onto the package path. Absolute document paths
// start with three segments (`/Data/<release>/`) that are dropped, relative
// ones are used as they are.
func (r *Resolver) Resolve(docPath string) string {
	remainder := docPath
	if strings.HasPrefix(docPath, "/") {
		segments := strings.SplitN(docPath, "/", 4)
		remainder = segments[len(segments)-1]
	}
	joined := r.prefix + strings.TrimLeft(remainder, "/")

	normalized, err := purell.NormalizeURLString(joined, normalizeFlags)
	if err != nil {
		return joined
	}
	return normalized
}

// WriteLocators writes one `name: url` line per locator, without a trailing
// newline.
func WriteLocators(w io.Writer, locators []Locator) error {
	lines := make([]string, len(locators))
	for i, l := range locators {
		lines[i] = l.String()
	}
	_, err := io.WriteString(w, strings.Join(lines, "\n"))
	return err
}
