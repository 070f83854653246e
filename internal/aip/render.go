package aip

import (
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/list"
	"github.com/jedib0t/go-pretty/v6/text"
)

const emptyTreeNotice = "no matching catalog entries"

// the marker is part of the item text, list bullets stay blank
var markerStyle = list.Style{
	Format:           text.FormatDefault,
	CharItemVertical: "  ",
	CharNewline:      "\n",
	Name:             "markerStyle",
}

func label(node FilteredNode) string {
	name := node.Name
	if name == "" {
		name = "(untitled)"
	}
	if node.Modified() {
		return "* " + name
	}
	return "- " + name
}

func appendTree(l list.Writer, nodes []FilteredNode) {
	for _, node := range nodes {
		l.AppendItem(label(node))
		if len(node.Children) > 0 {
			l.Indent()
			appendTree(l, node.Children)
			l.UnIndent()
		}
	}
}

// Render prints the tree one node per line, indented two spaces per level.
// Modified nodes are marked `*`, the others `-`.
func Render(w io.Writer, tree []FilteredNode) error {
	if len(tree) == 0 {
		_, err := io.WriteString(w, emptyTreeNotice+"\n")
		return err
	}

	l := list.NewWriter()
	l.SetStyle(markerStyle)
	appendTree(l, tree)

	var out strings.Builder
	for _, line := range strings.Split(l.Render(), "\n") {
		// every line carries the separator that follows the empty bullet
		out.WriteString(strings.TrimPrefix(line, " "))
		out.WriteByte('\n')
	}
	_, err := io.WriteString(w, out.String())
	return err
}
