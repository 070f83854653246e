package aip

import (
	"encoding/json"
	"regexp"
	"strings"

	"eaipviewer/internal/components/telemetry"
)

const (
	markerNavigationChapter = "ENR 6"
	markerAerodromeIndex    = "AD 2 机场清单"
	markerAerodromeList     = "机场清单"
)

// both patterns only anchor at the start of the label
var (
	aerodromeCode = regexp.MustCompile(`^Z[PBGHLSUWY][A-Z]{2}`)
	chartCode     = regexp.MustCompile(`^Z[PBGHLSUWY][A-Z]{2}-\d[A-Z]?\d?\d?`)
)

// ShouldKeep reports whether a node labelled name, below ancestors (the
// labels from the root down to its parent), is retained on its own merit.
func ShouldKeep(name string, ancestors []string) bool {
	if strings.Contains(name, markerNavigationChapter) {
		return true
	}
	if strings.Contains(name, markerAerodromeIndex) {
		return true
	}
	if aerodromeCode.MatchString(name) {
		return true
	}
	if chartCode.MatchString(name) {
		for _, ancestor := range ancestors {
			if strings.Contains(ancestor, markerAerodromeList) {
				return true
			}
		}
	}
	return false
}

// Result is the output of a filter pass.
type Result struct {
	Tree     []FilteredNode
	Locators []Locator
}

type filterPass struct {
	resolver *Resolver
	locators []Locator
}

func (p *filterPass) visit(node Node, ancestors []string) (FilteredNode, bool) {
	// full slice expression so siblings never share a backing array
	path := append(ancestors[:len(ancestors):len(ancestors)], node.Name)

	var children []FilteredNode
	keep := ShouldKeep(node.Name, ancestors)
	if keep && node.DocumentPath != "" && p.resolver != nil {
		p.locators = append(p.locators, Locator{
			Name: node.Name,
			URL:  p.resolver.Resolve(node.DocumentPath),
		})
	}
	for _, child := range node.Children {
		kept, ok := p.visit(child, path)
		if ok {
			children = append(children, kept)
		}
	}

	if !keep && len(children) == 0 {
		return FilteredNode{}, false
	}
	return FilteredNode{
		Name:       node.Name,
		IsModified: node.IsModified,
		Children:   children,
	}, true
}

// Filter reduces a catalog to the retained nodes and the minimal ancestry
// connecting them to the root. A nil resolver skips locator resolution.
func Filter(nodes []Node, resolver *Resolver) Result {
	pass := filterPass{resolver: resolver}
	var tree []FilteredNode
	for _, node := range nodes {
		kept, ok := pass.visit(node, nil)
		if ok {
			tree = append(tree, kept)
		}
	}
	return Result{Tree: tree, Locators: pass.locators}
}

const report_filter_decode = "filter.decode"

// FilterRaw decodes and filters a catalog document. A document that cannot
// be decoded is reported to tel and yields an empty result.
func FilterRaw(raw json.RawMessage, resolver *Resolver, tel telemetry.API) Result {
	nodes, err := Decode(raw)
	if err != nil {
		if tel != nil {
			tel.ReportWarning(report_filter_decode, err)
		}
		return Result{}
	}
	if len(nodes) == 0 && tel != nil {
		tel.ReportDebug("catalog holds no nodes")
	}
	return Filter(nodes, resolver)
}
