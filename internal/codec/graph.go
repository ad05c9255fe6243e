package codec

import (
	"strconv"
	"strings"

	"github.com/mathhub/mdh-explorer/internal/export"
	"github.com/mathhub/mdh-explorer/internal/export/formats"
	"github.com/mathhub/mdh-explorer/pkg/types"
)

// GraphAsSparse6 holds graphs encoded as sparse6 strings.
type GraphAsSparse6 struct {
	noFilter
}

func (GraphAsSparse6) Slug() string      { return "GraphAsSparse6" }
func (GraphAsSparse6) Ordered() Ordering { return Unordered }

// Present renders the decoded edge list, or nothing for malformed input.
func (GraphAsSparse6) Present(value any) Cell {
	s, ok := value.(string)
	if !ok {
		return Cell{}
	}
	g, ok := DecodeSparse6(s)
	if !ok {
		return Cell{}
	}
	parts := make([]string, len(g.Edges))
	for i, e := range g.Edges {
		parts[i] = "[" + strconv.Itoa(e[0]) + "," + strconv.Itoa(e[1]) + "]"
	}
	return Cell{Text: "[" + strings.Join(parts, ",") + "]"}
}

// CoveringRelationAsDigraph6 holds Hasse diagrams encoded as digraph6.
type CoveringRelationAsDigraph6 struct {
	noFilter
}

func (CoveringRelationAsDigraph6) Slug() string      { return "CoveringRelationAsDigraph6" }
func (CoveringRelationAsDigraph6) Ordered() Ordering { return Unordered }

func (CoveringRelationAsDigraph6) Present(value any) Cell {
	if value == nil {
		return Cell{}
	}
	return Cell{Text: "(Hasse Diagram)"}
}

// GraphLabel is a [name, [parameters...]] pair such as ["K", [3,3]].
type GraphLabel struct{}

func (GraphLabel) Slug() string      { return "GraphLabel" }
func (GraphLabel) Ordered() Ordering { return Ascending }

func (c GraphLabel) Present(value any) Cell {
	s, _ := c.ToClipboardValue(value)
	return Cell{Text: s}
}

func (GraphLabel) ParseFilterValue(*string) any { return nil }

func (GraphLabel) CleanFilterValue(any, *string) types.ValidationResult {
	return unsupported("GraphLabel")
}

// ToClipboardValue renders the label as name[p1,p2,...].
func (GraphLabel) ToClipboardValue(value any) (string, bool) {
	pair, ok := value.([]any)
	if !ok || len(pair) != 2 {
		return "", false
	}
	params, _ := pair[1].([]any)
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = export.FormatValue(p)
	}
	return export.FormatValue(pair[0]) + "[" + strings.Join(parts, ",") + "]", true
}

// MagmaGraphCode holds Magma source assigning a graph to a variable.
type MagmaGraphCode struct {
	noFilter
}

func (MagmaGraphCode) Slug() string      { return "MagmaGraphCode" }
func (MagmaGraphCode) Ordered() Ordering { return Unordered }

func (MagmaGraphCode) Present(value any) Cell {
	return Cell{Text: export.FormatValue(value)}
}

func (MagmaGraphCode) ToClipboardValue(value any) (string, bool) {
	return export.FormatValue(value), true
}

func (MagmaGraphCode) Exporters() []export.ValueExporter {
	return []export.ValueExporter{formats.Magma{}, formats.Text{}}
}
