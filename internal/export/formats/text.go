package formats

import (
	"context"
	"strings"

	"github.com/mathhub/mdh-explorer/internal/export"
	"github.com/mathhub/mdh-explorer/pkg/types"
)

// Text exports one column as newline-delimited plain text.
type Text struct{}

func (Text) Info() export.Info {
	return export.Info{Slug: "text", DisplayName: "Plain Text", Extension: "txt", ContentType: "text/plain"}
}

func (e Text) Open(_ context.Context, coll *types.Collection, prop types.Property) (export.Accumulator[any], error) {
	return &list[any]{
		name: export.FileName(coll, prop.Slug, e.Info()),
		info: e.Info(),
		render: func(values []any) ([]byte, error) {
			lines := make([]string, len(values))
			for i, v := range values {
				lines[i] = export.FormatValue(v)
			}
			return []byte(strings.Join(lines, "\n")), nil
		},
	}, nil
}

// Magma exports Magma graph assignments as a single Magma list literal.
// "G := Graph<...>;" contributes "Graph<...>" to the list.
type Magma struct{}

func (Magma) Info() export.Info {
	return export.Info{Slug: "magma-graph-code", DisplayName: "Magma Code", Extension: "mag", ContentType: "text/plain"}
}

func (e Magma) Open(_ context.Context, coll *types.Collection, prop types.Property) (export.Accumulator[any], error) {
	return &list[any]{
		name: export.FileName(coll, prop.Slug, e.Info()),
		info: e.Info(),
		render: func(values []any) ([]byte, error) {
			exprs := make([]string, len(values))
			for i, v := range values {
				exprs[i] = StripAssignment(export.FormatValue(v))
			}
			const indent = "    "
			return []byte("export := [\n" + indent + strings.Join(exprs, ",\n"+indent) + "\n];"), nil
		},
	}, nil
}

// StripAssignment removes a leading "name :=" and a trailing ";" from a
// Magma statement. Statements without ":=" are kept whole.
func StripAssignment(stmt string) string {
	if _, rhs, ok := strings.Cut(stmt, ":="); ok {
		stmt = rhs
	}
	stmt = strings.TrimSpace(stmt)
	return strings.TrimSuffix(stmt, ";")
}
