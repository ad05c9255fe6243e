package formats

import (
	"context"
	"encoding/json"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/mathhub/mdh-explorer/internal/export"
	"github.com/mathhub/mdh-explorer/pkg/types"
)

// JSON exports whole items as a single JSON array.
type JSON struct{}

func (JSON) Info() export.Info {
	return export.Info{Slug: "json", DisplayName: "JSON", Extension: "json", ContentType: "application/json"}
}

func (e JSON) Open(_ context.Context, coll *types.Collection) (export.Accumulator[types.Item], error) {
	return &list[types.Item]{
		values: []types.Item{},
		name:   export.FileName(coll, "", e.Info()),
		info:   e.Info(),
		render: func(items []types.Item) ([]byte, error) {
			if items == nil {
				items = []types.Item{}
			}
			return json.Marshal(items)
		},
	}, nil
}

// JSONValues exports one column as a JSON array. When Path is set, each
// value is replaced by the first match of that JSONPath expression.
type JSONValues struct {
	Path string
}

func (JSONValues) Info() export.Info {
	return export.Info{Slug: "json-values", DisplayName: "JSON", Extension: "json", ContentType: "application/json"}
}

func (e JSONValues) Open(_ context.Context, coll *types.Collection, prop types.Property) (export.Accumulator[any], error) {
	var path jp.Expr
	if e.Path != "" {
		x, err := jp.ParseString(e.Path)
		if err != nil {
			return nil, err
		}
		path = x
	}
	return &list[any]{
		values: []any{},
		name:   export.FileName(coll, prop.Slug, e.Info()),
		info:   e.Info(),
		render: func(values []any) ([]byte, error) {
			out := make([]any, len(values))
			for i, v := range values {
				if path != nil {
					v = first(path.Get(v))
				}
				out[i] = v
			}
			return oj.Marshal(out)
		},
	}, nil
}

func first(results []any) any {
	if len(results) == 0 {
		return nil
	}
	return results[0]
}
