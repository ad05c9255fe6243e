package export

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ohler55/ojg/oj"

	"github.com/mathhub/mdh-explorer/pkg/types"
)

// Info describes an exporter to callers choosing a format.
type Info struct {
	Slug        string `json:"slug"`
	DisplayName string `json:"displayName"`
	Extension   string `json:"extension"`
	ContentType string `json:"contentType"`
}

// Artifact is the finished, downloadable result of an export.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// Accumulator folds pages of P into a single artifact. The engine calls
// Add zero or more times followed by exactly one Close.
type Accumulator[P any] interface {
	// Add folds one page into the accumulator. index is 1-based.
	Add(ctx context.Context, page []P, index int) error

	// Close releases resources and produces the artifact. When aborted is
	// true partial data is discarded and a nil artifact is returned.
	Close(ctx context.Context, aborted bool) (*Artifact, error)
}

// RowExporter exports whole items of a collection.
type RowExporter interface {
	Info() Info

	// Open starts a new accumulation. A nil accumulator with a nil error
	// means the exporter declined and nothing will be fetched.
	Open(ctx context.Context, coll *types.Collection) (Accumulator[types.Item], error)
}

// ValueExporter exports the values of a single column.
type ValueExporter interface {
	Info() Info

	// Open starts a new accumulation for prop. See RowExporter.Open.
	Open(ctx context.Context, coll *types.Collection, prop types.Property) (Accumulator[any], error)
}

// FileName builds the artifact name for a collection export.
func FileName(coll *types.Collection, suffix string, info Info) string {
	base := "export"
	if coll != nil && coll.Slug != "" {
		base = coll.Slug
	}
	if suffix != "" {
		base += "-" + suffix
	}
	if info.Extension == "" {
		return base
	}
	return base + "." + info.Extension
}

// FormatValue renders a decoded JSON value as a single string. Objects and
// arrays are serialized as JSON, null becomes "".
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	case map[string]any, []any:
		b, err := oj.Marshal(x)
		if err != nil {
			return fmt.Sprintf("%v", x)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", x)
	}
}
