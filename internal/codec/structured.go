package codec

import (
	"fmt"
	"strings"

	"github.com/mathhub/mdh-explorer/internal/export"
	"github.com/mathhub/mdh-explorer/pkg/types"
)

// ListAsArray is a list of values of an element codec.
type ListAsArray struct {
	Element Codec
}

func (c ListAsArray) Slug() string      { return "ListAsArray_" + c.Element.Slug() }
func (c ListAsArray) Ordered() Ordering { return Unordered }

func (c ListAsArray) Present(value any) Cell {
	list, ok := value.([]any)
	if !ok {
		return Cell{Text: export.FormatValue(value)}
	}
	parts := make([]string, len(list))
	for i, v := range list {
		parts[i] = c.Element.Present(v).Text
	}
	return Cell{Text: "[" + strings.Join(parts, ", ") + "]"}
}

func (c ListAsArray) ParseFilterValue(*string) any { return nil }

func (c ListAsArray) CleanFilterValue(any, *string) types.ValidationResult {
	return unsupported("ListAsArray")
}

// MatrixAsList is a rows x columns matrix of an element codec, stored in
// row-major order as a flat list.
type MatrixAsList struct {
	Element Codec
	Rows    int
	Columns int
}

func (c MatrixAsList) Slug() string {
	return fmt.Sprintf("MatrixAsList_%s_%d_%d", c.Element.Slug(), c.Rows, c.Columns)
}

func (c MatrixAsList) Ordered() Ordering { return Unordered }

func (c MatrixAsList) Present(value any) Cell {
	list, ok := value.([]any)
	if !ok {
		return Cell{Text: export.FormatValue(value)}
	}
	cell := Cell{Text: export.FormatValue(value)}
	for _, chunk := range chunk(list, c.Columns) {
		row := make([]string, len(chunk))
		for i, v := range chunk {
			row[i] = c.Element.Present(v).Text
		}
		cell.Rows = append(cell.Rows, row)
	}
	return cell
}

func (c MatrixAsList) ParseFilterValue(*string) any { return nil }

func (c MatrixAsList) CleanFilterValue(any, *string) types.ValidationResult {
	return unsupported("MatrixAsList")
}

// chunk splits list into consecutive slices of at most size elements.
func chunk[T any](list []T, size int) [][]T {
	if size <= 0 {
		return [][]T{list}
	}
	out := make([][]T, 0, (len(list)+size-1)/size)
	for len(list) > size {
		out = append(out, list[:size])
		list = list[size:]
	}
	if len(list) > 0 {
		out = append(out, list)
	}
	return out
}
