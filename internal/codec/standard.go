package codec

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/oj"

	"github.com/mathhub/mdh-explorer/internal/export"
	"github.com/mathhub/mdh-explorer/internal/export/formats"
	"github.com/mathhub/mdh-explorer/pkg/types"
)

// numericFilter matches an optional comparison operator followed by a
// non-negative decimal number.
var numericFilter = regexp.MustCompile(`^(=|==|<=|>=|<|>|<>|!=)?(\d+\.?\d*)$`)

// StandardInt is the ordered integer codec. Filter values are strings of
// the form "<op><number>".
type StandardInt struct{}

func (StandardInt) Slug() string      { return "StandardInt" }
func (StandardInt) Ordered() Ordering { return Ascending }

func (StandardInt) Present(value any) Cell {
	return Cell{Text: export.FormatValue(value)}
}

func (StandardInt) FilterInput() InputKind { return InputText }

func (StandardInt) ViewFilter(value any) string {
	s, _ := value.(string)
	return s
}

// ParseFilterValue returns the raw string, or "" when raw is nil.
func (StandardInt) ParseFilterValue(raw *string) any {
	if raw == nil {
		return ""
	}
	return *raw
}

// CleanFilterValue strips whitespace, checks the grammar and canonicalizes
// the operator: a bare number, "=" and "==" become "=", "<>" and "!="
// become "!=".
func (StandardInt) CleanFilterValue(value any, lastValid *string) types.ValidationResult {
	s, ok := value.(string)
	if !ok {
		return types.Reject("expected a comparison such as >=3")
	}
	s = strings.Join(strings.Fields(s), "")

	m := numericFilter.FindStringSubmatch(s)
	if m == nil {
		return types.Reject("")
	}

	op := m[1]
	switch op {
	case "", "=", "==":
		op = "="
	case "<>", "!=":
		op = "!="
	}
	return types.Accept(op + m[2])
}

// StandardBool is the boolean codec. Its filter value is a bool that
// defaults to true.
type StandardBool struct{}

func (StandardBool) Slug() string      { return "StandardBool" }
func (StandardBool) Ordered() Ordering { return Unordered }

func (StandardBool) Present(value any) Cell {
	return Cell{Text: export.FormatValue(value)}
}

func (StandardBool) FilterInput() InputKind { return InputToggle }

func (StandardBool) ViewFilter(value any) string {
	if b, ok := value.(bool); ok && !b {
		return "not"
	}
	return ""
}

// ParseFilterValue reads back "=true"/"=false"; anything else yields true.
func (StandardBool) ParseFilterValue(raw *string) any {
	if raw == nil {
		return true
	}
	v := strings.TrimPrefix(strings.TrimSpace(*raw), "=")
	b, err := strconv.ParseBool(v)
	if err != nil {
		return true
	}
	return b
}

func (StandardBool) CleanFilterValue(value any, lastValid *string) types.ValidationResult {
	b, ok := value.(bool)
	if !ok {
		b = true
	}
	return types.Accept("=" + strconv.FormatBool(b))
}

// StandardString is the ordered, unfilterable text codec.
type StandardString struct {
	noFilter
}

func (StandardString) Slug() string      { return "StandardString" }
func (StandardString) Ordered() Ordering { return Ascending }

func (StandardString) Present(value any) Cell {
	return Cell{Text: export.FormatValue(value)}
}

func (StandardString) ToClipboardValue(value any) (string, bool) {
	return export.FormatValue(value), true
}

func (StandardString) Exporters() []export.ValueExporter {
	return []export.ValueExporter{formats.Text{}}
}

// StandardJSON holds arbitrary JSON values.
type StandardJSON struct {
	noFilter
}

func (StandardJSON) Slug() string      { return "StandardJSON" }
func (StandardJSON) Ordered() Ordering { return Unordered }

func (c StandardJSON) Present(value any) Cell {
	if value == nil {
		return Cell{}
	}
	s, _ := c.ToClipboardValue(value)
	return Cell{Text: s}
}

func (StandardJSON) ToClipboardValue(value any) (string, bool) {
	b, err := oj.Marshal(value)
	if err != nil {
		return "", false
	}
	return string(b), true
}

func (StandardJSON) Exporters() []export.ValueExporter {
	return []export.ValueExporter{formats.JSONValues{}}
}
