package codec

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/mathhub/mdh-explorer/pkg/types"
)

// PolynomialAsSparseArray stores a1*x^b1 + a2*x^b2 + ... as the flat list
// [..., b2, a2, b1, a1].
type PolynomialAsSparseArray struct{}

func (PolynomialAsSparseArray) Slug() string      { return "PolynomialAsSparseArray" }
func (PolynomialAsSparseArray) Ordered() Ordering { return Unordered }

func (PolynomialAsSparseArray) ParseFilterValue(*string) any { return nil }

func (PolynomialAsSparseArray) CleanFilterValue(any, *string) types.ValidationResult {
	return unsupported("PolynomialAsSparseArray")
}

func (PolynomialAsSparseArray) Present(value any) Cell {
	terms, ok := sparseTerms(value)
	if !ok {
		return Cell{}
	}
	var b strings.Builder
	for _, t := range terms {
		if t.coeff == 0 {
			continue
		}
		coeff := strconv.FormatInt(t.coeff, 10)
		if t.coeff == 1 && t.exp != 0 {
			coeff = ""
		}
		if t.coeff > 0 && b.Len() > 0 {
			b.WriteString("+")
		}
		b.WriteString(coeff)
		switch t.exp {
		case 0:
		case 1:
			b.WriteString("x")
		default:
			b.WriteString("x^" + strconv.FormatInt(t.exp, 10))
		}
	}
	return Cell{Text: b.String()}
}

// FactorizationAsSparseArray stores p1^e1 * p2^e2 * ... as the flat list
// [..., e2, p2, e1, p1].
type FactorizationAsSparseArray struct{}

func (FactorizationAsSparseArray) Slug() string      { return "FactorizationAsSparseArray" }
func (FactorizationAsSparseArray) Ordered() Ordering { return Unordered }

func (FactorizationAsSparseArray) ParseFilterValue(*string) any { return nil }

func (FactorizationAsSparseArray) CleanFilterValue(any, *string) types.ValidationResult {
	return unsupported("FactorizationAsSparseArray")
}

func (FactorizationAsSparseArray) Present(value any) Cell {
	terms, ok := sparseTerms(value)
	if !ok {
		return Cell{}
	}
	var parts []string
	for _, t := range terms {
		if t.coeff == 0 || t.coeff == 1 || t.exp == 0 {
			continue
		}
		s := strconv.FormatInt(t.coeff, 10)
		if t.exp != 1 {
			s += "^" + strconv.FormatInt(t.exp, 10)
		}
		parts = append(parts, s)
	}
	return Cell{Text: strings.Join(parts, "·")}
}

type sparseTerm struct {
	exp   int64
	coeff int64
}

// sparseTerms reads [..., e2, c2, e1, c1] into terms ordered from the
// last pair to the first.
func sparseTerms(value any) ([]sparseTerm, bool) {
	list, ok := value.([]any)
	if !ok {
		return nil, false
	}
	pairs := chunk(list, 2)
	terms := make([]sparseTerm, 0, len(pairs))
	for i := len(pairs) - 1; i >= 0; i-- {
		p := pairs[i]
		if len(p) != 2 {
			continue
		}
		exp, ok1 := toInt(p[0])
		coeff, ok2 := toInt(p[1])
		if !ok1 || !ok2 {
			return nil, false
		}
		terms = append(terms, sparseTerm{exp: exp, coeff: coeff})
	}
	return terms, true
}

func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case float64:
		return int64(x), x == float64(int64(x))
	case int:
		return int64(x), true
	case int64:
		return x, true
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}
