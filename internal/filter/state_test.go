package filter

import (
	"net/url"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathhub/mdh-explorer/pkg/types"
)

func TestState_RoundTrip(t *testing.T) {
	s := State{
		Filters: []types.Filter{},
		Columns: []string{"test"},
		Widths:  nil,
		Page:    1,
		PerPage: 20,
	}

	enc := EncodeState(s)
	dec, ok := DecodeState(enc)
	require.True(t, ok)
	assert.Equal(t, s, dec)
	assert.Nil(t, dec.Widths)
	assert.NotNil(t, dec.Filters)
}

func TestState_EncodingLayout(t *testing.T) {
	s := State{
		PerPage: 20,
		Page:    2,
		Filters: []types.Filter{{UID: 9, Slug: "n", Value: types.StringPtr(">=3")}, {UID: 10, Slug: "m"}},
		Columns: []string{"n", "m"},
	}

	enc := EncodeState(s)
	values, err := url.ParseQuery(enc)
	require.NoError(t, err)

	assert.Equal(t, "20", values.Get("per_page"))
	assert.Equal(t, "2", values.Get("page"))
	assert.Equal(t, `[{"slug":"n","value":">=3"},{"slug":"m","value":null}]`, values.Get("filters"))
	assert.Equal(t, `["n","m"]`, values.Get("columns"))
	assert.Equal(t, "null", values.Get("widths"))

	// fixed key order
	assert.Regexp(t, `^per_page=.*&page=.*&filters=.*&columns=.*&widths=null$`, enc)

	dec, ok := DecodeState(enc)
	require.True(t, ok)
	require.Len(t, dec.Filters, 2)
	assert.Zero(t, dec.Filters[0].UID)
	assert.Nil(t, dec.Filters[1].Value)
}

func TestDecodeState_Empty(t *testing.T) {
	_, ok := DecodeState("")
	assert.False(t, ok)
	_, ok = DecodeState("?")
	assert.False(t, ok)
	_, ok = DecodeState("order=%22x%22&other=1")
	assert.False(t, ok)
}

func TestDecodeState_SkipsBadValues(t *testing.T) {
	s, ok := DecodeState("page=3&per_page=notjson&columns=%5B%22a%22%5D&unknown=1")
	require.True(t, ok)
	assert.Equal(t, 3, s.Page)
	assert.Zero(t, s.PerPage)
	assert.Equal(t, []string{"a"}, s.Columns)
}

func TestDecodeState_LeadingQuestionMark(t *testing.T) {
	s, ok := DecodeState("?" + EncodeState(State{Page: 4}))
	require.True(t, ok)
	assert.Equal(t, 4, s.Page)
}

func TestState_Predicate(t *testing.T) {
	s := State{Filters: []types.Filter{{Slug: "n", Value: types.StringPtr("=1")}}}
	pf := &types.PreFilter{Condition: "x"}
	p := s.Predicate(pf)
	require.Len(t, p.Filters, 1)
	assert.NotZero(t, p.Filters[0].UID)
	assert.Same(t, pf, p.PreFilter)
}

func TestState_RoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	genFilter := gopter.CombineGens(
		gen.Identifier(),
		gen.RegexMatch(`^[=<>!&+ %#?0-9a-z"]{0,8}$`),
		gen.Bool(),
	).Map(func(v []interface{}) types.Filter {
		f := types.Filter{Slug: v[0].(string)}
		if v[2].(bool) {
			f.Value = types.StringPtr(v[1].(string))
		}
		return f
	})

	properties.Property("decode(encode(s)) == s", prop.ForAll(
		func(perPage, page int, filters []types.Filter, columns []string, widths []float64) bool {
			s := State{PerPage: perPage, Page: page, Filters: filters, Columns: columns, Widths: widths}
			dec, ok := DecodeState(EncodeState(s))
			return ok && reflect.DeepEqual(s, dec)
		},
		gen.IntRange(1, 1000),
		gen.IntRange(1, 1000),
		gen.SliceOf(genFilter),
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.Float64Range(0, 2000)),
	))

	properties.TestingRun(t)
}
