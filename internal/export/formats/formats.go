// Package formats holds the concrete exporters: whole-row formats for a
// collection and value formats for a single column.
package formats

import (
	"context"

	"github.com/mathhub/mdh-explorer/internal/export"
)

// Rows returns the built-in row exporters.
func Rows() []export.RowExporter {
	return []export.RowExporter{JSON{}, NDJSON{}, CSV{}, XLSX{}}
}

// Values returns the value exporters that are not tied to a codec.
func Values() []export.ValueExporter {
	return []export.ValueExporter{Text{}, JSONValues{}, Magma{}}
}

// LookupRow finds a row exporter by slug.
func LookupRow(slug string) (export.RowExporter, bool) {
	for _, e := range Rows() {
		if e.Info().Slug == slug {
			return e, true
		}
	}
	return nil, false
}

// LookupValue finds a value exporter by slug among candidates, or among
// Values when candidates is empty.
func LookupValue(slug string, candidates ...export.ValueExporter) (export.ValueExporter, bool) {
	if len(candidates) == 0 {
		candidates = Values()
	}
	for _, e := range candidates {
		if e.Info().Slug == slug {
			return e, true
		}
	}
	return nil, false
}

// list is the accumulator shared by exporters that only need every value
// before rendering.
type list[P any] struct {
	values []P
	render func(values []P) ([]byte, error)
	name   string
	info   export.Info
}

func (l *list[P]) Add(_ context.Context, page []P, _ int) error {
	l.values = append(l.values, page...)
	return nil
}

func (l *list[P]) Close(_ context.Context, aborted bool) (*export.Artifact, error) {
	values := l.values
	l.values = nil
	if aborted {
		return nil, nil
	}
	data, err := l.render(values)
	if err != nil {
		return nil, err
	}
	return &export.Artifact{Name: l.name, ContentType: l.info.ContentType, Data: data}, nil
}
