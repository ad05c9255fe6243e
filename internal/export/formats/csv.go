package formats

import (
	"bytes"
	"context"
	"encoding/csv"

	"github.com/mathhub/mdh-explorer/internal/export"
	"github.com/mathhub/mdh-explorer/pkg/types"
)

// CSV exports items as comma separated values with a slug header row.
type CSV struct{}

func (CSV) Info() export.Info {
	return export.Info{Slug: "csv", DisplayName: "CSV", Extension: "csv", ContentType: "text/csv"}
}

func (e CSV) Open(_ context.Context, coll *types.Collection) (export.Accumulator[types.Item], error) {
	a := &csvAcc{name: export.FileName(coll, "", e.Info()), info: e.Info()}
	a.w = csv.NewWriter(&a.buf)
	a.columns = append(a.columns, types.ItemIDKey)
	for _, p := range coll.Properties {
		a.columns = append(a.columns, p.Slug)
	}
	if err := a.w.Write(a.columns); err != nil {
		return nil, err
	}
	return a, nil
}

type csvAcc struct {
	buf     bytes.Buffer
	w       *csv.Writer
	columns []string
	name    string
	info    export.Info
}

func (a *csvAcc) Add(_ context.Context, page []types.Item, _ int) error {
	record := make([]string, len(a.columns))
	for _, item := range page {
		for i, c := range a.columns {
			record[i] = export.FormatValue(item[c])
		}
		if err := a.w.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func (a *csvAcc) Close(_ context.Context, aborted bool) (*export.Artifact, error) {
	defer a.buf.Reset()
	if aborted {
		return nil, nil
	}
	a.w.Flush()
	if err := a.w.Error(); err != nil {
		return nil, err
	}
	data := append([]byte(nil), a.buf.Bytes()...)
	return &export.Artifact{Name: a.name, ContentType: a.info.ContentType, Data: data}, nil
}
