package formats

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/mathhub/mdh-explorer/internal/export"
	"github.com/mathhub/mdh-explorer/pkg/types"
)

const xlsxSheet = "Sheet1"

// XLSX exports items into a single-sheet workbook headed by property
// display names.
type XLSX struct{}

func (XLSX) Info() export.Info {
	return export.Info{
		Slug:        "xlsx",
		DisplayName: "Excel",
		Extension:   "xlsx",
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	}
}

func (e XLSX) Open(_ context.Context, coll *types.Collection) (export.Accumulator[types.Item], error) {
	f := excelize.NewFile()
	sw, err := f.NewStreamWriter(xlsxSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet writer: %w", err)
	}

	a := &xlsxAcc{file: f, sw: sw, name: export.FileName(coll, "", e.Info()), info: e.Info()}
	header := []interface{}{types.ItemIDKey}
	a.columns = append(a.columns, types.ItemIDKey)
	for _, p := range coll.Properties {
		a.columns = append(a.columns, p.Slug)
		header = append(header, p.DisplayName)
	}
	if err := a.writeRow(header); err != nil {
		f.Close()
		return nil, err
	}
	return a, nil
}

type xlsxAcc struct {
	file    *excelize.File
	sw      *excelize.StreamWriter
	columns []string
	row     int
	name    string
	info    export.Info
}

func (a *xlsxAcc) writeRow(values []interface{}) error {
	a.row++
	cell, err := excelize.CoordinatesToCellName(1, a.row)
	if err != nil {
		return err
	}
	return a.sw.SetRow(cell, values)
}

func (a *xlsxAcc) Add(_ context.Context, page []types.Item, _ int) error {
	for _, item := range page {
		values := make([]interface{}, len(a.columns))
		for i, c := range a.columns {
			switch v := item[c].(type) {
			case float64, bool, string:
				values[i] = v
			default:
				values[i] = export.FormatValue(v)
			}
		}
		if err := a.writeRow(values); err != nil {
			return err
		}
	}
	return nil
}

func (a *xlsxAcc) Close(_ context.Context, aborted bool) (*export.Artifact, error) {
	defer a.file.Close()
	if aborted {
		return nil, nil
	}
	if err := a.sw.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush sheet: %w", err)
	}
	buf, err := a.file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return &export.Artifact{Name: a.name, ContentType: a.info.ContentType, Data: buf.Bytes()}, nil
}
