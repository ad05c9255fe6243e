package formats

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/mathhub/mdh-explorer/internal/export"
	"github.com/mathhub/mdh-explorer/pkg/types"
)

// NDJSON exports one JSON object per line, the format read by the Sage
// converter.
type NDJSON struct{}

func (NDJSON) Info() export.Info {
	return export.Info{Slug: "sage-cvt", DisplayName: "Sage", Extension: "json", ContentType: "application/x-ndjson"}
}

func (e NDJSON) Open(_ context.Context, coll *types.Collection) (export.Accumulator[types.Item], error) {
	return &ndjsonAcc{name: export.FileName(coll, "sage", e.Info()), info: e.Info()}, nil
}

type ndjsonAcc struct {
	buf  bytes.Buffer
	name string
	info export.Info
}

func (a *ndjsonAcc) Add(_ context.Context, page []types.Item, _ int) error {
	enc := json.NewEncoder(&a.buf)
	for _, item := range page {
		if err := enc.Encode(item); err != nil {
			return err
		}
	}
	return nil
}

func (a *ndjsonAcc) Close(_ context.Context, aborted bool) (*export.Artifact, error) {
	defer a.buf.Reset()
	if aborted {
		return nil, nil
	}
	data := append([]byte(nil), a.buf.Bytes()...)
	return &export.Artifact{Name: a.name, ContentType: a.info.ContentType, Data: data}, nil
}
