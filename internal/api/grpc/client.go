package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mathhub/mdh-explorer/internal/api/service"
	"github.com/mathhub/mdh-explorer/internal/jobs"
)

// ExplorerClient calls the Explorer service.
type ExplorerClient struct {
	cc grpc.ClientConnInterface
}

// NewExplorerClient creates a client on cc.
func NewExplorerClient(cc grpc.ClientConnInterface) *ExplorerClient {
	return &ExplorerClient{cc: cc}
}

// Invoke calls the named method with req encoded as a Struct and decodes
// the response into resp when resp is non-nil.
func (c *ExplorerClient) Invoke(ctx context.Context, name string, req, resp any, opts ...grpc.CallOption) error {
	in, err := encode(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+name, in, out, opts...); err != nil {
		return err
	}
	if resp == nil {
		return nil
	}
	return decode(out, resp)
}

// CleanFilters calls CleanFilters.
func (c *ExplorerClient) CleanFilters(ctx context.Context, req service.CleanRequest, opts ...grpc.CallOption) (*service.CleanResult, error) {
	var res service.CleanResult
	if err := c.Invoke(ctx, "CleanFilters", req, &res, opts...); err != nil {
		return nil, err
	}
	return &res, nil
}

// QueryCollection calls QueryCollection.
func (c *ExplorerClient) QueryCollection(ctx context.Context, req QueryRequest, opts ...grpc.CallOption) (*service.QueryResult, error) {
	var res service.QueryResult
	if err := c.Invoke(ctx, "QueryCollection", req, &res, opts...); err != nil {
		return nil, err
	}
	return &res, nil
}

// CountItems calls CountItems.
func (c *ExplorerClient) CountItems(ctx context.Context, req CountRequest, opts ...grpc.CallOption) (int64, error) {
	var res struct {
		Count int64 `json:"count"`
	}
	if err := c.Invoke(ctx, "CountItems", req, &res, opts...); err != nil {
		return 0, err
	}
	return res.Count, nil
}

// SubmitExport calls SubmitExport.
func (c *ExplorerClient) SubmitExport(ctx context.Context, spec jobs.Spec, opts ...grpc.CallOption) (*jobs.Record, error) {
	var rec jobs.Record
	if err := c.Invoke(ctx, "SubmitExport", spec, &rec, opts...); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetExport calls GetExport.
func (c *ExplorerClient) GetExport(ctx context.Context, id string, opts ...grpc.CallOption) (*jobs.Record, error) {
	var rec jobs.Record
	if err := c.Invoke(ctx, "GetExport", ExportRequest{ID: id}, &rec, opts...); err != nil {
		return nil, err
	}
	return &rec, nil
}
