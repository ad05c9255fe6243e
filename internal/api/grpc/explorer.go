// Package grpc provides the gRPC API of the explorer. Messages are
// google.protobuf.Struct values carrying the same JSON documents as the
// HTTP API, so no generated code is needed on either side.
package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mathhub/mdh-explorer/internal/api/service"
	apperrors "github.com/mathhub/mdh-explorer/internal/errors"
	"github.com/mathhub/mdh-explorer/internal/filter"
	"github.com/mathhub/mdh-explorer/internal/jobs"
	"github.com/mathhub/mdh-explorer/pkg/types"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "mdh.v1.Explorer"

// ExplorerService is the server API of the Explorer service.
type ExplorerService interface {
	ListCodecs(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CleanFilters(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	QueryCollection(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CountItems(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SubmitExport(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetExport(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CancelExport(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type method func(ExplorerService, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, m method) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return m(srv.(ExplorerService), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			handler := func(ctx context.Context, req any) (any, error) {
				return m(srv.(ExplorerService), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes the Explorer service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ExplorerService)(nil),
	Methods: []grpc.MethodDesc{
		unary("ListCodecs", ExplorerService.ListCodecs),
		unary("CleanFilters", ExplorerService.CleanFilters),
		unary("QueryCollection", ExplorerService.QueryCollection),
		unary("CountItems", ExplorerService.CountItems),
		unary("SubmitExport", ExplorerService.SubmitExport),
		unary("GetExport", ExplorerService.GetExport),
		unary("CancelExport", ExplorerService.CancelExport),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mdh/v1/explorer.proto",
}

// RegisterExplorerServer registers srv on s.
func RegisterExplorerServer(s grpc.ServiceRegistrar, srv ExplorerService) {
	s.RegisterService(&ServiceDesc, srv)
}

// ExplorerServer implements ExplorerService on top of the explorer
// operations and the export job manager.
type ExplorerServer struct {
	explorer *service.Explorer
	jobs     *jobs.Manager
}

var _ ExplorerService = (*ExplorerServer)(nil)

// NewExplorerServer creates a new gRPC explorer server. m may be nil, in
// which case the export methods report Unimplemented.
func NewExplorerServer(explorer *service.Explorer, m *jobs.Manager) *ExplorerServer {
	return &ExplorerServer{explorer: explorer, jobs: m}
}

// QueryRequest is the request of QueryCollection. State is the URL state
// of the explorer page.
type QueryRequest struct {
	Collection string `json:"collection"`
	State      string `json:"state,omitempty"`
	Order      string `json:"order,omitempty"`
}

// CountRequest is the request of CountItems.
type CountRequest struct {
	Collection string         `json:"collection"`
	Filters    []types.Filter `json:"filters,omitempty"`
}

// ExportRequest names an export job.
type ExportRequest struct {
	ID string `json:"id"`
}

// ListCodecs describes the registered codecs.
func (s *ExplorerServer) ListCodecs(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	requestID := extractRequestID(ctx)
	return respond(ctx, requestID, map[string]any{"codecs": s.explorer.Codecs()})
}

// CleanFilters validates filters; see service.Explorer.Clean.
func (s *ExplorerServer) CleanFilters(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	requestID := extractRequestID(ctx)

	var req service.CleanRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	res, err := s.explorer.Clean(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	return respond(ctx, requestID, res)
}

// QueryCollection runs a collection query.
func (s *ExplorerServer) QueryCollection(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	requestID := extractRequestID(ctx)

	var req QueryRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	if req.Collection == "" {
		return nil, status.Error(codes.InvalidArgument, "collection is required")
	}

	st, _ := filter.DecodeState(req.State)
	res, err := s.explorer.Query(ctx, req.Collection, st, req.Order)
	if err != nil {
		return nil, toStatus(err)
	}
	return respond(ctx, requestID, res)
}

// CountItems counts the items matching a list of filters.
func (s *ExplorerServer) CountItems(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	requestID := extractRequestID(ctx)

	var req CountRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	if req.Collection == "" {
		return nil, status.Error(codes.InvalidArgument, "collection is required")
	}

	n, err := s.explorer.Count(ctx, req.Collection, req.Filters)
	if err != nil {
		return nil, toStatus(err)
	}
	return respond(ctx, requestID, map[string]any{"collection": req.Collection, "count": n})
}

// SubmitExport queues an export job.
func (s *ExplorerServer) SubmitExport(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.jobs == nil {
		return nil, status.Error(codes.Unimplemented, "exports are disabled")
	}
	requestID := extractRequestID(ctx)

	var spec jobs.Spec
	if err := decode(in, &spec); err != nil {
		return nil, err
	}
	rec, err := s.jobs.Submit(spec)
	if err != nil {
		return nil, toStatus(err)
	}
	if stats := s.explorer.Stats(); stats != nil {
		stats.RecordExport(spec.Collection, spec.Format)
		stats.RecordPredicate(spec.Collection, spec.Predicate)
	}
	return respond(ctx, requestID, rec)
}

// GetExport reports the state of an export job.
func (s *ExplorerServer) GetExport(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.jobs == nil {
		return nil, status.Error(codes.Unimplemented, "exports are disabled")
	}
	requestID := extractRequestID(ctx)

	var req ExportRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	rec, ok := s.jobs.Get(req.ID)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "export %s not found", req.ID)
	}
	return respond(ctx, requestID, rec)
}

// CancelExport cancels an export job at its next page boundary.
func (s *ExplorerServer) CancelExport(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.jobs == nil {
		return nil, status.Error(codes.Unimplemented, "exports are disabled")
	}
	requestID := extractRequestID(ctx)

	var req ExportRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	if !s.jobs.Cancel(req.ID) {
		return nil, status.Errorf(codes.NotFound, "export %s not found", req.ID)
	}
	rec, _ := s.jobs.Get(req.ID)
	return respond(ctx, requestID, rec)
}

// decode converts a Struct into v through its JSON form.
func decode(in *structpb.Struct, v any) error {
	data, err := protojson.Marshal(in)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	return nil
}

// encode converts v into a Struct through its JSON form.
func encode(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

// respond encodes v, adds the request ID to it and echoes the ID in the
// response header.
func respond(ctx context.Context, requestID string, v any) (*structpb.Struct, error) {
	out, err := encode(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	if out.Fields == nil {
		out.Fields = map[string]*structpb.Value{}
	}
	out.Fields["request_id"] = structpb.NewStringValue(requestID)
	if err := grpc.SetHeader(ctx, metadata.Pairs("x-request-id", requestID)); err != nil {
		log.Printf("[grpc] %s: failed to set header: %v", requestID, err)
	}
	return out, nil
}

// toStatus maps an explorer error onto a gRPC status.
func toStatus(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}

	switch apperrors.GetCategory(err) {
	case apperrors.ErrCategoryNotFound:
		return status.Error(codes.NotFound, err.Error())
	case apperrors.ErrCategoryValidation:
		return status.Error(codes.InvalidArgument, err.Error())
	case apperrors.ErrCategoryTransport:
		return status.Error(codes.Unavailable, err.Error())
	case apperrors.ErrCategoryExport:
		if apperrors.GetCode(err) == apperrors.CodeExportRunning {
			return status.Error(codes.FailedPrecondition, err.Error())
		}
	}
	return status.Error(codes.Internal, fmt.Sprintf("internal error: %v", err))
}

// extractRequestID extracts or generates a request ID from the gRPC context.
func extractRequestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get("x-request-id"); len(ids) > 0 {
			return ids[0]
		}
	}
	return uuid.New().String()
}
