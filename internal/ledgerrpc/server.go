package ledgerrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/jmerrifield20/rtcmas/internal/ledger"
)

// Server implements LedgerServiceServer over a ledger.Reader.
type Server struct {
	ledger ledger.Reader
}

// NewServer creates a Server.
func NewServer(l ledger.Reader) *Server {
	return &Server{ledger: l}
}

// Head implements LedgerServiceServer.
func (s *Server) Head(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	blocks := s.ledger.Snapshot()
	head, err := blockValue(blocks[len(blocks)-1])
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"length": structpb.NewNumberValue(float64(len(blocks))),
		"root":   structpb.NewStringValue(blocks[len(blocks)-1].BlockHash),
		"head":   head,
	}}, nil
}

// Verify implements LedgerServiceServer.
func (s *Server) Verify(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	out := map[string]any{"valid": true}
	if err := s.ledger.Check(); err != nil {
		out["valid"] = false
		out["error"] = err.Error()
		var ierr *ledger.IntegrityError
		if errors.As(err, &ierr) {
			out["index"] = ierr.Index
		}
	}
	return structpb.NewStruct(out)
}

// Snapshot implements LedgerServiceServer.
func (s *Server) Snapshot(_ context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	blocks := s.ledger.Snapshot()
	list := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(blocks))}
	for _, b := range blocks {
		v, err := blockValue(b)
		if err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
		list.Values = append(list.Values, v)
	}
	return list, nil
}

// GetBlock implements LedgerServiceServer.
func (s *Server) GetBlock(_ context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	idx := req.GetValue()
	if idx < 0 {
		return nil, status.Error(codes.InvalidArgument, "index must be non-negative")
	}
	b, err := s.ledger.Get(int(idx))
	if errors.Is(err, ledger.ErrIndexOutOfRange) {
		return nil, status.Errorf(codes.NotFound, "block %d not found", idx)
	}
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	v, err := blockValue(b)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return v.GetStructValue(), nil
}

// NewGRPCServer builds a grpc.Server with the ledger service, the standard
// health service and reflection registered.
func NewGRPCServer(l ledger.Reader, logger *zap.Logger, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(loggingInterceptor(logger))}, opts...)
	srv := grpc.NewServer(opts...)

	RegisterLedgerServiceServer(srv, NewServer(l))

	healthSvc := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, healthSvc)
	healthSvc.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	reflection.Register(srv)
	return srv
}

// loggingInterceptor returns a gRPC unary server interceptor that logs each call.
func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("grpc",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("latency", time.Since(start)),
		)
		return resp, err
	}
}

// blockValue converts a block to a Struct value with the block's JSON field
// names. The payload travels as its canonical JSON text: a nested Struct would
// turn every number into a float64 and break the content hash for integers
// above 2^53.
func blockValue(b ledger.Block) (*structpb.Value, error) {
	if !json.Valid(b.Payload) {
		return nil, fmt.Errorf("encode block %d: payload is not valid JSON", b.Index)
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		"index":         structpb.NewNumberValue(float64(b.Index)),
		"timestamp":     structpb.NewStringValue(b.Timestamp),
		"content_hash":  structpb.NewStringValue(b.ContentHash),
		"payload":       structpb.NewStringValue(string(b.Payload)),
		"previous_hash": structpb.NewStringValue(b.PreviousHash),
		"block_hash":    structpb.NewStringValue(b.BlockHash),
	}}), nil
}

// blockFromStruct reverses blockValue. The payload bytes are restored exactly
// as the server sent them.
func blockFromStruct(s *structpb.Struct) (ledger.Block, error) {
	f := s.GetFields()
	payload, ok := f["payload"].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return ledger.Block{}, errors.New("decode block: payload is not a JSON string")
	}
	idx := f["index"].GetNumberValue()
	if idx != float64(int(idx)) {
		return ledger.Block{}, fmt.Errorf("decode block: index %v is not an integer", idx)
	}
	return ledger.Block{
		Index:        int(idx),
		Timestamp:    f["timestamp"].GetStringValue(),
		ContentHash:  f["content_hash"].GetStringValue(),
		Payload:      json.RawMessage(payload.StringValue),
		PreviousHash: f["previous_hash"].GetStringValue(),
		BlockHash:    f["block_hash"].GetStringValue(),
	}, nil
}
