package ledgerrpc

import (
	"context"
	"net/http"
	"strconv"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// NewGateway returns an HTTP/JSON reverse proxy for LedgerService over cc:
//
//	GET /v1/ledger                 Head
//	GET /v1/ledger/verify          Verify
//	GET /v1/ledger/blocks          Snapshot
//	GET /v1/ledger/blocks/{index}  GetBlock
func NewGateway(cc grpc.ClientConnInterface) (*runtime.ServeMux, error) {
	mux := runtime.NewServeMux(
		runtime.WithMarshalerOption(runtime.MIMEWildcard, &runtime.JSONPb{
			MarshalOptions: protojson.MarshalOptions{
				UseProtoNames:   true,
				EmitUnpopulated: false,
			},
		}),
	)
	client := NewClient(cc)

	routes := []struct {
		pattern string
		call    func(ctx context.Context, params map[string]string) (proto.Message, error)
	}{
		{"/v1/ledger", func(ctx context.Context, _ map[string]string) (proto.Message, error) {
			return client.head(ctx)
		}},
		{"/v1/ledger/verify", func(ctx context.Context, _ map[string]string) (proto.Message, error) {
			return client.verify(ctx)
		}},
		{"/v1/ledger/blocks", func(ctx context.Context, _ map[string]string) (proto.Message, error) {
			return client.snapshot(ctx)
		}},
		{"/v1/ledger/blocks/{index}", func(ctx context.Context, params map[string]string) (proto.Message, error) {
			idx, err := strconv.ParseInt(params["index"], 10, 64)
			if err != nil {
				return nil, status.Errorf(codes.InvalidArgument, "index %q is not an integer", params["index"])
			}
			return client.getBlock(ctx, idx)
		}},
	}

	for _, rt := range routes {
		call := rt.call
		err := mux.HandlePath(http.MethodGet, rt.pattern, func(w http.ResponseWriter, r *http.Request, params map[string]string) {
			ctx := runtime.NewServerMetadataContext(r.Context(), runtime.ServerMetadata{})
			_, outbound := runtime.MarshalerForRequest(mux, r)
			resp, err := call(ctx, params)
			if err != nil {
				runtime.HTTPError(ctx, mux, outbound, w, r, err)
				return
			}
			runtime.ForwardResponseMessage(ctx, mux, outbound, w, r, resp)
		})
		if err != nil {
			return nil, err
		}
	}
	return mux, nil
}
