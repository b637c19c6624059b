package ledgerrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/jmerrifield20/rtcmas/internal/ledger"
)

// HeadInfo is the decoded Head response.
type HeadInfo struct {
	Length int
	Root   string
	Head   ledger.Block
}

// VerifyResult is the decoded Verify response. Index is -1 unless a specific
// block was blamed.
type VerifyResult struct {
	Valid bool
	Error string
	Index int
}

// Client calls LedgerService.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) head(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, headMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) verify(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, verifyMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) snapshot(ctx context.Context, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, snapshotMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) getBlock(ctx context.Context, index int64, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getBlockMethod, wrapperspb.Int64(index), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Head returns the chain length, root and tail block.
func (c *Client) Head(ctx context.Context) (HeadInfo, error) {
	s, err := c.head(ctx)
	if err != nil {
		return HeadInfo{}, err
	}
	head, err := blockFromStruct(s.GetFields()["head"].GetStructValue())
	if err != nil {
		return HeadInfo{}, err
	}
	return HeadInfo{
		Length: int(s.GetFields()["length"].GetNumberValue()),
		Root:   s.GetFields()["root"].GetStringValue(),
		Head:   head,
	}, nil
}

// Verify asks the server to walk its chain.
func (c *Client) Verify(ctx context.Context) (VerifyResult, error) {
	s, err := c.verify(ctx)
	if err != nil {
		return VerifyResult{}, err
	}
	f := s.GetFields()
	res := VerifyResult{
		Valid: f["valid"].GetBoolValue(),
		Error: f["error"].GetStringValue(),
		Index: -1,
	}
	if v, ok := f["index"]; ok {
		res.Index = int(v.GetNumberValue())
	}
	return res, nil
}

// Snapshot fetches the full chain. The result can be checked locally with
// ledger.VerifyBlocks.
func (c *Client) Snapshot(ctx context.Context) ([]ledger.Block, error) {
	list, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	blocks := make([]ledger.Block, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		b, err := blockFromStruct(v.GetStructValue())
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// GetBlock fetches one block.
func (c *Client) GetBlock(ctx context.Context, index int) (ledger.Block, error) {
	s, err := c.getBlock(ctx, int64(index))
	if err != nil {
		return ledger.Block{}, err
	}
	return blockFromStruct(s)
}
