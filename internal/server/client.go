package server

import (
	"context"

	"github.com/triage-ai/palisade-moderation/internal/service"
	"google.golang.org/grpc"
)

// Client calls ModerationService over a gRPC connection using the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...)
}

func (c *Client) Moderate(ctx context.Context, in *service.ModerateRequest, opts ...grpc.CallOption) (*service.Outcome, error) {
	out := new(service.Outcome)
	if err := c.invoke(ctx, "Moderate", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ModerateBatch(ctx context.Context, in *service.ModerateBatchRequest, opts ...grpc.CallOption) (*service.ModerateBatchResponse, error) {
	out := new(service.ModerateBatchResponse)
	if err := c.invoke(ctx, "ModerateBatch", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AddWords(ctx context.Context, in *service.AddWordsRequest, opts ...grpc.CallOption) (*service.AddWordsResponse, error) {
	out := new(service.AddWordsResponse)
	if err := c.invoke(ctx, "AddWords", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CheckProfanity(ctx context.Context, in *service.ProfanityRequest, opts ...grpc.CallOption) (*service.ProfanityResponse, error) {
	out := new(service.ProfanityResponse)
	if err := c.invoke(ctx, "CheckProfanity", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
