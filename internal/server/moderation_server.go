package server

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/triage-ai/palisade-moderation/internal/auth"
	"github.com/triage-ai/palisade-moderation/internal/service"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const serviceName = "palisade.moderation.v1.ModerationService"

// ModerationServiceServer is the server API for ModerationService.
type ModerationServiceServer interface {
	Moderate(context.Context, *service.ModerateRequest) (*service.Outcome, error)
	ModerateBatch(context.Context, *service.ModerateBatchRequest) (*service.ModerateBatchResponse, error)
	AddWords(context.Context, *service.AddWordsRequest) (*service.AddWordsResponse, error)
	CheckProfanity(context.Context, *service.ProfanityRequest) (*service.ProfanityResponse, error)
}

// ModerationServer implements ModerationServiceServer on top of a Service.
type ModerationServer struct {
	svc        *service.Service
	auth       auth.Authenticator
	adminToken string // AddWords is refused when empty
	logger     *zap.Logger
}

// NewModerationServer creates a new ModerationServer with the given dependencies.
func NewModerationServer(svc *service.Service, authenticator auth.Authenticator, adminToken string, logger *zap.Logger) *ModerationServer {
	return &ModerationServer{svc: svc, auth: authenticator, adminToken: adminToken, logger: logger}
}

// Register adds the service to a gRPC server.
func Register(s grpc.ServiceRegistrar, srv ModerationServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

func (s *ModerationServer) authenticate(ctx context.Context) (*auth.ClientContext, error) {
	client, err := s.auth.Authenticate(ctx)
	if err == nil {
		return client, nil
	}
	if errors.Is(err, auth.ErrAuthUnavailable) {
		return nil, status.Errorf(codes.Unavailable, "auth unavailable: %v", err)
	}
	return nil, status.Errorf(codes.Unauthenticated, "auth failed: %v", err)
}

// authorizeAdmin checks "authorization: Bearer <admin token>" metadata.
func (s *ModerationServer) authorizeAdmin(ctx context.Context) error {
	if s.adminToken == "" {
		return status.Error(codes.PermissionDenied, "lexicon updates are disabled")
	}
	md, _ := metadata.FromIncomingContext(ctx)
	var got string
	if v := md.Get(auth.AuthorizationKey); len(v) > 0 {
		got = v[0]
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte("Bearer "+s.adminToken)) != 1 {
		return status.Error(codes.PermissionDenied, "admin token required")
	}
	return nil
}

// Moderate implements the ModerationService.Moderate RPC.
func (s *ModerationServer) Moderate(ctx context.Context, req *service.ModerateRequest) (*service.Outcome, error) {
	client, err := s.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	return s.svc.Moderate(ctx, client, req), nil
}

// ModerateBatch implements the ModerationService.ModerateBatch RPC.
func (s *ModerationServer) ModerateBatch(ctx context.Context, req *service.ModerateBatchRequest) (*service.ModerateBatchResponse, error) {
	client, err := s.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	results, err := s.svc.ModerateBatch(ctx, client, req.Texts)
	switch {
	case errors.Is(err, service.ErrEmptyBatch), errors.Is(err, service.ErrBatchTooLarge):
		return nil, status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return nil, status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return nil, status.Error(codes.DeadlineExceeded, err.Error())
	case err != nil:
		return nil, status.Errorf(codes.Internal, "batch moderation failed: %v", err)
	}
	return &service.ModerateBatchResponse{Results: results}, nil
}

// AddWords implements the ModerationService.AddWords RPC. The lexicon is
// shared by every client, so it takes the admin token, not an API key.
func (s *ModerationServer) AddWords(ctx context.Context, req *service.AddWordsRequest) (*service.AddWordsResponse, error) {
	if err := s.authorizeAdmin(ctx); err != nil {
		return nil, err
	}

	size, err := s.svc.AddWords(ctx, service.AdminClient, req.Words)
	switch {
	case errors.Is(err, service.ErrTooManyWords):
		return nil, status.Error(codes.InvalidArgument, err.Error())
	case err != nil:
		return nil, status.Errorf(codes.Unavailable, "add words: %v", err)
	}
	return &service.AddWordsResponse{LexiconSize: size}, nil
}

// CheckProfanity implements the ModerationService.CheckProfanity RPC.
func (s *ModerationServer) CheckProfanity(ctx context.Context, req *service.ProfanityRequest) (*service.ProfanityResponse, error) {
	client, err := s.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	return s.svc.CheckProfanity(ctx, client, req.Text), nil
}

// unaryHandler adapts a typed method to grpc.MethodDesc's handler shape.
func unaryHandler[Req any, Resp any](
	method string,
	call func(ModerationServiceServer, context.Context, *Req) (*Resp, error),
) grpc.MethodHandler {
	fullMethod := "/" + serviceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ModerationServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ModerationServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ModerationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Moderate", Handler: unaryHandler("Moderate", ModerationServiceServer.Moderate)},
		{MethodName: "ModerateBatch", Handler: unaryHandler("ModerateBatch", ModerationServiceServer.ModerateBatch)},
		{MethodName: "AddWords", Handler: unaryHandler("AddWords", ModerationServiceServer.AddWords)},
		{MethodName: "CheckProfanity", Handler: unaryHandler("CheckProfanity", ModerationServiceServer.CheckProfanity)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "palisade/moderation/v1",
}
