package server

import (
	"context"
	"net"
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/triage-ai/palisade-moderation/internal/auth"
	"github.com/triage-ai/palisade-moderation/internal/engine"
	"github.com/triage-ai/palisade-moderation/internal/metrics"
	"github.com/triage-ai/palisade-moderation/internal/service"
	"github.com/triage-ai/palisade-moderation/internal/storage"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// testServer spins up an in-process gRPC server and returns a connected client.
func testServer(t *testing.T) (*Client, *grpc.ClientConn) {
	t.Helper()

	logger := zap.NewNop()
	svc := service.New(
		engine.NewModerator(logger),
		service.Config{Aggregator: engine.DefaultAggregatorConfig(), MaxBatch: 10},
		storage.NewLogWriter(logger),
		metrics.New(prometheus.NewRegistry()),
		nil,
		logger,
	)
	srv := NewModerationServer(svc, auth.NewStaticAuthenticator(), testAdminToken, logger)
	grpcServer, _ := NewGRPCServer(srv, logger)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	go grpcServer.Serve(lis)

	conn, err := grpc.NewClient(
		lis.Addr().String(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}

	t.Cleanup(func() {
		conn.Close()
		grpcServer.Stop()
	})
	return NewClient(conn), conn
}

const testAdminToken = "admin-secret"

func adminCtx() context.Context {
	md := metadata.Pairs("authorization", "Bearer "+testAdminToken)
	return metadata.NewOutgoingContext(context.Background(), md)
}

// authedCtx creates a context with valid auth metadata.
func authedCtx() context.Context {
	md := metadata.Pairs(
		"authorization", "Bearer tsk_test_key",
		"x-client-id", "client_integration_test",
	)
	return metadata.NewOutgoingContext(context.Background(), md)
}

func TestIntegration_ModerateClean(t *testing.T) {
	client, _ := testServer(t)

	resp, err := client.Moderate(authedCtx(), &service.ModerateRequest{Text: "Have a nice day", UserID: "u1"})
	if err != nil {
		t.Fatalf("Moderate failed: %v", err)
	}
	if !resp.IsAppropriate || resp.Verdict != "allow" {
		t.Errorf("expected allow, got %+v", resp)
	}
	if resp.ConfidenceScore != 0 || len(resp.FlaggedCategories) != 0 {
		t.Errorf("expected no flags, got %v (%v)", resp.FlaggedCategories, resp.ConfidenceScore)
	}
	if resp.UserID != "u1" || resp.RequestID == "" {
		t.Errorf("missing echo fields: %+v", resp)
	}
}

func TestIntegration_ModerateThreat(t *testing.T) {
	client, _ := testServer(t)

	resp, err := client.Moderate(authedCtx(), &service.ModerateRequest{Text: "I am going to kill him"})
	if err != nil {
		t.Fatalf("Moderate failed: %v", err)
	}
	if resp.Verdict != "block" {
		t.Errorf("expected block, got %s", resp.Verdict)
	}
	if len(resp.FlaggedCategories) == 0 || resp.FlaggedCategories[0] != "threats" {
		t.Errorf("expected threats first, got %v", resp.FlaggedCategories)
	}
}

func TestIntegration_ModerateBatch(t *testing.T) {
	client, _ := testServer(t)

	resp, err := client.ModerateBatch(authedCtx(), &service.ModerateBatchRequest{
		Texts: []string{"hello", "buy now!!!!!", "damn"},
	})
	if err != nil {
		t.Fatalf("ModerateBatch failed: %v", err)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(resp.Results))
	}
	if !resp.Results[0].IsAppropriate || resp.Results[1].IsAppropriate {
		t.Errorf("unexpected appropriateness in %+v", resp.Results)
	}
}

func TestIntegration_ModerateBatchEmpty(t *testing.T) {
	client, _ := testServer(t)

	_, err := client.ModerateBatch(authedCtx(), &service.ModerateBatchRequest{})
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("expected InvalidArgument, got %v", err)
	}
}

func TestIntegration_AddWordsAndCheckProfanity(t *testing.T) {
	client, _ := testServer(t)

	before, err := client.CheckProfanity(authedCtx(), &service.ProfanityRequest{Text: "smeg off"})
	if err != nil {
		t.Fatalf("CheckProfanity failed: %v", err)
	}
	if before.ContainsProfanity {
		t.Fatal("word should not be known yet")
	}

	_, err = client.AddWords(authedCtx(), &service.AddWordsRequest{Words: []string{"SMEG"}})
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("client keys must not extend the lexicon, got %v", err)
	}

	added, err := client.AddWords(adminCtx(), &service.AddWordsRequest{Words: []string{"SMEG"}})
	if err != nil {
		t.Fatalf("AddWords failed: %v", err)
	}
	if added.LexiconSize != len(engine.DefaultLexicon)+1 {
		t.Errorf("unexpected lexicon size %d", added.LexiconSize)
	}

	after, err := client.CheckProfanity(authedCtx(), &service.ProfanityRequest{Text: "smeg off"})
	if err != nil {
		t.Fatalf("CheckProfanity failed: %v", err)
	}
	if !after.ContainsProfanity || after.ProfanityScore != 0.3 {
		t.Errorf("expected profanity 0.3, got %+v", after)
	}
}

func TestIntegration_AddWordsTooMany(t *testing.T) {
	client, _ := testServer(t)

	words := make([]string, 101)
	for i := range words {
		words[i] = "w" + strconv.Itoa(i)
	}
	_, err := client.AddWords(adminCtx(), &service.AddWordsRequest{Words: words})
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("expected InvalidArgument, got %v", err)
	}
}

func TestIntegration_AuthRejectMissingKey(t *testing.T) {
	client, _ := testServer(t)

	_, err := client.Moderate(context.Background(), &service.ModerateRequest{Text: "hi"})
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("expected Unauthenticated, got %v", err)
	}
}

func TestIntegration_AuthRejectBadKey(t *testing.T) {
	client, _ := testServer(t)

	md := metadata.Pairs("authorization", "Bearer sk_bad")
	ctx := metadata.NewOutgoingContext(context.Background(), md)
	_, err := client.Moderate(ctx, &service.ModerateRequest{Text: "hi"})
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("expected Unauthenticated, got %v", err)
	}
}

func TestIntegration_Health(t *testing.T) {
	_, conn := testServer(t)

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{
		Service: serviceName,
	})
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("expected SERVING, got %v", resp.Status)
	}
}
