// Package service runs moderation requests for both transports: it scores
// text, applies the client's policy and shadow mode, and records events and
// metrics.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/triage-ai/palisade-moderation/internal/auth"
	"github.com/triage-ai/palisade-moderation/internal/engine"
	"github.com/triage-ai/palisade-moderation/internal/metrics"
	"github.com/triage-ai/palisade-moderation/internal/storage"
	"go.uber.org/zap"
)

var (
	ErrEmptyBatch    = errors.New("texts must not be empty")
	ErrBatchTooLarge = errors.New("too many texts in batch")
	ErrLexiconStore  = errors.New("lexicon store unavailable")
	ErrTooManyWords  = errors.New("too many words in request")
)

// AdminClient identifies lexicon changes made with the admin token.
var AdminClient = &auth.ClientContext{ClientID: "admin", Mode: "enforce"}

// LexiconStore persists lexicon additions. *store.Store satisfies it.
type LexiconStore interface {
	AddLexiconWords(ctx context.Context, words []string) error
}

// Config holds the server-wide decision settings.
type Config struct {
	Aggregator engine.AggregatorConfig
	MaxBatch   int
	MaxWords   int // per AddWords call
}

// Service is safe for concurrent use.
type Service struct {
	moderator *engine.Moderator
	cfg       Config
	writer    storage.EventWriter
	metrics   *metrics.Metrics
	lexicon   LexiconStore // nil when running without Postgres
	logger    *zap.Logger
}

// New creates a Service. lexicon may be nil.
func New(
	moderator *engine.Moderator,
	cfg Config,
	writer storage.EventWriter,
	m *metrics.Metrics,
	lexicon LexiconStore,
	logger *zap.Logger,
) *Service {
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = 1000
	}
	if cfg.MaxWords <= 0 {
		cfg.MaxWords = 100
	}
	s := &Service{
		moderator: moderator,
		cfg:       cfg,
		writer:    writer,
		metrics:   m,
		lexicon:   lexicon,
		logger:    logger,
	}
	m.LexiconSize.Set(float64(moderator.Lexicon().Len()))
	return s
}

// Moderator returns the underlying engine.
func (s *Service) Moderator() *engine.Moderator { return s.moderator }

// Moderate scores one text for client.
func (s *Service) Moderate(_ context.Context, client *auth.ClientContext, req *ModerateRequest) *Outcome {
	start := time.Now()
	res := s.moderator.Moderate(req.Text)
	out := s.decide(client, res, start)
	out.UserID = req.UserID
	out.ContentID = req.ContentID
	s.writeEvent(client, out, req.Text, "moderate", -1)
	s.metrics.ObserveRequest("moderate", time.Since(start))
	return out
}

// ModerateBatch scores texts for client. It fails as a whole: either every
// text has an Outcome or an error is returned.
func (s *Service) ModerateBatch(ctx context.Context, client *auth.ClientContext, texts []string) ([]*Outcome, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(texts) > s.cfg.MaxBatch {
		return nil, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(texts), s.cfg.MaxBatch)
	}

	start := time.Now()
	results, err := s.moderator.ModerateBatch(ctx, texts)
	if err != nil {
		s.logger.Warn("batch moderation aborted",
			zap.String("client_id", client.ClientID),
			zap.Int("batch_size", len(texts)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("ModerateBatch: %w", err)
	}

	outcomes := make([]*Outcome, len(results))
	for i, res := range results {
		outcomes[i] = s.decide(client, res, start)
		s.writeEvent(client, outcomes[i], texts[i], "batch", i)
	}
	s.metrics.BatchSize.Observe(float64(len(texts)))
	s.metrics.ObserveRequest("batch", time.Since(start))
	return outcomes, nil
}

// AddWords extends the lexicon shared by every client, so transports only
// call it for the admin. When a store is configured the words are persisted
// first; if that fails the lexicon is left unchanged.
func (s *Service) AddWords(ctx context.Context, client *auth.ClientContext, words []string) (int, error) {
	if len(words) > s.cfg.MaxWords {
		return 0, fmt.Errorf("%w: %d > %d", ErrTooManyWords, len(words), s.cfg.MaxWords)
	}
	start := time.Now()
	if len(words) > 0 && s.lexicon != nil {
		if err := s.lexicon.AddLexiconWords(ctx, words); err != nil {
			s.logger.Error("failed to persist lexicon words", zap.Error(err))
			return 0, fmt.Errorf("%w: %v", ErrLexiconStore, err)
		}
	}

	s.moderator.AddWords(words...)
	size := s.moderator.Lexicon().Len()
	s.metrics.LexiconSize.Set(float64(size))
	s.metrics.ObserveRequest("add_words", time.Since(start))

	s.logger.Info("lexicon words added",
		zap.String("client_id", client.ClientID),
		zap.Int("count", len(words)),
		zap.Int("lexicon_size", size),
	)
	return size, nil
}

// CheckProfanity runs only the profanity category against text.
func (s *Service) CheckProfanity(_ context.Context, _ *auth.ClientContext, text string) *ProfanityResponse {
	start := time.Now()
	res := s.moderator.CheckProfanity(text)
	s.metrics.ObserveRequest("profanity", time.Since(start))
	return &ProfanityResponse{
		ContainsProfanity: res.Triggered,
		ProfanityScore:    res.Score,
	}
}

// decide derives the verdict and applies shadow mode.
func (s *Service) decide(client *auth.ClientContext, res *engine.Result, start time.Time) *Outcome {
	d := engine.Decide(res, s.cfg.Aggregator, client.Policy)
	s.metrics.ObserveResult(res.FlaggedCategories, d.Verdict.String())

	out := &Outcome{
		Result:      res,
		Verdict:     d.Verdict.String(),
		Reason:      d.Reason,
		RequestID:   uuid.NewString(),
		LatencyMs:   float64(time.Since(start)) / float64(time.Millisecond),
		realVerdict: d.Verdict,
	}
	if client.IsShadow() && d.Verdict != engine.VerdictAllow {
		out.IsShadow = true
		out.Verdict = engine.VerdictAllow.String()
	}
	return out
}

// writeEvent records the real verdict, which differs from out.Verdict in
// shadow mode.
func (s *Service) writeEvent(client *auth.ClientContext, out *Outcome, text, operation string, index int) {
	s.writer.Write(&storage.ModerationEvent{
		RequestID:         out.RequestID,
		ClientID:          client.ClientID,
		Timestamp:         time.Now(),
		Operation:         operation,
		Verdict:           out.realVerdict.String(),
		IsShadow:          out.IsShadow,
		Reason:            out.Reason,
		FlaggedCategories: out.FlaggedCategories,
		ConfidenceScore:   out.ConfidenceScore,
		PayloadPreview:    storage.TruncatePayload(text, storage.PayloadPreviewLength),
		PayloadSize:       len(text),
		BatchIndex:        index,
		UserID:            out.UserID,
		ContentID:         out.ContentID,
		LatencyMs:         out.LatencyMs,
	})
}
