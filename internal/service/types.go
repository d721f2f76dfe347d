package service

import "github.com/triage-ai/palisade-moderation/internal/engine"

// Wire types shared by the HTTP API and the gRPC JSON codec.

type ModerateRequest struct {
	Text      string `json:"text"`
	UserID    string `json:"user_id,omitempty"`
	ContentID string `json:"content_id,omitempty"`
}

// Outcome is a moderation result plus the enforcement decision for one
// text. In shadow mode Verdict is always "allow"; the real verdict goes to
// the event log only.
type Outcome struct {
	*engine.Result
	Verdict   string  `json:"verdict"`
	Reason    string  `json:"reason,omitempty"`
	RequestID string  `json:"request_id"`
	IsShadow  bool    `json:"is_shadow"`
	UserID    string  `json:"user_id,omitempty"`
	ContentID string  `json:"content_id,omitempty"`
	LatencyMs float64 `json:"latency_ms"`

	realVerdict engine.Verdict
}

type ModerateBatchRequest struct {
	Texts []string `json:"texts"`
}

type ModerateBatchResponse struct {
	Results []*Outcome `json:"results"`
}

type AddWordsRequest struct {
	Words []string `json:"words"`
}

type AddWordsResponse struct {
	LexiconSize int `json:"lexicon_size"`
}

type ProfanityRequest struct {
	Text string `json:"text"`
}

type ProfanityResponse struct {
	ContainsProfanity bool    `json:"contains_profanity"`
	ProfanityScore    float64 `json:"profanity_score"`
}
