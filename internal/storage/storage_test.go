package storage

import (
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type collectWriter struct {
	mu     sync.Mutex
	events []*ModerationEvent
	closed bool
}

func (c *collectWriter) Write(e *ModerationEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *collectWriter) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func TestTruncatePayload(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"truncate me", 8, "truncate"},
		{"héllo wörld", 5, "héllo"},
		{"", 5, ""},
	}
	for _, tt := range tests {
		if got := TruncatePayload(tt.in, tt.max); got != tt.want {
			t.Errorf("TruncatePayload(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestBufferedWriter_DrainsOnClose(t *testing.T) {
	sink := &collectWriter{}
	w := NewBufferedWriter(sink, zap.NewNop())

	for i := 0; i < 50; i++ {
		w.Write(&ModerationEvent{RequestID: "req", BatchIndex: i})
	}
	w.Close()
	w.Close()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.events) != 50 {
		t.Errorf("expected 50 events flushed, got %d", len(sink.events))
	}
	for i, e := range sink.events {
		if e.BatchIndex != i {
			t.Fatalf("events out of order at %d: got index %d", i, e.BatchIndex)
		}
	}
	if !sink.closed {
		t.Error("sink should be closed")
	}
}

func TestLogWriter_Fields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	w := NewLogWriter(zap.New(core))

	w.Write(&ModerationEvent{
		RequestID:         "r-1",
		ClientID:          "c-1",
		Operation:         "moderate",
		Verdict:           "block",
		FlaggedCategories: []string{"threats"},
		ConfidenceScore:   0.8,
	})

	entries := logs.FilterMessage("moderation_event").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "r-1" || fields["verdict"] != "block" {
		t.Errorf("unexpected fields: %v", fields)
	}
	if fields["confidence_score"] != 0.8 {
		t.Errorf("unexpected confidence: %v", fields["confidence_score"])
	}
}
