package storage

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	bufferSize    = 10_000
	flushInterval = 100 * time.Millisecond
	flushBatch    = 1000
	drainTimeout  = 2 * time.Second
)

// BufferedWriter queues events and hands them to another EventWriter from a
// background goroutine, so request handlers never wait on the sink.
type BufferedWriter struct {
	sink      EventWriter
	buffer    chan *ModerationEvent
	done      chan struct{}
	flushed   chan struct{} // closed by flushLoop when it returns
	closeOnce sync.Once
	logger    *zap.Logger
}

// NewBufferedWriter starts the background flush loop in front of sink.
func NewBufferedWriter(sink EventWriter, logger *zap.Logger) *BufferedWriter {
	w := &BufferedWriter{
		sink:    sink,
		buffer:  make(chan *ModerationEvent, bufferSize),
		done:    make(chan struct{}),
		flushed: make(chan struct{}),
		logger:  logger,
	}
	go w.flushLoop()
	return w
}

// Write queues an event. Non-blocking: drops the event if the buffer is full.
func (w *BufferedWriter) Write(event *ModerationEvent) {
	select {
	case w.buffer <- event:
	default:
		w.logger.Warn("event buffer full, dropping event",
			zap.String("request_id", event.RequestID),
		)
	}
}

// Close drains queued events into the sink (up to drainTimeout), then
// closes the sink. Safe to call more than once.
func (w *BufferedWriter) Close() {
	w.closeOnce.Do(func() {
		close(w.done)
		<-w.flushed
		w.sink.Close()
	})
}

func (w *BufferedWriter) flushLoop() {
	defer close(w.flushed)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]*ModerationEvent, 0, flushBatch)

	for {
		select {
		case event := <-w.buffer:
			batch = append(batch, event)
			if len(batch) >= flushBatch {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-w.done:
			deadline := time.After(drainTimeout)
		drainLoop:
			for {
				select {
				case event := <-w.buffer:
					batch = append(batch, event)
				case <-deadline:
					break drainLoop
				default:
					break drainLoop
				}
			}
			if len(batch) > 0 {
				w.flush(batch)
			}
			return
		}
	}
}

func (w *BufferedWriter) flush(events []*ModerationEvent) {
	for _, e := range events {
		w.sink.Write(e)
	}
}

// LogWriter emits events as structured JSON via zap.
type LogWriter struct {
	logger *zap.Logger
}

// NewLogWriter creates a LogWriter that outputs events to the given logger.
func NewLogWriter(logger *zap.Logger) *LogWriter {
	return &LogWriter{logger: logger}
}

func (w *LogWriter) Write(event *ModerationEvent) {
	w.logger.Info("moderation_event",
		zap.String("request_id", event.RequestID),
		zap.String("client_id", event.ClientID),
		zap.String("operation", event.Operation),
		zap.String("verdict", event.Verdict),
		zap.Bool("is_shadow", event.IsShadow),
		zap.String("reason", event.Reason),
		zap.Strings("flagged_categories", event.FlaggedCategories),
		zap.Float64("confidence_score", event.ConfidenceScore),
		zap.Int("batch_index", event.BatchIndex),
		zap.Float64("latency_ms", event.LatencyMs),
		zap.String("user_id", event.UserID),
		zap.String("content_id", event.ContentID),
		zap.String("payload_preview", event.PayloadPreview),
	)
}

func (w *LogWriter) Close() {
	_ = w.logger.Sync()
}
