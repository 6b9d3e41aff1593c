package events

import (
	"context"
	"log/slog"
)

// LogPublisher writes events to the structured log.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Name() string { return "log" }

func (p *LogPublisher) Publish(ctx context.Context, ev BlockAppended) error {
	p.logger.InfoContext(ctx, "block appended",
		"event_type", ev.Type,
		"block_index", ev.Index,
		"block_hash", ev.Hash,
		"candidate_id", ev.CandidateID,
	)
	return nil
}
