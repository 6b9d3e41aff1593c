package journal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"ballot/internal/ledger"
)

// Source is the part of the ledger a Syncer reads from.
type Source interface {
	Since(from int64) []ledger.Block
}

// Syncer writes the ledger tail that the journal does not yet hold. A failed
// write leaves the cursor where it was, so the next Sync retries it together
// with every newer block.
type Syncer struct {
	journal Journal
	logger  *slog.Logger

	mu   sync.Mutex
	next int64
}

// NewSyncer starts a syncer that believes blocks [0, persisted) are stored.
func NewSyncer(j Journal, persisted int64, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{journal: j, logger: logger, next: persisted}
}

// Sync persists every block from the cursor to the current tip and returns
// how many were written.
func (s *Syncer) Sync(ctx context.Context, src Source) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	written := 0
	for _, b := range src.Since(s.next) {
		if err := s.journal.Append(ctx, b); err != nil {
			s.logger.ErrorContext(ctx, "ledger journal append failed",
				"block_index", b.Index,
				"pending_from", s.next,
				"error", err,
			)
			return written, fmt.Errorf("persist block %d: %w", b.Index, err)
		}
		s.next = b.Index + 1
		written++
	}
	return written, nil
}

// Persisted returns the number of blocks known to be in the journal.
func (s *Syncer) Persisted() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}
