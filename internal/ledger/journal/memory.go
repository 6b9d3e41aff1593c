package journal

import (
	"context"
	"fmt"
	"sync"

	"ballot/internal/ledger"
	"ballot/pkg/platform/sentinel"
)

// MemoryJournal keeps records in process. It backs tests and the "memory"
// ledger backend, where nothing survives a restart.
type MemoryJournal struct {
	mu      sync.RWMutex
	records []record
}

func NewMemory() *MemoryJournal {
	return &MemoryJournal{}
}

func (j *MemoryJournal) Append(ctx context.Context, block ledger.Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	next := int64(len(j.records))
	switch {
	case block.Index < next:
		if string(j.records[block.Index].Hash) != string(block.Hash[:]) {
			return fmt.Errorf("block %d: %w", block.Index, sentinel.ErrConflict)
		}
		return nil
	case block.Index > next:
		return fmt.Errorf("block %d appended before %d: %w", block.Index, next, sentinel.ErrInvalidState)
	}
	j.records = append(j.records, toRecord(block))
	return nil
}

func (j *MemoryJournal) LoadAll(ctx context.Context) ([]ledger.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]ledger.Block, 0, len(j.records))
	for _, r := range j.records {
		b, err := r.block()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// Len returns the number of stored blocks.
func (j *MemoryJournal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.records)
}
