package journal

import (
	"context"
	"fmt"
	"log/slog"

	"ballot/internal/ledger"
)

// Loaded is the result of bringing a ledger up from its journal.
type Loaded struct {
	Ledger *ledger.Ledger
	Syncer *Syncer
	Report ledger.ValidityReport

	// Restored is false when the journal was empty and a fresh genesis was written.
	Restored bool
}

// Open replays the journal into a ledger. An empty journal yields a new ledger
// whose genesis block is persisted before Open returns. A replayed chain that
// fails validation is still returned; the caller decides how loudly to report it.
func Open(ctx context.Context, j Journal, codec *ledger.Codec, logger *slog.Logger, opts ...ledger.Option) (*Loaded, error) {
	if logger == nil {
		logger = slog.Default()
	}
	blocks, err := j.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger journal: %w", err)
	}

	if len(blocks) == 0 {
		l := ledger.New(codec, opts...)
		syncer := NewSyncer(j, 0, logger)
		if _, err := syncer.Sync(ctx, l); err != nil {
			return nil, fmt.Errorf("persist genesis: %w", err)
		}
		logger.InfoContext(ctx, "ledger initialised", "genesis_hash", l.Last().Hash.String())
		return &Loaded{Ledger: l, Syncer: syncer, Report: l.Validate()}, nil
	}

	l, err := ledger.Restore(codec, blocks, opts...)
	if err != nil {
		return nil, fmt.Errorf("restore ledger: %w", err)
	}
	report := l.Validate()
	if report.Valid {
		logger.InfoContext(ctx, "ledger restored",
			"blocks", report.Length,
			"tip_hash", l.Last().Hash.String(),
		)
	} else {
		logger.WarnContext(ctx, "restored ledger failed validation",
			"blocks", report.Length,
			"first_tampered_index", report.FirstTamperedIndex,
			"reason", report.Reason,
		)
	}
	return &Loaded{
		Ledger:   l,
		Syncer:   NewSyncer(j, int64(len(blocks)), logger),
		Report:   report,
		Restored: true,
	}, nil
}
