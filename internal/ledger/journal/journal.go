// Package journal persists ledger blocks and replays them on startup.
//
// The in-memory ledger stays authoritative while the process runs. A Journal is
// a write-behind copy: blocks are appended in index order by a Syncer after the
// vote that produced them has committed, and LoadAll hands them back verbatim
// so the restored chain can be validated against its stored hashes.
package journal

import (
	"context"
	"errors"

	"ballot/internal/ledger"
)

// ErrCorruptRecord is returned by LoadAll when a stored record cannot be
// decoded into a block at all. Records that decode but fail hash validation
// are returned as-is and reported by ledger validation instead.
var ErrCorruptRecord = errors.New("journal: corrupt block record")

// Journal is the durable block log.
//
// Append is idempotent per index: re-appending the block already stored at an
// index is a no-op, while a different hash at that index fails with
// sentinel.ErrConflict.
type Journal interface {
	Append(ctx context.Context, block ledger.Block) error
	LoadAll(ctx context.Context) ([]ledger.Block, error)
}
