package journal

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ballot/internal/ledger"
	"ballot/pkg/platform/sentinel"
	txcontext "ballot/pkg/platform/tx"
)

// PostgresJournal stores blocks in the ledger_blocks table.
type PostgresJournal struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresJournal {
	return &PostgresJournal{db: db}
}

func (j *PostgresJournal) execer(ctx context.Context) txcontext.Executor {
	return txcontext.Or(ctx, j.db)
}

func (j *PostgresJournal) Append(ctx context.Context, block ledger.Block) error {
	r := toRecord(block)
	query := `
		INSERT INTO ledger_blocks (idx, ts_unix_nano, kind, message, voter_id, candidate_id, candidate_name, cast_at_unix_nano, previous_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (idx) DO NOTHING
	`
	res, err := j.execer(ctx).ExecContext(ctx, query,
		r.Index, r.Timestamp, r.Kind, r.Message, r.VoterID, r.CandidateID, r.CandidateName, r.CastAt,
		r.PreviousHash, r.Hash,
	)
	if err != nil {
		return fmt.Errorf("insert block %d: %w", block.Index, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return nil
	}

	var stored []byte
	err = j.execer(ctx).QueryRowContext(ctx, `SELECT hash FROM ledger_blocks WHERE idx = $1`, block.Index).Scan(&stored)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("block %d vanished after conflict: %w", block.Index, sentinel.ErrInvalidState)
		}
		return fmt.Errorf("read block %d: %w", block.Index, err)
	}
	if !bytes.Equal(stored, r.Hash) {
		return fmt.Errorf("block %d: %w", block.Index, sentinel.ErrConflict)
	}
	return nil
}

func (j *PostgresJournal) LoadAll(ctx context.Context) ([]ledger.Block, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT idx, ts_unix_nano, kind, message, voter_id, candidate_id, candidate_name, cast_at_unix_nano, previous_hash, hash
		FROM ledger_blocks
		ORDER BY idx
	`)
	if err != nil {
		return nil, fmt.Errorf("load ledger blocks: %w", err)
	}
	defer rows.Close()

	var out []ledger.Block
	for rows.Next() {
		var r record
		if err := rows.Scan(&r.Index, &r.Timestamp, &r.Kind, &r.Message, &r.VoterID, &r.CandidateID,
			&r.CandidateName, &r.CastAt, &r.PreviousHash, &r.Hash); err != nil {
			return nil, fmt.Errorf("scan ledger block: %w", err)
		}
		b, err := r.block()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger blocks: %w", err)
	}
	return out, nil
}
