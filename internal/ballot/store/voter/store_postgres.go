package voter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"ballot/internal/ballot"
	"ballot/pkg/platform/sentinel"
	txcontext "ballot/pkg/platform/tx"
)

// PostgresStore persists the voter roll in the voters table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) execer(ctx context.Context) txcontext.Executor {
	return txcontext.Or(ctx, s.db)
}

// Save registers or updates a voter without touching has_voted.
func (s *PostgresStore) Save(ctx context.Context, v ballot.VoterStatus) error {
	query := `
		INSERT INTO voters (voter_id, name, registered)
		VALUES ($1, $2, $3)
		ON CONFLICT (voter_id) DO UPDATE SET
			name = EXCLUDED.name,
			registered = EXCLUDED.registered
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query, v.VoterID, v.Name, v.Registered); err != nil {
		return fmt.Errorf("save voter: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetStatus(ctx context.Context, voterID string) (ballot.VoterStatus, error) {
	var (
		v       ballot.VoterStatus
		votedAt sql.NullTime
	)
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT voter_id, name, registered, has_voted, voted_at
		FROM voters
		WHERE voter_id = $1
	`, voterID).Scan(&v.VoterID, &v.Name, &v.Registered, &v.HasVoted, &votedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ballot.VoterStatus{}, sentinel.ErrNotFound
		}
		return ballot.VoterStatus{}, fmt.Errorf("get voter status: %w", err)
	}
	if votedAt.Valid {
		t := votedAt.Time
		v.VotedAt = &t
	}
	return v, nil
}

func (s *PostgresStore) SetVoted(ctx context.Context, voterID string, at time.Time) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE voters SET has_voted = TRUE, voted_at = $2
		WHERE voter_id = $1 AND has_voted = FALSE
	`, voterID, at)
	if err != nil {
		return fmt.Errorf("set voted: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return nil
	}

	var exists bool
	err = s.execer(ctx).QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM voters WHERE voter_id = $1)`, voterID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("set voted: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrAlreadyUsed
}

func (s *PostgresStore) MarkVoted(ctx context.Context, voterIDs []string, at time.Time) (int, error) {
	if len(voterIDs) == 0 {
		return 0, nil
	}
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE voters SET has_voted = TRUE, voted_at = $2
		WHERE voter_id = ANY($1) AND has_voted = FALSE
	`, pq.Array(voterIDs), at)
	if err != nil {
		return 0, fmt.Errorf("mark voted: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark voted: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) Counts(ctx context.Context) (ballot.VoterCounts, error) {
	var c ballot.VoterCounts
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT count(*), count(*) FILTER (WHERE has_voted)
		FROM voters
	`).Scan(&c.Total, &c.Voted)
	if err != nil {
		return ballot.VoterCounts{}, fmt.Errorf("count voters: %w", err)
	}
	return c, nil
}
