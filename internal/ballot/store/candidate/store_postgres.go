package candidate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ballot/internal/ballot"
	"ballot/pkg/platform/sentinel"
	txcontext "ballot/pkg/platform/tx"
)

// PostgresStore reads candidates joined with their election.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// execer lets seeding run inside a caller's transaction.
func (s *PostgresStore) execer(ctx context.Context) txcontext.Executor {
	return txcontext.Or(ctx, s.db)
}

const candidateColumns = `
	c.candidate_id, c.name, c.party, c.election_id, c.is_active,
	e.election_id, e.name, e.is_active, e.start_time, e.end_time
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCandidate(row rowScanner) (ballot.Candidate, error) {
	var c ballot.Candidate
	err := row.Scan(
		&c.ID, &c.Name, &c.Party, &c.ElectionID, &c.IsActive,
		&c.Election.ID, &c.Election.Name, &c.Election.IsActive, &c.Election.StartTime, &c.Election.EndTime,
	)
	return c, err
}

func (s *PostgresStore) SaveElection(ctx context.Context, e ballot.Election) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO elections (election_id, name, is_active, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (election_id) DO UPDATE SET
			name = EXCLUDED.name,
			is_active = EXCLUDED.is_active,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time
	`, e.ID, e.Name, e.IsActive, e.StartTime, e.EndTime)
	if err != nil {
		return fmt.Errorf("save election: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveCandidate(ctx context.Context, c ballot.Candidate) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO candidates (candidate_id, election_id, name, party, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (candidate_id) DO UPDATE SET
			election_id = EXCLUDED.election_id,
			name = EXCLUDED.name,
			party = EXCLUDED.party,
			is_active = EXCLUDED.is_active
	`, c.ID, c.ElectionID, c.Name, c.Party, c.IsActive)
	if err != nil {
		return fmt.Errorf("save candidate: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCandidate(ctx context.Context, candidateID string) (ballot.Candidate, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+candidateColumns+`
		FROM candidates c
		JOIN elections e ON e.election_id = c.election_id
		WHERE c.candidate_id = $1
	`, candidateID)
	c, err := scanCandidate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ballot.Candidate{}, sentinel.ErrNotFound
		}
		return ballot.Candidate{}, fmt.Errorf("get candidate: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListCandidates(ctx context.Context) ([]ballot.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+candidateColumns+`
		FROM candidates c
		JOIN elections e ON e.election_id = c.election_id
		ORDER BY c.candidate_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	var out []ballot.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListElections(ctx context.Context) ([]ballot.Election, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT election_id, name, is_active, start_time, end_time
		FROM elections
		ORDER BY election_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list elections: %w", err)
	}
	defer rows.Close()

	var out []ballot.Election
	for rows.Next() {
		var e ballot.Election
		if err := rows.Scan(&e.ID, &e.Name, &e.IsActive, &e.StartTime, &e.EndTime); err != nil {
			return nil, fmt.Errorf("scan election: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
