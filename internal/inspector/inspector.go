// Package inspector derives read-only views of the ledger: validity, tally,
// export, results and participation stats. Everything is computed from a
// ledger snapshot; nothing here mutates the chain.
package inspector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"ballot/internal/ballot"
	"ballot/internal/ledger"
	"ballot/internal/platform/metrics"
)

// Reconciler re-derives voter statuses from the chain.
type Reconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

// Inspector answers questions about the chain.
type Inspector struct {
	ledger     *ledger.Ledger
	voters     ballot.VoterStore
	candidates ballot.CandidateStore
	reconciler Reconciler

	validations singleflight.Group
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

type Option func(*Inspector)

func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Inspector) {
		i.metrics = m
	}
}

// WithReconciler enables Reconcile.
func WithReconciler(r Reconciler) Option {
	return func(i *Inspector) {
		i.reconciler = r
	}
}

func New(l *ledger.Ledger, voters ballot.VoterStore, candidates ballot.CandidateStore, opts ...Option) *Inspector {
	i := &Inspector{
		ledger:     l,
		voters:     voters,
		candidates: candidates,
		tracer:     otel.Tracer("ballot"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Validate walks the chain. Concurrent callers share one walk.
func (i *Inspector) Validate(ctx context.Context) ledger.ValidityReport {
	v, _, _ := i.validations.Do("validate", func() (any, error) {
		_, span := i.tracer.Start(ctx, "ledger.Validate")
		defer span.End()

		start := time.Now()
		report := i.ledger.Validate()
		i.metrics.ObserveValidation(report.Length, report.Valid, time.Since(start))
		span.SetAttributes(
			attribute.Bool("valid", report.Valid),
			attribute.Int("length", report.Length),
		)
		return report, nil
	})
	return v.(ledger.ValidityReport)
}

func (i *Inspector) IsValid(ctx context.Context) bool {
	return i.Validate(ctx).Valid
}

// FirstTamperedIndex returns the earliest invalid block, if any.
func (i *Inspector) FirstTamperedIndex(ctx context.Context) (int64, bool) {
	return i.Validate(ctx).TamperedIndex()
}

// Tally counts votes per candidate id in one pass. Only a voter's first vote
// counts; later ones are what Validate reports as ReasonDuplicateVoter.
func (i *Inspector) Tally() map[string]int {
	counts, _ := tally(i.ledger.Snapshot())
	return counts
}

func tally(chain []ledger.Block) (map[string]int, int) {
	counts := make(map[string]int)
	seen := make(map[string]struct{})
	total := 0
	for _, b := range chain {
		if !b.IsVote() {
			continue
		}
		v := b.Payload.Vote
		if _, dup := seen[v.VoterID]; dup {
			continue
		}
		seen[v.VoterID] = struct{}{}
		counts[v.CandidateID]++
		total++
	}
	return counts, total
}

// ExportChain returns the whole chain in index order.
func (i *Inspector) ExportChain() []ledger.Block {
	return i.ledger.Snapshot()
}

// ExportValidated returns one snapshot of the chain together with the
// validity of exactly that snapshot.
func (i *Inspector) ExportValidated(ctx context.Context) ([]ledger.Block, ledger.ValidityReport) {
	_, span := i.tracer.Start(ctx, "ledger.ExportValidated")
	defer span.End()

	chain := i.ledger.Snapshot()
	report := ledger.ValidateBlocks(i.ledger.Codec(), chain)
	span.SetAttributes(
		attribute.Bool("valid", report.Valid),
		attribute.Int("length", report.Length),
	)
	return chain, report
}

// CandidateResult is one row of the results table.
type CandidateResult struct {
	CandidateID string `json:"candidate_id"`
	Name        string `json:"name"`
	Party       string `json:"party"`
	Votes       int    `json:"votes"`
}

type Results struct {
	TotalVotes int               `json:"total_votes"`
	Results    []CandidateResult `json:"results"`
}

// Results joins the tally with the candidate list. Candidates without votes
// are listed with zero; votes for candidates no longer in the store keep the
// name recorded on the chain. Rows are sorted by votes, then candidate id.
func (i *Inspector) Results(ctx context.Context) (Results, error) {
	chain := i.ledger.Snapshot()
	counts, total := tally(chain)

	candidates, err := i.candidates.ListCandidates(ctx)
	if err != nil {
		return Results{}, fmt.Errorf("list candidates: %w", err)
	}

	rows := make(map[string]*CandidateResult, len(candidates))
	for _, c := range candidates {
		rows[c.ID] = &CandidateResult{CandidateID: c.ID, Name: c.Name, Party: c.Party}
	}
	out := Results{TotalVotes: total}
	for _, b := range chain {
		if !b.IsVote() {
			continue
		}
		v := b.Payload.Vote
		if _, ok := rows[v.CandidateID]; !ok {
			rows[v.CandidateID] = &CandidateResult{CandidateID: v.CandidateID, Name: v.CandidateName}
		}
	}

	out.Results = make([]CandidateResult, 0, len(rows))
	for id, row := range rows {
		row.Votes = counts[id]
		out.Results = append(out.Results, *row)
	}
	sort.Slice(out.Results, func(a, b int) bool {
		if out.Results[a].Votes != out.Results[b].Votes {
			return out.Results[a].Votes > out.Results[b].Votes
		}
		return out.Results[a].CandidateID < out.Results[b].CandidateID
	})
	return out, nil
}

// Stats is the admin dashboard summary.
type Stats struct {
	TotalVoters       int     `json:"total_voters"`
	VotersWhoVoted    int     `json:"voters_who_voted"`
	ParticipationRate float64 `json:"participation_rate"`
	TotalCandidates   int     `json:"total_candidates"`
	TotalElections    int     `json:"total_elections"`
	ActiveElections   int     `json:"active_elections"`
	BlockchainBlocks  int     `json:"blockchain_blocks"`
	BlockchainValid   bool    `json:"blockchain_valid"`
	TotalVotes        int     `json:"total_votes"`
}

// Stats gathers store counts and the chain summary concurrently.
func (i *Inspector) Stats(ctx context.Context) (Stats, error) {
	var (
		stats     Stats
		counts    ballot.VoterCounts
		elections []ballot.Election
		report    ledger.ValidityReport
	)
	chain := i.ledger.Snapshot()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		counts, err = i.voters.Counts(gctx)
		if err != nil {
			return fmt.Errorf("count voters: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		candidates, err := i.candidates.ListCandidates(gctx)
		if err != nil {
			return fmt.Errorf("list candidates: %w", err)
		}
		stats.TotalCandidates = len(candidates)
		return nil
	})
	g.Go(func() error {
		var err error
		elections, err = i.candidates.ListElections(gctx)
		if err != nil {
			return fmt.Errorf("list elections: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		report = i.Validate(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	stats.TotalVoters = counts.Total
	stats.VotersWhoVoted = counts.Voted
	if counts.Total > 0 {
		rate := float64(counts.Voted) / float64(counts.Total) * 100
		stats.ParticipationRate = math.Round(rate*100) / 100
	}
	stats.TotalElections = len(elections)
	for _, e := range elections {
		if e.IsActive {
			stats.ActiveElections++
		}
	}
	stats.BlockchainBlocks = len(chain)
	stats.BlockchainValid = report.Valid
	_, stats.TotalVotes = tally(chain)
	return stats, nil
}

// Reconcile re-derives has_voted from the chain and returns how many voter
// records changed.
func (i *Inspector) Reconcile(ctx context.Context) (int, error) {
	if i.reconciler == nil {
		return 0, nil
	}
	return i.reconciler.Reconcile(ctx)
}
