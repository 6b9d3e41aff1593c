// Package seed loads elections, candidates and the voter roll from a YAML file.
package seed

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"ballot/internal/ballot"
)

// File is the on-disk seed layout.
type File struct {
	Elections  []Election  `yaml:"elections"`
	Candidates []Candidate `yaml:"candidates"`
	Voters     []Voter     `yaml:"voters"`
}

type Election struct {
	ID        string    `yaml:"id"`
	Name      string    `yaml:"name"`
	Active    *bool     `yaml:"is_active"`
	StartTime time.Time `yaml:"start_time"`
	EndTime   time.Time `yaml:"end_time"`
}

type Candidate struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Party      string `yaml:"party"`
	ElectionID string `yaml:"election_id"`
	Active     *bool  `yaml:"is_active"`
}

type Voter struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Registered *bool  `yaml:"registered"`
}

// CandidateWriter receives elections and candidates.
type CandidateWriter interface {
	SaveElection(ctx context.Context, e ballot.Election) error
	SaveCandidate(ctx context.Context, c ballot.Candidate) error
}

// VoterWriter receives voters.
type VoterWriter interface {
	Save(ctx context.Context, v ballot.VoterStatus) error
}

// Result counts what was written.
type Result struct {
	Elections  int
	Candidates int
	Voters     int
}

// Parse decodes and validates a seed document. Unknown fields are rejected.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadFile parses the seed file at path.
func LoadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer fh.Close()
	return Parse(fh)
}

// Validate checks ids are present and unique and that references resolve.
func (f *File) Validate() error {
	elections := make(map[string]bool, len(f.Elections))
	for i, e := range f.Elections {
		if e.ID == "" {
			return fmt.Errorf("seed: election %d has no id", i)
		}
		if elections[e.ID] {
			return fmt.Errorf("seed: duplicate election %s", e.ID)
		}
		if !e.EndTime.After(e.StartTime) {
			return fmt.Errorf("seed: election %s ends before it starts", e.ID)
		}
		elections[e.ID] = true
	}

	candidates := make(map[string]bool, len(f.Candidates))
	for i, c := range f.Candidates {
		if c.ID == "" {
			return fmt.Errorf("seed: candidate %d has no id", i)
		}
		if candidates[c.ID] {
			return fmt.Errorf("seed: duplicate candidate %s", c.ID)
		}
		if !elections[c.ElectionID] {
			return fmt.Errorf("seed: candidate %s references unknown election %q", c.ID, c.ElectionID)
		}
		candidates[c.ID] = true
	}

	voters := make(map[string]bool, len(f.Voters))
	for i, v := range f.Voters {
		if v.ID == "" {
			return fmt.Errorf("seed: voter %d has no id", i)
		}
		if voters[v.ID] {
			return fmt.Errorf("seed: duplicate voter %s", v.ID)
		}
		voters[v.ID] = true
	}
	return nil
}

// Apply writes the seed. Existing voters keep their has_voted flag.
func (f *File) Apply(ctx context.Context, cw CandidateWriter, vw VoterWriter) (Result, error) {
	var res Result
	for _, e := range f.Elections {
		if err := cw.SaveElection(ctx, ballot.Election{
			ID:        e.ID,
			Name:      e.Name,
			IsActive:  orTrue(e.Active),
			StartTime: e.StartTime.UTC(),
			EndTime:   e.EndTime.UTC(),
		}); err != nil {
			return res, fmt.Errorf("seed election %s: %w", e.ID, err)
		}
		res.Elections++
	}
	for _, c := range f.Candidates {
		if err := cw.SaveCandidate(ctx, ballot.Candidate{
			ID:         c.ID,
			Name:       c.Name,
			Party:      c.Party,
			ElectionID: c.ElectionID,
			IsActive:   orTrue(c.Active),
		}); err != nil {
			return res, fmt.Errorf("seed candidate %s: %w", c.ID, err)
		}
		res.Candidates++
	}
	for _, v := range f.Voters {
		if err := vw.Save(ctx, ballot.VoterStatus{
			VoterID:    v.ID,
			Name:       v.Name,
			Registered: orTrue(v.Registered),
		}); err != nil {
			return res, fmt.Errorf("seed voter %s: %w", v.ID, err)
		}
		res.Voters++
	}
	return res, nil
}

func orTrue(b *bool) bool {
	return b == nil || *b
}
