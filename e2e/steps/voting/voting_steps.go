package voting

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}, bearer string) error
	GET(path string, bearer string) error
	GetResponseField(field string) (interface{}, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	SetToken(name, token string)
	GetToken(name string) string
}

const adminTokenKey = "admin"

// RegisterSteps registers face verification, voting and admin steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &votingSteps{tc: tc}

	// Voter steps
	ctx.Step(`^voter "([^"]*)" verifies their face$`, steps.verifyFace)
	ctx.Step(`^voter "([^"]*)" votes for "([^"]*)"$`, steps.vote)
	ctx.Step(`^voter "([^"]*)" votes for "([^"]*)" with the proof of "([^"]*)"$`, steps.voteWithProofOf)
	ctx.Step(`^voter "([^"]*)" votes for "([^"]*)" without a proof$`, steps.voteWithoutProof)

	// Admin steps
	ctx.Step(`^I log in as the administrator$`, steps.adminLogin)
	ctx.Step(`^I GET "([^"]*)" as the administrator$`, steps.adminGet)
	ctx.Step(`^candidate "([^"]*)" should have at least (\d+) votes?$`, steps.candidateHasAtLeast)
}

type votingSteps struct {
	tc TestContext
}

func (s *votingSteps) verifyFace(ctx context.Context, voterID string) error {
	probe := base64.StdEncoding.EncodeToString([]byte("e2e-probe-" + voterID))
	if err := s.tc.POST("/api/verify-face", map[string]interface{}{
		"voter_id": voterID,
		"image":    "data:image/jpeg;base64," + probe,
	}, ""); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != 200 {
		return nil
	}
	token, err := s.tc.GetResponseField("token")
	if err != nil {
		return err
	}
	s.tc.SetToken(voterID, token.(string))
	return nil
}

func (s *votingSteps) vote(ctx context.Context, voterID, candidateID string) error {
	return s.voteWithProofOf(ctx, voterID, candidateID, voterID)
}

func (s *votingSteps) voteWithProofOf(ctx context.Context, voterID, candidateID, proofOwner string) error {
	token := s.tc.GetToken(proofOwner)
	if token == "" {
		return fmt.Errorf("no proof token saved for %s", proofOwner)
	}
	return s.tc.POST("/api/vote", map[string]interface{}{
		"voter_id":     voterID,
		"candidate_id": candidateID,
	}, token)
}

func (s *votingSteps) voteWithoutProof(ctx context.Context, voterID, candidateID string) error {
	return s.tc.POST("/api/vote", map[string]interface{}{
		"voter_id":     voterID,
		"candidate_id": candidateID,
	}, "")
}

func (s *votingSteps) adminLogin(ctx context.Context) error {
	password := os.Getenv("BALLOT_E2E_ADMIN_PASSWORD")
	if password == "" {
		return godog.ErrPending
	}
	username := os.Getenv("BALLOT_E2E_ADMIN_USERNAME")
	if username == "" {
		username = "admin"
	}
	if err := s.tc.POST("/api/auth/login", map[string]interface{}{
		"username": username,
		"password": password,
	}, ""); err != nil {
		return err
	}
	token, err := s.tc.GetResponseField("access_token")
	if err != nil {
		return err
	}
	s.tc.SetToken(adminTokenKey, token.(string))
	return nil
}

func (s *votingSteps) adminGet(ctx context.Context, path string) error {
	token := s.tc.GetToken(adminTokenKey)
	if token == "" {
		return errors.New("not logged in as the administrator")
	}
	return s.tc.GET(path, token)
}

func (s *votingSteps) candidateHasAtLeast(ctx context.Context, candidateID string, votes int) error {
	var body struct {
		Results []struct {
			CandidateID string `json:"candidate_id"`
			Votes       int    `json:"votes"`
		} `json:"results"`
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &body); err != nil {
		return fmt.Errorf("decode results: %w", err)
	}
	for _, r := range body.Results {
		if r.CandidateID == candidateID {
			if r.Votes < votes {
				return fmt.Errorf("candidate %s has %d votes, want at least %d", candidateID, r.Votes, votes)
			}
			return nil
		}
	}
	return fmt.Errorf("candidate %s not in results", candidateID)
}
