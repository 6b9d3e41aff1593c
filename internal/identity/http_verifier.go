package identity

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPVerifier calls a face-match service:
//
//	POST {baseURL}/verify {"voter_id": "...", "image": "<base64>"}
//	200  {"matched": true, "confidence": 0.87}
type HTTPVerifier struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// NewHTTPVerifier builds a verifier with a per-call timeout.
func NewHTTPVerifier(baseURL string, timeout time.Duration, client *http.Client) *HTTPVerifier {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		timeout: timeout,
	}
}

type verifyRequest struct {
	VoterID string `json:"voter_id"`
	Image   string `json:"image"`
}

func (v *HTTPVerifier) Verify(ctx context.Context, voterID string, probe []byte) (Match, error) {
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	body, err := json.Marshal(verifyRequest{
		VoterID: voterID,
		Image:   base64.StdEncoding.EncodeToString(probe),
	})
	if err != nil {
		return Match{}, fmt.Errorf("encode verify request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/verify", bytes.NewReader(body))
	if err != nil {
		return Match{}, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Match{}, ctx.Err()
		}
		return Match{}, fmt.Errorf("%w: %v", ErrVerifierUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return Match{}, fmt.Errorf("%w: status %d", ErrVerifierUnavailable, resp.StatusCode)
	}
	var m Match
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&m); err != nil {
		return Match{}, fmt.Errorf("%w: decode response: %v", ErrVerifierUnavailable, err)
	}
	return m, nil
}

// InsecureDevVerifier accepts every probe. It exists for local development
// without a face-match service and must never run in production.
type InsecureDevVerifier struct{}

func (InsecureDevVerifier) Verify(ctx context.Context, _ string, probe []byte) (Match, error) {
	if err := ctx.Err(); err != nil {
		return Match{}, err
	}
	if len(probe) == 0 {
		return Match{}, nil
	}
	return Match{Matched: true, Confidence: 1}, nil
}
