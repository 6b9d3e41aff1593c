package handler

import (
	"encoding/base64"
	"strings"

	dErrors "ballot/pkg/domain-errors"
)

// VerifyFaceRequest carries a base64 image, optionally as a data URL.
type VerifyFaceRequest struct {
	VoterID string `json:"voter_id"`
	Image   string `json:"image"`

	probe []byte
}

func (r *VerifyFaceRequest) Validate() error {
	r.VoterID = strings.TrimSpace(r.VoterID)
	if r.VoterID == "" {
		return dErrors.New(dErrors.CodeValidation, "voter_id is required")
	}
	data := strings.TrimSpace(r.Image)
	if _, after, ok := strings.Cut(data, ";base64,"); ok && strings.HasPrefix(data, "data:") {
		data = after
	}
	if data == "" {
		return dErrors.New(dErrors.CodeValidation, "image is required")
	}
	probe, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "image must be base64 encoded")
	}
	r.probe = probe
	return nil
}

type VerifyFaceResponse struct {
	Verified          bool    `json:"verified"`
	Confidence        float64 `json:"confidence"`
	Message           string  `json:"message"`
	Token             string  `json:"token,omitempty"`
	ExpiresAt         string  `json:"expires_at,omitempty"`
	AttemptsRemaining int     `json:"attempts_remaining,omitempty"`
}
