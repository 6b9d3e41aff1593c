package jwttoken

import (
	"ballot/internal/ballot"
	"ballot/internal/platform/middleware"
)

// ToIdentityProof turns validated proof claims into the gate's proof value.
func ToIdentityProof(claims *ProofClaims) ballot.IdentityProof {
	return ballot.IdentityProof{
		VoterID:    claims.VoterID,
		Matched:    claims.Matched,
		Confidence: claims.Confidence,
	}
}

// AdminValidatorAdapter exposes admin token validation to the auth middleware.
type AdminValidatorAdapter struct {
	service *JWTService
}

func NewAdminValidatorAdapter(service *JWTService) *AdminValidatorAdapter {
	return &AdminValidatorAdapter{service: service}
}

func (a *AdminValidatorAdapter) ValidateToken(tokenString string) (*middleware.AdminClaims, error) {
	claims, err := a.service.ValidateAdminToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.AdminClaims{Subject: claims.Subject, JTI: claims.ID}, nil
}

// ProofParser turns a bearer proof token into an IdentityProof. Any failure
// yields the zero proof, which the gate rejects as IdentityNotVerified.
type ProofParser struct {
	service *JWTService
}

func NewProofParser(service *JWTService) *ProofParser {
	return &ProofParser{service: service}
}

func (p *ProofParser) ParseProof(tokenString string) ballot.IdentityProof {
	if tokenString == "" {
		return ballot.IdentityProof{}
	}
	claims, err := p.service.ValidateProofToken(tokenString)
	if err != nil {
		return ballot.IdentityProof{}
	}
	return ToIdentityProof(claims)
}
