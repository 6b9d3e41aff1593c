package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "ballot/pkg/domain-errors"
)

// Audiences keep the two token kinds from being accepted in place of each other.
const (
	AudienceVote  = "ballot-vote"
	AudienceAdmin = "ballot-admin"
)

// ProofClaims is the identity-proof token issued after a successful face match.
type ProofClaims struct {
	VoterID    string  `json:"voter_id"`
	Matched    bool    `json:"matched"`
	Confidence float64 `json:"confidence"`
	jwt.RegisteredClaims
}

// AdminClaims is the administrator access token.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTService signs and validates HS256 tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
	now        func() time.Time
}

func NewJWTService(signingKey string, issuer string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		now:        time.Now,
	}
}

func (s *JWTService) registered(subject, audience string, expiresIn time.Duration) jwt.RegisteredClaims {
	now := s.now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    s.issuer,
		Audience:  []string{audience},
		ID:        uuid.NewString(),
	}
}

// GenerateProofToken issues an identity proof for voterID.
func (s *JWTService) GenerateProofToken(voterID string, matched bool, confidence float64, expiresIn time.Duration) (string, *ProofClaims, error) {
	claims := &ProofClaims{
		VoterID:          voterID,
		Matched:          matched,
		Confidence:       confidence,
		RegisteredClaims: s.registered(voterID, AudienceVote, expiresIn),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// GenerateAdminToken issues an admin access token for subject.
func (s *JWTService) GenerateAdminToken(subject string, expiresIn time.Duration) (string, *AdminClaims, error) {
	claims := &AdminClaims{
		Role:             "admin",
		RegisteredClaims: s.registered(subject, AudienceAdmin, expiresIn),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// ValidateProofToken parses an identity proof token.
func (s *JWTService) ValidateProofToken(tokenString string) (*ProofClaims, error) {
	claims := &ProofClaims{}
	if err := s.parse(tokenString, claims, AudienceVote); err != nil {
		return nil, err
	}
	if claims.VoterID == "" || claims.VoterID != claims.Subject {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// ValidateAdminToken parses an admin access token.
func (s *JWTService) ValidateAdminToken(tokenString string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	if err := s.parse(tokenString, claims, AudienceAdmin); err != nil {
		return nil, err
	}
	if claims.Role != "admin" || claims.Subject == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

func (s *JWTService) parse(tokenString string, claims jwt.Claims, audience string) error {
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithAudience(audience),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return nil
}
