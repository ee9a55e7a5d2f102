package auth

import (
	"errors"
	"time"

	"voice-console/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrTokenInvalid = errors.New("invalid token")

type Manager struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewManager(cfg config.AuthConfig) (*Manager, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	return &Manager{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.JWTIssuer,
		audience:   cfg.JWTAudience,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
	}, nil
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    int64  `json:"expiresAt"`
}

// IssuePair signs an access/refresh pair. Both carry the role so a refresh
// can mint a new access token without a user lookup.
func (m *Manager) IssuePair(now time.Time, userID, role string) (TokenPair, error) {
	access, err := m.sign(now, TokenTypeAccess, userID, role, m.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := m.sign(now, TokenTypeRefresh, userID, role, m.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(m.accessTTL).Unix(),
	}, nil
}

// Verify parses and validates a token of the expected type at time now.
func (m *Manager) Verify(tokenString string, expected TokenType, now time.Time) (Claims, error) {
	var claims Claims

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		// Time checks happen below against now, not the wall clock.
		jwt.WithoutClaimsValidation(),
	)
	if _, err := parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}); err != nil {
		return Claims{}, errors.Join(ErrTokenInvalid, err)
	}

	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(30 * time.Second),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}
	if err := jwt.NewValidator(opts...).Validate(claims.RegisteredClaims); err != nil {
		return Claims{}, errors.Join(ErrTokenInvalid, err)
	}

	switch {
	case claims.TokenType != expected:
		return Claims{}, errors.Join(ErrTokenInvalid, errors.New("token_type mismatch"))
	case claims.UserID == "":
		return Claims{}, errors.Join(ErrTokenInvalid, errors.New("user_id missing"))
	case claims.Role == "":
		return Claims{}, errors.Join(ErrTokenInvalid, errors.New("role missing"))
	case claims.ID == "":
		return Claims{}, errors.Join(ErrTokenInvalid, errors.New("jti missing"))
	}
	return claims, nil
}

func (m *Manager) sign(now time.Time, tokenType TokenType, userID, role string, ttl time.Duration) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Audience:  audienceOrNil(m.audience),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		UserID:    userID,
		Role:      role,
		TokenType: tokenType,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func audienceOrNil(aud string) jwt.ClaimStrings {
	if aud == "" {
		return nil
	}
	return jwt.ClaimStrings{aud}
}
