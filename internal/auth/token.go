package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sessiongate/auth-gateway/internal/config"
	"github.com/sessiongate/auth-gateway/internal/domain"
)

// TokenKind distinguishes access tokens from refresh tokens.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

var (
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenSignature = errors.New("token signature invalid")
)

// Identity is the decoded caller attached to gated requests.
type Identity struct {
	UserID   string
	Role     domain.Role
	Username string
}

// IdentityFromUser projects the token-relevant fields of a user record.
func IdentityFromUser(user *domain.User) Identity {
	return Identity{UserID: user.ID, Role: user.Role, Username: user.Username}
}

// Claims describes JWT payload.
type Claims struct {
	UserID   string      `json:"userId"`
	Role     domain.Role `json:"role"`
	Username string      `json:"username"`
	Kind     TokenKind   `json:"typ"`
	jwt.RegisteredClaims
}

// Identity returns the caller described by the claims.
func (c *Claims) Identity() Identity {
	return Identity{UserID: c.UserID, Role: c.Role, Username: c.Username}
}

// TokenCodec signs and verifies one kind of token under one secret.
type TokenCodec struct {
	kind   TokenKind
	secret []byte
	now    func() time.Time
}

// CodecOption customizes a TokenCodec.
type CodecOption func(*TokenCodec)

// WithClock overrides the time source used for issuing and expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(tc *TokenCodec) {
		tc.now = now
	}
}

// NewTokenCodec builds a codec. The secret must be non-empty.
func NewTokenCodec(kind TokenKind, secret string, opts ...CodecOption) (*TokenCodec, error) {
	if secret == "" {
		return nil, fmt.Errorf("%s token secret is empty", kind)
	}
	tc := &TokenCodec{kind: kind, secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(tc)
	}
	return tc, nil
}

// Issue signs a token for the identity that expires after ttl.
func (tc *TokenCodec) Issue(identity Identity, ttl time.Duration) (string, time.Time, error) {
	now := tc.now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		UserID:   identity.UserID,
		Role:     identity.Role,
		Username: identity.Username,
		Kind:     tc.kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   identity.UserID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tc.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Verify validates signature, token kind and expiry.
func (tc *TokenCodec) Verify(tokenStr string) (*Claims, error) {
	return tc.parse(tokenStr, true)
}

// VerifySignature validates signature and token kind but accepts expired tokens.
func (tc *TokenCodec) VerifySignature(tokenStr string) (*Claims, error) {
	return tc.parse(tokenStr, false)
}

func (tc *TokenCodec) parse(tokenStr string, checkExpiry bool) (*Claims, error) {
	if strings.TrimSpace(tokenStr) == "" {
		return nil, ErrTokenMalformed
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(tc.now),
		jwt.WithExpirationRequired(),
	}
	if !checkExpiry {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return tc.secret, nil
	}, opts...)
	if err != nil {
		return nil, classifyParseError(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	if claims.Kind != tc.kind {
		return nil, fmt.Errorf("%w: expected %s token", ErrTokenSignature, tc.kind)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing userId", ErrTokenMalformed)
	}
	return claims, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrTokenSignature, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}

// TokenManager issues and validates access/refresh token pairs.
type TokenManager struct {
	access     *TokenCodec
	refresh    *TokenCodec
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenManager builds a manager from auth configuration.
func NewTokenManager(cfg config.AuthConfig, opts ...CodecOption) (*TokenManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	access, err := NewTokenCodec(TokenKindAccess, cfg.AccessTokenSecret, opts...)
	if err != nil {
		return nil, err
	}
	refresh, err := NewTokenCodec(TokenKindRefresh, cfg.RefreshTokenSecret, opts...)
	if err != nil {
		return nil, err
	}
	return &TokenManager{
		access:     access,
		refresh:    refresh,
		accessTTL:  cfg.AccessTokenTTL(),
		refreshTTL: cfg.RefreshTokenTTL(),
	}, nil
}

// IssuePair signs a fresh access and refresh token for the identity.
func (tm *TokenManager) IssuePair(identity Identity) (domain.TokenPair, error) {
	accessToken, accessExp, err := tm.access.Issue(identity, tm.accessTTL)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, refreshExp, err := tm.refresh.Issue(identity, tm.refreshTTL)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return domain.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// VerifyAccess validates an access token.
func (tm *TokenManager) VerifyAccess(tokenStr string) (*Claims, error) {
	return tm.access.Verify(tokenStr)
}

// VerifyRefresh validates a refresh token, including expiry.
func (tm *TokenManager) VerifyRefresh(tokenStr string) (*Claims, error) {
	return tm.refresh.Verify(tokenStr)
}

// DecodeRefresh checks a refresh token signature without enforcing expiry.
func (tm *TokenManager) DecodeRefresh(tokenStr string) (*Claims, error) {
	return tm.refresh.VerifySignature(tokenStr)
}

// RefreshTTL returns the refresh token lifetime.
func (tm *TokenManager) RefreshTTL() time.Duration {
	return tm.refreshTTL
}
