package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pixelforge/forge/internal/domain"
)

// DefaultSessionTTL is how long an issued session stays valid.
const DefaultSessionTTL = time.Hour

// Claims is the verified content of a session token.
type Claims struct {
	Subject   string      `json:"sub"`
	Role      domain.Role `json:"role"`
	IssuedAt  time.Time   `json:"iat"`
	ExpiresAt time.Time   `json:"exp"`
	TokenID   string      `json:"jti"`
}

type sessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// SessionManager issues and verifies HS256 session tokens. Verification needs
// only the token and the shared secret, so any process holding the same secret
// accepts tokens issued by any other.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// SessionOption customises a SessionManager.
type SessionOption func(*SessionManager)

// WithClock replaces the time source used for iat/exp and for expiry checks.
func WithClock(now func() time.Time) SessionOption {
	return func(m *SessionManager) { m.now = now }
}

// NewSessionManager creates a manager. A zero ttl selects DefaultSessionTTL.
func NewSessionManager(secret []byte, ttl time.Duration, issuer string, opts ...SessionOption) (*SessionManager, error) {
	if len(secret) == 0 {
		return nil, errors.New("session secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	m := &SessionManager{
		secret: append([]byte(nil), secret...),
		ttl:    ttl,
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// TTL returns the lifetime given to issued tokens.
func (m *SessionManager) TTL() time.Duration { return m.ttl }

// Issue signs a token for subject with role, valid from now for the configured TTL.
func (m *SessionManager) Issue(subject string, role domain.Role) (string, Claims, error) {
	if subject == "" || !role.Valid() {
		return "", Claims{}, fmt.Errorf("issue session: subject and valid role are required")
	}

	now := m.now().Truncate(time.Second)
	claims := Claims{
		Subject:   subject,
		Role:      role,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
		TokenID:   uuid.Must(uuid.NewV7()).String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			NotBefore: jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
			ID:        claims.TokenID,
		},
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign session: %w", err)
	}
	return signed, claims, nil
}

// Verify checks the token's signature and lifetime and returns its claims.
// Failures wrap domain.ErrInvalidSignature, domain.ErrSessionExpired or
// domain.ErrSessionMalformed.
func (m *SessionManager) Verify(tokenString string) (Claims, error) {
	if tokenString == "" {
		return Claims{}, fmt.Errorf("empty token: %w", domain.ErrSessionMalformed)
	}

	parsed := &sessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, parsed,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return Claims{}, classifyTokenError(err)
	}

	role := domain.Role(parsed.Role)
	if parsed.Subject == "" || !role.Valid() || parsed.IssuedAt == nil {
		return Claims{}, fmt.Errorf("token is missing subject, role or iat: %w", domain.ErrSessionMalformed)
	}

	return Claims{
		Subject:   parsed.Subject,
		Role:      role,
		IssuedAt:  parsed.IssuedAt.Time,
		ExpiresAt: parsed.ExpiresAt.Time,
		TokenID:   parsed.ID,
	}, nil
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", domain.ErrSessionExpired, err)
	default:
		return fmt.Errorf("%w: %v", domain.ErrSessionMalformed, err)
	}
}
