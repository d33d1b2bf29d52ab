// Package token issues and validates the signed bearer tokens handed out at
// signin. Tokens are stateless: they stay valid until expiry.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
)

// DefaultTTL is the validity window used when none is configured.
const DefaultTTL = 24 * time.Hour

const minSecretLen = 32

// Validation failures. Expiry is kept apart from the other kinds so callers
// can tell a stale session from a forged or corrupt token.
var (
	ErrMalformed        = fmt.Errorf("%w: malformed", shared.ErrTokenInvalid)
	ErrInvalidSignature = fmt.Errorf("%w: invalid signature", shared.ErrTokenInvalid)
	ErrInvalidClaims    = fmt.Errorf("%w: invalid claims", shared.ErrTokenInvalid)
	ErrExpired          = shared.ErrTokenExpired
)

// Subject is the identity embedded in an issued token.
type Subject struct {
	UserID   int64
	Username string
}

// Token is a signed, encoded credential.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Identity is what a valid token proves about its bearer.
type Identity struct {
	UserID    int64
	Username  string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Claims is the JWT payload.
type Claims struct {
	UserID int64 `json:"uid"`
	jwt.RegisteredClaims
}

// Option customises an Issuer.
type Option func(*Issuer) error

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) error {
		if now == nil {
			return errors.New("token: clock must not be nil")
		}
		i.now = now
		return nil
	}
}

// WithIssuer sets the iss claim that issued tokens carry and validated tokens must match.
func WithIssuer(issuer string) Option {
	return func(i *Issuer) error {
		i.issuer = issuer
		return nil
	}
}

// Issuer signs and validates HS256 tokens with a secret supplied at
// construction. The secret is copied and never mutated afterwards.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewIssuer constructs an Issuer. A zero ttl selects DefaultTTL.
func NewIssuer(secret []byte, ttl time.Duration, opts ...Option) (*Issuer, error) {
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("token: secret must be at least %d bytes", minSecretLen)
	}
	if ttl < 0 {
		return nil, errors.New("token: ttl must be positive")
	}
	if ttl == 0 {
		ttl = DefaultTTL
	}
	i := &Issuer{
		secret: append([]byte(nil), secret...),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		if err := opt(i); err != nil {
			return nil, err
		}
	}
	return i, nil
}

// TTL returns the configured validity window.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a token for the subject valid from now until now+TTL.
func (i *Issuer) Issue(sub Subject) (Token, error) {
	if sub.Username == "" {
		return Token{}, errors.New("token: subject username required")
	}
	now := i.now()
	expires := now.Add(i.ttl)
	claims := Claims{
		UserID: sub.UserID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   sub.Username,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Token{}, fmt.Errorf("token: sign: %w", err)
	}
	return Token{Value: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Validate verifies signature and expiry and returns the embedded identity.
// Errors are always one of ErrMalformed, ErrInvalidSignature,
// ErrInvalidClaims or ErrExpired.
func (i *Issuer) Validate(raw string) (Identity, error) {
	var claims Claims
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}
	_, err := jwt.ParseWithClaims(raw, &claims, i.keyFunc, opts...)
	if err != nil {
		return Identity{}, classify(err)
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidClaims)
	}
	id := Identity{
		UserID:   claims.UserID,
		Username: claims.Subject,
		TokenID:  claims.ID,
	}
	if claims.IssuedAt != nil {
		id.IssuedAt = claims.IssuedAt.UTC()
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.UTC()
	}
	return id, nil
}

func (i *Issuer) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return i.secret, nil
}

// classify maps library errors onto the package error kinds. Malformed is
// checked first because an unparseable token has no meaningful signature.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return fmt.Errorf("%w: %v", ErrInvalidClaims, err)
	}
}

// Result labels a validation outcome for metrics.
func Result(err error) string {
	switch {
	case err == nil:
		return "valid"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	default:
		return "invalid"
	}
}

// String renders the user id for logs.
func (id Identity) String() string {
	return id.Username + "#" + strconv.FormatInt(id.UserID, 10)
}
