package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultIssuer    = "sigepa"
	defaultAccessTTL = 8 * time.Hour
	defaultLeeway    = 30 * time.Second

	// MinSecretLength is the shortest HMAC secret NewTokens accepts.
	MinSecretLength = 32
)

var (
	// ErrInvalidToken covers every verification failure. Callers must not
	// tell clients which check failed.
	ErrInvalidToken = errors.New("auth: invalid token")

	ErrWeakSecret = fmt.Errorf("auth: secret must be at least %d bytes", MinSecretLength)
)

// Claims is the JWT payload.
type Claims struct {
	UserID      int64  `json:"userId"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	CommunityID int64  `json:"communityId,omitempty"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 session tokens. The secret is fixed at
// construction; a Tokens value is safe for concurrent use.
type Tokens struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
	leeway    time.Duration
	now       func() time.Time
}

// Option configures Tokens.
type Option func(*Tokens) error

// WithIssuer overrides the iss claim written and expected.
func WithIssuer(issuer string) Option {
	return func(t *Tokens) error {
		issuer = strings.TrimSpace(issuer)
		if issuer == "" {
			return errors.New("auth: issuer is empty")
		}
		t.issuer = issuer
		return nil
	}
}

// WithAccessTTL configures token lifetime.
func WithAccessTTL(ttl time.Duration) Option {
	return func(t *Tokens) error {
		if ttl <= 0 {
			return errors.New("auth: access ttl must be positive")
		}
		t.accessTTL = ttl
		return nil
	}
}

// WithLeeway sets the clock skew tolerated on exp, nbf and iat.
func WithLeeway(d time.Duration) Option {
	return func(t *Tokens) error {
		if d < 0 {
			return errors.New("auth: leeway must not be negative")
		}
		t.leeway = d
		return nil
	}
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(t *Tokens) error {
		if fn != nil {
			t.now = fn
		}
		return nil
	}
}

// NewTokens constructs Tokens bound to secret.
func NewTokens(secret string, opts ...Option) (*Tokens, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	t := &Tokens{
		secret:    []byte(secret),
		issuer:    defaultIssuer,
		accessTTL: defaultAccessTTL,
		leeway:    defaultLeeway,
		now:       time.Now,
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Issue signs a token for id and returns it with its expiry.
func (t *Tokens) Issue(id Identity) (string, time.Time, error) {
	if id.UserID <= 0 {
		return "", time.Time{}, errors.New("auth: user id is required")
	}
	if !id.Role.Valid() {
		return "", time.Time{}, ErrUnknownRole
	}
	now := t.now().UTC()
	expiresAt := now.Add(t.accessTTL)
	claims := Claims{
		UserID:      id.UserID,
		Email:       strings.TrimSpace(id.Email),
		Role:        id.Role.String(),
		CommunityID: id.CommunityID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   strconv.FormatInt(id.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature, algorithm, issuer and timestamps and decodes the
// identity. It does no I/O: the result depends only on the token, the secret
// and the clock.
func (t *Tokens) Verify(raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, ErrInvalidToken
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(t.leeway),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	id, err := identityFromClaims(claims)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return id, nil
}

func identityFromClaims(c *Claims) (Identity, error) {
	if c.UserID <= 0 {
		return Identity{}, errors.New("user id missing")
	}
	if c.Subject != "" && c.Subject != strconv.FormatInt(c.UserID, 10) {
		return Identity{}, errors.New("subject does not match user id")
	}
	if c.IssuedAt == nil {
		return Identity{}, errors.New("issued-at missing")
	}
	if c.ExpiresAt.Time.Before(c.IssuedAt.Time) {
		return Identity{}, errors.New("token expiry precedes issued-at")
	}
	if c.CommunityID < 0 {
		return Identity{}, errors.New("negative community id")
	}
	role, err := ParseRole(c.Role)
	if err != nil {
		return Identity{}, err
	}
	return Identity{
		UserID:      c.UserID,
		Email:       strings.TrimSpace(c.Email),
		Role:        role,
		CommunityID: c.CommunityID,
	}, nil
}
