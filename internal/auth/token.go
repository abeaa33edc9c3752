package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token type claims. The codec signs with HS256 only; there is no
// algorithm negotiation.
const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
	tokenTypeReset   = "reset"

	resetTokenTTL = time.Hour
)

// AccessClaims are the verified contents of an access token.
type AccessClaims struct {
	AccountID string
	ExpiresAt time.Time
}

// RefreshClaims are the verified contents of a refresh token. The JTI is
// for correlation only; the session store is the source of truth for
// revocation.
type RefreshClaims struct {
	AccountID string
	JTI       string
	ExpiresAt time.Time
}

// ResetClaims are the verified contents of a password-reset token. The
// subject is the account email, not its id.
type ResetClaims struct {
	Email     string
	ExpiresAt time.Time
}

type wireClaims struct {
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// Codec signs and verifies the three bearer-token kinds with a single
// process-wide secret. Encoding and decoding are pure and never touch I/O.
type Codec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithCodecClock overrides the time source (test use).
func WithCodecClock(fn func() time.Time) CodecOption {
	return func(c *Codec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewCodec builds a Codec. The secret must be non-empty and must never be
// logged.
func NewCodec(secret string, accessTTL, refreshTTL time.Duration, opts ...CodecOption) (*Codec, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: empty signing secret", ErrInvalidInput)
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, fmt.Errorf("%w: token TTLs must be positive", ErrInvalidInput)
	}
	c := &Codec{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// EncodeAccess mints a short-lived access token for the account.
func (c *Codec) EncodeAccess(accountID string) (string, time.Time, error) {
	exp := c.now().UTC().Add(c.accessTTL)
	token, err := c.sign(wireClaims{
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	return token, exp, err
}

// EncodeRefresh mints a long-lived refresh token carrying a fresh JTI.
func (c *Codec) EncodeRefresh(accountID string) (token, jti string, expiresAt time.Time, err error) {
	jti = uuid.NewString()
	expiresAt = c.now().UTC().Add(c.refreshTTL)
	token, err = c.sign(wireClaims{
		TokenType: tokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        jti,
		},
	})
	return token, jti, expiresAt, err
}

// EncodeReset mints a password-reset token bound to the email. Its
// lifetime is fixed at one hour.
func (c *Codec) EncodeReset(email string) (string, time.Time, error) {
	exp := c.now().UTC().Add(resetTokenTTL)
	token, err := c.sign(wireClaims{
		TokenType: tokenTypeReset,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	return token, exp, err
}

// DecodeAccess verifies an access token. Fails closed: any signature,
// expiry, shape, or type mismatch yields ErrInvalidToken.
func (c *Codec) DecodeAccess(token string) (AccessClaims, error) {
	claims, err := c.decode(token, tokenTypeAccess)
	if err != nil {
		return AccessClaims{}, err
	}
	return AccessClaims{AccountID: claims.Subject, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// DecodeRefresh verifies a refresh token.
func (c *Codec) DecodeRefresh(token string) (RefreshClaims, error) {
	claims, err := c.decode(token, tokenTypeRefresh)
	if err != nil {
		return RefreshClaims{}, err
	}
	return RefreshClaims{AccountID: claims.Subject, JTI: claims.ID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// DecodeReset verifies a password-reset token.
func (c *Codec) DecodeReset(token string) (ResetClaims, error) {
	claims, err := c.decode(token, tokenTypeReset)
	if err != nil {
		return ResetClaims{}, err
	}
	return ResetClaims{Email: claims.Subject, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func (c *Codec) sign(claims wireClaims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (c *Codec) decode(token, wantType string) (*wireClaims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &wireClaims{}, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return c.now().UTC() }),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*wireClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != wantType || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
