package credential

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// BearerClaims is the claim set of a bearer identity token. Subject carries
// the persisted user ID; signature validity is checkable without a store
// round trip, but the referenced user must still exist at resolution time.
type BearerClaims struct {
	jwt.RegisteredClaims
}

// Codec signs and verifies bearer identity tokens with a process-wide shared
// secret (HS256). Immutable after construction; safe for concurrent use.
type Codec struct {
	secret []byte
	ttl    time.Duration
}

// NewCodec builds a bearer codec. ttl bounds every token it signs.
func NewCodec(secret []byte, ttl time.Duration) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty bearer secret")
	}
	if ttl <= 0 {
		return nil, errors.New("non-positive bearer ttl")
	}
	return &Codec{secret: secret, ttl: ttl}, nil
}

// TTL returns the lifetime the codec stamps on signed tokens.
func (c *Codec) TTL() time.Duration { return c.ttl }

// SignBearer mints a signed, time-bounded token for the given user ID.
func (c *Codec) SignBearer(userID string) (string, error) {
	now := time.Now()
	claims := BearerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign bearer: %w", err)
	}
	return tok, nil
}

// VerifyBearer parses and verifies a bearer token. Failures are typed:
// ErrMalformed, ErrSignatureInvalid or ErrExpired.
func (c *Codec) VerifyBearer(token string) (*BearerClaims, error) {
	var claims BearerClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(t *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: %v", ErrExpired, err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrMalformed)
	}
	return &claims, nil
}
