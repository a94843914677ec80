package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/whisperecho/whisper-server/internal/config"
	"github.com/whisperecho/whisper-server/internal/domain/credential"
	"github.com/whisperecho/whisper-server/internal/domain/principal"
	"github.com/whisperecho/whisper-server/internal/repo"
	"go.uber.org/zap"
)

// Resolution failures. Every failure out of Resolve wraps exactly one of
// these (or the caller's context error); the gate maps each to the fixed
// external contract.
var (
	ErrNoCredential              = errors.New("no credential")
	ErrInvalidElevatedCredential = errors.New("invalid elevated credential")
	ErrInvalidBearerCredential   = errors.New("invalid bearer credential")
	ErrPrincipalNotFound         = errors.New("principal not found")
	ErrInvalidLogin              = errors.New("invalid username or password")
)

// Request headers carrying credentials.
const (
	HeaderAuthorization = "Authorization"
	HeaderAdminMode     = "X-Admin-Mode"  // truthy marker: admin console call
	HeaderAdminToken    = "X-Admin-Token" // encoded elevated triple
)

// adminPrincipalID is the fixed well-known ID of the synthesized elevated
// principal; the elevated path never touches the user store.
const adminPrincipalID = "admin"

// UserStore is the read-only view of the user store the resolver needs.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*repo.User, error)
	GetByUsername(ctx context.Context, username string) (*repo.User, error)
}

// AuthService resolves request credentials into a Principal and issues
// bearer identity tokens. All credential material is loaded once at
// construction and immutable afterwards.
type AuthService struct {
	log   *zap.Logger
	codec *credential.Codec
	users UserStore

	adminUsername   string
	adminSecretHash []byte // SHA-256 of the provisioned admin secret
	elevatedMaxAge  time.Duration
}

// NewAuthService builds the resolver from the immutable auth config.
func NewAuthService(log *zap.Logger, cfg config.AuthConfig, users UserStore) (*AuthService, error) {
	codec, err := credential.NewCodec([]byte(cfg.BearerSecret), cfg.BearerTTL)
	if err != nil {
		return nil, fmt.Errorf("bearer codec: %w", err)
	}

	hash, err := hex.DecodeString(cfg.AdminSecretHash)
	if err != nil || len(hash) != sha256.Size {
		return nil, fmt.Errorf("admin_secret_hash must be hex SHA-256")
	}

	return &AuthService{
		log:             log.Named("auth"),
		codec:           codec,
		users:           users,
		adminUsername:   cfg.AdminUsername,
		adminSecretHash: hash,
		elevatedMaxAge:  cfg.ElevatedMaxAge,
	}, nil
}

// Resolve turns the request's credential candidates into a Principal.
//
// Precedence is fixed: the elevated path is tried first whenever both admin
// headers are present, and a token that fails to decode aborts resolution
// rather than silently downgrading to bearer auth. A well-formed triple that
// simply does not match the provisioned credential falls through. The only
// suspension point is the user lookup, bounded by ctx.
func (s *AuthService) Resolve(ctx context.Context, h http.Header) (*principal.Principal, error) {
	if isTruthy(h.Get(HeaderAdminMode)) && h.Get(HeaderAdminToken) != "" {
		tok, err := credential.DecodeElevated(h.Get(HeaderAdminToken))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidElevatedCredential, err)
		}
		if s.elevatedMaxAge > 0 {
			issued := time.UnixMilli(tok.IssuedAt)
			if time.Since(issued) > s.elevatedMaxAge {
				return nil, fmt.Errorf("%w: token older than %s", ErrInvalidElevatedCredential, s.elevatedMaxAge)
			}
		}
		if s.matchAdmin(tok) {
			return &principal.Principal{
				ID:       adminPrincipalID,
				Role:     principal.RoleAdmin,
				Username: tok.Username,
			}, nil
		}
		// Decodable but unmatched: fall through to bearer resolution.
	}

	if raw, ok := bearerToken(h.Get(HeaderAuthorization)); ok {
		claims, err := s.codec.VerifyBearer(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBearerCredential, err)
		}

		u, err := s.users.GetByID(ctx, claims.Subject)
		if err != nil {
			if errors.Is(err, repo.ErrUserNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrPrincipalNotFound, claims.Subject)
			}
			// Store fault, not a credential failure; keep the distinction so
			// clients don't discard still-valid tokens.
			return nil, fmt.Errorf("user lookup: %w", err)
		}
		return principalFromUser(u), nil
	}

	return nil, ErrNoCredential
}

// IssueBearer validates a username/password login and mints a bearer
// identity token for the matched user.
func (s *AuthService) IssueBearer(ctx context.Context, username, password string) (string, *principal.Principal, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return "", nil, ErrInvalidLogin
		}
		return "", nil, fmt.Errorf("user lookup: %w", err)
	}

	sum := sha256.Sum256([]byte(password))
	if !hmac.Equal([]byte(hex.EncodeToString(sum[:])), []byte(u.PasswordHash)) {
		return "", nil, ErrInvalidLogin
	}

	tok, err := s.codec.SignBearer(u.ID)
	if err != nil {
		return "", nil, err
	}
	return tok, principalFromUser(u), nil
}

// BearerTTL exposes the issued-token lifetime for response shaping.
func (s *AuthService) BearerTTL() time.Duration { return s.codec.TTL() }

// matchAdmin compares the decoded triple against the provisioned admin
// credential: username equality plus constant-time comparison of the
// presented secret's hash. The carried timestamp plays no part here.
func (s *AuthService) matchAdmin(tok *credential.ElevatedToken) bool {
	if tok.Username != s.adminUsername {
		return false
	}
	sum := sha256.Sum256([]byte(tok.Secret))
	return hmac.Equal(sum[:], s.adminSecretHash)
}

// principalFromUser builds a Principal from a persisted record with
// sensitive fields stripped. The record's role field is authoritative.
func principalFromUser(u *repo.User) *principal.Principal {
	return &principal.Principal{
		ID:       u.ID,
		Role:     principal.ParseRole(u.Role),
		Username: u.Username,
		Email:    u.Email,
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <tok>" value.
func bearerToken(v string) (string, bool) {
	const prefix = "Bearer "
	if len(v) > len(prefix) && strings.EqualFold(v[:len(prefix)], prefix) {
		return strings.TrimSpace(v[len(prefix):]), true
	}
	return "", false
}

// isTruthy accepts the literal truthy marker forms the admin console sends.
func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "true", "1":
		return true
	default:
		return false
	}
}
