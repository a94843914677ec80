package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/whisperecho/whisper-server/internal/domain/principal"
	"github.com/whisperecho/whisper-server/internal/domain/session"
	"github.com/whisperecho/whisper-server/internal/service"
	"go.uber.org/zap"
)

// Machine-readable failure reasons; consumers rely on these exact values.
const (
	ReasonNoCredential      = "NO_CREDENTIAL"
	ReasonInvalidElevated   = "INVALID_ELEVATED_CREDENTIAL"
	ReasonInvalidBearer     = "INVALID_BEARER_CREDENTIAL"
	ReasonPrincipalNotFound = "PRINCIPAL_NOT_FOUND"
	ReasonInsufficientRole  = "INSUFFICIENT_ROLE"
	ReasonInternal          = "INTERNAL"
)

// statusClientClosedRequest mirrors nginx's non-standard 499: the caller
// cancelled while resolution was in flight. Distinct from any Deny so the
// outcome is never cached as a negative result.
const statusClientClosedRequest = 499

// RequireCapability is the authorization gate. It resolves the request's
// credentials, checks the resolved capability against the required tier and
// attaches the resulting identity to the context. Routes requiring
// CapAnonymous tolerate credential absence by deriving a session identifier
// instead; every other tier rejects before any handler runs.
func RequireCapability(log *zap.Logger, authsvc *service.AuthService, required principal.Capability) gin.HandlerFunc {
	log = log.Named("gate")

	return func(c *gin.Context) {
		p, err := authsvc.Resolve(c.Request.Context(), c.Request.Header)
		if err != nil {
			if errors.Is(err, service.ErrNoCredential) && required == principal.CapAnonymous {
				sid := session.Derive(c.ClientIP(), c.Request.UserAgent(), time.Now())
				principal.SetIdentity(c, &principal.Identity{SessionID: string(sid)})
				c.Next()
				return
			}
			abortResolution(c, log, err)
			return
		}

		if !p.Capability().Satisfies(required) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"reason": ReasonInsufficientRole})
			return
		}

		principal.SetIdentity(c, &principal.Identity{Principal: p})
		c.Next()
	}
}

// abortResolution maps a resolution failure to the fixed external contract.
func abortResolution(c *gin.Context, log *zap.Logger, err error) {
	c.Error(err)

	switch {
	case errors.Is(err, service.ErrNoCredential):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"reason": ReasonNoCredential})
	case errors.Is(err, service.ErrInvalidElevatedCredential):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"reason": ReasonInvalidElevated})
	case errors.Is(err, service.ErrInvalidBearerCredential):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"reason": ReasonInvalidBearer})
	case errors.Is(err, service.ErrPrincipalNotFound):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"reason": ReasonPrincipalNotFound})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.AbortWithStatus(statusClientClosedRequest)
	default:
		// Infrastructure fault (e.g. user store down). Not a credential
		// failure; the client's token may still be valid.
		log.Error("resolution failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"reason": ReasonInternal})
	}
}
