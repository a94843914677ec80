package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/whisperecho/whisper-server/internal/domain/principal"
	"github.com/whisperecho/whisper-server/internal/service"
	"go.uber.org/zap"
)

// AuthHandler issues bearer identity tokens and reports the caller's
// resolved identity.
type AuthHandler struct {
	log *zap.Logger
	svc *service.AuthService
}

func NewAuthHandler(log *zap.Logger, authsvc *service.AuthService) *AuthHandler {
	return &AuthHandler{log: log.Named("auth"), svc: authsvc}
}

// Login validates a username/password pair and responds with a signed bearer
// token. Elevated-access tokens are minted client-side by the admin console;
// this endpoint covers ordinary users only.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	tok, p, err := h.svc.IssueBearer(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidLogin) {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid credentials"})
			return
		}
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      tok,
		"token_type": "Bearer",
		"expires_in": int64(h.svc.BearerTTL().Seconds()),
		"user": gin.H{
			"id":       p.ID,
			"username": p.Username,
			"role":     p.Role.String(),
		},
	})
}

// Me echoes the identity the gate attached to the request.
func (h *AuthHandler) Me(c *gin.Context) {
	id := principal.GetIdentity(c)
	if id == nil {
		// Gate wasn't applied to this route.
		c.Status(http.StatusUnauthorized)
		return
	}

	if id.Anonymous() {
		c.JSON(http.StatusOK, gin.H{
			"anonymous":  true,
			"session_id": id.SessionID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"anonymous": false,
		"id":        id.Principal.ID,
		"role":      id.Principal.Role.String(),
		"username":  id.Principal.Username,
		"email":     id.Principal.Email,
	})
}
