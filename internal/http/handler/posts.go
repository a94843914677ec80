package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/whisperecho/whisper-server/internal/domain/principal"
	"github.com/whisperecho/whisper-server/internal/repo"
	"github.com/whisperecho/whisper-server/internal/service"
	"go.uber.org/zap"
)

// PostsHandler is the thin post surface consuming the resolved identity:
// anonymous feed reads, user-authored writes, admin moderation deletes.
type PostsHandler struct {
	log *zap.Logger
	svc *service.PostService
}

func NewPostsHandler(log *zap.Logger, postsvc *service.PostService) *PostsHandler {
	return &PostsHandler{log: log.Named("posts"), svc: postsvc}
}

// Feed lists recent posts. Anonymous-tolerant; the derived session
// identifier labels the request for moderation correlation.
func (h *PostsHandler) Feed(c *gin.Context) {
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)

	posts, err := h.svc.Feed(c.Request.Context(), limit)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "feed failed"})
		return
	}

	if id := principal.GetIdentity(c); id != nil && id.Anonymous() {
		h.log.Debug("anonymous feed read", zap.String("session_id", id.SessionID))
	}
	c.JSON(http.StatusOK, posts)
}

// Create stores a post authored by the authenticated principal.
func (h *PostsHandler) Create(c *gin.Context) {
	var req struct {
		Body string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	id := principal.GetIdentity(c)
	if id == nil || id.Anonymous() {
		c.Status(http.StatusUnauthorized)
		return
	}

	p, err := h.svc.Create(c.Request.Context(), id.Principal, req.Body)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, p)
}

// Delete removes a post (moderation; route is admin-gated).
func (h *PostsHandler) Delete(c *gin.Context) {
	if err := h.svc.Remove(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, repo.ErrPostNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "post not found"})
			return
		}
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
