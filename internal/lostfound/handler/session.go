package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/lostfound/internal/identity"
	"go.uber.org/zap"
)

// SessionHandler issues reporter session tokens. There are no accounts: a
// session just binds an owner id and contact to a signed token.
type SessionHandler struct {
	sessions *identity.SessionIssuer
	logger   *zap.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *identity.SessionIssuer, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

// Register mounts the session routes on the given router group.
func (h *SessionHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/session", h.StartSession)
	rg.GET("/session", identity.RequireSession(h.sessions), h.CurrentSession)
}

type startSessionRequest struct {
	OwnerID      string `json:"owner_id" binding:"required"`
	OwnerContact string `json:"owner_contact"`
}

// StartSession handles POST /session.
func (h *SessionHandler) StartSession(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.OwnerID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner_id is required", "field": "owner_id"})
		return
	}

	token, err := h.sessions.Issue(req.OwnerID, req.OwnerContact)
	if err != nil {
		h.logger.Error("issue session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue session"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"token":      token,
		"token_type": "Bearer",
		"expires_in": int(h.sessions.TTL().Seconds()),
		"owner_id":   strings.TrimSpace(req.OwnerID),
	})
}

// CurrentSession handles GET /session and echoes the caller's claims.
func (h *SessionHandler) CurrentSession(c *gin.Context) {
	claims := identity.SessionFromCtx(c)
	c.JSON(http.StatusOK, gin.H{
		"owner_id":      claims.OwnerID,
		"owner_contact": claims.Contact,
		"expires_at":    claims.ExpiresAt.Time,
	})
}
