package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/lostfound/internal/identity"
	"github.com/jmerrifield20/lostfound/internal/itemledger"
	"go.uber.org/zap"
)

// chainReader is the read side of the ledger. *itemledger.Store satisfies it.
type chainReader interface {
	Len(ctx context.Context) (int, error)
	Latest(ctx context.Context) (itemledger.Entry, error)
	List(ctx context.Context) ([]itemledger.Entry, error)
	Verify(ctx context.Context) error
}

// rechainer re-links the chain. *service.ItemService satisfies it.
type rechainer interface {
	Rechain(ctx context.Context) (int, error)
}

// LedgerHandler exposes the raw chain for auditing.
type LedgerHandler struct {
	ledger      chainReader
	rechain     rechainer
	adminSecret string
	logger      *zap.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledger chainReader, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, logger: logger}
}

// SetRechainer enables POST /ledger/rechain, guarded by the admin secret.
func (h *LedgerHandler) SetRechainer(r rechainer, adminSecret string) {
	h.rechain = r
	h.adminSecret = adminSecret
}

// Register mounts the ledger routes on the given router group.
func (h *LedgerHandler) Register(rg *gin.RouterGroup) {
	l := rg.Group("/ledger")
	{
		l.GET("", h.Overview)
		l.GET("/verify", h.Verify)
		l.GET("/entries", h.ListEntries)
		l.GET("/entries/:idx", h.GetEntry)
		if h.rechain != nil {
			l.POST("/rechain", identity.RequireAdminSecret(h.adminSecret), h.Rechain)
		}
	}
}

// Overview handles GET /ledger with the chain length, the latest
// fingerprint and the integrity verdict.
func (h *LedgerHandler) Overview(c *gin.Context) {
	ctx := c.Request.Context()

	count, err := h.ledger.Len(ctx)
	if err != nil {
		abortWithError(c, h.logger, "query ledger", err)
		return
	}

	latest, err := h.ledger.Latest(ctx)
	if err != nil {
		abortWithError(c, h.logger, "query latest entry", err)
		return
	}

	valid := h.ledger.Verify(ctx) == nil
	RecordChainVerification(valid)

	c.JSON(http.StatusOK, gin.H{
		"entries": count,
		"latest":  latest.Fingerprint,
		"valid":   valid,
	})
}

// Verify handles GET /ledger/verify. A broken chain is still a 200; the
// verdict is in the body.
func (h *LedgerHandler) Verify(c *gin.Context) {
	err := h.ledger.Verify(c.Request.Context())
	RecordChainVerification(err == nil)
	if err != nil {
		h.logger.Warn("ledger integrity check failed", zap.Error(err))
		body := gin.H{
			"valid": false,
			"error": err.Error(),
		}
		var chainErr *itemledger.ChainError
		if errors.As(err, &chainErr) {
			body["index"] = chainErr.Index
		}
		c.JSON(http.StatusOK, body)
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// ListEntries handles GET /ledger/entries with the full chain, genesis first.
func (h *LedgerHandler) ListEntries(c *gin.Context) {
	entries, err := h.ledger.List(c.Request.Context())
	if err != nil {
		abortWithError(c, h.logger, "list entries", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

// GetEntry handles GET /ledger/entries/:idx.
func (h *LedgerHandler) GetEntry(c *gin.Context) {
	idx, err := strconv.Atoi(c.Param("idx"))
	if err != nil || idx < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "idx must be a non-negative integer"})
		return
	}

	entries, err := h.ledger.List(c.Request.Context())
	if err != nil {
		abortWithError(c, h.logger, "list entries", err)
		return
	}
	if idx >= len(entries) {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
		return
	}

	c.JSON(http.StatusOK, entries[idx])
}

// Rechain handles POST /ledger/rechain.
func (h *LedgerHandler) Rechain(c *gin.Context) {
	n, err := h.rechain.Rechain(c.Request.Context())
	if err != nil {
		abortWithError(c, h.logger, "rechain ledger", err)
		return
	}
	h.logger.Info("ledger rechained", zap.Int("changed", n), zap.String("client_ip", c.ClientIP()))
	c.JSON(http.StatusOK, gin.H{"changed": n})
}
