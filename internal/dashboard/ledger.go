package dashboard

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/rtcmas/internal/ledger"
)

// LedgerHandler exposes read-only HTTP endpoints for the incident ledger.
type LedgerHandler struct {
	ledger ledger.Reader
	logger *zap.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(l ledger.Reader, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: l, logger: logger}
}

// Register mounts the ledger routes on the given router group.
func (h *LedgerHandler) Register(rg *gin.RouterGroup) {
	l := rg.Group("/ledger")
	{
		l.GET("", h.Overview)
		l.GET("/verify", h.Verify)
		l.GET("/blocks", h.Export)
		l.GET("/blocks/:idx", h.GetBlock)
	}
}

// Overview handles GET /ledger: chain length and current root hash.
func (h *LedgerHandler) Overview(c *gin.Context) {
	n := h.ledger.Len()
	SetLedgerBlocks(n)
	c.JSON(http.StatusOK, gin.H{
		"length": n,
		"root":   h.ledger.Root(),
	})
}

// Verify handles GET /ledger/verify: walks the full chain and reports integrity.
func (h *LedgerHandler) Verify(c *gin.Context) {
	if err := h.ledger.Check(); err != nil {
		h.logger.Warn("ledger integrity check failed", zap.Error(err))
		resp := gin.H{"valid": false, "error": err.Error()}
		var ierr *ledger.IntegrityError
		if errors.As(err, &ierr) {
			resp["index"] = ierr.Index
		}
		c.JSON(http.StatusOK, resp)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// Export handles GET /ledger/blocks: the full chain in the snapshot format
// accepted by "rtcmas verify --file".
func (h *LedgerHandler) Export(c *gin.Context) {
	c.Header("Content-Type", "application/json; charset=utf-8")
	c.Status(http.StatusOK)
	if err := ledger.WriteSnapshot(c.Writer, h.ledger.Snapshot()); err != nil {
		h.logger.Error("ledger export", zap.Error(err))
	}
}

// GetBlock handles GET /ledger/blocks/:idx.
func (h *LedgerHandler) GetBlock(c *gin.Context) {
	idx, err := strconv.Atoi(c.Param("idx"))
	if err != nil || idx < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "idx must be a non-negative integer"})
		return
	}

	block, err := h.ledger.Get(idx)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "block not found"})
		return
	}
	c.JSON(http.StatusOK, block)
}
