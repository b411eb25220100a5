package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/dkeye/barflow/internal/adapters/stockfeed"
	"github.com/dkeye/barflow/internal/core"
	"github.com/dkeye/barflow/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

func (h *Handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"presence":  core.NewPresenceSnapshot(h.Orch.Registry.MembershipCounts()),
		"timestamp": time.Now().UTC(),
	})
}

func (h *Handlers) presence(c *gin.Context) {
	c.JSON(http.StatusOK, core.NewPresenceSnapshot(h.Orch.Registry.MembershipCounts()))
}

func (h *Handlers) connections(c *gin.Context) {
	conns := h.Orch.Registry.ListConnections()
	c.JSON(http.StatusOK, gin.H{"connections": conns, "count": len(conns)})
}

// kick is the admin force-disconnect.
func (h *Handlers) kick(c *gin.Context) {
	id := domain.ConnectionID(c.Param("id"))
	reason := c.DefaultQuery("reason", "disconnected by admin")
	if !h.Orch.Kick(id, reason) {
		abortWithError(c, fmt.Errorf("connection %s: %w", id, domain.ErrNotFound))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) snapshot(c *gin.Context) {
	snap, err := h.Orch.Snapshot(c.Request.Context())
	if err != nil {
		abortWithError(c, domain.Aborted("snapshot", err))
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handlers) notice(c *gin.Context) {
	var req struct {
		Message string `json:"message" binding:"required"`
		Level   string `json:"level"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%v: %w", err, domain.ErrInvalidInput))
		return
	}
	res := h.Orch.SystemNotice(req.Message, req.Level)
	c.JSON(http.StatusAccepted, gin.H{"sent_to": res.SentTo, "dropped": len(res.Dropped)})
}

func (h *Handlers) stockSignal(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		abortWithError(c, fmt.Errorf("%v: %w", err, domain.ErrInvalidInput))
		return
	}
	sig, err := stockfeed.Decode(body)
	if err != nil {
		abortWithError(c, fmt.Errorf("%v: %w", err, domain.ErrInvalidInput))
		return
	}
	status, priority := sig.Classify()
	alerted := h.Orch.StockSignal(sig)
	c.JSON(http.StatusAccepted, gin.H{"status": status, "priority": priority, "alerted": alerted})
}

// setSessionName remembers the display name in the cookie session; new
// sockets from this browser start with it.
func (h *Handlers) setSessionName(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%v: %w", err, domain.ErrInvalidInput))
		return
	}
	name, err := domain.NormalizeName(req.Name)
	if err != nil {
		abortWithError(c, err)
		return
	}
	sess := sessions.Default(c)
	sess.Set(sessionNameKey, name)
	if err := sess.Save(); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name})
}
