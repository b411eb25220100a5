package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/dkeye/barflow/internal/core"
	"github.com/dkeye/barflow/internal/domain"
	"github.com/dkeye/barflow/internal/ledger"
	"github.com/gin-gonic/gin"
)

type pairResponse struct {
	Front domain.FrontTicket `json:"front"`
	Bar   domain.BarTicket   `json:"bar"`
	State domain.TicketState `json:"state"`
}

func newPair(front domain.FrontTicket, bar domain.BarTicket) pairResponse {
	return pairResponse{Front: front, Bar: bar, State: bar.State()}
}

func ticketID(c *gin.Context) (domain.TicketID, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		abortWithError(c, fmt.Errorf("ticket id %q: %w", c.Param("id"), domain.ErrInvalidInput))
		return 0, false
	}
	return domain.TicketID(id), true
}

func (h *Handlers) createOrder(c *gin.Context) {
	var req ledger.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%v: %w", err, domain.ErrInvalidInput))
		return
	}
	front, bar, err := h.Ledger.Create(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newPair(front, bar))
}

func (h *Handlers) claimOrder(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	var req struct {
		Bartender string `json:"bartender" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%v: %w", err, domain.ErrInvalidInput))
		return
	}
	bar, err := h.Ledger.Claim(c.Request.Context(), id, req.Bartender)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, bar)
}

func (h *Handlers) completeOrder(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	front, bar, err := h.Ledger.Complete(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPair(front, bar))
}

func (h *Handlers) getOrder(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	front, bar, err := h.Ledger.Get(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPair(front, bar))
}

func (h *Handlers) listFront(c *gin.Context) {
	f := core.FrontFilter{Table: c.Query("table")}
	switch c.Query("served") {
	case "":
	case "true", "1":
		f.Served = core.ServedDone
	case "false", "0":
		f.Served = core.ServedPending
	default:
		abortWithError(c, fmt.Errorf("served must be true or false: %w", domain.ErrInvalidInput))
		return
	}
	tickets, err := h.Ledger.ListFront(c.Request.Context(), f)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets, "count": len(tickets)})
}

func (h *Handlers) listBar(c *gin.Context) {
	pending := false
	if v := c.Query("pending"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			abortWithError(c, fmt.Errorf("pending must be a boolean: %w", domain.ErrInvalidInput))
			return
		}
		pending = b
	}
	tickets, err := h.Ledger.ListBar(c.Request.Context(), core.BarFilter{PendingOnly: pending})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets, "count": len(tickets)})
}
