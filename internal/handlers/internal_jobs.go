package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/At4lian/VQCC/internal/service"
)

type completeJobRequest struct {
	Result json.RawMessage `json:"result"`
}

type failJobRequest struct {
	Error string `json:"error" binding:"max=2000"`
}

func (h HandlerSet) ClaimJob(c *gin.Context) {
	claimed, err := h.jobs.Claim(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":    true,
		"job":   newJobResponse(claimed.Job),
		"asset": newClaimedAssetResponse(claimed.Asset),
	})
}

func (h HandlerSet) CompleteJob(c *gin.Context) {
	var req completeJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	out, err := h.jobs.Complete(c.Request.Context(), c.Param("id"), req.Result)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeOutcome(c, out)
}

func (h HandlerSet) FailJob(c *gin.Context) {
	var req failJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	out, err := h.jobs.Fail(c.Request.Context(), c.Param("id"), req.Error)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeOutcome(c, out)
}

func (h HandlerSet) writeOutcome(c *gin.Context, out service.Outcome) {
	switch {
	case out.Already:
		c.JSON(http.StatusOK, gin.H{"ok": true, "already": true})
	case out.Ignored:
		c.JSON(http.StatusOK, gin.H{"ok": true, "ignored": true})
	default:
		c.JSON(http.StatusOK, gin.H{"ok": true, "job": newJobResponse(out.Job)})
	}
}
