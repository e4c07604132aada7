package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CleanupUploads runs one reaper sweep on demand for an external scheduler.
func (h HandlerSet) CleanupUploads(c *gin.Context) {
	res, err := h.reaper.Sweep(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":             true,
		"checked":        res.Checked,
		"failed":         res.Failed,
		"deleteAttempts": res.DeleteAttempts,
		"cutoff":         res.Cutoff,
	})
}
