package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type healthResponse struct {
	Status      string `json:"status"`
	Database    string `json:"database"`
	Broker      string `json:"broker"`
	Environment string `json:"environment"`
}

func (h HandlerSet) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:      "ok",
		Database:    h.ping(ctx, "database", h.db),
		Broker:      h.ping(ctx, "broker", h.broker),
		Environment: h.cfg.Environment,
	}
	code := http.StatusOK
	if resp.Database == "error" || resp.Broker == "error" {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}

func (h HandlerSet) StorageHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if h.storage == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "message": "storage not configured"})
		return
	}
	if err := h.storage.Ping(ctx); err != nil {
		h.log.Error().Err(err).Str("bucket", h.bucket).Msg("storage health failed")
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "bucket": h.bucket, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "bucket": h.bucket})
}

func (h HandlerSet) ping(ctx context.Context, name string, p Pinger) string {
	if p == nil {
		return "disabled"
	}
	if err := p.Ping(ctx); err != nil {
		h.log.Error().Err(err).Str("dependency", name).Msg("health check failed")
		return "error"
	}
	return "ok"
}
