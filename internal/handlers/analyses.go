package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/At4lian/VQCC/internal/middleware"
	"github.com/At4lian/VQCC/internal/service"
)

type createAnalysisRequest struct {
	AssetID string   `json:"assetId" binding:"required"`
	Checks  []string `json:"checks" binding:"required,min=1,max=8,dive,required"`
}

func (h HandlerSet) CreateAnalysis(c *gin.Context) {
	var req createAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	job, err := h.analyses.CreateJob(c.Request.Context(), service.CreateJobInput{
		OwnerID: middleware.OwnerID(c),
		AssetID: req.AssetID,
		Checks:  req.Checks,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "job": newJobResponse(job)})
}

func (h HandlerSet) GetAnalysis(c *gin.Context) {
	view, err := h.analyses.GetJob(c.Request.Context(), middleware.OwnerID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "job": newJobViewResponse(view)})
}
