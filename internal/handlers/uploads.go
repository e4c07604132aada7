package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/At4lian/VQCC/internal/middleware"
	"github.com/At4lian/VQCC/internal/service"
)

type initiateUploadRequest struct {
	Filename    string `json:"filename" binding:"required,max=255"`
	ContentType string `json:"contentType" binding:"required,max=255"`
	Size        int64  `json:"size" binding:"required,gt=0"`
}

type assetRequest struct {
	AssetID string `json:"assetId" binding:"required"`
}

type failUploadRequest struct {
	AssetID string `json:"assetId" binding:"required"`
	Reason  string `json:"reason" binding:"max=500"`
}

func (h HandlerSet) InitiateUpload(c *gin.Context) {
	var req initiateUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.uploads.InitiateUpload(c.Request.Context(), service.InitiateUploadInput{
		OwnerID:      middleware.OwnerID(c),
		Filename:     req.Filename,
		ContentType:  req.ContentType,
		DeclaredSize: req.Size,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"assetId": res.Asset.ID,
		"bucket":  res.Asset.Bucket,
		"key":     res.Asset.ObjectKey,
		"upload":  res.Credential,
	})
}

func (h HandlerSet) CompleteUpload(c *gin.Context) {
	var req assetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	asset, err := h.uploads.CompleteUpload(c.Request.Context(), middleware.OwnerID(c), req.AssetID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "asset": newAssetResponse(asset)})
}

func (h HandlerSet) CancelUpload(c *gin.Context) {
	var req assetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if _, err := h.uploads.CancelUpload(c.Request.Context(), middleware.OwnerID(c), req.AssetID); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h HandlerSet) ReportUploadFailure(c *gin.Context) {
	var req failUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.uploads.ReportFailure(c.Request.Context(), middleware.OwnerID(c), req.AssetID, req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if res.Ignored {
		c.JSON(http.StatusOK, gin.H{"ok": true, "ignored": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
