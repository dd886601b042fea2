package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"krishilink/api/internal/api/middleware"
	"krishilink/api/internal/models"
	"krishilink/api/internal/services"
)

// CropHandler handles REST requests for crops.
type CropHandler struct {
	cropService services.ICropService
	logger      *zap.Logger
}

// NewCropHandler creates a new CropHandler.
func NewCropHandler(cropService services.ICropService, logger *zap.Logger) *CropHandler {
	return &CropHandler{cropService: cropService, logger: logger}
}

// ListByUnit handles GET /products?sort=<unit>
func (h *CropHandler) ListByUnit(c *gin.Context) {
	crops, err := h.cropService.ListByUnitPriority(c.Request.Context(), c.Query("sort"))
	if err != nil {
		respondError(c, h.logger, err, "Failed to fetch crops")
		return
	}
	c.JSON(http.StatusOK, crops)
}

// ListAll handles GET /all-products
func (h *CropHandler) ListAll(c *gin.Context) {
	crops, err := h.cropService.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "Failed to fetch crops")
		return
	}
	c.JSON(http.StatusOK, crops)
}

// Latest handles GET /latest-products
func (h *CropHandler) Latest(c *gin.Context) {
	crops, err := h.cropService.Latest(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "Failed to fetch latest crops")
		return
	}
	c.JSON(http.StatusOK, crops)
}

// Search handles GET /search?search=<term>
func (h *CropHandler) Search(c *gin.Context) {
	crops, err := h.cropService.Search(c.Request.Context(), c.Query("search"))
	if err != nil {
		respondError(c, h.logger, err, "Failed to search crops")
		return
	}
	c.JSON(http.StatusOK, crops)
}

// GetByID handles GET /products/:id
func (h *CropHandler) GetByID(c *gin.Context) {
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	crop, err := h.cropService.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err, "Failed to fetch crop")
		return
	}
	c.JSON(http.StatusOK, crop)
}

// MyPosted handles GET /my-posted
func (h *CropHandler) MyPosted(c *gin.Context) {
	crops, err := h.cropService.ListByOwner(c.Request.Context(), middleware.CurrentEmail(c))
	if err != nil {
		respondError(c, h.logger, err, "Failed to fetch your crops")
		return
	}
	c.JSON(http.StatusOK, crops)
}

// Create handles POST /products. The owner is the caller.
func (h *CropHandler) Create(c *gin.Context) {
	var in services.CropInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	owner := models.Owner{
		OwnerName:  middleware.CurrentName(c),
		OwnerEmail: middleware.CurrentEmail(c),
	}
	crop, err := h.cropService.Create(c.Request.Context(), in, owner)
	if err != nil {
		respondError(c, h.logger, err, "Failed to create crop")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"insertedId": crop.ID, "crop": crop})
}

// Update handles PUT /products/:id
func (h *CropHandler) Update(c *gin.Context) {
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	var fields map[string]interface{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	crop, err := h.cropService.Update(c.Request.Context(), id, middleware.CurrentEmail(c), fields)
	if err != nil {
		respondError(c, h.logger, err, "Failed to update crop")
		return
	}
	c.JSON(http.StatusOK, crop)
}

// Delete handles DELETE /products/:id
func (h *CropHandler) Delete(c *gin.Context) {
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.cropService.Delete(c.Request.Context(), id, middleware.CurrentEmail(c)); err != nil {
		respondError(c, h.logger, err, "Failed to delete crop")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deletedCount": 1})
}

type imageUploadRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"contentType" binding:"required"`
}

// ImageUploadURL handles POST /products/:id/image-upload-url
func (h *CropHandler) ImageUploadURL(c *gin.Context) {
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	var req imageUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "filename and contentType are required"})
		return
	}
	url, key, err := h.cropService.ImageUploadURL(c.Request.Context(), id, middleware.CurrentEmail(c), req.Filename, req.ContentType)
	if err != nil {
		respondError(c, h.logger, err, "Failed to create upload URL")
		return
	}
	c.JSON(http.StatusOK, gin.H{"uploadUrl": url, "key": key})
}
