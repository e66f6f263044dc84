package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/yashrajoria/storefront-api/errors"
	"github.com/yashrajoria/storefront-api/models"
	"github.com/yashrajoria/storefront-api/services"
)

type ImageController struct {
	images services.ImageService
}

func NewImageController(images services.ImageService) *ImageController {
	return &ImageController{images: images}
}

// List handles GET /products/:id/images.
func (ic *ImageController) List(c *gin.Context) {
	productID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	images, err := ic.images.List(c.Request.Context(), productID)
	if err != nil {
		c.Error(err)
		return
	}
	if images == nil {
		images = []models.Image{}
	}
	c.JSON(http.StatusOK, gin.H{"data": images})
}

// Presign handles POST /products/:id/images/presign.
func (ic *ImageController) Presign(c *gin.Context) {
	productID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req models.PresignImageRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := ic.images.PresignUpload(c.Request.Context(), productID, req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Register handles POST /products/:id/images after a presigned upload.
func (ic *ImageController) Register(c *gin.Context) {
	productID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req models.RegisterImageRequest
	if !bindJSON(c, &req) {
		return
	}
	image, err := ic.images.Register(c.Request.Context(), productID, req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, image)
}

// Upload handles POST /products/:id/images/upload with a multipart "file".
func (ic *ImageController) Upload(c *gin.Context) {
	productID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		c.Error(apperrors.WithDetails(apperrors.ErrInvalidInput, map[string]string{"file": "required"}))
		return
	}
	file, err := header.Open()
	if err != nil {
		c.Error(apperrors.Wrap(apperrors.ErrInvalidInput, err))
		return
	}
	defer file.Close()

	image, err := ic.images.Upload(c.Request.Context(), productID, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, image)
}

// SetPrimary handles PUT /images/:id/primary.
func (ic *ImageController) SetPrimary(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	image, err := ic.images.SetPrimary(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, image)
}

// Delete handles DELETE /images/:id.
func (ic *ImageController) Delete(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := ic.images.Delete(c.Request.Context(), id); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
