package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// completionPhotoField is the multipart field carrying the photo
const completionPhotoField = "image"

// UploadCompletionPhoto handles POST /api/v1/partner/orders/:id/completion-photo
func (ctl *PartnerController) UploadCompletionPhoto(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile(completionPhotoField)
	if err != nil {
		respondError(c, http.StatusBadRequest, "MISSING_FILE", "An image file is required in the 'image' field", nil)
		return
	}

	order, err := ctl.orders.UploadCompletionPhoto(c.Request.Context(), principal, orderID, fileHeader)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, order)
}
