package services

import (
	"context"
	"errors"
	"mime/multipart"

	"github.com/kendall-kelly/home-services-api/logger"
	"github.com/kendall-kelly/home-services-api/models"
	"github.com/kendall-kelly/home-services-api/utils"
	"go.uber.org/zap"
)

// UploadCompletionPhoto attaches a proof-of-work photo to an order the
// calling partner has finished. A previous photo is replaced.
func (s *OrderService) UploadCompletionPhoto(ctx context.Context, p Principal, orderID uint, fileHeader *multipart.FileHeader) (*models.Order, error) {
	if s.deps.Images == nil {
		return nil, NewAppError(ErrUnavailable, "STORAGE_UNAVAILABLE", "Photo storage is not configured")
	}

	partner, err := s.resolvePartner(ctx, p)
	if err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PartnerID == nil || *order.PartnerID != partner.ID {
		return nil, forbiddenError("Order is not assigned to you")
	}
	if order.CompletedAt == nil {
		return nil, conflictError("ORDER_NOT_COMPLETED", "Photos can only be added once the service is completed")
	}

	key, err := s.deps.Images.UploadCompletionPhoto(ctx, order.ID, fileHeader)
	if err != nil {
		var fileErr *utils.FileUploadError
		if errors.As(err, &fileErr) {
			return nil, NewAppError(ErrValidation, fileErr.Code, fileErr.Message)
		}
		return nil, &AppError{Kind: ErrUnavailable, Code: "STORAGE_UNAVAILABLE", Message: "Failed to store photo", Err: err}
	}

	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND partner_id = ?", order.ID, partner.ID).
		Update("completion_image_s3_key", key)
	if res.Error != nil {
		return nil, classifyDBError(res.Error)
	}

	if order.CompletionImageS3Key != nil && *order.CompletionImageS3Key != key {
		if err := s.deps.Images.DeleteImage(ctx, *order.CompletionImageS3Key); err != nil {
			logger.Log.Warn("Failed to delete replaced completion photo", zap.Uint("order_id", order.ID), zap.Error(err))
		}
	}

	updated, err := s.loadOrder(ctx, order.ID, "Service")
	if err != nil {
		return nil, err
	}
	s.attachImageURL(ctx, updated)

	logger.Log.Info("Completion photo uploaded", zap.Uint("order_id", order.ID), zap.String("key", key))
	return updated, nil
}

// attachImageURL fills the presigned completion photo URL, if any
func (s *OrderService) attachImageURL(ctx context.Context, order *models.Order) {
	if s.deps.Images == nil || order.CompletionImageS3Key == nil {
		return
	}
	url, err := s.deps.Images.GetImageURL(ctx, *order.CompletionImageS3Key)
	if err != nil {
		logger.Log.Warn("Failed to presign completion photo", zap.Uint("order_id", order.ID), zap.Error(err))
		return
	}
	order.CompletionImageURL = &url
}
