package services

import (
	"context"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/kendall-kelly/home-services-api/utils"
)

// ImageService handles proof-of-work photos for orders
type ImageService interface {
	// UploadCompletionPhoto validates and stores a photo, returns the storage key
	UploadCompletionPhoto(ctx context.Context, orderID uint, fileHeader *multipart.FileHeader) (string, error)

	// GetImageURL generates a URL for accessing a stored photo
	GetImageURL(ctx context.Context, imageKey string) (string, error)

	// DeleteImage removes a photo from storage
	DeleteImage(ctx context.Context, imageKey string) error
}

// BlobImageService implements ImageService on top of a BlobStore
type BlobImageService struct {
	store BlobStore
	now   func() time.Time
}

// NewImageService creates an image service backed by store
func NewImageService(store BlobStore) *BlobImageService {
	return &BlobImageService{store: store, now: time.Now}
}

// UploadCompletionPhoto validates the file and uploads it
func (s *BlobImageService) UploadCompletionPhoto(ctx context.Context, orderID uint, fileHeader *multipart.FileHeader) (string, error) {
	if err := utils.ValidateImageFile(fileHeader); err != nil {
		return "", err
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	key := utils.CompletionPhotoKey(orderID, fileHeader.Filename, s.now())
	if err := s.store.Upload(ctx, key, utils.ImageContentType(fileHeader.Filename), file); err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return key, nil
}

// GetImageURL generates a presigned URL for the photo
func (s *BlobImageService) GetImageURL(ctx context.Context, imageKey string) (string, error) {
	if imageKey == "" {
		return "", nil
	}
	url, err := s.store.PresignGet(ctx, imageKey)
	if err != nil {
		return "", fmt.Errorf("failed to generate image URL: %w", err)
	}
	return url, nil
}

// DeleteImage deletes the photo
func (s *BlobImageService) DeleteImage(ctx context.Context, imageKey string) error {
	if imageKey == "" {
		return nil
	}
	if err := s.store.Delete(ctx, imageKey); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}
