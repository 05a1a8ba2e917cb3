package services

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kendall-kelly/home-services-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fileHeader builds a parsed multipart file the way a handler receives it
func fileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(32<<20))
	t.Cleanup(func() { req.MultipartForm.RemoveAll() })
	return req.MultipartForm.File["image"][0]
}

// completedOrder runs an order through to service completion
func completedOrder(t *testing.T, f *orderFixture) *models.Order {
	t.Helper()
	created := f.createOrder(t).Order
	_, err := f.svc.AcceptOrder(t.Context(), f.partnerP, created.ID)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(t.Context(), f.partnerP, created.ID, models.OrderStatusInProgress)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(t.Context(), f.partnerP, created.ID, models.OrderStatusServiceCompleted)
	require.NoError(t, err)
	return created
}

func TestUploadCompletionPhoto(t *testing.T) {
	f := newOrderFixture(t, dec("0"))
	order := completedOrder(t, f)

	updated, err := f.svc.UploadCompletionPhoto(t.Context(), f.partnerP, order.ID, fileHeader(t, "before.png", []byte("png-bytes")))
	require.NoError(t, err)
	require.NotNil(t, updated.CompletionImageS3Key)
	firstKey := *updated.CompletionImageS3Key
	assert.True(t, strings.HasPrefix(firstKey, "completions/"))
	assert.True(t, strings.HasSuffix(firstKey, "_before.png"))
	assert.True(t, f.blobs.Exists(firstKey))
	require.NotNil(t, updated.CompletionImageURL)
	assert.Contains(t, *updated.CompletionImageURL, firstKey)

	replaced, err := f.svc.UploadCompletionPhoto(t.Context(), f.partnerP, order.ID, fileHeader(t, "after.jpg", []byte("jpg-bytes")))
	require.NoError(t, err)
	assert.NotEqual(t, firstKey, *replaced.CompletionImageS3Key)
	assert.False(t, f.blobs.Exists(firstKey), "replaced photo is deleted")
	assert.True(t, f.blobs.Exists(*replaced.CompletionImageS3Key))

	// the customer sees the photo on the order
	seen, err := f.svc.GetOrder(t.Context(), f.customerP, order.ID)
	require.NoError(t, err)
	require.NotNil(t, seen.CompletionImageURL)
}

func TestUploadCompletionPhoto_Rejections(t *testing.T) {
	f := newOrderFixture(t, dec("0"))
	created := f.createOrder(t).Order
	_, err := f.svc.AcceptOrder(t.Context(), f.partnerP, created.ID)
	require.NoError(t, err)

	_, err = f.svc.UploadCompletionPhoto(t.Context(), f.partnerP, created.ID, fileHeader(t, "early.png", []byte("x")))
	assert.True(t, errors.Is(err, ErrConflict), "not completed yet")

	other := seedPartner(t, f.db, "auth0|other", f.service.ID, testPincode)
	_, err = f.svc.UploadCompletionPhoto(t.Context(), Principal{Auth0ID: other.User.Auth0ID, Role: models.RolePartner}, created.ID, fileHeader(t, "x.png", []byte("x")))
	assert.True(t, errors.Is(err, ErrForbidden))

	_, err = f.svc.UpdateStatus(t.Context(), f.partnerP, created.ID, models.OrderStatusInProgress)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(t.Context(), f.partnerP, created.ID, models.OrderStatusServiceCompleted)
	require.NoError(t, err)

	_, err = f.svc.UploadCompletionPhoto(t.Context(), f.partnerP, created.ID, fileHeader(t, "notes.pdf", []byte("%PDF")))
	require.Error(t, err)
	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "INVALID_FILE_FORMAT", appErr.Code)
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = f.svc.UploadCompletionPhoto(t.Context(), f.partnerP, 9999, fileHeader(t, "x.png", []byte("x")))
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.Empty(t, f.blobs.Keys())
}

func TestUploadCompletionPhoto_StorageNotConfigured(t *testing.T) {
	f := newOrderFixture(t, dec("0"))
	f.svc.deps.Images = nil
	order := completedOrder(t, f)

	_, err := f.svc.UploadCompletionPhoto(t.Context(), f.partnerP, order.ID, fileHeader(t, "x.png", []byte("x")))
	assert.True(t, errors.Is(err, ErrUnavailable))
}
