package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"docvault/internal/http/middleware"
	"docvault/internal/model"
	"docvault/internal/service"
	serviceMocks "docvault/internal/service/mocks"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testOwner = "owner-1"

// asUser injects an authenticated identity the way middleware.Auth would.
func asUser(id string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(middleware.UserIDLocalKey, id)
		return c.Next()
	}
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New()
	app.Get("/health", HealthCheck(db))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListDocuments(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := fiber.New()
	app.Get("/documents", asUser(testOwner), ListDocuments(mockSvc))

	t.Run("success", func(t *testing.T) {
		expected := []model.Document{{ID: uuid.New().String(), OwnerID: testOwner, OriginalFileName: "test.pdf"}}
		mockSvc.On("List", mock.Anything, testOwner).Return(expected, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result []model.Document
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Len(t, result, 1)
		assert.Equal(t, expected[0].ID, result[0].ID)
		mockSvc.AssertExpectations(t)
	})

	t.Run("empty list", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, testOwner).Return([]model.Document{}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result []model.Document
		json.NewDecoder(resp.Body).Decode(&result)
		assert.NotNil(t, result)
		assert.Empty(t, result)
		mockSvc.AssertExpectations(t)
	})

	t.Run("service error", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, testOwner).Return(nil, errors.New("service error")).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		bare := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
		bare.Get("/documents", ListDocuments(mockSvc))

		req := httptest.NewRequest(http.MethodGet, "/documents", nil)
		resp, _ := bare.Test(req)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func multipartBody(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	part.Write([]byte(content))
	for k, v := range fields {
		writer.WriteField(k, v)
	}
	writer.Close()
	return body, writer.FormDataContentType()
}

func TestUploadDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := fiber.New()
	app.Post("/documents/upload", asUser(testOwner), UploadDocument(mockSvc))

	t.Run("success", func(t *testing.T) {
		body, ct := multipartBody(t, "test.txt", "hello world", nil)

		expectedDoc := &model.Document{ID: uuid.New().String(), OwnerID: testOwner, OriginalFileName: "test.txt"}
		mockSvc.On("Upload", mock.Anything, testOwner, mock.Anything, "test.txt", "", mock.Anything, int64(-1)).
			Return(expectedDoc, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents/upload", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var result model.Document
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, expectedDoc.ID, result.ID)
		mockSvc.AssertExpectations(t)
	})

	t.Run("title form field forwarded", func(t *testing.T) {
		body, ct := multipartBody(t, "test.txt", "hello", map[string]string{"title": "My Doc"})

		mockSvc.On("Upload", mock.Anything, testOwner, mock.Anything, "test.txt", "My Doc", mock.Anything, int64(-1)).
			Return(&model.Document{ID: "id", Title: "My Doc"}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents/upload", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("no file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/documents/upload", nil)
		// Missing content-type and body
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "FILE_REQUIRED", res.Error.Code)
	})

	t.Run("payload too large", func(t *testing.T) {
		body, ct := multipartBody(t, "big.bin", "xxxx", nil)

		mockSvc.On("Upload", mock.Anything, testOwner, mock.Anything, "big.bin", "", mock.Anything, int64(-1)).
			Return(nil, fmt.Errorf("%w (>20MB)", service.ErrFileTooLarge)).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents/upload", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "PAYLOAD_TOO_LARGE", res.Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("storage write failure surfaces as bad gateway", func(t *testing.T) {
		body, ct := multipartBody(t, "test.txt", "hello", nil)

		mockSvc.On("Upload", mock.Anything, testOwner, mock.Anything, "test.txt", "", mock.Anything, int64(-1)).
			Return(nil, fmt.Errorf("%w: connection refused", service.ErrStorageWrite)).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents/upload", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "STORAGE_WRITE_FAILED", res.Error.Code)
		assert.Contains(t, res.Error.Message, "connection refused")
		mockSvc.AssertExpectations(t)
	})

	t.Run("service error", func(t *testing.T) {
		body, ct := multipartBody(t, "test.txt", "hello", nil)

		mockSvc.On("Upload", mock.Anything, testOwner, mock.Anything, "test.txt", "", mock.Anything, int64(-1)).
			Return(nil, errors.New("upload failed")).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents/upload", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestDownloadDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := fiber.New()
	app.Get("/documents/:id/download", asUser(testOwner), DownloadDocument(mockSvc))

	t.Run("success", func(t *testing.T) {
		id := uuid.New().String()
		size := int64(7)
		doc := &model.Document{
			ID:               id,
			OwnerID:          testOwner,
			OriginalFileName: "report.pdf",
			MimeType:         "application/pdf",
			SizeBytes:        &size,
		}
		mockSvc.On("Download", mock.Anything, testOwner, id).
			Return(io.NopCloser(bytes.NewReader([]byte("content"))), doc, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents/"+id+"/download", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/pdf", resp.Header.Get(fiber.HeaderContentType))
		assert.Equal(t, `attachment; filename="report.pdf"`, resp.Header.Get(fiber.HeaderContentDisposition))

		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "content", string(body))
		mockSvc.AssertExpectations(t)
	})

	t.Run("missing mime type defaults to octet-stream", func(t *testing.T) {
		id := uuid.New().String()
		doc := &model.Document{ID: id, OwnerID: testOwner, OriginalFileName: "blob"}
		mockSvc.On("Download", mock.Anything, testOwner, id).
			Return(io.NopCloser(bytes.NewReader([]byte("x"))), doc, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents/"+id+"/download", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/octet-stream", resp.Header.Get(fiber.HeaderContentType))
		mockSvc.AssertExpectations(t)
	})

	t.Run("size beyond 32-bit range streams without a declared length", func(t *testing.T) {
		id := uuid.New().String()
		size := int64(3) << 30
		doc := &model.Document{ID: id, OwnerID: testOwner, OriginalFileName: "huge.bin", SizeBytes: &size}
		mockSvc.On("Download", mock.Anything, testOwner, id).
			Return(io.NopCloser(bytes.NewReader([]byte("content"))), doc, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents/"+id+"/download", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "content", string(body))
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Download", mock.Anything, testOwner, id).
			Return(nil, nil, service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents/"+id+"/download", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NOT_FOUND", res.Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("storage read failure", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Download", mock.Anything, testOwner, id).
			Return(nil, nil, fmt.Errorf("%w: timeout", service.ErrStorageRead)).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents/"+id+"/download", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "STORAGE_READ_FAILED", res.Error.Code)
		mockSvc.AssertExpectations(t)
	})
}

func TestDeleteDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := fiber.New()
	app.Delete("/documents/:id", asUser(testOwner), DeleteDocument(mockSvc))

	t.Run("success", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Delete", mock.Anything, testOwner, id).Return(nil).Once()

		req := httptest.NewRequest(http.MethodDelete, "/documents/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Delete", mock.Anything, testOwner, id).Return(service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodDelete, "/documents/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NOT_FOUND", res.Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("storage delete failure", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Delete", mock.Anything, testOwner, id).
			Return(fmt.Errorf("%w: denied", service.ErrStorageDelete)).Once()

		req := httptest.NewRequest(http.MethodDelete, "/documents/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "STORAGE_DELETE_FAILED", res.Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("service error", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Delete", mock.Anything, testOwner, id).Return(errors.New("delete error")).Once()

		req := httptest.NewRequest(http.MethodDelete, "/documents/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestRouting(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(),
	})

	mockSvc := new(serviceMocks.MockDocumentService)
	RegisterRoutes(app, nil, mockSvc, asUser(testOwner))

	t.Run("not found route", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/non-existent", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NOT_FOUND", res.Error.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		// Health endpoint only allows GET
		req := httptest.NewRequest(http.MethodPost, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "METHOD_NOT_ALLOWED", res.Error.Code)
	})

	t.Run("document routes reject anonymous callers", func(t *testing.T) {
		anon := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
		RegisterRoutes(anon, nil, mockSvc, func(c *fiber.Ctx) error {
			return fiber.ErrUnauthorized
		})

		req := httptest.NewRequest(http.MethodGet, "/documents", nil)
		resp, _ := anon.Test(req)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "UNAUTHORIZED", res.Error.Code)
	})
}
