package handler

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/gofiber/fiber/v2"

	"docvault/internal/http/middleware"
	"docvault/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app. Handlers
// stay thin: identity resolution, multipart plumbing, and error
// translation only. requireAuth guards every document route.
func RegisterRoutes(app *fiber.App, db *sql.DB, docSvc service.DocumentService, requireAuth fiber.Handler) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	docs := app.Group("/documents", requireAuth)
	docs.Get("/", ListDocuments(docSvc))
	docs.Post("/upload", UploadDocument(docSvc))
	docs.Get("/:id/download", DownloadDocument(docSvc))
	docs.Delete("/:id", DeleteDocument(docSvc))
}

// HealthCheck reports readiness by pinging the database.
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a plain liveness endpoint.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// ListDocuments returns all documents of the calling user, newest first.
func ListDocuments(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID := middleware.UserIDFromCtx(c)
		if ownerID == "" {
			return fiber.ErrUnauthorized
		}

		items, err := docSvc.List(c.UserContext(), ownerID)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(items)
	}
}

// UploadDocument accepts a multipart upload (field "file", optional field
// "title") and returns the created record.
func UploadDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID := middleware.UserIDFromCtx(c)
		if ownerID == "" {
			return fiber.ErrUnauthorized
		}

		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}
		title := c.FormValue("title")

		// Size -1: the service measures seekable streams itself and
		// accepts unseekable ones with an unknown size.
		doc, err := docSvc.Upload(c.UserContext(), ownerID, f, fh.Filename, title, ct, -1)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(doc)
	}
}

// DownloadDocument streams the blob content back to the caller with an
// attachment disposition; chunks are forwarded as they arrive.
func DownloadDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID := middleware.UserIDFromCtx(c)
		if ownerID == "" {
			return fiber.ErrUnauthorized
		}

		rc, doc, err := docSvc.Download(c.UserContext(), ownerID, c.Params("id"))
		if err != nil {
			return writeServiceError(c, err)
		}

		ct := doc.MimeType
		if ct == "" {
			ct = "application/octet-stream"
		}
		c.Set(fiber.HeaderContentType, ct)
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", doc.OriginalFileName))

		// SendStream takes an int length; sizes beyond 32-bit range are
		// streamed without a declared length so the conversion cannot
		// truncate on any platform.
		if doc.SizeBytes != nil && *doc.SizeBytes <= math.MaxInt32 {
			return c.SendStream(rc, int(*doc.SizeBytes))
		}
		return c.SendStream(rc)
	}
}

// DeleteDocument removes the blob and the record.
func DeleteDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID := middleware.UserIDFromCtx(c)
		if ownerID == "" {
			return fiber.ErrUnauthorized
		}

		if err := docSvc.Delete(c.UserContext(), ownerID, c.Params("id")); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
