package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"docservice/internal/auth"
	"docservice/internal/http/middleware"
	"docservice/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app. Document,
// file and thumbnail routes require a bearer token verified by verifier.
func RegisterRoutes(app *fiber.App, db *sql.DB, docSvc service.DocumentService, verifier auth.Verifier) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	authn := middleware.Auth(verifier)

	app.Get("/documents", authn, ListDocuments(docSvc))
	app.Post("/documents", authn, CreateDocument(docSvc))
	app.Options("/documents", authn, Options(fiber.MethodGet, fiber.MethodPost, fiber.MethodOptions))

	app.Get("/documents/:id", authn, GetDocument(docSvc))
	app.Put("/documents/:id", authn, UpdateDocument(docSvc))
	app.Patch("/documents/:id", authn, UpdateDocument(docSvc))
	app.Delete("/documents/:id", authn, DeleteDocument(docSvc))
	app.Options("/documents/:id", authn, Options(
		fiber.MethodGet, fiber.MethodPut, fiber.MethodPatch, fiber.MethodDelete, fiber.MethodOptions,
	))

	app.Get("/file/:id", authn, DownloadDocument(docSvc, service.DownloadFile))
	app.Get("/thumbnail/:id", authn, DownloadDocument(docSvc, service.DownloadThumbnail))
}
