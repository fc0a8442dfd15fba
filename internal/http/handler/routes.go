package handler

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"

	"plagcheck/docs"
	"plagcheck/internal/service"
	"plagcheck/internal/storage"
	"plagcheck/web"
)

// filesField is the multipart field carrying the documents to compare.
const filesField = "files"

const healthTimeout = 2 * time.Second

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, store storage.Storage, svc service.ComparisonService) {
	app.Get("/", Index())
	app.Post("/check", CheckPlagiarism(svc))

	app.Get("/health", HealthCheck(store))
	app.Get("/healthz", LivenessProbe())

	app.Get("/swagger/*", Swagger())
}

// Index serves the upload page.
func Index() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Type("html").Send(web.IndexHTML)
	}
}

// CheckPlagiarism godoc
// @Summary      Compare two documents
// @Description  Accepts exactly two .txt or .docx files in the "files" field and reports how similar their text is.
// @Tags         plagiarism
// @Accept       multipart/form-data
// @Produce      json
// @Param        files  formData  file  true  "Two documents to compare"
// @Success      200  {object}  model.ComparisonResponse
// @Failure      400  {object}  errorPayload
// @Failure      413  {object}  errorPayload
// @Failure      415  {object}  errorPayload
// @Failure      422  {object}  errorPayload
// @Failure      500  {object}  errorPayload
// @Router       /check [post]
func CheckPlagiarism(svc service.ComparisonService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var uploads []service.Upload
		// a missing or malformed form counts as no files at all
		if form, err := c.MultipartForm(); err == nil {
			for _, fh := range form.File[filesField] {
				ct := fh.Header.Get("Content-Type")
				if ct == "" {
					ct = "application/octet-stream"
				}
				uploads = append(uploads, service.Upload{
					Filename:    fh.Filename,
					ContentType: ct,
					Size:        fh.Size,
					Open: func() (io.ReadCloser, error) {
						return fh.Open()
					},
				})
			}
		}

		res, err := svc.Compare(c.UserContext(), uploads)
		if err != nil {
			return writeComparisonError(c, err)
		}
		return c.JSON(res.Response())
	}
}

// HealthCheck godoc
// @Summary      Readiness probe
// @Description  Reports whether the upload staging storage is reachable.
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      503  {object}  errorPayload
// @Router       /health [get]
func HealthCheck(store storage.Storage) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a simple liveness probe.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// Swagger serves Swagger UI with the host and scheme the client used.
func Swagger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	}
}
