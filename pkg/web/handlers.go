// Package web provides HTTP handlers and REST API endpoints for scraping and workflow review.
package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/dukex/visaflow/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	scraper   *services.Scraper
	review    *services.Review
	digest    *services.Digest
	validator *validator.Validate
}

func NewAPIHandlers(
	scraper *services.Scraper,
	review *services.Review,
	digest *services.Digest,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		scraper:   scraper,
		review:    review,
		digest:    digest,
		validator: validator,
	}
}

// Register mounts every endpoint on router.
func (h *APIHandlers) Register(router fiber.Router) {
	router.Post("/scrape", h.Scrape)
	router.Get("/workflows/latest", h.GetLatestWorkflow)
	router.Get("/health", h.HealthCheck)

	admin := router.Group("/admin")

	w := admin.Group("/workflows")
	w.Get("/pending", h.ListPending)
	w.Get("/:id", h.GetWorkflow)
	w.Get("/:id/diff", h.GetDiff)
	w.Post("/:id/approve", h.Approve)
	w.Post("/:id/reject", h.Reject)

	d := admin.Group("/digests")
	d.Get("/", h.ListDigests)
	d.Post("/:id/sent", h.MarkDigestSent)
}

// Scrape runs the pipeline for one pair. Pipeline failures still return the ScrapeResult body.
func (h *APIHandlers) Scrape(c fiber.Ctx) error {
	var req ScrapeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.scraper.Scrape(c.Context(), req.VisaType, req.Country)
	if err != nil {
		if services.IsValidationError(err) {
			return handleServiceError(c, err)
		}

		status, _ := statusFor(err)

		return c.Status(status).JSON(result)
	}

	return c.JSON(result)
}

func (h *APIHandlers) ListPending(c fiber.Ctx) error {
	workflows, err := h.review.ListPending(c.Context(), services.PendingFilter{
		VisaType: c.Query("visaType"),
		Country:  c.Query("country"),
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":  workflows,
		"totalCount": len(workflows),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.review.GetWorkflow(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) GetDiff(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	result, err := h.review.GetDiff(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) Approve(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req ApproveRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.review.Approve(c.Context(), id, services.ApproveRequest{
		ReviewerID: reviewerID(c),
		Notes:      req.Notes,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) Reject(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req RejectRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.review.Reject(c.Context(), id, services.RejectRequest{
		ReviewerID: reviewerID(c),
		Reason:     req.Reason,
		Notes:      req.Notes,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetLatestWorkflow(c fiber.Ctx) error {
	visaType := c.Query("visaType")
	country := c.Query("country")

	if visaType == "" || country == "" {
		return badRequest(c, "visaType and country query parameters are required")
	}

	workflow, err := h.review.LatestApproved(c.Context(), visaType, country)
	if err != nil {
		if services.IsNotFoundError(err) {
			return notFound(c, "No approved workflow for "+strings.ToUpper(visaType)+"/"+strings.ToUpper(country))
		}

		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) ListDigests(c fiber.Ctx) error {
	digests, err := h.digest.Pending(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"digests":    digests,
		"totalCount": len(digests),
	})
}

func (h *APIHandlers) MarkDigestSent(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Digest ID is required")
	}

	entry, err := h.digest.MarkSent(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(entry)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.review.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Visaflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Visaflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func reviewerID(c fiber.Ctx) string {
	return strings.TrimSpace(c.Get(ReviewerHeader))
}
