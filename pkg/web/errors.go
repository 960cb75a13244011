package web

import (
	"github.com/dukex/visaflow/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

// statusFor maps a classified service error to its HTTP status.
func statusFor(err error) (int, string) {
	switch {
	case services.IsValidationError(err):
		return fiber.StatusBadRequest, "validation_error"
	case services.IsConflictError(err):
		return fiber.StatusConflict, "conflict"
	case services.IsNotFoundError(err):
		return fiber.StatusNotFound, "not_found"
	case services.IsParseError(err):
		return fiber.StatusUnprocessableEntity, "unparseable_content"
	case services.IsSourceError(err):
		return fiber.StatusBadGateway, "sources_exhausted"
	default:
		return fiber.StatusInternalServerError, "internal_error"
	}
}

// handleServiceError provides typed error handling for service layer errors.
func handleServiceError(c fiber.Ctx, err error) error {
	status, kind := statusFor(err)

	problem := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(kind)

	if status == fiber.StatusInternalServerError {
		problem = problem.WithError(err)
	} else {
		problem = problem.WithDetail(err.Error())
	}

	return c.Status(status).JSON(problem)
}
