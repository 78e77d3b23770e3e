package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/rubiai-api/internal/middleware"
	"github.com/noah-isme/rubiai-api/internal/models"
	"github.com/noah-isme/rubiai-api/internal/service"
	"github.com/noah-isme/rubiai-api/internal/utils"
	"github.com/noah-isme/rubiai-api/pkg/ai"
	"github.com/noah-isme/rubiai-api/pkg/extract"
)

// fieldError is one failed validation rule.
type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

func validationDetails(err error) []fieldError {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	details := make([]fieldError, 0, len(validationErrors))
	for _, fe := range validationErrors {
		details = append(details, fieldError{Field: fe.Namespace(), Rule: fe.Tag()})
	}
	return details
}

// statusForError maps domain errors onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case isValidationError(err),
		errors.Is(err, extract.ErrUnsupportedFileType),
		errors.Is(err, extract.ErrEmptyFile),
		errors.Is(err, extract.ErrUnreadableDocument):
		return fiber.StatusBadRequest
	case errors.Is(err, extract.ErrFileTooLarge):
		return fiber.StatusRequestEntityTooLarge
	case errors.Is(err, service.ErrRubricNotFound),
		errors.Is(err, service.ErrCriterionNotFound),
		errors.Is(err, service.ErrEvaluationNotFound),
		errors.Is(err, service.ErrUploadNotFound),
		errors.Is(err, service.ErrOriginalFileMissing):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrSubmissionInProgress):
		return fiber.StatusConflict
	case errors.Is(err, service.ErrMissingCredential):
		return fiber.StatusPreconditionFailed
	case errors.Is(err, ai.ErrRemoteEvaluation), errors.Is(err, ai.ErrMalformedResponse):
		return fiber.StatusBadGateway
	case errors.Is(err, service.ErrStorageUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes the error envelope. Unexpected errors are logged and hidden behind fallback.
func respondError(c *fiber.Ctx, logger zerolog.Logger, err error, fallback string) error {
	status := statusForError(err)
	switch status {
	case fiber.StatusBadRequest:
		if isValidationError(err) {
			return utils.Fail(c, status, "validation failed", validationDetails(err))
		}
		return utils.SendError(c, status, err.Error())
	case fiber.StatusInternalServerError:
		requestLogger(logger, c).Error().Err(err).Msg(fallback)
		return utils.SendError(c, status, fallback)
	default:
		if status >= fiber.StatusInternalServerError {
			requestLogger(logger, c).Warn().Err(err).Msg(fallback)
		}
		return utils.SendError(c, status, err.Error())
	}
}

func parseRubricType(c *fiber.Ctx) (string, bool) {
	value := strings.ToLower(strings.TrimSpace(c.Params("type")))
	return value, models.IsValidRubricType(value)
}
