package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/rubiai-api/internal/dto"
	"github.com/noah-isme/rubiai-api/internal/service"
	"github.com/noah-isme/rubiai-api/internal/utils"
)

// SettingsHandler exposes the stored credential and model choice.
type SettingsHandler struct {
	settings service.SettingsService
	client   *service.EvaluationClient
	logger   zerolog.Logger
}

// NewSettingsHandler constructs the handler.
func NewSettingsHandler(settings service.SettingsService, client *service.EvaluationClient, logger zerolog.Logger) *SettingsHandler {
	return &SettingsHandler{
		settings: settings,
		client:   client,
		logger:   logger.With().Str("component", "settings_handler").Logger(),
	}
}

// Register attaches settings endpoints to the router group.
func (h *SettingsHandler) Register(router fiber.Router) {
	router.Get("", h.get)
	router.Put("", h.update)
	router.Delete("/credential", h.clearCredential)
	router.Get("/models", h.models)
}

func (h *SettingsHandler) get(c *fiber.Ctx) error {
	settings, err := h.settings.Get(c.Context())
	if err != nil {
		return respondError(c, h.logger, err, "failed to load settings")
	}

	return utils.SendSuccess(c, "settings retrieved", settings)
}

func (h *SettingsHandler) update(c *fiber.Ctx) error {
	var payload dto.SettingsUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	settings, err := h.settings.Update(c.Context(), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update settings")
	}

	requestLogger(h.logger, c).Info().
		Bool("credential_configured", settings.CredentialConfigured).
		Str("model", settings.Model).
		Msg("settings updated")
	return utils.SendSuccess(c, "settings updated", settings)
}

func (h *SettingsHandler) clearCredential(c *fiber.Ctx) error {
	if err := h.settings.ClearCredential(c.Context()); err != nil {
		return respondError(c, h.logger, err, "failed to clear credential")
	}

	settings, err := h.settings.Get(c.Context())
	if err != nil {
		return respondError(c, h.logger, err, "failed to load settings")
	}

	return utils.SendSuccess(c, "credential cleared", settings)
}

func (h *SettingsHandler) models(c *fiber.Ctx) error {
	descriptors, err := h.client.ListAvailableModels(c.UserContext())
	if err != nil {
		if errors.Is(err, service.ErrMissingCredential) {
			return utils.SendError(c, fiber.StatusPreconditionFailed, "no API key configured")
		}
		return respondError(c, h.logger, err, "failed to list models")
	}

	response := make([]dto.ModelResponse, 0, len(descriptors))
	for _, descriptor := range descriptors {
		response = append(response, dto.ModelResponse{
			ID:      descriptor.ID,
			OwnedBy: descriptor.OwnedBy,
		})
	}

	return utils.OK(c, response, "models retrieved", fiber.Map{"count": len(response)})
}
