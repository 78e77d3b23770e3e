package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/rubiai-api/internal/dto"
	"github.com/noah-isme/rubiai-api/internal/service"
	"github.com/noah-isme/rubiai-api/internal/utils"
)

// RubricHandler wires rubric HTTP routes.
type RubricHandler struct {
	service service.RubricService
	logger  zerolog.Logger
}

// NewRubricHandler constructs the handler.
func NewRubricHandler(service service.RubricService, logger zerolog.Logger) *RubricHandler {
	return &RubricHandler{
		service: service,
		logger:  logger.With().Str("component", "rubric_handler").Logger(),
	}
}

// Register attaches rubric endpoints to the router group.
func (h *RubricHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/type/:type", h.activeByType)
	router.Get("/:id", h.get)
	router.Post("", h.create)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.delete)
	router.Post("/:id/criteria", h.addCriterion)
	router.Put("/:id/criteria/:criterionId", h.updateCriterion)
	router.Delete("/:id/criteria/:criterionId", h.deleteCriterion)
}

func (h *RubricHandler) list(c *fiber.Ctx) error {
	rubrics, err := h.service.List(c.Context())
	if err != nil {
		return respondError(c, h.logger, err, "failed to list rubrics")
	}

	return utils.SendSuccess(c, "rubrics retrieved", dto.NewRubricResponses(rubrics))
}

func (h *RubricHandler) activeByType(c *fiber.Ctx) error {
	rubricType, ok := parseRubricType(c)
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "unknown rubric type")
	}

	rubric, err := h.service.GetActiveByType(c.Context(), rubricType)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load rubric")
	}
	if rubric == nil {
		return utils.SendError(c, fiber.StatusNotFound, "no active rubric for type "+rubricType)
	}

	return utils.SendSuccess(c, "rubric retrieved", dto.NewRubricResponse(*rubric))
}

func (h *RubricHandler) get(c *fiber.Ctx) error {
	rubric, err := h.service.Get(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load rubric")
	}

	return utils.SendSuccess(c, "rubric retrieved", dto.NewRubricResponse(rubric))
}

func (h *RubricHandler) create(c *fiber.Ctx) error {
	var payload dto.RubricCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	rubric, err := h.service.Create(c.Context(), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to create rubric")
	}

	response := dto.NewRubricResponse(rubric)
	h.logWeightWarning(c, response)
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "rubric created", response)
}

func (h *RubricHandler) update(c *fiber.Ctx) error {
	var payload dto.RubricUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	rubric, err := h.service.Update(c.Context(), c.Params("id"), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update rubric")
	}

	response := dto.NewRubricResponse(rubric)
	h.logWeightWarning(c, response)
	return utils.SendSuccess(c, "rubric updated", response)
}

func (h *RubricHandler) delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.Context(), c.Params("id")); err != nil {
		return respondError(c, h.logger, err, "failed to delete rubric")
	}

	return utils.SendSuccess(c, "rubric deleted", nil)
}

func (h *RubricHandler) addCriterion(c *fiber.Ctx) error {
	var payload dto.CriterionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	rubric, err := h.service.AddCriterion(c.Context(), c.Params("id"), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to add criterion")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "criterion added", dto.NewRubricResponse(rubric))
}

func (h *RubricHandler) updateCriterion(c *fiber.Ctx) error {
	var payload dto.CriterionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	rubric, err := h.service.UpdateCriterion(c.Context(), c.Params("id"), c.Params("criterionId"), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update criterion")
	}

	return utils.SendSuccess(c, "criterion updated", dto.NewRubricResponse(rubric))
}

func (h *RubricHandler) deleteCriterion(c *fiber.Ctx) error {
	rubric, err := h.service.DeleteCriterion(c.Context(), c.Params("id"), c.Params("criterionId"))
	if err != nil {
		return respondError(c, h.logger, err, "failed to delete criterion")
	}

	return utils.SendSuccess(c, "criterion deleted", dto.NewRubricResponse(rubric))
}

func (h *RubricHandler) logWeightWarning(c *fiber.Ctx, rubric dto.RubricResponse) {
	if strings.TrimSpace(rubric.WeightWarning) == "" {
		return
	}
	requestLogger(h.logger, c).Warn().
		Str("rubric_id", rubric.ID).
		Float64("total_weight", rubric.TotalWeight).
		Msg(rubric.WeightWarning)
}
