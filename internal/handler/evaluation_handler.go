package handler

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/rubiai-api/internal/dto"
	"github.com/noah-isme/rubiai-api/internal/service"
	"github.com/noah-isme/rubiai-api/internal/utils"
	"github.com/noah-isme/rubiai-api/pkg/extract"
)

const eventStreamPingInterval = 30 * time.Second

// EvaluationHandler exposes submissions, uploads, evaluation history, reports and the live event stream.
type EvaluationHandler struct {
	evaluations service.EvaluationService
	sessions    service.SessionStore
	events      *service.EventHub
	logger      zerolog.Logger
	now         func() time.Time
}

// NewEvaluationHandler constructs the handler. A nil hub disables the event stream route.
func NewEvaluationHandler(evaluations service.EvaluationService, sessions service.SessionStore, events *service.EventHub, logger zerolog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		evaluations: evaluations,
		sessions:    sessions,
		events:      events,
		logger:      logger.With().Str("component", "evaluation_handler").Logger(),
		now:         time.Now,
	}
}

// Register attaches the session-scoped endpoints to the API group.
func (h *EvaluationHandler) Register(router fiber.Router) {
	router.Post("/submissions", h.submit)

	router.Get("/uploads", h.listUploads)
	router.Get("/uploads/:id", h.getUpload)

	if h.events != nil {
		router.Use("/evaluations/events", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		router.Get("/evaluations/events", websocket.New(h.streamEvents))
	}

	router.Get("/evaluations", h.listEvaluations)
	router.Get("/evaluations/current", h.current)
	router.Put("/evaluations/current", h.setCurrent)
	router.Get("/evaluations/:id", h.getEvaluation)
	router.Post("/evaluations/:id/re-evaluate", h.reEvaluate)
	router.Get("/evaluations/:id/report", h.report)

	router.Get("/session", h.summary)
	router.Delete("/session", h.clear)
}

func (h *EvaluationHandler) submit(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	opened, err := header.Open()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file could not be read")
	}
	data, err := io.ReadAll(opened)
	_ = opened.Close()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file could not be read")
	}

	useAI := false
	if raw := strings.TrimSpace(c.FormValue("use_ai")); raw != "" {
		useAI, err = strconv.ParseBool(raw)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "use_ai must be a boolean")
		}
	}

	payload := dto.SubmissionRequest{
		RubricType: c.FormValue("rubric_type"),
		UseAI:      useAI,
		Model:      c.FormValue("model"),
	}

	file := extract.File{
		Name:        header.Filename,
		ContentType: header.Header.Get(fiber.HeaderContentType),
		Data:        data,
	}

	submission, err := h.evaluations.Submit(c.UserContext(), file, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to accept submission")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "submission accepted", dto.SubmissionResponse{
		Upload:   submission.Upload,
		Strategy: submission.Strategy,
	})
}

func (h *EvaluationHandler) listUploads(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "uploads retrieved", h.sessions.UploadedFiles())
}

func (h *EvaluationHandler) getUpload(c *fiber.Ctx) error {
	upload, ok := h.sessions.GetUpload(c.Params("id"))
	if !ok {
		return respondError(c, h.logger, service.ErrUploadNotFound, "failed to load upload")
	}
	upload.Content = nil

	return utils.SendSuccess(c, "upload retrieved", upload)
}

func (h *EvaluationHandler) listEvaluations(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "evaluations retrieved", h.sessions.EvaluationResults())
}

func (h *EvaluationHandler) current(c *fiber.Ctx) error {
	current := h.sessions.CurrentEvaluation()
	if current == nil {
		return utils.SendSuccess(c, "no current evaluation", nil)
	}

	return utils.SendSuccess(c, "current evaluation retrieved", current)
}

func (h *EvaluationHandler) setCurrent(c *fiber.Ctx) error {
	var payload dto.SetCurrentEvaluationRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.sessions.SetCurrentEvaluation(c.UserContext(), strings.TrimSpace(payload.EvaluationID)); err != nil {
		return respondError(c, h.logger, err, "failed to set current evaluation")
	}

	return h.current(c)
}

func (h *EvaluationHandler) getEvaluation(c *fiber.Ctx) error {
	result, ok := h.sessions.GetEvaluation(c.Params("id"))
	if !ok {
		return respondError(c, h.logger, service.ErrEvaluationNotFound, "failed to load evaluation")
	}

	return utils.SendSuccess(c, "evaluation retrieved", result)
}

func (h *EvaluationHandler) reEvaluate(c *fiber.Ctx) error {
	var payload dto.ReEvaluateRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	submission, err := h.evaluations.ReEvaluate(c.UserContext(), c.Params("id"), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to start re-evaluation")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "re-evaluation accepted", dto.SubmissionResponse{
		Upload:   submission.Upload,
		Strategy: submission.Strategy,
	})
}

func (h *EvaluationHandler) report(c *fiber.Ctx) error {
	result, ok := h.sessions.GetEvaluation(c.Params("id"))
	if !ok {
		return respondError(c, h.logger, service.ErrEvaluationNotFound, "failed to load evaluation")
	}

	filename, body, err := service.RenderReport(result, h.now().UTC())
	if err != nil {
		return respondError(c, h.logger, err, "failed to render report")
	}

	c.Set(fiber.HeaderContentType, "text/html; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Status(fiber.StatusOK).Send(body)
}

// streamEvents pushes every submission outcome to the socket until either side closes.
func (h *EvaluationHandler) streamEvents(conn *websocket.Conn) {
	events, unsubscribe := h.events.Subscribe()
	defer unsubscribe()

	logger := h.logger.With().Str("correlation_id", fmt.Sprint(conn.Locals("correlation_id"))).Logger()
	logger.Info().Msg("evaluation event stream connected")
	defer logger.Info().Msg("evaluation event stream disconnected")

	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(eventStreamPingInterval)
	defer ping.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				logger.Debug().Err(err).Msg("event stream write failed")
				return
			}
		case <-ping.C:
			if err := conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				return
			}
		case <-disconnected:
			return
		}
	}
}

func (h *EvaluationHandler) summary(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "session retrieved", h.sessionSummary())
}

func (h *EvaluationHandler) clear(c *fiber.Ctx) error {
	if err := h.sessions.Clear(c.UserContext()); err != nil {
		return respondError(c, h.logger, err, "failed to clear session")
	}

	requestLogger(h.logger, c).Info().Msg("session cleared")
	return utils.SendSuccess(c, "session cleared", h.sessionSummary())
}

func (h *EvaluationHandler) sessionSummary() dto.SessionSummary {
	stats := h.sessions.Stats()
	summary := dto.SessionSummary{
		Evaluations:          stats.TotalEvaluations,
		Uploads:              len(h.sessions.UploadedFiles()),
		TotalEvaluations:     stats.TotalEvaluations,
		AverageScore:         stats.AverageScore,
		PendingUploads:       stats.PendingUploads,
		CompletedEvaluations: stats.CompletedEvaluations,
	}
	if current := h.sessions.CurrentEvaluation(); current != nil {
		summary.CurrentEvaluation = current.ID
	}
	return summary
}
