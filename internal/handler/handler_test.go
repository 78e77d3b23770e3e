package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/rubiai-api/internal/config"
	"github.com/noah-isme/rubiai-api/internal/handler"
	"github.com/noah-isme/rubiai-api/internal/middleware"
	"github.com/noah-isme/rubiai-api/internal/models"
	"github.com/noah-isme/rubiai-api/internal/repository"
	"github.com/noah-isme/rubiai-api/internal/router"
	"github.com/noah-isme/rubiai-api/internal/service"
	"github.com/noah-isme/rubiai-api/pkg/ai"
	"github.com/noah-isme/rubiai-api/pkg/extract"
)

type fakeCompleter struct {
	models []ai.ModelDescriptor
}

func (f *fakeCompleter) Complete(context.Context, ai.Request) (ai.Completion, error) {
	return ai.Completion{}, &ai.RemoteError{StatusCode: http.StatusServiceUnavailable, Message: "offline"}
}

func (f *fakeCompleter) ListModels(context.Context) ([]ai.ModelDescriptor, error) {
	return f.models, nil
}

type testApp struct {
	app      *fiber.App
	sessions service.SessionStore
	events   *service.EventHub
}

func setupApp(t *testing.T, probes map[string]handler.HealthProbe) *testApp {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Rubric{}, &models.Criterion{}, &models.AppSetting{}))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	rubrics := service.NewRubricService(repository.NewRubricRepository(db), validate, logger)
	require.NoError(t, rubrics.Seed(context.Background()))

	settings := service.NewSettingsService(repository.NewSettingRepository(db), validate, service.SettingsDefaults{}, logger)
	sessions := service.NewSessionStore(nil, service.SessionOptions{}, logger)
	extractor := extract.New(1 << 20)
	completer := &fakeCompleter{models: []ai.ModelDescriptor{{ID: "anthropic/claude-3.5-sonnet", OwnedBy: "anthropic"}}}
	client := service.NewEvaluationClient(settings, extractor, service.NewPromptBuilder(rubrics),
		func(string) (ai.Completer, error) { return completer, nil }, logger)
	events := service.NewEventHub(logger)
	notifier := service.NewNotifier(service.NotifierOptions{Hub: events}, logger)
	evaluations := service.NewEvaluationService(sessions, client, rubrics, extractor, notifier, validate, service.EvaluationOptions{}, logger)
	t.Cleanup(func() {
		events.Close()
		_ = evaluations.Shutdown(context.Background())
	})

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, config.Config{AppName: "RubiAI Test", AppEnv: "test"}, router.Dependencies{
		RubricHandler:     handler.NewRubricHandler(rubrics, logger),
		EvaluationHandler: handler.NewEvaluationHandler(evaluations, sessions, events, logger),
		SettingsHandler:   handler.NewSettingsHandler(settings, client, logger),
		HealthProbes:      probes,
		Logger:            logger,
	})

	return &testApp{app: app, sessions: sessions, events: events}
}

type envelope[T any] struct {
	Success bool            `json:"success"`
	Data    T               `json:"data"`
	Message string          `json:"message"`
	Meta    json.RawMessage `json:"meta"`
	Details json.RawMessage `json:"details"`
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func multipartSubmission(t *testing.T, fields map[string]string, fileName, contentType string, content []byte) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if fileName != "" {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
		header.Set("Content-Type", contentType)
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions", body)
	req.Header.Set(fiber.HeaderContentType, writer.FormDataContentType())
	return req
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}
