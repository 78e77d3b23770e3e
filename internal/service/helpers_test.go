package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/rubiai-api/internal/models"
	"github.com/noah-isme/rubiai-api/internal/repository"
	"github.com/noah-isme/rubiai-api/pkg/ai"
	"github.com/noah-isme/rubiai-api/pkg/extract"
)

const stubEvaluationReply = `{
  "id": "model-echoed-id",
  "filename": "echoed.txt",
  "timestamp": "yesterday",
  "overallScore": {"points": 82, "total": 100, "percentage": 12, "grade": "B+"},
  "criteriaScores": [
    {"criterion": "Clarity & Structure", "weight": 20, "score": 30, "maxScore": 20, "percentage": 150, "status": "excellent", "feedback": "<b>Readable</b> & tidy"},
    {"criterion": "Logical Flow", "weight": 25, "score": 20, "maxScore": 25, "percentage": 80, "status": "unsure", "feedback": "Loops terminate"}
  ],
  "aiInsights": {"strengths": ["<i>clear</i>", "  "], "improvements": ["edge cases", "&lt;script&gt;alert(1)&lt;/script&gt;", "&amp;lt;img src=x onerror=alert(1)&amp;gt;"], "summary": "&lt;script&gt;alert(1)&lt;/script&gt;Solid &amp; <b>sound</b>"}
}`

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Rubric{}, &models.Criterion{}, &models.AppSetting{}))
	return db
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

type stubCompleter struct {
	mu       sync.Mutex
	content  string
	err      error
	models   []ai.ModelDescriptor
	modelErr error
	requests []ai.Request
}

func (s *stubCompleter) Complete(_ context.Context, req ai.Request) (ai.Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return ai.Completion{}, s.err
	}
	return ai.Completion{Model: req.Model, Content: s.content, PromptTokens: 10, CompletionTokens: 20}, nil
}

func (s *stubCompleter) ListModels(context.Context) ([]ai.ModelDescriptor, error) {
	return s.models, s.modelErr
}

func (s *stubCompleter) calls() []ai.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ai.Request(nil), s.requests...)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []EvaluationEvent
}

func (r *recordingNotifier) Notify(_ context.Context, event EvaluationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingNotifier) all() []EvaluationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]EvaluationEvent(nil), r.events...)
}

type testHarness struct {
	rubrics   RubricService
	settings  SettingsService
	sessions  SessionStore
	client    *EvaluationClient
	service   EvaluationService
	notifier  *recordingNotifier
	extractor *extract.Extractor
}

type harnessOptions struct {
	defaults SettingsDefaults
	factory  CompleterFactory
	opts     EvaluationOptions
}

func newHarness(t *testing.T, options harnessOptions) *testHarness {
	t.Helper()

	db := newTestDB(t)
	logger := zerolog.Nop()
	validate := newValidator()

	rubrics := NewRubricService(repository.NewRubricRepository(db), validate, logger)
	require.NoError(t, rubrics.Seed(context.Background()))

	settings := NewSettingsService(repository.NewSettingRepository(db), validate, options.defaults, logger)
	sessions := NewSessionStore(nil, SessionOptions{}, logger)
	extractor := extract.New(10 << 20)

	factory := options.factory
	if factory == nil {
		factory = func(string) (ai.Completer, error) { return &stubCompleter{content: stubEvaluationReply}, nil }
	}

	client := NewEvaluationClient(settings, extractor, NewPromptBuilder(rubrics), factory, logger)
	notifier := &recordingNotifier{}
	service := NewEvaluationService(sessions, client, rubrics, extractor, notifier, validate, options.opts, logger)

	t.Cleanup(func() {
		_ = service.Shutdown(context.Background())
	})

	return &testHarness{
		rubrics:   rubrics,
		settings:  settings,
		sessions:  sessions,
		client:    client,
		service:   service,
		notifier:  notifier,
		extractor: extractor,
	}
}
