package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/rubiai-api/internal/dto"
	"github.com/noah-isme/rubiai-api/internal/models"
	"github.com/noah-isme/rubiai-api/internal/observability"
	"github.com/noah-isme/rubiai-api/pkg/extract"
)

// Defaults for EvaluationOptions.
const (
	DefaultMockDelay         = 6 * time.Second
	DefaultEvaluationTimeout = 120 * time.Second
)

// EvaluationOptions tunes submission processing.
type EvaluationOptions struct {
	MockDelay time.Duration
	Timeout   time.Duration
}

// EvaluationService sequences extraction, prompting, evaluation and session updates per submission.
type EvaluationService interface {
	Submit(ctx context.Context, file extract.File, payload dto.SubmissionRequest) (*Submission, error)
	ReEvaluate(ctx context.Context, evaluationID string, payload dto.ReEvaluateRequest) (*Submission, error)
	Shutdown(ctx context.Context) error
}

// Submission is an accepted file whose evaluation runs in the background.
type Submission struct {
	Upload   models.UploadedFile
	Strategy string

	done   chan struct{}
	result models.EvaluationResult
	err    error
}

// Wait blocks until the evaluation finishes or ctx ends.
func (s *Submission) Wait(ctx context.Context) (models.EvaluationResult, error) {
	select {
	case <-s.done:
		return s.result, s.err
	case <-ctx.Done():
		return models.EvaluationResult{}, ctx.Err()
	}
}

type evaluationService struct {
	sessions  SessionStore
	client    *EvaluationClient
	rubrics   RubricResolver
	extractor *extract.Extractor
	notifier  Notifier
	validator *validator.Validate
	opts      EvaluationOptions
	logger    zerolog.Logger
	now       func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}
	wg       sync.WaitGroup
}

// NewEvaluationService wires the orchestrator.
func NewEvaluationService(
	sessions SessionStore,
	client *EvaluationClient,
	rubrics RubricResolver,
	extractor *extract.Extractor,
	notifier Notifier,
	validator *validator.Validate,
	opts EvaluationOptions,
	logger zerolog.Logger,
) EvaluationService {
	if opts.MockDelay < 0 {
		opts.MockDelay = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultEvaluationTimeout
	}

	return &evaluationService{
		sessions:  sessions,
		client:    client,
		rubrics:   rubrics,
		extractor: extractor,
		notifier:  notifier,
		validator: validator,
		opts:      opts,
		logger:    logger.With().Str("component", "evaluation_service").Logger(),
		now:       time.Now,
		inflight:  make(map[string]struct{}),
	}
}

func (s *evaluationService) Submit(ctx context.Context, file extract.File, payload dto.SubmissionRequest) (*Submission, error) {
	payload.RubricType = strings.TrimSpace(payload.RubricType)
	payload.Model = strings.TrimSpace(payload.Model)
	if err := s.validator.Struct(payload); err != nil {
		return nil, err
	}

	return s.start(ctx, file, payload.RubricType, payload.Model, payload.UseAI, "")
}

// ReEvaluate grades the file behind evaluationID again. The original result is left untouched.
func (s *evaluationService) ReEvaluate(ctx context.Context, evaluationID string, payload dto.ReEvaluateRequest) (*Submission, error) {
	payload.Model = strings.TrimSpace(payload.Model)
	if err := s.validator.Struct(payload); err != nil {
		return nil, err
	}

	origin, ok := s.sessions.FindUploadByEvaluationID(evaluationID)
	if !ok || !origin.HasContent() {
		s.logger.Warn().Str("evaluation_id", evaluationID).Bool("record_found", ok).Msg("original file missing for re-evaluation")
		return nil, ErrOriginalFileMissing
	}

	useAI := true
	if payload.UseAI != nil {
		useAI = *payload.UseAI
	}

	file := extract.File{
		Name:        origin.FileName,
		ContentType: origin.FileType,
		Data:        origin.Content,
	}
	return s.start(ctx, file, origin.RubricType, payload.Model, useAI, origin.ID)
}

// Shutdown waits for running evaluations.
func (s *evaluationService) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *evaluationService) start(ctx context.Context, file extract.File, rubricType, model string, useAI bool, originID string) (*Submission, error) {
	if originID != "" && !s.acquire(originID) {
		return nil, ErrSubmissionInProgress
	}

	upload := models.UploadedFile{
		ID:         uuid.NewString(),
		FileName:   file.Name,
		FileSize:   int64(len(file.Data)),
		FileType:   file.ContentType,
		RubricType: rubricType,
		UploadTime: s.now().UTC(),
		Status:     models.UploadStatusUploaded,
		Content:    file.Data,
	}
	if err := upload.Transition(models.UploadStatusProcessing); err != nil {
		s.release(originID)
		return nil, err
	}

	strategy := s.selectStrategy(ctx, useAI)
	s.sessions.AddUploadedFile(ctx, upload)

	submission := &Submission{
		Upload:   upload,
		Strategy: strategy.Name(),
		done:     make(chan struct{}),
	}
	submission.Upload.Content = nil

	job := evaluationJob{File: file, RubricType: rubricType, Model: model}

	s.logger.Info().
		Str("upload_id", upload.ID).
		Str("rubric_type", rubricType).
		Str("strategy", strategy.Name()).
		Str("origin_upload_id", originID).
		Msg("submission accepted")

	s.wg.Add(1)
	go s.run(context.WithoutCancel(ctx), submission, strategy, job, originID)

	return submission, nil
}

// selectStrategy picks the real path only when the user opted in and a credential resolves.
func (s *evaluationService) selectStrategy(ctx context.Context, useAI bool) EvaluationStrategy {
	if useAI && s.client != nil && s.client.HasCredential(ctx, "") {
		return realEvaluation{client: s.client}
	}
	return mockEvaluation{rubrics: s.rubrics, delay: s.opts.MockDelay, now: s.now}
}

func (s *evaluationService) run(parent context.Context, submission *Submission, strategy EvaluationStrategy, job evaluationJob, originID string) {
	defer s.wg.Done()
	defer close(submission.done)
	defer s.release(originID)

	observability.EvaluationsInProgress().Inc()
	defer observability.EvaluationsInProgress().Dec()

	ctx, cancel := context.WithTimeout(parent, s.opts.Timeout)
	defer cancel()

	uploadID := submission.Upload.ID
	result, err := s.evaluate(ctx, strategy, job)
	if err != nil {
		submission.err = err
		s.fail(parent, submission, err)
		return
	}

	submission.result = result
	if err := s.sessions.CompleteUpload(parent, uploadID, result); err != nil {
		s.logger.Error().Err(err).Str("upload_id", uploadID).Msg("failed to complete upload")
	}

	observability.Submissions().WithLabelValues(strategy.Name(), "completed").Inc()
	s.notifier.Notify(parent, EvaluationEvent{
		Type:         EventEvaluationCompleted,
		UploadID:     uploadID,
		EvaluationID: result.ID,
		FileName:     job.File.Name,
		RubricType:   job.RubricType,
		Strategy:     strategy.Name(),
		Percentage:   result.OverallScore.Percentage,
		Grade:        result.OverallScore.Grade,
		OccurredAt:   s.now().UTC(),
	})
}

// evaluate rejects unsupported files before any strategy runs so both paths fail alike.
func (s *evaluationService) evaluate(ctx context.Context, strategy EvaluationStrategy, job evaluationJob) (models.EvaluationResult, error) {
	if _, _, err := s.extractor.Classify(job.File); err != nil {
		return models.EvaluationResult{}, err
	}

	result, err := strategy.Evaluate(ctx, job)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return models.EvaluationResult{}, fmt.Errorf("evaluation timed out after %s: %w", s.opts.Timeout, err)
		}
		return models.EvaluationResult{}, err
	}
	return result, nil
}

func (s *evaluationService) fail(ctx context.Context, submission *Submission, cause error) {
	uploadID := submission.Upload.ID
	reason := cause.Error()

	if err := s.sessions.UpdateFileStatus(ctx, uploadID, models.UploadStatusFailed, "", reason); err != nil {
		s.logger.Error().Err(err).Str("upload_id", uploadID).Msg("failed to mark upload as failed")
	}

	observability.Submissions().WithLabelValues(submission.Strategy, "failed").Inc()
	s.notifier.Notify(ctx, EvaluationEvent{
		Type:       EventEvaluationFailed,
		UploadID:   uploadID,
		FileName:   submission.Upload.FileName,
		RubricType: submission.Upload.RubricType,
		Strategy:   submission.Strategy,
		Reason:     reason,
		OccurredAt: s.now().UTC(),
	})
}

func (s *evaluationService) acquire(uploadID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inflight[uploadID]; busy {
		return false
	}
	s.inflight[uploadID] = struct{}{}
	return true
}

func (s *evaluationService) release(uploadID string) {
	if uploadID == "" {
		return
	}
	s.mu.Lock()
	delete(s.inflight, uploadID)
	s.mu.Unlock()
}
