package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/rubiai-api/internal/models"
	"github.com/noah-isme/rubiai-api/internal/observability"
)

// History caps for the session.
const (
	MaxEvaluationResults = 50
	MaxUploadedFiles     = 20
)

// SessionStore holds the evaluation history, upload metadata and the current evaluation pointer.
type SessionStore interface {
	Load(ctx context.Context) error
	EvaluationResults() []models.EvaluationResult
	UploadedFiles() []models.UploadedFile
	CurrentEvaluation() *models.EvaluationResult
	Stats() SessionStats
	GetEvaluation(id string) (models.EvaluationResult, bool)
	GetUpload(id string) (models.UploadedFile, bool)
	FindUploadByEvaluationID(evaluationID string) (models.UploadedFile, bool)
	AddUploadedFile(ctx context.Context, upload models.UploadedFile)
	AddEvaluationResult(ctx context.Context, result models.EvaluationResult)
	UpdateFileStatus(ctx context.Context, uploadID, status, evaluationID, reason string) error
	CompleteUpload(ctx context.Context, uploadID string, result models.EvaluationResult) error
	SetCurrentEvaluation(ctx context.Context, evaluationID string) error
	Clear(ctx context.Context) error
}

// SessionStats summarises the session for the dashboard.
type SessionStats struct {
	TotalEvaluations     int
	AverageScore         int
	PendingUploads       int
	CompletedEvaluations int
}

// SessionOptions configures persistence of the session snapshot.
type SessionOptions struct {
	Namespace string
	TTL       time.Duration
}

type sessionStore struct {
	mu          sync.RWMutex
	evaluations []models.EvaluationResult
	uploads     []models.UploadedFile
	currentID   string

	redis  *redis.Client
	keys   sessionKeys
	ttl    time.Duration
	logger zerolog.Logger
}

type sessionKeys struct {
	evaluations string
	uploads     string
	current     string
}

// NewSessionStore constructs the session store. A nil client keeps the session in memory only.
func NewSessionStore(client *redis.Client, opts SessionOptions, logger zerolog.Logger) SessionStore {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "default"
	}
	prefix := fmt.Sprintf("rubiai:session:%s:", namespace)

	return &sessionStore{
		evaluations: []models.EvaluationResult{},
		uploads:     []models.UploadedFile{},
		redis:       client,
		keys: sessionKeys{
			evaluations: prefix + "evaluation_results",
			uploads:     prefix + "uploaded_files",
			current:     prefix + "current_evaluation",
		},
		ttl:    opts.TTL,
		logger: logger.With().Str("component", "session_store").Logger(),
	}
}

// Load restores the persisted snapshot. Uploads come back without their bytes.
func (s *sessionStore) Load(ctx context.Context) error {
	if s.redis == nil {
		return nil
	}

	values, err := s.redis.MGet(ctx, s.keys.evaluations, s.keys.uploads, s.keys.current).Result()
	if err != nil {
		s.storageFailure(err, "load")
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	evaluations := []models.EvaluationResult{}
	uploads := []models.UploadedFile{}
	var currentID string

	if raw, ok := values[0].(string); ok {
		if err := json.Unmarshal([]byte(raw), &evaluations); err != nil {
			s.storageFailure(err, "decode_evaluations")
			evaluations = []models.EvaluationResult{}
		}
	}
	if raw, ok := values[1].(string); ok {
		if err := json.Unmarshal([]byte(raw), &uploads); err != nil {
			s.storageFailure(err, "decode_uploads")
			uploads = []models.UploadedFile{}
		}
	}
	if raw, ok := values[2].(string); ok {
		currentID = raw
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.evaluations = truncateEvaluations(evaluations)
	s.uploads = truncateUploads(uploads)
	s.currentID = ""
	if s.indexOfEvaluation(currentID) >= 0 {
		s.currentID = currentID
	}

	s.logger.Info().
		Int("evaluations", len(s.evaluations)).
		Int("uploads", len(s.uploads)).
		Msg("session restored")
	return nil
}

func (s *sessionStore) EvaluationResults() []models.EvaluationResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]models.EvaluationResult, len(s.evaluations))
	copy(results, s.evaluations)
	return results
}

// UploadedFiles returns upload metadata; file bytes are not included.
func (s *sessionStore) UploadedFiles() []models.UploadedFile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uploads := make([]models.UploadedFile, len(s.uploads))
	for i, upload := range s.uploads {
		upload.Content = nil
		uploads[i] = upload
	}
	return uploads
}

// Stats counts the history. AverageScore is the rounded mean overall percentage, 0 when empty.
func (s *sessionStore) Stats() SessionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := SessionStats{TotalEvaluations: len(s.evaluations)}
	if len(s.evaluations) > 0 {
		var sum float64
		for _, result := range s.evaluations {
			sum += result.OverallScore.Percentage
		}
		stats.AverageScore = int(math.Round(sum / float64(len(s.evaluations))))
	}
	for _, upload := range s.uploads {
		switch upload.Status {
		case models.UploadStatusProcessing:
			stats.PendingUploads++
		case models.UploadStatusCompleted:
			stats.CompletedEvaluations++
		}
	}
	return stats
}

func (s *sessionStore) CurrentEvaluation() *models.EvaluationResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index := s.indexOfEvaluation(s.currentID)
	if index < 0 {
		return nil
	}
	current := s.evaluations[index]
	return &current
}

func (s *sessionStore) GetEvaluation(id string) (models.EvaluationResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index := s.indexOfEvaluation(id)
	if index < 0 {
		return models.EvaluationResult{}, false
	}
	return s.evaluations[index], true
}

func (s *sessionStore) GetUpload(id string) (models.UploadedFile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index := s.indexOfUpload(id)
	if index < 0 {
		return models.UploadedFile{}, false
	}
	upload := s.uploads[index]
	upload.Content = nil
	return upload, true
}

// FindUploadByEvaluationID returns the upload that produced the evaluation, including resident bytes.
func (s *sessionStore) FindUploadByEvaluationID(evaluationID string) (models.UploadedFile, bool) {
	if evaluationID == "" {
		return models.UploadedFile{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, upload := range s.uploads {
		if upload.EvaluationID == evaluationID {
			return upload, true
		}
	}
	return models.UploadedFile{}, false
}

func (s *sessionStore) AddUploadedFile(ctx context.Context, upload models.UploadedFile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.uploads = truncateUploads(append([]models.UploadedFile{upload}, s.uploads...))
	s.persistLocked(ctx)
}

func (s *sessionStore) AddEvaluationResult(ctx context.Context, result models.EvaluationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prependEvaluationLocked(result)
	s.persistLocked(ctx)
}

// UpdateFileStatus applies a status transition; evaluationID and reason are recorded when set.
func (s *sessionStore) UpdateFileStatus(ctx context.Context, uploadID, status, evaluationID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.transitionLocked(uploadID, status, evaluationID, reason); err != nil {
		return err
	}
	s.persistLocked(ctx)
	return nil
}

// CompleteUpload records the result, makes it current and completes the upload in one step.
// The result is kept even when the upload was already evicted from history.
func (s *sessionStore) CompleteUpload(ctx context.Context, uploadID string, result models.EvaluationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prependEvaluationLocked(result)
	s.currentID = result.ID
	err := s.transitionLocked(uploadID, models.UploadStatusCompleted, result.ID, "")
	s.persistLocked(ctx)

	if errors.Is(err, ErrUploadNotFound) {
		s.logger.Warn().Str("upload_id", uploadID).Str("evaluation_id", result.ID).Msg("upload evicted before completion")
		return nil
	}
	return err
}

// SetCurrentEvaluation moves the current pointer; an empty id clears it.
func (s *sessionStore) SetCurrentEvaluation(ctx context.Context, evaluationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if evaluationID != "" && s.indexOfEvaluation(evaluationID) < 0 {
		return ErrEvaluationNotFound
	}
	s.currentID = evaluationID
	s.persistLocked(ctx)
	return nil
}

func (s *sessionStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evaluations = []models.EvaluationResult{}
	s.uploads = []models.UploadedFile{}
	s.currentID = ""

	if s.redis == nil {
		return nil
	}
	if err := s.redis.Del(ctx, s.keys.evaluations, s.keys.uploads, s.keys.current).Err(); err != nil {
		s.storageFailure(err, "clear")
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	s.logger.Info().Msg("session cleared")
	return nil
}

func (s *sessionStore) prependEvaluationLocked(result models.EvaluationResult) {
	s.evaluations = truncateEvaluations(append([]models.EvaluationResult{result}, s.evaluations...))
	if s.currentID != "" && s.indexOfEvaluation(s.currentID) < 0 {
		s.currentID = ""
	}
}

func (s *sessionStore) transitionLocked(uploadID, status, evaluationID, reason string) error {
	index := s.indexOfUpload(uploadID)
	if index < 0 {
		return ErrUploadNotFound
	}

	upload := &s.uploads[index]
	if err := upload.Transition(status); err != nil {
		return err
	}
	if evaluationID != "" {
		upload.EvaluationID = evaluationID
	}
	if reason != "" {
		upload.FailureReason = reason
	}
	return nil
}

// persistLocked writes the snapshot in the order mutations were applied. Failures are logged only.
func (s *sessionStore) persistLocked(ctx context.Context) {
	if s.redis == nil {
		return
	}

	evaluations, err := json.Marshal(s.evaluations)
	if err != nil {
		s.storageFailure(err, "encode_evaluations")
		return
	}
	uploads, err := json.Marshal(s.uploads)
	if err != nil {
		s.storageFailure(err, "encode_uploads")
		return
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, s.keys.evaluations, evaluations, s.ttl)
	pipe.Set(ctx, s.keys.uploads, uploads, s.ttl)
	if s.currentID == "" {
		pipe.Del(ctx, s.keys.current)
	} else {
		pipe.Set(ctx, s.keys.current, s.currentID, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.storageFailure(err, "persist")
	}
}

func (s *sessionStore) storageFailure(err error, operation string) {
	observability.StorageFailures().WithLabelValues("session", operation).Inc()
	s.logger.Error().Err(err).Str("operation", operation).Msg("session storage failure, keeping in-memory state")
}

func (s *sessionStore) indexOfEvaluation(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.evaluations {
		if s.evaluations[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *sessionStore) indexOfUpload(id string) int {
	for i := range s.uploads {
		if s.uploads[i].ID == id {
			return i
		}
	}
	return -1
}

func truncateEvaluations(results []models.EvaluationResult) []models.EvaluationResult {
	if len(results) > MaxEvaluationResults {
		return results[:MaxEvaluationResults]
	}
	return results
}

func truncateUploads(uploads []models.UploadedFile) []models.UploadedFile {
	if len(uploads) > MaxUploadedFiles {
		return uploads[:MaxUploadedFiles]
	}
	return uploads
}
