package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/rubiai-api/internal/dto"
	"github.com/noah-isme/rubiai-api/internal/models"
	"github.com/noah-isme/rubiai-api/internal/observability"
	"github.com/noah-isme/rubiai-api/internal/repository"
)

// RubricService owns the durable rubric set.
type RubricService interface {
	Seed(ctx context.Context) error
	List(ctx context.Context) ([]models.Rubric, error)
	Get(ctx context.Context, id string) (models.Rubric, error)
	GetActiveByType(ctx context.Context, rubricType string) (*models.Rubric, error)
	ResolveForType(ctx context.Context, rubricType string) (models.Rubric, bool)
	Create(ctx context.Context, payload dto.RubricCreateRequest) (models.Rubric, error)
	Update(ctx context.Context, id string, payload dto.RubricUpdateRequest) (models.Rubric, error)
	Delete(ctx context.Context, id string) error
	AddCriterion(ctx context.Context, rubricID string, payload dto.CriterionRequest) (models.Rubric, error)
	UpdateCriterion(ctx context.Context, rubricID, criterionID string, payload dto.CriterionRequest) (models.Rubric, error)
	DeleteCriterion(ctx context.Context, rubricID, criterionID string) (models.Rubric, error)
}

type rubricService struct {
	repo      repository.RubricRepository
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewRubricService constructs the rubric store.
func NewRubricService(repo repository.RubricRepository, validator *validator.Validate, logger zerolog.Logger) RubricService {
	return &rubricService{
		repo:      repo,
		validator: validator,
		logger:    logger.With().Str("component", "rubric_service").Logger(),
		now:       time.Now,
	}
}

// Seed stores the built-in rubrics when the store is empty.
func (s *rubricService) Seed(ctx context.Context) error {
	total, err := s.repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if total > 0 {
		return nil
	}

	if err := s.repo.CreateBatch(ctx, models.DefaultRubrics()); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	s.logger.Info().Int("count", len(models.DefaultRubrics())).Msg("seeded default rubrics")
	return nil
}

func (s *rubricService) List(ctx context.Context) ([]models.Rubric, error) {
	rubrics, err := s.repo.List(ctx)
	if err != nil {
		s.readFailure(err, "list")
		return models.DefaultRubrics(), nil
	}
	return rubrics, nil
}

func (s *rubricService) Get(ctx context.Context, id string) (models.Rubric, error) {
	rubric, err := s.repo.GetByID(ctx, id)
	if err == nil {
		return rubric, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Rubric{}, ErrRubricNotFound
	}

	s.readFailure(err, "get")
	for _, fallback := range models.DefaultRubrics() {
		if fallback.ID == id {
			return fallback, nil
		}
	}
	return models.Rubric{}, ErrRubricNotFound
}

// GetActiveByType returns the earliest created active rubric of rubricType, or nil when none exists.
func (s *rubricService) GetActiveByType(ctx context.Context, rubricType string) (*models.Rubric, error) {
	rubric, err := s.repo.FindActiveByType(ctx, rubricType)
	if err == nil {
		s.warnOnWeights(rubric)
		return &rubric, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	s.readFailure(err, "find_active")
	if fallback, ok := models.DefaultRubricForType(rubricType); ok {
		return &fallback, nil
	}
	return nil, nil
}

// ResolveForType returns the active rubric for rubricType, falling back to the built-in default.
func (s *rubricService) ResolveForType(ctx context.Context, rubricType string) (models.Rubric, bool) {
	rubric, _ := s.GetActiveByType(ctx, rubricType)
	if rubric != nil {
		return *rubric, true
	}
	return models.DefaultRubricForType(rubricType)
}

func (s *rubricService) Create(ctx context.Context, payload dto.RubricCreateRequest) (models.Rubric, error) {
	if err := s.validator.Struct(payload); err != nil {
		return models.Rubric{}, err
	}

	now := s.now().UTC()
	status := payload.Status
	if status == "" {
		status = models.RubricStatusDraft
	}

	rubric := models.Rubric{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(payload.Name),
		Description:  strings.TrimSpace(payload.Description),
		Type:         payload.Type,
		Status:       status,
		Criteria:     criteriaFromRequests(payload.Criteria, nil),
		CreatedAt:    now,
		LastModified: now,
	}

	if err := s.repo.Create(ctx, &rubric); err != nil {
		return models.Rubric{}, s.writeFailure(err, "create")
	}
	s.warnOnWeights(rubric)
	return rubric, nil
}

func (s *rubricService) Update(ctx context.Context, id string, payload dto.RubricUpdateRequest) (models.Rubric, error) {
	if err := s.validator.Struct(payload); err != nil {
		return models.Rubric{}, err
	}

	return s.mutate(ctx, id, "update", func(rubric *models.Rubric) error {
		if payload.Name != nil {
			rubric.Name = strings.TrimSpace(*payload.Name)
		}
		if payload.Description != nil {
			rubric.Description = strings.TrimSpace(*payload.Description)
		}
		if payload.Type != nil {
			rubric.Type = *payload.Type
		}
		if payload.Status != nil {
			rubric.Status = *payload.Status
		}
		if payload.Criteria != nil {
			rubric.Criteria = criteriaFromRequests(payload.Criteria, rubric.Criteria)
		}
		return nil
	})
}

func (s *rubricService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRubricNotFound
		}
		return s.writeFailure(err, "delete")
	}
	s.logger.Info().Str("rubric_id", id).Msg("rubric deleted")
	return nil
}

func (s *rubricService) AddCriterion(ctx context.Context, rubricID string, payload dto.CriterionRequest) (models.Rubric, error) {
	if err := s.validator.Struct(payload); err != nil {
		return models.Rubric{}, err
	}

	return s.mutate(ctx, rubricID, "add_criterion", func(rubric *models.Rubric) error {
		rubric.Criteria = append(rubric.Criteria, criterionFromRequest(payload, nil))
		return nil
	})
}

func (s *rubricService) UpdateCriterion(ctx context.Context, rubricID, criterionID string, payload dto.CriterionRequest) (models.Rubric, error) {
	if err := s.validator.Struct(payload); err != nil {
		return models.Rubric{}, err
	}

	return s.mutate(ctx, rubricID, "update_criterion", func(rubric *models.Rubric) error {
		for i := range rubric.Criteria {
			if rubric.Criteria[i].ID != criterionID {
				continue
			}
			rubric.Criteria[i].Name = strings.TrimSpace(payload.Name)
			rubric.Criteria[i].Weight = payload.Weight
			rubric.Criteria[i].Description = strings.TrimSpace(payload.Description)
			return nil
		}
		return ErrCriterionNotFound
	})
}

func (s *rubricService) DeleteCriterion(ctx context.Context, rubricID, criterionID string) (models.Rubric, error) {
	return s.mutate(ctx, rubricID, "delete_criterion", func(rubric *models.Rubric) error {
		for i := range rubric.Criteria {
			if rubric.Criteria[i].ID == criterionID {
				rubric.Criteria = append(rubric.Criteria[:i], rubric.Criteria[i+1:]...)
				return nil
			}
		}
		return ErrCriterionNotFound
	})
}

// mutate loads the rubric, applies change, bumps LastModified and saves the result.
func (s *rubricService) mutate(ctx context.Context, id, operation string, change func(*models.Rubric) error) (models.Rubric, error) {
	rubric, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Rubric{}, ErrRubricNotFound
		}
		return models.Rubric{}, s.writeFailure(err, operation)
	}

	if err := change(&rubric); err != nil {
		return models.Rubric{}, err
	}

	now := s.now().UTC()
	if !now.After(rubric.LastModified) {
		now = rubric.LastModified.Add(time.Millisecond)
	}
	rubric.LastModified = now

	if err := s.repo.Save(ctx, &rubric); err != nil {
		return models.Rubric{}, s.writeFailure(err, operation)
	}
	s.warnOnWeights(rubric)
	return rubric, nil
}

func (s *rubricService) warnOnWeights(rubric models.Rubric) {
	if warning := rubric.WeightWarning(); warning != "" {
		s.logger.Warn().Str("rubric_id", rubric.ID).Str("rubric_type", rubric.Type).Msg(warning)
	}
}

func (s *rubricService) readFailure(err error, operation string) {
	observability.StorageFailures().WithLabelValues("rubrics", operation).Inc()
	s.logger.Error().Err(err).Str("operation", operation).Msg("rubric storage read failed, using built-in defaults")
}

func (s *rubricService) writeFailure(err error, operation string) error {
	observability.StorageFailures().WithLabelValues("rubrics", operation).Inc()
	s.logger.Error().Err(err).Str("operation", operation).Msg("rubric storage write failed")
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

// criteriaFromRequests keeps a requested id only when it already belongs to the rubric.
func criteriaFromRequests(requests []dto.CriterionRequest, existing []models.Criterion) []models.Criterion {
	known := make(map[string]struct{}, len(existing))
	for _, criterion := range existing {
		known[criterion.ID] = struct{}{}
	}

	criteria := make([]models.Criterion, 0, len(requests))
	for _, request := range requests {
		criteria = append(criteria, criterionFromRequest(request, known))
	}
	return criteria
}

func criterionFromRequest(request dto.CriterionRequest, known map[string]struct{}) models.Criterion {
	id := strings.TrimSpace(request.ID)
	if _, ok := known[id]; !ok || id == "" {
		id = uuid.NewString()
	}
	return models.Criterion{
		ID:          id,
		Name:        strings.TrimSpace(request.Name),
		Weight:      request.Weight,
		Description: strings.TrimSpace(request.Description),
	}
}
