package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rubiai-api/internal/dto"
	"github.com/noah-isme/rubiai-api/internal/models"
	"github.com/noah-isme/rubiai-api/internal/repository"
)

func newRubricService(t *testing.T) RubricService {
	t.Helper()
	db := newTestDB(t)
	svc := NewRubricService(repository.NewRubricRepository(db), newValidator(), zerolog.Nop())
	require.NoError(t, svc.Seed(context.Background()))
	return svc
}

func TestRubricServiceSeedIsIdempotent(t *testing.T) {
	svc := newRubricService(t)
	ctx := context.Background()

	require.NoError(t, svc.Seed(ctx))

	rubrics, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, rubrics, 3)
	require.Equal(t, "Flowchart Evaluation", rubrics[0].Name)
}

func TestRubricServiceLookupIsIdempotent(t *testing.T) {
	svc := newRubricService(t)
	ctx := context.Background()

	first, err := svc.GetActiveByType(ctx, models.RubricTypeAlgorithm)
	require.NoError(t, err)
	second, err := svc.GetActiveByType(ctx, models.RubricTypeAlgorithm)
	require.NoError(t, err)

	require.NotNil(t, first)
	require.Equal(t, *first, *second)

	missing, err := svc.GetActiveByType(ctx, models.RubricTypeCustom)
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestRubricServiceLookupToleratesUnbalancedWeights(t *testing.T) {
	svc := newRubricService(t)
	ctx := context.Background()

	criteria := []dto.CriterionRequest{
		{ID: "1-1", Name: "Clarity & Readability", Weight: 20},
		{ID: "1-2", Name: "Logical Flow", Weight: 25},
		{ID: "1-3", Name: "Completeness", Weight: 20},
		{ID: "1-4", Name: "Syntax & Standards", Weight: 12},
		{ID: "1-5", Name: "Efficiency & Optimization", Weight: 20},
	}
	_, err := svc.Update(ctx, "1", dto.RubricUpdateRequest{Criteria: criteria})
	require.NoError(t, err)

	rubric, err := svc.GetActiveByType(ctx, models.RubricTypeFlowchart)
	require.NoError(t, err)
	require.NotNil(t, rubric)
	require.InDelta(t, 97, rubric.TotalWeight(), 0.001)
	require.NotEmpty(t, rubric.WeightWarning())
	require.Equal(t, "1-4", rubric.Criteria[3].ID)
}

func TestRubricServiceUpdateBumpsLastModified(t *testing.T) {
	svc := newRubricService(t)
	ctx := context.Background()

	before, err := svc.Get(ctx, "3")
	require.NoError(t, err)

	name := "Pseudocode v2"
	updated, err := svc.Update(ctx, "3", dto.RubricUpdateRequest{Name: &name})
	require.NoError(t, err)
	require.Equal(t, name, updated.Name)
	require.True(t, updated.LastModified.After(before.LastModified))
	require.Len(t, updated.Criteria, 5)
	require.True(t, updated.CreatedAt.Equal(before.CreatedAt))
}

func TestRubricServiceCreateAndCriterionLifecycle(t *testing.T) {
	svc := newRubricService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, dto.RubricCreateRequest{
		Name:     "Sorting Lab",
		Type:     models.RubricTypeCustom,
		Status:   models.RubricStatusActive,
		Criteria: []dto.CriterionRequest{{ID: "1-1", Name: "Correctness", Weight: 60}},
	})
	require.NoError(t, err)
	require.NotEqual(t, "1-1", created.Criteria[0].ID, "foreign criterion ids are not reused")

	withCriterion, err := svc.AddCriterion(ctx, created.ID, dto.CriterionRequest{Name: "Style", Weight: 40})
	require.NoError(t, err)
	require.Len(t, withCriterion.Criteria, 2)
	require.Empty(t, withCriterion.WeightWarning())

	styleID := withCriterion.Criteria[1].ID
	edited, err := svc.UpdateCriterion(ctx, created.ID, styleID, dto.CriterionRequest{Name: "Readability", Weight: 35})
	require.NoError(t, err)
	require.Equal(t, "Readability", edited.Criteria[1].Name)

	_, err = svc.UpdateCriterion(ctx, created.ID, "nope", dto.CriterionRequest{Name: "x", Weight: 1})
	require.ErrorIs(t, err, ErrCriterionNotFound)

	trimmed, err := svc.DeleteCriterion(ctx, created.ID, styleID)
	require.NoError(t, err)
	require.Len(t, trimmed.Criteria, 1)

	resolved, ok := svc.ResolveForType(ctx, models.RubricTypeCustom)
	require.True(t, ok)
	require.Equal(t, created.ID, resolved.ID)

	require.NoError(t, svc.Delete(ctx, created.ID))
	require.ErrorIs(t, svc.Delete(ctx, created.ID), ErrRubricNotFound)

	_, ok = svc.ResolveForType(ctx, models.RubricTypeCustom)
	require.False(t, ok)
}

func TestRubricServiceRejectsInvalidPayload(t *testing.T) {
	svc := newRubricService(t)

	_, err := svc.Create(context.Background(), dto.RubricCreateRequest{Name: "x", Type: "essay"})
	var validationErrors validator.ValidationErrors
	require.True(t, errors.As(err, &validationErrors))
}

type failingRubricRepo struct{}

var errDiskGone = errors.New("disk gone")

func (failingRubricRepo) List(context.Context) ([]models.Rubric, error) { return nil, errDiskGone }
func (failingRubricRepo) GetByID(context.Context, string) (models.Rubric, error) {
	return models.Rubric{}, errDiskGone
}
func (failingRubricRepo) FindActiveByType(context.Context, string) (models.Rubric, error) {
	return models.Rubric{}, errDiskGone
}
func (failingRubricRepo) Count(context.Context) (int64, error)               { return 0, errDiskGone }
func (failingRubricRepo) Create(context.Context, *models.Rubric) error       { return errDiskGone }
func (failingRubricRepo) CreateBatch(context.Context, []models.Rubric) error { return errDiskGone }
func (failingRubricRepo) Save(context.Context, *models.Rubric) error         { return errDiskGone }
func (failingRubricRepo) Delete(context.Context, string) error               { return errDiskGone }

func TestRubricServiceFallsBackToDefaultsWhenStorageFails(t *testing.T) {
	svc := NewRubricService(failingRubricRepo{}, newValidator(), zerolog.Nop())
	ctx := context.Background()

	rubrics, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, rubrics, 3)

	rubric, err := svc.GetActiveByType(ctx, models.RubricTypePseudocode)
	require.NoError(t, err)
	require.Equal(t, "3", rubric.ID)

	byID, err := svc.Get(ctx, "2")
	require.NoError(t, err)
	require.Equal(t, models.RubricTypeAlgorithm, byID.Type)

	_, err = svc.Create(ctx, dto.RubricCreateRequest{Name: "x", Type: models.RubricTypeCustom})
	require.ErrorIs(t, err, ErrStorageUnavailable)

	require.ErrorIs(t, svc.Seed(ctx), ErrStorageUnavailable)
}

func TestRubricServiceCreateDefaultsToDraft(t *testing.T) {
	svc := newRubricService(t)
	svc.(*rubricService).now = func() time.Time { return time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC) }

	created, err := svc.Create(context.Background(), dto.RubricCreateRequest{Name: "Draft", Type: models.RubricTypeFlowchart})
	require.NoError(t, err)
	require.Equal(t, models.RubricStatusDraft, created.Status)
	require.Equal(t, created.CreatedAt, created.LastModified)

	active, err := svc.GetActiveByType(context.Background(), models.RubricTypeFlowchart)
	require.NoError(t, err)
	require.Equal(t, "1", active.ID)
}
