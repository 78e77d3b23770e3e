package service

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/rubiai-api/internal/models"
	"github.com/noah-isme/rubiai-api/pkg/extract"
)

// Strategy names.
const (
	StrategyReal = "real"
	StrategyMock = "mock"
)

// evaluationJob is the work handed to a strategy.
type evaluationJob struct {
	File       extract.File
	RubricType string
	Model      string
}

// EvaluationStrategy produces an evaluation for a job. One is selected per submission.
type EvaluationStrategy interface {
	Name() string
	Evaluate(ctx context.Context, job evaluationJob) (models.EvaluationResult, error)
}

type realEvaluation struct {
	client *EvaluationClient
}

func (r realEvaluation) Name() string { return StrategyReal }

func (r realEvaluation) Evaluate(ctx context.Context, job evaluationJob) (models.EvaluationResult, error) {
	return r.client.Evaluate(ctx, EvaluationInput{
		File:       job.File,
		RubricType: job.RubricType,
		Model:      job.Model,
	})
}

var mockPercentages = []float64{90, 88, 85, 93, 80}

var mockFeedback = []string{
	"Excellent use of clear symbols and consistent labeling. Flow direction is intuitive and easy to follow.",
	"Strong logical progression with proper use of decision points. Minor improvement needed in loop termination conditions.",
	"Most essential elements are present. Consider adding error handling paths for edge cases.",
	"Adheres to standard conventions. Excellent use of appropriate notation.",
	"Good structure but could be optimized by reducing redundant decision points.",
}

const mockSummary = "This is a mock evaluation. Configure an OpenRouter API key in settings for real AI analysis."

// mockEvaluation synthesises a fixed-shape result without any network call.
type mockEvaluation struct {
	rubrics RubricResolver
	delay   time.Duration
	now     func() time.Time
}

func (m mockEvaluation) Name() string { return StrategyMock }

func (m mockEvaluation) Evaluate(ctx context.Context, job evaluationJob) (models.EvaluationResult, error) {
	if m.delay > 0 {
		timer := time.NewTimer(m.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return models.EvaluationResult{}, ctx.Err()
		case <-timer.C:
		}
	}

	rubric, ok := m.rubrics.ResolveForType(ctx, job.RubricType)
	if !ok || len(rubric.Criteria) == 0 || rubric.TotalWeight() <= 0 {
		rubric, _ = models.DefaultRubricForType(models.RubricTypeFlowchart)
	}

	now := time.Now
	if m.now != nil {
		now = m.now
	}
	return mockResult(rubric, job, now().UTC()), nil
}

func mockResult(rubric models.Rubric, job evaluationJob, timestamp time.Time) models.EvaluationResult {
	scores := make([]models.CriterionScore, 0, len(rubric.Criteria))
	var points, total float64
	for i, criterion := range rubric.Criteria {
		pct := mockPercentages[i%len(mockPercentages)]
		score := math.Round(criterion.Weight * pct / 100)
		points += score
		total += criterion.Weight
		scores = append(scores, models.CriterionScore{
			Criterion: criterion.Name,
			Weight:    criterion.Weight,
			Score:     score,
			MaxScore:  criterion.Weight,
			Status:    models.StatusForPercentage(pct),
			Feedback:  mockFeedback[i%len(mockFeedback)],
		})
	}

	result := models.EvaluationResult{
		ID:         uuid.NewString(),
		Filename:   job.File.Name,
		FileType:   job.File.ContentType,
		RubricType: job.RubricType,
		Timestamp:  timestamp,
		OverallScore: models.OverallScore{
			Points: points,
			Total:  total,
		},
		CriteriaScores: scores,
		AIInsights: models.AIInsights{
			Strengths: []string{
				"Excellent adherence to standard conventions and symbols",
				"Clear logical flow with well-defined decision points",
				"Strong readability with consistent labeling and formatting",
			},
			Improvements: []string{
				"Consider adding error handling for edge cases and invalid inputs",
				"Optimize by reducing redundant decision points in the main loop",
				"Add more descriptive comments for complex logic sections",
			},
			Summary: mockSummary,
		},
	}
	result.Normalize()
	return result
}
