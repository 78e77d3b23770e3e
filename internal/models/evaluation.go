package models

import (
	"math"
	"time"
)

// Criterion score statuses reported for each rubric criterion.
const (
	ScoreStatusExcellent = "excellent"
	ScoreStatusGood      = "good"
	ScoreStatusFair      = "fair"
	ScoreStatusPoor      = "poor"
)

// OverallScore summarises the weighted total of an evaluation.
type OverallScore struct {
	Points     float64 `json:"points"`
	Total      float64 `json:"total"`
	Percentage float64 `json:"percentage"`
	Grade      string  `json:"grade"`
}

// CriterionScore is the graded outcome for one rubric criterion.
type CriterionScore struct {
	Criterion  string  `json:"criterion"`
	Weight     float64 `json:"weight"`
	Score      float64 `json:"score"`
	MaxScore   float64 `json:"maxScore"`
	Percentage float64 `json:"percentage"`
	Status     string  `json:"status"`
	Feedback   string  `json:"feedback"`
}

// AIInsights carries the narrative part of an evaluation.
type AIInsights struct {
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
	Summary      string   `json:"summary"`
}

// EvaluationResult is the canonical record of one graded submission.
// It is never mutated after it enters the session history; re-evaluation yields a new record.
type EvaluationResult struct {
	ID             string           `json:"id"`
	Filename       string           `json:"filename"`
	FileType       string           `json:"fileType"`
	RubricType     string           `json:"rubricType"`
	Timestamp      time.Time        `json:"timestamp"`
	OverallScore   OverallScore     `json:"overallScore"`
	CriteriaScores []CriterionScore `json:"criteriaScores"`
	AIInsights     AIInsights       `json:"aiInsights"`
}

// OverallPercentage returns round(points/total*100), or 0 when total is not positive.
func OverallPercentage(points, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(points / total * 100)
}

// CriterionPercentage returns score/maxScore*100 clamped to [0,100]. It is not rounded.
func CriterionPercentage(score, maxScore float64) float64 {
	if maxScore <= 0 {
		return 0
	}
	return clampPercentage(score / maxScore * 100)
}

// StatusForPercentage maps a criterion percentage onto a score status.
func StatusForPercentage(percentage float64) string {
	switch {
	case percentage >= 90:
		return ScoreStatusExcellent
	case percentage >= 85:
		return ScoreStatusGood
	case percentage >= 70:
		return ScoreStatusFair
	default:
		return ScoreStatusPoor
	}
}

// GradeForPercentage maps an overall percentage onto a letter grade.
func GradeForPercentage(percentage float64) string {
	switch {
	case percentage >= 95:
		return "A+"
	case percentage >= 90:
		return "A"
	case percentage >= 85:
		return "A-"
	case percentage >= 80:
		return "B+"
	case percentage >= 75:
		return "B"
	case percentage >= 70:
		return "B-"
	case percentage >= 65:
		return "C+"
	case percentage >= 60:
		return "C"
	case percentage >= 50:
		return "D"
	default:
		return "E"
	}
}

// IsValidScoreStatus reports whether status is one of the four criterion statuses.
func IsValidScoreStatus(status string) bool {
	switch status {
	case ScoreStatusExcellent, ScoreStatusGood, ScoreStatusFair, ScoreStatusPoor:
		return true
	default:
		return false
	}
}

// Normalize recomputes the derived score fields so the record honours its
// percentage invariants regardless of what the model reported.
func (r *EvaluationResult) Normalize() {
	for i := range r.CriteriaScores {
		score := &r.CriteriaScores[i]
		if score.MaxScore > 0 {
			score.Percentage = CriterionPercentage(score.Score, score.MaxScore)
		} else {
			score.Percentage = clampPercentage(score.Percentage)
		}
		if !IsValidScoreStatus(score.Status) {
			score.Status = StatusForPercentage(score.Percentage)
		}
	}

	overall := &r.OverallScore
	if overall.Total > 0 {
		overall.Percentage = OverallPercentage(overall.Points, overall.Total)
	} else {
		overall.Percentage = clampPercentage(math.Round(overall.Percentage))
	}
	if overall.Grade == "" {
		overall.Grade = GradeForPercentage(overall.Percentage)
	}

	if r.CriteriaScores == nil {
		r.CriteriaScores = []CriterionScore{}
	}
	if r.AIInsights.Strengths == nil {
		r.AIInsights.Strengths = []string{}
	}
	if r.AIInsights.Improvements == nil {
		r.AIInsights.Improvements = []string{}
	}
}

func clampPercentage(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}
