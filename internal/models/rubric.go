package models

import (
	"fmt"
	"math"
	"time"
)

// Rubric types accepted by the evaluation pipeline.
const (
	RubricTypeFlowchart  = "flowchart"
	RubricTypeAlgorithm  = "algorithm"
	RubricTypePseudocode = "pseudocode"
	RubricTypeCustom     = "custom"
)

// Rubric statuses. Only active rubrics take part in type lookups.
const (
	RubricStatusActive = "active"
	RubricStatusDraft  = "draft"
)

const expectedWeightTotal = 100.0

// Rubric is a named, weighted set of criteria for one submission type.
type Rubric struct {
	ID           string      `gorm:"primaryKey;size:64" json:"id"`
	Name         string      `gorm:"size:255;not null" json:"name"`
	Description  string      `gorm:"type:text" json:"description"`
	Type         string      `gorm:"size:32;not null;index" json:"type"`
	Status       string      `gorm:"size:16;not null;index" json:"status"`
	Criteria     []Criterion `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"criteria"`
	CreatedAt    time.Time   `json:"createdAt"`
	LastModified time.Time   `gorm:"column:last_modified" json:"lastModified"`
}

// Criterion is one weighted dimension of a rubric. Weight is a percentage contribution.
type Criterion struct {
	ID          string  `gorm:"primaryKey;size:64" json:"id"`
	RubricID    string  `gorm:"size:64;not null;index" json:"rubricId,omitempty"`
	Position    int     `gorm:"not null;default:0" json:"position"`
	Name        string  `gorm:"size:255;not null" json:"name"`
	Weight      float64 `gorm:"not null" json:"weight"`
	Description string  `gorm:"type:text" json:"description"`
}

// IsActive reports whether the rubric is eligible for type lookups.
func (r Rubric) IsActive() bool {
	return r.Status == RubricStatusActive
}

// TotalWeight sums the criterion weights.
func (r Rubric) TotalWeight() float64 {
	var total float64
	for _, criterion := range r.Criteria {
		total += criterion.Weight
	}
	return total
}

// WeightWarning describes a deviation of the criterion weights from 100.
// Weights are advisory so an empty string means nothing to report, never an error.
func (r Rubric) WeightWarning() string {
	total := r.TotalWeight()
	if math.Abs(total-expectedWeightTotal) < 0.01 {
		return ""
	}
	return fmt.Sprintf("criteria weights sum to %.2f, expected %.0f", total, expectedWeightTotal)
}

// IsValidRubricType reports whether value names a known rubric type.
func IsValidRubricType(value string) bool {
	switch value {
	case RubricTypeFlowchart, RubricTypeAlgorithm, RubricTypePseudocode, RubricTypeCustom:
		return true
	default:
		return false
	}
}
