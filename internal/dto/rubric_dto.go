package dto

import (
	"time"

	"github.com/noah-isme/rubiai-api/internal/models"
)

// CriterionRequest describes one weighted criterion in a rubric payload.
type CriterionRequest struct {
	ID          string  `json:"id" validate:"omitempty,max=64"`
	Name        string  `json:"name" validate:"required,max=255"`
	Weight      float64 `json:"weight" validate:"gte=0,lte=100"`
	Description string  `json:"description" validate:"max=2000"`
}

// RubricCreateRequest captures the payload for creating a rubric.
type RubricCreateRequest struct {
	Name        string             `json:"name" validate:"required,max=255"`
	Description string             `json:"description" validate:"max=2000"`
	Type        string             `json:"type" validate:"required,oneof=flowchart algorithm pseudocode custom"`
	Status      string             `json:"status" validate:"omitempty,oneof=active draft"`
	Criteria    []CriterionRequest `json:"criteria" validate:"dive"`
}

// RubricUpdateRequest captures a partial rubric update. A non-nil Criteria replaces the whole list.
type RubricUpdateRequest struct {
	Name        *string            `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string            `json:"description" validate:"omitempty,max=2000"`
	Type        *string            `json:"type" validate:"omitempty,oneof=flowchart algorithm pseudocode custom"`
	Status      *string            `json:"status" validate:"omitempty,oneof=active draft"`
	Criteria    []CriterionRequest `json:"criteria" validate:"omitempty,dive"`
}

// CriterionResponse is the API view of a criterion.
type CriterionResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description"`
}

// RubricResponse is the API view of a rubric with its advisory weight check.
type RubricResponse struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Description   string              `json:"description"`
	Type          string              `json:"type"`
	Status        string              `json:"status"`
	Criteria      []CriterionResponse `json:"criteria"`
	TotalWeight   float64             `json:"totalWeight"`
	WeightWarning string              `json:"weightWarning,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
	LastModified  time.Time           `json:"lastModified"`
}

// NewRubricResponse maps a rubric model onto its API representation.
func NewRubricResponse(rubric models.Rubric) RubricResponse {
	criteria := make([]CriterionResponse, 0, len(rubric.Criteria))
	for _, criterion := range rubric.Criteria {
		criteria = append(criteria, CriterionResponse{
			ID:          criterion.ID,
			Name:        criterion.Name,
			Weight:      criterion.Weight,
			Description: criterion.Description,
		})
	}

	return RubricResponse{
		ID:            rubric.ID,
		Name:          rubric.Name,
		Description:   rubric.Description,
		Type:          rubric.Type,
		Status:        rubric.Status,
		Criteria:      criteria,
		TotalWeight:   rubric.TotalWeight(),
		WeightWarning: rubric.WeightWarning(),
		CreatedAt:     rubric.CreatedAt,
		LastModified:  rubric.LastModified,
	}
}

// NewRubricResponses maps a list of rubric models.
func NewRubricResponses(rubrics []models.Rubric) []RubricResponse {
	responses := make([]RubricResponse, 0, len(rubrics))
	for _, rubric := range rubrics {
		responses = append(responses, NewRubricResponse(rubric))
	}
	return responses
}
