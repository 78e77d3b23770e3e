package dto

import "github.com/noah-isme/rubiai-api/internal/models"

// SubmissionRequest carries the form fields accompanying an uploaded file.
type SubmissionRequest struct {
	RubricType string `json:"rubric_type" validate:"required,oneof=flowchart algorithm pseudocode custom"`
	UseAI      bool   `json:"use_ai"`
	Model      string `json:"model" validate:"omitempty,max=128"`
}

// SubmissionResponse reports an accepted submission. The upload is still processing.
type SubmissionResponse struct {
	Upload   models.UploadedFile `json:"upload"`
	Strategy string              `json:"strategy"`
}

// ReEvaluateRequest optionally overrides the strategy choice for a re-evaluation.
type ReEvaluateRequest struct {
	UseAI *bool  `json:"useAi"`
	Model string `json:"model" validate:"omitempty,max=128"`
}

// SetCurrentEvaluationRequest moves the current pointer. An empty id clears it.
type SetCurrentEvaluationRequest struct {
	EvaluationID string `json:"evaluationId" validate:"omitempty,max=64"`
}

// SessionSummary describes the session history sizes and dashboard statistics.
type SessionSummary struct {
	Evaluations          int    `json:"evaluations"`
	Uploads              int    `json:"uploads"`
	CurrentEvaluation    string `json:"currentEvaluationId,omitempty"`
	TotalEvaluations     int    `json:"totalEvaluations"`
	AverageScore         int    `json:"averageScore"`
	PendingUploads       int    `json:"pendingUploads"`
	CompletedEvaluations int    `json:"completedEvaluations"`
}
