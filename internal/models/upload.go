package models

import (
	"fmt"
	"time"
)

// Upload statuses. Completed and failed are terminal.
const (
	UploadStatusUploaded   = "uploaded"
	UploadStatusProcessing = "processing"
	UploadStatusCompleted  = "completed"
	UploadStatusFailed     = "failed"
)

// UploadedFile tracks one submitted file through evaluation.
// Content stays in memory only; persisted snapshots carry metadata.
type UploadedFile struct {
	ID            string    `json:"id"`
	FileName      string    `json:"fileName"`
	FileSize      int64     `json:"fileSize"`
	FileType      string    `json:"fileType"`
	RubricType    string    `json:"rubricType"`
	UploadTime    time.Time `json:"uploadTime"`
	Status        string    `json:"status"`
	EvaluationID  string    `json:"evaluationId,omitempty"`
	FailureReason string    `json:"failureReason,omitempty"`
	Content       []byte    `json:"-"`
}

// IsTerminal reports whether the upload reached completed or failed.
func (u UploadedFile) IsTerminal() bool {
	return u.Status == UploadStatusCompleted || u.Status == UploadStatusFailed
}

// HasContent reports whether the original bytes are still resident.
func (u UploadedFile) HasContent() bool {
	return len(u.Content) > 0
}

// CanTransition reports whether an upload may move from one status to another.
func CanTransition(from, to string) bool {
	switch from {
	case UploadStatusUploaded:
		return to == UploadStatusProcessing
	case UploadStatusProcessing:
		return to == UploadStatusCompleted || to == UploadStatusFailed
	default:
		return false
	}
}

// TransitionError reports a rejected status change.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid upload status transition %s -> %s", e.From, e.To)
}

// Transition moves the upload to status when the state machine allows it.
func (u *UploadedFile) Transition(status string) error {
	if !CanTransition(u.Status, status) {
		return &TransitionError{From: u.Status, To: status}
	}
	u.Status = status
	return nil
}
