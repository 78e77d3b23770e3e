package ai

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrMissingAPIKey indicates a client was built without a credential.
	ErrMissingAPIKey = errors.New("api key is required")
	// ErrRemoteEvaluation is matched by every RemoteError.
	ErrRemoteEvaluation = errors.New("remote evaluation failed")
	// ErrMalformedResponse indicates the model reply could not be parsed into an evaluation.
	ErrMalformedResponse = errors.New("malformed evaluation response")
)

// RemoteError reports a non-success reply from the model endpoint.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	message := e.Message
	if message == "" {
		message = "unknown error"
	}
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", ErrRemoteEvaluation.Error(), message)
	}
	return fmt.Sprintf("%s: status %d: %s", ErrRemoteEvaluation.Error(), e.StatusCode, message)
}

// Is lets errors.Is match ErrRemoteEvaluation.
func (e *RemoteError) Is(target error) bool {
	return target == ErrRemoteEvaluation
}

// Request is a single evaluation prompt, optionally paired with an image data URI.
type Request struct {
	Model     string
	Prompt    string
	ImageData string
}

// Completion is the raw model reply.
type Completion struct {
	Model            string
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// ModelDescriptor describes a model offered by the endpoint.
type ModelDescriptor struct {
	ID      string `json:"id"`
	OwnedBy string `json:"ownedBy,omitempty"`
}

// Completer is a chat-completions endpoint able to grade a prompt.
type Completer interface {
	Complete(ctx context.Context, req Request) (Completion, error)
	ListModels(ctx context.Context) ([]ModelDescriptor, error)
}
