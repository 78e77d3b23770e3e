package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rubiai-api/internal/dto"
	"github.com/noah-isme/rubiai-api/internal/models"
	"github.com/noah-isme/rubiai-api/pkg/ai"
	"github.com/noah-isme/rubiai-api/pkg/extract"
)

func waitFor(t *testing.T, submission *Submission) (models.EvaluationResult, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := submission.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "submission did not finish in time")
	return result, err
}

func boolPtr(value bool) *bool { return &value }

func TestEvaluationServiceMockSubmission(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()

	submission, err := h.service.Submit(ctx, textFile("flow.txt", "START -> END"), dto.SubmissionRequest{
		RubricType: models.RubricTypeFlowchart,
		UseAI:      true,
	})
	require.NoError(t, err)
	require.Equal(t, StrategyMock, submission.Strategy)
	require.Equal(t, models.UploadStatusProcessing, submission.Upload.Status)
	require.Nil(t, submission.Upload.Content)

	result, err := waitFor(t, submission)
	require.NoError(t, err)

	require.Equal(t, float64(87), result.OverallScore.Points)
	require.Equal(t, float64(100), result.OverallScore.Total)
	require.Equal(t, float64(87), result.OverallScore.Percentage)
	require.Equal(t, "A-", result.OverallScore.Grade)
	require.Len(t, result.CriteriaScores, 5)
	require.Equal(t, models.ScoreStatusExcellent, result.CriteriaScores[0].Status)
	require.Equal(t, mockSummary, result.AIInsights.Summary)
	require.Equal(t, "flow.txt", result.Filename)

	current := h.sessions.CurrentEvaluation()
	require.NotNil(t, current)
	require.Equal(t, result.ID, current.ID)
	require.Equal(t, result, h.sessions.EvaluationResults()[0])

	upload, ok := h.sessions.GetUpload(submission.Upload.ID)
	require.True(t, ok)
	require.Equal(t, models.UploadStatusCompleted, upload.Status)
	require.Equal(t, result.ID, upload.EvaluationID)

	events := h.notifier.all()
	require.Len(t, events, 1)
	require.Equal(t, EventEvaluationCompleted, events[0].Type)
	require.Equal(t, result.ID, events[0].EvaluationID)
	require.Equal(t, StrategyMock, events[0].Strategy)
}

func TestEvaluationServiceRejectsUnsupportedFileOnMockPath(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	var archive bytes.Buffer
	writer := zip.NewWriter(&archive)
	entry, err := writer.Create("notes.txt")
	require.NoError(t, err)
	_, err = entry.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	submission, err := h.service.Submit(context.Background(), extract.File{
		Name:        "bundle.zip",
		ContentType: "application/zip",
		Data:        archive.Bytes(),
	}, dto.SubmissionRequest{RubricType: models.RubricTypeAlgorithm})
	require.NoError(t, err)
	require.Equal(t, StrategyMock, submission.Strategy)

	_, err = waitFor(t, submission)
	require.ErrorIs(t, err, extract.ErrUnsupportedFileType)

	upload, ok := h.sessions.GetUpload(submission.Upload.ID)
	require.True(t, ok)
	require.Equal(t, models.UploadStatusFailed, upload.Status)
	require.Contains(t, upload.FailureReason, "application/zip")
	require.Empty(t, h.sessions.EvaluationResults())

	events := h.notifier.all()
	require.Len(t, events, 1)
	require.Equal(t, EventEvaluationFailed, events[0].Type)
}

func TestEvaluationServiceRemoteFailureLeavesNoResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"User not found.","code":401}}`))
	}))
	defer server.Close()

	h := newHarness(t, harnessOptions{
		factory: func(apiKey string) (ai.Completer, error) {
			return ai.NewClient(ai.Config{APIKey: apiKey, BaseURL: server.URL, Logger: zerolog.Nop()})
		},
	})
	ctx := context.Background()

	stored := "sk-or-v1-revoked"
	_, err := h.settings.Update(ctx, dto.SettingsUpdateRequest{APIKey: &stored})
	require.NoError(t, err)

	submission, err := h.service.Submit(ctx, textFile("algo.txt", "sort(xs)"), dto.SubmissionRequest{
		RubricType: models.RubricTypeAlgorithm,
		UseAI:      true,
	})
	require.NoError(t, err)
	require.Equal(t, StrategyReal, submission.Strategy)

	_, err = waitFor(t, submission)
	var remoteErr *ai.RemoteError
	require.True(t, errors.As(err, &remoteErr))
	require.Equal(t, http.StatusUnauthorized, remoteErr.StatusCode)

	upload, ok := h.sessions.GetUpload(submission.Upload.ID)
	require.True(t, ok)
	require.Equal(t, models.UploadStatusFailed, upload.Status)
	require.Contains(t, upload.FailureReason, "401")
	require.Empty(t, h.sessions.EvaluationResults())
	require.Nil(t, h.sessions.CurrentEvaluation())
}

func TestEvaluationServiceRealSubmissionUsesCompleter(t *testing.T) {
	completer := &stubCompleter{content: stubEvaluationReply}
	h := newHarness(t, harnessOptions{
		defaults: SettingsDefaults{APIKey: "sk-env-000000"},
		factory:  func(string) (ai.Completer, error) { return completer, nil },
	})

	submission, err := h.service.Submit(context.Background(), textFile("steps.txt", "READ n"), dto.SubmissionRequest{
		RubricType: models.RubricTypePseudocode,
		UseAI:      true,
		Model:      "openai/gpt-4o-mini",
	})
	require.NoError(t, err)
	require.Equal(t, StrategyReal, submission.Strategy)

	result, err := waitFor(t, submission)
	require.NoError(t, err)
	require.Equal(t, "B+", result.OverallScore.Grade)
	require.Equal(t, "openai/gpt-4o-mini", completer.calls()[0].Model)

	optedOut, err := h.service.Submit(context.Background(), textFile("steps.txt", "READ n"), dto.SubmissionRequest{
		RubricType: models.RubricTypePseudocode,
	})
	require.NoError(t, err)
	require.Equal(t, StrategyMock, optedOut.Strategy)
	_, err = waitFor(t, optedOut)
	require.NoError(t, err)
	require.Len(t, completer.calls(), 1)
}

func TestEvaluationServiceReEvaluateKeepsOriginal(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()

	first, err := h.service.Submit(ctx, textFile("flow.txt", "START"), dto.SubmissionRequest{RubricType: models.RubricTypeFlowchart})
	require.NoError(t, err)
	original, err := waitFor(t, first)
	require.NoError(t, err)

	again, err := h.service.ReEvaluate(ctx, original.ID, dto.ReEvaluateRequest{UseAI: boolPtr(false)})
	require.NoError(t, err)
	require.NotEqual(t, first.Upload.ID, again.Upload.ID)
	require.Equal(t, "flow.txt", again.Upload.FileName)
	require.Equal(t, models.RubricTypeFlowchart, again.Upload.RubricType)

	redone, err := waitFor(t, again)
	require.NoError(t, err)
	require.NotEqual(t, original.ID, redone.ID)

	results := h.sessions.EvaluationResults()
	require.Len(t, results, 2)
	require.Equal(t, redone.ID, results[0].ID)

	stored, ok := h.sessions.GetEvaluation(original.ID)
	require.True(t, ok)
	require.Equal(t, original, stored)
	require.Equal(t, redone.ID, h.sessions.CurrentEvaluation().ID)
}

func TestEvaluationServiceReEvaluateMissingOriginal(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()

	_, err := h.service.ReEvaluate(ctx, "unknown", dto.ReEvaluateRequest{})
	require.ErrorIs(t, err, ErrOriginalFileMissing)

	submission, err := h.service.Submit(ctx, textFile("flow.txt", "START"), dto.SubmissionRequest{RubricType: models.RubricTypeFlowchart})
	require.NoError(t, err)
	result, err := waitFor(t, submission)
	require.NoError(t, err)

	for i := 0; i < MaxUploadedFiles; i++ {
		h.sessions.AddUploadedFile(ctx, processingUpload(fmt.Sprintf("filler-%d", i)))
	}

	_, err = h.service.ReEvaluate(ctx, result.ID, dto.ReEvaluateRequest{})
	require.ErrorIs(t, err, ErrOriginalFileMissing)

	_, ok := h.sessions.GetEvaluation(result.ID)
	require.True(t, ok, "the evaluation outlives its upload")
}

func TestEvaluationServiceGuardsConcurrentReEvaluation(t *testing.T) {
	h := newHarness(t, harnessOptions{opts: EvaluationOptions{MockDelay: 300 * time.Millisecond, Timeout: 5 * time.Second}})
	ctx := context.Background()

	first, err := h.service.Submit(ctx, textFile("flow.txt", "START"), dto.SubmissionRequest{RubricType: models.RubricTypeFlowchart})
	require.NoError(t, err)
	original, err := waitFor(t, first)
	require.NoError(t, err)

	running, err := h.service.ReEvaluate(ctx, original.ID, dto.ReEvaluateRequest{})
	require.NoError(t, err)

	_, err = h.service.ReEvaluate(ctx, original.ID, dto.ReEvaluateRequest{})
	require.ErrorIs(t, err, ErrSubmissionInProgress)

	_, err = waitFor(t, running)
	require.NoError(t, err)

	next, err := h.service.ReEvaluate(ctx, original.ID, dto.ReEvaluateRequest{})
	require.NoError(t, err)
	_, err = waitFor(t, next)
	require.NoError(t, err)
}

func TestEvaluationServiceTimesOut(t *testing.T) {
	h := newHarness(t, harnessOptions{opts: EvaluationOptions{MockDelay: time.Hour, Timeout: 100 * time.Millisecond}})

	submission, err := h.service.Submit(context.Background(), textFile("flow.txt", "START"), dto.SubmissionRequest{RubricType: models.RubricTypeFlowchart})
	require.NoError(t, err)

	_, err = waitFor(t, submission)
	require.Error(t, err)
	require.Contains(t, err.Error(), "evaluation timed out after 100ms")

	upload, ok := h.sessions.GetUpload(submission.Upload.ID)
	require.True(t, ok)
	require.Equal(t, models.UploadStatusFailed, upload.Status)
}

func TestEvaluationServiceValidatesPayload(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	_, err := h.service.Submit(context.Background(), textFile("a.txt", "x"), dto.SubmissionRequest{RubricType: "essay"})
	var validationErrors validator.ValidationErrors
	require.True(t, errors.As(err, &validationErrors))
	require.Empty(t, h.sessions.UploadedFiles())
}
