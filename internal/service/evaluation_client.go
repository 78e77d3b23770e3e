package service

import (
	"context"
	"errors"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/noah-isme/rubiai-api/internal/models"
	"github.com/noah-isme/rubiai-api/pkg/ai"
	"github.com/noah-isme/rubiai-api/pkg/extract"
)

// CompleterFactory builds a model client bound to one credential.
type CompleterFactory func(apiKey string) (ai.Completer, error)

// EvaluationInput is one file to grade against a rubric type.
type EvaluationInput struct {
	File       extract.File
	RubricType string
	Model      string
	APIKey     string
}

// modelEvaluation holds the scoring fields of a model reply. Anything else the model echoes is ignored.
type modelEvaluation struct {
	OverallScore   models.OverallScore     `json:"overallScore"`
	CriteriaScores []models.CriterionScore `json:"criteriaScores"`
	AIInsights     models.AIInsights       `json:"aiInsights"`
}

// EvaluationClient grades files through the remote model and returns canonical evaluation records.
type EvaluationClient struct {
	settings     SettingsService
	extractor    *extract.Extractor
	prompts      *PromptBuilder
	newCompleter CompleterFactory
	sanitizer    *bluemonday.Policy
	logger       zerolog.Logger
	now          func() time.Time
}

// NewEvaluationClient wires the evaluation client.
func NewEvaluationClient(settings SettingsService, extractor *extract.Extractor, prompts *PromptBuilder, factory CompleterFactory, logger zerolog.Logger) *EvaluationClient {
	return &EvaluationClient{
		settings:     settings,
		extractor:    extractor,
		prompts:      prompts,
		newCompleter: factory,
		sanitizer:    bluemonday.StrictPolicy(),
		logger:       logger.With().Str("component", "evaluation_client").Logger(),
		now:          time.Now,
	}
}

// HasCredential reports whether a credential resolves for the explicit override.
func (c *EvaluationClient) HasCredential(ctx context.Context, explicit string) bool {
	_, _, err := c.settings.ResolveCredential(ctx, explicit)
	return err == nil
}

// Evaluate extracts, prompts, calls the model and returns a normalised, freshly stamped result.
func (c *EvaluationClient) Evaluate(ctx context.Context, input EvaluationInput) (models.EvaluationResult, error) {
	apiKey, source, err := c.settings.ResolveCredential(ctx, input.APIKey)
	if err != nil {
		return models.EvaluationResult{}, err
	}
	model, _ := c.settings.ResolveModel(ctx, input.Model)

	content, err := c.extractor.Extract(ctx, input.File)
	if err != nil {
		return models.EvaluationResult{}, err
	}

	prompt, rubric, err := c.prompts.Build(ctx, input.RubricType, content)
	if err != nil {
		return models.EvaluationResult{}, err
	}

	completer, err := c.newCompleter(apiKey)
	if err != nil {
		if errors.Is(err, ai.ErrMissingAPIKey) {
			return models.EvaluationResult{}, ErrMissingCredential
		}
		return models.EvaluationResult{}, err
	}

	completion, err := completer.Complete(ctx, ai.Request{
		Model:     model,
		Prompt:    prompt,
		ImageData: content.ImageData,
	})
	if err != nil {
		c.logger.Warn().Err(err).
			Str("model", model).
			Str("rubric_type", input.RubricType).
			Str("credential_source", source).
			Msg("remote evaluation failed")
		return models.EvaluationResult{}, err
	}

	var reply modelEvaluation
	if err := ai.DecodeEvaluation(completion.Content, &reply); err != nil {
		c.logger.Warn().Err(err).Str("model", completion.Model).Msg("model reply rejected")
		return models.EvaluationResult{}, err
	}

	result := models.EvaluationResult{
		OverallScore:   reply.OverallScore,
		CriteriaScores: reply.CriteriaScores,
		AIInsights:     reply.AIInsights,
	}

	c.sanitize(&result)
	result.Normalize()

	result.ID = uuid.NewString()
	result.Filename = input.File.Name
	result.FileType = input.File.ContentType
	result.RubricType = input.RubricType
	result.Timestamp = c.now().UTC()

	c.logger.Info().
		Str("evaluation_id", result.ID).
		Str("model", completion.Model).
		Str("rubric_id", rubric.ID).
		Int("prompt_tokens", completion.PromptTokens).
		Int("completion_tokens", completion.CompletionTokens).
		Float64("percentage", result.OverallScore.Percentage).
		Msg("evaluation completed")

	return result, nil
}

// ListAvailableModels lists the endpoint's models for diagnostics.
// Listing failures are logged and yield an empty list; only a missing credential is an error.
func (c *EvaluationClient) ListAvailableModels(ctx context.Context) ([]ai.ModelDescriptor, error) {
	apiKey, _, err := c.settings.ResolveCredential(ctx, "")
	if err != nil {
		return []ai.ModelDescriptor{}, err
	}

	completer, err := c.newCompleter(apiKey)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to build model client")
		return []ai.ModelDescriptor{}, nil
	}

	descriptors, err := completer.ListModels(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to fetch models")
		return []ai.ModelDescriptor{}, nil
	}
	if descriptors == nil {
		descriptors = []ai.ModelDescriptor{}
	}
	return descriptors, nil
}

func (c *EvaluationClient) sanitize(result *models.EvaluationResult) {
	result.OverallScore.Grade = c.clean(result.OverallScore.Grade)
	for i := range result.CriteriaScores {
		score := &result.CriteriaScores[i]
		score.Criterion = c.clean(score.Criterion)
		score.Status = strings.ToLower(c.clean(score.Status))
		score.Feedback = c.clean(score.Feedback)
	}
	result.AIInsights.Strengths = c.cleanAll(result.AIInsights.Strengths)
	result.AIInsights.Improvements = c.cleanAll(result.AIInsights.Improvements)
	result.AIInsights.Summary = c.clean(result.AIInsights.Summary)
}

const maxEntityDecodePasses = 5

// textEntities reverses the escaping the policy applies to plain text only.
// &lt; and &gt; stay encoded so no tag can be rebuilt from sanitized output.
var textEntities = strings.NewReplacer("&amp;", "&", "&#39;", "'", "&#34;", `"`, "&quot;", `"`)

// clean decodes entity-encoded markup before stripping it, so encoded tags are removed too.
func (c *EvaluationClient) clean(value string) string {
	decoded := value
	for i := 0; i < maxEntityDecodePasses; i++ {
		next := html.UnescapeString(decoded)
		if next == decoded {
			break
		}
		decoded = next
	}
	return strings.TrimSpace(textEntities.Replace(c.sanitizer.Sanitize(decoded)))
}

func (c *EvaluationClient) cleanAll(values []string) []string {
	cleaned := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := c.clean(value); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
