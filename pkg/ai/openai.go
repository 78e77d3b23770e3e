package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Defaults applied when Config leaves a field unset.
const (
	DefaultBaseURL     = "https://openrouter.ai/api/v1"
	DefaultModel       = "anthropic/claude-3.5-sonnet"
	DefaultMaxTokens   = 4000
	DefaultTemperature = float32(0.3)
	DefaultTimeout     = 120 * time.Second
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rubiai",
		Subsystem: "ai",
		Name:      "evaluation_duration_seconds",
		Help:      "Duration of remote evaluation requests",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 120},
	}, []string{"model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rubiai",
		Subsystem: "ai",
		Name:      "evaluation_failures_total",
		Help:      "Number of remote evaluation failures",
	}, []string{"model", "reason"})
)

// Config defines the connection to an OpenAI-compatible chat completions endpoint.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	Referer     string
	Title       string
	Logger      zerolog.Logger
}

// Client talks to the endpoint through go-openai. Build one per credential.
type Client struct {
	client *openai.Client
	cfg    Config
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewClient builds a client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	config.HTTPClient = &http.Client{
		Timeout: cfg.Timeout,
		Transport: &headerTransport{
			base:    http.DefaultTransport,
			referer: cfg.Referer,
			title:   cfg.Title,
		},
	}

	return &Client{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/rubiai-api/pkg/ai/openai"),
		logger: logger,
	}, nil
}

// Complete sends one evaluation prompt and returns the model's JSON reply.
func (c *Client) Complete(parent context.Context, req Request) (Completion, error) {
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}

	ctx, span := c.tracer.Start(parent, "openai.complete", trace.WithAttributes(
		attribute.String("model", model),
		attribute.Bool("multimodal", req.ImageData != ""),
	))
	defer span.End()

	request := openai.ChatCompletionRequest{
		Model:          model,
		MaxTokens:      c.cfg.MaxTokens,
		Temperature:    c.cfg.Temperature,
		Messages:       []openai.ChatCompletionMessage{buildMessage(req)},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, request)
	aiDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
	if err != nil {
		remoteErr := classifyError(err)
		aiFailures.WithLabelValues(model, "remote").Inc()
		span.RecordError(remoteErr)
		span.SetStatus(codes.Error, remoteErr.Error())
		return Completion{}, remoteErr
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("%w: no choices returned", ErrMalformedResponse)
		aiFailures.WithLabelValues(model, "empty").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Completion{}, err
	}

	span.SetAttributes(
		attribute.Int("usage.prompt_tokens", resp.Usage.PromptTokens),
		attribute.Int("usage.completion_tokens", resp.Usage.CompletionTokens),
	)

	return Completion{
		Model:            model,
		Content:          strings.TrimSpace(resp.Choices[0].Message.Content),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// ListModels returns the models offered by the endpoint.
func (c *Client) ListModels(ctx context.Context) ([]ModelDescriptor, error) {
	list, err := c.client.ListModels(ctx)
	if err != nil {
		return nil, classifyError(err)
	}

	models := make([]ModelDescriptor, 0, len(list.Models))
	for _, model := range list.Models {
		models = append(models, ModelDescriptor{ID: model.ID, OwnedBy: model.OwnedBy})
	}
	return models, nil
}

func buildMessage(req Request) openai.ChatCompletionMessage {
	if req.ImageData == "" {
		return openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: req.Prompt,
		}
	}

	return openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: req.Prompt},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: req.ImageData, Detail: openai.ImageURLDetailAuto}},
		},
	}
}

func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &RemoteError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		message := http.StatusText(reqErr.HTTPStatusCode)
		if reqErr.Err != nil {
			message = reqErr.Err.Error()
		}
		return &RemoteError{StatusCode: reqErr.HTTPStatusCode, Message: message}
	}

	return &RemoteError{Message: err.Error()}
}

type headerTransport struct {
	base    http.RoundTripper
	referer string
	title   string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if t.referer != "" {
		clone.Header.Set("HTTP-Referer", t.referer)
	}
	if t.title != "" {
		clone.Header.Set("X-Title", t.title)
	}
	return t.base.RoundTrip(clone)
}
