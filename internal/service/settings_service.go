package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/rubiai-api/internal/dto"
	"github.com/noah-isme/rubiai-api/internal/observability"
	"github.com/noah-isme/rubiai-api/internal/repository"
	"github.com/noah-isme/rubiai-api/pkg/ai"
)

const (
	settingKeyCredential = "openrouter_api_key"
	settingKeyModel      = "openrouter_model"

	credentialPlaceholder = "your_openrouter_api_key_here"
)

// Sources reported for resolved credentials and models.
const (
	SourceExplicit    = "explicit"
	SourceStored      = "stored"
	SourceEnvironment = "environment"
	SourceDefault     = "default"
	SourceNone        = "none"
)

// SettingsDefaults carries the environment-provided credential and model.
type SettingsDefaults struct {
	APIKey string
	Model  string
}

// SettingsService stores the user's credential and model choice and resolves the effective values.
type SettingsService interface {
	ResolveCredential(ctx context.Context, explicit string) (string, string, error)
	ResolveModel(ctx context.Context, explicit string) (string, string)
	Get(ctx context.Context) (dto.SettingsResponse, error)
	Update(ctx context.Context, payload dto.SettingsUpdateRequest) (dto.SettingsResponse, error)
	ClearCredential(ctx context.Context) error
}

type settingsService struct {
	repo      repository.SettingRepository
	validator *validator.Validate
	defaults  SettingsDefaults
	logger    zerolog.Logger
}

// NewSettingsService constructs the settings store.
func NewSettingsService(repo repository.SettingRepository, validator *validator.Validate, defaults SettingsDefaults, logger zerolog.Logger) SettingsService {
	defaults.APIKey = usableCredential(defaults.APIKey)
	defaults.Model = strings.TrimSpace(defaults.Model)

	return &settingsService{
		repo:      repo,
		validator: validator,
		defaults:  defaults,
		logger:    logger.With().Str("component", "settings_service").Logger(),
	}
}

// ResolveCredential applies explicit > stored > environment and returns the value with its source.
func (s *settingsService) ResolveCredential(ctx context.Context, explicit string) (string, string, error) {
	if key := usableCredential(explicit); key != "" {
		return key, SourceExplicit, nil
	}
	if key := usableCredential(s.stored(ctx, settingKeyCredential)); key != "" {
		return key, SourceStored, nil
	}
	if s.defaults.APIKey != "" {
		return s.defaults.APIKey, SourceEnvironment, nil
	}
	return "", SourceNone, ErrMissingCredential
}

// ResolveModel applies explicit > stored > environment > built-in baseline.
func (s *settingsService) ResolveModel(ctx context.Context, explicit string) (string, string) {
	if model := strings.TrimSpace(explicit); model != "" {
		return model, SourceExplicit
	}
	if model := strings.TrimSpace(s.stored(ctx, settingKeyModel)); model != "" {
		return model, SourceStored
	}
	if s.defaults.Model != "" {
		return s.defaults.Model, SourceEnvironment
	}
	return ai.DefaultModel, SourceDefault
}

func (s *settingsService) Get(ctx context.Context) (dto.SettingsResponse, error) {
	response := dto.SettingsResponse{}

	key, source, err := s.ResolveCredential(ctx, "")
	response.CredentialSource = source
	if err == nil {
		response.CredentialConfigured = true
		response.MaskedCredential = maskCredential(key)
	}

	response.Model, response.ModelSource = s.ResolveModel(ctx, "")
	return response, nil
}

func (s *settingsService) Update(ctx context.Context, payload dto.SettingsUpdateRequest) (dto.SettingsResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SettingsResponse{}, err
	}

	if payload.APIKey != nil {
		if err := s.write(ctx, settingKeyCredential, strings.TrimSpace(*payload.APIKey)); err != nil {
			return dto.SettingsResponse{}, err
		}
		s.logger.Info().Msg("stored API credential updated")
	}
	if payload.Model != nil {
		if err := s.write(ctx, settingKeyModel, strings.TrimSpace(*payload.Model)); err != nil {
			return dto.SettingsResponse{}, err
		}
		s.logger.Info().Str("model", strings.TrimSpace(*payload.Model)).Msg("stored model updated")
	}

	return s.Get(ctx)
}

func (s *settingsService) ClearCredential(ctx context.Context) error {
	if err := s.repo.Delete(ctx, settingKeyCredential); err != nil {
		observability.StorageFailures().WithLabelValues("settings", "delete").Inc()
		s.logger.Error().Err(err).Msg("failed to clear stored credential")
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	s.logger.Info().Msg("stored API credential cleared")
	return nil
}

// stored reads a setting, treating read failures as unset so resolution falls through.
func (s *settingsService) stored(ctx context.Context, key string) string {
	value, err := s.repo.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			observability.StorageFailures().WithLabelValues("settings", "get").Inc()
			s.logger.Warn().Err(err).Str("key", key).Msg("settings read failed, falling back")
		}
		return ""
	}
	return value
}

func (s *settingsService) write(ctx context.Context, key, value string) error {
	if err := s.repo.Set(ctx, key, value); err != nil {
		observability.StorageFailures().WithLabelValues("settings", "set").Inc()
		s.logger.Error().Err(err).Str("key", key).Msg("settings write failed")
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func usableCredential(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == credentialPlaceholder {
		return ""
	}
	return trimmed
}

func maskCredential(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
