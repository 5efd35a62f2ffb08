package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/roastline/api/internal/domain"
	"github.com/roastline/api/internal/repositories"
)

// ErrSettingsInvalidInput indicates the submitted shipping policy is invalid.
var ErrSettingsInvalidInput = errors.New("settings: invalid input")

// SettingsServiceDeps wires the dependencies required by the settings service.
type SettingsServiceDeps struct {
	Settings repositories.SettingsRepository
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type settingsService struct {
	settings repositories.SettingsRepository
	now      func() time.Time
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewSettingsService constructs a SettingsService validating required dependencies.
func NewSettingsService(deps SettingsServiceDeps) (SettingsService, error) {
	if deps.Settings == nil {
		return nil, errors.New("settings service: settings repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &settingsService{
		settings: deps.Settings,
		now:      nowUTC(deps.Clock),
		logger:   logger,
	}, nil
}

func (s *settingsService) ShippingSettings(ctx context.Context) (domain.ShippingSettings, error) {
	return s.settings.ShippingSettings(ctx)
}

func (s *settingsService) UpdateShippingSettings(ctx context.Context, settings domain.ShippingSettings) (domain.ShippingSettings, error) {
	if settings.DeliveryFeeMinorUnits < 0 {
		return domain.ShippingSettings{}, fmt.Errorf("%w: negative delivery fee", ErrSettingsInvalidInput)
	}
	if settings.FreeShippingThreshold < 0 {
		return domain.ShippingSettings{}, fmt.Errorf("%w: negative free shipping threshold", ErrSettingsInvalidInput)
	}

	settings.UpdatedAt = s.now()
	if err := s.settings.SaveShippingSettings(ctx, settings); err != nil {
		return domain.ShippingSettings{}, err
	}
	s.logger(ctx, "settings.shipping_updated", map[string]any{
		"delivery_fee":            settings.DeliveryFeeMinorUnits,
		"free_shipping_threshold": settings.FreeShippingThreshold,
		"free_shipping_enabled":   settings.FreeShippingEnabled,
	})
	return settings, nil
}
