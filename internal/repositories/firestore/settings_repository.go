package firestore

import (
	"context"
	"errors"
	"time"

	domain "github.com/roastline/api/internal/domain"
	pfirestore "github.com/roastline/api/internal/platform/firestore"
)

const (
	settingsCollection  = "settings"
	shippingSettingsDoc = "shipping"
)

// SettingsRepository stores the runtime shipping policy in a single document.
type SettingsRepository struct {
	settings *pfirestore.BaseRepository[shippingSettingsDocument]
	defaults domain.ShippingSettings
}

// NewSettingsRepository constructs the Firestore-backed settings repository.
// The defaults are served when no settings document exists yet.
func NewSettingsRepository(provider *pfirestore.Provider, defaults domain.ShippingSettings) (*SettingsRepository, error) {
	if provider == nil {
		return nil, errors.New("settings repository requires firestore provider")
	}
	settings := pfirestore.NewBaseRepository[shippingSettingsDocument](provider, settingsCollection, nil)
	return &SettingsRepository{settings: settings, defaults: defaults}, nil
}

type shippingSettingsDocument struct {
	DeliveryFee           int64     `firestore:"deliveryFee"`
	FreeShippingThreshold int64     `firestore:"freeShippingThreshold"`
	FreeShippingEnabled   bool      `firestore:"freeShippingEnabled"`
	UpdatedAt             time.Time `firestore:"updatedAt"`
}

// ShippingSettings returns the stored policy, or the configured defaults when
// no document exists.
func (r *SettingsRepository) ShippingSettings(ctx context.Context) (domain.ShippingSettings, error) {
	doc, err := r.settings.Get(ctx, shippingSettingsDoc)
	if err != nil {
		if isNotFound(err) {
			return r.defaults, nil
		}
		return domain.ShippingSettings{}, err
	}
	return domain.ShippingSettings{
		DeliveryFeeMinorUnits: doc.Data.DeliveryFee,
		FreeShippingThreshold: doc.Data.FreeShippingThreshold,
		FreeShippingEnabled:   doc.Data.FreeShippingEnabled,
		UpdatedAt:             doc.Data.UpdatedAt,
	}, nil
}

// SaveShippingSettings replaces the stored policy.
func (r *SettingsRepository) SaveShippingSettings(ctx context.Context, settings domain.ShippingSettings) error {
	_, err := r.settings.Set(ctx, shippingSettingsDoc, shippingSettingsDocument{
		DeliveryFee:           settings.DeliveryFeeMinorUnits,
		FreeShippingThreshold: settings.FreeShippingThreshold,
		FreeShippingEnabled:   settings.FreeShippingEnabled,
		UpdatedAt:             settings.UpdatedAt.UTC(),
	})
	return err
}
