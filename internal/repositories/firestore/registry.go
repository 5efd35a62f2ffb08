package firestore

import (
	"context"
	"errors"

	domain "github.com/roastline/api/internal/domain"
	pfirestore "github.com/roastline/api/internal/platform/firestore"
	"github.com/roastline/api/internal/repositories"
)

// Registry bundles the Firestore repositories over a shared provider.
type Registry struct {
	provider *pfirestore.Provider
	catalog  *CatalogRepository
	orders   *OrderRepository
	invoices *InvoiceRepository
	settings *SettingsRepository
}

// RegistryConfig carries the catalog currency and shipping defaults.
type RegistryConfig struct {
	Currency         string
	ShippingDefaults domain.ShippingSettings
}

// NewRegistry constructs all repositories over a shared provider.
func NewRegistry(provider *pfirestore.Provider, cfg RegistryConfig) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}
	catalog, err := NewCatalogRepository(provider, cfg.Currency)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	invoices, err := NewInvoiceRepository(provider)
	if err != nil {
		return nil, err
	}
	settings, err := NewSettingsRepository(provider, cfg.ShippingDefaults)
	if err != nil {
		return nil, err
	}
	return &Registry{
		provider: provider,
		catalog:  catalog,
		orders:   orders,
		invoices: invoices,
		settings: settings,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}

// Catalog returns the catalog repository.
func (r *Registry) Catalog() repositories.CatalogRepository { return r.catalog }

// Orders returns the order repository.
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

// Invoices returns the invoice repository.
func (r *Registry) Invoices() repositories.InvoiceRepository { return r.invoices }

// Settings returns the settings repository.
func (r *Registry) Settings() repositories.SettingsRepository { return r.settings }
