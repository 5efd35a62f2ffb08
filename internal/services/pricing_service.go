package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/roastline/api/internal/domain"
	"github.com/roastline/api/internal/repositories"
)

var (
	// ErrEmptyCart indicates the cart has no lines.
	ErrEmptyCart = errors.New("pricing: cart is empty")
	// ErrInvalidQuantity indicates a line quantity is zero or negative.
	ErrInvalidQuantity = errors.New("pricing: invalid quantity")
	// ErrProductNotFound indicates a cart item does not resolve in any catalog table.
	ErrProductNotFound = errors.New("pricing: product not found")
	// ErrPriceMismatch indicates a claimed price deviates from the catalog beyond tolerance.
	ErrPriceMismatch = errors.New("pricing: price mismatch")
	// ErrPricingUnavailable indicates the catalog or settings backend is unreachable.
	ErrPricingUnavailable = errors.New("pricing: unavailable")
)

// PriceMismatchError carries the per-line detail behind ErrPriceMismatch.
type PriceMismatchError struct {
	ItemID       string
	ClaimedPrice int64
	CatalogPrice int64
}

// Error implements the error interface.
func (e *PriceMismatchError) Error() string {
	return fmt.Sprintf("pricing: price mismatch for %s: claimed %d, catalog %d", e.ItemID, e.ClaimedPrice, e.CatalogPrice)
}

// Unwrap lets callers match against ErrPriceMismatch.
func (e *PriceMismatchError) Unwrap() error { return ErrPriceMismatch }

// PricingServiceDeps wires the dependencies required by the pricing service.
type PricingServiceDeps struct {
	Catalog  repositories.CatalogRepository
	Settings repositories.SettingsRepository
	Currency string
	// ToleranceMinorUnits is the allowed absolute deviation between the
	// client's claimed unit price and the catalog price, absorbing float
	// rounding at the API boundary.
	ToleranceMinorUnits int64
	Logger              func(ctx context.Context, event string, fields map[string]any)
}

type pricingService struct {
	catalog   repositories.CatalogRepository
	settings  repositories.SettingsRepository
	currency  string
	tolerance int64
	logger    func(ctx context.Context, event string, fields map[string]any)
}

// NewPricingService constructs a PricingService validating required dependencies.
func NewPricingService(deps PricingServiceDeps) (PricingService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("pricing service: catalog repository is required")
	}
	if deps.Settings == nil {
		return nil, errors.New("pricing service: settings repository is required")
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		return nil, errors.New("pricing service: currency is required")
	}
	tolerance := deps.ToleranceMinorUnits
	if tolerance < 0 {
		tolerance = 0
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &pricingService{
		catalog:   deps.Catalog,
		settings:  deps.Settings,
		currency:  currency,
		tolerance: tolerance,
		logger:    logger,
	}, nil
}

// VerifyCart re-prices every line against the catalog. Verification is
// all-or-nothing: one bad line rejects the whole cart.
func (s *pricingService) VerifyCart(ctx context.Context, lines []domain.CartLine) (VerifiedCart, error) {
	if len(lines) == 0 {
		return VerifiedCart{}, ErrEmptyCart
	}

	verified := make([]domain.VerifiedLine, 0, len(lines))
	var subtotal int64
	for _, line := range lines {
		if line.Quantity <= 0 {
			return VerifiedCart{}, fmt.Errorf("%w: item %s has quantity %d", ErrInvalidQuantity, line.ItemID, line.Quantity)
		}

		item, err := s.catalog.ResolveItem(ctx, line.ItemID)
		if err != nil {
			var repoErr repositories.RepositoryError
			if errors.As(err, &repoErr) {
				if repoErr.IsNotFound() {
					return VerifiedCart{}, fmt.Errorf("%w: %s", ErrProductNotFound, line.ItemID)
				}
				if repoErr.IsUnavailable() {
					return VerifiedCart{}, fmt.Errorf("%w: %v", ErrPricingUnavailable, err)
				}
			}
			return VerifiedCart{}, err
		}

		claimed := domain.MoneyFromMajorUnits(line.ClaimedUnitPrice, s.currency).MinorUnits
		if diff := claimed - item.Price.MinorUnits; diff > s.tolerance || diff < -s.tolerance {
			s.logger(ctx, "pricing.mismatch", map[string]any{
				"item_id": line.ItemID,
				"claimed": claimed,
				"catalog": item.Price.MinorUnits,
			})
			return VerifiedCart{}, &PriceMismatchError{
				ItemID:       line.ItemID,
				ClaimedPrice: claimed,
				CatalogPrice: item.Price.MinorUnits,
			}
		}

		name := item.Name
		if name == "" {
			name = line.Name
		}
		lineTotal := item.Price.MinorUnits * int64(line.Quantity)
		verified = append(verified, domain.VerifiedLine{
			ItemID:            item.ID,
			Name:              name,
			Quantity:          line.Quantity,
			VerifiedUnitPrice: item.Price.MinorUnits,
			LineTotal:         lineTotal,
			Source:            item.Source,
		})
		subtotal += lineTotal
	}

	totals, err := s.Totals(ctx, subtotal)
	if err != nil {
		return VerifiedCart{}, err
	}
	return VerifiedCart{Lines: verified, Totals: totals}, nil
}

// Totals applies the shipping policy to a subtotal. The shipping fee drops to
// zero once the subtotal exceeds the free-shipping threshold and never
// increases as the subtotal grows.
func (s *pricingService) Totals(ctx context.Context, subtotal int64) (domain.CheckoutTotals, error) {
	if subtotal < 0 {
		return domain.CheckoutTotals{}, fmt.Errorf("pricing: negative subtotal %d", subtotal)
	}

	settings, err := s.settings.ShippingSettings(ctx)
	if err != nil {
		return domain.CheckoutTotals{}, fmt.Errorf("%w: %v", ErrPricingUnavailable, err)
	}

	fee := settings.DeliveryFeeMinorUnits
	if settings.FreeShippingEnabled && subtotal > settings.FreeShippingThreshold {
		fee = 0
	}
	return domain.CheckoutTotals{
		Subtotal:    subtotal,
		ShippingFee: fee,
		GrandTotal:  subtotal + fee,
		Currency:    s.currency,
	}, nil
}

// nowUTC wraps a clock so stored timestamps are always UTC.
func nowUTC(clock func() time.Time) func() time.Time {
	if clock == nil {
		clock = time.Now
	}
	return func() time.Time { return clock().UTC() }
}
