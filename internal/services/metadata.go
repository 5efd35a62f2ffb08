package services

import (
	"encoding/json"
	"fmt"
	"strconv"

	domain "github.com/roastline/api/internal/domain"
)

// Payment intent metadata keys. Checkout writes them; the reconciler reads
// them back when the success webhook arrives.
const (
	metadataKeyCart           = "cart"
	metadataKeySubtotal       = "subtotal"
	metadataKeyShipping       = "shipping"
	metadataKeyTotal          = "total"
	metadataKeyCurrency       = "currency"
	metadataKeyPricesVerified = "prices_verified"
	metadataKeyIdempotency    = "idempotency_key"
)

// metadataCartLine is the compact wire form of a verified line. Short keys
// keep the serialized cart inside Stripe's metadata value limit for longer.
type metadataCartLine struct {
	ID    string `json:"id"`
	Name  string `json:"n,omitempty"`
	Qty   int    `json:"q"`
	Price int64  `json:"p"`
	Src   string `json:"s,omitempty"`
}

func encodeIntentMetadata(cart VerifiedCart, idempotencyKey string) (map[string]string, error) {
	lines := make([]metadataCartLine, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		lines = append(lines, metadataCartLine{
			ID:    line.ItemID,
			Name:  line.Name,
			Qty:   line.Quantity,
			Price: line.VerifiedUnitPrice,
			Src:   string(line.Source),
		})
	}
	encoded, err := json.Marshal(lines)
	if err != nil {
		return nil, fmt.Errorf("encode cart metadata: %w", err)
	}

	metadata := map[string]string{
		metadataKeyCart:           string(encoded),
		metadataKeySubtotal:       strconv.FormatInt(cart.Totals.Subtotal, 10),
		metadataKeyShipping:       strconv.FormatInt(cart.Totals.ShippingFee, 10),
		metadataKeyTotal:          strconv.FormatInt(cart.Totals.GrandTotal, 10),
		metadataKeyCurrency:       cart.Totals.Currency,
		metadataKeyPricesVerified: "true",
	}
	if idempotencyKey != "" {
		metadata[metadataKeyIdempotency] = idempotencyKey
	}
	return metadata, nil
}

// decodeIntentMetadata reconstructs the verified cart from intent metadata.
// Malformed metadata is a hard error: reconciling an order with unknown
// contents would hide real money behind a guess.
func decodeIntentMetadata(metadata map[string]string) (VerifiedCart, string, error) {
	rawCart, ok := metadata[metadataKeyCart]
	if !ok || rawCart == "" {
		return VerifiedCart{}, "", fmt.Errorf("intent metadata: missing %q", metadataKeyCart)
	}

	var lines []metadataCartLine
	if err := json.Unmarshal([]byte(rawCart), &lines); err != nil {
		return VerifiedCart{}, "", fmt.Errorf("intent metadata: decode cart: %w", err)
	}
	if len(lines) == 0 {
		return VerifiedCart{}, "", fmt.Errorf("intent metadata: cart is empty")
	}

	verified := make([]domain.VerifiedLine, 0, len(lines))
	for _, line := range lines {
		if line.ID == "" || line.Qty <= 0 || line.Price < 0 {
			return VerifiedCart{}, "", fmt.Errorf("intent metadata: invalid cart line %+v", line)
		}
		verified = append(verified, domain.VerifiedLine{
			ItemID:            line.ID,
			Name:              line.Name,
			Quantity:          line.Qty,
			VerifiedUnitPrice: line.Price,
			LineTotal:         line.Price * int64(line.Qty),
			Source:            domain.CatalogSource(line.Src),
		})
	}

	currency, ok := metadata[metadataKeyCurrency]
	if !ok || currency == "" {
		return VerifiedCart{}, "", fmt.Errorf("intent metadata: missing %q", metadataKeyCurrency)
	}

	totals := domain.CheckoutTotals{Currency: currency}
	var err error
	if totals.Subtotal, err = parseMetadataAmount(metadata, metadataKeySubtotal); err != nil {
		return VerifiedCart{}, "", err
	}
	if totals.ShippingFee, err = parseMetadataAmount(metadata, metadataKeyShipping); err != nil {
		return VerifiedCart{}, "", err
	}
	if totals.GrandTotal, err = parseMetadataAmount(metadata, metadataKeyTotal); err != nil {
		return VerifiedCart{}, "", err
	}

	return VerifiedCart{Lines: verified, Totals: totals}, metadata[metadataKeyIdempotency], nil
}

func parseMetadataAmount(metadata map[string]string, key string) (int64, error) {
	raw, ok := metadata[key]
	if !ok {
		return 0, fmt.Errorf("intent metadata: missing %q", key)
	}
	amount, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("intent metadata: parse %q: %w", key, err)
	}
	if amount < 0 {
		return 0, fmt.Errorf("intent metadata: negative %q", key)
	}
	return amount, nil
}
