package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/roastline/api/internal/domain"
	"github.com/roastline/api/internal/platform/httpx"
	"github.com/roastline/api/internal/services"
)

// AdminSettingsHandlers serves the runtime shipping policy editor.
type AdminSettingsHandlers struct {
	settings services.SettingsService
}

// NewAdminSettingsHandlers constructs admin settings handlers.
func NewAdminSettingsHandlers(settings services.SettingsService) *AdminSettingsHandlers {
	return &AdminSettingsHandlers{settings: settings}
}

// Routes registers admin settings endpoints under the provided router.
func (h *AdminSettingsHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/settings/shipping", h.getShippingSettings)
	r.Put("/settings/shipping", h.updateShippingSettings)
}

type shippingSettingsPayload struct {
	DeliveryFee           float64 `json:"deliveryFee"`
	FreeShippingThreshold float64 `json:"freeShippingThreshold"`
	FreeShippingEnabled   bool    `json:"freeShippingEnabled"`
	UpdatedAt             string  `json:"updatedAt,omitempty"`
}

func shippingSettingsFromDomain(settings domain.ShippingSettings) shippingSettingsPayload {
	return shippingSettingsPayload{
		DeliveryFee:           majorUnits(settings.DeliveryFeeMinorUnits),
		FreeShippingThreshold: majorUnits(settings.FreeShippingThreshold),
		FreeShippingEnabled:   settings.FreeShippingEnabled,
		UpdatedAt:             formatTime(settings.UpdatedAt),
	}
}

func (h *AdminSettingsHandlers) getShippingSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.settings == nil {
		httpx.WriteError(ctx, w, httpx.NewError("settings_unavailable", "settings service unavailable", http.StatusServiceUnavailable))
		return
	}

	settings, err := h.settings.ShippingSettings(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to load shipping settings", http.StatusInternalServerError))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, shippingSettingsFromDomain(settings))
}

func (h *AdminSettingsHandlers) updateShippingSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.settings == nil {
		httpx.WriteError(ctx, w, httpx.NewError("settings_unavailable", "settings service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxAdminRequestBody)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req shippingSettingsPayload
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	updated, err := h.settings.UpdateShippingSettings(ctx, domain.ShippingSettings{
		DeliveryFeeMinorUnits: domain.MoneyFromMajorUnits(req.DeliveryFee, "").MinorUnits,
		FreeShippingThreshold: domain.MoneyFromMajorUnits(req.FreeShippingThreshold, "").MinorUnits,
		FreeShippingEnabled:   req.FreeShippingEnabled,
	})
	if err != nil {
		if errors.Is(err, services.ErrSettingsInvalidInput) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to update shipping settings", http.StatusInternalServerError))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, shippingSettingsFromDomain(updated))
}
