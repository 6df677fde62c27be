package billing

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

type handlers struct {
	svc            subscription.Service
	resolveCompany CompanyResolver
	log            *slog.Logger
}

// handleWebhook ingests billing provider events. The body must be read as raw
// bytes before any JSON parsing: the provider's signature scheme covers the
// exact bytes sent. Returns 400 only for signature failure, so the provider
// does not endlessly retry a request it framed incorrectly; transient failures
// return 5xx to let the provider's retry policy reattempt.
func (h *handlers) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	err = h.svc.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, subscription.ErrSignatureInvalid) {
			h.log.WarnContext(r.Context(), "webhook signature rejected", "error", err)
			http.Error(w, "invalid signature", http.StatusBadRequest)
			return
		}
		h.log.ErrorContext(r.Context(), "webhook processing failed", "error", err)
		http.Error(w, "temporary failure", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *handlers) handleInfo(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.company(w, r)
	if !ok {
		return
	}

	info, err := h.svc.Info(r.Context(), companyID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, infoResponse{
		Tier:          string(info.Tier),
		Status:        string(info.Status),
		MaxSeats:      info.MaxSeats,
		CurrentSeats:  info.CurrentSeats,
		TrialEndsAt:   info.TrialEndsAt,
		DaysRemaining: info.DaysRemaining,
		IsActive:      info.IsActive,
		Banner:        info.ShouldShowBanner(),
		UpgradeNudge:  info.ShouldShowUpgradeNudge(),
		LockedOut:     info.ShouldLockOut(),
	})
}

func (h *handlers) handleSetupIntent(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.company(w, r)
	if !ok {
		return
	}

	secret, err := h.svc.CreateSetupIntent(r.Context(), companyID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"client_secret": secret})
}

func (h *handlers) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.company(w, r)
	if !ok {
		return
	}

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	company, err := h.svc.CompleteSubscription(r.Context(), companyID,
		subscription.PlanTier(req.Plan), subscription.BillingPeriod(req.Period))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"status": string(company.Status),
		"plan":   string(company.Plan),
		"period": string(company.Period),
	})
}

func (h *handlers) handleCancel(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.company(w, r)
	if !ok {
		return
	}

	if err := h.svc.CancelSubscription(r.Context(), companyID); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": string(subscription.StatusCancelled)})
}

func (h *handlers) handleAddSeat(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.company(w, r)
	if !ok {
		return
	}

	var req seatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	memberID, err := uuid.Parse(req.MemberID)
	if err != nil {
		http.Error(w, "invalid member id", http.StatusBadRequest)
		return
	}

	if err := h.svc.AddSeat(r.Context(), companyID, memberID); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) handleRemoveSeat(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.company(w, r)
	if !ok {
		return
	}

	memberID, err := uuid.Parse(chi.URLParam(r, "memberID"))
	if err != nil {
		http.Error(w, "invalid member id", http.StatusBadRequest)
		return
	}

	if err := h.svc.RemoveSeat(r.Context(), companyID, memberID); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) company(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	companyID, err := h.resolveCompany(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	return companyID, true
}

func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, subscription.ErrUnknownPlan):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, subscription.ErrCompanyNotFound),
		errors.Is(err, subscription.ErrNoActiveSubscription):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, subscription.ErrSeatLimitReached):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, subscription.ErrProviderUnavailable):
		http.Error(w, "billing provider unavailable, retry later", http.StatusServiceUnavailable)
	default:
		h.log.ErrorContext(r.Context(), "billing command failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("failed to encode response", "error", err)
	}
}
