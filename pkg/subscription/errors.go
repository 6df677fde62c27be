package subscription

import "errors"

var (
	// ErrSignatureInvalid marks a webhook payload that failed signature
	// verification. Terminal: callers must reject the request and must not
	// retry it.
	ErrSignatureInvalid = errors.New("webhook signature verification failed")

	// ErrUnknownPlan marks a (tier, period) pair with no entry in the price
	// table. Terminal: surfaced to the caller as a bad request.
	ErrUnknownPlan = errors.New("unknown subscription plan")

	ErrCompanyNotFound        = errors.New("company not found")
	ErrNoActiveSubscription   = errors.New("no active subscription for company")
	ErrSeatLimitReached       = errors.New("seat limit reached")
	ErrPaymentAlreadyRecorded = errors.New("payment already recorded")

	// ErrProviderUnavailable wraps transient billing provider failures.
	// Command handlers surface it as retryable; the webhook path converts it
	// to a non-2xx so the provider's own retry policy reattempts delivery.
	ErrProviderUnavailable = errors.New("billing provider unavailable")

	ErrInvalidPlanConfiguration = errors.New("invalid subscription plan configuration")
)
