package subscription

import (
	"math"
	"time"
)

// DefaultTrialSeats is the seat ceiling granted to companies that have no
// persisted subscription record yet. Generous on purpose: a not-yet-loaded
// record must never cause a premature lockout.
const DefaultTrialSeats = 10

// SubscriptionInfo is the derived entitlement view consumed by the UI layer
// (banners, paywalls) and by the enforcement predicates. It is recomputed on
// every read from the Company record and never persisted.
type SubscriptionInfo struct {
	Tier          PlanTier
	Status        SubscriptionStatus
	MaxSeats      int
	CurrentSeats  int
	TrialEndsAt   *time.Time // set only for trial tier with a known trial end
	DaysRemaining int        // whole days left in trial, rounded up, never negative
	IsActive      bool
}

// CalculateAt derives a SubscriptionInfo from a company record at a fixed
// point in time. Total over its input domain: a nil company yields a
// permissive trial default rather than an error or a locked-out view.
func CalculateAt(c *Company, now time.Time) SubscriptionInfo {
	if c == nil {
		return SubscriptionInfo{
			Tier:     TierTrial,
			Status:   StatusTrial,
			MaxSeats: DefaultTrialSeats,
			IsActive: true,
		}
	}

	info := SubscriptionInfo{
		Tier:         c.Plan,
		Status:       c.Status,
		MaxSeats:     c.MaxSeats,
		CurrentSeats: len(c.SeatedMemberIDs),
	}

	if c.Plan == TierTrial && c.PeriodEnd != nil {
		info.TrialEndsAt = c.PeriodEnd
		info.DaysRemaining = daysUntil(*c.PeriodEnd, now)
	}

	switch c.Status {
	case StatusActive, StatusTrial, StatusGrace:
		info.IsActive = true
	}

	// A positive trial countdown keeps the company active even when status is
	// stale or unset, so a transient reconciliation gap cannot lock out a
	// trial user mid-window.
	if !info.IsActive && info.DaysRemaining > 0 {
		info.IsActive = true
	}

	return info
}

// Calculate derives a SubscriptionInfo from a company record at the current time.
func Calculate(c *Company) SubscriptionInfo {
	return CalculateAt(c, time.Now().UTC())
}

// daysUntil returns the number of whole days from now until deadline,
// rounding partial days up and flooring at zero.
func daysUntil(deadline, now time.Time) int {
	remaining := deadline.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Hours() / 24))
}
