package subscription

// Enforcement predicates over the derived entitlement view. All of them are
// pure; callers are responsible for acting on the booleans.

// CanAddSeat reports whether the company may seat one more member.
func (i SubscriptionInfo) CanAddSeat() bool {
	return i.CurrentSeats < i.MaxSeats
}

// ShouldLockOut reports whether the company should be hard-locked out of the
// product.
func (i SubscriptionInfo) ShouldLockOut() bool {
	return !i.IsActive
}

// ShouldShowUpgradeNudge reports whether the UI should nudge the company
// toward a paid or higher plan: trialing, close to trial end, or about to
// exhaust its seat ceiling.
func (i SubscriptionInfo) ShouldShowUpgradeNudge() bool {
	if i.Tier == TierTrial {
		return true
	}
	if i.TrialEndsAt != nil && i.DaysRemaining <= 7 {
		return true
	}
	return i.CurrentSeats >= i.MaxSeats-1
}

// ShouldShowBanner reports whether a persistent attention banner is warranted:
// a failed payment in grace, an expiring trial, or seats nearly exhausted.
func (i SubscriptionInfo) ShouldShowBanner() bool {
	if i.Status == StatusGrace {
		return true
	}
	if i.TrialEndsAt != nil && i.DaysRemaining <= 7 {
		return true
	}
	return i.CurrentSeats >= i.MaxSeats-1
}
