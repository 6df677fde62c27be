package subscription_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

func TestCalculateAt_AbsentCompany(t *testing.T) {
	info := subscription.CalculateAt(nil, time.Now().UTC())

	assert.Equal(t, subscription.TierTrial, info.Tier)
	assert.Equal(t, subscription.StatusTrial, info.Status)
	assert.Equal(t, subscription.DefaultTrialSeats, info.MaxSeats)
	assert.True(t, info.IsActive, "not-yet-loaded state must never cause lockout")
	assert.False(t, info.ShouldLockOut())
}

func TestCalculateAt_TrialCountdown(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("five days remaining", func(t *testing.T) {
		end := now.AddDate(0, 0, 5)
		company := trialCompany(&end)

		info := subscription.CalculateAt(company, now)
		assert.Equal(t, 5, info.DaysRemaining)
		assert.True(t, info.IsActive)
	})

	t.Run("partial day rounds up", func(t *testing.T) {
		end := now.Add(36 * time.Hour)
		company := trialCompany(&end)

		info := subscription.CalculateAt(company, now)
		assert.Equal(t, 2, info.DaysRemaining)
	})

	t.Run("at period end exactly", func(t *testing.T) {
		end := now
		company := trialCompany(&end)

		info := subscription.CalculateAt(company, now)
		assert.Equal(t, 0, info.DaysRemaining)
	})

	t.Run("past period end never negative", func(t *testing.T) {
		end := now.AddDate(0, 0, -3)
		company := trialCompany(&end)

		info := subscription.CalculateAt(company, now)
		assert.Equal(t, 0, info.DaysRemaining)
	})

	t.Run("no countdown without trial end", func(t *testing.T) {
		company := trialCompany(nil)

		info := subscription.CalculateAt(company, now)
		assert.Equal(t, 0, info.DaysRemaining)
		assert.Nil(t, info.TrialEndsAt)
	})
}

func TestCalculateAt_StaleStatusGuard(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := now.AddDate(0, 0, 4)

	// Status never reconciled, but the trial window is still open: the
	// countdown keeps the company active.
	company := trialCompany(&end)
	company.Status = ""

	info := subscription.CalculateAt(company, now)
	assert.True(t, info.IsActive)
	assert.False(t, info.ShouldLockOut())
}

func TestCalculateAt_LockoutBoundary(t *testing.T) {
	now := time.Now().UTC()

	t.Run("cancelled without countdown locks out", func(t *testing.T) {
		company := &subscription.Company{
			ID:       uuid.New(),
			Status:   subscription.StatusCancelled,
			Plan:     subscription.TierTeam,
			MaxSeats: 15,
		}

		info := subscription.CalculateAt(company, now)
		assert.False(t, info.IsActive)
		assert.True(t, info.ShouldLockOut())
	})

	t.Run("grace stays active with banner", func(t *testing.T) {
		company := &subscription.Company{
			ID:       uuid.New(),
			Status:   subscription.StatusGrace,
			Plan:     subscription.TierTeam,
			MaxSeats: 15,
		}

		info := subscription.CalculateAt(company, now)
		assert.True(t, info.IsActive)
		assert.False(t, info.ShouldLockOut())
		assert.True(t, info.ShouldShowBanner())
	})

	t.Run("expired locks out", func(t *testing.T) {
		company := &subscription.Company{
			ID:     uuid.New(),
			Status: subscription.StatusExpired,
			Plan:   subscription.TierStarter,
		}

		info := subscription.CalculateAt(company, now)
		assert.True(t, info.ShouldLockOut())
	})
}

func TestSeatBoundaries(t *testing.T) {
	base := subscription.SubscriptionInfo{
		Tier:     subscription.TierStarter,
		Status:   subscription.StatusActive,
		MaxSeats: 5,
		IsActive: true,
	}

	t.Run("at ceiling", func(t *testing.T) {
		info := base
		info.CurrentSeats = 5

		assert.False(t, info.CanAddSeat())
		assert.True(t, info.ShouldShowUpgradeNudge())
		assert.True(t, info.ShouldShowBanner())
	})

	t.Run("one below ceiling", func(t *testing.T) {
		info := base
		info.CurrentSeats = 4

		assert.True(t, info.CanAddSeat())
		assert.True(t, info.ShouldShowUpgradeNudge())
	})

	t.Run("well below ceiling", func(t *testing.T) {
		info := base
		info.CurrentSeats = 2

		assert.True(t, info.CanAddSeat())
		assert.False(t, info.ShouldShowUpgradeNudge())
		assert.False(t, info.ShouldShowBanner())
	})
}

func TestShouldShowUpgradeNudge_TrialAlwaysNudges(t *testing.T) {
	info := subscription.SubscriptionInfo{
		Tier:     subscription.TierTrial,
		Status:   subscription.StatusTrial,
		MaxSeats: subscription.DefaultTrialSeats,
		IsActive: true,
	}
	assert.True(t, info.ShouldShowUpgradeNudge())
}

func trialCompany(periodEnd *time.Time) *subscription.Company {
	return &subscription.Company{
		ID:        uuid.New(),
		Status:    subscription.StatusTrial,
		Plan:      subscription.TierTrial,
		PeriodEnd: periodEnd,
		MaxSeats:  subscription.DefaultTrialSeats,
	}
}
