package entitlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fixology/fixology/internal/config"
	"github.com/fixology/fixology/internal/shop/domain"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestIsBillingActive(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		shop domain.Shop
		want bool
	}{
		{"active", domain.Shop{Status: domain.StatusActive}, true},
		{"past due", domain.Shop{Status: domain.StatusPastDue}, true},
		{"trial in window", domain.Shop{Status: domain.StatusTrial, TrialEndsAt: timePtr(now.Add(time.Hour))}, true},
		{"trial expired", domain.Shop{Status: domain.StatusTrial, TrialEndsAt: timePtr(now.Add(-time.Hour))}, false},
		{"trial without end date", domain.Shop{Status: domain.StatusTrial}, false},
		{"suspended", domain.Shop{Status: domain.StatusSuspended}, false},
		{"cancelled", domain.Shop{Status: domain.StatusCancelled}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsBillingActive(&tc.shop, now))
		})
	}
}

func TestIsLocked(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		shop domain.Shop
		want bool
	}{
		{"suspended", domain.Shop{Status: domain.StatusSuspended}, true},
		{"cancelled", domain.Shop{Status: domain.StatusCancelled}, true},
		{"active", domain.Shop{Status: domain.StatusActive}, false},
		{"trial in window free plan", domain.Shop{Status: domain.StatusTrial, Plan: domain.PlanFree, TrialEndsAt: timePtr(now.Add(time.Hour))}, false},
		{"trial expired free plan", domain.Shop{Status: domain.StatusTrial, Plan: domain.PlanFree, TrialEndsAt: timePtr(now.Add(-time.Hour))}, true},
		{"trial expired paid plan", domain.Shop{Status: domain.StatusTrial, Plan: domain.PlanPro, TrialEndsAt: timePtr(now.Add(-time.Hour))}, false},
		{"trial without end date free plan", domain.Shop{Status: domain.StatusTrial, Plan: domain.PlanFree}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsLocked(&tc.shop, now))
		})
	}
}

func TestDaysRemainingInTrial(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		shop domain.Shop
		want int
	}{
		{"not in trial", domain.Shop{Status: domain.StatusActive, TrialEndsAt: timePtr(now.Add(72 * time.Hour))}, 0},
		{"no end date", domain.Shop{Status: domain.StatusTrial}, 0},
		{"expired", domain.Shop{Status: domain.StatusTrial, TrialEndsAt: timePtr(now.Add(-time.Hour))}, 0},
		{"exactly now", domain.Shop{Status: domain.StatusTrial, TrialEndsAt: timePtr(now)}, 0},
		{"partial day rounds up", domain.Shop{Status: domain.StatusTrial, TrialEndsAt: timePtr(now.Add(time.Hour))}, 1},
		{"exact whole days", domain.Shop{Status: domain.StatusTrial, TrialEndsAt: timePtr(now.Add(72 * time.Hour))}, 3},
		{"seven and a half days", domain.Shop{Status: domain.StatusTrial, TrialEndsAt: timePtr(now.Add(180 * time.Hour))}, 8},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DaysRemainingInTrial(&tc.shop, now))
		})
	}
}

func TestCanPerformAction(t *testing.T) {
	policy := config.DefaultPolicyConfig()

	assert.True(t, CanPerformAction(policy, "SUPER_ADMIN", "shop.suspend"))
	assert.True(t, CanPerformAction(policy, "SUPER_ADMIN", "anything.at.all"))
	assert.True(t, CanPerformAction(policy, "SUPPORT", "shop.suspend"))
	assert.True(t, CanPerformAction(policy, "support", "trial.extend"))
	assert.False(t, CanPerformAction(policy, "SUPPORT", "billing"))
	assert.True(t, CanPerformAction(policy, "BILLING", "billing.refund"))
	assert.False(t, CanPerformAction(policy, "READONLY", "shop.suspend"))
	assert.True(t, CanPerformAction(policy, "READONLY", "audit.view"))
	assert.False(t, CanPerformAction(policy, "UNKNOWN_ROLE", "shop.view"))
	assert.False(t, CanPerformAction(policy, "", "shop.view"))
	assert.False(t, CanPerformAction(policy, "SUPPORT", ""))
}

func TestSummarize(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	shop := domain.Shop{
		ID:                 42,
		Status:             domain.StatusTrial,
		Plan:               domain.PlanFree,
		TrialEndsAt:        timePtr(now.Add(49 * time.Hour)),
		CreditBalanceCents: -250,
	}

	summary := Summarize(&shop, now)
	assert.Equal(t, "42", summary.ShopID)
	assert.Equal(t, domain.StatusTrial, summary.Status)
	assert.Equal(t, domain.PlanFree, summary.Plan)
	assert.True(t, summary.BillingActive)
	assert.False(t, summary.Locked)
	assert.Equal(t, 3, summary.TrialDaysRemaining)
	assert.Equal(t, int64(-250), summary.CreditBalanceCents)
}
