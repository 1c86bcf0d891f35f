// Package entitlement derives what a tenant is currently allowed to do from
// its lifecycle state. Everything here is a pure function of a shop snapshot
// and a point in time, safe to call from any request path.
package entitlement

import (
	"strings"
	"time"

	"github.com/fixology/fixology/internal/config"
	"github.com/fixology/fixology/internal/shop/domain"
)

const day = 24 * time.Hour

// IsBillingActive reports whether the shop is in a billable state: ACTIVE or
// PAST_DUE, or still inside its trial window.
func IsBillingActive(shop *domain.Shop, now time.Time) bool {
	switch shop.Status {
	case domain.StatusActive, domain.StatusPastDue:
		return true
	case domain.StatusTrial:
		return shop.TrialEndsAt != nil && shop.TrialEndsAt.After(now)
	}
	return false
}

// IsLocked reports whether the shop is denied access: suspended, cancelled,
// or an expired trial with no paid plan selected.
func IsLocked(shop *domain.Shop, now time.Time) bool {
	switch shop.Status {
	case domain.StatusSuspended, domain.StatusCancelled:
		return true
	case domain.StatusTrial:
		expired := shop.TrialEndsAt == nil || !shop.TrialEndsAt.After(now)
		return expired && !shop.Plan.IsPaid()
	}
	return false
}

// DaysRemainingInTrial returns the whole days left in the trial window,
// rounding partial days up. Zero for shops not in trial.
func DaysRemainingInTrial(shop *domain.Shop, now time.Time) int {
	if shop.Status != domain.StatusTrial || shop.TrialEndsAt == nil {
		return 0
	}
	remaining := shop.TrialEndsAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	days := int(remaining / day)
	if remaining%day != 0 {
		days++
	}
	return days
}

// CanPerformAction checks an admin role against the role capability table.
// A role holding the "*" capability may perform any action; otherwise the
// action must match one of the role's capabilities exactly.
func CanPerformAction(policy config.PolicyConfig, role, action string) bool {
	role = strings.ToUpper(strings.TrimSpace(role))
	action = strings.TrimSpace(action)
	if role == "" || action == "" {
		return false
	}
	capabilities, ok := policy.Roles[role]
	if !ok {
		return false
	}
	for _, capability := range capabilities {
		if capability == "*" || capability == action {
			return true
		}
	}
	return false
}

// Summary is the billing summary returned by the entitlement read endpoint.
type Summary struct {
	ShopID             string        `json:"shop_id"`
	Status             domain.Status `json:"status"`
	Plan               domain.Plan   `json:"plan"`
	BillingActive      bool          `json:"billing_active"`
	Locked             bool          `json:"locked"`
	TrialDaysRemaining int           `json:"trial_days_remaining"`
	CreditBalanceCents int64         `json:"credit_balance_cents"`
}

// Summarize computes the full entitlement summary for a shop snapshot.
func Summarize(shop *domain.Shop, now time.Time) Summary {
	return Summary{
		ShopID:             shop.ID.String(),
		Status:             shop.Status,
		Plan:               shop.Plan,
		BillingActive:      IsBillingActive(shop, now),
		Locked:             IsLocked(shop, now),
		TrialDaysRemaining: DaysRemainingInTrial(shop, now),
		CreditBalanceCents: shop.CreditBalanceCents,
	}
}
