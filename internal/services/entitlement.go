package services

import "quoteflow/internal/domain"

// DefaultFreeMonthlyLimit is the number of offers a free account may send per UTC month.
const DefaultFreeMonthlyLimit = 3

type entitlementGate struct {
	freeMonthlyLimit int
}

// NewEntitlementGate returns the single place where send permission is decided.
// A non-positive limit falls back to DefaultFreeMonthlyLimit.
func NewEntitlementGate(freeMonthlyLimit int) domain.EntitlementGate {
	if freeMonthlyLimit <= 0 {
		freeMonthlyLimit = DefaultFreeMonthlyLimit
	}
	return &entitlementGate{freeMonthlyLimit: freeMonthlyLimit}
}

// isMetered reports whether plan is subject to the monthly limit. An unset plan is
// treated as free so a missing tier never grants unlimited sends.
func isMetered(plan domain.PlanTier) bool {
	return plan == domain.PlanFree || plan == ""
}

func (g *entitlementGate) CanSend(plan domain.PlanTier, monthlyFinalizedCount int) bool {
	if !isMetered(plan) {
		return true
	}
	return monthlyFinalizedCount < g.freeMonthlyLimit
}

func (g *entitlementGate) RemainingQuota(plan domain.PlanTier, monthlyFinalizedCount int) domain.Quota {
	if !isMetered(plan) {
		return domain.Quota{Unbounded: true}
	}
	return domain.Quota{Remaining: max(0, g.freeMonthlyLimit-monthlyFinalizedCount)}
}
