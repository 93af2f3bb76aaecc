package domain

// Quota is the remaining monthly allowance. Unbounded accounts report Remaining as 0.
type Quota struct {
	Unbounded bool `json:"unbounded"`
	Remaining int  `json:"remaining"`
}

// EntitlementGate decides whether an account may move another offer into a
// quota-consuming status. It never touches storage: callers supply a freshly
// computed count for the current UTC month.
type EntitlementGate interface {
	CanSend(plan PlanTier, monthlyFinalizedCount int) bool
	RemainingQuota(plan PlanTier, monthlyFinalizedCount int) Quota
}

// QuotaStatus is the owner-facing summary of the current month's allowance.
// swagger:model QuotaStatus
type QuotaStatus struct {
	Plan    PlanTier `json:"plan"`
	Used    int      `json:"used"`
	Quota   Quota    `json:"quota"`
	CanSend bool     `json:"can_send"`
}
