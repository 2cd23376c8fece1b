package subscription

import "strings"

// Tier is the purchased product level stored on a Record.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// ParseTier normalizes a stored tier. Unknown or empty values are free.
func ParseTier(s string) Tier {
	if strings.EqualFold(strings.TrimSpace(s), string(TierPro)) {
		return TierPro
	}
	return TierFree
}

// Status mirrors the billing processor's subscription state.
type Status string

const (
	StatusNone     Status = ""
	StatusActive   Status = "active"
	StatusTrialing Status = "trialing"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
	StatusUnpaid   Status = "unpaid"
	StatusInactive Status = "inactive"
)

// ParseStatus normalizes processor status strings. Empty input stays empty,
// any value this service does not recognise becomes inactive.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return StatusNone
	case "active":
		return StatusActive
	case "trialing", "trial":
		return StatusTrialing
	case "past_due":
		return StatusPastDue
	case "canceled", "cancelled":
		return StatusCanceled
	case "unpaid":
		return StatusUnpaid
	default:
		return StatusInactive
	}
}

// Entitled reports whether the status grants paid access.
func (s Status) Entitled() bool {
	return s == StatusActive || s == StatusTrialing
}

// Role is the derived access level used by every feature decision.
type Role string

const (
	RoleFree    Role = "free"
	RolePro     Role = "pro"
	RoleExpired Role = "expired"
)

func (r Role) String() string { return string(r) }

// Name lets a Role act as a lifecycle state.
func (r Role) Name() string { return string(r) }

// Feature identifies a piece of gated product functionality.
type Feature string

const (
	FeatureStrategyAI      Feature = "strategy-ai"
	FeatureMarketUpdates   Feature = "market-updates"
	FeatureLearn           Feature = "learn"
	FeatureAdvanced        Feature = "advanced-features"
	FeaturePrioritySupport Feature = "priority-support"
)
