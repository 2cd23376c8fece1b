package subscription

import (
	"math"
	"time"
)

// AccessStatus is derived from a Record and never persisted.
type AccessStatus struct {
	Role            Role `json:"role"`
	IsExpired       bool `json:"is_expired"`
	DaysUntilExpiry *int `json:"days_until_expiry"`
}

// Equal compares two statuses by value.
func (s AccessStatus) Equal(o AccessStatus) bool {
	if s.Role != o.Role || s.IsExpired != o.IsExpired {
		return false
	}
	if s.DaysUntilExpiry == nil || o.DaysUntilExpiry == nil {
		return s.DaysUntilExpiry == nil && o.DaysUntilExpiry == nil
	}
	return *s.DaysUntilExpiry == *o.DaysUntilExpiry
}

// ComputeStatus derives the access status of rec at the current time.
func ComputeStatus(rec *Record) AccessStatus {
	return ComputeStatusAt(rec, time.Now())
}

// ComputeStatusAt derives the access status of rec at now.
//
// A past expiry wins over tier and status. Pro requires tier pro with an
// active or trialing status. Everything else, including a nil record, is free.
func ComputeStatusAt(rec *Record, now time.Time) AccessStatus {
	if rec == nil {
		return AccessStatus{Role: RoleFree}
	}

	var status AccessStatus
	if exp := normalizeExpiry(rec.ExpiresAt); exp != nil {
		days := daysUntil(*exp, now)
		status.DaysUntilExpiry = &days
		if days <= 0 {
			status.Role = RoleExpired
			status.IsExpired = true
			return status
		}
	}

	if ParseTier(string(rec.Tier)) == TierPro && ParseStatus(string(rec.Status)).Entitled() {
		status.Role = RolePro
	} else {
		status.Role = RoleFree
	}
	return status
}

// daysUntil rounds up to whole days, so anything under 24h in the future is 1
// and anything at or behind now is 0 or negative.
func daysUntil(exp, now time.Time) int {
	hours := exp.Sub(now).Hours()
	days := math.Ceil(hours / 24)
	switch {
	case days > math.MaxInt32:
		return math.MaxInt32
	case days < math.MinInt32:
		return math.MinInt32
	}
	return int(days)
}
