package subscription

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Record is the persisted subscription row for one user.
type Record struct {
	UserID        uuid.UUID  `json:"user_id"`
	Tier          Tier       `json:"tier"`
	Status        Status     `json:"status"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	CustomerID    string     `json:"customer_id,omitempty"`
	ProviderSubID string     `json:"provider_sub_id,omitempty"`
	Provider      string     `json:"provider,omitempty"`
	EventAt       *time.Time `json:"event_at,omitempty"` // provider time of the last applied webhook
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Clone returns a deep copy so cached snapshots never alias store data.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.ExpiresAt != nil {
		exp := *r.ExpiresAt
		c.ExpiresAt = &exp
	}
	if r.EventAt != nil {
		ev := *r.EventAt
		c.EventAt = &ev
	}
	return &c
}

// Normalize coerces stored strings into their known values and drops a
// zero expiry.
func (r *Record) Normalize() {
	if r == nil {
		return
	}
	r.Tier = ParseTier(string(r.Tier))
	r.Status = ParseStatus(string(r.Status))
	r.ExpiresAt = normalizeExpiry(r.ExpiresAt)
	r.EventAt = normalizeExpiry(r.EventAt)
}

var expiryLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
}

// ParseExpiry parses a stored timestamp. Empty or malformed input yields nil
// which is treated as "no expiry".
func ParseExpiry(v string) *time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return normalizeExpiry(&t)
		}
	}
	return nil
}

func normalizeExpiry(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	utc := t.UTC()
	return &utc
}
