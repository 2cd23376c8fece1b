package subscription

import (
	"slices"
	"strings"
)

// gated maps each paid feature to the role it requires.
var gated = map[Feature]Role{
	FeatureStrategyAI:      RolePro,
	FeatureMarketUpdates:   RolePro,
	FeatureLearn:           RolePro,
	FeatureAdvanced:        RolePro,
	FeaturePrioritySupport: RolePro,
}

// ParseFeature trims and lowercases a feature name taken from user input.
func ParseFeature(s string) Feature {
	return Feature(strings.ToLower(strings.TrimSpace(s)))
}

// IsGated reports whether f requires a paid role.
func IsGated(f Feature) bool {
	_, ok := gated[f]
	return ok
}

// GatedFeatures returns the gated features in a stable order.
func GatedFeatures() []Feature {
	out := make([]Feature, 0, len(gated))
	for f := range gated {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// CanAccessFeature decides whether status unlocks f. Features outside the
// gated set are open to everyone.
func CanAccessFeature(f Feature, status AccessStatus) bool {
	required, ok := gated[f]
	if !ok {
		return true
	}
	return status.Role == required
}

// FeatureAccess evaluates every gated feature against status.
func FeatureAccess(status AccessStatus) map[Feature]bool {
	out := make(map[Feature]bool, len(gated))
	for f := range gated {
		out[f] = CanAccessFeature(f, status)
	}
	return out
}
