package subscription

import "sort"

// FeatureID identifies a gated feature. The vocabulary may grow independently of
// the catalog, so unknown identifiers resolve to disabled rather than erroring.
type FeatureID string

const (
	FeatureTimesheet       FeatureID = "timesheet"
	FeatureAnalytics       FeatureID = "analytics"
	FeatureReports         FeatureID = "reports"
	FeatureIntegrations    FeatureID = "integrations"
	FeatureTaxes           FeatureID = "taxes"
	FeaturePerformance     FeatureID = "performance"
	FeatureKanban          FeatureID = "kanban"
	FeatureGantt           FeatureID = "gantt"
	FeatureInvoicing       FeatureID = "invoicing"
	FeatureAPIAccess       FeatureID = "api_access"
	FeatureCustomBranding  FeatureID = "custom_branding"
	FeaturePrioritySupport FeatureID = "priority_support"
)

var featureNames = map[FeatureID]string{
	FeatureTimesheet:       "Timesheets",
	FeatureAnalytics:       "Analytics",
	FeatureReports:         "Reports",
	FeatureIntegrations:    "Integrations",
	FeatureTaxes:           "Tax Management",
	FeaturePerformance:     "Performance Reviews",
	FeatureKanban:          "Kanban Boards",
	FeatureGantt:           "Gantt Charts",
	FeatureInvoicing:       "Invoicing",
	FeatureAPIAccess:       "API Access",
	FeatureCustomBranding:  "Custom Branding",
	FeaturePrioritySupport: "Priority Support",
}

// AllFeatureIDs returns the known feature vocabulary in a stable order
func AllFeatureIDs() []FeatureID {
	return []FeatureID{
		FeatureKanban,
		FeatureInvoicing,
		FeatureTimesheet,
		FeatureReports,
		FeatureGantt,
		FeatureAnalytics,
		FeatureTaxes,
		FeatureIntegrations,
		FeaturePerformance,
		FeatureAPIAccess,
		FeatureCustomBranding,
		FeaturePrioritySupport,
	}
}

// IsKnown reports whether f belongs to the feature vocabulary
func (f FeatureID) IsKnown() bool {
	_, ok := featureNames[f]
	return ok
}

// DisplayName returns a human readable feature name, falling back to the identifier
func (f FeatureID) DisplayName() string {
	if name, ok := featureNames[f]; ok {
		return name
	}
	return string(f)
}

// FeatureFlagSet maps feature identifiers to enabled/disabled
type FeatureFlagSet map[FeatureID]bool

// NewFeatureFlagSet returns a set with every known feature disabled except enabled
func NewFeatureFlagSet(enabled ...FeatureID) FeatureFlagSet {
	flags := make(FeatureFlagSet, len(featureNames))
	for _, id := range AllFeatureIDs() {
		flags[id] = false
	}
	for _, id := range enabled {
		flags[id] = true
	}
	return flags
}

// Enabled returns the flag value, false for unknown identifiers
func (s FeatureFlagSet) Enabled(id FeatureID) bool {
	return s[id]
}

// EnabledFeatures returns the enabled identifiers sorted alphabetically
func (s FeatureFlagSet) EnabledFeatures() []FeatureID {
	out := make([]FeatureID, 0, len(s))
	for id, on := range s {
		if on {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clone returns an independent copy
func (s FeatureFlagSet) Clone() FeatureFlagSet {
	out := make(FeatureFlagSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
