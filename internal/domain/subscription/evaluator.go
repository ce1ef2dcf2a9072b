package subscription

// Evaluator answers entitlement questions against a catalog.
// It keeps no state of its own; every call reads the catalog and the plan passed in.
type Evaluator struct {
	catalog *PlanCatalog
}

// NewEvaluator creates an evaluator. A nil catalog selects DefaultCatalog.
func NewEvaluator(catalog *PlanCatalog) *Evaluator {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Evaluator{catalog: catalog}
}

// Catalog returns the catalog the evaluator reads from
func (e *Evaluator) Catalog() *PlanCatalog {
	return e.catalog
}

// CanCreate reports whether plan allows one more resource of kind when currentCount already exist.
// An unknown kind returns ErrUnknownResourceKind.
func (e *Evaluator) CanCreate(plan Plan, kind ResourceKind, currentCount int) (bool, error) {
	limit, err := e.catalog.LimitsFor(plan).Get(kind)
	if err != nil {
		return false, err
	}
	return limit.Allows(currentCount), nil
}

// HasFeature reports whether plan grants feature. Unknown features and plans are not entitled.
func (e *Evaluator) HasFeature(plan Plan, feature FeatureID) bool {
	return e.catalog.featureEnabled(plan, feature)
}

// MinimumPlanFor returns the lowest ranked plan granting feature.
// ok is false when no plan grants it.
func (e *Evaluator) MinimumPlanFor(feature FeatureID) (plan Plan, ok bool) {
	for _, p := range e.catalog.Plans() {
		if e.catalog.featureEnabled(p, feature) {
			return p, true
		}
	}
	return "", false
}

// PlanFeatures is the read model of everything a plan confers
type PlanFeatures struct {
	Plan        Plan           `json:"plan"`
	DisplayName string         `json:"display_name"`
	Rank        int            `json:"rank"`
	Limits      PlanLimits     `json:"limits"`
	Features    FeatureFlagSet `json:"features"`
}

// PlanFeatures returns limits and feature flags of plan
func (e *Evaluator) PlanFeatures(plan Plan) PlanFeatures {
	return PlanFeatures{
		Plan:        plan,
		DisplayName: plan.DisplayName(),
		Rank:        e.catalog.RankOf(plan),
		Limits:      e.catalog.LimitsFor(plan),
		Features:    e.catalog.FeaturesFor(plan),
	}
}

// Quota is the usage of one resource kind against its limit
type Quota struct {
	Resource  ResourceKind `json:"resource"`
	Used      int          `json:"used"`
	Limit     Limit        `json:"limit"`
	Remaining int          `json:"remaining"`
	Unbounded bool         `json:"unbounded"`
	CanCreate bool         `json:"can_create"`
}

// Usage returns a quota for every resource kind. Kinds missing from counts are treated as zero.
func (e *Evaluator) Usage(plan Plan, counts map[ResourceKind]int) []Quota {
	limits := e.catalog.LimitsFor(plan)
	quotas := make([]Quota, 0, len(AllResourceKinds()))
	for _, kind := range AllResourceKinds() {
		limit, _ := limits.Get(kind)
		used := counts[kind]
		remaining, bounded := limit.Remaining(used)
		quotas = append(quotas, Quota{
			Resource:  kind,
			Used:      used,
			Limit:     limit,
			Remaining: remaining,
			Unbounded: !bounded,
			CanCreate: limit.Allows(used),
		})
	}
	return quotas
}
