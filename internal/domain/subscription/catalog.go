package subscription

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// CatalogEntry is everything a plan confers plus its display copy
type CatalogEntry struct {
	Plan Plan
	// Rank orders the entry in the catalog. Zero takes the plan's standard rank.
	Rank         int
	Description  string
	MonthlyPrice decimal.Decimal
	ContactSales bool
	Highlights   []string
	Limits       PlanLimits
	Features     FeatureFlagSet
}

// PlanCatalog maps every plan to its limits and feature flags.
// It is immutable once built and iterates in rank order.
type PlanCatalog struct {
	entries []CatalogEntry
	byPlan  map[Plan]int
}

// NewCatalog builds a catalog. Every plan in the plan set must appear exactly once
// and no two entries may share a rank.
func NewCatalog(entries ...CatalogEntry) (*PlanCatalog, error) {
	c := &PlanCatalog{
		entries: make([]CatalogEntry, 0, len(entries)),
		byPlan:  make(map[Plan]int, len(entries)),
	}
	seen := make(map[Plan]bool, len(entries))
	ranks := make(map[int]Plan, len(entries))
	for _, e := range entries {
		if !e.Plan.IsValid() {
			return nil, ErrInvalidPlan.WithMessage(fmt.Sprintf("catalog entry for unknown plan %q", e.Plan))
		}
		if seen[e.Plan] {
			return nil, fmt.Errorf("catalog: duplicate entry for plan %q", e.Plan)
		}
		seen[e.Plan] = true
		if e.Rank == 0 {
			e.Rank = e.Plan.Rank()
		}
		if other, dup := ranks[e.Rank]; dup {
			return nil, fmt.Errorf("catalog: plans %q and %q share rank %d", other, e.Plan, e.Rank)
		}
		ranks[e.Rank] = e.Plan
		e.Features = e.Features.Clone()
		e.Highlights = append([]string(nil), e.Highlights...)
		c.entries = append(c.entries, e)
	}
	for _, p := range AllPlans() {
		if !seen[p] {
			return nil, fmt.Errorf("catalog: missing entry for plan %q", p)
		}
	}

	sort.SliceStable(c.entries, func(i, j int) bool {
		return c.entries[i].Rank < c.entries[j].Rank
	})
	for i, e := range c.entries {
		c.byPlan[e.Plan] = i
	}
	return c, nil
}

// MustNewCatalog is NewCatalog that panics on error, for package-level tables
func MustNewCatalog(entries ...CatalogEntry) *PlanCatalog {
	c, err := NewCatalog(entries...)
	if err != nil {
		panic(err)
	}
	return c
}

// Plans returns the catalog plans in rank order
func (c *PlanCatalog) Plans() []Plan {
	out := make([]Plan, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Plan
	}
	return out
}

// Entry returns a copy of the entry for plan
func (c *PlanCatalog) Entry(plan Plan) (CatalogEntry, bool) {
	i, ok := c.byPlan[plan]
	if !ok {
		return CatalogEntry{}, false
	}
	e := c.entries[i]
	e.Features = e.Features.Clone()
	e.Highlights = append([]string(nil), e.Highlights...)
	return e, true
}

// Entries returns copies of every entry in rank order
func (c *PlanCatalog) Entries() []CatalogEntry {
	out := make([]CatalogEntry, 0, len(c.entries))
	for _, p := range c.Plans() {
		e, _ := c.Entry(p)
		out = append(out, e)
	}
	return out
}

// RankOf returns the catalog rank of plan, or -1 when plan is not in the catalog
func (c *PlanCatalog) RankOf(plan Plan) int {
	i, ok := c.byPlan[plan]
	if !ok {
		return -1
	}
	return c.entries[i].Rank
}

// LimitsFor returns the limits of plan. An invalid plan gets zero limits.
func (c *PlanCatalog) LimitsFor(plan Plan) PlanLimits {
	i, ok := c.byPlan[plan]
	if !ok {
		return PlanLimits{}
	}
	return c.entries[i].Limits
}

// FeaturesFor returns a copy of the feature flags of plan. An invalid plan gets no features.
func (c *PlanCatalog) FeaturesFor(plan Plan) FeatureFlagSet {
	i, ok := c.byPlan[plan]
	if !ok {
		return FeatureFlagSet{}
	}
	return c.entries[i].Features.Clone()
}

func (c *PlanCatalog) featureEnabled(plan Plan, id FeatureID) bool {
	i, ok := c.byPlan[plan]
	if !ok {
		return false
	}
	return c.entries[i].Features.Enabled(id)
}
