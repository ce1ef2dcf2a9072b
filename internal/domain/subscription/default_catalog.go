package subscription

import "github.com/shopspring/decimal"

var defaultCatalog = MustNewCatalog(
	CatalogEntry{
		Plan:         PlanFree,
		Rank:         0,
		Description:  "For freelancers trying things out",
		MonthlyPrice: decimal.Zero,
		Highlights:   []string{"3 projects", "2 team members", "Kanban boards", "Basic invoicing"},
		Limits: PlanLimits{
			Projects: Bounded(3),
			Users:    Bounded(2),
			Teams:    Bounded(1),
			Clients:  Bounded(5),
			Goals:    Bounded(3),
		},
		Features: NewFeatureFlagSet(FeatureKanban, FeatureInvoicing),
	},
	CatalogEntry{
		Plan:         PlanStarter,
		Rank:         10,
		Description:  "For small studios",
		MonthlyPrice: decimal.RequireFromString("19.00"),
		Highlights:   []string{"10 projects", "Timesheets", "Reports", "Gantt charts"},
		Limits: PlanLimits{
			Projects: Bounded(10),
			Users:    Bounded(5),
			Teams:    Bounded(2),
			Clients:  Bounded(25),
			Goals:    Bounded(10),
		},
		Features: NewFeatureFlagSet(FeatureKanban, FeatureInvoicing, FeatureTimesheet, FeatureReports, FeatureGantt),
	},
	CatalogEntry{
		Plan:         PlanBusiness,
		Rank:         20,
		Description:  "For growing agencies",
		MonthlyPrice: decimal.RequireFromString("49.00"),
		Highlights:   []string{"50 projects", "Unlimited clients", "Analytics dashboard", "Tax management", "Integrations"},
		Limits: PlanLimits{
			Projects: Bounded(50),
			Users:    Bounded(25),
			Teams:    Bounded(10),
			Clients:  Unbounded(),
			Goals:    Bounded(50),
		},
		Features: NewFeatureFlagSet(
			FeatureKanban, FeatureInvoicing, FeatureTimesheet, FeatureReports, FeatureGantt,
			FeatureAnalytics, FeatureTaxes, FeatureIntegrations,
		),
	},
	CatalogEntry{
		Plan:         PlanEnterprise,
		Rank:         30,
		Description:  "For established agencies with many teams",
		MonthlyPrice: decimal.RequireFromString("149.00"),
		Highlights:   []string{"Unlimited projects", "100 team members", "Performance reviews", "API access", "Priority support"},
		Limits: PlanLimits{
			Projects: Unbounded(),
			Users:    Bounded(100),
			Teams:    Unbounded(),
			Clients:  Unbounded(),
			Goals:    Unbounded(),
		},
		Features: NewFeatureFlagSet(
			FeatureKanban, FeatureInvoicing, FeatureTimesheet, FeatureReports, FeatureGantt,
			FeatureAnalytics, FeatureTaxes, FeatureIntegrations,
			FeaturePerformance, FeatureAPIAccess, FeatureCustomBranding, FeaturePrioritySupport,
		),
	},
	CatalogEntry{
		Plan:         PlanCustom,
		Rank:         40,
		Description:  "Tailored contract with unlimited usage",
		MonthlyPrice: decimal.Zero,
		ContactSales: true,
		Highlights:   []string{"Everything in Enterprise", "Unlimited team members", "Dedicated onboarding"},
		Limits:       UnboundedLimits(),
		Features:     NewFeatureFlagSet(AllFeatureIDs()...),
	},
)

// DefaultCatalog returns the process-wide plan catalog
func DefaultCatalog() *PlanCatalog {
	return defaultCatalog
}
