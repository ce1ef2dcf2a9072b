package subscription

import (
	"fmt"

	"github.com/flowstate/agency/internal/domain/subscription"
)

// Defaults used when GateConfig leaves a field empty
const (
	DefaultUpgradeLabel = "Custom"
	DefaultUpgradePath  = "/settings/billing"
)

// GateConfig holds the static copy of the upgrade prompt
type GateConfig struct {
	// DefaultUpgradeLabel names the required plan when no plan grants a feature
	DefaultUpgradeLabel string
	// UpgradePath is where the upgrade affordance navigates to
	UpgradePath string
}

// UpgradePrompt is shown in place of gated content
type UpgradePrompt struct {
	Feature           subscription.FeatureID `json:"feature"`
	FeatureName       string                 `json:"feature_name"`
	RequiredPlan      subscription.Plan      `json:"required_plan,omitempty"`
	RequiredPlanLabel string                 `json:"required_plan_label"`
	CurrentPlan       subscription.Plan      `json:"current_plan"`
	CurrentPlanLabel  string                 `json:"current_plan_label"`
	Benefits          []string               `json:"benefits"`
	Message           string                 `json:"message"`
	UpgradePath       string                 `json:"upgrade_path"`
}

// GateResult is either the protected content unchanged or an upgrade prompt
type GateResult struct {
	Allowed bool           `json:"allowed"`
	Content any            `json:"content,omitempty"`
	Prompt  *UpgradePrompt `json:"upgrade,omitempty"`
}

// Gate projects entitlement results onto content or an upgrade prompt
type Gate struct {
	evaluator *subscription.Evaluator
	config    GateConfig
}

// NewGate creates a gate
func NewGate(evaluator *subscription.Evaluator, config GateConfig) *Gate {
	if config.DefaultUpgradeLabel == "" {
		config.DefaultUpgradeLabel = DefaultUpgradeLabel
	}
	if config.UpgradePath == "" {
		config.UpgradePath = DefaultUpgradePath
	}
	return &Gate{evaluator: evaluator, config: config}
}

// Config returns the effective gate configuration
func (g *Gate) Config() GateConfig {
	return g.config
}

// Evaluate returns content untouched when plan grants feature, otherwise an upgrade prompt.
// Empty message and benefits are filled from the catalog entry of the required plan.
func (g *Gate) Evaluate(plan subscription.Plan, feature subscription.FeatureID, content any, message string, benefits []string) GateResult {
	if g.evaluator.HasFeature(plan, feature) {
		return GateResult{Allowed: true, Content: content}
	}

	prompt := &UpgradePrompt{
		Feature:           feature,
		FeatureName:       feature.DisplayName(),
		RequiredPlanLabel: g.config.DefaultUpgradeLabel,
		CurrentPlan:       plan,
		CurrentPlanLabel:  plan.DisplayName(),
		Benefits:          append([]string(nil), benefits...),
		Message:           message,
		UpgradePath:       g.config.UpgradePath,
	}
	if required, ok := g.evaluator.MinimumPlanFor(feature); ok {
		prompt.RequiredPlan = required
		prompt.RequiredPlanLabel = required.DisplayName()
		if len(prompt.Benefits) == 0 {
			if entry, found := g.evaluator.Catalog().Entry(required); found {
				prompt.Benefits = entry.Highlights
			}
		}
	}
	if prompt.Benefits == nil {
		prompt.Benefits = []string{}
	}
	if prompt.Message == "" {
		prompt.Message = fmt.Sprintf("%s is available on the %s plan and above.", prompt.FeatureName, prompt.RequiredPlanLabel)
	}

	return GateResult{Allowed: false, Prompt: prompt}
}
