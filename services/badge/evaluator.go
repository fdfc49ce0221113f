package badge

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"go.uber.org/zap"

	"omnilypro-gaming/services/member"
)

// Evaluator decides unlock eligibility from a read-only statistics
// snapshot. It never mutates anything and unknown rule types evaluate to
// false with a logged warning instead of failing the sweep.
type Evaluator struct{}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

func (e *Evaluator) Evaluate(rule UnlockRule, stats member.Stats) bool {
	switch rule.Type {
	case RuleRegistration:
		return stats.Registered
	case RulePurchaseCount:
		return stats.PurchaseCount >= rule.Threshold
	case RuleTotalSpent:
		return stats.TotalSpentCents >= rule.Threshold
	case RuleVisitCount:
		return stats.VisitCount >= rule.Threshold
	case RulePointsReached:
		return stats.Points >= rule.Threshold
	case RuleDaysSinceRegistration:
		return stats.DaysSinceRegistration >= rule.Threshold
	case RuleRewardRedeemed:
		return stats.RewardsRedeemed >= rule.Threshold
	case RuleReferrals:
		return stats.Referrals >= rule.Threshold
	case RuleChallengesCompleted:
		return stats.ChallengesCompleted >= rule.Threshold
	case RuleStreakDays:
		return stats.StreakDays >= rule.Threshold
	case RuleTierReached:
		return stats.Tier >= rule.Threshold
	case RuleCustom:
		ok, err := e.evaluateExpression(rule.Expression, statsContext(stats))
		if err != nil {
			zap.L().Warn("custom badge rule failed to evaluate",
				zap.String("expression", rule.Expression),
				zap.Error(err),
			)
			return false
		}
		return ok
	default:
		zap.L().Warn("unknown badge rule type", zap.String("type", string(rule.Type)))
		return false
	}
}

func statsContext(stats member.Stats) map[string]any {
	return map[string]any{
		"purchase_count":          stats.PurchaseCount,
		"total_spent_cents":       stats.TotalSpentCents,
		"visit_count":             stats.VisitCount,
		"points":                  stats.Points,
		"rewards_redeemed":        stats.RewardsRedeemed,
		"referrals":               stats.Referrals,
		"challenges_completed":    stats.ChallengesCompleted,
		"streak_days":             stats.StreakDays,
		"tier":                    stats.Tier,
		"days_since_registration": stats.DaysSinceRegistration,
	}
}

// evaluateExpression evaluates a CEL expression whose variables are the
// snapshot fields exposed as top-level identifiers.
func (e *Evaluator) evaluateExpression(expression string, context map[string]any) (bool, error) {
	if expression == "" {
		return false, fmt.Errorf("expression must not be empty")
	}

	envOpts := make([]cel.EnvOption, 0, len(context))
	for key := range context {
		envOpts = append(envOpts, cel.Variable(key, cel.DynType))
	}

	env, err := cel.NewEnv(envOpts...)
	if err != nil {
		return false, fmt.Errorf("failed to create CEL env: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return false, fmt.Errorf("failed to compile expression: %w", issues.Err())
	}

	program, err := env.Program(ast)
	if err != nil {
		return false, fmt.Errorf("failed to create CEL program: %w", err)
	}

	result, _, err := program.Eval(context)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate expression: %w", err)
	}

	boolean, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return a boolean, got %T", result.Value())
	}

	return boolean, nil
}
