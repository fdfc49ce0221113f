package badge

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"omnilypro-gaming/services/member"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestEvaluateRules(t *testing.T) {
	stats := member.Stats{
		Registered:            true,
		PurchaseCount:         5,
		TotalSpentCents:       12000,
		VisitCount:            10,
		Points:                300,
		RewardsRedeemed:       2,
		Referrals:             1,
		ChallengesCompleted:   4,
		StreakDays:            7,
		Tier:                  2,
		DaysSinceRegistration: 30,
	}

	tests := []struct {
		name string
		rule UnlockRule
		want bool
	}{
		{"registration is always true", UnlockRule{Type: RuleRegistration}, true},
		{"purchase count at threshold", UnlockRule{Type: RulePurchaseCount, Threshold: 5}, true},
		{"purchase count above threshold", UnlockRule{Type: RulePurchaseCount, Threshold: 6}, false},
		{"total spent", UnlockRule{Type: RuleTotalSpent, Threshold: 10000}, true},
		{"visit count", UnlockRule{Type: RuleVisitCount, Threshold: 11}, false},
		{"points reached", UnlockRule{Type: RulePointsReached, Threshold: 300}, true},
		{"days since registration", UnlockRule{Type: RuleDaysSinceRegistration, Threshold: 31}, false},
		{"rewards redeemed", UnlockRule{Type: RuleRewardRedeemed, Threshold: 2}, true},
		{"referrals", UnlockRule{Type: RuleReferrals, Threshold: 2}, false},
		{"challenges completed", UnlockRule{Type: RuleChallengesCompleted, Threshold: 4}, true},
		{"streak days", UnlockRule{Type: RuleStreakDays, Threshold: 7}, true},
		{"tier reached", UnlockRule{Type: RuleTierReached, Threshold: 3}, false},
		{"unknown type is false", UnlockRule{Type: RuleType("moon_phase"), Threshold: 1}, false},
	}

	e := NewEvaluator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, e.Evaluate(tt.rule, stats))
		})
	}
}

func TestEvaluateCustomExpression(t *testing.T) {
	stats := member.Stats{
		Registered:      true,
		PurchaseCount:   5,
		VisitCount:      10,
		TotalSpentCents: 12000,
	}

	e := NewEvaluator()

	rule := UnlockRule{Type: RuleCustom, Expression: "purchase_count >= 3 && visit_count >= 10"}
	require.True(t, e.Evaluate(rule, stats))

	rule.Expression = "total_spent_cents > 20000"
	require.False(t, e.Evaluate(rule, stats))
}

func TestEvaluateCustomExpressionFailuresAreFalse(t *testing.T) {
	e := NewEvaluator()
	stats := member.Stats{Registered: true}

	for _, expression := range []string{
		"",
		"this is not CEL",
		"points + 1",
		"unknown_variable > 3",
	} {
		rule := UnlockRule{Type: RuleCustom, Expression: expression}
		require.False(t, e.Evaluate(rule, stats), "expression %q", expression)
	}
}
