package badge

import (
	"time"

	"gorm.io/datatypes"
)

// RuleType enumerates the supported unlock rule kinds. Each kind reads a
// single member statistic and compares it against the rule threshold.
type RuleType string

const (
	RuleRegistration          RuleType = "registration"
	RulePurchaseCount         RuleType = "purchase_count"
	RuleTotalSpent            RuleType = "total_spent"
	RuleVisitCount            RuleType = "visit_count"
	RulePointsReached         RuleType = "points_reached"
	RuleDaysSinceRegistration RuleType = "days_since_registration"
	RuleRewardRedeemed        RuleType = "reward_redeemed"
	RuleReferrals             RuleType = "referrals"
	RuleChallengesCompleted   RuleType = "challenges_completed"
	RuleStreakDays            RuleType = "streak_days"
	RuleTierReached           RuleType = "tier_reached"

	// RuleCustom evaluates a CEL expression over the statistics snapshot.
	RuleCustom RuleType = "custom"
)

// UnlockRule is the typed unlock condition stored on a badge.
// Expression is only read for RuleCustom.
type UnlockRule struct {
	Type       RuleType `json:"type"`
	Threshold  int64    `json:"threshold"`
	Expression string   `json:"expression,omitempty"`
}

type Badge struct {
	ID           string                          `gorm:"column:id;primaryKey" json:"id"`
	TenantID     string                          `gorm:"column:tenant_id;index" json:"tenant_id"`
	Name         string                          `gorm:"column:name" json:"name"`
	Description  string                          `gorm:"column:description" json:"description"`
	Icon         string                          `gorm:"column:icon" json:"icon"`
	Rule         datatypes.JSONType[UnlockRule]  `gorm:"column:rule" json:"rule"`
	RewardPoints int64                           `gorm:"column:reward_points" json:"reward_points"`
	Active       bool                            `gorm:"column:active" json:"active"`
	CreatedAt    time.Time                       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time                       `gorm:"column:updated_at" json:"updated_at"`
}

// MemberBadge existence is the unlock signal. The unique index makes the
// unlock idempotent at the storage layer.
type MemberBadge struct {
	ID         string    `gorm:"column:id;primaryKey" json:"id"`
	TenantID   string    `gorm:"column:tenant_id;index:idx_member_badges_unique,unique" json:"tenant_id"`
	MemberID   string    `gorm:"column:member_id;index:idx_member_badges_unique,unique" json:"member_id"`
	BadgeID    string    `gorm:"column:badge_id;index:idx_member_badges_unique,unique" json:"badge_id"`
	UnlockedAt time.Time `gorm:"column:unlocked_at" json:"unlocked_at"`
}
