package challenge

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type Period string

const (
	PeriodDaily  Period = "daily"
	PeriodWeekly Period = "weekly"
)

// RequirementKind names the activity a challenge counts. Amounts are
// euro cents for RequirementSpend, plain counts otherwise.
type RequirementKind string

const (
	RequirementPurchases RequirementKind = "purchases"
	RequirementSpend     RequirementKind = "spend"
	RequirementVisits    RequirementKind = "visits"
	RequirementPoints    RequirementKind = "points"
	RequirementPlays     RequirementKind = "plays"
	RequirementReferrals RequirementKind = "referrals"
	RequirementRedeems   RequirementKind = "redeem_rewards"
)

type RewardKind string

const (
	RewardPoints    RewardKind = "points"
	RewardBadge     RewardKind = "badge"
	RewardFreeSpins RewardKind = "free_spins"
	RewardDiscount  RewardKind = "discount"
)

// Reward is a tagged union: Kind selects which of the remaining fields
// is meaningful. Disbursement matches on Kind exhaustively.
type Reward struct {
	Kind            RewardKind `json:"kind"`
	Points          int64      `json:"points,omitempty"`
	BadgeID         string     `json:"badge_id,omitempty"`
	FreeSpins       int64      `json:"free_spins,omitempty"`
	DiscountPercent int64      `json:"discount_percent,omitempty"`
}

type Template struct {
	ID          string                         `gorm:"column:id;primaryKey" json:"id"`
	TenantID    string                         `gorm:"column:tenant_id;index" json:"tenant_id"`
	Name        string                         `gorm:"column:name" json:"name"`
	Description string                         `gorm:"column:description" json:"description"`
	Period      Period                         `gorm:"column:period" json:"period"`
	Requirement RequirementKind                `gorm:"column:requirement" json:"requirement"`
	Target      int64                          `gorm:"column:target" json:"target"`
	Rewards     datatypes.JSONSlice[Reward]    `gorm:"column:rewards" json:"rewards"`
	Active      bool                           `gorm:"column:active" json:"active"`
	CreatedAt   time.Time                      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time                      `gorm:"column:updated_at" json:"updated_at"`
}

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
)

// Instance is a per-member, time-boxed copy of a template. The unique
// index on (tenant, member, template, period_key) makes generation
// idempotent within a period.
type Instance struct {
	ID             string          `gorm:"column:id;primaryKey" json:"id"`
	TenantID       string          `gorm:"column:tenant_id;index:idx_challenge_instances_period,unique" json:"tenant_id"`
	MemberID       string          `gorm:"column:member_id;index:idx_challenge_instances_period,unique" json:"member_id"`
	TemplateID     string          `gorm:"column:template_id;index:idx_challenge_instances_period,unique" json:"template_id"`
	PeriodKey      string          `gorm:"column:period_key;index:idx_challenge_instances_period,unique" json:"period_key"`
	Requirement    RequirementKind `gorm:"column:requirement" json:"requirement"`
	Current        int64           `gorm:"column:current" json:"current"`
	Target         int64           `gorm:"column:target" json:"target"`
	Percentage     int64           `gorm:"column:percentage" json:"percentage"`
	Status         Status          `gorm:"column:status" json:"status"`
	RewardsClaimed bool            `gorm:"column:rewards_claimed" json:"rewards_claimed"`
	StartedAt      time.Time       `gorm:"column:started_at" json:"started_at"`
	ExpiresAt      time.Time       `gorm:"column:expires_at" json:"expires_at"`
	CompletedAt    *time.Time      `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt      time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func periodKey(period Period, now time.Time) string {
	switch period {
	case PeriodWeekly:
		year, week := now.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	default:
		return now.Format("2006-01-02")
	}
}

func periodDuration(period Period) time.Duration {
	if period == PeriodWeekly {
		return 7 * 24 * time.Hour
	}
	return 24 * time.Hour
}

func instancesPerPeriod(period Period) int {
	if period == PeriodWeekly {
		return 2
	}
	return 3
}
