package member

import "time"

// Member is the per-tenant player record. The activity counters are the
// statistics badge rules and challenge progress are evaluated against.
type Member struct {
	ID                  string     `gorm:"column:id;primaryKey" json:"id"`
	TenantID            string     `gorm:"column:tenant_id;index:idx_members_tenant_member,unique" json:"tenant_id"`
	ExternalID          string     `gorm:"column:external_id;index:idx_members_tenant_member,unique" json:"external_id"`
	Email               string     `gorm:"column:email" json:"email"`
	Name                string     `gorm:"column:name" json:"name"`
	PurchaseCount       int64      `gorm:"column:purchase_count" json:"purchase_count"`
	TotalSpentCents     int64      `gorm:"column:total_spent_cents" json:"total_spent_cents"`
	VisitCount          int64      `gorm:"column:visit_count" json:"visit_count"`
	RewardsRedeemed     int64      `gorm:"column:rewards_redeemed" json:"rewards_redeemed"`
	Referrals           int64      `gorm:"column:referrals" json:"referrals"`
	ChallengesCompleted int64      `gorm:"column:challenges_completed" json:"challenges_completed"`
	StreakDays          int64      `gorm:"column:streak_days" json:"streak_days"`
	Tier                int64      `gorm:"column:tier" json:"tier"`
	FreeSpins           int64      `gorm:"column:free_spins" json:"free_spins"`
	LastActivityAt      *time.Time `gorm:"column:last_activity_at" json:"last_activity_at,omitempty"`
	RegisteredAt        time.Time  `gorm:"column:registered_at" json:"registered_at"`
	CreatedAt           time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

// Stats is a read-only snapshot of a member's statistics taken at
// evaluation time. Points comes from the ledger balance and is filled in
// by the caller that owns the ledger dependency.
type Stats struct {
	Registered            bool
	PurchaseCount         int64
	TotalSpentCents       int64
	VisitCount            int64
	Points                int64
	RewardsRedeemed       int64
	Referrals             int64
	ChallengesCompleted   int64
	StreakDays            int64
	Tier                  int64
	DaysSinceRegistration int64
}

// CounterDelta carries increments applied to a member's activity counters.
type CounterDelta struct {
	Purchases           int64
	SpentCents          int64
	Visits              int64
	RewardsRedeemed     int64
	Referrals           int64
	ChallengesCompleted int64
}

// Snapshot derives the evaluation view of a member at the given instant.
func (m *Member) Snapshot(now time.Time) Stats {
	return Stats{
		Registered:            true,
		PurchaseCount:         m.PurchaseCount,
		TotalSpentCents:       m.TotalSpentCents,
		VisitCount:            m.VisitCount,
		RewardsRedeemed:       m.RewardsRedeemed,
		Referrals:             m.Referrals,
		ChallengesCompleted:   m.ChallengesCompleted,
		StreakDays:            m.StreakDays,
		Tier:                  m.Tier,
		DaysSinceRegistration: int64(now.Sub(m.RegisteredAt).Hours() / 24),
	}
}
