package notification

import "time"

type Kind string

const (
	KindGamePrize          Kind = "game_prize"
	KindChallengeCompleted Kind = "challenge_completed"
	KindBadgeUnlocked      Kind = "badge_unlocked"
)

type Notification struct {
	ID        string     `gorm:"column:id;primaryKey" json:"id"`
	TenantID  string     `gorm:"column:tenant_id" json:"tenant_id"`
	MemberID  string     `gorm:"column:member_id" json:"member_id"`
	Kind      Kind       `gorm:"column:kind" json:"kind"`
	Title     string     `gorm:"column:title" json:"title"`
	Message   string     `gorm:"column:message" json:"message"`
	ReadAt    *time.Time `gorm:"column:read_at" json:"read_at,omitempty"`
	CreatedAt time.Time  `gorm:"column:created_at" json:"created_at"`
}
