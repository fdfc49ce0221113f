package discount

import "time"

// Code is a single-use percentage discount granted by a game or challenge
// outcome.
type Code struct {
	ID         string     `gorm:"column:id;primaryKey" json:"id"`
	TenantID   string     `gorm:"column:tenant_id" json:"tenant_id"`
	MemberID   string     `gorm:"column:member_id" json:"member_id"`
	Code       string     `gorm:"column:code;uniqueIndex" json:"code"`
	Percent    int64      `gorm:"column:percent" json:"percent"`
	Source     string     `gorm:"column:source" json:"source"`
	ExpiresAt  time.Time  `gorm:"column:expires_at" json:"expires_at"`
	RedeemedAt *time.Time `gorm:"column:redeemed_at" json:"redeemed_at,omitempty"`
	CreatedAt  time.Time  `gorm:"column:created_at" json:"created_at"`
}
