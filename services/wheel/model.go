package wheel

import (
	"time"

	"gorm.io/datatypes"

	"omnilypro-gaming/services/prize"
)

// Sector is one slice of the wheel. Weight drives the draw, ColorHex is
// presentation only.
type Sector struct {
	Label    string            `json:"label"`
	Type     prize.OutcomeType `json:"type"`
	Value    int64             `json:"value"`
	Weight   int64             `json:"weight"`
	ColorHex string            `json:"color_hex,omitempty"`
}

type Config struct {
	ID            string                        `gorm:"column:id;primaryKey" json:"id"`
	TenantID      string                        `gorm:"column:tenant_id;uniqueIndex" json:"tenant_id"`
	Enabled       bool                          `gorm:"column:enabled" json:"enabled"`
	MaxDailySpins int64                         `gorm:"column:max_daily_spins" json:"max_daily_spins"`
	Sectors       datatypes.JSONSlice[Sector]   `gorm:"column:sectors" json:"sectors"`
	CreatedAt     time.Time                     `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time                     `gorm:"column:updated_at" json:"updated_at"`
}

// Spin is the immutable record of one play, counted for the daily limit.
type Spin struct {
	ID            string            `gorm:"column:id;primaryKey" json:"id"`
	TenantID      string            `gorm:"column:tenant_id;index:idx_wheel_spins_member_day" json:"tenant_id"`
	MemberID      string            `gorm:"column:member_id;index:idx_wheel_spins_member_day" json:"member_id"`
	SectorLabel   string            `gorm:"column:sector_label" json:"sector_label"`
	OutcomeType   prize.OutcomeType `gorm:"column:outcome_type" json:"outcome_type"`
	Value         int64             `gorm:"column:value" json:"value"`
	PointsAwarded int64             `gorm:"column:points_awarded" json:"points_awarded"`
	DiscountCode  string            `gorm:"column:discount_code" json:"discount_code,omitempty"`
	FreeSpinUsed  bool              `gorm:"column:free_spin_used" json:"free_spin_used"`
	Angle         float64           `gorm:"column:angle" json:"angle"`
	CreatedAt     time.Time         `gorm:"column:created_at;index:idx_wheel_spins_member_day" json:"created_at"`
}

// Result is what the caller renders: the winning sector plus the final
// rotation angle that must land on it.
type Result struct {
	Spin        *Spin  `json:"spin"`
	SectorIndex int    `json:"sector_index"`
	Sector      Sector `json:"sector"`
}
