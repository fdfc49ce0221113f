package scratch

import (
	"time"

	"gorm.io/datatypes"
)

const gridSize = 9

// Tier is the predetermined outcome band drawn when a card is bought.
type Tier string

const (
	TierJackpot Tier = "jackpot"
	TierLarge   Tier = "large"
	TierMedium  Tier = "medium"
	TierSmall   Tier = "small"
	TierNoWin   Tier = "no_win"
)

// Symbol pairs a scratch symbol with the points it pays when matched.
// The declared order also fixes the scan order of win detection, so
// reordering symbols changes which match is reported on mixed grids.
type Symbol struct {
	Symbol string `json:"symbol"`
	Points int64  `json:"points"`
}

// TierBand gives one tier its draw weight and, for winning tiers, the
// symbol planted on the card.
type TierBand struct {
	Tier   Tier   `json:"tier"`
	Symbol string `json:"symbol,omitempty"`
	Weight int64  `json:"weight"`
}

type Config struct {
	ID              string                        `gorm:"column:id;primaryKey" json:"id"`
	TenantID        string                        `gorm:"column:tenant_id;uniqueIndex" json:"tenant_id"`
	Enabled         bool                          `gorm:"column:enabled" json:"enabled"`
	MaxDailyCards   int64                         `gorm:"column:max_daily_cards" json:"max_daily_cards"`
	RevealThreshold float64                       `gorm:"column:reveal_threshold" json:"reveal_threshold"`
	Symbols         datatypes.JSONSlice[Symbol]   `gorm:"column:symbols" json:"symbols"`
	Tiers           datatypes.JSONSlice[TierBand] `gorm:"column:tiers" json:"tiers"`
	CreatedAt       time.Time                     `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time                     `gorm:"column:updated_at" json:"updated_at"`
}

type CardStatus string

const (
	CardActive    CardStatus = "active"
	CardCompleted CardStatus = "completed"
)

// Card is one bought scratch card. The grid and its predetermined tier
// are fixed at purchase time; reveals only uncover what is already
// there.
type Card struct {
	ID             string                      `gorm:"column:id;primaryKey" json:"id"`
	TenantID       string                      `gorm:"column:tenant_id;index:idx_scratch_cards_member_day" json:"tenant_id"`
	MemberID       string                      `gorm:"column:member_id;index:idx_scratch_cards_member_day" json:"member_id"`
	Grid           datatypes.JSONSlice[string] `gorm:"column:grid" json:"grid"`
	Revealed       datatypes.JSONSlice[bool]   `gorm:"column:revealed" json:"revealed"`
	Tier           Tier                        `gorm:"column:tier" json:"tier"`
	WinningSymbol  string                      `gorm:"column:winning_symbol" json:"-"`
	MatchedSymbol  string                      `gorm:"column:matched_symbol" json:"matched_symbol,omitempty"`
	Status         CardStatus                  `gorm:"column:status" json:"status"`
	RewardsClaimed bool                        `gorm:"column:rewards_claimed" json:"rewards_claimed"`
	PointsAwarded  int64                       `gorm:"column:points_awarded" json:"points_awarded"`
	CreatedAt      time.Time                   `gorm:"column:created_at;index:idx_scratch_cards_member_day" json:"created_at"`
	UpdatedAt      time.Time                   `gorm:"column:updated_at" json:"updated_at"`
}

// Result is returned on every reveal: the updated card plus whether
// this reveal produced the match.
type Result struct {
	Card *Card `json:"card"`
	Won  bool  `json:"won"`
}
