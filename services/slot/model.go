package slot

import (
	"time"

	"gorm.io/datatypes"

	"omnilypro-gaming/services/prize"
)

// Pattern names a reel combination rule. Rules are evaluated in the
// order they appear in the configuration, so their relative position is
// part of the contract, not cosmetic.
type Pattern string

const (
	// PatternJackpot matches only when all three reels equal the
	// combo's Symbol, conventionally the highest symbol on the machine.
	PatternJackpot Pattern = "jackpot"
	// PatternThreeMatch matches any identical triple, or a specific
	// triple when Symbol is set.
	PatternThreeMatch Pattern = "three_match"
	// PatternTwoMatch matches when any two of the three reels agree.
	PatternTwoMatch Pattern = "two_match"
	// PatternAnyDiamond and PatternAnyStar match when at least one reel
	// shows the named symbol, regardless of the others.
	PatternAnyDiamond Pattern = "any_diamond"
	PatternAnyStar    Pattern = "any_star"
)

const (
	SymbolSeven   = "7️⃣"
	SymbolDiamond = "💎"
	SymbolStar    = "⭐"
)

// SymbolWeight gives one reel symbol its draw weight. The three reels
// draw independently over the same alphabet.
type SymbolWeight struct {
	Symbol string `json:"symbol"`
	Weight int64  `json:"weight"`
}

// Combo is one winning rule with its payout.
type Combo struct {
	Label   string            `json:"label"`
	Pattern Pattern           `json:"pattern"`
	Symbol  string            `json:"symbol,omitempty"`
	Type    prize.OutcomeType `json:"type"`
	Value   int64             `json:"value"`
}

type Config struct {
	ID            string                            `gorm:"column:id;primaryKey" json:"id"`
	TenantID      string                            `gorm:"column:tenant_id;uniqueIndex" json:"tenant_id"`
	Enabled       bool                              `gorm:"column:enabled" json:"enabled"`
	MaxDailySpins int64                             `gorm:"column:max_daily_spins" json:"max_daily_spins"`
	Symbols       datatypes.JSONSlice[SymbolWeight] `gorm:"column:symbols" json:"symbols"`
	Combos        datatypes.JSONSlice[Combo]        `gorm:"column:combos" json:"combos"`
	CreatedAt     time.Time                         `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time                         `gorm:"column:updated_at" json:"updated_at"`
}

// Play is the immutable record of one spin, counted for the daily limit.
type Play struct {
	ID            string                      `gorm:"column:id;primaryKey" json:"id"`
	TenantID      string                      `gorm:"column:tenant_id;index:idx_slot_plays_member_day" json:"tenant_id"`
	MemberID      string                      `gorm:"column:member_id;index:idx_slot_plays_member_day" json:"member_id"`
	Reels         datatypes.JSONSlice[string] `gorm:"column:reels" json:"reels"`
	ComboLabel    string                      `gorm:"column:combo_label" json:"combo_label,omitempty"`
	OutcomeType   prize.OutcomeType           `gorm:"column:outcome_type" json:"outcome_type"`
	Value         int64                       `gorm:"column:value" json:"value"`
	PointsAwarded int64                       `gorm:"column:points_awarded" json:"points_awarded"`
	DiscountCode  string                      `gorm:"column:discount_code" json:"discount_code,omitempty"`
	CreatedAt     time.Time                   `gorm:"column:created_at;index:idx_slot_plays_member_day" json:"created_at"`
}

// Result is what the caller renders: the reel triple plus the winning
// combo, if any.
type Result struct {
	Play  *Play  `json:"play"`
	Won   bool   `json:"won"`
	Combo *Combo `json:"combo,omitempty"`
}
