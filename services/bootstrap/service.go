package bootstrap

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"omnilypro-gaming/services/badge"
	"omnilypro-gaming/services/challenge"
	"omnilypro-gaming/services/discount"
	"omnilypro-gaming/services/ledger"
	"omnilypro-gaming/services/member"
	"omnilypro-gaming/services/notification"
	"omnilypro-gaming/services/prize"
	"omnilypro-gaming/services/scratch"
	"omnilypro-gaming/services/slot"
	"omnilypro-gaming/services/wheel"
)

// Service migrates the schema at startup and seeds a tenant with a
// playable default configuration for all three games, the stock
// challenge templates, and the stock badges.
type Service struct {
	db         *gorm.DB
	wheels     *wheel.Service
	slots      *slot.Service
	scratches  *scratch.Service
	challenges *challenge.Service
	badges     *badge.Service
}

type ServiceParams struct {
	fx.In
	DB         *gorm.DB
	Wheels     *wheel.Service
	Slots      *slot.Service
	Scratches  *scratch.Service
	Challenges *challenge.Service
	Badges     *badge.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:         p.DB,
		wheels:     p.Wheels,
		slots:      p.Slots,
		scratches:  p.Scratches,
		challenges: p.Challenges,
		badges:     p.Badges,
	}
}

func (s *Service) Migrate() error {
	return s.db.AutoMigrate(
		&member.Member{},
		&ledger.Entry{},
		&ledger.Balance{},
		&ledger.CreditPool{},
		&discount.Code{},
		&notification.Notification{},
		&wheel.Config{},
		&wheel.Spin{},
		&slot.Config{},
		&slot.Play{},
		&scratch.Config{},
		&scratch.Card{},
		&challenge.Template{},
		&challenge.Instance{},
		&badge.Badge{},
		&badge.MemberBadge{},
	)
}

// EnsureDefaults seeds every game surface that has no configuration yet
// for the tenant. Already-configured surfaces are left untouched, so the
// call is safe to repeat.
func (s *Service) EnsureDefaults(ctx context.Context, tenantID string) error {
	if err := s.seedWheel(ctx, tenantID); err != nil {
		return err
	}
	if err := s.seedSlot(ctx, tenantID); err != nil {
		return err
	}
	if err := s.seedScratch(ctx, tenantID); err != nil {
		return err
	}
	if err := s.seedChallenges(ctx, tenantID); err != nil {
		return err
	}
	if err := s.seedBadges(ctx, tenantID); err != nil {
		return err
	}

	zap.L().Info("tenant defaults ensured", zap.String("tenant_id", tenantID))

	return nil
}

func (s *Service) configured(ctx context.Context, model any, tenantID string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(model).Where("tenant_id = ?", tenantID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Service) seedWheel(ctx context.Context, tenantID string) error {
	if ok, err := s.configured(ctx, &wheel.Config{}, tenantID); err != nil || ok {
		return err
	}

	_, err := s.wheels.UpsertConfig(ctx, wheel.UpsertConfigParams{
		TenantID:      tenantID,
		Enabled:       true,
		MaxDailySpins: 3,
		Sectors: []wheel.Sector{
			{Label: "10 Punti", Type: prize.OutcomePoints, Value: 10, Weight: 25, ColorHex: "#FF6B6B"},
			{Label: "25 Punti", Type: prize.OutcomePoints, Value: 25, Weight: 20, ColorHex: "#4ECDC4"},
			{Label: "50 Punti", Type: prize.OutcomePoints, Value: 50, Weight: 15, ColorHex: "#45B7D1"},
			{Label: "Riprova", Type: prize.OutcomeNothing, Weight: 15, ColorHex: "#95A5A6"},
			{Label: "Sconto 10%", Type: prize.OutcomeDiscount, Value: 10, Weight: 10, ColorHex: "#F9CA24"},
			{Label: "100 Punti", Type: prize.OutcomePoints, Value: 100, Weight: 5, ColorHex: "#6C5CE7"},
			{Label: "Sconto 20%", Type: prize.OutcomeDiscount, Value: 20, Weight: 5, ColorHex: "#FD79A8"},
			{Label: "Spin Gratis", Type: prize.OutcomeFreeSpin, Value: 1, Weight: 5, ColorHex: "#00B894"},
		},
	})
	return err
}

func (s *Service) seedSlot(ctx context.Context, tenantID string) error {
	if ok, err := s.configured(ctx, &slot.Config{}, tenantID); err != nil || ok {
		return err
	}

	_, err := s.slots.UpsertConfig(ctx, slot.UpsertConfigParams{
		TenantID:      tenantID,
		Enabled:       true,
		MaxDailySpins: 3,
		Symbols: []slot.SymbolWeight{
			{Symbol: "🍒", Weight: 30},
			{Symbol: "🍋", Weight: 25},
			{Symbol: "🍊", Weight: 20},
			{Symbol: slot.SymbolDiamond, Weight: 12},
			{Symbol: slot.SymbolStar, Weight: 8},
			{Symbol: slot.SymbolSeven, Weight: 5},
		},
		Combos: []slot.Combo{
			{Label: "Jackpot", Pattern: slot.PatternJackpot, Symbol: slot.SymbolSeven, Type: prize.OutcomePoints, Value: 1000},
			{Label: "Tripla Diamante", Pattern: slot.PatternThreeMatch, Symbol: slot.SymbolDiamond, Type: prize.OutcomePoints, Value: 500},
			{Label: "Tripla", Pattern: slot.PatternThreeMatch, Type: prize.OutcomePoints, Value: 200},
			{Label: "Coppia", Pattern: slot.PatternTwoMatch, Type: prize.OutcomePoints, Value: 50},
			{Label: "Diamante Fortunato", Pattern: slot.PatternAnyDiamond, Type: prize.OutcomePoints, Value: 20},
			{Label: "Stella Fortunata", Pattern: slot.PatternAnyStar, Type: prize.OutcomeFreeSpin, Value: 1},
		},
	})
	return err
}

func (s *Service) seedScratch(ctx context.Context, tenantID string) error {
	if ok, err := s.configured(ctx, &scratch.Config{}, tenantID); err != nil || ok {
		return err
	}

	_, err := s.scratches.UpsertConfig(ctx, scratch.UpsertConfigParams{
		TenantID:      tenantID,
		Enabled:       true,
		MaxDailyCards: 3,
		Symbols: []scratch.Symbol{
			{Symbol: "🍒", Points: 50},
			{Symbol: "🍋", Points: 75},
			{Symbol: "💎", Points: 100},
			{Symbol: "⭐", Points: 200},
			{Symbol: "🎁", Points: 500},
		},
		Tiers: []scratch.TierBand{
			{Tier: scratch.TierJackpot, Symbol: "🎁", Weight: 5},
			{Tier: scratch.TierLarge, Symbol: "⭐", Weight: 10},
			{Tier: scratch.TierMedium, Symbol: "💎", Weight: 20},
			{Tier: scratch.TierSmall, Symbol: "🍒", Weight: 30},
			{Tier: scratch.TierNoWin, Weight: 35},
		},
	})
	return err
}

func (s *Service) seedChallenges(ctx context.Context, tenantID string) error {
	existing, err := s.challenges.ListTemplates(ctx, tenantID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	templates := []challenge.CreateTemplateParams{
		{
			Name: "Cliente del Giorno", Description: "Fai una visita oggi",
			Period: challenge.PeriodDaily, Requirement: challenge.RequirementVisits, Target: 1,
			Rewards: []challenge.Reward{{Kind: challenge.RewardPoints, Points: 20}},
		},
		{
			Name: "Spesa Giornaliera", Description: "Spendi almeno 20 euro oggi",
			Period: challenge.PeriodDaily, Requirement: challenge.RequirementSpend, Target: 2000,
			Rewards: []challenge.Reward{{Kind: challenge.RewardPoints, Points: 50}},
		},
		{
			Name: "Giocatore Accanito", Description: "Gioca 3 partite oggi",
			Period: challenge.PeriodDaily, Requirement: challenge.RequirementPlays, Target: 3,
			Rewards: []challenge.Reward{
				{Kind: challenge.RewardPoints, Points: 30},
				{Kind: challenge.RewardFreeSpins, FreeSpins: 1},
			},
		},
		{
			Name: "Settimana di Acquisti", Description: "Fai 3 acquisti questa settimana",
			Period: challenge.PeriodWeekly, Requirement: challenge.RequirementPurchases, Target: 3,
			Rewards: []challenge.Reward{{Kind: challenge.RewardPoints, Points: 150}},
		},
		{
			Name: "Grande Spenditore", Description: "Spendi almeno 100 euro questa settimana",
			Period: challenge.PeriodWeekly, Requirement: challenge.RequirementSpend, Target: 10000,
			Rewards: []challenge.Reward{
				{Kind: challenge.RewardPoints, Points: 200},
				{Kind: challenge.RewardDiscount, DiscountPercent: 10},
			},
		},
		{
			Name: "Ambasciatore", Description: "Porta un amico questa settimana",
			Period: challenge.PeriodWeekly, Requirement: challenge.RequirementReferrals, Target: 1,
			Rewards: []challenge.Reward{{Kind: challenge.RewardPoints, Points: 100}},
		},
	}

	for _, t := range templates {
		t.TenantID = tenantID
		if _, err := s.challenges.CreateTemplate(ctx, t); err != nil {
			return err
		}
	}

	return nil
}

func (s *Service) seedBadges(ctx context.Context, tenantID string) error {
	existing, err := s.badges.List(ctx, tenantID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	defaults := []badge.CreateParams{
		{
			Name: "Benvenuto", Description: "Ti sei registrato al programma", Icon: "👋",
			Rule: badge.UnlockRule{Type: badge.RuleRegistration}, RewardPoints: 10,
		},
		{
			Name: "Primo Acquisto", Description: "Hai fatto il tuo primo acquisto", Icon: "🛍️",
			Rule: badge.UnlockRule{Type: badge.RulePurchaseCount, Threshold: 1}, RewardPoints: 25,
		},
		{
			Name: "Cliente Fedele", Description: "10 visite in negozio", Icon: "❤️",
			Rule: badge.UnlockRule{Type: badge.RuleVisitCount, Threshold: 10}, RewardPoints: 50,
		},
		{
			Name: "Grande Spenditore", Description: "Hai speso 500 euro in totale", Icon: "💰",
			Rule: badge.UnlockRule{Type: badge.RuleTotalSpent, Threshold: 50000}, RewardPoints: 100,
		},
		{
			Name: "Collezionista di Punti", Description: "Hai raggiunto 1000 punti", Icon: "🏆",
			Rule: badge.UnlockRule{Type: badge.RulePointsReached, Threshold: 1000}, RewardPoints: 100,
		},
		{
			Name: "Settimana Perfetta", Description: "7 giorni di attività consecutivi", Icon: "🔥",
			Rule: badge.UnlockRule{Type: badge.RuleStreakDays, Threshold: 7}, RewardPoints: 75,
		},
	}

	for _, b := range defaults {
		b.TenantID = tenantID
		if _, err := s.badges.Create(ctx, b); err != nil {
			return err
		}
	}

	return nil
}
