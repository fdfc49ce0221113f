package scratch

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"omnilypro-gaming/pkg/db/option"
	"omnilypro-gaming/pkg/errutil"
	"omnilypro-gaming/pkg/repository"
	"omnilypro-gaming/services/activity"
	"omnilypro-gaming/services/internal/configcache"
	"omnilypro-gaming/services/ledger"
	"omnilypro-gaming/services/member"
	"omnilypro-gaming/services/notification"
	"omnilypro-gaming/services/prize"
)

const defaultRevealThreshold = 0.5

type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	configs repository.Repository[Config]
	cards   repository.Repository[Card]

	selector      *prize.Selector
	generator     *Generator
	cache         *configcache.Cache[Config]
	members       *member.Service
	ledger        *ledger.Service
	notifications *notification.Service
	activities    *activity.Service
}

type ServiceParams struct {
	fx.In
	DB            *gorm.DB
	Node          *snowflake.Node
	Members       *member.Service
	Ledger        *ledger.Service
	Notifications *notification.Service
	Activities    *activity.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,

		configs: repository.ProvideStore[Config](p.DB),
		cards:   repository.ProvideStore[Card](p.DB),

		selector:      prize.NewSelector(),
		generator:     NewGenerator(),
		cache:         configcache.New[Config]("scratch", 5*time.Minute),
		members:       p.Members,
		ledger:        p.Ledger,
		notifications: p.Notifications,
		activities:    p.Activities,
	}
}

func (s *Service) GetConfig(ctx context.Context, tenantID string) (*Config, error) {
	cfg, err := s.cache.Load(ctx, tenantID, func(ctx context.Context) (*Config, error) {
		return s.configs.FindOne(ctx, &Config{TenantID: tenantID})
	})
	if err != nil {
		return nil, err
	}
	if cfg == nil || !cfg.Enabled || len(cfg.Symbols) == 0 || len(cfg.Tiers) == 0 {
		return nil, errutil.NotFound("scratch card is not configured", nil)
	}

	return cfg, nil
}

type UpsertConfigParams struct {
	TenantID        string
	Enabled         bool
	MaxDailyCards   int64
	RevealThreshold float64
	Symbols         []Symbol
	Tiers           []TierBand
}

func (s *Service) UpsertConfig(ctx context.Context, p UpsertConfigParams) (*Config, error) {
	if p.MaxDailyCards <= 0 {
		return nil, errutil.BadRequest("max_daily_cards must be > 0", nil)
	}
	if len(p.Symbols)*2 < gridSize {
		return nil, errutil.BadRequest("scratch alphabet needs at least 5 symbols", nil)
	}

	known := make(map[string]bool, len(p.Symbols))
	for _, symbol := range p.Symbols {
		known[symbol.Symbol] = true
	}
	for _, band := range p.Tiers {
		if band.Weight < 0 {
			return nil, errutil.BadRequest("tier weight must be >= 0", nil)
		}
		if band.Tier != TierNoWin && !known[band.Symbol] {
			return nil, errutil.BadRequest(fmt.Sprintf("tier %q names an unknown symbol", band.Tier), nil)
		}
	}

	if p.RevealThreshold <= 0 || p.RevealThreshold > 1 {
		p.RevealThreshold = defaultRevealThreshold
	}

	now := time.Now()
	existing, err := s.configs.FindOne(ctx, &Config{TenantID: p.TenantID})
	if err != nil {
		return nil, err
	}

	if existing == nil {
		existing = &Config{
			ID:        s.node.Generate().String(),
			TenantID:  p.TenantID,
			CreatedAt: now,
		}
	}

	existing.Enabled = p.Enabled
	existing.MaxDailyCards = p.MaxDailyCards
	existing.RevealThreshold = p.RevealThreshold
	existing.Symbols = datatypes.NewJSONSlice(p.Symbols)
	existing.Tiers = datatypes.NewJSONSlice(p.Tiers)
	existing.UpdatedAt = now

	if err := s.db.WithContext(ctx).Save(existing).Error; err != nil {
		return nil, err
	}

	s.cache.Invalidate(p.TenantID)

	return existing, nil
}

// Buy draws the outcome tier, generates the matching grid, and stores
// the card face down. Reveals only uncover the predetermined result.
func (s *Service) Buy(ctx context.Context, tenantID, memberID string) (*Card, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	cfg, err := s.GetConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	entries := make([]prize.Entry, 0, len(cfg.Tiers))
	for _, band := range cfg.Tiers {
		entries = append(entries, prize.Entry{Label: string(band.Tier), Weight: band.Weight})
	}

	var card *Card
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		m, err := s.members.LockTx(ctx, tx, tenantID, memberID)
		if err != nil {
			return err
		}

		if err := s.checkDailyLimit(ctx, tx, cfg, m); err != nil {
			return err
		}

		drawn, err := s.selector.Pick(entries)
		if err != nil {
			return err
		}

		tier := Tier(drawn.Label)
		band := findBand(cfg.Tiers, tier)

		var grid []string
		if tier == TierNoWin {
			grid, err = s.generator.GenerateGridNoMatch(cfg.Symbols)
		} else {
			grid, err = s.generator.GenerateGridWithMatch(band.Symbol, cfg.Symbols)
		}
		if err != nil {
			return err
		}

		now := time.Now()
		card = &Card{
			ID:            s.node.Generate().String(),
			TenantID:      tenantID,
			MemberID:      memberID,
			Grid:          datatypes.NewJSONSlice(grid),
			Revealed:      datatypes.NewJSONSlice(make([]bool, gridSize)),
			Tier:          tier,
			WinningSymbol: band.Symbol,
			Status:        CardActive,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		return s.cards.WithTrx(tx).Create(ctx, card)
	}); err != nil {
		return nil, err
	}

	s.activities.RecordGamePlay(ctx, tenantID, memberID, 0)

	return card, nil
}

// Reveal uncovers one cell and re-scans all revealed cells for a
// 3-of-a-kind. The completion transition is a conditional update so a
// doubly delivered reveal can never pay out twice.
func (s *Service) Reveal(ctx context.Context, tenantID, memberID, cardID string, cell int) (*Result, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	if cell < 0 || cell >= gridSize {
		return nil, errutil.BadRequest("cell must be in [0, 8]", nil)
	}

	cfg, err := s.GetConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var result *Result
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		card, err := s.cards.WithTrx(tx).FindOne(ctx,
			&Card{ID: cardID, TenantID: tenantID, MemberID: memberID},
			option.WithLockingUpdate())
		if err != nil {
			return err
		}
		if card == nil {
			return errutil.NotFound("scratch card not found", nil)
		}
		if card.Status != CardActive {
			return errutil.Conflict("scratch card already completed", nil)
		}

		revealed := []bool(card.Revealed)
		revealed[cell] = true

		matched, won := DetectMatch(card.Grid, revealed, cfg.Symbols)

		updates := map[string]any{
			"revealed":   datatypes.NewJSONSlice(revealed),
			"updated_at": time.Now(),
		}

		if won {
			points := symbolPoints(cfg.Symbols, matched)

			res := tx.WithContext(ctx).Model(&Card{}).
				Where("id = ? AND status = ? AND rewards_claimed = ?", card.ID, CardActive, false).
				Updates(map[string]any{
					"revealed":        datatypes.NewJSONSlice(revealed),
					"status":          CardCompleted,
					"rewards_claimed": true,
					"matched_symbol":  matched,
					"points_awarded":  points,
					"updated_at":      time.Now(),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errutil.Conflict("scratch card already completed", nil)
			}

			if points > 0 {
				if _, err := s.ledger.CreditTx(ctx, tx, ledger.AddEntryParams{
					TenantID:    tenantID,
					MemberID:    memberID,
					Amount:      points,
					ReferenceID: fmt.Sprintf("scratch:%s", card.ID),
					Description: fmt.Sprintf("Gratta e Vinci: %s", matched),
				}); err != nil {
					return err
				}
			}

			card.Revealed = datatypes.NewJSONSlice(revealed)
			card.Status = CardCompleted
			card.RewardsClaimed = true
			card.MatchedSymbol = matched
			card.PointsAwarded = points
			result = &Result{Card: card, Won: true}
			return nil
		}

		if allRevealed(revealed) {
			updates["status"] = CardCompleted
			card.Status = CardCompleted
		}

		if err := s.cards.WithTrx(tx).Update(ctx, card.ID, updates); err != nil {
			return err
		}

		card.Revealed = datatypes.NewJSONSlice(revealed)
		result = &Result{Card: card, Won: false}
		return nil
	}); err != nil {
		return nil, err
	}

	if result.Won {
		s.notifications.Notify(ctx, tenantID, memberID, notification.KindGamePrize,
			"Gratta e Vinci", fmt.Sprintf("Hai vinto %d punti!", result.Card.PointsAwarded))

		if result.Card.PointsAwarded > 0 {
			if err := s.activities.Record(ctx, tenantID, memberID, activity.KindPoints, result.Card.PointsAwarded); err != nil {
				span.RecordError(err)
			}
		}
	}

	return result, nil
}

func (s *Service) checkDailyLimit(ctx context.Context, tx *gorm.DB, cfg *Config, m *member.Member) error {
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var boughtToday int64
	if err := tx.WithContext(ctx).Model(&Card{}).
		Where("tenant_id = ? AND member_id = ? AND created_at >= ?", m.TenantID, m.ID, dayStart).
		Count(&boughtToday).Error; err != nil {
		return err
	}

	if boughtToday >= cfg.MaxDailyCards {
		return errutil.TooManyRequest("daily scratch card limit reached", nil)
	}

	return nil
}

func (s *Service) GetCard(ctx context.Context, tenantID, memberID, cardID string) (*Card, error) {
	card, err := s.cards.FindOne(ctx, &Card{ID: cardID, TenantID: tenantID, MemberID: memberID})
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, errutil.NotFound("scratch card not found", nil)
	}

	return card, nil
}

func (s *Service) History(ctx context.Context, tenantID, memberID string) ([]*Card, error) {
	return s.cards.Find(ctx, &Card{TenantID: tenantID, MemberID: memberID},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "desc",
			Allow:   map[string]bool{"created_at": true},
		}))
}

func findBand(bands []TierBand, tier Tier) TierBand {
	for _, b := range bands {
		if b.Tier == tier {
			return b
		}
	}
	return TierBand{Tier: tier}
}

func symbolPoints(symbols []Symbol, symbol string) int64 {
	for _, s := range symbols {
		if s.Symbol == symbol {
			return s.Points
		}
	}
	return 0
}

func allRevealed(revealed []bool) bool {
	for _, r := range revealed {
		if !r {
			return false
		}
	}
	return true
}
