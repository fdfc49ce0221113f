package slot

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
	"omnilypro-gaming/services/discount"
	"omnilypro-gaming/services/internal/configcache"
	"omnilypro-gaming/services/ledger"
	"omnilypro-gaming/services/member"
	"omnilypro-gaming/services/notification"
	"omnilypro-gaming/services/prize"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	configs repository.Repository[Config]
	plays   repository.Repository[Play]

	engine        *Engine
	cache         *configcache.Cache[Config]
	members       *member.Service
	ledger        *ledger.Service
	discounts     *discount.Service
	notifications *notification.Service
	activities    *activity.Service
}

type ServiceParams struct {
	fx.In
	DB            *gorm.DB
	Node          *snowflake.Node
	Members       *member.Service
	Ledger        *ledger.Service
	Discounts     *discount.Service
	Notifications *notification.Service
	Activities    *activity.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,

		configs: repository.ProvideStore[Config](p.DB),
		plays:   repository.ProvideStore[Play](p.DB),

		engine:        NewEngine(),
		cache:         configcache.New[Config]("slot", 5*time.Minute),
		members:       p.Members,
		ledger:        p.Ledger,
		discounts:     p.Discounts,
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
	if cfg == nil || !cfg.Enabled || len(cfg.Symbols) == 0 {
		return nil, errutil.NotFound("slot machine is not configured", nil)
	}

	return cfg, nil
}

type UpsertConfigParams struct {
	TenantID      string
	Enabled       bool
	MaxDailySpins int64
	Symbols       []SymbolWeight
	Combos        []Combo
}

func (s *Service) UpsertConfig(ctx context.Context, p UpsertConfigParams) (*Config, error) {
	if p.MaxDailySpins <= 0 {
		return nil, errutil.BadRequest("max_daily_spins must be > 0", nil)
	}

	for _, symbol := range p.Symbols {
		if symbol.Weight < 0 {
			return nil, errutil.BadRequest("symbol weight must be >= 0", nil)
		}
	}
	for _, combo := range p.Combos {
		if combo.Pattern == PatternJackpot && combo.Symbol == "" {
			return nil, errutil.BadRequest("jackpot combo requires a symbol", nil)
		}
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
	existing.MaxDailySpins = p.MaxDailySpins
	existing.Symbols = datatypes.NewJSONSlice(p.Symbols)
	existing.Combos = datatypes.NewJSONSlice(p.Combos)
	existing.UpdatedAt = now

	if err := s.db.WithContext(ctx).Save(existing).Error; err != nil {
		return nil, err
	}

	s.cache.Invalidate(p.TenantID)

	return existing, nil
}

// Spin draws the reels and resolves the payout. Eligibility, draw,
// persistence, and disbursement commit in one transaction under the
// member row lock.
func (s *Service) Spin(ctx context.Context, tenantID, memberID string) (*Result, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	cfg, err := s.GetConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var result *Result
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		m, err := s.members.LockTx(ctx, tx, tenantID, memberID)
		if err != nil {
			return err
		}

		if err := s.checkDailyLimit(ctx, tx, cfg, m); err != nil {
			return err
		}

		reels, err := s.engine.SpinReels(cfg.Symbols)
		if err != nil {
			return err
		}

		play := &Play{
			ID:          s.node.Generate().String(),
			TenantID:    tenantID,
			MemberID:    memberID,
			Reels:       datatypes.NewJSONSlice(reels[:]),
			OutcomeType: prize.OutcomeNothing,
			CreatedAt:   time.Now(),
		}

		combo, won := MatchCombo(reels, cfg.Combos)
		if won {
			play.ComboLabel = combo.Label
			play.OutcomeType = combo.Type
			play.Value = combo.Value

			if err := s.disburseTx(ctx, tx, play, combo); err != nil {
				return err
			}
		}

		if err := s.plays.WithTrx(tx).Create(ctx, play); err != nil {
			return err
		}

		result = &Result{Play: play, Won: won, Combo: combo}
		return nil
	}); err != nil {
		return nil, err
	}

	if result.Won {
		s.notifications.Notify(ctx, tenantID, memberID, notification.KindGamePrize,
			"Slot Machine", fmt.Sprintf("Hai vinto: %s", result.Combo.Label))
	}

	s.activities.RecordGamePlay(ctx, tenantID, memberID, result.Play.PointsAwarded)

	return result, nil
}

func (s *Service) checkDailyLimit(ctx context.Context, tx *gorm.DB, cfg *Config, m *member.Member) error {
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var playedToday int64
	if err := tx.WithContext(ctx).Model(&Play{}).
		Where("tenant_id = ? AND member_id = ? AND created_at >= ?", m.TenantID, m.ID, dayStart).
		Count(&playedToday).Error; err != nil {
		return err
	}

	if playedToday >= cfg.MaxDailySpins {
		return errutil.TooManyRequest("daily spin limit reached", nil)
	}

	return nil
}

func (s *Service) disburseTx(ctx context.Context, tx *gorm.DB, play *Play, combo *Combo) error {
	switch combo.Type {
	case prize.OutcomePoints:
		entry, err := s.ledger.CreditTx(ctx, tx, ledger.AddEntryParams{
			TenantID:    play.TenantID,
			MemberID:    play.MemberID,
			Amount:      combo.Value,
			ReferenceID: fmt.Sprintf("slot:%s", play.ID),
			Description: fmt.Sprintf("Slot Machine: %s", combo.Label),
		})
		if err != nil {
			return err
		}
		play.PointsAwarded = entry.Amount
	case prize.OutcomeDiscount:
		code, err := s.discounts.IssueTx(ctx, tx, play.TenantID, play.MemberID, combo.Value, "slot")
		if err != nil {
			return err
		}
		play.DiscountCode = code.Code
	case prize.OutcomeFreeSpin:
		grant := combo.Value
		if grant <= 0 {
			grant = 1
		}
		if err := s.members.AddFreeSpinsTx(ctx, tx, play.MemberID, grant); err != nil {
			return err
		}
	case prize.OutcomeFreeProduct, prize.OutcomeNothing:
	default:
		return errutil.UnprocessableEntity(fmt.Sprintf("unsupported slot outcome %q", combo.Type), nil)
	}

	return nil
}

func (s *Service) History(ctx context.Context, tenantID, memberID string) ([]*Play, error) {
	return s.plays.Find(ctx, &Play{TenantID: tenantID, MemberID: memberID},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "desc",
			Allow:   map[string]bool{"created_at": true},
		}))
}
