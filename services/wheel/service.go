package wheel

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
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

const presentationRotations = 5

type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	configs repository.Repository[Config]
	spins   repository.Repository[Spin]

	selector      *prize.Selector
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
		spins:   repository.ProvideStore[Spin](p.DB),

		selector:      prize.NewSelector(),
		cache:         configcache.New[Config]("wheel", 5*time.Minute),
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
	if cfg == nil || !cfg.Enabled || len(cfg.Sectors) == 0 {
		return nil, errutil.NotFound("wheel is not configured", nil)
	}

	return cfg, nil
}

type UpsertConfigParams struct {
	TenantID      string
	Enabled       bool
	MaxDailySpins int64
	Sectors       []Sector
}

func (s *Service) UpsertConfig(ctx context.Context, p UpsertConfigParams) (*Config, error) {
	if p.MaxDailySpins <= 0 {
		return nil, errutil.BadRequest("max_daily_spins must be > 0", nil)
	}

	var total int64
	for _, sector := range p.Sectors {
		if sector.Weight < 0 {
			return nil, errutil.BadRequest("sector weight must be >= 0", nil)
		}
		total += sector.Weight
	}
	if total != 100 {
		zap.L().Warn("wheel sector weights do not sum to 100",
			zap.String("tenant_id", p.TenantID),
			zap.Int64("total", total),
		)
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
	existing.Sectors = datatypes.NewJSONSlice(p.Sectors)
	existing.UpdatedAt = now

	if err := s.db.WithContext(ctx).Save(existing).Error; err != nil {
		return nil, err
	}

	s.cache.Invalidate(p.TenantID)

	return existing, nil
}

// Spin runs one play: eligibility, draw, persist, and disbursement all
// commit in a single transaction keyed to the locked member row.
func (s *Service) Spin(ctx context.Context, tenantID, memberID string) (*Result, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	cfg, err := s.GetConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	entries := make([]prize.Entry, 0, len(cfg.Sectors))
	for _, sector := range cfg.Sectors {
		entries = append(entries, prize.Entry{
			Label:  sector.Label,
			Type:   sector.Type,
			Value:  sector.Value,
			Weight: sector.Weight,
		})
	}

	var result *Result
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		m, err := s.members.LockTx(ctx, tx, tenantID, memberID)
		if err != nil {
			return err
		}

		usedFreeSpin, err := s.checkDailyLimit(ctx, tx, cfg, m)
		if err != nil {
			return err
		}

		won, err := s.selector.Pick(entries)
		if err != nil {
			return err
		}

		index := sectorIndex(cfg.Sectors, won.Label)
		segment := 360.0 / float64(len(cfg.Sectors))

		spin := &Spin{
			ID:           s.node.Generate().String(),
			TenantID:     tenantID,
			MemberID:     memberID,
			SectorLabel:  won.Label,
			OutcomeType:  won.Type,
			Value:        won.Value,
			FreeSpinUsed: usedFreeSpin,
			Angle:        presentationRotations*360 + float64(index)*segment + segment/2,
			CreatedAt:    time.Now(),
		}

		if err := s.disburseTx(ctx, tx, spin, won, memberID); err != nil {
			return err
		}

		if err := s.spins.WithTrx(tx).Create(ctx, spin); err != nil {
			return err
		}

		if usedFreeSpin {
			if err := s.members.AddFreeSpinsTx(ctx, tx, memberID, -1); err != nil {
				return err
			}
		}

		result = &Result{Spin: spin, SectorIndex: index, Sector: cfg.Sectors[index]}
		return nil
	}); err != nil {
		return nil, err
	}

	if result.Spin.OutcomeType != prize.OutcomeNothing {
		s.notifications.Notify(ctx, tenantID, memberID, notification.KindGamePrize,
			"Ruota della Fortuna", fmt.Sprintf("Hai vinto: %s", result.Spin.SectorLabel))
	}

	s.activities.RecordGamePlay(ctx, tenantID, memberID, result.Spin.PointsAwarded)

	return result, nil
}

// checkDailyLimit counts committed plays for the current calendar day
// under the member lock. Free spins won today extend the allowance, and
// a challenge-granted free spin is consumed once the base allowance is
// gone.
func (s *Service) checkDailyLimit(ctx context.Context, tx *gorm.DB, cfg *Config, m *member.Member) (bool, error) {
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var playedToday int64
	if err := tx.WithContext(ctx).Model(&Spin{}).
		Where("tenant_id = ? AND member_id = ? AND created_at >= ?", m.TenantID, m.ID, dayStart).
		Count(&playedToday).Error; err != nil {
		return false, err
	}

	var freeWonToday int64
	if err := tx.WithContext(ctx).Model(&Spin{}).
		Where("tenant_id = ? AND member_id = ? AND created_at >= ? AND outcome_type = ?",
			m.TenantID, m.ID, dayStart, prize.OutcomeFreeSpin).
		Count(&freeWonToday).Error; err != nil {
		return false, err
	}

	if playedToday < cfg.MaxDailySpins+freeWonToday {
		return false, nil
	}

	if m.FreeSpins > 0 {
		return true, nil
	}

	return false, errutil.TooManyRequest("daily spin limit reached", nil)
}

func (s *Service) disburseTx(ctx context.Context, tx *gorm.DB, spin *Spin, won prize.Entry, memberID string) error {
	switch won.Type {
	case prize.OutcomePoints:
		entry, err := s.ledger.CreditTx(ctx, tx, ledger.AddEntryParams{
			TenantID:    spin.TenantID,
			MemberID:    memberID,
			Amount:      won.Value,
			ReferenceID: fmt.Sprintf("wheel:%s", spin.ID),
			Description: fmt.Sprintf("Ruota della Fortuna: %s", won.Label),
		})
		if err != nil {
			return err
		}
		spin.PointsAwarded = entry.Amount
	case prize.OutcomeDiscount:
		code, err := s.discounts.IssueTx(ctx, tx, spin.TenantID, memberID, won.Value, "wheel")
		if err != nil {
			return err
		}
		spin.DiscountCode = code.Code
	case prize.OutcomeFreeSpin:
		// The extra allowance is derived from today's free_spin outcomes.
	case prize.OutcomeFreeProduct, prize.OutcomeNothing:
	default:
		return errutil.UnprocessableEntity(fmt.Sprintf("unsupported wheel outcome %q", won.Type), nil)
	}

	return nil
}

func sectorIndex(sectors []Sector, label string) int {
	for i, sector := range sectors {
		if sector.Label == label {
			return i
		}
	}
	return 0
}

// History lists a member's plays, newest first.
func (s *Service) History(ctx context.Context, tenantID, memberID string) ([]*Spin, error) {
	return s.spins.Find(ctx, &Spin{TenantID: tenantID, MemberID: memberID},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "desc",
			Allow:   map[string]bool{"created_at": true},
		}))
}
