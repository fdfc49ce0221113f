package badge

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
	"gorm.io/gorm/clause"

	"omnilypro-gaming/pkg/errutil"
	"omnilypro-gaming/pkg/repository"
	"omnilypro-gaming/services/internal/configcache"
	"omnilypro-gaming/services/ledger"
	"omnilypro-gaming/services/member"
	"omnilypro-gaming/services/notification"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	badges       repository.Repository[Badge]
	memberBadges repository.Repository[MemberBadge]

	evaluator     *Evaluator
	cache         *configcache.Cache[[]Badge]
	members       *member.Service
	ledger        *ledger.Service
	notifications *notification.Service
}

type ServiceParams struct {
	fx.In
	DB            *gorm.DB
	Node          *snowflake.Node
	Members       *member.Service
	Ledger        *ledger.Service
	Notifications *notification.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,

		badges:       repository.ProvideStore[Badge](p.DB),
		memberBadges: repository.ProvideStore[MemberBadge](p.DB),

		evaluator:     NewEvaluator(),
		cache:         configcache.New[[]Badge]("badges", 5*time.Minute),
		members:       p.Members,
		ledger:        p.Ledger,
		notifications: p.Notifications,
	}
}

func (s *Service) activeBadges(ctx context.Context, tenantID string) ([]Badge, error) {
	loaded, err := s.cache.Load(ctx, tenantID, func(ctx context.Context) (*[]Badge, error) {
		rows, err := s.badges.Find(ctx, &Badge{TenantID: tenantID, Active: true})
		if err != nil {
			return nil, err
		}

		badges := make([]Badge, 0, len(rows))
		for _, row := range rows {
			badges = append(badges, *row)
		}
		return &badges, nil
	})
	if err != nil {
		return nil, err
	}

	return *loaded, nil
}

type CreateParams struct {
	TenantID     string
	Name         string
	Description  string
	Icon         string
	Rule         UnlockRule
	RewardPoints int64
}

func (s *Service) Create(ctx context.Context, p CreateParams) (*Badge, error) {
	now := time.Now()
	b := &Badge{
		ID:           s.node.Generate().String(),
		TenantID:     p.TenantID,
		Name:         p.Name,
		Description:  p.Description,
		Icon:         p.Icon,
		Rule:         datatypes.NewJSONType(p.Rule),
		RewardPoints: p.RewardPoints,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.badges.Create(ctx, b); err != nil {
		zap.L().Error("failed to create badge", zap.Error(err))
		return nil, err
	}

	s.cache.Invalidate(p.TenantID)

	return b, nil
}

func (s *Service) List(ctx context.Context, tenantID string) ([]Badge, error) {
	return s.activeBadges(ctx, tenantID)
}

func (s *Service) ListUnlocked(ctx context.Context, tenantID, memberID string) ([]*MemberBadge, error) {
	return s.memberBadges.Find(ctx, &MemberBadge{TenantID: tenantID, MemberID: memberID})
}

// Unlock grants a badge at most once per (member, badge). The unique
// index decides the race, not a prior read: a concurrent duplicate insert
// collapses into a no-op and is reported as already unlocked.
func (s *Service) Unlock(ctx context.Context, tenantID, memberID, badgeID string) (bool, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	b, err := s.badges.FindOne(ctx, &Badge{TenantID: tenantID, ID: badgeID})
	if err != nil {
		return false, err
	}
	if b == nil {
		return false, errutil.NotFound("badge not found", nil)
	}

	var unlocked bool
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		unlocked, err = s.UnlockTx(ctx, tx, b, memberID)
		return err
	}); err != nil {
		return false, err
	}

	if unlocked {
		s.notifications.Notify(ctx, tenantID, memberID, notification.KindBadgeUnlocked,
			b.Name, fmt.Sprintf("Hai sbloccato il badge %q!", b.Name))
	}

	return unlocked, nil
}

// UnlockTx performs the conditional insert and reward grant within a
// caller-owned transaction. Returns false when the badge was already
// unlocked, which is an idempotent no-op, never an error.
func (s *Service) UnlockTx(ctx context.Context, tx *gorm.DB, b *Badge, memberID string) (bool, error) {
	record := &MemberBadge{
		ID:         s.node.Generate().String(),
		TenantID:   b.TenantID,
		MemberID:   memberID,
		BadgeID:    b.ID,
		UnlockedAt: time.Now(),
	}

	res := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(record)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	if b.RewardPoints > 0 {
		if _, err := s.ledger.CreditTx(ctx, tx, ledger.AddEntryParams{
			TenantID:    b.TenantID,
			MemberID:    memberID,
			Amount:      b.RewardPoints,
			ReferenceID: fmt.Sprintf("badge:%s:%s", b.ID, memberID),
			Description: fmt.Sprintf("Badge reward: %s", b.Name),
		}); err != nil {
			return false, err
		}
	}

	return true, nil
}

// UnlockByIDTx resolves the badge first, for callers that disburse a
// badge grant inside their own transaction.
func (s *Service) UnlockByIDTx(ctx context.Context, tx *gorm.DB, tenantID, memberID, badgeID string) (bool, error) {
	b, err := s.badges.FindOne(ctx, &Badge{TenantID: tenantID, ID: badgeID})
	if err != nil {
		return false, err
	}
	if b == nil {
		return false, errutil.NotFound("badge not found", nil)
	}

	return s.UnlockTx(ctx, tx, b, memberID)
}

// Sweep re-evaluates every active badge for a member against a fresh
// statistics snapshot and unlocks the ones whose rule now holds.
func (s *Service) Sweep(ctx context.Context, tenantID, memberID string) (int, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	stats, err := s.members.SnapshotStats(ctx, tenantID, memberID)
	if err != nil {
		return 0, err
	}

	points, _, err := s.ledger.GetBalance(ctx, tenantID, memberID)
	if err != nil {
		return 0, err
	}
	stats.Points = points

	badges, err := s.activeBadges(ctx, tenantID)
	if err != nil {
		return 0, err
	}

	unlockedRows, err := s.ListUnlocked(ctx, tenantID, memberID)
	if err != nil {
		return 0, err
	}
	owned := make(map[string]bool, len(unlockedRows))
	for _, row := range unlockedRows {
		owned[row.BadgeID] = true
	}

	var unlockedCount int
	for i := range badges {
		b := badges[i]
		if owned[b.ID] {
			continue
		}

		if !s.evaluator.Evaluate(b.Rule.Data(), stats) {
			continue
		}

		unlocked, err := s.Unlock(ctx, tenantID, memberID, b.ID)
		if err != nil {
			zap.L().Error("failed to unlock badge during sweep",
				zap.String("badge_id", b.ID),
				zap.String("member_id", memberID),
				zap.Error(err),
			)
			continue
		}
		if unlocked {
			unlockedCount++
		}
	}

	return unlockedCount, nil
}
