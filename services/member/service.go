package member

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"omnilypro-gaming/pkg/db/option"
	"omnilypro-gaming/pkg/errutil"
	"omnilypro-gaming/pkg/repository"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	members repository.Repository[Member]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,

		members: repository.ProvideStore[Member](p.DB),
	}
}

func (s *Service) Get(ctx context.Context, tenantID, memberID string) (*Member, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	m, err := s.members.FindOne(ctx, &Member{TenantID: tenantID, ID: memberID})
	if err != nil {
		zap.L().Error("failed to query member", zap.Error(err))
		return nil, err
	}

	if m == nil {
		return nil, errutil.NotFound("member not found", nil)
	}

	return m, nil
}

type RegisterParams struct {
	TenantID   string
	ExternalID string
	Email      string
	Name       string
}

func (s *Service) Register(ctx context.Context, p RegisterParams) (*Member, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	if exist, err := s.members.FindOne(ctx, &Member{TenantID: p.TenantID, ExternalID: p.ExternalID}); err != nil {
		return nil, err
	} else if exist != nil {
		return nil, errutil.Conflict("member already registered", nil)
	}

	now := time.Now()
	m := &Member{
		ID:           s.node.Generate().String(),
		TenantID:     p.TenantID,
		ExternalID:   p.ExternalID,
		Email:        p.Email,
		Name:         p.Name,
		RegisteredAt: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.members.Create(ctx, m); err != nil {
		zap.L().Error("failed to create member", zap.Error(err))
		return nil, err
	}

	return m, nil
}

// LockTx re-reads a member inside the given transaction with a row-level
// lock, serializing concurrent plays for the same member.
func (s *Service) LockTx(ctx context.Context, tx *gorm.DB, tenantID, memberID string) (*Member, error) {
	m, err := s.members.WithTrx(tx).FindOne(ctx, &Member{TenantID: tenantID, ID: memberID}, option.WithLockingUpdate())
	if err != nil {
		return nil, err
	}

	if m == nil {
		return nil, errutil.NotFound("member not found", nil)
	}

	return m, nil
}

// AddCountersTx applies activity counter increments atomically within tx.
func (s *Service) AddCountersTx(ctx context.Context, tx *gorm.DB, memberID string, delta CounterDelta) error {
	updates := map[string]any{"updated_at": time.Now()}

	if delta.Purchases != 0 {
		updates["purchase_count"] = gorm.Expr("purchase_count + ?", delta.Purchases)
	}
	if delta.SpentCents != 0 {
		updates["total_spent_cents"] = gorm.Expr("total_spent_cents + ?", delta.SpentCents)
	}
	if delta.Visits != 0 {
		updates["visit_count"] = gorm.Expr("visit_count + ?", delta.Visits)
	}
	if delta.RewardsRedeemed != 0 {
		updates["rewards_redeemed"] = gorm.Expr("rewards_redeemed + ?", delta.RewardsRedeemed)
	}
	if delta.Referrals != 0 {
		updates["referrals"] = gorm.Expr("referrals + ?", delta.Referrals)
	}
	if delta.ChallengesCompleted != 0 {
		updates["challenges_completed"] = gorm.Expr("challenges_completed + ?", delta.ChallengesCompleted)
	}

	if len(updates) == 1 {
		return nil
	}

	return s.members.WithTrx(tx).Update(ctx, memberID, updates)
}

// AddFreeSpinsTx grants extra plays won through game outcomes.
func (s *Service) AddFreeSpinsTx(ctx context.Context, tx *gorm.DB, memberID string, count int64) error {
	return s.members.WithTrx(tx).Update(ctx, memberID, map[string]any{
		"free_spins": gorm.Expr("free_spins + ?", count),
		"updated_at": time.Now(),
	})
}

// TouchActivity maintains the daily streak counter: consecutive calendar
// days with at least one activity extend the streak, a gap resets it to 1.
// Days are bucketed at midnight in now's location, the same boundary the
// games use for their daily play limits.
func (s *Service) TouchActivity(ctx context.Context, tx *gorm.DB, m *Member, now time.Time) error {
	today := dayStart(now, now.Location())

	streak := int64(1)
	if m.LastActivityAt != nil {
		last := dayStart(*m.LastActivityAt, now.Location())
		switch {
		case last.Equal(today):
			streak = m.StreakDays
		case last.AddDate(0, 0, 1).Equal(today):
			streak = m.StreakDays + 1
		}
	}

	return s.members.WithTrx(tx).Update(ctx, m.ID, map[string]any{
		"streak_days":      streak,
		"last_activity_at": now,
		"updated_at":       now,
	})
}

func dayStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// SnapshotStats returns a fresh statistics snapshot for rule evaluation.
// The snapshot is always re-read from the store, never taken from a value
// loaded before the triggering activity was recorded.
func (s *Service) SnapshotStats(ctx context.Context, tenantID, memberID string) (Stats, error) {
	m, err := s.Get(ctx, tenantID, memberID)
	if err != nil {
		return Stats{}, err
	}

	return m.Snapshot(time.Now()), nil
}

// ListIDs returns all member IDs for a tenant, used by the periodic
// challenge generation sweep.
func (s *Service) ListIDs(ctx context.Context, tenantID string) ([]string, error) {
	members, err := s.members.Find(ctx, &Member{TenantID: tenantID})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// Tenants returns the distinct tenant IDs that have members, used to fan
// out scheduled jobs per tenant.
func (s *Service) Tenants(ctx context.Context) ([]string, error) {
	var tenants []string
	if err := s.db.WithContext(ctx).Model(&Member{}).Distinct("tenant_id").Pluck("tenant_id", &tenants).Error; err != nil {
		return nil, err
	}
	return tenants, nil
}
