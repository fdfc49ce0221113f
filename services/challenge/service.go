package challenge

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"omnilypro-gaming/pkg/db/option"
	"omnilypro-gaming/pkg/errutil"
	"omnilypro-gaming/pkg/repository"
	"omnilypro-gaming/services/badge"
	"omnilypro-gaming/services/discount"
	"omnilypro-gaming/services/ledger"
	"omnilypro-gaming/services/member"
	"omnilypro-gaming/services/notification"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	templates repository.Repository[Template]
	instances repository.Repository[Instance]

	members       *member.Service
	ledger        *ledger.Service
	badges        *badge.Service
	discounts     *discount.Service
	notifications *notification.Service
}

type ServiceParams struct {
	fx.In
	DB            *gorm.DB
	Node          *snowflake.Node
	Members       *member.Service
	Ledger        *ledger.Service
	Badges        *badge.Service
	Discounts     *discount.Service
	Notifications *notification.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,

		templates: repository.ProvideStore[Template](p.DB),
		instances: repository.ProvideStore[Instance](p.DB),

		members:       p.Members,
		ledger:        p.Ledger,
		badges:        p.Badges,
		discounts:     p.Discounts,
		notifications: p.Notifications,
	}
}

type CreateTemplateParams struct {
	TenantID    string
	Name        string
	Description string
	Period      Period
	Requirement RequirementKind
	Target      int64
	Rewards     []Reward
}

func (s *Service) CreateTemplate(ctx context.Context, p CreateTemplateParams) (*Template, error) {
	if p.Target <= 0 {
		return nil, errutil.BadRequest("target must be > 0", nil)
	}

	now := time.Now()
	t := &Template{
		ID:          s.node.Generate().String(),
		TenantID:    p.TenantID,
		Name:        p.Name,
		Description: p.Description,
		Period:      p.Period,
		Requirement: p.Requirement,
		Target:      p.Target,
		Rewards:     datatypes.NewJSONSlice(p.Rewards),
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.templates.Create(ctx, t); err != nil {
		zap.L().Error("failed to create challenge template", zap.Error(err))
		return nil, err
	}

	return t, nil
}

func (s *Service) ListTemplates(ctx context.Context, tenantID string) ([]*Template, error) {
	return s.templates.Find(ctx, &Template{TenantID: tenantID, Active: true})
}

// Generate picks a random subset of active templates for the period (3
// daily, 2 weekly) and creates one instance per pick. Re-running within
// the same period is a no-op thanks to the period unique index.
func (s *Service) Generate(ctx context.Context, tenantID, memberID string, period Period) ([]*Instance, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	templates, err := s.templates.Find(ctx, &Template{TenantID: tenantID, Period: period, Active: true})
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		return nil, errutil.NotFound("no challenge templates configured", nil)
	}

	rand.Shuffle(len(templates), func(i, j int) {
		templates[i], templates[j] = templates[j], templates[i]
	})

	count := instancesPerPeriod(period)
	if count > len(templates) {
		count = len(templates)
	}

	now := time.Now()
	key := periodKey(period, now)

	created := make([]*Instance, 0, count)
	for _, t := range templates[:count] {
		inst := &Instance{
			ID:          s.node.Generate().String(),
			TenantID:    tenantID,
			MemberID:    memberID,
			TemplateID:  t.ID,
			PeriodKey:   key,
			Requirement: t.Requirement,
			Target:      t.Target,
			Status:      StatusActive,
			StartedAt:   now,
			ExpiresAt:   now.Add(periodDuration(period)),
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(inst)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			continue
		}

		created = append(created, inst)
	}

	return created, nil
}

func (s *Service) List(ctx context.Context, tenantID, memberID string) ([]*Instance, error) {
	return s.instances.Find(ctx, &Instance{TenantID: tenantID, MemberID: memberID},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "desc",
			Allow:   map[string]bool{"created_at": true},
		}))
}

// RecordActivity applies an activity contribution to every active
// matching instance. The first crossing of the target flips the instance
// to completed and disburses rewards exactly once: the flip is a
// conditional update guarded by status and rewards_claimed, and it
// commits in the same transaction as the reward grants.
func (s *Service) RecordActivity(ctx context.Context, tenantID, memberID string, kind RequirementKind, amount int64) error {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	if amount <= 0 {
		return nil
	}

	now := time.Now()
	active, err := s.instances.Find(ctx, &Instance{
		TenantID:    tenantID,
		MemberID:    memberID,
		Requirement: kind,
		Status:      StatusActive,
	}, option.ApplyOperator(option.Condition{
		Field:    "expires_at",
		Operator: option.GT,
		Value:    now,
	}))
	if err != nil {
		return err
	}

	var completed []*Instance
	for _, candidate := range active {
		instanceID := candidate.ID

		if err := s.db.Transaction(func(tx *gorm.DB) error {
			inst, err := s.instances.WithTrx(tx).FindOne(ctx, &Instance{ID: instanceID}, option.WithLockingUpdate())
			if err != nil {
				return err
			}
			if inst == nil || inst.Status != StatusActive {
				return nil
			}

			newCurrent := inst.Current + amount
			percentage := min(int64(100), (newCurrent*100+inst.Target/2)/inst.Target)

			if err := s.instances.WithTrx(tx).Update(ctx, inst.ID, map[string]any{
				"current":    newCurrent,
				"percentage": percentage,
				"updated_at": now,
			}); err != nil {
				return err
			}

			if newCurrent < inst.Target {
				return nil
			}

			res := tx.Model(&Instance{}).
				Where("id = ? AND status = ? AND rewards_claimed = ?", inst.ID, StatusActive, false).
				Updates(map[string]any{
					"status":          StatusCompleted,
					"rewards_claimed": true,
					"completed_at":    now,
					"updated_at":      now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return nil
			}

			if err := s.disburseTx(ctx, tx, inst); err != nil {
				return err
			}

			if err := s.members.AddCountersTx(ctx, tx, memberID, member.CounterDelta{ChallengesCompleted: 1}); err != nil {
				return err
			}

			completed = append(completed, inst)
			return nil
		}); err != nil {
			zap.L().Error("failed to record challenge activity",
				zap.String("instance_id", instanceID),
				zap.Error(err),
			)
			return err
		}
	}

	for _, inst := range completed {
		template, err := s.templates.FindOne(ctx, &Template{ID: inst.TemplateID})
		name := "Challenge"
		if err == nil && template != nil {
			name = template.Name
		}

		s.notifications.Notify(ctx, tenantID, memberID, notification.KindChallengeCompleted,
			name, fmt.Sprintf("Hai completato la sfida %q!", name))
	}

	return nil
}

func (s *Service) disburseTx(ctx context.Context, tx *gorm.DB, inst *Instance) error {
	template, err := s.templates.WithTrx(tx).FindOne(ctx, &Template{ID: inst.TemplateID})
	if err != nil {
		return err
	}
	if template == nil {
		return errutil.NotFound("challenge template not found", nil)
	}

	for i, reward := range template.Rewards {
		switch reward.Kind {
		case RewardPoints:
			if _, err := s.ledger.CreditTx(ctx, tx, ledger.AddEntryParams{
				TenantID:    inst.TenantID,
				MemberID:    inst.MemberID,
				Amount:      reward.Points,
				ReferenceID: fmt.Sprintf("challenge:%s:points:%d", inst.ID, i),
				Description: fmt.Sprintf("Challenge reward: %s", template.Name),
			}); err != nil {
				return err
			}
		case RewardBadge:
			if _, err := s.badges.UnlockByIDTx(ctx, tx, inst.TenantID, inst.MemberID, reward.BadgeID); err != nil {
				return err
			}
		case RewardFreeSpins:
			if err := s.members.AddFreeSpinsTx(ctx, tx, inst.MemberID, reward.FreeSpins); err != nil {
				return err
			}
		case RewardDiscount:
			if _, err := s.discounts.IssueTx(ctx, tx, inst.TenantID, inst.MemberID, reward.DiscountPercent, "challenge"); err != nil {
				return err
			}
		default:
			return errutil.UnprocessableEntity(fmt.Sprintf("unknown reward kind %q", reward.Kind), nil)
		}
	}

	return nil
}

// Expire bulk-transitions overdue active instances. Idempotent.
func (s *Service) Expire(ctx context.Context, tenantID string) (int64, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	res := s.db.WithContext(ctx).Model(&Instance{}).
		Where("tenant_id = ? AND status = ? AND expires_at < ?", tenantID, StatusActive, time.Now()).
		Updates(map[string]any{
			"status":     StatusExpired,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return 0, res.Error
	}

	return res.RowsAffected, nil
}
