package activity

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"omnilypro-gaming/pkg/errutil"
	"omnilypro-gaming/pkg/taskname"
	"omnilypro-gaming/services/badge"
	"omnilypro-gaming/services/challenge"
	"omnilypro-gaming/services/member"
)

// Kind names a member-visible activity. Amount is euro cents for
// KindPurchase, a points amount for KindPoints, and ignored (one unit)
// for the rest.
type Kind string

const (
	KindPurchase   Kind = "purchase"
	KindVisit      Kind = "visit"
	KindReferral   Kind = "referral"
	KindPlay       Kind = "play"
	KindPoints     Kind = "points"
	KindRedemption Kind = "redemption"
)

// Service fans a single activity event out to the member counters, the
// challenge tracker, and a badge sweep. Counter updates commit first so
// challenge and badge evaluation always see fresh statistics.
type Service struct {
	db         *gorm.DB
	members    *member.Service
	challenges *challenge.Service
	asynq      *asynq.Client
}

type ServiceParams struct {
	fx.In
	DB         *gorm.DB
	Members    *member.Service
	Challenges *challenge.Service
	Asynq      *asynq.Client
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:         p.DB,
		members:    p.Members,
		challenges: p.Challenges,
		asynq:      p.Asynq,
	}
}

func (s *Service) Record(ctx context.Context, tenantID, memberID string, kind Kind, amount int64) error {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	delta, ok := counterDelta(kind, amount)
	if !ok {
		return errutil.BadRequest("unknown activity kind", nil)
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		m, err := s.members.LockTx(ctx, tx, tenantID, memberID)
		if err != nil {
			return err
		}

		if err := s.members.AddCountersTx(ctx, tx, m.ID, delta); err != nil {
			return err
		}

		return s.members.TouchActivity(ctx, tx, m, time.Now())
	}); err != nil {
		return err
	}

	for requirement, contribution := range challengeContributions(kind, amount) {
		if err := s.challenges.RecordActivity(ctx, tenantID, memberID, requirement, contribution); err != nil {
			zap.L().Error("failed to propagate activity to challenges",
				zap.String("member_id", memberID),
				zap.String("kind", string(kind)),
				zap.Error(err),
			)
		}
	}

	s.enqueueBadgeSweep(ctx, tenantID, memberID)

	return nil
}

// RecordGamePlay is the entry point used by the game controllers after a
// play commits: one play event plus a points event when points were won.
func (s *Service) RecordGamePlay(ctx context.Context, tenantID, memberID string, pointsAwarded int64) {
	if err := s.Record(ctx, tenantID, memberID, KindPlay, 1); err != nil {
		zap.L().Error("failed to record game play activity",
			zap.String("member_id", memberID),
			zap.Error(err),
		)
	}

	if pointsAwarded > 0 {
		if err := s.Record(ctx, tenantID, memberID, KindPoints, pointsAwarded); err != nil {
			zap.L().Error("failed to record points activity",
				zap.String("member_id", memberID),
				zap.Error(err),
			)
		}
	}
}

func (s *Service) enqueueBadgeSweep(ctx context.Context, tenantID, memberID string) {
	payload, _ := json.Marshal(badge.SweepPayload{TenantID: tenantID, MemberID: memberID})
	if _, err := s.asynq.EnqueueContext(ctx, asynq.NewTask(taskname.BadgeSweep, payload)); err != nil {
		zap.L().Error("failed to enqueue badge sweep",
			zap.String("member_id", memberID),
			zap.Error(err),
		)
	}
}

func counterDelta(kind Kind, amount int64) (member.CounterDelta, bool) {
	switch kind {
	case KindPurchase:
		return member.CounterDelta{Purchases: 1, SpentCents: amount}, true
	case KindVisit:
		return member.CounterDelta{Visits: 1}, true
	case KindReferral:
		return member.CounterDelta{Referrals: 1}, true
	case KindRedemption:
		return member.CounterDelta{RewardsRedeemed: 1}, true
	case KindPlay, KindPoints:
		return member.CounterDelta{}, true
	default:
		return member.CounterDelta{}, false
	}
}

func challengeContributions(kind Kind, amount int64) map[challenge.RequirementKind]int64 {
	switch kind {
	case KindPurchase:
		return map[challenge.RequirementKind]int64{
			challenge.RequirementPurchases: 1,
			challenge.RequirementSpend:     amount,
		}
	case KindVisit:
		return map[challenge.RequirementKind]int64{challenge.RequirementVisits: 1}
	case KindReferral:
		return map[challenge.RequirementKind]int64{challenge.RequirementReferrals: 1}
	case KindRedemption:
		return map[challenge.RequirementKind]int64{challenge.RequirementRedeems: 1}
	case KindPlay:
		return map[challenge.RequirementKind]int64{challenge.RequirementPlays: 1}
	case KindPoints:
		return map[challenge.RequirementKind]int64{challenge.RequirementPoints: amount}
	default:
		return nil
	}
}
