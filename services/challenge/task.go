package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"omnilypro-gaming/pkg/errutil"
	"omnilypro-gaming/pkg/taskname"
	"omnilypro-gaming/services/member"
)

type GeneratePayload struct {
	TenantID string `json:"tenant_id"`
	MemberID string `json:"member_id"`
	Period   Period `json:"period"`
}

type ExpirePayload struct {
	TenantID string `json:"tenant_id"`
}

type Task struct {
	service *Service
	members *member.Service
	asynq   *asynq.Client
}

type TaskParams struct {
	fx.In

	Service *Service
	Members *member.Service
	Asynq   *asynq.Client
}

func NewTask(p TaskParams) *Task {
	return &Task{
		service: p.Service,
		members: p.Members,
		asynq:   p.Asynq,
	}
}

func (t *Task) HandleGenerateTask(ctx context.Context, task *asynq.Task) error {
	var payload GeneratePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	zapLog := zap.L().With(
		zap.String("task_type", task.Type()),
		zap.String("tenant_id", payload.TenantID),
		zap.String("member_id", payload.MemberID),
		zap.String("period", string(payload.Period)),
	)

	created, err := t.service.Generate(ctx, payload.TenantID, payload.MemberID, payload.Period)
	if err != nil {
		var be errutil.BaseError
		if errors.As(err, &be) && be.Status() == errutil.StatusNotFound {
			zapLog.Warn("no challenge templates configured, skipping")
			return nil
		}

		zapLog.Error("failed to generate challenges", zap.Error(err))
		return err
	}

	zapLog.Info("challenges generated", zap.Int("created", len(created)))
	return nil
}

func (t *Task) HandleExpireTask(ctx context.Context, task *asynq.Task) error {
	var payload ExpirePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	expired, err := t.service.Expire(ctx, payload.TenantID)
	if err != nil {
		zap.L().Error("failed to expire challenges",
			zap.String("tenant_id", payload.TenantID),
			zap.Error(err),
		)
		return err
	}

	zap.L().Info("expired overdue challenges",
		zap.String("tenant_id", payload.TenantID),
		zap.Int64("expired", expired),
	)
	return nil
}

// EnqueueAllTenantsDailyJobs fans out expiry plus per-member generation
// for every tenant, called by the daily scheduler.
func (t *Task) EnqueueAllTenantsDailyJobs(ctx context.Context) error {
	tenants, err := t.members.Tenants(ctx)
	if err != nil {
		return err
	}

	if _, err := t.asynq.EnqueueContext(ctx, asynq.NewTask(taskname.DiscountCleanupExpired, nil, asynq.Queue("low"))); err != nil {
		zap.L().Error("failed to enqueue discount cleanup", zap.Error(err))
	}

	for _, tenantID := range tenants {
		expirePayload, _ := json.Marshal(ExpirePayload{TenantID: tenantID})
		if _, err := t.asynq.EnqueueContext(ctx, asynq.NewTask(taskname.ChallengeExpire, expirePayload)); err != nil {
			zap.L().Error("failed to enqueue challenge expiry", zap.String("tenant_id", tenantID), zap.Error(err))
			continue
		}

		memberIDs, err := t.members.ListIDs(ctx, tenantID)
		if err != nil {
			zap.L().Error("failed to list members", zap.String("tenant_id", tenantID), zap.Error(err))
			continue
		}

		for _, memberID := range memberIDs {
			periods := []Period{PeriodDaily}
			if isoWeekStart() {
				periods = append(periods, PeriodWeekly)
			}

			for _, period := range periods {
				payload, _ := json.Marshal(GeneratePayload{TenantID: tenantID, MemberID: memberID, Period: period})
				if _, err := t.asynq.EnqueueContext(ctx, asynq.NewTask(taskname.ChallengeGenerate, payload, asynq.Queue("low"))); err != nil {
					zap.L().Error("failed to enqueue challenge generation",
						zap.String("tenant_id", tenantID),
						zap.String("member_id", memberID),
						zap.Error(err),
					)
				}
			}
		}
	}

	return nil
}

type registerTaskParams struct {
	fx.In

	Mux  *asynq.ServeMux
	Task *Task
}

func registerTaskHandlers(p registerTaskParams) {
	p.Mux.HandleFunc(taskname.ChallengeGenerate, p.Task.HandleGenerateTask)
	p.Mux.HandleFunc(taskname.ChallengeExpire, p.Task.HandleExpireTask)
}
