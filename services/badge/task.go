package badge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"omnilypro-gaming/pkg/taskname"
)

type SweepPayload struct {
	TenantID string `json:"tenant_id"`
	MemberID string `json:"member_id"`
}

type Task struct {
	service *Service
}

func NewTask(service *Service) *Task {
	return &Task{service: service}
}

func (t *Task) HandleSweepTask(ctx context.Context, task *asynq.Task) error {
	var payload SweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	zapLog := zap.L().With(
		zap.String("task_type", task.Type()),
		zap.String("tenant_id", payload.TenantID),
		zap.String("member_id", payload.MemberID),
	)

	unlocked, err := t.service.Sweep(ctx, payload.TenantID, payload.MemberID)
	if err != nil {
		zapLog.Error("badge sweep failed", zap.Error(err))
		return err
	}

	if unlocked > 0 {
		zapLog.Info("badge sweep unlocked badges", zap.Int("unlocked", unlocked))
	}
	return nil
}

type registerTaskParams struct {
	fx.In

	Mux  *asynq.ServeMux
	Task *Task
}

func registerTaskHandlers(p registerTaskParams) {
	p.Mux.HandleFunc(taskname.BadgeSweep, p.Task.HandleSweepTask)
}
