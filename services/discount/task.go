package discount

import (
	"context"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"omnilypro-gaming/pkg/taskname"
)

type Task struct {
	service *Service
}

func NewTask(service *Service) *Task {
	return &Task{service: service}
}

func (t *Task) HandleCleanupTask(ctx context.Context, task *asynq.Task) error {
	removed, err := t.service.CleanupExpired(ctx)
	if err != nil {
		zap.L().Error("discount cleanup failed", zap.Error(err))
		return err
	}

	if removed > 0 {
		zap.L().Info("removed expired discount codes", zap.Int64("removed", removed))
	}
	return nil
}

type registerTaskParams struct {
	fx.In

	Mux  *asynq.ServeMux
	Task *Task
}

func registerTaskHandlers(p registerTaskParams) {
	p.Mux.HandleFunc(taskname.DiscountCleanupExpired, p.Task.HandleCleanupTask)
}

var TaskModule = fx.Module("discount.task",
	fx.Provide(NewTask),
	fx.Invoke(registerTaskHandlers),
)
