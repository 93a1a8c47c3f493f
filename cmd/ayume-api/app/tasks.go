package app

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Lovelumine/AYumeRNA/catalog"
)

// loggingTasks records submissions in the log. It stands in for the
// processing queue, which is not part of this server.
type loggingTasks struct {
	logger *zap.Logger
}

func newLoggingTasks(logger *zap.Logger) *loggingTasks {
	return &loggingTasks{logger: logger}
}

func (t *loggingTasks) Submit(_ context.Context, task catalog.Task) (*catalog.Receipt, error) {
	id := uuid.NewString()
	t.logger.Info("task submitted",
		zap.String("task_id", id),
		zap.String("kind", task.Kind),
		zap.String("user_id", task.UserID),
		zap.Strings("files", task.FileNames()),
		zap.Any("params", task.Params))

	return &catalog.Receipt{
		TaskID:  id,
		Topic:   "/topic/progress/" + task.UserID,
		Message: "task submitted and queued",
	}, nil
}
