package tasks

import (
	"context"

	"go.uber.org/zap"

	"foundation_site/internal/models"
)

// LogInfoTask writes its message argument to the log. It is used to check
// that the worker is picking tasks up.
type LogInfoTask struct {
	log *zap.Logger
}

func NewLogInfoTask(log *zap.Logger) *LogInfoTask {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogInfoTask{log: log}
}

func (t *LogInfoTask) TaskID() string {
	return "log_info"
}

func (t *LogInfoTask) HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
	message, ok := task.Arguments["message"].(string)
	if !ok {
		message = "No message provided"
	}
	t.log.Info("log_info task", zap.Uint("task_id", task.ID), zap.String("message", message))

	return map[string]interface{}{
		"status":            "success",
		"message":           message,
		"max_attempts_info": task.MaxAttempt,
	}, nil
}
