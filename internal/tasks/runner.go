package tasks

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"foundation_site/internal/models"
)

// Runner executes due scheduled tasks against a Registry.
type Runner struct {
	store    TaskStore
	registry *Registry
	log      *zap.Logger
	now      func() time.Time
}

func NewRunner(store TaskStore, registry *Registry, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{store: store, registry: registry, log: log.Named("worker"), now: time.Now}
}

// RunDue executes every task that is due and returns how many ran.
func (r *Runner) RunDue(ctx context.Context) (int, error) {
	due, err := r.store.DueTasks(ctx, r.now())
	if err != nil {
		return 0, fmt.Errorf("fetch due tasks: %w", err)
	}
	if len(due) == 0 {
		r.log.Debug("no pending tasks")
		return 0, nil
	}
	r.log.Info("found pending tasks", zap.Int("count", len(due)))

	ran := 0
	for _, task := range due {
		if ctx.Err() != nil {
			return ran, ctx.Err()
		}
		r.Execute(ctx, task)
		ran++
	}
	return ran, nil
}

// Execute runs task up to MaxAttempt times, recording each attempt, then
// moves it to its next state.
func (r *Runner) Execute(ctx context.Context, task models.ScheduledTask) {
	log := r.log.With(zap.String("task", task.TaskName), zap.Uint("task_id", task.ID))
	log.Info("processing task")

	if task.Arguments == nil {
		task.Arguments = make(map[string]interface{})
	}
	task.Arguments["max_attempt"] = task.MaxAttempt

	handler, found := r.registry.Get(task.TaskName)
	if !found {
		log.Warn("task handler not found, marking as failure")
		now := r.now()
		r.update(ctx, log, &task, map[string]interface{}{
			"status":   models.ScheduledTaskStatusFailure,
			"last_run": &now,
		})
		r.record(ctx, log, &models.ScheduledTaskHistory{
			ScheduledTaskID: task.ID,
			TaskName:        task.TaskName,
			RunAt:           now,
			Status:          "handler_not_found",
			AttemptNumber:   1,
			Arguments:       task.Arguments,
			Result:          map[string]interface{}{"error": "Handler not found"},
		})
		return
	}

	maxAttempt := task.MaxAttempt
	if maxAttempt < 1 {
		maxAttempt = 1
	}

	var (
		startTime time.Time
		err       error
	)
	for attempt := 1; attempt <= maxAttempt; attempt++ {
		if ctx.Err() != nil {
			return
		}
		var result map[string]interface{}
		startTime = r.now()
		result, err = r.invoke(ctx, handler, task)
		runtime := time.Since(startTime)

		status := "success"
		if err != nil {
			status = "failure"
			result = map[string]interface{}{"error": err.Error()}
			log.Warn("task attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		} else {
			log.Info("task completed", zap.Int("attempt", attempt), zap.Duration("runtime", runtime))
		}

		r.record(ctx, log, &models.ScheduledTaskHistory{
			ScheduledTaskID: task.ID,
			TaskName:        task.TaskName,
			RunAt:           startTime,
			Runtime:         int(runtime.Milliseconds()),
			Status:          status,
			AttemptNumber:   attempt,
			Arguments:       task.Arguments,
			Result:          result,
		})
		if err == nil {
			break
		}
	}

	final := models.ScheduledTaskStatusDone
	if err != nil {
		final = models.ScheduledTaskStatusFailure
	}
	updates := map[string]interface{}{"last_run": &startTime, "status": final}

	if task.TaskType == models.ScheduledTaskTypeRecurring {
		// only a future occurrence keeps the task active; a failed run
		// stays in the history and the next occurrence still runs
		nextDue := task.NextDue(r.now())
		if nextDue.After(task.Due) && nextDue.After(startTime) {
			updates["status"] = models.ScheduledTaskStatusActive
			updates["due"] = nextDue
			if err != nil {
				log.Warn("recurring task failed, moved to next occurrence", zap.Time("next_due", nextDue))
			}
		}
	}
	r.update(ctx, log, &task, updates)
}

// invoke runs handler, turning a panic into an error.
func (r *Runner) invoke(ctx context.Context, handler Handler, task models.ScheduledTask) (result map[string]interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return handler(ctx, task)
}

func (r *Runner) update(ctx context.Context, log *zap.Logger, task *models.ScheduledTask, updates map[string]interface{}) {
	if err := r.store.UpdateTask(ctx, task, updates); err != nil {
		log.Error("failed to update task", zap.Error(err))
	}
}

func (r *Runner) record(ctx context.Context, log *zap.Logger, history *models.ScheduledTaskHistory) {
	if err := r.store.RecordHistory(ctx, history); err != nil {
		log.Error("failed to record task history", zap.Error(err))
	}
}

// Loop runs due tasks now and then on every tick until ctx ends.
func (r *Runner) Loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunDue(ctx); err != nil && ctx.Err() == nil {
			r.log.Error("run due tasks", zap.Error(err))
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}
