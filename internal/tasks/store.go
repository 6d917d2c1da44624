package tasks

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"foundation_site/internal/models"
)

// TaskStore persists scheduled tasks and their run history.
type TaskStore interface {
	DueTasks(ctx context.Context, now time.Time) ([]models.ScheduledTask, error)
	UpdateTask(ctx context.Context, task *models.ScheduledTask, updates map[string]interface{}) error
	RecordHistory(ctx context.Context, history *models.ScheduledTaskHistory) error
	Create(ctx context.Context, task *models.ScheduledTask) error
}

// GormTaskStore is the TaskStore on the site's Postgres database.
type GormTaskStore struct {
	db *gorm.DB
}

func NewGormTaskStore(db *gorm.DB) *GormTaskStore {
	return &GormTaskStore{db: db}
}

// DueTasks returns active tasks whose due time has passed, oldest first.
func (s *GormTaskStore) DueTasks(ctx context.Context, now time.Time) ([]models.ScheduledTask, error) {
	var due []models.ScheduledTask
	err := s.db.WithContext(ctx).
		Where("status = ? AND due <= ?", models.ScheduledTaskStatusActive, now).
		Order("due ASC").
		Find(&due).Error
	return due, err
}

func (s *GormTaskStore) UpdateTask(ctx context.Context, task *models.ScheduledTask, updates map[string]interface{}) error {
	return s.db.WithContext(ctx).Model(task).Updates(updates).Error
}

func (s *GormTaskStore) RecordHistory(ctx context.Context, history *models.ScheduledTaskHistory) error {
	return s.db.WithContext(ctx).Create(history).Error
}

func (s *GormTaskStore) Create(ctx context.Context, task *models.ScheduledTask) error {
	return s.db.WithContext(ctx).Create(task).Error
}

// EnsureRecurring creates task unless an active task with the same name
// exists. It reports whether a row was created.
func (s *GormTaskStore) EnsureRecurring(ctx context.Context, task *models.ScheduledTask) (bool, error) {
	var existing models.ScheduledTask
	err := s.db.WithContext(ctx).
		Where("task_name = ? AND status = ?", task.TaskName, models.ScheduledTaskStatusActive).
		First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	if err := s.Create(ctx, task); err != nil {
		return false, err
	}
	return true, nil
}
