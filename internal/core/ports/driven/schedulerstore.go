package driven

import (
	"context"

	"github.com/clearline-labs/bankwatch/internal/core/domain"
)

// SchedulerStore persists scheduled task state and execution history.
type SchedulerStore interface {
	// GetTask retrieves a scheduled task by ID.
	// Returns nil and no error if the task does not exist.
	GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error)

	// ListTasks returns all scheduled tasks.
	ListTasks(ctx context.Context) ([]domain.ScheduledTask, error)

	// SaveTask persists a task's state.
	SaveTask(ctx context.Context, task *domain.ScheduledTask) error

	// RecordResult appends a task execution result to history.
	RecordResult(ctx context.Context, result *domain.TaskResult) error

	// PruneHistory keeps only the most recent results per task.
	PruneHistory(ctx context.Context, keep int) error
}
