package task

import "context"

// Task is a periodic controller job driven by the scheduler.
type Task interface {
	GetName() string
	GetSchedule() string
	IsEnabled() bool
	Run(ctx context.Context) error
	GetCoreTask() any
}
