package controller

import (
	"context"
	"fmt"
	"sync"

	"github.com/flexscale/flexscale/pkg/task"
)

// Manager owns the controller's periodic tasks.
type Manager interface {
	AddTask(task task.Task)
	GetTask(taskName string) (task.Task, error)
	ScheduleAllTasks() error
	StartTasks() error
	Stop()
}

type TaskManager struct {
	mu              sync.RWMutex
	scheduler       *Scheduler
	registeredTasks map[string]task.Task
}

func NewTaskManager() *TaskManager {
	return &TaskManager{
		scheduler:       NewScheduler(),
		registeredTasks: make(map[string]task.Task),
	}
}

func (m *TaskManager) AddTask(task task.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !task.IsEnabled() {
		return
	}

	m.registeredTasks[task.GetName()] = task
}

func (m *TaskManager) GetTask(taskName string) (task.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	task, exists := m.registeredTasks[taskName]
	if !exists {
		return nil, fmt.Errorf("task %s not found", taskName)
	}

	return task, nil
}

func (m *TaskManager) ScheduleAllTasks() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for taskName, task := range m.registeredTasks {
		m.scheduler.ScheduleTask(context.Background(), taskName, task.GetSchedule(), task.Run)
	}

	return nil
}

func (m *TaskManager) StartTasks() error {
	go m.scheduler.Wait(context.Background())
	return nil
}

func (m *TaskManager) Stop() {
	m.scheduler.Stop(context.Background())
}
