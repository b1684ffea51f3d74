package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Job интерфейс для периодических задач
type Job interface {
	Run(ctx context.Context) error
}

// JobFunc адаптер функции к Job
type JobFunc func(ctx context.Context) error

// Run вызывает f(ctx)
func (f JobFunc) Run(ctx context.Context) error {
	return f(ctx)
}

type namedJob struct {
	name string
	job  Job
}

// Scheduler управляет запуском периодических задач
type Scheduler struct {
	logger *zap.Logger
	jobs   []namedJob

	// timeout ограничение на один запуск задачи, 0 - без ограничения
	timeout time.Duration
}

// NewScheduler создает новый планировщик задач
func NewScheduler(logger *zap.Logger, timeout time.Duration) *Scheduler {
	return &Scheduler{
		logger:  logger,
		timeout: timeout,
	}
}

// AddJob добавляет задачу в планировщик
func (s *Scheduler) AddJob(name string, job Job) {
	s.jobs = append(s.jobs, namedJob{name: name, job: job})
}

// Start запускает планировщик с указанным интервалом и блокируется до отмены ctx.
// Задачи выполняются сразу при старте.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	s.logger.Info("запуск планировщика задач",
		zap.Duration("interval", interval),
		zap.Int("jobs_count", len(s.jobs)))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("остановка планировщика задач")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce последовательно выполняет все зарегистрированные задачи
func (s *Scheduler) RunOnce(ctx context.Context) {
	for _, j := range s.jobs {
		if ctx.Err() != nil {
			return
		}
		s.run(ctx, j)
	}
}

func (s *Scheduler) run(ctx context.Context, j namedJob) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	s.logger.Debug("запуск задачи", zap.String("job", j.name))

	if err := j.job.Run(ctx); err != nil {
		s.logger.Error("ошибка выполнения задачи",
			zap.Error(err),
			zap.String("job", j.name))
		return
	}

	s.logger.Debug("задача выполнена",
		zap.String("job", j.name),
		zap.Duration("elapsed", time.Since(start)))
}
