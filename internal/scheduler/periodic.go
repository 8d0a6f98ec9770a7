package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/tempizhere/edgelink/internal/metrics"
)

// Job периодическая задача
type Job struct {
	Name     string
	Schedule string
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

// Periodic запускает задачи по cron-расписанию
type Periodic struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

// NewPeriodic создаёт новый экземпляр Periodic
func NewPeriodic(logger *zap.Logger) *Periodic {
	ctx, cancel := context.WithCancel(context.Background())
	return &Periodic{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Register добавляет задачу; расписание в стандартном формате cron или @every/@hourly
func (p *Periodic) Register(job Job) error {
	if job.Timeout <= 0 {
		job.Timeout = 5 * time.Minute
	}
	_, err := p.cron.AddFunc(job.Schedule, func() { p.execute(job) })
	if err != nil {
		return fmt.Errorf("failed to add cron job %s: %w", job.Name, err)
	}
	p.logger.Info("Job registered", zap.String("job", job.Name), zap.String("schedule", job.Schedule))
	return nil
}

// RunNow выполняет задачу синхронно вне расписания
func (p *Periodic) RunNow(job Job) {
	p.execute(job)
}

func (p *Periodic) execute(job Job) {
	ctx, cancel := context.WithTimeout(p.ctx, job.Timeout)
	defer cancel()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		metrics.JobExecutionsTotal.WithLabelValues(job.Name, "failed").Inc()
		p.logger.Error("Job failed",
			zap.String("job", job.Name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return
	}
	metrics.JobExecutionsTotal.WithLabelValues(job.Name, "success").Inc()
	p.logger.Info("Job completed",
		zap.String("job", job.Name),
		zap.Duration("duration", time.Since(start)))
}

// Start запускает планировщик
func (p *Periodic) Start() {
	p.cron.Start()
}

// Stop останавливает планировщик и дожидается выполняющихся задач
func (p *Periodic) Stop() {
	p.cancel()
	<-p.cron.Stop().Done()
}
