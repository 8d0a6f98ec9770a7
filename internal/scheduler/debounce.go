// Package scheduler содержит примитивы отложенного и периодического запуска задач.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Debouncer запускает задачу через delay после последнего Trigger.
// Серия вызовов Trigger в пределах delay схлопывается в один запуск.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	task    func(ctx context.Context) error
	timer   *time.Timer
	// gen номер последнего Trigger; сработавший таймер старого поколения ничего не делает
	gen     uint64
	stopped bool
	ctx     context.Context
	logger  *zap.Logger
	name    string
}

// NewDebouncer создаёт новый экземпляр Debouncer; ctx передаётся в задачу
func NewDebouncer(ctx context.Context, name string, delay time.Duration, task func(ctx context.Context) error, logger *zap.Logger) *Debouncer {
	return &Debouncer{
		ctx:    ctx,
		name:   name,
		delay:  delay,
		task:   task,
		logger: logger,
	}
}

// Trigger откладывает запуск задачи, заменяя ранее запланированный
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() { d.run(gen) })
}

// Pending сообщает, запланирован ли запуск
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop отменяет запланированный запуск и запрещает новые
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer) run(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	stopped := d.stopped
	d.mu.Unlock()
	if stopped || d.ctx.Err() != nil {
		return
	}

	if err := d.task(d.ctx); err != nil {
		d.logger.Error("Debounced task failed", zap.String("task", d.name), zap.Error(err))
		return
	}
	d.logger.Info("Debounced task completed", zap.String("task", d.name))
}
