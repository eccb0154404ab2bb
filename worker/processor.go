package worker

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/Ste11an/facelessflow/tasks"
)

// TaskHandler is a function that processes a task payload.
type TaskHandler func(ctx context.Context, payload string) error

// Processor holds dependencies and registered task handlers.
type Processor struct {
	Source      tasks.Source
	Logger      *zap.Logger
	PollTimeout time.Duration
	TaskTimeout time.Duration
	handlers    map[string]TaskHandler
}

// NewProcessor creates a new worker processor.
func NewProcessor(source tasks.Source, logger *zap.Logger, pollTimeout, taskTimeout time.Duration) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pollTimeout <= 0 {
		pollTimeout = 5 * time.Second
	}
	return &Processor{
		Source:      source,
		Logger:      logger,
		PollTimeout: pollTimeout,
		TaskTimeout: taskTimeout,
		handlers:    make(map[string]TaskHandler),
	}
}

// Register maps a queue name (task type) to a handler function.
func (p *Processor) Register(queueName string, handler TaskHandler) {
	p.handlers[queueName] = handler
	p.Logger.Info("registered handler", zap.String("queue", queueName))
}

// Queues lists the registered queue names.
func (p *Processor) Queues() []string {
	out := make([]string, 0, len(p.handlers))
	for name := range p.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Listen processes tasks from every registered queue until ctx is cancelled.
// The poll timeout bounds how long shutdown waits on an idle queue.
func (p *Processor) Listen(ctx context.Context) {
	queues := p.Queues()
	p.Logger.Info("worker listening", zap.Strings("queues", queues))

	for {
		if ctx.Err() != nil {
			p.Logger.Info("worker stopped")
			return
		}
		if _, err := p.RunOnce(ctx, queues...); err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.Logger.Error("error popping from queue", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

// RunOnce waits up to the poll timeout for one task and handles it. Handler
// errors are logged, not returned; the error result is for the queue itself.
func (p *Processor) RunOnce(ctx context.Context, queues ...string) (bool, error) {
	if len(queues) == 0 {
		queues = p.Queues()
	}
	queueName, payload, err := p.Source.Dequeue(ctx, p.PollTimeout, queues...)
	if err != nil {
		return false, err
	}
	if queueName == "" {
		return false, nil
	}

	handler, ok := p.handlers[queueName]
	if !ok {
		p.Logger.Error("no handler registered", zap.String("queue", queueName))
		return false, nil
	}

	taskCtx := ctx
	if p.TaskTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, p.TaskTimeout)
		defer cancel()
	}

	start := time.Now()
	if err := handler(taskCtx, payload); err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			p.Logger.Warn("task interrupted by shutdown", zap.String("queue", queueName), zap.String("payload", payload))
			return true, nil
		}
		p.Logger.Error("error processing task",
			zap.String("queue", queueName),
			zap.String("payload", payload),
			zap.Duration("took", time.Since(start)),
			zap.Error(err))
		return true, nil
	}
	p.Logger.Info("task processed", zap.String("queue", queueName), zap.Duration("took", time.Since(start)))
	return true, nil
}
