package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"gastobot/internal/domain"
	"gastobot/internal/metrics"
)

const defaultConcurrency = 4

// Runner consumes admitted messages from the bus and drives them through the
// pipeline with bounded concurrency. Per-sender ordering comes from the
// pipeline's sender lock, not from the worker count.
type Runner struct {
	pipeline    *Pipeline
	bus         domain.MessageBus
	concurrency int
	logger      *slog.Logger
}

func NewRunner(p *Pipeline, bus domain.MessageBus, concurrency int, logger *slog.Logger) *Runner {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Runner{pipeline: p, bus: bus, concurrency: concurrency, logger: logger}
}

// Run consumes inbound messages until ctx is cancelled or the bus closes.
// It returns after in-flight messages finish.
func (r *Runner) Run(ctx context.Context) {
	r.logger.Info("pipeline runner started", "concurrency", r.concurrency)

	sem := make(chan struct{}, r.concurrency)
	inbound := r.bus.Subscribe()
	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("pipeline runner stopping")
			wg.Wait()
			return
		case msg, ok := <-inbound:
			if !ok {
				r.logger.Info("inbound channel closed, pipeline runner stopping")
				wg.Wait()
				return
			}
			sem <- struct{}{}
			wg.Add(1)
			go func(m domain.InboundMessage) {
				defer func() { <-sem; wg.Done() }()
				r.handle(ctx, m)
			}(msg)
		}
	}
}

func (r *Runner) handle(ctx context.Context, msg domain.InboundMessage) {
	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	reply, err := r.pipeline.ProcessAdmitted(ctx, msg)
	if err != nil {
		metrics.PipelineErrors.Inc()
		r.logger.Error("pipeline stage failed",
			"sender", msg.SenderID,
			"message_id", msg.MessageID,
			"err", err,
		)
	}
	if reply == "" {
		return
	}

	metrics.RepliesTotal.Inc()
	r.bus.SendOutbound(domain.OutboundMessage{
		Channel:  msg.Channel,
		SenderID: msg.SenderID,
		Body:     reply,
	})
}
