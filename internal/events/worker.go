package events

import (
	"context"
	"log/slog"
	"time"

	"ballot/internal/events/metrics"
	"ballot/internal/ledger"
	"ballot/pkg/platform/circuit"
)

const (
	defaultBufferSize     = 1024
	defaultPublishTimeout = 5 * time.Second
	drainTimeout          = 5 * time.Second
)

// Worker queues events from the vote gate and delivers them in order on its
// own goroutine. When the primary sink keeps failing, a circuit breaker
// diverts events to the fallback sink until the primary recovers.
type Worker struct {
	inbox    chan BlockAppended
	primary  Publisher
	fallback Publisher
	breaker  *circuit.Breaker
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type WorkerOption func(*Worker)

func WithBufferSize(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.inbox = make(chan BlockAppended, n)
		}
	}
}

// WithFallback sets the sink used while the primary's circuit is open.
func WithFallback(p Publisher) WorkerOption {
	return func(w *Worker) {
		w.fallback = p
	}
}

func WithBreaker(b *circuit.Breaker) WorkerOption {
	return func(w *Worker) {
		if b != nil {
			w.breaker = b
		}
	}
}

func WithPublishTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) WorkerOption {
	return func(w *Worker) {
		w.metrics = m
	}
}

func NewWorker(primary Publisher, opts ...WorkerOption) *Worker {
	w := &Worker{
		inbox:   make(chan BlockAppended, defaultBufferSize),
		primary: primary,
		breaker: circuit.New("events-" + primary.Name()),
		timeout: defaultPublishTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// VoteAccepted queues the event for b. It never blocks: a full queue drops the
// event.
func (w *Worker) VoteAccepted(ctx context.Context, b ledger.Block) {
	select {
	case w.inbox <- FromBlock(b):
	default:
		w.metrics.IncrementDropped()
		w.logger.WarnContext(ctx, "block event queue full; event dropped",
			"block_index", b.Index,
		)
	}
}

// Run delivers events until ctx is cancelled, then drains what is queued.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain(context.WithoutCancel(ctx))
			return ctx.Err()
		case ev := <-w.inbox:
			w.deliver(ctx, ev)
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()
	for {
		select {
		case ev := <-w.inbox:
			w.deliver(ctx, ev)
		default:
			return
		}
	}
}

func (w *Worker) deliver(ctx context.Context, ev BlockAppended) {
	err := w.publish(ctx, w.primary, ev)
	if err == nil {
		if _, change := w.breaker.RecordSuccess(); change.Closed {
			w.metrics.SetFallback(false)
			w.logger.InfoContext(ctx, "event publisher recovered", "sink", w.primary.Name())
		}
		return
	}

	useFallback, change := w.breaker.RecordFailure()
	if change.Opened {
		w.metrics.SetFallback(true)
		w.logger.WarnContext(ctx, "event publisher circuit opened",
			"sink", w.primary.Name(),
			"error", err,
		)
	}
	if useFallback && w.fallback != nil {
		if ferr := w.publish(ctx, w.fallback, ev); ferr == nil {
			return
		}
	}
	w.logger.ErrorContext(ctx, "block event not delivered",
		"block_index", ev.Index,
		"sink", w.primary.Name(),
		"error", err,
	)
}

func (w *Worker) publish(ctx context.Context, p Publisher, ev BlockAppended) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	if err := p.Publish(ctx, ev); err != nil {
		w.metrics.IncrementPublishFailure(p.Name())
		return err
	}
	w.metrics.IncrementPublished(p.Name())
	return nil
}
