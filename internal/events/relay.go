package events

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"rubyscore/internal/ledger"
)

type RelayConfig struct {
	BufferSize     int
	BatchSize      int
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	PublishTimeout time.Duration
}

func (c *RelayConfig) defaults() {
	if c.BufferSize <= 0 {
		c.BufferSize = 1024
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 64
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 200 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Second
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 10 * time.Second
	}
}

// Relay is a ledger.Sink that hands events to publishers from its own
// goroutine. Record never blocks: when the buffer is full the event is
// dropped and counted.
type Relay struct {
	cfg        RelayConfig
	queue      chan ledger.Event
	publishers []Publisher
	log        *zap.Logger

	published *prometheus.CounterVec
	dropped   prometheus.Counter
	backlog   prometheus.GaugeFunc
}

func NewRelay(cfg RelayConfig, logger *zap.Logger, publishers ...Publisher) *Relay {
	cfg.defaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Relay{
		cfg:        cfg,
		queue:      make(chan ledger.Event, cfg.BufferSize),
		publishers: publishers,
		log:        logger.Named("relay"),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rubyscore_relay_published_total",
			Help: "Event batches handed to each publisher",
		}, []string{"publisher", "result"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rubyscore_relay_dropped_total",
			Help: "Events dropped because the relay buffer was full",
		}),
	}
	r.backlog = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "rubyscore_relay_backlog",
		Help: "Events waiting in the relay buffer",
	}, func() float64 { return float64(r.Backlog()) })
	return r
}

// Collectors returns the relay metrics for registration.
func (r *Relay) Collectors() []prometheus.Collector {
	return []prometheus.Collector{r.published, r.dropped, r.backlog}
}

func (r *Relay) Record(e ledger.Event) {
	select {
	case r.queue <- e:
	default:
		r.dropped.Inc()
		r.log.Warn("relay buffer full, event dropped", zap.Uint64("seq", e.Seq), zap.String("kind", string(e.Kind)))
	}
}

func (r *Relay) Backlog() int { return len(r.queue) }

// Run drains the buffer until ctx is done, then flushes what is left.
func (r *Relay) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.flush()
			return nil
		case e := <-r.queue:
			r.deliver(ctx, r.collect(e))
		}
	}
}

func (r *Relay) collect(first ledger.Event) []Message {
	batch := []Message{FromLedger(first)}
	for len(batch) < r.cfg.BatchSize {
		select {
		case e := <-r.queue:
			batch = append(batch, FromLedger(e))
		default:
			return batch
		}
	}
	return batch
}

func (r *Relay) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.PublishTimeout)
	defer cancel()
	for {
		select {
		case e := <-r.queue:
			r.deliver(ctx, r.collect(e))
		default:
			return
		}
	}
}

func (r *Relay) deliver(ctx context.Context, batch []Message) {
	for _, p := range r.publishers {
		if err := r.publishWithRetry(ctx, p, batch); err != nil {
			r.published.WithLabelValues(p.Name(), "failed").Inc()
			r.log.Error("publish failed",
				zap.String("publisher", p.Name()),
				zap.Uint64("first_seq", batch[0].Seq),
				zap.Int("size", len(batch)),
				zap.Error(err))
			continue
		}
		r.published.WithLabelValues(p.Name(), "ok").Inc()
	}
}

func (r *Relay) publishWithRetry(ctx context.Context, p Publisher, batch []Message) error {
	backoff := r.cfg.InitialBackoff
	var err error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.PublishTimeout)
		err = p.Publish(pubCtx, batch)
		cancel()
		if err == nil || attempt == r.cfg.MaxAttempts {
			return err
		}
		r.published.WithLabelValues(p.Name(), "retry").Inc()
		r.log.Debug("publish retry", zap.String("publisher", p.Name()), zap.Int("attempt", attempt), zap.Error(err))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
		if backoff > r.cfg.MaxBackoff {
			backoff = r.cfg.MaxBackoff
		}
	}
	return err
}
