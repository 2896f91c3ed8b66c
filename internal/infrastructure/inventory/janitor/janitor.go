package janitor

import (
	"context"
	"sync"
	"time"

	"github.com/smalob/marketplace/internal/observability"
)

const componentJanitor = "reservation_janitor"

// Sweeper restores stock held by reservations past their deadline.
type Sweeper interface {
	SweepExpired(ctx context.Context, now time.Time) int
}

// Janitor periodically sweeps expired stock reservations so inventory held by
// abandoned checkouts is not locked up indefinitely.
type Janitor struct {
	sweeper  Sweeper
	interval time.Duration
	log      observability.Logger
	expired  observability.Counter

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

func New(sweeper Sweeper, interval time.Duration, logger observability.Logger, tel observability.Observability) *Janitor {
	if logger == nil {
		logger = observability.NopLogger()
	}
	metrics := observability.NopMetrics()
	if tel != nil {
		metrics = tel.Metrics()
	}
	return &Janitor{
		sweeper:  sweeper,
		interval: interval,
		log:      logger.With(observability.F("component", componentJanitor)),
		expired:  metrics.Counter(observability.MReservationsExpired),
		done:     make(chan struct{}),
	}
}

func (j *Janitor) Start(ctx context.Context) {
	j.startOnce.Do(func() {
		bg, cancel := context.WithCancel(ctx)
		j.cancel = cancel
		go j.loop(bg)
		j.log.Info("janitor_started",
			observability.F("interval", j.interval.String()),
		)
	})
}

func (j *Janitor) Stop() {
	j.stopOnce.Do(func() {
		if j.cancel != nil {
			j.cancel()
		}
		<-j.done
		j.log.Info("janitor_stopped")
	})
}

func (j *Janitor) loop(ctx context.Context) {
	defer close(j.done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			j.sweep(ctx, now)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context, now time.Time) {
	restored := j.sweeper.SweepExpired(ctx, now)
	if restored == 0 {
		return
	}
	j.expired.Add(float64(restored))
	j.log.Warn("expired_reservations_restored",
		observability.F("count", restored),
	)
}
