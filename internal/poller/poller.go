package poller

import (
	"context"
	"sync"
	"time"

	"github.com/rezacr588/pactoria-mvp-sub005/internal/push"
	"github.com/rezacr588/pactoria-mvp-sub005/pkg/logger"
	"github.com/rezacr588/pactoria-mvp-sub005/pkg/metrics"
)

// StatusSource is the connection manager surface the poller watches.
type StatusSource interface {
	Status() push.Status
	OnStatusChange(push.StatusHandler) func()
}

// Loader is the store surface the poller drives.
type Loader interface {
	Load(ctx context.Context) error
	Empty() bool
}

// Config holds polling fallback configuration.
type Config struct {
	Interval time.Duration
}

const defaultInterval = 30 * time.Second

// Poller compensates for missed push events: while the channel is not
// connected it re-fetches the authoritative page on a timer. The timer
// stops the instant the channel connects and restarts the instant it
// leaves the connected state.
type Poller struct {
	cfg     Config
	source  StatusSource
	loader  Loader
	logger  *logger.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	unsub   func()
	wg      sync.WaitGroup

	statusCh chan push.Status
}

func New(cfg Config, source StatusSource, loader Loader, log *logger.Logger, m *metrics.Metrics) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	return &Poller{
		cfg:     cfg,
		source:  source,
		loader:  loader,
		logger:  log.WithComponent("poller"),
		metrics: m,
	}
}

// Start begins watching connection status. Idempotent until Close.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stop = make(chan struct{})
	p.statusCh = make(chan push.Status, 8)
	p.unsub = p.source.OnStatusChange(func(st push.Status) {
		select {
		case p.statusCh <- st:
		default:
			// A full buffer means the loop is behind; the latest
			// queued status still converges to the right mode.
		}
	})
	stop := p.stop
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run(ctx, stop)
}

// Close stops the poller and releases its subscription.
func (p *Poller) Close() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stop)
	if p.unsub != nil {
		p.unsub()
		p.unsub = nil
	}
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Poller) run(ctx context.Context, stop chan struct{}) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	var tickC <-chan time.Time
	if p.source.Status() != push.StatusConnected {
		tickC = ticker.C
		p.logger.Info("push channel down, polling fallback active",
			"interval", p.cfg.Interval.String())
	} else {
		ticker.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return

		case st := <-p.statusCh:
			if st == push.StatusConnected {
				if tickC != nil {
					ticker.Stop()
					tickC = nil
					p.logger.Info("push channel restored, polling fallback off")
				}
				// A dropped connection may have missed events; if
				// nothing is held, refresh now rather than showing an
				// empty view until the next tick.
				if p.loader.Empty() {
					p.fetch(ctx)
				}
			} else if tickC == nil {
				ticker.Reset(p.cfg.Interval)
				tickC = ticker.C
				p.logger.Info("push channel down, polling fallback active",
					"interval", p.cfg.Interval.String())
			}

		case <-tickC:
			p.fetch(ctx)
		}
	}
}

func (p *Poller) fetch(ctx context.Context) {
	p.metrics.PollTicks.Inc()
	if err := p.loader.Load(ctx); err != nil {
		p.logger.Error(err, "polling fetch failed")
	}
}
