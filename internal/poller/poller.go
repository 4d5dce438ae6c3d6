// Package poller runs a repeating task on a fixed interval with
// synchronous cancellation. The store owns one poller per feed; pollers
// exist independently of any presentation surface being attached.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Poller invokes a task every interval until stopped. It does not fire an
// immediate tick; callers wanting an initial run dispatch it themselves.
type Poller struct {
	name     string
	interval time.Duration
	clock    clockwork.Clock
	task     func(context.Context)
	logger   *slog.Logger

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a poller for the given task. Start must be called to arm it.
func New(name string, interval time.Duration, clock clockwork.Clock, task func(context.Context), logger *slog.Logger) *Poller {
	return &Poller{
		name:     name,
		interval: interval,
		clock:    clock,
		task:     task,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start launches the poll loop in its own goroutine. The loop stops when
// Stop is called or the parent context is cancelled.
func (p *Poller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	go func() {
		defer close(p.done)

		ticker := p.clock.NewTicker(p.interval)
		defer ticker.Stop()

		p.logger.Info("poller started", "poller", p.name, "interval", p.interval)
		for {
			select {
			case <-ctx.Done():
				p.logger.Info("poller stopped", "poller", p.name)
				return
			case <-ticker.Chan():
				p.task(ctx)
			}
		}
	}()
}

// Stop cancels the poll loop and blocks until it has fully exited, so no
// tick can fire after Stop returns. Safe to call more than once.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
			<-p.done
		}
	})
}
