package offline

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/marcus/agriscan/internal/refdata"
)

// Run is the daemon loop: it polls connectivity, drains the queue when the
// connection comes back, runs the maintenance schedule and watches the
// reference data file. It returns when ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Initialize(ctx); err != nil {
		return err
	}

	m.running.Store(true)
	defer m.running.Store(false)

	g, ctx := errgroup.WithContext(ctx)
	if err := m.sched.Start(ctx); err != nil {
		return err
	}

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-m.kick:
			}
			if _, err := m.Drain(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("offline: drain failed", "err", err)
			}
		}
	})

	if m.opts.Prober != nil {
		g.Go(func() error {
			return m.net.Run(ctx, m.opts.Prober, m.opts.ProbeInterval)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		m.sched.Stop()
		return nil
	})

	if path := m.opts.ReferenceData; path != "" {
		g.Go(func() error {
			if err := refdata.Watch(ctx, m.store, path, 0, nil); err != nil {
				slog.Warn("offline: reference data watch stopped", "path", path, "err", err)
			}
			return nil
		})
	}

	slog.Info("offline: daemon running", "online", m.net.Online())
	return g.Wait()
}
