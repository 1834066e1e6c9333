package cmd

import (
	"context"

	"github.com/marcus/agriscan/internal/config"
	"github.com/marcus/agriscan/internal/db"
	"github.com/marcus/agriscan/internal/features"
	"github.com/marcus/agriscan/internal/netstate"
	"github.com/marcus/agriscan/internal/offline"
	agsync "github.com/marcus/agriscan/internal/sync"
	"github.com/marcus/agriscan/internal/syncclient"
)

// openManager builds the offline manager for dir from its settings. The
// store is initialized; a disabled store is reported through the returned
// error while the manager stays usable for read-only status.
func openManager(ctx context.Context, dir string) (*offline.Manager, func(), error) {
	store := db.New(dir, db.Options{
		Driver:     config.StorageDriver(dir),
		QuotaBytes: config.QuotaBytes(dir),
	})

	opts := offline.Options{
		DeliveryTimeout: config.DeliveryTimeout(dir),
		ProbeInterval:   config.ProbeInterval(dir),
		DrainInterval:   config.DrainInterval(dir),
		DisableEviction: !features.IsEnabled(dir, features.AutoEvict.Name),
		DisableScanWake: !features.IsEnabled(dir, features.DrainOnScan.Name),
	}
	if features.IsEnabled(dir, features.ReferenceWatch.Name) {
		opts.ReferenceData = config.ReferenceData(dir)
	}
	if url := config.SyncURL(dir); url != "" {
		deviceID, err := config.DeviceID(dir)
		if err != nil {
			return nil, nil, err
		}
		client := syncclient.New(url, deviceID)
		opts.Transport = agsync.HTTPTransport(client)
		opts.Prober = netstate.HTTPProber{Client: client}
	}

	m := offline.New(store, opts)
	cleanup := func() { store.Close() }
	if err := m.Initialize(ctx); err != nil {
		return m, cleanup, err
	}
	return m, cleanup, nil
}
