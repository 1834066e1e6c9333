// Package offline ties the local store to capacity management, eviction,
// queue draining and achievement tracking. It is what the CLI and the
// status dashboard talk to.
package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marcus/agriscan/internal/achievement"
	"github.com/marcus/agriscan/internal/capacity"
	"github.com/marcus/agriscan/internal/db"
	"github.com/marcus/agriscan/internal/evict"
	"github.com/marcus/agriscan/internal/models"
	"github.com/marcus/agriscan/internal/netstate"
	"github.com/marcus/agriscan/internal/schedule"
	agsync "github.com/marcus/agriscan/internal/sync"
)

// ErrStorageDisabled is returned by writes after the store failed to open.
var ErrStorageDisabled = errors.New("offline storage disabled")

// enqueue queues non-scan actions; tests swap it to fail on demand.
var enqueue = agsync.Enqueue

// Scheduled task names.
const (
	TaskCapacity = "capacity-check"
	TaskEvict    = "evict"
	TaskDrain    = "drain"
)

// Default maintenance intervals.
const (
	DefaultCapacityInterval = 5 * time.Minute
	DefaultEvictInterval    = time.Hour
)

// Options configures a Manager. Zero values pick the defaults.
type Options struct {
	// Transport receives queued actions; nil accepts them locally.
	Transport       agsync.Transport
	DeliveryTimeout time.Duration

	// Prober reports connectivity for the daemon. Without one the
	// manager assumes it is online and never sees a transition.
	Prober        netstate.Prober
	ProbeInterval time.Duration

	DrainInterval    time.Duration
	CapacityInterval time.Duration
	EvictInterval    time.Duration

	// DisableEviction leaves the scheduled eviction task out. The capacity
	// check still evicts when utilization is high.
	DisableEviction bool
	// DisableScanWake stops RecordScan from starting a drain; the queue
	// then waits for the drain interval or a reconnect. Otherwise a scan
	// wakes the daemon loop when Run is active, or drains inline when the
	// device is online and nothing else is running.
	DisableScanWake bool

	// ReferenceData is a disease file the daemon loads and watches.
	ReferenceData string

	// Capacity overrides the usage sources derived from the store.
	Capacity *capacity.Monitor
	// Now is the clock for achievement streaks.
	Now func() time.Time
}

// Manager is the single entry point over the offline subsystem.
type Manager struct {
	store    *db.Store
	capacity *capacity.Monitor
	evictor  *evict.Policy
	coord    *agsync.Coordinator
	tracker  *achievement.Tracker
	net      *netstate.Monitor
	sched    *schedule.Scheduler
	opts     Options

	// kick wakes the drain loop; a pending wake absorbs further ones.
	kick chan struct{}
	// running is set while Run owns the drain loop.
	running atomic.Bool

	mu       sync.RWMutex
	disabled error
}

// New assembles a manager over store. Nothing is opened until Initialize
// or the first operation.
func New(store *db.Store, opts Options) *Manager {
	if opts.Transport == nil {
		opts.Transport = agsync.LogTransport{}
	}
	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = 15 * time.Second
	}
	if opts.DrainInterval <= 0 {
		opts.DrainInterval = 5 * time.Minute
	}
	if opts.CapacityInterval <= 0 {
		opts.CapacityInterval = DefaultCapacityInterval
	}
	if opts.EvictInterval <= 0 {
		opts.EvictInterval = DefaultEvictInterval
	}

	monitor := opts.Capacity
	if monitor == nil {
		monitor = capacity.ForStore(store)
	}
	tracker := achievement.NewTracker(store)
	if opts.Now != nil {
		tracker = tracker.WithClock(opts.Now)
	}
	net := netstate.NewWithState(true)
	if opts.Prober != nil {
		net = netstate.New()
	}

	m := &Manager{
		store:    store,
		capacity: monitor,
		evictor:  evict.New(store, monitor),
		coord:    agsync.New(store, opts.Transport, opts.DeliveryTimeout),
		tracker:  tracker,
		net:      net,
		opts:     opts,
		kick:     make(chan struct{}, 1),
	}

	net.OnConnected(func(tr netstate.Transition) {
		slog.Info("offline: connection restored, draining queue")
		m.wake()
	})
	net.OnDisconnected(func(tr netstate.Transition) {
		slog.Info("offline: connection lost, queueing locally")
	})

	tasks := []schedule.Task{
		{Name: TaskCapacity, Interval: opts.CapacityInterval, RunAtStart: true, Run: m.checkCapacity},
		{Name: TaskDrain, Interval: opts.DrainInterval, Run: m.drainIfOnline},
	}
	if !opts.DisableEviction {
		tasks = append(tasks, schedule.Task{Name: TaskEvict, Interval: opts.EvictInterval, Run: m.evictTask})
	}
	m.sched = schedule.New(tasks...)
	return m
}

// Store returns the underlying record store.
func (m *Manager) Store() *db.Store { return m.store }

// Connectivity returns the connectivity monitor the daemon feeds.
func (m *Manager) Connectivity() *netstate.Monitor { return m.net }

// Scheduler returns the maintenance scheduler. Run starts it.
func (m *Manager) Scheduler() *schedule.Scheduler { return m.sched }

// Initialize opens the store. When the store cannot be opened at all the
// manager switches to disabled mode: reads report empty results and writes
// fail with ErrStorageDisabled. The open error is still returned.
func (m *Manager) Initialize(ctx context.Context) error {
	err := m.store.Initialize(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	if errors.Is(err, db.ErrStorageUnavailable) {
		if m.disabled == nil {
			slog.Warn("offline: storage unavailable, running without local persistence", "err", err)
		}
		m.disabled = err
		return err
	}
	m.disabled = nil
	return err
}

// Disabled returns the open failure while in disabled mode, else nil.
func (m *Manager) Disabled() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.disabled
}

// ScansCount returns the number of stored scans.
func (m *Manager) ScansCount(ctx context.Context) (int, error) {
	if m.Disabled() != nil {
		return 0, nil
	}
	return m.store.Count(ctx, db.Scans)
}

// SyncQueue returns pending actions in delivery order.
func (m *Manager) SyncQueue(ctx context.Context) ([]models.SyncItem, error) {
	if m.Disabled() != nil {
		return nil, nil
	}
	return m.store.ListSyncQueue(ctx)
}

// StorageInfo reports current usage; unknown when it cannot be measured.
func (m *Manager) StorageInfo(ctx context.Context) capacity.Usage {
	if m.Disabled() != nil {
		return capacity.Unknown
	}
	return m.capacity.Usage(ctx)
}

// RecentScans returns up to limit scans, newest first.
func (m *Manager) RecentScans(ctx context.Context, limit int) ([]models.Scan, error) {
	if m.Disabled() != nil {
		return nil, nil
	}
	return m.store.RecentScans(ctx, limit)
}

// Achievements returns the catalog with current progress.
func (m *Manager) Achievements(ctx context.Context) ([]achievement.Achievement, error) {
	if m.Disabled() != nil {
		s := achievement.NewState()
		return s.Achievements(), nil
	}
	return m.tracker.Achievements(ctx)
}

// ScanInput describes a completed scan from the UI.
type ScanInput struct {
	DiseaseLabel string
	// DiseaseID keys the distinct-disease counter; derived from the
	// label when empty.
	DiseaseID  string
	ImageRef   string
	Crop       string
	Confidence float64
	Severity   models.Severity
	// Accurate marks a diagnosis the user confirmed.
	Accurate  bool
	Timestamp time.Time
}

// ScanResult is what RecordScan produced.
type ScanResult struct {
	Scan     *models.Scan              `json:"scan"`
	SyncItem *models.SyncItem          `json:"sync_item"`
	Unlocked []achievement.Achievement `json:"unlocked,omitempty"`
	// Drain is set when the scan was delivered inline.
	Drain *agsync.Summary `json:"drain,omitempty"`
}

// RecordScan stores a scan together with its upload item, then credits it
// toward achievements and queues any unlocks. The scan and its item commit
// together; a later failure leaves both in place and is returned alongside
// the partial result.
func (m *Manager) RecordScan(ctx context.Context, in ScanInput) (*ScanResult, error) {
	if err := m.Disabled(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageDisabled, err)
	}
	label := strings.TrimSpace(in.DiseaseLabel)
	if label == "" {
		return nil, fmt.Errorf("scan needs a disease label")
	}

	scan := &models.Scan{
		Timestamp:    in.Timestamp,
		DiseaseLabel: label,
		ImageRef:     in.ImageRef,
		Crop:         in.Crop,
		Confidence:   in.Confidence,
		Severity:     in.Severity,
	}
	item, err := m.store.InsertScanQueued(ctx, scan)
	if err != nil {
		return nil, fmt.Errorf("store scan: %w", err)
	}
	res := &ScanResult{Scan: scan, SyncItem: item}

	diseaseID := in.DiseaseID
	if diseaseID == "" {
		diseaseID = db.DiseaseID(label)
	}
	if _, err := m.tracker.RecordScan(ctx, diseaseID, in.Accurate); err != nil {
		return res, err
	}
	unlocked, err := m.tracker.Evaluate(ctx)
	if err != nil {
		return res, err
	}
	res.Unlocked = unlocked

	var errs []error
	for _, a := range unlocked {
		payload := map[string]any{"id": a.ID, "points": a.Points, "unlocked_at": a.UnlockedAt}
		if _, err := enqueue(ctx, m.store, models.ActionAchievementSync, payload, 0); err != nil {
			errs = append(errs, fmt.Errorf("queue achievement %s: %w", a.ID, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return res, err
	}

	if !m.opts.DisableScanWake {
		res.Drain = m.afterScan(ctx)
	}
	return res, nil
}

// afterScan gets a new scan moving. A running daemon loop is woken;
// otherwise the queue is drained here, once, if the device is online.
func (m *Manager) afterScan(ctx context.Context) *agsync.Summary {
	if m.running.Load() {
		if m.net.Online() {
			m.wake()
		}
		return nil
	}

	budget := m.opts.DeliveryTimeout
	if budget <= 0 {
		budget = agsync.DefaultDeliveryTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	if p := m.opts.Prober; p != nil && !m.net.Sampled() {
		m.net.Observe(p.Probe(ctx))
	}
	if !m.net.Online() {
		return nil
	}
	sum, err := m.Drain(ctx)
	if err != nil {
		slog.Warn("offline: drain after scan failed", "err", err)
		return nil
	}
	return &sum
}

// SavePrediction stores an outbreak prediction and queues it for upload in
// the same transaction.
func (m *Manager) SavePrediction(ctx context.Context, p *models.Prediction) (*models.SyncItem, error) {
	if err := m.Disabled(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageDisabled, err)
	}
	if len(p.Data) > 0 && !json.Valid(p.Data) {
		return nil, fmt.Errorf("prediction data is not valid JSON")
	}
	item, err := m.store.InsertPredictionQueued(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("store prediction: %w", err)
	}
	return item, nil
}

// Predictions returns stored predictions ordered by date.
func (m *Manager) Predictions(ctx context.Context) ([]models.Prediction, error) {
	if m.Disabled() != nil {
		return nil, nil
	}
	return m.store.ListPredictions(ctx)
}

// Drain delivers pending actions now.
func (m *Manager) Drain(ctx context.Context) (agsync.Summary, error) {
	if m.Disabled() != nil {
		return agsync.Summary{}, nil
	}
	return m.coord.Drain(ctx)
}

// Evict runs the retention pass. With ifNeeded it only runs when storage
// utilization is high.
func (m *Manager) Evict(ctx context.Context, ifNeeded bool) (evict.Result, error) {
	if err := m.Disabled(); err != nil {
		return evict.Result{}, fmt.Errorf("%w: %v", ErrStorageDisabled, err)
	}
	if ifNeeded {
		return m.evictor.CheckCapacity(ctx)
	}
	return m.evictor.Run(ctx)
}

func (m *Manager) wake() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

func (m *Manager) checkCapacity(ctx context.Context) error {
	if m.Disabled() != nil {
		return nil
	}
	_, err := m.evictor.CheckCapacity(ctx)
	return err
}

func (m *Manager) evictTask(ctx context.Context) error {
	if m.Disabled() != nil {
		return nil
	}
	_, err := m.evictor.Run(ctx)
	return err
}

func (m *Manager) drainIfOnline(ctx context.Context) error {
	if !m.net.Online() {
		return nil
	}
	_, err := m.Drain(ctx)
	return err
}
