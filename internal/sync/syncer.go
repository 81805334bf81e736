package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	"tempo/internal/config"
	"tempo/internal/core"
	"tempo/internal/log"
	"tempo/internal/store"
)

// statusLogLimit bounds the rolling log kept in the sync status.
const statusLogLimit = 50

// ErrSyncBusy is returned when a push or pull is requested while
// another one is still in flight.
var ErrSyncBusy = errors.New("sync already in progress")

// LogLine is one entry of the bounded sync log.
type LogLine struct {
	TS      int64  `json:"ts"`
	RunID   string `json:"run_id"`
	Message string `json:"message"`
}

// Status is a point-in-time view of the sync state.
type Status struct {
	Enabled    bool          `json:"enabled"`
	Interval   time.Duration `json:"interval"`
	Running    bool          `json:"running"`
	InFlight   bool          `json:"in_flight"`
	LastPushAt int64         `json:"last_push_at,omitempty"`
	LastPullAt int64         `json:"last_pull_at,omitempty"`
	Queued     int           `json:"queued"`
	Log        []LogLine     `json:"log"`
}

// change is one buffered offline change descriptor, flushed to the
// remote as an audit op row on the next successful push.
type change struct {
	ts   int64
	typ  string
	data map[string]any
}

// Syncer replicates the local dataset to a RemoteStore. Push and pull
// are independent full-snapshot operations with a single in-flight
// guarantee; the periodic loop pushes on a timer and records failures
// in a bounded log instead of propagating them.
type Syncer struct {
	db     *store.DB
	remote RemoteStore
	clock  core.Clock
	logger *log.Logger

	mu         gosync.Mutex
	enabled    bool
	interval   time.Duration
	inFlight   bool
	lastPushAt int64
	lastPullAt int64
	lines      []LogLine
	queue      []change

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func New(db *store.DB, remote RemoteStore, clock core.Clock, logger *log.Logger) *Syncer {
	if clock == nil {
		clock = core.SystemClock()
	}

	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentSync)
	}

	return &Syncer{
		db:       db,
		remote:   remote,
		clock:    clock,
		logger:   logger,
		interval: config.MinSyncInterval,
	}
}

// Enqueue buffers an offline change descriptor. The buffer is flushed
// as audit rows by the next successful push and cleared.
func (s *Syncer) Enqueue(typ string, data map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue = append(s.queue, change{
		ts:   s.clock.Now().UnixMilli(),
		typ:  typ,
		data: data,
	})
}

// Push stamps every local record that lacks an updated_at, snapshots
// the dataset, appends the buffered change queue as audit rows, and
// upserts the whole snapshot to the remote. The queue is cleared only
// after the remote accepted the snapshot.
func (s *Syncer) Push(ctx context.Context) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()

	runID := uuid.NewString()
	now := s.clock.Now().UnixMilli()

	// stamps persist locally so a later pull compares real timestamps
	err := s.db.Update(ctx, func(ds *core.Dataset) error {
		stampDataset(ds, now)
		return nil
	})
	if err != nil {
		s.record(runID, fmt.Sprintf("push failed: %v", err))
		return err
	}

	snap, err := s.db.Snapshot(ctx)
	if err != nil {
		s.record(runID, fmt.Sprintf("push failed: %v", err))
		return err
	}

	pending := s.takeQueue()
	for _, c := range pending {
		snap.AppendOp(c.ts, 0, c.typ, c.data)
		snap.Ops[len(snap.Ops)-1].UpdatedAt = now
	}

	if err := s.remote.Push(ctx, snap); err != nil {
		s.requeue(pending)
		s.record(runID, fmt.Sprintf("push failed: %v", err))
		s.logger.WarnContext(ctx, "push failed",
			log.FieldRunID, runID,
			log.FieldError, err)

		return err
	}

	s.mu.Lock()
	s.lastPushAt = now
	s.mu.Unlock()

	s.record(runID, fmt.Sprintf("push ok: %d sessions, %d queued changes",
		len(snap.Sessions), len(pending)))
	s.logger.InfoContext(ctx, "push finished",
		log.FieldRunID, runID,
		log.FieldCount, len(snap.Sessions))

	return nil
}

// Pull fetches the remote snapshot and merges it into the local one
// under last-write-wins. The merged result becomes the new local
// snapshot.
func (s *Syncer) Pull(ctx context.Context) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()

	runID := uuid.NewString()

	remote, err := s.remote.Pull(ctx)
	if err != nil {
		s.record(runID, fmt.Sprintf("pull failed: %v", err))
		s.logger.WarnContext(ctx, "pull failed",
			log.FieldRunID, runID,
			log.FieldError, err)

		return err
	}

	remote.Normalize()

	err = s.db.Update(ctx, func(ds *core.Dataset) error {
		*ds = *Merge(ds, remote)
		return nil
	})
	if err != nil {
		s.record(runID, fmt.Sprintf("pull failed: %v", err))
		return err
	}

	now := s.clock.Now().UnixMilli()

	s.mu.Lock()
	s.lastPullAt = now
	s.mu.Unlock()

	s.record(runID, "pull ok")
	s.logger.InfoContext(ctx, "pull finished", log.FieldRunID, runID)

	return nil
}

// Status reports the current sync state, including the last
// statusLogLimit log lines.
func (s *Syncer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]LogLine, len(s.lines))
	copy(lines, s.lines)

	return Status{
		Enabled:    s.enabled,
		Interval:   s.interval,
		Running:    s.running,
		InFlight:   s.inFlight,
		LastPushAt: s.lastPushAt,
		LastPullAt: s.lastPullAt,
		Queued:     len(s.queue),
		Log:        lines,
	}
}

// Configure enables or disables the periodic push and changes its
// interval. The interval is clamped to config.MinSyncInterval. A
// running timer is cancelled and restarted so exactly one loop exists
// afterwards.
func (s *Syncer) Configure(ctx context.Context, enabled bool, interval time.Duration) error {
	if interval < config.MinSyncInterval {
		interval = config.MinSyncInterval
	}

	if err := s.stopLoop(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.enabled = enabled
	s.interval = interval
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "sync configured",
		"enabled", enabled,
		log.FieldDuration, interval.Milliseconds())

	if !enabled {
		return nil
	}

	return s.Start(ctx)
}

// Start launches the periodic push loop. It is an error to start a
// loop that is already running.
func (s *Syncer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("sync loop is already running")
	}
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	s.running = true
	s.enabled = true
	s.stopCh = stopCh
	s.doneCh = doneCh
	interval := s.interval
	s.mu.Unlock()

	go s.runLoop(ctx, interval, stopCh, doneCh)

	s.logger.InfoContext(ctx, "sync loop started",
		log.FieldDuration, interval.Milliseconds())

	return nil
}

// Stop halts the periodic loop and waits for it to exit.
func (s *Syncer) Stop(ctx context.Context) error {
	if err := s.stopLoop(ctx); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "sync loop stopped")

	return nil
}

// stopLoop halts the running loop, if any. The caller that observes
// running and clears it inside the critical section owns the close, so
// concurrent stops cannot close stopCh twice.
func (s *Syncer) stopLoop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh := s.stopCh
	doneCh := s.doneCh
	s.running = false
	s.stopCh = nil
	s.doneCh = nil
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

func (s *Syncer) runLoop(ctx context.Context, interval time.Duration, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			// a failed push is already recorded; the loop keeps going
			if err := s.Push(ctx); err != nil && !errors.Is(err, ErrSyncBusy) {
				s.logger.WarnContext(ctx, "periodic push failed", log.FieldError, err)
			}
		}
	}
}

func (s *Syncer) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight {
		return ErrSyncBusy
	}

	s.inFlight = true

	return nil
}

func (s *Syncer) release() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}

func (s *Syncer) takeQueue() []change {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := s.queue
	s.queue = nil

	return pending
}

func (s *Syncer) requeue(pending []change) {
	if len(pending) == 0 {
		return
	}

	s.mu.Lock()
	s.queue = append(pending, s.queue...)
	s.mu.Unlock()
}

func (s *Syncer) record(runID, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = append(s.lines, LogLine{
		TS:      s.clock.Now().UnixMilli(),
		RunID:   runID,
		Message: message,
	})

	if n := len(s.lines); n > statusLogLimit {
		s.lines = s.lines[n-statusLogLimit:]
	}
}

// stampDataset assigns updated_at = now to every record lacking one.
func stampDataset(ds *core.Dataset, now int64) {
	for i := range ds.Users {
		if ds.Users[i].UpdatedAt == 0 {
			ds.Users[i].UpdatedAt = now
		}
	}

	for i := range ds.Categories {
		if ds.Categories[i].UpdatedAt == 0 {
			ds.Categories[i].UpdatedAt = now
		}
	}

	for i := range ds.Accounts {
		if ds.Accounts[i].UpdatedAt == 0 {
			ds.Accounts[i].UpdatedAt = now
		}
	}

	for i := range ds.Sessions {
		if ds.Sessions[i].UpdatedAt == 0 {
			ds.Sessions[i].UpdatedAt = now
		}
	}

	for i := range ds.Ops {
		if ds.Ops[i].UpdatedAt == 0 {
			ds.Ops[i].UpdatedAt = now
		}
	}
}
