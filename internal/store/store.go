package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stratustools/core/config"
	"github.com/stratustools/core/errors"
	"github.com/stratustools/core/logging"
	"github.com/stratustools/core/pkg/models"
	"github.com/stratustools/core/pkg/stream"
)

// reconnectedMessage is logged when the stream comes back while an update
// is running: the server restarted with the new build.
const reconnectedMessage = "Server restarted, update complete"

// Fetcher is the subset of the HTTP API the Store reads from.
type Fetcher interface {
	DashboardState(ctx context.Context) (*models.Snapshot, error)
	Version(ctx context.Context) (*models.VersionInfo, error)
	TriggerUpdate(ctx context.Context) error
}

// Stream is the subset of the event stream the Store listens to.
type Stream interface {
	On(tag string, handler stream.Handler) (cancel func())
	Ping() bool
}

// Options configures a Store.
type Options struct {
	// KeepAlive is the ping interval. Zero uses the configured default.
	KeepAlive time.Duration
	// RefreshTimeout bounds refreshes triggered by push signals.
	RefreshTimeout time.Duration
	Logger         *logrus.Entry
}

// Store is the process-wide application state. It is thread-safe and
// supports pub/sub for change notifications.
type Store struct {
	fetcher Fetcher
	stream  Stream
	opts    Options
	logger  *logrus.Entry

	mu          sync.RWMutex
	state       *State
	subscribers map[chan Update]struct{}
	initialized bool
	closed      bool

	// seq numbers refreshes; applied is the newest one whose result is in state.
	seq     uint64
	applied uint64

	cancels   []func()
	ctx       context.Context
	cancel    context.CancelFunc
	workers   sync.WaitGroup
	closeOnce sync.Once
}

// New creates a Store. No I/O happens until Initialize.
func New(fetcher Fetcher, events Stream, opts Options) *Store {
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = config.DefaultKeepAlive
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger("store")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		fetcher: fetcher,
		stream:  events,
		opts:    opts,
		logger:  logger,
		state: &State{
			Loading:    true,
			Update:     Tracker{Phase: PhaseIdle},
			Heartbeats: make(map[string]time.Time),
		},
		subscribers: make(map[chan Update]struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Get returns a copy of the current state.
func (s *Store) Get() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Subscribe creates a new subscription channel for state changes.
// Slow subscribers miss updates rather than stall the Store.
func (s *Store) Subscribe() chan Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Update, 100)
	s.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Store) Unsubscribe(ch chan Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[ch]; !ok {
		return
	}
	delete(s.subscribers, ch)
	close(ch)
}

// Initialize registers the stream handler, performs the initial refresh,
// fetches the server version and starts the keep-alive loop. Connecting the
// stream is left to the caller. Calls after the first are no-ops.
func (s *Store) Initialize(ctx context.Context) {
	s.mu.Lock()
	if s.initialized || s.closed {
		s.mu.Unlock()
		return
	}
	s.initialized = true
	s.mu.Unlock()

	s.cancels = append(s.cancels, s.stream.On(stream.TagAll, s.dispatch))

	if err := s.Load(ctx); err != nil {
		s.logger.WithError(err).Warn("Initial refresh failed")
	}

	s.workers.Add(1)
	go s.keepAlive()
}

// Load performs one refresh and fetches the server version without
// touching the stream. One-shot readers use it instead of Initialize.
func (s *Store) Load(ctx context.Context) error {
	err := s.Refresh(ctx)
	s.fetchVersion(ctx)
	return err
}

// Refresh fetches a new Snapshot. On success it replaces the Snapshot and
// clears the error; on failure the last good Snapshot is kept and the error
// recorded. Loading is cleared either way. A response that arrives after a
// newer refresh has already been applied is discarded.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	snapshot, err := s.fetcher.DashboardState(ctx)

	s.mu.Lock()
	s.state.Loading = false
	stale := seq < s.applied
	if !stale {
		s.applied = seq
		if err != nil {
			s.state.Error = errorString(err)
		} else {
			s.state.Snapshot = snapshot
			s.state.Error = ""
		}
	}
	s.broadcastLocked(Update{Type: UpdateSnapshot, Source: "refresh"})
	s.mu.Unlock()

	if stale {
		s.logger.WithField("seq", seq).Debug("Discarded out-of-order refresh")
		return nil
	}
	return err
}

// StartUpdate asks the server to update itself and tracks the progress.
// The returned error is the request's; stream failures land in State.
func (s *Store) StartUpdate(ctx context.Context) error {
	s.mu.Lock()
	if s.state.Update.InProgress() {
		s.mu.Unlock()
		return errors.RequestRejected("update", 0, fmt.Errorf("an update is already in progress"))
	}
	s.state.Update.Begin()
	s.broadcastLocked(Update{Type: UpdateTracker, Source: "start"})
	s.mu.Unlock()

	err := s.fetcher.TriggerUpdate(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state.Update.Reject(err)
	} else {
		s.state.Update.Accepted()
	}
	s.broadcastLocked(Update{Type: UpdateTracker, Source: "request"})
	return err
}

// DismissUpdate clears the update log and error.
func (s *Store) DismissUpdate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Update.Dismiss()
	s.broadcastLocked(Update{Type: UpdateTracker, Source: "dismiss"})
}

// Close removes the stream handlers, stops the keep-alive loop and waits
// for in-flight refreshes.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		for _, cancel := range s.cancels {
			cancel()
		}
		s.cancel()
		s.workers.Wait()
	})
}

// dispatch routes one envelope by its decoded message type.
func (s *Store) dispatch(env stream.Envelope) error {
	msg, err := stream.Decode(env)
	if err != nil {
		if !stream.IsSwarmTag(env.Type) {
			return err
		}
		// A malformed swarm payload is still a liveness signal.
		s.logger.WithError(err).WithField("type", env.Type).Debug("Malformed swarm payload")
		msg = stream.SwarmEvent{Type: env.Type, Payload: env.Payload}
	}

	switch m := msg.(type) {
	case stream.Lifecycle:
		if m.Type == stream.TagConnected {
			s.onConnected()
		} else {
			s.onDisconnected()
		}
	case stream.Invalidation:
		s.refreshAsync(m.Type)
	case stream.WorkerHeartbeat:
		seen := m.TS.Time
		if seen.IsZero() {
			seen = time.Now()
		}
		s.recordSwarm(m.Tag(), m.ID, seen)
	case stream.SwarmEvent:
		s.recordSwarm(m.Type, "", time.Time{})
	case stream.UpdateProgress, stream.UpdateComplete, stream.UpdateFailed:
		s.applyUpdate(m)
	case stream.Pong:
		s.logger.Debug("Keep-alive answered")
	case stream.Unknown:
		s.logger.WithField("type", m.Type).Debug("Ignoring unrecognised envelope")
	}
	return nil
}

func (s *Store) onConnected() {
	s.mu.Lock()
	s.state.Connected = true
	if s.state.Update.InProgress() {
		s.state.Update.Complete(reconnectedMessage)
		s.broadcastLocked(Update{Type: UpdateTracker, Source: stream.TagConnected})
		s.mu.Unlock()
		return
	}
	s.broadcastLocked(Update{Type: UpdateConnection, Source: stream.TagConnected})
	s.mu.Unlock()

	s.refreshAsync(stream.TagConnected)
}

func (s *Store) onDisconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Connected = false
	s.broadcastLocked(Update{Type: UpdateConnection, Source: stream.TagDisconnected})
}

// recordSwarm bumps the swarm revision. A heartbeat with a worker id also
// records when that worker was last seen.
func (s *Store) recordSwarm(tag, worker string, seen time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if worker != "" {
		s.state.Heartbeats[worker] = seen
	}
	s.state.SwarmRevision++
	s.broadcastLocked(Update{Type: UpdateSwarm, Source: tag})
}

func (s *Store) applyUpdate(msg stream.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch m := msg.(type) {
	case stream.UpdateProgress:
		s.state.Update.Progress(m.Msg)
	case stream.UpdateComplete:
		s.state.Update.Complete(m.Msg)
	case stream.UpdateFailed:
		s.state.Update.Fail(m.Error)
	}
	s.broadcastLocked(Update{Type: UpdateTracker, Source: msg.Tag()})
}

// refreshAsync runs a refresh off the dispatch goroutine.
func (s *Store) refreshAsync(source string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.workers.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.workers.Done()
		ctx, cancel := context.WithTimeout(s.ctx, s.opts.RefreshTimeout)
		defer cancel()
		if err := s.Refresh(ctx); err != nil {
			s.logger.WithError(err).WithField("source", source).Debug("Refresh failed")
		}
	}()
}

func (s *Store) fetchVersion(ctx context.Context) {
	info, err := s.fetcher.Version(ctx)
	if err != nil {
		s.logger.WithError(err).Debug("Version fetch failed")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Version = info
	s.broadcastLocked(Update{Type: UpdateVersion, Source: "version"})
}

func (s *Store) keepAlive() {
	defer s.workers.Done()
	ticker := time.NewTicker(s.opts.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.stream.Ping()
		}
	}
}

func (s *Store) broadcastLocked(u Update) {
	for ch := range s.subscribers {
		select {
		case ch <- u:
		default:
			// Non-blocking send to prevent slow subscribers from stalling dispatch
		}
	}
}

// errorString prefers the human message of coded errors.
func errorString(err error) string {
	if se, ok := errors.As(err); ok {
		if se.Cause != nil {
			return fmt.Sprintf("%s: %v", se.Message, se.Cause)
		}
		return se.Message
	}
	return err.Error()
}
