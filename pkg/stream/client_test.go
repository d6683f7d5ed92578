package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stratustools/core/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// manualClock records AfterFunc calls and fires them only on request.
type manualClock struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	delay   time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, delay: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Delays returns the delay of every timer ever scheduled, in order.
func (c *manualClock) Delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.timers))
	for i, t := range c.timers {
		out[i] = t.delay
	}
	return out
}

// Pending returns the number of timers that are neither stopped nor fired.
func (c *manualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Fire runs the oldest pending timer on the calling goroutine.
func (c *manualClock) Fire(t *testing.T) {
	t.Helper()
	c.mu.Lock()
	var next *manualTimer
	for _, timer := range c.timers {
		if !timer.stopped && !timer.fired {
			next = timer
			break
		}
	}
	if next == nil {
		c.mu.Unlock()
		t.Fatal("no pending timer to fire")
		return
	}
	next.fired = true
	c.mu.Unlock()
	next.f()
}

type recorder struct {
	mu   sync.Mutex
	envs []Envelope
}

func (r *recorder) handle(env Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs = append(r.envs, env)
	return nil
}

func (r *recorder) Tags() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	tags := make([]string, len(r.envs))
	for i, env := range r.envs {
		tags[i] = env.Type
	}
	return tags
}

func quietLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func newTestClient(t *testing.T, srv *testutil.Server) (*Client, *manualClock) {
	t.Helper()
	clock := &manualClock{}
	client := New(Options{
		URL:              srv.StreamURL(),
		ReconnectFloor:   time.Second,
		ReconnectCeiling: 30 * time.Second,
		HandshakeTimeout: 2 * time.Second,
		Clock:            clock,
		Logger:           quietLogger(),
	})
	t.Cleanup(func() { client.Close() })
	return client, clock
}

func TestBackoffDoublesUntilCeilingAndResetsOnOpen(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.RejectStream(true)
	client, clock := newTestClient(t, srv)

	rec := &recorder{}
	client.On(TagAll, rec.handle)

	client.Connect()
	assert.Equal(t, StateClosed, client.State())
	assert.Equal(t, []string{TagDisconnected}, rec.Tags())

	for i := 0; i < 6; i++ {
		clock.Fire(t)
	}

	sec := time.Second
	assert.Equal(t, []time.Duration{sec, 2 * sec, 4 * sec, 8 * sec, 16 * sec, 30 * sec, 30 * sec}, clock.Delays())
	assert.Equal(t, 1, clock.Pending())

	srv.RejectStream(false)
	clock.Fire(t)
	assert.Equal(t, StateOpen, client.State())
	assert.Equal(t, time.Second, client.Backoff())
	assert.Equal(t, TagConnected, rec.Tags()[len(rec.Tags())-1])

	srv.DropConnections()
	require.Eventually(t, func() bool { return clock.Pending() == 1 }, 5*time.Second, 10*time.Millisecond)

	delays := clock.Delays()
	assert.Equal(t, time.Second, delays[len(delays)-1])
	assert.Equal(t, TagDisconnected, rec.Tags()[len(rec.Tags())-1])
}

func TestSingleReconnectTimer(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.RejectStream(true)
	client, clock := newTestClient(t, srv)

	client.Connect()
	client.scheduleReconnect()
	client.scheduleReconnect()
	assert.Equal(t, 1, clock.Pending())

	// Connect while a reconnect is pending dials immediately and replaces it.
	client.Connect()
	assert.Equal(t, 1, clock.Pending())
}

func TestDispatchOrder(t *testing.T) {
	srv := testutil.NewServer(t)
	client, _ := newTestClient(t, srv)

	var mu sync.Mutex
	var calls []string
	record := func(name string) Handler {
		return func(env Envelope) error {
			if env.Type != "workflow_updated" {
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, name)
			return nil
		}
	}

	client.On("workflow_updated", record("exact-1"))
	client.On(TagAll, record("wildcard"))
	client.On("workflow_updated", record("exact-2"))

	client.Connect()
	srv.WaitForConnection(t, 2*time.Second)
	srv.Broadcast(t, "workflow_updated", map[string]string{"id": "wf-1"})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(calls) == 3
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"exact-1", "exact-2", "wildcard"}, calls)
}

func TestMalformedEnvelopesAreDropped(t *testing.T) {
	srv := testutil.NewServer(t)
	client, _ := newTestClient(t, srv)

	rec := &recorder{}
	client.Connect()
	srv.WaitForConnection(t, 2*time.Second)
	client.On(TagAll, rec.handle)

	srv.BroadcastRaw([]byte("not json"))
	srv.BroadcastRaw([]byte(`{"payload":{"id":1}}`))
	srv.BroadcastRaw([]byte(`["event_saved"]`))
	srv.Broadcast(t, "event_saved", nil)

	require.Eventually(t, func() bool { return len(rec.Tags()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"event_saved"}, rec.Tags())
	assert.Equal(t, StateOpen, client.State())
}

func TestHandlerFailuresDoNotStopDispatch(t *testing.T) {
	srv := testutil.NewServer(t)
	client, _ := newTestClient(t, srv)

	rec := &recorder{}
	client.On("signal_sent", func(Envelope) error { return fmt.Errorf("boom") })
	client.On("signal_sent", func(Envelope) error { panic("handler bug") })
	client.On("signal_sent", rec.handle)

	client.Connect()
	srv.WaitForConnection(t, 2*time.Second)
	srv.Broadcast(t, "signal_sent", nil)
	srv.Broadcast(t, "signal_sent", nil)

	require.Eventually(t, func() bool { return len(rec.Tags()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, StateOpen, client.State())
}

func TestCancelIsIdempotent(t *testing.T) {
	srv := testutil.NewServer(t)
	client, _ := newTestClient(t, srv)

	removed := &recorder{}
	kept := &recorder{}
	cancel := client.On("event_saved", removed.handle)
	client.On("event_saved", kept.handle)

	cancel()
	cancel()

	client.Connect()
	srv.WaitForConnection(t, 2*time.Second)
	srv.Broadcast(t, "event_saved", nil)

	require.Eventually(t, func() bool { return len(kept.Tags()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, removed.Tags())
}

func TestSendAndPing(t *testing.T) {
	srv := testutil.NewServer(t)
	client, _ := newTestClient(t, srv)

	assert.False(t, client.Ping(), "ping before connect is dropped")

	client.Connect()
	srv.WaitForConnection(t, 2*time.Second)
	require.True(t, client.Ping())

	var env Envelope
	require.NoError(t, json.Unmarshal(srv.NextMessage(t, 2*time.Second), &env))
	assert.Equal(t, TagPing, env.Type)
	assert.Empty(t, env.Payload)

	out, err := NewEnvelope("hello", map[string]int{"n": 1})
	require.NoError(t, err)
	require.True(t, client.Send(out))
	assert.JSONEq(t, `{"type":"hello","payload":{"n":1}}`, string(srv.NextMessage(t, 2*time.Second)))
}

func TestCloseStopsReconnecting(t *testing.T) {
	srv := testutil.NewServer(t)
	client, clock := newTestClient(t, srv)

	rec := &recorder{}
	client.On(TagAll, rec.handle)
	client.Connect()
	srv.WaitForConnection(t, 2*time.Second)

	require.NoError(t, client.Close())
	assert.Equal(t, StateClosed, client.State())
	assert.Equal(t, []string{TagConnected, TagDisconnected}, rec.Tags())
	assert.Equal(t, 0, clock.Pending())

	client.Connect()
	assert.Equal(t, StateClosed, client.State())
	assert.False(t, client.Ping())
	require.Eventually(t, func() bool { return srv.Connections() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestAtMostOneConnection(t *testing.T) {
	srv := testutil.NewServer(t)
	client, _ := newTestClient(t, srv)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client.Connect()
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool { return client.State() == StateOpen }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, srv.Connections())
	assert.Equal(t, 1, srv.Hits("/api/ws"))
}

func TestStateString(t *testing.T) {
	states := []string{StateOpen.String(), StateClosed.String(), StateConnecting.String()}
	sort.Strings(states)
	assert.Equal(t, []string{"closed", "connecting", "open"}, states)
}
