package tracker

import (
	"context"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/form-automation/tracker/internal/buffer"
	"github.com/form-automation/tracker/internal/channel"
	"github.com/form-automation/tracker/internal/model"
	"github.com/form-automation/tracker/internal/repository"
	"github.com/form-automation/tracker/internal/store"
)

const (
	// DefaultKeepaliveInterval is the period between outbound ping frames.
	DefaultKeepaliveInterval = 30 * time.Second

	// DefaultRetryDelay is the fixed delay before reconnecting after an
	// abnormal closure.
	DefaultRetryDelay = 3 * time.Second

	// DefaultActivitySize is the capacity of the recent-activity buffer.
	DefaultActivitySize = 64
)

// Status is the observable connection status.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// Callbacks are optional hooks invoked by the dispatcher, consumed by the
// presentation layer. Each fires synchronously, at most once per inbound
// message, in dispatch order.
type Callbacks struct {
	OnProgress     func(ev model.ProgressEvent)
	OnComplete     func(jobID string)
	OnError        func(jobID, errMsg string)
	OnStatusChange func(status Status)
}

// Config holds configuration for a Tracker.
type Config struct {
	// Endpoint is the WebSocket base URL; the user id is appended as the
	// final path element.
	Endpoint string

	KeepaliveInterval time.Duration
	RetryDelay        time.Duration
	ActivitySize      int

	// Repository, when set, receives a session-scoped history of every
	// state change. Repository errors are logged, never fatal.
	Repository *repository.JobRepository

	Callbacks Callbacks
}

// Tracker owns exactly one channel at a time, scoped to a user id, and keeps
// the job state store coherent with the server's event stream. A single
// dispatch loop processes one inbound frame at a time, so handlers run to
// completion in receipt order and the loop is the only store mutator.
type Tracker struct {
	cfg       Config
	store     *store.Store
	repo      *repository.JobRepository
	activity  *buffer.EventBuffer
	callbacks Callbacks

	mu         sync.RWMutex
	status     Status
	lastUpdate time.Time
	userID     string
	ch         *channel.Channel
	policy     *retryPolicy

	dialCh       chan string
	disconnectCh chan struct{}
	done         chan struct{}
	closeOnce    sync.Once
	wg           sync.WaitGroup
}

// New creates a Tracker and starts its dispatch loop. The tracker is idle
// until Connect is called.
func New(cfg Config) *Tracker {
	if cfg.KeepaliveInterval == 0 {
		cfg.KeepaliveInterval = DefaultKeepaliveInterval
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.ActivitySize == 0 {
		cfg.ActivitySize = DefaultActivitySize
	}

	t := &Tracker{
		cfg:          cfg,
		store:        store.New(),
		repo:         cfg.Repository,
		activity:     buffer.NewEventBuffer(cfg.ActivitySize),
		callbacks:    cfg.Callbacks,
		status:       StatusDisconnected,
		policy:       newRetryPolicy(cfg.RetryDelay),
		dialCh:       make(chan string, 1),
		disconnectCh: make(chan struct{}, 1),
		done:         make(chan struct{}),
	}

	t.wg.Add(1)
	go t.run()

	return t
}

// Connect opens the channel for the given user, closing and replacing any
// previously owned channel first so at most one channel is active per
// tracker. Connection failures do not propagate; they surface only through
// Status, and reconnection is scheduled as for an abnormal closure.
func (t *Tracker) Connect(userID string) error {
	if userID == "" {
		return model.ErrUserIDRequired
	}

	// Refuse a closed tracker before racing the buffered send below: with
	// both cases ready, select would pick one at random.
	select {
	case <-t.done:
		return model.ErrTrackerClosed
	default:
	}

	select {
	case t.dialCh <- userID:
		return nil
	case <-t.done:
		return model.ErrTrackerClosed
	}
}

// Disconnect closes the current channel intentionally, using the normal
// closure code so no reconnect is scheduled. While a reconnect is pending it
// cancels the retry instead, so the tracker ends up idle either way. The
// tracker stays usable and a later Connect opens a fresh channel.
func (t *Tracker) Disconnect() {
	select {
	case t.disconnectCh <- struct{}{}:
	default:
		// A disconnect is already queued; one is enough.
	}
}

// Close tears the tracker down: the dispatch loop stops, which cancels the
// keepalive ticker and any pending reconnect, then the channel is closed
// with the normal closure code. Safe to call more than once.
func (t *Tracker) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
		t.wg.Wait()
		t.closeChannel()
	})
	return nil
}

// closeChannel releases any owned channel with the normal closure code and
// moves the policy to idle. Only the dispatch loop (or Close, after the loop
// has stopped) calls it, so a stale reconnect timer cannot outlive it.
func (t *Tracker) closeChannel() {
	t.mu.Lock()
	ch := t.ch
	t.ch = nil
	t.policy.IntentionalClose()
	t.mu.Unlock()

	if ch != nil {
		ch.Close()
	}
	t.setStatus(StatusDisconnected)
}

// Status returns the observable connection status.
func (t *Tracker) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// LastUpdate returns when the channel last showed life: the most recent
// successful open or inbound frame.
func (t *Tracker) LastUpdate() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastUpdate
}

// Phase returns the reconnection policy state.
func (t *Tracker) Phase() Phase {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.policy.Phase()
}

// UserID returns the user id of the current or most recent connection.
func (t *Tracker) UserID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.userID
}

// Store returns the job state store.
func (t *Tracker) Store() *store.Store {
	return t.store
}

// Activity returns the recent-activity buffer.
func (t *Tracker) Activity() *buffer.EventBuffer {
	return t.activity
}

// run is the single dispatch loop. Exactly one inbound frame is processed at
// any instant; suspension points are waiting for a frame, the keepalive
// ticker and the reconnect timer.
func (t *Tracker) run() {
	defer t.wg.Done()

	keepalive := time.NewTicker(t.cfg.KeepaliveInterval)
	defer keepalive.Stop()

	var retryC <-chan time.Time

	for {
		t.mu.RLock()
		ch := t.ch
		t.mu.RUnlock()

		var events <-chan []byte
		if ch != nil {
			events = ch.Events()
		}

		select {
		case <-t.done:
			return

		case userID := <-t.dialCh:
			// An explicit connect supersedes any pending retry.
			retryC = t.dial(userID)

		case <-t.disconnectCh:
			retryC = nil
			t.closeChannel()

		case <-retryC:
			retryC = t.dial(t.UserID())

		case frame, ok := <-events:
			if !ok {
				retryC = t.channelClosed(ch)
				continue
			}
			t.touch()
			t.dispatch(frame)

		case <-keepalive.C:
			t.sendPing()
		}
	}
}

// dial opens a new channel for userID, closing any previous one first. It
// returns a timer channel for the next retry, or nil when none is needed.
func (t *Tracker) dial(userID string) <-chan time.Time {
	t.mu.Lock()
	prev := t.ch
	t.ch = nil
	t.userID = userID
	t.policy.Attempt()
	t.mu.Unlock()

	if prev != nil {
		prev.Close()
	}

	t.setStatus(StatusConnecting)

	ch, err := channel.Dial(context.Background(), t.endpointFor(userID))
	if err != nil {
		log.Printf("tracker: connect failed for user %s: %v", userID, err)
		t.mu.Lock()
		delay := t.policy.AbnormalClose()
		t.mu.Unlock()
		t.setStatus(StatusDisconnected)
		return time.After(delay)
	}

	t.mu.Lock()
	t.ch = ch
	t.policy.Opened()
	t.lastUpdate = time.Now()
	t.mu.Unlock()

	t.setStatus(StatusConnected)
	log.Printf("tracker: connected for user %s", userID)
	return nil
}

// channelClosed handles the end of a channel's event stream. Only an
// abnormal closure schedules a reconnect.
func (t *Tracker) channelClosed(ch *channel.Channel) <-chan time.Time {
	t.mu.Lock()
	if t.ch == ch {
		t.ch = nil
	}
	t.mu.Unlock()

	if ch.NormalClose() {
		t.mu.Lock()
		t.policy.IntentionalClose()
		t.mu.Unlock()
		t.setStatus(StatusDisconnected)
		return nil
	}

	log.Printf("tracker: channel closed abnormally: %v", ch.CloseError())
	t.mu.Lock()
	delay := t.policy.AbnormalClose()
	t.mu.Unlock()
	t.setStatus(StatusDisconnected)
	return time.After(delay)
}

// sendPing emits a keepalive frame if and only if the channel is currently
// open. No queuing when it is not.
func (t *Tracker) sendPing() {
	t.mu.RLock()
	ch := t.ch
	open := t.status == StatusConnected
	t.mu.RUnlock()

	if !open || ch == nil {
		return
	}

	if err := ch.Send(Envelope{Type: MessageTypePing}); err != nil {
		log.Printf("tracker: keepalive send failed: %v", err)
	}
}

// setStatus updates the status and notifies the status callback on change.
func (t *Tracker) setStatus(status Status) {
	t.mu.Lock()
	if t.status == status {
		t.mu.Unlock()
		return
	}
	t.status = status
	t.mu.Unlock()

	if t.callbacks.OnStatusChange != nil {
		t.callbacks.OnStatusChange(status)
	}
}

// touch records channel liveness.
func (t *Tracker) touch() {
	t.mu.Lock()
	t.lastUpdate = time.Now()
	t.mu.Unlock()
}

// endpointFor builds the channel URL for a user.
func (t *Tracker) endpointFor(userID string) string {
	return strings.TrimRight(t.cfg.Endpoint, "/") + "/" + url.PathEscape(userID)
}
