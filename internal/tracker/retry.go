package tracker

import "time"

// Phase is the state of the reconnection policy.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseConnecting     Phase = "connecting"
	PhaseConnected      Phase = "connected"
	PhaseWaitingToRetry Phase = "waiting_to_retry"
)

// retryPolicy decides what follows a channel closure. Every abnormal closure
// schedules a reconnect after the same fixed delay, indefinitely: no backoff
// growth and no retry cap. That makes reconnection behavior predictable but
// means a permanently unreachable server is retried forever.
type retryPolicy struct {
	phase Phase
	delay time.Duration
}

func newRetryPolicy(delay time.Duration) *retryPolicy {
	return &retryPolicy{
		phase: PhaseIdle,
		delay: delay,
	}
}

// Phase returns the current policy state.
func (p *retryPolicy) Phase() Phase {
	return p.phase
}

// Attempt records that a connect attempt is starting.
func (p *retryPolicy) Attempt() {
	p.phase = PhaseConnecting
}

// Opened records a successful open.
func (p *retryPolicy) Opened() {
	p.phase = PhaseConnected
}

// AbnormalClose records an abnormal closure (or a failed open) and returns
// the delay after which the next attempt should be made.
func (p *retryPolicy) AbnormalClose() time.Duration {
	p.phase = PhaseWaitingToRetry
	return p.delay
}

// IntentionalClose records a deliberate shutdown. No retry is scheduled.
func (p *retryPolicy) IntentionalClose() {
	p.phase = PhaseIdle
}
