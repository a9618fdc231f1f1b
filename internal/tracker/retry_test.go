package tracker

import (
	"testing"
	"time"
)

func TestRetryPolicyTransitions(t *testing.T) {
	p := newRetryPolicy(3 * time.Second)

	if p.Phase() != PhaseIdle {
		t.Errorf("expected initial phase idle, got %s", p.Phase())
	}

	p.Attempt()
	if p.Phase() != PhaseConnecting {
		t.Errorf("expected connecting after attempt, got %s", p.Phase())
	}

	p.Opened()
	if p.Phase() != PhaseConnected {
		t.Errorf("expected connected after open, got %s", p.Phase())
	}

	delay := p.AbnormalClose()
	if p.Phase() != PhaseWaitingToRetry {
		t.Errorf("expected waiting_to_retry after abnormal close, got %s", p.Phase())
	}
	if delay != 3*time.Second {
		t.Errorf("expected fixed 3s delay, got %v", delay)
	}

	p.Attempt()
	if p.Phase() != PhaseConnecting {
		t.Errorf("expected connecting after retry attempt, got %s", p.Phase())
	}

	p.IntentionalClose()
	if p.Phase() != PhaseIdle {
		t.Errorf("expected idle after intentional close, got %s", p.Phase())
	}
}

// TestRetryPolicyFixedDelay checks the deliberate absence of backoff: every
// abnormal closure yields the same delay.
func TestRetryPolicyFixedDelay(t *testing.T) {
	p := newRetryPolicy(250 * time.Millisecond)

	for i := 0; i < 50; i++ {
		p.Attempt()
		p.Opened()
		if delay := p.AbnormalClose(); delay != 250*time.Millisecond {
			t.Fatalf("delay changed on closure %d: %v", i, delay)
		}
	}
}
