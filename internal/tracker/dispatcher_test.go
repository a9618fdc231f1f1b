package tracker

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/form-automation/tracker/internal/model"
)

func newTestTracker(t *testing.T, cb Callbacks) *Tracker {
	t.Helper()
	tr := New(Config{
		Endpoint:  "ws://localhost:0/ws/automation",
		Callbacks: cb,
	})
	t.Cleanup(func() { tr.Close() })
	return tr
}

func progressFrame(t *testing.T, ev model.ProgressEvent) []byte {
	t.Helper()
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("failed to marshal progress event: %v", err)
	}
	frame, err := json.Marshal(Envelope{Type: MessageTypeFormProgress, Data: data})
	if err != nil {
		t.Fatalf("failed to marshal envelope: %v", err)
	}
	return frame
}

func completionFrame(t *testing.T, msgType MessageType, jobID, errMsg string) []byte {
	t.Helper()
	data, err := json.Marshal(CompletionData{JobID: jobID, Error: errMsg})
	if err != nil {
		t.Fatalf("failed to marshal completion data: %v", err)
	}
	frame, err := json.Marshal(Envelope{Type: msgType, Data: data})
	if err != nil {
		t.Fatalf("failed to marshal envelope: %v", err)
	}
	return frame
}

// TestDispatchProgress tests the full progress path: store mutation plus
// callback with the raw event.
func TestDispatchProgress(t *testing.T) {
	var got []model.ProgressEvent
	tr := newTestTracker(t, Callbacks{
		OnProgress: func(ev model.ProgressEvent) {
			got = append(got, ev)
		},
	})

	t1 := time.Now().UTC().Truncate(time.Second)
	tr.dispatch(progressFrame(t, model.ProgressEvent{
		JobID:      "J1",
		Phase:      "form_filling",
		Percentage: 42,
		Message:    "submitting",
		FuelGrades: []string{"regular", "premium"},
		Timestamp:  t1,
	}))
	tr.dispatch(progressFrame(t, model.ProgressEvent{
		JobID:      "J1",
		Phase:      "form_filling",
		Percentage: 80,
		Timestamp:  t1.Add(time.Second),
	}))

	job, ok := tr.Store().Get("J1")
	if !ok {
		t.Fatal("job J1 not created")
	}
	if len(job.Progress) != 2 {
		t.Errorf("expected progress length 2, got %d", len(job.Progress))
	}
	if job.Status != model.JobStatusRunning {
		t.Errorf("expected status running, got %s", job.Status)
	}
	if latest := job.LatestProgress(); latest.Percentage != 80 {
		t.Errorf("expected latest percentage 80, got %v", latest.Percentage)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 progress callbacks, got %d", len(got))
	}
	if got[0].Percentage != 42 || got[1].Percentage != 80 {
		t.Errorf("callbacks out of dispatch order: %v, %v", got[0].Percentage, got[1].Percentage)
	}
	if len(got[0].FuelGrades) != 2 || got[0].FuelGrades[0] != "regular" {
		t.Errorf("fuel grades not preserved in given order: %v", got[0].FuelGrades)
	}
}

// TestDispatchComplete tests the completion path and that the callback fires
// exactly once with the job id.
func TestDispatchComplete(t *testing.T) {
	var completed []string
	tr := newTestTracker(t, Callbacks{
		OnComplete: func(jobID string) {
			completed = append(completed, jobID)
		},
	})

	tr.dispatch(progressFrame(t, model.ProgressEvent{JobID: "J1", Percentage: 42, Timestamp: time.Now()}))
	tr.dispatch(completionFrame(t, MessageTypeFormComplete, "J1", ""))

	job, _ := tr.Store().Get("J1")
	if job.Status != model.JobStatusCompleted {
		t.Errorf("expected status completed, got %s", job.Status)
	}
	if job.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}
	if len(completed) != 1 || completed[0] != "J1" {
		t.Errorf("expected exactly one completion callback with J1, got %v", completed)
	}
}

// TestDispatchError tests the server-reported failure path.
func TestDispatchError(t *testing.T) {
	var gotJob, gotMsg string
	tr := newTestTracker(t, Callbacks{
		OnError: func(jobID, errMsg string) {
			gotJob, gotMsg = jobID, errMsg
		},
	})

	tr.dispatch(progressFrame(t, model.ProgressEvent{JobID: "J1", Timestamp: time.Now()}))
	tr.dispatch(completionFrame(t, MessageTypeFormError, "J1", "login rejected"))

	job, _ := tr.Store().Get("J1")
	if job.Status != model.JobStatusFailed {
		t.Errorf("expected status failed, got %s", job.Status)
	}
	if job.ErrorMessage != "login rejected" {
		t.Errorf("expected error message, got %q", job.ErrorMessage)
	}
	if gotJob != "J1" || gotMsg != "login rejected" {
		t.Errorf("error callback got (%q, %q)", gotJob, gotMsg)
	}
}

// TestCompletionForUnknownJob tests that the callback still fires when the
// job was never seen, while the store stays unchanged.
func TestCompletionForUnknownJob(t *testing.T) {
	var completed []string
	tr := newTestTracker(t, Callbacks{
		OnComplete: func(jobID string) {
			completed = append(completed, jobID)
		},
	})

	tr.dispatch(completionFrame(t, MessageTypeFormComplete, "ghost", ""))

	if tr.Store().Len() != 0 {
		t.Errorf("unknown completion created a job: %d", tr.Store().Len())
	}
	if len(completed) != 1 || completed[0] != "ghost" {
		t.Errorf("expected completion callback for ghost, got %v", completed)
	}
}

// TestMalformedFrameDropped tests that a non-JSON frame is dropped without
// touching the store and without panicking.
func TestMalformedFrameDropped(t *testing.T) {
	tr := newTestTracker(t, Callbacks{})

	tr.dispatch([]byte("not json at all {{{"))
	tr.dispatch([]byte(""))
	tr.dispatch([]byte(`{"type":"form_automation_progress","data":"not an object"}`))

	if tr.Store().Len() != 0 {
		t.Errorf("malformed frames altered the store: %d jobs", tr.Store().Len())
	}
}

// TestUnrecognizedTypeIgnored tests forward compatibility: unknown types are
// ignored without error or state change.
func TestUnrecognizedTypeIgnored(t *testing.T) {
	called := false
	tr := newTestTracker(t, Callbacks{
		OnProgress: func(model.ProgressEvent) { called = true },
	})

	tr.dispatch([]byte(`{"type":"future_message_kind","data":{"anything":"goes"}}`))

	if tr.Store().Len() != 0 {
		t.Errorf("unrecognized type altered the store: %d jobs", tr.Store().Len())
	}
	if called {
		t.Error("unrecognized type invoked a callback")
	}
}

// TestBatchTypesAreObservationOnly tests that batch messages route without a
// state-store side effect.
func TestBatchTypesAreObservationOnly(t *testing.T) {
	tr := newTestTracker(t, Callbacks{})

	tr.dispatch(completionFrame(t, MessageTypeBatchProgress, "B1", ""))
	tr.dispatch(completionFrame(t, MessageTypeBatchComplete, "B1", ""))
	tr.dispatch(completionFrame(t, MessageTypeBatchError, "B1", "boom"))

	if tr.Store().Len() != 0 {
		t.Errorf("batch messages altered the store: %d jobs", tr.Store().Len())
	}
}

// TestActivityBufferReceivesProgress tests that dispatched progress shows up
// in the recent-activity buffer.
func TestActivityBufferReceivesProgress(t *testing.T) {
	tr := newTestTracker(t, Callbacks{})

	for i := 0; i < 3; i++ {
		tr.dispatch(progressFrame(t, model.ProgressEvent{JobID: "J1", Percentage: float64(i), Timestamp: time.Now()}))
	}

	recent := tr.Activity().Recent()
	if len(recent) != 3 {
		t.Fatalf("expected 3 activity events, got %d", len(recent))
	}
	if recent[2].Percentage != 2 {
		t.Errorf("expected newest event last, got %v", recent[2].Percentage)
	}
}
