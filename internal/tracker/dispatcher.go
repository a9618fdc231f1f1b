package tracker

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/form-automation/tracker/internal/model"
)

// MessageType represents the type of a channel message.
type MessageType string

const (
	// Server -> Client message types
	MessageTypeFormProgress  MessageType = "form_automation_progress"
	MessageTypeFormComplete  MessageType = "form_automation_complete"
	MessageTypeFormError     MessageType = "form_automation_error"
	MessageTypeBatchProgress MessageType = "batch_automation_progress"
	MessageTypeBatchComplete MessageType = "batch_automation_complete"
	MessageTypeBatchError    MessageType = "batch_automation_error"
	MessageTypePingResponse  MessageType = "ping_response"

	// Client -> Server message types
	MessageTypePing MessageType = "ping"
)

// Envelope is the wire format for all channel messages.
type Envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// CompletionData is the payload of completion and error messages.
type CompletionData struct {
	JobID string `json:"job_id"`
	Error string `json:"error,omitempty"`
}

// dispatch decodes a raw inbound frame and routes it by type. A malformed
// frame is dropped; the channel stays open and later frames are processed.
// Unrecognized types are ignored so newer servers can add message types
// without breaking older clients.
func (t *Tracker) dispatch(frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		log.Printf("tracker: dropping malformed frame: %v", err)
		return
	}

	switch env.Type {
	case MessageTypeFormProgress:
		t.handleProgress(env.Data)
	case MessageTypeFormComplete:
		t.handleComplete(env.Data)
	case MessageTypeFormError:
		t.handleError(env.Data)
	case MessageTypeBatchProgress, MessageTypeBatchComplete, MessageTypeBatchError:
		// Observation points only: no state-store side effect in this client.
		t.handleBatch(env.Type, env.Data)
	case MessageTypePingResponse:
		// Liveness was already recorded on receipt.
	default:
		log.Printf("tracker: ignoring unrecognized message type %q", env.Type)
	}
}

// handleProgress applies a progress event to the store, creating the job on
// first sight, then notifies the progress callback.
func (t *Tracker) handleProgress(data json.RawMessage) {
	var ev model.ProgressEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Printf("tracker: dropping malformed progress event: %v", err)
		return
	}

	t.store.ApplyProgress(ev)
	t.activity.Add(ev)

	if t.repo != nil {
		if err := t.repo.RecordProgress(context.Background(), ev); err != nil {
			log.Printf("tracker: failed to record progress for job %s: %v", ev.JobID, err)
		}
	}

	if t.callbacks.OnProgress != nil {
		t.callbacks.OnProgress(ev)
	}
}

// handleComplete marks the job completed. The completion callback fires even
// when the job is unknown locally.
func (t *Tracker) handleComplete(data json.RawMessage) {
	var msg CompletionData
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("tracker: dropping malformed completion message: %v", err)
		return
	}

	now := time.Now()
	if !t.store.Complete(msg.JobID, now) {
		log.Printf("tracker: completion for unknown job %s", msg.JobID)
	}

	if t.repo != nil {
		if err := t.repo.MarkCompleted(context.Background(), msg.JobID, now); err != nil {
			log.Printf("tracker: failed to record completion for job %s: %v", msg.JobID, err)
		}
	}

	if t.callbacks.OnComplete != nil {
		t.callbacks.OnComplete(msg.JobID)
	}
}

// handleError folds a server-reported job failure into job state. This is
// job-level state, not a system failure; the channel stays open.
func (t *Tracker) handleError(data json.RawMessage) {
	var msg CompletionData
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("tracker: dropping malformed error message: %v", err)
		return
	}

	now := time.Now()
	if !t.store.Fail(msg.JobID, msg.Error, now) {
		log.Printf("tracker: error for unknown job %s", msg.JobID)
	}

	if t.repo != nil {
		if err := t.repo.MarkFailed(context.Background(), msg.JobID, msg.Error, now); err != nil {
			log.Printf("tracker: failed to record failure for job %s: %v", msg.JobID, err)
		}
	}

	if t.callbacks.OnError != nil {
		t.callbacks.OnError(msg.JobID, msg.Error)
	}
}

// handleBatch logs batch automation messages for observation. Batch tracking
// is left for the presentation layer to extend.
func (t *Tracker) handleBatch(msgType MessageType, data json.RawMessage) {
	log.Printf("tracker: batch message %s (%d bytes)", msgType, len(data))
}
