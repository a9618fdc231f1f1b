// Package tracker maintains a live view of server-executed automation jobs
// over a persistent WebSocket channel.
//
// The package implements:
//   - Tracker: owns one channel per user and composes the pieces below
//   - Dispatcher: decodes inbound frames and routes them by declared type
//   - Reconnection policy: fixed-delay retry after abnormal closure
//   - Keepalive: periodic ping frames while the channel is open
//
// Key behaviors:
//   - Jobs are created implicitly on the first progress event for an unseen id
//   - Malformed frames and unrecognized message types are dropped, never fatal
//   - A single dispatch loop processes frames in receipt order, so the job
//     state store has exactly one mutator
//   - Intentional shutdown uses the normal closure code and is never retried
package tracker
