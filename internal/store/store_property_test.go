package store

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/form-automation/tracker/internal/model"
)

// TestProgressAccumulationProperty checks that for any sequence of progress
// events sharing a job id, the job's progress length equals the number of
// events and preserves receipt order.
func TestProgressAccumulationProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("progress length equals event count in receipt order", prop.ForAll(
		func(percentages []float64) bool {
			s := New()
			base := time.Now()

			for i, pct := range percentages {
				s.ApplyProgress(model.ProgressEvent{
					JobID:      "J1",
					Phase:      "form_filling",
					Percentage: pct,
					Timestamp:  base.Add(time.Duration(i) * time.Second),
				})
			}

			job, ok := s.Get("J1")
			if len(percentages) == 0 {
				return !ok
			}
			if !ok || len(job.Progress) != len(percentages) {
				return false
			}
			for i, pct := range percentages {
				if job.Progress[i].Percentage != pct {
					return false
				}
			}
			return job.Status == model.JobStatusRunning
		},
		gen.SliceOf(gen.Float64Range(0, 100)),
	))

	properties.Property("events spread over many jobs create one job per id", prop.ForAll(
		func(ids []string) bool {
			s := New()
			unique := make(map[string]int)

			for _, id := range ids {
				if id == "" {
					id = "default"
				}
				s.ApplyProgress(model.ProgressEvent{
					JobID:     id,
					Phase:     "initializing",
					Timestamp: time.Now(),
				})
				unique[id]++
			}

			if s.Len() != len(unique) {
				return false
			}
			for id, count := range unique {
				job, ok := s.Get(id)
				if !ok || len(job.Progress) != count {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.Property("unrecognized phase names pass through verbatim", prop.ForAll(
		func(phase string) bool {
			s := New()
			s.ApplyProgress(model.ProgressEvent{
				JobID:     "J1",
				Phase:     phase,
				Timestamp: time.Now(),
			})

			job, _ := s.Get("J1")
			return job.Progress[0].Phase == phase
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

// TestTerminalStatusProperty checks that completion and failure are the only
// paths to a terminal status and that late progress never reverts one.
func TestTerminalStatusProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("late progress never reverts a terminal status", prop.ForAll(
		func(fail bool, lateEvents int) bool {
			if lateEvents < 0 || lateEvents > 20 {
				lateEvents = 1
			}

			s := New()
			s.ApplyProgress(model.ProgressEvent{JobID: "J1", Timestamp: time.Now()})

			var want model.JobStatus
			if fail {
				s.Fail("J1", "boom", time.Now())
				want = model.JobStatusFailed
			} else {
				s.Complete("J1", time.Now())
				want = model.JobStatusCompleted
			}

			for i := 0; i < lateEvents; i++ {
				s.ApplyProgress(model.ProgressEvent{JobID: "J1", Timestamp: time.Now()})
			}

			job, _ := s.Get("J1")
			return job.Status == want && len(job.Progress) == 1+lateEvents
		},
		gen.Bool(),
		gen.IntRange(0, 20),
	))

	properties.TestingRun(t)
}
