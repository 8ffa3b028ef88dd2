package reactive

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
)

// JobQueue coalesces triggers. Every effect scheduled on it during one
// synchronous turn runs once, in first-scheduled order, when the single
// microtask flush for that turn runs.
type JobQueue struct {
	rs *ReactiveSystem

	pending    []*EffectRunner
	queued     mapset.Set[*EffectRunner]
	isFlushing bool
	flushes    int
}

func newJobQueue(rs *ReactiveSystem) *JobQueue {
	return &JobQueue{
		rs:     rs,
		queued: mapset.NewThreadUnsafeSet[*EffectRunner](),
	}
}

func (q *JobQueue) Schedule(e *EffectRunner) {
	if q.queued.Add(e) {
		q.pending = append(q.pending, e)
	}
	q.requestFlush()
}

func (q *JobQueue) requestFlush() {
	if q.isFlushing {
		return
	}
	q.isFlushing = true
	q.rs.loop.QueueMicrotask(q.flush)
}

// Len is the number of jobs waiting for the next flush.
func (q *JobQueue) Len() int {
	return len(q.pending)
}

// flush runs the pending jobs. A job scheduled again after it already ran in
// this flush goes into a follow-up round rather than being dropped.
func (q *JobQueue) flush() {
	defer func() {
		q.isFlushing = false
	}()
	q.flushes++

	for round := 0; len(q.pending) > 0; round++ {
		if round >= q.rs.maxFlushRounds {
			dropped := len(q.pending)
			q.pending = nil
			q.queued.Clear()
			q.rs.reportError(nil, fmt.Errorf("%w after %d rounds, dropped %d jobs", ErrFlushLimit, round, dropped))
			return
		}

		jobs := q.pending
		q.pending = nil
		for _, e := range jobs {
			q.queued.Remove(e)
			// stopped after it was queued
			if e.stopped {
				continue
			}
			q.rs.runIsolated(e)
		}
	}
	q.rs.logger.Debug("job queue flushed", "flush", q.flushes)
}
