package reactive

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	mapset "github.com/deckarep/golang-set/v2"
)

// DefaultMaxFlushRounds bounds how many times a single flush re-runs jobs that
// were queued while it was running.
const DefaultMaxFlushRounds = 100

type OnErrorFunc func(from *EffectRunner, err error)

// ReactiveSystem is one reactive universe: the execution stack, the
// dependency store, the shared job queue and the task loop it flushes on.
// A system is not safe for concurrent use; drive it from one goroutine.
type ReactiveSystem struct {
	stack []*EffectRunner
	owner *EffectRunner

	store *depStore
	queue *JobQueue
	loop  *Loop

	batchDepth int
	batched    []*EffectRunner
	batchedSet mapset.Set[*EffectRunner]

	onError        OnErrorFunc
	logger         *slog.Logger
	maxFlushRounds int
	nextID         uint64
}

type Option func(rs *ReactiveSystem)

func WithLogger(logger *slog.Logger) Option {
	return func(rs *ReactiveSystem) {
		rs.logger = logger
	}
}

// WithLoop shares a task loop between systems. By default every system owns
// its own loop.
func WithLoop(loop *Loop) Option {
	return func(rs *ReactiveSystem) {
		rs.loop = loop
	}
}

func WithMaxFlushRounds(n int) Option {
	return func(rs *ReactiveSystem) {
		if n > 0 {
			rs.maxFlushRounds = n
		}
	}
}

func CreateReactiveSystem(onError OnErrorFunc, opts ...Option) *ReactiveSystem {
	rs := &ReactiveSystem{
		onError:        onError,
		batchedSet:     mapset.NewThreadUnsafeSet[*EffectRunner](),
		maxFlushRounds: DefaultMaxFlushRounds,
	}
	for _, opt := range opts {
		opt(rs)
	}
	if rs.logger == nil {
		rs.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	if rs.loop == nil {
		rs.loop = NewLoop(rs.logger)
	}
	rs.store = newDepStore(rs.logger)
	rs.queue = newJobQueue(rs)
	return rs
}

func (rs *ReactiveSystem) Loop() *Loop {
	return rs.loop
}

// Queue is the system's shared coalescing job queue.
func (rs *ReactiveSystem) Queue() *JobQueue {
	return rs.queue
}

func (rs *ReactiveSystem) Logger() *slog.Logger {
	return rs.logger
}

// Drain ends the current synchronous turn by running every pending microtask,
// which includes any job queue flush.
func (rs *ReactiveSystem) Drain() {
	rs.loop.Drain()
}

// ActiveEffect is the effect on top of the execution stack, or nil.
func (rs *ReactiveSystem) ActiveEffect() *EffectRunner {
	if len(rs.stack) == 0 {
		return nil
	}
	return rs.stack[len(rs.stack)-1]
}

func (rs *ReactiveSystem) push(e *EffectRunner) {
	rs.stack = append(rs.stack, e)
}

func (rs *ReactiveSystem) pop() {
	lastIdx := len(rs.stack) - 1
	rs.stack[lastIdx] = nil
	rs.stack = rs.stack[:lastIdx]
}

// PauseTracking pushes an empty frame so reads are not attributed to the
// running effect until ResumeTracking.
func (rs *ReactiveSystem) PauseTracking() {
	rs.push(nil)
}

func (rs *ReactiveSystem) ResumeTracking() {
	rs.pop()
}

func (rs *ReactiveSystem) Untrack(fn func() error) error {
	rs.PauseTracking()
	defer rs.ResumeTracking()
	return fn()
}

func (rs *ReactiveSystem) StartBatch() {
	rs.batchDepth++
}

// EndBatch closes a batch. When the outermost batch closes, every effect that
// was triggered inside it runs once, in the order it was first triggered. A
// panicking effect does not keep the rest from running; the first panic is
// re-raised once all of them have run.
func (rs *ReactiveSystem) EndBatch() error {
	rs.batchDepth--
	if rs.batchDepth > 0 {
		return nil
	}
	rs.batchDepth = 0

	batched := rs.batched
	rs.batched = nil
	rs.batchedSet.Clear()

	var (
		errs      []error
		recovered any
	)
	for _, e := range batched {
		if e.stopped {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					if recovered == nil {
						recovered = r
						return
					}
					errs = append(errs, &PanicError{Value: r})
				}
			}()
			if _, err := e.Run(); err != nil {
				errs = append(errs, err)
			}
		}()
	}
	if recovered != nil {
		panic(recovered)
	}
	return errors.Join(errs...)
}

func (rs *ReactiveSystem) Batch(cb func() error) (err error) {
	rs.StartBatch()
	defer func() {
		err = errors.Join(err, rs.EndBatch())
	}()
	return cb()
}

func (rs *ReactiveSystem) reportError(from *EffectRunner, err error) {
	if rs.onError != nil {
		rs.onError(from, err)
		return
	}
	rs.logger.Error("effect failed", "effect", from.Name(), "err", err)
}

// runIsolated runs an effect on a path with no caller to return to. Errors
// and panics go to the system's error handler.
func (rs *ReactiveSystem) runIsolated(e *EffectRunner) {
	defer func() {
		if r := recover(); r != nil {
			rs.reportError(e, &PanicError{Value: r})
		}
	}()
	if _, err := e.Run(); err != nil {
		rs.reportError(e, err)
	}
}

func (rs *ReactiveSystem) newName() string {
	rs.nextID++
	return fmt.Sprintf("effect-%d", rs.nextID)
}

type Stats struct {
	Targets       int
	Keys          int
	Subscriptions int
	QueuedJobs    int
	Flushes       int
}

func (rs *ReactiveSystem) Stats() Stats {
	st := rs.store.stats()
	st.QueuedJobs = len(rs.queue.pending)
	st.Flushes = rs.queue.flushes
	return st
}
