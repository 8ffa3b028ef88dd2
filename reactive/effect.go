package reactive

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// Func is an effect body. Its result is returned from every Run.
type Func func() (any, error)

type ErrFn func() error

// EffectRunner is a registered computation. It is re-run, or handed to its
// scheduler, whenever a field it read during its latest run changes.
type EffectRunner struct {
	rs   *ReactiveSystem
	name string
	fn   Func

	// every subscriber set this effect is a member of
	deps []*subscribers

	lazy      bool
	scheduler Scheduler
	detached  bool
	scope     bool

	owner    *EffectRunner
	children mapset.Set[*EffectRunner]

	stopped bool
	runs    int
}

type EffectOption func(e *EffectRunner)

// Lazy registers the effect without running it.
func Lazy() EffectOption {
	return func(e *EffectRunner) {
		e.lazy = true
	}
}

func WithScheduler(s Scheduler) EffectOption {
	return func(e *EffectRunner) {
		e.scheduler = s
	}
}

func WithName(name string) EffectOption {
	return func(e *EffectRunner) {
		if name != "" {
			e.name = name
		}
	}
}

// detached effects are not owned by the effect that created them.
func detached() EffectOption {
	return func(e *EffectRunner) {
		e.detached = true
	}
}

func newEffect(rs *ReactiveSystem, fn Func, opts ...EffectOption) *EffectRunner {
	e := &EffectRunner{
		rs:       rs,
		name:     rs.newName(),
		fn:       fn,
		children: mapset.NewThreadUnsafeSet[*EffectRunner](),
	}
	for _, opt := range opts {
		opt(e)
	}
	if !e.detached && rs.owner != nil {
		e.owner = rs.owner
		rs.owner.children.Add(e)
	}
	return e
}

// Register wraps fn in an effect. Unless Lazy is given the effect runs once
// before Register returns and its error, if any, is returned alongside the
// handle.
func Register(rs *ReactiveSystem, fn Func, opts ...EffectOption) (*EffectRunner, error) {
	if fn == nil {
		return nil, ErrNilFunc
	}
	e := newEffect(rs, fn, opts...)
	if e.lazy {
		return e, nil
	}
	if _, err := e.Run(); err != nil {
		return e, err
	}
	return e, nil
}

func Effect(rs *ReactiveSystem, fn ErrFn, opts ...EffectOption) (*EffectRunner, error) {
	if fn == nil {
		return nil, ErrNilFunc
	}
	return Register(rs, func() (any, error) {
		return nil, fn()
	}, opts...)
}

// Run drops every dependency recorded by the previous run, then calls fn with
// e as the active effect so that only the fields read this time are tracked.
// The execution stack is restored on every exit path, panics included.
func (e *EffectRunner) Run() (any, error) {
	rs := e.rs
	if e.scope {
		return nil, nil
	}
	if e.stopped {
		rs.PauseTracking()
		defer rs.ResumeTracking()
		return e.fn()
	}

	e.cleanup()

	prevOwner := rs.owner
	rs.owner = e
	rs.push(e)
	defer func() {
		rs.pop()
		rs.owner = prevOwner
	}()

	e.runs++
	return e.fn()
}

func (e *EffectRunner) cleanup() {
	for _, subs := range e.deps {
		subs.effects.Remove(e)
	}
	clear(e.deps)
	e.deps = e.deps[:0]

	if e.children.Cardinality() > 0 {
		for _, child := range e.children.ToSlice() {
			child.stop()
			child.owner = nil
		}
		e.children.Clear()
	}
}

// Stop unsubscribes the effect and every effect it owns. A stopped effect is
// never scheduled again.
func (e *EffectRunner) Stop() {
	if e.stopped {
		return
	}
	e.stop()
	if e.owner != nil {
		e.owner.children.Remove(e)
		e.owner = nil
	}
}

func (e *EffectRunner) stop() {
	e.stopped = true
	e.cleanup()
}

func (e *EffectRunner) Name() string {
	if e == nil {
		return ""
	}
	return e.name
}

func (e *EffectRunner) Stopped() bool {
	return e.stopped
}

// Runs counts tracked runs.
func (e *EffectRunner) Runs() int {
	return e.runs
}

func (e *EffectRunner) DepCount() int {
	return len(e.deps)
}

// EffectScope runs fn untracked and collects every effect created inside it.
// The returned stop function stops all of them.
func EffectScope(rs *ReactiveSystem, fn ErrFn) (stop func(), err error) {
	if fn == nil {
		return func() {}, ErrNilFunc
	}
	scope := newEffect(rs, nil)
	scope.scope = true

	prevOwner := rs.owner
	rs.owner = scope
	rs.PauseTracking()
	func() {
		defer func() {
			rs.ResumeTracking()
			rs.owner = prevOwner
		}()
		err = fn()
	}()

	return scope.Stop, err
}
