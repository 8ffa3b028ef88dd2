package reactive

// Scheduler decides when a triggered effect actually runs. An effect with a
// scheduler is never run inline by Trigger.
type Scheduler interface {
	Schedule(e *EffectRunner)
}

type SchedulerFunc func(e *EffectRunner)

func (f SchedulerFunc) Schedule(e *EffectRunner) {
	f(e)
}

// Immediate runs the effect right away. Errors go to the system's error
// handler since a scheduler has no caller to return them to.
var Immediate Scheduler = SchedulerFunc(func(e *EffectRunner) {
	if _, err := e.Run(); err != nil {
		e.rs.reportError(e, err)
	}
})

// Deferred runs the effect once per trigger, as a macrotask on the system's
// loop, after the current synchronous turn and its microtasks.
var Deferred Scheduler = SchedulerFunc(func(e *EffectRunner) {
	e.rs.loop.Post(func() {
		if e.stopped {
			return
		}
		e.rs.runIsolated(e)
	})
})
