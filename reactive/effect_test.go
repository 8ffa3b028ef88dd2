package reactive_test

import (
	"errors"
	"testing"

	"github.com/delaneyj/effectparty/reactive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// should run eagerly and return fn's result from the handle
func TestRegisterRunsEagerly(t *testing.T) {
	rs := newSystem(t)
	count := reactive.Signal(rs, 2)

	runs := 0
	e, err := reactive.Register(rs, func() (any, error) {
		runs++
		return count.Value() * 10, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, runs)

	v, err := e.Run()
	require.NoError(t, err)
	assert.Equal(t, 20, v)
	assert.Equal(t, 2, e.Runs())
}

// should not run lazy effects until invoked
func TestRegisterLazy(t *testing.T) {
	rs := newSystem(t)
	count := reactive.Signal(rs, 1)

	runs := 0
	e, err := reactive.Effect(rs, func() error {
		runs++
		count.Value()
		return nil
	}, reactive.Lazy())
	require.NoError(t, err)
	assert.Equal(t, 0, runs)

	require.NoError(t, count.SetValue(2))
	assert.Equal(t, 0, runs)

	_, err = e.Run()
	require.NoError(t, err)
	assert.Equal(t, 1, runs)

	require.NoError(t, count.SetValue(3))
	assert.Equal(t, 2, runs)
}

// should reject a nil body
func TestRegisterNil(t *testing.T) {
	rs := newSystem(t)
	_, err := reactive.Register(rs, nil)
	assert.ErrorIs(t, err, reactive.ErrNilFunc)
	_, err = reactive.Effect(rs, nil)
	assert.ErrorIs(t, err, reactive.ErrNilFunc)
}

// should drop the branch not taken on the latest run
func TestBranchSwitchDropsStaleDeps(t *testing.T) {
	rs := newSystem(t)
	state := reactive.NewRecord(rs, map[reactive.Key]any{
		"ok": true,
		"b":  "b",
		"c":  "c",
	})

	runs := 0
	var seen any
	e, err := reactive.Effect(rs, func() error {
		runs++
		if reactive.Field[bool](state, "ok") {
			seen = state.Get("b")
		} else {
			seen = state.Get("c")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, runs)
	assert.Equal(t, "b", seen)
	assert.Equal(t, 1, rs.SubscriberCount(state, "b"))

	require.NoError(t, state.Set("ok", false))
	assert.Equal(t, 2, runs)
	assert.Equal(t, "c", seen)
	assert.Equal(t, 0, rs.SubscriberCount(state, "b"))
	assert.Equal(t, 1, rs.SubscriberCount(state, "c"))
	assert.Equal(t, 2, e.DepCount())

	require.NoError(t, state.Set("b", "stale"))
	assert.Equal(t, 2, runs)

	require.NoError(t, state.Set("c", "fresh"))
	assert.Equal(t, 3, runs)
	assert.Equal(t, "fresh", seen)
}

// should not re-enter an effect that writes what it reads
func TestSelfIncrementDoesNotRecurse(t *testing.T) {
	rs := newSystem(t)
	n := reactive.Signal(rs, 0)

	runs := 0
	_, err := reactive.Effect(rs, func() error {
		runs++
		return n.SetValue(n.Value() + 1)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, runs)
	assert.Equal(t, 1, n.Peek())

	require.NoError(t, n.SetValue(10))
	assert.Equal(t, 2, runs)
	assert.Equal(t, 11, n.Peek())
}

// should attribute reads after an inner effect to the outer effect
func TestNestedEffectsRestoreActive(t *testing.T) {
	rs := newSystem(t)
	x := reactive.Signal(rs, 0)
	y := reactive.Signal(rs, 0)

	outerRuns, innerRuns := 0, 0
	_, err := reactive.Effect(rs, func() error {
		outerRuns++
		if _, err := reactive.Effect(rs, func() error {
			innerRuns++
			y.Value()
			return nil
		}); err != nil {
			return err
		}
		x.Value()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, outerRuns)
	assert.Equal(t, 1, innerRuns)
	assert.Nil(t, rs.ActiveEffect())

	require.NoError(t, x.SetValue(1))
	assert.Equal(t, 2, outerRuns)
	assert.Equal(t, 2, innerRuns)

	// the inner effect from the first outer run was stopped by the re-run
	require.NoError(t, y.SetValue(1))
	assert.Equal(t, 2, outerRuns)
	assert.Equal(t, 3, innerRuns)
	assert.Equal(t, 1, rs.SubscriberCount(y, reactive.ValueKey))
	assert.Equal(t, 1, rs.SubscriberCount(x, reactive.ValueKey))
}

// should return body errors to whoever ran the effect
func TestEffectErrorPropagates(t *testing.T) {
	rs := newSystem(t)
	count := reactive.Signal(rs, 0)
	boom := errors.New("boom")

	_, err := reactive.Effect(rs, func() error {
		if count.Value() > 0 {
			return boom
		}
		return nil
	})
	require.NoError(t, err)

	err = count.SetValue(1)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, rs.ActiveEffect())
}

// should restore the execution stack when a body panics
func TestEffectPanicRestoresStack(t *testing.T) {
	rs := newSystem(t)
	count := reactive.Signal(rs, 0)

	_, err := reactive.Effect(rs, func() error {
		if count.Value() > 0 {
			panic("boom")
		}
		return nil
	})
	require.NoError(t, err)

	assert.Panics(t, func() {
		count.SetValue(1)
	})
	assert.Nil(t, rs.ActiveEffect())

	// tracking still works for later effects
	other := reactive.Signal(rs, 0)
	runs := 0
	_, err = reactive.Effect(rs, func() error {
		runs++
		other.Value()
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, other.SetValue(1))
	assert.Equal(t, 2, runs)
	assert.Equal(t, 1, rs.SubscriberCount(other, reactive.ValueKey))
}

// should not trigger after stop
func TestStopUnsubscribes(t *testing.T) {
	rs := newSystem(t)
	count := reactive.Signal(rs, 0)

	runs := 0
	e, err := reactive.Effect(rs, func() error {
		runs++
		count.Value()
		return nil
	})
	require.NoError(t, err)

	e.Stop()
	assert.True(t, e.Stopped())
	assert.Equal(t, 0, e.DepCount())
	assert.Equal(t, 0, rs.SubscriberCount(count, reactive.ValueKey))

	require.NoError(t, count.SetValue(1))
	assert.Equal(t, 1, runs)

	// running a stopped effect does not subscribe it again
	_, err = e.Run()
	require.NoError(t, err)
	assert.Equal(t, 2, runs)
	assert.Equal(t, 0, rs.SubscriberCount(count, reactive.ValueKey))
}

// should not trigger after the scope stops
func TestEffectScopeStopsChildren(t *testing.T) {
	rs := newSystem(t)
	count := reactive.Signal(rs, 0)

	triggers := 0
	stopScope, err := reactive.EffectScope(rs, func() error {
		_, err := reactive.Effect(rs, func() error {
			triggers++
			count.Value()
			return nil
		})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, triggers)

	require.NoError(t, count.SetValue(2))
	assert.Equal(t, 2, triggers)

	stopScope()
	require.NoError(t, count.SetValue(3))
	assert.Equal(t, 2, triggers)
}

// should pause tracking
func TestUntrack(t *testing.T) {
	rs := newSystem(t)
	tracked := reactive.Signal(rs, 0)
	untracked := reactive.Signal(rs, 0)

	runs := 0
	_, err := reactive.Effect(rs, func() error {
		runs++
		tracked.Value()
		return rs.Untrack(func() error {
			untracked.Value()
			return nil
		})
	})
	require.NoError(t, err)

	require.NoError(t, untracked.SetValue(1))
	assert.Equal(t, 1, runs)
	require.NoError(t, tracked.SetValue(1))
	assert.Equal(t, 2, runs)
}

// should run each effect once at the end of a batch
func TestBatch(t *testing.T) {
	rs := newSystem(t)
	a := reactive.Signal(rs, 0)
	b := reactive.Signal(rs, 0)

	runs := 0
	sum := 0
	_, err := reactive.Effect(rs, func() error {
		runs++
		sum = a.Value() + b.Value()
		return nil
	})
	require.NoError(t, err)

	err = rs.Batch(func() error {
		if err := a.SetValue(1); err != nil {
			return err
		}
		if err := b.SetValue(2); err != nil {
			return err
		}
		return a.SetValue(3)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, runs)
	assert.Equal(t, 5, sum)
}

// should hold a batch open across nested batches
func TestNestedBatch(t *testing.T) {
	rs := newSystem(t)
	a := reactive.Signal(rs, 0)

	runs := 0
	_, err := reactive.Effect(rs, func() error {
		runs++
		a.Value()
		return nil
	})
	require.NoError(t, err)

	rs.StartBatch()
	require.NoError(t, a.SetValue(1))
	rs.StartBatch()
	require.NoError(t, a.SetValue(2))
	require.NoError(t, rs.EndBatch())
	assert.Equal(t, 1, runs)
	require.NoError(t, rs.EndBatch())
	assert.Equal(t, 2, runs)
}

// should not carry effects from a panicking batch into the next one
func TestBatchPanicDoesNotLeak(t *testing.T) {
	rs := newSystem(t)
	a := reactive.Signal(rs, 0)

	_, err := reactive.Effect(rs, func() error {
		if a.Value() > 0 {
			panic("boom")
		}
		return nil
	})
	require.NoError(t, err)

	runs := 0
	_, err = reactive.Effect(rs, func() error {
		runs++
		a.Value()
		return nil
	})
	require.NoError(t, err)

	assert.Panics(t, func() {
		_ = rs.Batch(func() error {
			return a.SetValue(1)
		})
	})
	// the healthy effect still ran in the failed batch
	assert.Equal(t, 2, runs)
	assert.Nil(t, rs.ActiveEffect())

	require.NoError(t, rs.Batch(func() error {
		return nil
	}))
	assert.Equal(t, 2, runs)
}
