package reactive

// ComputedValue is a lazily evaluated, cached value derived from other
// reactive state. It is itself a dependency source under ValueKey.
type ComputedValue[T any] struct {
	Source
	rs     *ReactiveSystem
	effect *EffectRunner
	getter func() T
	value  T
	dirty  bool
}

// Computed does not call getter until the first Value.
func Computed[T any](rs *ReactiveSystem, getter func() T) *ComputedValue[T] {
	c := &ComputedValue[T]{
		rs:     rs,
		getter: getter,
		dirty:  true,
	}
	c.effect = newEffect(rs, func() (any, error) {
		c.value = c.getter()
		return c.value, nil
	}, Lazy(), WithScheduler(c), detached())
	return c
}

// Schedule is called instead of re-running the getter when a dependency
// changes: the cache is invalidated and readers of the computed are
// triggered, which recompute on their next read.
func (c *ComputedValue[T]) Schedule(*EffectRunner) {
	if c.dirty {
		return
	}
	c.dirty = true
	if err := Trigger(c.rs, c, ValueKey); err != nil {
		c.rs.reportError(c.effect, err)
	}
}

func (c *ComputedValue[T]) Value() T {
	if c.dirty {
		// the getter cannot fail; the result is already in c.value
		_, _ = c.effect.Run()
		c.dirty = c.effect.Stopped()
	}
	Track(c.rs, c, ValueKey)
	return c.value
}

func (c *ComputedValue[T]) Dirty() bool {
	return c.dirty
}

// Stop detaches the computed from its sources. Later reads call the getter
// every time without tracking.
func (c *ComputedValue[T]) Stop() {
	c.effect.Stop()
	c.dirty = true
}
