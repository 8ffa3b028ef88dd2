package reactive_test

import (
	"testing"

	"github.com/delaneyj/effectparty/reactive"
	"github.com/stretchr/testify/assert"
)

func newSystem(t *testing.T, opts ...reactive.Option) *reactive.ReactiveSystem {
	t.Helper()
	return reactive.CreateReactiveSystem(func(from *reactive.EffectRunner, err error) {
		assert.FailNow(t, err.Error())
	}, opts...)
}

// collector records errors reported outside of a caller's reach.
type collector struct {
	from []*reactive.EffectRunner
	errs []error
}

func (c *collector) onError(from *reactive.EffectRunner, err error) {
	c.from = append(c.from, from)
	c.errs = append(c.errs, err)
}
