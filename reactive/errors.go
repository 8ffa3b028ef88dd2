package reactive

import (
	"errors"
	"fmt"
)

var (
	ErrNilFunc    = errors.New("reactive: nil effect function")
	ErrFlushLimit = errors.New("reactive: job queue did not settle")
)

// PanicError carries a value recovered from an effect body that ran on an
// isolated path (a queued job or a deferred task).
type PanicError struct {
	Value any
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("reactive: effect panicked: %v", p.Value)
}

func (p *PanicError) Unwrap() error {
	if err, ok := p.Value.(error); ok {
		return err
	}
	return nil
}
