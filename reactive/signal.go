package reactive

// WriteableSignal is a single reactive value.
type WriteableSignal[T any] struct {
	Source
	rs    *ReactiveSystem
	value T
}

func Signal[T any](rs *ReactiveSystem, initialValue T) *WriteableSignal[T] {
	return &WriteableSignal[T]{
		rs:    rs,
		value: initialValue,
	}
}

func (s *WriteableSignal[T]) Value() T {
	Track(s.rs, s, ValueKey)
	return s.value
}

// Peek reads without tracking.
func (s *WriteableSignal[T]) Peek() T {
	return s.value
}

// SetValue stores v and triggers every reader, also when v equals the
// current value.
func (s *WriteableSignal[T]) SetValue(v T) error {
	s.value = v
	return Trigger(s.rs, s, ValueKey)
}

func (s *WriteableSignal[T]) Update(fn func(oldValue T) T) error {
	return s.SetValue(fn(s.value))
}
