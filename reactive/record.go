package reactive

import (
	"maps"
	"slices"
)

// Record is a map-backed state object. Get and Set are the read and write
// hooks: Get tracks the field, Set stores the value and then triggers it.
type Record struct {
	Source
	rs     *ReactiveSystem
	fields map[Key]any
}

func NewRecord(rs *ReactiveSystem, fields map[Key]any) *Record {
	r := &Record{
		rs:     rs,
		fields: make(map[Key]any, len(fields)),
	}
	maps.Copy(r.fields, fields)
	return r
}

func (r *Record) Get(key Key) any {
	Track(r.rs, r, key)
	return r.fields[key]
}

func (r *Record) Set(key Key, value any) error {
	r.fields[key] = value
	return Trigger(r.rs, r, key)
}

// Keys lists the fields in sorted order without tracking them.
func (r *Record) Keys() []Key {
	return slices.Sorted(maps.Keys(r.fields))
}

// Field reads key as a T. A missing field or one of another type yields the
// zero value.
func Field[T any](r *Record, key Key) T {
	v, _ := r.Get(key).(T)
	return v
}
