package reactive

import (
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"weak"

	mapset "github.com/deckarep/golang-set/v2"
)

// Key names a tracked field of a state object.
type Key string

// ValueKey is the key single-value sources (signals, computeds) track under.
const ValueKey Key = "value"

// subscribers is the set of effects that read one (target, key) pair.
type subscribers struct {
	key     Key
	effects mapset.Set[*EffectRunner]
}

type targetDeps struct {
	keys map[Key]*subscribers
}

// depStore maps target identity -> key -> subscribers. Identities are held
// through weak pointers; once a target and its Source are collected the entry
// is queued on released and removed on the next sweep.
type depStore struct {
	logger  *slog.Logger
	targets map[weak.Pointer[sourceID]]*targetDeps

	mu       sync.Mutex
	released []weak.Pointer[sourceID]
}

func newDepStore(logger *slog.Logger) *depStore {
	return &depStore{
		logger:  logger,
		targets: map[weak.Pointer[sourceID]]*targetDeps{},
	}
}

func (s *depStore) lookup(target Target, key Key) *subscribers {
	s.sweep()
	td, ok := s.targets[weak.Make(target.reactiveID())]
	if !ok {
		return nil
	}
	return td.keys[key]
}

func (s *depStore) lookupOrCreate(target Target, key Key) *subscribers {
	s.sweep()
	token := target.reactiveID()
	id := weak.Make(token)
	td, ok := s.targets[id]
	if !ok {
		td = &targetDeps{keys: map[Key]*subscribers{}}
		s.targets[id] = td
		runtime.AddCleanup(token, s.release, id)
	}
	subs, ok := td.keys[key]
	if !ok {
		subs = &subscribers{
			key:     key,
			effects: mapset.NewThreadUnsafeSet[*EffectRunner](),
		}
		td.keys[key] = subs
	}
	return subs
}

// release runs on the runtime's cleanup goroutine.
func (s *depStore) release(id weak.Pointer[sourceID]) {
	s.mu.Lock()
	s.released = append(s.released, id)
	s.mu.Unlock()
}

func (s *depStore) sweep() {
	s.mu.Lock()
	released := s.released
	s.released = nil
	s.mu.Unlock()

	for _, id := range released {
		td, ok := s.targets[id]
		if !ok {
			continue
		}
		delete(s.targets, id)
		s.logger.Debug("purged collected target", "keys", len(td.keys))
	}
}

func (s *depStore) stats() Stats {
	s.sweep()
	var st Stats
	st.Targets = len(s.targets)
	for _, td := range s.targets {
		st.Keys += len(td.keys)
		for _, subs := range td.keys {
			st.Subscriptions += subs.effects.Cardinality()
		}
	}
	return st
}

// Track records that the active effect read key on target. Without an active
// effect it does nothing.
func Track(rs *ReactiveSystem, target Target, key Key) {
	active := rs.ActiveEffect()
	if active == nil || active.stopped || target == nil {
		return
	}
	subs := rs.store.lookupOrCreate(target, key)
	if subs.effects.Add(active) {
		active.deps = append(active.deps, subs)
	}
}

// Trigger notifies every effect that read key on target. Effects without a
// scheduler run before Trigger returns and their errors are joined into the
// result; scheduled effects are handed to their scheduler.
func Trigger(rs *ReactiveSystem, target Target, key Key) error {
	if target == nil {
		return nil
	}
	subs := rs.store.lookup(target, key)
	if subs == nil {
		return nil
	}
	// iterate a copy: re-running an effect removes it from and re-adds it to
	// the live set
	return rs.dispatch(subs.effects.ToSlice())
}

// SubscriberCount reports how many effects currently read key on target.
func (rs *ReactiveSystem) SubscriberCount(target Target, key Key) int {
	if target == nil {
		return 0
	}
	subs := rs.store.lookup(target, key)
	if subs == nil {
		return 0
	}
	return subs.effects.Cardinality()
}

func (rs *ReactiveSystem) dispatch(effects []*EffectRunner) error {
	active := rs.ActiveEffect()
	var errs []error
	for _, e := range effects {
		switch {
		case e == active, e.stopped:
			continue
		case e.scheduler != nil:
			e.scheduler.Schedule(e)
		case rs.batchDepth > 0:
			if rs.batchedSet.Add(e) {
				rs.batched = append(rs.batched, e)
			}
		default:
			if _, err := e.Run(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
