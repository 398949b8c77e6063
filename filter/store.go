package filter

import (
	"errors"
	"sync"
)

// Field names one form field of the filter.
type Field string

const (
	FieldSearch     Field = "search"
	FieldOperator   Field = "operator"
	FieldPeriod     Field = "period"
	FieldRangeStart Field = "range_start"
	FieldRangeEnd   Field = "range_end"
)

// Fields lists every field in display order.
var Fields = []Field{FieldSearch, FieldOperator, FieldPeriod, FieldRangeStart, FieldRangeEnd}

// ErrFieldDisabled is returned by callers that surface a rejected Edit.
var ErrFieldDisabled = errors.New("field is disabled")

// FieldStore is the form state a Controller reads and writes.
//
// Set is a programmatic write and always applies. Edit is a user edit and is
// rejected while the field is disabled. Both notify the field's subscribers.
type FieldStore interface {
	Get(f Field) any
	Set(f Field, v any)
	Edit(f Field, v any) bool
	SetEnabled(f Field, enabled bool)
	Enabled(f Field) bool
	Subscribe(f Field, fn func(v any)) (unsubscribe func())
}

type subscription struct {
	id int
	fn func(v any)
}

// MemoryStore is an in-memory FieldStore. Fields start enabled and nil.
type MemoryStore struct {
	mu       sync.RWMutex
	values   map[Field]any
	disabled map[Field]bool
	subs     map[Field][]subscription
	nextSub  int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:   map[Field]any{},
		disabled: map[Field]bool{},
		subs:     map[Field][]subscription{},
	}
}

func (s *MemoryStore) Get(f Field) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[f]
}

func (s *MemoryStore) Set(f Field, v any) {
	s.mu.Lock()
	s.values[f] = v
	subs := s.subscribers(f)
	s.mu.Unlock()

	notify(subs, v)
}

func (s *MemoryStore) Edit(f Field, v any) bool {
	s.mu.Lock()
	if s.disabled[f] {
		s.mu.Unlock()
		return false
	}
	s.values[f] = v
	subs := s.subscribers(f)
	s.mu.Unlock()

	notify(subs, v)
	return true
}

// EditAll applies every edit or none of them. It fails when any of the
// fields is disabled.
func (s *MemoryStore) EditAll(values map[Field]any) bool {
	s.mu.Lock()
	for f := range values {
		if s.disabled[f] {
			s.mu.Unlock()
			return false
		}
	}
	pending := make([]func(), 0, len(values))
	for _, f := range Fields {
		v, ok := values[f]
		if !ok {
			continue
		}
		s.values[f] = v
		subs := s.subscribers(f)
		pending = append(pending, func() { notify(subs, v) })
	}
	s.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
	return true
}

func (s *MemoryStore) SetEnabled(f Field, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if enabled {
		delete(s.disabled, f)
		return
	}
	s.disabled[f] = true
}

func (s *MemoryStore) Enabled(f Field) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.disabled[f]
}

func (s *MemoryStore) Subscribe(f Field, fn func(v any)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[f] = append(s.subs[f], subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			kept := s.subs[f][:0:0]
			for _, sub := range s.subs[f] {
				if sub.id != id {
					kept = append(kept, sub)
				}
			}
			s.subs[f] = kept
		})
	}
}

// Snapshot returns a copy of every field value keyed by field name.
func (s *MemoryStore) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(Fields))
	for _, f := range Fields {
		out[string(f)] = s.values[f]
	}
	return out
}

// subscribers copies the callback list; callers hold s.mu.
func (s *MemoryStore) subscribers(f Field) []func(v any) {
	fns := make([]func(v any), 0, len(s.subs[f]))
	for _, sub := range s.subs[f] {
		fns = append(fns, sub.fn)
	}
	return fns
}

func notify(fns []func(v any), v any) {
	for _, fn := range fns {
		fn(v)
	}
}
