package resource

import (
	"sync"
)

// UnifiedTable implements the Table interface using a LocalBackend for storage.
type UnifiedTable struct {
	backend   *LocalBackend
	observers []Observer
	obsMu     sync.RWMutex
}

// NewTable creates a new unified table with a LocalBackend.
func NewTable() *UnifiedTable {
	return &UnifiedTable{
		backend: NewLocalBackend(),
	}
}

// Create adds a value and returns its handle. The caller owns the single
// initial reference. Returns 0 once the table is closed.
func (t *UnifiedTable) Create(typeID uint32, value any, release Release) Handle {
	handle, err := t.backend.Create(typeID, value, release)
	if err != nil {
		return 0
	}

	t.notify(Event{
		Type:   EventCreated,
		Handle: handle,
		TypeID: typeID,
		Value:  value,
		Refs:   1,
	})

	return handle
}

// Get retrieves a value by handle.
func (t *UnifiedTable) Get(handle Handle) (any, bool) {
	return t.backend.Get(handle)
}

// GetTyped retrieves a value only if it matches the expected type.
func (t *UnifiedTable) GetTyped(handle Handle, typeID uint32) (any, bool) {
	actualTypeID, ok := t.backend.TypeID(handle)
	if !ok || actualTypeID != typeID {
		return nil, false
	}
	return t.backend.Get(handle)
}

// TypeID returns the type of a cell.
func (t *UnifiedTable) TypeID(handle Handle) (uint32, bool) {
	return t.backend.TypeID(handle)
}

// AddRef takes an additional reference on a cell.
func (t *UnifiedTable) AddRef(handle Handle) bool {
	refs, ok := t.backend.AddRef(handle)
	if !ok {
		return false
	}
	typeID, _ := t.backend.TypeID(handle)
	t.notify(Event{
		Type:   EventAddRef,
		Handle: handle,
		TypeID: typeID,
		Refs:   refs,
	})
	return true
}

// Unref drops one reference. The release callback runs outside the table
// lock when the last reference goes away.
func (t *UnifiedTable) Unref(handle Handle) bool {
	typeID, _ := t.backend.TypeID(handle)
	refs, value, release, last, ok := t.backend.Unref(handle)
	if !ok {
		return false
	}

	t.notify(Event{
		Type:   EventUnref,
		Handle: handle,
		TypeID: typeID,
		Refs:   refs,
	})

	if last {
		runRelease(value, release)
		t.notify(Event{
			Type:   EventReleased,
			Handle: handle,
			TypeID: typeID,
			Value:  value,
		})
	}
	return true
}

// RefCount returns the current reference count of a cell.
func (t *UnifiedTable) RefCount(handle Handle) int {
	return int(t.backend.RefCount(handle))
}

// Subscribe adds an observer for lifecycle events.
func (t *UnifiedTable) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *UnifiedTable) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of live cells.
func (t *UnifiedTable) Len() int {
	return t.backend.Len()
}

// Close releases all cells and stops accepting operations.
func (t *UnifiedTable) Close() error {
	return t.backend.Close()
}

// Backend returns the underlying storage.
func (t *UnifiedTable) Backend() *LocalBackend {
	return t.backend
}

func (t *UnifiedTable) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
