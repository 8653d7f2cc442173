package resource

import (
	"errors"
	"sync"
)

var (
	ErrClosed = errors.New("resource backend closed")
)

// LocalBackend is an in-memory reference-counted cell store.
type LocalBackend struct {
	entries  []entry
	freeList []uint32
	mu       sync.RWMutex
	closed   bool
}

type entry struct {
	value   any
	release Release
	typeID  uint32
	gen     uint32
	refs    int32
	valid   bool
}

// NewLocalBackend creates a new in-memory backend.
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{
		entries:  make([]entry, 0, 64),
		freeList: make([]uint32, 0, 16),
	}
}

// Create stores a value with a reference count of one.
func (b *LocalBackend) Create(typeID uint32, value any, release Release) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}

	if len(b.freeList) > 0 {
		slot := b.freeList[len(b.freeList)-1]
		b.freeList = b.freeList[:len(b.freeList)-1]
		e := &b.entries[slot]
		e.gen++
		e.typeID = typeID
		e.value = value
		e.release = release
		e.refs = 1
		e.valid = true
		return makeHandle(slot, e.gen), nil
	}

	b.entries = append(b.entries, entry{
		typeID:  typeID,
		value:   value,
		release: release,
		refs:    1,
		valid:   true,
	})
	return makeHandle(uint32(len(b.entries)-1), 0), nil
}

// lookup returns the live entry for a handle. Caller holds the lock.
func (b *LocalBackend) lookup(handle Handle) *entry {
	slot, ok := handle.slot()
	if !ok || int(slot) >= len(b.entries) {
		return nil
	}
	e := &b.entries[slot]
	if !e.valid || e.gen != handle.generation() {
		return nil
	}
	return e
}

// Get retrieves a value by handle.
func (b *LocalBackend) Get(handle Handle) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(handle)
	if e == nil {
		return nil, false
	}
	return e.value, true
}

// TypeID returns the type ID for a handle.
func (b *LocalBackend) TypeID(handle Handle) (uint32, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(handle)
	if e == nil {
		return 0, false
	}
	return e.typeID, true
}

// RefCount returns the reference count for a handle.
func (b *LocalBackend) RefCount(handle Handle) int32 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(handle)
	if e == nil {
		return 0
	}
	return e.refs
}

// AddRef increments the reference count for a handle.
func (b *LocalBackend) AddRef(handle Handle) (int32, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(handle)
	if e == nil {
		return 0, false
	}
	e.refs++
	return e.refs, true
}

// Unref decrements the reference count for a handle.
func (b *LocalBackend) Unref(handle Handle) (int32, any, Release, bool, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(handle)
	if e == nil {
		return 0, nil, nil, false, false
	}

	e.refs--
	if e.refs > 0 {
		return e.refs, e.value, nil, false, true
	}

	value, release := e.value, e.release
	slot, _ := handle.slot()
	e.valid = false
	e.value = nil
	e.release = nil
	e.refs = 0
	b.freeList = append(b.freeList, slot)

	return 0, value, release, true, true
}

// Close releases all cells regardless of their reference counts.
func (b *LocalBackend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true

	type pending struct {
		value   any
		release Release
	}
	var live []pending
	for i := range b.entries {
		if b.entries[i].valid {
			live = append(live, pending{b.entries[i].value, b.entries[i].release})
			b.entries[i].valid = false
			b.entries[i].value = nil
			b.entries[i].release = nil
		}
	}
	b.entries = nil
	b.freeList = nil
	b.mu.Unlock()

	for _, p := range live {
		runRelease(p.value, p.release)
	}
	return nil
}

// Len returns the number of live cells.
func (b *LocalBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, e := range b.entries {
		if e.valid {
			count++
		}
	}
	return count
}

// Each iterates over all live cells.
func (b *LocalBackend) Each(fn func(Handle, uint32, any) bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i, e := range b.entries {
		if e.valid {
			if !fn(makeHandle(uint32(i), e.gen), e.typeID, e.value) {
				break
			}
		}
	}
}

func runRelease(value any, release Release) {
	if release != nil {
		release(value)
		return
	}
	if d, ok := value.(Dropper); ok {
		d.Drop()
	}
}
