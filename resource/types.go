package resource

// Handle is an opaque reference to a data cell in a table.
// The low 32 bits address the slot, the high 32 bits carry the slot
// generation so a released handle never aliases a recycled cell.
// Handle 0 is reserved and always invalid.
type Handle uint64

func makeHandle(slot, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(slot+1))
}

func (h Handle) slot() (uint32, bool) {
	low := uint32(h)
	if low == 0 {
		return 0, false
	}
	return low - 1, true
}

func (h Handle) generation() uint32 {
	return uint32(h >> 32)
}

// Release is invoked exactly once, when the last reference to a cell is
// dropped. It receives the cell value.
type Release func(value any)

// Event types for data cell lifecycle notifications.
type EventType uint8

const (
	EventCreated EventType = iota
	EventAddRef
	EventUnref
	EventReleased
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventAddRef:
		return "addref"
	case EventUnref:
		return "unref"
	case EventReleased:
		return "released"
	default:
		return "unknown"
	}
}

// Event represents a data cell lifecycle event. Refs is the reference
// count after the operation.
type Event struct {
	Value  any
	Handle Handle
	TypeID uint32
	Refs   int32
	Type   EventType
}

// Observer receives notifications about data cell lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// OnResourceEvent calls f(e).
func (f ObserverFunc) OnResourceEvent(e Event) { f(e) }

// Backend provides the underlying storage mechanism for data cells.
type Backend interface {
	// Create stores a value with one reference and returns its handle.
	Create(typeID uint32, value any, release Release) (Handle, error)

	// Get retrieves a value by handle.
	Get(handle Handle) (any, bool)

	// AddRef increments the reference count and returns the new count.
	AddRef(handle Handle) (int32, bool)

	// Unref decrements the reference count. When the count reaches zero the
	// cell is invalidated and its value and release callback are returned
	// with last set to true; the caller runs the release.
	Unref(handle Handle) (refs int32, value any, release Release, last bool, ok bool)

	// Close releases all cells held by the backend.
	Close() error
}

// Table manages reference-counted data cells with type information and
// observer support.
type Table interface {
	// Create adds a value with one reference owned by the caller.
	Create(typeID uint32, value any, release Release) Handle

	// Get retrieves a value by handle.
	Get(handle Handle) (any, bool)

	// GetTyped retrieves a value only if it matches the expected type.
	GetTyped(handle Handle, typeID uint32) (any, bool)

	// TypeID returns the type of a cell.
	TypeID(handle Handle) (uint32, bool)

	// AddRef takes an additional reference on a cell.
	AddRef(handle Handle) bool

	// Unref drops one reference, releasing the cell on the last one.
	Unref(handle Handle) bool

	// RefCount returns the current reference count, 0 for invalid handles.
	RefCount(handle Handle) int

	// Subscribe adds an observer for lifecycle events.
	Subscribe(Observer)

	// Unsubscribe removes an observer.
	Unsubscribe(Observer)

	// Len returns the number of live cells.
	Len() int

	// Close releases all cells and stops accepting operations.
	Close() error
}

// Dropper is implemented by values that hold resources of their own. It is
// called on release when the cell was created without a release callback.
type Dropper interface {
	Drop()
}
