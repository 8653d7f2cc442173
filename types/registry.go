package types

import (
	"sync"

	"github.com/wippyai/afb-runtime/errors"
)

// ID identifies a type within a registry. Zero is never assigned.
type ID uint32

// Type is a registered data type.
type Type struct {
	UID     string
	ID      ID
	Builtin bool
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.UID
}

// ConvertFunc converts a cell value of one type into a value of another.
// It must not modify its input.
type ConvertFunc func(value any) (any, error)

type edgeKey struct {
	from, to ID
}

// Registry maps uids to types and holds conversion edges between them.
type Registry struct {
	byUID map[string]*Type
	byID  []*Type
	edges map[edgeKey]ConvertFunc
	out   map[ID][]ID
	mu    sync.RWMutex
}

// NewRegistry creates a registry with builtin types and conversions installed.
func NewRegistry() *Registry {
	r := &Registry{
		byUID: make(map[string]*Type),
		byID:  []*Type{nil},
		edges: make(map[edgeKey]ConvertFunc),
		out:   make(map[ID][]ID),
	}
	for _, uid := range builtinUIDs {
		r.byID = append(r.byID, &Type{UID: uid, ID: ID(len(r.byID)), Builtin: true})
		r.byUID[uid] = r.byID[len(r.byID)-1]
	}
	installBuiltinConversions(r)
	return r
}

var (
	defaultRegistry *Registry
	defaultOnce     sync.Once
)

// Default returns the process-wide registry, creating it on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// Register looks up uid and creates it when absent. Calling Register twice
// with the same uid returns the same *Type.
func (r *Registry) Register(uid string) (*Type, error) {
	if uid == "" {
		return nil, errors.Registration(uid, errors.InvalidInput(errors.PhaseRegister, "empty type uid"))
	}

	r.mu.RLock()
	t, ok := r.byUID[uid]
	r.mu.RUnlock()
	if ok {
		return t, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.byUID[uid]; ok {
		return t, nil
	}
	t = &Type{UID: uid, ID: ID(len(r.byID))}
	r.byID = append(r.byID, t)
	r.byUID[uid] = t
	return t, nil
}

// Lookup returns the type registered under uid.
func (r *Registry) Lookup(uid string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byUID[uid]
	return t, ok
}

// MustLookup is like Lookup but panics for unknown uids. Meant for builtin
// uids, which always exist.
func (r *Registry) MustLookup(uid string) *Type {
	t, ok := r.Lookup(uid)
	if !ok {
		panic("types: unknown type " + uid)
	}
	return t
}

// ByID returns the type with the given id.
func (r *Registry) ByID(id ID) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id == 0 || int(id) >= len(r.byID) {
		return nil, false
	}
	return r.byID[id], true
}

// Types returns all registered types in registration order.
func (r *Registry) Types() []*Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Type, len(r.byID)-1)
	copy(out, r.byID[1:])
	return out
}

// AddConvertTo installs a conversion from t to target.
func (r *Registry) AddConvertTo(t, target *Type, fn ConvertFunc) error {
	return r.addEdge(t, target, fn)
}

// AddConvertFrom installs a conversion from source to t.
func (r *Registry) AddConvertFrom(t, source *Type, fn ConvertFunc) error {
	return r.addEdge(source, t, fn)
}

func (r *Registry) addEdge(from, to *Type, fn ConvertFunc) error {
	if from == nil || to == nil || fn == nil {
		return errors.New(errors.PhaseRegister, errors.KindNilPointer).
			Detail("conversion requires both types and a function").
			Build()
	}
	if from.ID == to.ID {
		return errors.InvalidInput(errors.PhaseRegister, "conversion to self: "+from.UID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := edgeKey{from: from.ID, to: to.ID}
	if _, exists := r.edges[key]; exists {
		return errors.AlreadyExists(errors.PhaseRegister, "conversion", from.UID+"->"+to.UID)
	}
	r.edges[key] = fn
	r.out[from.ID] = append(r.out[from.ID], to.ID)
	return nil
}

// Converter returns the direct conversion from one type to another.
func (r *Registry) Converter(from, to ID) (ConvertFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.edges[edgeKey{from: from, to: to}]
	return fn, ok
}

// Path returns the shortest chain of types leading from one type to
// another, both ends included.
func (r *Registry) Path(from, to ID) ([]ID, bool) {
	if from == to {
		return []ID{from}, true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	prev := map[ID]ID{from: 0}
	queue := []ID{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range r.out[cur] {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = cur
			if next == to {
				return buildPath(prev, from, to), true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

func buildPath(prev map[ID]ID, from, to ID) []ID {
	var rev []ID
	for cur := to; cur != from; cur = prev[cur] {
		rev = append(rev, cur)
	}
	rev = append(rev, from)
	path := make([]ID, len(rev))
	for i, id := range rev {
		path[len(rev)-1-i] = id
	}
	return path
}

// Convert converts value from one type to another along the shortest path.
func (r *Registry) Convert(from, to ID, value any) (any, error) {
	path, ok := r.Path(from, to)
	if !ok {
		return nil, errors.New(errors.PhaseConvert, errors.KindUnsupported).
			TypeUID(r.uidOf(to)).
			Detail("no conversion from %s", r.uidOf(from)).
			Build()
	}

	cur := value
	for i := 1; i < len(path); i++ {
		fn, _ := r.Converter(path[i-1], path[i])
		next, err := fn(cur)
		if err != nil {
			return nil, errors.New(errors.PhaseConvert, errors.KindInvalidData).
				TypeUID(r.uidOf(path[i])).
				Detail("convert from %s", r.uidOf(path[i-1])).
				Cause(err).
				Build()
		}
		cur = next
	}
	return cur, nil
}

func (r *Registry) uidOf(id ID) string {
	if t, ok := r.ByID(id); ok {
		return t.UID
	}
	return "#unknown"
}
