package transcoder

import (
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/afb-runtime/errors"
	"github.com/wippyai/afb-runtime/jsonc"
	"github.com/wippyai/afb-runtime/resource"
	"github.com/wippyai/afb-runtime/types"
)

// Recorder receives conversion outcomes. The metrics collector implements it.
type Recorder interface {
	ConversionFailed(from, to string)
}

// Transcoder bundles the type registry, the converter registry and the
// data cell table. One instance serves a whole process; every component
// needing conversions receives it explicitly.
type Transcoder struct {
	types      *types.Registry
	table      *resource.UnifiedTable
	logger     *zap.Logger
	recorder   Recorder
	goTypes    sync.Map // reflect.Type -> *types.Type
	converters sync.Map // uid -> *Converter
}

// Option configures a Transcoder.
type Option func(*Transcoder)

// WithRegistry uses an existing type registry.
func WithRegistry(r *types.Registry) Option {
	return func(tc *Transcoder) { tc.types = r }
}

// WithTable uses an existing data cell table.
func WithTable(t *resource.UnifiedTable) Option {
	return func(tc *Transcoder) { tc.table = t }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(tc *Transcoder) { tc.logger = l }
}

// WithRecorder reports conversion failures to r.
func WithRecorder(r Recorder) Option {
	return func(tc *Transcoder) { tc.recorder = r }
}

// New creates a transcoder. Without options it gets a private type
// registry and cell table.
func New(opts ...Option) *Transcoder {
	tc := &Transcoder{}
	for _, opt := range opts {
		opt(tc)
	}
	if tc.types == nil {
		tc.types = types.NewRegistry()
	}
	if tc.table == nil {
		tc.table = resource.NewTable()
	}
	if tc.logger == nil {
		tc.logger = Logger()
	}
	tc.installGoTypes()
	return tc
}

var (
	defaultTranscoder *Transcoder
	defaultOnce       sync.Once
)

// Default returns the process-wide transcoder backed by types.Default().
func Default() *Transcoder {
	defaultOnce.Do(func() {
		defaultTranscoder = New(WithRegistry(types.Default()))
	})
	return defaultTranscoder
}

func (tc *Transcoder) installGoTypes() {
	builtin := map[reflect.Type]types.ID{
		reflect.TypeFor[bool]():      types.IDBool,
		reflect.TypeFor[int32]():     types.IDI32,
		reflect.TypeFor[uint32]():    types.IDU32,
		reflect.TypeFor[int64]():     types.IDI64,
		reflect.TypeFor[int]():       types.IDI64,
		reflect.TypeFor[uint64]():    types.IDU64,
		reflect.TypeFor[float64]():   types.IDDouble,
		reflect.TypeFor[string]():    types.IDStringZ,
		reflect.TypeFor[[]byte]():    types.IDByteArray,
		reflect.TypeFor[jsonc.Doc](): types.IDJSONC,
		reflect.TypeFor[jsonc.Raw](): types.IDJSON,
	}
	for rt, id := range builtin {
		t, _ := tc.types.ByID(id)
		tc.goTypes.Store(rt, t)
	}
}

// Types returns the type registry.
func (tc *Transcoder) Types() *types.Registry { return tc.types }

// Table returns the data cell table.
func (tc *Transcoder) Table() *resource.UnifiedTable { return tc.table }

// Logger returns the transcoder logger.
func (tc *Transcoder) Logger() *zap.Logger { return tc.logger }

// TypeFor returns the native type used for a Go type.
func (tc *Transcoder) TypeFor(rt reflect.Type) (*types.Type, bool) {
	if rt == nil {
		return nil, false
	}
	if t, ok := tc.goTypes.Load(rt); ok {
		return t.(*types.Type), true
	}
	return nil, false
}

// NewCell wraps a value of type t into a data cell holding one reference.
func (tc *Transcoder) NewCell(t *types.Type, value any) resource.Handle {
	return tc.table.Create(uint32(t.ID), value, tc.release)
}

func (tc *Transcoder) release(value any) {
	if d, ok := value.(resource.Dropper); ok {
		d.Drop()
	}
	if ce := tc.logger.Check(zap.DebugLevel, "release data cell"); ce != nil {
		ce.Write(zap.String("go_type", fmt.Sprintf("%T", value)))
	}
}

// CellType returns the type of a data cell.
func (tc *Transcoder) CellType(h resource.Handle) (*types.Type, bool) {
	id, ok := tc.table.TypeID(h)
	if !ok {
		return nil, false
	}
	return tc.types.ByID(types.ID(id))
}

// Value returns the raw value held by a data cell.
func (tc *Transcoder) Value(h resource.Handle) (any, bool) {
	return tc.table.Get(h)
}

// Convert returns a cell of type to holding the converted content of h.
// The source cell is left untouched. Converting to the cell's own type
// returns h with an added reference. The caller owns the returned reference.
func (tc *Transcoder) Convert(h resource.Handle, to *types.Type) (resource.Handle, error) {
	from, ok := tc.CellType(h)
	if !ok {
		return 0, errors.New(errors.PhaseConvert, errors.KindReleased).
			Detail("data cell %d is not live", h).
			Build()
	}
	if from.ID == to.ID {
		tc.table.AddRef(h)
		return h, nil
	}

	value, ok := tc.table.Get(h)
	if !ok {
		return 0, errors.New(errors.PhaseConvert, errors.KindReleased).
			Detail("data cell %d is not live", h).
			Build()
	}

	out, err := tc.types.Convert(from.ID, to.ID, value)
	if err != nil {
		if tc.recorder != nil {
			tc.recorder.ConversionFailed(from.UID, to.UID)
		}
		tc.logger.Debug("conversion failed",
			zap.String("from", from.UID),
			zap.String("to", to.UID),
			zap.Error(err))
		return 0, err
	}
	return tc.NewCell(to, out), nil
}

// Describe renders a cell as text for diagnostics. It returns false when
// the cell has no string form.
func (tc *Transcoder) Describe(h resource.Handle) (string, bool) {
	str, _ := tc.types.ByID(types.IDStringZ)
	conv, err := tc.Convert(h, str)
	if err != nil {
		return "", false
	}
	defer tc.table.Unref(conv)
	v, _ := tc.table.Get(conv)
	s, ok := v.(string)
	return s, ok
}
