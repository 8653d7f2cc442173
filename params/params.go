package params

import (
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/goccy/go-json"

	"github.com/wippyai/afb-runtime/errors"
	"github.com/wippyai/afb-runtime/jsonc"
	"github.com/wippyai/afb-runtime/resource"
	"github.com/wippyai/afb-runtime/transcoder"
)

// Params is an ordered list of data cells with a status code.
// A Params is not safe for concurrent mutation.
type Params struct {
	tc       *transcoder.Transcoder
	items    []resource.Handle
	status   int
	released atomic.Bool
}

// New creates an empty list.
func New(tc *transcoder.Transcoder) *Params {
	return &Params{tc: tc}
}

// Wrap adopts handles whose references the caller owns.
func Wrap(tc *transcoder.Transcoder, status int, handles ...resource.Handle) *Params {
	items := make([]resource.Handle, len(handles))
	copy(items, handles)
	return &Params{tc: tc, items: items, status: status}
}

// Of builds a list from Go values. Nothing is leaked when one of them has
// no native representation.
func Of(tc *transcoder.Transcoder, values ...any) (*Params, error) {
	p := New(tc)
	for _, v := range values {
		if err := p.PushAny(v); err != nil {
			p.Release()
			return nil, err
		}
	}
	return p, nil
}

// From builds a single-element list.
func From[T any](tc *transcoder.Transcoder, v T) (*Params, error) {
	p := New(tc)
	if err := Push(p, v); err != nil {
		return nil, err
	}
	return p, nil
}

// Status returns the status code.
func (p *Params) Status() int { return p.status }

// SetStatus sets the status code.
func (p *Params) SetStatus(status int) *Params {
	p.status = status
	return p
}

// Len returns the number of cells.
func (p *Params) Len() int { return len(p.items) }

// Transcoder returns the transcoder the list converts through.
func (p *Params) Transcoder() *transcoder.Transcoder { return p.tc }

// Handles returns a copy of the cell handles. No references are taken.
func (p *Params) Handles() []resource.Handle {
	out := make([]resource.Handle, len(p.items))
	copy(out, p.items)
	return out
}

// Handle returns the cell at index without taking a reference.
func (p *Params) Handle(index int) (resource.Handle, error) {
	i, err := p.resolve(index)
	if err != nil {
		return 0, err
	}
	return p.items[i], nil
}

// Push appends v to the list.
func Push[T any](p *Params, v T) error {
	return p.PushAny(v)
}

// PushAny appends v to the list, selecting its native type from its
// dynamic type.
func (p *Params) PushAny(v any) error {
	if p.released.Load() {
		return errors.New(errors.PhaseExport, errors.KindReleased).
			Detail("push on released params").
			Build()
	}
	h, err := p.tc.ExportAny(v)
	if err != nil {
		return err
	}
	p.items = append(p.items, h)
	return nil
}

// PushHandle appends a cell whose reference the caller hands over.
func (p *Params) PushHandle(h resource.Handle) {
	p.items = append(p.items, h)
}

// Clone returns an independent owner sharing the same cells.
func (p *Params) Clone() *Params {
	p.AddRef()
	return Wrap(p.tc, p.status, p.items...)
}

// Release drops this list's references. Only the first call has an effect.
func (p *Params) Release() {
	if !p.released.CompareAndSwap(false, true) {
		return
	}
	p.Unref()
	p.items = nil
}

// Released reports whether Release was called.
func (p *Params) Released() bool { return p.released.Load() }

// AddRef takes one reference on every cell. Each call must be balanced by
// an Unref; prefer Clone.
func (p *Params) AddRef() {
	for _, h := range p.items {
		p.tc.Table().AddRef(h)
	}
}

// Unref drops one reference on every cell.
func (p *Params) Unref() {
	for _, h := range p.items {
		p.tc.Table().Unref(h)
	}
}

func (p *Params) resolve(index int) (int, error) {
	count := len(p.items)
	i := index
	if index < 0 {
		if -index >= count {
			return 0, errors.OutOfBounds(errors.PhaseImport, []string{errors.ArgPath(index)}, index, count)
		}
		i = count + index
	}
	if i >= count {
		return 0, errors.OutOfBounds(errors.PhaseImport, []string{errors.ArgPath(index)}, index, count)
	}
	return i, nil
}

// Get reads the cell at index as a T.
func Get[T any](p *Params, index int) (T, error) {
	var zero T
	i, err := p.resolve(index)
	if err != nil {
		return zero, err
	}

	v, err := transcoder.Import[T](p.tc, p.items[i])
	if err != nil {
		rt := reflect.TypeFor[T]()
		uid := ""
		if t, ok := p.tc.TypeFor(rt); ok {
			uid = t.UID
		}
		fallback, _ := p.tc.Describe(p.items[i])
		cerr := errors.Conversion(i, rt.String(), uid, fallback)
		cerr.Cause = err
		return zero, cerr
	}
	return v, nil
}

// Last reads the last cell as a T.
func Last[T any](p *Params) (T, error) {
	if len(p.items) == 0 {
		var zero T
		return zero, errors.OutOfBounds(errors.PhaseImport, []string{"last"}, 0, 0)
	}
	return Get[T](p, len(p.items)-1)
}

// GetOnSuccess reads the cell at index when the status is not negative.
func GetOnSuccess[T any](p *Params, index int) (T, error) {
	if p.status < 0 {
		var zero T
		return zero, errors.New(errors.PhaseCall, errors.KindStatus).
			Status(p.status).
			Detail("reply carries a failure status").
			Build()
	}
	return Get[T](p, index)
}

// Describe renders the cell at index as raw text for diagnostics. It is the
// fallback when typed access fails.
func (p *Params) Describe(index int) string {
	i, err := p.resolve(index)
	if err != nil {
		return ""
	}
	s, _ := p.tc.Describe(p.items[i])
	return s
}

// Doc reads every cell as a JSON document. A cell without a JSON form is
// replaced by an object describing the conversion error.
func (p *Params) Doc() []jsonc.Doc {
	out := make([]jsonc.Doc, len(p.items))
	for i := range p.items {
		d, err := Get[jsonc.Doc](p, i)
		if err != nil {
			d = jsonc.MustFrom(map[string]string{
				"error": err.Error(),
				"index": strconv.Itoa(i),
			})
		}
		out[i] = d
	}
	return out
}

type reply struct {
	Status   int         `json:"status"`
	Response []jsonc.Doc `json:"response"`
}

// ToJSON renders the list as {"status":N,"response":[...]}.
func (p *Params) ToJSON() jsonc.Doc {
	data, err := json.Marshal(reply{Status: p.status, Response: p.Doc()})
	if err != nil {
		return jsonc.Null
	}
	return jsonc.MustParse(string(data))
}

func (p *Params) String() string {
	var b strings.Builder
	b.WriteString("status=")
	b.WriteString(strconv.Itoa(p.status))
	b.WriteString(" args=[")
	for i := range p.items {
		if i > 0 {
			b.WriteString(", ")
		}
		if s := p.Describe(i); s != "" {
			b.WriteString(s)
		} else {
			b.WriteString("?")
		}
	}
	b.WriteByte(']')
	return b.String()
}
