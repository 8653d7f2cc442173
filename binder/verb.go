package binder

import (
	afbruntime "github.com/wippyai/afb-runtime"
	"github.com/wippyai/afb-runtime/errors"
)

// Verb describes one entry point of an API.
type Verb struct {
	handler afbruntime.VerbHandler
	context any
	name    string
	info    string
	usage   string
	loa     int
}

// NewVerb starts building a verb.
func NewVerb(name string) *Verb {
	return &Verb{name: name}
}

func (v *Verb) SetInfo(info string) *Verb {
	v.info = info
	return v
}

func (v *Verb) SetUsage(usage string) *Verb {
	v.usage = usage
	return v
}

func (v *Verb) SetCallback(h afbruntime.VerbHandler) *Verb {
	v.handler = h
	return v
}

// SetContext attaches a value retrieved by handlers through VerbContext.
func (v *Verb) SetContext(ctx any) *Verb {
	v.context = ctx
	return v
}

// SetLOA sets the minimal session level of assurance.
func (v *Verb) SetLOA(loa int) *Verb {
	v.loa = loa
	return v
}

func (v *Verb) Name() string  { return v.name }
func (v *Verb) Info() string  { return v.info }
func (v *Verb) Usage() string { return v.usage }
func (v *Verb) LOA() int      { return v.loa }

// VerbContext returns the context attached to the verb serving rqt.
func VerbContext[T any](rqt afbruntime.Request) (T, error) {
	var zero T
	r, ok := rqt.(*Request)
	if !ok {
		return zero, errors.Unsupported(errors.PhaseHost, "request not issued by binder")
	}
	v, ok := r.verb.context.(T)
	if !ok {
		return zero, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			Path(r.api.name, r.verb.name).
			GoType(typeName[T]()).
			Detail("verb context has type %T", r.verb.context).
			Build()
	}
	return v, nil
}
