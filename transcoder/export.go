package transcoder

import (
	"reflect"

	"github.com/wippyai/afb-runtime/errors"
	"github.com/wippyai/afb-runtime/resource"
	"github.com/wippyai/afb-runtime/types"
)

// Export wraps v into a new data cell. The caller owns the returned
// reference.
func Export[T any](tc *Transcoder, v T) (resource.Handle, error) {
	return tc.ExportAny(v)
}

// ExportAny wraps v into a new data cell, selecting the native type from
// the dynamic type of v. Pointers to registered types are dereferenced.
func (tc *Transcoder) ExportAny(v any) (resource.Handle, error) {
	if v == nil {
		return 0, errors.Export("nil", errors.New(errors.PhaseExport, errors.KindNilPointer).Build())
	}

	rv := reflect.ValueOf(v)
	t, ok := tc.TypeFor(rv.Type())
	if !ok && rv.Kind() == reflect.Pointer && !rv.IsNil() {
		if t, ok = tc.TypeFor(rv.Type().Elem()); ok {
			v = rv.Elem().Interface()
		}
	}
	if !ok {
		return 0, errors.Export(rv.Type().String(), nil)
	}

	switch x := v.(type) {
	case int:
		v = int64(x)
	case []byte:
		buf := make([]byte, len(x))
		copy(buf, x)
		v = buf
	}
	h := tc.NewCell(t, v)
	if h == 0 {
		return 0, errors.Export(rv.Type().String(), errors.New(errors.PhaseExport, errors.KindNotInitialized).
			Detail("data cell table is closed").
			Build())
	}
	return h, nil
}

// Import reads the cell h as a T. The cell is converted when its type
// differs from T's native type; h itself is left untouched.
func Import[T any](tc *Transcoder, h resource.Handle) (T, error) {
	var zero T
	rt := reflect.TypeFor[T]()

	if rt.Kind() == reflect.Interface {
		v, ok := tc.Value(h)
		if !ok {
			return zero, released(h)
		}
		if out, ok := v.(T); ok {
			return out, nil
		}
		return zero, errors.TypeMismatch(errors.PhaseImport, nil, rt.String(), "")
	}

	target, ok := tc.TypeFor(rt)
	if !ok {
		return zero, errors.New(errors.PhaseImport, errors.KindUnsupported).
			GoType(rt.String()).
			Detail("no native type").
			Build()
	}

	conv, err := tc.Convert(h, target)
	if err != nil {
		return zero, err
	}
	defer tc.table.Unref(conv)

	v, ok := tc.table.Get(conv)
	if !ok {
		return zero, released(conv)
	}
	if target.ID == types.IDI64 && rt.Kind() == reflect.Int {
		if n, ok := v.(int64); ok {
			v = int(n)
		}
	}
	out, ok := v.(T)
	if !ok {
		return zero, errors.TypeMismatch(errors.PhaseImport, nil, rt.String(), target.UID)
	}
	return out, nil
}

func released(h resource.Handle) error {
	return errors.New(errors.PhaseImport, errors.KindReleased).
		Detail("data cell %d is not live", h).
		Build()
}
