package jsonc

import (
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/wippyai/afb-runtime/errors"
)

// Mode selects how objects are compared.
type Mode uint8

const (
	// Full requires identical key sets on both sides.
	Full Mode = iota
	// Partial requires every expected key to be present in the received
	// object. Extra received keys are ignored.
	Partial
)

func (m Mode) String() string {
	if m == Partial {
		return "partial"
	}
	return "full"
}

// Match checks received against expected. The returned error carries the
// path of the first mismatch.
func Match(expected, received Doc, mode Mode) error {
	return match(expected.res, received.res, mode, nil)
}

// Equal reports whether two documents are fully equal.
func Equal(a, b Doc) bool {
	return Match(a, b, Full) == nil
}

// Contains reports whether received partially matches expected.
func Contains(received, expected Doc) bool {
	return Match(expected, received, Partial) == nil
}

func match(exp, rec gjson.Result, mode Mode, path []string) error {
	ek, rk := kindOf(exp), kindOf(rec)
	if ek != rk {
		return mismatch(path, "invalid type received:%s expected:%s value:%s", rk, ek, rawOf(rec))
	}

	switch ek {
	case "array":
		ea, ra := exp.Array(), rec.Array()
		if len(ea) != len(ra) {
			return mismatch(path, "array size received:%d expected:%d", len(ra), len(ea))
		}
		for i := range ea {
			if err := match(ea[i], ra[i], mode, appendPath(path, "["+strconv.Itoa(i)+"]")); err != nil {
				return err
			}
		}
		return nil

	case "object":
		received := entries(rec)
		for _, e := range orderedEntries(exp) {
			r, ok := received[e.key]
			if !ok {
				return mismatch(path, "missing key:%s received:%s", e.key, rawOf(rec))
			}
			if err := match(e.val, r, mode, appendPath(path, e.key)); err != nil {
				return err
			}
		}
		if mode == Full {
			expected := entries(exp)
			for _, e := range orderedEntries(rec) {
				if _, ok := expected[e.key]; !ok {
					return mismatch(path, "unexpected key:%s expected:%s", e.key, rawOf(exp))
				}
			}
		}
		return nil

	case "int":
		if !sameInteger(exp.Raw, rec.Raw) {
			return valueMismatch(path, exp, rec)
		}
	case "double":
		if exp.Num != rec.Num {
			return valueMismatch(path, exp, rec)
		}
	case "string":
		if exp.Str != rec.Str {
			return valueMismatch(path, exp, rec)
		}
	case "bool":
		if exp.Type != rec.Type {
			return valueMismatch(path, exp, rec)
		}
	}
	return nil
}

type entry struct {
	key string
	val gjson.Result
}

func orderedEntries(r gjson.Result) []entry {
	var out []entry
	r.ForEach(func(k, v gjson.Result) bool {
		out = append(out, entry{key: k.String(), val: v})
		return true
	})
	return out
}

func entries(r gjson.Result) map[string]gjson.Result {
	m := make(map[string]gjson.Result)
	r.ForEach(func(k, v gjson.Result) bool {
		key := k.String()
		if _, dup := m[key]; !dup {
			m[key] = v
		}
		return true
	})
	return m
}

func sameInteger(a, b string) bool {
	if x, err := strconv.ParseInt(a, 10, 64); err == nil {
		y, err := strconv.ParseInt(b, 10, 64)
		return err == nil && x == y
	}
	if x, err := strconv.ParseUint(a, 10, 64); err == nil {
		y, err := strconv.ParseUint(b, 10, 64)
		return err == nil && x == y
	}
	return a == b
}

func valueMismatch(path []string, exp, rec gjson.Result) error {
	return mismatch(path, "invalid value received:%s expected:%s", rawOf(rec), rawOf(exp))
}

func mismatch(path []string, format string, args ...any) error {
	return errors.New(errors.PhaseMatch, errors.KindAssertion).
		Path(path...).
		Detail(format, args...).
		Build()
}

func appendPath(path []string, elem string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, elem)
}

func rawOf(r gjson.Result) string {
	if r.Raw == "" {
		return "null"
	}
	return r.Raw
}

// Describe renders a mismatch error as a single diagnostic line.
func Describe(err error) string {
	var e *errors.Error
	if errors.As(err, &e) && e.Phase == errors.PhaseMatch {
		if len(e.Path) == 0 {
			return e.Detail
		}
		return fmt.Sprintf("%s at %s", e.Detail, joinPath(e.Path))
	}
	return err.Error()
}

func joinPath(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 && p[0] != '[' {
			out += "."
		}
		out += p
	}
	return out
}
