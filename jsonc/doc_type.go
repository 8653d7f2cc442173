package jsonc

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	tjsonc "github.com/tidwall/jsonc"

	"github.com/wippyai/afb-runtime/errors"
)

// Raw is JSON text carried as-is. It maps to the json builtin type, where
// Doc maps to the parsed json_c type.
type Raw string

// Doc is a parsed JSON document.
type Doc struct {
	res gjson.Result
}

// Null is the empty document.
var Null = Doc{res: gjson.Result{Type: gjson.Null, Raw: "null"}}

// Parse parses relaxed JSON text into a document.
func Parse(text string) (Doc, error) {
	clean := tjsonc.ToJSON([]byte(text))
	if !gjson.ValidBytes(clean) {
		return Doc{}, errors.InvalidData(errors.PhaseDecode, nil, "invalid json: "+abbrev(text))
	}
	return Doc{res: gjson.ParseBytes(clean)}, nil
}

// MustParse is like Parse but panics on invalid input. Intended for
// literals in fixtures and tests.
func MustParse(text string) Doc {
	d, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return d
}

// From marshals a Go value into a document.
func From(v any) (Doc, error) {
	switch t := v.(type) {
	case Doc:
		return t, nil
	case Raw:
		return Parse(string(t))
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Doc{}, errors.Wrap(errors.PhaseEncode, errors.KindInvalidData, err, "marshal json")
	}
	return Doc{res: gjson.ParseBytes(data)}, nil
}

// MustFrom is like From but panics on error.
func MustFrom(v any) Doc {
	d, err := From(v)
	if err != nil {
		panic(err)
	}
	return d
}

// Raw returns the compact JSON text of the document.
func (d Doc) Raw() string {
	if d.res.Raw == "" {
		return "null"
	}
	return strings.TrimSpace(d.res.Raw)
}

func (d Doc) String() string {
	return d.Raw()
}

// Result exposes the underlying gjson result.
func (d Doc) Result() gjson.Result {
	return d.res
}

// Get returns the sub-document at a gjson path.
func (d Doc) Get(path string) Doc {
	return Doc{res: d.res.Get(path)}
}

// Index returns the i-th element of an array document.
func (d Doc) Index(i int) (Doc, bool) {
	if !d.res.IsArray() {
		return Doc{}, false
	}
	arr := d.res.Array()
	if i < 0 || i >= len(arr) {
		return Doc{}, false
	}
	return Doc{res: arr[i]}, true
}

// Len returns the element count of arrays and the key count of objects.
func (d Doc) Len() int {
	switch {
	case d.res.IsArray():
		return len(d.res.Array())
	case d.res.IsObject():
		n := 0
		d.res.ForEach(func(_, _ gjson.Result) bool {
			n++
			return true
		})
		return n
	}
	return 0
}

// Exists reports whether the document holds a value.
func (d Doc) Exists() bool { return d.res.Exists() }

func (d Doc) IsObject() bool { return d.res.IsObject() }
func (d Doc) IsArray() bool  { return d.res.IsArray() }

// Kind names the JSON kind of the document: null, bool, int, double,
// string, array or object.
func (d Doc) Kind() string {
	return kindOf(d.res)
}

func (d Doc) Int() int64     { return d.res.Int() }
func (d Doc) Float() float64 { return d.res.Float() }
func (d Doc) Str() string    { return d.res.String() }
func (d Doc) Bool() bool     { return d.res.Bool() }

// Decode unmarshals the document into v.
func (d Doc) Decode(v any) error {
	if err := json.Unmarshal([]byte(d.Raw()), v); err != nil {
		return errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "unmarshal json")
	}
	return nil
}

// MarshalJSON emits the document text unchanged.
func (d Doc) MarshalJSON() ([]byte, error) {
	return []byte(d.Raw()), nil
}

// UnmarshalJSON stores a copy of the input text.
func (d *Doc) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func kindOf(r gjson.Result) string {
	switch r.Type {
	case gjson.Null:
		return "null"
	case gjson.True, gjson.False:
		return "bool"
	case gjson.Number:
		if isInteger(r.Raw) {
			return "int"
		}
		return "double"
	case gjson.String:
		return "string"
	case gjson.JSON:
		if r.IsArray() {
			return "array"
		}
		return "object"
	}
	return "unknown"
}

func isInteger(raw string) bool {
	return !strings.ContainsAny(raw, ".eE")
}

func abbrev(s string) string {
	const limit = 64
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
