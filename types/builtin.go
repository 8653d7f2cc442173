package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/wippyai/afb-runtime/jsonc"
)

// Builtin type uids.
const (
	UIDOpaque    = "#opaque"
	UIDStringZ   = "#stringz"
	UIDJSON      = "#json"
	UIDJSONC     = "#json-c"
	UIDByteArray = "#bytearray"
	UIDBool      = "#bool"
	UIDI32       = "#i32"
	UIDU32       = "#u32"
	UIDI64       = "#i64"
	UIDU64       = "#u64"
	UIDDouble    = "#double"
)

// Builtin type ids, identical in every registry.
const (
	IDOpaque ID = iota + 1
	IDStringZ
	IDJSON
	IDJSONC
	IDByteArray
	IDBool
	IDI32
	IDU32
	IDI64
	IDU64
	IDDouble
)

// Cell value representation per builtin type:
//
//	#opaque     any
//	#stringz    string
//	#json       jsonc.Raw
//	#json-c     jsonc.Doc
//	#bytearray  []byte
//	#bool       bool
//	#i32        int32
//	#u32        uint32
//	#i64        int64
//	#u64        uint64
//	#double     float64
var builtinUIDs = []string{
	UIDOpaque,
	UIDStringZ,
	UIDJSON,
	UIDJSONC,
	UIDByteArray,
	UIDBool,
	UIDI32,
	UIDU32,
	UIDI64,
	UIDU64,
	UIDDouble,
}

var scalarIDs = []ID{IDBool, IDI32, IDU32, IDI64, IDU64, IDDouble}

func installBuiltinConversions(r *Registry) {
	must := func(from, to ID, fn ConvertFunc) {
		if err := r.addEdge(r.byID[from], r.byID[to], fn); err != nil {
			panic(err)
		}
	}

	for _, id := range scalarIDs {
		must(id, IDJSON, func(v any) (any, error) {
			text, err := scalarText(v)
			return jsonc.Raw(text), err
		})
		must(id, IDStringZ, func(v any) (any, error) {
			return scalarText(v)
		})
		must(IDJSON, id, jsonToScalar(id))
		must(IDStringZ, id, textToScalar(id))
	}

	must(IDStringZ, IDJSON, func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, unexpected(v, "string")
		}
		data, err := json.Marshal(s)
		if err != nil {
			return nil, err
		}
		return jsonc.Raw(data), nil
	})
	must(IDJSON, IDStringZ, func(v any) (any, error) {
		raw, ok := v.(jsonc.Raw)
		if !ok {
			return nil, unexpected(v, "jsonc.Raw")
		}
		return string(raw), nil
	})
	must(IDJSON, IDJSONC, func(v any) (any, error) {
		raw, ok := v.(jsonc.Raw)
		if !ok {
			return nil, unexpected(v, "jsonc.Raw")
		}
		return jsonc.Parse(string(raw))
	})
	must(IDJSONC, IDJSON, func(v any) (any, error) {
		doc, ok := v.(jsonc.Doc)
		if !ok {
			return nil, unexpected(v, "jsonc.Doc")
		}
		return jsonc.Raw(doc.Raw()), nil
	})
	must(IDByteArray, IDStringZ, func(v any) (any, error) {
		b, ok := v.([]byte)
		if !ok {
			return nil, unexpected(v, "[]byte")
		}
		return string(b), nil
	})
	must(IDStringZ, IDByteArray, func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, unexpected(v, "string")
		}
		return []byte(s), nil
	})
}

func scalarText(v any) (string, error) {
	switch t := v.(type) {
	case bool:
		return strconv.FormatBool(t), nil
	case int32:
		return strconv.FormatInt(int64(t), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(t), 10), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case uint64:
		return strconv.FormatUint(t, 10), nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return "", fmt.Errorf("%v has no json form", t)
		}
		s := strconv.FormatFloat(t, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s, nil
	}
	return "", unexpected(v, "scalar")
}

func jsonToScalar(id ID) ConvertFunc {
	return func(v any) (any, error) {
		raw, ok := v.(jsonc.Raw)
		if !ok {
			return nil, unexpected(v, "jsonc.Raw")
		}
		if !gjson.Valid(string(raw)) {
			return nil, fmt.Errorf("invalid json %q", string(raw))
		}
		res := gjson.Parse(string(raw))
		switch id {
		case IDBool:
			if res.Type != gjson.True && res.Type != gjson.False {
				return nil, fmt.Errorf("json %s is not a boolean", res.Raw)
			}
			return res.Type == gjson.True, nil
		case IDDouble:
			if res.Type != gjson.Number {
				return nil, fmt.Errorf("json %s is not a number", res.Raw)
			}
			return res.Num, nil
		}
		if res.Type != gjson.Number {
			return nil, fmt.Errorf("json %s is not an integer", res.Raw)
		}
		return parseInteger(id, res.Raw)
	}
}

func textToScalar(id ID) ConvertFunc {
	return func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, unexpected(v, "string")
		}
		s = strings.TrimSpace(s)
		switch id {
		case IDBool:
			return strconv.ParseBool(s)
		case IDDouble:
			return strconv.ParseFloat(s, 64)
		}
		return parseInteger(id, s)
	}
}

func parseInteger(id ID, s string) (any, error) {
	switch id {
	case IDI32:
		n, err := strconv.ParseInt(s, 10, 32)
		return int32(n), err
	case IDU32:
		n, err := strconv.ParseUint(s, 10, 32)
		return uint32(n), err
	case IDI64:
		return strconv.ParseInt(s, 10, 64)
	case IDU64:
		return strconv.ParseUint(s, 10, 64)
	}
	return nil, fmt.Errorf("type %d is not an integer", id)
}

func unexpected(v any, want string) error {
	return fmt.Errorf("unexpected cell value %T, want %s", v, want)
}
