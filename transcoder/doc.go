// Package transcoder converts between Go values and data cells.
//
// A Transcoder is the single service object behind every conversion. It
// owns the type registry, the converter registry and the data cell table,
// and it is passed to whatever needs conversions instead of being reached
// through globals. Default returns a lazily created process-wide instance.
//
// # Go Type Mapping
//
//	Go type      Native type
//	───────────────────────────
//	bool         #bool
//	int32        #i32
//	uint32       #u32
//	int64, int   #i64
//	uint64       #u64
//	float64      #double
//	string       #stringz
//	[]byte       #bytearray
//	jsonc.Raw    #json
//	jsonc.Doc    #json-c
//	registered   custom uid
//
// # Custom Types
//
// A custom type is bound to the json builtin through an encoder and a
// decoder. Register does this with go-json for any Go type:
//
//	type MySimpleData struct {
//	    Name  string `json:"name"`
//	    Count int    `json:"count"`
//	}
//
//	conv, err := transcoder.Register[MySimpleData](tc, "MySimpleData")
//
// The pair must round-trip: decoding the encoded form of a value yields an
// equal value. Registration errors abort the binding that asked for them.
//
// # Cells
//
//	h, err := transcoder.Export(tc, MySimpleData{Name: "x"})
//	doc, err := transcoder.Import[jsonc.Doc](tc, h)  // custom -> #json -> #json-c
//	tc.Table().Unref(h)
//
// Every exported cell carries a release callback, so its lifetime follows
// its reference count rather than the exporting stack frame.
package transcoder
