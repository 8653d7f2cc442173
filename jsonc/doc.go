// Package jsonc holds the JSON document type exchanged through data cells
// and the matching predicates used to check verb replies.
//
// Documents are immutable views over JSON text backed by gjson. Parsing is
// relaxed: comments and trailing commas are accepted, so expectations and
// arguments can be written the way configuration files are.
//
//	doc, err := jsonc.Parse(`{"a":1, /* note */ "b":{"c":2,}}`)
//	doc.Get("b.c").Int() // 2
//
// # Matching
//
// Match compares an expected document against a received one:
//
//	Full     both sides have the same key sets at every level
//	Partial  every expected object key exists in the received object
//
// Arrays are compared element by element and must have the same length in
// both modes. Integers and doubles are distinct kinds, so 1 never matches 1.0.
package jsonc
