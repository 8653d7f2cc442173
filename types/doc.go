// Package types implements the type registry and conversion graph for data
// cells.
//
// Every data cell carries a type handle. Builtin types cover scalars,
// strings, byte arrays and the two JSON forms (text and parsed document).
// Custom types are registered by uid and become convertible once a
// converter installs edges between them and a builtin type.
//
// Registration is idempotent: Register returns the existing *Type for a
// known uid. Types are never removed.
//
//	reg := types.NewRegistry()
//	t, _ := reg.Register("MySimpleData")
//	reg.AddConvertTo(t, reg.MustLookup(types.UIDJSON), encode)
//	reg.AddConvertFrom(t, reg.MustLookup(types.UIDJSON), decode)
//
// Convert follows the shortest chain of edges, so a custom type converted to
// json is also reachable as json_c or stringz.
package types
