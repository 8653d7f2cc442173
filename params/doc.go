// Package params implements the ordered list of data cells exchanged by
// verb calls, replies and event pushes.
//
// # Ownership
//
// A *Params owns exactly one reference on each of its cells. Whoever holds
// the *Params is responsible for calling Release once, after which the list
// is empty and further Release calls do nothing:
//
//	args, err := params.Of(tc, "hello", int32(42))
//	defer args.Release()
//
// Clone is the only way to share a list: it takes one extra reference per
// cell and returns an independent owner that must be released separately.
// Passing a list to a call transfers ownership to the callee; reply lists
// handed to a callback belong to that callback.
//
// # Typed Access
//
//	name, err := params.Get[string](args, 0)
//	data, err := params.Get[MySimpleData](args, 1)  // through its converter
//	last, err := params.Last[jsonc.Doc](args)
//
// A failed conversion returns an error carrying the argument rendered as
// raw text when it has one, which is the documented recovery path for
// diagnostics. Negative indexes count from the end, from -1 down to
// -(Len-1).
package params
