// Package errors provides structured error types for the afb-runtime library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: argument path, Go/native type names,
// the framework status code and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseImport, errors.KindTypeMismatch).
//		Path("args[1]").
//		GoType("int32").
//		TypeUID("stringz").
//		Detail("cannot convert %q", "abc").
//		Build()
//
// Or use the taxonomy constructors:
//
//	errors.Registration(uid, cause)          // type/converter registration, fatal at init
//	errors.Conversion(index, goType, uid, s) // argument N not convertible, recoverable
//	errors.Export(goType, cause)             // value has no native representation
//	errors.Call(api, verb, status)           // subcall failed, carries status code
//	errors.Assertion(uid, detail)            // tap expectation mismatch
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
