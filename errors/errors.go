package errors

import (
	"fmt"
	"strconv"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseRegister Phase = "register" // type/converter registration
	PhaseEncode   Phase = "encode"   // custom value to JSON text
	PhaseDecode   Phase = "decode"   // JSON text to custom value
	PhaseConvert  Phase = "convert"  // data cell conversion between types
	PhaseExport   Phase = "export"   // Go value to data cell
	PhaseImport   Phase = "import"   // data cell to Go value
	PhaseMatch    Phase = "match"    // JSON expectation matching
	PhaseCall     Phase = "call"     // verb invocation and subcalls
	PhaseTest     Phase = "test"     // tap scheduling
	PhaseConfig   Phase = "config"   // configuration loading
	PhaseHost     Phase = "host"     // api/verb/event registration
)

// Kind categorizes the error
type Kind string

const (
	KindTypeMismatch   Kind = "type_mismatch"
	KindOutOfBounds    Kind = "out_of_bounds"
	KindInvalidData    Kind = "invalid_data"
	KindUnsupported    Kind = "unsupported"
	KindNilPointer     Kind = "nil_pointer"
	KindNotFound       Kind = "not_found"
	KindNotInitialized Kind = "not_initialized"
	KindInvalidInput   Kind = "invalid_input"
	KindRegistration   Kind = "registration"
	KindAlreadyExists  Kind = "already_exists"
	KindSealed         Kind = "sealed"
	KindStatus         Kind = "status"
	KindTimeout        Kind = "timeout"
	KindAssertion      Kind = "assertion"
	KindReleased       Kind = "released"
)

// Error is the structured error type used throughout the library
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	GoType  string
	TypeUID string
	Detail  string
	Path    []string
	Status  int
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.TypeUID != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.TypeUID != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", native type ")
			b.WriteString(e.TypeUID)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("native type ")
			b.WriteString(e.TypeUID)
		}
	}

	if e.Kind == KindStatus {
		b.WriteString(" status=")
		b.WriteString(strconv.Itoa(e.Status))
		b.WriteString(" info=")
		b.WriteString(StatusInfo(e.Status))
	}

	if e.Detail != "" {
		if e.GoType != "" || e.TypeUID != "" || e.Kind == KindStatus {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the argument path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// TypeUID sets the native type uid
func (b *Builder) TypeUID(uid string) *Builder {
	b.err.TypeUID = uid
	return b
}

// Status sets the framework status code
func (b *Builder) Status(status int) *Builder {
	b.err.Status = status
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// ArgPath formats the path element used for argument positions.
func ArgPath(index int) string {
	return "args[" + strconv.Itoa(index) + "]"
}

// Registration creates a type or converter registration error.
// Registration errors abort the initialization of the binding that requested them.
func Registration(uid string, cause error) *Error {
	return &Error{
		Phase:   PhaseRegister,
		Kind:    KindRegistration,
		TypeUID: uid,
		Detail:  "fail to register data type",
		Cause:   cause,
	}
}

// Conversion creates an argument conversion error. fallback carries the
// argument rendered as raw text when that is possible.
func Conversion(index int, goType, typeUID, fallback string) *Error {
	detail := "invalid converter format"
	if fallback != "" {
		detail = fmt.Sprintf("invalid converter format %s=%s", ArgPath(index), fallback)
	}
	return &Error{
		Phase:   PhaseImport,
		Kind:    KindTypeMismatch,
		Path:    []string{ArgPath(index)},
		GoType:  goType,
		TypeUID: typeUID,
		Detail:  detail,
		Value:   fallback,
	}
}

// Export creates an error for values without a native representation.
func Export(goType string, cause error) *Error {
	return &Error{
		Phase:  PhaseExport,
		Kind:   KindUnsupported,
		GoType: goType,
		Detail: "no registered conversion path",
		Cause:  cause,
	}
}

// Call creates a subcall failure carrying the framework status code.
func Call(api, verb string, status int) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindStatus,
		Status: status,
		Detail: fmt.Sprintf("/%s/%s", api, verb),
	}
}

// Assertion creates a tap expectation mismatch for the given test uid.
func Assertion(uid, detail string) *Error {
	return &Error{
		Phase:  PhaseTest,
		Kind:   KindAssertion,
		Path:   []string{uid},
		Detail: detail,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("invalid argument index ask:%d max:%d", index, length),
		Value:  index,
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, goType, typeUID string) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindTypeMismatch,
		Path:    path,
		GoType:  goType,
		TypeUID: typeUID,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// AlreadyExists creates a duplicate registration error
func AlreadyExists(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAlreadyExists,
		Status: StatusAlreadyExists,
		Detail: fmt.Sprintf("%s %q already exists", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// StatusOf extracts the framework status code carried by err. Errors that
// do not carry one map to StatusApplication.
func StatusOf(err error) int {
	if err == nil {
		return StatusOK
	}
	var e *Error
	if As(err, &e) && e.Status != 0 {
		return e.Status
	}
	return StatusApplication
}
