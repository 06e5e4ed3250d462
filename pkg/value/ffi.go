package value

import "fmt"

// FFIResult is the status a native routine reports back to the VM
// (spec §4.7).
type FFIResult byte

const (
	FFIOk FFIResult = iota
	FFIError
	FFIArity
	FFITypes
)

// FFIFunc is the Go-level shape every native routine loaded through the
// FFI bridge must have: it receives the argument vector (argv[0] is the
// receiver when invoked as a method) and writes its result to *ret
// (leaving it Void if there is none), returning a status.
type FFIFunc func(argv []Value, ret *Value) FFIResult

// FFIFunction is the heap FFI-function variant: a first-class value
// wrapping a resolved native routine (spec §3).
type FFIFunction struct {
	Header
	Library string
	Symbol  string
	Fn      FFIFunc
}

// NewFFIFunction allocates an FFIFunction object.
func NewFFIFunction(library, symbol string, fn FFIFunc) *FFIFunction {
	return &FFIFunction{Library: library, Symbol: symbol, Fn: fn}
}

func (f *FFIFunction) ObjKind() ObjKind  { return ObjFFIFunc }
func (f *FFIFunction) Children() []Value { return nil }
func (f *FFIFunction) String() string {
	return fmt.Sprintf("<ffi-function %s!%s>", f.Library, f.Symbol)
}

// FFIDeleter is invoked by the GC at sweep time for an unreachable
// FFIPointer (spec §4.7); it must be idempotent with respect to a nil
// Ptr.
type FFIDeleter func(tag uint32, ptr interface{})

// FFIPointer is the heap FFI-pointer variant: an opaque native resource
// with a user-defined tag for dispatch and an optional deleter called
// exactly once when the GC frees it (spec §3, testable property 9).
type FFIPointer struct {
	Header
	Tag      uint32
	Ptr      interface{}
	Deleter  FFIDeleter
	deleted  bool
}

// NewFFIPointer allocates an FFIPointer object.
func NewFFIPointer(tag uint32, ptr interface{}, deleter FFIDeleter) *FFIPointer {
	return &FFIPointer{Tag: tag, Ptr: ptr, Deleter: deleter}
}

func (p *FFIPointer) ObjKind() ObjKind  { return ObjFFIPtr }
func (p *FFIPointer) Children() []Value { return nil }
func (p *FFIPointer) String() string {
	return fmt.Sprintf("<ffi-pointer tag=%d>", p.Tag)
}

// Release invokes the deleter exactly once (guarding the "invoked
// exactly once" property even if Release is somehow called twice, e.g.
// once explicitly and once more by a GC sweep that raced a host-driven
// free — the VM itself only ever calls this from the single-threaded
// sweep path).
func (p *FFIPointer) Release() {
	if p.deleted {
		return
	}
	p.deleted = true
	if p.Deleter != nil {
		p.Deleter(p.Tag, p.Ptr)
	}
}
