package value

import "fmt"

// Function is the heap Function variant: a reference to a compiled
// function body spliced into the program's instruction stream (spec
// §3). Rather than holding an inline copy of the bytecode, Function
// holds the Offset/Length into the owning Program's instruction bytes —
// those bytes never move for the program's lifetime (invariant 2), so
// the offset is stable for as long as the Function object exists.
type Function struct {
	Header
	Name        string
	Offset      int
	Length      int
	NumLocals   int
	NumUpvalues int
}

// NewFunction allocates a Function object.
func NewFunction(name string, offset, length, numLocals, numUpvalues int) *Function {
	return &Function{Name: name, Offset: offset, Length: length, NumLocals: numLocals, NumUpvalues: numUpvalues}
}

func (f *Function) ObjKind() ObjKind  { return ObjFunction }
func (f *Function) Children() []Value { return nil }
func (f *Function) String() string {
	if f.Name != "" {
		return fmt.Sprintf("<function %s@%d>", f.Name, f.Offset)
	}
	return fmt.Sprintf("<function@%d>", f.Offset)
}
