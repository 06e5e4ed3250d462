package vm

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Status is the runtime status the dispatch loop halts with (spec
// §4.6/§7): StatusOK on a clean FIN, or one of the four failure kinds.
type Status byte

const (
	StatusOK Status = iota
	StatusInvType
	StatusInvArg
	StatusUndef
	StatusNotFun
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusInvType:
		return "InvType"
	case StatusInvArg:
		return "InvArg"
	case StatusUndef:
		return "Undef"
	case StatusNotFun:
		return "NotFun"
	default:
		return "unknown"
	}
}

// StackFrame captures one call site for a RuntimeError's trace: the
// function it was executing, and the bytecode offset it failed at.
type StackFrame struct {
	Name string
	IP   int
}

// RuntimeError is a halted VM's status plus a trace of where it failed
// (the VM records one frame: the instruction pointer of the failing
// instruction), wrapped with github.com/pkg/errors so callers can
// still errors.Cause() down to the originating error.
type RuntimeError struct {
	Status     Status
	Message    string
	StackTrace []StackFrame
	cause      error
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Status, e.Message)
	for i := len(e.StackTrace) - 1; i >= 0; i-- {
		f := e.StackTrace[i]
		fmt.Fprintf(&b, "\n  at %s [ip=%d]", f.Name, f.IP)
	}
	return b.String()
}

// Cause implements the interface github.com/pkg/errors.Cause looks for.
func (e *RuntimeError) Cause() error { return e.cause }

func newRuntimeError(status Status, trace []StackFrame, format string, args ...interface{}) *RuntimeError {
	return &RuntimeError{
		Status:     status,
		Message:    fmt.Sprintf(format, args...),
		StackTrace: trace,
		cause:      errors.Errorf(format, args...),
	}
}
