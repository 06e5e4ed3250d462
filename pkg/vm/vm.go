// Package vm implements the Moth bytecode virtual machine: a
// stack-based interpreter over the opcode set pkg/bytecode defines.
//
//	Silk source -> lexer -> parser -> AST -> compiler -> bytecode -> VM
//
// The dispatch loop (§4.6) is a single switch over the next opcode
// byte; every opcode executes within the current invocation frame's
// stack region (pkg/runtime.Stack) and may touch the global environment
// (pkg/runtime.Environment) or allocate through the GC registry
// (pkg/gc). Call-time argument passing and FRM's frame-reservation
// follow the reading of spec §4.3/§4.6 this package settled on: a
// caller pushes its arguments as plain values before pushing the
// callee and executing CAL; CAL's new frame is based at the stack top
// once the callee is popped, so those already-pushed arguments become
// the callee's locals 0..argc-1. The callee's own FRM, if it has one,
// then reserves additional locals above them for its own variables.
package vm

import (
	"math"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/silklang/moth/internal/logx"
	"github.com/silklang/moth/pkg/bytecode"
	"github.com/silklang/moth/pkg/gc"
	"github.com/silklang/moth/pkg/runtime"
	"github.com/silklang/moth/pkg/value"
)

// VM is one Moth virtual machine instance. It owns its stacks,
// environment, and GC registry; nothing is shared between VMs in the
// same process (spec §5: "multiple VMs in the same host process do not
// share state").
type VM struct {
	id       uuid.UUID
	stack    *runtime.Stack
	env      *runtime.Environment
	registry *gc.Registry
	debugger *Debugger
	logger   *logx.Logger

	program *bytecode.Program
	ip      int
	status  Status

	// closures parallels the invocation stack, one entry per live frame
	// (nil for a frame entered via a plain Function). PSH/STR with the
	// upvalue bit set in their operand resolve against closures' top
	// entry instead of the current frame's locals — the convention this
	// VM settled on for a closure body reaching its captured cells,
	// since CLO/PRO only describe how a cell is built and shared, not
	// how a running closure addresses the cells it captured.
	closures []*value.Closure
}

// upvalueBit, set in a PSH/STR operand, selects the current closure's
// captured Upvalue cells instead of the current frame's locals. PSH/STR
// only carry a 16-bit immediate, so this reserves their top bit and
// leaves 15 bits (0-32767) for the plain local/upvalue index. Defined
// in pkg/bytecode since the compiler must emit operands with the same
// bit set; vm.go aliases it for brevity in this package's switch.
const upvalueBit = bytecode.UpvalueBit

// New returns a freshly initialized VM, ready for Run.
func New() *VM {
	return &VM{
		id:       uuid.New(),
		stack:    runtime.NewStack(),
		env:      runtime.NewEnvironment(),
		registry: gc.NewRegistry(),
		logger:   logx.Default,
		closures: []*value.Closure{nil},
	}
}

// AttachDebugger installs a debugger that the DBG opcode yields to.
func (vm *VM) AttachDebugger(d *Debugger) { vm.debugger = d }

// Status reports the VM's current halt status.
func (vm *VM) Status() Status { return vm.status }

// StackTop returns the value stack's top, for callers that want the
// program's result after Run returns.
func (vm *VM) StackTop() (value.Value, error) { return vm.stack.Top() }

// Run executes p from instruction 0 until FIN or a fatal status.
// Environment bindings persist across calls to Run on the same VM; the
// value and invocation stacks are reset to their outer frame first.
func (vm *VM) Run(p *bytecode.Program) (Status, error) {
	vm.program = p
	vm.stack.Reset()
	vm.status = StatusOK
	vm.ip = 0
	vm.closures = []*value.Closure{nil}

	for {
		if vm.debugger != nil && vm.debugger.ShouldPause(vm.ip) {
			if !vm.debugger.Prompt(vm) {
				return vm.status, errors.New("debugging session terminated")
			}
		}

		if vm.registry.AtCapacity() {
			vm.collect()
		}

		if vm.ip >= len(p.Code) {
			return StatusOK, nil
		}

		op := bytecode.Op(p.Code[vm.ip])
		if !op.Valid() {
			return vm.fail(StatusInvType, "illegal opcode 0x%02x at ip=%d", p.Code[vm.ip], vm.ip)
		}
		width := op.ImmediateWidth()
		if vm.ip+1+width > len(p.Code) {
			return vm.fail(StatusInvType, "truncated instruction at ip=%d", vm.ip)
		}
		operand := decodeOperand(p.Code[vm.ip+1 : vm.ip+1+width])
		nextIP := vm.ip + 1 + width

		status, err, jumpTo, halt := vm.exec(op, operand, nextIP)
		if err != nil {
			return status, err
		}
		if halt {
			return status, nil
		}
		vm.ip = jumpTo
	}
}

func decodeOperand(b []byte) int {
	var v uint32
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint32(b[i])
	}
	return int(v)
}

// exec runs one instruction and reports where execution continues.
// halt is true for FIN and for any fatal status; jumpTo is the next
// instruction pointer otherwise.
func (vm *VM) exec(op bytecode.Op, operand int, nextIP int) (status Status, err error, jumpTo int, halt bool) {
	switch op {
	case bytecode.FIN:
		return StatusOK, nil, 0, true
	case bytecode.NOP, bytecode.GC:
		if op == bytecode.GC {
			vm.collect()
		}
		return StatusOK, nil, nextIP, false
	case bytecode.DBG:
		if vm.debugger != nil && !vm.debugger.Prompt(vm) {
			return vm.status, errors.New("debugging session terminated"), 0, true
		}
		return StatusOK, nil, nextIP, false

	case bytecode.JMP:
		return StatusOK, nil, nextIP + operand, false
	case bytecode.JBW:
		return StatusOK, nil, nextIP - operand, false
	case bytecode.JPT, bytecode.JPF:
		v, perr := vm.stack.Pop()
		if perr != nil {
			return vm.haltErr(StatusInvType, perr)
		}
		if v.Kind() != value.KindBool {
			return vm.halt(StatusInvType, "jump predicate must be Bool, got %s", v.TypeName())
		}
		taken := v.AsBool()
		if op == bytecode.JPF {
			taken = !taken
		}
		if taken {
			return StatusOK, nil, nextIP + operand, false
		}
		return StatusOK, nil, nextIP, false

	case bytecode.POP:
		if _, perr := vm.stack.Pop(); perr != nil {
			return vm.haltErr(StatusInvArg, perr)
		}
		return StatusOK, nil, nextIP, false

	case bytecode.PSH:
		if operand&upvalueBit != 0 {
			cell, uerr := vm.upvalueAt(operand &^ upvalueBit)
			if uerr != nil {
				return vm.haltErr(StatusInvArg, uerr)
			}
			if perr := vm.stack.Push(cell.Value); perr != nil {
				return vm.haltErr(StatusInvArg, perr)
			}
			return StatusOK, nil, nextIP, false
		}
		v, lerr := vm.stack.Local(operand)
		if lerr != nil {
			return vm.haltErr(StatusInvArg, lerr)
		}
		if uv, ok := asUpvalue(v); ok {
			v = uv.Value
		}
		if perr := vm.stack.Push(v); perr != nil {
			return vm.haltErr(StatusInvArg, perr)
		}
		return StatusOK, nil, nextIP, false

	case bytecode.STR:
		top, terr := vm.stack.Top()
		if terr != nil {
			return vm.haltErr(StatusInvArg, terr)
		}
		if operand&upvalueBit != 0 {
			cell, uerr := vm.upvalueAt(operand &^ upvalueBit)
			if uerr != nil {
				return vm.haltErr(StatusInvArg, uerr)
			}
			cell.Value = top
			return StatusOK, nil, nextIP, false
		}
		cur, lerr := vm.stack.Local(operand)
		if lerr == nil {
			if uv, ok := asUpvalue(cur); ok {
				uv.Value = top
				return StatusOK, nil, nextIP, false
			}
		}
		if serr := vm.stack.SetLocal(operand, top); serr != nil {
			return vm.haltErr(StatusInvArg, serr)
		}
		return StatusOK, nil, nextIP, false

	case bytecode.VAL, bytecode.VAL2, bytecode.VAL3, bytecode.VAL4:
		c, ok := vm.program.ConstantAt(operand)
		if !ok {
			return vm.halt(StatusInvArg, "constant index %d out of range", operand)
		}
		if perr := vm.stack.Push(c); perr != nil {
			return vm.haltErr(StatusInvArg, perr)
		}
		return StatusOK, nil, nextIP, false

	case bytecode.SYM, bytecode.SYM2, bytecode.SYM3, bytecode.SYM4:
		sym, ok := vm.program.SymbolAt(operand)
		if !ok {
			return vm.halt(StatusUndef, "symbol index %d out of range", operand)
		}
		v, ok := vm.env.Get(sym)
		if !ok {
			return vm.halt(StatusUndef, "undefined symbol %q", symName(sym))
		}
		if perr := vm.stack.Push(v); perr != nil {
			return vm.haltErr(StatusInvArg, perr)
		}
		return StatusOK, nil, nextIP, false

	case bytecode.DEF, bytecode.DEF2, bytecode.DEF3, bytecode.DEF4:
		sym, ok := vm.program.SymbolAt(operand)
		if !ok {
			return vm.halt(StatusUndef, "symbol index %d out of range", operand)
		}
		v, perr := vm.stack.Pop()
		if perr != nil {
			return vm.haltErr(StatusInvArg, perr)
		}
		vm.env.Set(sym, v)
		return StatusOK, nil, nextIP, false

	case bytecode.ASN, bytecode.ASN2, bytecode.ASN3, bytecode.ASN4:
		sym, ok := vm.program.SymbolAt(operand)
		if !ok {
			return vm.halt(StatusUndef, "symbol index %d out of range", operand)
		}
		v, terr := vm.stack.Top()
		if terr != nil {
			return vm.haltErr(StatusInvArg, terr)
		}
		if !vm.env.SetExisting(sym, v) {
			return vm.halt(StatusUndef, "assignment to undefined symbol %q", symName(sym))
		}
		return StatusOK, nil, nextIP, false

	case bytecode.FRM, bytecode.FRM2, bytecode.FRM3, bytecode.FRM4:
		if rerr := vm.stack.ReserveLocals(operand); rerr != nil {
			return vm.haltErr(StatusInvArg, rerr)
		}
		return StatusOK, nil, nextIP, false

	case bytecode.CAL:
		return vm.call(nextIP)
	case bytecode.RET:
		return vm.ret()

	case bytecode.CLO:
		return vm.makeClosure(nextIP)
	case bytecode.PRO:
		v, perr := vm.stack.Pop()
		if perr != nil {
			return vm.haltErr(StatusInvArg, perr)
		}
		uv := value.NewUpvalue(v)
		vm.registry.Register(uv)
		vm.stack.Push(value.Obj(uv))
		return StatusOK, nil, nextIP, false

	case bytecode.VID:
		vm.stack.Push(value.Void)
		return StatusOK, nil, nextIP, false
	case bytecode.TRU:
		vm.stack.Push(value.Bool(true))
		return StatusOK, nil, nextIP, false
	case bytecode.FAL:
		vm.stack.Push(value.Bool(false))
		return StatusOK, nil, nextIP, false
	case bytecode.PI:
		vm.stack.Push(value.Real(math.Pi))
		return StatusOK, nil, nextIP, false
	case bytecode.TAU:
		vm.stack.Push(value.Real(math.Pi * 2))
		return StatusOK, nil, nextIP, false
	case bytecode.EUL:
		vm.stack.Push(value.Real(math.E))
		return StatusOK, nil, nextIP, false

	case bytecode.VEC:
		return vm.makeVector(operand, nextIP)
	case bytecode.ARR:
		return vm.makeArray(operand, nextIP)
	case bytecode.DCT:
		return vm.makeDict(operand, nextIP)

	case bytecode.NEG:
		return vm.unaryNeg(nextIP)
	case bytecode.NOT:
		v, perr := vm.stack.Pop()
		if perr != nil {
			return vm.haltErr(StatusInvArg, perr)
		}
		vm.stack.Push(value.Bool(!v.Truthy()))
		return StatusOK, nil, nextIP, false

	case bytecode.ADD, bytecode.SUB, bytecode.DIV, bytecode.MUL, bytecode.RIV, bytecode.POW, bytecode.MOD:
		return vm.binaryArith(op, nextIP)

	case bytecode.IDX:
		return vm.index(nextIP)
	case bytecode.IDA:
		return vm.indexAssign(nextIP)
	case bytecode.MRG:
		return vm.merge(nextIP)

	case bytecode.EQ, bytecode.NEQ, bytecode.GT, bytecode.LT, bytecode.GTE, bytecode.LTE:
		return vm.compare(op, nextIP)

	case bytecode.DLL:
		return vm.openLibrary(nextIP)
	case bytecode.FFN:
		return vm.resolveSymbol(nextIP)

	default:
		return vm.halt(StatusInvType, "unhandled opcode %s", op)
	}
}

func (vm *VM) collect() {
	before := vm.registry.Len()
	freed := gc.Collect(vm.registry, vm.stack, vm.env.Values())
	vm.logger.Debug("gc", "vm", vm.id.String(), "before", before, "freed", freed)
}

func asUpvalue(v value.Value) (*value.Upvalue, bool) {
	if v.Kind() != value.KindObj {
		return nil, false
	}
	uv, ok := v.AsObj().(*value.Upvalue)
	return uv, ok
}

// currentClosure returns the Closure owning the presently executing
// frame, or nil at the outer frame or inside a plain Function call.
func (vm *VM) currentClosure() *value.Closure {
	if len(vm.closures) == 0 {
		return nil
	}
	return vm.closures[len(vm.closures)-1]
}

func (vm *VM) upvalueAt(idx int) (*value.Upvalue, error) {
	cl := vm.currentClosure()
	if cl == nil {
		return nil, errors.New("upvalue access outside a closure")
	}
	if idx < 0 || idx >= len(cl.Upvalues) {
		return nil, errors.Errorf("upvalue index %d out of range", idx)
	}
	return cl.Upvalues[idx], nil
}

func symName(s value.Symbol) string {
	if s.Name == nil {
		return ""
	}
	return *s.Name
}

func (vm *VM) halt(status Status, format string, args ...interface{}) (Status, error, int, bool) {
	vm.status = status
	trace := []StackFrame{{Name: "main", IP: vm.ip}}
	return status, newRuntimeError(status, trace, format, args...), 0, true
}

func (vm *VM) haltErr(status Status, cause error) (Status, error, int, bool) {
	vm.status = status
	trace := []StackFrame{{Name: "main", IP: vm.ip}}
	e := newRuntimeError(status, trace, "%s", cause.Error())
	return status, e, 0, true
}

func (vm *VM) fail(status Status, format string, args ...interface{}) (Status, error) {
	s, e, _, _ := vm.halt(status, format, args...)
	return s, e
}
