package vm

import "github.com/silklang/moth/pkg/value"

// call implements CAL (spec §4.6/§4.3): pop the callee, and either
// transfer control into a Function/Closure's bytecode with a freshly
// pushed invocation frame, invoke an FFI function directly, or fail
// with NotFun.
func (vm *VM) call(nextIP int) (Status, error, int, bool) {
	callee, err := vm.stack.Pop()
	if err != nil {
		return vm.haltErr(StatusInvArg, err)
	}
	if callee.Kind() != value.KindObj || callee.AsObj() == nil {
		return vm.halt(StatusNotFun, "CAL target is not callable: %s", callee.TypeName())
	}

	switch fn := callee.AsObj().(type) {
	case *value.Function:
		if perr := vm.stack.PushFrame(nextIP); perr != nil {
			return vm.haltErr(StatusInvArg, perr)
		}
		vm.closures = append(vm.closures, nil)
		return StatusOK, nil, fn.Offset, false

	case *value.Closure:
		if perr := vm.stack.PushFrame(nextIP); perr != nil {
			return vm.haltErr(StatusInvArg, perr)
		}
		vm.closures = append(vm.closures, fn)
		return StatusOK, nil, fn.Fn.Offset, false

	case *value.FFIFunction:
		return vm.callFFI(fn, nextIP)

	default:
		return vm.halt(StatusNotFun, "CAL target is not callable: %s", callee.TypeName())
	}
}

// callFFI invokes a native function with argv = the caller's current
// frame slice and argc = that frame's arity, per spec §4.6/§4.7.
func (vm *VM) callFFI(fn *value.FFIFunction, nextIP int) (Status, error, int, bool) {
	argv := vm.stack.Values()[vm.stack.CurrentFrame().Base:]
	ret := value.Void
	result := fn.Fn(argv, &ret)
	switch result {
	case value.FFIOk:
		if perr := vm.stack.Push(ret); perr != nil {
			return vm.haltErr(StatusInvArg, perr)
		}
		return StatusOK, nil, nextIP, false
	case value.FFIArity:
		return vm.halt(StatusInvArg, "FFI call %s/%s: wrong argument count", fn.Library, fn.Symbol)
	case value.FFITypes:
		return vm.halt(StatusInvType, "FFI call %s/%s: argument type mismatch", fn.Library, fn.Symbol)
	default:
		return vm.halt(StatusInvArg, "FFI call %s/%s failed", fn.Library, fn.Symbol)
	}
}

// ret implements RET: pop the return value, destroy the current
// frame, and resume at the stored return address with the value
// pushed onto the (now restored) caller frame.
func (vm *VM) ret() (Status, error, int, bool) {
	retVal, err := vm.stack.Pop()
	if err != nil {
		return vm.haltErr(StatusInvArg, err)
	}
	if vm.stack.FrameDepth() <= 1 {
		// Returning from the outer frame ends the program, matching FIN,
		// with the return value left on top of the stack.
		if perr := vm.stack.Push(retVal); perr != nil {
			return vm.haltErr(StatusInvArg, perr)
		}
		return StatusOK, nil, 0, true
	}
	frame, ferr := vm.stack.PopFrame()
	if ferr != nil {
		return vm.haltErr(StatusInvArg, ferr)
	}
	if len(vm.closures) > 1 {
		vm.closures = vm.closures[:len(vm.closures)-1]
	}
	if perr := vm.stack.Push(retVal); perr != nil {
		return vm.haltErr(StatusInvArg, perr)
	}
	return StatusOK, nil, frame.ReturnAddr, false
}

// makeClosure implements CLO: pop a Function and its declared number of
// promoted upvalue cells (pushed by the compiler in capture order
// immediately below the function), and push a Closure.
func (vm *VM) makeClosure(nextIP int) (Status, error, int, bool) {
	fnVal, err := vm.stack.Pop()
	if err != nil {
		return vm.haltErr(StatusInvArg, err)
	}
	fn, ok := fnVal.AsObj().(*value.Function)
	if !ok {
		return vm.halt(StatusInvType, "CLO expects a Function, got %s", fnVal.TypeName())
	}

	cells := make([]*value.Upvalue, fn.NumUpvalues)
	for i := fn.NumUpvalues - 1; i >= 0; i-- {
		v, perr := vm.stack.Pop()
		if perr != nil {
			return vm.haltErr(StatusInvArg, perr)
		}
		uv, ok := v.AsObj().(*value.Upvalue)
		if !ok {
			return vm.halt(StatusInvType, "CLO expects an Upvalue cell, got %s", v.TypeName())
		}
		cells[i] = uv
	}

	cl := value.NewClosure(fn, cells)
	vm.registry.Register(cl)
	if perr := vm.stack.Push(value.Obj(cl)); perr != nil {
		return vm.haltErr(StatusInvArg, perr)
	}
	return StatusOK, nil, nextIP, false
}
