package vm

import (
	"math"

	"github.com/silklang/moth/pkg/bytecode"
	"github.com/silklang/moth/pkg/value"
)

func (vm *VM) unaryNeg(nextIP int) (Status, error, int, bool) {
	v, err := vm.stack.Pop()
	if err != nil {
		return vm.haltErr(StatusInvArg, err)
	}
	switch v.Kind() {
	case value.KindInt:
		vm.stack.Push(value.Int(-v.AsInt()))
	case value.KindReal:
		vm.stack.Push(value.Real(-v.AsReal()))
	default:
		return vm.halt(StatusInvType, "NEG requires Int or Real, got %s", v.TypeName())
	}
	return StatusOK, nil, nextIP, false
}

// binaryArith implements ADD/SUB/DIV/MUL/RIV/POW/MOD per spec §4.6's
// type-directed arithmetic table.
func (vm *VM) binaryArith(op bytecode.Op, nextIP int) (Status, error, int, bool) {
	b, err := vm.stack.Pop()
	if err != nil {
		return vm.haltErr(StatusInvArg, err)
	}
	a, err := vm.stack.Pop()
	if err != nil {
		return vm.haltErr(StatusInvArg, err)
	}

	if op == bytecode.ADD {
		if res, ok, status, msg := vm.tryConcat(a, b); ok || status != StatusOK {
			if status != StatusOK {
				return vm.halt(status, "%s", msg)
			}
			vm.stack.Push(res)
			return StatusOK, nil, nextIP, false
		}
	}
	if op == bytecode.MUL {
		if res, ok, status, msg := vm.tryRepeat(a, b); ok || status != StatusOK {
			if status != StatusOK {
				return vm.halt(status, "%s", msg)
			}
			vm.stack.Push(res)
			return StatusOK, nil, nextIP, false
		}
	}

	if op == bytecode.RIV {
		ai, aok := asInt(a)
		bi, bok := asInt(b)
		if !aok || !bok {
			return vm.halt(StatusInvType, "RIV requires two Ints")
		}
		if bi == 0 {
			return vm.halt(StatusInvArg, "RIV by zero")
		}
		vm.stack.Push(value.Int(ai / bi))
		return StatusOK, nil, nextIP, false
	}
	if op == bytecode.MOD {
		ai, aok := asInt(a)
		bi, bok := asInt(b)
		if !aok || !bok {
			return vm.halt(StatusInvType, "MOD requires two Ints")
		}
		if bi == 0 {
			return vm.halt(StatusInvArg, "MOD by zero")
		}
		vm.stack.Push(value.Int(ai % bi))
		return StatusOK, nil, nextIP, false
	}

	if op == bytecode.DIV {
		af, aok := asReal(a)
		bf, bok := asReal(b)
		if !aok || !bok {
			return vm.halt(StatusInvType, "DIV requires numeric operands, got %s and %s", a.TypeName(), b.TypeName())
		}
		vm.stack.Push(value.Real(af / bf))
		return StatusOK, nil, nextIP, false
	}

	// ADD/SUB/MUL/POW over numerics: Int op Int stays Int (wrapping),
	// any Real operand promotes both.
	if a.Kind() == value.KindInt && b.Kind() == value.KindInt {
		ai, bi := a.AsInt(), b.AsInt()
		var r int64
		switch op {
		case bytecode.ADD:
			r = ai + bi
		case bytecode.SUB:
			r = ai - bi
		case bytecode.MUL:
			r = ai * bi
		case bytecode.POW:
			// Exponentiation by squaring, wrapping like MUL. A negative
			// exponent truncates the reciprocal toward zero, so it gives 0
			// for every base but 1 and -1.
			r = 1
			if bi < 0 && ai != 1 && ai != -1 {
				r = 0
				break
			}
			for base, e := ai, bi; e != 0; e /= 2 {
				if e&1 != 0 {
					r *= base
				}
				base *= base
			}
		}
		vm.stack.Push(value.Int(r))
		return StatusOK, nil, nextIP, false
	}

	af, aok := asReal(a)
	bf, bok := asReal(b)
	if !aok || !bok {
		return vm.halt(StatusInvType, "arithmetic requires numeric operands, got %s and %s", a.TypeName(), b.TypeName())
	}
	var r float64
	switch op {
	case bytecode.ADD:
		r = af + bf
	case bytecode.SUB:
		r = af - bf
	case bytecode.MUL:
		r = af * bf
	case bytecode.POW:
		r = math.Pow(af, bf)
	}
	vm.stack.Push(value.Real(r))
	return StatusOK, nil, nextIP, false
}

func (vm *VM) tryConcat(a, b value.Value) (value.Value, bool, Status, string) {
	as, aok := asText(a)
	bs, bok := asText(b)
	if aok && bok {
		cat := value.NewString(as + bs)
		vm.registry.Register(cat)
		return value.Obj(cat), true, StatusOK, ""
	}
	aArr, aIsArr := asArray(a)
	bArr, bIsArr := asArray(b)
	if aIsArr && bIsArr {
		if !value.SameElementKind(aArr, bArr) {
			return value.Void, false, StatusInvType, "ADD on Array requires the same element type"
		}
		cat := aArr.Concat(bArr)
		vm.registry.Register(cat)
		return value.Obj(cat), true, StatusOK, ""
	}
	return value.Void, false, StatusOK, ""
}

func (vm *VM) tryRepeat(a, b value.Value) (value.Value, bool, Status, string) {
	as, aok := asText(a)
	if !aok {
		return value.Void, false, StatusOK, ""
	}
	n, bok := asInt(b)
	if !bok {
		return value.Void, false, StatusOK, ""
	}
	if n < 0 {
		return value.Void, false, StatusInvArg, "MUL repeat count must be non-negative"
	}
	rep := value.NewString(as).Repeat(n)
	vm.registry.Register(rep)
	return value.Obj(rep), true, StatusOK, ""
}

func (vm *VM) makeVector(n, nextIP int) (Status, error, int, bool) {
	data := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		v, err := vm.stack.Pop()
		if err != nil {
			return vm.haltErr(StatusInvArg, err)
		}
		f, ok := asReal(v)
		if !ok {
			return vm.halt(StatusInvType, "VEC requires Real elements, got %s", v.TypeName())
		}
		data[i] = f
	}
	vec := value.NewVector(data)
	vm.registry.Register(vec)
	vm.stack.Push(value.Obj(vec))
	return StatusOK, nil, nextIP, false
}

func (vm *VM) makeArray(n, nextIP int) (Status, error, int, bool) {
	slots := make([]value.Value, n)
	for i := n - 1; i >= 0; i-- {
		v, err := vm.stack.Pop()
		if err != nil {
			return vm.haltErr(StatusInvArg, err)
		}
		slots[i] = v
	}
	arr := value.NewArray(slots)
	vm.registry.Register(arr)
	vm.stack.Push(value.Obj(arr))
	return StatusOK, nil, nextIP, false
}

func (vm *VM) makeDict(twoN, nextIP int) (Status, error, int, bool) {
	n := twoN / 2
	pairs := make([][2]value.Value, n)
	for i := n - 1; i >= 0; i-- {
		v, err := vm.stack.Pop()
		if err != nil {
			return vm.haltErr(StatusInvArg, err)
		}
		k, err := vm.stack.Pop()
		if err != nil {
			return vm.haltErr(StatusInvArg, err)
		}
		pairs[i] = [2]value.Value{k, v}
	}
	d := value.NewDictionary()
	for _, kv := range pairs {
		if !d.Set(kv[0], kv[1]) {
			return vm.halt(StatusInvType, "DCT key is not hashable: %s", kv[0].TypeName())
		}
	}
	vm.registry.Register(d)
	vm.stack.Push(value.Obj(d))
	return StatusOK, nil, nextIP, false
}

func (vm *VM) index(nextIP int) (Status, error, int, bool) {
	idx, err := vm.stack.Pop()
	if err != nil {
		return vm.haltErr(StatusInvArg, err)
	}
	coll, err := vm.stack.Pop()
	if err != nil {
		return vm.haltErr(StatusInvArg, err)
	}
	switch {
	case isText(coll):
		text, _ := asText(coll)
		i, ok := asInt(idx)
		if !ok {
			return vm.halt(StatusInvType, "IDX on String requires an Int index")
		}
		r, ok := value.NewString(text).Index(i)
		if !ok {
			return vm.halt(StatusInvArg, "string index out of range: %d", i)
		}
		vm.stack.Push(value.Char(r))
	case coll.Kind() == value.KindObj && coll.AsObj() != nil && coll.AsObj().ObjKind() == value.ObjArray:
		arr := coll.AsObj().(*value.Array)
		i, ok := asInt(idx)
		if !ok {
			return vm.halt(StatusInvType, "IDX on Array requires an Int index")
		}
		v, ok := arr.Index(i)
		if !ok {
			return vm.halt(StatusInvArg, "array index out of range: %d", i)
		}
		vm.stack.Push(v)
	case coll.Kind() == value.KindObj && coll.AsObj() != nil && coll.AsObj().ObjKind() == value.ObjVector:
		vec := coll.AsObj().(*value.Vector)
		i, ok := asInt(idx)
		if !ok {
			return vm.halt(StatusInvType, "IDX on Vector requires an Int index")
		}
		f, ok := vec.Index(i)
		if !ok {
			return vm.halt(StatusInvArg, "vector index out of range: %d", i)
		}
		vm.stack.Push(value.Real(f))
	case coll.Kind() == value.KindObj && coll.AsObj() != nil && coll.AsObj().ObjKind() == value.ObjDict:
		d := coll.AsObj().(*value.Dictionary)
		v, ok := d.Get(idx)
		if !ok {
			return vm.halt(StatusInvArg, "dictionary has no such key")
		}
		vm.stack.Push(v)
	default:
		return vm.halt(StatusInvType, "IDX requires String, Array, Vector, or Dictionary, got %s", coll.TypeName())
	}
	return StatusOK, nil, nextIP, false
}

func (vm *VM) indexAssign(nextIP int) (Status, error, int, bool) {
	v, err := vm.stack.Pop()
	if err != nil {
		return vm.haltErr(StatusInvArg, err)
	}
	idx, err := vm.stack.Pop()
	if err != nil {
		return vm.haltErr(StatusInvArg, err)
	}
	coll, err := vm.stack.Pop()
	if err != nil {
		return vm.haltErr(StatusInvArg, err)
	}
	switch {
	case isText(coll):
		text, _ := asText(coll)
		i, ok := asInt(idx)
		r, rok := asChar(v)
		if !ok || !rok {
			return vm.halt(StatusInvType, "IDA on String requires an Int index and a Char value")
		}
		ns, ok := value.NewString(text).IndexAssign(i, r)
		if !ok {
			return vm.halt(StatusInvArg, "string index out of range: %d", i)
		}
		vm.registry.Register(ns)
		vm.stack.Push(value.Obj(ns))
	case coll.Kind() == value.KindObj && coll.AsObj() != nil && coll.AsObj().ObjKind() == value.ObjArray:
		arr := coll.AsObj().(*value.Array)
		i, ok := asInt(idx)
		if !ok {
			return vm.halt(StatusInvType, "IDA on Array requires an Int index")
		}
		if !arr.IndexAssign(i, v) {
			return vm.halt(StatusInvArg, "array index out of range: %d", i)
		}
		vm.stack.Push(coll)
	case coll.Kind() == value.KindObj && coll.AsObj() != nil && coll.AsObj().ObjKind() == value.ObjDict:
		d := coll.AsObj().(*value.Dictionary)
		if !d.Set(idx, v) {
			return vm.halt(StatusInvType, "IDA key is not hashable: %s", idx.TypeName())
		}
		vm.stack.Push(coll)
	default:
		return vm.halt(StatusInvType, "IDA requires Array, Dictionary, or String, got %s", coll.TypeName())
	}
	return StatusOK, nil, nextIP, false
}

func (vm *VM) merge(nextIP int) (Status, error, int, bool) {
	top, err := vm.stack.Pop()
	if err != nil {
		return vm.haltErr(StatusInvArg, err)
	}
	second, err := vm.stack.Pop()
	if err != nil {
		return vm.haltErr(StatusInvArg, err)
	}
	if second.Kind() == value.KindObj && second.AsObj() != nil {
		switch dst := second.AsObj().(type) {
		case *value.Array:
			dst.Merge(top)
			vm.stack.Push(second)
			return StatusOK, nil, nextIP, false
		case *value.Dictionary:
			src, ok := top.AsObj().(*value.Dictionary)
			if !ok {
				return vm.halt(StatusInvType, "MRG into Dictionary requires a Dictionary, got %s", top.TypeName())
			}
			dst.Merge(src)
			vm.stack.Push(second)
			return StatusOK, nil, nextIP, false
		}
	}
	return vm.halt(StatusInvType, "MRG requires Array or Dictionary, got %s", second.TypeName())
}

// compare implements EQ/NEQ/GT/LT/GTE/LTE per spec §4.6.
func (vm *VM) compare(op bytecode.Op, nextIP int) (Status, error, int, bool) {
	b, err := vm.stack.Pop()
	if err != nil {
		return vm.haltErr(StatusInvArg, err)
	}
	a, err := vm.stack.Pop()
	if err != nil {
		return vm.haltErr(StatusInvArg, err)
	}

	switch op {
	case bytecode.EQ:
		vm.stack.Push(value.Bool(a.Equal(b)))
		return StatusOK, nil, nextIP, false
	case bytecode.NEQ:
		vm.stack.Push(value.Bool(!a.Equal(b)))
		return StatusOK, nil, nextIP, false
	}

	if as, aok := asText(a); aok {
		bs, bok := asText(b)
		if !bok {
			return vm.halt(StatusInvType, "string comparison requires two Strings")
		}
		cmp := compareStrings(as, bs)
		vm.stack.Push(value.Bool(resolveOrdering(op, cmp)))
		return StatusOK, nil, nextIP, false
	}

	af, aok := asReal(a)
	bf, bok := asReal(b)
	if !aok || !bok {
		return vm.halt(StatusInvType, "comparison requires numeric operands or Strings, got %s and %s", a.TypeName(), b.TypeName())
	}
	var cmp int
	switch {
	case af < bf:
		cmp = -1
	case af > bf:
		cmp = 1
	}
	vm.stack.Push(value.Bool(resolveOrdering(op, cmp)))
	return StatusOK, nil, nextIP, false
}

func resolveOrdering(op bytecode.Op, cmp int) bool {
	switch op {
	case bytecode.GT:
		return cmp > 0
	case bytecode.LT:
		return cmp < 0
	case bytecode.GTE:
		return cmp >= 0
	case bytecode.LTE:
		return cmp <= 0
	default:
		return false
	}
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func asInt(v value.Value) (int64, bool) {
	if v.Kind() != value.KindInt {
		return 0, false
	}
	return v.AsInt(), true
}

func asChar(v value.Value) (rune, bool) {
	if v.Kind() != value.KindChar {
		return 0, false
	}
	return v.AsChar(), true
}

func asReal(v value.Value) (float64, bool) {
	switch v.Kind() {
	case value.KindReal:
		return v.AsReal(), true
	case value.KindInt:
		return float64(v.AsInt()), true
	default:
		return 0, false
	}
}

// asText extracts the Go string underlying either a Str value (an
// interned constant-pool pointer) or an Obj value wrapping a heap
// String (the result of a prior concatenation or repetition).
func asText(v value.Value) (string, bool) {
	switch v.Kind() {
	case value.KindStr:
		s := v.AsStr()
		if s == nil {
			return "", false
		}
		return *s, true
	case value.KindObj:
		if s, ok := v.AsObj().(*value.String); ok {
			return s.Go(), true
		}
	}
	return "", false
}

func isText(v value.Value) bool {
	_, ok := asText(v)
	return ok
}

func asArray(v value.Value) (*value.Array, bool) {
	if v.Kind() != value.KindObj || v.AsObj() == nil {
		return nil, false
	}
	a, ok := v.AsObj().(*value.Array)
	return a, ok
}
