package mir

import (
	"fmt"

	"github.com/ravelin-vm/ravelin/internal/bytecode"
	rverrors "github.com/ravelin-vm/ravelin/internal/errors"
)

// classOf maps a bytecode type to the register class that holds its values.
// References (arrays, classes) share the Int class with plain integers and
// booleans; only Float32 gets its own class.
func classOf(t bytecode.Type) Class {
	if t.Kind == bytecode.Float32 {
		return Float
	}

	return Int
}

// stackEntry is one abstract operand-stack slot during lowering: the virtual
// register holding the value and its static type.
type stackEntry struct {
	Reg  Register
	Type bytecode.Type
}

// lowerer carries the mutable state of one Lower call. Registers are not
// handed out from an ever-growing counter: each register NUMBER is the
// (locals + arguments) count of its class plus the operand stack's current
// DEPTH in that class, so a temporary is reused whenever the stack returns to
// a depth it has occupied before — the same register can hold an
// accumulator's running total across an entire expression. This is what lets
// intervals like S1's "[0,9]" arise: the same virtual register is live,
// on and off, across the whole function because it is never retired the
// way a fresh-SSA-value scheme would retire it.
type lowerer struct {
	fn     *bytecode.Function
	binder *bytecode.Binder

	intStackBase, floatStackBase int
	intDepth, floatDepth         int

	stack []stackEntry
	out   []*Instruction
}

func (l *lowerer) pushValue(t bytecode.Type) Register {
	var reg Register

	if classOf(t) == Float {
		reg = Register{Number: l.floatStackBase + l.floatDepth, Class: Float}
		l.floatDepth++
	} else {
		reg = Register{Number: l.intStackBase + l.intDepth, Class: Int}
		l.intDepth++
	}

	l.stack = append(l.stack, stackEntry{Reg: reg, Type: t})

	return reg
}

func (l *lowerer) popValue() stackEntry {
	n := len(l.stack)
	e := l.stack[n-1]
	l.stack = l.stack[:n-1]

	if e.Reg.Class == Float {
		l.floatDepth--
	} else {
		l.intDepth--
	}

	return e
}

func (l *lowerer) emit(d Data) {
	l.out = append(l.out, &Instruction{Idx: len(l.out), Data: d})
}

// Lower translates a verified bytecode.Function into a CompilationResult,
// simulating the operand stack the stack-machine bytecode assumes and
// mapping each stack slot to a persistent virtual register keyed by its
// depth. It plays the role of the external MIR compiler (see the package
// doc): it is not a general lowering pass, only enough to drive the core's
// own analyses and tests against concrete input.
//
// binder resolves Call targets to their Declaration so Lower can tell
// whether a call returns a value (and, if so, in which register class) —
// matching stackjit-rs's InstructionMIRCompiler, which consults the same
// binder for call lowering.
func Lower(fn *bytecode.Function, binder *bytecode.Binder) (*CompilationResult, error) {
	l := &lowerer{fn: fn, binder: binder}

	locals := make([]LocalRegister, len(fn.Locals))
	var intLocals, floatLocals int

	for i, t := range fn.Locals {
		if classOf(t) == Float {
			locals[i] = LocalRegister{Register: Register{Number: floatLocals, Class: Float}, Type: t}
			floatLocals++
		} else {
			locals[i] = LocalRegister{Register: Register{Number: intLocals, Class: Int}, Type: t}
			intLocals++
		}
	}

	args := make([]Register, len(fn.Declaration.Signature.Parameters))
	intArgBase, floatArgBase := intLocals, floatLocals
	var intArgs, floatArgs int

	for i, t := range fn.Declaration.Signature.Parameters {
		if classOf(t) == Float {
			args[i] = Register{Number: floatArgBase + floatArgs, Class: Float}
			floatArgs++
		} else {
			args[i] = Register{Number: intArgBase + intArgs, Class: Int}
			intArgs++
		}
	}

	l.intStackBase = intLocals + intArgs
	l.floatStackBase = floatLocals + floatArgs

	for _, ins := range fn.Instructions {
		if err := l.lowerOne(ins, locals, args); err != nil {
			return nil, err
		}
	}

	result := &CompilationResult{
		Instructions:      l.out,
		Locals:            locals,
		ArgumentRegisters: args,
	}
	result.RecomputeOperandSnapshots()

	return result, nil
}

func (l *lowerer) lowerOne(ins bytecode.Instruction, locals []LocalRegister, args []Register) error {
	switch ins.Op {
	case bytecode.OpLoadInt32:
		dst := l.pushValue(bytecode.I32())
		l.emit(&LoadInt32{Dst: dst, Value: ins.IntValue})

	case bytecode.OpLoadFloat32:
		dst := l.pushValue(bytecode.F32())
		l.emit(&LoadFloat32{Dst: dst, Value: ins.FloatVal})

	case bytecode.OpLoadTrue, bytecode.OpLoadFalse:
		dst := l.pushValue(bytecode.B())
		l.emit(&LoadBool{Dst: dst, Value: ins.Op == bytecode.OpLoadTrue})

	case bytecode.OpLoadNull:
		dst := l.pushValue(ins.Type)
		l.emit(&LoadNull{Dst: dst, Type: ins.Type})

	case bytecode.OpLoadLocal:
		local := locals[ins.Index]
		dst := l.pushValue(local.Type)
		l.emit(&Move{Dst: dst, Src: local.Register})

	case bytecode.OpStoreLocal:
		val := l.popValue()
		local := locals[ins.Index]
		l.emit(&Move{Dst: local.Register, Src: val.Reg})

	case bytecode.OpLoadArgument:
		argType := l.fn.Declaration.Signature.Parameters[ins.Index]
		dst := l.pushValue(argType)
		l.emit(&Move{Dst: dst, Src: args[ins.Index]})

	case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMultiply, bytecode.OpDivide:
		rhs := l.popValue()
		lhs := l.popValue()
		dst := l.pushValue(lhs.Type)
		l.emit(&BinOp{Kind: binOpKindOf(ins.Op), Dst: dst, LHS: lhs.Reg, RHS: rhs.Reg})

	case bytecode.OpCall:
		decl, ok := l.binder.Get(ins.Signature)
		if !ok {
			return rverrors.New(rverrors.CategoryOperand, "UNRESOLVED_CALL",
				fmt.Sprintf("call to %s has no binder declaration", ins.Signature),
				map[string]interface{}{"signature": ins.Signature.String()})
		}

		argv := make([]Register, len(ins.Signature.Parameters))
		for i := len(argv) - 1; i >= 0; i-- {
			argv[i] = l.popValue().Reg
		}

		var dst *Register
		if decl.ReturnType.Kind != bytecode.Void {
			r := l.pushValue(decl.ReturnType)
			dst = &r
		}

		l.emit(&Call{Signature: ins.Signature, Dst: dst, Args: argv})

	case bytecode.OpReturn:
		if l.fn.Declaration.ReturnType.Kind == bytecode.Void {
			l.emit(&Return{})
			return nil
		}

		val := l.popValue()
		l.emit(&Return{Value: &val.Reg})

	case bytecode.OpNewArray:
		length := l.popValue()
		dst := l.pushValue(bytecode.ArrayOf(ins.Type))
		l.emit(&NewArray{Element: ins.Type, Dst: dst, Length: length.Reg})

	case bytecode.OpLoadElement:
		index := l.popValue()
		array := l.popValue()
		dst := l.pushValue(ins.Type)
		l.emit(&LoadElement{Element: ins.Type, Dst: dst, Array: array.Reg, Index: index.Reg})

	case bytecode.OpStoreElement:
		value := l.popValue()
		index := l.popValue()
		array := l.popValue()
		l.emit(&StoreElement{Element: ins.Type, Array: array.Reg, Index: index.Reg, Value: value.Reg})

	case bytecode.OpLoadArrayLength:
		array := l.popValue()
		dst := l.pushValue(bytecode.I32())
		l.emit(&LoadArrayLength{Dst: dst, Array: array.Reg})

	case bytecode.OpBranch:
		l.emit(&Branch{Target: int(ins.Target)})

	case bytecode.OpBranchEqual, bytecode.OpBranchNotEqual, bytecode.OpBranchGreaterThan,
		bytecode.OpBranchGreaterThanOrEqual, bytecode.OpBranchLessThan, bytecode.OpBranchLessThanOrEqual:
		rhs := l.popValue()
		lhs := l.popValue()
		l.emit(&BranchCondition{
			Op:     compareOpOfBranch(ins.Op),
			Type:   lhs.Type,
			Target: int(ins.Target),
			LHS:    lhs.Reg,
			RHS:    rhs.Reg,
		})

	case bytecode.OpCompareEqual, bytecode.OpCompareNotEqual, bytecode.OpCompareGreaterThan,
		bytecode.OpCompareGreaterThanOrEqual, bytecode.OpCompareLessThan, bytecode.OpCompareLessThanOrEqual:
		rhs := l.popValue()
		lhs := l.popValue()
		dst := l.pushValue(bytecode.B())
		l.emit(&Compare{Op: compareOpOfCompare(ins.Op), Type: lhs.Type, Dst: dst, LHS: lhs.Reg, RHS: rhs.Reg})

	default:
		return rverrors.New(rverrors.CategoryOperand, "UNSUPPORTED_OP",
			fmt.Sprintf("lowering does not handle bytecode op %d", ins.Op),
			map[string]interface{}{"op": int(ins.Op)})
	}

	return nil
}

func binOpKindOf(op bytecode.Op) BinOpKind {
	switch op {
	case bytecode.OpAdd:
		return Add
	case bytecode.OpSub:
		return Sub
	case bytecode.OpMultiply:
		return Mul
	default:
		return Div
	}
}

func compareOpOfBranch(op bytecode.Op) CompareOp {
	switch op {
	case bytecode.OpBranchEqual:
		return CmpEqual
	case bytecode.OpBranchNotEqual:
		return CmpNotEqual
	case bytecode.OpBranchGreaterThan:
		return CmpGreaterThan
	case bytecode.OpBranchGreaterThanOrEqual:
		return CmpGreaterThanOrEqual
	case bytecode.OpBranchLessThan:
		return CmpLessThan
	default:
		return CmpLessThanOrEqual
	}
}

func compareOpOfCompare(op bytecode.Op) CompareOp {
	switch op {
	case bytecode.OpCompareEqual:
		return CmpEqual
	case bytecode.OpCompareNotEqual:
		return CmpNotEqual
	case bytecode.OpCompareGreaterThan:
		return CmpGreaterThan
	case bytecode.OpCompareGreaterThanOrEqual:
		return CmpGreaterThanOrEqual
	case bytecode.OpCompareLessThan:
		return CmpLessThan
	default:
		return CmpLessThanOrEqual
	}
}
