// Package bytecode is the stand-in for the front-end's output: verified
// stack-based bytecode, function declarations and the binder that resolves
// call signatures. The real verifier, parser and type checker are external
// collaborators out of scope for this repository (see the package design
// notes); this package performs no validation of its own and exists only so
// the core pipeline has a concrete, typed input to lower.
package bytecode

import "fmt"

// Kind enumerates the value categories the stack bytecode can carry.
type Kind int

const (
	Void Kind = iota
	Int32
	Float32
	Bool
	Array
	Class
)

// Type describes the static type of a bytecode value. Array carries its
// element type; Class carries the class name. Two Types are equal iff they
// have the same Kind and, recursively, the same Element/ClassName.
type Type struct {
	Kind      Kind
	Element   *Type
	ClassName string
}

func Void32() Type    { return Type{Kind: Void} }
func I32() Type       { return Type{Kind: Int32} }
func F32() Type       { return Type{Kind: Float32} }
func B() Type         { return Type{Kind: Bool} }
func ArrayOf(e Type) Type { return Type{Kind: Array, Element: &e} }
func ClassOf(name string) Type { return Type{Kind: Class, ClassName: name} }

// IsReference reports whether values of this type are garbage-collector
// tracked (arrays and class instances).
func (t Type) IsReference() bool {
	return t.Kind == Array || t.Kind == Class
}

// Equal reports structural equality.
func (t Type) Equal(other Type) bool {
	if t.Kind != other.Kind {
		return false
	}

	switch t.Kind {
	case Array:
		if t.Element == nil || other.Element == nil {
			return t.Element == other.Element
		}

		return t.Element.Equal(*other.Element)
	case Class:
		return t.ClassName == other.ClassName
	default:
		return true
	}
}

func (t Type) String() string {
	switch t.Kind {
	case Void:
		return "Void"
	case Int32:
		return "Int"
	case Float32:
		return "Float"
	case Bool:
		return "Bool"
	case Array:
		if t.Element != nil {
			return fmt.Sprintf("Ref.Array[%s]", t.Element.String())
		}

		return "Ref.Array[?]"
	case Class:
		return "Ref." + t.ClassName
	default:
		return "?"
	}
}

// Op enumerates the stack bytecode opcodes the core is expected to lower.
type Op int

const (
	OpLoadInt32 Op = iota
	OpLoadFloat32
	OpLoadTrue
	OpLoadFalse
	OpLoadNull
	OpLoadLocal
	OpStoreLocal
	OpAdd
	OpSub
	OpMultiply
	OpDivide
	OpCall
	OpLoadArgument
	OpReturn
	OpNewArray
	OpLoadElement
	OpStoreElement
	OpLoadArrayLength
	OpBranch
	OpBranchEqual
	OpBranchNotEqual
	OpBranchGreaterThan
	OpBranchGreaterThanOrEqual
	OpBranchLessThan
	OpBranchLessThanOrEqual
	OpCompareEqual
	OpCompareNotEqual
	OpCompareGreaterThan
	OpCompareGreaterThanOrEqual
	OpCompareLessThan
	OpCompareLessThanOrEqual
	OpNewObject
	OpLoadField
	OpStoreField
)

// IsBranch reports whether op is one of the opcodes that carry a branch target.
func (op Op) IsBranch() bool {
	switch op {
	case OpBranch, OpBranchEqual, OpBranchNotEqual, OpBranchGreaterThan,
		OpBranchGreaterThanOrEqual, OpBranchLessThan, OpBranchLessThanOrEqual:
		return true
	default:
		return false
	}
}

// Instruction is one stack-bytecode opcode plus whichever payload field it uses.
type Instruction struct {
	Op        Op
	IntValue  int32
	FloatVal  float32
	Index     uint32 // local/argument index
	Target    uint32 // branch target, a bytecode instruction index
	Type      Type   // LoadNull/NewArray/LoadElement/StoreElement element type, or NewObject's class type
	FieldName string // LoadField / StoreField field name
	Signature FunctionSignature
}

func (i Instruction) String() string {
	switch i.Op {
	case OpLoadInt32:
		return fmt.Sprintf("LoadInt32 %d", i.IntValue)
	case OpLoadFloat32:
		return fmt.Sprintf("LoadFloat32 %g", i.FloatVal)
	case OpLoadLocal:
		return fmt.Sprintf("LoadLocal %d", i.Index)
	case OpStoreLocal:
		return fmt.Sprintf("StoreLocal %d", i.Index)
	case OpCall:
		return fmt.Sprintf("Call %s", i.Signature)
	default:
		return fmt.Sprintf("op(%d)", i.Op)
	}
}

// FunctionSignature identifies a callable by name and parameter types.
type FunctionSignature struct {
	Name       string
	Parameters []Type
}

// key returns a comparable, collision-free representation of the signature
// for use as a map key: Parameters is a slice, which Go maps can't key on
// directly, but each Type's String() form is unambiguous (Kind plus, for
// Array/Class, its recursive element type or class name), so joining the
// name with the parameters' strings behind a delimiter that never appears in
// a Type's own rendering gives a safe stand-in for signature identity.
func (s FunctionSignature) key() string {
	out := s.Name
	for _, p := range s.Parameters {
		out += "\x00" + p.String()
	}
	return out
}

func (s FunctionSignature) String() string {
	out := s.Name + "("

	for i, p := range s.Parameters {
		if i > 0 {
			out += ", "
		}

		out += p.String()
	}

	return out + ")"
}

// Declaration is the binder's record of a callable: its signature, return
// type, and whether it is implemented outside managed code. The core only
// needs enough of this to recognize Call as a safepoint and to know the
// class of its return value.
type Declaration struct {
	Signature  FunctionSignature
	ReturnType Type
	External   bool
}

// IsManagedReferenceReturn reports whether calling this declaration yields a
// GC-tracked value.
func (d Declaration) IsManagedReferenceReturn() bool {
	return d.ReturnType.IsReference()
}

// Function is a verified, stack-based managed function: its declaration, its
// local variable types (in source-local order), and its linear instruction
// stream.
type Function struct {
	Declaration Declaration
	Locals      []Type
	Instructions []Instruction
}
