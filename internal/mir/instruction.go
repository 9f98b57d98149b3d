package mir

import (
	"fmt"

	"github.com/ravelin-vm/ravelin/internal/bytecode"
)

// BinOpKind enumerates the binary arithmetic operators MIR supports.
type BinOpKind int

const (
	Add BinOpKind = iota
	Sub
	Mul
	Div
)

func (k BinOpKind) String() string {
	switch k {
	case Add:
		return "add"
	case Sub:
		return "sub"
	case Mul:
		return "mul"
	case Div:
		return "div"
	default:
		return "binop?"
	}
}

// CompareOp enumerates the comparison predicates used by BranchCondition.
type CompareOp int

const (
	CmpEqual CompareOp = iota
	CmpNotEqual
	CmpGreaterThan
	CmpGreaterThanOrEqual
	CmpLessThan
	CmpLessThanOrEqual
)

func (c CompareOp) String() string {
	switch c {
	case CmpEqual:
		return "eq"
	case CmpNotEqual:
		return "ne"
	case CmpGreaterThan:
		return "gt"
	case CmpGreaterThanOrEqual:
		return "ge"
	case CmpLessThan:
		return "lt"
	case CmpLessThanOrEqual:
		return "le"
	default:
		return "cmp?"
	}
}

// Data is implemented by every MIR instruction payload. Assigned reports the
// single register the instruction writes, if any. Used returns the ordered
// registers it reads. UsedMut returns pointers into the same operand slots so
// the peephole pass (internal/peephole) can rewrite them in place. Every
// concrete payload type implements Data on a pointer receiver, and
// Instruction.Data always holds that pointer — never a value copy — so a
// rewrite through UsedMut is visible through Used/String too.
type Data interface {
	isData()
	Assigned() (Register, bool)
	Used() []Register
	UsedMut() []*Register
	fmt.Stringer
}

// Instruction is a MIR instruction: a unique sequential index plus its payload.
type Instruction struct {
	Idx  int
	Data Data
}

func (i *Instruction) Index() int                 { return i.Idx }
func (i *Instruction) Assigned() (Register, bool) { return i.Data.Assigned() }
func (i *Instruction) Used() []Register            { return i.Data.Used() }
func (i *Instruction) UsedMut() []*Register         { return i.Data.UsedMut() }
func (i *Instruction) String() string               { return fmt.Sprintf("%d: %s", i.Idx, i.Data) }

// ---- payload variants ----
//
// Every payload below is only ever referenced through a pointer (construct
// with &Move{...}, never Move{...}) so that all of isData/Assigned/Used/
// UsedMut/String are reachable through the Data interface from one receiver
// type.

type Move struct{ Dst, Src Register }

func (*Move) isData()                      {}
func (m *Move) Assigned() (Register, bool) { return m.Dst, true }
func (m *Move) Used() []Register           { return []Register{m.Src} }
func (m *Move) UsedMut() []*Register       { return []*Register{&m.Src} }
func (m *Move) String() string             { return fmt.Sprintf("%s = move %s", m.Dst, m.Src) }

type LoadInt32 struct {
	Dst   Register
	Value int32
}

func (*LoadInt32) isData()                      {}
func (l *LoadInt32) Assigned() (Register, bool) { return l.Dst, true }
func (l *LoadInt32) Used() []Register           { return nil }
func (l *LoadInt32) UsedMut() []*Register       { return nil }
func (l *LoadInt32) String() string             { return fmt.Sprintf("%s = load.i32 %d", l.Dst, l.Value) }

type LoadFloat32 struct {
	Dst   Register
	Value float32
}

func (*LoadFloat32) isData()                      {}
func (l *LoadFloat32) Assigned() (Register, bool) { return l.Dst, true }
func (l *LoadFloat32) Used() []Register           { return nil }
func (l *LoadFloat32) UsedMut() []*Register       { return nil }
func (l *LoadFloat32) String() string             { return fmt.Sprintf("%s = load.f32 %g", l.Dst, l.Value) }

type LoadBool struct {
	Dst   Register
	Value bool
}

func (*LoadBool) isData()                      {}
func (l *LoadBool) Assigned() (Register, bool) { return l.Dst, true }
func (l *LoadBool) Used() []Register           { return nil }
func (l *LoadBool) UsedMut() []*Register       { return nil }
func (l *LoadBool) String() string             { return fmt.Sprintf("%s = load.bool %v", l.Dst, l.Value) }

type LoadNull struct {
	Dst  Register
	Type bytecode.Type
}

func (*LoadNull) isData()                      {}
func (l *LoadNull) Assigned() (Register, bool) { return l.Dst, true }
func (l *LoadNull) Used() []Register           { return nil }
func (l *LoadNull) UsedMut() []*Register       { return nil }
func (l *LoadNull) String() string             { return fmt.Sprintf("%s = load.null %s", l.Dst, l.Type) }

// BinOp covers Add/Sub/Mul/Div over a matching register class.
type BinOp struct {
	Kind          BinOpKind
	Dst, LHS, RHS Register
}

func (*BinOp) isData()                      {}
func (b *BinOp) Assigned() (Register, bool) { return b.Dst, true }
func (b *BinOp) Used() []Register           { return []Register{b.LHS, b.RHS} }
func (b *BinOp) UsedMut() []*Register       { return []*Register{&b.LHS, &b.RHS} }
func (b *BinOp) String() string {
	return fmt.Sprintf("%s = %s %s, %s", b.Dst, b.Kind, b.LHS, b.RHS)
}

// Call is a safepoint: any reference-typed register live across it must be
// visible to the GC root scanner (see the liveness analyzer's conservative
// interval model).
type Call struct {
	Signature bytecode.FunctionSignature
	Dst       *Register
	Args      []Register
}

func (*Call) isData() {}
func (c *Call) Assigned() (Register, bool) {
	if c.Dst == nil {
		return Register{}, false
	}

	return *c.Dst, true
}
func (c *Call) Used() []Register { return append([]Register(nil), c.Args...) }
func (c *Call) UsedMut() []*Register {
	out := make([]*Register, len(c.Args))
	for i := range c.Args {
		out[i] = &c.Args[i]
	}

	return out
}
func (c *Call) String() string {
	if c.Dst != nil {
		return fmt.Sprintf("%s = call %s%v", *c.Dst, c.Signature, c.Args)
	}

	return fmt.Sprintf("call %s%v", c.Signature, c.Args)
}

type Return struct{ Value *Register }

func (*Return) isData()                      {}
func (r *Return) Assigned() (Register, bool) { return Register{}, false }
func (r *Return) Used() []Register {
	if r.Value == nil {
		return nil
	}

	return []Register{*r.Value}
}
func (r *Return) UsedMut() []*Register {
	if r.Value == nil {
		return nil
	}

	return []*Register{r.Value}
}
func (r *Return) String() string {
	if r.Value == nil {
		return "return"
	}

	return fmt.Sprintf("return %s", *r.Value)
}

type NewArray struct {
	Element bytecode.Type
	Dst     Register
	Length  Register
}

func (*NewArray) isData()                      {}
func (n *NewArray) Assigned() (Register, bool) { return n.Dst, true }
func (n *NewArray) Used() []Register           { return []Register{n.Length} }
func (n *NewArray) UsedMut() []*Register       { return []*Register{&n.Length} }
func (n *NewArray) String() string {
	return fmt.Sprintf("%s = new_array[%s] %s", n.Dst, n.Element, n.Length)
}

// LoadElement implies the null and bounds checks the runtime performs before
// reading; the core does not model them as separate instructions.
type LoadElement struct {
	Element           bytecode.Type
	Dst, Array, Index Register
}

func (*LoadElement) isData()                      {}
func (l *LoadElement) Assigned() (Register, bool) { return l.Dst, true }
func (l *LoadElement) Used() []Register           { return []Register{l.Array, l.Index} }
func (l *LoadElement) UsedMut() []*Register       { return []*Register{&l.Array, &l.Index} }
func (l *LoadElement) String() string {
	return fmt.Sprintf("%s = load_elem[%s] %s[%s]", l.Dst, l.Element, l.Array, l.Index)
}

type StoreElement struct {
	Element             bytecode.Type
	Array, Index, Value Register
}

func (*StoreElement) isData()                      {}
func (s *StoreElement) Assigned() (Register, bool) { return Register{}, false }
func (s *StoreElement) Used() []Register           { return []Register{s.Array, s.Index, s.Value} }
func (s *StoreElement) UsedMut() []*Register       { return []*Register{&s.Array, &s.Index, &s.Value} }
func (s *StoreElement) String() string {
	return fmt.Sprintf("store_elem[%s] %s[%s] = %s", s.Element, s.Array, s.Index, s.Value)
}

type LoadArrayLength struct{ Dst, Array Register }

func (*LoadArrayLength) isData()                      {}
func (l *LoadArrayLength) Assigned() (Register, bool) { return l.Dst, true }
func (l *LoadArrayLength) Used() []Register           { return []Register{l.Array} }
func (l *LoadArrayLength) UsedMut() []*Register       { return []*Register{&l.Array} }
func (l *LoadArrayLength) String() string {
	return fmt.Sprintf("%s = array_length %s", l.Dst, l.Array)
}

type Branch struct{ Target int }

func (*Branch) isData()                      {}
func (b *Branch) Assigned() (Register, bool) { return Register{}, false }
func (b *Branch) Used() []Register           { return nil }
func (b *Branch) UsedMut() []*Register       { return nil }
func (b *Branch) String() string             { return fmt.Sprintf("branch %d", b.Target) }

// Compare produces a boolean register from a comparison, distinct from
// BranchCondition which fuses the comparison into a branch. Bytecode's
// CompareEqual/.../CompareLessThanOrEqual opcodes push a value rather than
// jumping, so they lower to this instead.
type Compare struct {
	Op       CompareOp
	Type     bytecode.Type
	Dst      Register
	LHS, RHS Register
}

func (*Compare) isData()                      {}
func (c *Compare) Assigned() (Register, bool) { return c.Dst, true }
func (c *Compare) Used() []Register           { return []Register{c.LHS, c.RHS} }
func (c *Compare) UsedMut() []*Register       { return []*Register{&c.LHS, &c.RHS} }
func (c *Compare) String() string {
	return fmt.Sprintf("%s = cmp.%s[%s] %s, %s", c.Dst, c.Op, c.Type, c.LHS, c.RHS)
}

type BranchCondition struct {
	Op       CompareOp
	Type     bytecode.Type
	Target   int
	LHS, RHS Register
}

func (*BranchCondition) isData()                      {}
func (b *BranchCondition) Assigned() (Register, bool) { return Register{}, false }
func (b *BranchCondition) Used() []Register           { return []Register{b.LHS, b.RHS} }
func (b *BranchCondition) UsedMut() []*Register       { return []*Register{&b.LHS, &b.RHS} }
func (b *BranchCondition) String() string {
	return fmt.Sprintf("branch.%s[%s] %d, %s, %s", b.Op, b.Type, b.Target, b.LHS, b.RHS)
}

// Marker is a no-op annotation instruction. Lower never emits one.
type Marker struct{ Label string }

func (*Marker) isData()                      {}
func (m *Marker) Assigned() (Register, bool) { return Register{}, false }
func (m *Marker) Used() []Register           { return nil }
func (m *Marker) UsedMut() []*Register       { return nil }
func (m *Marker) String() string             { return fmt.Sprintf("marker %q", m.Label) }
