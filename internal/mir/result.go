package mir

import "github.com/ravelin-vm/ravelin/internal/bytecode"

// LocalRegister binds a source-local slot to the virtual register that holds
// its current value and the local's static type.
type LocalRegister struct {
	Register Register
	Type     bytecode.Type
}

// CompilationResult is the output of lowering: a flat MIR instruction stream
// plus the metadata the rest of the core needs without re-deriving it from
// bytecode. InstructionsOperands[i] is a snapshot of Instructions[i].Used() at
// the moment the snapshot was taken; the peephole pass recomputes it after
// rewriting (spec §4.D). The liveness pass does not read it: it calls
// Used/Assigned on each instruction directly.
type CompilationResult struct {
	Instructions         []*Instruction
	Locals               []LocalRegister
	InstructionsOperands [][]Register
	ArgumentRegisters    []Register
}

// RecomputeOperandSnapshots rebuilds InstructionsOperands from the current
// Instructions, in index order. Call this after any pass rewrites operands in
// place (e.g. the peephole fusion pass) so later passes see a consistent view.
func (r *CompilationResult) RecomputeOperandSnapshots() {
	r.InstructionsOperands = make([][]Register, len(r.Instructions))

	for i, instr := range r.Instructions {
		r.InstructionsOperands[i] = append([]Register(nil), instr.Used()...)
	}
}

// LocalOf reports the LocalRegister bound to reg, if reg is a local (as
// opposed to a purely temporary virtual register introduced by lowering).
func (r *CompilationResult) LocalOf(reg Register) (LocalRegister, bool) {
	for _, l := range r.Locals {
		if l.Register == reg {
			return l, true
		}
	}

	return LocalRegister{}, false
}
