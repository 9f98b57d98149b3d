// Package analysis partitions a lowered MIR program into basic blocks, builds
// the control-flow graph over them, and computes per-register live intervals.
// It consumes github.com/ravelin-vm/ravelin/internal/mir's CompilationResult
// and never mutates it; the peephole package is the only one that rewrites
// MIR, and it rebuilds blocks afterward through the same Build entry point.
package analysis

import (
	"golang.org/x/exp/slices"

	"github.com/ravelin-vm/ravelin/internal/mir"
)

// BasicBlock is a maximal single-entry straight-line run of MIR instructions.
// Instructions is the ordered list of MIR indices the block owns; Build sets
// StartOffset to Instructions[0]. peephole.Fuse filters the Instructions of
// the blocks it is given without updating their StartOffset.
type BasicBlock struct {
	BlockIndex   int
	StartOffset  int
	Instructions []int
}

// Build partitions a linear MIR instruction stream into basic blocks. A block
// boundary falls immediately before any branch target and immediately after
// any branch (conditional or unconditional); block 0 always starts at
// instruction 0.
func Build(instructions []*mir.Instruction) []*BasicBlock {
	if len(instructions) == 0 {
		return nil
	}

	boundaries := map[int]bool{0: true}

	for i, instr := range instructions {
		switch data := instr.Data.(type) {
		case *mir.Branch:
			boundaries[data.Target] = true
			if i+1 < len(instructions) {
				boundaries[i+1] = true
			}
		case *mir.BranchCondition:
			boundaries[data.Target] = true
			if i+1 < len(instructions) {
				boundaries[i+1] = true
			}
		}
	}

	starts := make([]int, 0, len(boundaries))
	for b := range boundaries {
		starts = append(starts, b)
	}

	slices.Sort(starts)

	blocks := make([]*BasicBlock, 0, len(starts))

	for bi, start := range starts {
		end := len(instructions)
		if bi+1 < len(starts) {
			end = starts[bi+1]
		}

		idxs := make([]int, 0, end-start)
		for i := start; i < end; i++ {
			idxs = append(idxs, i)
		}

		blocks = append(blocks, &BasicBlock{BlockIndex: bi, StartOffset: start, Instructions: idxs})
	}

	return blocks
}

// Linearize returns the union of each block's instruction indices in block
// order. After a peephole rewrite this is the ground truth for which MIR
// indices survive.
func Linearize(blocks []*BasicBlock) []int {
	var out []int
	for _, b := range blocks {
		out = append(out, b.Instructions...)
	}

	return out
}

// blockIndexOf returns the index, within blocks, of the block whose
// StartOffset equals target, or -1 if none starts there.
func blockIndexOf(blocks []*BasicBlock, target int) int {
	for _, b := range blocks {
		if b.StartOffset == target {
			return b.BlockIndex
		}
	}

	return -1
}
