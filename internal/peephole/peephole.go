// Package peephole implements local-load fusion: the only peephole cleanup
// this core performs. The MIR compiler emits a fresh temporary and a Move for
// every LoadLocal; this pass folds that temporary into its sole consumer
// within the same block when no intervening store invalidates it.
package peephole

import (
	"github.com/ravelin-vm/ravelin/internal/analysis"
	"github.com/ravelin-vm/ravelin/internal/mir"
)

type pendingEntry struct {
	local      mir.Register
	definingID int
}

// Fuse rewrites result and blocks in place, then returns a fresh block
// partition over the compacted instruction list. The original instruction
// indices produced by lowering are not preserved across Fuse: fused
// instructions are dropped and the survivors are renumbered 0..M-1 so that
// every later pass can keep treating Instruction.Idx as a direct position in
// Instructions (see DESIGN.md for why this departs from a gapped-index
// scheme). Branch and BranchCondition targets are remapped to match.
func Fuse(result *mir.CompilationResult, blocks []*analysis.BasicBlock) []*analysis.BasicBlock {
	localRegs := make(map[mir.Register]bool, len(result.Locals))
	for _, l := range result.Locals {
		localRegs[l.Register] = true
	}

	removed := make(map[int]bool)

	for _, block := range blocks {
		fuseBlock(result, localRegs, block, removed)
	}

	survivorsOldOrder := analysis.Linearize(blocks)

	oldToNew := make(map[int]int, len(survivorsOldOrder))
	newInstructions := make([]*mir.Instruction, 0, len(survivorsOldOrder))

	for newIdx, oldIdx := range survivorsOldOrder {
		instr := result.Instructions[oldIdx]
		oldToNew[instr.Idx] = newIdx
		instr.Idx = newIdx
		newInstructions = append(newInstructions, instr)
	}

	retarget := func(oldTarget int) int {
		if newTarget, ok := oldToNew[oldTarget]; ok {
			return newTarget
		}

		// The literal target instruction was itself fused away (it was a
		// redundant local-load at the top of its block); resume at the next
		// surviving instruction, which still starts the same block.
		best := len(newInstructions)
		for old, nw := range oldToNew {
			if old >= oldTarget && nw < best {
				best = nw
			}
		}

		return best
	}

	for _, instr := range newInstructions {
		switch data := instr.Data.(type) {
		case *mir.Branch:
			data.Target = retarget(data.Target)
		case *mir.BranchCondition:
			data.Target = retarget(data.Target)
		}
	}

	result.Instructions = newInstructions
	result.RecomputeOperandSnapshots()

	return analysis.Build(result.Instructions)
}

// fuseBlock applies steps 1-4 of the fusion algorithm to one block, recording
// instructions to delete in removed (keyed by their pre-renumbering Idx) and
// filtering block.Instructions down to the survivors.
func fuseBlock(result *mir.CompilationResult, localRegs map[mir.Register]bool, block *analysis.BasicBlock, removed map[int]bool) {
	pending := make(map[mir.Register]pendingEntry)

	for _, idx := range block.Instructions {
		instr := result.Instructions[idx]

		switch data := instr.Data.(type) {
		case *mir.Move:
			switch {
			case localRegs[data.Src]:
				// Step 1: a local loaded into a fresh temp. Record it; don't
				// remove yet, it may never be fused.
				pending[data.Dst] = pendingEntry{local: data.Src, definingID: instr.Idx}
			case localRegs[data.Dst]:
				// Step 2: a store to a local invalidates any pending fusion
				// of that local's prior value. pending is keyed by the
				// temporary register a load produced, not by the local
				// itself, so invalidation has to scan for entries whose
				// local matches — deleting pending[data.Dst] directly would
				// never hit anything, since a local register is never a
				// pending key.
				for tmp, entry := range pending {
					if entry.local == data.Dst {
						delete(pending, tmp)
					}
				}
			default:
				rewriteOperands(instr, pending, removed)
			}
		default:
			rewriteOperands(instr, pending, removed)
		}

		// Step 4: every register this instruction reads, after any rewrite
		// above, is now consumed and can no longer be fused into a later use.
		for _, used := range instr.Used() {
			delete(pending, used)
		}
	}

	kept := block.Instructions[:0:0]
	for _, idx := range block.Instructions {
		if !removed[idx] {
			kept = append(kept, idx)
		}
	}

	block.Instructions = kept
}

// rewriteOperands is step 3: for each operand reading a pending temp,
// rewrite it to the fused local and mark the temp's defining Move for
// deletion.
func rewriteOperands(instr *mir.Instruction, pending map[mir.Register]pendingEntry, removed map[int]bool) {
	for _, opPtr := range instr.UsedMut() {
		tmp := *opPtr

		entry, ok := pending[tmp]
		if !ok {
			continue
		}

		*opPtr = entry.local
		removed[entry.definingID] = true
		delete(pending, tmp)
	}
}
