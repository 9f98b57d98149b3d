package analysis

import (
	"github.com/ravelin-vm/ravelin/internal/mir"
)

// LiveInterval is the smallest contiguous MIR index range covering every
// point at which register holds a needed value. The range is conservative:
// it may include indices where the register is not strictly needed, but it
// never excludes one where it is.
type LiveInterval struct {
	Register mir.Register
	Start    int
	End      int
}

type usageSite struct {
	blockIndex int
	offset     int
	index      int // the instruction's own MIR index (instr.Idx), not block.StartOffset+offset
}

// ComputeLiveness computes one interval per distinct virtual register
// mentioned in any reachable block of result's instructions, per blocks and
// cfg. Managed-reference locals have their interval widened to
// [0, len(result.Instructions)-1] regardless of where they are actually used,
// so the allocator reserves a slot for the whole function (GC root
// correctness). A reference-typed temporary that spans a Call is already
// covered without extra machinery: a live interval is one contiguous range,
// so any Call between its start and end falls inside it automatically.
func ComputeLiveness(result *mir.CompilationResult, blocks []*BasicBlock, cfg *ControlFlowGraph) []LiveInterval {
	instructions := result.Instructions

	localRefs := make(map[mir.Register]bool)
	for _, l := range result.Locals {
		if l.Type.IsReference() {
			localRefs[l.Register] = true
		}
	}

	registers := virtualRegisters(instructions, blocks, cfg)
	useSites, assignSites := registerUsage(instructions, blocks, cfg)

	intervals := make([]LiveInterval, 0, len(registers))

	for _, reg := range registers {
		aliveAt := make(map[int]bool)

		if sites, ok := useSites[reg]; ok {
			for _, site := range sites {
				visited := make(map[int]bool)
				computeLivenessForRegisterInBlock(instructions, blocks, cfg, site.blockIndex, site.offset, visited, reg, aliveAt)
			}
		} else {
			// Write-only register: still needs an interval, anchored at its
			// assignment points.
			for _, site := range assignSites[reg] {
				aliveAt[site.index] = true
			}
		}

		if localRefs[reg] {
			for i := 0; i < len(instructions); i++ {
				aliveAt[i] = true
			}
		}

		intervals = append(intervals, liveIntervalFrom(reg, aliveAt))
	}

	return intervals
}

func liveIntervalFrom(reg mir.Register, aliveAt map[int]bool) LiveInterval {
	start := -1
	end := -1

	for idx := range aliveAt {
		if start == -1 || idx < start {
			start = idx
		}

		if idx > end {
			end = idx
		}
	}

	return LiveInterval{Register: reg, Start: start, End: end}
}

func virtualRegisters(instructions []*mir.Instruction, blocks []*BasicBlock, cfg *ControlFlowGraph) []mir.Register {
	seen := make(map[mir.Register]bool)
	var ordered []mir.Register

	add := func(r mir.Register) {
		if !seen[r] {
			seen[r] = true
			ordered = append(ordered, r)
		}
	}

	for _, blockIndex := range cfg.Vertices {
		for _, idx := range blocks[blockIndex].Instructions {
			instr := instructions[idx]

			if assigned, ok := instr.Assigned(); ok {
				add(assigned)
			}

			for _, used := range instr.Used() {
				add(used)
			}
		}
	}

	sortRegisters(ordered)

	return ordered
}

func sortRegisters(regs []mir.Register) {
	for i := 1; i < len(regs); i++ {
		for j := i; j > 0 && registerLess(regs[j], regs[j-1]); j-- {
			regs[j], regs[j-1] = regs[j-1], regs[j]
		}
	}
}

func registerLess(a, b mir.Register) bool {
	if a.Class != b.Class {
		return a.Class < b.Class
	}

	return a.Number < b.Number
}

func registerUsage(instructions []*mir.Instruction, blocks []*BasicBlock, cfg *ControlFlowGraph) (map[mir.Register][]usageSite, map[mir.Register][]usageSite) {
	useSites := make(map[mir.Register][]usageSite)
	assignSites := make(map[mir.Register][]usageSite)

	for _, blockIndex := range cfg.Vertices {
		block := blocks[blockIndex]

		for offset, idx := range block.Instructions {
			instr := instructions[idx]

			if assigned, ok := instr.Assigned(); ok {
				assignSites[assigned] = append(assignSites[assigned], usageSite{blockIndex, offset, instr.Idx})
			}

			for _, used := range instr.Used() {
				useSites[used] = append(useSites[used], usageSite{blockIndex, offset, instr.Idx})
			}
		}
	}

	return useSites, assignSites
}

// computeLivenessForRegisterInBlock walks backward from (blockIndex, offset)
// looking for the instruction that defines register without also using it
// (its true origin on this path). If no such definition is found before the
// top of the block, the walk continues into every predecessor along the
// CFG's back edges. visited is shared across the whole walk rooted at one use
// site so a join point is not revisited, but is never shared across
// different use sites or registers — sharing it would collapse interval
// widths at merges.
func computeLivenessForRegisterInBlock(
	instructions []*mir.Instruction,
	blocks []*BasicBlock,
	cfg *ControlFlowGraph,
	blockIndex int,
	offset int,
	visited map[int]bool,
	register mir.Register,
	aliveAt map[int]bool,
) {
	if visited[blockIndex] {
		return
	}

	visited[blockIndex] = true

	block := blocks[blockIndex]
	terminated := false

	for i := offset; i >= 0; i-- {
		instr := instructions[block.Instructions[i]]

		assigned, hasAssign := instr.Assigned()
		if hasAssign && assigned == register && !usesRegister(instr.Used(), register) {
			aliveAt[instr.Idx] = true
			terminated = true

			break
		}

		aliveAt[instr.Idx] = true
	}

	if terminated {
		return
	}

	for _, pred := range cfg.Back[blockIndex] {
		predBlock := blocks[pred]
		computeLivenessForRegisterInBlock(instructions, blocks, cfg, pred, len(predBlock.Instructions)-1, visited, register, aliveAt)
	}
}

func usesRegister(used []mir.Register, register mir.Register) bool {
	for _, u := range used {
		if u == register {
			return true
		}
	}

	return false
}
