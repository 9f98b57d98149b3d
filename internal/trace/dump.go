// Package trace renders MIR, blocks, intervals and allocations for debugging
// and test-failure output. It performs no logic of its own; it exists purely
// so a developer staring at a failing scenario can print the pipeline's
// intermediate state instead of guessing at it.
package trace

import (
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"

	"github.com/ravelin-vm/ravelin/internal/analysis"
	"github.com/ravelin-vm/ravelin/internal/mir"
	"github.com/ravelin-vm/ravelin/internal/regalloc"
)

var config = spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, DisableCapacities: true}

// Instructions renders a MIR instruction stream one line per instruction.
func Instructions(instructions []*mir.Instruction) string {
	var b strings.Builder

	for _, instr := range instructions {
		fmt.Fprintln(&b, instr.String())
	}

	return b.String()
}

// Blocks renders a basic-block partition via go-spew, which recurses through
// BasicBlock's exported fields without any hand-written formatting code.
func Blocks(blocks []*analysis.BasicBlock) string {
	return config.Sdump(blocks)
}

// Intervals renders a set of live intervals via go-spew.
func Intervals(intervals []analysis.LiveInterval) string {
	return config.Sdump(intervals)
}

// Allocation renders an allocator Result via go-spew.
func Allocation(result *regalloc.Result) string {
	return config.Sdump(result)
}
