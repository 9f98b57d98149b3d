// Package pipeline wires the core's stages together end to end: lowering,
// block/CFG construction, peephole fusion, liveness, and linear-scan
// allocation. It is the one place that imposes an order on the otherwise
// independent analysis packages, matching the dataflow in the system
// overview.
package pipeline

import (
	"github.com/ravelin-vm/ravelin/internal/analysis"
	"github.com/ravelin-vm/ravelin/internal/bytecode"
	"github.com/ravelin-vm/ravelin/internal/mir"
	"github.com/ravelin-vm/ravelin/internal/peephole"
	"github.com/ravelin-vm/ravelin/internal/regalloc"
)

// Output is everything produced for the (out-of-scope) emitter: the
// rewritten MIR, its block partition and control-flow graph, the computed
// live intervals, and the final register allocation.
type Output struct {
	Result     *mir.CompilationResult
	Blocks     []*analysis.BasicBlock
	CFG        *analysis.ControlFlowGraph
	Intervals  []analysis.LiveInterval
	Allocation *regalloc.Result
}

// Compile runs one Function through the full core: lower to MIR, partition
// it into blocks, fuse redundant local-loads (which returns blocks rebuilt
// over the compacted MIR), build the CFG and compute liveness over the fused
// MIR, then allocate registers.
//
// Liveness and the CFG are computed only after fusion, not before: fusion can
// delete instructions and renumber the rest (see internal/peephole), and
// liveness indexes instructions by their post-fusion identity.
func Compile(fn *bytecode.Function, binder *bytecode.Binder, settings regalloc.Settings) (*Output, error) {
	result, err := mir.Lower(fn, binder)
	if err != nil {
		return nil, err
	}

	blocks := analysis.Build(result.Instructions)

	blocks = peephole.Fuse(result, blocks)

	cfg, err := analysis.BuildCFG(result.Instructions, blocks)
	if err != nil {
		return nil, err
	}

	intervals := analysis.ComputeLiveness(result, blocks, cfg)

	allocation, err := regalloc.Allocate(intervals, settings)
	if err != nil {
		return nil, err
	}

	return &Output{
		Result:     result,
		Blocks:     blocks,
		CFG:        cfg,
		Intervals:  intervals,
		Allocation: allocation,
	}, nil
}
