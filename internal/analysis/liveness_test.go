package analysis

import (
	"testing"

	"github.com/ravelin-vm/ravelin/internal/bytecode"
	"github.com/ravelin-vm/ravelin/internal/mir"
)

func findInterval(t *testing.T, intervals []LiveInterval, register mir.Register) LiveInterval {
	t.Helper()

	for _, iv := range intervals {
		if iv.Register == register {
			return iv
		}
	}

	t.Fatalf("no interval computed for register %s", register)

	return LiveInterval{}
}

// TestComputeLivenessStraightLineAccumulator is the spec's straight-line
// accumulator scenario: the running total's register is live across the
// entire function, reused at every step, while the freshly loaded operand's
// register is live only from its own load to its last use.
func TestComputeLivenessStraightLineAccumulator(t *testing.T) {
	acc := reg(0)
	operand := reg(1)

	instructions := []*mir.Instruction{
		{Idx: 0, Data: &mir.LoadInt32{Dst: acc, Value: 1}},
		{Idx: 1, Data: &mir.LoadInt32{Dst: operand, Value: 2}},
		{Idx: 2, Data: &mir.BinOp{Kind: mir.Add, Dst: acc, LHS: acc, RHS: operand}},
		{Idx: 3, Data: &mir.LoadInt32{Dst: operand, Value: 3}},
		{Idx: 4, Data: &mir.BinOp{Kind: mir.Add, Dst: acc, LHS: acc, RHS: operand}},
		{Idx: 5, Data: &mir.LoadInt32{Dst: operand, Value: 4}},
		{Idx: 6, Data: &mir.BinOp{Kind: mir.Add, Dst: acc, LHS: acc, RHS: operand}},
		{Idx: 7, Data: &mir.LoadInt32{Dst: operand, Value: 5}},
		{Idx: 8, Data: &mir.BinOp{Kind: mir.Add, Dst: acc, LHS: acc, RHS: operand}},
		{Idx: 9, Data: &mir.Return{Value: &acc}},
	}

	result := &mir.CompilationResult{Instructions: instructions}
	result.RecomputeOperandSnapshots()

	blocks := Build(instructions)
	cfg, err := BuildCFG(instructions, blocks)
	if err != nil {
		t.Fatalf("BuildCFG: %v", err)
	}

	intervals := ComputeLiveness(result, blocks, cfg)
	if len(intervals) != 2 {
		t.Fatalf("expected 2 intervals, got %d: %+v", len(intervals), intervals)
	}

	accIv := findInterval(t, intervals, acc)
	if accIv.Start != 0 || accIv.End != 9 {
		t.Fatalf("expected accumulator interval [0,9], got [%d,%d]", accIv.Start, accIv.End)
	}

	operandIv := findInterval(t, intervals, operand)
	if operandIv.Start != 1 || operandIv.End != 8 {
		t.Fatalf("expected operand interval [1,8], got [%d,%d]", operandIv.Start, operandIv.End)
	}
}

// TestComputeLivenessLocalUsedOnce is the local-used-once scenario: a local
// that is stored but never reloaded degenerates to a single-point interval
// at its assignment, since it has no use sites at all.
func TestComputeLivenessLocalUsedOnce(t *testing.T) {
	local0 := reg(0)
	stack0 := reg(1)
	stack1 := reg(2)

	instructions := []*mir.Instruction{
		{Idx: 0, Data: &mir.LoadInt32{Dst: stack0, Value: 1}},
		{Idx: 1, Data: &mir.LoadInt32{Dst: stack1, Value: 2}},
		{Idx: 2, Data: &mir.BinOp{Kind: mir.Add, Dst: stack0, LHS: stack0, RHS: stack1}},
		{Idx: 3, Data: &mir.Move{Dst: local0, Src: stack0}},
		{Idx: 4, Data: &mir.LoadInt32{Dst: stack0, Value: 3}},
		{Idx: 5, Data: &mir.Return{Value: &stack0}},
	}

	result := &mir.CompilationResult{
		Instructions: instructions,
		Locals:       []mir.LocalRegister{{Register: local0, Type: bytecode.I32()}},
	}
	result.RecomputeOperandSnapshots()

	blocks := Build(instructions)
	cfg, err := BuildCFG(instructions, blocks)
	if err != nil {
		t.Fatalf("BuildCFG: %v", err)
	}

	intervals := ComputeLiveness(result, blocks, cfg)
	if len(intervals) != 3 {
		t.Fatalf("expected 3 intervals, got %d: %+v", len(intervals), intervals)
	}

	localIv := findInterval(t, intervals, local0)
	if localIv.Start != 3 || localIv.End != 3 {
		t.Fatalf("expected write-only local interval [3,3], got [%d,%d]", localIv.Start, localIv.End)
	}

	stack0Iv := findInterval(t, intervals, stack0)
	if stack0Iv.Start != 0 || stack0Iv.End != 5 {
		t.Fatalf("expected reused register interval [0,5], got [%d,%d]", stack0Iv.Start, stack0Iv.End)
	}

	stack1Iv := findInterval(t, intervals, stack1)
	if stack1Iv.Start != 1 || stack1Iv.End != 2 {
		t.Fatalf("expected single-use register interval [1,2], got [%d,%d]", stack1Iv.Start, stack1Iv.End)
	}
}

// TestComputeLivenessDiamondWithStoreLocal covers a branch that joins back
// through a shared local: each arm stores to the local and the join block
// reloads it, so the local's interval must span from the first store
// reachable on any path to the join's use.
func TestComputeLivenessDiamondWithStoreLocal(t *testing.T) {
	instructions := diamondInstructions()

	result := &mir.CompilationResult{
		Instructions: instructions,
		Locals:       []mir.LocalRegister{{Register: reg(0), Type: bytecode.I32()}},
	}
	result.RecomputeOperandSnapshots()

	blocks := Build(instructions)
	cfg, err := BuildCFG(instructions, blocks)
	if err != nil {
		t.Fatalf("BuildCFG: %v", err)
	}

	intervals := ComputeLiveness(result, blocks, cfg)
	if len(intervals) != 3 {
		t.Fatalf("expected 3 intervals, got %d: %+v", len(intervals), intervals)
	}

	local0Iv := findInterval(t, intervals, reg(0))
	if local0Iv.Start != 4 || local0Iv.End != 8 {
		t.Fatalf("expected local interval [4,8], got [%d,%d]", local0Iv.Start, local0Iv.End)
	}

	r1Iv := findInterval(t, intervals, reg(1))
	if r1Iv.Start != 0 || r1Iv.End != 9 {
		t.Fatalf("expected reused register interval [0,9], got [%d,%d]", r1Iv.Start, r1Iv.End)
	}

	r2Iv := findInterval(t, intervals, reg(2))
	if r2Iv.Start != 1 || r2Iv.End != 2 {
		t.Fatalf("expected comparison operand interval [1,2], got [%d,%d]", r2Iv.Start, r2Iv.End)
	}
}

// TestComputeLivenessWidensManagedReferenceLocal covers the reference-local
// widening rule: a GC-tracked local's interval spans the whole function
// regardless of where it is actually used, and that widening automatically
// covers any Call in between without extra machinery.
func TestComputeLivenessWidensManagedReferenceLocal(t *testing.T) {
	local0 := reg(0)
	length := reg(1)
	arr := reg(2)

	instructions := []*mir.Instruction{
		{Idx: 0, Data: &mir.LoadInt32{Dst: length, Value: 4}},
		{Idx: 1, Data: &mir.NewArray{Element: bytecode.I32(), Dst: arr, Length: length}},
		{Idx: 2, Data: &mir.Move{Dst: local0, Src: arr}},
		{Idx: 3, Data: &mir.Call{Signature: bytecode.FunctionSignature{Name: "safepoint"}}},
		{Idx: 4, Data: &mir.Return{}},
	}

	result := &mir.CompilationResult{
		Instructions: instructions,
		Locals:       []mir.LocalRegister{{Register: local0, Type: bytecode.ArrayOf(bytecode.I32())}},
	}
	result.RecomputeOperandSnapshots()

	blocks := Build(instructions)
	cfg, err := BuildCFG(instructions, blocks)
	if err != nil {
		t.Fatalf("BuildCFG: %v", err)
	}

	intervals := ComputeLiveness(result, blocks, cfg)

	localIv := findInterval(t, intervals, local0)
	if localIv.Start != 0 || localIv.End != len(instructions)-1 {
		t.Fatalf("expected managed-reference local widened to [0,%d], got [%d,%d]", len(instructions)-1, localIv.Start, localIv.End)
	}
}
