package analysis

import (
	"reflect"
	"testing"

	"github.com/ravelin-vm/ravelin/internal/mir"
)

// diamondInstructions builds the MIR for a diamond-shaped function: branch on
// a comparison, two mutually exclusive arms each storing to the same local,
// then a shared join block that reloads and returns it. Grounded on the
// branch-with-StoreLocal scenario.
func diamondInstructions() []*mir.Instruction {
	local0 := reg(0)
	r1 := reg(1)
	r2 := reg(2)

	return []*mir.Instruction{
		{Idx: 0, Data: &mir.LoadInt32{Dst: r1, Value: 1}},
		{Idx: 1, Data: &mir.LoadInt32{Dst: r2, Value: 2}},
		{Idx: 2, Data: &mir.BranchCondition{Op: mir.CmpNotEqual, LHS: r1, RHS: r2, Target: 6}},
		{Idx: 3, Data: &mir.LoadInt32{Dst: r1, Value: 1337}},
		{Idx: 4, Data: &mir.Move{Dst: local0, Src: r1}},
		{Idx: 5, Data: &mir.Branch{Target: 8}},
		{Idx: 6, Data: &mir.LoadInt32{Dst: r1, Value: 4711}},
		{Idx: 7, Data: &mir.Move{Dst: local0, Src: r1}},
		{Idx: 8, Data: &mir.Move{Dst: r1, Src: local0}},
		{Idx: 9, Data: &mir.Return{Value: &r1}},
	}
}

func TestBuildCFGDiamond(t *testing.T) {
	instructions := diamondInstructions()
	blocks := Build(instructions)

	if len(blocks) != 4 {
		t.Fatalf("expected 4 blocks, got %d", len(blocks))
	}

	cfg, err := BuildCFG(instructions, blocks)
	if err != nil {
		t.Fatalf("BuildCFG: %v", err)
	}

	if !reflect.DeepEqual(cfg.Vertices, []int{0, 1, 2, 3}) {
		t.Fatalf("expected all 4 blocks reachable, got %v", cfg.Vertices)
	}

	if !reflect.DeepEqual(cfg.Forward[0], []int{1, 2}) {
		t.Fatalf("expected block 0 to branch to both arms [1 2], got %v", cfg.Forward[0])
	}

	if !reflect.DeepEqual(cfg.Forward[1], []int{3}) {
		t.Fatalf("expected block 1 to join at block 3, got %v", cfg.Forward[1])
	}

	if !reflect.DeepEqual(cfg.Forward[2], []int{3}) {
		t.Fatalf("expected block 2 to fall through to the join block 3, got %v", cfg.Forward[2])
	}

	if len(cfg.Forward[3]) != 0 {
		t.Fatalf("expected the join block to have no successors (it ends in Return), got %v", cfg.Forward[3])
	}

	if !reflect.DeepEqual(cfg.Back[3], []int{1, 2}) {
		t.Fatalf("expected the join block's predecessors to be [1 2], got %v", cfg.Back[3])
	}
}

func TestBuildCFGMissingSuccessorErrors(t *testing.T) {
	// Build() always inserts a boundary at a Branch's own target, so a
	// mismatched successor can only arise from a block list that was not
	// produced by Build() over these same instructions — exactly the
	// invariant violation BuildCFG is meant to catch. A single block whose
	// only instruction branches to an offset no block starts at reproduces
	// that without indexing past the instruction slice.
	instructions := []*mir.Instruction{
		{Idx: 0, Data: &mir.Branch{Target: 2}},
	}

	blocks := []*BasicBlock{{BlockIndex: 0, StartOffset: 0, Instructions: []int{0}}}

	if _, err := BuildCFG(instructions, blocks); err == nil {
		t.Fatal("expected an error for a branch target with no corresponding block")
	}
}
