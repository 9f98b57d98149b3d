package analysis

import (
	"golang.org/x/exp/slices"

	rverrors "github.com/ravelin-vm/ravelin/internal/errors"
	"github.com/ravelin-vm/ravelin/internal/mir"
)

// ControlFlowGraph is an integer-keyed directed multigraph over block
// indices. Vertices holds only blocks reachable from block 0, sorted
// ascending; Forward and Back are index→index adjacency maps restricted to
// that vertex set, kept in ascending order per entry so iteration order is
// stable across runs (the liveness walk depends on this for reproducible
// interval output).
type ControlFlowGraph struct {
	Vertices []int
	Forward  map[int][]int
	Back     map[int][]int
}

// BuildCFG inspects each block's terminating instruction to derive forward
// edges, then restricts the graph to blocks reachable from block 0 and
// transposes it to get back edges.
func BuildCFG(instructions []*mir.Instruction, blocks []*BasicBlock) (*ControlFlowGraph, error) {
	forwardAll := make(map[int][]int, len(blocks))

	for _, b := range blocks {
		if len(b.Instructions) == 0 {
			continue
		}

		lastIdx := b.Instructions[len(b.Instructions)-1]
		last := instructions[lastIdx]

		switch data := last.Data.(type) {
		case *mir.Branch:
			target := blockIndexOf(blocks, data.Target)
			if target < 0 {
				return nil, rverrors.MissingSuccessor(b.BlockIndex, data.Target)
			}

			forwardAll[b.BlockIndex] = append(forwardAll[b.BlockIndex], target)

		case *mir.BranchCondition:
			target := blockIndexOf(blocks, data.Target)
			if target < 0 {
				return nil, rverrors.MissingSuccessor(b.BlockIndex, data.Target)
			}

			forwardAll[b.BlockIndex] = append(forwardAll[b.BlockIndex], target)

			if b.BlockIndex+1 < len(blocks) {
				forwardAll[b.BlockIndex] = append(forwardAll[b.BlockIndex], b.BlockIndex+1)
			}

		case *mir.Return:
			// no outgoing edges

		default:
			if b.BlockIndex+1 < len(blocks) {
				forwardAll[b.BlockIndex] = append(forwardAll[b.BlockIndex], b.BlockIndex+1)
			}
		}
	}

	reachable := reachableFrom(0, forwardAll, len(blocks))

	cfg := &ControlFlowGraph{
		Vertices: reachable,
		Forward:  make(map[int][]int),
		Back:     make(map[int][]int),
	}

	reachableSet := make(map[int]bool, len(reachable))
	for _, v := range reachable {
		reachableSet[v] = true
	}

	for from, tos := range forwardAll {
		if !reachableSet[from] {
			continue
		}

		for _, to := range tos {
			if !reachableSet[to] {
				continue
			}

			cfg.Forward[from] = insertSorted(cfg.Forward[from], to)
			cfg.Back[to] = insertSorted(cfg.Back[to], from)
		}
	}

	return cfg, nil
}

func reachableFrom(start int, forward map[int][]int, numBlocks int) []int {
	if numBlocks == 0 {
		return nil
	}

	visited := make(map[int]bool)
	stack := []int{start}

	for len(stack) > 0 {
		n := len(stack) - 1
		cur := stack[n]
		stack = stack[:n]

		if visited[cur] {
			continue
		}

		visited[cur] = true

		for _, next := range forward[cur] {
			if !visited[next] {
				stack = append(stack, next)
			}
		}
	}

	out := make([]int, 0, len(visited))
	for v := range visited {
		out = append(out, v)
	}

	slices.Sort(out)

	return out
}

func insertSorted(list []int, v int) []int {
	i, found := slices.BinarySearch(list, v)
	if found {
		return list
	}

	return slices.Insert(list, i, v)
}
