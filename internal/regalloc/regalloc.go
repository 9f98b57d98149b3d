// Package regalloc assigns a fixed hardware register file to the live
// intervals computed by internal/analysis, using linear-scan allocation with
// spilling. Register classes (Int, Float) are allocated independently.
package regalloc

import (
	"sort"

	"golang.org/x/exp/slices"

	"github.com/ravelin-vm/ravelin/internal/analysis"
	rverrors "github.com/ravelin-vm/ravelin/internal/errors"
	"github.com/ravelin-vm/ravelin/internal/mir"
)

// Settings is the allocator's only configuration surface: the number of
// hardware slots available per register class.
type Settings struct {
	NumIntRegisters   int
	NumFloatRegisters int
}

func (s Settings) maxFor(class mir.Class) int {
	if class == mir.Float {
		return s.NumFloatRegisters
	}

	return s.NumIntRegisters
}

// Result holds the allocator's output: the interval→slot assignment and the
// intervals that did not fit and were spilled to the frame instead.
type Result struct {
	Assigned map[analysis.LiveInterval]int
	Spilled  []analysis.LiveInterval
}

// NumAllocatedRegisters reports how many intervals received a hardware slot.
func (r *Result) NumAllocatedRegisters() int { return len(r.Assigned) }

// NumSpilledRegisters reports how many intervals were spilled.
func (r *Result) NumSpilledRegisters() int { return len(r.Spilled) }

// freeRegisters tracks, per class, the ascending set of unassigned hardware
// slot numbers. golang.org/x/exp/slices keeps it sorted without a hand-rolled
// balanced tree, mirroring the BTreeSet<u32> the original allocator used for
// the same purpose.
type freeRegisters struct {
	settings Settings
	int      []int
	float    []int
}

func newFreeRegisters(settings Settings) *freeRegisters {
	fr := &freeRegisters{settings: settings}

	for i := 0; i < settings.NumIntRegisters; i++ {
		fr.int = append(fr.int, i)
	}

	for i := 0; i < settings.NumFloatRegisters; i++ {
		fr.float = append(fr.float, i)
	}

	return fr
}

func (fr *freeRegisters) poolFor(class mir.Class) *[]int {
	if class == mir.Float {
		return &fr.float
	}

	return &fr.int
}

func (fr *freeRegisters) take(class mir.Class) int {
	pool := fr.poolFor(class)
	slot := (*pool)[0]
	*pool = slices.Delete(*pool, 0, 1)

	return slot
}

func (fr *freeRegisters) give(class mir.Class, slot int) {
	pool := fr.poolFor(class)
	i, _ := slices.BinarySearch(*pool, slot)
	*pool = slices.Insert(*pool, i, slot)
}

// active holds the set of currently live intervals, ordered by end index
// ascending with ties broken by (start, register identity) so the "last"
// element is deterministic across runs — required for reproducible spill
// selection.
type active struct {
	intervals []analysis.LiveInterval
}

func (a *active) insert(interval analysis.LiveInterval) {
	i := sort.Search(len(a.intervals), func(i int) bool {
		return !activeLess(a.intervals[i], interval)
	})
	a.intervals = append(a.intervals, analysis.LiveInterval{})
	copy(a.intervals[i+1:], a.intervals[i:])
	a.intervals[i] = interval
}

func (a *active) remove(target analysis.LiveInterval) {
	for i, iv := range a.intervals {
		if iv == target {
			a.intervals = append(a.intervals[:i], a.intervals[i+1:]...)
			return
		}
	}
}

func activeLess(a, b analysis.LiveInterval) bool {
	if a.End != b.End {
		return a.End < b.End
	}

	if a.Start != b.Start {
		return a.Start < b.Start
	}

	if a.Register.Class != b.Register.Class {
		return a.Register.Class < b.Register.Class
	}

	return a.Register.Number < b.Register.Number
}

// countClass returns how many currently active intervals share class.
func (a *active) countClass(class mir.Class) int {
	n := 0
	for _, iv := range a.intervals {
		if iv.Register.Class == class {
			n++
		}
	}

	return n
}

// lastOfClass returns the active interval of class with the largest End
// (the last one under the active ordering), the spill candidate.
func (a *active) lastOfClass(class mir.Class) (analysis.LiveInterval, bool) {
	for i := len(a.intervals) - 1; i >= 0; i-- {
		if a.intervals[i].Register.Class == class {
			return a.intervals[i], true
		}
	}

	return analysis.LiveInterval{}, false
}

// Allocate maps intervals to hardware register slots per class, spilling
// whatever does not fit. It never errors for well-formed input; the only
// failure mode is a spill step finding no class-matching active interval,
// which can only happen if class pressure was miscounted — an allocator bug,
// not a recoverable condition.
func Allocate(intervals []analysis.LiveInterval, settings Settings) (*Result, error) {
	sorted := append([]analysis.LiveInterval(nil), intervals...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	result := &Result{Assigned: make(map[analysis.LiveInterval]int)}
	free := newFreeRegisters(settings)
	act := &active{}

	for _, interval := range sorted {
		expireOldIntervals(result, act, free, interval)

		class := interval.Register.Class
		if act.countClass(class) == settings.maxFor(class) {
			if err := spill(result, act, interval); err != nil {
				return nil, err
			}

			continue
		}

		slot := free.take(class)
		result.Assigned[interval] = slot
		act.insert(interval)
	}

	return result, nil
}

func expireOldIntervals(result *Result, act *active, free *freeRegisters, current analysis.LiveInterval) {
	var expired []analysis.LiveInterval

	for _, iv := range act.intervals {
		if iv.End >= current.Start {
			break
		}

		expired = append(expired, iv)
		free.give(iv.Register.Class, result.Assigned[iv])
	}

	for _, iv := range expired {
		act.remove(iv)
	}
}

func spill(result *Result, act *active, current analysis.LiveInterval) error {
	class := current.Register.Class

	// A class with no hardware slots has nothing active to evict; the current
	// interval is then the only spill candidate.
	if act.countClass(class) == 0 {
		result.Spilled = append(result.Spilled, current)

		return nil
	}

	candidate, ok := act.lastOfClass(class)
	if !ok {
		return rverrors.NoSpillCandidate(class.String())
	}

	if candidate.End > current.End {
		result.Assigned[current] = result.Assigned[candidate]
		delete(result.Assigned, candidate)
		result.Spilled = append(result.Spilled, candidate)

		act.remove(candidate)
		act.insert(current)

		return nil
	}

	result.Spilled = append(result.Spilled, current)

	return nil
}
