// Package plandag resolves the dependency graph between an execution
// plan's subtasks: cycle detection, readiness, and level computation
// for sequential or concurrent-within-level execution.
package plandag

import (
	"fmt"

	"github.com/codeready-toolchain/agentrt/pkg/apperrors"
	"github.com/codeready-toolchain/agentrt/pkg/models"
)

// Validate checks a plan's subtask graph is well formed: no dangling
// dependency indices, no self-dependencies, no cycles. Subtask
// dependencies are positions (1-based, matching models.Subtask.Position),
// not database IDs.
func Validate(subtasks []models.Subtask) error {
	byPosition := make(map[int]models.Subtask, len(subtasks))
	for _, st := range subtasks {
		byPosition[st.Position] = st
	}

	for _, st := range subtasks {
		for _, dep := range st.Dependencies {
			if dep == st.Position {
				return &apperrors.PlanError{Reason: fmt.Sprintf("subtask %d depends on itself", st.Position)}
			}
			if _, ok := byPosition[dep]; !ok {
				return &apperrors.DependencyIndexError{Subtask: st.Position, Index: dep}
			}
		}
	}

	if cyclePath, ok := findCycle(subtasks); ok {
		return &apperrors.PlanError{Reason: fmt.Sprintf("dependency cycle detected: %v", cyclePath)}
	}
	return nil
}

// findCycle runs DFS with a recursion stack over the dependency graph
// and returns the first cycle found, as a path of positions.
func findCycle(subtasks []models.Subtask) ([]int, bool) {
	deps := make(map[int][]int, len(subtasks))
	for _, st := range subtasks {
		deps[st.Position] = st.Dependencies
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[int]int, len(subtasks))
	var path []int

	var visit func(n int) ([]int, bool)
	visit = func(n int) ([]int, bool) {
		color[n] = gray
		path = append(path, n)
		for _, d := range deps[n] {
			switch color[d] {
			case gray:
				// found the cycle: slice path from d's first occurrence
				for i, p := range path {
					if p == d {
						return append(append([]int{}, path[i:]...), d), true
					}
				}
				return []int{d, n}, true
			case white:
				if cyc, found := visit(d); found {
					return cyc, true
				}
			}
		}
		path = path[:len(path)-1]
		color[n] = black
		return nil, false
	}

	// iterate in position order for deterministic output
	positions := make([]int, len(subtasks))
	for i, st := range subtasks {
		positions[i] = st.Position
	}
	for _, n := range positions {
		if color[n] == white {
			if cyc, found := visit(n); found {
				return cyc, true
			}
		}
	}
	return nil, false
}

// ReadySet returns the subtasks that are eligible to run right now:
// status pending and every dependency already done.
func ReadySet(subtasks []models.Subtask) []models.Subtask {
	statusByPosition := make(map[int]models.SubtaskStatus, len(subtasks))
	for _, st := range subtasks {
		statusByPosition[st.Position] = st.Status
	}

	var ready []models.Subtask
	for _, st := range subtasks {
		if st.Status != models.SubtaskPending {
			continue
		}
		allDone := true
		for _, dep := range st.Dependencies {
			if statusByPosition[dep] != models.SubtaskDone {
				allDone = false
				break
			}
		}
		if allDone {
			ready = append(ready, st)
		}
	}
	return ready
}

// ExecutionLevels groups subtasks into sequential layers: everything
// in level N depends only on subtasks in levels < N. Within a level,
// order is the order of the input slice (insertion order), giving a
// deterministic execution order for the sequential-by-default runner
// and a stable iteration order for the concurrent mode.
func ExecutionLevels(subtasks []models.Subtask) ([][]models.Subtask, error) {
	if err := Validate(subtasks); err != nil {
		return nil, err
	}

	byPosition := make(map[int]models.Subtask, len(subtasks))
	for _, st := range subtasks {
		byPosition[st.Position] = st
	}

	levelOf := make(map[int]int, len(subtasks))
	var compute func(pos int) int
	compute = func(pos int) int {
		if lvl, ok := levelOf[pos]; ok {
			return lvl
		}
		st := byPosition[pos]
		maxDep := -1
		for _, dep := range st.Dependencies {
			if l := compute(dep); l > maxDep {
				maxDep = l
			}
		}
		lvl := maxDep + 1
		levelOf[pos] = lvl
		return lvl
	}

	maxLevel := -1
	positions := make([]int, len(subtasks))
	for i, st := range subtasks {
		positions[i] = st.Position
	}
	for _, pos := range positions {
		if l := compute(pos); l > maxLevel {
			maxLevel = l
		}
	}

	levels := make([][]models.Subtask, maxLevel+1)
	for _, pos := range positions {
		l := levelOf[pos]
		levels[l] = append(levels[l], byPosition[pos])
	}
	return levels, nil
}
