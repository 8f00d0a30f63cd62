package scheduler

import (
	"fmt"

	"github.com/printeer-go/printeer/internal/errs"
)

// buildGraph validates that every dependency id refers to an expanded
// job and that the dependency graph is acyclic.
func buildGraph(jobs []expandedJob) (dependents map[string][]string, err error) {
	ids := make(map[string]bool, len(jobs))
	for _, j := range jobs {
		ids[j.ID] = true
	}

	dependents = make(map[string][]string)
	for _, j := range jobs {
		for _, dep := range j.Dependencies {
			if !ids[dep] {
				return nil, fmt.Errorf("job %s depends on unknown job %s", j.ID, dep)
			}
			dependents[dep] = append(dependents[dep], j.ID)
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(jobs))
	byID := make(map[string]expandedJob, len(jobs))
	for _, j := range jobs {
		byID[j.ID] = j
	}

	var visit func(id string) error
	visit = func(id string) error {
		switch color[id] {
		case gray:
			return errs.NewCycleDetectedError(nil)
		case black:
			return nil
		}
		color[id] = gray
		for _, dep := range byID[id].Dependencies {
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[id] = black
		return nil
	}

	for _, j := range jobs {
		if err := visit(j.ID); err != nil {
			return nil, err
		}
	}

	return dependents, nil
}
