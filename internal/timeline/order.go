// Package timeline turns a requirement set into a dated, dependency-ordered task list.
package timeline

import (
	"fmt"

	"github.com/fastygo/exportflow/domain"
)

type mark uint8

const (
	unvisited mark = iota
	onPath
	done
)

// Order returns reqs so that every requirement comes after all of its prerequisites.
// Ties keep input order. A cycle is an error; no partial ordering is returned.
func Order(reqs []domain.Requirement) ([]domain.Requirement, error) {
	index := make(map[string]int, len(reqs))
	for i, r := range reqs {
		if r.ID == "" {
			return nil, domain.WrapError(domain.ErrCodeInvalid, domain.ErrInvalidPayload.Message,
				fmt.Errorf("requirement %d has no id", i))
		}
		if _, dup := index[r.ID]; dup {
			return nil, domain.WrapError(domain.ErrCodeInvalid, domain.ErrDuplicateRequirement.Message,
				fmt.Errorf("requirement %s", r.ID))
		}
		index[r.ID] = i
	}
	for _, r := range reqs {
		for _, p := range r.PrerequisiteIDs {
			if _, ok := index[p]; !ok {
				return nil, domain.WrapError(domain.ErrCodeInvalid, domain.ErrUnknownPrerequisite.Message,
					fmt.Errorf("%s requires %s", r.ID, p))
			}
		}
	}

	o := orderer{
		reqs:    reqs,
		index:   index,
		marks:   make([]mark, len(reqs)),
		ordered: make([]domain.Requirement, 0, len(reqs)),
	}
	for i := range reqs {
		if err := o.visit(i); err != nil {
			return nil, err
		}
	}
	return o.ordered, nil
}

type orderer struct {
	reqs    []domain.Requirement
	index   map[string]int
	marks   []mark
	path    []string
	ordered []domain.Requirement
}

func (o *orderer) visit(i int) error {
	id := o.reqs[i].ID
	switch o.marks[i] {
	case done:
		return nil
	case onPath:
		return domain.CycleDetected(o.cycleFrom(id))
	}

	o.marks[i] = onPath
	o.path = append(o.path, id)
	for _, p := range o.reqs[i].PrerequisiteIDs {
		if err := o.visit(o.index[p]); err != nil {
			return err
		}
	}
	o.path = o.path[:len(o.path)-1]
	o.marks[i] = done
	o.ordered = append(o.ordered, o.reqs[i])
	return nil
}

// cycleFrom returns the path segment starting at id, closed with id again.
func (o *orderer) cycleFrom(id string) []string {
	start := 0
	for i, p := range o.path {
		if p == id {
			start = i
			break
		}
	}
	cycle := make([]string, 0, len(o.path)-start+1)
	cycle = append(cycle, o.path[start:]...)
	return append(cycle, id)
}
