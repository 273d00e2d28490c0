package saga

import "fmt"

// CycleDetector validates that a dependency relation is acyclic before any
// graph node is materialized.
type CycleDetector interface {
	Detect(deps map[string][]string) error
}

type dfsCycleDetector struct{}

// NewCycleDetector returns a depth-first detector tracking an in-progress set.
func NewCycleDetector() CycleDetector {
	return dfsCycleDetector{}
}

const (
	colorWhite = iota // unvisited
	colorGrey         // on the current DFS path
	colorBlack        // fully explored
)

func (dfsCycleDetector) Detect(deps map[string][]string) error {
	colors := make(map[string]int, len(deps))

	var visit func(id string) error
	visit = func(id string) error {
		switch colors[id] {
		case colorBlack:
			return nil
		case colorGrey:
			return fmt.Errorf("%w: cycle through request %q", ErrCyclicDependency, id)
		}

		colors[id] = colorGrey
		for _, parent := range deps[id] {
			if err := visit(parent); err != nil {
				return err
			}
		}
		colors[id] = colorBlack
		return nil
	}

	for id := range deps {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}
