package pagemodel

import (
	"fmt"

	"github.com/antzucaro/matchr"
)

const hintThreshold = 0.85

// closestName returns the candidate most similar to name, or "" when nothing is close
// enough to be a likely typo.
func closestName(name string, candidates []string) string {
	target := identity(name)
	best := ""
	bestScore := 0.0
	for _, c := range candidates {
		id := identity(c)
		if id == target {
			continue
		}
		score := matchr.JaroWinkler(target, id, false)
		if score >= hintThreshold && score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

func withHint(err error, name string, candidates []string) error {
	if hint := closestName(name, candidates); hint != "" {
		return fmt.Errorf("%w (did you mean %q?)", err, hint)
	}
	return err
}
