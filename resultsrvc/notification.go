package resultsrvc

import (
	"strings"
	"time"

	"github.com/ls1intum/Artemis-sub011/partsrvc"
	"github.com/ls1intum/Artemis-sub011/submsrvc"
)

// BuildNotification is the vendor-agnostic shape this core extracts from a
// CI build webhook. The plan key travels separately because it doubles as
// the routing key.
type BuildNotification struct {
	CompletedAt time.Time
	Successful  bool

	// Repos carries per-repository commit lists from the CI's VCS metadata.
	Repos []RepoMeta

	Tests    []TestCaseResult
	LogLines []string

	// Analytics is present when the build agent reported timing data.
	Analytics *submsrvc.BuildLogStatistics
}

type RepoMeta struct {
	Slug    string
	Commits []string // in build order, last one is the built commit
}

type TestCaseResult struct {
	Name       string
	Successful bool
	Message    string
}

// AssignmentCommitHash finds the built commit of the assignment repository:
// the last commit of the repo entry matching the participation's repository,
// with a fallback to the first entry when the CI omits slugs.
func (n *BuildNotification) AssignmentCommitHash(p *partsrvc.Participation) string {
	for _, repo := range n.Repos {
		if repo.Slug != "" && strings.Contains(p.RepositoryURI, repo.Slug) {
			if len(repo.Commits) == 0 {
				return ""
			}
			return repo.Commits[len(repo.Commits)-1]
		}
	}
	for _, repo := range n.Repos {
		if len(repo.Commits) > 0 {
			return repo.Commits[len(repo.Commits)-1]
		}
	}
	return ""
}

// Score is the fraction of passed test cases as a percentage.
func (n *BuildNotification) Score() float64 {
	if len(n.Tests) == 0 {
		return 0
	}
	passed := 0
	for _, t := range n.Tests {
		if t.Successful {
			passed++
		}
	}
	return float64(passed) / float64(len(n.Tests)) * 100
}
