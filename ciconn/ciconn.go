// Package ciconn is the thin adapter in front of the continuous integration
// system. Build plans are addressed by (project key, plan key).
package ciconn

import (
	"context"
	"errors"
)

var (
	// ErrPlanNotFound means the build plan does not exist on the CI side.
	ErrPlanNotFound = errors.New("build plan not found")
	// ErrUnavailable is a transient transport or server failure.
	ErrUnavailable = errors.New("ci unavailable")
)

// BuildRef identifies what to build for one participation.
type BuildRef struct {
	ProjectKey    string
	PlanKey       string
	RepositoryURI string
	CommitHash    string
}

type BuildConnector interface {
	TriggerBuild(ctx context.Context, ref BuildRef) error
	CheckPlanExists(ctx context.Context, projectKey string, planKey string) (bool, error)
	DeletePlan(ctx context.Context, projectKey string, planKey string) error
	DeleteProject(ctx context.Context, projectKey string) error
}
