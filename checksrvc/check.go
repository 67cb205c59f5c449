// Package checksrvc validates, before an exercise copy or import commits,
// that everything the source exercise references still exists on the VCS and
// CI side. It runs synchronously inside the import workflow; the first
// failure aborts the whole import so partial copies are never left behind.
package checksrvc

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/ls1intum/Artemis-sub011/ciconn"
	"github.com/ls1intum/Artemis-sub011/srvcerror"
	"github.com/ls1intum/Artemis-sub011/vcsconn"
)

// SourceExercise describes what an import reads from the source side.
type SourceExercise struct {
	ExerciseID uuid.UUID
	ProjectKey string

	TemplateRepositoryURI   string
	SolutionRepositoryURI   string
	TestRepositoryURI       string
	AuxiliaryRepositoryURIs []string

	TemplatePlanKey string
	SolutionPlanKey string
}

type CheckSrvc struct {
	logger *slog.Logger
	vcs    vcsconn.RepositoryConnector
	ci     ciconn.BuildConnector
}

func NewCheckSrvc(vcs vcsconn.RepositoryConnector, ci ciconn.BuildConnector) *CheckSrvc {
	return &CheckSrvc{
		logger: slog.Default().With("module", "checksrvc"),
		vcs:    vcs,
		ci:     ci,
	}
}

// CheckConsistency verifies the VCS project, all repositories and both build
// plans of the source exercise. It returns nil when everything is reachable.
func (s *CheckSrvc) CheckConsistency(ctx context.Context, src SourceExercise) error {
	ok, err := s.vcs.ProjectExists(ctx, src.ProjectKey)
	if err != nil {
		return srvcerror.ErrConnectorUnavailable("vcs").SetDebug(err)
	}
	if !ok {
		return ErrConsistencyCheckFailed(SubKindVcsProject, src.ProjectKey)
	}

	repoChecks := []struct {
		uri  string
		kind SubKind
	}{
		{src.TemplateRepositoryURI, SubKindTemplateRepo},
		{src.SolutionRepositoryURI, SubKindSolutionRepo},
		{src.TestRepositoryURI, SubKindTestRepo},
	}
	for _, aux := range src.AuxiliaryRepositoryURIs {
		repoChecks = append(repoChecks, struct {
			uri  string
			kind SubKind
		}{aux, SubKindAuxiliaryRepo})
	}
	for _, check := range repoChecks {
		ok, err := s.vcs.RepositoryExists(ctx, check.uri)
		if err != nil {
			return srvcerror.ErrConnectorUnavailable("vcs").SetDebug(err)
		}
		if !ok {
			return ErrConsistencyCheckFailed(check.kind, check.uri)
		}
	}

	planChecks := []struct {
		planKey string
		kind    SubKind
	}{
		{src.TemplatePlanKey, SubKindTemplatePlan},
		{src.SolutionPlanKey, SubKindSolutionPlan},
	}
	for _, check := range planChecks {
		ok, err := s.ci.CheckPlanExists(ctx, src.ProjectKey, check.planKey)
		if err != nil {
			return srvcerror.ErrConnectorUnavailable("ci").SetDebug(err)
		}
		if !ok {
			return ErrConsistencyCheckFailed(check.kind, check.planKey)
		}
	}
	return nil
}
