package checksrvc

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ls1intum/Artemis-sub011/ciconn"
	"github.com/ls1intum/Artemis-sub011/srvcerror"
	"github.com/ls1intum/Artemis-sub011/vcsconn"
)

func completeSource() SourceExercise {
	return SourceExercise{
		ExerciseID:              uuid.New(),
		ProjectKey:              "ex1",
		TemplateRepositoryURI:   "https://vcs.example.com/ex1/ex1-exercise.git",
		SolutionRepositoryURI:   "https://vcs.example.com/ex1/ex1-solution.git",
		TestRepositoryURI:       "https://vcs.example.com/ex1/ex1-tests.git",
		AuxiliaryRepositoryURIs: []string{"https://vcs.example.com/ex1/ex1-aux.git"},
		TemplatePlanKey:         "EX1-BASE",
		SolutionPlanKey:         "EX1-SOLUTION",
	}
}

func setup(t *testing.T, src SourceExercise) (*CheckSrvc, *vcsconn.InMemConnector, *ciconn.InMemConnector) {
	t.Helper()
	vcs := vcsconn.NewInMemConnector()
	ci := ciconn.NewInMemConnector()

	vcs.AddProject(src.ProjectKey)
	vcs.AddRepository(src.TemplateRepositoryURI, "t")
	vcs.AddRepository(src.SolutionRepositoryURI, "s")
	vcs.AddRepository(src.TestRepositoryURI, "x")
	for _, aux := range src.AuxiliaryRepositoryURIs {
		vcs.AddRepository(aux, "a")
	}
	ci.AddPlan(src.ProjectKey, src.TemplatePlanKey)
	ci.AddPlan(src.ProjectKey, src.SolutionPlanKey)

	return NewCheckSrvc(vcs, ci), vcs, ci
}

func assertFailedWith(t *testing.T, err error, kind SubKind) {
	t.Helper()
	require.Error(t, err)
	var srvcErr *srvcerror.Error
	require.ErrorAs(t, err, &srvcErr)
	assert.Equal(t, ErrCodeConsistencyCheckFailed+":"+string(kind), srvcErr.ErrorCode())
}

func TestCheckConsistencyAllPresent(t *testing.T) {
	src := completeSource()
	srvc, _, _ := setup(t, src)

	assert.NoError(t, srvc.CheckConsistency(context.Background(), src))
}

func TestCheckConsistencyMissingProject(t *testing.T) {
	src := completeSource()
	srvc, _, _ := setup(t, src)
	src.ProjectKey = "gone"

	err := srvc.CheckConsistency(context.Background(), src)
	assertFailedWith(t, err, SubKindVcsProject)
}

func TestCheckConsistencyMissingRepositories(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*SourceExercise)
		kind   SubKind
	}{
		{"template", func(s *SourceExercise) { s.TemplateRepositoryURI = "https://vcs.example.com/gone.git" }, SubKindTemplateRepo},
		{"solution", func(s *SourceExercise) { s.SolutionRepositoryURI = "https://vcs.example.com/gone.git" }, SubKindSolutionRepo},
		{"test", func(s *SourceExercise) { s.TestRepositoryURI = "https://vcs.example.com/gone.git" }, SubKindTestRepo},
		{"auxiliary", func(s *SourceExercise) { s.AuxiliaryRepositoryURIs = []string{"https://vcs.example.com/gone.git"} }, SubKindAuxiliaryRepo},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := completeSource()
			srvc, _, _ := setup(t, src)
			tc.mutate(&src)

			err := srvc.CheckConsistency(context.Background(), src)
			assertFailedWith(t, err, tc.kind)
		})
	}
}

func TestCheckConsistencyMissingBuildPlans(t *testing.T) {
	src := completeSource()
	srvc, _, _ := setup(t, src)
	src.TemplatePlanKey = "EX1-GONE"

	err := srvc.CheckConsistency(context.Background(), src)
	assertFailedWith(t, err, SubKindTemplatePlan)

	src = completeSource()
	srvc, _, _ = setup(t, src)
	src.SolutionPlanKey = "EX1-GONE"

	err = srvc.CheckConsistency(context.Background(), src)
	assertFailedWith(t, err, SubKindSolutionPlan)
}

func TestCheckConsistencyConnectorOutage(t *testing.T) {
	src := completeSource()
	srvc, vcs, _ := setup(t, src)
	vcs.FailingURIs[src.ProjectKey] = true

	err := srvc.CheckConsistency(context.Background(), src)
	require.Error(t, err)
	var srvcErr *srvcerror.Error
	require.ErrorAs(t, err, &srvcErr)
	assert.Equal(t, srvcerror.ErrCodeConnectorUnavailable, srvcErr.ErrorCode())
}
