package pushsrvc

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ls1intum/Artemis-sub011/ciconn"
	"github.com/ls1intum/Artemis-sub011/partsrvc"
	"github.com/ls1intum/Artemis-sub011/srvcerror"
	"github.com/ls1intum/Artemis-sub011/submsrvc"
	"github.com/ls1intum/Artemis-sub011/vcsconn"
)

type fixture struct {
	parts  *partsrvc.ParticipationSrvc
	ledger *submsrvc.LedgerSrvc
	vcs    *vcsconn.InMemConnector
	ci     *ciconn.InMemConnector
	srvc   *PushSrvc

	exerciseID uuid.UUID
	student    *partsrvc.Participation
	solution   *partsrvc.Participation
	testPart   *partsrvc.Participation
}

func setup(t *testing.T, pol partsrvc.ExercisePolicy) *fixture {
	t.Helper()
	ctx := context.Background()

	vcs := vcsconn.NewInMemConnector()
	ci := ciconn.NewInMemConnector()
	parts := partsrvc.NewParticipationSrvc(vcs, ci)
	ledger := submsrvc.NewLedgerSrvc()

	f := &fixture{
		parts:      parts,
		ledger:     ledger,
		vcs:        vcs,
		ci:         ci,
		srvc:       NewPushSrvc(parts, ledger, vcs, ci),
		exerciseID: uuid.New(),
	}

	pol.ExerciseID = f.exerciseID
	if pol.ProjectKey == "" {
		pol.ProjectKey = "ex1"
	}
	if pol.TestRepositoryURI == "" {
		pol.TestRepositoryURI = "https://vcs.example.com/ex1/ex1-tests.git"
	}
	require.NoError(t, parts.StorePolicy(ctx, pol))

	var err error
	f.student, err = parts.Create(ctx, partsrvc.Participation{
		ExerciseID:    f.exerciseID,
		Participant:   "student1",
		Kind:          partsrvc.KindStudent,
		RepositoryURI: "https://vcs.example.com/ex1/ex1-student1.git",
		InitState:     partsrvc.StateInactive,
	})
	require.NoError(t, err)
	f.solution, err = parts.Create(ctx, partsrvc.Participation{
		ExerciseID:    f.exerciseID,
		Kind:          partsrvc.KindSolution,
		RepositoryURI: "https://vcs.example.com/ex1/ex1-solution.git",
		InitState:     partsrvc.StateInitialized,
	})
	require.NoError(t, err)
	f.testPart, err = parts.Create(ctx, partsrvc.Participation{
		ExerciseID:    f.exerciseID,
		Kind:          partsrvc.KindTest,
		RepositoryURI: pol.TestRepositoryURI,
		InitState:     partsrvc.StateInitialized,
	})
	require.NoError(t, err)

	vcs.AddRepository(f.student.RepositoryURI, "headcommit")
	vcs.AddRepository(pol.TestRepositoryURI, "testhead")
	return f
}

func TestHandlePushCreatesManualSubmission(t *testing.T) {
	f := setup(t, partsrvc.ExercisePolicy{})
	ctx := context.Background()

	subm, err := f.srvc.HandlePush(ctx, f.student.ID, PushPayload{CommitHash: "abc123"})
	require.NoError(t, err)
	assert.Equal(t, submsrvc.TypeManual, subm.Type)
	assert.True(t, subm.Submitted)

	// the inactive participation is resumed with a deterministic plan key
	stored, err := f.parts.Get(ctx, f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, partsrvc.StateInitialized, stored.InitState)
	assert.Equal(t, "EX1-STUDENT1", stored.BuildPlanKey)
}

func TestHandlePushReplayReturnsSameSubmission(t *testing.T) {
	f := setup(t, partsrvc.ExercisePolicy{})
	ctx := context.Background()

	first, err := f.srvc.HandlePush(ctx, f.student.ID, PushPayload{CommitHash: "abc123"})
	require.NoError(t, err)
	second, err := f.srvc.HandlePush(ctx, f.student.ID, PushPayload{CommitHash: "abc123"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	subms, err := f.ledger.ListByParticipation(ctx, f.student.ID)
	require.NoError(t, err)
	assert.Len(t, subms, 1)
}

func TestHandlePushBeforeProvisioningIsRejected(t *testing.T) {
	f := setup(t, partsrvc.ExercisePolicy{})
	ctx := context.Background()

	for _, state := range []partsrvc.InitState{
		partsrvc.StateUninitialized,
		partsrvc.StateRepoConfigured,
		partsrvc.StateRepoCopied,
	} {
		p, err := f.parts.Create(ctx, partsrvc.Participation{
			ExerciseID:    f.exerciseID,
			Participant:   "student2",
			Kind:          partsrvc.KindStudent,
			RepositoryURI: "https://vcs.example.com/ex1/ex1-student2.git",
			InitState:     state,
		})
		require.NoError(t, err)

		_, err = f.srvc.HandlePush(ctx, p.ID, PushPayload{CommitHash: "abc123"})
		var srvcErr *srvcerror.Error
		require.ErrorAs(t, err, &srvcErr, "state %s", state)
		assert.Equal(t, partsrvc.ErrCodeParticipationNotInitialized, srvcErr.ErrorCode())

		// redelivery fails identically, no replay path opens up
		_, err = f.srvc.HandlePush(ctx, p.ID, PushPayload{CommitHash: "abc123"})
		require.Error(t, err, "state %s", state)

		stored, err := f.parts.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, state, stored.InitState, "rejection must not advance the state")
		subms, err := f.ledger.ListByParticipation(ctx, p.ID)
		require.NoError(t, err)
		assert.Empty(t, subms, "rejection must not record a submission")
	}
}

func TestHandlePushFetchesHeadWhenPayloadHasNoCommit(t *testing.T) {
	f := setup(t, partsrvc.ExercisePolicy{})

	subm, err := f.srvc.HandlePush(context.Background(), f.student.ID, PushPayload{})
	require.NoError(t, err)
	assert.Equal(t, "headcommit", subm.CommitHash)
}

func TestHandlePushUnknownParticipation(t *testing.T) {
	f := setup(t, partsrvc.ExercisePolicy{})

	_, err := f.srvc.HandlePush(context.Background(), uuid.New(), PushPayload{CommitHash: "abc123"})
	require.Error(t, err)
	var srvcErr *srvcerror.Error
	require.ErrorAs(t, err, &srvcErr)
	assert.Equal(t, partsrvc.ErrCodeParticipationNotFound, srvcErr.ErrorCode())
}

func TestHandlePushAfterDueDateIsIllegal(t *testing.T) {
	due := time.Now().Add(-time.Hour)
	f := setup(t, partsrvc.ExercisePolicy{DueDate: &due})

	subm, err := f.srvc.HandlePush(context.Background(), f.student.ID, PushPayload{
		CommitHash: "abc123",
		Timestamp:  time.Now(),
	})
	require.NoError(t, err, "late pushes are recorded, not rejected")
	assert.Equal(t, submsrvc.TypeIllegal, subm.Type)
}

func TestHandlePushWithinExamGraceStaysManual(t *testing.T) {
	examEnd := time.Now().Add(-2 * time.Minute)
	f := setup(t, partsrvc.ExercisePolicy{
		ExamEnd:     &examEnd,
		GracePeriod: 5 * time.Minute,
	})

	subm, err := f.srvc.HandlePush(context.Background(), f.student.ID, PushPayload{
		CommitHash: "abc123",
		Timestamp:  time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, submsrvc.TypeManual, subm.Type)
}

func TestHandlePushIndividualDueDateOverrides(t *testing.T) {
	due := time.Now().Add(-time.Hour)
	f := setup(t, partsrvc.ExercisePolicy{DueDate: &due})
	ctx := context.Background()

	extension := time.Now().Add(time.Hour)
	f.student.IndividualDueDate = &extension
	require.NoError(t, f.parts.Update(ctx, *f.student))

	subm, err := f.srvc.HandlePush(ctx, f.student.ID, PushPayload{
		CommitHash: "abc123",
		Timestamp:  time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, submsrvc.TypeManual, subm.Type)
}

func TestHandlePushSolutionNeverGoesIllegal(t *testing.T) {
	due := time.Now().Add(-time.Hour)
	f := setup(t, partsrvc.ExercisePolicy{DueDate: &due})

	subm, err := f.srvc.HandlePush(context.Background(), f.solution.ID, PushPayload{
		CommitHash: "sol123",
		Timestamp:  time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, submsrvc.TypeManual, subm.Type)
}

func TestHandlePushIntoTestRepoFansOutToSolution(t *testing.T) {
	f := setup(t, partsrvc.ExercisePolicy{})
	ctx := context.Background()

	subm, err := f.srvc.HandlePush(ctx, f.testPart.ID, PushPayload{CommitHash: "test123"})
	require.NoError(t, err)
	assert.Equal(t, submsrvc.TypeTest, subm.Type)
	assert.Equal(t, f.solution.ID, subm.ParticipationID)

	// the test participation itself gets no ledger entry
	subms, err := f.ledger.ListByParticipation(ctx, f.testPart.ID)
	require.NoError(t, err)
	assert.Empty(t, subms)
}

func TestHandleTestRepoChange(t *testing.T) {
	f := setup(t, partsrvc.ExercisePolicy{})

	subm, err := f.srvc.HandleTestRepoChange(context.Background(), f.exerciseID)
	require.NoError(t, err)
	assert.Equal(t, submsrvc.TypeTest, subm.Type)
	assert.Equal(t, f.solution.ID, subm.ParticipationID)
	assert.Equal(t, "testhead", subm.CommitHash)
}

func TestTriggerInstructorBuild(t *testing.T) {
	f := setup(t, partsrvc.ExercisePolicy{})
	ctx := context.Background()

	// provision the participation via a regular push first
	_, err := f.srvc.HandlePush(ctx, f.student.ID, PushPayload{CommitHash: "abc123"})
	require.NoError(t, err)
	f.vcs.AddRepository(f.student.RepositoryURI, "head456")

	subm, err := f.srvc.TriggerInstructorBuild(ctx, f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, submsrvc.TypeInstructor, subm.Type)
	assert.Equal(t, "head456", subm.CommitHash)

	require.Len(t, f.ci.TriggeredBuilds, 1)
	ref := f.ci.TriggeredBuilds[0]
	assert.Equal(t, "ex1", ref.ProjectKey)
	assert.Equal(t, "EX1-STUDENT1", ref.PlanKey)
	assert.Equal(t, "head456", ref.CommitHash)
}

func TestTriggerInstructorBuildRequiresInitialized(t *testing.T) {
	f := setup(t, partsrvc.ExercisePolicy{})

	// the student fixture starts INACTIVE, no plan key is provisioned
	_, err := f.srvc.TriggerInstructorBuild(context.Background(), f.student.ID)
	require.Error(t, err)
	var srvcErr *srvcerror.Error
	require.ErrorAs(t, err, &srvcErr)
	assert.Equal(t, partsrvc.ErrCodeParticipationNotInitialized, srvcErr.ErrorCode())
	assert.Empty(t, f.ci.TriggeredBuilds)
}

func TestHandleTestRepoChangeIsReplaySafe(t *testing.T) {
	f := setup(t, partsrvc.ExercisePolicy{})
	ctx := context.Background()

	first, err := f.srvc.HandleTestRepoChange(ctx, f.exerciseID)
	require.NoError(t, err)
	second, err := f.srvc.HandleTestRepoChange(ctx, f.exerciseID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}
