package accesssrvc

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ls1intum/Artemis-sub011/ciconn"
	"github.com/ls1intum/Artemis-sub011/notify"
	"github.com/ls1intum/Artemis-sub011/partsrvc"
	"github.com/ls1intum/Artemis-sub011/vcsconn"
)

type fixture struct {
	parts    *partsrvc.ParticipationSrvc
	vcs      *vcsconn.InMemConnector
	recorder *notify.Recorder
	srvc     *AccessSrvc

	exerciseID uuid.UUID
	students   []*partsrvc.Participation
}

func setup(t *testing.T, studentCount int) *fixture {
	t.Helper()
	ctx := context.Background()

	vcs := vcsconn.NewInMemConnector()
	parts := partsrvc.NewParticipationSrvc(vcs, ciconn.NewInMemConnector())
	recorder := &notify.Recorder{}

	f := &fixture{
		parts:      parts,
		vcs:        vcs,
		recorder:   recorder,
		srvc:       NewAccessSrvc(parts, vcs, recorder),
		exerciseID: uuid.New(),
	}
	require.NoError(t, parts.StorePolicy(ctx, partsrvc.ExercisePolicy{
		ExerciseID: f.exerciseID,
		ProjectKey: "ex1",
	}))

	for i := 0; i < studentCount; i++ {
		name := string(rune('a' + i))
		uri := "https://vcs.example.com/ex1/ex1-" + name + ".git"
		vcs.AddRepository(uri, "head")
		p, err := parts.Create(ctx, partsrvc.Participation{
			ExerciseID:    f.exerciseID,
			Participant:   name,
			Kind:          partsrvc.KindStudent,
			RepositoryURI: uri,
			BuildPlanKey:  partsrvc.BuildPlanKeyFor("ex1", name),
			InitState:     partsrvc.StateInitialized,
		})
		require.NoError(t, err)
		f.students = append(f.students, p)
	}

	// the template participation must never be touched by bulk ops
	_, err := parts.Create(ctx, partsrvc.Participation{
		ExerciseID:    f.exerciseID,
		Kind:          partsrvc.KindTemplate,
		RepositoryURI: "https://vcs.example.com/ex1/ex1-exercise.git",
		InitState:     partsrvc.StateInitialized,
	})
	require.NoError(t, err)
	return f
}

func TestLockAllRevokesWriteAndDeactivates(t *testing.T) {
	f := setup(t, 3)
	ctx := context.Background()

	outcome, err := f.srvc.LockAll(ctx, f.exerciseID)
	require.NoError(t, err)
	assert.Equal(t, 3, outcome.Total)
	assert.True(t, outcome.FullySuccessful())

	for _, s := range f.students {
		assert.Equal(t, vcsconn.PermissionRead, f.vcs.PermissionOf(s.RepositoryURI, s.Participant))
		stored, err := f.parts.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.True(t, stored.Locked)
		assert.Equal(t, partsrvc.StateInactive, stored.InitState)
		assert.Empty(t, stored.BuildPlanKey)
	}
	assert.Len(t, f.vcs.SetPermissionCalls, 3, "template and solution repos stay untouched")
}

func TestLockAllOneFailureDoesNotBlockOthers(t *testing.T) {
	f := setup(t, 3)
	ctx := context.Background()
	f.vcs.FailingURIs[f.students[1].RepositoryURI] = true

	outcome, err := f.srvc.LockAll(ctx, f.exerciseID)
	require.NoError(t, err, "per-repository failures do not fail the bulk operation")
	assert.Equal(t, 3, outcome.Total)
	require.Len(t, outcome.Failed, 1)
	assert.Equal(t, f.students[1].ID, outcome.Failed[0].ParticipationID)

	// the two healthy repositories were still locked
	for _, i := range []int{0, 2} {
		stored, err := f.parts.Get(ctx, f.students[i].ID)
		require.NoError(t, err)
		assert.True(t, stored.Locked)
	}
	failed, err := f.parts.Get(ctx, f.students[1].ID)
	require.NoError(t, err)
	assert.False(t, failed.Locked)
}

func TestBulkOperationSendsExactlyOneNotification(t *testing.T) {
	f := setup(t, 5)
	f.vcs.FailingURIs[f.students[0].RepositoryURI] = true

	outcome, err := f.srvc.LockAll(context.Background(), f.exerciseID)
	require.NoError(t, err)
	assert.False(t, outcome.FullySuccessful())

	require.Len(t, f.recorder.Messages, 1, "one aggregated notification, not one per participation")
	msg := f.recorder.Messages[0]
	assert.Equal(t, notify.KindBulkOutcome, msg.Kind)
	assert.Equal(t, f.exerciseID, msg.ExerciseID)
}

func TestUnlockAllRestoresWriteAndResumes(t *testing.T) {
	f := setup(t, 2)
	ctx := context.Background()

	_, err := f.srvc.LockAll(ctx, f.exerciseID)
	require.NoError(t, err)
	outcome, err := f.srvc.UnlockAll(ctx, f.exerciseID)
	require.NoError(t, err)
	assert.True(t, outcome.FullySuccessful())

	for _, s := range f.students {
		assert.Equal(t, vcsconn.PermissionWrite, f.vcs.PermissionOf(s.RepositoryURI, s.Participant))
		stored, err := f.parts.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.False(t, stored.Locked)
		assert.Equal(t, partsrvc.StateInitialized, stored.InitState)
		assert.Equal(t, partsrvc.BuildPlanKeyFor("ex1", s.Participant), stored.BuildPlanKey)
	}
}

func TestUnlockAllSkipsMissingParticipants(t *testing.T) {
	f := setup(t, 2)
	ctx := context.Background()
	f.vcs.MissingParticipants[f.students[0].Participant] = true

	outcome, err := f.srvc.UnlockAll(ctx, f.exerciseID)
	require.NoError(t, err)
	assert.True(t, outcome.FullySuccessful(), "vanished participants are skipped, not failed")

	stored, err := f.parts.Get(ctx, f.students[0].ID)
	require.NoError(t, err)
	assert.False(t, stored.Locked)
}

func TestBulkOperationEmptyExercise(t *testing.T) {
	f := setup(t, 0)

	outcome, err := f.srvc.LockAll(context.Background(), f.exerciseID)
	require.NoError(t, err)
	assert.Equal(t, 0, outcome.Total)
	assert.True(t, outcome.FullySuccessful())
	assert.Len(t, f.recorder.Messages, 1)
}
