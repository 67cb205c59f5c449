// Package pushsrvc consumes VCS push notifications and turns them into
// submissions. Delivery is at-least-once and unordered; everything here is
// written to be replay-safe.
package pushsrvc

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ls1intum/Artemis-sub011/ciconn"
	"github.com/ls1intum/Artemis-sub011/logger"
	"github.com/ls1intum/Artemis-sub011/partsrvc"
	"github.com/ls1intum/Artemis-sub011/srvcerror"
	"github.com/ls1intum/Artemis-sub011/submsrvc"
	"github.com/ls1intum/Artemis-sub011/vcsconn"
)

// PushPayload is what this core extracts from the vendor webhook body. The
// commit hash may be absent; it is then fetched from the VCS.
type PushPayload struct {
	CommitHash string
	Timestamp  time.Time // zero means "now"
	Author     string
}

type PushSrvc struct {
	logger *slog.Logger

	parts  *partsrvc.ParticipationSrvc
	ledger *submsrvc.LedgerSrvc
	vcs    vcsconn.RepositoryConnector
	ci     ciconn.BuildConnector
}

func NewPushSrvc(parts *partsrvc.ParticipationSrvc, ledger *submsrvc.LedgerSrvc, vcs vcsconn.RepositoryConnector, ci ciconn.BuildConnector) *PushSrvc {
	return &PushSrvc{
		logger: slog.Default().With("module", "pushsrvc"),
		parts:  parts,
		ledger: ledger,
		vcs:    vcs,
		ci:     ci,
	}
}

// HandlePush processes one push notification for one participation.
//
// Replayed deliveries of the same commit return the already stored
// submission unchanged. A push into the test repository fans out to the
// solution participation. Pushes after the effective due date are recorded
// as ILLEGAL; they still get built and get a result, just unrated.
//
// A push while workspace setup is still in progress (REPO_COPIED or earlier)
// is rejected without any state change; INACTIVE participations are resumed.
func (s *PushSrvc) HandlePush(ctx context.Context, participationID uuid.UUID, payload PushPayload) (*submsrvc.Submission, error) {
	log := logger.FromContext(ctx)

	p, err := s.parts.Get(ctx, participationID)
	if err != nil {
		return nil, err
	}
	if !p.IsInitialized() && p.InitState != partsrvc.StateInactive {
		log.Warn("push before workspace setup finished",
			"participation_id", p.ID, "state", p.InitState)
		return nil, partsrvc.ErrParticipationNotInitialized(p.InitState)
	}

	commitHash := payload.CommitHash
	if commitHash == "" {
		commitHash, err = s.vcs.GetLastCommitHash(ctx, p.RepositoryURI)
		if err != nil {
			return nil, srvcerror.ErrConnectorUnavailable("vcs").SetDebug(err)
		}
	}

	ts := payload.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	if p.Kind == partsrvc.KindTest {
		return s.fanOutTestPush(ctx, p, commitHash, ts)
	}

	pol, err := s.parts.Policy(ctx, p.ExerciseID)
	if err != nil {
		return nil, err
	}

	submType := s.classify(p, pol, ts)
	if submType == submsrvc.TypeIllegal {
		log.Warn("push after effective due date, recording illegal submission",
			"participation_id", p.ID, "commit_hash", commitHash)
	}

	subm, created, err := s.ledger.FindOrCreate(ctx, submsrvc.Submission{
		ParticipationID: p.ID,
		ExerciseID:      p.ExerciseID,
		CommitHash:      commitHash,
		Type:            submType,
		Submitted:       true,
		SubmittedAt:     ts,
	})
	if err != nil {
		return nil, err
	}
	if !created {
		return subm, nil
	}

	if err := s.parts.MarkInitialized(ctx, p, pol.ProjectKey); err != nil {
		return nil, err
	}
	return subm, nil
}

// fanOutTestPush handles a push into the exercise's test repository: one
// TEST submission for the solution participation only. Template and student
// builds follow from the CI's own test-repo build, not from ledger entries.
func (s *PushSrvc) fanOutTestPush(ctx context.Context, testPart *partsrvc.Participation, commitHash string, ts time.Time) (*submsrvc.Submission, error) {
	solution, err := s.solutionParticipation(ctx, testPart.ExerciseID)
	if err != nil {
		return nil, err
	}
	subm, _, err := s.ledger.FindOrCreate(ctx, submsrvc.Submission{
		ParticipationID: solution.ID,
		ExerciseID:      solution.ExerciseID,
		CommitHash:      commitHash,
		Type:            submsrvc.TypeTest,
		Submitted:       true,
		SubmittedAt:     ts,
	})
	return subm, err
}

// HandleTestRepoChange is the test-cases-changed webhook: the exercise's
// test repository moved, so the solution participation gets a TEST
// submission at the new head.
func (s *PushSrvc) HandleTestRepoChange(ctx context.Context, exerciseID uuid.UUID) (*submsrvc.Submission, error) {
	pol, err := s.parts.Policy(ctx, exerciseID)
	if err != nil {
		return nil, err
	}
	commitHash, err := s.vcs.GetLastCommitHash(ctx, pol.TestRepositoryURI)
	if err != nil {
		return nil, srvcerror.ErrConnectorUnavailable("vcs").SetDebug(err)
	}
	solution, err := s.solutionParticipation(ctx, exerciseID)
	if err != nil {
		return nil, err
	}
	subm, _, err := s.ledger.FindOrCreate(ctx, submsrvc.Submission{
		ParticipationID: solution.ID,
		ExerciseID:      exerciseID,
		CommitHash:      commitHash,
		Type:            submsrvc.TypeTest,
		Submitted:       true,
		SubmittedAt:     time.Now(),
	})
	return subm, err
}

// TriggerInstructorBuild rebuilds the head commit of a participation on
// instructor request. The participation must be fully provisioned; the
// submission is recorded as INSTRUCTOR and the build is kicked off on the CI.
func (s *PushSrvc) TriggerInstructorBuild(ctx context.Context, participationID uuid.UUID) (*submsrvc.Submission, error) {
	log := logger.FromContext(ctx)

	p, err := s.parts.Get(ctx, participationID)
	if err != nil {
		return nil, err
	}
	if !p.IsInitialized() {
		log.Warn("instructor build requested before setup finished",
			"participation_id", p.ID, "state", p.InitState)
		return nil, partsrvc.ErrParticipationNotInitialized(p.InitState)
	}
	pol, err := s.parts.Policy(ctx, p.ExerciseID)
	if err != nil {
		return nil, err
	}
	commitHash, err := s.vcs.GetLastCommitHash(ctx, p.RepositoryURI)
	if err != nil {
		return nil, srvcerror.ErrConnectorUnavailable("vcs").SetDebug(err)
	}

	subm, _, err := s.ledger.FindOrCreate(ctx, submsrvc.Submission{
		ParticipationID: p.ID,
		ExerciseID:      p.ExerciseID,
		CommitHash:      commitHash,
		Type:            submsrvc.TypeInstructor,
		Submitted:       true,
		SubmittedAt:     time.Now(),
	})
	if err != nil {
		return nil, err
	}

	err = s.ci.TriggerBuild(ctx, ciconn.BuildRef{
		ProjectKey:    pol.ProjectKey,
		PlanKey:       p.BuildPlanKey,
		RepositoryURI: p.RepositoryURI,
		CommitHash:    commitHash,
	})
	if err != nil {
		return nil, srvcerror.ErrConnectorUnavailable("ci").SetDebug(err)
	}
	return subm, nil
}

func (s *PushSrvc) solutionParticipation(ctx context.Context, exerciseID uuid.UUID) (*partsrvc.Participation, error) {
	parts, err := s.parts.ListByExercise(ctx, exerciseID)
	if err != nil {
		return nil, err
	}
	for i := range parts {
		if parts[i].Kind == partsrvc.KindSolution {
			return &parts[i], nil
		}
	}
	return nil, partsrvc.ErrParticipationNotFound()
}

// classify implements the submission typing rules. Only student and team
// workspaces can go illegal; exercise-owned participations (template,
// solution) always submit manually.
func (s *PushSrvc) classify(p *partsrvc.Participation, pol *partsrvc.ExercisePolicy, ts time.Time) submsrvc.SubmissionType {
	if p.Kind != partsrvc.KindStudent && p.Kind != partsrvc.KindTeam {
		return submsrvc.TypeManual
	}
	due := pol.EffectiveDueDate(p)
	if due != nil && ts.After(*due) {
		return submsrvc.TypeIllegal
	}
	return submsrvc.TypeManual
}
