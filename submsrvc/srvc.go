package submsrvc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type submRepo interface {
	// InsertIfAbsent stores subm unless a submission with the same
	// (participation, commit hash) pair already exists. It returns the
	// stored or pre-existing submission and whether an insert happened.
	InsertIfAbsent(ctx context.Context, subm Submission) (*Submission, bool, error)
	Get(ctx context.Context, id uuid.UUID) (*Submission, error)
	GetByCommit(ctx context.Context, participationID uuid.UUID, commitHash string) (*Submission, error)
	ListByParticipation(ctx context.Context, participationID uuid.UUID) ([]Submission, error)
	ListByExercise(ctx context.Context, exerciseID uuid.UUID) ([]Submission, error)
	Update(ctx context.Context, subm Submission) error

	AppendResult(ctx context.Context, res Result) (Result, error)
	ListResults(ctx context.Context, submissionID uuid.UUID) ([]Result, error)
	LatestResultForParticipation(ctx context.Context, participationID uuid.UUID) (*Result, error)
}

// LedgerSrvc is the submission ledger: the append-mostly record of
// submissions and their accumulated results.
type LedgerSrvc struct {
	logger *slog.Logger
	repo   submRepo
	keys   *keyLock
}

func NewLedgerSrvc() *LedgerSrvc {
	return &LedgerSrvc{
		logger: slog.Default().With("module", "submsrvc"),
		repo:   NewInMemRepo(),
		keys:   newKeyLock(),
	}
}

func NewLedgerSrvcWithRepo(repo submRepo) *LedgerSrvc {
	return &LedgerSrvc{
		logger: slog.Default().With("module", "submsrvc"),
		repo:   repo,
		keys:   newKeyLock(),
	}
}

func submKey(participationID uuid.UUID, commitHash string) string {
	return participationID.String() + "|" + commitHash
}

// FindOrCreate is the single entry point through which submissions come into
// existence. It runs under the per-(participation, commit) lock, so the
// duplicate webhook delivery and the concurrent push/result race both
// collapse into one submission. The returned bool is true when the
// submission was created by this call.
func (s *LedgerSrvc) FindOrCreate(ctx context.Context, subm Submission) (*Submission, bool, error) {
	if subm.CommitHash == "" {
		return nil, false, ErrCommitHashMissing()
	}
	key := submKey(subm.ParticipationID, subm.CommitHash)
	s.keys.Lock(key)
	defer s.keys.Unlock(key)

	if subm.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, false, err
		}
		subm.ID = id
	}
	if subm.CreatedAt.IsZero() {
		subm.CreatedAt = time.Now()
	}
	if subm.SubmittedAt.IsZero() {
		subm.SubmittedAt = time.Now()
	}

	stored, created, err := s.repo.InsertIfAbsent(ctx, subm)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert submission: %w", err)
	}
	if !created {
		s.logger.Info("idempotent replay, submission already exists",
			"participation_id", subm.ParticipationID,
			"commit_hash", subm.CommitHash,
			"submission_id", stored.ID)
	}
	return stored, created, nil
}

func (s *LedgerSrvc) Get(ctx context.Context, id uuid.UUID) (*Submission, error) {
	subm, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if subm == nil {
		return nil, ErrSubmissionNotFound()
	}
	return subm, nil
}

func (s *LedgerSrvc) GetByCommit(ctx context.Context, participationID uuid.UUID, commitHash string) (*Submission, error) {
	return s.repo.GetByCommit(ctx, participationID, commitHash)
}

func (s *LedgerSrvc) ListByParticipation(ctx context.Context, participationID uuid.UUID) ([]Submission, error) {
	return s.repo.ListByParticipation(ctx, participationID)
}

// AttachBuildOutcome records what the build produced alongside the
// submission: log lines, timing statistics and the build-failed flag.
// Submissions are otherwise immutable after creation. A redelivered
// notification replaces the log lines rather than duplicating them.
func (s *LedgerSrvc) AttachBuildOutcome(ctx context.Context, submissionID uuid.UUID, logLines []string, stats *BuildLogStatistics, buildFailed bool) error {
	subm, err := s.Get(ctx, submissionID)
	if err != nil {
		return err
	}
	if len(logLines) > 0 {
		subm.BuildLogLines = logLines
	}
	if stats != nil {
		subm.BuildLogStats = stats
	}
	subm.BuildFailed = buildFailed
	return s.repo.Update(ctx, *subm)
}

// AppendResult adds one more result to a submission. Results are never
// deduplicated; the repo assigns the arrival sequence.
func (s *LedgerSrvc) AppendResult(ctx context.Context, res Result) (*Result, error) {
	if res.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, err
		}
		res.ID = id
	}
	stored, err := s.repo.AppendResult(ctx, res)
	if err != nil {
		return nil, fmt.Errorf("failed to append result: %w", err)
	}
	return &stored, nil
}

func (s *LedgerSrvc) Results(ctx context.Context, submissionID uuid.UUID) ([]Result, error) {
	return s.repo.ListResults(ctx, submissionID)
}

// Latest returns the authoritative result of a submission, or nil if none.
func (s *LedgerSrvc) Latest(ctx context.Context, submissionID uuid.UUID) (*Result, error) {
	results, err := s.repo.ListResults(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	return LatestResult(results), nil
}

// LatestForParticipation returns the freshest result over all of a
// participation's submissions. The cleanup sweep bases retention on it.
func (s *LedgerSrvc) LatestForParticipation(ctx context.Context, participationID uuid.UUID) (*Result, error) {
	return s.repo.LatestResultForParticipation(ctx, participationID)
}

// AverageBuildLogStats aggregates build-log statistics over an exercise.
// Submissions without statistics do not contribute.
func (s *LedgerSrvc) AverageBuildLogStats(ctx context.Context, exerciseID uuid.UUID) (*BuildLogStatistics, error) {
	subms, err := s.repo.ListByExercise(ctx, exerciseID)
	if err != nil {
		return nil, err
	}
	var sum BuildLogStatistics
	n := 0
	for _, subm := range subms {
		if subm.BuildLogStats == nil {
			continue
		}
		sum.AgentSetupMillis += subm.BuildLogStats.AgentSetupMillis
		sum.TestMillis += subm.BuildLogStats.TestMillis
		sum.ScaMillis += subm.BuildLogStats.ScaMillis
		sum.TotalMillis += subm.BuildLogStats.TotalMillis
		sum.DependencyCount += subm.BuildLogStats.DependencyCount
		n++
	}
	if n == 0 {
		return nil, nil
	}
	return &BuildLogStatistics{
		AgentSetupMillis: sum.AgentSetupMillis / int64(n),
		TestMillis:       sum.TestMillis / int64(n),
		ScaMillis:        sum.ScaMillis / int64(n),
		TotalMillis:      sum.TotalMillis / int64(n),
		DependencyCount:  sum.DependencyCount / n,
	}, nil
}
