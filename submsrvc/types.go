package submsrvc

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionType classifies how a submission came to be. ILLEGAL marks a
// push after the effective due date; it is still recorded and still gets a
// result, but the result stays unrated.
type SubmissionType string

const (
	TypeManual     SubmissionType = "MANUAL"
	TypeInstructor SubmissionType = "INSTRUCTOR"
	TypeTest       SubmissionType = "TEST"
	TypeIllegal    SubmissionType = "ILLEGAL"
)

// Submission is one observed commit for one participation. At most one
// submission exists per (participation, commit hash); that pair is the
// idempotency key for the whole reconciliation core.
type Submission struct {
	ID              uuid.UUID
	ParticipationID uuid.UUID
	ExerciseID      uuid.UUID
	CommitHash      string
	Type            SubmissionType
	Submitted       bool
	SubmittedAt     time.Time
	BuildFailed     bool

	BuildLogLines []string
	BuildLogStats *BuildLogStatistics

	CreatedAt time.Time
}

// Result is one completed CI build outcome. Results accumulate; duplicate CI
// notifications legitimately produce extra results and all are retained.
// The latest result (max completion timestamp, ties broken by arrival
// sequence) is the authoritative one.
type Result struct {
	ID           uuid.UUID
	SubmissionID uuid.UUID
	Score        float64
	Rated        bool
	Successful   bool
	CompletedAt  time.Time
	Assessor     string // empty for automatic results
	Feedback     []Feedback

	// Seq is the arrival order within the ledger, assigned on append.
	Seq int64
}

type Feedback struct {
	Text     string
	Detail   string
	Positive bool
	Credits  float64
}

// BuildLogStatistics is the per-submission timing breakdown extracted from
// build logs.
type BuildLogStatistics struct {
	AgentSetupMillis int64
	TestMillis       int64
	ScaMillis        int64
	TotalMillis      int64
	DependencyCount  int
}

// LatestResult picks the authoritative result out of an accumulated list:
// most recent completion timestamp wins, ties go to the last arrival.
func LatestResult(results []Result) *Result {
	var latest *Result
	for i := range results {
		r := &results[i]
		if latest == nil {
			latest = r
			continue
		}
		if r.CompletedAt.After(latest.CompletedAt) {
			latest = r
		} else if r.CompletedAt.Equal(latest.CompletedAt) && r.Seq > latest.Seq {
			latest = r
		}
	}
	return latest
}
