package partsrvc

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// InitState is the participation lifecycle state. The forward chain is
// UNINITIALIZED -> REPO_CONFIGURED -> REPO_COPIED -> INITIALIZED, with the
// side transition INITIALIZED <-> INACTIVE for lock/reset and resume.
type InitState string

const (
	StateUninitialized  InitState = "UNINITIALIZED"
	StateRepoConfigured InitState = "REPO_CONFIGURED"
	StateRepoCopied     InitState = "REPO_COPIED"
	StateInitialized    InitState = "INITIALIZED"
	StateInactive       InitState = "INACTIVE"
)

// Kind tells whose workspace a participation is. Template, solution and test
// participations belong to the exercise itself, not to a participant.
type Kind string

const (
	KindStudent  Kind = "STUDENT"
	KindTeam     Kind = "TEAM"
	KindTemplate Kind = "TEMPLATE"
	KindSolution Kind = "SOLUTION"
	KindTest     Kind = "TEST"
)

type Participation struct {
	ID          uuid.UUID
	ExerciseID  uuid.UUID
	Participant string // username or team short name; empty for exercise-owned kinds
	Kind        Kind

	RepositoryURI string
	BuildPlanKey  string // empty when no plan is provisioned
	InitState     InitState
	Locked        bool
	PracticeMode  bool

	IndividualDueDate *time.Time
	InitializedAt     *time.Time
	CreatedAt         time.Time
}

func (p *Participation) HasParticipant() bool {
	return p.Participant != ""
}

// ExercisePolicy is the slice of exercise state this core reads. The full
// exercise domain (course, grading, exam setup) lives outside; reconciliation
// only needs deadlines and the CI project key.
type ExercisePolicy struct {
	ExerciseID uuid.UUID
	ProjectKey string

	DueDate     *time.Time
	ExamEnd     *time.Time    // set only for exam exercises
	GracePeriod time.Duration // extra time after exam end during which pushes stay legal

	// BuildAndTestAfterDueDate is a scheduled rebuild of all student
	// submissions. While it lies in the future the build plans must survive
	// cleanup.
	BuildAndTestAfterDueDate *time.Time

	// ActiveUntil is when the owning course or exam window closes. Drives
	// the git cache sweep.
	ActiveUntil *time.Time

	TestRepositoryURI string
}

// EffectiveDueDate is the deadline that decides submission legality:
// the participation's individual override wins, exam exercises use exam end
// plus grace period, otherwise the exercise due date. Nil means no deadline.
func (pol *ExercisePolicy) EffectiveDueDate(p *Participation) *time.Time {
	if p != nil && p.IndividualDueDate != nil {
		return p.IndividualDueDate
	}
	if pol.ExamEnd != nil {
		t := pol.ExamEnd.Add(pol.GracePeriod)
		return &t
	}
	return pol.DueDate
}

// BuildPlanKeyFor derives the CI plan key for a participant
// deterministically from the exercise project key.
func BuildPlanKeyFor(projectKey string, participant string) string {
	return strings.ToUpper(fmt.Sprintf("%s-%s", projectKey, participant))
}
