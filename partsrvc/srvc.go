package partsrvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ls1intum/Artemis-sub011/ciconn"
	"github.com/ls1intum/Artemis-sub011/logger"
	"github.com/ls1intum/Artemis-sub011/srvcerror"
	"github.com/ls1intum/Artemis-sub011/vcsconn"
)

type partRepo interface {
	Store(ctx context.Context, p Participation) error
	Get(ctx context.Context, id uuid.UUID) (*Participation, error)
	GetByPlanKey(ctx context.Context, planKey string) (*Participation, error)
	ListByExercise(ctx context.Context, exerciseID uuid.UUID) ([]Participation, error)
	ListWithBuildPlan(ctx context.Context) ([]Participation, error)
	Update(ctx context.Context, p Participation) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type policyRepo interface {
	StorePolicy(ctx context.Context, pol ExercisePolicy) error
	GetPolicy(ctx context.Context, exerciseID uuid.UUID) (*ExercisePolicy, error)
	ListPolicies(ctx context.Context) ([]ExercisePolicy, error)
}

// ParticipationSrvc is the authoritative local store of participation state.
// Reconciliation, access control and cleanup all mutate through it.
type ParticipationSrvc struct {
	logger *slog.Logger

	repo     partRepo
	policies policyRepo

	vcs vcsconn.RepositoryConnector
	ci  ciconn.BuildConnector
}

func NewParticipationSrvc(vcs vcsconn.RepositoryConnector, ci ciconn.BuildConnector) *ParticipationSrvc {
	return &ParticipationSrvc{
		logger:   slog.Default().With("module", "partsrvc"),
		repo:     NewInMemRepo(),
		policies: NewInMemPolicyRepo(),
		vcs:      vcs,
		ci:       ci,
	}
}

// NewParticipationSrvcWithRepos wires explicit repositories, e.g. the
// Postgres ones from cmd/server.
func NewParticipationSrvcWithRepos(repo partRepo, policies policyRepo, vcs vcsconn.RepositoryConnector, ci ciconn.BuildConnector) *ParticipationSrvc {
	return &ParticipationSrvc{
		logger:   slog.Default().With("module", "partsrvc"),
		repo:     repo,
		policies: policies,
		vcs:      vcs,
		ci:       ci,
	}
}

func (s *ParticipationSrvc) Create(ctx context.Context, p Participation) (*Participation, error) {
	if p.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, err
		}
		p.ID = id
	}
	if p.InitState == "" {
		p.InitState = StateUninitialized
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if err := s.repo.Store(ctx, p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ParticipationSrvc) Get(ctx context.Context, id uuid.UUID) (*Participation, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrParticipationNotFound()
	}
	return p, nil
}

// GetByPlanKey resolves a CI build notification to its participation. Plan
// keys compare case-insensitively; the CI is not consistent about casing.
func (s *ParticipationSrvc) GetByPlanKey(ctx context.Context, planKey string) (*Participation, error) {
	p, err := s.repo.GetByPlanKey(ctx, strings.ToUpper(planKey))
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrParticipationNotFound()
	}
	return p, nil
}

func (s *ParticipationSrvc) ListByExercise(ctx context.Context, exerciseID uuid.UUID) ([]Participation, error) {
	return s.repo.ListByExercise(ctx, exerciseID)
}

func (s *ParticipationSrvc) ListWithBuildPlan(ctx context.Context) ([]Participation, error) {
	return s.repo.ListWithBuildPlan(ctx)
}

func (s *ParticipationSrvc) Update(ctx context.Context, p Participation) error {
	return s.repo.Update(ctx, p)
}

func (s *ParticipationSrvc) Policy(ctx context.Context, exerciseID uuid.UUID) (*ExercisePolicy, error) {
	pol, err := s.policies.GetPolicy(ctx, exerciseID)
	if err != nil {
		return nil, err
	}
	if pol == nil {
		return nil, fmt.Errorf("no policy for exercise %s", exerciseID)
	}
	return pol, nil
}

func (s *ParticipationSrvc) StorePolicy(ctx context.Context, pol ExercisePolicy) error {
	return s.policies.StorePolicy(ctx, pol)
}

func (s *ParticipationSrvc) ListPolicies(ctx context.Context) ([]ExercisePolicy, error) {
	return s.policies.ListPolicies(ctx)
}

// Advance moves a participation along the forward provisioning chain.
func (s *ParticipationSrvc) Advance(ctx context.Context, id uuid.UUID, to InitState) (*Participation, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := p.transition(to); err != nil {
		return nil, err
	}
	if to == StateInitialized && p.InitializedAt == nil {
		now := time.Now()
		p.InitializedAt = &now
	}
	if err := s.repo.Update(ctx, *p); err != nil {
		return nil, err
	}
	return p, nil
}

// MarkInitialized is the reconciliation path of §push handling: ensure the
// participation is INITIALIZED (resuming from INACTIVE when needed) and set
// its deterministic build plan key.
func (s *ParticipationSrvc) MarkInitialized(ctx context.Context, p *Participation, projectKey string) error {
	if p.InitState != StateInitialized {
		if err := p.transition(StateInitialized); err != nil {
			return err
		}
	}
	if p.InitializedAt == nil {
		now := time.Now()
		p.InitializedAt = &now
	}
	if p.BuildPlanKey == "" && p.HasParticipant() {
		p.BuildPlanKey = BuildPlanKeyFor(projectKey, p.Participant)
	}
	return s.repo.Update(ctx, *p)
}

// MoveToInactive is triggered by a lock or reset event. The build plan key is
// cleared; Resume re-provisions it.
func (s *ParticipationSrvc) MoveToInactive(ctx context.Context, id uuid.UUID) (*Participation, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := p.transition(StateInactive); err != nil {
		return nil, err
	}
	p.BuildPlanKey = ""
	if err := s.repo.Update(ctx, *p); err != nil {
		return nil, err
	}
	return p, nil
}

// Resume reactivates an INACTIVE participation and re-provisions its plan key.
func (s *ParticipationSrvc) Resume(ctx context.Context, id uuid.UUID) (*Participation, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := p.transition(StateInitialized); err != nil {
		return nil, err
	}
	pol, err := s.Policy(ctx, p.ExerciseID)
	if err != nil {
		return nil, err
	}
	if p.HasParticipant() {
		p.BuildPlanKey = BuildPlanKeyFor(pol.ProjectKey, p.Participant)
	}
	if err := s.repo.Update(ctx, *p); err != nil {
		return nil, err
	}
	return p, nil
}

// ClearBuildPlan nulls the plan key after a successful remote plan delete.
func (s *ParticipationSrvc) ClearBuildPlan(ctx context.Context, id uuid.UUID) error {
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	p.BuildPlanKey = ""
	return s.repo.Update(ctx, *p)
}

// Teardown removes the participation record after the connectors confirm
// deletion of the repository and build plan. With force set, connector
// failures are reported but the local record is removed anyway.
func (s *ParticipationSrvc) Teardown(ctx context.Context, id uuid.UUID, force bool) error {
	log := logger.FromContext(ctx)
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	pol, err := s.Policy(ctx, p.ExerciseID)
	if err != nil {
		return err
	}

	var remaining []string
	if p.BuildPlanKey != "" {
		err := s.ci.DeletePlan(ctx, pol.ProjectKey, p.BuildPlanKey)
		if err != nil && !errors.Is(err, ciconn.ErrPlanNotFound) {
			if !force {
				return srvcErrFromConnector("ci", err)
			}
			log.Warn("force teardown: build plan delete failed",
				"participation_id", p.ID, "plan_key", p.BuildPlanKey, "error", err)
			remaining = append(remaining, "build plan "+p.BuildPlanKey)
		}
	}
	if p.RepositoryURI != "" {
		err := s.vcs.DeleteRepository(ctx, pol.ProjectKey, repoSlug(p.RepositoryURI))
		if err != nil && !errors.Is(err, vcsconn.ErrRepositoryNotFound) {
			if !force {
				return srvcErrFromConnector("vcs", err)
			}
			log.Warn("force teardown: repository delete failed",
				"participation_id", p.ID, "uri", p.RepositoryURI, "error", err)
			remaining = append(remaining, "repository "+p.RepositoryURI)
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if len(remaining) > 0 {
		return ErrTeardownIncomplete(strings.Join(remaining, ", "))
	}
	return nil
}

func repoSlug(uri string) string {
	idx := strings.LastIndex(uri, "/")
	if idx < 0 {
		return uri
	}
	return strings.TrimSuffix(uri[idx+1:], ".git")
}

func srvcErrFromConnector(system string, err error) error {
	return srvcerror.ErrConnectorUnavailable(system).SetDebug(err)
}
