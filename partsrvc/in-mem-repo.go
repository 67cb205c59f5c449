package partsrvc

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type inMemRepo struct {
	mu    sync.RWMutex
	parts map[uuid.UUID]Participation
}

func NewInMemRepo() *inMemRepo {
	return &inMemRepo{
		parts: make(map[uuid.UUID]Participation),
	}
}

// Store implements partRepo
func (r *inMemRepo) Store(ctx context.Context, p Participation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parts[p.ID] = p
	return nil
}

// Get implements partRepo
func (r *inMemRepo) Get(ctx context.Context, id uuid.UUID) (*Participation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.parts[id]; ok {
		return &p, nil
	}
	return nil, nil
}

// GetByPlanKey implements partRepo; planKey arrives uppercased.
func (r *inMemRepo) GetByPlanKey(ctx context.Context, planKey string) (*Participation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.parts {
		if p.BuildPlanKey != "" && strings.EqualFold(p.BuildPlanKey, planKey) {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (r *inMemRepo) ListByExercise(ctx context.Context, exerciseID uuid.UUID) ([]Participation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Participation
	for _, p := range r.parts {
		if p.ExerciseID == exerciseID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *inMemRepo) ListWithBuildPlan(ctx context.Context) ([]Participation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Participation
	for _, p := range r.parts {
		if p.BuildPlanKey != "" {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *inMemRepo) Update(ctx context.Context, p Participation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parts[p.ID] = p
	return nil
}

func (r *inMemRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.parts, id)
	return nil
}

type inMemPolicyRepo struct {
	mu       sync.RWMutex
	policies map[uuid.UUID]ExercisePolicy
}

func NewInMemPolicyRepo() *inMemPolicyRepo {
	return &inMemPolicyRepo{
		policies: make(map[uuid.UUID]ExercisePolicy),
	}
}

func (r *inMemPolicyRepo) StorePolicy(ctx context.Context, pol ExercisePolicy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[pol.ExerciseID] = pol
	return nil
}

func (r *inMemPolicyRepo) GetPolicy(ctx context.Context, exerciseID uuid.UUID) (*ExercisePolicy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if pol, ok := r.policies[exerciseID]; ok {
		return &pol, nil
	}
	return nil, nil
}

func (r *inMemPolicyRepo) ListPolicies(ctx context.Context) ([]ExercisePolicy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ExercisePolicy, 0, len(r.policies))
	for _, pol := range r.policies {
		out = append(out, pol)
	}
	return out, nil
}
