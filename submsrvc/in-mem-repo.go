package submsrvc

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type inMemRepo struct {
	mu       sync.RWMutex
	subms    map[uuid.UUID]Submission
	byCommit map[string]uuid.UUID // participation|commit -> submission id
	results  map[uuid.UUID][]Result
	seq      int64
}

func NewInMemRepo() *inMemRepo {
	return &inMemRepo{
		subms:    make(map[uuid.UUID]Submission),
		byCommit: make(map[string]uuid.UUID),
		results:  make(map[uuid.UUID][]Result),
	}
}

// InsertIfAbsent implements submRepo
func (r *inMemRepo) InsertIfAbsent(ctx context.Context, subm Submission) (*Submission, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := subm.ParticipationID.String() + "|" + subm.CommitHash
	if id, ok := r.byCommit[key]; ok {
		existing := r.subms[id]
		return &existing, false, nil
	}
	r.subms[subm.ID] = subm
	r.byCommit[key] = subm.ID
	return &subm, true, nil
}

// Get implements submRepo
func (r *inMemRepo) Get(ctx context.Context, id uuid.UUID) (*Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if subm, ok := r.subms[id]; ok {
		return &subm, nil
	}
	return nil, nil
}

func (r *inMemRepo) GetByCommit(ctx context.Context, participationID uuid.UUID, commitHash string) (*Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := r.byCommit[participationID.String()+"|"+commitHash]; ok {
		subm := r.subms[id]
		return &subm, nil
	}
	return nil, nil
}

func (r *inMemRepo) ListByParticipation(ctx context.Context, participationID uuid.UUID) ([]Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Submission
	for _, subm := range r.subms {
		if subm.ParticipationID == participationID {
			out = append(out, subm)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out, nil
}

func (r *inMemRepo) ListByExercise(ctx context.Context, exerciseID uuid.UUID) ([]Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Submission
	for _, subm := range r.subms {
		if subm.ExerciseID == exerciseID {
			out = append(out, subm)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out, nil
}

func (r *inMemRepo) Update(ctx context.Context, subm Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subms[subm.ID] = subm
	return nil
}

// AppendResult implements submRepo; the arrival sequence is assigned here.
func (r *inMemRepo) AppendResult(ctx context.Context, res Result) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	res.Seq = r.seq
	r.results[res.SubmissionID] = append(r.results[res.SubmissionID], res)
	return res, nil
}

func (r *inMemRepo) ListResults(ctx context.Context, submissionID uuid.UUID) ([]Result, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	results := r.results[submissionID]
	out := make([]Result, len(results))
	copy(out, results)
	return out, nil
}

func (r *inMemRepo) LatestResultForParticipation(ctx context.Context, participationID uuid.UUID) (*Result, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []Result
	for _, subm := range r.subms {
		if subm.ParticipationID != participationID {
			continue
		}
		all = append(all, r.results[subm.ID]...)
	}
	return LatestResult(all), nil
}
