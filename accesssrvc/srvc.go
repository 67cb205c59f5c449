// Package accesssrvc performs bulk lock/unlock of repository write access
// for all student and team participations of an exercise. The operation is
// best effort: every participation gets its own attempt, failures are
// collected, and exactly one aggregated notification goes to the
// instructors.
package accesssrvc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/ls1intum/Artemis-sub011/logger"
	"github.com/ls1intum/Artemis-sub011/notify"
	"github.com/ls1intum/Artemis-sub011/partsrvc"
	"github.com/ls1intum/Artemis-sub011/vcsconn"
	"golang.org/x/sync/semaphore"
)

type BulkFailure struct {
	ParticipationID uuid.UUID `json:"participation_id"`
	Error           string    `json:"error"`
}

type BulkOutcome struct {
	Operation  string        `json:"operation"` // "lock_all" or "unlock_all"
	ExerciseID uuid.UUID     `json:"exercise_id"`
	Total      int           `json:"total"`
	Failed     []BulkFailure `json:"failed,omitempty"`
}

func (o *BulkOutcome) FullySuccessful() bool {
	return len(o.Failed) == 0
}

type AccessSrvc struct {
	logger *slog.Logger

	parts    *partsrvc.ParticipationSrvc
	vcs      vcsconn.RepositoryConnector
	notifier notify.Notifier

	maxConcurrent int64
	perOpTimeout  time.Duration
}

func NewAccessSrvc(parts *partsrvc.ParticipationSrvc, vcs vcsconn.RepositoryConnector, notifier notify.Notifier) *AccessSrvc {
	return &AccessSrvc{
		logger:        slog.Default().With("module", "accesssrvc"),
		parts:         parts,
		vcs:           vcs,
		notifier:      notifier,
		maxConcurrent: 10,
		perOpTimeout:  30 * time.Second,
	}
}

// LockAll revokes write access on every student/team repository of the
// exercise and moves the participations to INACTIVE. One failed repository
// never blocks or rolls back the others.
func (s *AccessSrvc) LockAll(ctx context.Context, exerciseID uuid.UUID) (*BulkOutcome, error) {
	return s.bulk(ctx, exerciseID, "lock_all", s.lockOne)
}

// UnlockAll restores write access and resumes INACTIVE participations.
// Participants missing from the identity system are logged and skipped.
func (s *AccessSrvc) UnlockAll(ctx context.Context, exerciseID uuid.UUID) (*BulkOutcome, error) {
	return s.bulk(ctx, exerciseID, "unlock_all", s.unlockOne)
}

func (s *AccessSrvc) bulk(ctx context.Context, exerciseID uuid.UUID, operation string, op func(context.Context, partsrvc.Participation) error) (*BulkOutcome, error) {
	parts, err := s.parts.ListByExercise(ctx, exerciseID)
	if err != nil {
		return nil, err
	}

	var targets []partsrvc.Participation
	for _, p := range parts {
		if p.Kind == partsrvc.KindStudent || p.Kind == partsrvc.KindTeam {
			targets = append(targets, p)
		}
	}

	sem := semaphore.NewWeighted(s.maxConcurrent)
	type failure struct {
		id  uuid.UUID
		err error
	}
	failures := make(chan failure, len(targets))

	for _, p := range targets {
		if err := sem.Acquire(ctx, 1); err != nil {
			failures <- failure{id: p.ID, err: err}
			continue
		}
		p := p
		go func() {
			defer sem.Release(1)
			opCtx, cancel := context.WithTimeout(ctx, s.perOpTimeout)
			defer cancel()
			if err := op(opCtx, p); err != nil {
				failures <- failure{id: p.ID, err: err}
			}
		}()
	}

	// wait for all in-flight ops
	if err := sem.Acquire(context.Background(), s.maxConcurrent); err != nil {
		return nil, err
	}
	sem.Release(s.maxConcurrent)
	close(failures)

	outcome := &BulkOutcome{
		Operation:  operation,
		ExerciseID: exerciseID,
		Total:      len(targets),
	}
	var collected error
	for f := range failures {
		outcome.Failed = append(outcome.Failed, BulkFailure{
			ParticipationID: f.id,
			Error:           f.err.Error(),
		})
		collected = multierror.Append(collected, f.err)
	}
	if collected != nil {
		s.logger.Warn("bulk operation finished with failures",
			"operation", operation, "exercise_id", exerciseID,
			"failed", len(outcome.Failed), "total", outcome.Total,
			"errors", collected)
	}

	// exactly one aggregated notification, success or not
	s.notifier.Notify(notify.Message{
		Kind:       notify.KindBulkOutcome,
		ExerciseID: exerciseID,
		Payload:    outcome,
	})
	return outcome, nil
}

func (s *AccessSrvc) lockOne(ctx context.Context, p partsrvc.Participation) error {
	if p.HasParticipant() {
		err := s.vcs.SetPermissions(ctx, p.RepositoryURI, p.Participant, vcsconn.PermissionRead)
		if err != nil {
			return err
		}
	}
	p.Locked = true
	if err := s.parts.Update(ctx, p); err != nil {
		return err
	}
	if p.InitState == partsrvc.StateInitialized {
		if _, err := s.parts.MoveToInactive(ctx, p.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *AccessSrvc) unlockOne(ctx context.Context, p partsrvc.Participation) error {
	log := logger.FromContext(ctx)
	if p.HasParticipant() {
		err := s.vcs.SetPermissions(ctx, p.RepositoryURI, p.Participant, vcsconn.PermissionWrite)
		if errors.Is(err, vcsconn.ErrParticipantNotFound) {
			log.Warn("participant no longer exists in identity system, skipping",
				"participation_id", p.ID, "participant", p.Participant)
		} else if err != nil {
			return err
		}
	}
	p.Locked = false
	if err := s.parts.Update(ctx, p); err != nil {
		return err
	}
	if p.InitState == partsrvc.StateInactive {
		if _, err := s.parts.Resume(ctx, p.ID); err != nil {
			return err
		}
	}
	return nil
}
