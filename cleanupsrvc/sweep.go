// Package cleanupsrvc runs the two periodic reclamation sweeps: deleting CI
// build plans that are no longer needed, and pruning locally cached git
// clones for closed courses and exams. Both sweeps act on a snapshot of
// candidates and tolerate per-item failures; whatever fails is retried
// naturally on the next run.
package cleanupsrvc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ls1intum/Artemis-sub011/ciconn"
	"github.com/ls1intum/Artemis-sub011/conf"
	"github.com/ls1intum/Artemis-sub011/partsrvc"
	"github.com/ls1intum/Artemis-sub011/submsrvc"
	"github.com/ls1intum/Artemis-sub011/vcsconn"
)

type SweepReport struct {
	Examined int
	Deleted  int
	Failed   int
	Skipped  int
}

type Scheduler struct {
	logger *slog.Logger

	parts  *partsrvc.ParticipationSrvc
	ledger *submsrvc.LedgerSrvc
	ci     ciconn.BuildConnector
	vcs    vcsconn.RepositoryConnector

	policy conf.CleanupPolicy
	now    func() time.Time
}

func NewScheduler(parts *partsrvc.ParticipationSrvc, ledger *submsrvc.LedgerSrvc, ci ciconn.BuildConnector, vcs vcsconn.RepositoryConnector, policy conf.CleanupPolicy) *Scheduler {
	return &Scheduler{
		logger: slog.Default().With("module", "cleanupsrvc"),
		parts:  parts,
		ledger: ledger,
		ci:     ci,
		vcs:    vcs,
		policy: policy,
		now:    time.Now,
	}
}

// Run starts both sweeps on their configured intervals and blocks until ctx
// is done. The sweeps are independent and may overlap with each other and
// with live reconciliation traffic.
func (s *Scheduler) Run(ctx context.Context) {
	planTicker := time.NewTicker(time.Duration(s.policy.BuildPlanSweepIntervalMinutes) * time.Minute)
	gitTicker := time.NewTicker(time.Duration(s.policy.GitCacheSweepIntervalMinutes) * time.Minute)
	defer planTicker.Stop()
	defer gitTicker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-gitTicker.C:
				s.SweepGitCache(ctx)
			}
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case <-planTicker.C:
			s.SweepBuildPlans(ctx)
		}
	}
}

// SweepBuildPlans deletes build plans whose latest result is old enough.
// The plan key is nulled locally only after the remote delete succeeded, so
// a failed delete is simply retried by a later sweep.
func (s *Scheduler) SweepBuildPlans(ctx context.Context) SweepReport {
	report := SweepReport{}

	// snapshot of candidate ids; the table keeps mutating underneath
	candidates, err := s.parts.ListWithBuildPlan(ctx)
	if err != nil {
		s.logger.Error("build plan sweep: failed to list candidates", "error", err)
		return report
	}

	for _, p := range candidates {
		report.Examined++
		eligible, pol, err := s.eligibleForPlanCleanup(ctx, &p)
		if err != nil {
			s.logger.Warn("build plan sweep: skipping participation",
				"participation_id", p.ID, "error", err)
			report.Failed++
			continue
		}
		if !eligible {
			report.Skipped++
			continue
		}

		err = s.ci.DeletePlan(ctx, pol.ProjectKey, p.BuildPlanKey)
		if err != nil && !errors.Is(err, ciconn.ErrPlanNotFound) {
			s.logger.Warn("build plan sweep: delete failed, will retry next sweep",
				"participation_id", p.ID, "plan_key", p.BuildPlanKey, "error", err)
			report.Failed++
			continue
		}
		if err := s.parts.ClearBuildPlan(ctx, p.ID); err != nil {
			s.logger.Warn("build plan sweep: failed to clear plan key",
				"participation_id", p.ID, "error", err)
			report.Failed++
			continue
		}
		report.Deleted++
	}

	s.logger.Info("build plan sweep finished",
		"examined", report.Examined, "deleted", report.Deleted,
		"failed", report.Failed, "skipped", report.Skipped)
	return report
}

func (s *Scheduler) eligibleForPlanCleanup(ctx context.Context, p *partsrvc.Participation) (bool, *partsrvc.ExercisePolicy, error) {
	if p.BuildPlanKey == "" || !p.HasParticipant() {
		return false, nil, nil
	}
	pol, err := s.parts.Policy(ctx, p.ExerciseID)
	if err != nil {
		return false, nil, err
	}
	now := s.now()

	// a scheduled post-due-date rebuild still needs the plan
	if pol.BuildAndTestAfterDueDate != nil && pol.BuildAndTestAfterDueDate.After(now) {
		return false, pol, nil
	}

	latest, err := s.ledger.LatestForParticipation(ctx, p.ID)
	if err != nil {
		return false, pol, err
	}
	if latest == nil {
		if p.InitializedAt == nil {
			return false, pol, nil
		}
		return now.Sub(*p.InitializedAt) > s.policy.NoResultRetention(), pol, nil
	}
	age := now.Sub(latest.CompletedAt)
	if latest.Successful {
		return age > s.policy.SuccessfulRetention(), pol, nil
	}
	return age > s.policy.UnsuccessfulRetention(), pol, nil
}

// SweepGitCache prunes locally cached clones of exercises whose course or
// exam window closed beyond the retention horizon. Remote repositories are
// never touched.
func (s *Scheduler) SweepGitCache(ctx context.Context) SweepReport {
	report := SweepReport{}

	policies, err := s.parts.ListPolicies(ctx)
	if err != nil {
		s.logger.Error("git cache sweep: failed to list policies", "error", err)
		return report
	}
	now := s.now()
	for _, pol := range policies {
		if pol.ActiveUntil == nil || now.Sub(*pol.ActiveUntil) < s.policy.GitCacheRetention() {
			continue
		}
		report.Examined++
		if err := s.pruneExerciseClones(ctx, pol.ExerciseID, pol.TestRepositoryURI); err != nil {
			report.Failed++
			continue
		}
		report.Deleted++
	}

	s.logger.Info("git cache sweep finished",
		"examined", report.Examined, "pruned", report.Deleted, "failed", report.Failed)
	return report
}

func (s *Scheduler) pruneExerciseClones(ctx context.Context, exerciseID uuid.UUID, testRepoURI string) error {
	parts, err := s.parts.ListByExercise(ctx, exerciseID)
	if err != nil {
		s.logger.Warn("git cache sweep: failed to list participations",
			"exercise_id", exerciseID, "error", err)
		return err
	}
	var firstErr error
	for _, p := range parts {
		if p.RepositoryURI == "" {
			continue
		}
		if err := s.vcs.PruneLocalClone(p.RepositoryURI); err != nil {
			s.logger.Warn("git cache sweep: failed to prune clone",
				"participation_id", p.ID, "uri", p.RepositoryURI, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if testRepoURI != "" {
		if err := s.vcs.PruneLocalClone(testRepoURI); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
