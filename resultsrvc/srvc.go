// Package resultsrvc consumes CI build-result notifications and attaches
// results to submissions. Build notifications and push notifications arrive
// independently and in any order; a result whose push never arrived gets a
// synthesized submission, so no result is ever orphaned.
package resultsrvc

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ls1intum/Artemis-sub011/buildlog"
	"github.com/ls1intum/Artemis-sub011/logger"
	"github.com/ls1intum/Artemis-sub011/notify"
	"github.com/ls1intum/Artemis-sub011/partsrvc"
	"github.com/ls1intum/Artemis-sub011/submsrvc"
)

type ResultSrvc struct {
	logger *slog.Logger

	parts    *partsrvc.ParticipationSrvc
	ledger   *submsrvc.LedgerSrvc
	notifier notify.Notifier
	archive  *buildlog.Archive // optional
}

func NewResultSrvc(parts *partsrvc.ParticipationSrvc, ledger *submsrvc.LedgerSrvc, notifier notify.Notifier) *ResultSrvc {
	return &ResultSrvc{
		logger:   slog.Default().With("module", "resultsrvc"),
		parts:    parts,
		ledger:   ledger,
		notifier: notifier,
	}
}

// WithArchive enables storing full build logs in the S3 archive.
func (s *ResultSrvc) WithArchive(archive *buildlog.Archive) *ResultSrvc {
	s.archive = archive
	return s
}

// HandleBuildResult resolves the participation from the build plan key,
// finds or synthesizes the submission for the built commit, and appends
// exactly one more result. Re-delivered notifications never create a second
// submission; they do create an additional result, which is kept for audit
// while the latest completion timestamp stays authoritative.
func (s *ResultSrvc) HandleBuildResult(ctx context.Context, planKey string, notif BuildNotification) (*submsrvc.Result, error) {
	log := logger.FromContext(ctx)

	p, err := s.parts.GetByPlanKey(ctx, planKey)
	if err != nil {
		return nil, err
	}
	pol, err := s.parts.Policy(ctx, p.ExerciseID)
	if err != nil {
		return nil, err
	}

	commitHash := notif.AssignmentCommitHash(p)
	if commitHash == "" {
		return nil, submsrvc.ErrCommitHashMissing()
	}

	completedAt := notif.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now()
	}

	// Manual or instructor-triggered builds have no push behind them; the
	// synthesized submission keeps the no-orphan-results invariant.
	subm, created, err := s.ledger.FindOrCreate(ctx, submsrvc.Submission{
		ParticipationID: p.ID,
		ExerciseID:      p.ExerciseID,
		CommitHash:      commitHash,
		Type:            submsrvc.TypeManual,
		Submitted:       true,
		SubmittedAt:     time.Now(),
	})
	if err != nil {
		return nil, err
	}
	if created {
		log.Info("synthesized submission for build result",
			"participation_id", p.ID, "commit_hash", commitHash)
	}

	rated := s.isRated(subm, p, pol)

	buildFailed := len(notif.Tests) == 0
	err = s.ledger.AttachBuildOutcome(ctx, subm.ID, notif.LogLines, notif.Analytics, buildFailed)
	if err != nil {
		return nil, err
	}

	feedback := make([]submsrvc.Feedback, 0, len(notif.Tests))
	for _, t := range notif.Tests {
		feedback = append(feedback, submsrvc.Feedback{
			Text:     t.Name,
			Detail:   t.Message,
			Positive: t.Successful,
		})
	}

	res, err := s.ledger.AppendResult(ctx, submsrvc.Result{
		SubmissionID: subm.ID,
		Score:        notif.Score(),
		Rated:        rated,
		Successful:   notif.Successful && !buildFailed,
		CompletedAt:  completedAt,
		Feedback:     feedback,
	})
	if err != nil {
		return nil, err
	}

	if s.archive != nil && len(notif.LogLines) > 0 {
		go s.archiveLogs(subm.ID, notif.LogLines)
	}

	// Illegal or unrated results are never pushed to the participant in
	// real time.
	if rated && subm.Type != submsrvc.TypeIllegal {
		s.notifier.Notify(notify.Message{
			Kind:            notify.KindNewResult,
			ParticipationID: p.ID,
			ExerciseID:      p.ExerciseID,
			Recipient:       p.Participant,
			Payload: map[string]any{
				"submission_id": subm.ID,
				"result_id":     res.ID,
				"score":         res.Score,
				"successful":    res.Successful,
			},
		})
	}
	return res, nil
}

// isRated applies the legality rules with the submission's own timestamp.
// A result on an already-illegal submission is always unrated.
func (s *ResultSrvc) isRated(subm *submsrvc.Submission, p *partsrvc.Participation, pol *partsrvc.ExercisePolicy) bool {
	if subm.Type == submsrvc.TypeIllegal {
		return false
	}
	if subm.Type == submsrvc.TypeInstructor {
		return true
	}
	if p.Kind != partsrvc.KindStudent && p.Kind != partsrvc.KindTeam {
		return true
	}
	if p.PracticeMode {
		return false
	}
	due := pol.EffectiveDueDate(p)
	if due != nil && subm.SubmittedAt.After(*due) {
		return false
	}
	return true
}

func (s *ResultSrvc) archiveLogs(submissionID uuid.UUID, lines []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	text := make([]byte, 0, 1024)
	for _, line := range lines {
		text = append(text, line...)
		text = append(text, '\n')
	}
	if err := s.archive.Store(ctx, submissionID, text); err != nil {
		s.logger.Warn("failed to archive build log",
			"submission_id", submissionID, "error", err)
	}
}
