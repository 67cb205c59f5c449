package http

import (
	"time"

	"github.com/google/uuid"
	"github.com/ls1intum/Artemis-sub011/submsrvc"
)

type submissionJson struct {
	ID              uuid.UUID `json:"id"`
	ParticipationID uuid.UUID `json:"participation_id"`
	CommitHash      string    `json:"commit_hash"`
	Type            string    `json:"type"`
	Submitted       bool      `json:"submitted"`
	SubmittedAt     time.Time `json:"submitted_at"`
	BuildFailed     bool      `json:"build_failed"`
}

func mapSubmission(subm *submsrvc.Submission) submissionJson {
	return submissionJson{
		ID:              subm.ID,
		ParticipationID: subm.ParticipationID,
		CommitHash:      subm.CommitHash,
		Type:            string(subm.Type),
		Submitted:       subm.Submitted,
		SubmittedAt:     subm.SubmittedAt,
		BuildFailed:     subm.BuildFailed,
	}
}

type resultJson struct {
	ID           uuid.UUID `json:"id"`
	SubmissionID uuid.UUID `json:"submission_id"`
	Score        float64   `json:"score"`
	Rated        bool      `json:"rated"`
	Successful   bool      `json:"successful"`
	CompletedAt  time.Time `json:"completed_at"`
}

func mapResult(res *submsrvc.Result) resultJson {
	return resultJson{
		ID:           res.ID,
		SubmissionID: res.SubmissionID,
		Score:        res.Score,
		Rated:        res.Rated,
		Successful:   res.Successful,
		CompletedAt:  res.CompletedAt,
	}
}

type buildLogStatsJson struct {
	AgentSetupMillis int64 `json:"agent_setup_millis"`
	TestMillis       int64 `json:"test_millis"`
	ScaMillis        int64 `json:"sca_millis"`
	TotalMillis      int64 `json:"total_millis"`
	DependencyCount  int   `json:"dependency_count"`
}

func mapBuildLogStats(stats *submsrvc.BuildLogStatistics) *buildLogStatsJson {
	if stats == nil {
		return nil
	}
	return &buildLogStatsJson{
		AgentSetupMillis: stats.AgentSetupMillis,
		TestMillis:       stats.TestMillis,
		ScaMillis:        stats.ScaMillis,
		TotalMillis:      stats.TotalMillis,
		DependencyCount:  stats.DependencyCount,
	}
}
