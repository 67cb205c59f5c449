package submsrvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgRepo struct {
	pool *pgxpool.Pool
}

func NewPgRepo(pool *pgxpool.Pool) *pgRepo {
	return &pgRepo{pool: pool}
}

// InsertIfAbsent implements submRepo with a conditional insert. The unique
// index on (participation_id, commit_hash) makes the idempotency invariant
// hold even across processes; ON CONFLICT DO NOTHING plus a re-select avoids
// the read-then-write race entirely.
func (r *pgRepo) InsertIfAbsent(ctx context.Context, subm Submission) (*Submission, bool, error) {
	insertQuery := `
		INSERT INTO submissions (
			id, participation_id, exercise_id, commit_hash, subm_type,
			submitted, submitted_at, build_failed, build_log_lines,
			build_log_stats, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (participation_id, commit_hash) DO NOTHING
	`
	statsJson, err := marshalStats(subm.BuildLogStats)
	if err != nil {
		return nil, false, err
	}
	tag, err := r.pool.Exec(ctx, insertQuery,
		subm.ID,
		subm.ParticipationID,
		subm.ExerciseID,
		subm.CommitHash,
		string(subm.Type),
		subm.Submitted,
		subm.SubmittedAt,
		subm.BuildFailed,
		subm.BuildLogLines,
		statsJson,
		subm.CreatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert submission: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return &subm, true, nil
	}
	existing, err := r.GetByCommit(ctx, subm.ParticipationID, subm.CommitHash)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("submission conflict but no row for (%s, %s)",
			subm.ParticipationID, subm.CommitHash)
	}
	return existing, false, nil
}

const submColumns = `
	id, participation_id, exercise_id, commit_hash, subm_type, submitted,
	submitted_at, build_failed, build_log_lines, build_log_stats, created_at
`

func (r *pgRepo) Get(ctx context.Context, id uuid.UUID) (*Submission, error) {
	query := `SELECT ` + submColumns + ` FROM submissions WHERE id = $1`
	subm, err := scanSubmission(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query submission: %w", err)
	}
	return subm, nil
}

func (r *pgRepo) GetByCommit(ctx context.Context, participationID uuid.UUID, commitHash string) (*Submission, error) {
	query := `SELECT ` + submColumns + ` FROM submissions WHERE participation_id = $1 AND commit_hash = $2`
	subm, err := scanSubmission(r.pool.QueryRow(ctx, query, participationID, commitHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query submission by commit: %w", err)
	}
	return subm, nil
}

func (r *pgRepo) ListByParticipation(ctx context.Context, participationID uuid.UUID) ([]Submission, error) {
	query := `SELECT ` + submColumns + ` FROM submissions WHERE participation_id = $1 ORDER BY submitted_at`
	rows, err := r.pool.Query(ctx, query, participationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()
	return collectSubmissions(rows)
}

func (r *pgRepo) ListByExercise(ctx context.Context, exerciseID uuid.UUID) ([]Submission, error) {
	query := `SELECT ` + submColumns + ` FROM submissions WHERE exercise_id = $1 ORDER BY submitted_at`
	rows, err := r.pool.Query(ctx, query, exerciseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()
	return collectSubmissions(rows)
}

func (r *pgRepo) Update(ctx context.Context, subm Submission) error {
	updateQuery := `
		UPDATE submissions SET
			build_failed = $2,
			build_log_lines = $3,
			build_log_stats = $4
		WHERE id = $1
	`
	statsJson, err := marshalStats(subm.BuildLogStats)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, updateQuery,
		subm.ID, subm.BuildFailed, subm.BuildLogLines, statsJson)
	if err != nil {
		return fmt.Errorf("failed to update submission: %w", err)
	}
	return nil
}

// AppendResult implements submRepo; seq comes from a BIGSERIAL column so the
// arrival order is a database fact, not a process-local counter.
func (r *pgRepo) AppendResult(ctx context.Context, res Result) (Result, error) {
	insertQuery := `
		INSERT INTO results (
			id, submission_id, score, rated, successful, completed_at,
			assessor, feedback
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING seq
	`
	feedbackJson, err := json.Marshal(res.Feedback)
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal feedback: %w", err)
	}
	err = r.pool.QueryRow(ctx, insertQuery,
		res.ID,
		res.SubmissionID,
		res.Score,
		res.Rated,
		res.Successful,
		res.CompletedAt,
		res.Assessor,
		feedbackJson,
	).Scan(&res.Seq)
	if err != nil {
		return Result{}, fmt.Errorf("failed to insert result: %w", err)
	}
	return res, nil
}

const resultColumns = `
	id, submission_id, score, rated, successful, completed_at, assessor,
	feedback, seq
`

func (r *pgRepo) ListResults(ctx context.Context, submissionID uuid.UUID) ([]Result, error) {
	query := `SELECT ` + resultColumns + ` FROM results WHERE submission_id = $1 ORDER BY seq`
	rows, err := r.pool.Query(ctx, query, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()
	return collectResults(rows)
}

func (r *pgRepo) LatestResultForParticipation(ctx context.Context, participationID uuid.UUID) (*Result, error) {
	query := `
		SELECT ` + resultColumns + `
		FROM results
		JOIN submissions ON submissions.id = results.submission_id
		WHERE submissions.participation_id = $1
		ORDER BY results.completed_at DESC, results.seq DESC
		LIMIT 1
	`
	res, err := scanResult(r.pool.QueryRow(ctx, query, participationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest result: %w", err)
	}
	return res, nil
}

func scanSubmission(row pgx.Row) (*Submission, error) {
	var subm Submission
	var submType string
	var statsJson []byte
	err := row.Scan(
		&subm.ID,
		&subm.ParticipationID,
		&subm.ExerciseID,
		&subm.CommitHash,
		&submType,
		&subm.Submitted,
		&subm.SubmittedAt,
		&subm.BuildFailed,
		&subm.BuildLogLines,
		&statsJson,
		&subm.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	subm.Type = SubmissionType(submType)
	if len(statsJson) > 0 {
		var stats BuildLogStatistics
		if err := json.Unmarshal(statsJson, &stats); err != nil {
			return nil, fmt.Errorf("failed to unmarshal build log stats: %w", err)
		}
		subm.BuildLogStats = &stats
	}
	return &subm, nil
}

func collectSubmissions(rows pgx.Rows) ([]Submission, error) {
	var out []Submission
	for rows.Next() {
		subm, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		out = append(out, *subm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating submissions: %w", err)
	}
	return out, nil
}

func scanResult(row pgx.Row) (*Result, error) {
	var res Result
	var feedbackJson []byte
	err := row.Scan(
		&res.ID,
		&res.SubmissionID,
		&res.Score,
		&res.Rated,
		&res.Successful,
		&res.CompletedAt,
		&res.Assessor,
		&feedbackJson,
		&res.Seq,
	)
	if err != nil {
		return nil, err
	}
	if len(feedbackJson) > 0 {
		if err := json.Unmarshal(feedbackJson, &res.Feedback); err != nil {
			return nil, fmt.Errorf("failed to unmarshal feedback: %w", err)
		}
	}
	return &res, nil
}

func collectResults(rows pgx.Rows) ([]Result, error) {
	var out []Result
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}
	return out, nil
}

func marshalStats(stats *BuildLogStatistics) ([]byte, error) {
	if stats == nil {
		return nil, nil
	}
	body, err := json.Marshal(stats)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal build log stats: %w", err)
	}
	return body, nil
}
