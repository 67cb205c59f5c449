package partsrvc

import (
	"context"
	"errors"
	"fmt"
	"time"

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

const partColumns = `
	id, exercise_id, participant, kind, repository_uri, build_plan_key,
	init_state, locked, practice_mode, individual_due_date, initialized_at,
	created_at
`

// Store implements partRepo
func (r *pgRepo) Store(ctx context.Context, p Participation) error {
	insertQuery := `
		INSERT INTO participations (` + partColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.pool.Exec(ctx, insertQuery,
		p.ID,
		p.ExerciseID,
		nullableStr(p.Participant),
		string(p.Kind),
		p.RepositoryURI,
		nullableStr(p.BuildPlanKey),
		string(p.InitState),
		p.Locked,
		p.PracticeMode,
		p.IndividualDueDate,
		p.InitializedAt,
		p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert participation: %w", err)
	}
	return nil
}

func (r *pgRepo) Get(ctx context.Context, id uuid.UUID) (*Participation, error) {
	query := `SELECT ` + partColumns + ` FROM participations WHERE id = $1`
	p, err := scanParticipation(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query participation: %w", err)
	}
	return p, nil
}

func (r *pgRepo) GetByPlanKey(ctx context.Context, planKey string) (*Participation, error) {
	query := `SELECT ` + partColumns + ` FROM participations WHERE upper(build_plan_key) = upper($1)`
	p, err := scanParticipation(r.pool.QueryRow(ctx, query, planKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query participation by plan key: %w", err)
	}
	return p, nil
}

func (r *pgRepo) ListByExercise(ctx context.Context, exerciseID uuid.UUID) ([]Participation, error) {
	query := `SELECT ` + partColumns + ` FROM participations WHERE exercise_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, exerciseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participations: %w", err)
	}
	defer rows.Close()
	return collectParticipations(rows)
}

func (r *pgRepo) ListWithBuildPlan(ctx context.Context) ([]Participation, error) {
	query := `SELECT ` + partColumns + ` FROM participations WHERE build_plan_key IS NOT NULL ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query participations: %w", err)
	}
	defer rows.Close()
	return collectParticipations(rows)
}

func (r *pgRepo) Update(ctx context.Context, p Participation) error {
	updateQuery := `
		UPDATE participations SET
			repository_uri = $2,
			build_plan_key = $3,
			init_state = $4,
			locked = $5,
			practice_mode = $6,
			individual_due_date = $7,
			initialized_at = $8
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, updateQuery,
		p.ID,
		p.RepositoryURI,
		nullableStr(p.BuildPlanKey),
		string(p.InitState),
		p.Locked,
		p.PracticeMode,
		p.IndividualDueDate,
		p.InitializedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update participation: %w", err)
	}
	return nil
}

func (r *pgRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM participations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete participation: %w", err)
	}
	return nil
}

func scanParticipation(row pgx.Row) (*Participation, error) {
	var p Participation
	var participant, planKey *string
	var kind, state string
	err := row.Scan(
		&p.ID,
		&p.ExerciseID,
		&participant,
		&kind,
		&p.RepositoryURI,
		&planKey,
		&state,
		&p.Locked,
		&p.PracticeMode,
		&p.IndividualDueDate,
		&p.InitializedAt,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if participant != nil {
		p.Participant = *participant
	}
	if planKey != nil {
		p.BuildPlanKey = *planKey
	}
	p.Kind = Kind(kind)
	p.InitState = InitState(state)
	return &p, nil
}

func collectParticipations(rows pgx.Rows) ([]Participation, error) {
	var out []Participation
	for rows.Next() {
		p, err := scanParticipation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participation: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participations: %w", err)
	}
	return out, nil
}

func nullableStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type pgPolicyRepo struct {
	pool *pgxpool.Pool
}

func NewPgPolicyRepo(pool *pgxpool.Pool) *pgPolicyRepo {
	return &pgPolicyRepo{pool: pool}
}

func (r *pgPolicyRepo) StorePolicy(ctx context.Context, pol ExercisePolicy) error {
	query := `
		INSERT INTO exercise_policies (
			exercise_id, project_key, due_date, exam_end, grace_period_seconds,
			build_and_test_after_due_date, active_until, test_repository_uri
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (exercise_id) DO UPDATE SET
			project_key = EXCLUDED.project_key,
			due_date = EXCLUDED.due_date,
			exam_end = EXCLUDED.exam_end,
			grace_period_seconds = EXCLUDED.grace_period_seconds,
			build_and_test_after_due_date = EXCLUDED.build_and_test_after_due_date,
			active_until = EXCLUDED.active_until,
			test_repository_uri = EXCLUDED.test_repository_uri
	`
	_, err := r.pool.Exec(ctx, query,
		pol.ExerciseID,
		pol.ProjectKey,
		pol.DueDate,
		pol.ExamEnd,
		int64(pol.GracePeriod/time.Second),
		pol.BuildAndTestAfterDueDate,
		pol.ActiveUntil,
		pol.TestRepositoryURI,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert exercise policy: %w", err)
	}
	return nil
}

func (r *pgPolicyRepo) GetPolicy(ctx context.Context, exerciseID uuid.UUID) (*ExercisePolicy, error) {
	query := `
		SELECT exercise_id, project_key, due_date, exam_end, grace_period_seconds,
			build_and_test_after_due_date, active_until, test_repository_uri
		FROM exercise_policies WHERE exercise_id = $1
	`
	var pol ExercisePolicy
	var graceSeconds int64
	err := r.pool.QueryRow(ctx, query, exerciseID).Scan(
		&pol.ExerciseID,
		&pol.ProjectKey,
		&pol.DueDate,
		&pol.ExamEnd,
		&graceSeconds,
		&pol.BuildAndTestAfterDueDate,
		&pol.ActiveUntil,
		&pol.TestRepositoryURI,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query exercise policy: %w", err)
	}
	pol.GracePeriod = time.Duration(graceSeconds) * time.Second
	return &pol, nil
}

func (r *pgPolicyRepo) ListPolicies(ctx context.Context) ([]ExercisePolicy, error) {
	query := `
		SELECT exercise_id, project_key, due_date, exam_end, grace_period_seconds,
			build_and_test_after_due_date, active_until, test_repository_uri
		FROM exercise_policies
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query exercise policies: %w", err)
	}
	defer rows.Close()

	var out []ExercisePolicy
	for rows.Next() {
		var pol ExercisePolicy
		var graceSeconds int64
		err := rows.Scan(
			&pol.ExerciseID,
			&pol.ProjectKey,
			&pol.DueDate,
			&pol.ExamEnd,
			&graceSeconds,
			&pol.BuildAndTestAfterDueDate,
			&pol.ActiveUntil,
			&pol.TestRepositoryURI,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exercise policy: %w", err)
		}
		pol.GracePeriod = time.Duration(graceSeconds) * time.Second
		out = append(out, pol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exercise policies: %w", err)
	}
	return out, nil
}
