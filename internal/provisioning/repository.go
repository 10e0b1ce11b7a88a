package provisioning

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	attendance "summercamp_backend/internal/attendance/service"
)

// confirmedStatuses are registration states whose campers get provisioned.
var confirmedStatuses = []string{"Confirmed", "Completed"}

// PgRepository implements Repository with pgx.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new provisioning repository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) CampExists(ctx context.Context, campID int64) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM camps WHERE id = $1)`, campID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check camp: %w", err)
	}
	return exists, nil
}

func (r *PgRepository) ListCheckpoints(ctx context.Context, campID int64) (map[Step]bool, error) {
	rows, err := r.pool.Query(ctx, `SELECT step FROM provisioning_checkpoints WHERE camp_id = $1`, campID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	done := make(map[Step]bool)
	for rows.Next() {
		var step string
		if err := rows.Scan(&step); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		done[Step(step)] = true
	}
	return done, rows.Err()
}

func (r *PgRepository) RecordCheckpoint(ctx context.Context, campID int64, step Step) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO provisioning_checkpoints (camp_id, step) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		campID, string(step),
	)
	if err != nil {
		return fmt.Errorf("failed to record checkpoint %s: %w", step, err)
	}
	return nil
}

func (r *PgRepository) FirstCamperGroup(ctx context.Context, campID int64) (*CamperGroup, error) {
	var g CamperGroup
	err := r.pool.QueryRow(ctx,
		`SELECT id, name FROM camper_groups WHERE camp_id = $1 ORDER BY id LIMIT 1`,
		campID,
	).Scan(&g.ID, &g.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get camper group: %w", err)
	}
	return &g, nil
}

func (r *PgRepository) ListSchedules(ctx context.Context, campID int64) ([]Schedule, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, is_optional FROM activity_schedules WHERE camp_id = $1 ORDER BY id`,
		campID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []Schedule
	for rows.Next() {
		var s Schedule
		if err := rows.Scan(&s.ID, &s.Name, &s.IsOptional); err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}

func (r *PgRepository) ListGroupMembers(ctx context.Context, campID int64) ([]int64, error) {
	query := `SELECT DISTINCT m.camper_id
		FROM camper_group_members m
		JOIN camper_groups g ON g.id = m.group_id
		WHERE g.camp_id = $1
		ORDER BY m.camper_id`
	return r.collectIDs(ctx, query, campID)
}

func (r *PgRepository) ListOptionalSelections(ctx context.Context, campID int64) ([]Pair, error) {
	query := `SELECT DISTINCT o.camper_id, o.activity_schedule_id
		FROM registration_optional_activities o
		JOIN registrations reg ON reg.id = o.registration_id
		JOIN activity_schedules s ON s.id = o.activity_schedule_id
		WHERE reg.camp_id = $1 AND reg.status = ANY($2) AND s.is_optional
		ORDER BY o.activity_schedule_id, o.camper_id`
	return r.collectPairs(ctx, query, campID, confirmedStatuses)
}

func (r *PgRepository) ListParticipantLinks(ctx context.Context, campID int64) ([]Pair, error) {
	query := `SELECT p.camper_id, p.activity_schedule_id
		FROM activity_participants p
		JOIN activity_schedules s ON s.id = p.activity_schedule_id
		WHERE s.camp_id = $1
		ORDER BY p.activity_schedule_id, p.camper_id`
	return r.collectPairs(ctx, query, campID)
}

func (r *PgRepository) InsertParticipantLinks(ctx context.Context, pairs []Pair) (int, error) {
	return r.insertPairs(ctx, `INSERT INTO activity_participants (camper_id, activity_schedule_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`, pairs)
}

func (r *PgRepository) InsertPendingAttendance(ctx context.Context, pairs []Pair) (int, error) {
	return r.insertPairs(ctx, `INSERT INTO attendance_records (camper_id, activity_schedule_id, status, check_in_method)
		VALUES ($1, $2, $3, $4) ON CONFLICT (camper_id, activity_schedule_id) DO NOTHING`, pairs,
		attendance.StatusPending, attendance.MethodNone)
}

func (r *PgRepository) ListCamperAvatars(ctx context.Context, campID int64) ([]CamperAvatar, error) {
	query := `SELECT DISTINCT ON (c.id) c.id, g.id, c.avatar_key
		FROM registration_campers rc
		JOIN registrations reg ON reg.id = rc.registration_id
		JOIN campers c ON c.id = rc.camper_id
		LEFT JOIN camper_group_members m ON m.camper_id = c.id
			AND m.group_id IN (SELECT id FROM camper_groups WHERE camp_id = $1)
		LEFT JOIN camper_groups g ON g.id = m.group_id
		WHERE reg.camp_id = $1 AND reg.status = ANY($2)
		  AND c.avatar_key IS NOT NULL AND c.avatar_key <> ''
		ORDER BY c.id, g.id`

	rows, err := r.pool.Query(ctx, query, campID, confirmedStatuses)
	if err != nil {
		return nil, fmt.Errorf("failed to list camper avatars: %w", err)
	}
	defer rows.Close()

	var avatars []CamperAvatar
	for rows.Next() {
		var a CamperAvatar
		if err := rows.Scan(&a.CamperID, &a.GroupID, &a.AvatarKey); err != nil {
			return nil, fmt.Errorf("failed to scan camper avatar: %w", err)
		}
		avatars = append(avatars, a)
	}
	return avatars, rows.Err()
}

// insertPairs runs query for each pair in one batch and counts inserted rows.
func (r *PgRepository) insertPairs(ctx context.Context, query string, pairs []Pair, extra ...any) (int, error) {
	if len(pairs) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, p := range pairs {
		batch.Queue(query, append([]any{p.CamperID, p.ScheduleID}, extra...)...)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range pairs {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("failed to insert pair: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (r *PgRepository) collectIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ids: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (r *PgRepository) collectPairs(ctx context.Context, query string, args ...any) ([]Pair, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pairs: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Pair, error) {
		var p Pair
		err := row.Scan(&p.CamperID, &p.ScheduleID)
		return p, err
	})
}

var _ Repository = (*PgRepository)(nil)
