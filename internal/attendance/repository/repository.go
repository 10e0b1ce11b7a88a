// Package repository persists attendance records.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"summercamp_backend/internal/attendance/service"
	"summercamp_backend/platform/apperr"
)

// Repository implements service.Repository with pgx.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new attendance repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ service.Repository = (*Repository)(nil)

func (r *Repository) GetSchedule(ctx context.Context, scheduleID int64) (*service.Schedule, error) {
	var s service.Schedule
	err := r.pool.QueryRow(ctx,
		`SELECT id, camp_id, name FROM activity_schedules WHERE id = $1`, scheduleID,
	).Scan(&s.ID, &s.CampID, &s.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(fmt.Sprintf("activity schedule %d not found", scheduleID))
		}
		return nil, fmt.Errorf("failed to get activity schedule: %w", err)
	}
	return &s, nil
}

func (r *Repository) ListCampCampers(ctx context.Context, campID int64) ([]service.Camper, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT c.id, c.first_name, c.last_name
		FROM campers c
		JOIN camper_group_members m ON m.camper_id = c.id
		JOIN camper_groups g ON g.id = m.group_id
		WHERE g.camp_id = $1
		ORDER BY c.id`, campID)
	if err != nil {
		return nil, fmt.Errorf("failed to list camp campers: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (service.Camper, error) {
		var c service.Camper
		err := row.Scan(&c.ID, &c.FirstName, &c.LastName)
		return c, err
	})
}

func (r *Repository) LatestRecord(ctx context.Context, camperID, scheduleID int64) (*service.Record, error) {
	var (
		rec  service.Record
		note *string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, camper_id, activity_schedule_id, status, check_in_method, recorded_at, note
		FROM attendance_records
		WHERE camper_id = $1 AND activity_schedule_id = $2
		ORDER BY updated_at DESC, id DESC
		LIMIT 1`, camperID, scheduleID,
	).Scan(&rec.ID, &rec.CamperID, &rec.ActivityScheduleID, &rec.Status, &rec.CheckInMethod, &rec.RecordedAt, &note)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get attendance record: %w", err)
	}
	if note != nil {
		rec.Note = *note
	}
	return &rec, nil
}

func (r *Repository) UpdateRecord(ctx context.Context, rec service.Record) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE attendance_records
		SET status = $2, check_in_method = $3, recorded_at = $4, note = $5, updated_at = $6
		WHERE id = $1`,
		rec.ID, rec.Status, rec.CheckInMethod, rec.RecordedAt, rec.Note, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update attendance record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(fmt.Sprintf("attendance record %d not found", rec.ID))
	}
	return nil
}

func (r *Repository) InsertRecord(ctx context.Context, rec service.Record) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO attendance_records (camper_id, activity_schedule_id, status, check_in_method, recorded_at, note)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (camper_id, activity_schedule_id) DO UPDATE
		SET status = EXCLUDED.status,
		    check_in_method = EXCLUDED.check_in_method,
		    recorded_at = EXCLUDED.recorded_at,
		    note = EXCLUDED.note,
		    updated_at = now()
		RETURNING id`,
		rec.CamperID, rec.ActivityScheduleID, rec.Status, rec.CheckInMethod, rec.RecordedAt, rec.Note,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert attendance record: %w", err)
	}
	return id, nil
}
