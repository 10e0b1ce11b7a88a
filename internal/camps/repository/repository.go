package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"summercamp_backend/internal/camps/domain"
	"summercamp_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const campNotFoundMsg = "camp not found"

// confirmedRegistrationStatuses are registration states that count as a seat taken.
var confirmedRegistrationStatuses = []string{"Confirmed", "Completed"}

// Repository provides database operations for the camp lifecycle.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new camps repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const campColumns = `id, name, status, registration_start, registration_end, start_date, end_date, min_participants`

func scanCamp(row pgx.Row) (*domain.Camp, error) {
	var c domain.Camp
	if err := row.Scan(&c.ID, &c.Name, &c.RawStatus, &c.RegistrationStart, &c.RegistrationEnd,
		&c.Start, &c.End, &c.MinParticipants); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByID retrieves a camp by its ID
func (r *Repository) GetByID(ctx context.Context, id int64) (*domain.Camp, error) {
	query := `SELECT ` + campColumns + ` FROM camps WHERE id = $1`

	camp, err := scanCamp(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(campNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get camp: %w", err)
	}
	return camp, nil
}

// CompareAndSetStatus moves the camp from one status to another only if it is
// still in the expected status. It reports whether a row changed.
func (r *Repository) CompareAndSetStatus(ctx context.Context, id int64, from, to domain.Status) (bool, error) {
	query := `UPDATE camps SET status = $3, updated_at = now()
		WHERE id = $1 AND lower(status) = lower($2)`

	tag, err := r.pool.Exec(ctx, query, id, from.String(), to.String())
	if err != nil {
		return false, fmt.Errorf("failed to update camp status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListActiveOverlapping returns other, non-canceled camps whose date range
// intersects [start, end] and which have not ended yet.
func (r *Repository) ListActiveOverlapping(ctx context.Context, campID int64, start, end, now time.Time) ([]domain.Camp, error) {
	query := `SELECT ` + campColumns + ` FROM camps
		WHERE id <> $1
		  AND lower(status) <> lower($5)
		  AND start_date IS NOT NULL AND end_date IS NOT NULL
		  AND start_date <= $3 AND end_date >= $2
		  AND end_date > $4
		ORDER BY start_date`

	rows, err := r.pool.Query(ctx, query, campID, start, end, now, domain.StatusCanceled.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list overlapping camps: %w", err)
	}
	defer rows.Close()

	return collectCamps(rows)
}

// ListUpcoming returns camps whose registration has not opened yet and which
// are neither draft nor canceled.
func (r *Repository) ListUpcoming(ctx context.Context, now time.Time) ([]domain.Camp, error) {
	query := `SELECT ` + campColumns + ` FROM camps
		WHERE registration_start > $1
		  AND lower(status) NOT IN (lower($2), lower($3))
		ORDER BY registration_start`

	rows, err := r.pool.Query(ctx, query, now, domain.StatusCanceled.String(), domain.StatusDraft.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming camps: %w", err)
	}
	defer rows.Close()

	return collectCamps(rows)
}

// CountConfirmedCampers counts distinct campers holding a confirmed registration.
func (r *Repository) CountConfirmedCampers(ctx context.Context, campID int64) (int, error) {
	query := `SELECT COUNT(DISTINCT rc.camper_id)
		FROM registrations reg
		JOIN registration_campers rc ON rc.registration_id = reg.id
		WHERE reg.camp_id = $1 AND reg.status = ANY($2)`

	var count int
	if err := r.pool.QueryRow(ctx, query, campID, confirmedRegistrationStatuses).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count confirmed campers: %w", err)
	}
	return count, nil
}

func collectCamps(rows pgx.Rows) ([]domain.Camp, error) {
	camps := make([]domain.Camp, 0)
	for rows.Next() {
		camp, err := scanCamp(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan camp: %w", err)
		}
		camps = append(camps, *camp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate camps: %w", err)
	}
	return camps, nil
}
