package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coverage-api/internal/models"
)

const timeOffColumns = "t.id, t.teacher_id, t.start_date, t.end_date, t.reason, t.status, t.decided_by, t.decided_at, t.created_at"

// TimeOffRepository persists time-off requests.
type TimeOffRepository struct {
	db *sqlx.DB
}

// NewTimeOffRepository constructs a TimeOffRepository.
func NewTimeOffRepository(db *sqlx.DB) *TimeOffRepository {
	return &TimeOffRepository{db: db}
}

// Create inserts a pending request.
func (r *TimeOffRepository) Create(ctx context.Context, req *models.TimeOffRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Status = models.TimeOffPending
	req.CreatedAt = time.Now().UTC()

	const query = `INSERT INTO time_off_requests (id, teacher_id, start_date, end_date, reason, status, created_at)
		VALUES (:id, :teacher_id, :start_date, :end_date, :reason, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create time off: %w", err)
	}
	return nil
}

// FindByID fetches a request.
func (r *TimeOffRepository) FindByID(ctx context.Context, id string) (*models.TimeOffRequest, error) {
	query := "SELECT " + timeOffColumns + " FROM time_off_requests t WHERE t.id = $1"
	var req models.TimeOffRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns requests matching filters, newest first.
func (r *TimeOffRepository) List(ctx context.Context, filter models.TimeOffFilter) ([]models.TimeOffRequest, error) {
	query := "SELECT " + timeOffColumns + " FROM time_off_requests t"
	var conditions []string
	var args []interface{}

	if filter.SchoolCode != "" {
		query += " JOIN staff s ON s.id = t.teacher_id"
		args = append(args, filter.SchoolCode)
		conditions = append(conditions, fmt.Sprintf("s.school_code = $%d", len(args)))
	}
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("t.teacher_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("t.status = $%d", len(args)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY t.start_date DESC, t.created_at DESC"

	var requests []models.TimeOffRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("list time off: %w", err)
	}
	return requests, nil
}

// Decide moves a pending request to a final status. It reports false when the request was not pending.
func (r *TimeOffRepository) Decide(ctx context.Context, id string, status models.TimeOffStatus, decidedBy string, at time.Time) (bool, error) {
	const query = `UPDATE time_off_requests SET status = $2, decided_by = $3, decided_at = $4 WHERE id = $1 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, id, status, decidedBy, at)
	if err != nil {
		return false, fmt.Errorf("decide time off: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("decide time off rows: %w", err)
	}
	return affected > 0, nil
}
