package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/coverage-api/internal/models"
)

const openingColumns = `id, class_id, class_name, teacher_id, department, district_code, school_code, date, period,
	start_time, end_time, kind, urgent, pay_amount, status, assignee_id, created_by, created_at, updated_at`

// OpeningTransition describes a guarded status change of an opening.
type OpeningTransition struct {
	OpeningID string
	From      []models.OpeningStatus
	To        models.OpeningStatus
	// Assignee, when set, must currently hold the opening.
	Assignee      string
	ClearAssignee bool
	Event         models.OpeningEvent
}

// OpeningRepository persists coverage openings and their transition history.
type OpeningRepository struct {
	db *sqlx.DB
}

// NewOpeningRepository constructs an OpeningRepository.
func NewOpeningRepository(db *sqlx.DB) *OpeningRepository {
	return &OpeningRepository{db: db}
}

// Create inserts an opening. ErrDuplicateSlot is returned when the class slot is taken.
func (r *OpeningRepository) Create(ctx context.Context, opening *models.CoverageOpening) error {
	if opening.ID == "" {
		opening.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	opening.CreatedAt = now
	opening.UpdatedAt = now
	if opening.Status == "" {
		opening.Status = models.OpeningStatusOpen
	}

	const query = `INSERT INTO coverage_openings (id, class_id, class_name, teacher_id, department, district_code, school_code,
		date, period, start_time, end_time, kind, urgent, pay_amount, status, assignee_id, created_by, created_at, updated_at)
		VALUES (:id, :class_id, :class_name, :teacher_id, :department, :district_code, :school_code, :date, :period,
		:start_time, :end_time, :kind, :urgent, :pay_amount, :status, :assignee_id, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, opening); err != nil {
		if isUniqueViolation(err, activeSlotIndex) {
			return ErrDuplicateSlot
		}
		return fmt.Errorf("create opening: %w", err)
	}
	return nil
}

// FindByID fetches an opening by id.
func (r *OpeningRepository) FindByID(ctx context.Context, id string) (*models.CoverageOpening, error) {
	query := "SELECT " + openingColumns + " FROM coverage_openings WHERE id = $1"
	var opening models.CoverageOpening
	if err := r.db.GetContext(ctx, &opening, query, id); err != nil {
		return nil, err
	}
	return &opening, nil
}

// FindActiveBySlot returns the active opening for a class slot, if any.
func (r *OpeningRepository) FindActiveBySlot(ctx context.Context, classID string, date time.Time, period int) (*models.CoverageOpening, error) {
	query := "SELECT " + openingColumns + ` FROM coverage_openings
		WHERE class_id = $1 AND date = $2 AND period = $3 AND status IN ('open', 'requested', 'claimed')`
	var opening models.CoverageOpening
	if err := r.db.GetContext(ctx, &opening, query, classID, date, period); err != nil {
		return nil, err
	}
	return &opening, nil
}

// List returns openings matching filters plus the total count.
func (r *OpeningRepository) List(ctx context.Context, filter models.OpeningFilter) ([]models.CoverageOpening, int, error) {
	base := "FROM coverage_openings WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.SchoolCode != "" {
		args = append(args, filter.SchoolCode)
		conditions = append(conditions, fmt.Sprintf("school_code = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Date != nil {
		args = append(args, *filter.Date)
		conditions = append(conditions, fmt.Sprintf("date = $%d", len(args)))
	}
	if filter.AssigneeID != "" {
		args = append(args, filter.AssigneeID)
		conditions = append(conditions, fmt.Sprintf("assignee_id = $%d", len(args)))
	}
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY date, start_time, class_id LIMIT %d OFFSET %d", openingColumns, base, size, offset)
	var openings []models.CoverageOpening
	if err := r.db.SelectContext(ctx, &openings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list openings: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count openings: %w", err)
	}
	return openings, total, nil
}

// Claim assigns an open opening with a single conditional update. It reports false when the
// opening was no longer open, which is how concurrent accepts lose.
func (r *OpeningRepository) Claim(ctx context.Context, id, assigneeID string, to models.OpeningStatus, event models.OpeningEvent) (claimed bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin claim tx: %w", err)
	}
	defer func() {
		if err != nil || !claimed {
			_ = tx.Rollback()
		}
	}()

	const query = `UPDATE coverage_openings SET status = $3, assignee_id = $2, updated_at = $4 WHERE id = $1 AND status = 'open'`
	res, err := tx.ExecContext(ctx, query, id, assigneeID, to, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("claim opening: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim opening rows: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	event.OpeningID = id
	if err = insertEvent(ctx, tx, &event); err != nil {
		return false, err
	}
	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit claim tx: %w", err)
	}
	return true, nil
}

// Transition applies a guarded status change and records the event. It reports false when the
// opening was not in an allowed state or not held by the expected assignee.
func (r *OpeningRepository) Transition(ctx context.Context, t OpeningTransition) (applied bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transition tx: %w", err)
	}
	defer func() {
		if err != nil || !applied {
			_ = tx.Rollback()
		}
	}()

	from := make([]string, len(t.From))
	for i, status := range t.From {
		from[i] = string(status)
	}

	const query = `UPDATE coverage_openings
		SET status = $2, assignee_id = CASE WHEN $3 THEN NULL ELSE assignee_id END, updated_at = $4
		WHERE id = $1 AND status = ANY($5) AND ($6 = '' OR assignee_id::text = $6)`
	res, err := tx.ExecContext(ctx, query, t.OpeningID, t.To, t.ClearAssignee, time.Now().UTC(), pq.Array(from), t.Assignee)
	if err != nil {
		return false, fmt.Errorf("transition opening: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition opening rows: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	t.Event.OpeningID = t.OpeningID
	if err = insertEvent(ctx, tx, &t.Event); err != nil {
		return false, err
	}
	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit transition tx: %w", err)
	}
	return true, nil
}

// Events returns the transition history of an opening, oldest first.
func (r *OpeningRepository) Events(ctx context.Context, openingID string) ([]models.OpeningEvent, error) {
	const query = `SELECT id, opening_id, actor_id, from_status, to_status, reason_tag, reason, notes, created_at
		FROM coverage_opening_events WHERE opening_id = $1 ORDER BY created_at`
	var events []models.OpeningEvent
	if err := r.db.SelectContext(ctx, &events, query, openingID); err != nil {
		return nil, fmt.Errorf("list opening events: %w", err)
	}
	return events, nil
}

func insertEvent(ctx context.Context, tx *sqlx.Tx, event *models.OpeningEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO coverage_opening_events (id, opening_id, actor_id, from_status, to_status, reason_tag, reason, notes, created_at)
		VALUES (:id, :opening_id, :actor_id, :from_status, :to_status, :reason_tag, :reason, :notes, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("insert opening event: %w", err)
	}
	return nil
}
