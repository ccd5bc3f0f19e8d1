package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/coverage-api/internal/models"
)

const coverageLogColumns = `id, opening_id, assignee_id, school_code, date, duration_hours, rate, amount, status,
	verified_by, verified_at, payment_ref, paid_at, created_at`

// CoverageLogRepository persists the earnings ledger.
type CoverageLogRepository struct {
	db *sqlx.DB
}

// NewCoverageLogRepository constructs a CoverageLogRepository.
func NewCoverageLogRepository(db *sqlx.DB) *CoverageLogRepository {
	return &CoverageLogRepository{db: db}
}

// RecordCompletion completes a claimed opening, writes its ledger entry and rotates the assignee
// to the back of their department in one transaction.
// It reports false when the opening was not claimed by the entry's assignee.
func (r *CoverageLogRepository) RecordCompletion(ctx context.Context, entry *models.CoverageLogEntry, event models.OpeningEvent) (recorded bool, err error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()
	entry.Status = models.LogStatusPending

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin completion tx: %w", err)
	}
	defer func() {
		if err != nil || !recorded {
			_ = tx.Rollback()
		}
	}()

	const complete = `UPDATE coverage_openings SET status = 'completed', updated_at = $3
		WHERE id = $1 AND status = 'claimed' AND assignee_id = $2`
	res, err := tx.ExecContext(ctx, complete, entry.OpeningID, entry.AssigneeID, entry.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("complete opening: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete opening rows: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	event.OpeningID = entry.OpeningID
	if err = insertEvent(ctx, tx, &event); err != nil {
		return false, err
	}

	const insert = `INSERT INTO coverage_logs (id, opening_id, assignee_id, school_code, date, duration_hours, rate, amount, status, created_at)
		VALUES (:id, :opening_id, :assignee_id, :school_code, :date, :duration_hours, :rate, :amount, :status, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insert, entry); err != nil {
		return false, fmt.Errorf("insert coverage log: %w", err)
	}
	if err = recomputeDaysSinceLast(ctx, tx, entry.AssigneeID); err != nil {
		return false, err
	}
	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit completion tx: %w", err)
	}
	return true, nil
}

// FindByID fetches a ledger entry.
func (r *CoverageLogRepository) FindByID(ctx context.Context, id string) (*models.CoverageLogEntry, error) {
	query := "SELECT " + coverageLogColumns + " FROM coverage_logs WHERE id = $1"
	var entry models.CoverageLogEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// List returns ledger entries matching filters plus the total count. A zero page size returns every row.
func (r *CoverageLogRepository) List(ctx context.Context, filter models.CoverageLogFilter) ([]models.CoverageLogEntry, int, error) {
	base := "FROM coverage_logs WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.SchoolCode != "" {
		args = append(args, filter.SchoolCode)
		conditions = append(conditions, fmt.Sprintf("school_code = $%d", len(args)))
	}
	if filter.AssigneeID != "" {
		args = append(args, filter.AssigneeID)
		conditions = append(conditions, fmt.Sprintf("assignee_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)))
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf("SELECT %s %s ORDER BY date DESC, created_at DESC", coverageLogColumns, base)
	if filter.PageSize > 0 {
		page, size := models.NormalizePage(filter.Page, filter.PageSize)
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", size, (page-1)*size)
	}
	var entries []models.CoverageLogEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list coverage logs: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count coverage logs: %w", err)
	}
	return entries, total, nil
}

// ListForAssignee returns every ledger entry of an assignee dated on or before asOf.
func (r *CoverageLogRepository) ListForAssignee(ctx context.Context, assigneeID string, asOf time.Time) ([]models.CoverageLogEntry, error) {
	query := "SELECT " + coverageLogColumns + " FROM coverage_logs WHERE assignee_id = $1 AND date <= $2 ORDER BY date"
	var entries []models.CoverageLogEntry
	if err := r.db.SelectContext(ctx, &entries, query, assigneeID, asOf); err != nil {
		return nil, fmt.Errorf("list assignee coverage logs: %w", err)
	}
	return entries, nil
}

// Verify moves a pending entry to verified. It reports false when the entry was not pending.
func (r *CoverageLogRepository) Verify(ctx context.Context, id, adminID string, at time.Time) (bool, error) {
	const query = `UPDATE coverage_logs SET status = 'verified', verified_by = $2, verified_at = $3 WHERE id = $1 AND status = 'pending'`
	return r.execGuarded(ctx, "verify coverage log", query, id, adminID, at)
}

// MarkPaid moves a verified entry to paid. It reports false when the entry was not verified.
func (r *CoverageLogRepository) MarkPaid(ctx context.Context, id, paymentRef string, at time.Time) (bool, error) {
	const query = `UPDATE coverage_logs SET status = 'paid', payment_ref = $2, paid_at = $3 WHERE id = $1 AND status = 'verified'`
	return r.execGuarded(ctx, "pay coverage log", query, id, paymentRef, at)
}

// OverrideAmount replaces the amount of a pending entry. It reports false when the entry was not pending.
func (r *CoverageLogRepository) OverrideAmount(ctx context.Context, id string, amount decimal.Decimal) (bool, error) {
	const query = `UPDATE coverage_logs SET amount = $2 WHERE id = $1 AND status = 'pending'`
	return r.execGuarded(ctx, "override coverage log amount", query, id, amount)
}

func (r *CoverageLogRepository) execGuarded(ctx context.Context, op, query string, args ...interface{}) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s rows: %w", op, err)
	}
	return affected > 0, nil
}
