package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/coverage-api/internal/models"
)

const staffColumns = `id, name, email, telegram_chat_id, department, role, employment_status, district_code, school_code,
	rotation_position, days_since_last_coverage, status, approved_districts, approved_schools, hourly_rate, active,
	created_at, updated_at`

// Renumbers the active members of one department densely from 1. The member whose id equals $3
// is placed last; pass an empty string to keep the existing order.
const resequenceQuery = `UPDATE staff s SET rotation_position = r.rn, updated_at = $4
	FROM (
		SELECT id, ROW_NUMBER() OVER (ORDER BY (id::text = $3), rotation_position, id) AS rn
		FROM staff WHERE school_code = $1 AND department = $2 AND active
	) r
	WHERE s.id = r.id AND s.rotation_position <> r.rn`

const departmentLockQuery = `SELECT pg_advisory_xact_lock(hashtext($1))`

// Substitutes qualify through their approvals, teachers through their home school. Anyone already
// assigned an overlapping slot or on approved leave that day is excluded.
const eligibleCandidatesQuery = `SELECT ` + staffColumns + ` FROM staff s
	WHERE s.active AND s.status = 'free'
	AND (
		(s.role = 'substitute' AND $1 = ANY(s.approved_districts) AND $2 = ANY(s.approved_schools))
		OR (s.role = 'teacher' AND s.school_code = $2)
	)
	AND ($3 = '' OR s.department = $3)
	AND NOT (s.id::text = ANY($4))
	AND NOT EXISTS (
		SELECT 1 FROM coverage_openings o
		WHERE o.assignee_id = s.id AND o.status IN ('requested', 'claimed')
		AND o.date = $5 AND o.start_time < $7 AND o.end_time > $6
	)
	AND NOT EXISTS (
		SELECT 1 FROM time_off_requests t
		WHERE t.teacher_id = s.id AND t.status = 'approved' AND $5 BETWEEN t.start_date AND t.end_date
	)
	ORDER BY s.days_since_last_coverage DESC, s.rotation_position ASC, s.id ASC`

// StaffRepository persists the roster and keeps rotation positions dense.
type StaffRepository struct {
	db *sqlx.DB
}

// NewStaffRepository constructs a StaffRepository.
func NewStaffRepository(db *sqlx.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

// List returns roster members ordered by rotation.
func (r *StaffRepository) List(ctx context.Context, filter models.StaffFilter) ([]models.StaffMember, error) {
	var conditions []string
	var args []interface{}

	if !filter.IncludeInactive {
		conditions = append(conditions, "active")
	}
	if filter.SchoolCode != "" {
		args = append(args, filter.SchoolCode)
		conditions = append(conditions, fmt.Sprintf("school_code = $%d", len(args)))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)))
	}
	if filter.Role != "" {
		args = append(args, filter.Role)
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := "SELECT " + staffColumns + " FROM staff"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY school_code, department, rotation_position, name"

	var members []models.StaffMember
	if err := r.db.SelectContext(ctx, &members, query, args...); err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	return members, nil
}

// FindByID fetches a staff member by id.
func (r *StaffRepository) FindByID(ctx context.Context, id string) (*models.StaffMember, error) {
	query := "SELECT " + staffColumns + " FROM staff WHERE id = $1"
	var member models.StaffMember
	if err := r.db.GetContext(ctx, &member, query, id); err != nil {
		return nil, err
	}
	return &member, nil
}

// FindByIDs fetches several staff members at once. Unknown ids are skipped.
func (r *StaffRepository) FindByIDs(ctx context.Context, ids []string) ([]models.StaffMember, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := "SELECT " + staffColumns + " FROM staff WHERE id::text = ANY($1)"
	var members []models.StaffMember
	if err := r.db.SelectContext(ctx, &members, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find staff by ids: %w", err)
	}
	return members, nil
}

// EligibleCandidates reads the members able to cover the given slot, in rotation order.
func (r *StaffRepository) EligibleCandidates(ctx context.Context, q models.EligibilityQuery) ([]models.StaffMember, error) {
	exclude := q.ExcludeIDs
	if exclude == nil {
		exclude = []string{}
	}
	var members []models.StaffMember
	if err := r.db.SelectContext(ctx, &members, eligibleCandidatesQuery,
		q.DistrictCode, q.SchoolCode, q.Department, pq.Array(exclude), q.Date, q.Start, q.End); err != nil {
		return nil, fmt.Errorf("eligible candidates: %w", err)
	}
	return members, nil
}

// Create hires a member and appends them to the back of their department rotation.
func (r *StaffRepository) Create(ctx context.Context, member *models.StaffMember) error {
	if member.ID == "" {
		member.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	member.CreatedAt = now
	member.UpdatedAt = now
	member.Active = true
	member.RotationPosition = 0
	if member.Status == "" {
		member.Status = models.StaffStatusFree
	}
	if member.ApprovedDistricts == nil {
		member.ApprovedDistricts = pq.StringArray{}
	}
	if member.ApprovedSchools == nil {
		member.ApprovedSchools = pq.StringArray{}
	}

	return r.withDepartmentTx(ctx, member.SchoolCode, member.Department, func(tx *sqlx.Tx) error {
		const insert = `INSERT INTO staff (id, name, email, telegram_chat_id, department, role, employment_status, district_code,
			school_code, rotation_position, days_since_last_coverage, status, approved_districts, approved_schools, hourly_rate,
			active, created_at, updated_at)
			VALUES (:id, :name, :email, :telegram_chat_id, :department, :role, :employment_status, :district_code,
			:school_code, :rotation_position, :days_since_last_coverage, :status, :approved_districts, :approved_schools,
			:hourly_rate, :active, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, insert, member); err != nil {
			return fmt.Errorf("insert staff: %w", err)
		}
		if err := resequence(ctx, tx, member.SchoolCode, member.Department, member.ID); err != nil {
			return err
		}
		return tx.GetContext(ctx, &member.RotationPosition, `SELECT rotation_position FROM staff WHERE id = $1`, member.ID)
	})
}

// Deactivate removes a member from the rotation without deleting them.
func (r *StaffRepository) Deactivate(ctx context.Context, id string) error {
	_, err := r.mutateInDepartment(ctx,
		`UPDATE staff SET active = FALSE, rotation_position = 0, updated_at = $2 WHERE id = $1 AND active`,
		id, "")
	return err
}

// MarkAbsent flags a member absent. It reports false when the member was already absent or inactive.
func (r *StaffRepository) MarkAbsent(ctx context.Context, id string) (bool, error) {
	return r.mutateInDepartment(ctx,
		`UPDATE staff SET status = 'absent', updated_at = $2 WHERE id = $1 AND active AND status <> 'absent'`,
		id, "")
}

// MarkReturned frees an absent member and moves them to the back of the rotation.
func (r *StaffRepository) MarkReturned(ctx context.Context, id string) (bool, error) {
	return r.mutateInDepartment(ctx,
		`UPDATE staff SET status = 'free', updated_at = $2 WHERE id = $1 AND active AND status = 'absent'`,
		id, id)
}

// recomputeDaysSinceLast zeroes the counter of a member who just covered and moves them to the
// back of their department. It runs inside the caller's transaction. An inactive or unknown
// member is left alone.
func recomputeDaysSinceLast(ctx context.Context, tx *sqlx.Tx, id string) error {
	var dept struct {
		SchoolCode string `db:"school_code"`
		Department string `db:"department"`
	}
	err := tx.GetContext(ctx, &dept, `SELECT school_code, department FROM staff WHERE id = $1 AND active`, id)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load assignee department: %w", err)
	}
	if _, err := tx.ExecContext(ctx, departmentLockQuery, departmentKey(dept.SchoolCode, dept.Department)); err != nil {
		return fmt.Errorf("lock department: %w", err)
	}
	const reset = `UPDATE staff SET days_since_last_coverage = 0,
		status = CASE WHEN status = 'covering' THEN 'free' ELSE status END, updated_at = $2
		WHERE id = $1`
	if _, err := tx.ExecContext(ctx, reset, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("reset days since last coverage: %w", err)
	}
	return resequence(ctx, tx, dept.SchoolCode, dept.Department, id)
}

// SetStatus changes availability without touching rotation order.
func (r *StaffRepository) SetStatus(ctx context.Context, id string, status models.StaffStatus) error {
	const query = `UPDATE staff SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("set staff status: %w", err)
	}
	return nil
}

// AgeDepartment increments days-since-last-coverage for every active member of a department.
func (r *StaffRepository) AgeDepartment(ctx context.Context, schoolCode, department string) (int64, error) {
	const query = `UPDATE staff SET days_since_last_coverage = days_since_last_coverage + 1, updated_at = $3
		WHERE school_code = $1 AND department = $2 AND active`
	res, err := r.db.ExecContext(ctx, query, schoolCode, department, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("age department: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("age department rows: %w", err)
	}
	return affected, nil
}

// mutateInDepartment applies a guarded single-row update ($1 id, $2 timestamp) under the department
// lock and re-sequences that department in the same transaction. moveToBack names the member to
// place last, if any. It reports false when the guard matched no row.
func (r *StaffRepository) mutateInDepartment(ctx context.Context, update, id, moveToBack string) (changed bool, err error) {
	var dept struct {
		SchoolCode string `db:"school_code"`
		Department string `db:"department"`
	}
	if err := r.db.GetContext(ctx, &dept, `SELECT school_code, department FROM staff WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return false, err
		}
		return false, fmt.Errorf("load staff department: %w", err)
	}

	err = r.withDepartmentTx(ctx, dept.SchoolCode, dept.Department, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, update, id, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("update staff: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update staff rows: %w", err)
		}
		if affected == 0 {
			return nil
		}
		changed = true
		return resequence(ctx, tx, dept.SchoolCode, dept.Department, moveToBack)
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

func (r *StaffRepository) withDepartmentTx(ctx context.Context, schoolCode, department string, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin staff tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, departmentLockQuery, departmentKey(schoolCode, department)); err != nil {
		return fmt.Errorf("lock department: %w", err)
	}
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit staff tx: %w", err)
	}
	return nil
}

func resequence(ctx context.Context, tx *sqlx.Tx, schoolCode, department, moveToBack string) error {
	if _, err := tx.ExecContext(ctx, resequenceQuery, schoolCode, department, moveToBack, time.Now().UTC()); err != nil {
		return fmt.Errorf("resequence rotation: %w", err)
	}
	return nil
}

func departmentKey(schoolCode, department string) string {
	return "staff:" + schoolCode + ":" + department
}
