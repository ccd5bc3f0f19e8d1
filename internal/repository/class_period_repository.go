package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coverage-api/internal/models"
)

const classPeriodColumns = "id, class_id, class_name, teacher_id, school_code, weekday, period, start_time, end_time"

// ClassPeriodRepository reads the weekly timetable.
type ClassPeriodRepository struct {
	db *sqlx.DB
}

// NewClassPeriodRepository constructs a ClassPeriodRepository.
func NewClassPeriodRepository(db *sqlx.DB) *ClassPeriodRepository {
	return &ClassPeriodRepository{db: db}
}

// ListForTeacher returns a teacher's periods on a weekday in period order.
func (r *ClassPeriodRepository) ListForTeacher(ctx context.Context, teacherID string, weekday int) ([]models.ClassPeriod, error) {
	query := "SELECT " + classPeriodColumns + " FROM class_periods WHERE teacher_id = $1 AND weekday = $2 ORDER BY period"
	var periods []models.ClassPeriod
	if err := r.db.SelectContext(ctx, &periods, query, teacherID, weekday); err != nil {
		return nil, fmt.Errorf("list teacher periods: %w", err)
	}
	return periods, nil
}

// FindForClass returns one scheduled period of a class.
func (r *ClassPeriodRepository) FindForClass(ctx context.Context, classID string, weekday, period int) (*models.ClassPeriod, error) {
	query := "SELECT " + classPeriodColumns + " FROM class_periods WHERE class_id = $1 AND weekday = $2 AND period = $3"
	var cp models.ClassPeriod
	if err := r.db.GetContext(ctx, &cp, query, classID, weekday, period); err != nil {
		return nil, err
	}
	return &cp, nil
}

// FindNextForClass returns the first period of a class that has not ended by the given HH:MM clock time.
func (r *ClassPeriodRepository) FindNextForClass(ctx context.Context, classID string, weekday int, clock string) (*models.ClassPeriod, error) {
	query := "SELECT " + classPeriodColumns + ` FROM class_periods
		WHERE class_id = $1 AND weekday = $2 AND end_time > $3
		ORDER BY start_time, period LIMIT 1`
	var cp models.ClassPeriod
	if err := r.db.GetContext(ctx, &cp, query, classID, weekday, clock); err != nil {
		return nil, err
	}
	return &cp, nil
}
