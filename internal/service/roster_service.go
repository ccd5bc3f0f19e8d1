package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/coverage-api/internal/dto"
	"github.com/noah-isme/coverage-api/internal/models"
	appErrors "github.com/noah-isme/coverage-api/pkg/errors"
)

type rosterStore interface {
	List(ctx context.Context, filter models.StaffFilter) ([]models.StaffMember, error)
	FindByID(ctx context.Context, id string) (*models.StaffMember, error)
	Create(ctx context.Context, member *models.StaffMember) error
	Deactivate(ctx context.Context, id string) error
	MarkAbsent(ctx context.Context, id string) (bool, error)
	MarkReturned(ctx context.Context, id string) (bool, error)
	AgeDepartment(ctx context.Context, schoolCode, department string) (int64, error)
}

type teacherTimetable interface {
	ListForTeacher(ctx context.Context, teacherID string, weekday int) ([]models.ClassPeriod, error)
}

type absenceOpener interface {
	OpenForPeriod(ctx context.Context, teacher *models.StaffMember, period models.ClassPeriod, date time.Time, actorID string) (*models.CoverageOpening, error)
}

// RosterService manages staff and their place in the department rotation.
type RosterService struct {
	store     rosterStore
	periods   teacherTimetable
	opener    absenceOpener
	validator *validator.Validate
	logger    *zap.Logger
	location  *time.Location
	now       func() time.Time
}

// NewRosterService constructs a RosterService.
func NewRosterService(store rosterStore, periods teacherTimetable, opener absenceOpener, location *time.Location,
	validate *validator.Validate, logger *zap.Logger) *RosterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	return &RosterService{
		store:     store,
		periods:   periods,
		opener:    opener,
		validator: validate,
		logger:    logger,
		location:  location,
		now:       time.Now,
	}
}

// List returns staff of the caller's school unless another school is requested.
func (s *RosterService) List(ctx context.Context, filter models.StaffFilter, scope *models.RequestScope) ([]models.StaffMember, error) {
	if filter.SchoolCode == "" {
		filter.SchoolCode = scope.SchoolCode
	}
	members, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list staff")
	}
	if members == nil {
		members = []models.StaffMember{}
	}
	return members, nil
}

// Get returns one staff member.
func (s *RosterService) Get(ctx context.Context, id string) (*models.StaffMember, error) {
	member, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "staff member not found")
		}
		return nil, appErrors.Internal(err, "failed to load staff member")
	}
	return member, nil
}

// Hire adds a member at the back of their department rotation.
func (s *RosterService) Hire(ctx context.Context, req dto.HireStaffRequest, scope *models.RequestScope) (*models.StaffMember, error) {
	if !scope.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can hire staff")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid staff payload")
	}
	member := &models.StaffMember{
		Name:              req.Name,
		Email:             req.Email,
		TelegramChatID:    req.TelegramChatID,
		Department:        req.Department,
		Role:              req.Role,
		EmploymentStatus:  req.EmploymentStatus,
		DistrictCode:      req.DistrictCode,
		SchoolCode:        req.SchoolCode,
		Status:            models.StaffStatusFree,
		ApprovedDistricts: pq.StringArray(req.ApprovedDistricts),
		ApprovedSchools:   pq.StringArray(req.ApprovedSchools),
	}
	if member.EmploymentStatus == "" {
		member.EmploymentStatus = models.EmploymentFullTime
	}
	if req.HourlyRate != nil {
		if !req.HourlyRate.IsPositive() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "hourly_rate must be positive")
		}
		member.HourlyRate = decimal.NewNullDecimal(*req.HourlyRate)
	}
	if err := s.store.Create(ctx, member); err != nil {
		return nil, appErrors.Internal(err, "failed to hire staff member")
	}
	s.logger.Info("staff hired",
		zap.String("staff_id", member.ID), zap.String("school_code", member.SchoolCode),
		zap.String("department", member.Department), zap.Int("rotation_position", member.RotationPosition))
	return member, nil
}

// Deactivate removes a member from the rotation and compacts the remaining positions.
func (s *RosterService) Deactivate(ctx context.Context, id string, scope *models.RequestScope) error {
	if !scope.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins can deactivate staff")
	}
	if err := s.store.Deactivate(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "staff member not found")
		}
		return appErrors.Internal(err, "failed to deactivate staff member")
	}
	return nil
}

// MarkAbsent flags a teacher absent and opens a standard slot for each of today's periods.
// Repeating it walks the timetable again and only fills slots that are still missing,
// so a call that failed partway can be retried.
func (s *RosterService) MarkAbsent(ctx context.Context, teacherID string, scope *models.RequestScope) (*dto.MarkAbsentResponse, error) {
	if !scope.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can mark absences")
	}
	teacher, err := s.Get(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	changed, err := s.store.MarkAbsent(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "staff member not found")
		}
		return nil, appErrors.Internal(err, "failed to mark absent")
	}
	teacher.Status = models.StaffStatusAbsent

	today := s.now().In(s.location)
	periods, err := s.periods.ListForTeacher(ctx, teacherID, int(today.Weekday()))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load teacher timetable")
	}
	resp := &dto.MarkAbsentResponse{Success: true, Openings: []models.CoverageOpening{}}
	var failed error
	for _, period := range periods {
		opening, err := s.opener.OpenForPeriod(ctx, teacher, period, today, scope.UserID)
		if err != nil {
			if errors.Is(err, appErrors.ErrDuplicate) {
				continue
			}
			s.logger.Error("failed to open slot for absence",
				zap.String("teacher_id", teacherID), zap.String("class_id", period.ClassID), zap.Int("period", period.Period), zap.Error(err))
			if failed == nil {
				failed = err
			}
			continue
		}
		resp.Openings = append(resp.Openings, *opening)
	}
	s.logger.Info("teacher marked absent",
		zap.String("teacher_id", teacherID), zap.Bool("status_changed", changed),
		zap.Int("periods", len(periods)), zap.Int("openings", len(resp.Openings)))
	if failed != nil {
		return nil, appErrors.Internal(failed, "failed to open every period of the absence; retry to fill the rest")
	}
	return resp, nil
}

// MarkReturned frees an absent member and sends them to the back of the rotation.
func (s *RosterService) MarkReturned(ctx context.Context, id string, scope *models.RequestScope) (*models.StaffMember, error) {
	if !scope.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can mark returns")
	}
	changed, err := s.store.MarkReturned(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "staff member not found")
		}
		return nil, appErrors.Internal(err, "failed to mark returned")
	}
	if !changed {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "staff member is not absent")
	}
	return s.Get(ctx, id)
}

// AgeDepartment adds a day since last coverage to every active member of a department.
func (s *RosterService) AgeDepartment(ctx context.Context, req dto.AgeRosterRequest, scope *models.RequestScope) (int64, error) {
	if !scope.IsAdmin() {
		return 0, appErrors.Clone(appErrors.ErrForbidden, "only admins can age the roster")
	}
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid roster payload")
	}
	aged, err := s.store.AgeDepartment(ctx, req.SchoolCode, req.Department)
	if err != nil {
		return 0, appErrors.Internal(err, "failed to age roster")
	}
	return aged, nil
}
