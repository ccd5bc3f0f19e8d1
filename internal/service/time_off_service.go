package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/coverage-api/internal/dto"
	"github.com/noah-isme/coverage-api/internal/models"
	appErrors "github.com/noah-isme/coverage-api/pkg/errors"
	"github.com/noah-isme/coverage-api/pkg/notify"
)

type timeOffStore interface {
	Create(ctx context.Context, req *models.TimeOffRequest) error
	FindByID(ctx context.Context, id string) (*models.TimeOffRequest, error)
	List(ctx context.Context, filter models.TimeOffFilter) ([]models.TimeOffRequest, error)
	Decide(ctx context.Context, id string, status models.TimeOffStatus, decidedBy string, at time.Time) (bool, error)
}

// TimeOffService manages leave requests. Approved ranges exclude the teacher from coverage offers.
type TimeOffService struct {
	store     timeOffStore
	staff     rateSource
	notifier  notify.Notifier
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewTimeOffService constructs a TimeOffService. A nil notifier skips decision notices.
func NewTimeOffService(store timeOffStore, staff rateSource, notifier notify.Notifier, validate *validator.Validate, logger *zap.Logger) *TimeOffService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimeOffService{store: store, staff: staff, notifier: notifier, validator: validate, logger: logger, now: time.Now}
}

// Create submits a pending request for the caller, or for any teacher when the caller is an admin.
func (s *TimeOffService) Create(ctx context.Context, req dto.CreateTimeOffRequest, scope *models.RequestScope) (*models.TimeOffRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid time off payload")
	}
	teacherID := req.TeacherID
	if teacherID == "" {
		teacherID = scope.UserID
	}
	if !scope.ActsFor(teacherID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot request time off for another teacher")
	}
	start, err := time.Parse(dto.DateLayout, req.StartDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid start_date")
	}
	end, err := time.Parse(dto.DateLayout, req.EndDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid end_date")
	}
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must not be before start_date")
	}
	if _, err := s.loadStaff(ctx, teacherID); err != nil {
		return nil, err
	}

	request := &models.TimeOffRequest{TeacherID: teacherID, StartDate: start, EndDate: end, Reason: req.Reason}
	if err := s.store.Create(ctx, request); err != nil {
		return nil, appErrors.Internal(err, "failed to create time off request")
	}
	return request, nil
}

// Cancel withdraws a pending request. Only its owner or an admin may cancel.
func (s *TimeOffService) Cancel(ctx context.Context, id string, scope *models.RequestScope) (*models.TimeOffRequest, error) {
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !scope.ActsFor(request.TeacherID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot cancel another teacher's request")
	}
	return s.decide(ctx, request, models.TimeOffCancelled, scope)
}

// Approve grants a pending request.
func (s *TimeOffService) Approve(ctx context.Context, id string, scope *models.RequestScope) (*models.TimeOffRequest, error) {
	return s.decideAsAdmin(ctx, id, models.TimeOffApproved, scope)
}

// Deny rejects a pending request.
func (s *TimeOffService) Deny(ctx context.Context, id string, scope *models.RequestScope) (*models.TimeOffRequest, error) {
	return s.decideAsAdmin(ctx, id, models.TimeOffDenied, scope)
}

// List returns the caller's own requests, or the school's requests for admins.
func (s *TimeOffService) List(ctx context.Context, filter models.TimeOffFilter, scope *models.RequestScope) ([]models.TimeOffRequest, error) {
	if scope.IsAdmin() {
		if filter.TeacherID == "" && filter.SchoolCode == "" {
			filter.SchoolCode = scope.SchoolCode
		}
	} else {
		filter.TeacherID = scope.UserID
		filter.SchoolCode = ""
	}
	requests, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list time off requests")
	}
	if requests == nil {
		requests = []models.TimeOffRequest{}
	}
	return requests, nil
}

func (s *TimeOffService) decideAsAdmin(ctx context.Context, id string, status models.TimeOffStatus, scope *models.RequestScope) (*models.TimeOffRequest, error) {
	if !scope.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can decide time off")
	}
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	decided, err := s.decide(ctx, request, status, scope)
	if err != nil {
		return nil, err
	}
	s.notifyDecision(ctx, decided)
	return decided, nil
}

func (s *TimeOffService) decide(ctx context.Context, request *models.TimeOffRequest, status models.TimeOffStatus, scope *models.RequestScope) (*models.TimeOffRequest, error) {
	if request.Status != models.TimeOffPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("time off request is already %s", request.Status))
	}
	at := s.now().UTC()
	ok, err := s.store.Decide(ctx, request.ID, status, scope.UserID, at)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to update time off request")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "time off request is no longer pending")
	}
	decidedBy := scope.UserID
	request.Status = status
	request.DecidedBy = &decidedBy
	request.DecidedAt = &at
	return request, nil
}

func (s *TimeOffService) notifyDecision(ctx context.Context, request *models.TimeOffRequest) {
	if s.notifier == nil {
		return
	}
	teacher, err := s.staff.FindByID(ctx, request.TeacherID)
	if err != nil {
		s.logger.Warn("time off notice skipped", zap.String("request_id", request.ID), zap.Error(err))
		return
	}
	msg := notify.Message{
		To:      notify.Recipient{ID: teacher.ID, Name: teacher.Name, Email: teacher.Email, TelegramChatID: teacher.TelegramChatID},
		Subject: fmt.Sprintf("Time off %s", request.Status),
		Text: fmt.Sprintf("Hi %s, your time off from %s to %s was %s.", teacher.Name,
			request.StartDate.Format(dto.DateLayout), request.EndDate.Format(dto.DateLayout), request.Status),
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Warn("time off notice failed", zap.String("request_id", request.ID), zap.Error(err))
	}
}

func (s *TimeOffService) load(ctx context.Context, id string) (*models.TimeOffRequest, error) {
	request, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "time off request not found")
		}
		return nil, appErrors.Internal(err, "failed to load time off request")
	}
	return request, nil
}

func (s *TimeOffService) loadStaff(ctx context.Context, id string) (*models.StaffMember, error) {
	member, err := s.staff.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Internal(err, "failed to load teacher")
	}
	return member, nil
}
