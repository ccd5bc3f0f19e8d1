package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/coverage-api/internal/dto"
	"github.com/noah-isme/coverage-api/internal/models"
	"github.com/noah-isme/coverage-api/internal/repository"
	appErrors "github.com/noah-isme/coverage-api/pkg/errors"
)

type openingStore interface {
	Create(ctx context.Context, opening *models.CoverageOpening) error
	FindByID(ctx context.Context, id string) (*models.CoverageOpening, error)
	FindActiveBySlot(ctx context.Context, classID string, date time.Time, period int) (*models.CoverageOpening, error)
	List(ctx context.Context, filter models.OpeningFilter) ([]models.CoverageOpening, int, error)
	Claim(ctx context.Context, id, assigneeID string, to models.OpeningStatus, event models.OpeningEvent) (bool, error)
	Transition(ctx context.Context, t repository.OpeningTransition) (bool, error)
	Events(ctx context.Context, openingID string) ([]models.OpeningEvent, error)
}

type coverageStaffStore interface {
	FindByID(ctx context.Context, id string) (*models.StaffMember, error)
	EligibleCandidates(ctx context.Context, q models.EligibilityQuery) ([]models.StaffMember, error)
	SetStatus(ctx context.Context, id string, status models.StaffStatus) error
}

type periodStore interface {
	ListForTeacher(ctx context.Context, teacherID string, weekday int) ([]models.ClassPeriod, error)
	FindForClass(ctx context.Context, classID string, weekday, period int) (*models.ClassPeriod, error)
	FindNextForClass(ctx context.Context, classID string, weekday int, clock string) (*models.ClassPeriod, error)
}

type rotationOfferer interface {
	Rank(ctx context.Context, q models.EligibilityQuery) ([]models.StaffMember, error)
	Offer(ctx context.Context, opening *models.CoverageOpening, mode models.OfferMode, exclude ...string) ([]models.CoverageOffer, error)
}

type completionRecorder interface {
	RecordCompletion(ctx context.Context, opening *models.CoverageOpening, actorID string) (*models.CoverageLogEntry, error)
}

// CoverageConfig tunes lifecycle rules.
type CoverageConfig struct {
	// AdvanceNotice is how long before the start a withdrawal must arrive; later releases are call-outs.
	AdvanceNotice time.Duration
	// RequireConfirmation makes every accept land in requested until an admin confirms.
	RequireConfirmation bool
	Location            *time.Location
}

// CoverageService drives the opening lifecycle.
type CoverageService struct {
	openings  openingStore
	staff     coverageStaffStore
	periods   periodStore
	rotation  rotationOfferer
	ledger    completionRecorder
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       CoverageConfig
	now       func() time.Time
}

// NewCoverageService constructs a CoverageService.
func NewCoverageService(openings openingStore, staff coverageStaffStore, periods periodStore, rotation rotationOfferer, ledger completionRecorder,
	metrics *MetricsService, cfg CoverageConfig, validate *validator.Validate, logger *zap.Logger) *CoverageService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.AdvanceNotice < 0 {
		cfg.AdvanceNotice = 0
	}
	return &CoverageService{
		openings:  openings,
		staff:     staff,
		periods:   periods,
		rotation:  rotation,
		ledger:    ledger,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// List returns openings. Non-admins only see their own school.
func (s *CoverageService) List(ctx context.Context, filter models.OpeningFilter, scope *models.RequestScope) ([]models.CoverageOpening, *models.Pagination, error) {
	if !scope.IsAdmin() || filter.SchoolCode == "" {
		filter.SchoolCode = scope.SchoolCode
	}
	openings, total, err := s.openings.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list openings")
	}
	if openings == nil {
		openings = []models.CoverageOpening{}
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	return openings, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns an opening with its history. Non-admins only see openings of their own school.
func (s *CoverageService) Get(ctx context.Context, id string, scope *models.RequestScope) (*dto.OpeningDetail, error) {
	opening, err := s.loadVisible(ctx, id, scope)
	if err != nil {
		return nil, err
	}
	events, err := s.openings.Events(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load opening history")
	}
	if events == nil {
		events = []models.OpeningEvent{}
	}
	return &dto.OpeningDetail{CoverageOpening: *opening, Events: events}, nil
}

// Candidates returns the ranked eligible candidates for an opening.
func (s *CoverageService) Candidates(ctx context.Context, id string, scope *models.RequestScope) ([]dto.RankedCandidate, error) {
	opening, err := s.loadVisible(ctx, id, scope)
	if err != nil {
		return nil, err
	}
	ranked, err := s.rotation.Rank(ctx, EligibilityFor(opening))
	if err != nil {
		return nil, err
	}
	result := make([]dto.RankedCandidate, len(ranked))
	for i, m := range ranked {
		result[i] = dto.RankedCandidate{
			Rank:                  i + 1,
			ID:                    m.ID,
			Name:                  m.Name,
			Role:                  m.Role,
			Department:            m.Department,
			RotationPosition:      m.RotationPosition,
			DaysSinceLastCoverage: m.DaysSinceLastCoverage,
		}
	}
	return result, nil
}

// CreateOpening opens a slot manually and offers it.
func (s *CoverageService) CreateOpening(ctx context.Context, req dto.CreateOpeningRequest, scope *models.RequestScope) (*models.CoverageOpening, error) {
	if !scope.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can open coverage slots")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid opening payload")
	}
	date, err := time.ParseInLocation(dto.DateLayout, req.Date, s.cfg.Location)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}
	teacher, err := s.loadStaff(ctx, req.TeacherID, "teacher not found")
	if err != nil {
		return nil, err
	}

	period := models.ClassPeriod{
		ClassID:   req.ClassID,
		ClassName: req.ClassName,
		Period:    req.Period,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}
	switch {
	case req.StartTime != "" && req.EndTime != "":
	case req.StartTime != "" || req.EndTime != "":
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_time and end_time must be given together")
	default:
		scheduled, err := s.periods.FindForClass(ctx, req.ClassID, int(date.Weekday()), req.Period)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "class has no timetable entry for that period; provide start_time and end_time")
			}
			return nil, appErrors.Internal(err, "failed to load class timetable")
		}
		period.StartTime = scheduled.StartTime
		period.EndTime = scheduled.EndTime
		if period.ClassName == "" {
			period.ClassName = scheduled.ClassName
		}
	}

	opening, err := s.buildOpening(teacher, period, date, req.Kind, req.Urgent, scope.UserID)
	if err != nil {
		return nil, err
	}
	if req.PayAmount != nil {
		if req.PayAmount.IsNegative() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "pay_amount must not be negative")
		}
		opening.PayAmount = decimal.NewNullDecimal(*req.PayAmount)
	}
	mode := req.Mode
	if mode == "" {
		mode = DefaultOfferMode(req.Kind)
	}
	if _, err := s.open(ctx, opening, mode); err != nil {
		return nil, err
	}
	return opening, nil
}

// OpenForPeriod creates the standard opening for one scheduled period of an absent teacher.
func (s *CoverageService) OpenForPeriod(ctx context.Context, teacher *models.StaffMember, period models.ClassPeriod, date time.Time, actorID string) (*models.CoverageOpening, error) {
	opening, err := s.buildOpening(teacher, period, date, models.OpeningKindStandard, false, actorID)
	if err != nil {
		return nil, err
	}
	if _, err := s.open(ctx, opening, models.OfferModeSequential); err != nil {
		return nil, err
	}
	return opening, nil
}

// EmergencyAssign opens an urgent slot for a class and broadcasts it or offers it to the top candidate.
func (s *CoverageService) EmergencyAssign(ctx context.Context, req dto.EmergencyAssignRequest, scope *models.RequestScope) (*dto.EmergencyAssignResponse, error) {
	if !scope.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can raise emergencies")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid emergency payload")
	}
	now := s.now().In(s.cfg.Location)
	date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.cfg.Location)
	clock := now.Format(dto.ClockLayout)
	if req.Date != "" {
		parsed, err := time.ParseInLocation(dto.DateLayout, req.Date, s.cfg.Location)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
		}
		if !parsed.Equal(date) {
			clock = "00:00"
		}
		date = parsed
	}

	var (
		period *models.ClassPeriod
		err    error
	)
	if req.Period != nil {
		period, err = s.periods.FindForClass(ctx, req.ClassID, int(date.Weekday()), *req.Period)
	} else {
		period, err = s.periods.FindNextForClass(ctx, req.ClassID, int(date.Weekday()), clock)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no scheduled period for class")
		}
		return nil, appErrors.Internal(err, "failed to load class timetable")
	}

	teacher, err := s.loadStaff(ctx, period.TeacherID, "scheduled teacher not found")
	if err != nil {
		return nil, err
	}
	opening, err := s.buildOpening(teacher, *period, date, models.OpeningKindEmergency, true, scope.UserID)
	if err != nil {
		return nil, err
	}
	if req.PayAmount != nil {
		if req.PayAmount.IsNegative() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "pay_amount must not be negative")
		}
		opening.PayAmount = decimal.NewNullDecimal(*req.PayAmount)
	}

	mode := models.OfferModeSequential
	if req.Broadcast {
		mode = models.OfferModeBroadcast
	}
	offers, err := s.open(ctx, opening, mode)
	if err != nil {
		return nil, err
	}

	offeredTo := make([]string, len(offers))
	for i, offer := range offers {
		offeredTo[i] = offer.CandidateID
	}
	return &dto.EmergencyAssignResponse{
		ClassID:   opening.ClassID,
		ClassName: opening.ClassName,
		Opening:   opening,
		Mode:      mode,
		OfferedTo: offeredTo,
	}, nil
}

// Accept claims an open opening for the requested staff member.
func (s *CoverageService) Accept(ctx context.Context, req dto.AcceptJobRequest, scope *models.RequestScope) (*models.CoverageOpening, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid accept payload")
	}
	if !scope.ActsFor(req.SubstituteID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot accept on behalf of another staff member")
	}
	opening, err := s.load(ctx, req.JobID)
	if err != nil {
		return nil, err
	}
	if opening.Status != models.OpeningStatusOpen {
		s.metrics.RecordAccept("conflict")
		return nil, appErrors.ErrAlreadyClaimed
	}

	candidates, err := s.staff.EligibleCandidates(ctx, EligibilityFor(opening))
	if err != nil {
		s.metrics.RecordAccept("error")
		return nil, appErrors.Internal(err, "failed to check eligibility")
	}
	if !containsStaff(candidates, req.SubstituteID) {
		s.metrics.RecordAccept("ineligible")
		return nil, appErrors.ErrNotEligible
	}

	target := models.OpeningStatusClaimed
	if opening.Kind == models.OpeningKindLongTerm || s.cfg.RequireConfirmation {
		target = models.OpeningStatusRequested
	}
	claimed, err := s.openings.Claim(ctx, opening.ID, req.SubstituteID, target, models.OpeningEvent{
		ActorID:    scope.UserID,
		FromStatus: models.OpeningStatusOpen,
		ToStatus:   target,
		ReasonTag:  models.ReasonAccept,
		Notes:      req.SubstituteName,
	})
	if err != nil {
		s.metrics.RecordAccept("error")
		return nil, appErrors.Internal(err, "failed to accept opening")
	}
	if !claimed {
		s.metrics.RecordAccept("conflict")
		return nil, appErrors.ErrAlreadyClaimed
	}

	s.metrics.RecordAccept("won")
	s.metrics.RecordTransition(string(models.OpeningStatusOpen), string(target), string(models.ReasonAccept))
	assignee := req.SubstituteID
	opening.Status = target
	opening.AssigneeID = &assignee
	opening.UpdatedAt = s.now().UTC()
	s.logger.Info("opening accepted",
		zap.String("opening_id", opening.ID), zap.String("assignee_id", assignee), zap.String("status", string(target)))
	return opening, nil
}

// Confirm moves a requested opening to claimed.
func (s *CoverageService) Confirm(ctx context.Context, id string, scope *models.RequestScope) (*models.CoverageOpening, error) {
	if !scope.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can confirm assignments")
	}
	opening, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if opening.Status != models.OpeningStatusRequested {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("cannot confirm an opening that is %s", opening.Status))
	}
	if err := s.transition(ctx, opening, repository.OpeningTransition{
		From:  []models.OpeningStatus{models.OpeningStatusRequested},
		To:    models.OpeningStatusClaimed,
		Event: models.OpeningEvent{ActorID: scope.UserID, ReasonTag: models.ReasonConfirm},
	}); err != nil {
		return nil, err
	}
	if opening.Kind == models.OpeningKindLongTerm && opening.AssigneeID != nil {
		s.setStaffStatus(ctx, *opening.AssigneeID, models.StaffStatusCovering)
	}
	return opening, nil
}

// Withdraw releases an assignment submitted at least the advance-notice window before the start.
func (s *CoverageService) Withdraw(ctx context.Context, req dto.WithdrawJobRequest, scope *models.RequestScope) (*models.CoverageOpening, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid withdraw payload")
	}
	opening, err := s.loadHeldBy(ctx, req.JobID, req.SubstituteID, scope)
	if err != nil {
		return nil, err
	}
	deadline := opening.StartTime.Add(-s.cfg.AdvanceNotice)
	if !s.now().Before(deadline) {
		return nil, appErrors.Clone(appErrors.ErrInvalidState,
			fmt.Sprintf("withdrawals close %s before the start; use call-out instead", s.cfg.AdvanceNotice))
	}
	return s.release(ctx, opening, req.SubstituteID, scope.UserID, models.ReasonWithdrawal, req.Reason, "")
}

// CallOut releases an assignment without notice. It is tagged separately from withdrawals.
func (s *CoverageService) CallOut(ctx context.Context, req dto.CallOutRequest, scope *models.RequestScope) (*models.CoverageOpening, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid call-out payload")
	}
	opening, err := s.loadHeldBy(ctx, req.JobID, req.SubstituteID, scope)
	if err != nil {
		return nil, err
	}
	return s.release(ctx, opening, req.SubstituteID, scope.UserID, models.ReasonCallOut, req.Reason, req.Notes)
}

// Complete closes a claimed opening, records the ledger entry and rotates the assignee to the back.
func (s *CoverageService) Complete(ctx context.Context, id string, scope *models.RequestScope) (*models.CoverageLogEntry, error) {
	if !scope.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can complete assignments")
	}
	opening, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if opening.Status != models.OpeningStatusClaimed || opening.AssigneeID == nil {
		return nil, appErrors.ErrNotClaimed
	}
	entry, err := s.ledger.RecordCompletion(ctx, opening, scope.UserID)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTransition(string(models.OpeningStatusClaimed), string(models.OpeningStatusCompleted), string(models.ReasonComplete))
	return entry, nil
}

// Cancel withdraws an open opening.
func (s *CoverageService) Cancel(ctx context.Context, id string, scope *models.RequestScope) (*models.CoverageOpening, error) {
	if !scope.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can cancel openings")
	}
	opening, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if opening.Status != models.OpeningStatusOpen {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("cannot cancel an opening that is %s", opening.Status))
	}
	if err := s.transition(ctx, opening, repository.OpeningTransition{
		From:  []models.OpeningStatus{models.OpeningStatusOpen},
		To:    models.OpeningStatusCanceled,
		Event: models.OpeningEvent{ActorID: scope.UserID, ReasonTag: models.ReasonCancel},
	}); err != nil {
		return nil, err
	}
	return opening, nil
}

func (s *CoverageService) loadHeldBy(ctx context.Context, openingID, assigneeID string, scope *models.RequestScope) (*models.CoverageOpening, error) {
	if !scope.ActsFor(assigneeID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot release another staff member's assignment")
	}
	opening, err := s.load(ctx, openingID)
	if err != nil {
		return nil, err
	}
	if opening.Status != models.OpeningStatusRequested && opening.Status != models.OpeningStatusClaimed {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("cannot release an opening that is %s", opening.Status))
	}
	if !opening.IsAssignee(assigneeID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assignee can release this opening")
	}
	return opening, nil
}

// release returns a held opening to open and offers it again without the releasing member.
func (s *CoverageService) release(ctx context.Context, opening *models.CoverageOpening, assigneeID, actorID string, tag models.ReasonTag, reason, notes string) (*models.CoverageOpening, error) {
	held := opening.Status
	if err := s.transition(ctx, opening, repository.OpeningTransition{
		From:          []models.OpeningStatus{models.OpeningStatusRequested, models.OpeningStatusClaimed},
		To:            models.OpeningStatusOpen,
		Assignee:      assigneeID,
		ClearAssignee: true,
		Event:         models.OpeningEvent{ActorID: actorID, ReasonTag: tag, Reason: reason, Notes: notes},
	}); err != nil {
		return nil, err
	}
	if opening.Kind == models.OpeningKindLongTerm && held == models.OpeningStatusClaimed {
		s.setStaffStatus(ctx, assigneeID, models.StaffStatusFree)
	}
	s.logger.Info("opening released",
		zap.String("opening_id", opening.ID), zap.String("assignee_id", assigneeID), zap.String("reason_tag", string(tag)))

	if _, err := s.rotation.Offer(ctx, opening, DefaultOfferMode(opening.Kind), assigneeID); err != nil {
		s.logger.Warn("re-offer failed", zap.String("opening_id", opening.ID), zap.Error(err))
	}
	return opening, nil
}

// transition applies a guarded change and mirrors it onto the in-memory opening. A lost guard
// means the opening moved underneath the caller.
func (s *CoverageService) transition(ctx context.Context, opening *models.CoverageOpening, t repository.OpeningTransition) error {
	t.OpeningID = opening.ID
	t.Event.FromStatus = opening.Status
	t.Event.ToStatus = t.To
	applied, err := s.openings.Transition(ctx, t)
	if err != nil {
		return appErrors.Internal(err, "failed to update opening")
	}
	if !applied {
		return appErrors.Clone(appErrors.ErrInvalidState, "opening changed concurrently; refresh and retry")
	}
	s.metrics.RecordTransition(string(opening.Status), string(t.To), string(t.Event.ReasonTag))
	opening.Status = t.To
	if t.ClearAssignee {
		opening.AssigneeID = nil
	}
	opening.UpdatedAt = s.now().UTC()
	return nil
}

// open stores a new opening, rejecting an occupied slot, then offers it. Offer failures are logged.
func (s *CoverageService) open(ctx context.Context, opening *models.CoverageOpening, mode models.OfferMode) ([]models.CoverageOffer, error) {
	if !opening.EndTime.After(opening.StartTime) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end time must be after start time")
	}
	existing, err := s.openings.FindActiveBySlot(ctx, opening.ClassID, opening.Date, opening.Period)
	switch {
	case err == nil && existing != nil:
		return nil, appErrors.Clone(appErrors.ErrDuplicate, fmt.Sprintf("opening %s already covers this class period", existing.ID))
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Internal(err, "failed to check for duplicate openings")
	}
	if err := s.openings.Create(ctx, opening); err != nil {
		if errors.Is(err, repository.ErrDuplicateSlot) {
			return nil, appErrors.ErrDuplicate
		}
		return nil, appErrors.Internal(err, "failed to create opening")
	}
	s.logger.Info("opening created",
		zap.String("opening_id", opening.ID), zap.String("class_id", opening.ClassID),
		zap.String("kind", string(opening.Kind)), zap.Bool("urgent", opening.Urgent))

	offers, err := s.rotation.Offer(ctx, opening, mode)
	if err != nil {
		s.logger.Warn("offer failed", zap.String("opening_id", opening.ID), zap.Error(err))
		return nil, nil
	}
	return offers, nil
}

func (s *CoverageService) buildOpening(teacher *models.StaffMember, period models.ClassPeriod, date time.Time, kind models.OpeningKind, urgent bool, actorID string) (*models.CoverageOpening, error) {
	start, err := atClock(date, period.StartTime, s.cfg.Location)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid start time")
	}
	end, err := atClock(date, period.EndTime, s.cfg.Location)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid end time")
	}
	className := period.ClassName
	if className == "" {
		className = period.ClassID
	}
	return &models.CoverageOpening{
		ClassID:      period.ClassID,
		ClassName:    className,
		TeacherID:    teacher.ID,
		Department:   teacher.Department,
		DistrictCode: teacher.DistrictCode,
		SchoolCode:   teacher.SchoolCode,
		Date:         calendarDate(date),
		Period:       period.Period,
		StartTime:    start,
		EndTime:      end,
		Kind:         kind,
		Urgent:       urgent,
		Status:       models.OpeningStatusOpen,
		CreatedBy:    actorID,
	}, nil
}

// loadVisible hides other schools' openings from non-admins as if they did not exist.
func (s *CoverageService) loadVisible(ctx context.Context, id string, scope *models.RequestScope) (*models.CoverageOpening, error) {
	opening, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !scope.IsAdmin() && (scope == nil || opening.SchoolCode != scope.SchoolCode) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "opening not found")
	}
	return opening, nil
}

func (s *CoverageService) load(ctx context.Context, id string) (*models.CoverageOpening, error) {
	opening, err := s.openings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "opening not found")
		}
		return nil, appErrors.Internal(err, "failed to load opening")
	}
	return opening, nil
}

func (s *CoverageService) loadStaff(ctx context.Context, id, notFound string) (*models.StaffMember, error) {
	member, err := s.staff.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, notFound)
		}
		return nil, appErrors.Internal(err, "failed to load staff member")
	}
	return member, nil
}

func (s *CoverageService) setStaffStatus(ctx context.Context, id string, status models.StaffStatus) {
	if err := s.staff.SetStatus(ctx, id, status); err != nil {
		s.logger.Error("failed to update staff status",
			zap.String("staff_id", id), zap.String("status", string(status)), zap.Error(err))
	}
}

func containsStaff(members []models.StaffMember, id string) bool {
	for _, m := range members {
		if m.ID == id {
			return true
		}
	}
	return false
}

// atClock places an HH:MM clock time on the calendar day of date in loc.
func atClock(date time.Time, clock string, loc *time.Location) (time.Time, error) {
	parsed, err := time.Parse(dto.ClockLayout, clock)
	if err != nil {
		return time.Time{}, err
	}
	d := date.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), parsed.Hour(), parsed.Minute(), 0, 0, loc), nil
}

// calendarDate strips the clock and zone so DATE columns receive the local calendar day.
func calendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
