package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/coverage-api/internal/dto"
	"github.com/noah-isme/coverage-api/internal/models"
	appErrors "github.com/noah-isme/coverage-api/pkg/errors"
)

type ledgerStore interface {
	RecordCompletion(ctx context.Context, entry *models.CoverageLogEntry, event models.OpeningEvent) (bool, error)
	FindByID(ctx context.Context, id string) (*models.CoverageLogEntry, error)
	List(ctx context.Context, filter models.CoverageLogFilter) ([]models.CoverageLogEntry, int, error)
	ListForAssignee(ctx context.Context, assigneeID string, asOf time.Time) ([]models.CoverageLogEntry, error)
	Verify(ctx context.Context, id, adminID string, at time.Time) (bool, error)
	MarkPaid(ctx context.Context, id, paymentRef string, at time.Time) (bool, error)
	OverrideAmount(ctx context.Context, id string, amount decimal.Decimal) (bool, error)
}

type rateSource interface {
	FindByID(ctx context.Context, id string) (*models.StaffMember, error)
}

// EarningsConfig tunes ledger pricing and summary caching.
type EarningsConfig struct {
	DefaultRate decimal.Decimal
	CacheTTL    time.Duration
	Location    *time.Location
}

// EarningsService owns the coverage ledger.
type EarningsService struct {
	store     ledgerStore
	staff     rateSource
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       EarningsConfig
	now       func() time.Time
}

// NewEarningsService constructs an EarningsService. A nil cache disables summary caching.
func NewEarningsService(store ledgerStore, staff rateSource, cache *CacheService, metrics *MetricsService, cfg EarningsConfig,
	validate *validator.Validate, logger *zap.Logger) *EarningsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &EarningsService{
		store:     store,
		staff:     staff,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// RecordCompletion completes a claimed opening and writes its pending ledger entry atomically.
func (s *EarningsService) RecordCompletion(ctx context.Context, opening *models.CoverageOpening, actorID string) (*models.CoverageLogEntry, error) {
	if opening.AssigneeID == nil {
		return nil, appErrors.ErrNotClaimed
	}
	assigneeID := *opening.AssigneeID

	rate := s.cfg.DefaultRate
	member, err := s.staff.FindByID(ctx, assigneeID)
	switch {
	case err == nil:
		if member.HourlyRate.Valid {
			rate = member.HourlyRate.Decimal
		}
	case !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Internal(err, "failed to load assignee rate")
	}

	hours := opening.DurationHours()
	amount := hours.Mul(rate).Round(2)
	if opening.PayAmount.Valid {
		amount = opening.PayAmount.Decimal
	}
	entry := &models.CoverageLogEntry{
		OpeningID:     opening.ID,
		AssigneeID:    assigneeID,
		SchoolCode:    opening.SchoolCode,
		Date:          opening.Date,
		DurationHours: hours,
		Rate:          rate,
		Amount:        amount,
	}
	recorded, err := s.store.RecordCompletion(ctx, entry, models.OpeningEvent{
		ActorID:    actorID,
		FromStatus: models.OpeningStatusClaimed,
		ToStatus:   models.OpeningStatusCompleted,
		ReasonTag:  models.ReasonComplete,
	})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to record completion")
	}
	if !recorded {
		return nil, appErrors.ErrNotClaimed
	}

	opening.Status = models.OpeningStatusCompleted
	s.metrics.RecordLedgerAmount(amount.InexactFloat64())
	s.invalidate(ctx, assigneeID)
	s.logger.Info("coverage completed",
		zap.String("opening_id", opening.ID), zap.String("assignee_id", assigneeID), zap.String("amount", amount.String()))
	return entry, nil
}

// Verify moves a pending entry to verified.
func (s *EarningsService) Verify(ctx context.Context, id string, scope *models.RequestScope) (*models.CoverageLogEntry, error) {
	entry, err := s.loadForAdmin(ctx, id, scope)
	if err != nil {
		return nil, err
	}
	at := s.now().UTC()
	ok, err := s.store.Verify(ctx, id, scope.UserID, at)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to verify ledger entry")
	}
	if !ok {
		return nil, invalidLedgerState(entry, models.LogStatusPending)
	}
	adminID := scope.UserID
	entry.Status = models.LogStatusVerified
	entry.VerifiedBy = &adminID
	entry.VerifiedAt = &at
	s.invalidate(ctx, entry.AssigneeID)
	return entry, nil
}

// MarkPaid moves a verified entry to paid. Paid entries are immutable.
func (s *EarningsService) MarkPaid(ctx context.Context, id string, req dto.MarkPaidRequest, scope *models.RequestScope) (*models.CoverageLogEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	entry, err := s.loadForAdmin(ctx, id, scope)
	if err != nil {
		return nil, err
	}
	at := s.now().UTC()
	ok, err := s.store.MarkPaid(ctx, id, req.PaymentRef, at)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to mark ledger entry paid")
	}
	if !ok {
		return nil, invalidLedgerState(entry, models.LogStatusVerified)
	}
	ref := req.PaymentRef
	entry.Status = models.LogStatusPaid
	entry.PaymentRef = &ref
	entry.PaidAt = &at
	s.invalidate(ctx, entry.AssigneeID)
	return entry, nil
}

// OverrideAmount replaces the amount of a pending entry.
func (s *EarningsService) OverrideAmount(ctx context.Context, id string, req dto.OverrideAmountRequest, scope *models.RequestScope) (*models.CoverageLogEntry, error) {
	if req.Amount.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must not be negative")
	}
	entry, err := s.loadForAdmin(ctx, id, scope)
	if err != nil {
		return nil, err
	}
	ok, err := s.store.OverrideAmount(ctx, id, req.Amount)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to override ledger amount")
	}
	if !ok {
		return nil, invalidLedgerState(entry, models.LogStatusPending)
	}
	s.logger.Info("ledger amount overridden",
		zap.String("log_id", id), zap.String("actor_id", scope.UserID),
		zap.String("from", entry.Amount.String()), zap.String("to", req.Amount.String()))
	entry.Amount = req.Amount
	s.invalidate(ctx, entry.AssigneeID)
	return entry, nil
}

// History lists ledger entries. Without an explicit school the caller's school is used.
func (s *EarningsService) History(ctx context.Context, filter models.CoverageLogFilter, scope *models.RequestScope) ([]models.CoverageLogEntry, *models.Pagination, error) {
	if !scope.IsAdmin() {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can read the ledger")
	}
	if filter.SchoolCode == "" {
		filter.SchoolCode = scope.SchoolCode
	}
	filter.Page, filter.PageSize = models.NormalizePage(filter.Page, filter.PageSize)
	entries, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list ledger entries")
	}
	if entries == nil {
		entries = []models.CoverageLogEntry{}
	}
	return entries, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Summarize aggregates an assignee's earnings as of a date (YYYY-MM-DD, default today).
func (s *EarningsService) Summarize(ctx context.Context, assigneeID, asOf string, scope *models.RequestScope) (*dto.EarningsSummary, error) {
	if assigneeID == "" {
		assigneeID = scope.UserID
	}
	if !scope.ActsFor(assigneeID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot read another staff member's earnings")
	}
	day := s.now().In(s.cfg.Location)
	if asOf != "" {
		parsed, err := time.ParseInLocation(dto.DateLayout, asOf, s.cfg.Location)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid as_of date")
		}
		day = parsed
	}
	day = calendarDate(day)

	key := fmt.Sprintf("earnings:%s:%s", assigneeID, day.Format(dto.DateLayout))
	var cached dto.EarningsSummary
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	entries, err := s.store.ListForAssignee(ctx, assigneeID, day)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load earnings")
	}
	summary := SummarizeEarnings(assigneeID, entries, day)
	summary.GeneratedAt = s.now().UTC()
	s.cache.Set(ctx, key, summary, s.cfg.CacheTTL)
	return &summary, nil
}

// SummarizeEarnings aggregates ledger entries dated on or before asOf. Weeks start on Monday.
func SummarizeEarnings(assigneeID string, entries []models.CoverageLogEntry, asOf time.Time) dto.EarningsSummary {
	day := calendarDate(asOf)
	weekStart := day.AddDate(0, 0, -((int(day.Weekday()) + 6) % 7))

	summary := dto.EarningsSummary{
		AssigneeID:    assigneeID,
		AsOf:          day.Format(dto.DateLayout),
		Today:         decimal.Zero,
		Week:          decimal.Zero,
		Month:         decimal.Zero,
		YearToDate:    decimal.Zero,
		PendingAmount: decimal.Zero,
		PaidAmount:    decimal.Zero,
	}
	bySchool := map[string]*dto.SchoolEarnings{}
	for _, e := range entries {
		d := calendarDate(e.Date.UTC())
		if d.After(day) {
			continue
		}
		summary.TotalJobs++
		if d.Equal(day) {
			summary.Today = summary.Today.Add(e.Amount)
		}
		if !d.Before(weekStart) {
			summary.Week = summary.Week.Add(e.Amount)
		}
		if d.Year() == day.Year() {
			summary.YearToDate = summary.YearToDate.Add(e.Amount)
			if d.Month() == day.Month() {
				summary.Month = summary.Month.Add(e.Amount)
			}
		}
		switch e.Status {
		case models.LogStatusPaid:
			summary.PaidAmount = summary.PaidAmount.Add(e.Amount)
		default:
			summary.PendingAmount = summary.PendingAmount.Add(e.Amount)
		}

		row, ok := bySchool[e.SchoolCode]
		if !ok {
			row = &dto.SchoolEarnings{SchoolCode: e.SchoolCode, Amount: decimal.Zero}
			bySchool[e.SchoolCode] = row
		}
		row.Jobs++
		row.Amount = row.Amount.Add(e.Amount)
	}

	summary.BreakdownBySchool = make([]dto.SchoolEarnings, 0, len(bySchool))
	for _, row := range bySchool {
		summary.BreakdownBySchool = append(summary.BreakdownBySchool, *row)
	}
	sort.Slice(summary.BreakdownBySchool, func(i, j int) bool {
		a, b := summary.BreakdownBySchool[i], summary.BreakdownBySchool[j]
		if cmp := a.Amount.Cmp(b.Amount); cmp != 0 {
			return cmp > 0
		}
		return a.SchoolCode < b.SchoolCode
	})
	return summary
}

func (s *EarningsService) loadForAdmin(ctx context.Context, id string, scope *models.RequestScope) (*models.CoverageLogEntry, error) {
	if !scope.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can change ledger entries")
	}
	entry, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "ledger entry not found")
		}
		return nil, appErrors.Internal(err, "failed to load ledger entry")
	}
	return entry, nil
}

func (s *EarningsService) invalidate(ctx context.Context, assigneeID string) {
	s.cache.Invalidate(ctx, fmt.Sprintf("earnings:%s:*", assigneeID))
}

func invalidLedgerState(entry *models.CoverageLogEntry, want models.LogStatus) error {
	return appErrors.Clone(appErrors.ErrInvalidState,
		fmt.Sprintf("ledger entry is %s; expected %s", entry.Status, want))
}
