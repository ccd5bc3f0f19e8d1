package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/coverage-api/internal/dto"
	"github.com/noah-isme/coverage-api/internal/models"
	appErrors "github.com/noah-isme/coverage-api/pkg/errors"
)

type memCacheRepo struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemCacheRepo() *memCacheRepo {
	return &memCacheRepo{items: map[string][]byte{}}
}

func (m *memCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = raw
	return nil
}

func (m *memCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.items {
		if strings.HasPrefix(key, prefix) {
			delete(m.items, key)
		}
	}
	return nil
}

func ledgerEntry(date string, schoolCode string, amount string, status models.LogStatus) models.CoverageLogEntry {
	d, _ := time.Parse(dto.DateLayout, date)
	return models.CoverageLogEntry{
		AssigneeID: sub1ID,
		SchoolCode: schoolCode,
		Date:       d,
		Amount:     decimal.RequireFromString(amount),
		Status:     status,
	}
}

func TestSummarizeEarningsAggregatesWindows(t *testing.T) {
	entries := []models.CoverageLogEntry{
		ledgerEntry("2024-02-15", "SCH-1", "50", models.LogStatusPending),
		ledgerEntry("2024-02-12", "SCH-2", "30", models.LogStatusVerified),
		ledgerEntry("2024-02-11", "SCH-1", "20", models.LogStatusPaid),
		ledgerEntry("2024-01-20", "SCH-2", "100", models.LogStatusPaid),
		ledgerEntry("2023-12-01", "SCH-1", "7", models.LogStatusPaid),
		ledgerEntry("2024-02-16", "SCH-1", "999", models.LogStatusPending),
	}

	summary := SummarizeEarnings(sub1ID, entries, fixedNow)

	assert.Equal(t, "2024-02-15", summary.AsOf)
	assert.Equal(t, 5, summary.TotalJobs)
	assert.True(t, decimal.NewFromInt(50).Equal(summary.Today))
	assert.True(t, decimal.NewFromInt(80).Equal(summary.Week), "week starts Monday 2024-02-12")
	assert.True(t, decimal.NewFromInt(100).Equal(summary.Month))
	assert.True(t, decimal.NewFromInt(200).Equal(summary.YearToDate))
	assert.True(t, decimal.NewFromInt(80).Equal(summary.PendingAmount))
	assert.True(t, decimal.NewFromInt(127).Equal(summary.PaidAmount))

	require.Len(t, summary.BreakdownBySchool, 2)
	assert.Equal(t, "SCH-2", summary.BreakdownBySchool[0].SchoolCode)
	assert.Equal(t, 2, summary.BreakdownBySchool[0].Jobs)
	assert.True(t, decimal.NewFromInt(130).Equal(summary.BreakdownBySchool[0].Amount))
	assert.Equal(t, 3, summary.BreakdownBySchool[1].Jobs)
}

func TestSummarizeEarningsEmpty(t *testing.T) {
	summary := SummarizeEarnings(sub1ID, nil, fixedNow)
	assert.Equal(t, 0, summary.TotalJobs)
	assert.True(t, summary.YearToDate.IsZero())
	assert.NotNil(t, summary.BreakdownBySchool)
}

func newEarningsHarness(t *testing.T) (*EarningsService, *memLedger) {
	t.Helper()
	openings := newMemOpenings()
	ledger := newMemLedger(openings)
	cache := NewCacheService(newMemCacheRepo(), nil, time.Minute, zap.NewNop(), true)
	svc := NewEarningsService(ledger, newMemStaff(openings, defaultRoster()...), cache, nil,
		EarningsConfig{DefaultRate: decimal.NewFromInt(25)}, nil, zap.NewNop())
	svc.now = func() time.Time { return fixedNow }
	return svc, ledger
}

func TestSummarizeIsCachedAndInvalidatedOnMutation(t *testing.T) {
	svc, ledger := newEarningsHarness(t)
	entry := ledgerEntry("2024-02-14", "SCH-1", "40", models.LogStatusPending)
	entry.ID = "log-1"
	ledger.add(entry)

	first, err := svc.Summarize(context.Background(), sub1ID, "", subScope(sub1ID))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(40).Equal(first.PendingAmount))

	second, err := svc.Summarize(context.Background(), sub1ID, "2024-02-15", subScope(sub1ID))
	require.NoError(t, err)
	assert.Equal(t, 1, ledger.listCalls())
	assert.True(t, first.PendingAmount.Equal(second.PendingAmount))

	_, err = svc.Verify(context.Background(), "log-1", adminScope())
	require.NoError(t, err)
	_, err = svc.MarkPaid(context.Background(), "log-1", dto.MarkPaidRequest{PaymentRef: "PAY-1"}, adminScope())
	require.NoError(t, err)

	third, err := svc.Summarize(context.Background(), sub1ID, "", subScope(sub1ID))
	require.NoError(t, err)
	assert.Equal(t, 2, ledger.listCalls())
	assert.True(t, decimal.NewFromInt(40).Equal(third.PaidAmount))
	assert.True(t, third.PendingAmount.IsZero())
}

func TestSummarizeScopesToSelf(t *testing.T) {
	svc, _ := newEarningsHarness(t)

	_, err := svc.Summarize(context.Background(), sub2ID, "", subScope(sub1ID))
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Summarize(context.Background(), sub2ID, "15/02/2024", adminScope())
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	summary, err := svc.Summarize(context.Background(), "", "", subScope(sub1ID))
	require.NoError(t, err)
	assert.Equal(t, sub1ID, summary.AssigneeID)
}

func TestLedgerStatusOrder(t *testing.T) {
	svc, ledger := newEarningsHarness(t)
	entry := ledgerEntry("2024-02-14", "SCH-1", "40", models.LogStatusPending)
	entry.ID = "log-1"
	ledger.add(entry)

	_, err := svc.MarkPaid(context.Background(), "log-1", dto.MarkPaidRequest{PaymentRef: "PAY-1"}, adminScope())
	assert.True(t, errors.Is(err, appErrors.ErrInvalidState), "pending entries cannot be paid")

	overridden, err := svc.OverrideAmount(context.Background(), "log-1", dto.OverrideAmountRequest{Amount: decimal.NewFromInt(45)}, adminScope())
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(45).Equal(overridden.Amount))

	verified, err := svc.Verify(context.Background(), "log-1", adminScope())
	require.NoError(t, err)
	assert.Equal(t, models.LogStatusVerified, verified.Status)
	require.NotNil(t, verified.VerifiedBy)
	assert.Equal(t, adminID, *verified.VerifiedBy)

	_, err = svc.Verify(context.Background(), "log-1", adminScope())
	assert.True(t, errors.Is(err, appErrors.ErrInvalidState))
	_, err = svc.OverrideAmount(context.Background(), "log-1", dto.OverrideAmountRequest{Amount: decimal.NewFromInt(50)}, adminScope())
	assert.True(t, errors.Is(err, appErrors.ErrInvalidState))

	paid, err := svc.MarkPaid(context.Background(), "log-1", dto.MarkPaidRequest{PaymentRef: "PAY-1"}, adminScope())
	require.NoError(t, err)
	assert.Equal(t, models.LogStatusPaid, paid.Status)

	_, err = svc.MarkPaid(context.Background(), "log-1", dto.MarkPaidRequest{PaymentRef: "PAY-2"}, adminScope())
	assert.True(t, errors.Is(err, appErrors.ErrInvalidState))
	stored, _ := ledger.FindByID(context.Background(), "log-1")
	assert.Equal(t, "PAY-1", *stored.PaymentRef)
}

func TestLedgerMutationsRequireAdmin(t *testing.T) {
	svc, _ := newEarningsHarness(t)

	_, err := svc.Verify(context.Background(), "log-1", subScope(sub1ID))
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	_, err = svc.Verify(context.Background(), "missing", adminScope())
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	_, err = svc.OverrideAmount(context.Background(), "log-1", dto.OverrideAmountRequest{Amount: decimal.NewFromInt(-1)}, adminScope())
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	_, _, err = svc.History(context.Background(), models.CoverageLogFilter{}, subScope(sub1ID))
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestHistoryDefaultsToCallerSchool(t *testing.T) {
	svc, ledger := newEarningsHarness(t)
	ledger.add(ledgerEntry("2024-02-14", "SCH-1", "40", models.LogStatusPending))
	ledger.add(ledgerEntry("2024-02-14", "SCH-2", "40", models.LogStatusPending))

	entries, page, err := svc.History(context.Background(), models.CoverageLogFilter{}, adminScope())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 1, page.TotalCount)
}
