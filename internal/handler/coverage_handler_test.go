package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coverage-api/internal/dto"
	"github.com/noah-isme/coverage-api/internal/models"
	appErrors "github.com/noah-isme/coverage-api/pkg/errors"
)

type coverageServiceMock struct {
	opening     *models.CoverageOpening
	entry       *models.CoverageLogEntry
	err         error
	lastFilter  models.OpeningFilter
	lastAccept  dto.AcceptJobRequest
	lastCallOut dto.CallOutRequest
	lastID      string
	lastScope   *models.RequestScope
	calls       []string
}

func (m *coverageServiceMock) record(name string, scope *models.RequestScope) {
	m.calls = append(m.calls, name)
	m.lastScope = scope
}

func (m *coverageServiceMock) List(ctx context.Context, filter models.OpeningFilter, scope *models.RequestScope) ([]models.CoverageOpening, *models.Pagination, error) {
	m.record("List", scope)
	m.lastFilter = filter
	if m.err != nil {
		return nil, nil, m.err
	}
	return []models.CoverageOpening{*m.opening}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (m *coverageServiceMock) Get(ctx context.Context, id string, scope *models.RequestScope) (*dto.OpeningDetail, error) {
	m.record("Get", scope)
	m.lastID = id
	if m.err != nil {
		return nil, m.err
	}
	return &dto.OpeningDetail{CoverageOpening: *m.opening, Events: []models.OpeningEvent{}}, nil
}

func (m *coverageServiceMock) Candidates(ctx context.Context, id string, scope *models.RequestScope) ([]dto.RankedCandidate, error) {
	m.record("Candidates", scope)
	m.lastID = id
	return []dto.RankedCandidate{{Rank: 1, ID: testSubID}}, m.err
}

func (m *coverageServiceMock) CreateOpening(ctx context.Context, req dto.CreateOpeningRequest, scope *models.RequestScope) (*models.CoverageOpening, error) {
	m.record("CreateOpening", scope)
	return m.opening, m.err
}

func (m *coverageServiceMock) EmergencyAssign(ctx context.Context, req dto.EmergencyAssignRequest, scope *models.RequestScope) (*dto.EmergencyAssignResponse, error) {
	m.record("EmergencyAssign", scope)
	if m.err != nil {
		return nil, m.err
	}
	return &dto.EmergencyAssignResponse{ClassID: req.ClassID, Opening: m.opening, Mode: models.OfferModeBroadcast, OfferedTo: []string{testSubID}}, nil
}

func (m *coverageServiceMock) Accept(ctx context.Context, req dto.AcceptJobRequest, scope *models.RequestScope) (*models.CoverageOpening, error) {
	m.record("Accept", scope)
	m.lastAccept = req
	return m.opening, m.err
}

func (m *coverageServiceMock) Confirm(ctx context.Context, id string, scope *models.RequestScope) (*models.CoverageOpening, error) {
	m.record("Confirm", scope)
	m.lastID = id
	return m.opening, m.err
}

func (m *coverageServiceMock) Withdraw(ctx context.Context, req dto.WithdrawJobRequest, scope *models.RequestScope) (*models.CoverageOpening, error) {
	m.record("Withdraw", scope)
	return m.opening, m.err
}

func (m *coverageServiceMock) CallOut(ctx context.Context, req dto.CallOutRequest, scope *models.RequestScope) (*models.CoverageOpening, error) {
	m.record("CallOut", scope)
	m.lastCallOut = req
	return m.opening, m.err
}

func (m *coverageServiceMock) Complete(ctx context.Context, id string, scope *models.RequestScope) (*models.CoverageLogEntry, error) {
	m.record("Complete", scope)
	m.lastID = id
	return m.entry, m.err
}

func (m *coverageServiceMock) Cancel(ctx context.Context, id string, scope *models.RequestScope) (*models.CoverageOpening, error) {
	m.record("Cancel", scope)
	m.lastID = id
	return m.opening, m.err
}

func sampleOpening() *models.CoverageOpening {
	assignee := testSubID
	return &models.CoverageOpening{
		ID:         testJobID,
		ClassID:    "ALG-1",
		SchoolCode: "SCH-1",
		Status:     models.OpeningStatusClaimed,
		AssigneeID: &assignee,
	}
}

func TestCoverageHandlerListParsesFilter(t *testing.T) {
	mockSvc := &coverageServiceMock{opening: sampleOpening()}
	handler := NewCoverageHandler(mockSvc)

	c, w := newTestContext(t, http.MethodGet, "/coverage/openings?school=SCH-2&status=open&date=2024-02-15&page=2&page_size=5", nil, adminScope())
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "SCH-2", mockSvc.lastFilter.SchoolCode)
	assert.Equal(t, models.OpeningStatusOpen, mockSvc.lastFilter.Status)
	require.NotNil(t, mockSvc.lastFilter.Date)
	assert.Equal(t, time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), *mockSvc.lastFilter.Date)
	assert.Equal(t, 2, mockSvc.lastFilter.Page)
	assert.Equal(t, 5, mockSvc.lastFilter.PageSize)

	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.TotalCount)
}

func TestCoverageHandlerListRejectsBadDate(t *testing.T) {
	mockSvc := &coverageServiceMock{opening: sampleOpening()}
	handler := NewCoverageHandler(mockSvc)

	c, w := newTestContext(t, http.MethodGet, "/coverage/openings?date=15-02-2024", nil, adminScope())
	handler.List(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, mockSvc.calls)
}

func TestCoverageHandlerAcceptSuccess(t *testing.T) {
	mockSvc := &coverageServiceMock{opening: sampleOpening()}
	handler := NewCoverageHandler(mockSvc)

	body := dto.AcceptJobRequest{JobID: testJobID, SubstituteID: testSubID, SubstituteName: "Sam"}
	c, w := newTestContext(t, http.MethodPost, "/substitutes/accept-job", body, subScope())
	handler.Accept(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, body, mockSvc.lastAccept)
	assert.Equal(t, testSubID, mockSvc.lastScope.UserID)

	var res dto.AcceptJobResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &res))
	assert.True(t, res.Success)
	require.NotNil(t, res.Assignment)
	assert.Equal(t, testJobID, res.Assignment.ID)
}

func TestCoverageHandlerAcceptConflictIsRetryable(t *testing.T) {
	mockSvc := &coverageServiceMock{err: appErrors.ErrAlreadyClaimed}
	handler := NewCoverageHandler(mockSvc)

	body := dto.AcceptJobRequest{JobID: testJobID, SubstituteID: testSubID}
	c, w := newTestContext(t, http.MethodPost, "/substitutes/accept-job", body, subScope())
	handler.Accept(c)

	require.Equal(t, http.StatusConflict, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, "ALREADY_CLAIMED", env.Error.Code)
	assert.True(t, env.Error.Retryable)
}

func TestCoverageHandlerAcceptInvalidBody(t *testing.T) {
	mockSvc := &coverageServiceMock{}
	handler := NewCoverageHandler(mockSvc)

	c, w := newTestContext(t, http.MethodPost, "/substitutes/accept-job", `{"job_id":`, subScope())
	handler.Accept(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, mockSvc.calls)
}

func TestCoverageHandlerCallOutAndWithdrawReturnSuccess(t *testing.T) {
	mockSvc := &coverageServiceMock{opening: sampleOpening()}
	handler := NewCoverageHandler(mockSvc)

	callOut := dto.CallOutRequest{JobID: testJobID, SubstituteID: testSubID, Reason: "sick", Notes: "fever"}
	c, w := newTestContext(t, http.MethodPost, "/substitutes/call-out", callOut, subScope())
	handler.CallOut(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"success":true}}`, w.Body.String())
	assert.Equal(t, callOut, mockSvc.lastCallOut)

	withdraw := dto.WithdrawJobRequest{JobID: testJobID, SubstituteID: testSubID}
	c, w = newTestContext(t, http.MethodPost, "/substitutes/withdraw-job", withdraw, subScope())
	handler.Withdraw(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"success":true}}`, w.Body.String())
}

func TestCoverageHandlerWithdrawInsideNotice(t *testing.T) {
	mockSvc := &coverageServiceMock{err: appErrors.Clone(appErrors.ErrInvalidState, "withdrawal window closed; use call-out")}
	handler := NewCoverageHandler(mockSvc)

	withdraw := dto.WithdrawJobRequest{JobID: testJobID, SubstituteID: testSubID}
	c, w := newTestContext(t, http.MethodPost, "/substitutes/withdraw-job", withdraw, subScope())
	handler.Withdraw(c)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "INVALID_STATE", decodeEnvelope(t, w).Error.Code)
}

func TestCoverageHandlerAdminActionsUsePathID(t *testing.T) {
	mockSvc := &coverageServiceMock{opening: sampleOpening(), entry: &models.CoverageLogEntry{ID: "log-1"}}
	handler := NewCoverageHandler(mockSvc)

	c, w := newTestContext(t, http.MethodPost, "/coverage/openings/"+testJobID+"/confirm", nil, adminScope())
	c.Params = append(c.Params, param("id", testJobID))
	handler.Confirm(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, testJobID, mockSvc.lastID)

	c, w = newTestContext(t, http.MethodPost, "/coverage/openings/"+testJobID+"/complete", nil, adminScope())
	c.Params = append(c.Params, param("id", testJobID))
	handler.Complete(c)
	require.Equal(t, http.StatusCreated, w.Code)

	c, w = newTestContext(t, http.MethodPost, "/coverage/openings/"+testJobID+"/cancel", nil, adminScope())
	c.Params = append(c.Params, param("id", testJobID))
	handler.Cancel(c)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []string{"Confirm", "Complete", "Cancel"}, mockSvc.calls)
}

func TestCoverageHandlerEmergencyAssign(t *testing.T) {
	mockSvc := &coverageServiceMock{opening: sampleOpening()}
	handler := NewCoverageHandler(mockSvc)

	c, w := newTestContext(t, http.MethodPost, "/admin/emergency-assign", dto.EmergencyAssignRequest{ClassID: "ALG-1", Broadcast: true}, adminScope())
	handler.EmergencyAssign(c)

	require.Equal(t, http.StatusCreated, w.Code)
	var res dto.EmergencyAssignResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &res))
	assert.Equal(t, "ALG-1", res.ClassID)
	assert.Equal(t, []string{testSubID}, res.OfferedTo)
}

func TestCoverageHandlerGetNotFound(t *testing.T) {
	mockSvc := &coverageServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "opening not found")}
	handler := NewCoverageHandler(mockSvc)

	c, w := newTestContext(t, http.MethodGet, "/coverage/openings/missing", nil, adminScope())
	c.Params = append(c.Params, param("id", "missing"))
	handler.Get(c)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "missing", mockSvc.lastID)
	require.NotNil(t, mockSvc.lastScope)
	assert.Equal(t, testAdminID, mockSvc.lastScope.UserID)
}
