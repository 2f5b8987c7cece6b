package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/example/leaveflow/internal/application"
	"github.com/example/leaveflow/internal/ledger"
)

type leaveServiceStub struct {
	leaveService
	submitted application.SubmitLeaveParams
	decided   string
	err       error
}

func (s *leaveServiceStub) Submit(ctx context.Context, params application.SubmitLeaveParams) (application.LeaveResult, error) {
	s.submitted = params
	if s.err != nil {
		return application.LeaveResult{}, s.err
	}
	return application.LeaveResult{Request: application.LeaveRequest{ID: "leave-1", StartDate: params.Input.StartDate, EndDate: params.Input.EndDate}, Balance: 20}, nil
}

func (s *leaveServiceStub) Approve(ctx context.Context, principal application.Principal, requestID string) (application.LeaveResult, error) {
	s.decided = "approve:" + requestID
	return application.LeaveResult{}, s.err
}

func TestLeaveHandlerSubmitNormalisesInput(t *testing.T) {
	t.Parallel()

	stub := &leaveServiceStub{}
	handler := NewLeaveHandler(stub, discardLogger())

	body := `{"start_date":"2024-06-03","end_date":"2024-06-07","leave_type":" Annual ","reason":"  trip  "}`
	req := httptest.NewRequest(http.MethodPost, "/leave-requests", strings.NewReader(body))
	req = req.WithContext(ContextWithPrincipal(req.Context(), application.Principal{UserID: "alice", Role: application.RoleEmployee}))
	rec := httptest.NewRecorder()
	handler.Submit(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	input := stub.submitted.Input
	if input.LeaveType != application.LeaveAnnual || input.Reason != "trip" || !input.StartDate.Equal(ledger.MustParseDate("2024-06-03")) {
		t.Fatalf("unexpected input %+v", input)
	}
	if stub.submitted.Principal.UserID != "alice" {
		t.Fatalf("expected principal to be forwarded, got %+v", stub.submitted.Principal)
	}
	if !strings.Contains(rec.Body.String(), `"days":5`) || !strings.Contains(rec.Body.String(), `"balance":20`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestLeaveHandlerMapsInsufficientBalance(t *testing.T) {
	t.Parallel()

	stub := &leaveServiceStub{err: &application.InsufficientBalanceError{Required: 3, Available: 2}}
	handler := NewLeaveHandler(stub, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/leave-requests", strings.NewReader(`{"start_date":"2024-06-10","end_date":"2024-06-12","leave_type":"annual","reason":"x"}`))
	rec := httptest.NewRecorder()
	handler.Submit(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	for _, want := range []string{`"error_code":"INSUFFICIENT_BALANCE"`, `"required":3`, `"available":2`} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Fatalf("expected %s in %s", want, rec.Body.String())
		}
	}
}

func TestLeaveHandlerDecisionsUsePathID(t *testing.T) {
	t.Parallel()

	stub := &leaveServiceStub{err: application.ErrInvalidState}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /leave-requests/{id}/approve", NewLeaveHandler(stub, discardLogger()).Approve)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/leave-requests/leave-7/approve", nil))

	if stub.decided != "approve:leave-7" {
		t.Fatalf("expected decision on leave-7, got %q", stub.decided)
	}
	if rec.Code != http.StatusConflict || !strings.Contains(rec.Body.String(), "INVALID_STATE") {
		t.Fatalf("expected 409 INVALID_STATE, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestLeaveHandlerWithoutService(t *testing.T) {
	t.Parallel()

	var handler *LeaveHandler
	rec := httptest.NewRecorder()
	handler.Approve(rec, httptest.NewRequest(http.MethodPost, "/leave-requests/x/approve", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	NewLeaveHandler(nil, nil).Calendar(rec, httptest.NewRequest(http.MethodGet, "/calendar", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
