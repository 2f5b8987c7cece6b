package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/leaveflow/internal/application"
	"github.com/example/leaveflow/internal/ledger"
)

type leaveService interface {
	Submit(ctx context.Context, params application.SubmitLeaveParams) (application.LeaveResult, error)
	Amend(ctx context.Context, params application.AmendLeaveParams) (application.LeaveResult, error)
	Withdraw(ctx context.Context, principal application.Principal, requestID string) (application.LeaveResult, error)
	Approve(ctx context.Context, principal application.Principal, requestID string) (application.LeaveResult, error)
	Reject(ctx context.Context, principal application.Principal, requestID string) (application.LeaveResult, error)
	ListMine(ctx context.Context, principal application.Principal) ([]application.LeaveRequest, error)
	ListAll(ctx context.Context, params application.ListAllParams) ([]application.LeaveRequest, error)
	Get(ctx context.Context, principal application.Principal, requestID string) (application.LeaveRequest, error)
	Calendar(ctx context.Context, params application.CalendarParams) ([]application.CalendarEntry, error)
}

type LeaveHandler struct {
	service   leaveService
	responder responder
	logger    *slog.Logger
}

func NewLeaveHandler(service leaveService, logger *slog.Logger) *LeaveHandler {
	base := defaultLogger(logger)
	return &LeaveHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *LeaveHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "LeaveHandler", operation, attrs...)
}

func (h *LeaveHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

// ListMine handles GET /leave-requests.
func (h *LeaveHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	requests, err := h.service.ListMine(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toLeaveListResponse(requests))
}

// ListAll handles GET /admin/leave-requests?status=.
func (h *LeaveHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	status := application.LeaveStatus(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status"))))

	requests, err := h.service.ListAll(r.Context(), application.ListAllParams{Principal: principal, Status: status})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toLeaveListResponse(requests))
}

// Get handles GET /leave-requests/{id}.
func (h *LeaveHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	request, err := h.service.Get(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, leaveRequestResponse{Request: toLeaveRequestDTO(request)})
}

// Submit handles POST /leave-requests.
func (h *LeaveHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	input, ok := h.decodeInput(w, r, "Submit")
	if !ok {
		return
	}

	result, err := h.service.Submit(r.Context(), application.SubmitLeaveParams{Principal: principal, Input: input})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toLeaveResultResponse(result))
}

// Amend handles PUT /leave-requests/{id}.
func (h *LeaveHandler) Amend(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	input, ok := h.decodeInput(w, r, "Amend")
	if !ok {
		return
	}

	result, err := h.service.Amend(r.Context(), application.AmendLeaveParams{
		Principal: principal,
		RequestID: r.PathValue("id"),
		Input:     input,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toLeaveResultResponse(result))
}

// Withdraw handles DELETE /leave-requests/{id}.
func (h *LeaveHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	result, err := h.service.Withdraw(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toLeaveResultResponse(result))
}

// Approve handles POST /leave-requests/{id}/approve.
func (h *LeaveHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "Approve", func(s leaveService) decision { return s.Approve })
}

// Reject handles POST /leave-requests/{id}/reject.
func (h *LeaveHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "Reject", func(s leaveService) decision { return s.Reject })
}

type decision func(context.Context, application.Principal, string) (application.LeaveResult, error)

func (h *LeaveHandler) decide(w http.ResponseWriter, r *http.Request, operation string, pick func(leaveService) decision) {
	if !h.ready(w) {
		return
	}
	fn := pick(h.service)
	principal, _ := PrincipalFromContext(r.Context())
	requestID := r.PathValue("id")

	result, err := fn(r.Context(), principal, requestID)
	if err != nil {
		h.log(r.Context(), operation, "principal_id", principal.UserID, "request_id", requestID).
			WarnContext(r.Context(), "decision rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toLeaveResultResponse(result))
}

// Calendar handles GET /calendar?from=&to=.
func (h *LeaveHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	query := r.URL.Query()
	fieldErrors := map[string]string{}
	from := parseDateField(fieldErrors, "from", query.Get("from"))
	to := parseDateField(fieldErrors, "to", query.Get("to"))
	if len(fieldErrors) > 0 {
		h.responder.handleServiceError(r.Context(), w, &application.ValidationError{FieldErrors: fieldErrors})
		return
	}

	entries, err := h.service.Calendar(r.Context(), application.CalendarParams{Principal: principal, From: from, To: to})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := calendarResponse{From: from.String(), To: to.String(), Entries: make([]calendarEntryDTO, 0, len(entries))}
	for _, entry := range entries {
		resp.Entries = append(resp.Entries, calendarEntryDTO{
			Date:      entry.Date.String(),
			RequestID: entry.RequestID,
			UserID:    entry.UserID,
			OwnerName: entry.OwnerName,
			LeaveType: string(entry.LeaveType),
			Status:    string(entry.Status),
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

// decodeInput reads a leave request body. Malformed dates are reported as
// field errors rather than a malformed body.
func (h *LeaveHandler) decodeInput(w http.ResponseWriter, r *http.Request, operation string) (application.LeaveRequestInput, bool) {
	var req leaveRequestBody
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(r.Context(), operation, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode leave request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return application.LeaveRequestInput{}, false
	}

	fieldErrors := map[string]string{}
	input := application.LeaveRequestInput{
		StartDate: parseDateField(fieldErrors, "start_date", req.StartDate),
		EndDate:   parseDateField(fieldErrors, "end_date", req.EndDate),
		LeaveType: application.LeaveType(strings.ToLower(strings.TrimSpace(req.LeaveType))),
		Reason:    strings.TrimSpace(req.Reason),
	}
	if len(fieldErrors) > 0 {
		h.responder.handleServiceError(r.Context(), w, &application.ValidationError{FieldErrors: fieldErrors})
		return application.LeaveRequestInput{}, false
	}
	return input, true
}

// parseDateField leaves empty values zero so the service reports them as required.
func parseDateField(fieldErrors map[string]string, field, value string) ledger.Date {
	value = strings.TrimSpace(value)
	if value == "" {
		return ledger.Date{}
	}
	d, err := ledger.ParseDate(value)
	if err != nil {
		fieldErrors[field] = field + " must be a date in YYYY-MM-DD format"
		return ledger.Date{}
	}
	return d
}

type leaveRequestBody struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	LeaveType string `json:"leave_type"`
	Reason    string `json:"reason"`
}

type leaveRequestDTO struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	OwnerName  string `json:"owner_name,omitempty"`
	OwnerEmail string `json:"owner_email,omitempty"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Days       int    `json:"days"`
	LeaveType  string `json:"leave_type"`
	Reason     string `json:"reason"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

type leaveRequestResponse struct {
	Request leaveRequestDTO `json:"request"`
}

type leaveListResponse struct {
	Requests []leaveRequestDTO `json:"requests"`
}

type leaveResultResponse struct {
	Request leaveRequestDTO `json:"request"`
	Balance int             `json:"balance"`
}

type calendarEntryDTO struct {
	Date      string `json:"date"`
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id"`
	OwnerName string `json:"owner_name"`
	LeaveType string `json:"leave_type"`
	Status    string `json:"status"`
}

type calendarResponse struct {
	From    string             `json:"from"`
	To      string             `json:"to"`
	Entries []calendarEntryDTO `json:"entries"`
}

func toLeaveRequestDTO(request application.LeaveRequest) leaveRequestDTO {
	return leaveRequestDTO{
		ID:         request.ID,
		UserID:     request.UserID,
		OwnerName:  request.OwnerName,
		OwnerEmail: request.OwnerEmail,
		StartDate:  request.StartDate.String(),
		EndDate:    request.EndDate.String(),
		Days:       request.Days(),
		LeaveType:  string(request.LeaveType),
		Reason:     request.Reason,
		Status:     string(request.Status),
		CreatedAt:  formatTimestamp(request.CreatedAt),
		UpdatedAt:  formatTimestamp(request.UpdatedAt),
	}
}

func toLeaveListResponse(requests []application.LeaveRequest) leaveListResponse {
	resp := leaveListResponse{Requests: make([]leaveRequestDTO, 0, len(requests))}
	for _, request := range requests {
		resp.Requests = append(resp.Requests, toLeaveRequestDTO(request))
	}
	return resp
}

func toLeaveResultResponse(result application.LeaveResult) leaveResultResponse {
	return leaveResultResponse{Request: toLeaveRequestDTO(result.Request), Balance: result.Balance}
}
