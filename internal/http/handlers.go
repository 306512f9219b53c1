package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady pings the store
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if s.store == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err.Error())
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleMetrics provides request and security counters in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	sec := s.securityDetector.GetMetrics()
	tr := s.traceMiddleware.GetMetrics()

	fmt.Fprintf(w, "# HELP fintrack_uptime_seconds Time since the server started\n")
	fmt.Fprintf(w, "fintrack_uptime_seconds %.0f\n", time.Since(s.started).Seconds())
	fmt.Fprintf(w, "# HELP fintrack_requests_total Requests handled\n")
	fmt.Fprintf(w, "fintrack_requests_total %d\n", tr.TotalRequests)
	fmt.Fprintf(w, "# HELP fintrack_last_response_time_microseconds Duration of the last request\n")
	fmt.Fprintf(w, "fintrack_last_response_time_microseconds %d\n", tr.LastResponseTime)
	fmt.Fprintf(w, "# HELP fintrack_suspicious_requests_total Requests flagged by detection\n")
	fmt.Fprintf(w, "fintrack_suspicious_requests_total %d\n", sec.SuspiciousRequests)
	fmt.Fprintf(w, "fintrack_invalid_ip_attempts_total %d\n", sec.InvalidIPAttempts)

	if s.rateLimiter != nil {
		rl := s.rateLimiter.GetMetrics()
		fmt.Fprintf(w, "# HELP fintrack_rate_limit_hits_total Requests rejected by the rate limiter\n")
		fmt.Fprintf(w, "fintrack_rate_limit_hits_total %d\n", rl.TotalHits)
		fmt.Fprintf(w, "fintrack_rate_limit_clients %d\n", rl.ClientCount)
	}
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}

	items, sort, err := s.txs.List(r.Context(), owner, r.URL.Query().Get("sort"))
	if err != nil {
		s.writeError(w, r, "list transactions", err)
		return
	}
	NewJSONResponse().Body(toListJSON(items, sort)).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	fields, ok := s.parseFields(w, r)
	if !ok {
		return
	}

	t, err := s.txs.Create(r.Context(), owner, fields)
	if err != nil {
		s.writeError(w, r, "create transaction", err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", fmt.Sprintf("/transactions/%d", t.ID)).
		Body(toTransactionJSON(t)).
		Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	id, ok := parseID(r)
	if !ok {
		NotFoundError().Write(w)
		return
	}

	t, err := s.txs.Get(r.Context(), owner, id)
	if err != nil {
		s.writeError(w, r, "get transaction", err)
		return
	}
	NewJSONResponse().Body(toTransactionJSON(t)).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	id, ok := parseID(r)
	if !ok {
		NotFoundError().Write(w)
		return
	}
	fields, ok := s.parseFields(w, r)
	if !ok {
		return
	}

	t, err := s.txs.Update(r.Context(), owner, id, fields)
	if err != nil {
		s.writeError(w, r, "update transaction", err)
		return
	}
	NewJSONResponse().Body(toTransactionJSON(t)).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	id, ok := parseID(r)
	if !ok {
		NotFoundError().Write(w)
		return
	}

	if err := s.txs.Delete(r.Context(), owner, id); err != nil {
		s.writeError(w, r, "delete transaction", err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}

	summary, err := s.dash.Summarize(r.Context(), owner, r.URL.Query().Get("month"))
	if err != nil {
		s.writeError(w, r, "summarize dashboard", err)
		return
	}
	NewJSONResponse().Body(toSummaryJSON(summary)).Write(w)
}

// owner returns the authenticated owner, writing a 401 when there is none.
func (s *Server) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner, ok := auth.OwnerFromContext(r.Context())
	if !ok {
		UnauthorizedError().Write(w)
		return "", false
	}
	return owner, true
}

// parseFields reads and validates a create or update body. It writes the
// 400 or 422 response itself when the body is unusable.
func (s *Server) parseFields(w http.ResponseWriter, r *http.Request) (core.Fields, bool) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Malformed request body", log.FieldError, err.Error())
		BadRequestError(ErrMalformedBody.Error()).Write(w)
		return core.Fields{}, false
	}

	fields, err := core.ParseFields(rawFields(p))
	if err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			ValidationErrorResponse(verr).Write(w)
		} else {
			BadRequestError(err.Error()).Write(w)
		}
		return core.Fields{}, false
	}
	return fields, true
}

// writeError maps service errors onto status codes. Infrastructure errors
// are logged in full and reported to the client generically.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		ValidationErrorResponse(verr).Write(w)
	case errors.Is(err, core.ErrNotFound):
		NotFoundError().Write(w)
	case errors.Is(err, core.ErrEmptyOwner):
		UnauthorizedError().Write(w)
	case errors.Is(err, context.Canceled):
		// client went away; nothing useful to send
		w.WriteHeader(499)
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldOperation, op,
			log.FieldError, err.Error())
		InternalServerError().Write(w)
	}
}
