package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/driving-lesson-scheduling/internal/appointment"
)

type handlers struct {
	svc    *appointment.Service
	logger *slog.Logger
}

func (h *handlers) createAppointment(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	res, err := h.svc.Book(r.Context(), appointment.BookingRequest{
		Caller:      IdentityFromContext(r.Context()),
		Date:        req.Date,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		TeacherID:   req.TeacherID,
		TeacherName: req.TeacherName,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, res.Appointment)
}

func (h *handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	f, ok := parseFilter(w, r)
	if !ok {
		return
	}
	f.StudentID = r.URL.Query().Get("student_id")
	f.TeacherID = r.URL.Query().Get("teacher_id")

	records := f.Apply(h.svc.Appointments())
	switch strings.ToLower(r.URL.Query().Get("order")) {
	case "":
	case "asc":
		records = appointment.SortAscending(records)
	case "desc":
		records = appointment.SortDescending(records)
	default:
		writeFieldError(w, "order", "must be asc or desc")
		return
	}

	writeList(w, records)
}

func (h *handlers) checkAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	quote, err := h.svc.Quote(q.Get("date"), q.Get("start"), q.Get("end"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	ids := make([]string, 0, len(quote.Conflicts))
	for _, c := range quote.Conflicts {
		ids = append(ids, c.ID)
	}
	writeJSON(w, http.StatusOK, AvailabilityResponse{
		Date:           quote.Slot.Date,
		StartTime:      quote.Slot.Start,
		EndTime:        quote.Slot.End,
		Available:      quote.Available,
		Duration:       quote.Duration,
		Cost:           quote.Cost,
		ConflictingIDs: ids,
	})
}

// studentAppointments is the student's history in booking order.
func (h *handlers) studentAppointments(w http.ResponseWriter, r *http.Request) {
	f, ok := parseFilter(w, r)
	if !ok {
		return
	}
	f.StudentID = chi.URLParam(r, "id")
	writeList(w, f.Apply(h.svc.Appointments()))
}

func (h *handlers) studentUpcoming(w http.ResponseWriter, r *http.Request) {
	records := appointment.ByStudent(h.svc.Appointments(), chi.URLParam(r, "id"))
	upcoming, past := appointment.SplitByTime(records, h.svc.Now(), h.svc.Location())
	writeJSON(w, http.StatusOK, UpcomingResponse{
		Upcoming: appointment.SortAscending(upcoming),
		Past:     appointment.SortDescending(past),
	})
}

// teacherAppointments lists the teacher's lessons newest first. The free-text query also
// matches student names here.
func (h *handlers) teacherAppointments(w http.ResponseWriter, r *http.Request) {
	f, ok := parseFilter(w, r)
	if !ok {
		return
	}
	f.TeacherID = chi.URLParam(r, "id")
	f.StudentName = r.URL.Query().Get("student")
	f.IncludeStudentName = true
	writeList(w, appointment.SortDescending(f.Apply(h.svc.Appointments())))
}

func (h *handlers) teacherUpcoming(w http.ResponseWriter, r *http.Request) {
	records := appointment.TeacherUpcoming(h.svc.Appointments(), chi.URLParam(r, "id"), h.svc.Now(), h.svc.Location())
	writeList(w, records)
}

func (h *handlers) teacherStudents(w http.ResponseWriter, r *http.Request) {
	records := appointment.ByTeacher(h.svc.Appointments(), chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, StudentsResponse{Students: appointment.StudentSummaries(records)})
}

func parseFilter(w http.ResponseWriter, r *http.Request) (appointment.Filter, bool) {
	var f appointment.Filter
	f.Query = strings.TrimSpace(r.URL.Query().Get("q"))

	if raw := r.URL.Query().Get("month"); raw != "" {
		m, err := strconv.Atoi(raw)
		if err != nil || m < 1 || m > 12 {
			writeFieldError(w, "month", "must be 1-12")
			return f, false
		}
		f.Month = time.Month(m)
	}
	return f, true
}

func (h *handlers) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *appointment.ValidationError

	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Details: vErr.Error(), Field: vErr.Field})
	case errors.Is(err, appointment.ErrInvalidRange):
		writeError(w, http.StatusUnprocessableEntity, "invalid_range", err.Error())
	case errors.Is(err, appointment.ErrPolicy):
		writeError(w, http.StatusUnprocessableEntity, "policy_violation", err.Error())
	case errors.Is(err, appointment.ErrSlotConflict):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, appointment.ErrScheduleBusy):
		writeError(w, http.StatusConflict, "schedule_busy", err.Error())
	case errors.Is(err, appointment.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "unauthorized", err.Error())
	case errors.Is(err, appointment.ErrPersistence):
		h.logger.Error("storage failure", "request_id", GetRequestID(r.Context()), "err", err)
		writeError(w, http.StatusServiceUnavailable, "persistence_error", "booking could not be saved, please retry")
	default:
		h.logger.Error("unhandled error", "request_id", GetRequestID(r.Context()), "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeList(w http.ResponseWriter, records []appointment.Appointment) {
	writeJSON(w, http.StatusOK, AppointmentListResponse{
		Appointments: records,
		Totals:       appointment.Total(records),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, kind, details string) {
	writeJSON(w, code, ErrorResponse{Error: kind, Details: details})
}

func writeFieldError(w http.ResponseWriter, field, reason string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Details: field + " " + reason, Field: field})
}
