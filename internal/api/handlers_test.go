package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hackgods/driving-lesson-scheduling/internal/appointment"
	"github.com/hackgods/driving-lesson-scheduling/internal/storage"
)

var testNow = time.Date(2025, 4, 16, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, checks ...ReadyCheck) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	repo := appointment.NewRepository(storage.NewMemoryStore(), appointment.RepositoryOptions{
		Seed:     appointment.DefaultSeed(100),
		UnitRate: 100,
		Logger:   logger,
	})
	if _, err := repo.Load(context.Background()); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	svc := appointment.NewService(repo, nil, nil, appointment.ServiceConfig{
		UnitRate: 100,
		Policy:   appointment.Policy{OpeningTime: "08:00", ClosingTime: "20:00", RejectPastDates: true},
		Location: time.UTC,
		Now:      func() time.Time { return testNow },
	}, logger)

	return NewRouter(RouterConfig{Service: svc, Checks: checks, Logger: logger, Env: "test"})
}

func do(t *testing.T, h http.Handler, method, path string, body any, role string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if role != "" {
		req.Header.Set(HeaderUserID, "x")
		req.Header.Set(HeaderUserName, "Student X")
		req.Header.Set(HeaderUserRole, role)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

func TestCreateAppointment_BookAndConflict(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/appointments", CreateAppointmentRequest{Date: "2025-04-20", StartTime: "09:00", EndTime: "10:00"}, "student")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	created := decode[appointment.Appointment](t, rec)
	if created.StudentID != "x" || created.Duration != 1 || created.Cost != 100 {
		t.Fatalf("created = %+v", created)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing X-Request-ID header")
	}

	rec = do(t, h, http.MethodPost, "/appointments", CreateAppointmentRequest{Date: "2025-04-20", StartTime: "09:30", EndTime: "10:30"}, "student")
	if rec.Code != http.StatusConflict {
		t.Fatalf("overlap status = %d, want 409", rec.Code)
	}
	if e := decode[ErrorResponse](t, rec); e.Error != "slot_unavailable" {
		t.Fatalf("error kind = %q", e.Error)
	}

	rec = do(t, h, http.MethodPost, "/appointments", CreateAppointmentRequest{Date: "2025-04-20", StartTime: "10:00", EndTime: "11:00"}, "student")
	if rec.Code != http.StatusCreated {
		t.Fatalf("back-to-back status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestCreateAppointment_ErrorStatuses(t *testing.T) {
	h := newTestServer(t)

	cases := []struct {
		name   string
		body   any
		role   string
		status int
		kind   string
	}{
		{"teacher", CreateAppointmentRequest{Date: "2025-04-20", StartTime: "09:00", EndTime: "10:00"}, "teacher", http.StatusForbidden, "unauthorized"},
		{"no identity", CreateAppointmentRequest{Date: "2025-04-20", StartTime: "09:00", EndTime: "10:00"}, "", http.StatusForbidden, "unauthorized"},
		{"missing date", CreateAppointmentRequest{StartTime: "09:00", EndTime: "10:00"}, "student", http.StatusBadRequest, "validation_error"},
		{"reversed", CreateAppointmentRequest{Date: "2025-04-20", StartTime: "11:00", EndTime: "10:00"}, "student", http.StatusUnprocessableEntity, "invalid_range"},
		{"after hours", CreateAppointmentRequest{Date: "2025-04-20", StartTime: "19:00", EndTime: "21:00"}, "student", http.StatusUnprocessableEntity, "policy_violation"},
		{"past", CreateAppointmentRequest{Date: "2025-04-01", StartTime: "09:00", EndTime: "10:00"}, "student", http.StatusUnprocessableEntity, "policy_violation"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/appointments", tc.body, tc.role)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tc.status, rec.Body.String())
			}
			if e := decode[ErrorResponse](t, rec); e.Error != tc.kind {
				t.Fatalf("kind = %q, want %q", e.Error, tc.kind)
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad JSON status = %d, want 400", rec.Code)
	}
}

func TestValidationErrorCarriesField(t *testing.T) {
	h := newTestServer(t)
	rec := do(t, h, http.MethodPost, "/appointments", CreateAppointmentRequest{Date: "2025-04-20", StartTime: "9:00", EndTime: "10:00"}, "student")
	e := decode[ErrorResponse](t, rec)
	if rec.Code != http.StatusBadRequest || e.Field != "startTime" {
		t.Fatalf("status = %d, error = %+v", rec.Code, e)
	}
}

func TestCheckAvailability(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/appointments/availability?date=2025-04-15&start=11:00&end=12:30", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	got := decode[AvailabilityResponse](t, rec)
	if got.Available || len(got.ConflictingIDs) != 1 || got.ConflictingIDs[0] != "1" || got.Duration != 1.5 || got.Cost != 150 {
		t.Fatalf("availability = %+v", got)
	}

	rec = do(t, h, http.MethodGet, "/appointments/availability?date=2025-04-15&start=12:00&end=13:00", nil, "")
	if got := decode[AvailabilityResponse](t, rec); !got.Available {
		t.Fatalf("12:00-13:00 should be free: %+v", got)
	}

	rec = do(t, h, http.MethodGet, "/appointments/availability?date=2025-04-15&start=12:00", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing end status = %d, want 400", rec.Code)
	}
}

func TestListAppointments(t *testing.T) {
	h := newTestServer(t)
	do(t, h, http.MethodPost, "/appointments", CreateAppointmentRequest{Date: "2025-05-03", StartTime: "09:00", EndTime: "10:00"}, "student")

	rec := do(t, h, http.MethodGet, "/appointments?order=desc", nil, "")
	list := decode[AppointmentListResponse](t, rec)
	if len(list.Appointments) != 3 || list.Appointments[0].Date != "2025-05-03" {
		t.Fatalf("desc list = %+v", list.Appointments)
	}
	if list.Totals.Lessons != 3 || list.Totals.Hours != 4 || list.Totals.Cost != 400 {
		t.Fatalf("totals = %+v", list.Totals)
	}

	rec = do(t, h, http.MethodGet, "/appointments?month=5", nil, "")
	if list := decode[AppointmentListResponse](t, rec); len(list.Appointments) != 1 {
		t.Fatalf("month=5 list = %+v", list.Appointments)
	}

	for _, bad := range []string{"/appointments?month=13", "/appointments?order=sideways"} {
		if rec := do(t, h, http.MethodGet, bad, nil, ""); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s status = %d, want 400", bad, rec.Code)
		}
	}
}

func TestStudentViews(t *testing.T) {
	h := newTestServer(t)
	do(t, h, http.MethodPost, "/appointments", CreateAppointmentRequest{Date: "2025-04-20", StartTime: "09:00", EndTime: "10:00"}, "student")

	rec := do(t, h, http.MethodGet, "/students/1/appointments", nil, "")
	list := decode[AppointmentListResponse](t, rec)
	if len(list.Appointments) != 2 || list.Appointments[0].ID != "1" || list.Appointments[1].ID != "2" {
		t.Fatalf("student 1 history = %+v", list.Appointments)
	}

	rec = do(t, h, http.MethodGet, "/students/1/appointments/upcoming", nil, "")
	split := decode[UpcomingResponse](t, rec)
	// testNow is 2025-04-16 noon: lesson 1 (04-15) is past, lesson 2 (04-17) upcoming.
	if len(split.Upcoming) != 1 || split.Upcoming[0].ID != "2" || len(split.Past) != 1 || split.Past[0].ID != "1" {
		t.Fatalf("split = %+v", split)
	}

	rec = do(t, h, http.MethodGet, "/students/x/appointments", nil, "")
	if list := decode[AppointmentListResponse](t, rec); len(list.Appointments) != 1 {
		t.Fatalf("student x history = %+v", list.Appointments)
	}
}

func TestTeacherViews(t *testing.T) {
	h := newTestServer(t)
	do(t, h, http.MethodPost, "/appointments", CreateAppointmentRequest{Date: "2025-04-20", StartTime: "09:00", EndTime: "10:00"}, "student")

	rec := do(t, h, http.MethodGet, "/teachers/2/appointments", nil, "")
	list := decode[AppointmentListResponse](t, rec)
	if len(list.Appointments) != 3 || list.Appointments[0].Date != "2025-04-20" || list.Appointments[2].ID != "1" {
		t.Fatalf("teacher list not newest first: %+v", list.Appointments)
	}

	rec = do(t, h, http.MethodGet, "/teachers/2/appointments?q=student", nil, "")
	if list := decode[AppointmentListResponse](t, rec); len(list.Appointments) != 1 || list.Appointments[0].StudentID != "x" {
		t.Fatalf("q=student = %+v", list.Appointments)
	}

	rec = do(t, h, http.MethodGet, "/teachers/2/appointments/upcoming", nil, "")
	if list := decode[AppointmentListResponse](t, rec); len(list.Appointments) != 2 || list.Appointments[0].ID != "2" {
		t.Fatalf("teacher upcoming = %+v", list.Appointments)
	}

	rec = do(t, h, http.MethodGet, "/teachers/2/students", nil, "")
	students := decode[StudentsResponse](t, rec)
	if len(students.Students) != 2 || students.Students[0].Lessons != 2 || students.Students[0].Hours != 3 {
		t.Fatalf("students = %+v", students.Students)
	}
}

func TestHealth(t *testing.T) {
	h := newTestServer(t,
		ReadyCheck{Name: "store", Check: func(context.Context) error { return nil }},
		ReadyCheck{Name: "redis", Check: func(context.Context) error { return errors.New("refused") }},
	)

	if rec := do(t, h, http.MethodGet, "/health/live", nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("live status = %d", rec.Code)
	}

	rec := do(t, h, http.MethodGet, "/health/ready", nil, "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready status = %d, want 503", rec.Code)
	}
	ready := decode[ReadinessResponse](t, rec)
	if ready.Dependencies["store"] != "ok" || ready.Dependencies["redis"] != "down" {
		t.Fatalf("dependencies = %v", ready.Dependencies)
	}
}
