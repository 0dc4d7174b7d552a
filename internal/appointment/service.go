package appointment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/hackgods/driving-lesson-scheduling/internal/redis"
)

const EventAppointmentBooked = "APPOINTMENT_BOOKED"

// Locker serializes the availability check and the append that follows it.
type Locker interface {
	WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

// Publisher fans booking events out to other systems. Failures never fail a booking.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type Event struct {
	Type        string      `json:"type"`
	Appointment Appointment `json:"appointment"`
	OccurredAt  time.Time   `json:"occurredAt"`
}

// Policy holds the school's booking rules. Zero values disable the corresponding rule.
type Policy struct {
	OpeningTime     string
	ClosingTime     string
	ClosedWeekdays  []time.Weekday
	RejectPastDates bool
}

type ServiceConfig struct {
	UnitRate       float64
	DefaultTeacher Teacher
	Policy         Policy
	Location       *time.Location
	// ReloadBeforeBook re-reads the store inside the lock. Needed when several processes
	// write to the same store.
	ReloadBeforeBook bool
	LockName         string
	Now              func() time.Time
}

type Service struct {
	repo      *Repository
	locker    Locker
	publisher Publisher
	cfg       ServiceConfig
	logger    *slog.Logger
}

func NewService(repo *Repository, locker Locker, publisher Publisher, cfg ServiceConfig, logger *slog.Logger) *Service {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.LockName == "" {
		cfg.LockName = DefaultStorageKey
	}
	if cfg.DefaultTeacher.ID == "" {
		cfg.DefaultTeacher = DefaultTeacher
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		locker:    locker,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.With("component", "booking"),
	}
}

// Book validates a request and, if the slot is free, appends the lesson to the repository.
// Only the final append mutates state; every rejection leaves the repository untouched.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*BookingResult, error) {
	if req.Caller.Role != RoleStudent {
		return nil, &UnauthorizedError{Role: req.Caller.Role, Required: RoleStudent}
	}
	if req.Caller.ID == "" {
		return nil, &ValidationError{Field: "studentId", Reason: "is required"}
	}
	if req.Caller.Name == "" {
		return nil, &ValidationError{Field: "studentName", Reason: "is required"}
	}

	q, err := s.quote(req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	if err := s.checkPolicy(q.Slot); err != nil {
		return nil, err
	}

	teacher := Teacher{ID: req.TeacherID, Name: req.TeacherName}
	if teacher.ID == "" {
		teacher = s.cfg.DefaultTeacher
	}
	if teacher.Name == "" {
		if teacher.ID != s.cfg.DefaultTeacher.ID {
			return nil, &ValidationError{Field: "teacherName", Reason: "is required"}
		}
		teacher.Name = s.cfg.DefaultTeacher.Name
	}

	var created Appointment
	err = s.locker.WithLock(ctx, s.cfg.LockName, func(lockCtx context.Context) error {
		if s.cfg.ReloadBeforeBook || s.repo.Degraded() {
			if err := s.repo.Reload(lockCtx); err != nil {
				return err
			}
		}

		if conflicts := Conflicts(s.repo.Snapshot(), q.Slot); len(conflicts) > 0 {
			ids := make([]string, 0, len(conflicts))
			for _, c := range conflicts {
				ids = append(ids, c.ID)
			}
			return &SlotConflictError{Date: q.Slot.Date, Start: q.Slot.Start, End: q.Slot.End, ConflictingIDs: ids}
		}

		appt := Appointment{
			ID:          uuid.NewString(),
			StudentID:   req.Caller.ID,
			StudentName: req.Caller.Name,
			TeacherID:   teacher.ID,
			TeacherName: teacher.Name,
			Date:        q.Slot.Date,
			StartTime:   q.Slot.Start,
			EndTime:     q.Slot.End,
			Duration:    q.Duration,
			Cost:        q.Cost,
			CreatedAt:   s.cfg.Now().UTC(),
		}
		if err := s.repo.Append(lockCtx, appt); err != nil {
			return fmt.Errorf("append appointment: %w", err)
		}
		created = appt
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrScheduleBusy
		}
		return nil, err
	}

	s.logger.Info("lesson booked",
		"id", created.ID, "student_id", created.StudentID, "date", created.Date,
		"start", created.StartTime, "end", created.EndTime, "cost", created.Cost)
	s.publish(ctx, created)

	return &BookingResult{Appointment: created}, nil
}

// Quote describes a candidate slot: its derived duration and cost and whether it is free.
type Quote struct {
	Slot      Slot
	Duration  float64
	Cost      float64
	Available bool
	Conflicts []Appointment
}

// Quote runs the validation and availability steps of Book without booking anything.
func (s *Service) Quote(date, start, end string) (*Quote, error) {
	q, err := s.quote(date, start, end)
	if err != nil {
		return nil, err
	}
	q.Conflicts = Conflicts(s.repo.Snapshot(), q.Slot)
	q.Available = len(q.Conflicts) == 0
	return q, nil
}

func (s *Service) quote(date, start, end string) (*Quote, error) {
	if date == "" {
		return nil, &ValidationError{Field: "date", Reason: "is required"}
	}
	if start == "" {
		return nil, &ValidationError{Field: "startTime", Reason: "is required"}
	}
	if end == "" {
		return nil, &ValidationError{Field: "endTime", Reason: "is required"}
	}
	if _, err := ParseDate(date); err != nil {
		return nil, &ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
	}
	if _, err := ParseClock(start); err != nil {
		return nil, &ValidationError{Field: "startTime", Reason: "must be HH:MM"}
	}
	if _, err := ParseClock(end); err != nil {
		return nil, &ValidationError{Field: "endTime", Reason: "must be HH:MM"}
	}

	duration, cost, err := Derive(start, end, s.cfg.UnitRate)
	if err != nil {
		return nil, &ValidationError{Field: "startTime", Reason: err.Error()}
	}
	if start >= end || duration <= 0 {
		return nil, &InvalidRangeError{Start: start, End: end}
	}

	return &Quote{
		Slot:     Slot{Date: date, Start: start, End: end},
		Duration: duration,
		Cost:     cost,
	}, nil
}

func (s *Service) checkPolicy(slot Slot) error {
	p := s.cfg.Policy
	if p.OpeningTime != "" && slot.Start < p.OpeningTime {
		return &PolicyError{Rule: "starts before opening time " + p.OpeningTime, Value: slot.Start}
	}
	if p.ClosingTime != "" && slot.End > p.ClosingTime {
		return &PolicyError{Rule: "ends after closing time " + p.ClosingTime, Value: slot.End}
	}

	day, err := ParseDate(slot.Date)
	if err != nil {
		return &ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
	}
	for _, wd := range p.ClosedWeekdays {
		if day.Weekday() == wd {
			return &PolicyError{Rule: "school is closed on " + wd.String(), Value: slot.Date}
		}
	}
	if p.RejectPastDates {
		today := s.cfg.Now().In(s.cfg.Location).Format(DateLayout)
		if slot.Date < today {
			return &PolicyError{Rule: "date is in the past", Value: slot.Date}
		}
	}
	return nil
}

func (s *Service) publish(ctx context.Context, appt Appointment) {
	if s.publisher == nil {
		return
	}
	ev := Event{
		Type:        EventAppointmentBooked,
		Appointment: appt,
		OccurredAt:  s.cfg.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Error("failed to publish booking event", "id", appt.ID, "err", err)
	}
}

// Appointments returns a consistent snapshot for the query views.
func (s *Service) Appointments() []Appointment {
	return s.repo.Snapshot()
}

// Now is the service clock in the school's local calendar.
func (s *Service) Now() time.Time {
	return s.cfg.Now().In(s.cfg.Location)
}

func (s *Service) Location() *time.Location {
	return s.cfg.Location
}

func (s *Service) UnitRate() float64 {
	return s.cfg.UnitRate
}
