package appointment

import (
	"context"
	"log/slog"
	"sync"
)

// LocalLocker serializes bookings inside one process.
type LocalLocker struct {
	mu sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{}
}

func (l *LocalLocker) WithLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

// LogPublisher writes booking events to the structured log. It is the default when no
// broker is configured.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) Publish(_ context.Context, ev Event) error {
	p.Logger.Info("booking event",
		"type", ev.Type, "id", ev.Appointment.ID,
		"student_id", ev.Appointment.StudentID, "date", ev.Appointment.Date)
	return nil
}
