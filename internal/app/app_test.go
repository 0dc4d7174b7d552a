package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/hackgods/driving-lesson-scheduling/internal/appointment"
	"github.com/hackgods/driving-lesson-scheduling/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		Env:                "test",
		StorageBackend:     "memory",
		StorageKey:         appointment.DefaultStorageKey,
		LockBackend:        "local",
		LockTTL:            time.Second,
		UnitRate:           100,
		DefaultTeacherID:   "2",
		DefaultTeacherName: "Abed",
		Location:           time.UTC,
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func booking(date, start, end string) appointment.BookingRequest {
	return appointment.BookingRequest{
		Caller: appointment.Identity{ID: "x", Name: "Student X", Role: appointment.RoleStudent},
		Date:   date, StartTime: start, EndTime: end,
	}
}

func TestBuild_MemoryBackend(t *testing.T) {
	a, err := Build(context.Background(), testConfig(), discard())
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	if got := len(a.Service.Appointments()); got != len(appointment.DefaultSeed(100)) {
		t.Fatalf("loaded %d records, want seed set", got)
	}
	if len(a.Checks) != 1 || a.Checks[0].Name != "memory" {
		t.Fatalf("checks = %+v", a.Checks)
	}
	if _, err := a.Service.Book(context.Background(), booking("2030-01-07", "09:00", "10:00")); err != nil {
		t.Fatalf("Book error: %v", err)
	}
}

func TestBuild_SQLiteHistorySurvivesRestart(t *testing.T) {
	cfg := testConfig()
	cfg.StorageBackend = "sqlite"
	cfg.SQLitePath = filepath.Join(t.TempDir(), "lessons.db")

	first, err := Build(context.Background(), cfg, discard())
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	res, err := first.Service.Book(context.Background(), booking("2030-01-07", "09:00", "10:00"))
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	second, err := Build(context.Background(), cfg, discard())
	if err != nil {
		t.Fatalf("second Build error: %v", err)
	}
	t.Cleanup(func() { _ = second.Close() })

	found := false
	for _, r := range second.Service.Appointments() {
		if r.ID == res.Appointment.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("booking %s lost across restart", res.Appointment.ID)
	}
	if _, err := second.Service.Book(context.Background(), booking("2030-01-07", "09:30", "10:30")); !errors.Is(err, appointment.ErrSlotConflict) {
		t.Fatalf("overlap after restart err = %v, want ErrSlotConflict", err)
	}
}

func TestBuild_RedisStoreAndLockShareState(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.StorageBackend = "redis"
	cfg.LockBackend = "redis"
	cfg.RedisAddr = mr.Addr()

	a, err := Build(context.Background(), cfg, discard())
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	b, err := Build(context.Background(), cfg, discard())
	if err != nil {
		t.Fatalf("second Build error: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })

	if _, err := a.Service.Book(context.Background(), booking("2030-01-07", "09:00", "10:00")); err != nil {
		t.Fatalf("Book on a error: %v", err)
	}
	// b has a stale in-memory set but reloads under the lock before checking.
	if _, err := b.Service.Book(context.Background(), booking("2030-01-07", "09:30", "10:30")); !errors.Is(err, appointment.ErrSlotConflict) {
		t.Fatalf("Book on b err = %v, want ErrSlotConflict", err)
	}
	if mr.Exists("lock:schedule:" + appointment.DefaultStorageKey) {
		t.Fatalf("schedule lock left behind")
	}
}
