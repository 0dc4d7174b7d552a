package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/hackgods/driving-lesson-scheduling/internal/app"
	"github.com/hackgods/driving-lesson-scheduling/internal/appointment"
	"github.com/hackgods/driving-lesson-scheduling/internal/config"
	"github.com/hackgods/driving-lesson-scheduling/internal/logging"
)

// seed initializes the configured store. Loading an empty store writes the default seed set;
// SEED_DEMO_STUDENTS > 0 additionally books random lessons for that many fake students over
// the next SEED_DEMO_DAYS days.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("seed", "dev").Error("config load error", "err", err)
		os.Exit(1)
	}
	logger := logging.New("seed", cfg.Env)
	logger.Info("seed starting", "backend", cfg.StorageBackend, "key", cfg.StorageKey)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = a.Close() }()

	if a.Repository.Degraded() {
		logger.Error("stored history is unreadable, refusing to seed over it")
		os.Exit(1)
	}

	students := getInt("SEED_DEMO_STUDENTS", 0)
	days := getInt("SEED_DEMO_DAYS", 14)
	perStudent := getInt("SEED_DEMO_LESSONS", 3)

	faker := gofakeit.New(uint64(time.Now().UnixNano()))
	booked, rejected, err := seedDemo(ctx, a.Service, faker, students, perStudent, days)
	if err != nil {
		logger.Error("demo booking failed", "booked", booked, "err", err)
		os.Exit(1)
	}

	logger.Info("seed complete",
		"records", len(a.Service.Appointments()), "demo_booked", booked, "demo_rejected", rejected)
}

func seedDemo(ctx context.Context, svc *appointment.Service, faker *gofakeit.Faker, students, perStudent, days int) (booked, rejected int, err error) {
	if students <= 0 || days <= 0 {
		return 0, 0, nil
	}
	today := svc.Now()

	for i := 0; i < students; i++ {
		caller := appointment.Identity{
			ID:   fmt.Sprintf("demo-%d", faker.Number(10000, 99999)),
			Name: faker.Name(),
			Role: appointment.RoleStudent,
		}
		for j := 0; j < perStudent; j++ {
			day := today.AddDate(0, 0, faker.Number(1, days))
			start := faker.Number(8, 17)
			length := faker.RandomInt([]int{30, 60, 90, 120})
			req := appointment.BookingRequest{
				Caller:    caller,
				Date:      day.Format(appointment.DateLayout),
				StartTime: fmt.Sprintf("%02d:00", start),
				EndTime:   fmt.Sprintf("%02d:%02d", start+length/60, length%60),
			}

			_, err = svc.Book(ctx, req)
			switch {
			case err == nil:
				booked++
			case errors.Is(err, appointment.ErrSlotConflict), errors.Is(err, appointment.ErrPolicy):
				rejected++
			default:
				return booked, rejected, err
			}
		}
	}
	return booked, rejected, nil
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
