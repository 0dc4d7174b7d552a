package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/hackgods/driving-lesson-scheduling/internal/api"
	"github.com/hackgods/driving-lesson-scheduling/internal/appointment"
	"github.com/hackgods/driving-lesson-scheduling/internal/logging"
)

// SimConfig drives a booking storm against a running api-server. Few dates and many workers
// produce overlapping requests; the run ends by checking the schedule for double bookings.
type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	Students     int
	Days         int
	BookingRatio float64
	ReadRatio    float64
}

type student struct {
	ID   string
	Name string
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	pick := func(pct int) time.Duration {
		i := len(latencies) * pct / 100
		if i >= len(latencies) {
			i = len(latencies) - 1
		}
		return latencies[i]
	}
	return sum / time.Duration(len(latencies)), pick(50), pick(95), latencies[len(latencies)-1]
}

type Metrics struct {
	Booking      OperationMetrics
	Availability OperationMetrics
	History      OperationMetrics
	Agenda       OperationMetrics
}

type Simulator struct {
	config   SimConfig
	students []student
	dates    []string
	client   *http.Client
	logger   *slog.Logger
	metrics  Metrics
}

func main() {
	logger := logging.New("simulate", os.Getenv("APP_ENV"))

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}
	logger.Info("simulator starting",
		"duration", cfg.Duration, "workers", cfg.Workers, "students", cfg.Students, "days", cfg.Days)

	sim := newSimulator(cfg, logger)
	sim.Run()
	sim.PrintReport()

	doubles, err := sim.CheckDoubleBookings(context.Background())
	if err != nil {
		logger.Error("schedule check failed", "err", err)
		os.Exit(1)
	}
	if len(doubles) > 0 {
		for _, d := range doubles {
			fmt.Println("DOUBLE BOOKING:", d)
		}
		os.Exit(2)
	}
	fmt.Println("no double bookings found")
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		Students:     getInt("SIM_STUDENTS", 50),
		Days:         getInt("SIM_DAYS", 3),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.6),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.4),
	}

	total := cfg.BookingRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Students <= 0 || cfg.Days <= 0 {
		return fmt.Errorf("SIM_STUDENTS and SIM_DAYS must be > 0")
	}
	return nil
}

func newSimulator(cfg SimConfig, logger *slog.Logger) *Simulator {
	faker := gofakeit.New(0)
	students := make([]student, cfg.Students)
	for i := range students {
		students[i] = student{ID: faker.UUID(), Name: faker.Name()}
	}

	// Start tomorrow and skip Saturdays so the default policy accepts every date.
	var dates []string
	for d := time.Now().AddDate(0, 0, 1); len(dates) < cfg.Days; d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday {
			continue
		}
		dates = append(dates, d.Format(appointment.DateLayout))
	}

	return &Simulator{
		config:   cfg,
		students: students,
		dates:    dates,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if rng.Float64() < s.config.BookingRatio {
			s.doBooking(ctx, rng)
			continue
		}
		switch rng.Intn(3) {
		case 0:
			s.doAvailability(ctx, rng)
		case 1:
			s.doHistory(ctx, rng)
		case 2:
			s.doAgenda(ctx)
		}
	}
}

// randomSlot picks a half-hour aligned slot inside opening hours.
func (s *Simulator) randomSlot(rng *rand.Rand) (date, start, end string) {
	startMin := 8*60 + rng.Intn(22)*30
	length := (1 + rng.Intn(4)) * 30
	if startMin+length > 20*60 {
		length = 20*60 - startMin
	}
	endMin := startMin + length
	return s.dates[rng.Intn(len(s.dates))],
		fmt.Sprintf("%02d:%02d", startMin/60, startMin%60),
		fmt.Sprintf("%02d:%02d", endMin/60, endMin%60)
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	st := s.students[rng.Intn(len(s.students))]
	date, start, end := s.randomSlot(rng)

	body, _ := json.Marshal(api.CreateAppointmentRequest{Date: date, StartTime: start, EndTime: end})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/appointments", bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.HeaderUserID, st.ID)
	req.Header.Set(api.HeaderUserName, st.Name)
	req.Header.Set(api.HeaderUserRole, string(appointment.RoleStudent))

	began := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(began)

	success, conflict := false, false
	if err == nil {
		resp.Body.Close()
		success = resp.StatusCode == http.StatusCreated
		conflict = resp.StatusCode == http.StatusConflict
	}
	if ctx.Err() == nil {
		s.metrics.Booking.Record(latency, success, conflict)
	}
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	date, start, end := s.randomSlot(rng)
	s.get(ctx, &s.metrics.Availability,
		fmt.Sprintf("/appointments/availability?date=%s&start=%s&end=%s", date, start, end))
}

func (s *Simulator) doHistory(ctx context.Context, rng *rand.Rand) {
	st := s.students[rng.Intn(len(s.students))]
	s.get(ctx, &s.metrics.History, "/students/"+st.ID+"/appointments")
}

func (s *Simulator) doAgenda(ctx context.Context) {
	s.get(ctx, &s.metrics.Agenda, "/teachers/"+appointment.DefaultTeacher.ID+"/appointments/upcoming")
}

func (s *Simulator) get(ctx context.Context, om *OperationMetrics, path string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+path, nil)
	if err != nil {
		return
	}

	began := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(began)

	success := false
	if err == nil {
		resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}
	if ctx.Err() == nil {
		om.Record(latency, success, false)
	}
}

// CheckDoubleBookings fetches the full schedule and reports every colliding pair.
func (s *Simulator) CheckDoubleBookings(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+"/appointments?order=asc", nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list appointments: status %d", resp.StatusCode)
	}

	var list api.AppointmentListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode appointments: %w", err)
	}
	return findDoubleBookings(list.Appointments), nil
}

func findDoubleBookings(records []appointment.Appointment) []string {
	var out []string
	for i := range records {
		for j := i + 1; j < len(records); j++ {
			if appointment.Collides(records[i].Slot(), records[j].Slot()) {
				out = append(out, fmt.Sprintf("%s %s-%s (%s) overlaps %s-%s (%s)",
					records[i].Date, records[i].StartTime, records[i].EndTime, records[i].ID,
					records[j].StartTime, records[j].EndTime, records[j].ID))
			}
		}
	}
	return out
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Dates: %s\n", strings.Join(s.dates, ", "))
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Availability", &s.metrics.Availability)
	printOperationReport("Student history", &s.metrics.History)
	printOperationReport("Teacher agenda", &s.metrics.Agenda)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	avg, p50, p95, max := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s max=%s\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond),
		p95.Round(time.Millisecond), max.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
