package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
)

const DefaultStorageKey = "dvld_appointments"

var errRepositoryNotLoaded = errors.New("repository not loaded")

// Store is the durable key-value layer the repository persists the whole record set into.
type Store interface {
	Read(ctx context.Context, key string) ([]byte, bool, error)
	Write(ctx context.Context, key string, data []byte) error
}

type RepositoryOptions struct {
	Key      string
	Seed     []Appointment
	UnitRate float64
	Logger   *slog.Logger
}

// Repository owns the in-memory record set and mirrors every mutation into the Store.
// Append is the only mutation; everything else returns copies.
type Repository struct {
	store    Store
	key      string
	seed     []Appointment
	unitRate float64
	logger   *slog.Logger

	mu       sync.RWMutex
	records  []Appointment
	loaded   bool
	degraded bool
}

func NewRepository(store Store, opts RepositoryOptions) *Repository {
	if opts.Key == "" {
		opts.Key = DefaultStorageKey
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Repository{
		store:    store,
		key:      opts.Key,
		seed:     cloneRecords(opts.Seed),
		unitRate: opts.UnitRate,
		logger:   opts.Logger.With("component", "repository", "key", opts.Key),
	}
}

// Load populates the repository. Persisted data wins; an empty store is initialized with the
// seed set. If the store cannot be read or decoded the seed set is served from memory without
// touching storage and a *PersistenceError is returned together with the records.
func (r *Repository) Load(ctx context.Context) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, found, err := r.store.Read(ctx, r.key)
	if err != nil {
		r.fallbackToSeed()
		r.logger.Error("load failed, serving seed set", "err", err)
		return cloneRecords(r.records), &PersistenceError{Op: "read", Key: r.key, Err: err}
	}

	if found {
		records, err := decodeRecords(data)
		if err != nil {
			r.fallbackToSeed()
			r.logger.Error("stored history is unreadable, serving seed set", "err", err)
			return cloneRecords(r.records), &PersistenceError{Op: "decode", Key: r.key, Err: err}
		}
		r.records = records
		r.loaded = true
		r.degraded = false
		r.warnDrift()
		r.logger.Info("history loaded", "count", len(records))
		return cloneRecords(r.records), nil
	}

	r.records = cloneRecords(r.seed)
	r.loaded = true
	r.degraded = false
	if err := r.persist(ctx, r.records); err != nil {
		r.logger.Error("seed write failed", "err", err)
		return cloneRecords(r.records), err
	}
	r.logger.Info("store empty, seed set written", "count", len(r.records))
	return cloneRecords(r.records), nil
}

// Reload replaces the in-memory set with what is currently stored. Used when several
// processes share one store and the caller holds the schedule lock.
func (r *Repository) Reload(ctx context.Context) error {
	data, found, err := r.store.Read(ctx, r.key)
	if err != nil {
		return &PersistenceError{Op: "read", Key: r.key, Err: err}
	}
	if !found {
		// nothing stored yet, so there is no history left to protect
		r.mu.Lock()
		r.degraded = false
		r.mu.Unlock()
		return nil
	}
	records, err := decodeRecords(data)
	if err != nil {
		return &PersistenceError{Op: "decode", Key: r.key, Err: err}
	}

	r.mu.Lock()
	r.records = records
	r.loaded = true
	r.degraded = false
	r.mu.Unlock()
	return nil
}

// Append adds one record and writes the full set. A failed write rolls the in-memory append
// back so memory and storage never disagree.
func (r *Repository) Append(ctx context.Context, a Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.loaded {
		return &PersistenceError{Op: "write", Key: r.key, Err: errRepositoryNotLoaded}
	}
	if r.degraded {
		// storage holds history we could not read; writing now would overwrite it
		return &PersistenceError{Op: "write", Key: r.key, Err: errors.New("stored history unavailable")}
	}

	next := make([]Appointment, len(r.records), len(r.records)+1)
	copy(next, r.records)
	next = append(next, a)

	if err := r.persist(ctx, next); err != nil {
		return err
	}
	r.records = next
	return nil
}

func (r *Repository) All() []Appointment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneRecords(r.records)
}

// Snapshot is an internally consistent copy of the record set for the availability checker.
func (r *Repository) Snapshot() []Appointment {
	return r.All()
}

func (r *Repository) ByStudent(studentID string) []Appointment {
	return ByStudent(r.All(), studentID)
}

func (r *Repository) ByTeacher(teacherID string) []Appointment {
	return ByTeacher(r.All(), teacherID)
}

// Degraded reports whether the repository is serving the seed set because stored history
// could not be read.
func (r *Repository) Degraded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.degraded
}

func (r *Repository) fallbackToSeed() {
	r.records = cloneRecords(r.seed)
	r.loaded = true
	r.degraded = true
}

func (r *Repository) persist(ctx context.Context, records []Appointment) error {
	data, err := json.Marshal(records)
	if err != nil {
		return &PersistenceError{Op: "encode", Key: r.key, Err: err}
	}
	if err := r.store.Write(ctx, r.key, data); err != nil {
		return &PersistenceError{Op: "write", Key: r.key, Err: err}
	}
	return nil
}

func (r *Repository) warnDrift() {
	if r.unitRate <= 0 {
		return
	}
	for _, a := range r.records {
		if !DerivedMatches(a, r.unitRate) {
			r.logger.Warn("stored duration or cost disagrees with derivation",
				"id", a.ID, "start", a.StartTime, "end", a.EndTime,
				"duration", a.Duration, "cost", a.Cost)
		}
	}
}

// DerivedMatches reports whether the stored duration and cost equal Derive(start, end).
func DerivedMatches(a Appointment, unitRate float64) bool {
	duration, cost, err := Derive(a.StartTime, a.EndTime, unitRate)
	if err != nil {
		return false
	}
	return duration == a.Duration && cost == a.Cost
}

func decodeRecords(data []byte) ([]Appointment, error) {
	var records []Appointment
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []Appointment{}
	}
	return records, nil
}

func cloneRecords(in []Appointment) []Appointment {
	out := make([]Appointment, len(in))
	copy(out, in)
	return out
}
