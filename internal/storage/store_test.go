package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/driving-lesson-scheduling/internal/config"
	"github.com/hackgods/driving-lesson-scheduling/internal/db"
)

func exerciseStore(t *testing.T, s KV) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, found, err := s.Read(ctx, "missing")
	if err != nil {
		t.Fatalf("Read missing error: %v", err)
	}
	if found {
		t.Fatalf("Read missing found = true, want false")
	}

	first := []byte(`[{"id":"1"}]`)
	if err := s.Write(ctx, "dvld_appointments", first); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	got, found, err := s.Read(ctx, "dvld_appointments")
	if err != nil || !found {
		t.Fatalf("Read after write = found %v err %v", found, err)
	}
	if !bytes.Equal(got, first) {
		t.Fatalf("Read = %s, want %s", got, first)
	}

	second := []byte(`[{"id":"1"},{"id":"2"}]`)
	if err := s.Write(ctx, "dvld_appointments", second); err != nil {
		t.Fatalf("overwrite error: %v", err)
	}
	got, _, err = s.Read(ctx, "dvld_appointments")
	if err != nil {
		t.Fatalf("Read after overwrite error: %v", err)
	}
	if !bytes.Equal(got, second) {
		t.Fatalf("Read after overwrite = %s, want %s", got, second)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	data := []byte("abc")
	if err := s.Write(context.Background(), "k", data); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	data[0] = 'x'

	got, _, _ := s.Read(context.Background(), "k")
	if string(got) != "abc" {
		t.Fatalf("stored value changed through caller slice: %q", got)
	}
	got[1] = 'y'
	again, _, _ := s.Read(context.Background(), "k")
	if string(again) != "abc" {
		t.Fatalf("stored value changed through returned slice: %q", again)
	}
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	exerciseStore(t, NewRedisStore(rdb))
}

func TestRedisStore_ReadErrorIsReported(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 200 * time.Millisecond})
	t.Cleanup(func() { _ = rdb.Close() })

	_, found, err := NewRedisStore(rdb).Read(context.Background(), "k")
	if err == nil {
		t.Fatalf("expected error from closed server")
	}
	if found {
		t.Fatalf("found = true on error")
	}
}

func TestSQLiteStore(t *testing.T) {
	gdb, err := db.OpenSQLite(filepath.Join(t.TempDir(), "lessons.db"))
	if err != nil {
		t.Fatalf("OpenSQLite error: %v", err)
	}
	t.Cleanup(func() { _ = db.CloseSQLite(gdb) })

	s := NewSQLiteStore(gdb)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate error: %v", err)
	}
	exerciseStore(t, s)

	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping error: %v", err)
	}
}

func TestPostgresStoreIntegration(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("LESSONS_TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("LESSONS_TEST_POSTGRES_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("ConnectPostgres error: %v", err)
	}
	t.Cleanup(pool.Close)

	s := NewPostgresStore(pool)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate error: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM kv_store WHERE key IN ('missing', 'dvld_appointments')`)
	})

	exerciseStore(t, s)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, closeFn, err := Open(ctx, config.Config{StorageBackend: BackendMemory}, nil)
	if err != nil {
		t.Fatalf("Open memory error: %v", err)
	}
	exerciseStore(t, s)
	_ = closeFn()

	s, closeFn, err = Open(ctx, config.Config{StorageBackend: BackendSQLite, SQLitePath: filepath.Join(t.TempDir(), "open.db")}, nil)
	if err != nil {
		t.Fatalf("Open sqlite error: %v", err)
	}
	exerciseStore(t, s)
	if err := closeFn(); err != nil {
		t.Fatalf("close sqlite: %v", err)
	}

	if _, _, err := Open(ctx, config.Config{StorageBackend: BackendRedis}, nil); err == nil {
		t.Fatalf("Open redis without client expected error")
	}
	if _, _, err := Open(ctx, config.Config{StorageBackend: "tape"}, nil); err == nil {
		t.Fatalf("Open unknown backend expected error")
	}
}
