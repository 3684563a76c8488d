package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/greenhome-proxy/internal/infrastructure/config"
	"github.com/nerrad567/greenhome-proxy/internal/infrastructure/database"
	"github.com/nerrad567/greenhome-proxy/migrations"
)

// newTestRepo opens a migrated database with a deterministic clock that
// advances one millisecond per call.
func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "journal.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	repo := NewSQLiteRepository(db.DB)
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time {
		clock = clock.Add(time.Millisecond)
		return clock
	}
	return repo
}

func TestRecordAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	e := &Entry{
		RequestID: "req-1",
		DeviceID:  "thermostat-01",
		ServiceID: "climate",
		Method:    "set_temperature",
		Payload:   `{"target":21}`,
	}
	if err := repo.Record(ctx, e); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if e.ID == "" {
		t.Fatal("Record() did not assign an ID")
	}
	if e.Status != StatusReceived {
		t.Errorf("Status = %q, want %q", e.Status, StatusReceived)
	}

	got, err := repo.Get(ctx, e.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.RequestID != "req-1" || got.DeviceID != "thermostat-01" || got.Method != "set_temperature" {
		t.Errorf("Get() = %+v", got)
	}
	if got.Result != nil {
		t.Errorf("Result = %v, want nil", *got.Result)
	}
	if !got.ReceivedAt.Equal(e.ReceivedAt) {
		t.Errorf("ReceivedAt = %v, want %v", got.ReceivedAt, e.ReceivedAt)
	}
}

func TestRecord_Validation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		entry Entry
		want  error
	}{
		{"missing request id", Entry{DeviceID: "d"}, ErrInvalidEntry},
		{"missing device id", Entry{RequestID: "r"}, ErrInvalidEntry},
		{"bad status", Entry{RequestID: "r", DeviceID: "d", Status: "lost"}, ErrInvalidStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.entry
			if err := repo.Record(ctx, &e); !errors.Is(err, tt.want) {
				t.Errorf("Record() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSetStatus(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	e := &Entry{RequestID: "req-1", DeviceID: "d1"}
	if err := repo.Record(ctx, e); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if err := repo.SetStatus(ctx, e.ID, StatusFailed, "mqtt: not connected"); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	got, err := repo.Get(ctx, e.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusFailed || got.Error != "mqtt: not connected" {
		t.Errorf("after SetStatus: status=%q error=%q", got.Status, got.Error)
	}
	if !got.UpdatedAt.After(got.ReceivedAt) {
		t.Errorf("UpdatedAt %v not after ReceivedAt %v", got.UpdatedAt, got.ReceivedAt)
	}

	if err := repo.SetStatus(ctx, "cmd-missing", StatusForwarded, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetStatus(missing) error = %v, want ErrNotFound", err)
	}
	if err := repo.SetStatus(ctx, e.ID, "bogus", ""); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("SetStatus(bogus) error = %v, want ErrInvalidStatus", err)
	}
}

func TestAcknowledge(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := &Entry{RequestID: "req-1", DeviceID: "d1"}
	second := &Entry{RequestID: "req-1", DeviceID: "d1"}
	for _, e := range []*Entry{first, second} {
		if err := repo.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	got, err := repo.Acknowledge(ctx, "req-1", 0)
	if err != nil {
		t.Fatalf("Acknowledge() error = %v", err)
	}
	if got.ID != second.ID {
		t.Errorf("acknowledged %s, want most recent %s", got.ID, second.ID)
	}
	if got.Status != StatusAcknowledged || got.Result == nil || *got.Result != 0 {
		t.Errorf("Acknowledge() = status %q result %v", got.Status, got.Result)
	}

	if _, err := repo.Acknowledge(ctx, "req-unknown", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Acknowledge(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seed := []struct {
		request string
		device  string
		status  Status
	}{
		{"r1", "d1", StatusForwarded},
		{"r2", "d2", StatusFailed},
		{"r3", "d1", StatusForwarded},
		{"r4", "d1", StatusReceived},
	}
	for _, s := range seed {
		if err := repo.Record(ctx, &Entry{RequestID: s.request, DeviceID: s.device, Status: s.status}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
		wantIDs   []string // request IDs in order
	}{
		{"all", Filter{}, 4, []string{"r4", "r3", "r2", "r1"}},
		{"by device", Filter{DeviceID: "d1"}, 3, []string{"r4", "r3", "r1"}},
		{"by status", Filter{Status: StatusForwarded}, 2, []string{"r3", "r1"}},
		{"device and status", Filter{DeviceID: "d2", Status: StatusFailed}, 1, []string{"r2"}},
		{"paged", Filter{Limit: 2, Offset: 1}, 4, []string{"r3", "r2"}},
		{"no match", Filter{DeviceID: "d9"}, 0, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if res.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", res.Total, tt.wantTotal)
			}
			if len(res.Entries) != len(tt.wantIDs) {
				t.Fatalf("got %d entries, want %d", len(res.Entries), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if res.Entries[i].RequestID != id {
					t.Errorf("entry %d = %s, want %s", i, res.Entries[i].RequestID, id)
				}
			}
		})
	}
}

func TestList_Clamping(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	res, err := repo.List(ctx, Filter{Limit: 1000, Offset: -4})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Limit != maxLimit || res.Offset != 0 {
		t.Errorf("Limit/Offset = %d/%d, want %d/0", res.Limit, res.Offset, maxLimit)
	}
	if res.Entries == nil {
		t.Error("Entries should be an empty slice, not nil")
	}

	if _, err := repo.List(ctx, Filter{Status: "bogus"}); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("List(bogus status) error = %v, want ErrInvalidStatus", err)
	}
}
