package stores

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// setupTestStore creates a migrated in-memory store.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	return store
}

func TestNewSQLiteStore_RequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestStoreLifecycle_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.db")
	store, err := NewSQLiteStore(Config{Path: path})
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	// a second run finds nothing to do
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestMigrate_NotInitialized(t *testing.T) {
	store, err := NewSQLiteStore(Config{Path: ":memory:"})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Migrate(context.Background()); err == nil {
		t.Fatal("expected error before Init")
	}
	if err := store.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check error before Init")
	}
}

var ignoreTimes = cmpopts.IgnoreFields(Request{}, "CreatedAt", "UpdatedAt")

func TestRecordRequest_GetRequest(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	req := &Request{
		RequestID:    "Create::stack-1::n1",
		Operation:    "Create",
		StackID:      "stack-1",
		ResourceID:   "r-1",
		ResourceName: "web",
		Location:     "lab",
		Status:       "IN_PROGRESS",
	}
	if err := store.RecordRequest(ctx, req); err != nil {
		t.Fatalf("RecordRequest() error = %v", err)
	}
	if req.CreatedAt.IsZero() || !req.UpdatedAt.Equal(req.CreatedAt) {
		t.Errorf("timestamps not set: %v %v", req.CreatedAt, req.UpdatedAt)
	}

	got, err := store.GetRequest(ctx, req.RequestID)
	if err != nil {
		t.Fatalf("GetRequest() error = %v", err)
	}
	if diff := cmp.Diff(req, got, ignoreTimes); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}

	if err := store.RecordRequest(ctx, req); err == nil {
		t.Error("expected error for duplicate request id")
	}

	_, err = store.GetRequest(ctx, "Delete::missing::n")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRequest(missing) error = %v, want ErrNotFound", err)
	}
}

func TestRecordPoll(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.RecordRequest(ctx, &Request{
		RequestID: "Create::stack-1::n1",
		Operation: "Create",
		StackID:   "stack-1",
		Status:    "IN_PROGRESS",
	}); err != nil {
		t.Fatal(err)
	}

	polls := []PollUpdate{
		{RequestID: "Create::stack-1::n1", Status: "IN_PROGRESS", Message: "execution IN_PROGRESS"},
		{RequestID: "Create::stack-1::n1", Status: "", Message: "connection refused"},
		{RequestID: "Create::stack-1::n1", Status: "COMPLETE", Message: "execution COMPLETE"},
	}
	for _, p := range polls {
		if err := store.RecordPoll(ctx, p); err != nil {
			t.Fatalf("RecordPoll() error = %v", err)
		}
	}

	got, err := store.GetRequest(ctx, "Create::stack-1::n1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != "COMPLETE" || got.Polls != 3 || got.Message != "execution COMPLETE" {
		t.Errorf("request = %+v", got)
	}

	// an error poll keeps the last known status
	if err := store.RecordPoll(ctx, PollUpdate{RequestID: "Create::stack-1::n1", Message: "timeout"}); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetRequest(ctx, "Create::stack-1::n1")
	if got.Status != "COMPLETE" || got.Message != "timeout" {
		t.Errorf("after error poll = %+v", got)
	}

	// polls for requests issued elsewhere create the record
	if err := store.RecordPoll(ctx, PollUpdate{
		RequestID: "Delete::stack-9::n2",
		Operation: "Delete",
		StackID:   "stack-9",
		Status:    "IN_PROGRESS",
	}); err != nil {
		t.Fatal(err)
	}
	got, err = store.GetRequest(ctx, "Delete::stack-9::n2")
	if err != nil {
		t.Fatal(err)
	}
	if got.Operation != "Delete" || got.Polls != 1 {
		t.Errorf("unknown request poll = %+v", got)
	}
}

func TestListRequests(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	fixtures := []*Request{
		{RequestID: "Create::a::1", Operation: "Create", StackID: "a", Location: "lab", Status: "IN_PROGRESS", CreatedAt: base},
		{RequestID: "Delete::a::2", Operation: "Delete", StackID: "a", Location: "lab", Status: "IN_PROGRESS", CreatedAt: base.Add(time.Minute)},
		{RequestID: "Create::b::3", Operation: "Create", StackID: "b", Location: "prod", Status: "IN_PROGRESS", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, r := range fixtures {
		if err := store.RecordRequest(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name   string
		filter RequestFilter
		want   []string
	}{
		{"all newest first", RequestFilter{}, []string{"Create::b::3", "Delete::a::2", "Create::a::1"}},
		{"by operation", RequestFilter{Operation: "Create"}, []string{"Create::b::3", "Create::a::1"}},
		{"by stack", RequestFilter{StackID: "a"}, []string{"Delete::a::2", "Create::a::1"}},
		{"by location", RequestFilter{Location: "prod"}, []string{"Create::b::3"}},
		{"paged", RequestFilter{Limit: 1, Offset: 1}, []string{"Delete::a::2"}},
		{"no match", RequestFilter{Operation: "Adopt"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListRequests(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListRequests() error = %v", err)
			}
			ids := []string{}
			for _, r := range got {
				ids = append(ids, r.RequestID)
			}
			if diff := cmp.Diff(tt.want, ids); diff != "" {
				t.Errorf("ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAppendEvent_GetEvents(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	rid := "Create::a::1"
	details := `{"failure_code":"INFRASTRUCTURE_ERROR"}`
	events := []*Event{
		{EventID: "e1", RequestID: &rid, Type: "lifecycle.accepted", Message: "Create accepted"},
		{EventID: "e2", Type: "reference.not_found", Level: EventLevelInfo},
		{EventID: "e3", RequestID: &rid, Type: "execution.polled", Level: EventLevelWarning, Status: "FAILED", Details: &details},
	}
	for _, e := range events {
		if err := store.AppendEvent(ctx, e); err != nil {
			t.Fatalf("AppendEvent() error = %v", err)
		}
		if e.ID == 0 {
			t.Error("event id not assigned")
		}
	}
	if events[0].Level != EventLevelInfo {
		t.Errorf("default level = %q", events[0].Level)
	}

	got, err := store.GetEvents(ctx, &rid, nil, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]*Event{events[0], events[2]}, got, cmpopts.IgnoreFields(Event{}, "Timestamp")); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}

	eventType := "reference.not_found"
	got, err = store.GetEvents(ctx, nil, &eventType, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].EventID != "e2" || got[0].RequestID != nil {
		t.Errorf("events by type = %+v", got)
	}
}
