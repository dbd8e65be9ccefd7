package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	memoryPath = ":memory:"

	defaultListLimit = 50
	maxListLimit     = 1000
)

// SQLiteStore implements Store on SQLite.
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

var _ Store = (*SQLiteStore)(nil)

// Config holds SQLite store configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store. Init must be called before use.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if cfg.Path == memoryPath {
		// every connection to :memory: opens a separate database
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
		return &SQLiteStore{cfg: cfg}, nil
	}

	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 10
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 2
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Init opens the database in WAL mode, creating the parent directory of a
// file database when needed.
func (s *SQLiteStore) Init(ctx context.Context) error {
	if s.cfg.Path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(s.cfg.Path), 0o750); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", s.cfg.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate applies the embedded schema migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// RecordRequest inserts a newly issued request.
func (s *SQLiteStore) RecordRequest(ctx context.Context, req *Request) error {
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	if req.UpdatedAt.IsZero() {
		req.UpdatedAt = req.CreatedAt
	}

	query := `
		INSERT INTO requests (
			request_id, operation, stack_id, resource_id, resource_name, location,
			status, message, polls, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		req.RequestID,
		req.Operation,
		req.StackID,
		req.ResourceID,
		req.ResourceName,
		req.Location,
		req.Status,
		req.Message,
		req.Polls,
		req.CreatedAt.UTC(),
		req.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record request: %w", err)
	}

	return nil
}

// RecordPoll counts a poll against a request and stores its status. A
// request issued by another driver instance is created on first poll.
func (s *SQLiteStore) RecordPoll(ctx context.Context, update PollUpdate) error {
	at := update.At
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()

	query := `
		INSERT INTO requests (
			request_id, operation, stack_id, status, message, polls, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(request_id) DO UPDATE SET
			status = CASE WHEN excluded.status = '' THEN requests.status ELSE excluded.status END,
			message = excluded.message,
			polls = requests.polls + 1,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		update.RequestID,
		update.Operation,
		update.StackID,
		update.Status,
		update.Message,
		at,
		at,
	)
	if err != nil {
		return fmt.Errorf("failed to record poll: %w", err)
	}

	return nil
}

const requestColumns = `request_id, operation, stack_id, resource_id, resource_name, location,
		status, message, polls, created_at, updated_at`

func scanRequest(row interface{ Scan(...any) error }) (*Request, error) {
	req := &Request{}
	err := row.Scan(
		&req.RequestID,
		&req.Operation,
		&req.StackID,
		&req.ResourceID,
		&req.ResourceName,
		&req.Location,
		&req.Status,
		&req.Message,
		&req.Polls,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	return req, err
}

// GetRequest retrieves a request by id.
func (s *SQLiteStore) GetRequest(ctx context.Context, requestID string) (*Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE request_id = ?`

	req, err := scanRequest(s.db.QueryRowContext(ctx, query, requestID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("request %s: %w", requestID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}

	return req, nil
}

// ListRequests lists requests, most recent first.
func (s *SQLiteStore) ListRequests(ctx context.Context, filter RequestFilter) ([]*Request, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := `SELECT ` + requestColumns + `
		FROM requests
		WHERE (? = '' OR operation = ?)
		  AND (? = '' OR stack_id = ?)
		  AND (? = '' OR location = ?)
		ORDER BY created_at DESC, request_id
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query,
		filter.Operation, filter.Operation,
		filter.StackID, filter.StackID,
		filter.Location, filter.Location,
		limit, filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	requests := []*Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating requests: %w", err)
	}

	return requests, nil
}

// AppendEvent appends an event to the journal.
func (s *SQLiteStore) AppendEvent(ctx context.Context, event *Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Level == "" {
		event.Level = EventLevelInfo
	}

	query := `
		INSERT INTO request_events (event_id, request_id, type, level, status, message, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		event.EventID,
		event.RequestID,
		event.Type,
		event.Level,
		event.Status,
		event.Message,
		event.Details,
		event.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get event ID: %w", err)
	}

	event.ID = id
	return nil
}

// GetEvents retrieves events in insertion order with optional filters.
func (s *SQLiteStore) GetEvents(ctx context.Context, requestID *string, eventType *string, limit, offset int) ([]*Event, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT id, event_id, request_id, type, level, status, message, details, timestamp
		FROM request_events
		WHERE (? IS NULL OR request_id = ?)
		  AND (? IS NULL OR type = ?)
		ORDER BY id
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, requestID, requestID, eventType, eventType, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		event := &Event{}
		err := rows.Scan(
			&event.ID,
			&event.EventID,
			&event.RequestID,
			&event.Type,
			&event.Level,
			&event.Status,
			&event.Message,
			&event.Details,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// HealthCheck verifies the database connection is healthy.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
