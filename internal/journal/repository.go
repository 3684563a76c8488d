package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Repository defines the command journal operations.
type Repository interface {
	Record(ctx context.Context, e *Entry) error
	SetStatus(ctx context.Context, id string, status Status, errMsg string) error
	Acknowledge(ctx context.Context, requestID string, result int) (*Entry, error)
	Get(ctx context.Context, id string) (*Entry, error)
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores the journal in SQLite.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a journal repository on db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Record inserts e as a new entry. ID, Status and timestamps are filled in
// when empty; Status defaults to StatusReceived.
func (r *SQLiteRepository) Record(ctx context.Context, e *Entry) error {
	if e.RequestID == "" || e.DeviceID == "" {
		return fmt.Errorf("%w: request_id and device_id are required", ErrInvalidEntry)
	}
	if e.ID == "" {
		e.ID = "cmd-" + uuid.NewString()
	}
	if e.Status == "" {
		e.Status = StatusReceived
	}
	if !e.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, e.Status)
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = r.now()
	}
	e.UpdatedAt = e.ReceivedAt

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO command_journal
		 (id, request_id, device_id, service_id, method, payload, status, result, error, received_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.RequestID, e.DeviceID, e.ServiceID, e.Method, e.Payload,
		string(e.Status), nullableInt(e.Result), e.Error,
		formatTime(e.ReceivedAt), formatTime(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting journal entry: %w", err)
	}
	return nil
}

// SetStatus moves entry id to status, recording errMsg (may be empty).
func (r *SQLiteRepository) SetStatus(ctx context.Context, id string, status Status, errMsg string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	res, err := r.db.ExecContext(ctx,
		"UPDATE command_journal SET status = ?, error = ?, updated_at = ? WHERE id = ?",
		string(status), errMsg, formatTime(r.now()), id,
	)
	if err != nil {
		return fmt.Errorf("updating journal entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating journal entry: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Acknowledge marks the most recent entry for requestID as acknowledged
// with the device's result code and returns the updated entry.
func (r *SQLiteRepository) Acknowledge(ctx context.Context, requestID string, result int) (*Entry, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		"SELECT id FROM command_journal WHERE request_id = ? ORDER BY received_at DESC LIMIT 1",
		requestID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding journal entry: %w", err)
	}

	if _, err := r.db.ExecContext(ctx,
		"UPDATE command_journal SET status = ?, result = ?, updated_at = ? WHERE id = ?",
		string(StatusAcknowledged), result, formatTime(r.now()), id,
	); err != nil {
		return nil, fmt.Errorf("acknowledging journal entry: %w", err)
	}
	return r.Get(ctx, id)
}

// Get returns the entry with the given ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Entry, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM command_journal WHERE id = ?", id,
	)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// List returns entries matching filter, most recently received first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, filter.Status)
	}

	var conditions []string
	var args []any
	if filter.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM command_journal " + where //nolint:gosec // WHERE built from parameterised conditions
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting journal entries: %w", err)
	}

	query := "SELECT " + entryColumns + " FROM command_journal " + where + //nolint:gosec // WHERE built from parameterised conditions
		" ORDER BY received_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal entries: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

const entryColumns = "id, request_id, device_id, service_id, method, payload, status, result, error, received_at, updated_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var e Entry
	var status, receivedAt, updatedAt string
	var result sql.NullInt64

	if err := s.Scan(&e.ID, &e.RequestID, &e.DeviceID, &e.ServiceID, &e.Method, &e.Payload,
		&status, &result, &e.Error, &receivedAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning journal entry: %w", err)
	}

	e.Status = Status(status)
	if result.Valid {
		v := int(result.Int64)
		e.Result = &v
	}

	var err error
	if e.ReceivedAt, err = parseTime(receivedAt); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

// timeLayout is fixed width so received_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing journal timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
