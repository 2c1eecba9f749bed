package timesheet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"timesheets/internal/platform/db"
)

const uniqueViolation = "23505"

const entryColumns = `id::text, employee_id, project_id, task_id, week_start_date,
  monday_hours::text, tuesday_hours::text, wednesday_hours::text, thursday_hours::text,
  friday_hours::text, saturday_hours::text, sunday_hours::text,
  description, status, submitted_at, approved_at, rejected_at,
  approver_comments, reviewed_by, created_at, updated_at`

// Store is the Postgres entry store. Every call runs under Timeout and in
// its own span.
type Store struct {
	DB      *pgxpool.Pool
	Tracer  trace.Tracer
	Timeout time.Duration
}

func NewStore(pool *pgxpool.Pool, tracer trace.Tracer, timeout time.Duration) *Store {
	if tracer == nil {
		tracer = otel.Tracer("timesheets/store")
	}
	return &Store{DB: pool, Tracer: tracer, Timeout: timeout}
}

func (s *Store) run(ctx context.Context, span string, attrs []attribute.KeyValue, op func(ctx context.Context) error) error {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	return db.ExecuteAndTrace(ctx, s.Tracer, span, attrs, op)
}

func (s *Store) Upsert(ctx context.Context, entry Entry) (Entry, error) {
	var saved Entry
	attrs := []attribute.KeyValue{
		attribute.String("employee_id", entry.EmployeeID),
		attribute.String("week_start", WeekKey(entry.WeekStartDate)),
	}
	err := s.run(ctx, "postgres.timesheet.upsert", attrs, func(ctx context.Context) error {
		var err error
		if entry.ID == "" {
			saved, err = s.upsertByKey(ctx, entry)
		} else {
			saved, err = s.updateByID(ctx, entry)
		}
		return err
	})
	return saved, err
}

func (s *Store) upsertByKey(ctx context.Context, entry Entry) (Entry, error) {
	args := append([]any{entry.EmployeeID, entry.ProjectID, entry.TaskID, entry.WeekStartDate}, hourArgs(entry)...)
	args = append(args, entry.Description)
	saved, err := scanEntry(s.DB.QueryRow(ctx, `
    INSERT INTO timesheets (employee_id, project_id, task_id, week_start_date,
      monday_hours, tuesday_hours, wednesday_hours, thursday_hours, friday_hours, saturday_hours, sunday_hours,
      description)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
    ON CONFLICT ON CONSTRAINT timesheets_natural_key DO UPDATE SET
      monday_hours = EXCLUDED.monday_hours,
      tuesday_hours = EXCLUDED.tuesday_hours,
      wednesday_hours = EXCLUDED.wednesday_hours,
      thursday_hours = EXCLUDED.thursday_hours,
      friday_hours = EXCLUDED.friday_hours,
      saturday_hours = EXCLUDED.saturday_hours,
      sunday_hours = EXCLUDED.sunday_hours,
      description = EXCLUDED.description,
      updated_at = now()
    WHERE timesheets.status IN ('Draft', 'Rejected')
    RETURNING `+entryColumns, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrImmutableState
	}
	if err != nil {
		return Entry{}, fmt.Errorf("upsert timesheet: %w", err)
	}
	return saved, nil
}

func (s *Store) updateByID(ctx context.Context, entry Entry) (Entry, error) {
	if _, err := uuid.Parse(entry.ID); err != nil {
		return Entry{}, ErrNotFound
	}
	args := append([]any{entry.ID, entry.ProjectID, entry.TaskID, entry.WeekStartDate}, hourArgs(entry)...)
	args = append(args, entry.Description)
	saved, err := scanEntry(s.DB.QueryRow(ctx, `
    UPDATE timesheets SET
      project_id = $2, task_id = $3, week_start_date = $4,
      monday_hours = $5, tuesday_hours = $6, wednesday_hours = $7, thursday_hours = $8,
      friday_hours = $9, saturday_hours = $10, sunday_hours = $11,
      description = $12, updated_at = now()
    WHERE id = $1 AND status IN ('Draft', 'Rejected')
    RETURNING `+entryColumns, args...))
	if err == nil {
		return saved, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		existingID, lookupErr := s.idByKey(ctx, entry)
		if lookupErr != nil {
			return Entry{}, fmt.Errorf("lookup conflicting timesheet: %w", lookupErr)
		}
		return Entry{}, &ConflictError{ExistingID: existingID}
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, fmt.Errorf("update timesheet: %w", err)
	}

	var status string
	err = s.DB.QueryRow(ctx, "SELECT status FROM timesheets WHERE id = $1", entry.ID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("read timesheet status: %w", err)
	}
	return Entry{}, ErrImmutableState
}

func (s *Store) idByKey(ctx context.Context, entry Entry) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    SELECT t.id::text
    FROM timesheets t
    JOIN timesheets cur ON cur.id = $1
    WHERE t.employee_id = cur.employee_id AND t.project_id = $2 AND t.task_id = $3 AND t.week_start_date = $4
  `, entry.ID, entry.ProjectID, entry.TaskID, entry.WeekStartDate).Scan(&id)
	return id, err
}

// BulkUpsert runs each item under its own timeout inside one batch span.
// Failed items mark the span as errored but are reported per item only.
func (s *Store) BulkUpsert(ctx context.Context, entries []Entry) []ItemResult {
	var results []ItemResult
	attrs := []attribute.KeyValue{attribute.Int("items", len(entries))}
	_ = db.ExecuteAndTrace(ctx, s.Tracer, "postgres.timesheet.bulk_upsert", attrs, func(ctx context.Context) error {
		results = upsertEach(ctx, entries, s.Upsert)
		err := partialFailure(results)
		trace.SpanFromContext(ctx).SetAttributes(attribute.Int("failed", failedCount(results)))
		return err
	})
	return results
}

func (s *Store) GetByID(ctx context.Context, id string) (Entry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Entry{}, ErrNotFound
	}
	var entry Entry
	err := s.run(ctx, "postgres.timesheet.get", []attribute.KeyValue{attribute.String("id", id)}, func(ctx context.Context) error {
		var err error
		entry, err = scanEntry(s.DB.QueryRow(ctx, "SELECT "+entryColumns+" FROM timesheets WHERE id = $1", id))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	})
	return entry, err
}

func (s *Store) GetByWeek(ctx context.Context, employeeID string, weekStart time.Time) ([]Entry, error) {
	var out []Entry
	attrs := []attribute.KeyValue{
		attribute.String("employee_id", employeeID),
		attribute.String("week_start", WeekKey(weekStart)),
	}
	err := s.run(ctx, "postgres.timesheet.get_by_week", attrs, func(ctx context.Context) error {
		rows, err := s.DB.Query(ctx, `
    SELECT `+entryColumns+`
    FROM timesheets
    WHERE employee_id = $1 AND week_start_date = $2
    ORDER BY created_at, id
  `, employeeID, weekStart)
		if err != nil {
			return err
		}
		out, err = collectEntries(rows)
		return err
	})
	return out, err
}

func (s *Store) List(ctx context.Context, filter ListFilter) ([]Entry, error) {
	var out []Entry
	err := s.run(ctx, "postgres.timesheet.list", nil, func(ctx context.Context) error {
		query, args := buildListQuery(filter)
		rows, err := s.DB.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		out, err = collectEntries(rows)
		return err
	})
	return out, err
}

func buildListQuery(filter ListFilter) (string, []any) {
	query := "SELECT " + entryColumns + " FROM timesheets WHERE 1=1"
	var args []any
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		query += fmt.Sprintf(" AND employee_id = $%d", len(args))
	}
	if len(filter.EmployeeIDs) > 0 {
		args = append(args, filter.EmployeeIDs)
		query += fmt.Sprintf(" AND employee_id = ANY($%d)", len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += fmt.Sprintf(" AND week_start_date >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += fmt.Sprintf(" AND week_start_date <= $%d", len(args))
	}
	if filter.Year != 0 {
		args = append(args, filter.Year)
		query += fmt.Sprintf(" AND EXTRACT(ISOYEAR FROM week_start_date) = $%d", len(args))
	}
	query += " ORDER BY week_start_date DESC, employee_id, created_at, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}

func (s *Store) CompareAndSwap(ctx context.Context, next Entry, expected Status) (Entry, error) {
	if _, err := uuid.Parse(next.ID); err != nil {
		return Entry{}, ErrNotFound
	}
	var saved Entry
	attrs := []attribute.KeyValue{
		attribute.String("id", next.ID),
		attribute.String("from", string(expected)),
		attribute.String("to", string(next.Status)),
	}
	err := s.run(ctx, "postgres.timesheet.compare_and_swap", attrs, func(ctx context.Context) error {
		var err error
		saved, err = scanEntry(s.DB.QueryRow(ctx, `
    UPDATE timesheets SET
      status = $2, submitted_at = $3, approved_at = $4, rejected_at = $5,
      approver_comments = $6, reviewed_by = $7, updated_at = now()
    WHERE id = $1 AND status = $8
    RETURNING `+entryColumns,
			next.ID, string(next.Status), next.SubmittedAt, next.ApprovedAt, next.RejectedAt,
			next.ApproverComments, next.ReviewedBy, string(expected)))
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		var exists bool
		if err := s.DB.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM timesheets WHERE id = $1)", next.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrStaleStatus
	})
	return saved, err
}

func hourArgs(e Entry) []any {
	hours := e.Hours()
	out := make([]any, len(hours))
	for i, h := range hours {
		out[i] = h.String()
	}
	return out
}

func collectEntries(rows pgx.Rows) ([]Entry, error) {
	defer rows.Close()
	out := []Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	var status string
	var raw [7]string
	err := row.Scan(
		&e.ID, &e.EmployeeID, &e.ProjectID, &e.TaskID, &e.WeekStartDate,
		&raw[Monday], &raw[Tuesday], &raw[Wednesday], &raw[Thursday], &raw[Friday], &raw[Saturday], &raw[Sunday],
		&e.Description, &status, &e.SubmittedAt, &e.ApprovedAt, &e.RejectedAt,
		&e.ApproverComments, &e.ReviewedBy, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return Entry{}, err
	}
	var hours [7]decimal.Decimal
	for i, value := range raw {
		parsed, err := decimal.NewFromString(value)
		if err != nil {
			return Entry{}, fmt.Errorf("parse %s: %w", Day(i).Field(), err)
		}
		hours[i] = parsed
	}
	e.SetHours(hours)
	e.Status = Status(status)
	e.WeekStartDate = e.WeekStartDate.UTC()
	return e, nil
}
