package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sigte/riskengine/internal/domain/model"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
	DriverMemory   = "memory"
)

const (
	dayLayout = time.DateOnly
	// Fixed width keeps lexical order equal to time order.
	tsLayout = "2006-01-02T15:04:05.000000000Z"

	pgUniqueViolation = "23505"
)

// SQLStore implements Store over database/sql for SQLite and PostgreSQL.
type SQLStore struct {
	db              *sql.DB
	driver          string
	maxOpenConns    int
	connMaxLifetime time.Duration
	busyTimeout     time.Duration
}

var _ Store = (*SQLStore)(nil)

// Open connects to driver at dsn and bootstraps the schema.
// For SQLite dsn is a file path.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*SQLStore, error) {
	s := &SQLStore{
		driver:          driver,
		maxOpenConns:    10,
		connMaxLifetime: time.Hour,
		busyTimeout:     10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	switch driver {
	case DriverSQLite:
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", dsn, s.busyTimeout.Milliseconds())
		s.db, err = sql.Open("sqlite", dsn)
	case DriverPostgres:
		s.db, err = sql.Open("pgx", dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s.db.SetMaxOpenConns(s.maxOpenConns)
	s.db.SetMaxIdleConns(s.maxOpenConns / 2)
	s.db.SetConnMaxLifetime(s.connMaxLifetime)

	if err := s.db.PingContext(ctx); err != nil {
		_ = s.db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := s.initSchema(ctx); err != nil {
		_ = s.db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Ping checks the connection pool.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

var schema = []string{ //nolint:gochecknoglobals // static DDL
	`CREATE TABLE IF NOT EXISTS schools (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		registration TEXT NOT NULL DEFAULT '',
		school_id TEXT NOT NULL DEFAULT '',
		route_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		special_needs BOOLEAN NOT NULL DEFAULT FALSE,
		requires_companion BOOLEAN NOT NULL DEFAULT FALSE,
		guardians TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_students_status ON students(status, id)`,
	`CREATE TABLE IF NOT EXISTS attendance (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		day TEXT NOT NULL,
		present BOOLEAN NOT NULL,
		note TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_student_day ON attendance(student_id, day)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_day ON attendance(day)`,
	`CREATE TABLE IF NOT EXISTS incidents (
		id TEXT PRIMARY KEY,
		route_id TEXT NOT NULL,
		student_id TEXT NOT NULL DEFAULT '',
		vehicle_id TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		priority TEXT NOT NULL,
		occurred_at TEXT NOT NULL,
		status TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_incidents_route ON incidents(route_id, occurred_at)`,
	`CREATE INDEX IF NOT EXISTS idx_incidents_student ON incidents(student_id, occurred_at)`,
	`CREATE TABLE IF NOT EXISTS interventions (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		student_name TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		risk_level TEXT NOT NULL DEFAULT '',
		risk_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		actions TEXT NOT NULL DEFAULT '[]',
		assigned_to TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		expected_completion TEXT NOT NULL,
		outcome TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_interventions_student ON interventions(student_id, created_at)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_interventions_pending ON interventions(student_id) WHERE status = 'pending'`,
	`CREATE TABLE IF NOT EXISTS routes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		school_id TEXT NOT NULL DEFAULT '',
		vehicle_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		capacity INTEGER NOT NULL DEFAULT 0,
		occupied INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS vehicles (
		id TEXT PRIMARY KEY,
		plate TEXT NOT NULL,
		make TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		driver TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		next_maintenance TEXT
	)`,
}

func (s *SQLStore) initSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(q string) string {
	if s.driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// filter accumulates WHERE clauses with positional args.
type filter struct {
	clauses []string
	args    []any
}

func (f *filter) eq(col, v string) {
	if v == "" {
		return
	}
	f.clauses = append(f.clauses, col+" = ?")
	f.args = append(f.args, v)
}

func (f *filter) in(col string, vs []string) {
	if len(vs) == 0 {
		return
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", len(vs)), ",")
	f.clauses = append(f.clauses, col+" IN ("+marks+")")
	for _, v := range vs {
		f.args = append(f.args, v)
	}
}

func (f *filter) cmp(col, op, v string) {
	f.clauses = append(f.clauses, col+" "+op+" ?")
	f.args = append(f.args, v)
}

func (f *filter) where() string {
	if len(f.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.clauses, " AND ")
}

func formatTS(t time.Time) string { return t.UTC().Format(tsLayout) }

func parseTS(v string) (time.Time, error) { return time.Parse(tsLayout, v) }

const studentColumns = `id, name, registration, school_id, route_id, status, special_needs, requires_companion, guardians`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudent(r rowScanner) (model.Student, error) {
	var (
		st        model.Student
		guardians string
	)
	if err := r.Scan(&st.ID, &st.Name, &st.Registration, &st.SchoolID, &st.RouteID, &st.Status,
		&st.SpecialNeeds, &st.RequiresCompanion, &guardians); err != nil {
		return model.Student{}, err
	}
	if err := json.Unmarshal([]byte(guardians), &st.Guardians); err != nil {
		return model.Student{}, fmt.Errorf("decode guardians for %s: %w", st.ID, err)
	}
	return st, nil
}

// Student returns the student with id or ErrNotFound.
func (s *SQLStore) Student(ctx context.Context, id string) (model.Student, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+studentColumns+` FROM students WHERE id = ?`), id)
	st, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Student{}, ErrNotFound
	}
	if err != nil {
		return model.Student{}, fmt.Errorf("query student: %w", err)
	}
	return st, nil
}

// ActiveStudents pages active students ordered by id.
func (s *SQLStore) ActiveStudents(ctx context.Context, offset, limit int) ([]model.Student, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = -1
		if s.driver == DriverPostgres {
			// PostgreSQL has no negative LIMIT.
			limit = 1 << 31
		}
	}
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT `+studentColumns+` FROM students WHERE status = ? ORDER BY id LIMIT ? OFFSET ?`),
		model.StudentActive, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query active students: %w", err)
	}
	defer rows.Close()

	out := []model.Student{}
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// CountActiveStudents counts students with active status.
func (s *SQLStore) CountActiveStudents(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM students WHERE status = ?`), model.StudentActive).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active students: %w", err)
	}
	return n, nil
}

// Attendance returns matching records ordered by date.
func (s *SQLStore) Attendance(ctx context.Context, q AttendanceQuery) ([]model.AttendanceRecord, error) {
	var f filter
	f.eq("student_id", q.StudentID)
	if !q.From.IsZero() {
		f.cmp("day", ">=", model.Day(q.From).Format(dayLayout))
	}
	if !q.To.IsZero() {
		f.cmp("day", "<=", model.Day(q.To).Format(dayLayout))
	}
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT id, student_id, day, present, note FROM attendance`+f.where()+` ORDER BY day, id`), f.args...)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	out := []model.AttendanceRecord{}
	for rows.Next() {
		var (
			r   model.AttendanceRecord
			day string
		)
		if err := rows.Scan(&r.ID, &r.StudentID, &day, &r.Present, &r.Note); err != nil {
			return nil, err
		}
		if r.Date, err = time.Parse(dayLayout, day); err != nil {
			return nil, fmt.Errorf("parse attendance day %q: %w", day, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Incidents returns matching incidents ordered by occurrence time.
func (s *SQLStore) Incidents(ctx context.Context, q IncidentQuery) ([]model.IncidentRecord, error) {
	var f filter
	f.eq("route_id", q.RouteID)
	f.eq("student_id", q.StudentID)
	f.in("type", q.Types)
	f.in("priority", q.Priorities)
	f.in("status", q.Statuses)
	if !q.Since.IsZero() {
		f.cmp("occurred_at", ">=", formatTS(q.Since))
	}
	if !q.Until.IsZero() {
		f.cmp("occurred_at", "<=", formatTS(q.Until))
	}
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT id, route_id, student_id, vehicle_id, type, priority, occurred_at, status FROM incidents`+
			f.where()+` ORDER BY occurred_at, id`), f.args...)
	if err != nil {
		return nil, fmt.Errorf("query incidents: %w", err)
	}
	defer rows.Close()

	out := []model.IncidentRecord{}
	for rows.Next() {
		var (
			r  model.IncidentRecord
			ts string
		)
		if err := rows.Scan(&r.ID, &r.RouteID, &r.StudentID, &r.VehicleID, &r.Type, &r.Priority, &ts, &r.Status); err != nil {
			return nil, err
		}
		if r.OccurredAt, err = parseTS(ts); err != nil {
			return nil, fmt.Errorf("parse incident time %q: %w", ts, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Interventions returns matching records newest first.
func (s *SQLStore) Interventions(ctx context.Context, q InterventionQuery) ([]model.InterventionRecord, error) {
	var f filter
	f.eq("student_id", q.StudentID)
	if !q.Since.IsZero() {
		f.cmp("created_at", ">=", formatTS(q.Since))
	}
	query := `SELECT id, student_id, student_name, type, status, risk_level, risk_score, actions, assigned_to,
		created_at, expected_completion, outcome FROM interventions` + f.where() + ` ORDER BY created_at DESC, id DESC`
	if q.Limit > 0 {
		query += ` LIMIT ` + strconv.Itoa(q.Limit)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(query), f.args...)
	if err != nil {
		return nil, fmt.Errorf("query interventions: %w", err)
	}
	defer rows.Close()

	out := []model.InterventionRecord{}
	for rows.Next() {
		var (
			r                 model.InterventionRecord
			actions           string
			created, expected string
		)
		if err := rows.Scan(&r.ID, &r.StudentID, &r.StudentName, &r.Type, &r.Status, &r.RiskLevel, &r.RiskScore,
			&actions, &r.AssignedTo, &created, &expected, &r.Outcome); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(actions), &r.RecommendedActions); err != nil {
			return nil, fmt.Errorf("decode actions for %s: %w", r.ID, err)
		}
		if r.CreatedAt, err = parseTS(created); err != nil {
			return nil, err
		}
		if r.ExpectedCompletion, err = parseTS(expected); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// HasPendingIntervention reports whether the student has a pending record.
func (s *SQLStore) HasPendingIntervention(ctx context.Context, studentID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT COUNT(*) FROM interventions WHERE student_id = ? AND status = ?`),
		studentID, model.InterventionPending).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query pending interventions: %w", err)
	}
	return n > 0, nil
}

// CreateIntervention inserts rec. A second pending record for the student
// violates the partial unique index and returns ErrDuplicatePending.
func (s *SQLStore) CreateIntervention(ctx context.Context, r model.InterventionRecord) error {
	actions, err := json.Marshal(r.RecommendedActions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO interventions
		(id, student_id, student_name, type, status, risk_level, risk_score, actions, assigned_to, created_at, expected_completion, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		r.ID, r.StudentID, r.StudentName, r.Type, r.Status, r.RiskLevel, r.RiskScore, string(actions), r.AssignedTo,
		formatTS(r.CreatedAt), formatTS(r.ExpectedCompletion), r.Outcome)
	if isUniqueViolation(err) {
		return ErrDuplicatePending
	}
	if err != nil {
		return fmt.Errorf("insert intervention: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
	}
	return false
}

// Routes returns every route ordered by id.
func (s *SQLStore) Routes(ctx context.Context) ([]model.Route, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, school_id, vehicle_id, status, capacity, occupied FROM routes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query routes: %w", err)
	}
	defer rows.Close()

	out := []model.Route{}
	for rows.Next() {
		var r model.Route
		if err := rows.Scan(&r.ID, &r.Name, &r.SchoolID, &r.VehicleID, &r.Status, &r.Capacity, &r.Occupied); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Vehicles returns every vehicle ordered by id.
func (s *SQLStore) Vehicles(ctx context.Context) ([]model.Vehicle, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, plate, make, model, driver, status, next_maintenance FROM vehicles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query vehicles: %w", err)
	}
	defer rows.Close()

	out := []model.Vehicle{}
	for rows.Next() {
		var (
			v    model.Vehicle
			next sql.NullString
		)
		if err := rows.Scan(&v.ID, &v.Plate, &v.Make, &v.Model, &v.Driver, &v.Status, &next); err != nil {
			return nil, err
		}
		if next.Valid && next.String != "" {
			t, err := time.Parse(dayLayout, next.String)
			if err != nil {
				return nil, fmt.Errorf("parse maintenance date %q: %w", next.String, err)
			}
			v.NextMaintenance = &t
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// CountSchools counts schools.
func (s *SQLStore) CountSchools(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schools`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count schools: %w", err)
	}
	return n, nil
}

// AddSchool inserts a school.
func (s *SQLStore) AddSchool(ctx context.Context, sc model.School) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO schools (id, name) VALUES (?, ?)`), sc.ID, sc.Name)
	return err
}

// AddStudent inserts a student.
func (s *SQLStore) AddStudent(ctx context.Context, st model.Student) error {
	guardians := st.Guardians
	if guardians == nil {
		guardians = []model.Guardian{}
	}
	raw, err := json.Marshal(guardians)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO students (`+studentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		st.ID, st.Name, st.Registration, st.SchoolID, st.RouteID, st.Status, st.SpecialNeeds, st.RequiresCompanion, string(raw))
	return err
}

// AddRoute inserts a route.
func (s *SQLStore) AddRoute(ctx context.Context, r model.Route) error {
	_, err := s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO routes (id, name, school_id, vehicle_id, status, capacity, occupied) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		r.ID, r.Name, r.SchoolID, r.VehicleID, r.Status, r.Capacity, r.Occupied)
	return err
}

// AddVehicle inserts a vehicle.
func (s *SQLStore) AddVehicle(ctx context.Context, v model.Vehicle) error {
	var next sql.NullString
	if v.NextMaintenance != nil {
		next = sql.NullString{String: model.Day(*v.NextMaintenance).Format(dayLayout), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO vehicles (id, plate, make, model, driver, status, next_maintenance) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		v.ID, v.Plate, v.Make, v.Model, v.Driver, v.Status, next)
	return err
}

// inTx runs fn inside a transaction, rolling back on error.
func (s *SQLStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// AddAttendance inserts attendance records in one transaction.
func (s *SQLStore) AddAttendance(ctx context.Context, recs ...model.AttendanceRecord) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO attendance (id, student_id, day, present, note) VALUES (?, ?, ?, ?, ?)`))
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range recs {
			if _, err := stmt.ExecContext(ctx, r.ID, r.StudentID, model.Day(r.Date).Format(dayLayout), r.Present, r.Note); err != nil {
				return fmt.Errorf("insert attendance %s: %w", r.ID, err)
			}
		}
		return nil
	})
}

// AddIncident inserts incidents in one transaction.
func (s *SQLStore) AddIncident(ctx context.Context, recs ...model.IncidentRecord) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO incidents
			(id, route_id, student_id, vehicle_id, type, priority, occurred_at, status) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`))
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range recs {
			if _, err := stmt.ExecContext(ctx, r.ID, r.RouteID, r.StudentID, r.VehicleID, r.Type, r.Priority,
				formatTS(r.OccurredAt), r.Status); err != nil {
				return fmt.Errorf("insert incident %s: %w", r.ID, err)
			}
		}
		return nil
	})
}
