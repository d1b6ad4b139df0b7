/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements attendance.Store (punches, policies, day records, synthesis
  previews, anomaly scans) and generic.HolidayCalendar using SQLite. In
  production, the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

KEY TABLES:
  raw_punches:        Imported clock data, one row per company/user/day
  policies:           Effective-dated policies, config stored as JSON
  day_records:        Computed records, one set per view
  holidays:           Company-specific and global non-working days
  synthesis_previews: Repair-loop runs awaiting approval
  anomaly_scans:      Manual and scheduled detector runs

VIEWS:
  day_records carries a record_view column ("original", "calibrated",
  "preview:<id>") and the owning company_id. A (record_view, company_id,
  user_id, date) key is unique; saving a record for an existing key replaces
  it. Record ids are unique per company only, so every id lookup is scoped by
  company_id.

INDEXES:
  - idx_day_records_view_company_user_date: Record listing and scope replacement (hot path)
  - idx_day_records_company_id: Cross-view deletes
  - idx_holidays_company_date: Calendar lookups during detection and synthesis

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead. Methods never
  call each other while holding the lock.

WAL MODE:
  File databases are opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery
  ":memory:" databases are pinned to a single connection so every query
  sees the same schema.

USAGE:
  store, err := sqlite.New("./data/attendance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := attendance.NewService(store, store, nil, logger, opts)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - attendance/store.go: Interface definitions
  - store/memory: In-memory implementation for tests
  - factory/policy.go: Policy JSON stored in config_json
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/factory"
	"github.com/warp/attendance-engine/generic"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db      *sql.DB
	mu      sync.RWMutex
	factory *factory.PolicyFactory
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL"
	if dbPath == ":memory:" {
		dsn = "file::memory:?_foreign_keys=on"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, factory: factory.NewPolicyFactory()}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection, for health endpoints.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Raw punches as imported
	CREATE TABLE IF NOT EXISTS raw_punches (
		company_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		user_name TEXT,
		department TEXT,
		title TEXT,
		clock_in TEXT,
		clock_out TEXT,
		imported_at TEXT NOT NULL,
		PRIMARY KEY (company_id, user_id, date)
	);

	-- Policies
	CREATE TABLE IF NOT EXISTS policies (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		name TEXT NOT NULL,
		effective_date TEXT NOT NULL,
		config_json TEXT NOT NULL,
		version INTEGER DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_policies_company_effective
		ON policies(company_id, effective_date);

	-- Computed day records, one set per view
	CREATE TABLE IF NOT EXISTS day_records (
		record_view TEXT NOT NULL,
		company_id TEXT NOT NULL,
		id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		user_name TEXT,
		department TEXT,
		date TEXT NOT NULL,
		start_minutes INTEGER,
		end_minutes INTEGER,
		total_minutes INTEGER NOT NULL,
		break_minutes INTEGER NOT NULL,
		actual_minutes INTEGER NOT NULL,
		overtime_minutes INTEGER NOT NULL,
		status TEXT NOT NULL,
		categorical_status TEXT NOT NULL,
		note TEXT,
		synthetic INTEGER NOT NULL DEFAULT 0,
		calibrated INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (record_view, company_id, id)
	);

	-- One record per company user-day within a view
	CREATE UNIQUE INDEX IF NOT EXISTS idx_day_records_view_company_user_date
		ON day_records(record_view, company_id, user_id, date);

	CREATE INDEX IF NOT EXISTS idx_day_records_company_id
		ON day_records(company_id, id);

	-- Holidays (company-specific and global)
	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		recurring BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_holidays_company_date
		ON holidays(company_id, date);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_holidays_unique
		ON holidays(company_id, date, name);

	-- Synthesis previews (records live in day_records under preview:<id>)
	CREATE TABLE IF NOT EXISTS synthesis_previews (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		status TEXT NOT NULL,
		termination TEXT NOT NULL,
		attempt INTEGER NOT NULL,
		max_repair_rounds INTEGER NOT NULL,
		mismatched_json TEXT,
		verifications_json TEXT,
		error TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Anomaly scan log
	CREATE TABLE IF NOT EXISTS anomaly_scans (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		scan_trigger TEXT NOT NULL,
		record_count INTEGER NOT NULL,
		violation_count INTEGER NOT NULL,
		violating_json TEXT,
		scanned_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PUNCH STORE
// =============================================================================

// SavePunches replaces any punch of the same company, user and date.
func (s *Store) SavePunches(ctx context.Context, companyID string, punches []attendance.RawPunch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO raw_punches (company_id, user_id, date, user_name, department, title, clock_in, clock_out, imported_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(company_id, user_id, date) DO UPDATE SET
				user_name = excluded.user_name,
				department = excluded.department,
				title = excluded.title,
				clock_in = excluded.clock_in,
				clock_out = excluded.clock_out,
				imported_at = excluded.imported_at
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		now := time.Now().UTC().Format(time.RFC3339)
		for _, p := range punches {
			if _, err := stmt.ExecContext(ctx,
				companyID, string(p.UserID), p.Date.String(),
				p.UserName, p.Department, p.Title, p.ClockIn, p.ClockOut, now,
			); err != nil {
				return fmt.Errorf("punch %s %s: %w", p.UserID, p.Date, err)
			}
		}
		return nil
	})
}

// ListPunches returns a company's punches ordered by user then date.
func (s *Store) ListPunches(ctx context.Context, companyID string, filter attendance.RecordFilter) ([]attendance.RawPunch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := filterClause(filter)
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, date, user_name, department, title, clock_in, clock_out
		FROM raw_punches
		WHERE company_id = ?`+where+`
		ORDER BY user_id, date`,
		append([]any{companyID}, args...)...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var punches []attendance.RawPunch
	for rows.Next() {
		var (
			p                                    attendance.RawPunch
			userID, date                         string
			name, dept, title, clockIn, clockOut sql.NullString
		)
		if err := rows.Scan(&userID, &date, &name, &dept, &title, &clockIn, &clockOut); err != nil {
			return nil, err
		}
		p.UserID = generic.UserID(userID)
		if p.Date, err = generic.ParseDate(date); err != nil {
			return nil, err
		}
		p.UserName, p.Department, p.Title = name.String, dept.String, title.String
		p.ClockIn, p.ClockOut = clockIn.String, clockOut.String
		punches = append(punches, p)
	}
	return punches, rows.Err()
}

// =============================================================================
// POLICY STORE
// =============================================================================

// SavePolicy upserts a policy and bumps its version on update.
func (s *Store) SavePolicy(ctx context.Context, policy attendance.EffectiveDatedPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	config, err := json.Marshal(s.factory.ToJSON(policy))
	if err != nil {
		return fmt.Errorf("encode policy: %w", err)
	}

	query := `
		INSERT INTO policies (id, company_id, name, effective_date, config_json, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			company_id = excluded.company_id,
			name = excluded.name,
			effective_date = excluded.effective_date,
			config_json = excluded.config_json,
			version = policies.version + 1,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx, query,
		string(policy.ID), policy.CompanyID, policy.Name, policy.EffectiveDate.String(),
		string(config), now, now,
	)
	return err
}

// GetPolicy retrieves a policy by ID.
func (s *Store) GetPolicy(ctx context.Context, id generic.PolicyID) (*attendance.EffectiveDatedPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var config string
	err := s.db.QueryRowContext(ctx,
		"SELECT config_json FROM policies WHERE id = ?", string(id),
	).Scan(&config)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.decodePolicy(config)
}

// ListPolicies returns a company's policies, oldest effective date first.
func (s *Store) ListPolicies(ctx context.Context, companyID string) ([]attendance.EffectiveDatedPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT config_json FROM policies WHERE company_id = ? ORDER BY effective_date, id",
		companyID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []attendance.EffectiveDatedPolicy
	for rows.Next() {
		var config string
		if err := rows.Scan(&config); err != nil {
			return nil, err
		}
		p, err := s.decodePolicy(config)
		if err != nil {
			return nil, err
		}
		policies = append(policies, *p)
	}
	return policies, rows.Err()
}

// DeletePolicy removes a policy.
func (s *Store) DeletePolicy(ctx context.Context, id generic.PolicyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM policies WHERE id = ?", string(id))
	return err
}

func (s *Store) decodePolicy(config string) (*attendance.EffectiveDatedPolicy, error) {
	var pj factory.PolicyJSON
	if err := json.Unmarshal([]byte(config), &pj); err != nil {
		return nil, fmt.Errorf("decode policy: %w", err)
	}
	return s.factory.FromJSON(pj)
}

// =============================================================================
// RECORD STORE
// =============================================================================

const recordColumns = `record_view, company_id, id, user_id, user_name, department, date,
	start_minutes, end_minutes, total_minutes, break_minutes, actual_minutes, overtime_minutes,
	status, categorical_status, note, synthetic, calibrated, updated_at`

// ReplaceRecords deletes every record of view inside scope, then inserts
// records, in one transaction.
func (s *Store) ReplaceRecords(ctx context.Context, view attendance.View, scope attendance.Scope, records []attendance.ComputedDayRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if len(scope.UserIDs) > 0 && !scope.Period.Start.IsZero() {
			placeholders := strings.TrimSuffix(strings.Repeat("?,", len(scope.UserIDs)), ",")
			args := []any{string(view), scope.CompanyID, scope.Period.Start.String(), scope.Period.End.String()}
			for _, id := range scope.UserIDs {
				args = append(args, string(id))
			}
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM day_records WHERE record_view = ? AND company_id = ? AND date BETWEEN ? AND ? AND user_id IN ("+placeholders+")",
				args...,
			); err != nil {
				return fmt.Errorf("clear scope: %w", err)
			}
		}
		return insertRecords(ctx, tx, view, records)
	})
}

// SaveRecords upserts by (view, company, user, date).
func (s *Store) SaveRecords(ctx context.Context, view attendance.View, records []attendance.ComputedDayRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		return insertRecords(ctx, tx, view, records)
	})
}

// insertRecords uses INSERT OR REPLACE so a row clashing on either the id or
// the user-day is replaced.
func insertRecords(ctx context.Context, tx *sql.Tx, view attendance.View, records []attendance.ComputedDayRecord) error {
	if len(records) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR REPLACE INTO day_records ("+recordColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			string(view), r.CompanyID, string(r.ID), string(r.UserID), r.UserName, r.Department, r.Date.String(),
			nullMinutes(r.Start), nullMinutes(r.End),
			r.TotalDurationMinutes, r.BreakDurationMinutes, r.ActualWorkMinutes, r.OvertimeMinutes,
			string(r.Status), string(r.CategoricalStatus), nullString(r.Note),
			r.Synthetic, r.Calibrated, now,
		); err != nil {
			return fmt.Errorf("record %s %s: %w", r.UserID, r.Date, err)
		}
	}
	return nil
}

// GetRecord retrieves a company's record of view by ID.
func (s *Store) GetRecord(ctx context.Context, view attendance.View, companyID string, id generic.RecordID) (*attendance.ComputedDayRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM day_records WHERE record_view = ? AND company_id = ? AND id = ?",
		string(view), companyID, string(id),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	r, err := scanRecord(rows)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRecords returns a view's records ordered by user then date.
func (s *Store) ListRecords(ctx context.Context, view attendance.View, filter attendance.RecordFilter) ([]attendance.ComputedDayRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := filterClause(filter)
	if filter.CompanyID != "" {
		where = " AND company_id = ?" + where
		args = append([]any{filter.CompanyID}, args...)
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM day_records WHERE record_view = ?"+where+" ORDER BY user_id, date",
		append([]any{string(view)}, args...)...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []attendance.ComputedDayRecord{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// DeleteRecord removes a company's record from every view.
func (s *Store) DeleteRecord(ctx context.Context, companyID string, id generic.RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM day_records WHERE company_id = ? AND id = ?", companyID, string(id))
	return err
}

// DeleteView removes every record of view.
func (s *Store) DeleteView(ctx context.Context, view attendance.View) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM day_records WHERE record_view = ?", string(view))
	return err
}

func scanRecord(rows *sql.Rows) (attendance.ComputedDayRecord, error) {
	var (
		r                         attendance.ComputedDayRecord
		view, company, id, userID string
		date                      string
		name, dept, note          sql.NullString
		start, end                sql.NullInt64
		status, category, updated string
	)
	err := rows.Scan(&view, &company, &id, &userID, &name, &dept, &date,
		&start, &end,
		&r.TotalDurationMinutes, &r.BreakDurationMinutes, &r.ActualWorkMinutes, &r.OvertimeMinutes,
		&status, &category, &note, &r.Synthetic, &r.Calibrated, &updated,
	)
	if err != nil {
		return r, err
	}

	r.ID = generic.RecordID(id)
	r.CompanyID = company
	r.UserID = generic.UserID(userID)
	r.UserName, r.Department, r.Note = name.String, dept.String, note.String
	if r.Date, err = generic.ParseDate(date); err != nil {
		return r, err
	}
	if start.Valid {
		r.Start = generic.Clock(int(start.Int64))
	}
	if end.Valid {
		r.End = generic.Clock(int(end.Int64))
	}
	r.Status = attendance.Status(status)
	r.CategoricalStatus = attendance.CategoricalStatus(category)
	return r, nil
}

// =============================================================================
// HOLIDAY CALENDAR IMPLEMENTATION
// =============================================================================

// SaveHoliday saves a holiday to the database.
func (s *Store) SaveHoliday(ctx context.Context, h generic.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO holidays (id, company_id, date, name, recurring, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(company_id, date, name) DO UPDATE SET
			recurring = excluded.recurring
	`

	_, err := s.db.ExecContext(ctx, query,
		h.ID,
		h.CompanyID,
		h.Date.String(),
		h.Name,
		h.Recurring,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// DeleteHoliday deletes a holiday by ID.
func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM holidays WHERE id = ?", id)
	return err
}

// GetHolidays returns all holidays for a company in a given year.
// Includes both company-specific and global holidays; recurring ones are
// moved into year.
func (s *Store) GetHolidays(ctx context.Context, companyID string, year int) ([]generic.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, company_id, date, name, recurring
		FROM holidays
		WHERE (company_id = ? OR company_id = '')
		  AND (recurring = TRUE OR strftime('%Y', date) = ?)
		ORDER BY strftime('%m-%d', date) ASC
	`

	holidays, err := s.queryHolidays(ctx, query, companyID, fmt.Sprintf("%04d", year))
	if err != nil {
		return nil, err
	}
	for i := range holidays {
		if holidays[i].Recurring {
			d := holidays[i].Date
			holidays[i].Date = generic.NewTimePoint(year, d.Month(), d.Day())
		}
	}
	return holidays, nil
}

// IsHoliday checks if a date is a holiday for the given company. Lookup
// failures count as working days.
func (s *Store) IsHoliday(companyID string, date generic.TimePoint) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT COUNT(*) FROM holidays
		WHERE (company_id = ? OR company_id = '')
		  AND (
			(recurring = FALSE AND date = ?)
			OR (recurring = TRUE AND strftime('%m-%d', date) = ?)
		  )
	`

	var count int
	err := s.db.QueryRow(query, companyID, date.String(), date.Time.Format("01-02")).Scan(&count)
	if err != nil {
		return false
	}
	return count > 0
}

// GetAllHolidays returns all holidays (for admin UI).
func (s *Store) GetAllHolidays(ctx context.Context, companyID string) ([]generic.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, company_id, date, name, recurring
		FROM holidays
		WHERE company_id = ? OR company_id = ''
		ORDER BY date ASC
	`
	return s.queryHolidays(ctx, query, companyID)
}

func (s *Store) queryHolidays(ctx context.Context, query string, args ...any) ([]generic.Holiday, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	holidays := []generic.Holiday{}
	for rows.Next() {
		var h generic.Holiday
		var dateStr string
		if err := rows.Scan(&h.ID, &h.CompanyID, &dateStr, &h.Name, &h.Recurring); err != nil {
			return nil, err
		}
		if h.Date, err = generic.ParseDate(dateStr); err != nil {
			return nil, err
		}
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

// =============================================================================
// SYNTHESIS PREVIEW STORE
// =============================================================================

// SavePreview upserts the preview header. Its records live in the preview
// view of day_records.
func (s *Store) SavePreview(ctx context.Context, p attendance.SynthesisPreview) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mismatched, err := json.Marshal(p.Mismatched)
	if err != nil {
		return fmt.Errorf("encode mismatched: %w", err)
	}
	verifications, err := json.Marshal(p.Verifications)
	if err != nil {
		return fmt.Errorf("encode verifications: %w", err)
	}

	query := `
		INSERT INTO synthesis_previews (id, company_id, period_start, period_end, status, termination,
			attempt, max_repair_rounds, mismatched_json, verifications_json, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			termination = excluded.termination,
			attempt = excluded.attempt,
			mismatched_json = excluded.mismatched_json,
			verifications_json = excluded.verifications_json,
			error = excluded.error,
			updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		p.ID, p.CompanyID, p.Period.Start.String(), p.Period.End.String(),
		string(p.Status), string(p.Termination), p.Attempt, p.MaxRepairRounds,
		string(mismatched), string(verifications), nullString(p.Error),
		p.CreatedAt.UTC().Format(time.RFC3339Nano), p.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// GetPreview retrieves a preview header by ID.
func (s *Store) GetPreview(ctx context.Context, id string) (*attendance.SynthesisPreview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		p                                 attendance.SynthesisPreview
		start, end, status, termination   string
		mismatched, verifications, errStr sql.NullString
		createdAt, updatedAt              string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, company_id, period_start, period_end, status, termination, attempt, max_repair_rounds,
			mismatched_json, verifications_json, error, created_at, updated_at
		FROM synthesis_previews WHERE id = ?`, id,
	).Scan(&p.ID, &p.CompanyID, &start, &end, &status, &termination, &p.Attempt, &p.MaxRepairRounds,
		&mismatched, &verifications, &errStr, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if p.Period.Start, err = generic.ParseDate(start); err != nil {
		return nil, err
	}
	if p.Period.End, err = generic.ParseDate(end); err != nil {
		return nil, err
	}
	p.Status = attendance.PreviewStatus(status)
	p.Termination = attendance.Termination(termination)
	p.Error = errStr.String
	if mismatched.Valid {
		if err := json.Unmarshal([]byte(mismatched.String), &p.Mismatched); err != nil {
			return nil, fmt.Errorf("decode mismatched: %w", err)
		}
	}
	if verifications.Valid {
		if err := json.Unmarshal([]byte(verifications.String), &p.Verifications); err != nil {
			return nil, fmt.Errorf("decode verifications: %w", err)
		}
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &p, nil
}

// =============================================================================
// ANOMALY SCAN STORE
// =============================================================================

// SaveScan appends a scan to the log.
func (s *Store) SaveScan(ctx context.Context, scan attendance.AnomalyScan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	violating, err := json.Marshal(scan.ViolatingUserIDs)
	if err != nil {
		return fmt.Errorf("encode violating users: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO anomaly_scans (id, company_id, scan_trigger, record_count, violation_count, violating_json, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		scan.ID, scan.CompanyID, scan.Trigger, scan.RecordCount, scan.ViolationCount,
		string(violating), scan.ScannedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// ListScans returns the newest scans first. limit <= 0 means all.
func (s *Store) ListScans(ctx context.Context, limit int) ([]attendance.AnomalyScan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, company_id, scan_trigger, record_count, violation_count, violating_json, scanned_at
		FROM anomaly_scans
		ORDER BY rowid DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scans := []attendance.AnomalyScan{}
	for rows.Next() {
		var (
			scan      attendance.AnomalyScan
			violating sql.NullString
			scannedAt string
		)
		if err := rows.Scan(&scan.ID, &scan.CompanyID, &scan.Trigger, &scan.RecordCount,
			&scan.ViolationCount, &violating, &scannedAt); err != nil {
			return nil, err
		}
		if violating.Valid {
			if err := json.Unmarshal([]byte(violating.String), &scan.ViolatingUserIDs); err != nil {
				return nil, fmt.Errorf("decode violating users: %w", err)
			}
		}
		scan.ScannedAt, _ = time.Parse(time.RFC3339Nano, scannedAt)
		scans = append(scans, scan)
	}
	return scans, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"raw_punches", "policies", "day_records", "holidays", "synthesis_previews", "anomaly_scans"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// filterClause renders a RecordFilter as AND conditions on user_id and date.
func filterClause(f attendance.RecordFilter) (string, []any) {
	var (
		clause strings.Builder
		args   []any
	)
	if f.UserID != "" {
		clause.WriteString(" AND user_id = ?")
		args = append(args, string(f.UserID))
	}
	if !f.From.IsZero() {
		clause.WriteString(" AND date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		clause.WriteString(" AND date <= ?")
		args = append(args, f.To.String())
	}
	return clause.String(), args
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullMinutes(c generic.ClockTime) sql.NullInt64 {
	if !c.Valid {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(c.Minutes), Valid: true}
}

var (
	_ attendance.Store        = (*Store)(nil)
	_ generic.HolidayCalendar = (*Store)(nil)
)
