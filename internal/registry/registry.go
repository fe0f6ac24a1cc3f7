// Package registry keeps the candidate register in SQLite.
//
// Candidates are keyed by IC number. Imports from payment workbooks merge
// into existing rows instead of replacing them, so bank details collected
// from one project are not lost when a later sheet leaves them blank.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/baito-events/baitokit/internal/clean"
	"github.com/baito-events/baitokit/internal/payroll"
	"github.com/baito-events/baitokit/internal/registry/migrations"
)

var ErrNotFound = errors.New("candidate not found")

const (
	StatusActive       = "active"
	defaultNationality = "Malaysian"
	migrationTable     = "schema_migrations"
)

// Candidate is one row of the register.
type Candidate struct {
	ICNumber      string    `json:"ic_number"`
	FullName      string    `json:"full_name"`
	BankName      string    `json:"bank_name,omitempty"`
	AccountNumber string    `json:"account_number,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Nationality   string    `json:"nationality"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ImportResult summarises one Import call.
type ImportResult struct {
	BatchID  string   `json:"batch_id"`
	Source   string   `json:"source"`
	Records  int      `json:"records"`
	Inserted int      `json:"inserted"`
	Updated  int      `json:"updated"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

// Store persists candidates in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the register at path and applies the embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("registry path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func applyMigrations(sqlDB *sql.DB, migrationFS fs.FS) error {
	if _, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	names, err := fs.Glob(migrationFS, "*.sql")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Strings(names)
	for _, name := range names {
		var applied int
		if err := sqlDB.QueryRow(`SELECT COUNT(1) FROM `+migrationTable+` WHERE name = ?`, name).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if applied > 0 {
			continue
		}
		content, err := fs.ReadFile(migrationFS, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		tx, err := sqlDB.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", name, err)
		}
		if _, err := tx.Exec(`INSERT INTO `+migrationTable+` (name, applied_at) VALUES (?, ?)`, name, toMillis(time.Now())); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
	}
	return nil
}

// longer returns next when it is non-empty and longer than current.
func longer(current, next string) string {
	if next != "" && (current == "" || utf8.RuneCountInString(next) > utf8.RuneCountInString(current)) {
		return next
	}
	return current
}

func mergeInto(dst *Candidate, src Candidate) {
	dst.BankName = longer(dst.BankName, src.BankName)
	dst.AccountNumber = longer(dst.AccountNumber, src.AccountNumber)
	dst.Phone = longer(dst.Phone, src.Phone)
}

// MergeCandidates folds duplicates by IC. The first occurrence keeps its
// name; bank and phone fields take the longer non-empty value. Order of
// first appearance is preserved.
func MergeCandidates(cands []Candidate) []Candidate {
	index := make(map[string]int, len(cands))
	var out []Candidate
	for _, c := range cands {
		if i, ok := index[c.ICNumber]; ok {
			mergeInto(&out[i], c)
			continue
		}
		index[c.ICNumber] = len(out)
		out = append(out, c)
	}
	return out
}

// CandidatesFromRecords turns extracted payment records into register
// candidates. Records without a plausible IC or name are skipped and claim
// placeholders never become a bank name.
func CandidatesFromRecords(records []payroll.Record) []Candidate {
	var out []Candidate
	for _, r := range records {
		ic := clean.ICNumber(r.ICNumber)
		name := clean.Name(r.FullName)
		if ic == "" || name == "" {
			continue
		}
		c := Candidate{ICNumber: ic, FullName: name, AccountNumber: clean.Account(r.AccountNumber)}
		if bank := clean.BankName(r.BankName); !clean.ClaimBank(bank) {
			c.BankName = bank
		}
		out = append(out, c)
	}
	return out
}

// Upsert inserts c or merges it into the existing row with the same IC.
// An existing row takes the new full name and the longer of each bank and
// phone field; its status is set back to active.
func (s *Store) Upsert(ctx context.Context, c Candidate) (inserted bool, err error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("registry is not configured")
	}
	c.ICNumber = clean.ICNumber(c.ICNumber)
	c.FullName = strings.TrimSpace(c.FullName)
	c.Phone = clean.Phone(c.Phone)
	if c.ICNumber == "" {
		return false, fmt.Errorf("ic number is required")
	}
	if c.FullName == "" {
		return false, fmt.Errorf("full name is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin upsert: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	existing, err := scanCandidate(tx.QueryRowContext(ctx, selectCandidate+` WHERE ic_number = ?`, c.ICNumber))
	now := toMillis(s.now())
	switch {
	case errors.Is(err, ErrNotFound):
		_, err = tx.ExecContext(ctx,
			`INSERT INTO candidates (
			   ic_number, full_name, bank_name, account_number, phone,
			   nationality, status, created_at, updated_at
			 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ICNumber, c.FullName, c.BankName, c.AccountNumber, c.Phone,
			defaultNationality, StatusActive, now, now,
		)
		if err != nil {
			return false, fmt.Errorf("create candidate: %w", err)
		}
		inserted = true
	case err != nil:
		return false, err
	default:
		mergeInto(&existing, c)
		_, err = tx.ExecContext(ctx,
			`UPDATE candidates
			 SET full_name = ?, bank_name = ?, account_number = ?, phone = ?, status = ?, updated_at = ?
			 WHERE ic_number = ?`,
			c.FullName, existing.BankName, existing.AccountNumber, existing.Phone, StatusActive, now, c.ICNumber,
		)
		if err != nil {
			return false, fmt.Errorf("update candidate: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit upsert: %w", err)
	}
	return inserted, nil
}

// Import merges cands and upserts them, recording the run under a new
// batch id. A failing candidate is counted and the rest still import.
func (s *Store) Import(ctx context.Context, source string, cands []Candidate) (ImportResult, error) {
	res := ImportResult{BatchID: uuid.NewString(), Source: source}
	merged := MergeCandidates(cands)
	res.Records = len(merged)
	for _, c := range merged {
		inserted, err := s.Upsert(ctx, c)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("%s (%s): %v", c.FullName, c.ICNumber, err))
			continue
		}
		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO imports (batch_id, source, records, inserted, updated, failed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		res.BatchID, source, res.Records, res.Inserted, res.Updated, res.Failed, toMillis(s.now()),
	)
	if err != nil {
		return res, fmt.Errorf("record import: %w", err)
	}
	return res, nil
}

const selectCandidate = `SELECT ic_number, full_name, bank_name, account_number, phone,
       nationality, status, created_at, updated_at
FROM candidates`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCandidate(row rowScanner) (Candidate, error) {
	var c Candidate
	var createdAt, updatedAt int64
	err := row.Scan(&c.ICNumber, &c.FullName, &c.BankName, &c.AccountNumber, &c.Phone,
		&c.Nationality, &c.Status, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Candidate{}, ErrNotFound
	}
	if err != nil {
		return Candidate{}, fmt.Errorf("scan candidate: %w", err)
	}
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return c, nil
}

// Get returns the candidate with the given IC.
func (s *Store) Get(ctx context.Context, ic string) (Candidate, error) {
	if err := ctx.Err(); err != nil {
		return Candidate{}, err
	}
	return scanCandidate(s.sqlDB.QueryRowContext(ctx, selectCandidate+` WHERE ic_number = ?`, clean.ICNumber(ic)))
}

// List returns every candidate ordered by name.
func (s *Store) List(ctx context.Context) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, selectCandidate+` ORDER BY full_name, ic_number`)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()
	var out []Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Imports returns the most recent import runs, newest first.
func (s *Store) Imports(ctx context.Context, limit int) ([]ImportResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT batch_id, source, records, inserted, updated, failed
		 FROM imports ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	defer rows.Close()
	var out []ImportResult
	for rows.Next() {
		var r ImportResult
		if err := rows.Scan(&r.BatchID, &r.Source, &r.Records, &r.Inserted, &r.Updated, &r.Failed); err != nil {
			return nil, fmt.Errorf("scan import: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
