/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements bank.Store (users, accounts, compare-and-swap balance writes)
  and bank.AuditLog (append-only audit_log table) using SQLite.

KEY TABLES:
  users:     one row per employee/customer, id primary key
  accounts:  one row per account, acct_no primary key, version for CAS
  audit_log: immutable record of every operation outcome

UNIQUENESS:
  Identity allocation relies on the primary keys. A racing insert fails with
  a constraint error which is translated to bank.ErrDuplicateKey.

SCOPED CONNECTIONS:
  Every call takes a connection from the pool and returns it on all exit
  paths via defer.

IN-MEMORY DATABASES:
  ":memory:" gives each connection its own database, so the pool is pinned
  to a single connection in that mode.

WAL MODE:
  File databases are opened with WAL and a busy timeout, so readers do not
  block the single writer and a writer waits instead of failing at once.

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  b := bank.New(store, store, bank.Options{})

SEE ALSO:
  - bank/store.go: Interface definitions
  - bank/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/retail-ledger/bank"
)

// auditTimeLayout is fixed width so that text order on audit_log.at is
// chronological order.
const auditTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements bank.Store and bank.AuditLog using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
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

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		kind TEXT NOT NULL CHECK (kind IN ('E', 'C')),
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		designation TEXT,
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS accounts (
		acct_no INTEGER PRIMARY KEY,
		owner_id INTEGER NOT NULL REFERENCES users(id),
		type TEXT NOT NULL CHECK (type IN ('Checking', 'Savings', 'Credit', 'Loan')),
		available INTEGER NOT NULL,
		remaining INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		version INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_owner
		ON accounts(owner_id, status);

	-- Audit log (append-only)
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		at TEXT NOT NULL,
		action TEXT NOT NULL,
		outcome TEXT NOT NULL,
		actor_id INTEGER,
		user_id INTEGER,
		acct_no INTEGER,
		amount INTEGER NOT NULL DEFAULT 0,
		available INTEGER,
		remaining INTEGER,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_acct
		ON audit_log(acct_no, at DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_user
		ON audit_log(user_id, at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// withConn runs fn on a connection that is released on every exit path.
func (s *Store) withConn(ctx context.Context, fn func(*sql.Conn) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()
	return fn(conn)
}

// =============================================================================
// USERS
// =============================================================================

func (s *Store) FindUsers(ctx context.Context, f bank.UserFilter) ([]bank.User, error) {
	var where []string
	var args []any
	if f.ID != 0 {
		where, args = append(where, "id = ?"), append(args, f.ID)
	}
	if f.FirstName != "" {
		where, args = append(where, "LOWER(first_name) = LOWER(?)"), append(args, f.FirstName)
	}
	if f.Kind != "" {
		where, args = append(where, "kind = ?"), append(args, string(f.Kind))
	}
	if f.Status != "" {
		where, args = append(where, "status = ?"), append(args, string(f.Status))
	}

	query := `SELECT id, kind, first_name, last_name, designation, status, created_at FROM users` +
		whereClause(where) + ` ORDER BY id`

	var users []bank.User
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var u bank.User
			var designation sql.NullString
			var createdAt string
			if err := rows.Scan(&u.ID, &u.Kind, &u.FirstName, &u.LastName, &designation, &u.Status, &createdAt); err != nil {
				return err
			}
			u.Designation = designation.String
			u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
			users = append(users, u)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	return users, nil
}

func (s *Store) InsertUser(ctx context.Context, u bank.User) (int64, error) {
	query := `
		INSERT INTO users (id, kind, first_name, last_name, designation, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	return s.exec(ctx, "insert user", query,
		u.ID,
		string(u.Kind),
		u.FirstName,
		u.LastName,
		nullString(u.Designation),
		string(u.Status),
		u.CreatedAt.UTC().Format(time.RFC3339),
	)
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// FindAccounts returns accounts ordered by number.
func (s *Store) FindAccounts(ctx context.Context, f bank.AccountFilter) ([]bank.Account, error) {
	var where []string
	var args []any
	if f.AcctNo != 0 {
		where, args = append(where, "acct_no = ?"), append(args, f.AcctNo)
	}
	if f.OwnerID != 0 {
		where, args = append(where, "owner_id = ?"), append(args, f.OwnerID)
	}
	if f.Status != "" {
		where, args = append(where, "status = ?"), append(args, string(f.Status))
	}
	if len(f.Types) > 0 {
		marks := make([]string, len(f.Types))
		for i, t := range f.Types {
			marks[i] = "?"
			args = append(args, string(t))
		}
		where = append(where, "type IN ("+strings.Join(marks, ", ")+")")
	}

	query := `SELECT acct_no, owner_id, type, available, remaining, status, version FROM accounts` +
		whereClause(where) + ` ORDER BY acct_no`

	var accts []bank.Account
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var a bank.Account
			if err := rows.Scan(&a.AcctNo, &a.OwnerID, &a.Type, &a.Available, &a.Remaining, &a.Status, &a.Version); err != nil {
				return err
			}
			accts = append(accts, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	return accts, nil
}

func (s *Store) InsertAccount(ctx context.Context, a bank.Account) (int64, error) {
	query := `
		INSERT INTO accounts (acct_no, owner_id, type, available, remaining, status, version)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	return s.exec(ctx, "insert account", query,
		a.AcctNo, a.OwnerID, string(a.Type), a.Available, a.Remaining, string(a.Status), a.Version)
}

// UpdateBalance is a compare-and-swap on the row version.
func (s *Store) UpdateBalance(ctx context.Context, u bank.BalanceUpdate) (int64, error) {
	query := `
		UPDATE accounts
		SET available = ?, remaining = ?, version = version + 1
		WHERE acct_no = ? AND status = 'ACTIVE' AND version = ?
		  AND (? = 0 OR owner_id = ?)
	`
	return s.exec(ctx, "update balance", query,
		u.Available, u.Remaining, u.AcctNo, u.ExpectedVersion, u.OwnerID, u.OwnerID)
}

// SetAccountStatus is the administrative path for closing accounts.
func (s *Store) SetAccountStatus(ctx context.Context, no bank.AcctNo, status bank.Status) error {
	n, err := s.exec(ctx, "set account status", `UPDATE accounts SET status = ? WHERE acct_no = ?`, string(status), no)
	if err != nil {
		return err
	}
	if n == 0 {
		return bank.ErrAccountNotFound
	}
	return nil
}

// =============================================================================
// AUDIT LOG (bank.AuditLog, bank.AuditQuerier)
// =============================================================================

// Record appends e to audit_log.
func (s *Store) Record(ctx context.Context, e bank.AuditEvent) error {
	query := `
		INSERT INTO audit_log
		(id, at, action, outcome, actor_id, user_id, acct_no, amount, available, remaining, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.exec(ctx, "record audit", query,
		e.ID,
		e.At.UTC().Format(auditTimeLayout),
		string(e.Action),
		string(e.Outcome),
		nullUserID(e.ActorID),
		nullUserID(e.UserID),
		nullAcctNo(e.AcctNo),
		e.Amount,
		nullInt(e.Available),
		nullInt(e.Remaining),
		nullString(e.Error),
	)
	return err
}

// Query returns matching events newest first.
func (s *Store) Query(ctx context.Context, f bank.AuditFilter) ([]bank.AuditEvent, error) {
	var where []string
	var args []any
	if f.AcctNo != 0 {
		where, args = append(where, "acct_no = ?"), append(args, f.AcctNo)
	}
	if f.UserID != 0 {
		where, args = append(where, "user_id = ?"), append(args, f.UserID)
	}
	if len(f.Actions) > 0 {
		marks := make([]string, len(f.Actions))
		for i, a := range f.Actions {
			marks[i] = "?"
			args = append(args, string(a))
		}
		where = append(where, "action IN ("+strings.Join(marks, ", ")+")")
	}

	query := `SELECT id, at, action, outcome, actor_id, user_id, acct_no, amount, available, remaining, error
		FROM audit_log` + whereClause(where) + ` ORDER BY at DESC, rowid DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	var events []bank.AuditEvent
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			e, err := scanAuditEvent(rows)
			if err != nil {
				return err
			}
			events = append(events, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	return events, nil
}

func scanAuditEvent(rows *sql.Rows) (bank.AuditEvent, error) {
	var e bank.AuditEvent
	var at string
	var actorID, userID, acctNo, available, remaining sql.NullInt64
	var errText sql.NullString

	err := rows.Scan(&e.ID, &at, &e.Action, &e.Outcome, &actorID, &userID, &acctNo,
		&e.Amount, &available, &remaining, &errText)
	if err != nil {
		return e, err
	}

	e.At, _ = time.Parse(time.RFC3339Nano, at)
	if actorID.Valid {
		id := bank.UserID(actorID.Int64)
		e.ActorID = &id
	}
	if userID.Valid {
		id := bank.UserID(userID.Int64)
		e.UserID = &id
	}
	e.AcctNo = bank.AcctNo(acctNo.Int64)
	if available.Valid {
		e.Available = &available.Int64
	}
	if remaining.Valid {
		e.Remaining = &remaining.Int64
	}
	e.Error = errText.String
	return e, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	var n int64
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return 0, bank.ErrDuplicateKey
		}
		return 0, fmt.Errorf("failed to %s: %w", op, err)
	}
	return n, nil
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullUserID(id *bank.UserID) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*id), Valid: true}
}

func nullAcctNo(no bank.AcctNo) sql.NullInt64 {
	if no == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(no), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
