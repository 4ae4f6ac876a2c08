package state

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

// SQLiteStateConfig configures the SQLite-backed state store.
type SQLiteStateConfig struct {
	// DSN is the database connection string.
	DSN string
}

// SQLiteState persists problem state to a SQLite database. It is the
// durable store behind the problem-state service; unlike MemState, its
// object universe is declared explicitly via AddObject and function
// updates upsert.
type SQLiteState struct {
	db *sql.DB
}

// NewSQLiteState opens (or creates) a SQLite state store.
func NewSQLiteState(cfg SQLiteStateConfig) (*SQLiteState, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlitestate: open: %w", err)
	}

	// Enable WAL mode for concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitestate: set WAL mode: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitestate: create schema: %w", err)
	}

	return &SQLiteState{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteState) Close() error {
	return s.db.Close()
}

func (s *SQLiteState) ExistsPredicate(ctx context.Context, p Predicate) (bool, error) {
	args, err := encodeArgs(p.Args)
	if err != nil {
		return false, err
	}
	var one int
	err = s.db.QueryRowContext(ctx,
		`SELECT 1 FROM predicates WHERE name = ? AND args = ?`, p.Name, args,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlitestate: exists predicate: %w", err)
	}
	return true, nil
}

func (s *SQLiteState) AddPredicate(ctx context.Context, p Predicate) error {
	args, err := encodeArgs(p.Args)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO predicates (name, args) VALUES (?, ?)
		 ON CONFLICT (name, args) DO NOTHING`, p.Name, args)
	if err != nil {
		return fmt.Errorf("sqlitestate: add predicate: %w", err)
	}
	return nil
}

func (s *SQLiteState) RemovePredicate(ctx context.Context, p Predicate) error {
	args, err := encodeArgs(p.Args)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`DELETE FROM predicates WHERE name = ? AND args = ?`, p.Name, args)
	if err != nil {
		return fmt.Errorf("sqlitestate: remove predicate: %w", err)
	}
	return nil
}

func (s *SQLiteState) Function(ctx context.Context, ref Predicate) (float64, bool, error) {
	args, err := encodeArgs(ref.Args)
	if err != nil {
		return 0, false, err
	}
	var value float64
	err = s.db.QueryRowContext(ctx,
		`SELECT value FROM functions WHERE name = ? AND args = ?`, ref.Name, args,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("sqlitestate: read function: %w", err)
	}
	return value, true, nil
}

func (s *SQLiteState) UpdateFunction(ctx context.Context, f Function) error {
	args, err := encodeArgs(f.Args)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO functions (name, args, value) VALUES (?, ?, ?)
		 ON CONFLICT (name, args) DO UPDATE SET value = excluded.value`,
		f.Name, args, f.Value)
	if err != nil {
		return fmt.Errorf("sqlitestate: update function: %w", err)
	}
	return nil
}

// AddObject registers an object in the universe. The type is advisory.
func (s *SQLiteState) AddObject(ctx context.Context, name, typ string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO objects (name, type) VALUES (?, ?)
		 ON CONFLICT (name) DO UPDATE SET type = excluded.type`, name, typ)
	if err != nil {
		return fmt.Errorf("sqlitestate: add object: %w", err)
	}
	return nil
}

func (s *SQLiteState) Objects(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM objects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestate: list objects: %w", err)
	}
	defer rows.Close()

	var objects []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("sqlitestate: scan object: %w", err)
		}
		objects = append(objects, name)
	}
	return objects, rows.Err()
}

// Predicates returns all currently held facts.
func (s *SQLiteState) Predicates(ctx context.Context) ([]Predicate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, args FROM predicates ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestate: list predicates: %w", err)
	}
	defer rows.Close()

	var predicates []Predicate
	for rows.Next() {
		var name, args string
		if err := rows.Scan(&name, &args); err != nil {
			return nil, fmt.Errorf("sqlitestate: scan predicate: %w", err)
		}
		decoded, err := decodeArgs(args)
		if err != nil {
			return nil, err
		}
		predicates = append(predicates, Predicate{Name: name, Args: decoded})
	}
	return predicates, rows.Err()
}

// Functions returns all currently held fluents.
func (s *SQLiteState) Functions(ctx context.Context) ([]Function, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, args, value FROM functions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestate: list functions: %w", err)
	}
	defer rows.Close()

	var functions []Function
	for rows.Next() {
		var name, args string
		var value float64
		if err := rows.Scan(&name, &args, &value); err != nil {
			return nil, fmt.Errorf("sqlitestate: scan function: %w", err)
		}
		decoded, err := decodeArgs(args)
		if err != nil {
			return nil, err
		}
		functions = append(functions, Function{Name: name, Args: decoded, Value: value})
	}
	return functions, rows.Err()
}

func encodeArgs(args []string) (string, error) {
	if args == nil {
		args = []string{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("sqlitestate: encode args: %w", err)
	}
	return string(data), nil
}

func decodeArgs(data string) ([]string, error) {
	var args []string
	if err := json.Unmarshal([]byte(data), &args); err != nil {
		return nil, fmt.Errorf("sqlitestate: decode args %q: %w", data, err)
	}
	if len(args) == 0 {
		return nil, nil
	}
	return args, nil
}

// Compile-time interface check.
var _ Store = (*SQLiteState)(nil)
