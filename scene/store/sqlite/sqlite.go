// Package sqlite persists scene state in an embedded SQLite database.
package sqlite

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/jay7-tech/memo-go/core"
	"github.com/jay7-tech/memo-go/scene"
)

// Store keeps the object map and focus flag in SQLite. A single
// connection with WAL journaling is enough: writes happen on the flush
// cadence, not the frame cadence.
type Store struct {
	conn *sql.DB
	log  *zap.Logger
}

// New opens (and if necessary creates) the database at path.
func New(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open scene database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	s := &Store{conn: conn, log: log.Named("scenestore")}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate scene database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS objects (
		label TEXT PRIMARY KEY,
		x REAL NOT NULL,
		y REAL NOT NULL,
		w REAL NOT NULL,
		h REAL NOT NULL,
		last_seen INTEGER NOT NULL,
		position INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`
	_, err := s.conn.Exec(schema)
	return err
}

// Save replaces the persisted state with the given one.
func (s *Store) Save(state scene.State) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM objects`); err != nil {
		return fmt.Errorf("clear objects: %w", err)
	}
	for _, rec := range state.Objects {
		_, err := tx.Exec(
			`INSERT INTO objects (label, x, y, w, h, last_seen, position) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.Label, rec.Box.X, rec.Box.Y, rec.Box.W, rec.Box.H,
			rec.LastSeen.UnixNano(), int(rec.Position),
		)
		if err != nil {
			return fmt.Errorf("insert object %q: %w", rec.Label, err)
		}
	}

	_, err = tx.Exec(
		`INSERT INTO settings (key, value) VALUES ('focus_mode', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		strconv.FormatBool(state.FocusMode),
	)
	if err != nil {
		return fmt.Errorf("save focus flag: %w", err)
	}
	return tx.Commit()
}

// Load reads the persisted state. Rows that fail to scan are skipped with
// a warning so one corrupt record cannot take the whole model down.
func (s *Store) Load() (scene.State, error) {
	var state scene.State

	rows, err := s.conn.Query(`SELECT label, x, y, w, h, last_seen, position FROM objects`)
	if err != nil {
		return scene.State{}, fmt.Errorf("load objects: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec scene.ObjectRecord
		var lastSeen int64
		var position int
		if err := rows.Scan(&rec.Label, &rec.Box.X, &rec.Box.Y, &rec.Box.W, &rec.Box.H, &lastSeen, &position); err != nil {
			s.log.Warn("skipping unreadable object row", zap.Error(err))
			continue
		}
		rec.LastSeen = time.Unix(0, lastSeen)
		rec.Position = core.Position(position)
		state.Objects = append(state.Objects, rec)
	}
	if err := rows.Err(); err != nil {
		return scene.State{}, fmt.Errorf("load objects: %w", err)
	}

	var value string
	err = s.conn.QueryRow(`SELECT value FROM settings WHERE key = 'focus_mode'`).Scan(&value)
	switch {
	case err == sql.ErrNoRows:
		// Fresh database; focus defaults to off.
	case err != nil:
		return scene.State{}, fmt.Errorf("load focus flag: %w", err)
	default:
		state.FocusMode = value == "true"
	}
	return state, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}
