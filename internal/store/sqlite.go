package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/flexer23/TRTwitchPlaysBot/internal/model"
)

const settingsKey = "bot_data"

// schema mirrors spec.md §6's "bot_data" document split into normalized
// tables instead of one blob, the way d1-shim exposes ordinary SQL over
// what upstream modeled as a single document store.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	name TEXT PRIMARY KEY,
	level INTEGER NOT NULL,
	opted_out INTEGER NOT NULL,
	auto_whitelisted INTEGER NOT NULL,
	message_count INTEGER NOT NULL,
	valid_input_count INTEGER NOT NULL,
	port INTEGER NOT NULL,
	silenced INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS macros (
	name TEXT PRIMARY KEY,
	expansion TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS memes (
	trigger TEXT PRIMARY KEY,
	response TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS input_callbacks (
	input_name TEXT PRIMARY KEY,
	callback_id TEXT NOT NULL
);
`

// Sqlite is the concrete Store backed by modernc.org/sqlite, following
// d1-shim's connection setup: a single serialized connection (WAL mode,
// one open/idle conn), so concurrent callers' writes are serialized by
// the connection pool itself.
type Sqlite struct {
	db *sql.DB
}

// OpenSqlite opens (creating if needed) a sqlite database at path.
func OpenSqlite(path string) (*Sqlite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: set journal mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	return &Sqlite{db: db}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *Sqlite) SaveUser(u *model.User) error {
	_, err := s.db.Exec(`
		INSERT INTO users (name, level, opted_out, auto_whitelisted, message_count, valid_input_count, port, silenced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			level=excluded.level,
			opted_out=excluded.opted_out,
			auto_whitelisted=excluded.auto_whitelisted,
			message_count=excluded.message_count,
			valid_input_count=excluded.valid_input_count,
			port=excluded.port,
			silenced=excluded.silenced`,
		u.Name, int(u.Level), boolToInt(u.OptedOut), boolToInt(u.AutoWhitelisted),
		u.MessageCount, u.ValidInputCount, u.Port, boolToInt(u.Silenced))
	if err != nil {
		return fmt.Errorf("store: save user %q: %w", u.Name, err)
	}
	return nil
}

func scanUser(row interface {
	Scan(dest ...interface{}) error
}) (*model.User, error) {
	var u model.User
	var level int
	var optedOut, autoWl, silenced int
	if err := row.Scan(&u.Name, &level, &optedOut, &autoWl, &u.MessageCount, &u.ValidInputCount, &u.Port, &silenced); err != nil {
		return nil, err
	}
	u.Level = model.AccessLevel(level)
	u.OptedOut = optedOut != 0
	u.AutoWhitelisted = autoWl != 0
	u.Silenced = silenced != 0
	return &u, nil
}

func (s *Sqlite) LoadUser(name string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT name, level, opted_out, auto_whitelisted, message_count, valid_input_count, port, silenced FROM users WHERE name = ?`, name)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load user %q: %w", name, err)
	}
	return u, nil
}

func (s *Sqlite) LoadAllUsers() ([]*model.User, error) {
	rows, err := s.db.Query(`SELECT name, level, opted_out, auto_whitelisted, message_count, valid_input_count, port, silenced FROM users`)
	if err != nil {
		return nil, fmt.Errorf("store: load all users: %w", err)
	}
	defer rows.Close()

	var out []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Sqlite) SaveMacro(m MacroRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO macros (name, expansion) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET expansion=excluded.expansion`,
		m.Name, m.Expansion)
	if err != nil {
		return fmt.Errorf("store: save macro %q: %w", m.Name, err)
	}
	return nil
}

func (s *Sqlite) DeleteMacro(name string) error {
	_, err := s.db.Exec(`DELETE FROM macros WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("store: delete macro %q: %w", name, err)
	}
	return nil
}

func (s *Sqlite) LoadAllMacros() ([]MacroRecord, error) {
	rows, err := s.db.Query(`SELECT name, expansion FROM macros`)
	if err != nil {
		return nil, fmt.Errorf("store: load all macros: %w", err)
	}
	defer rows.Close()

	var out []MacroRecord
	for rows.Next() {
		var m MacroRecord
		if err := rows.Scan(&m.Name, &m.Expansion); err != nil {
			return nil, fmt.Errorf("store: scan macro: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Sqlite) SaveMeme(trigger, response string) error {
	_, err := s.db.Exec(`
		INSERT INTO memes (trigger, response) VALUES (?, ?)
		ON CONFLICT(trigger) DO UPDATE SET response=excluded.response`,
		trigger, response)
	if err != nil {
		return fmt.Errorf("store: save meme %q: %w", trigger, err)
	}
	return nil
}

func (s *Sqlite) DeleteMeme(trigger string) error {
	_, err := s.db.Exec(`DELETE FROM memes WHERE trigger = ?`, trigger)
	if err != nil {
		return fmt.Errorf("store: delete meme %q: %w", trigger, err)
	}
	return nil
}

func (s *Sqlite) LoadAllMemes() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT trigger, response FROM memes`)
	if err != nil {
		return nil, fmt.Errorf("store: load all memes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var trigger, response string
		if err := rows.Scan(&trigger, &response); err != nil {
			return nil, fmt.Errorf("store: scan meme: %w", err)
		}
		out[trigger] = response
	}
	return out, rows.Err()
}

func (s *Sqlite) SaveSettingsJSON(data []byte) error {
	// Round-trip through json.RawMessage purely to fail fast on malformed
	// callers rather than silently persisting garbage.
	var probe json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("store: settings payload is not valid JSON: %w", err)
	}
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		settingsKey, string(data))
	if err != nil {
		return fmt.Errorf("store: save settings: %w", err)
	}
	return nil
}

func (s *Sqlite) LoadSettingsJSON() ([]byte, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, settingsKey).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load settings: %w", err)
	}
	return []byte(value), nil
}

func (s *Sqlite) SaveInputCallback(inputName, callbackID string) error {
	_, err := s.db.Exec(`
		INSERT INTO input_callbacks (input_name, callback_id) VALUES (?, ?)
		ON CONFLICT(input_name) DO UPDATE SET callback_id=excluded.callback_id`,
		inputName, callbackID)
	if err != nil {
		return fmt.Errorf("store: save input callback %q: %w", inputName, err)
	}
	return nil
}

func (s *Sqlite) LoadInputCallbacks() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT input_name, callback_id FROM input_callbacks`)
	if err != nil {
		return nil, fmt.Errorf("store: load input callbacks: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, id string
		if err := rows.Scan(&name, &id); err != nil {
			return nil, fmt.Errorf("store: scan input callback: %w", err)
		}
		out[name] = id
	}
	return out, rows.Err()
}

func (s *Sqlite) Close() error {
	return s.db.Close()
}
