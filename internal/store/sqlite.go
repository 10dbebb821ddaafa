package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/therealashik/julesctl/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
//
// Sessions and activities are stored as JSON blobs alongside the few columns
// the queries need (name, state, create_time). The remote payload shape
// evolves faster than a column-per-field schema would tolerate.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single
	// connection serializes all DB access through Go's connection pool,
	// preventing "database is locked" errors from concurrent writers.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout so concurrent writes wait instead of failing immediately
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	// Create migrations tracking table
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	// Sort by filename
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		// Check if already applied
		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Sessions ---

func (s *SQLiteStore) UpsertSession(ctx context.Context, sess *models.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (name, state, create_time, data, synced_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			state = excluded.state,
			create_time = excluded.create_time,
			data = excluded.data,
			synced_at = excluded.synced_at`,
		sess.Name, string(sess.State), sess.CreateTime, string(data), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpsertSessions(ctx context.Context, sessions []models.Session) error {
	if len(sessions) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for i := range sessions {
		data, err := json.Marshal(&sessions[i])
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sessions (name, state, create_time, data, synced_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				state = excluded.state,
				create_time = excluded.create_time,
				data = excluded.data,
				synced_at = excluded.synced_at`,
			sessions[i].Name, string(sessions[i].State), sessions[i].CreateTime, string(data), now,
		)
		if err != nil {
			return fmt.Errorf("upsert session %s: %w", sessions[i].Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, name string) (*models.Session, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM sessions WHERE name = ?", name,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session not found: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	sess := &models.Session{}
	if err := json.Unmarshal([]byte(data), sess); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", name, err)
	}
	return sess, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context) ([]models.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT data FROM sessions ORDER BY create_time DESC")
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []models.Session
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		var sess models.Session
		if err := json.Unmarshal([]byte(data), &sess); err != nil {
			return nil, fmt.Errorf("unmarshal session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// DeleteSession removes a session and its mirrored activities.
func (s *SQLiteStore) DeleteSession(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM activities WHERE session_name = ?", name); err != nil {
		return fmt.Errorf("delete session activities: %w", err)
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("session not found: %s", name)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// --- Activities ---

// UpsertActivities mirrors a batch of activities. Re-upserting an already
// known activity is harmless; activities never change once observed.
func (s *SQLiteStore) UpsertActivities(ctx context.Context, sessionName string, activities []models.Activity) error {
	if len(activities) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range activities {
		data, err := json.Marshal(&activities[i])
		if err != nil {
			return fmt.Errorf("marshal activity: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO activities (name, session_name, create_time, data)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				create_time = excluded.create_time,
				data = excluded.data`,
			activities[i].Name, sessionName, activities[i].CreateTime, string(data),
		)
		if err != nil {
			return fmt.Errorf("upsert activity %s: %w", activities[i].Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListActivities(ctx context.Context, sessionName string) ([]models.Activity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM activities WHERE session_name = ?
		ORDER BY create_time, name`, sessionName)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var activities []models.Activity
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		var a models.Activity
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			return nil, fmt.Errorf("unmarshal activity: %w", err)
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

// LatestActivityTime returns the greatest create_time mirrored for a
// session, or "" when none exist. Timestamps order lexically, so MAX works.
func (s *SQLiteStore) LatestActivityTime(ctx context.Context, sessionName string) (string, error) {
	var latest sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT MAX(create_time) FROM activities WHERE session_name = ?", sessionName,
	).Scan(&latest)
	if err != nil {
		return "", fmt.Errorf("latest activity time: %w", err)
	}
	if !latest.Valid {
		return "", nil
	}
	return latest.String, nil
}
