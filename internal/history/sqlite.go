// ABOUTME: SQLite-backed local transcript cache using modernc.org/sqlite
// ABOUTME: Whole-conversation replace on write, chronological load on start

package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lmajedshbeir/neora-client/internal/chat"
)

// Cache stores the last confirmed transcript in a local SQLite file. It
// satisfies chat.HistoryCache.
type Cache struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens the cache at path. Parent directories are created
// if needed and the schema is applied automatically.
func Open(path string, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "history")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	c := &Cache{db: db, logger: logger}
	if err := c.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Debug("history cache opened", "path", path)
	return c, nil
}

func (c *Cache) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS messages (
			position INTEGER PRIMARY KEY,
			id TEXT NOT NULL,
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			audio_url TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		);
	`
	_, err := c.db.Exec(schema)
	return err
}

// ReplaceAll swaps the cached transcript for msgs (chronological order).
// The replace is transactional so a crash never leaves a half-written
// transcript.
func (c *Cache) ReplaceAll(ctx context.Context, msgs []chat.Message) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages"); err != nil {
		return fmt.Errorf("clearing cached messages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (position, id, role, text, audio_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, m := range msgs {
		if m.Kind != chat.KindConfirmed {
			continue
		}
		if _, err := stmt.ExecContext(ctx, i, m.ID, string(m.Role), m.Text, m.AudioURL, m.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("inserting message %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transcript: %w", err)
	}
	c.logger.Debug("transcript cached", "messages", len(msgs))
	return nil
}

// Load returns the cached transcript in chronological order. An empty or
// missing cache yields an empty slice.
func (c *Cache) Load(ctx context.Context) ([]chat.Message, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, role, text, audio_url, created_at
		FROM messages
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying cached messages: %w", err)
	}
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		var (
			m         chat.Message
			role      string
			createdAt time.Time
		)
		if err := rows.Scan(&m.ID, &role, &m.Text, &m.AudioURL, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning cached message: %w", err)
		}
		m.Role = chat.Role(role)
		m.Kind = chat.KindConfirmed
		m.CreatedAt = createdAt
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Clear drops the cached transcript.
func (c *Cache) Clear(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, "DELETE FROM messages"); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}
