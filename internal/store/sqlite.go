package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/mailpdf/internal/model"
)

// SQLiteStore implements the Ledger interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// A single connection serializes writers from concurrent workers and
	// keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// RecordDownload inserts a download row. Generates a UUID if ID is empty
// and stamps CreatedAt if it is zero.
func (s *SQLiteStore) RecordDownload(ctx context.Context, d model.Download) (bool, error) {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var previous int
	err = tx.GetContext(ctx, &previous,
		"SELECT COUNT(*) FROM downloads WHERE message_id = ? AND attachment_name = ?",
		d.MessageID, d.AttachmentName,
	)
	if err != nil {
		return false, fmt.Errorf("checking previous downloads: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO downloads (
			id, message_id, attachment_name, path, size, sha256, created_at, marked_read_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.MessageID, d.AttachmentName, d.Path, d.Size, d.SHA256,
		d.CreatedAt.UTC(), utcPtr(d.MarkedReadAt),
	)
	if err != nil {
		return false, fmt.Errorf("recording download %s: %w", d.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing download %s: %w", d.ID, err)
	}
	return previous > 0, nil
}

// MarkMessageRead stamps the pending downloads of messageID.
func (s *SQLiteStore) MarkMessageRead(ctx context.Context, messageID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE downloads SET marked_read_at = ? WHERE message_id = ? AND marked_read_at IS NULL",
		at.UTC(), messageID,
	)
	if err != nil {
		return fmt.Errorf("marking downloads of %s as read: %w", messageID, err)
	}
	return nil
}

// ListDownloads retrieves downloads matching filter, newest first.
func (s *SQLiteStore) ListDownloads(ctx context.Context, filter DownloadFilter) ([]model.Download, error) {
	var conditions []string
	var args []interface{}

	if filter.MessageID != "" {
		conditions = append(conditions, "message_id = ?")
		args = append(args, filter.MessageID)
	}

	query := "SELECT * FROM downloads"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	var downloads []model.Download
	if err := s.db.SelectContext(ctx, &downloads, query, args...); err != nil {
		return nil, fmt.Errorf("querying downloads: %w", err)
	}
	return downloads, nil
}

func utcPtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

var _ Ledger = (*SQLiteStore)(nil)
