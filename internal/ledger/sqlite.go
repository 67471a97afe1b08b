package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/mailbot/internal/model"
)

// SQLiteLedger implements Ledger using a local SQLite database.
type SQLiteLedger struct {
	db *sqlx.DB
}

// NewSQLiteLedger opens (or creates) the ledger database at dbPath,
// enables WAL mode, and runs any pending schema migrations. A corrupt
// existing store is moved aside and replaced with an empty one, so it is
// equivalent to an empty store rather than a fatal condition.
func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating ledger directory %s: %w", dir, err)
			}
		}
	}

	l, err := open(dbPath)
	if err == nil {
		return l, nil
	}
	if dbPath == ":memory:" {
		return nil, err
	}

	// Move the unreadable store aside and start empty.
	backup := fmt.Sprintf("%s.corrupt-%d", dbPath, time.Now().Unix())
	if renameErr := os.Rename(dbPath, backup); renameErr != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	return open(dbPath)
}

func open(dbPath string) (*SQLiteLedger, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	l := &SQLiteLedger{db: db}
	if err := l.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return l, nil
}

// Close closes the underlying database connection.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (l *SQLiteLedger) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := l.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = l.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := l.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// reviewRow is the database shape of a review record; keywords are stored
// as a JSON list.
type reviewRow struct {
	ID         string    `db:"id"`
	CreatedAt  time.Time `db:"created_at"`
	From       string    `db:"from_address"`
	SenderName string    `db:"sender_name"`
	Subject    string    `db:"subject"`
	Body       string    `db:"body"`
	Keywords   string    `db:"keywords"`
	DraftReply string    `db:"draft_reply"`
}

// Append inserts one review record. There is deliberately no update or
// delete path.
func (l *SQLiteLedger) Append(ctx context.Context, rec model.ReviewRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.DraftReply == "" {
		rec.DraftReply = model.DraftNone
	}

	keywords, err := json.Marshal(rec.Keywords)
	if err != nil {
		return fmt.Errorf("marshaling keywords for record %s: %w", rec.ID, err)
	}

	const query = `
		INSERT INTO review_records (
			id, created_at, from_address, sender_name,
			subject, body, keywords, draft_reply
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = l.db.ExecContext(ctx, query,
		rec.ID, rec.CreatedAt.UTC(), rec.From, rec.SenderName,
		rec.Subject, rec.Body, string(keywords), rec.DraftReply,
	)
	if err != nil {
		return fmt.Errorf("appending review record for %s: %w", rec.From, err)
	}

	return nil
}

// ReadAll returns every review record in insertion order.
func (l *SQLiteLedger) ReadAll(ctx context.Context) ([]model.ReviewRecord, error) {
	var rows []reviewRow
	err := l.db.SelectContext(ctx, &rows,
		"SELECT * FROM review_records ORDER BY created_at, id",
	)
	if err != nil {
		return nil, fmt.Errorf("reading review records: %w", err)
	}

	records := make([]model.ReviewRecord, 0, len(rows))
	for _, r := range rows {
		rec := model.ReviewRecord{
			ID:         r.ID,
			CreatedAt:  r.CreatedAt,
			From:       r.From,
			SenderName: r.SenderName,
			Subject:    r.Subject,
			Body:       r.Body,
			DraftReply: r.DraftReply,
		}
		if err := json.Unmarshal([]byte(r.Keywords), &rec.Keywords); err != nil {
			return nil, fmt.Errorf("parsing keywords for record %s: %w", r.ID, err)
		}
		records = append(records, rec)
	}

	return records, nil
}
