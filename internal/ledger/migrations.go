package ledger

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS review_records (
	id           TEXT PRIMARY KEY,
	created_at   DATETIME NOT NULL,
	from_address TEXT NOT NULL,
	sender_name  TEXT NOT NULL DEFAULT '',
	subject      TEXT NOT NULL DEFAULT '',
	body         TEXT NOT NULL DEFAULT '',
	keywords     TEXT NOT NULL DEFAULT '[]',
	draft_reply  TEXT NOT NULL DEFAULT 'none'
);

CREATE INDEX IF NOT EXISTS idx_review_records_created_at
	ON review_records(created_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
