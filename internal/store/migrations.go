package store

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

CREATE TABLE IF NOT EXISTS downloads (
	id              TEXT PRIMARY KEY,
	message_id      TEXT NOT NULL,
	attachment_name TEXT NOT NULL,
	path            TEXT NOT NULL,
	size            INTEGER NOT NULL DEFAULT 0,
	sha256          TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	marked_read_at  DATETIME
);

CREATE INDEX IF NOT EXISTS idx_downloads_message_id ON downloads(message_id);
CREATE INDEX IF NOT EXISTS idx_downloads_created_at ON downloads(created_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_downloads_message_attachment
	ON downloads(message_id, attachment_name);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
