package store

import "database/sql"

// migrate creates the schema if it doesn't exist. Documents are addressed
// by (idx, id); the FTS5 shadow table backs bm25-ranked search and is kept
// in sync with triggers.
func migrate(db *sql.DB) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS documents (
			rowid      INTEGER PRIMARY KEY,
			idx        TEXT NOT NULL,
			id         TEXT NOT NULL,
			document   TEXT NOT NULL,
			search     TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE (idx, id)
		);

		CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
			search, content=documents, content_rowid=rowid
		);

		CREATE TRIGGER IF NOT EXISTS documents_ai AFTER INSERT ON documents BEGIN
			INSERT INTO documents_fts(rowid, search) VALUES (new.rowid, new.search);
		END;

		CREATE TRIGGER IF NOT EXISTS documents_ad AFTER DELETE ON documents BEGIN
			INSERT INTO documents_fts(documents_fts, rowid, search) VALUES ('delete', old.rowid, old.search);
		END;

		CREATE TRIGGER IF NOT EXISTS documents_au AFTER UPDATE ON documents BEGIN
			INSERT INTO documents_fts(documents_fts, rowid, search) VALUES ('delete', old.rowid, old.search);
			INSERT INTO documents_fts(rowid, search) VALUES (new.rowid, new.search);
		END;
	`
	_, err := db.Exec(schema)
	return err
}
