// Package store provides the durable profile store backed by SQLite with
// FTS5-ranked search.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"joby/internal/domain"
)

const defaultSearchSize = 20

// SQLiteStore implements domain.ProfileStore. Documents are stored as
// JSON, addressed by (index, id). Search runs bm25 over an FTS5 shadow
// table fed from each document's text content.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// New opens (or creates) the database at path, applies pragmas and
// migrations, and returns a ready store.
func New(path string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite write safety: single writer.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma: %w", err)
		}
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get implements domain.ProfileStore.
func (s *SQLiteStore) Get(ctx context.Context, index, id string, out any) (bool, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM documents WHERE idx = ? AND id = ?`, index, id,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, domain.NewDomainError("SQLiteStore.Get", domain.ErrStoreUnavailable, err.Error())
	}
	if out != nil {
		if err := json.Unmarshal([]byte(doc), out); err != nil {
			return false, fmt.Errorf("unmarshal document %s/%s: %w", index, id, err)
		}
	}
	return true, nil
}

// Put implements domain.ProfileStore. Existing documents are replaced.
func (s *SQLiteStore) Put(ctx context.Context, index, id string, document any) error {
	data, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf("marshal document %s/%s: %w", index, id, err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (idx, id, document, search, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (idx, id) DO UPDATE SET
			document = excluded.document,
			search = excluded.search,
			updated_at = excluded.updated_at`,
		index, id, string(data), searchContent(data), now, now,
	)
	if err != nil {
		return domain.NewDomainError("SQLiteStore.Put", domain.ErrStoreUnavailable, err.Error())
	}
	return nil
}

// Search implements domain.ProfileStore. Hits are ordered best-first;
// bm25 returns lower-is-better, so scores are negated before the sort.
func (s *SQLiteStore) Search(ctx context.Context, index, query string, opts domain.SearchOptions) ([]domain.SearchHit, error) {
	terms := ftsQuery(query)
	if terms == "" {
		return nil, nil
	}

	size := opts.Size
	if size <= 0 {
		size = defaultSearchSize
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, -bm25(documents_fts) AS score, d.document
		FROM documents_fts f
		JOIN documents d ON d.rowid = f.rowid
		WHERE d.idx = ? AND documents_fts MATCH ?
		ORDER BY score DESC
		LIMIT ? OFFSET ?`,
		index, terms, size, opts.From,
	)
	if err != nil {
		return nil, domain.NewDomainError("SQLiteStore.Search", domain.ErrStoreUnavailable, err.Error())
	}
	defer rows.Close()

	var hits []domain.SearchHit
	for rows.Next() {
		var hit domain.SearchHit
		var doc string
		if err := rows.Scan(&hit.ID, &hit.Score, &doc); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		hit.Document = []byte(doc)
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// searchContent derives the indexed text for a document. A top-level
// "searchContent" field wins when present; otherwise every string value
// in the document is flattened into the index.
func searchContent(doc []byte) string {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return string(doc)
	}
	if sc, ok := m["searchContent"].(string); ok && sc != "" {
		return sc
	}
	var b strings.Builder
	flattenStrings(m, &b)
	return b.String()
}

func flattenStrings(v any, b *strings.Builder) {
	switch t := v.(type) {
	case string:
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(t)
	case map[string]any:
		for _, child := range t {
			flattenStrings(child, b)
		}
	case []any:
		for _, child := range t {
			flattenStrings(child, b)
		}
	}
}

// ftsQuery turns free text into a forgiving OR-of-terms FTS5 match
// expression. FTS5 operator words and punctuation are stripped so user
// text can never produce a syntax error.
func ftsQuery(query string) string {
	fields := strings.FieldsFunc(query, func(r rune) bool {
		return !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9')
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		switch strings.ToUpper(f) {
		case "AND", "OR", "NOT", "NEAR":
			continue
		}
		terms = append(terms, `"`+f+`"`)
	}
	return strings.Join(terms, " OR ")
}

var _ domain.ProfileStore = (*SQLiteStore)(nil)
