package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"joby/internal/domain"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type testDoc struct {
	Name          string `json:"name"`
	Role          string `json:"role,omitempty"`
	SearchContent string `json:"searchContent,omitempty"`
}

func TestPutGetRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "candidate-profiles", "u1", testDoc{Name: "Ada", Role: "engineer"}); err != nil {
		t.Fatal(err)
	}

	var got testDoc
	found, err := s.Get(ctx, "candidate-profiles", "u1", &got)
	if err != nil {
		t.Fatal(err)
	}
	if !found || got.Name != "Ada" {
		t.Errorf("got = %+v found = %v", got, found)
	}
}

func TestGetMissingIsNotError(t *testing.T) {
	s := testStore(t)

	var got testDoc
	found, err := s.Get(context.Background(), "candidate-profiles", "nope", &got)
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("missing document reported found")
	}
}

func TestPutReplacesExisting(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "jobs", "j1", testDoc{Name: "v1"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "jobs", "j1", testDoc{Name: "v2"}); err != nil {
		t.Fatal(err)
	}

	var got testDoc
	if _, err := s.Get(ctx, "jobs", "j1", &got); err != nil {
		t.Fatal(err)
	}
	if got.Name != "v2" {
		t.Errorf("name = %q, want v2", got.Name)
	}
}

func TestIndexesAreIsolated(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "a", "same-id", testDoc{Name: "in a"}); err != nil {
		t.Fatal(err)
	}
	found, err := s.Get(ctx, "b", "same-id", &testDoc{})
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("document leaked across indexes")
	}
}

func TestSearchRanksRelevance(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	docs := map[string]testDoc{
		"go-heavy": {Name: "Go Go Go engineer", Role: "golang backend go services"},
		"go-light": {Name: "generalist", Role: "some go experience"},
		"no-go":    {Name: "designer", Role: "figma and sketch"},
	}
	for id, d := range docs {
		if err := s.Put(ctx, "job-index", id, d); err != nil {
			t.Fatal(err)
		}
	}

	hits, err := s.Search(ctx, "job-index", "go engineer", domain.SearchOptions{Size: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %d, want 2 (designer must not match)", len(hits))
	}
	if hits[0].ID != "go-heavy" {
		t.Errorf("top hit = %q, want go-heavy", hits[0].ID)
	}
	if hits[0].Score < hits[1].Score {
		t.Error("hits not ordered best-first")
	}
	if len(hits[0].Document) == 0 {
		t.Error("hit document missing")
	}
}

func TestSearchPrefersExplicitSearchContent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "idx", "d1", testDoc{Name: "hidden words", SearchContent: "kubernetes platform"}); err != nil {
		t.Fatal(err)
	}

	hits, err := s.Search(ctx, "idx", "kubernetes", domain.SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %d, want 1", len(hits))
	}

	// The rest of the document is not indexed when searchContent is set.
	hits, err = s.Search(ctx, "idx", "hidden", domain.SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("hits = %d, want 0", len(hits))
	}
}

func TestSearchEmptyQueryReturnsNothing(t *testing.T) {
	s := testStore(t)

	hits, err := s.Search(context.Background(), "idx", "   ", domain.SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if hits != nil {
		t.Errorf("hits = %v, want nil", hits)
	}
}

func TestSearchSurvivesHostileQuery(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "idx", "d1", testDoc{Name: "plain doc"}); err != nil {
		t.Fatal(err)
	}

	// FTS5 syntax in user input must never produce a query error.
	for _, q := range []string{`"unclosed`, "a AND NOT (b", "NEAR(x y)", "col:value*"} {
		if _, err := s.Search(ctx, "idx", q, domain.SearchOptions{}); err != nil {
			t.Errorf("query %q errored: %v", q, err)
		}
	}
}

func TestFtsQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"go engineer", `"go" OR "engineer"`},
		{"C++ plus SQL!", `"C" OR "plus" OR "SQL"`},
		{"x AND y", `"x" OR "y"`},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ftsQuery(tt.in); got != tt.want {
			t.Errorf("ftsQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
