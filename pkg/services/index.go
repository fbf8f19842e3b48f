package services

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"jekyll-cms/pkg/models"

	_ "modernc.org/sqlite"
)

const (
	TermTag      = "tag"
	TermCategory = "category"
)

// Index is a sqlite copy of the post listing used for taxonomy queries.
type Index struct {
	readDB  *sql.DB
	writeDB *sql.DB
}

func OpenIndex(dbPath string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating index dir: %w", err)
	}

	writeDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening write db: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	idx := &Index{writeDB: writeDB}
	if err := idx.init(); err != nil {
		writeDB.Close()
		return nil, err
	}

	readDB, err := sql.Open("sqlite", dbPath+"?_pragma=query_only(1)")
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("opening read db: %w", err)
	}
	idx.readDB = readDB
	return idx, nil
}

func (i *Index) init() error {
	_, err := i.writeDB.Exec(`
		CREATE TABLE IF NOT EXISTS posts (
			path      TEXT PRIMARY KEY,
			title     TEXT NOT NULL,
			permalink TEXT NOT NULL DEFAULT '',
			modified  TEXT NOT NULL DEFAULT '',
			published INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS post_terms (
			path TEXT NOT NULL REFERENCES posts(path) ON DELETE CASCADE,
			kind TEXT NOT NULL,
			term TEXT NOT NULL,
			PRIMARY KEY (path, kind, term)
		);
		CREATE INDEX IF NOT EXISTS idx_post_terms_term ON post_terms(kind, term);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (i *Index) Close() error {
	var firstErr error
	for _, db := range []*sql.DB{i.readDB, i.writeDB} {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Rebuild replaces the indexed posts with posts in one transaction. Drafts are skipped.
func (i *Index) Rebuild(posts []models.Post) error {
	tx, err := i.writeDB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM post_terms; DELETE FROM posts;`); err != nil {
		return fmt.Errorf("clearing index: %w", err)
	}

	postStmt, err := tx.Prepare(`INSERT INTO posts (path, title, permalink, modified, published) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer postStmt.Close()

	termStmt, err := tx.Prepare(`INSERT OR IGNORE INTO post_terms (path, kind, term) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer termStmt.Close()

	for _, p := range posts {
		if p.Draft {
			continue
		}
		modified := ""
		if t := p.SortTime(); !t.IsZero() {
			modified = t.UTC().Format(time.RFC3339)
		}
		if _, err := postStmt.Exec(p.Path, p.Title, p.Permalink, modified, p.Meta.IsPublished()); err != nil {
			return fmt.Errorf("indexing post %s: %w", p.Path, err)
		}
		for kind, terms := range map[string][]string{TermTag: p.Meta.Tags, TermCategory: p.Meta.Categories} {
			for _, term := range terms {
				term = strings.TrimSpace(term)
				if term == "" {
					continue
				}
				if _, err := termStmt.Exec(p.Path, kind, term); err != nil {
					return fmt.Errorf("indexing %s %q of %s: %w", kind, term, p.Path, err)
				}
			}
		}
	}

	return tx.Commit()
}

// Terms counts posts per term of kind, most used first.
func (i *Index) Terms(kind string) ([]models.TaxonomyCount, error) {
	rows, err := i.readDB.Query(`
		SELECT term, COUNT(*) AS n FROM post_terms
		WHERE kind = ?
		GROUP BY term
		ORDER BY n DESC, term ASC
	`, kind)
	if err != nil {
		return nil, fmt.Errorf("querying %s terms: %w", kind, err)
	}
	defer rows.Close()

	counts := []models.TaxonomyCount{}
	for rows.Next() {
		var c models.TaxonomyCount
		if err := rows.Scan(&c.Term, &c.Count); err != nil {
			return nil, fmt.Errorf("scanning term: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// PathsByTerm lists the posts carrying term, newest first.
func (i *Index) PathsByTerm(kind, term string) ([]string, error) {
	rows, err := i.readDB.Query(`
		SELECT p.path FROM posts p
		JOIN post_terms t ON t.path = p.path
		WHERE t.kind = ? AND t.term = ?
		ORDER BY p.modified DESC, p.path ASC
	`, kind, term)
	if err != nil {
		return nil, fmt.Errorf("querying posts for %s %q: %w", kind, term, err)
	}
	defer rows.Close()

	paths := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// TaxonomyFromPosts computes the same counts as Index.Terms without a database.
func TaxonomyFromPosts(posts []models.Post, kind string) []models.TaxonomyCount {
	counts := map[string]int{}
	for _, p := range posts {
		if p.Draft {
			continue
		}
		terms := p.Meta.Tags
		if kind == TermCategory {
			terms = p.Meta.Categories
		}
		seen := map[string]bool{}
		for _, term := range terms {
			term = strings.TrimSpace(term)
			if term == "" || seen[term] {
				continue
			}
			seen[term] = true
			counts[term]++
		}
	}
	out := make([]models.TaxonomyCount, 0, len(counts))
	for term, n := range counts {
		out = append(out, models.TaxonomyCount{Term: term, Count: n})
	}
	sortTaxonomy(out)
	return out
}

func sortTaxonomy(counts []models.TaxonomyCount) {
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Term < counts[j].Term
	})
}
