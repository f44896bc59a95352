package catalog

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

const fixtureCatalog = `{
	"vendor": "automaton",
	"address": "0xabc",
	"updatedAt": "2026-08-29T00:00:00.000Z",
	"skills": [
		{"name": "summarizer", "displayName": "Summarizer", "version": "1.0.0",
		 "description": "Summarizes text", "category": "text", "priceCents": 50,
		 "priceUSDC": 0.5, "tags": ["nlp"], "salesCount": 4, "averageRating": 4.5,
		 "reviewCount": 2, "status": "active"},
		{"name": "translator", "priceCents": 75, "salesCount": 2,
		 "averageRating": 4.0, "reviewCount": 1, "status": "active"},
		{"name": "ranker", "priceCents": 100, "salesCount": 1,
		 "averageRating": 0, "reviewCount": 0, "status": "active"},
		{"name": "tagger", "priceCents": 150, "salesCount": 2,
		 "averageRating": 3.0, "reviewCount": 4, "status": "active"},
		{"name": "drafty", "priceCents": 999, "salesCount": 100, "status": "draft"}
	]
}`

func writeFixture(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func newCatalog(t *testing.T, dir string) *Catalog {
	t.Helper()
	c, err := New(dir, nil, nil)
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	return c
}

func TestDocument_MissingFile(t *testing.T) {
	c := newCatalog(t, t.TempDir())
	if _, ok := c.Document(); ok {
		t.Fatalf("expected no document for empty dir")
	}
}

func TestDocument_InvalidJSONServedAsAbsent(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "catalog.json", `{broken`)
	c := newCatalog(t, dir)
	if _, ok := c.Document(); ok {
		t.Fatalf("invalid JSON should read as no catalog")
	}
}

func TestDocument_SchemaViolationServedAsAbsent(t *testing.T) {
	dir := t.TempDir()
	// status outside the enum
	writeFixture(t, dir, "catalog.json", `{"vendor":"v","skills":[{"name":"x","status":"published"}]}`)
	c := newCatalog(t, dir)
	if _, ok := c.Document(); ok {
		t.Fatalf("schema violation should read as no catalog")
	}
}

func TestActive_FiltersDrafts(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "catalog.json", fixtureCatalog)
	c := newCatalog(t, dir)

	doc, ok := c.Active()
	if !ok {
		t.Fatalf("expected catalog")
	}
	if len(doc.Skills) != 4 {
		t.Fatalf("active skills = %d, want 4", len(doc.Skills))
	}
	for _, s := range doc.Skills {
		if s.Status != "active" {
			t.Fatalf("non-active skill leaked: %+v", s)
		}
	}
	if doc.Vendor != "automaton" {
		t.Fatalf("vendor = %q", doc.Vendor)
	}
}

func TestFind_AnyStatus(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "catalog.json", fixtureCatalog)
	c := newCatalog(t, dir)

	if _, ok := c.Find("drafty"); !ok {
		t.Fatalf("Find should see draft skills too")
	}
	if _, ok := c.Find("nope"); ok {
		t.Fatalf("Find(nope) should miss")
	}
}

func TestStats_Aggregates(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "catalog.json", fixtureCatalog)
	c := newCatalog(t, dir)

	stats := c.Stats()
	if stats.ListedCount != 4 {
		t.Fatalf("listedCount = %d, want 4", stats.ListedCount)
	}
	if stats.TotalSales != 9 {
		t.Fatalf("totalSales = %d, want 9", stats.TotalSales)
	}
	// 4*50 + 2*75 + 1*100 + 2*150
	if stats.TotalRevenueCents != 750 {
		t.Fatalf("totalRevenueCents = %d, want 750", stats.TotalRevenueCents)
	}
	// mean over reviewed skills only: (4.5 + 4.0 + 3.0) / 3
	if math.Abs(stats.AverageRating-11.5/3) > 1e-9 {
		t.Fatalf("averageRating = %v, want %v", stats.AverageRating, 11.5/3)
	}
}

func TestStats_EmptyCatalog(t *testing.T) {
	c := newCatalog(t, t.TempDir())
	stats := c.Stats()
	if stats.ListedCount != 0 || stats.TotalSales != 0 || stats.AverageRating != 0 {
		t.Fatalf("empty stats = %+v", stats)
	}
	if stats.Skills == nil {
		t.Fatalf("skills should be an empty list, not nil")
	}
}

func TestSkillFiles(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "catalog.json", fixtureCatalog)
	writeFixture(t, dir, "summarizer/README.md", "# Summarizer\n")
	writeFixture(t, dir, "summarizer/SKILL.md", "---\nname: summarizer\n---\n")
	c := newCatalog(t, dir)

	readme, ok := c.Readme("summarizer")
	if !ok || readme != "# Summarizer\n" {
		t.Fatalf("Readme = %q, %v", readme, ok)
	}
	install, ok := c.InstallDoc("summarizer")
	if !ok || install == "" {
		t.Fatalf("InstallDoc = %q, %v", install, ok)
	}
	if _, ok := c.Readme("translator"); ok {
		t.Fatalf("missing README should miss")
	}
	if _, ok := c.InstallDoc("../etc"); ok {
		t.Fatalf("path traversal must not read outside the marketplace dir")
	}
}

func TestInvalidate_ForcesReload(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "catalog.json", `{"vendor":"v1","skills":[]}`)
	c := newCatalog(t, dir)

	doc, ok := c.Document()
	if !ok || doc.Vendor != "v1" {
		t.Fatalf("first load = %+v, %v", doc, ok)
	}

	writeFixture(t, dir, "catalog.json", `{"vendor":"v2","skills":[]}`)
	// Cache still holds the old document until invalidated.
	doc, _ = c.Document()
	if doc.Vendor != "v1" {
		t.Fatalf("cached vendor = %q, want v1", doc.Vendor)
	}

	c.Invalidate()
	doc, ok = c.Document()
	if !ok || doc.Vendor != "v2" {
		t.Fatalf("post-invalidate load = %+v, %v", doc, ok)
	}
}
