// Package catalog serves the marketplace catalog document published by the
// agent. The catalog is an external JSON file plus per-skill markdown
// siblings; everything here is read-only passthrough with validation. A
// missing or invalid document degrades to "no catalog", never to a request
// failure.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/automatonhq/sidecar/internal/otel"
)

// Skill is one marketplace listing.
type Skill struct {
	Name          string   `json:"name"`
	DisplayName   string   `json:"displayName"`
	Version       string   `json:"version"`
	Description   string   `json:"description"`
	Category      string   `json:"category"`
	PriceCents    int64    `json:"priceCents"`
	PriceUSDC     float64  `json:"priceUSDC"`
	Tags          []string `json:"tags"`
	SalesCount    int64    `json:"salesCount"`
	AverageRating float64  `json:"averageRating"`
	ReviewCount   int64    `json:"reviewCount"`
	Status        string   `json:"status"`
}

// Document is the full catalog file.
type Document struct {
	Vendor    string  `json:"vendor"`
	Address   string  `json:"address"`
	UpdatedAt string  `json:"updatedAt"`
	Skills    []Skill `json:"skills"`
}

// Stats is the aggregate rollup over active skills.
type Stats struct {
	Vendor            string  `json:"vendor"`
	ListedCount       int     `json:"listedCount"`
	TotalSales        int64   `json:"totalSales"`
	TotalRevenueCents int64   `json:"totalRevenueCents"`
	AverageRating     float64 `json:"averageRating"`
	Skills            []Skill `json:"skills"`
}

// catalogSchema keeps obviously broken documents out of the API without
// being strict about fields the writer may add later.
const catalogSchema = `{
	"type": "object",
	"required": ["vendor", "skills"],
	"properties": {
		"vendor": {"type": "string"},
		"address": {"type": "string"},
		"updatedAt": {"type": "string"},
		"skills": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name", "status"],
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"status": {"type": "string", "enum": ["active", "draft", "archived"]},
					"priceCents": {"type": "number", "minimum": 0},
					"salesCount": {"type": "number", "minimum": 0},
					"reviewCount": {"type": "number", "minimum": 0}
				}
			}
		}
	}
}`

// Catalog reads and caches the catalog document. The cache is invalidated
// by the directory watcher; a load only happens on demand.
type Catalog struct {
	dir     string
	log     *slog.Logger
	metrics *otel.Metrics
	schema  *jsonschema.Schema

	mu     sync.RWMutex
	doc    *Document
	loaded bool
}

func New(dir string, log *slog.Logger, metrics *otel.Metrics) (*Catalog, error) {
	if log == nil {
		log = slog.Default()
	}
	// jsonschema.UnmarshalJSON keeps numbers as json.Number, which the
	// compiler requires.
	raw, err := jsonschema.UnmarshalJSON(strings.NewReader(catalogSchema))
	if err != nil {
		return nil, fmt.Errorf("unmarshal catalog schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("catalog-schema.json", raw); err != nil {
		return nil, fmt.Errorf("add catalog schema: %w", err)
	}
	schema, err := c.Compile("catalog-schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile catalog schema: %w", err)
	}
	return &Catalog{
		dir:     dir,
		log:     log,
		metrics: metrics,
		schema:  schema,
	}, nil
}

// Dir returns the marketplace directory.
func (c *Catalog) Dir() string {
	return c.dir
}

// Invalidate drops the cached document so the next read reloads from disk.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.doc = nil
	c.loaded = false
	c.mu.Unlock()
}

// Document returns the parsed catalog. The second return is false when the
// file is absent or fails validation; both cases read as "no catalog".
func (c *Catalog) Document() (*Document, bool) {
	c.mu.RLock()
	if c.loaded {
		doc := c.doc
		c.mu.RUnlock()
		return doc, doc != nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		c.doc = c.load()
		c.loaded = true
	}
	return c.doc, c.doc != nil
}

func (c *Catalog) load() *Document {
	if c.metrics != nil {
		c.metrics.CatalogReloads.Add(context.Background(), 1)
	}
	path := filepath.Join(c.dir, "catalog.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Warn("catalog read failed", "path", path, "error", err)
		}
		return nil
	}

	parsed, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		c.log.Warn("catalog is not valid JSON", "path", path, "error", err)
		return nil
	}
	if err := c.schema.Validate(parsed); err != nil {
		c.log.Warn("catalog failed schema validation", "path", path, "error", err)
		return nil
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		c.log.Warn("catalog decode failed", "path", path, "error", err)
		return nil
	}
	for i := range doc.Skills {
		if doc.Skills[i].Tags == nil {
			doc.Skills[i].Tags = []string{}
		}
	}
	return &doc
}

// Active returns the catalog with only active skills, or false when no
// usable catalog exists.
func (c *Catalog) Active() (*Document, bool) {
	doc, ok := c.Document()
	if !ok {
		return nil, false
	}
	out := *doc
	out.Skills = activeSkills(doc.Skills)
	return &out, true
}

// Find looks up a skill by name across all statuses.
func (c *Catalog) Find(name string) (Skill, bool) {
	doc, ok := c.Document()
	if !ok {
		return Skill{}, false
	}
	for _, s := range doc.Skills {
		if s.Name == name {
			return s, true
		}
	}
	return Skill{}, false
}

// Readme returns the skill's README.md content.
func (c *Catalog) Readme(name string) (string, bool) {
	return c.readSkillFile(name, "README.md")
}

// InstallDoc returns the skill's raw SKILL.md, the install payload.
func (c *Catalog) InstallDoc(name string) (string, bool) {
	return c.readSkillFile(name, "SKILL.md")
}

func (c *Catalog) readSkillFile(name, file string) (string, bool) {
	// Skill names come off the URL path; keep reads inside the dir.
	if name == "" || strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return "", false
	}
	raw, err := os.ReadFile(filepath.Join(c.dir, name, file))
	if err != nil {
		return "", false
	}
	return string(raw), true
}

// Stats aggregates sales and ratings over active skills. Revenue is
// sales x price per skill; the rating average only covers reviewed skills.
func (c *Catalog) Stats() Stats {
	doc, ok := c.Document()
	if !ok {
		return Stats{Skills: []Skill{}}
	}

	active := activeSkills(doc.Skills)
	stats := Stats{
		Vendor:      doc.Vendor,
		ListedCount: len(active),
		Skills:      active,
	}
	var ratingSum float64
	var rated int
	for _, s := range active {
		stats.TotalSales += s.SalesCount
		stats.TotalRevenueCents += s.SalesCount * s.PriceCents
		if s.ReviewCount > 0 {
			ratingSum += s.AverageRating
			rated++
		}
	}
	if rated > 0 {
		stats.AverageRating = ratingSum / float64(rated)
	}
	return stats
}

func activeSkills(skills []Skill) []Skill {
	out := []Skill{}
	for _, s := range skills {
		if s.Status == "active" {
			out = append(out, s)
		}
	}
	return out
}
