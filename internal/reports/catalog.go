// Package reports turns the embedded catalog of report definitions into
// aggregate queries over the event table and serves the results, optionally
// through a Redis cache. Definitions are data, not code: adding a report is
// a catalog.yaml edit.
package reports

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/statline/statline-backend/internal/platform/envutil"
)

const catalogPathEnv = "REPORT_CATALOG_YAML"

//go:embed catalog.yaml
var catalogFS embed.FS

// Measure is one aggregate column of a report.
type Measure struct {
	As        string   `yaml:"as" json:"as"`
	Agg       string   `yaml:"agg" json:"agg"`
	Column    string   `yaml:"column" json:"column"`
	Column2   string   `yaml:"column2" json:"column2,omitempty"`
	Cast      string   `yaml:"cast" json:"cast,omitempty"`
	Distinct  bool     `yaml:"distinct" json:"distinct,omitempty"`
	OrderBy   []string `yaml:"order_by" json:"order_by,omitempty"`
	Delimiter string   `yaml:"delimiter" json:"delimiter,omitempty"`
	Default   string   `yaml:"default" json:"default,omitempty"`
	Filter    string   `yaml:"filter" json:"filter,omitempty"`
}

// Definition is one named report.
type Definition struct {
	Name        string    `yaml:"name" json:"name"`
	Title       string    `yaml:"title" json:"title"`
	Description string    `yaml:"description" json:"description,omitempty"`
	Kinds       []string  `yaml:"kinds" json:"kinds,omitempty"`
	GroupBy     []string  `yaml:"group_by" json:"group_by,omitempty"`
	Measures    []Measure `yaml:"measures" json:"measures"`
}

// Catalog is the full parsed report set.
type Catalog struct {
	Name    string       `yaml:"catalog"`
	Version int          `yaml:"version"`
	Reports []Definition `yaml:"reports"`

	byName map[string]*Definition
}

var (
	catalogOnce sync.Once
	catalog     *Catalog
	catalogErr  error
)

// Load parses the catalog once and caches it for the process lifetime.
// REPORT_CATALOG_YAML overrides the embedded copy with a file path.
func Load() (*Catalog, error) {
	catalogOnce.Do(func() {
		catalog, catalogErr = load()
	})
	return catalog, catalogErr
}

func load() (*Catalog, error) {
	data, err := readCatalog()
	if err != nil {
		return nil, fmt.Errorf("reports: read catalog: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("reports: parse catalog: %w", err)
	}
	if strings.TrimSpace(c.Name) != "statline" {
		return nil, fmt.Errorf("reports: unexpected catalog: %q", c.Name)
	}
	if len(c.Reports) == 0 {
		return nil, errors.New("reports: catalog defines no reports")
	}
	c.byName = make(map[string]*Definition, len(c.Reports))
	for i := range c.Reports {
		def := &c.Reports[i]
		if _, exists := c.byName[def.Name]; exists {
			continue
		}
		c.byName[def.Name] = def
	}
	return &c, nil
}

func readCatalog() ([]byte, error) {
	if path := envutil.String(catalogPathEnv, ""); path != "" {
		return os.ReadFile(path)
	}
	return catalogFS.ReadFile("catalog.yaml")
}

// Get looks a report up by name.
func (c *Catalog) Get(name string) (*Definition, bool) {
	def, ok := c.byName[strings.TrimSpace(name)]
	return def, ok
}

// Names lists the report names in catalog order.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.Reports))
	for i := range c.Reports {
		out = append(out, c.Reports[i].Name)
	}
	return out
}

var identRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Validate walks every definition and collects everything wrong with it:
// bad names, duplicate aliases, unknown aggregates, unparseable filters.
// An empty slice means the catalog compiles end to end.
func (c *Catalog) Validate() []error {
	var errs []error
	seen := map[string]bool{}
	for i := range c.Reports {
		def := &c.Reports[i]
		if !identRe.MatchString(def.Name) {
			errs = append(errs, fmt.Errorf("report %q: invalid name", def.Name))
		}
		if seen[def.Name] {
			errs = append(errs, fmt.Errorf("report %q: duplicate name", def.Name))
		}
		seen[def.Name] = true
		if len(def.Measures) == 0 {
			errs = append(errs, fmt.Errorf("report %q: no measures", def.Name))
		}
		for _, g := range def.GroupBy {
			if !identRe.MatchString(g) {
				errs = append(errs, fmt.Errorf("report %q: invalid group_by column %q", def.Name, g))
			}
		}
		aliases := map[string]bool{}
		for mi := range def.Measures {
			m := &def.Measures[mi]
			if !identRe.MatchString(m.As) {
				errs = append(errs, fmt.Errorf("report %q measure %d: invalid alias %q", def.Name, mi, m.As))
				continue
			}
			if aliases[m.As] {
				errs = append(errs, fmt.Errorf("report %q: duplicate alias %q", def.Name, m.As))
			}
			aliases[m.As] = true
			if _, err := CompileMeasure(*m); err != nil {
				errs = append(errs, fmt.Errorf("report %q measure %q: %w", def.Name, m.As, err))
			}
		}
	}
	return errs
}
