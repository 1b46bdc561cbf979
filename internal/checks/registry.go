package checks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/statline/statline-backend/internal/config"
	"github.com/statline/statline-backend/internal/platform/logger"
)

// Tag groups related checks for selective runs.
type Tag string

const (
	TagSecurity      Tag = "security"
	TagConfig        Tag = "config"
	TagDatabase      Tag = "database"
	TagReports       Tag = "reports"
	TagCaches        Tag = "caches"
	TagCompatibility Tag = "compatibility"
)

// Env is everything a check may inspect. DB and Redis are nil unless the
// caller opened them; checks must tolerate either being absent.
type Env struct {
	Cfg    *config.Config
	DB     *gorm.DB
	Redis  redis.UniversalClient
	Log    *logger.Logger
	Deploy bool
}

// Check inspects the environment and reports zero or more findings. Checks
// must not mutate anything.
type Check func(ctx context.Context, env *Env) []Message

type entry struct {
	name       string
	check      Check
	tags       []Tag
	deployOnly bool
}

func (e entry) hasTag(t Tag) bool {
	for _, et := range e.tags {
		if et == t {
			return true
		}
	}
	return false
}

// Registry holds registered checks. Registration order is invocation order.
type Registry struct {
	mu      sync.RWMutex
	entries []entry
	byName  map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]struct{})}
}

// Default is the process-wide registry. Built-in check packages register
// into it from init; blank imports in the CLI root pull them in.
var Default = NewRegistry()

func (r *Registry) register(name string, c Check, deployOnly bool, tags []Tag) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("check name is empty")
	}
	if c == nil {
		return fmt.Errorf("nil check func for %s", name)
	}
	if len(tags) == 0 {
		return fmt.Errorf("check %s registered without tags", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("check already registered for name=%s", name)
	}
	r.byName[name] = struct{}{}
	r.entries = append(r.entries, entry{name: name, check: c, deployOnly: deployOnly, tags: tags})
	return nil
}

// Register adds a check that runs on every selected invocation.
func (r *Registry) Register(name string, c Check, tags ...Tag) error {
	return r.register(name, c, false, tags)
}

// RegisterDeploy adds a check that only runs when deploy checks are
// requested.
func (r *Registry) RegisterDeploy(name string, c Check, tags ...Tag) error {
	return r.register(name, c, true, tags)
}

func (r *Registry) MustRegister(name string, c Check, tags ...Tag) {
	if err := r.Register(name, c, tags...); err != nil {
		panic(err)
	}
}

func (r *Registry) MustRegisterDeploy(name string, c Check, tags ...Tag) {
	if err := r.RegisterDeploy(name, c, tags...); err != nil {
		panic(err)
	}
}

// Register adds a check to the default registry.
func Register(name string, c Check, tags ...Tag) error {
	return Default.Register(name, c, tags...)
}

func MustRegister(name string, c Check, tags ...Tag) {
	Default.MustRegister(name, c, tags...)
}

func RegisterDeploy(name string, c Check, tags ...Tag) error {
	return Default.RegisterDeploy(name, c, tags...)
}

func MustRegisterDeploy(name string, c Check, tags ...Tag) {
	Default.MustRegisterDeploy(name, c, tags...)
}

// Names returns the registered check names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.name)
	}
	return out
}

// Tags returns the sorted distinct tags of all registered checks.
func (r *Registry) Tags() []Tag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[Tag]struct{})
	for _, e := range r.entries {
		for _, t := range e.tags {
			seen[t] = struct{}{}
		}
	}
	out := make([]Tag, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RunOptions selects which checks run and how findings are classified.
type RunOptions struct {
	// Tags restricts the run to checks carrying any of these tags. Empty
	// means all.
	Tags []Tag
	// Deploy includes deploy-only checks.
	Deploy bool
	// IncludeDatabase includes database-tagged checks. They are excluded by
	// default because they reach over the network.
	IncludeDatabase bool
	// Silenced check IDs are split out of the visible result.
	Silenced []string
}

// Result is the outcome of one registry run.
type Result struct {
	Visible  []Message
	Silenced []Message
}

// HasSeriousAt reports whether any visible finding is at or above threshold.
func (res Result) HasSeriousAt(threshold Level) bool {
	for _, m := range res.Visible {
		if m.Level >= threshold {
			return true
		}
	}
	return false
}

// CountAt returns the number of visible findings at or above threshold.
func (res Result) CountAt(threshold Level) int {
	n := 0
	for _, m := range res.Visible {
		if m.Level >= threshold {
			n++
		}
	}
	return n
}

// Run invokes every selected check and collects findings. It never stops
// early; acting on serious findings is the caller's decision. Database
// checks run concurrently (they do network I/O), everything else runs
// sequentially in registration order, and the combined output is ordered by
// registration regardless.
func (r *Registry) Run(ctx context.Context, env *Env, opts RunOptions) (Result, error) {
	r.mu.RLock()
	entries := make([]entry, len(r.entries))
	copy(entries, r.entries)
	r.mu.RUnlock()

	if err := r.validateTags(opts.Tags); err != nil {
		return Result{}, err
	}

	selected := make([]entry, 0, len(entries))
	for _, e := range entries {
		if len(opts.Tags) > 0 && !matchesAny(e, opts.Tags) {
			continue
		}
		if e.hasTag(TagDatabase) && !opts.IncludeDatabase {
			continue
		}
		if e.deployOnly && !opts.Deploy {
			continue
		}
		selected = append(selected, e)
	}

	slots := make([][]Message, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	for i, e := range selected {
		if !e.hasTag(TagDatabase) {
			continue
		}
		g.Go(func() error {
			slots[i] = invoke(gctx, env, e)
			return nil
		})
	}
	for i, e := range selected {
		if e.hasTag(TagDatabase) {
			continue
		}
		slots[i] = invoke(ctx, env, e)
	}
	_ = g.Wait()

	var res Result
	for _, msgs := range slots {
		for _, m := range msgs {
			if m.IsSilenced(opts.Silenced) {
				res.Silenced = append(res.Silenced, m)
			} else {
				res.Visible = append(res.Visible, m)
			}
		}
	}
	return res, nil
}

func invoke(ctx context.Context, env *Env, e entry) (msgs []Message) {
	defer func() {
		if rec := recover(); rec != nil {
			msgs = append(msgs, Critical("checks.C999",
				fmt.Sprintf("check panicked: %v", rec)).WithObj(e.name))
		}
	}()
	return e.check(ctx, env)
}

func matchesAny(e entry, tags []Tag) bool {
	for _, t := range tags {
		if e.hasTag(t) {
			return true
		}
	}
	return false
}

func (r *Registry) validateTags(tags []Tag) error {
	if len(tags) == 0 {
		return nil
	}
	valid := make(map[Tag]struct{})
	for _, t := range r.Tags() {
		valid[t] = struct{}{}
	}
	var unknown []string
	for _, t := range tags {
		if _, ok := valid[t]; !ok {
			unknown = append(unknown, string(t))
		}
	}
	if len(unknown) > 0 {
		known := r.Tags()
		names := make([]string, 0, len(known))
		for _, t := range known {
			names = append(names, string(t))
		}
		return fmt.Errorf("unknown check tag(s) %s (available: %s)",
			strings.Join(unknown, ", "), strings.Join(names, ", "))
	}
	return nil
}
