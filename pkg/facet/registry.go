package facet

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// CanonicalURLBase is the prefix entity identifiers carry in their URL form.
const CanonicalURLBase = "https://openalex.org/"

// Config describes one filterable facet of an entity type.
type Config struct {
	Key         string   `toml:"key"`
	EntityType  string   `toml:"entity_type"`
	DisplayName string   `toml:"display_name"`
	Type        string   `toml:"type"`
	IsEntity    bool     `toml:"is_entity"`
	Regex       string   `toml:"regex,omitempty"`
	Examples    []string `toml:"examples,omitempty"`

	pattern *regexp.Regexp
}

// Pattern returns the compiled identifier pattern, nil when the facet has none.
func (c *Config) Pattern() *regexp.Regexp {
	return c.pattern
}

// IsSearch reports whether the facet is a free-text search facet.
func (c *Config) IsSearch() bool {
	return strings.Contains(c.Key, ".search")
}

// match returns the single captured value when the identifier matches the
// facet pattern with exactly one capture group.
func (c *Config) match(identifier string) (string, bool) {
	if c.pattern == nil {
		return "", false
	}
	m := c.pattern.FindStringSubmatch(identifier)
	if len(m) != 2 {
		return "", false
	}
	return m[1], true
}

// Registry is an ordered table of facet configs. Registration order is the
// priority used when matching identifiers.
type Registry struct {
	configs  []*Config
	index    map[string]*Config
	prefixes map[string]string
	mu       sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		index:    make(map[string]*Config),
		prefixes: make(map[string]string),
	}
}

func indexKey(entityType, key string) string {
	return entityType + "\x00" + strings.ToLower(key)
}

// Register appends a config to the table. The key is stored lower-cased.
func (r *Registry) Register(cfg Config) error {
	if cfg.Key == "" || cfg.EntityType == "" {
		return fmt.Errorf("%w: key and entity type are required", ErrInvalidConfig)
	}
	cfg.Key = strings.ToLower(cfg.Key)

	if cfg.Regex != "" {
		re, err := regexp.Compile(cfg.Regex)
		if err != nil {
			return fmt.Errorf("%w: %s/%s: %v", ErrInvalidPattern, cfg.EntityType, cfg.Key, err)
		}
		cfg.pattern = re
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	k := indexKey(cfg.EntityType, cfg.Key)
	if _, exists := r.index[k]; exists {
		return fmt.Errorf("facet %s/%s already registered", cfg.EntityType, cfg.Key)
	}

	c := cfg
	r.configs = append(r.configs, &c)
	r.index[k] = &c
	return nil
}

// RegisterPrefix maps an identifier type prefix (e.g. "W") to an entity type.
func (r *Registry) RegisterPrefix(prefix, entityType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixes[strings.ToUpper(prefix)] = entityType
}

// Lookup returns the config for (entityType, key). A miss is not an error:
// callers build filters without display metadata.
func (r *Registry) Lookup(entityType, key string) (*Config, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.index[indexKey(entityType, key)]
	return c, ok
}

// ForEntityType returns the configs offered as search facets for an entity
// type, in registration order. Free-text search facets are left out.
func (r *Registry) ForEntityType(entityType string) []*Config {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Config
	for _, c := range r.configs {
		if c.EntityType != entityType || c.IsSearch() {
			continue
		}
		out = append(out, c)
	}
	return out
}

// All returns every config in registration order.
func (r *Registry) All() []*Config {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Config, len(r.configs))
	copy(out, r.configs)
	return out
}

// EntityTypes lists the entity types that have at least one facet, in
// first-registration order.
func (r *Registry) EntityTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, c := range r.configs {
		if !seen[c.EntityType] {
			seen[c.EntityType] = true
			out = append(out, c.EntityType)
		}
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.configs)
}

// MatchPID tries every facet pattern in registration order against the
// trimmed identifier and returns the first facet whose pattern matches with
// exactly one capture group, plus the captured value.
func (r *Registry) MatchPID(identifier string) (*Config, string, bool) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, "", false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.configs {
		if v, ok := c.match(identifier); ok {
			return c, v, true
		}
	}
	return nil, "", false
}

// EntityTypeFromID derives the entity type of an identifier such as "W123"
// or "https://openalex.org/A42" from its type prefix.
func (r *Registry) EntityTypeFromID(id string) (string, bool) {
	id = strings.TrimPrefix(strings.TrimSpace(id), CanonicalURLBase)
	if id == "" {
		return "", false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	entityType, ok := r.prefixes[strings.ToUpper(id[:1])]
	return entityType, ok
}

// Ambiguity records an example identifier claimed by more than one facet
// pattern. Matching resolves it to Configs[0].
type Ambiguity struct {
	Identifier string
	Configs    []*Config
}

func (a Ambiguity) String() string {
	names := make([]string, len(a.Configs))
	for i, c := range a.Configs {
		names[i] = c.EntityType + "/" + c.Key
	}
	return fmt.Sprintf("%q matches %s (first wins)", a.Identifier, strings.Join(names, ", "))
}

// Ambiguities checks every config's example identifiers against all
// patterns and reports the examples matched by more than one facet.
func (r *Registry) Ambiguities() []Ambiguity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Ambiguity
	seen := make(map[string]bool)
	for _, owner := range r.configs {
		for _, example := range owner.Examples {
			if seen[example] {
				continue
			}
			seen[example] = true

			var matched []*Config
			for _, c := range r.configs {
				if _, ok := c.match(example); ok {
					matched = append(matched, c)
				}
			}
			if len(matched) > 1 {
				out = append(out, Ambiguity{Identifier: example, Configs: matched})
			}
		}
	}
	return out
}
