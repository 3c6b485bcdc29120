package facet

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"
)

//go:embed facets.toml
var builtinFacets []byte

var (
	// ErrInvalidConfig is returned for facet entries missing required fields.
	ErrInvalidConfig = errors.New("invalid facet config")

	// ErrInvalidPattern is returned when a facet identifier regex does not compile.
	ErrInvalidPattern = errors.New("invalid facet pattern")
)

type facetFile struct {
	EntityPrefixes map[string]string `toml:"entity_prefixes"`
	Facets         []Config          `toml:"facet"`
}

// Load parses a TOML facet table. Facets are registered in file order.
func Load(r io.Reader) (*Registry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading facet table: %w", err)
	}
	return parse(data)
}

// LoadFile parses the facet table at path.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading facet file: %w", err)
	}
	reg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// Default returns a fresh registry holding the built-in facet table.
func Default() *Registry {
	reg, err := parse(builtinFacets)
	if err != nil {
		panic(fmt.Sprintf("built-in facet table: %v", err))
	}
	return reg
}

// Builtin returns the raw built-in facet table, used as a starting point for
// custom tables.
func Builtin() []byte {
	out := make([]byte, len(builtinFacets))
	copy(out, builtinFacets)
	return out
}

func parse(data []byte) (*Registry, error) {
	var f facetFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshaling facet table: %w", err)
	}

	reg := NewRegistry()
	for prefix, entityType := range f.EntityPrefixes {
		reg.RegisterPrefix(prefix, entityType)
	}
	for _, c := range f.Facets {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
