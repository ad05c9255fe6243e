package codec

import (
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"

	apperrors "github.com/mathhub/mdh-explorer/internal/errors"
)

// Registry maps codec slugs to codec instances. Registered codecs and
// synthesized fallbacks are kept in separate append-only maps.
type Registry struct {
	mu        sync.RWMutex
	codecs    map[string]Codec
	fallbacks map[string]*Fallback
}

var (
	defaultRegistry *Registry
	defaultOnce     sync.Once
)

// Default returns the process-wide registry, creating it on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a registry holding the built-in codecs.
func NewRegistry() *Registry {
	r := NewEmptyRegistry()
	for _, c := range builtins() {
		r.Register(c)
	}
	return r
}

// NewEmptyRegistry creates a registry without any codecs.
func NewEmptyRegistry() *Registry {
	return &Registry{
		codecs:    make(map[string]Codec),
		fallbacks: make(map[string]*Fallback),
	}
}

func builtins() []Codec {
	return []Codec{
		StandardInt{},
		StandardBool{},
		StandardString{},
		StandardJSON{},
		GraphAsSparse6{},
		CoveringRelationAsDigraph6{},
		GraphLabel{},
		MagmaGraphCode{},
		PolynomialAsSparseArray{},
		FactorizationAsSparseArray{},
		ListAsArray{Element: StandardInt{}},
		ListAsArray{Element: StandardString{}},
		MatrixAsList{Element: StandardInt{}, Rows: 3, Columns: 3},
	}
}

// Register adds c under its slug. Registering a slug twice replaces the
// earlier codec and logs a warning.
func (r *Registry) Register(c Codec) {
	slug := c.Slug()
	if slug == "" {
		panic("codec: Register with empty slug")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.codecs[slug]; exists {
		log.Printf("[codec] warning: codec %s registered twice, replacing", slug)
	}
	r.codecs[slug] = c
}

// Get returns the codec registered under slug. Parameterized slugs such
// as ListAsArray_StandardInt are built on first use when their element
// codec is known. Unknown slugs fail with a CODEC/UNKNOWN_CODEC error.
func (r *Registry) Get(slug string) (Codec, error) {
	if c, ok := r.lookup(slug); ok {
		return c, nil
	}
	return nil, apperrors.NewCodecError(apperrors.CodeUnknownCodec,
		fmt.Sprintf("Codec %s is not known", slug))
}

// GetWithFallback never fails. Unknown slugs map to a Fallback that is
// created once per slug and returned on every later call.
func (r *Registry) GetWithFallback(slug string) Codec {
	if c, ok := r.lookup(slug); ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.fallbacks[slug]; ok {
		return f
	}
	f := NewFallback(slug)
	r.fallbacks[slug] = f
	return f
}

// Slugs returns the registered slugs in sorted order.
func (r *Registry) Slugs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	slugs := make([]string, 0, len(r.codecs))
	for s := range r.codecs {
		slugs = append(slugs, s)
	}
	sort.Strings(slugs)
	return slugs
}

func (r *Registry) lookup(slug string) (Codec, bool) {
	r.mu.RLock()
	c, ok := r.codecs[slug]
	r.mu.RUnlock()
	if ok {
		return c, true
	}

	c, ok = r.build(slug)
	if !ok {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.codecs[slug]; ok {
		return existing, true
	}
	r.codecs[slug] = c
	return c, true
}

// build constructs a parameterized codec from its slug.
func (r *Registry) build(slug string) (Codec, bool) {
	switch {
	case strings.HasPrefix(slug, "ListAsArray_"):
		elem, ok := r.lookup(strings.TrimPrefix(slug, "ListAsArray_"))
		if !ok {
			return nil, false
		}
		return ListAsArray{Element: elem}, true

	case strings.HasPrefix(slug, "MatrixAsList_"):
		rest := strings.TrimPrefix(slug, "MatrixAsList_")
		parts := strings.Split(rest, "_")
		if len(parts) < 3 {
			return nil, false
		}
		rows, err1 := strconv.Atoi(parts[len(parts)-2])
		cols, err2 := strconv.Atoi(parts[len(parts)-1])
		if err1 != nil || err2 != nil || rows <= 0 || cols <= 0 {
			return nil, false
		}
		elem, ok := r.lookup(strings.Join(parts[:len(parts)-2], "_"))
		if !ok {
			return nil, false
		}
		return MatrixAsList{Element: elem, Rows: rows, Columns: cols}, true
	}
	return nil, false
}
