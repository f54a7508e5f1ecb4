// Package intern canonicalizes slim expressions (hash-consing).
//
// Interning through a Cache returns, for any two structurally equal trees,
// the same reference. Trees are processed bottom-up, so equal subtrees are
// shared before their parents are looked up. Subtrees that mention a
// parameter bound outside of them are not interned on their own; they are
// shared only as part of their enclosing scope.
//
// The Cache is explicitly scoped: it is never bounded or evicted
// automatically, and different caches are independent namespaces.
package intern

import (
	"log/slog"
	"sync"

	"github.com/roach88/slim/internal/slim"
)

// Cache holds canonical expressions.
//
// Thread-safety: all methods are safe for concurrent use. Clear waits for
// in-flight interning calls, and interning that starts after Clear returns
// sees the empty cache.
type Cache struct {
	// walks is held shared by every interning call and exclusively by
	// Clear.
	walks sync.RWMutex

	mu      sync.Mutex
	buckets map[uint64][]slim.Expression
	size    int

	comparer slim.ExpressionComparer
	logger   *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithComparer sets the equality used to find canonical nodes.
// Default: slim.StructuralComparer with globals compared by identity.
func WithComparer(c slim.ExpressionComparer) Option {
	return func(cache *Cache) {
		cache.comparer = c
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(cache *Cache) {
		cache.logger = l
	}
}

// NewCache returns an empty cache.
func NewCache(opts ...Option) *Cache {
	c := &Cache{
		buckets:  make(map[uint64][]slim.Expression),
		comparer: slim.StructuralComparer{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Len returns the number of canonical nodes held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Clear drops every canonical node.
func (c *Cache) Clear() {
	c.walks.Lock()
	defer c.walks.Unlock()
	c.mu.Lock()
	dropped := c.size
	c.buckets = make(map[uint64][]slim.Expression)
	c.size = 0
	c.mu.Unlock()
	c.logger.Debug("cleared intern cache", "dropped", dropped)
}

// Intern interns e through c.
func Intern(e slim.Expression, c *Cache) (slim.Expression, error) {
	if c == nil {
		return nil, slim.NewArgumentError("", "nil cache")
	}
	return c.Intern(e)
}

// Intern returns the canonical representative of e.
func (c *Cache) Intern(e slim.Expression) (slim.Expression, error) {
	if e == nil {
		return nil, slim.NewArgumentError("", "nil expression")
	}
	c.walks.RLock()
	defer c.walks.RUnlock()

	sc := newScope(e)
	var visited, hits int
	out, err := slim.Rewrite(e, func(n slim.Expression) (slim.Expression, error) {
		if _, ok := n.(*slim.Parameter); ok {
			return n, nil
		}
		visited++
		if len(sc.local(n)) > 0 {
			return n, nil
		}
		canon := c.canonical(n)
		if canon != n {
			sc.free[canon] = nil
			hits++
		}
		return canon, nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug("interned expression",
		"kind", e.NodeType().String(),
		"nodes", visited,
		"shared", hits,
	)
	return out, nil
}

// scope tracks, for every node met during one interning walk, the
// parameters it uses that are neither global in the whole tree nor
// declared inside the node. A node with none is closed and may be shared.
type scope struct {
	globals map[*slim.Parameter]bool
	free    map[slim.Expression][]*slim.Parameter
	active  map[slim.Expression]bool
}

func newScope(e slim.Expression) *scope {
	sc := &scope{
		globals: make(map[*slim.Parameter]bool),
		free:    make(map[slim.Expression][]*slim.Parameter),
		active:  make(map[slim.Expression]bool),
	}
	for _, p := range slim.GlobalParameters(e) {
		sc.globals[p] = true
	}
	return sc
}

// local returns the non-global free parameters of n. Children are
// rewritten before their parent, so their sets are already known and
// each node costs only its direct children.
func (sc *scope) local(n slim.Expression) []*slim.Parameter {
	if free, ok := sc.free[n]; ok {
		return free
	}
	if p, ok := n.(*slim.Parameter); ok {
		var free []*slim.Parameter
		if !sc.globals[p] {
			free = []*slim.Parameter{p}
		}
		sc.free[n] = free
		return free
	}
	if sc.active[n] {
		// A node that is its own descendant adds nothing new.
		return nil
	}
	sc.active[n] = true
	defer delete(sc.active, n)

	declared := declaredBy(n)
	seen := make(map[*slim.Parameter]bool)
	var free []*slim.Parameter
	root := true
	slim.Walk(n, func(child slim.Expression) bool {
		if root {
			root = false
			return true
		}
		for _, p := range sc.local(child) {
			if !declared[p] && !seen[p] {
				seen[p] = true
				free = append(free, p)
			}
		}
		return false
	})
	sc.free[n] = free
	return free
}

// declaredBy returns the parameters n itself declares.
func declaredBy(n slim.Expression) map[*slim.Parameter]bool {
	var ps []*slim.Parameter
	switch x := n.(type) {
	case *slim.Lambda:
		ps = x.Parameters
	case *slim.Block:
		ps = x.Variables
	case *slim.Try:
		for _, h := range x.Handlers {
			if h.Variable != nil {
				ps = append(ps, h.Variable)
			}
		}
	}
	declared := make(map[*slim.Parameter]bool, len(ps))
	for _, p := range ps {
		declared[p] = true
	}
	return declared
}

// canonical returns the cached node equal to n, adding n when there is
// none.
func (c *Cache) canonical(n slim.Expression) slim.Expression {
	h := c.comparer.Hash(n)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, candidate := range c.buckets[h] {
		if candidate == n || c.comparer.Equal(candidate, n) {
			return candidate
		}
	}
	c.buckets[h] = append(c.buckets[h], n)
	c.size++
	return n
}
