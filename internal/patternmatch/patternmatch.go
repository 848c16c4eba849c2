// Package patternmatch implements the single glob dialect shared by
// the tag-importance matcher (C2), the correlation analyzer (C6) and
// the alarm rule evaluator (C7): '*' matches any run of characters,
// '?' matches exactly one, matching is case-insensitive and anchored
// to the full string. Patterns compile once and are cached.
package patternmatch

import (
	"regexp"
	"strings"
	"sync"
)

// Compiled is a compiled, cached glob pattern.
type Compiled struct {
	raw string
	re  *regexp.Regexp
}

// Match reports whether s matches the compiled pattern, case-insensitively.
func (c *Compiled) Match(s string) bool {
	if c.re == nil {
		return strings.EqualFold(c.raw, s)
	}
	return c.re.MatchString(s)
}

func (c *Compiled) String() string { return c.raw }

// Compile compiles a glob pattern ('*', '?', case-insensitive, full
// anchor). A pattern with no wildcard characters compiles to a direct
// fold-case comparison for speed.
func Compile(pattern string) *Compiled {
	if !strings.ContainsAny(pattern, "*?") {
		return &Compiled{raw: pattern}
	}
	var b strings.Builder
	b.WriteString("(?i)^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return &Compiled{raw: pattern, re: regexp.MustCompile(b.String())}
}

// Cache is a thread-safe compile-once-and-reuse cache, swapped
// atomically on Refresh so lookups never block on recompilation.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Compiled
}

// NewCache creates an empty pattern cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*Compiled)}
}

// Get returns the compiled pattern, compiling and caching it on first use.
func (c *Cache) Get(pattern string) *Compiled {
	c.mu.RLock()
	if compiled, ok := c.entries[pattern]; ok {
		c.mu.RUnlock()
		return compiled
	}
	c.mu.RUnlock()

	compiled := Compile(pattern)

	c.mu.Lock()
	c.entries[pattern] = compiled
	c.mu.Unlock()

	return compiled
}

// Reset atomically drops all cached patterns (used by Refresh()-style
// config reloads).
func (c *Cache) Reset() {
	c.mu.Lock()
	c.entries = make(map[string]*Compiled)
	c.mu.Unlock()
}
