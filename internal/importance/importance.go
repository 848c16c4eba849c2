// Package importance implements the Tag Importance Matcher (C2):
// wildcard-pattern rules mapping a tag to {Critical, Major, Minor,
// Trivial}, grounded on the teacher's rule-list-plus-pattern-cache
// style (internal/alerts/engine.go) and internal/patternmatch.
package importance

import (
	"log"
	"sort"
	"sync"

	"github.com/savegress/intellimaint/internal/patternmatch"
	"github.com/savegress/intellimaint/pkg/models"
)

// Rule maps a tag pattern to an importance level. Higher Priority wins
// when multiple enabled rules match the same tag.
type Rule struct {
	Pattern    string
	Importance models.Importance
	Priority   int
	Enabled    bool
}

// Matcher resolves a tagId to its configured Importance, caching
// compiled patterns and defaulting to the importance given to
// NewMatcher when nothing matches.
type Matcher struct {
	mu        sync.RWMutex
	rules     []Rule
	cache     *patternmatch.Cache
	defaultTo models.Importance
	warned    bool
}

// NewMatcher creates a Matcher with the given default importance,
// applied when no rule matches.
func NewMatcher(defaultImportance models.Importance) *Matcher {
	return &Matcher{
		cache:     patternmatch.NewCache(),
		defaultTo: defaultImportance,
	}
}

// Refresh atomically replaces the rule set and clears the pattern cache.
func (m *Matcher) Refresh(rules []Rule) {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority > sorted[j].Priority })

	m.mu.Lock()
	m.rules = sorted
	m.mu.Unlock()
	m.cache.Reset()
}

// Match returns the importance of tagId, the highest-priority enabled
// rule whose pattern matches, or the configured default. Never blocks
// on I/O; emits a single warning if Refresh has not yet been called.
func (m *Matcher) Match(tagID string) models.Importance {
	m.mu.RLock()
	rules := m.rules
	m.mu.RUnlock()

	if rules == nil {
		m.mu.Lock()
		if !m.warned {
			log.Printf("importance: matcher used before Refresh, returning default %s", m.defaultTo)
			m.warned = true
		}
		m.mu.Unlock()
		return m.defaultTo
	}

	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		if m.cache.Get(r.Pattern).Match(tagID) {
			return r.Importance
		}
	}
	return m.defaultTo
}

// Weight returns the numeric rank (Critical=4..Trivial=1) used by the
// health score calculator as a per-tag weight.
func (m *Matcher) Weight(tagID string) float64 {
	return float64(m.Match(tagID).Rank())
}
