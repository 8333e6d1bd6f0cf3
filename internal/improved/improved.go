// Package improved remembers statements the system has already improved,
// so resubmitting a polished argument short-circuits instead of looping
// through another analyze/improve round.
package improved

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const fileName = "improved_statements.json"

type entry struct {
	Normalized string    `json:"normalized"`
	Original   string    `json:"original,omitempty"`
	StoredAt   time.Time `json:"stored_at"`
}

// Cache is a fuzzy-matching set of normalized improved statements, held
// in memory for exact lookups and persisted as JSON for restarts.
type Cache struct {
	threshold  float64
	maxEntries int
	path       string
	logger     *slog.Logger

	mu      sync.Mutex
	mem     *gocache.Cache
	entries []entry
}

// New loads the persisted set from dir, or starts empty when dir is
// blank or the file is missing. A corrupt file is discarded with a
// warning rather than failing startup.
func New(dir string, threshold float64, maxEntries int) *Cache {
	c := &Cache{
		threshold:  threshold,
		maxEntries: maxEntries,
		logger:     slog.Default(),
		mem:        gocache.New(gocache.NoExpiration, 0),
	}
	if dir != "" {
		c.path = filepath.Join(dir, fileName)
		c.load()
	}
	return c
}

// Remember records the improved form of a statement and persists the
// set. The original is kept alongside for inspection only; lookups match
// against the improved text.
func (c *Cache) Remember(original, improvedText string) error {
	norm := Normalize(improvedText)
	if norm == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.mem.Get(norm); ok {
		return nil
	}
	c.mem.Set(norm, true, gocache.NoExpiration)
	c.entries = append(c.entries, entry{
		Normalized: norm,
		Original:   strings.TrimSpace(original),
		StoredAt:   time.Now().UTC(),
	})

	// Evict oldest entries past the cap.
	if c.maxEntries > 0 && len(c.entries) > c.maxEntries {
		for _, old := range c.entries[:len(c.entries)-c.maxEntries] {
			c.mem.Delete(old.Normalized)
		}
		c.entries = append([]entry(nil), c.entries[len(c.entries)-c.maxEntries:]...)
	}
	return c.persist()
}

// IsImproved reports whether the statement matches a remembered one,
// exactly or within the similarity threshold.
func (c *Cache) IsImproved(statement string) bool {
	norm := Normalize(statement)
	if norm == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.mem.Get(norm); ok {
		return true
	}
	for _, e := range c.entries {
		if Similarity(norm, e.Normalized) >= c.threshold {
			return true
		}
	}
	return false
}

// Len returns the number of remembered statements.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// load must only be called from New.
func (c *Cache) load() {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("failed to read improved-statement cache", "path", c.path, "error", err)
		}
		return
	}
	var entries []entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		c.logger.Warn("discarding corrupt improved-statement cache", "path", c.path, "error", err)
		return
	}
	c.entries = entries
	for _, e := range entries {
		c.mem.Set(e.Normalized, true, gocache.NoExpiration)
	}
}

// persist must be called with the lock held.
func (c *Cache) persist() error {
	if c.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	raw, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode improved-statement cache: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("write improved-statement cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replace improved-statement cache: %w", err)
	}
	return nil
}

// Normalize maps equivalent phrasings to one key: lowercase, collapsed
// whitespace, trailing sentence punctuation removed. Idempotent.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimRight(s, ".!?,;:")
}

// Similarity returns the Ratcliff/Obershelp ratio of two strings in
// [0,1]: twice the total length of matching blocks over the combined
// length. Symmetric, and 1 for identical strings.
func Similarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	matched := matchingBlocks(a, b)
	return 2 * float64(matched) / float64(len(a)+len(b))
}

// matchingBlocks sums the longest common block and recurses into the
// unmatched regions on either side.
func matchingBlocks(a, b string) int {
	ai, bi, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	total := size
	total += matchingBlocks(a[:ai], b[:bi])
	total += matchingBlocks(a[ai+size:], b[bi+size:])
	return total
}

func longestMatch(a, b string) (ai, bi, size int) {
	// lengths[j] is the match length ending at a[i-1], b[j-1].
	lengths := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		prev := 0
		for j := 1; j <= len(b); j++ {
			cur := lengths[j]
			if a[i-1] == b[j-1] {
				lengths[j] = prev + 1
				if lengths[j] > size {
					size = lengths[j]
					ai = i - size
					bi = j - size
				}
			} else {
				lengths[j] = 0
			}
			prev = cur
		}
	}
	return ai, bi, size
}
