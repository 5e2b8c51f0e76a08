package site

import (
	"sync"

	"mksite/media"
	"mksite/row"
)

// classifierCache remembers orientation of every resolved media path for a
// single build, pages sharing an image classify it once. Inputs must not
// change while build runs.
type classifierCache struct {
	inner row.Classifier

	mu   sync.Mutex
	seen map[string]func() (media.Orientation, error)
}

func newClassifierCache(c row.Classifier) *classifierCache {
	return &classifierCache{inner: c, seen: make(map[string]func() (media.Orientation, error))}
}

func (c *classifierCache) Classify(path string) (media.Orientation, error) {
	c.mu.Lock()
	classify, ok := c.seen[path]
	if !ok {
		classify = sync.OnceValues(func() (media.Orientation, error) {
			return c.inner.Classify(path)
		})
		c.seen[path] = classify
	}
	c.mu.Unlock()
	return classify()
}
