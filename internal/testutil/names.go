package testutil

import (
	"fmt"
	"sync"
)

// SequentialNames generates "<prefix>-1", "<prefix>-2", ... in call order.
//
// Used in place of random UUID profile names so provisioning is reproducible.
//
// Thread-safety: SequentialNames is safe for concurrent use.
type SequentialNames struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialNames creates a generator. An empty prefix becomes "test".
func NewSequentialNames(prefix string) *SequentialNames {
	if prefix == "" {
		prefix = "test"
	}
	return &SequentialNames{prefix: prefix}
}

// Generate returns the next name.
func (g *SequentialNames) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
