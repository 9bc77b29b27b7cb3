package testfixtures

import (
	"strconv"
	"sync"
)

// IDGenerator hands out "<prefix>-N" identifiers and remembers what it issued,
// so tests can predict and assert the ids services assign to sessions and
// availability entries.
type IDGenerator struct {
	mu     sync.Mutex
	prefix string
	issued []string
}

// NewIDGenerator uses "id" when prefix is empty.
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix}
}

func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.format(len(g.issued) + 1)
	g.issued = append(g.issued, id)
	return id
}

// Peek returns the id the next call to Next will produce.
func (g *IDGenerator) Peek() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.format(len(g.issued) + 1)
}

// Issued returns the ids handed out so far, oldest first.
func (g *IDGenerator) Issued() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.issued...)
}

// NextFunc is the injectable form of Next.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

func (g *IDGenerator) format(n int) string {
	return g.prefix + "-" + strconv.Itoa(n)
}
