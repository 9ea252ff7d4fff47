package dedup

import (
	"sync"

	"github.com/imcrawler/imcrawler/internal/metadata"
	"github.com/imcrawler/imcrawler/internal/model"
)

// Gate serializes admission decisions for a crawl run.
// It is safe for concurrent use.
type Gate struct {
	mu         sync.Mutex
	seenURLs   map[string]struct{}
	seenHashes map[string]struct{}
	visited    map[string]struct{}
	nextIndex  int
	counters   model.RunSummary
}

// NewGate creates a Gate seeded with what a previous run recorded.
func NewGate(state metadata.State) *Gate {
	g := &Gate{
		seenURLs:   make(map[string]struct{}, len(state.SeenURLs)),
		seenHashes: make(map[string]struct{}, len(state.SeenHashes)),
		visited:    make(map[string]struct{}),
		nextIndex:  state.NextIndex(),
	}
	for u := range state.SeenURLs {
		g.seenURLs[u] = struct{}{}
	}
	for h := range state.SeenHashes {
		g.seenHashes[h] = struct{}{}
	}
	return g
}

// Admit claims imageURL for download. It returns the allocated file index
// and true, or false if the URL was already claimed in this run or recorded
// by a previous one.
func (g *Gate) Admit(imageURL string) (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.seenURLs[imageURL]; ok {
		return 0, false
	}
	g.seenURLs[imageURL] = struct{}{}
	idx := g.nextIndex
	g.nextIndex++
	return idx, true
}

// AdmitHash claims a content hash. It returns false if identical content
// was already kept.
func (g *Gate) AdmitHash(hash string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.seenHashes[hash]; ok {
		return false
	}
	g.seenHashes[hash] = struct{}{}
	return true
}

// ReleaseHash undoes AdmitHash after the accepted image could not be
// written, so that a later copy of the same content can still be kept.
func (g *Gate) ReleaseHash(hash string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.seenHashes, hash)
}

// VisitPage marks pageURL as visited. It returns false if the page was
// already visited by any task of this run.
func (g *Gate) VisitPage(pageURL string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.visited[pageURL]; ok {
		return false
	}
	g.visited[pageURL] = struct{}{}
	return true
}

// Visited reports whether pageURL has been visited in this run.
func (g *Gate) Visited(pageURL string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, ok := g.visited[pageURL]
	return ok
}

// Commit persists the records of a finished task and folds its counters
// into the run totals. Both happen under the gate lock, so metadata rows
// and counters are never observed out of step. The counters are folded
// even when persist fails; the images are on disk either way.
func (g *Gate) Commit(result model.TaskResult, persist func([]model.MetadataRecord) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var err error
	if persist != nil && len(result.Records) > 0 {
		err = persist(result.Records)
	}
	g.counters.Add(result)
	return err
}

// Summary returns a snapshot of the run counters.
func (g *Gate) Summary() model.RunSummary {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.counters
}

// NextIndex returns the index the next admitted URL will receive.
func (g *Gate) NextIndex() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.nextIndex
}
