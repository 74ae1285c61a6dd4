package agent

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ashureev/printdesk/internal/templates"
)

const pcgStream = 0x9e3779b97f4a7c15

// Chooser picks among interchangeable phrasings. A fixed seed gives a
// reproducible sequence. It is safe for concurrent use.
type Chooser struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewChooser returns a chooser seeded with seed, or with the current time
// when seed is 0.
func NewChooser(seed uint64) *Chooser {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Chooser{rng: rand.New(rand.NewPCG(seed, seed^pcgStream))}
}

// Pick returns a uniform index in [0, n). It returns 0 when n <= 1.
func (c *Chooser) Pick(n int) int {
	if n <= 1 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.IntN(n)
}

// Phrase picks one phrasing from a catalog set.
func (c *Chooser) Phrase(catalog *templates.Catalog, set templates.Set) string {
	return catalog.Pick(set, c.Pick(catalog.Len(set)))
}
