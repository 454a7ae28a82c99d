package ping

import (
	"sync"
	"time"

	"github.com/doridoridoriand/latencybar/internal/log"
	"github.com/google/uuid"
)

// DefaultHighWaterMark is the in-flight count above which the guard warns.
const DefaultHighWaterMark = 3

// Token identifies one registered probe attempt.
type Token struct {
	ID      uuid.UUID
	Host    string
	Started time.Time
}

// Guard counts probe attempts that are currently in flight. It never blocks
// or refuses an attempt; crossing the high-water mark only logs a warning.
type Guard struct {
	mu        sync.Mutex
	active    map[uuid.UUID]Token
	peak      int
	highWater int
	logger    *log.Logger
}

// NewGuard returns a guard warning above highWater concurrent attempts.
func NewGuard(highWater int, logger *log.Logger) *Guard {
	if highWater <= 0 {
		highWater = DefaultHighWaterMark
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Guard{
		active:    make(map[uuid.UUID]Token),
		highWater: highWater,
		logger:    logger,
	}
}

// Enter registers a new attempt against host.
func (g *Guard) Enter(host string) Token {
	tok := Token{ID: uuid.New(), Host: host, Started: time.Now()}

	g.mu.Lock()
	g.active[tok.ID] = tok
	count := len(g.active)
	if count > g.peak {
		g.peak = count
	}
	g.mu.Unlock()

	if count > g.highWater {
		g.logger.Warn("high number of active probe processes", map[string]interface{}{
			"active":     count,
			"high_water": g.highWater,
			"host":       host,
		})
	}
	g.logger.Debug("probe attempt started", map[string]interface{}{
		"attempt": tok.ID.String(),
		"host":    host,
		"active":  count,
	})
	return tok
}

// Exit deregisters tok. Calling it more than once for the same token is a no-op.
func (g *Guard) Exit(tok Token) {
	g.mu.Lock()
	_, ok := g.active[tok.ID]
	delete(g.active, tok.ID)
	count := len(g.active)
	g.mu.Unlock()

	if !ok {
		return
	}
	g.logger.Debug("probe attempt finished", map[string]interface{}{
		"attempt":     tok.ID.String(),
		"host":        tok.Host,
		"active":      count,
		"duration_ms": time.Since(tok.Started).Milliseconds(),
	})
}

// Active returns the number of attempts currently in flight.
func (g *Guard) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.active)
}

// Peak returns the highest in-flight count observed.
func (g *Guard) Peak() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.peak
}
