package fetch

import "sync"

// IdentityPool hands out user agents round-robin, wrapping around at the end.
type IdentityPool struct {
	mu     sync.Mutex
	agents []string
	next   int
}

// NewIdentityPool creates a pool over agents. An empty list falls back to
// DefaultUserAgents.
func NewIdentityPool(agents []string) *IdentityPool {
	if len(agents) == 0 {
		agents = DefaultUserAgents
	}
	return &IdentityPool{agents: append([]string(nil), agents...)}
}

// Next returns the user agent for the next attempt.
func (p *IdentityPool) Next() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ua := p.agents[p.next]
	p.next = (p.next + 1) % len(p.agents)
	return ua
}

// Len returns the pool size.
func (p *IdentityPool) Len() int {
	return len(p.agents)
}
