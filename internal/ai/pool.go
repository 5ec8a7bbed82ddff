package ai

import "sync"

// CredentialPool owns an ordered list of API keys and hands them out
// round-robin. Keys that hit their quota are marked exhausted and skipped
// until the pool is rebuilt.
type CredentialPool struct {
	mu        sync.Mutex
	keys      []string
	exhausted map[string]bool
	cursor    int
}

func NewCredentialPool(keys []string) *CredentialPool {
	return &CredentialPool{
		keys:      keys,
		exhausted: make(map[string]bool),
	}
}

// Next returns the next active key. ok is false when every key is
// exhausted or the pool is empty.
func (p *CredentialPool) Next() (key string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := 0; i < len(p.keys); i++ {
		k := p.keys[p.cursor%len(p.keys)]
		p.cursor++
		if !p.exhausted[k] {
			return k, true
		}
	}
	return "", false
}

// MarkExhausted removes a key from rotation.
func (p *CredentialPool) MarkExhausted(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exhausted[key] = true
}

// Active returns the number of usable keys.
func (p *CredentialPool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, k := range p.keys {
		if !p.exhausted[k] {
			n++
		}
	}
	return n
}
