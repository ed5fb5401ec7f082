package token

import (
	"sync"

	"github.com/zeqswap/exchange/internal/models"
)

// Registry tracks deployed token ledgers so callers can resolve them by
// address or symbol.
type Registry struct {
	mu       sync.RWMutex
	order    []*Token
	byAddr   map[models.Address]*Token
	bySymbol map[string]*Token
}

func NewRegistry() *Registry {
	return &Registry{
		byAddr:   make(map[models.Address]*Token),
		bySymbol: make(map[string]*Token),
	}
}

func (r *Registry) Add(t *Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, t)
	r.byAddr[t.Address()] = t
	r.bySymbol[t.Symbol()] = t
}

func (r *Registry) ByAddress(addr models.Address) (*Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byAddr[addr]
	return t, ok
}

func (r *Registry) BySymbol(symbol string) (*Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.bySymbol[symbol]
	return t, ok
}

// Resolve accepts either a token address or a symbol.
func (r *Registry) Resolve(s string) (*Token, bool) {
	if t, ok := r.ByAddress(models.Address(s)); ok {
		return t, true
	}
	return r.BySymbol(s)
}

// All returns the deployed tokens in deployment order.
func (r *Registry) All() []*Token {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Token, len(r.order))
	copy(out, r.order)
	return out
}
