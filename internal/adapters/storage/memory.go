package storage

import (
	"context"
	"sync"

	"github.com/alejandrodnm/betledger/internal/domain"
)

// Memory implementa ports.StateStore en memoria. Usado en dry-run y tests.
type Memory struct {
	mu    sync.Mutex
	state *domain.MarketState // nil = nunca guardado
}

// NewMemory crea un store vacío.
func NewMemory() *Memory {
	return &Memory{}
}

// Load devuelve una copia del estado, o el inicial si nunca se guardó.
func (m *Memory) Load(_ context.Context) (domain.MarketState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return domain.InitialState(), nil
	}
	return m.state.Clone(), nil
}

// Save guarda una copia profunda.
func (m *Memory) Save(_ context.Context, state domain.MarketState) error {
	c := state.Clone()
	m.mu.Lock()
	m.state = &c
	m.mu.Unlock()
	return nil
}

// Close no hace nada.
func (m *Memory) Close() error {
	return nil
}
