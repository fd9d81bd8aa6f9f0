package ports

import (
	"context"

	"github.com/alejandrodnm/betledger/internal/domain"
)

// StateStore persiste el MarketState completo como un único agregado.
type StateStore interface {
	// Load devuelve el estado persistido. Si no existe estado todavía devuelve
	// domain.InitialState() sin error. Cualquier otro fallo de lectura se
	// devuelve como error: nunca se sustituye en silencio por el estado vacío.
	Load(ctx context.Context) (domain.MarketState, error)

	// Save reemplaza atómicamente el estado persistido.
	Save(ctx context.Context, state domain.MarketState) error

	// Close libera el backend.
	Close() error
}

// Locker serializa mutaciones entre procesos que comparten el mismo store.
type Locker interface {
	// Acquire bloquea hasta obtener el lock o hasta que ctx expire.
	// La función devuelta libera el lock y es segura de llamar varias veces.
	Acquire(ctx context.Context, key string) (func(), error)
}
