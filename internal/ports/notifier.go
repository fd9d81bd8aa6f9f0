package ports

import (
	"context"

	"github.com/alejandrodnm/betledger/internal/domain"
)

// View es todo lo que la capa de presentación necesita para pintar el mercado.
type View struct {
	State        domain.MarketState
	Stats        domain.Stats
	Leaderboard  []domain.LeaderboardEntry
	Distribution []domain.GuessBucket
	Settlement   *domain.Settlement // nil mientras no haya resultado
}

// Notifier presenta el estado del mercado al usuario.
type Notifier interface {
	Render(ctx context.Context, view View) error
}
