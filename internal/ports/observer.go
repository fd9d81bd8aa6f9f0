package ports

import "github.com/alejandrodnm/betledger/internal/domain"

// Observer recibe los eventos del ledger (métricas, auditoría).
// Las implementaciones no deben bloquear.
type Observer interface {
	BetPlaced(bet domain.Bet)
	Transition(op string, phase domain.Phase)
	Failed(op string, err error)
}

// NopObserver descarta todos los eventos.
type NopObserver struct{}

func (NopObserver) BetPlaced(domain.Bet) {}
func (NopObserver) Transition(string, domain.Phase) {}
func (NopObserver) Failed(string, error) {}
