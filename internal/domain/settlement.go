package domain

import (
	"fmt"
	"math"
)

// DefaultPayoutMultiplier es el factor aplicado al wager de una apuesta ganadora.
const DefaultPayoutMultiplier int64 = 5

// Payout es una apuesta ganadora y lo que cobra.
type Payout struct {
	Bet    Bet
	Amount int64
}

// Settlement es el resultado del reparto, reproducible solo a partir del estado.
type Settlement struct {
	Result         int64
	Multiplier     int64
	Winners        []Payout // en orden de envío
	TotalPool      int64
	TotalPayout    int64
	HouseKeepsPool bool  // true si no hay ganadores
	HouseNet       int64 // TotalPool - TotalPayout; negativo si la casa pierde
}

// Settle calcula ganadores y pagos. Ganar es igualdad exacta entre
// predicción y resultado, sin margen de tolerancia. Si algún total no cabe en
// int64 devuelve un error que envuelve ErrCorruptState.
func Settle(state MarketState, multiplier int64) (Settlement, error) {
	if state.Result == nil {
		return Settlement{}, ErrNotResolved
	}
	if multiplier < 1 {
		multiplier = DefaultPayoutMultiplier
	}

	s := Settlement{
		Result:     *state.Result,
		Multiplier: multiplier,
	}
	var ok bool
	for i, b := range state.Bets {
		if s.TotalPool, ok = addInt64(s.TotalPool, b.Wager); !ok {
			return Settlement{}, fmt.Errorf("%w: pool overflows at bet %d", ErrCorruptState, i)
		}
		if b.Prediction != s.Result {
			continue
		}
		amount, ok := mulInt64(b.Wager, multiplier)
		if !ok {
			return Settlement{}, fmt.Errorf("%w: payout of bet %d overflows (%d x %d)", ErrCorruptState, i, b.Wager, multiplier)
		}
		if s.TotalPayout, ok = addInt64(s.TotalPayout, amount); !ok {
			return Settlement{}, fmt.Errorf("%w: total payout overflows at bet %d", ErrCorruptState, i)
		}
		s.Winners = append(s.Winners, Payout{Bet: b, Amount: amount})
	}
	s.HouseKeepsPool = len(s.Winners) == 0
	s.HouseNet = s.TotalPool - s.TotalPayout
	return s, nil
}

// wagers y multiplier son positivos: basta con comprobar el techo.
func addInt64(a, b int64) (int64, bool) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, false
	}
	return a + b, true
}

func mulInt64(a, b int64) (int64, bool) {
	if a > 0 && b > 0 && a > math.MaxInt64/b {
		return 0, false
	}
	return a * b, true
}
