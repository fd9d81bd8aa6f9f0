package ledger

import (
	"fmt"

	"github.com/alejandrodnm/betledger/internal/domain"
)

// Config contiene las reglas del mercado.
type Config struct {
	MinWager         int64  // wager mínimo aceptado (inclusive)
	MaxWager         int64  // wager máximo aceptado (inclusive)
	PayoutMultiplier int64  // pago = wager × multiplier para cada ganador
	LeaderboardSize  int    // top-N del leaderboard; <= 0 sin límite
	MaxNameLength    int    // en runas, tras trim
	LockKey          string // clave del Locker distribuido, si lo hay
}

// DefaultConfig devuelve los valores canónicos: wager 10..500, pago 5x, top 5.
func DefaultConfig() Config {
	return Config{
		MinWager:         10,
		MaxWager:         500,
		PayoutMultiplier: domain.DefaultPayoutMultiplier,
		LeaderboardSize:  5,
		MaxNameLength:    64,
		LockKey:          "betledger",
	}
}

// Validate rechaza configuraciones sin sentido.
func (c Config) Validate() error {
	if c.MinWager < 1 {
		return fmt.Errorf("ledger.Config: min wager %d must be >= 1", c.MinWager)
	}
	if c.MaxWager < c.MinWager {
		return fmt.Errorf("ledger.Config: max wager %d below min wager %d", c.MaxWager, c.MinWager)
	}
	if c.MaxWager > domain.MaxStoredWager {
		return fmt.Errorf("ledger.Config: max wager %d above %d", c.MaxWager, domain.MaxStoredWager)
	}
	if c.PayoutMultiplier < 1 {
		return fmt.Errorf("ledger.Config: payout multiplier %d must be >= 1", c.PayoutMultiplier)
	}
	if c.MaxNameLength < 1 {
		return fmt.Errorf("ledger.Config: max name length %d must be >= 1", c.MaxNameLength)
	}
	return nil
}
