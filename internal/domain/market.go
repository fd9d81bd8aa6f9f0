package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Phase es el estado del mercado derivado de MarketOpen y Result.
type Phase int

const (
	PhaseOpen     Phase = iota // OPEN_UNRESOLVED: acepta apuestas
	PhaseClosed                // CLOSED_UNRESOLVED: cerrado, sin resultado
	PhaseResolved              // RESOLVED: terminal hasta un reset
)

// String devuelve el nombre canónico de la fase.
func (p Phase) String() string {
	switch p {
	case PhaseOpen:
		return "OPEN_UNRESOLVED"
	case PhaseClosed:
		return "CLOSED_UNRESOLVED"
	case PhaseResolved:
		return "RESOLVED"
	default:
		return "UNKNOWN"
	}
}

// Label es la versión corta para consola.
func (p Phase) Label() string {
	switch p {
	case PhaseOpen:
		return "OPEN"
	case PhaseClosed:
		return "CLOSED"
	case PhaseResolved:
		return "SETTLED"
	default:
		return "?"
	}
}

// Bet es una predicción enviada. Inmutable una vez creada.
type Bet struct {
	Name       string  `json:"name"`
	Prediction int64   `json:"prediction"`
	Wager      int64   `json:"wager"`
	Timestamp  float64 `json:"timestamp"` // unix seconds; float para que el JSON sea estable
}

// Time convierte el timestamp a time.Time.
func (b Bet) Time() time.Time {
	sec, frac := math.Modf(b.Timestamp)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

// UnixSeconds convierte un time.Time al formato de timestamp de Bet.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// MarketState es el ledger completo persistido: un único agregado.
type MarketState struct {
	MarketOpen bool   `json:"market_open"`
	Bets       []Bet  `json:"bets"`
	Result     *int64 `json:"result"`
}

// InitialState devuelve el estado vacío: abierto, sin apuestas ni resultado.
func InitialState() MarketState {
	return MarketState{MarketOpen: true, Bets: []Bet{}}
}

// Phase deriva la fase del mercado.
func (s MarketState) Phase() Phase {
	switch {
	case s.Result != nil:
		return PhaseResolved
	case s.MarketOpen:
		return PhaseOpen
	default:
		return PhaseClosed
	}
}

// Resolved indica si el mercado ya tiene resultado.
func (s MarketState) Resolved() bool {
	return s.Result != nil
}

// Clone devuelve una copia profunda. Bets nunca queda nil.
func (s MarketState) Clone() MarketState {
	out := MarketState{
		MarketOpen: s.MarketOpen,
		Bets:       make([]Bet, len(s.Bets)),
	}
	copy(out.Bets, s.Bets)
	if s.Result != nil {
		r := *s.Result
		out.Result = &r
	}
	return out
}

// Normalize corrige la forma (no la semántica) de un estado recién decodificado.
// Un "bets": null del archivo se trata como lista vacía.
func (s *MarketState) Normalize() {
	if s.Bets == nil {
		s.Bets = []Bet{}
	}
}

// Validate comprueba los invariantes de un estado persistido.
func (s MarketState) Validate() error {
	if s.Result != nil {
		if *s.Result < 0 {
			return fmt.Errorf("result %d is negative", *s.Result)
		}
		if s.MarketOpen {
			return fmt.Errorf("market is open but has result %d", *s.Result)
		}
	}
	for i, b := range s.Bets {
		if strings.TrimSpace(b.Name) == "" {
			return fmt.Errorf("bet %d: empty name", i)
		}
		if b.Prediction < 0 {
			return fmt.Errorf("bet %d: negative prediction %d", i, b.Prediction)
		}
		if b.Wager <= 0 {
			return fmt.Errorf("bet %d: non-positive wager %d", i, b.Wager)
		}
		if b.Wager > MaxStoredWager {
			return fmt.Errorf("bet %d: wager %d above %d", i, b.Wager, MaxStoredWager)
		}
	}
	return nil
}

// LastTimestamp devuelve el timestamp de la última apuesta, o 0 si no hay.
func (s MarketState) LastTimestamp() float64 {
	if len(s.Bets) == 0 {
		return 0
	}
	return s.Bets[len(s.Bets)-1].Timestamp
}

// MaxStoredWager acota el wager de una apuesta persistida. Un documento con
// wagers mayores se trata como corrupto.
const MaxStoredWager int64 = 1_000_000_000_000

// Int64Ptr es un helper para construir resultados.
func Int64Ptr(v int64) *int64 {
	return &v
}
