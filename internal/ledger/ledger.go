package ledger

// ledger.go — la máquina de estados del mercado.
//
// Estrategia:
//   - Cada mutación corre entera (load → mutate → save) bajo l.mu y, si hay
//     Locker, bajo el lock distribuido. Se recarga del store dentro del lock
//     para no perder escrituras de otro proceso.
//   - La mutación trabaja sobre un Clone(); el snapshot solo se reemplaza
//     cuando Save terminó bien. Un fallo de persistencia no deja estado a medias.
//   - Las lecturas usan un atomic.Pointer al último snapshot: nunca esperan
//     a un escritor.

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/alejandrodnm/betledger/internal/domain"
	"github.com/alejandrodnm/betledger/internal/ports"
	"golang.org/x/time/rate"
)

const (
	OpPlaceBet = "place_bet"
	OpToggle   = "toggle_market"
	OpResolve  = "resolve"
	OpReset    = "reset"
	OpRefresh  = "refresh"
)

// Ledger es el único escritor del MarketState.
type Ledger struct {
	cfg      Config
	store    ports.StateStore
	clock    ports.Clock
	auth     ports.Authorizer
	locker   ports.Locker
	observer ports.Observer
	limiter  *rate.Limiter

	mu   sync.Mutex // serializa mutaciones
	snap atomic.Pointer[domain.MarketState]
}

// New crea un Ledger con el store inyectado y carga el estado inicial.
// Un fallo de carga se devuelve como *domain.PersistenceError.
func New(ctx context.Context, cfg Config, store ports.StateStore, opts ...Option) (*Ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("ledger.New: nil store")
	}

	l := &Ledger{
		cfg:      cfg,
		store:    store,
		clock:    ports.SystemClock{},
		auth:     ports.AllowAll,
		observer: ports.NopObserver{},
	}
	for _, opt := range opts {
		opt(l)
	}
	// un store con su propio lock entre procesos (json, sqlite) lo aporta solo
	if lk, ok := store.(ports.Locker); ok && l.locker == nil {
		l.locker = lk
	}

	state, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger.New: %w", domain.NewPersistenceError("load", err))
	}
	state.Normalize()
	l.snap.Store(&state)

	slog.Debug("ledger loaded",
		"phase", state.Phase(),
		"bets", len(state.Bets),
	)
	return l, nil
}

// Config devuelve la configuración activa.
func (l *Ledger) Config() Config {
	return l.cfg
}

// PlaceBet añade una apuesta. Solo válido en OPEN_UNRESOLVED.
//
// Orden de rechazo: mercado cerrado, input inválido, rate limit. La fase se
// vuelve a comprobar dentro de mutate sobre el estado recién cargado.
func (l *Ledger) PlaceBet(ctx context.Context, name string, prediction, wager int64) (domain.MarketState, error) {
	if l.snap.Load().Phase() != domain.PhaseOpen {
		l.fail(OpPlaceBet, domain.ErrMarketClosed)
		return domain.MarketState{}, domain.ErrMarketClosed
	}
	name = strings.TrimSpace(name)
	if err := l.validateBet(name, prediction, wager); err != nil {
		l.fail(OpPlaceBet, err)
		return domain.MarketState{}, err
	}
	if l.limiter != nil && !l.limiter.Allow() {
		l.fail(OpPlaceBet, domain.ErrRateLimited)
		return domain.MarketState{}, domain.ErrRateLimited
	}

	var placed domain.Bet
	state, err := l.mutate(ctx, OpPlaceBet, func(s *domain.MarketState) error {
		if s.Phase() != domain.PhaseOpen {
			return domain.ErrMarketClosed
		}
		ts := domain.UnixSeconds(l.clock.Now())
		if last := s.LastTimestamp(); ts < last {
			ts = last // timestamps no decrecientes aunque el reloj retroceda
		}
		placed = domain.Bet{Name: name, Prediction: prediction, Wager: wager, Timestamp: ts}
		s.Bets = append(s.Bets, placed)
		return nil
	})
	if err != nil {
		return domain.MarketState{}, err
	}

	l.observer.BetPlaced(placed)
	slog.Info("bet placed",
		"name", placed.Name,
		"prediction", placed.Prediction,
		"wager", placed.Wager,
		"bets", len(state.Bets),
	)
	return state, nil
}

// ToggleMarket abre o cierra el mercado. Falla con ErrAlreadyResolved tras el
// settlement.
func (l *Ledger) ToggleMarket(ctx context.Context, credential string) (domain.MarketState, error) {
	if err := l.authorize(ctx, OpToggle, credential); err != nil {
		return domain.MarketState{}, err
	}
	state, err := l.mutate(ctx, OpToggle, func(s *domain.MarketState) error {
		if s.Resolved() {
			return domain.ErrAlreadyResolved
		}
		s.MarketOpen = !s.MarketOpen
		return nil
	})
	if err != nil {
		return domain.MarketState{}, err
	}
	slog.Info("market toggled", "open", state.MarketOpen)
	return state, nil
}

// Resolve fija el resultado y cierra el mercado. Una sola vez por época.
func (l *Ledger) Resolve(ctx context.Context, credential string, actual int64) (domain.MarketState, error) {
	if err := l.authorize(ctx, OpResolve, credential); err != nil {
		return domain.MarketState{}, err
	}
	if actual < 0 {
		err := &domain.InvalidInputError{Field: "result", Reason: fmt.Sprintf("%d is negative", actual)}
		l.fail(OpResolve, err)
		return domain.MarketState{}, err
	}
	state, err := l.mutate(ctx, OpResolve, func(s *domain.MarketState) error {
		if s.Resolved() {
			return domain.ErrAlreadyResolved
		}
		s.MarketOpen = false
		s.Result = domain.Int64Ptr(actual)
		return nil
	})
	if err != nil {
		return domain.MarketState{}, err
	}

	settlement, err := domain.Settle(state, l.cfg.PayoutMultiplier)
	if err != nil {
		// el resultado ya está persistido; solo falla el cálculo de pagos
		slog.Error("settlement failed after resolve", "result", actual, "err", err)
		return state, nil
	}
	slog.Info("market resolved",
		"result", actual,
		"winners", len(settlement.Winners),
		"pool", settlement.TotalPool,
		"payout", settlement.TotalPayout,
		"house_keeps_pool", settlement.HouseKeepsPool,
	)
	return state, nil
}

// Reset descarta todas las apuestas y el resultado. Siempre válido y no
// recuperable: la confirmación es responsabilidad del caller.
func (l *Ledger) Reset(ctx context.Context, credential string) (domain.MarketState, error) {
	if err := l.authorize(ctx, OpReset, credential); err != nil {
		return domain.MarketState{}, err
	}
	var discarded int
	state, err := l.mutate(ctx, OpReset, func(s *domain.MarketState) error {
		discarded = len(s.Bets)
		*s = domain.InitialState()
		return nil
	})
	if err != nil {
		return domain.MarketState{}, err
	}
	slog.Warn("ledger reset", "discarded_bets", discarded)
	return state, nil
}

// Refresh relee el store y reemplaza el snapshot. Lo usan los watchers que
// comparten el store con otro proceso escritor.
func (l *Ledger) Refresh(ctx context.Context) (domain.MarketState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.store.Load(ctx)
	if err != nil {
		err = domain.NewPersistenceError("load", err)
		l.fail(OpRefresh, err)
		return domain.MarketState{}, err
	}
	state.Normalize()
	l.snap.Store(&state)
	return state.Clone(), nil
}

// --- lecturas ---

// State devuelve una copia del último estado confirmado.
func (l *Ledger) State() domain.MarketState {
	return l.snap.Load().Clone()
}

// Stats calcula pool, traders y consenso sobre el snapshot actual.
func (l *Ledger) Stats() domain.Stats {
	return domain.ComputeStats(l.snap.Load().Bets)
}

// Leaderboard devuelve el top-N configurado.
func (l *Ledger) Leaderboard() []domain.LeaderboardEntry {
	return domain.Leaderboard(l.snap.Load().Bets, l.cfg.LeaderboardSize)
}

// Distribution devuelve el histograma de predicciones.
func (l *Ledger) Distribution() []domain.GuessBucket {
	return domain.Distribution(l.snap.Load().Bets)
}

// Settlement calcula ganadores y pagos. ErrNotResolved si no hay resultado.
func (l *Ledger) Settlement() (domain.Settlement, error) {
	return domain.Settle(*l.snap.Load(), l.cfg.PayoutMultiplier)
}

// View agrupa todas las lecturas sobre un mismo snapshot.
func (l *Ledger) View() ports.View {
	snap := l.snap.Load()
	v := ports.View{
		State:        snap.Clone(),
		Stats:        domain.ComputeStats(snap.Bets),
		Leaderboard:  domain.Leaderboard(snap.Bets, l.cfg.LeaderboardSize),
		Distribution: domain.Distribution(snap.Bets),
	}
	if s, err := domain.Settle(*snap, l.cfg.PayoutMultiplier); err == nil {
		v.Settlement = &s
	}
	return v
}

// --- helpers internos ---

// mutate ejecuta fn sobre una copia del estado recién cargado y la persiste.
func (l *Ledger) mutate(ctx context.Context, op string, fn func(*domain.MarketState) error) (domain.MarketState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.locker != nil {
		unlock, err := l.locker.Acquire(ctx, l.cfg.LockKey)
		if err != nil {
			err = domain.NewPersistenceError("lock", err)
			l.fail(op, err)
			return domain.MarketState{}, err
		}
		defer unlock()
	}

	current, err := l.store.Load(ctx)
	if err != nil {
		err = domain.NewPersistenceError("load", err)
		l.fail(op, err)
		return domain.MarketState{}, err
	}
	current.Normalize()
	l.snap.Store(&current)

	next := current.Clone()
	if err := fn(&next); err != nil {
		l.fail(op, err)
		return domain.MarketState{}, err
	}

	if err := l.store.Save(ctx, next); err != nil {
		err = domain.NewPersistenceError("save", err)
		l.fail(op, err)
		return domain.MarketState{}, err
	}

	l.snap.Store(&next)
	l.observer.Transition(op, next.Phase())
	return next.Clone(), nil
}

func (l *Ledger) validateBet(name string, prediction, wager int64) error {
	switch {
	case name == "":
		return &domain.InvalidInputError{Field: "name", Reason: "empty"}
	case utf8.RuneCountInString(name) > l.cfg.MaxNameLength:
		return &domain.InvalidInputError{Field: "name", Reason: fmt.Sprintf("longer than %d characters", l.cfg.MaxNameLength)}
	case prediction < 0:
		return &domain.InvalidInputError{Field: "prediction", Reason: fmt.Sprintf("%d is negative", prediction)}
	case wager < l.cfg.MinWager || wager > l.cfg.MaxWager:
		return &domain.InvalidInputError{
			Field:  "wager",
			Reason: fmt.Sprintf("%d outside [%d, %d]", wager, l.cfg.MinWager, l.cfg.MaxWager),
		}
	}
	return nil
}

func (l *Ledger) authorize(ctx context.Context, op, credential string) error {
	if err := l.auth.Authorize(ctx, credential); err != nil {
		err = fmt.Errorf("ledger.%s: %w", op, err)
		l.fail(op, err)
		return err
	}
	return nil
}

// fail registra un fallo: warn si es recuperable por el usuario, error si es
// de persistencia.
func (l *Ledger) fail(op string, err error) {
	l.observer.Failed(op, err)
	kind := domain.ErrorKind(err)
	if kind == "persistence" || kind == "corrupt_state" || kind == "other" {
		slog.Error("ledger operation failed", "op", op, "kind", kind, "err", err)
		return
	}
	slog.Warn("ledger operation rejected", "op", op, "kind", kind, "err", err)
}
