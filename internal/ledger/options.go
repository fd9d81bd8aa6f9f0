package ledger

import (
	"github.com/alejandrodnm/betledger/internal/ports"
	"golang.org/x/time/rate"
)

// Option configura dependencias opcionales del Ledger.
type Option func(*Ledger)

// WithClock reemplaza el reloj del sistema (tests).
func WithClock(c ports.Clock) Option {
	return func(l *Ledger) { l.clock = c }
}

// WithAuthorizer protege toggle, resolve y reset.
// Sin authorizer el ledger usa ports.AllowAll.
func WithAuthorizer(a ports.Authorizer) Option {
	return func(l *Ledger) { l.auth = a }
}

// WithLocker añade un lock entre procesos alrededor de cada mutación,
// además del mutex en proceso.
func WithLocker(lk ports.Locker) Option {
	return func(l *Ledger) { l.locker = lk }
}

// WithObserver registra un observer de eventos (métricas).
func WithObserver(o ports.Observer) Option {
	return func(l *Ledger) { l.observer = o }
}

// WithSubmitLimiter limita la frecuencia de PlaceBet. Cuando el bucket está
// vacío PlaceBet falla con domain.ErrRateLimited sin esperar.
func WithSubmitLimiter(lim *rate.Limiter) Option {
	return func(l *Ledger) { l.limiter = lim }
}
