package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alejandrodnm/betledger/internal/domain"
	"github.com/gofrs/flock"
)

const fileLockRetry = 10 * time.Millisecond

// FileLocker implementa ports.Locker con flock(2) sobre <dsn>.lock.
// Serializa el ciclo load → mutate → save entre procesos que comparten el
// mismo archivo JSON o la misma base SQLite.
type FileLocker struct {
	path string // vacío: no-op (SQLite :memory:)
}

// NewFileLocker crea el lock asociado a un archivo de datos.
func NewFileLocker(dataPath string) *FileLocker {
	return &FileLocker{path: lockPathFor(dataPath)}
}

// Acquire bloquea hasta tener el flock o hasta que ctx expire. El key se
// ignora: hay un lock por archivo.
func (l *FileLocker) Acquire(ctx context.Context, _ string) (func(), error) {
	if l.path == "" {
		return func() {}, nil
	}

	// un descriptor nuevo por llamada: flock es por descriptor, así dos
	// ledgers del mismo proceso también se excluyen entre sí
	fl := flock.New(l.path)
	ok, err := fl.TryLockContext(ctx, fileLockRetry)
	if !ok {
		if err == nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("storage.FileLocker.Acquire %q: %w: %w", l.path, domain.ErrLockHeld, err)
	}

	return func() {
		if err := fl.Unlock(); err != nil {
			slog.Warn("file lock release failed", "path", l.path, "err", err)
		}
	}, nil
}

// lockPathFor deriva la ruta del lock. Las bases en memoria no la necesitan.
func lockPathFor(dsn string) string {
	if dsn == "" || strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return ""
	}
	dsn = strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(dsn, '?'); i >= 0 {
		dsn = dsn[:i]
	}
	return dsn + ".lock"
}
