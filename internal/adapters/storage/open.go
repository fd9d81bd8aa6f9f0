package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/betledger/internal/ports"
)

// Drivers soportados por Open.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Options selecciona y configura el backend.
type Options struct {
	Driver         string
	DSN            string // ruta del archivo JSON o de la DB SQLite
	RecoverCorrupt bool   // solo json
	Redis          RedisConfig
	LockTTL        time.Duration // solo redis
}

// Backend es un store abierto y su lock entre procesos: flock para json y
// sqlite, SET NX para redis.
type Backend struct {
	Store  ports.StateStore
	Locker ports.Locker // nil solo para memory
}

// Open construye el backend configurado.
func Open(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Driver {
	case DriverJSON, "":
		f, err := NewJSONFile(opts.DSN, WithRecoverCorrupt(opts.RecoverCorrupt))
		if err != nil {
			return Backend{}, err
		}
		return Backend{Store: f, Locker: f}, nil
	case DriverSQLite:
		s, err := NewSQLiteStore(opts.DSN)
		if err != nil {
			return Backend{}, err
		}
		return Backend{Store: s, Locker: s}, nil
	case DriverRedis:
		s, err := NewRedisStore(ctx, opts.Redis)
		if err != nil {
			return Backend{}, err
		}
		return Backend{Store: s, Locker: s.Locker(opts.LockTTL)}, nil
	case DriverMemory:
		return Backend{Store: NewMemory()}, nil
	default:
		return Backend{}, fmt.Errorf("storage.Open: unknown driver %q", opts.Driver)
	}
}
