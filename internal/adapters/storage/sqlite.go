package storage

// sqlite.go — el ledger en SQLite (pure Go, sin CGo).
//
// Estrategia:
//   - `market`: una sola fila (id = 1) con market_open y result.
//   - `bets`: una fila por apuesta, seq = posición en el slice.
//   - Save en una transacción: upsert de `market` y solo INSERT de las apuestas
//     nuevas (append-only). Si el slice entrante es más corto o el prefijo no
//     coincide (reset), se borra todo y se reinserta.
//   - Acquire toma un flock sobre <path>.lock; con busy_timeout las lecturas
//     de otro proceso esperan al commit en vez de fallar con SQLITE_BUSY.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/betledger/internal/domain"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS market (
    id          INTEGER PRIMARY KEY CHECK (id = 1),
    market_open INTEGER NOT NULL DEFAULT 1,
    result      INTEGER,
    updated_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS bets (
    seq        INTEGER PRIMARY KEY,
    name       TEXT    NOT NULL,
    prediction INTEGER NOT NULL,
    wager      INTEGER NOT NULL,
    timestamp  REAL    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bets_prediction ON bets(prediction);
`

// SQLiteStore implementa ports.StateStore usando SQLite.
type SQLiteStore struct {
	db   *sql.DB
	lock *FileLocker
}

// NewSQLiteStore abre (o crea) la base de datos en la ruta dada y aplica el schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer; además :memory: es por conexión
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: busy_timeout: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}
	return &SQLiteStore{db: db, lock: NewFileLocker(path)}, nil
}

// Acquire implementa ports.Locker con el flock de la base.
func (s *SQLiteStore) Acquire(ctx context.Context, key string) (func(), error) {
	return s.lock.Acquire(ctx, key)
}

// Load reconstruye el MarketState. Sin fila en `market` devuelve el estado inicial.
func (s *SQLiteStore) Load(ctx context.Context) (domain.MarketState, error) {
	var open int
	var result sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT market_open, result FROM market WHERE id = 1`,
	).Scan(&open, &result)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.InitialState(), nil
	}
	if err != nil {
		return domain.MarketState{}, fmt.Errorf("storage.SQLiteStore.Load: market: %w", err)
	}

	state := domain.MarketState{MarketOpen: open == 1, Bets: []domain.Bet{}}
	if result.Valid {
		state.Result = domain.Int64Ptr(result.Int64)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, prediction, wager, timestamp FROM bets ORDER BY seq`,
	)
	if err != nil {
		return domain.MarketState{}, fmt.Errorf("storage.SQLiteStore.Load: query bets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b domain.Bet
		if err := rows.Scan(&b.Name, &b.Prediction, &b.Wager, &b.Timestamp); err != nil {
			return domain.MarketState{}, fmt.Errorf("storage.SQLiteStore.Load: scan bet: %w", err)
		}
		state.Bets = append(state.Bets, b)
	}
	if err := rows.Err(); err != nil {
		return domain.MarketState{}, fmt.Errorf("storage.SQLiteStore.Load: rows: %w", err)
	}

	if err := state.Validate(); err != nil {
		return domain.MarketState{}, fmt.Errorf("storage.SQLiteStore.Load: %w: %v", domain.ErrCorruptState, err)
	}
	return state, nil
}

// Save persiste el estado en una única transacción.
func (s *SQLiteStore) Save(ctx context.Context, state domain.MarketState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SQLiteStore.Save: begin tx: %w", err)
	}
	defer tx.Rollback()

	open := 0
	if state.MarketOpen {
		open = 1
	}
	var result any
	if state.Result != nil {
		result = *state.Result
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO market (id, market_open, result, updated_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			market_open = excluded.market_open,
			result      = excluded.result,
			updated_at  = excluded.updated_at`,
		open, result, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("storage.SQLiteStore.Save: upsert market: %w", err)
	}

	from, err := appendOffset(ctx, tx, state.Bets)
	if err != nil {
		return fmt.Errorf("storage.SQLiteStore.Save: %w", err)
	}
	if from == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM bets`); err != nil {
			return fmt.Errorf("storage.SQLiteStore.Save: clear bets: %w", err)
		}
	}

	if from < len(state.Bets) {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO bets (seq, name, prediction, wager, timestamp) VALUES (?, ?, ?, ?, ?)`,
		)
		if err != nil {
			return fmt.Errorf("storage.SQLiteStore.Save: prepare: %w", err)
		}
		defer stmt.Close()

		for i := from; i < len(state.Bets); i++ {
			b := state.Bets[i]
			if _, err := stmt.ExecContext(ctx, i, b.Name, b.Prediction, b.Wager, b.Timestamp); err != nil {
				return fmt.Errorf("storage.SQLiteStore.Save: insert bet %d: %w", i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SQLiteStore.Save: commit: %w", err)
	}
	return nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// appendOffset devuelve desde qué índice hay que insertar. 0 significa
// reescribir todo: el slice es más corto que lo guardado o la última apuesta
// guardada no coincide con la del slice.
func appendOffset(ctx context.Context, tx *sql.Tx, bets []domain.Bet) (int, error) {
	var stored int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM bets`).Scan(&stored); err != nil {
		return 0, fmt.Errorf("count bets: %w", err)
	}
	if stored == 0 || stored > len(bets) {
		return 0, nil
	}

	var last domain.Bet
	err := tx.QueryRowContext(ctx,
		`SELECT name, prediction, wager, timestamp FROM bets WHERE seq = ?`, stored-1,
	).Scan(&last.Name, &last.Prediction, &last.Wager, &last.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil // seq con huecos: reescribir
	}
	if err != nil {
		return 0, fmt.Errorf("read last bet: %w", err)
	}
	if last != bets[stored-1] {
		return 0, nil
	}
	return stored, nil
}
