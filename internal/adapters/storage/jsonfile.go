package storage

// jsonfile.go — el documento bets_data.json: {market_open, bets, result}.
//
//   - Archivo ausente → estado inicial (único caso que lo justifica).
//   - Error de I/O → error. Nunca se pisa un ledger ilegible con uno vacío.
//   - JSON corrupto → ErrCorruptState; con RecoverCorrupt el archivo se mueve
//     a <path>.corrupt-<unix> y se arranca vacío.
//   - Save escribe a un temporal en el mismo directorio, fsync y rename.
//   - Acquire toma un flock sobre <path>.lock: varios procesos pueden compartir
//     el archivo sin perder apuestas.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/alejandrodnm/betledger/internal/domain"
)

// JSONFile implementa ports.StateStore sobre un único archivo JSON.
type JSONFile struct {
	path           string
	recoverCorrupt bool
	now            func() time.Time
	lock           *FileLocker
}

// JSONFileOption configura un JSONFile.
type JSONFileOption func(*JSONFile)

// WithRecoverCorrupt hace que un archivo corrupto se aparte y se devuelva el
// estado inicial en lugar de fallar.
func WithRecoverCorrupt(on bool) JSONFileOption {
	return func(f *JSONFile) { f.recoverCorrupt = on }
}

// NewJSONFile crea el store. El directorio padre debe existir o poder crearse.
func NewJSONFile(path string, opts ...JSONFileOption) (*JSONFile, error) {
	if path == "" {
		return nil, fmt.Errorf("storage.NewJSONFile: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("storage.NewJSONFile: create dir for %q: %w", path, err)
	}
	f := &JSONFile{path: path, now: time.Now, lock: NewFileLocker(path)}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Acquire implementa ports.Locker con el flock del archivo.
func (f *JSONFile) Acquire(ctx context.Context, key string) (func(), error) {
	return f.lock.Acquire(ctx, key)
}

// Load lee y valida el archivo.
func (f *JSONFile) Load(_ context.Context) (domain.MarketState, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.InitialState(), nil
	}
	if err != nil {
		return domain.MarketState{}, fmt.Errorf("storage.JSONFile.Load: read %q: %w", f.path, err)
	}

	state, perr := decodeState(data)
	if perr == nil {
		return state, nil
	}
	if !f.recoverCorrupt {
		return domain.MarketState{}, fmt.Errorf("storage.JSONFile.Load: %q: %w", f.path, perr)
	}

	aside := fmt.Sprintf("%s.corrupt-%d", f.path, f.now().Unix())
	if err := os.Rename(f.path, aside); err != nil {
		return domain.MarketState{}, fmt.Errorf("storage.JSONFile.Load: move corrupt file aside: %w", err)
	}
	slog.Warn("corrupt ledger file moved aside, starting empty",
		"path", f.path,
		"moved_to", aside,
		"err", perr,
	)
	return domain.InitialState(), nil
}

// Save reemplaza el archivo de forma atómica.
func (f *JSONFile) Save(_ context.Context, state domain.MarketState) error {
	data, err := encodeState(state)
	if err != nil {
		return fmt.Errorf("storage.JSONFile.Save: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("storage.JSONFile.Save: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op tras el rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("storage.JSONFile.Save: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("storage.JSONFile.Save: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage.JSONFile.Save: close: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("storage.JSONFile.Save: rename: %w", err)
	}
	return nil
}

// Close no mantiene recursos abiertos.
func (f *JSONFile) Close() error {
	return nil
}

// --- helpers compartidos con RedisStore ---

// encodeState serializa en el formato {market_open, bets, result}.
func encodeState(state domain.MarketState) ([]byte, error) {
	state = state.Clone() // Clone garantiza "bets": [] y no null
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return data, nil
}

// stateDocument distingue "market_open" ausente de false.
type stateDocument struct {
	MarketOpen *bool        `json:"market_open"`
	Bets       []domain.Bet `json:"bets"`
	Result     *int64       `json:"result"`
}

// decodeState parsea y valida. Los errores envuelven domain.ErrCorruptState.
func decodeState(data []byte) (domain.MarketState, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return domain.MarketState{}, fmt.Errorf("%w: empty document", domain.ErrCorruptState)
	}
	var doc stateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.MarketState{}, fmt.Errorf("%w: %v", domain.ErrCorruptState, err)
	}
	if doc.MarketOpen == nil {
		return domain.MarketState{}, fmt.Errorf("%w: missing market_open", domain.ErrCorruptState)
	}
	state := domain.MarketState{MarketOpen: *doc.MarketOpen, Bets: doc.Bets, Result: doc.Result}
	if err := state.Validate(); err != nil {
		return domain.MarketState{}, fmt.Errorf("%w: %v", domain.ErrCorruptState, err)
	}
	state.Normalize()
	return state, nil
}
