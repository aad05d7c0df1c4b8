package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/safar/storefront/internal/models"
)

// Keys of the persisted cart record. They are read back by older sessions,
// so they must not change.
const (
	keyCartItems       = "cartItems"
	keyShippingAddress = "shippingAddress"
	keyPaymentMethod   = "paymentMethod"
	keyUserInfo        = "userInfo"
)

// Storage persists the cart between sessions.
type Storage interface {
	Load() (State, error)
	Save(State) error
}

// FileStorage keeps the cart as a single JSON object on disk. Writes go to
// a temporary file that is renamed over the target.
type FileStorage struct {
	mu   sync.Mutex
	path string
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Load returns the empty state when the file does not exist yet. Keys that
// fail to decode are skipped so one bad entry does not lose the rest.
func (f *FileStorage) Load() (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read cart: %w", err)
	}

	var record map[string]json.RawMessage
	if err := json.Unmarshal(data, &record); err != nil {
		return State{}, fmt.Errorf("decode cart: %w", err)
	}

	var s State
	if raw, ok := record[keyCartItems]; ok {
		var lines []Line
		if json.Unmarshal(raw, &lines) == nil {
			s.Lines = lines
		}
	}
	if raw, ok := record[keyShippingAddress]; ok {
		var addr models.ShippingAddress
		if json.Unmarshal(raw, &addr) == nil {
			s.ShippingAddress = addr
		}
	}
	if raw, ok := record[keyPaymentMethod]; ok {
		var method string
		if json.Unmarshal(raw, &method) == nil {
			s.PaymentMethod = method
		}
	}
	if raw, ok := record[keyUserInfo]; ok {
		var user *UserInfo
		if json.Unmarshal(raw, &user) == nil {
			s.User = user
		}
	}
	return s, nil
}

func (f *FileStorage) Save(s State) error {
	lines := s.Lines
	if lines == nil {
		lines = []Line{}
	}
	data, err := json.MarshalIndent(map[string]any{
		keyCartItems:       lines,
		keyShippingAddress: s.ShippingAddress,
		keyPaymentMethod:   s.PaymentMethod,
		keyUserInfo:        s.User,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write cart: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write cart: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace cart: %w", err)
	}
	return nil
}

// MemoryStorage keeps the last saved state in memory.
type MemoryStorage struct {
	mu    sync.Mutex
	state State
	saves int
}

func (m *MemoryStorage) Load() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone(), nil
}

func (m *MemoryStorage) Save(s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s.clone()
	m.saves++
	return nil
}

// Saves reports how many times Save was called.
func (m *MemoryStorage) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
