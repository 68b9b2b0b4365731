package state

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"farmchain/storage"
)

var (
	// ErrTxActive is returned by Begin while a transaction is already open.
	ErrTxActive = errors.New("state: transaction already active")
	// ErrNoTx is returned by Commit when no transaction is open.
	ErrNoTx = errors.New("state: no active transaction")
)

// Manager reads and writes RLP encoded records over a key-value database.
// Writes made between Begin and Commit are buffered in memory and reach the
// database as one atomic batch; Rollback discards them. Outside a
// transaction every write is applied immediately.
type Manager struct {
	mu      sync.RWMutex
	db      storage.Database
	pending map[string][]byte
	active  bool
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Begin opens a transaction.
func (m *Manager) Begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return ErrTxActive
	}
	m.active = true
	m.pending = make(map[string][]byte)
	return nil
}

// Commit flushes the buffered writes as one batch.
func (m *Manager) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return ErrNoTx
	}
	keys := make([]string, 0, len(m.pending))
	for key := range m.pending {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	ops := make([]storage.Op, 0, len(keys))
	for _, key := range keys {
		ops = append(ops, storage.Op{Key: []byte(key), Value: m.pending[key]})
	}
	if err := m.db.Apply(ops); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	m.active = false
	m.pending = nil
	return nil
}

// Rollback discards the buffered writes. It is a no-op without a transaction.
func (m *Manager) Rollback() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = false
	m.pending = nil
}

// InTx reports whether a transaction is open.
func (m *Manager) InTx() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

func (m *Manager) get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active {
		if value, ok := m.pending[string(key)]; ok {
			return value, nil
		}
	}
	value, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return value, err
}

func (m *Manager) put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		m.pending[string(key)] = append([]byte{}, value...)
		return nil
	}
	return m.db.Put(key, value)
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before it reaches the database.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.put(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

