package keystore

import (
	"bytes"
	"sync"

	"github.com/dmitrijs2005/workwatch/internal/common"
	"github.com/dmitrijs2005/workwatch/internal/cryptox"
)

// MemoryCustodian keeps keys in process memory only.
type MemoryCustodian struct {
	mu   sync.Mutex
	keys map[string][]byte
}

func NewMemoryCustodian() *MemoryCustodian {
	return &MemoryCustodian{keys: make(map[string][]byte)}
}

func (m *MemoryCustodian) GetOrCreateKey(alias string) ([]byte, error) {
	if err := validateAlias(alias); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if k, ok := m.keys[alias]; ok {
		return bytes.Clone(k), nil
	}
	k := common.GenerateRandByteArray(cryptox.KeySize)
	m.keys[alias] = k
	return bytes.Clone(k), nil
}

func (m *MemoryCustodian) Exists(alias string) (bool, error) {
	if err := validateAlias(alias); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys[alias]
	return ok, nil
}

func (m *MemoryCustodian) Delete(alias string) error {
	if err := validateAlias(alias); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if k, ok := m.keys[alias]; ok {
		common.WipeByteArray(k)
		delete(m.keys, alias)
	}
	return nil
}
