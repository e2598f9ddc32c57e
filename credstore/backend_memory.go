package credstore

import "sync"

var _ Backend = (*MemoryBackend)(nil)

// MemoryBackend is the ephemeral compartment: credentials live only as long
// as the process.
type MemoryBackend struct {
	values map[string]string
	lock   sync.RWMutex
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string]string)}
}

func (b *MemoryBackend) Get(key string) (string, bool, error) {
	b.lock.RLock()
	defer b.lock.RUnlock()

	value, ok := b.values[key]
	return value, ok, nil
}

func (b *MemoryBackend) Set(key, value string) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.values[key] = value
	return nil
}

func (b *MemoryBackend) Delete(key string) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	delete(b.values, key)
	return nil
}
