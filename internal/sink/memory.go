package sink

import (
	"context"
	"sort"
	"sync"
)

// Object is a blob held by Memory
type Object struct {
	Body    []byte
	Options PutOptions
}

// Memory keeps blobs in a map. It serves tests and dry runs.
type Memory struct {
	mu      sync.Mutex
	objects map[string]Object
	puts    int
}

// NewMemory returns an empty in-memory sink
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]Object)}
}

// Put implements Writer. The body is copied.
func (m *Memory) Put(ctx context.Context, key string, body []byte, opts PutOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data := make([]byte, len(body))
	copy(data, body)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = Object{Body: data, Options: opts}
	m.puts++
	return nil
}

// Get returns the blob stored under key
func (m *Memory) Get(key string) (Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	return obj, ok
}

// Keys returns the stored keys in lexical order
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Puts returns how many Put calls succeeded, overwrites included
func (m *Memory) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}
