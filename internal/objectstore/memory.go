package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
)

// Memory is an in-process Store. Fail, when set, is consulted before every
// Put and its error returned instead of storing the object.
type Memory struct {
	Fail func(key string) error

	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (m *Memory) Put(ctx context.Context, key string, body io.Reader, size int64, progress ProgressFunc) error {
	m.mu.Lock()
	m.puts++
	m.mu.Unlock()

	if m.Fail != nil {
		if err := m.Fail(key); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, &progressReader{r: body, total: size, fn: progress}); err != nil {
		return fmt.Errorf("memory put %s: %w", key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = buf.Bytes()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Keys returns the stored keys in sorted order.
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

// Object returns the stored bytes for key.
func (m *Memory) Object(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	return b, ok
}

// Puts returns how many Put calls were made, including failed ones.
func (m *Memory) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}
