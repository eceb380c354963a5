package dnsprovider

import (
	"context"
	"fmt"
	"net/http"
	"sync"
)

// Memory keeps records in process. Ids are sequential: mem-1, mem-2, ...
type Memory struct {
	mu      sync.Mutex
	next    int
	records map[string]Record
}

// NewMemory creates an empty in-memory provider.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

// CreateRecord implements Provider.
func (m *Memory) CreateRecord(_ context.Context, r Record) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	id := fmt.Sprintf("mem-%d", m.next)
	m.records[id] = r
	return id, nil
}

// UpdateRecord implements Provider.
func (m *Memory) UpdateRecord(_ context.Context, id string, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return &ProviderError{Provider: "memory", Op: "update", Status: http.StatusNotFound, Payload: "record " + id + " not found"}
	}
	m.records[id] = r
	return nil
}

// DeleteRecord implements Provider.
func (m *Memory) DeleteRecord(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return &ProviderError{Provider: "memory", Op: "delete", Status: http.StatusNotFound, Payload: "record " + id + " not found"}
	}
	delete(m.records, id)
	return nil
}

// Get returns the record stored under id.
func (m *Memory) Get(id string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	return r, ok
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
