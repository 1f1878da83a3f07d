package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/olegrjumin/cookieguard/internal/consent"
)

// record is one stored evaluation, kept encoded like the SQL stores do so
// callers never share slices or maps with the store
type record struct {
	at  time.Time
	doc []byte
}

// Memory is a process-local store
type Memory struct {
	mu       sync.RWMutex
	byDomain map[string][]record
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{byDomain: make(map[string][]record)}
}

func (m *Memory) Create(ctx context.Context, ev *consent.Evaluation) error {
	doc, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode evaluation: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	list := append(m.byDomain[ev.Domain], record{at: ev.ScanTimestamp, doc: doc})
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].at.Before(list[j].at)
	})
	m.byDomain[ev.Domain] = list
	return nil
}

func (m *Memory) Latest(ctx context.Context, domain string) (*consent.Evaluation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.byDomain[domain]
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	ev, err := decode(list[len(list)-1].doc)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (m *Memory) History(ctx context.Context, domain string, limit int) ([]consent.Evaluation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.byDomain[domain]
	out := make([]consent.Evaluation, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		ev, err := decode(list[i].doc)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func (m *Memory) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for domain, list := range m.byDomain {
		// list is sorted oldest first
		n := sort.Search(len(list), func(i int) bool {
			return !list[i].at.Before(cutoff)
		})
		deleted += int64(n)
		if n == len(list) {
			delete(m.byDomain, domain)
			continue
		}
		m.byDomain[domain] = append([]record(nil), list[n:]...)
	}
	return deleted, nil
}

func (m *Memory) Close() error { return nil }

func decode(doc []byte) (consent.Evaluation, error) {
	var ev consent.Evaluation
	if err := json.Unmarshal(doc, &ev); err != nil {
		return ev, fmt.Errorf("decode evaluation: %w", err)
	}
	return ev, nil
}
