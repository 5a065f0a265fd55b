package enrich

import (
	"context"
	"sort"
	"sync"

	"github.com/sells-group/match-cli/internal/model"
	"github.com/sells-group/match-cli/internal/store"
)

// memStore is an in-memory store.Store for tests.
type memStore struct {
	mu          sync.Mutex
	profiles    map[string]*model.Profile
	history     []model.FieldHistory
	matches     map[string]*model.BidirectionalMatch
	checkpoints map[string]store.Checkpoint
}

func newMemStore() *memStore {
	return &memStore{
		profiles:    make(map[string]*model.Profile),
		matches:     make(map[string]*model.BidirectionalMatch),
		checkpoints: make(map[string]store.Checkpoint),
	}
}

func (m *memStore) EnsureProfile(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[id]; !ok {
		m.profiles[id] = model.NewProfile(id)
	}
	return nil
}

func (m *memStore) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := model.NewProfile(p.ID)
	for k, f := range p.Fields {
		cp.Fields[k] = f
	}
	return cp, nil
}

func (m *memStore) ListProfileIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.profiles))
	for id := range m.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memStore) UpsertField(ctx context.Context, profileID string, f model.Field) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[profileID]
	if !ok {
		return store.ErrNotFound
	}
	p.Set(f)
	return nil
}

func (m *memStore) AppendHistory(ctx context.Context, h model.FieldHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, h)
	return nil
}

func (m *memStore) ListHistory(ctx context.Context, profileID string, kind model.FieldKind) ([]model.FieldHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.FieldHistory
	for _, h := range m.history {
		if h.ProfileID == profileID && h.Field == kind {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *memStore) SaveMatch(ctx context.Context, match *model.BidirectionalMatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches[match.PairID] = match
	return nil
}

func (m *memStore) GetMatch(ctx context.Context, pairID string) (*model.BidirectionalMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[pairID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return match, nil
}

func (m *memStore) GetCheckpoint(ctx context.Context, runID string) (*store.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.checkpoints[runID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &cp, nil
}

func (m *memStore) SaveCheckpoint(ctx context.Context, cp store.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints[cp.RunID] = cp
	return nil
}

func (m *memStore) DeleteCheckpoint(ctx context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.checkpoints, runID)
	return nil
}

func (m *memStore) Migrate(ctx context.Context) error { return nil }

func (m *memStore) Close() error { return nil }
