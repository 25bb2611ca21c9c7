package service

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/AnTengye/contractlens/config"
	"github.com/AnTengye/contractlens/model"
)

// Store persists analysis records. Get returns nil, nil for unknown IDs.
// Records handed in and out are copies; results are shared because they are
// never mutated after they are built.
type Store interface {
	Save(ctx context.Context, rec *model.AnalysisRecord) error
	Get(ctx context.Context, id string) (*model.AnalysisRecord, error)
	GetByTenant(ctx context.Context, tenant string) ([]*model.AnalysisRecord, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	Close() error
}

// NewStore opens the store selected by cfg.Driver.
func NewStore(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	if cfg.Driver == "sqlite" {
		st, err := NewSQLiteStore(cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, err
		}
		n, err := st.FailInterrupted(ctx, time.Now())
		if err != nil {
			st.Close()
			return nil, err
		}
		slog.Info("analysis store initialized", "driver", "sqlite", "interrupted", n)
		return st, nil
	}
	st := NewMemoryStore(cfg.MaxAnalyses)
	slog.Info("analysis store initialized", "driver", "memory", "max_analyses", st.maxAnalyses)
	return st, nil
}

// MemoryStore is an in-memory Store
type MemoryStore struct {
	records     map[string]*model.AnalysisRecord
	mu          sync.RWMutex
	maxAnalyses int // Maximum records to keep, 0 = unlimited
}

func NewMemoryStore(maxAnalyses int) *MemoryStore {
	if maxAnalyses < 0 {
		maxAnalyses = 0
	}
	return &MemoryStore{
		records:     make(map[string]*model.AnalysisRecord),
		maxAnalyses: maxAnalyses,
	}
}

func (s *MemoryStore) Save(_ context.Context, rec *model.AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.records[rec.ID] = &cp

	s.cleanupIfNeeded()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*model.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// GetByTenant returns the tenant's records, newest first.
func (s *MemoryStore) GetByTenant(_ context.Context, tenant string) ([]*model.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*model.AnalysisRecord
	for _, r := range s.records {
		if r.Tenant == tenant {
			cp := *r
			result = append(result, &cp)
		}
	}
	sortNewestFirst(result)
	return result, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

// Count returns the number of records in the store
func (s *MemoryStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// cleanupIfNeeded removes the oldest finished records once the store exceeds
// maxAnalyses. Pending and processing records are never removed.
// Must be called with lock held
func (s *MemoryStore) cleanupIfNeeded() {
	if s.maxAnalyses <= 0 || len(s.records) <= s.maxAnalyses {
		return
	}

	finished := make([]*model.AnalysisRecord, 0, len(s.records))
	for _, r := range s.records {
		if r.Status.Terminal() {
			finished = append(finished, r)
		}
	}
	slices.SortFunc(finished, func(a, b *model.AnalysisRecord) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	removeCount := min(len(s.records)-s.maxAnalyses, len(finished))
	for _, r := range finished[:removeCount] {
		slog.Info("auto-cleaning old analysis",
			"analysis_id", r.ID,
			"created_at", r.CreatedAt,
		)
		delete(s.records, r.ID)
	}
}

func sortNewestFirst(recs []*model.AnalysisRecord) {
	slices.SortStableFunc(recs, func(a, b *model.AnalysisRecord) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
