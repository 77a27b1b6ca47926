package ingest

import (
	"context"
	"errors"
	"maps"
	"sync"

	"github.com/ebcovid/caseledger/internal/domain"
)

// memStore is an in-memory Store. RunInTx snapshots state and restores it
// when fn fails.
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	entities map[domain.EntityKind]map[string]domain.Entity
	aliases  map[domain.EntityKind]map[string]int64
	cases    []domain.PersistedCase
	prints   map[string]int64

	// failCase makes InsertCase fail for the given case number.
	failCase map[int]error
}

func newMemStore() *memStore {
	s := &memStore{
		entities: make(map[domain.EntityKind]map[string]domain.Entity),
		aliases:  make(map[domain.EntityKind]map[string]int64),
		prints:   make(map[string]int64),
		failCase: make(map[int]error),
	}
	for _, k := range domain.EntityKinds {
		s.entities[k] = make(map[string]domain.Entity)
		s.aliases[k] = make(map[string]int64)
	}
	return s
}

type memSnapshot struct {
	nextID   int64
	entities map[domain.EntityKind]map[string]domain.Entity
	aliases  map[domain.EntityKind]map[string]int64
	cases    int
	prints   map[string]int64
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		nextID:   s.nextID,
		entities: make(map[domain.EntityKind]map[string]domain.Entity),
		aliases:  make(map[domain.EntityKind]map[string]int64),
		cases:    len(s.cases),
		prints:   maps.Clone(s.prints),
	}
	for k := range s.entities {
		snap.entities[k] = maps.Clone(s.entities[k])
		snap.aliases[k] = maps.Clone(s.aliases[k])
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID = snap.nextID
	s.entities = snap.entities
	s.aliases = snap.aliases
	s.cases = s.cases[:snap.cases]
	s.prints = snap.prints
}

func (s *memStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := s.snapshot()
	if err := fn(ctx); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) GetOrCreateEntity(_ context.Context, kind domain.EntityKind, name string) (domain.Entity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entities[kind][name]; ok {
		return e, false, nil
	}
	s.nextID++
	e := domain.Entity{ID: s.nextID, Kind: kind, Name: name}
	s.entities[kind][name] = e
	return e, true, nil
}

func (s *memStore) SyncAlias(_ context.Context, a domain.Alias) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.aliases[a.Kind][a.Raw]; ok {
		if id != a.EntityID {
			return false, &domain.AliasRemapError{Kind: a.Kind, Raw: a.Raw, StoredID: id, WantID: a.EntityID}
		}
		return false, nil
	}
	s.aliases[a.Kind][a.Raw] = a.EntityID
	return true, nil
}

func (s *memStore) InsertCase(_ context.Context, c domain.PersistedCase) (domain.PersistedCase, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.CaseNumber != nil {
		if err, ok := s.failCase[*c.CaseNumber]; ok {
			return domain.PersistedCase{}, false, err
		}
	}
	if c.Fingerprint != nil {
		if id, ok := s.prints[*c.Fingerprint]; ok {
			return domain.PersistedCase{ID: id}, false, nil
		}
	}
	s.nextID++
	c.ID = s.nextID
	s.cases = append(s.cases, c)
	if c.Fingerprint != nil {
		s.prints[*c.Fingerprint] = c.ID
	}
	return c, true, nil
}

func (s *memStore) entity(kind domain.EntityKind, name string) (domain.Entity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[kind][name]
	return e, ok
}

func (s *memStore) storedCases() []domain.PersistedCase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.PersistedCase(nil), s.cases...)
}

var errDiskFull = errors.New("disk full")
