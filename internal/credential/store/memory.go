package store

import (
	"context"
	"sort"
	"sync"

	"gatepass/internal/credential/models"
	id "gatepass/pkg/domain"
	"gatepass/pkg/platform/sentinel"
)

// InMemory keeps credentials in a map guarded by a mutex. It intentionally
// favors clarity over performance: the PIN uniqueness check is a scan over
// active records, matching what the partial unique index does in PostgreSQL.
type InMemory struct {
	mu      sync.RWMutex
	records map[id.CredentialID]*models.Credential
}

// NewInMemory constructs an empty in-memory credential store.
func NewInMemory() *InMemory {
	return &InMemory{records: make(map[id.CredentialID]*models.Credential)}
}

func (s *InMemory) CreateIfPINAvailable(_ context.Context, cred *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[cred.ID]; exists {
		return sentinel.ErrConflict
	}
	for _, existing := range s.records {
		if existing.Kind == cred.Kind && existing.Status.IsActive() && existing.PINCode == cred.PINCode {
			return sentinel.ErrAlreadyUsed
		}
	}
	s.records[cred.ID] = cred.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, kind models.Kind, credID id.CredentialID) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.records[credID]
	if !ok || cred.Kind != kind {
		return nil, sentinel.ErrNotFound
	}
	return cred.Clone(), nil
}

func (s *InMemory) FindAnyByID(_ context.Context, credID id.CredentialID) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.records[credID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cred.Clone(), nil
}

func (s *InMemory) List(_ context.Context, filter models.ListFilter) ([]*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Credential
	for _, cred := range s.records {
		if filter.Matches(cred) {
			out = append(out, cred.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemory) Execute(_ context.Context, kind models.Kind, credID id.CredentialID,
	validate func(*models.Credential) error,
	mutate func(*models.Credential)) (*models.Credential, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.records[credID]
	if !ok || cred.Kind != kind {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(cred); err != nil {
		return nil, err
	}
	mutate(cred)
	return cred.Clone(), nil
}

func (s *InMemory) Delete(_ context.Context, credID id.CredentialID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[credID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.records, credID)
	return nil
}
