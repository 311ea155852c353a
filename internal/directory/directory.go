// Package directory exposes read-only lookups against the resident/society
// registry. The registry itself is an external system; this service only
// needs names for scoping checks and display projections.
package directory

import (
	"context"
	"sync"

	id "gatepass/pkg/domain"
	"gatepass/pkg/platform/sentinel"
)

// Resident is the projection used for scoping and display.
type Resident struct {
	ID        id.ResidentID
	Name      string
	Phone     string
	SocietyID id.SocietyID
	Block     string
	FlatNo    string
}

// Society is the projection used for scoping and display.
type Society struct {
	ID   id.SocietyID
	Name string
	City string
}

// Directory is the external resident/society lookup collaborator.
type Directory interface {
	GetResident(ctx context.Context, residentID id.ResidentID) (Resident, error)
	GetSociety(ctx context.Context, societyID id.SocietyID) (Society, error)
}

// InMemory is a map-backed directory for development and tests.
type InMemory struct {
	mu        sync.RWMutex
	residents map[id.ResidentID]Resident
	societies map[id.SocietyID]Society
}

// NewInMemory constructs an empty directory.
func NewInMemory() *InMemory {
	return &InMemory{
		residents: make(map[id.ResidentID]Resident),
		societies: make(map[id.SocietyID]Society),
	}
}

// AddResident seeds a resident record.
func (d *InMemory) AddResident(r Resident) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.residents[r.ID] = r
}

// AddSociety seeds a society record.
func (d *InMemory) AddSociety(s Society) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.societies[s.ID] = s
}

func (d *InMemory) GetResident(_ context.Context, residentID id.ResidentID) (Resident, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if r, ok := d.residents[residentID]; ok {
		return r, nil
	}
	return Resident{}, sentinel.ErrNotFound
}

func (d *InMemory) GetSociety(_ context.Context, societyID id.SocietyID) (Society, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if s, ok := d.societies[societyID]; ok {
		return s, nil
	}
	return Society{}, sentinel.ErrNotFound
}
