package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"gatepass/internal/assets"
	"gatepass/internal/credential/models"
	credstore "gatepass/internal/credential/store"
	"gatepass/internal/directory"
	"gatepass/internal/gatelog"
	id "gatepass/pkg/domain"
	"gatepass/pkg/requestcontext"
)

// recordedEvent captures one dispatcher call for assertions.
type recordedEvent struct {
	ResidentID id.ResidentID
	Event      string
	Data       map[string]string
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (d *recordingDispatcher) Notify(_ context.Context, residentID id.ResidentID, event string, data map[string]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, recordedEvent{ResidentID: residentID, Event: event, Data: data})
}

func (d *recordingDispatcher) Events() []recordedEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]recordedEvent(nil), d.events...)
}

// harness wires a service against in-memory collaborators with one seeded
// resident and society.
type harness struct {
	svc        *Service
	store      *credstore.InMemory
	renderer   *assets.InMemoryRenderer
	directory  *directory.InMemory
	dispatcher *recordingDispatcher
	scans      *gatelog.InMemory

	residentID id.ResidentID
	societyID  id.SocietyID
	now        time.Time
}

func newHarness(opts ...Option) *harness {
	h := &harness{
		store:      credstore.NewInMemory(),
		renderer:   assets.NewInMemoryRenderer(),
		directory:  directory.NewInMemory(),
		dispatcher: &recordingDispatcher{},
		scans:      gatelog.NewInMemory(),
		residentID: id.ResidentID(id.NewCredentialID()),
		societyID:  id.SocietyID(id.NewCredentialID()),
		now:        time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC),
	}
	h.directory.AddResident(directory.Resident{
		ID:        h.residentID,
		Name:      "Asha Rao",
		Phone:     "+911234567890",
		SocietyID: h.societyID,
		Block:     "B",
		FlatNo:    "402",
	})
	h.directory.AddSociety(directory.Society{
		ID:   h.societyID,
		Name: "Greenfield Heights",
		City: "Pune",
	})

	allOpts := append([]Option{
		WithDispatcher(h.dispatcher),
		WithScanLog(h.scans),
	}, opts...)
	h.svc = New(h.store, h.renderer, h.directory,
		slog.New(slog.DiscardHandler), allOpts...)
	return h
}

// ctx returns a context with the harness clock pinned, optionally offset.
func (h *harness) ctx(offset time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), h.now.Add(offset))
}

func (h *harness) guestRequest() models.CreateRequest {
	return models.CreateRequest{
		Kind:       models.KindGuest,
		ResidentID: h.residentID,
		SocietyID:  h.societyID,
		Guest: &models.GuestDetails{
			Name:           "Ravi Kumar",
			Phone:          "+919876543210",
			Purpose:        "family visit",
			NumberOfGuests: 2,
		},
		ValidFrom:  h.now.Add(-time.Hour),
		ValidUntil: h.now.Add(24 * time.Hour),
	}
}

func (h *harness) vehicleRequest() models.CreateRequest {
	return models.CreateRequest{
		Kind:       models.KindVehicle,
		ResidentID: h.residentID,
		SocietyID:  h.societyID,
		Vehicle: &models.VehicleDetails{
			Brand:              "Tata",
			Model:              "Nexon",
			Color:              "blue",
			RegistrationNumber: "MH12AB1234",
		},
		VehicleType: "car",
		ValidFrom:   h.now.Add(-time.Hour),
		ValidUntil:  h.now.Add(365 * 24 * time.Hour),
	}
}

// approve moves a credential to Approved through the real decision path.
func (h *harness) approve(cred *models.Credential) (*models.Credential, error) {
	return h.svc.Decide(h.ctx(0), models.DecideRequest{
		CredentialID:     cred.ID,
		DecidedBy:        "admin-1",
		DeciderSocietyID: h.societyID,
		Decision:         models.DecisionApproved,
	})
}
