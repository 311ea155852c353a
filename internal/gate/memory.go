package gate

import (
	"context"
	"sync"
	"time"

	id "gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/platform/sentinel"
)

// InMemory is the map-backed registry used by tests and single-node setups.
type InMemory struct {
	mu      sync.RWMutex
	devices map[id.DeviceID]Device
}

func NewInMemory() *InMemory {
	return &InMemory{devices: make(map[id.DeviceID]Device)}
}

func (r *InMemory) Register(_ context.Context, device Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[device.ID]; ok {
		return sentinel.ErrConflict
	}
	if device.CreatedAt.IsZero() {
		device.CreatedAt = time.Now().UTC()
	}
	r.devices[device.ID] = device
	return nil
}

func (r *InMemory) Authenticate(_ context.Context, deviceID id.DeviceID, key string) (*Device, error) {
	r.mu.RLock()
	device, ok := r.devices[deviceID]
	r.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := VerifyKey(key, device.KeyHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "device key verification failed")
	}
	return &device, nil
}

func (r *InMemory) Touch(_ context.Context, deviceID id.DeviceID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	device, ok := r.devices[deviceID]
	if !ok {
		return sentinel.ErrNotFound
	}
	device.LastSeen = at
	r.devices[deviceID] = device
	return nil
}
