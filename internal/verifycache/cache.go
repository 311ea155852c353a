// Package verifycache keeps a short-TTL projection of verification results so
// repeated scans of the same credential at a busy gate skip the database.
// Invalidation is by key delete on any state change; a stale hit can live at
// most for the configured TTL.
package verifycache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	id "gatepass/pkg/domain"
)

const keyPrefix = "gatepass:verify:"

// DefaultTTL bounds staleness after an out-of-band state change.
const DefaultTTL = 30 * time.Second

// Projection is the cached shape of a verification answer. It carries only
// what the gate UI renders.
type Projection struct {
	CredentialID string    `json:"credential_id"`
	Kind         string    `json:"kind"`
	Status       string    `json:"status"`
	Allowed      bool      `json:"allowed"`
	ResidentID   string    `json:"resident_id,omitempty"`
	SocietyID    string    `json:"society_id,omitempty"`
	SubjectName  string    `json:"subject_name,omitempty"`
	SubjectPhone string    `json:"subject_phone,omitempty"`
	VehicleType  string    `json:"vehicle_type,omitempty"`
	PINCode      string    `json:"pin_code,omitempty"`
	ValidUntil   time.Time `json:"valid_until"`
	CachedAt     time.Time `json:"cached_at"`
}

// Cache is the read-through interface used by the verifier. The nil-safe
// Noop implementation disables caching.
type Cache interface {
	Get(ctx context.Context, credID id.CredentialID) (*Projection, bool, error)
	Put(ctx context.Context, credID id.CredentialID, p Projection) error
	Invalidate(ctx context.Context, credID id.CredentialID) error
}

// Redis is the shared-state implementation for multi-instance deployments.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisOption configures a Redis cache.
type RedisOption func(*Redis)

// WithTTL overrides the default entry lifetime.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	c := &Redis{client: client, ttl: DefaultTTL}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Redis) Get(ctx context.Context, credID id.CredentialID) (*Projection, bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+credID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var p Projection
	if err := json.Unmarshal(raw, &p); err != nil {
		// A corrupt entry is treated as a miss; it will be rewritten.
		return nil, false, nil
	}
	return &p, true, nil
}

func (c *Redis) Put(ctx context.Context, credID id.CredentialID, p Projection) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+credID.String(), raw, c.ttl).Err()
}

func (c *Redis) Invalidate(ctx context.Context, credID id.CredentialID) error {
	return c.client.Del(ctx, keyPrefix+credID.String()).Err()
}

// Noop disables caching. Every lookup is a miss.
type Noop struct{}

func (Noop) Get(context.Context, id.CredentialID) (*Projection, bool, error) {
	return nil, false, nil
}
func (Noop) Put(context.Context, id.CredentialID, Projection) error   { return nil }
func (Noop) Invalidate(context.Context, id.CredentialID) error        { return nil }
