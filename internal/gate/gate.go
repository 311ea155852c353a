// Package gate manages the scanner devices installed at community gates.
// Each device authenticates with an opaque key issued at registration; the
// key is stored only as a bcrypt hash.
package gate

import (
	"context"
	"strings"
	"time"

	"github.com/mssola/useragent"

	id "gatepass/pkg/domain"
)

// Device is a registered gate scanner.
type Device struct {
	ID        id.DeviceID
	SocietyID id.SocietyID
	Name      string
	KeyHash   string
	CreatedAt time.Time
	LastSeen  time.Time
}

// Registry stores gate devices and resolves authentication.
type Registry interface {
	Register(ctx context.Context, device Device) error
	// Authenticate verifies the device key and returns the device on success.
	// Failures surface sentinel.ErrNotFound for unknown devices and a coded
	// unauthorized error for a bad key.
	Authenticate(ctx context.Context, deviceID id.DeviceID, key string) (*Device, error)
	Touch(ctx context.Context, deviceID id.DeviceID, at time.Time) error
}

// ParseUserAgent turns a scanner's user-agent header into a short display
// label for the scan log, e.g. "Chrome on Mac OS X". Unrecognised agents get
// the raw product token.
func ParseUserAgent(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "Unknown Device"
	}

	ua := useragent.New(raw)
	name, _ := ua.Browser()
	os := ua.OS()

	if name == "" {
		if i := strings.IndexAny(raw, "/ "); i > 0 {
			name = raw[:i]
		} else {
			name = raw
		}
	}
	if os == "" {
		os = ua.Platform()
	}
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(name + " on " + os)
}
