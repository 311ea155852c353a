// Package requestcontext provides HTTP-independent accessors for request-scoped
// values. Middleware sets them, services read them, and tests inject them,
// without services having to import net/http.
package requestcontext

import (
	"context"
	"time"
)

type (
	userIDKey      struct{}
	societyIDKey   struct{}
	deviceIDKey    struct{}
	deviceNameKey  struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// WithUserID stores the authenticated subject (resident or administrator) ID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserID returns the authenticated subject ID, or "" when unauthenticated.
func UserID(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey{}).(string)
	return v
}

// WithSocietyID stores the society scope claimed by the caller's token.
func WithSocietyID(ctx context.Context, societyID string) context.Context {
	return context.WithValue(ctx, societyIDKey{}, societyID)
}

// SocietyID returns the caller's society scope, or "".
func SocietyID(ctx context.Context) string {
	v, _ := ctx.Value(societyIDKey{}).(string)
	return v
}

// WithDeviceID stores the authenticated gate device ID.
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, deviceIDKey{}, deviceID)
}

// DeviceID returns the authenticated gate device ID, or "".
func DeviceID(ctx context.Context) string {
	v, _ := ctx.Value(deviceIDKey{}).(string)
	return v
}

// WithDeviceName stores a human-readable label for the scanning device.
func WithDeviceName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, deviceNameKey{}, name)
}

// DeviceName returns the scanning device label, or "".
func DeviceName(ctx context.Context) string {
	v, _ := ctx.Value(deviceNameKey{}).(string)
	return v
}

// WithRequestID stores the request correlation ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the request correlation ID, or "".
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

// WithTime pins the request time, letting tests control what "now" means for
// expiry evaluation.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// Now returns the pinned request time, falling back to the wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}
