package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"gatepass/internal/gate"
	id "gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/platform/httputil"
	"gatepass/pkg/platform/sentinel"
	"gatepass/pkg/requestcontext"
)

// RequireDevice authenticates gate scanners by device ID and key headers and
// stamps the request context with the device's identity and society scope.
// Unknown devices and bad keys both come back as a generic 401 so the headers
// cannot be used to probe the registry.
func RequireDevice(registry gate.Registry, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			deviceID, err := id.ParseDeviceID(r.Header.Get("X-Device-ID"))
			if err != nil {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized,
					"device credentials rejected"))
				return
			}
			key := r.Header.Get("X-Device-Key")

			device, err := registry.Authenticate(ctx, deviceID, key)
			if err != nil {
				if !errors.Is(err, sentinel.ErrNotFound) && !dErrors.HasCode(err, dErrors.CodeUnauthorized) {
					logger.ErrorContext(ctx, "device authentication failed",
						"device_id", deviceID.String(),
						"error", err,
					)
					httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "device authentication failed"))
					return
				}
				logger.WarnContext(ctx, "device credentials rejected",
					"device_id", deviceID.String(),
					"request_id", GetRequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized,
					"device credentials rejected"))
				return
			}

			deviceName := device.Name
			if deviceName == "" {
				deviceName = gate.ParseUserAgent(r.UserAgent())
			}

			ctx = requestcontext.WithDeviceID(ctx, device.ID.String())
			ctx = requestcontext.WithDeviceName(ctx, deviceName)
			ctx = requestcontext.WithSocietyID(ctx, device.SocietyID.String())

			if err := registry.Touch(ctx, device.ID, time.Now().UTC()); err != nil {
				logger.WarnContext(ctx, "device last-seen update failed",
					"device_id", device.ID.String(),
					"error", err,
				)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
