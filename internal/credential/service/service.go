// Package service orchestrates the credential lifecycle: issuing guest passes
// and vehicle tags, administrator decisions, lazy expiry, and scan-time
// verification. Handlers stay thin; stores stay dumb; policy lives here.
package service

import (
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"gatepass/internal/assets"
	"gatepass/internal/credential/metrics"
	"gatepass/internal/credential/pin"
	"gatepass/internal/credential/store"
	"gatepass/internal/directory"
	"gatepass/internal/gatelog"
	"gatepass/internal/notify"
	"gatepass/internal/verifycache"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/platform/sentinel"
)

const defaultAssetTimeout = 15 * time.Second

// Service is the credential module's application service.
type Service struct {
	store      store.CredentialStore
	allocator  *pin.Allocator
	renderer   assets.Renderer
	directory  directory.Directory
	dispatcher notify.Dispatcher
	scans      gatelog.Store
	cache      verifycache.Cache
	metrics    *metrics.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer

	assetTimeout time.Duration
	// singleEntry makes a successful guest-pass scan consume the pass.
	// Vehicle tags are never consumed.
	singleEntry bool
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithDispatcher sets the notification dispatcher.
func WithDispatcher(d notify.Dispatcher) Option {
	return func(s *Service) {
		if d != nil {
			s.dispatcher = d
		}
	}
}

// WithScanLog sets the gate scan log store.
func WithScanLog(scans gatelog.Store) Option {
	return func(s *Service) {
		if scans != nil {
			s.scans = scans
		}
	}
}

// WithVerifyCache sets the verification projection cache.
func WithVerifyCache(c verifycache.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithMetrics sets the module metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAssetTimeout bounds external asset rendering during creation.
func WithAssetTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.assetTimeout = d
		}
	}
}

// WithSingleEntryGuestPasses toggles scan-time consumption of guest passes.
func WithSingleEntryGuestPasses(enabled bool) Option {
	return func(s *Service) { s.singleEntry = enabled }
}

// New constructs the service. Store, renderer and directory are required;
// everything else defaults to a no-op collaborator.
func New(
	credStore store.CredentialStore,
	renderer assets.Renderer,
	dir directory.Directory,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Service{
		store:        credStore,
		allocator:    pin.New(),
		renderer:     renderer,
		directory:    dir,
		dispatcher:   notify.NoopDispatcher{},
		scans:        gatelog.NewInMemory(),
		cache:        verifycache.Noop{},
		logger:       logger,
		tracer:       otel.Tracer("gatepass/credential"),
		assetTimeout: defaultAssetTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// translate maps store sentinel errors onto the domain taxonomy. Coded errors
// pass through untouched.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "credential not found")
	case errors.Is(err, sentinel.ErrConflict), errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.Wrap(err, dErrors.CodeConflict, "credential conflicts with existing state")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeInvalidTransition, "credential is in the wrong state")
	case errors.Is(err, sentinel.ErrExpired):
		return dErrors.Wrap(err, dErrors.CodeInvalidTransition, "credential has expired")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "credential store failure")
	}
}
