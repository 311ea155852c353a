// Package assets abstracts the external image store that renders a
// credential's QR payload into scannable and shareable images. The codec
// produces the payload; this collaborator turns it into hosted assets.
package assets

import (
	"context"
	"time"
)

// RenderRequest carries the encoded payload plus the presentation fields the
// renderer composes onto the shareable image.
type RenderRequest struct {
	CredentialID string
	Payload      string

	// Presentation fields. The renderer never sees the full record, only what
	// is printed on the card.
	SubjectName string
	PINCode     string
	SocietyName string
	ValidFrom   time.Time
	ValidUntil  time.Time
}

// Renderer is the external asset-generation collaborator. Implementations
// must honor context deadlines: the factory bounds rendering with a timeout
// and treats expiry as a generation failure that triggers compensation.
type Renderer interface {
	// RenderQRImage renders the payload as a scannable image and returns an
	// opaque asset reference.
	RenderQRImage(ctx context.Context, req RenderRequest) (string, error)

	// RenderShareableImage composes the human-shareable card (QR plus
	// presentation fields) and returns an opaque asset reference.
	RenderShareableImage(ctx context.Context, req RenderRequest) (string, error)

	// DeleteAsset removes a previously rendered asset.
	DeleteAsset(ctx context.Context, ref string) error
}
