package assets

import (
	"context"
	"fmt"
	"sync"

	dErrors "gatepass/pkg/domain-errors"
)

// InMemoryRenderer is a fake renderer for development and tests. It records
// rendered refs and can be told to fail, which the factory tests use to force
// the compensation path.
type InMemoryRenderer struct {
	mu       sync.Mutex
	rendered map[string]RenderRequest
	deleted  []string
	seq      int

	// FailRender makes Render* calls fail with CodeAssetGeneration.
	FailRender bool
	// FailDelete makes DeleteAsset fail, simulating a broken cleanup path.
	FailDelete bool
}

// NewInMemoryRenderer constructs an empty fake renderer.
func NewInMemoryRenderer() *InMemoryRenderer {
	return &InMemoryRenderer{rendered: make(map[string]RenderRequest)}
}

func (r *InMemoryRenderer) RenderQRImage(ctx context.Context, req RenderRequest) (string, error) {
	return r.render(ctx, req, "qr")
}

func (r *InMemoryRenderer) RenderShareableImage(ctx context.Context, req RenderRequest) (string, error) {
	return r.render(ctx, req, "share")
}

func (r *InMemoryRenderer) render(ctx context.Context, req RenderRequest, variant string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeAssetGeneration, "render timed out")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailRender {
		return "", dErrors.New(dErrors.CodeAssetGeneration, "render service unavailable")
	}
	r.seq++
	ref := fmt.Sprintf("asset://%s/%s-%d", variant, req.CredentialID, r.seq)
	r.rendered[ref] = req
	return ref, nil
}

func (r *InMemoryRenderer) DeleteAsset(_ context.Context, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailDelete {
		return fmt.Errorf("delete asset %s: storage unavailable", ref)
	}
	delete(r.rendered, ref)
	r.deleted = append(r.deleted, ref)
	return nil
}

// RenderedCount returns how many assets are currently held.
func (r *InMemoryRenderer) RenderedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rendered)
}

// Deleted returns the refs removed so far.
func (r *InMemoryRenderer) Deleted() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.deleted...)
}
