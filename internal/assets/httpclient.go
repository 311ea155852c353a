package assets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	dErrors "gatepass/pkg/domain-errors"
)

// HTTPRenderer talks to a Cloudinary-style render service over JSON. Every
// call is bounded by the configured timeout on top of whatever deadline the
// caller's context carries.
type HTTPRenderer struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPRenderer constructs a renderer client. timeout bounds each request;
// zero falls back to 10 seconds.
func NewHTTPRenderer(baseURL, apiKey string, timeout time.Duration) *HTTPRenderer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPRenderer{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type renderRequestBody struct {
	CredentialID string `json:"credential_id"`
	Payload      string `json:"payload"`
	Variant      string `json:"variant"`
	SubjectName  string `json:"subject_name,omitempty"`
	PINCode      string `json:"pin_code,omitempty"`
	SocietyName  string `json:"society_name,omitempty"`
	ValidFrom    string `json:"valid_from,omitempty"`
	ValidUntil   string `json:"valid_until,omitempty"`
}

type renderResponseBody struct {
	AssetRef string `json:"asset_ref"`
}

func (r *HTTPRenderer) RenderQRImage(ctx context.Context, req RenderRequest) (string, error) {
	return r.render(ctx, req, "qr")
}

func (r *HTTPRenderer) RenderShareableImage(ctx context.Context, req RenderRequest) (string, error) {
	return r.render(ctx, req, "shareable")
}

func (r *HTTPRenderer) render(ctx context.Context, req RenderRequest, variant string) (string, error) {
	body := renderRequestBody{
		CredentialID: req.CredentialID,
		Payload:      req.Payload,
		Variant:      variant,
	}
	if variant == "shareable" {
		body.SubjectName = req.SubjectName
		body.PINCode = req.PINCode
		body.SocietyName = req.SocietyName
		body.ValidFrom = req.ValidFrom.UTC().Format(time.RFC3339)
		body.ValidUntil = req.ValidUntil.UTC().Format(time.RFC3339)
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal render request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/render", bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("build render request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeAssetGeneration, "render service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little of the body for the log line without trusting it.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", dErrors.Newf(dErrors.CodeAssetGeneration,
			"render service returned %d: %s", resp.StatusCode, snippet)
	}

	var parsed renderResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeAssetGeneration, "render service returned malformed response")
	}
	if parsed.AssetRef == "" {
		return "", dErrors.New(dErrors.CodeAssetGeneration, "render service returned no asset reference")
	}
	return parsed.AssetRef, nil
}

func (r *HTTPRenderer) DeleteAsset(ctx context.Context, ref string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, r.baseURL+"/v1/assets/"+ref, nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("delete asset %s: %w", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete asset %s: status %d", ref, resp.StatusCode)
	}
	return nil
}
