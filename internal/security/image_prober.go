package security

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ImageProber は画像URLが実際に画像を返すかをHEADリクエストで確認する。
type ImageProber struct {
	validator URLValidator
	client    *http.Client
}

// NewImageProber はImageProberを生成する。
// 本番ではURLGuardとそのNewSafeClientを渡す。
func NewImageProber(validator URLValidator, client *http.Client) *ImageProber {
	return &ImageProber{validator: validator, client: client}
}

// CheckImage はURLを検証した上でHEADを送り、2xxかつContent-Typeがimage/*であることを確認する。
func (p *ImageProber) CheckImage(ctx context.Context, rawURL string) error {
	if err := p.validator.ValidateURL(rawURL); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("image request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(contentType, "image/") {
		return fmt.Errorf("not an image: %q", contentType)
	}
	return nil
}
