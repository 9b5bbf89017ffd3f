package view

import (
	"bytes"
	"context"
	"image/png"

	"emperror.dev/errors"
	"github.com/chromedp/chromedp"
	"github.com/disintegration/imaging"
)

// Screenshot captures the surface. width > 0 downscales (height 0 keeps the
// aspect ratio), sigma > 0 blurs the result, so the diagnostics endpoint can
// serve a small, privacy-friendly preview.
func (surface *Surface) Screenshot(ctx context.Context, width int, height int, sigma float64) ([]byte, string, error) {
	var buf []byte
	if err := surface.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, "", errors.Wrap(err, "cannot capture screenshot")
	}
	if width <= 0 && sigma <= 0 {
		return buf, "image/png", nil
	}
	img, err := png.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, "", errors.Wrap(err, "cannot decode screenshot")
	}
	if width > 0 {
		img = imaging.Resize(img, width, height, imaging.Lanczos)
	}
	if sigma > 0 {
		img = imaging.Blur(img, sigma)
	}
	var out bytes.Buffer
	if err := imaging.Encode(&out, img, imaging.PNG); err != nil {
		return nil, "", errors.Wrap(err, "cannot encode screenshot")
	}
	return out.Bytes(), "image/png", nil
}
