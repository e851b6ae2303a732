// Package imaging resolves remote image references into drawable rasters.
// Sources that cannot be decoded degrade to an undecoded reference rather
// than an error, so a design stays editable with a side left blank.
package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrSourceUnavailable indicates every load strategy failed.
var ErrSourceUnavailable = errors.New("imaging: source unavailable")

const (
	defaultTimeout     = 20 * time.Second
	defaultMaxBytes    = int64(25 * 1024 * 1024)
	defaultMaxTexture  = 4000
	strategyDirect     = "direct"
	strategyCredential = "credentialed"
	strategyReference  = "reference"
)

// Kind discriminates the load outcome.
type Kind string

const (
	// KindDecoded means the source was fetched and decoded into pixels.
	KindDecoded Kind = "decoded"
	// KindReference means the raw remote reference is returned undecoded,
	// usable for on-screen display only.
	KindReference Kind = "reference"
	// KindFailed means every strategy failed; treat as no image.
	KindFailed Kind = "failed"
)

// Result is the discriminated outcome of a load. Image and Encoded are set
// only for KindDecoded; URL is always the original reference.
type Result struct {
	Kind     Kind
	URL      string
	Image    image.Image
	Encoded  []byte
	Strategy string
}

// NaturalSize reports the decoded pixel dimensions, zero when undecoded.
func (r Result) NaturalSize() (int, int) {
	if r.Image == nil {
		return 0, 0
	}
	b := r.Image.Bounds()
	return b.Dx(), b.Dy()
}

// Options configures a Loader.
type Options struct {
	// HTTPClient defaults to a client with a 20s timeout.
	HTTPClient *http.Client
	// AuthHeader is sent on the credentialed fallback attempt only.
	AuthHeader string
	// MaxBytes bounds the fetched body size. Defaults to 25MiB.
	MaxBytes int64
	// MaxTexturePx bounds the longest edge after the convert fallback;
	// larger rasters are downscaled. Defaults to 4000.
	MaxTexturePx int
}

// Loader fetches and decodes remote image sources with an ordered strategy
// cascade: plain fetch-and-decode, credentialed fetch-and-convert, then the
// raw reference.
type Loader struct {
	client     *http.Client
	authHeader string
	maxBytes   int64
	maxTexture int
}

// NewLoader constructs a Loader from options.
func NewLoader(opts Options) *Loader {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	maxTexture := opts.MaxTexturePx
	if maxTexture <= 0 {
		maxTexture = defaultMaxTexture
	}
	return &Loader{
		client:     client,
		authHeader: strings.TrimSpace(opts.AuthHeader),
		maxBytes:   maxBytes,
		maxTexture: maxTexture,
	}
}

// Load resolves the source URL. It never returns an error for unreachable or
// undecodable sources; the cascade bottoms out at KindReference, and only an
// empty URL yields KindFailed.
func (l *Loader) Load(ctx context.Context, url string) Result {
	url = strings.TrimSpace(url)
	if url == "" {
		return Result{Kind: KindFailed}
	}

	if img, err := l.fetchAndDecode(ctx, url, false); err == nil {
		encoded, encErr := encodePNG(img)
		if encErr == nil {
			return Result{Kind: KindDecoded, URL: url, Image: img, Encoded: encoded, Strategy: strategyDirect}
		}
	}

	if img, err := l.fetchAndDecode(ctx, url, true); err == nil {
		img = l.boundTexture(img)
		encoded, encErr := encodePNG(img)
		if encErr == nil {
			return Result{Kind: KindDecoded, URL: url, Image: img, Encoded: encoded, Strategy: strategyCredential}
		}
	}

	return Result{Kind: KindReference, URL: url, Strategy: strategyReference}
}

// Decode decodes raw bytes, used for direct uploads where the payload is
// already at hand.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imaging: decode: %w", err)
	}
	return img, nil
}

// DecodeBounds probes the pixel dimensions of raw bytes without a full
// decode.
func DecodeBounds(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("imaging: decode config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

func (l *Loader) fetchAndDecode(ctx context.Context, url string, credentialed bool) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if credentialed && l.authHeader != "" {
		req.Header.Set("Authorization", l.authHeader)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrSourceUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if int64(len(body)) > l.maxBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrSourceUnavailable, l.maxBytes)
	}

	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return img, nil
}

// boundTexture downscales oversized rasters so the longest edge fits the
// configured texture ceiling, preserving aspect ratio.
func (l *Loader) boundTexture(img image.Image) image.Image {
	b := img.Bounds()
	longest := b.Dx()
	if b.Dy() > longest {
		longest = b.Dy()
	}
	if longest <= l.maxTexture {
		return img
	}
	scale := float64(l.maxTexture) / float64(longest)
	w := int(float64(b.Dx()) * scale)
	h := int(float64(b.Dy()) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("imaging: encode png: %w", err)
	}
	return buf.Bytes(), nil
}
