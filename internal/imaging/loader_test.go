package imaging

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func TestLoadDirectDecode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("direct attempt must not send credentials")
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngBytes(t, 40, 30))
	}))
	defer srv.Close()

	loader := NewLoader(Options{AuthHeader: "Bearer tok"})
	result := loader.Load(context.Background(), srv.URL+"/img.png")

	if result.Kind != KindDecoded {
		t.Fatalf("kind = %q, want decoded", result.Kind)
	}
	if result.Strategy != strategyDirect {
		t.Fatalf("strategy = %q, want direct", result.Strategy)
	}
	w, h := result.NaturalSize()
	if w != 40 || h != 30 {
		t.Fatalf("natural size = %dx%d, want 40x30", w, h)
	}
	if len(result.Encoded) == 0 {
		t.Fatal("decoded result carries no encoded payload")
	}
}

func TestLoadCredentialedFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write(pngBytes(t, 20, 20))
	}))
	defer srv.Close()

	loader := NewLoader(Options{AuthHeader: "Bearer tok"})
	result := loader.Load(context.Background(), srv.URL+"/secure.png")

	if result.Kind != KindDecoded {
		t.Fatalf("kind = %q, want decoded via credentialed fallback", result.Kind)
	}
	if result.Strategy != strategyCredential {
		t.Fatalf("strategy = %q, want credentialed", result.Strategy)
	}
}

func TestLoadReferenceFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	loader := NewLoader(Options{})
	url := srv.URL + "/locked.png"
	result := loader.Load(context.Background(), url)

	if result.Kind != KindReference {
		t.Fatalf("kind = %q, want reference", result.Kind)
	}
	if result.URL != url {
		t.Fatalf("url = %q, want original reference %q", result.URL, url)
	}
	if result.Image != nil {
		t.Fatal("reference result must not carry pixels")
	}
}

func TestLoadUndecodableBodyFallsBackToReference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not an image</html>"))
	}))
	defer srv.Close()

	loader := NewLoader(Options{})
	result := loader.Load(context.Background(), srv.URL+"/page")
	if result.Kind != KindReference {
		t.Fatalf("kind = %q, want reference for undecodable body", result.Kind)
	}
}

func TestLoadEmptyURLFails(t *testing.T) {
	loader := NewLoader(Options{})
	if result := loader.Load(context.Background(), "  "); result.Kind != KindFailed {
		t.Fatalf("kind = %q, want failed for empty url", result.Kind)
	}
}

func TestLoadRejectsOversizedBody(t *testing.T) {
	payload := pngBytes(t, 64, 64)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	loader := NewLoader(Options{MaxBytes: 8})
	result := loader.Load(context.Background(), srv.URL+"/big.png")
	if result.Kind != KindReference {
		t.Fatalf("kind = %q, want reference when body exceeds the cap", result.Kind)
	}
}

func TestBoundTextureDownscales(t *testing.T) {
	loader := NewLoader(Options{MaxTexturePx: 100})
	src := image.NewRGBA(image.Rect(0, 0, 400, 200))
	got := loader.boundTexture(src)
	b := got.Bounds()
	if b.Dx() != 100 || b.Dy() != 50 {
		t.Fatalf("bounded texture = %dx%d, want 100x50", b.Dx(), b.Dy())
	}

	small := image.NewRGBA(image.Rect(0, 0, 80, 40))
	if loader.boundTexture(small) != image.Image(small) {
		t.Fatal("small texture must pass through untouched")
	}
}

func TestDecodeBounds(t *testing.T) {
	w, h, err := DecodeBounds(pngBytes(t, 33, 21))
	if err != nil {
		t.Fatalf("decode bounds: %v", err)
	}
	if w != 33 || h != 21 {
		t.Fatalf("bounds = %dx%d, want 33x21", w, h)
	}
	if _, _, err := DecodeBounds([]byte("junk")); err == nil {
		t.Fatal("junk bytes decoded")
	}
}
