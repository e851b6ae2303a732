package compositor

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/mprint/editor/internal/editor"
)

func testPreset() editor.CardPreset {
	return editor.NewCardPreset(editor.PrintSize{LengthIn: 3.5, WidthIn: 2}, editor.OrientationHorizontal)
}

func solidRaster(w, h int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func decodeResult(t *testing.T, result Result) image.Image {
	t.Helper()
	if result.Empty || result.Reference != "" {
		t.Fatalf("expected rendered output, got %+v", result)
	}
	img, err := png.Decode(bytes.NewReader(result.PNG))
	if err != nil {
		t.Fatalf("decode rendered png: %v", err)
	}
	return img
}

func TestRenderEmptySide(t *testing.T) {
	comp := New(nil, nil)
	result, err := comp.Render(context.Background(), Request{Preset: testPreset()})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !result.Empty {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestRenderReferenceFallback(t *testing.T) {
	comp := New(nil, nil)
	side := editor.SideState{
		Image: &editor.ImageLayer{Src: "https://cdn.example/locked.png", X: 100, Y: 100, Width: 50, Height: 50},
		Texts: []editor.TextLayer{{ID: "t1", Text: "also here"}},
	}
	result, err := comp.Render(context.Background(), Request{
		Preset: testPreset(),
		Side:   SideInput{Layers: side, Raster: nil},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if result.Reference != "https://cdn.example/locked.png" {
		t.Fatalf("reference = %q, want original source", result.Reference)
	}
	if len(result.PNG) != 0 {
		t.Fatal("fallback must discard the surface output")
	}
}

func TestRenderFullCardSurfaceSize(t *testing.T) {
	comp := New(nil, nil)
	preset := testPreset()
	side := editor.SideState{
		Image: &editor.ImageLayer{
			Src: "img.png", X: 187.5, Y: 112.5, Width: 100, Height: 50,
			NaturalWidth: 200, NaturalHeight: 100,
		},
	}
	result, err := comp.Render(context.Background(), Request{
		Preset: preset,
		Side:   SideInput{Layers: side, Raster: solidRaster(200, 100, color.RGBA{R: 255, A: 255})},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	img := decodeResult(t, result)
	if img.Bounds().Dx() != 375 || img.Bounds().Dy() != 225 {
		t.Fatalf("surface = %dx%d, want 375x225", img.Bounds().Dx(), img.Bounds().Dy())
	}

	// Center of the card lies inside the image layer and must be red.
	r, g, b, _ := img.At(187, 112).RGBA()
	if r>>8 < 200 || g>>8 > 60 || b>>8 > 60 {
		t.Fatalf("card center = (%d,%d,%d), want red image pixels", r>>8, g>>8, b>>8)
	}
	// A corner outside every layer must be the white background.
	r, g, b, _ = img.At(2, 2).RGBA()
	if r>>8 < 240 || g>>8 < 240 || b>>8 < 240 {
		t.Fatalf("corner = (%d,%d,%d), want white background", r>>8, g>>8, b>>8)
	}
}

func TestRenderPrintCropWindow(t *testing.T) {
	comp := New(nil, nil)
	preset := testPreset()
	// Image centered on the safe area at exactly the safe-area size.
	side := editor.SideState{
		Image: &editor.ImageLayer{
			Src: "img.png", X: 187.5, Y: 112.5, Width: 325, Height: 175,
			NaturalWidth: 650, NaturalHeight: 350,
		},
	}
	result, err := comp.Render(context.Background(), Request{
		Preset: preset,
		Mode:   ModePrintCrop,
		Side:   SideInput{Layers: side, Raster: solidRaster(650, 350, color.RGBA{B: 255, A: 255})},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	img := decodeResult(t, result)
	if img.Bounds().Dx() != 325 || img.Bounds().Dy() != 175 {
		t.Fatalf("crop surface = %dx%d, want 325x175", img.Bounds().Dx(), img.Bounds().Dy())
	}
	// With coordinates translated by the safe-area origin the image fills
	// the crop, so even the first pixel is image content.
	r, g, b, _ := img.At(1, 1).RGBA()
	if b>>8 < 200 || r>>8 > 60 || g>>8 > 60 {
		t.Fatalf("crop origin = (%d,%d,%d), want blue image pixels", r>>8, g>>8, b>>8)
	}
}

func TestRenderRoundedCornersClip(t *testing.T) {
	comp := New(nil, nil)
	preset := testPreset()
	side := editor.SideState{
		Image: &editor.ImageLayer{
			Src: "img.png", X: 187.5, Y: 112.5, Width: 375, Height: 225,
			NaturalWidth: 375, NaturalHeight: 225,
		},
	}
	result, err := comp.Render(context.Background(), Request{
		Preset:       preset,
		CornerRadius: 24,
		Side:         SideInput{Layers: side, Raster: solidRaster(375, 225, color.RGBA{G: 255, A: 255})},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	img := decodeResult(t, result)

	_, _, _, cornerAlpha := img.At(0, 0).RGBA()
	if cornerAlpha != 0 {
		t.Fatalf("corner alpha = %d, want fully clipped", cornerAlpha)
	}
	_, _, _, centerAlpha := img.At(187, 112).RGBA()
	if centerAlpha>>8 != 255 {
		t.Fatalf("center alpha = %d, want opaque", centerAlpha>>8)
	}
}

func TestRenderMissingFontSkipsTextLayer(t *testing.T) {
	var events []string
	logger := func(_ context.Context, event string, _ map[string]any) {
		events = append(events, event)
	}
	comp := New(NewFontCache(t.TempDir()), logger)
	side := editor.SideState{
		Texts: []editor.TextLayer{{
			ID: "t1", Text: "hello", X: 187.5, Y: 112.5, Width: 200, Height: 50,
			FontFamily: "NoSuchFont", FontSize: 24, Color: "#ff0000",
		}},
	}
	result, err := comp.Render(context.Background(), Request{
		Preset: testPreset(),
		Side:   SideInput{Layers: side},
	})
	if err != nil {
		t.Fatalf("render must not fail on missing fonts: %v", err)
	}
	if len(result.PNG) == 0 {
		t.Fatal("expected a rendered surface with the text layer skipped")
	}
	if len(events) != 1 || events[0] != "compositor.font.skip" {
		t.Fatalf("events = %v, want one font skip", events)
	}
}

func TestShapeFor(t *testing.T) {
	if ShapeFor(0) != ShapeRectangle || ShapeFor(-2) != ShapeRectangle {
		t.Fatal("non-positive radius must classify as rectangle")
	}
	if ShapeFor(12) != ShapeRounded {
		t.Fatal("positive radius must classify as rounded")
	}
}

func TestParseMode(t *testing.T) {
	if ParseMode("print") != ModePrintCrop || ParseMode(" PRINT ") != ModePrintCrop {
		t.Fatal("print mode not parsed")
	}
	if ParseMode("") != ModeFullCard || ParseMode("full") != ModeFullCard {
		t.Fatal("default mode must be full card")
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.RGBA
	}{
		{"#ff0000", color.RGBA{R: 255, A: 255}},
		{"00ff00", color.RGBA{G: 255, A: 255}},
		{"#FFF", color.RGBA{R: 255, G: 255, B: 255, A: 255}},
		{"#bogus!", color.RGBA{A: 255}},
	}
	for _, tc := range tests {
		if got := parseHexColor(tc.in); got != tc.want {
			t.Fatalf("parseHexColor(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}
