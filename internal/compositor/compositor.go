// Package compositor rasterises card sides into exportable previews. It
// renders through github.com/tdewolff/canvas onto an offscreen surface sized
// to the card preset, with one canvas unit per pixel.
package compositor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"

	"github.com/mprint/editor/internal/editor"
)

// Mode selects the output framing.
type Mode string

const (
	// ModeFullCard renders the whole bleed-inclusive card.
	ModeFullCard Mode = "full"
	// ModePrintCrop renders the safe-area window only, the historical
	// crop-for-print artifact.
	ModePrintCrop Mode = "print"
)

// ParseMode normalises free-form input, defaulting to the full card.
func ParseMode(value string) Mode {
	if strings.EqualFold(strings.TrimSpace(value), string(ModePrintCrop)) {
		return ModePrintCrop
	}
	return ModeFullCard
}

// Shape classifies the card outline.
type Shape string

const (
	// ShapeRounded marks a card with a positive corner radius.
	ShapeRounded Shape = "rounded"
	// ShapeRectangle marks a square-cornered card.
	ShapeRectangle Shape = "rectangle"
)

// ShapeFor classifies a corner radius.
func ShapeFor(cornerRadius float64) Shape {
	if cornerRadius > 0 {
		return ShapeRounded
	}
	return ShapeRectangle
}

// SideInput pairs a side's layer set with the decoded raster for its image
// layer. Raster stays nil when the source never decoded (reference-only).
type SideInput struct {
	Layers editor.SideState
	Raster image.Image
}

// Request describes one recomposition.
type Request struct {
	Preset       editor.CardPreset
	Side         SideInput
	Mode         Mode
	CornerRadius float64
}

// Result is the discriminated render outcome: an encoded PNG, the untouched
// source reference when the surface could not be exported, or empty when the
// side has no drawable content.
type Result struct {
	PNG       []byte
	Reference string
	Empty     bool
}

// Compositor renders card sides. The zero logger is a no-op.
type Compositor struct {
	fonts  *FontCache
	logger func(ctx context.Context, event string, fields map[string]any)
}

// New constructs a Compositor.
func New(fonts *FontCache, logger func(context.Context, string, map[string]any)) *Compositor {
	if fonts == nil {
		fonts = NewFontCache("")
	}
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &Compositor{fonts: fonts, logger: logger}
}

// Render composites one side. An image layer whose source never decoded
// short-circuits to the reference fallback so the caller can still display
// something; the surface output is discarded in that case.
func (c *Compositor) Render(ctx context.Context, req Request) (Result, error) {
	side := req.Side.Layers
	if !side.HasContent() {
		return Result{Empty: true}, nil
	}

	if side.Image != nil && req.Side.Raster == nil {
		c.logger(ctx, "compositor.export.fallback", map[string]any{
			"src": side.Image.Src,
		})
		return Result{Reference: side.Image.Src}, nil
	}

	window := editor.CanvasBounds(req.Preset)
	if req.Mode == ModePrintCrop {
		window = editor.SafeAreaFor(req.Preset)
	}
	if window.Width() <= 0 || window.Height() <= 0 {
		return Result{}, fmt.Errorf("compositor: degenerate surface %vx%v", window.Width(), window.Height())
	}

	surface := canvas.New(window.Width(), window.Height())
	cc := canvas.NewContext(surface)
	cc.SetCoordSystem(canvas.CartesianIV)

	cc.SetFillColor(canvas.White)
	cc.DrawPath(0, 0, canvas.Rectangle(window.Width(), window.Height()))

	if side.Image != nil {
		c.drawImage(cc, *side.Image, req.Side.Raster, window)
	}
	for _, layer := range side.Texts {
		c.drawText(ctx, cc, layer, window)
	}

	raster := rasterizer.Draw(surface, canvas.DPMM(1.0), canvas.DefaultColorSpace)
	if req.Mode == ModeFullCard && req.CornerRadius > 0 {
		raster = applyCornerMask(raster, req.CornerRadius)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, raster); err != nil {
		return Result{}, fmt.Errorf("compositor: encode: %w", err)
	}
	return Result{PNG: buf.Bytes()}, nil
}

func (c *Compositor) drawImage(cc *canvas.Context, layer editor.ImageLayer, raster image.Image, window editor.Rect) {
	if layer.Width <= 0 || layer.Height <= 0 {
		return
	}
	bounds := raster.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return
	}
	// Resolution maps source pixels onto the stored display width.
	dpmm := float64(bounds.Dx()) / layer.Width
	box := layer.Bounds()
	cc.DrawImage(box.Left-window.Left, box.Top-window.Top, raster, canvas.DPMM(dpmm))
}

func (c *Compositor) drawText(ctx context.Context, cc *canvas.Context, layer editor.TextLayer, window editor.Rect) {
	if strings.TrimSpace(layer.Text) == "" {
		return
	}
	face, err := c.fonts.Face(layer.FontFamily, layer.FontWeight, layer.FontStyle, layer.TextDecoration, layer.FontSize, parseHexColor(layer.Color))
	if err != nil {
		// A missing font must never blank the preview; skip the layer.
		c.logger(ctx, "compositor.font.skip", map[string]any{
			"family": layer.FontFamily,
			"layer":  layer.ID,
		})
		return
	}

	halign := canvas.Left
	switch strings.ToLower(strings.TrimSpace(layer.TextAlign)) {
	case "center":
		halign = canvas.Center
	case "right", "end":
		halign = canvas.Right
	}

	box := layer.Bounds()
	text := canvas.NewTextBox(face, layer.Text, layer.Width, layer.Height, halign, canvas.Top, nil)
	cc.DrawText(box.Left-window.Left, box.Top-window.Top, text)
}
