// Package editor implements the print-design layout engine: card dimension
// math, the per-side layer model, direct-manipulation interaction math, and
// the layout-validity classifier. All geometry is expressed in float64 canvas
// pixels at a fixed 100 px/inch resolution.
package editor

import "strings"

const (
	// PixelsPerInch fixes the canvas resolution used for all print math.
	PixelsPerInch = 100.0
	// BleedInches is the bleed added to each physical edge before trim.
	BleedInches = 0.125

	defaultPrintLengthIn = 3.5
	defaultPrintWidthIn  = 2.0
	cmPerInch            = 2.54
)

// Orientation selects which physical dimension maps to the canvas width.
type Orientation string

const (
	// OrientationHorizontal maps the print length to the canvas width.
	OrientationHorizontal Orientation = "horizontal"
	// OrientationVertical swaps the physical axes.
	OrientationVertical Orientation = "vertical"
)

// ParseOrientation normalises free-form input, defaulting to horizontal.
func ParseOrientation(value string) Orientation {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(OrientationVertical), "portrait":
		return OrientationVertical
	default:
		return OrientationHorizontal
	}
}

// PrintSize is the physical trim size of the card in inches.
type PrintSize struct {
	LengthIn float64
	WidthIn  float64
}

// CardPreset is the derived pixel geometry for a print size and orientation.
// It is recomputed whenever either input changes and is never persisted.
type CardPreset struct {
	WidthPx       float64
	HeightPx      float64
	BleedMarginPx float64
	SafeMarginPx  float64
	WidthCm       float64
	HeightCm      float64
	Orientation   Orientation
}

// NewCardPreset derives the bleed-inclusive canvas geometry for the given
// print size. Missing or non-positive dimensions degrade to the 3.5x2in
// default; the function always returns a usable preset.
func NewCardPreset(size PrintSize, orientation Orientation) CardPreset {
	lengthIn := size.LengthIn
	widthIn := size.WidthIn
	if lengthIn <= 0 {
		lengthIn = defaultPrintLengthIn
	}
	if widthIn <= 0 {
		widthIn = defaultPrintWidthIn
	}
	if orientation != OrientationVertical {
		orientation = OrientationHorizontal
	}

	horizIn := lengthIn
	vertIn := widthIn
	if orientation == OrientationVertical {
		horizIn, vertIn = vertIn, horizIn
	}

	bleed := BleedInches * PixelsPerInch
	return CardPreset{
		WidthPx:       (horizIn + 2*BleedInches) * PixelsPerInch,
		HeightPx:      (vertIn + 2*BleedInches) * PixelsPerInch,
		BleedMarginPx: bleed,
		SafeMarginPx:  2 * bleed,
		WidthCm:       horizIn * cmPerInch,
		HeightCm:      vertIn * cmPerInch,
		Orientation:   orientation,
	}
}

// Size reports the full bleed-inclusive canvas size.
func (p CardPreset) Size() Size {
	return Size{Width: p.WidthPx, Height: p.HeightPx}
}
