package editor

import "strings"

// Side identifies one face of the card.
type Side string

const (
	// SideFront is the default active side.
	SideFront Side = "front"
	// SideBack is the reverse face.
	SideBack Side = "back"
)

// ParseSide normalises free-form input, defaulting to front.
func ParseSide(value string) Side {
	if strings.EqualFold(strings.TrimSpace(value), string(SideBack)) {
		return SideBack
	}
	return SideFront
}

// FillTarget selects the region a fill operation covers.
type FillTarget string

const (
	FillSafeArea FillTarget = "safe_area"
	FillCanvas   FillTarget = "canvas"
)

// ParseFillTarget maps a request value onto a fill target, defaulting to the
// safe area.
func ParseFillTarget(value string) FillTarget {
	if strings.EqualFold(strings.TrimSpace(value), string(FillCanvas)) {
		return FillCanvas
	}
	return FillSafeArea
}

// ImageLayer is the single positioned raster element of a side. X/Y address
// the layer center in canvas space; NaturalWidth/NaturalHeight are the source
// pixel dimensions and never change once set.
type ImageLayer struct {
	Src           string  `json:"src"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
	Rotation      float64 `json:"rotation"`
	NaturalWidth  float64 `json:"naturalWidth"`
	NaturalHeight float64 `json:"naturalHeight"`
}

// Bounds reports the axis-aligned box of the layer.
func (l ImageLayer) Bounds() Rect {
	return BoundsAround(Point{X: l.X, Y: l.Y}, Size{Width: l.Width, Height: l.Height})
}

// TextLayer is an independently positioned text element. Paint order across
// a side's text layers is insertion order; later layers win on overlap.
type TextLayer struct {
	ID             string  `json:"id"`
	Text           string  `json:"text"`
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	Width          float64 `json:"width"`
	Height         float64 `json:"height"`
	Rotation       float64 `json:"rotation"`
	FontFamily     string  `json:"fontFamily"`
	FontSize       float64 `json:"fontSize"`
	FontWeight     string  `json:"fontWeight"`
	FontStyle      string  `json:"fontStyle"`
	TextAlign      string  `json:"textAlign"`
	Color          string  `json:"color"`
	LineHeight     float64 `json:"lineHeight"`
	LetterSpacing  float64 `json:"letterSpacing"`
	TextDecoration string  `json:"textDecoration"`
}

// Bounds reports the axis-aligned box of the layer.
func (l TextLayer) Bounds() Rect {
	return BoundsAround(Point{X: l.X, Y: l.Y}, Size{Width: l.Width, Height: l.Height})
}

// Text style defaults applied to layers created without explicit attributes
// and to restored layers with missing fields.
const (
	defaultFontFamily     = "Arial"
	defaultFontSize       = 24.0
	defaultFontWeight     = "normal"
	defaultFontStyle      = "normal"
	defaultTextAlign      = "center"
	defaultTextColor      = "#000000"
	defaultLineHeight     = 1.2
	defaultTextDecoration = "none"
	defaultTextBoxWidth   = 200.0
	defaultTextBoxHeight  = 50.0
)

// ApplyTextDefaults fills every unset attribute of a text layer in place.
func ApplyTextDefaults(layer *TextLayer) {
	if layer == nil {
		return
	}
	if strings.TrimSpace(layer.FontFamily) == "" {
		layer.FontFamily = defaultFontFamily
	}
	if layer.FontSize <= 0 {
		layer.FontSize = defaultFontSize
	}
	if strings.TrimSpace(layer.FontWeight) == "" {
		layer.FontWeight = defaultFontWeight
	}
	if strings.TrimSpace(layer.FontStyle) == "" {
		layer.FontStyle = defaultFontStyle
	}
	if strings.TrimSpace(layer.TextAlign) == "" {
		layer.TextAlign = defaultTextAlign
	}
	if strings.TrimSpace(layer.Color) == "" {
		layer.Color = defaultTextColor
	}
	if layer.LineHeight <= 0 {
		layer.LineHeight = defaultLineHeight
	}
	if strings.TrimSpace(layer.TextDecoration) == "" {
		layer.TextDecoration = defaultTextDecoration
	}
	if layer.Width <= 0 {
		layer.Width = defaultTextBoxWidth
	}
	if layer.Height <= 0 {
		layer.Height = defaultTextBoxHeight
	}
}

// SideState holds the layer set of one card face: at most one image layer
// and zero or more text layers in insertion order. The two sides of a card
// are fully independent.
type SideState struct {
	Image *ImageLayer `json:"image,omitempty"`
	Texts []TextLayer `json:"texts"`
}

// HasContent reports whether the side carries an image or at least one
// text layer. This is the "can proceed to order" presence check.
func (s SideState) HasContent() bool {
	return s.Image != nil || len(s.Texts) > 0
}

func (s SideState) clone() SideState {
	out := SideState{}
	if s.Image != nil {
		img := *s.Image
		out.Image = &img
	}
	if len(s.Texts) > 0 {
		out.Texts = make([]TextLayer, len(s.Texts))
		copy(out.Texts, s.Texts)
	}
	return out
}

// SelectionKind discriminates the selection union.
type SelectionKind string

const (
	// SelectionNone means nothing is selected.
	SelectionNone SelectionKind = "none"
	// SelectionImage means the active side's image layer is selected.
	SelectionImage SelectionKind = "image"
	// SelectionText means one text layer is selected.
	SelectionText SelectionKind = "text"
)

// Selection is a tagged union: at most one of the image layer or a single
// text layer may be selected at a time. TextID is set only for SelectionText.
type Selection struct {
	Kind   SelectionKind `json:"kind"`
	TextID string        `json:"textId,omitempty"`
}

// NoSelection is the cleared selection value.
func NoSelection() Selection { return Selection{Kind: SelectionNone} }
