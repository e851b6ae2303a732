package editor

// Point is a position in canvas pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width/height pair in canvas pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is an axis-aligned region in canvas pixel space.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// Width reports the horizontal extent of the rect.
func (r Rect) Width() float64 { return r.Right - r.Left }

// Height reports the vertical extent of the rect.
func (r Rect) Height() float64 { return r.Bottom - r.Top }

// Size reports the rect extent as a Size.
func (r Rect) Size() Size { return Size{Width: r.Width(), Height: r.Height()} }

// Center reports the midpoint of the rect.
func (r Rect) Center() Point {
	return Point{X: r.Left + r.Width()/2, Y: r.Top + r.Height()/2}
}

// Contains reports whether other lies fully within r.
func (r Rect) Contains(other Rect) bool {
	return other.Left >= r.Left && other.Top >= r.Top &&
		other.Right <= r.Right && other.Bottom <= r.Bottom
}

// BoundsAround builds the axis-aligned box for a layer given its center
// point and display size.
func BoundsAround(center Point, size Size) Rect {
	return Rect{
		Left:   center.X - size.Width/2,
		Top:    center.Y - size.Height/2,
		Right:  center.X + size.Width/2,
		Bottom: center.Y + size.Height/2,
	}
}

// SafeAreaFor derives the trim-guaranteed inner region of the card.
// It is recomputed from the preset whenever the preset changes.
func SafeAreaFor(preset CardPreset) Rect {
	m := preset.SafeMarginPx
	return Rect{
		Left:   m,
		Top:    m,
		Right:  preset.WidthPx - m,
		Bottom: preset.HeightPx - m,
	}
}

// CanvasBounds is the full bleed-inclusive drawing surface of the preset.
func CanvasBounds(preset CardPreset) Rect {
	return Rect{Left: 0, Top: 0, Right: preset.WidthPx, Bottom: preset.HeightPx}
}

// FitDimensions scales a natural size so it is fully contained by the area,
// preserving aspect ratio. The result never exceeds the area on either axis.
func FitDimensions(naturalWidth, naturalHeight float64, area Size) Size {
	return scaledDimensions(naturalWidth, naturalHeight, area, false)
}

// FillDimensions scales a natural size so it fully covers the area, cropping
// the excess. The result covers the area on both axes.
func FillDimensions(naturalWidth, naturalHeight float64, area Size) Size {
	return scaledDimensions(naturalWidth, naturalHeight, area, true)
}

func scaledDimensions(naturalWidth, naturalHeight float64, area Size, cover bool) Size {
	if naturalWidth <= 0 || naturalHeight <= 0 {
		return Size{}
	}
	sx := area.Width / naturalWidth
	sy := area.Height / naturalHeight
	scale := sx
	if cover {
		if sy > scale {
			scale = sy
		}
	} else if sy < scale {
		scale = sy
	}
	return Size{Width: naturalWidth * scale, Height: naturalHeight * scale}
}

// PlacementOnInsert positions a newly attached image: centered on the safe
// area, scaled down via FitDimensions only when the natural size exceeds the
// safe area in either dimension. Smaller images keep their natural size.
func PlacementOnInsert(naturalWidth, naturalHeight float64, safeArea Rect) (Point, Size) {
	size := Size{Width: naturalWidth, Height: naturalHeight}
	if naturalWidth > safeArea.Width() || naturalHeight > safeArea.Height() {
		size = FitDimensions(naturalWidth, naturalHeight, safeArea.Size())
	}
	return safeArea.Center(), size
}
