package compositor

import (
	"image"
	"image/draw"

	"golang.org/x/image/vector"
)

// Circular corner arcs approximated with cubic beziers.
const bezierCircleKappa = 0.5522847498307936

// roundedCornerMask rasterises a rounded-rectangle alpha mask covering the
// full w x h surface with the given corner radius.
func roundedCornerMask(w, h int, radius float64) *image.Alpha {
	ras := vector.NewRasterizer(w, h)

	fw := float32(w)
	fh := float32(h)
	r := float32(radius)
	if r > fw/2 {
		r = fw / 2
	}
	if r > fh/2 {
		r = fh / 2
	}
	k := r * float32(bezierCircleKappa)

	ras.MoveTo(r, 0)
	ras.LineTo(fw-r, 0)
	ras.CubeTo(fw-r+k, 0, fw, r-k, fw, r)
	ras.LineTo(fw, fh-r)
	ras.CubeTo(fw, fh-r+k, fw-r+k, fh, fw-r, fh)
	ras.LineTo(r, fh)
	ras.CubeTo(r-k, fh, 0, fh-r+k, 0, fh-r)
	ras.LineTo(0, r)
	ras.CubeTo(0, r-k, r-k, 0, r, 0)
	ras.ClosePath()

	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	ras.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	return mask
}

// applyCornerMask clips the rendered surface to a rounded rectangle,
// leaving the corners transparent.
func applyCornerMask(src *image.RGBA, radius float64) *image.RGBA {
	if radius <= 0 {
		return src
	}
	b := src.Bounds()
	mask := roundedCornerMask(b.Dx(), b.Dy(), radius)
	out := image.NewRGBA(b)
	draw.DrawMask(out, b, src, b.Min, mask, image.Point{}, draw.Src)
	return out
}
