package compositor

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tdewolff/canvas"
)

// ErrFontUnavailable indicates no usable font file could be resolved for a
// requested family.
var ErrFontUnavailable = errors.New("compositor: font unavailable")

// Canvas font faces take point sizes while the card canvas is addressed in
// pixels (one canvas unit per pixel at 100 px/inch).
const ptPerCanvasUnit = 72.0 / 25.4

// FontCache resolves text-layer font attributes to canvas font faces,
// loading font files from a directory and caching one family per
// (family, style) pair. Lookups for families with no matching file fall back
// to the first family that loaded; with nothing loaded they fail.
type FontCache struct {
	dir string

	mu       sync.Mutex
	families map[string]*canvas.FontFamily
	fallback *canvas.FontFamily
}

// NewFontCache builds a cache rooted at the given font directory.
func NewFontCache(dir string) *FontCache {
	return &FontCache{
		dir:      strings.TrimSpace(dir),
		families: map[string]*canvas.FontFamily{},
	}
}

// Face returns a font face for the layer attributes. The size is given in
// canvas units (pixels) and converted to points internally.
func (f *FontCache) Face(familyName, weight, styleAttr, decoration string, sizePx float64, col color.Color) (*canvas.FontFace, error) {
	style := parseFontStyle(weight, styleAttr)
	family, err := f.family(familyName, style)
	if err != nil {
		return nil, err
	}
	args := []interface{}{col, style, canvas.FontNormal}
	if strings.EqualFold(strings.TrimSpace(decoration), "underline") {
		args = append(args, canvas.FontUnderline)
	}
	return family.Face(sizePx*ptPerCanvasUnit, args...), nil
}

func (f *FontCache) family(name string, style canvas.FontStyle) (*canvas.FontFamily, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Arial"
	}
	key := fmt.Sprintf("%s|%d", strings.ToLower(name), style)

	f.mu.Lock()
	defer f.mu.Unlock()

	if family, ok := f.families[key]; ok {
		return family, nil
	}

	data, err := f.findFontBytes(name, style)
	if err != nil {
		if f.fallback != nil {
			f.families[key] = f.fallback
			return f.fallback, nil
		}
		return nil, err
	}

	family := canvas.NewFontFamily(name)
	if err := family.LoadFont(data, 0, style); err != nil {
		if f.fallback != nil {
			f.families[key] = f.fallback
			return f.fallback, nil
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrFontUnavailable, name, err)
	}

	f.families[key] = family
	if f.fallback == nil {
		f.fallback = family
	}
	return family, nil
}

func (f *FontCache) findFontBytes(name string, style canvas.FontStyle) ([]byte, error) {
	if f.dir == "" {
		return nil, fmt.Errorf("%w: no font directory configured", ErrFontUnavailable)
	}

	suffix := styleSuffix(style)
	base := strings.ToLower(strings.ReplaceAll(name, " ", ""))
	candidates := []string{}
	for _, ext := range []string{".ttf", ".otf"} {
		if suffix != "" {
			candidates = append(candidates, base+"-"+suffix+ext)
		}
		candidates = append(candidates, base+ext)
	}

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFontUnavailable, err)
	}
	byName := map[string]string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		byName[strings.ToLower(entry.Name())] = filepath.Join(f.dir, entry.Name())
	}
	for _, candidate := range candidates {
		if path, ok := byName[candidate]; ok {
			return os.ReadFile(path)
		}
	}
	return nil, fmt.Errorf("%w: no file for family %q in %s", ErrFontUnavailable, name, f.dir)
}

func styleSuffix(style canvas.FontStyle) string {
	bold := style&canvas.FontBold != 0
	italic := style&canvas.FontItalic != 0
	switch {
	case bold && italic:
		return "bolditalic"
	case bold:
		return "bold"
	case italic:
		return "italic"
	default:
		return ""
	}
}

func parseFontStyle(weight, styleAttr string) canvas.FontStyle {
	style := canvas.FontRegular
	switch strings.ToLower(strings.TrimSpace(weight)) {
	case "bold", "600", "700", "800", "900", "bolder":
		style = canvas.FontBold
	case "medium", "500":
		style = canvas.FontMedium
	case "light", "300", "lighter":
		style = canvas.FontLight
	}
	s := strings.ToLower(strings.TrimSpace(styleAttr))
	if strings.Contains(s, "italic") || strings.Contains(s, "oblique") {
		style |= canvas.FontItalic
	}
	return style
}

func parseHexColor(value string) color.RGBA {
	value = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(value), "#"))
	parse := func(s string) uint8 {
		var v uint64
		for _, r := range s {
			v <<= 4
			switch {
			case r >= '0' && r <= '9':
				v |= uint64(r - '0')
			case r >= 'a' && r <= 'f':
				v |= uint64(r-'a') + 10
			case r >= 'A' && r <= 'F':
				v |= uint64(r-'A') + 10
			}
		}
		return uint8(v)
	}
	switch len(value) {
	case 3:
		r := parse(value[0:1])
		g := parse(value[1:2])
		b := parse(value[2:3])
		return color.RGBA{R: r*16 + r, G: g*16 + g, B: b*16 + b, A: 255}
	case 6:
		return color.RGBA{R: parse(value[0:2]), G: parse(value[2:4]), B: parse(value[4:6]), A: 255}
	default:
		return color.RGBA{A: 255}
	}
}
