package editor

import (
	"math"
	"testing"
)

func TestNewCardPresetBusinessCard(t *testing.T) {
	preset := NewCardPreset(PrintSize{LengthIn: 3.5, WidthIn: 2}, OrientationHorizontal)

	if preset.WidthPx != 375 {
		t.Fatalf("width = %v, want 375", preset.WidthPx)
	}
	if preset.HeightPx != 225 {
		t.Fatalf("height = %v, want 225", preset.HeightPx)
	}
	if preset.BleedMarginPx != 12.5 {
		t.Fatalf("bleed margin = %v, want 12.5", preset.BleedMarginPx)
	}
	if preset.SafeMarginPx != 25 {
		t.Fatalf("safe margin = %v, want 25", preset.SafeMarginPx)
	}
	if preset.SafeMarginPx != 2*preset.BleedMarginPx {
		t.Fatalf("safe margin %v is not twice bleed margin %v", preset.SafeMarginPx, preset.BleedMarginPx)
	}
}

func TestNewCardPresetOrientationSwap(t *testing.T) {
	size := PrintSize{LengthIn: 3.5, WidthIn: 2}
	horizontal := NewCardPreset(size, OrientationHorizontal)
	vertical := NewCardPreset(size, OrientationVertical)

	if vertical.WidthPx != horizontal.HeightPx || vertical.HeightPx != horizontal.WidthPx {
		t.Fatalf("vertical %vx%v does not swap horizontal %vx%v",
			vertical.WidthPx, vertical.HeightPx, horizontal.WidthPx, horizontal.HeightPx)
	}
	if vertical.BleedMarginPx != horizontal.BleedMarginPx {
		t.Fatalf("bleed margin changed across orientation: %v vs %v", vertical.BleedMarginPx, horizontal.BleedMarginPx)
	}
}

func TestNewCardPresetDefaults(t *testing.T) {
	tests := []struct {
		name string
		size PrintSize
	}{
		{name: "zero size", size: PrintSize{}},
		{name: "negative length", size: PrintSize{LengthIn: -1, WidthIn: 2}},
		{name: "negative width", size: PrintSize{LengthIn: 3.5, WidthIn: -4}},
	}
	want := NewCardPreset(PrintSize{LengthIn: 3.5, WidthIn: 2}, OrientationHorizontal)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := NewCardPreset(tc.size, OrientationHorizontal)
			if got.WidthPx != want.WidthPx && got.HeightPx != want.HeightPx {
				t.Fatalf("preset %+v did not degrade to defaults", got)
			}
			if got.WidthPx <= 0 || got.HeightPx <= 0 {
				t.Fatalf("preset must always be usable, got %+v", got)
			}
		})
	}
}

func TestNewCardPresetDisplayCentimetres(t *testing.T) {
	preset := NewCardPreset(PrintSize{LengthIn: 3.5, WidthIn: 2}, OrientationHorizontal)
	if math.Abs(preset.WidthCm-8.89) > 1e-9 {
		t.Fatalf("width cm = %v, want 8.89", preset.WidthCm)
	}
	if math.Abs(preset.HeightCm-5.08) > 1e-9 {
		t.Fatalf("height cm = %v, want 5.08", preset.HeightCm)
	}
}

func TestParseOrientation(t *testing.T) {
	tests := []struct {
		in   string
		want Orientation
	}{
		{"vertical", OrientationVertical},
		{" Vertical ", OrientationVertical},
		{"portrait", OrientationVertical},
		{"horizontal", OrientationHorizontal},
		{"", OrientationHorizontal},
		{"landscape", OrientationHorizontal},
	}
	for _, tc := range tests {
		if got := ParseOrientation(tc.in); got != tc.want {
			t.Fatalf("ParseOrientation(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
