package editor

import "testing"

func classifierFixture() (CardPreset, Rect) {
	preset := NewCardPreset(PrintSize{LengthIn: 3.5, WidthIn: 2}, OrientationHorizontal)
	return preset, SafeAreaFor(preset)
}

func TestClassifyBounds(t *testing.T) {
	preset, safe := classifierFixture()

	tests := []struct {
		name string
		box  Rect
		want LayoutStatus
	}{
		{
			name: "covers full print area",
			box:  Rect{Left: 0, Top: 0, Right: 375, Bottom: 225},
			want: StatusPerfect,
		},
		{
			name: "exactly the safe area is both perfect and safe, perfect wins",
			box:  safe,
			want: StatusPerfect,
		},
		{
			name: "strictly inside safe area",
			box:  Rect{Left: 100, Top: 80, Right: 250, Bottom: 150},
			want: StatusSafe,
		},
		{
			name: "hangs off the canvas edge",
			box:  Rect{Left: -40, Top: 60, Right: 120, Bottom: 140},
			want: StatusExceeds,
		},
		{
			name: "past the bottom bleed edge",
			box:  Rect{Left: 100, Top: 200, Right: 200, Bottom: 260},
			want: StatusExceeds,
		},
		{
			name: "crosses safe boundary within bleed",
			box:  Rect{Left: 10, Top: 60, Right: 120, Bottom: 140},
			want: StatusPartial,
		},
		{
			name: "sits in bleed ring only",
			box:  Rect{Left: 2, Top: 2, Right: 20, Bottom: 20},
			want: StatusPartial,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyBounds(tc.box, safe, preset)
			if got.Status != tc.want {
				t.Fatalf("status = %q, want %q", got.Status, tc.want)
			}
			if got.Message == "" {
				t.Fatal("classification carries no message")
			}
		})
	}
}

// The classifier must be total, and the containment directions for perfect
// and safe must be mutually exclusive for any box that is not exactly the
// safe area.
func TestClassifyBoundsTotality(t *testing.T) {
	preset, safe := classifierFixture()

	boxes := []Rect{}
	for _, left := range []float64{-50, 0, 12.5, 25, 100, 300} {
		for _, top := range []float64{-50, 0, 12.5, 25, 80, 190} {
			for _, w := range []float64{10, 60, 200, 400} {
				for _, h := range []float64{10, 60, 180, 300} {
					boxes = append(boxes, Rect{Left: left, Top: top, Right: left + w, Bottom: top + h})
				}
			}
		}
	}

	valid := map[LayoutStatus]bool{
		StatusPerfect: true,
		StatusSafe:    true,
		StatusExceeds: true,
		StatusPartial: true,
	}
	for _, box := range boxes {
		got := ClassifyBounds(box, safe, preset)
		if !valid[got.Status] {
			t.Fatalf("box %+v classified as %q", box, got.Status)
		}
		if got.Status == StatusPerfect && !box.Contains(safe) {
			t.Fatalf("perfect box %+v does not contain safe area", box)
		}
		if got.Status == StatusSafe {
			if !safe.Contains(box) {
				t.Fatalf("safe box %+v not contained by safe area", box)
			}
			if box.Contains(safe) && box != safe {
				t.Fatalf("box %+v classified safe but contains the safe area", box)
			}
		}
	}
}

func TestClassifyImageAbsentLayer(t *testing.T) {
	preset, safe := classifierFixture()
	got := ClassifyImage(nil, safe, preset)
	if got.Status != StatusEmpty {
		t.Fatalf("status = %q, want empty", got.Status)
	}
}

func TestClassifySide(t *testing.T) {
	preset, safe := classifierFixture()

	t.Run("image wins over text", func(t *testing.T) {
		side := SideState{
			Image: &ImageLayer{X: 187.5, Y: 112.5, Width: 400, Height: 250},
			Texts: []TextLayer{{X: 187.5, Y: 112.5, Width: 10, Height: 10}},
		}
		if got := ClassifySide(side, safe, preset); got.Status != StatusPerfect {
			t.Fatalf("status = %q, want perfect from image", got.Status)
		}
	})

	t.Run("text-only side classifies the text", func(t *testing.T) {
		side := SideState{Texts: []TextLayer{{X: 187.5, Y: 112.5, Width: 100, Height: 40}}}
		if got := ClassifySide(side, safe, preset); got.Status != StatusSafe {
			t.Fatalf("status = %q, want safe", got.Status)
		}
	})

	t.Run("empty side", func(t *testing.T) {
		if got := ClassifySide(SideState{}, safe, preset); got.Status != StatusEmpty {
			t.Fatalf("status = %q, want empty", got.Status)
		}
	})
}
