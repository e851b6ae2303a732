package editor

// LayoutStatus is the four-way layout-validity classification of a layer
// against the card's print constraints, plus the empty case for an absent
// layer.
type LayoutStatus string

const (
	// StatusEmpty means there is no layer to classify.
	StatusEmpty LayoutStatus = "empty"
	// StatusPerfect means the layer covers the full safe area; content
	// bleeds past every trim-guaranteed edge.
	StatusPerfect LayoutStatus = "perfect"
	// StatusSafe means the layer sits entirely inside the safe area.
	StatusSafe LayoutStatus = "safe"
	// StatusExceeds means the layer extends past the bleed edge of the
	// canvas and will be physically trimmed away.
	StatusExceeds LayoutStatus = "exceeds"
	// StatusPartial means the layer crosses the safe-area boundary but
	// stays within the bleed.
	StatusPartial LayoutStatus = "partial"
)

// Classification pairs a status with its user-facing message.
type Classification struct {
	Status  LayoutStatus `json:"status"`
	Message string       `json:"message"`
}

var classificationMessages = map[LayoutStatus]string{
	StatusEmpty:   "no content on this side",
	StatusPerfect: "covers full print area",
	StatusSafe:    "within safe area",
	StatusExceeds: "extends beyond bleed - will be trimmed",
	StatusPartial: "content may be near edge",
}

// ClassifyBounds classifies a layer's axis-aligned box against the safe area
// and the full bleed-inclusive canvas. Precedence: perfect (box contains the
// safe area) over safe (box contained by the safe area) over exceeds (box
// leaves the canvas) over partial. The function is total: exactly one status
// is returned for any input.
func ClassifyBounds(box Rect, safeArea Rect, preset CardPreset) Classification {
	status := StatusPartial
	switch {
	case box.Contains(safeArea):
		status = StatusPerfect
	case safeArea.Contains(box):
		status = StatusSafe
	case !CanvasBounds(preset).Contains(box):
		status = StatusExceeds
	}
	return Classification{Status: status, Message: classificationMessages[status]}
}

// ClassifyImage classifies a side's image layer, returning empty when the
// layer is absent.
func ClassifyImage(layer *ImageLayer, safeArea Rect, preset CardPreset) Classification {
	if layer == nil {
		return Classification{Status: StatusEmpty, Message: classificationMessages[StatusEmpty]}
	}
	return ClassifyBounds(layer.Bounds(), safeArea, preset)
}

// ClassifySide classifies a full side: the image layer when present,
// otherwise the first text layer, otherwise empty. Front and back are always
// classified independently.
func ClassifySide(side SideState, safeArea Rect, preset CardPreset) Classification {
	if side.Image != nil {
		return ClassifyBounds(side.Image.Bounds(), safeArea, preset)
	}
	if len(side.Texts) > 0 {
		return ClassifyBounds(side.Texts[0].Bounds(), safeArea, preset)
	}
	return Classification{Status: StatusEmpty, Message: classificationMessages[StatusEmpty]}
}
