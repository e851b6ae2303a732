package editor

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInteractionActive indicates a gesture is already in progress.
	ErrInteractionActive = errors.New("editor: interaction already active")
	// ErrInteractionIdle indicates no gesture is in progress.
	ErrInteractionIdle = errors.New("editor: no interaction in progress")
	// ErrUnsupportedHandle indicates a non-diagonal resize handle.
	ErrUnsupportedHandle = errors.New("editor: unsupported resize handle")
)

// MinResizeWidthPx is the lower clamp applied to the width during a resize.
// Height follows the locked aspect ratio and may legitimately end up below
// this floor for extreme ratios.
const MinResizeWidthPx = 50.0

// Handle identifies one of the four diagonal resize handles.
type Handle string

const (
	// HandleNW is the top-left handle.
	HandleNW Handle = "nw"
	// HandleNE is the top-right handle.
	HandleNE Handle = "ne"
	// HandleSW is the bottom-left handle.
	HandleSW Handle = "sw"
	// HandleSE is the bottom-right handle.
	HandleSE Handle = "se"
)

// ParseHandle validates a handle name.
func ParseHandle(value string) (Handle, error) {
	switch Handle(strings.ToLower(strings.TrimSpace(value))) {
	case HandleNW:
		return HandleNW, nil
	case HandleNE:
		return HandleNE, nil
	case HandleSW:
		return HandleSW, nil
	case HandleSE:
		return HandleSE, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedHandle, value)
	}
}

// LayerGeometry is the mutable geometry a gesture operates on.
type LayerGeometry struct {
	Center Point
	Size   Size
}

// HandlePositions derives the four corner handle anchors from the current
// layer geometry, keyed by handle name.
func HandlePositions(geom LayerGeometry) map[Handle]Point {
	box := BoundsAround(geom.Center, geom.Size)
	return map[Handle]Point{
		HandleNW: {X: box.Left, Y: box.Top},
		HandleNE: {X: box.Right, Y: box.Top},
		HandleSW: {X: box.Left, Y: box.Bottom},
		HandleSE: {X: box.Right, Y: box.Bottom},
	}
}

type interactionState int

const (
	stateIdle interactionState = iota
	stateDragging
	stateResizing
)

// Interaction converts pointer movement into layer geometry. It is a modal
// state machine: idle -> dragging -> idle or idle -> resizing -> idle. At
// most one gesture is active at a time; starting a second while non-idle is
// rejected. Pointer coordinates are screen-space and are divided by the zoom
// factor captured at gesture start, so edits behave identically at any zoom.
type Interaction struct {
	state interactionState

	startPoint  Point
	startCenter Point
	startSize   Size
	aspect      float64
	handle      Handle
	zoom        float64
}

// NewInteraction returns an idle interaction machine.
func NewInteraction() *Interaction {
	return &Interaction{}
}

// Active reports whether a gesture is in progress.
func (i *Interaction) Active() bool { return i.state != stateIdle }

// BeginDrag starts a translate gesture from a pointer-down on the layer.
func (i *Interaction) BeginDrag(geom LayerGeometry, pointer Point, zoom float64) error {
	if i.state != stateIdle {
		return ErrInteractionActive
	}
	i.state = stateDragging
	i.startPoint = pointer
	i.startCenter = geom.Center
	i.startSize = geom.Size
	i.zoom = normalizeZoom(zoom)
	return nil
}

// BeginResize starts a proportional resize gesture from a pointer-down on a
// corner handle. The aspect ratio is locked to width/height at gesture start.
func (i *Interaction) BeginResize(geom LayerGeometry, handle Handle, pointer Point, zoom float64) error {
	if i.state != stateIdle {
		return ErrInteractionActive
	}
	if _, err := ParseHandle(string(handle)); err != nil {
		return err
	}
	if geom.Size.Width <= 0 || geom.Size.Height <= 0 {
		return fmt.Errorf("editor: cannot resize degenerate layer %vx%v", geom.Size.Width, geom.Size.Height)
	}
	i.state = stateResizing
	i.startPoint = pointer
	i.startCenter = geom.Center
	i.startSize = geom.Size
	i.aspect = geom.Size.Width / geom.Size.Height
	i.handle = handle
	i.zoom = normalizeZoom(zoom)
	return nil
}

// Move applies the pointer position to the active gesture and returns the
// resulting layer geometry. Drag translates the center; resize drives the
// width from the horizontal delta (sign depends on the handle side), clamps
// it to MinResizeWidthPx and derives the height from the locked ratio. The
// center stays fixed during a resize.
func (i *Interaction) Move(pointer Point) (LayerGeometry, error) {
	switch i.state {
	case stateDragging:
		dx := (pointer.X - i.startPoint.X) / i.zoom
		dy := (pointer.Y - i.startPoint.Y) / i.zoom
		return LayerGeometry{
			Center: Point{X: i.startCenter.X + dx, Y: i.startCenter.Y + dy},
			Size:   i.startSize,
		}, nil
	case stateResizing:
		dx := (pointer.X - i.startPoint.X) / i.zoom
		if i.handle == HandleNW || i.handle == HandleSW {
			dx = -dx
		}
		width := i.startSize.Width + dx
		if width < MinResizeWidthPx {
			width = MinResizeWidthPx
		}
		return LayerGeometry{
			Center: i.startCenter,
			Size:   Size{Width: width, Height: width / i.aspect},
		}, nil
	default:
		return LayerGeometry{}, ErrInteractionIdle
	}
}

// End terminates the active gesture on pointer-up. Ending an idle machine is
// a no-op so a stray global pointer-up never faults.
func (i *Interaction) End() {
	i.state = stateIdle
	i.handle = ""
	i.aspect = 0
}

func normalizeZoom(zoom float64) float64 {
	if zoom <= 0 {
		return 1
	}
	return zoom
}
