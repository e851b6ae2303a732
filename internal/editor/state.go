package editor

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoImageLayer indicates the active side has no image layer.
	ErrNoImageLayer = errors.New("editor: no image layer on active side")
	// ErrTextLayerNotFound indicates the referenced text layer does not exist.
	ErrTextLayerNotFound = errors.New("editor: text layer not found")
)

const duplicateOffsetPx = 20.0

// RestorationStatus tracks the one-shot restoration lifecycle of a state.
// Restoration side effects run only while the status can move from
// NotStarted to InProgress, which keeps re-applied restores idempotent.
type RestorationStatus string

const (
	// RestorationNotStarted means no restore has been attempted.
	RestorationNotStarted RestorationStatus = "not_started"
	// RestorationInProgress means a restore is currently applying.
	RestorationInProgress RestorationStatus = "in_progress"
	// RestorationDone means layers were restored; further restores are no-ops.
	RestorationDone RestorationStatus = "done"
)

// EditorState owns the two independent sides of a card design, the active
// side, the selection union, and the dirty flag. It is a plain model with no
// internal locking; concurrent callers serialise through the session layer.
type EditorState struct {
	preset   CardPreset
	safeArea Rect

	activeSide Side
	front      SideState
	back       SideState

	selection   Selection
	unsaved     bool
	restoration RestorationStatus

	nextTextID func() string
}

// NewEditorState builds an empty state for the given preset. textIDs
// generates stable unique text-layer identifiers.
func NewEditorState(preset CardPreset, textIDs func() string) *EditorState {
	if textIDs == nil {
		seq := 0
		textIDs = func() string {
			seq++
			return fmt.Sprintf("txt_%d", seq)
		}
	}
	return &EditorState{
		preset:      preset,
		safeArea:    SafeAreaFor(preset),
		activeSide:  SideFront,
		selection:   NoSelection(),
		restoration: RestorationNotStarted,
		nextTextID:  textIDs,
	}
}

// Preset reports the current card preset.
func (s *EditorState) Preset() CardPreset { return s.preset }

// SafeArea reports the derived safe area for the current preset.
func (s *EditorState) SafeArea() Rect { return s.safeArea }

// ActiveSide reports which side edits currently target.
func (s *EditorState) ActiveSide() Side { return s.activeSide }

// Selection reports the current selection union.
func (s *EditorState) Selection() Selection { return s.selection }

// HasUnsavedChanges reports whether any mutation happened since the last
// successful save.
func (s *EditorState) HasUnsavedChanges() bool { return s.unsaved }

// Restoration reports the one-shot restore status.
func (s *EditorState) Restoration() RestorationStatus { return s.restoration }

// BeginRestoration atomically moves NotStarted to InProgress. It returns
// false when a restore already ran or is running, so restoration effects
// applied twice never duplicate layers.
func (s *EditorState) BeginRestoration() bool {
	if s.restoration != RestorationNotStarted {
		return false
	}
	s.restoration = RestorationInProgress
	return true
}

// FinishRestoration marks the restore complete.
func (s *EditorState) FinishRestoration() {
	s.restoration = RestorationDone
}

// SideState returns a copy of the requested side's layer set.
func (s *EditorState) SideState(side Side) SideState {
	return s.side(side).clone()
}

// SetDimensions recomputes the preset and safe area reactively. Layer data
// is untouched; derived geometry is never persisted.
func (s *EditorState) SetDimensions(size PrintSize, orientation Orientation) {
	s.preset = NewCardPreset(size, orientation)
	s.safeArea = SafeAreaFor(s.preset)
	s.markDirty()
}

// SetImageForSide attaches (or replaces) the image layer of the given side
// using the insert placement rule: centered on the safe area, downscaled
// only when the natural size exceeds it.
func (s *EditorState) SetImageForSide(side Side, src string, naturalWidth, naturalHeight float64) ImageLayer {
	center, size := PlacementOnInsert(naturalWidth, naturalHeight, s.safeArea)
	layer := ImageLayer{
		Src:           src,
		X:             center.X,
		Y:             center.Y,
		Width:         size.Width,
		Height:        size.Height,
		NaturalWidth:  naturalWidth,
		NaturalHeight: naturalHeight,
	}
	s.side(side).Image = &layer
	s.markDirty()
	return layer
}

// PlaceImageForSide attaches an image layer with explicit stored geometry,
// used when restoring a persisted design verbatim.
func (s *EditorState) PlaceImageForSide(side Side, layer ImageLayer) {
	copied := layer
	s.side(side).Image = &copied
	s.markDirty()
}

// ImagePatch carries a partial geometry update for the image layer. Nil
// fields are left unchanged.
type ImagePatch struct {
	Src      *string
	X        *float64
	Y        *float64
	Width    *float64
	Height   *float64
	Rotation *float64
}

// UpdateCurrentImage applies a partial update to the active side's image.
func (s *EditorState) UpdateCurrentImage(patch ImagePatch) (ImageLayer, error) {
	layer := s.side(s.activeSide).Image
	if layer == nil {
		return ImageLayer{}, ErrNoImageLayer
	}
	if patch.Src != nil {
		layer.Src = *patch.Src
	}
	if patch.X != nil {
		layer.X = *patch.X
	}
	if patch.Y != nil {
		layer.Y = *patch.Y
	}
	if patch.Width != nil {
		layer.Width = *patch.Width
	}
	if patch.Height != nil {
		layer.Height = *patch.Height
	}
	if patch.Rotation != nil {
		layer.Rotation = *patch.Rotation
	}
	s.markDirty()
	return *layer, nil
}

// FillImage scales the active side's image to cover the target region and
// centers it there. The natural size drives the aspect ratio; whatever
// overflows the region is cropped at render time.
func (s *EditorState) FillImage(target FillTarget) (ImageLayer, error) {
	layer := s.side(s.activeSide).Image
	if layer == nil {
		return ImageLayer{}, ErrNoImageLayer
	}
	area := s.safeArea
	if target == FillCanvas {
		area = CanvasBounds(s.preset)
	}
	size := FillDimensions(layer.NaturalWidth, layer.NaturalHeight, area.Size())
	center := area.Center()
	layer.X = center.X
	layer.Y = center.Y
	layer.Width = size.Width
	layer.Height = size.Height
	s.markDirty()
	return *layer, nil
}

// RemoveImage drops the active side's image layer and clears the selection
// when the image was selected.
func (s *EditorState) RemoveImage() error {
	side := s.side(s.activeSide)
	if side.Image == nil {
		return ErrNoImageLayer
	}
	side.Image = nil
	if s.selection.Kind == SelectionImage {
		s.selection = NoSelection()
	}
	s.markDirty()
	return nil
}

// DuplicateImage copies the active side's image offset by +20px on both
// axes. The copy replaces the original as the side's single image layer.
func (s *EditorState) DuplicateImage() (ImageLayer, error) {
	side := s.side(s.activeSide)
	if side.Image == nil {
		return ImageLayer{}, ErrNoImageLayer
	}
	copied := *side.Image
	copied.X += duplicateOffsetPx
	copied.Y += duplicateOffsetPx
	side.Image = &copied
	s.markDirty()
	return copied, nil
}

// SwitchSide changes the active side and clears the selection. Layer data on
// both sides is untouched.
func (s *EditorState) SwitchSide(side Side) {
	if side != SideBack {
		side = SideFront
	}
	if side == s.activeSide {
		return
	}
	s.activeSide = side
	s.selection = NoSelection()
}

// AddText appends a text layer to the active side with defaults applied and
// selects it. When the layer carries no position it is centered on the safe
// area.
func (s *EditorState) AddText(layer TextLayer) TextLayer {
	if strings.TrimSpace(layer.ID) == "" {
		layer.ID = s.nextTextID()
	}
	layer.Text = sanitizeText(layer.Text)
	ApplyTextDefaults(&layer)
	if layer.X == 0 && layer.Y == 0 {
		center := s.safeArea.Center()
		layer.X = center.X
		layer.Y = center.Y
	}
	side := s.side(s.activeSide)
	side.Texts = append(side.Texts, layer)
	s.selection = Selection{Kind: SelectionText, TextID: layer.ID}
	s.markDirty()
	return layer
}

// RestoreText appends a text layer to the given side without touching the
// selection, used during restoration.
func (s *EditorState) RestoreText(side Side, layer TextLayer) TextLayer {
	if strings.TrimSpace(layer.ID) == "" {
		layer.ID = s.nextTextID()
	}
	ApplyTextDefaults(&layer)
	st := s.side(side)
	st.Texts = append(st.Texts, layer)
	s.markDirty()
	return layer
}

// TextPatch carries a partial update for a text layer. Nil fields are left
// unchanged.
type TextPatch struct {
	Text           *string
	X              *float64
	Y              *float64
	Width          *float64
	Height         *float64
	Rotation       *float64
	FontFamily     *string
	FontSize       *float64
	FontWeight     *string
	FontStyle      *string
	TextAlign      *string
	Color          *string
	LineHeight     *float64
	LetterSpacing  *float64
	TextDecoration *string
}

// UpdateText applies a partial update to the identified text layer on the
// active side.
func (s *EditorState) UpdateText(id string, patch TextPatch) (TextLayer, error) {
	side := s.side(s.activeSide)
	for i := range side.Texts {
		if side.Texts[i].ID != id {
			continue
		}
		layer := &side.Texts[i]
		applyTextPatch(layer, patch)
		s.markDirty()
		return *layer, nil
	}
	return TextLayer{}, fmt.Errorf("%w: %s", ErrTextLayerNotFound, id)
}

// RemoveText deletes the identified text layer from the active side,
// clearing the selection when it pointed at the removed layer.
func (s *EditorState) RemoveText(id string) error {
	side := s.side(s.activeSide)
	for i := range side.Texts {
		if side.Texts[i].ID != id {
			continue
		}
		side.Texts = append(side.Texts[:i], side.Texts[i+1:]...)
		if s.selection.Kind == SelectionText && s.selection.TextID == id {
			s.selection = NoSelection()
		}
		s.markDirty()
		return nil
	}
	return fmt.Errorf("%w: %s", ErrTextLayerNotFound, id)
}

// SelectText marks the identified text layer selected, clearing any image
// selection.
func (s *EditorState) SelectText(id string) error {
	side := s.side(s.activeSide)
	for i := range side.Texts {
		if side.Texts[i].ID == id {
			s.selection = Selection{Kind: SelectionText, TextID: id}
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrTextLayerNotFound, id)
}

// SelectImage marks the active side's image selected, clearing any text
// selection.
func (s *EditorState) SelectImage() error {
	if s.side(s.activeSide).Image == nil {
		return ErrNoImageLayer
	}
	s.selection = Selection{Kind: SelectionImage}
	return nil
}

// Deselect clears the selection.
func (s *EditorState) Deselect() {
	s.selection = NoSelection()
}

// MarkSaved clears the dirty flag after a successful save.
func (s *EditorState) MarkSaved() {
	s.unsaved = false
}

func (s *EditorState) markDirty() {
	s.unsaved = true
}

func (s *EditorState) side(side Side) *SideState {
	if side == SideBack {
		return &s.back
	}
	return &s.front
}

func applyTextPatch(layer *TextLayer, patch TextPatch) {
	if patch.Text != nil {
		layer.Text = sanitizeText(*patch.Text)
	}
	if patch.X != nil {
		layer.X = *patch.X
	}
	if patch.Y != nil {
		layer.Y = *patch.Y
	}
	if patch.Width != nil {
		layer.Width = *patch.Width
	}
	if patch.Height != nil {
		layer.Height = *patch.Height
	}
	if patch.Rotation != nil {
		layer.Rotation = *patch.Rotation
	}
	if patch.FontFamily != nil {
		layer.FontFamily = *patch.FontFamily
	}
	if patch.FontSize != nil {
		layer.FontSize = *patch.FontSize
	}
	if patch.FontWeight != nil {
		layer.FontWeight = *patch.FontWeight
	}
	if patch.FontStyle != nil {
		layer.FontStyle = *patch.FontStyle
	}
	if patch.TextAlign != nil {
		layer.TextAlign = *patch.TextAlign
	}
	if patch.Color != nil {
		layer.Color = *patch.Color
	}
	if patch.LineHeight != nil {
		layer.LineHeight = *patch.LineHeight
	}
	if patch.LetterSpacing != nil {
		layer.LetterSpacing = *patch.LetterSpacing
	}
	if patch.TextDecoration != nil {
		layer.TextDecoration = *patch.TextDecoration
	}
	ApplyTextDefaults(layer)
}

func sanitizeText(value string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, value)
}
