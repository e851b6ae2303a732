// Package services orchestrates editor sessions: it owns the in-memory
// session store, drives the layout and interaction engines, adapts layer
// state to and from the external Design Store, and keeps per-side previews
// recomposited through the debounced renderer.
package services

import (
	"context"
	"time"

	"github.com/mprint/editor/internal/compositor"
	"github.com/mprint/editor/internal/editor"
	"github.com/mprint/editor/internal/imaging"
	"github.com/mprint/editor/internal/stores"
)

// UploadStore is the consumed contract of the standalone upload service.
type UploadStore interface {
	ValidateUpload(contentType string, size int64) error
	Upload(ctx context.Context, fileName, contentType string, data []byte) (stores.StoredImage, error)
}

// DesignStore is the consumed contract of the design persistence service.
type DesignStore interface {
	GetEditState(ctx context.Context, designID string) (stores.EditState, error)
	SaveCanvasState(ctx context.Context, designID string, payload stores.SavePayload) error
	UploadSideImage(ctx context.Context, designID, side, fileName string, data []byte) error
	CopyFromUpload(ctx context.Context, designID, uploadID, side string) error
}

// SourceLoader resolves remote image references into drawable rasters.
type SourceLoader interface {
	Load(ctx context.Context, url string) imaging.Result
}

// Renderer rasterises one card side into a preview.
type Renderer interface {
	Render(ctx context.Context, req compositor.Request) (compositor.Result, error)
}

// SaveEvent announces a completed geometry save for downstream consumers.
type SaveEvent struct {
	SessionID   string    `json:"session_id"`
	DesignID    string    `json:"design_id"`
	Orientation string    `json:"orientation"`
	Shape       string    `json:"shape"`
	SavedAt     time.Time `json:"saved_at"`
}

// EventPublisher pushes editor lifecycle events to a message bus.
type EventPublisher interface {
	PublishSaveEvent(ctx context.Context, event SaveEvent) (string, error)
}

// EditorService exposes every editor operation to the transport layer.
type EditorService interface {
	CreateSession(ctx context.Context, cmd CreateSessionCommand) (SessionView, error)
	GetSession(ctx context.Context, sessionID string) (SessionView, error)
	DropSession(ctx context.Context, sessionID string) error

	SwitchSide(ctx context.Context, sessionID string, side editor.Side) (SessionView, error)
	SetDimensions(ctx context.Context, sessionID string, size editor.PrintSize, orientation editor.Orientation) (SessionView, error)

	AttachImage(ctx context.Context, cmd AttachImageCommand) (SessionView, error)
	AttachLibraryImage(ctx context.Context, cmd AttachLibraryImageCommand) (SessionView, error)
	UpdateImage(ctx context.Context, sessionID string, patch editor.ImagePatch) (SessionView, error)
	RemoveImage(ctx context.Context, sessionID string) (SessionView, error)
	DuplicateImage(ctx context.Context, sessionID string) (SessionView, error)
	FillImage(ctx context.Context, sessionID string, target editor.FillTarget) (SessionView, error)

	AddText(ctx context.Context, sessionID string, layer editor.TextLayer) (SessionView, error)
	UpdateText(ctx context.Context, sessionID, layerID string, patch editor.TextPatch) (SessionView, error)
	RemoveText(ctx context.Context, sessionID, layerID string) (SessionView, error)
	Select(ctx context.Context, sessionID string, selection editor.Selection) (SessionView, error)

	Pointer(ctx context.Context, sessionID string, event PointerEvent) (SessionView, error)

	Validity(ctx context.Context, sessionID string) (ValidityReport, error)
	Preview(ctx context.Context, sessionID string, side editor.Side, mode compositor.Mode) (compositor.Result, error)
	Artifact(ctx context.Context, sessionID string) (Artifact, error)
	Save(ctx context.Context, sessionID string) (SessionView, error)
}

// CreateSessionCommand opens a new editor session. A non-empty DesignID
// restores the persisted state of that design before the session is exposed.
type CreateSessionCommand struct {
	DesignID      string
	PrintLengthIn float64
	PrintWidthIn  float64
	Orientation   editor.Orientation
	CornerRadius  float64
}

// AttachImageCommand uploads raw file bytes and attaches the stored image to
// one side of the card.
type AttachImageCommand struct {
	SessionID   string
	Side        editor.Side
	FileName    string
	ContentType string
	Data        []byte
}

// AttachLibraryImageCommand promotes an existing library upload onto a side.
type AttachLibraryImageCommand struct {
	SessionID string
	Side      editor.Side
	UploadID  string
	FileURL   string
}

// PointerPhase is one step of a pointer gesture.
type PointerPhase string

const (
	PhaseDown PointerPhase = "down"
	PhaseMove PointerPhase = "move"
	PhaseUp   PointerPhase = "up"
)

// ParsePointerPhase validates a wire-level phase value.
func ParsePointerPhase(raw string) (PointerPhase, error) {
	switch PointerPhase(raw) {
	case PhaseDown, PhaseMove, PhaseUp:
		return PointerPhase(raw), nil
	default:
		return "", ErrEditorInvalidInput
	}
}

// PointerTarget selects what a pointer-down landed on.
type PointerTarget string

const (
	// TargetLayer starts a drag of the image layer.
	TargetLayer PointerTarget = "layer"
	// TargetHandle starts a resize from a corner handle.
	TargetHandle PointerTarget = "handle"
)

// PointerEvent is one pointer sample forwarded by the host UI. Coordinates
// are screen pixels; Zoom is the display scale active during the gesture.
type PointerEvent struct {
	Phase  PointerPhase
	Target PointerTarget
	Handle editor.Handle
	X      float64
	Y      float64
	Zoom   float64
}

// SideValidity pairs one side's layout classification with its content check.
type SideValidity struct {
	Side           editor.Side           `json:"side"`
	Classification editor.Classification `json:"classification"`
	HasContent     bool                  `json:"has_content"`
}

// ValidityReport classifies both sides independently. CanProceed requires
// content on both sides; an exceeding layout still proceeds.
type ValidityReport struct {
	Front      SideValidity `json:"front"`
	Back       SideValidity `json:"back"`
	CanProceed bool         `json:"can_proceed"`
}

// SidePreview is the settled composited output of one side. Exactly one of
// Preview and Reference is set when HasContent is true.
type SidePreview struct {
	Preview    []byte `json:"preview,omitempty"`
	Reference  string `json:"reference,omitempty"`
	HasContent bool   `json:"has_content"`
}

// Artifact is the produced-design contract handed to the host UI after every
// settled change and on the explicit continue action.
type Artifact struct {
	Front          SidePreview        `json:"front"`
	Back           SidePreview        `json:"back"`
	Orientation    editor.Orientation `json:"orientation"`
	Shape          compositor.Shape   `json:"shape"`
	CardDimensions editor.Size        `json:"card_dimensions"`
}

// SessionView is the transport-facing snapshot of one session.
type SessionView struct {
	SessionID    string                         `json:"session_id"`
	DesignID     string                         `json:"design_id,omitempty"`
	Preset       editor.CardPreset              `json:"preset"`
	SafeArea     editor.Rect                    `json:"safe_area"`
	ActiveSide   editor.Side                    `json:"active_side"`
	Front        editor.SideState               `json:"front"`
	Back         editor.SideState               `json:"back"`
	Selection    editor.Selection               `json:"selection"`
	Handles      map[editor.Handle]editor.Point `json:"handles,omitempty"`
	Shape        compositor.Shape               `json:"shape"`
	CornerRadius float64                        `json:"corner_radius"`
	Unsaved      bool                           `json:"unsaved"`
}
