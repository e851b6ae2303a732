package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/mprint/editor/internal/compositor"
	"github.com/mprint/editor/internal/editor"
	"github.com/mprint/editor/internal/imaging"
)

// EditorLogger defines the logging contract used by the editor service.
type EditorLogger interface {
	Warnf(format string, args ...any)
}

type noopEditorLogger struct{}

func (noopEditorLogger) Warnf(string, ...any) {}

type editorService struct {
	sessions      *SessionStore
	uploads       UploadStore
	designs       DesignStore
	loader        SourceLoader
	renderer      Renderer
	events        EventPublisher
	clock         func() time.Time
	newSessionID  func() string
	newTextID     func() string
	logger        EditorLogger
	debounceDelay time.Duration
}

// EditorServiceDeps bundles constructor inputs for the editor service.
// Events is optional; without a publisher save notifications are skipped.
type EditorServiceDeps struct {
	Sessions      *SessionStore
	Uploads       UploadStore
	Designs       DesignStore
	Loader        SourceLoader
	Renderer      Renderer
	Events        EventPublisher
	Clock         func() time.Time
	SessionIDs    func() string
	TextIDs       func() string
	Logger        EditorLogger
	DebounceDelay time.Duration
}

// NewEditorService creates the session-oriented editor facade.
func NewEditorService(deps EditorServiceDeps) (EditorService, error) {
	if deps.Sessions == nil {
		return nil, fmt.Errorf("editor service: session store is required")
	}
	if deps.Uploads == nil {
		return nil, fmt.Errorf("editor service: upload store is required")
	}
	if deps.Designs == nil {
		return nil, fmt.Errorf("editor service: design store is required")
	}
	if deps.Loader == nil {
		return nil, fmt.Errorf("editor service: source loader is required")
	}
	if deps.Renderer == nil {
		return nil, fmt.Errorf("editor service: renderer is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	sessionIDs := deps.SessionIDs
	if sessionIDs == nil {
		sessionIDs = func() string { return "ses_" + ulid.Make().String() }
	}
	textIDs := deps.TextIDs
	if textIDs == nil {
		textIDs = func() string { return "txt_" + ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopEditorLogger{}
	}
	delay := deps.DebounceDelay
	if delay <= 0 {
		delay = compositor.DefaultDebounce
	}

	return &editorService{
		sessions:      deps.Sessions,
		uploads:       deps.Uploads,
		designs:       deps.Designs,
		loader:        deps.Loader,
		renderer:      deps.Renderer,
		events:        deps.Events,
		clock:         clock,
		newSessionID:  sessionIDs,
		newTextID:     textIDs,
		logger:        logger,
		debounceDelay: delay,
	}, nil
}

func (s *editorService) CreateSession(ctx context.Context, cmd CreateSessionCommand) (SessionView, error) {
	preset := editor.NewCardPreset(editor.PrintSize{
		LengthIn: cmd.PrintLengthIn,
		WidthIn:  cmd.PrintWidthIn,
	}, cmd.Orientation)

	now := s.clock()
	sess := &Session{
		ID:           s.newSessionID(),
		DesignID:     strings.TrimSpace(cmd.DesignID),
		CornerRadius: cmd.CornerRadius,
		CreatedAt:    now,
		state:        editor.NewEditorState(preset, s.newTextID),
		interaction:  editor.NewInteraction(),
		rasters:      make(map[editor.Side]sideRaster),
		previews:     make(map[editor.Side]compositor.Result),
		debounce:     compositor.NewDebouncer(s.debounceDelay),
		lastTouched:  now,
	}

	if sess.DesignID != "" {
		s.restore(ctx, sess)
	}

	s.sessions.Put(sess)
	s.scheduleRecompose(sess, editor.SideFront, editor.SideBack)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.viewLocked(sess), nil
}

func (s *editorService) GetSession(ctx context.Context, sessionID string) (SessionView, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return SessionView{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.viewLocked(sess), nil
}

func (s *editorService) DropSession(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(sessionID)
}

func (s *editorService) SwitchSide(ctx context.Context, sessionID string, side editor.Side) (SessionView, error) {
	return s.mutate(sessionID, func(sess *Session) ([]editor.Side, error) {
		sess.state.SwitchSide(side)
		sess.interaction.End()
		return nil, nil
	})
}

func (s *editorService) SetDimensions(ctx context.Context, sessionID string, size editor.PrintSize, orientation editor.Orientation) (SessionView, error) {
	return s.mutate(sessionID, func(sess *Session) ([]editor.Side, error) {
		sess.state.SetDimensions(size, orientation)
		return []editor.Side{editor.SideFront, editor.SideBack}, nil
	})
}

func (s *editorService) AttachImage(ctx context.Context, cmd AttachImageCommand) (SessionView, error) {
	sess, err := s.sessions.Get(cmd.SessionID)
	if err != nil {
		return SessionView{}, err
	}
	if err := s.uploads.ValidateUpload(cmd.ContentType, int64(len(cmd.Data))); err != nil {
		return SessionView{}, err
	}

	stored, err := s.uploads.Upload(ctx, cmd.FileName, cmd.ContentType, cmd.Data)
	if err != nil {
		return SessionView{}, err
	}
	if sess.DesignID != "" {
		if err := s.designs.UploadSideImage(ctx, sess.DesignID, string(cmd.Side), cmd.FileName, cmd.Data); err != nil {
			s.logger.Warnf("design side upload failed for %s: %v", sess.DesignID, err)
		}
	}

	img, err := imaging.Decode(cmd.Data)
	if err != nil {
		return SessionView{}, fmt.Errorf("%w: undecodable image", ErrEditorInvalidInput)
	}
	bounds := img.Bounds()

	return s.mutate(cmd.SessionID, func(sess *Session) ([]editor.Side, error) {
		side := cmd.Side
		sess.state.SetImageForSide(side, stored.FileURL, float64(bounds.Dx()), float64(bounds.Dy()))
		sess.rasters[side] = sideRaster{src: stored.FileURL, img: img}
		if side == sess.state.ActiveSide() {
			if err := sess.state.SelectImage(); err != nil {
				return nil, err
			}
		}
		return []editor.Side{side}, nil
	})
}

func (s *editorService) AttachLibraryImage(ctx context.Context, cmd AttachLibraryImageCommand) (SessionView, error) {
	sess, err := s.sessions.Get(cmd.SessionID)
	if err != nil {
		return SessionView{}, err
	}
	if strings.TrimSpace(cmd.FileURL) == "" {
		return SessionView{}, fmt.Errorf("%w: file url is required", ErrEditorInvalidInput)
	}

	if sess.DesignID != "" && strings.TrimSpace(cmd.UploadID) != "" {
		if err := s.designs.CopyFromUpload(ctx, sess.DesignID, cmd.UploadID, string(cmd.Side)); err != nil {
			s.logger.Warnf("copy from upload failed for %s: %v", sess.DesignID, err)
		}
	}

	res := s.loader.Load(ctx, cmd.FileURL)
	if res.Kind == imaging.KindFailed {
		return SessionView{}, fmt.Errorf("%w: image source unavailable", ErrEditorInvalidInput)
	}

	return s.mutate(cmd.SessionID, func(sess *Session) ([]editor.Side, error) {
		nw, nh := s.naturalSize(res, sess.state.SafeArea())
		sess.state.SetImageForSide(cmd.Side, cmd.FileURL, nw, nh)
		if res.Image != nil {
			sess.rasters[cmd.Side] = sideRaster{src: cmd.FileURL, img: res.Image}
		} else {
			delete(sess.rasters, cmd.Side)
		}
		if cmd.Side == sess.state.ActiveSide() {
			if err := sess.state.SelectImage(); err != nil {
				return nil, err
			}
		}
		return []editor.Side{cmd.Side}, nil
	})
}

func (s *editorService) UpdateImage(ctx context.Context, sessionID string, patch editor.ImagePatch) (SessionView, error) {
	return s.mutate(sessionID, func(sess *Session) ([]editor.Side, error) {
		if _, err := sess.state.UpdateCurrentImage(patch); err != nil {
			return nil, err
		}
		return []editor.Side{sess.state.ActiveSide()}, nil
	})
}

func (s *editorService) RemoveImage(ctx context.Context, sessionID string) (SessionView, error) {
	return s.mutate(sessionID, func(sess *Session) ([]editor.Side, error) {
		side := sess.state.ActiveSide()
		if err := sess.state.RemoveImage(); err != nil {
			return nil, err
		}
		delete(sess.rasters, side)
		return []editor.Side{side}, nil
	})
}

func (s *editorService) DuplicateImage(ctx context.Context, sessionID string) (SessionView, error) {
	return s.mutate(sessionID, func(sess *Session) ([]editor.Side, error) {
		if _, err := sess.state.DuplicateImage(); err != nil {
			return nil, err
		}
		return []editor.Side{sess.state.ActiveSide()}, nil
	})
}

func (s *editorService) FillImage(ctx context.Context, sessionID string, target editor.FillTarget) (SessionView, error) {
	return s.mutate(sessionID, func(sess *Session) ([]editor.Side, error) {
		if _, err := sess.state.FillImage(target); err != nil {
			return nil, err
		}
		return []editor.Side{sess.state.ActiveSide()}, nil
	})
}

func (s *editorService) AddText(ctx context.Context, sessionID string, layer editor.TextLayer) (SessionView, error) {
	return s.mutate(sessionID, func(sess *Session) ([]editor.Side, error) {
		sess.state.AddText(layer)
		return []editor.Side{sess.state.ActiveSide()}, nil
	})
}

func (s *editorService) UpdateText(ctx context.Context, sessionID, layerID string, patch editor.TextPatch) (SessionView, error) {
	return s.mutate(sessionID, func(sess *Session) ([]editor.Side, error) {
		if _, err := sess.state.UpdateText(layerID, patch); err != nil {
			return nil, err
		}
		return []editor.Side{sess.state.ActiveSide()}, nil
	})
}

func (s *editorService) RemoveText(ctx context.Context, sessionID, layerID string) (SessionView, error) {
	return s.mutate(sessionID, func(sess *Session) ([]editor.Side, error) {
		if err := sess.state.RemoveText(layerID); err != nil {
			return nil, err
		}
		return []editor.Side{sess.state.ActiveSide()}, nil
	})
}

func (s *editorService) Select(ctx context.Context, sessionID string, selection editor.Selection) (SessionView, error) {
	return s.mutate(sessionID, func(sess *Session) ([]editor.Side, error) {
		switch selection.Kind {
		case editor.SelectionImage:
			return nil, sess.state.SelectImage()
		case editor.SelectionText:
			return nil, sess.state.SelectText(selection.TextID)
		case editor.SelectionNone:
			sess.state.Deselect()
			return nil, nil
		default:
			return nil, fmt.Errorf("%w: unknown selection kind %q", ErrEditorInvalidInput, selection.Kind)
		}
	})
}

// Pointer advances the drag/resize state machine with one pointer sample.
// Stray move and up samples arriving while no gesture is active are ignored
// so the host UI never has to sequence its pointer capture perfectly.
func (s *editorService) Pointer(ctx context.Context, sessionID string, event PointerEvent) (SessionView, error) {
	return s.mutate(sessionID, func(sess *Session) ([]editor.Side, error) {
		switch event.Phase {
		case PhaseDown:
			return nil, s.pointerDown(sess, event)
		case PhaseMove:
			if !sess.interaction.Active() {
				return nil, nil
			}
			geom, err := sess.interaction.Move(editor.Point{X: event.X, Y: event.Y})
			if err != nil {
				return nil, err
			}
			patch := editor.ImagePatch{
				X:      &geom.Center.X,
				Y:      &geom.Center.Y,
				Width:  &geom.Size.Width,
				Height: &geom.Size.Height,
			}
			if _, err := sess.state.UpdateCurrentImage(patch); err != nil {
				return nil, err
			}
			return []editor.Side{sess.state.ActiveSide()}, nil
		case PhaseUp:
			sess.interaction.End()
			return []editor.Side{sess.state.ActiveSide()}, nil
		default:
			return nil, fmt.Errorf("%w: unknown pointer phase %q", ErrEditorInvalidInput, event.Phase)
		}
	})
}

func (s *editorService) pointerDown(sess *Session, event PointerEvent) error {
	side := sess.state.SideState(sess.state.ActiveSide())
	if side.Image == nil {
		return editor.ErrNoImageLayer
	}
	geom := editor.LayerGeometry{
		Center: editor.Point{X: side.Image.X, Y: side.Image.Y},
		Size:   editor.Size{Width: side.Image.Width, Height: side.Image.Height},
	}
	pointer := editor.Point{X: event.X, Y: event.Y}

	switch event.Target {
	case TargetLayer:
		if err := sess.interaction.BeginDrag(geom, pointer, event.Zoom); err != nil {
			return err
		}
	case TargetHandle:
		if err := sess.interaction.BeginResize(geom, event.Handle, pointer, event.Zoom); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown pointer target %q", ErrEditorInvalidInput, event.Target)
	}
	return sess.state.SelectImage()
}

// mutate runs fn on the locked session, then schedules a debounced
// recomposition for every side fn reports as changed.
func (s *editorService) mutate(sessionID string, fn func(*Session) ([]editor.Side, error)) (SessionView, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return SessionView{}, err
	}

	sess.mu.Lock()
	changed, err := fn(sess)
	if err != nil {
		sess.mu.Unlock()
		return SessionView{}, err
	}
	view := s.viewLocked(sess)
	sess.mu.Unlock()

	s.scheduleRecompose(sess, changed...)
	return view, nil
}

func (s *editorService) viewLocked(sess *Session) SessionView {
	view := SessionView{
		SessionID:    sess.ID,
		DesignID:     sess.DesignID,
		Preset:       sess.state.Preset(),
		SafeArea:     sess.state.SafeArea(),
		ActiveSide:   sess.state.ActiveSide(),
		Front:        sess.state.SideState(editor.SideFront),
		Back:         sess.state.SideState(editor.SideBack),
		Selection:    sess.state.Selection(),
		Shape:        compositor.ShapeFor(sess.CornerRadius),
		CornerRadius: sess.CornerRadius,
		Unsaved:      sess.state.HasUnsavedChanges(),
	}
	if view.Selection.Kind == editor.SelectionImage {
		active := sess.state.SideState(view.ActiveSide)
		if active.Image != nil {
			view.Handles = editor.HandlePositions(editor.LayerGeometry{
				Center: editor.Point{X: active.Image.X, Y: active.Image.Y},
				Size:   editor.Size{Width: active.Image.Width, Height: active.Image.Height},
			})
		}
	}
	return view
}

// naturalSize reports the decoded pixel size of a load result, falling back
// to the safe-area size for reference-only sources whose pixels are unknown.
func (s *editorService) naturalSize(res imaging.Result, safeArea editor.Rect) (float64, float64) {
	if w, h := res.NaturalSize(); w > 0 && h > 0 {
		return float64(w), float64(h)
	}
	return safeArea.Width(), safeArea.Height()
}
