package services

import (
	"context"
	"fmt"

	"github.com/mprint/editor/internal/editor"
	"github.com/mprint/editor/internal/imaging"
	"github.com/mprint/editor/internal/stores"
)

// restore applies the persisted edit state of the session's design. It runs
// before the session is published, so no lock is held. Store failures leave
// the session usable with blank sides; layers restored once are never
// restored again.
func (s *editorService) restore(ctx context.Context, sess *Session) {
	if !sess.state.BeginRestoration() {
		return
	}
	defer sess.state.FinishRestoration()

	es, err := s.designs.GetEditState(ctx, sess.DesignID)
	if err != nil {
		s.logger.Warnf("edit state fetch failed for %s: %v", sess.DesignID, err)
		return
	}

	s.restoreSide(ctx, sess, editor.SideFront, es.FrontCanvasState, es.FrontImageURL, es.FrontBackgroundURL, es.FrontTextLayers)
	s.restoreSide(ctx, sess, editor.SideBack, es.BackCanvasState, es.BackImageURL, es.BackBackgroundURL, es.BackTextLayers)

	sess.state.MarkSaved()
}

// restoreSide rebuilds one side. When text layers were persisted, the side's
// image URL holds a preview with text already baked into its pixels, so the
// background asset is loaded instead and the text layers are reconstructed
// as independent editable records.
func (s *editorService) restoreSide(ctx context.Context, sess *Session, side editor.Side, cs *stores.CanvasState, imageURL, backgroundURL string, records []stores.TextLayerRecord) {
	src := imageURL
	if len(records) > 0 {
		src = backgroundURL
		for _, rec := range records {
			sess.state.RestoreText(side, textLayerFromRecord(rec))
		}
	}
	if src == "" {
		return
	}

	res := s.loader.Load(ctx, src)
	if res.Kind == imaging.KindFailed {
		s.logger.Warnf("image restore failed for %s side %s: source unavailable", sess.DesignID, side)
		return
	}
	if res.Image != nil {
		sess.rasters[side] = sideRaster{src: src, img: res.Image}
	}

	if cs != nil {
		sess.state.PlaceImageForSide(side, editor.ImageLayer{
			Src:           src,
			X:             cs.X,
			Y:             cs.Y,
			Width:         cs.Width,
			Height:        cs.Height,
			Rotation:      cs.Rotation,
			NaturalWidth:  cs.NaturalWidth,
			NaturalHeight: cs.NaturalHeight,
		})
		return
	}
	nw, nh := s.naturalSize(res, sess.state.SafeArea())
	sess.state.SetImageForSide(side, src, nw, nh)
}

// Save serializes layer geometry for both sides to the Design Store and
// clears the dirty flag. Raw pixels are never part of the payload. Settled
// previews are pushed to the store afterwards on a best-effort basis.
func (s *editorService) Save(ctx context.Context, sessionID string) (SessionView, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return SessionView{}, err
	}
	if sess.DesignID == "" {
		return SessionView{}, fmt.Errorf("%w: session has no design", ErrEditorInvalidInput)
	}

	sess.mu.Lock()
	payload := savePayloadLocked(sess)
	sess.mu.Unlock()

	if err := s.designs.SaveCanvasState(ctx, sess.DesignID, payload); err != nil {
		return SessionView{}, err
	}

	sess.mu.Lock()
	sess.state.MarkSaved()
	view := s.viewLocked(sess)
	sess.mu.Unlock()

	s.pushPreviews(ctx, sess)
	s.announceSave(ctx, sess, view)
	return view, nil
}

// announceSave emits a best-effort save notification when a publisher is
// configured. The save itself already succeeded.
func (s *editorService) announceSave(ctx context.Context, sess *Session, view SessionView) {
	if s.events == nil {
		return
	}
	event := SaveEvent{
		SessionID:   sess.ID,
		DesignID:    sess.DesignID,
		Orientation: string(view.Preset.Orientation),
		Shape:       string(view.Shape),
		SavedAt:     s.clock(),
	}
	if _, err := s.events.PublishSaveEvent(ctx, event); err != nil {
		s.logger.Warnf("save event publish failed for %s: %v", sess.DesignID, err)
	}
}

func savePayloadLocked(sess *Session) stores.SavePayload {
	front := sess.state.SideState(editor.SideFront)
	back := sess.state.SideState(editor.SideBack)
	return stores.SavePayload{
		FrontCanvasState: canvasStateFromImage(front.Image),
		BackCanvasState:  canvasStateFromImage(back.Image),
		FrontTextLayers:  textRecordsFromLayers(front.Texts),
		BackTextLayers:   textRecordsFromLayers(back.Texts),
	}
}

// pushPreviews uploads the settled PNG preview of each side that has one.
// Failures are logged; the geometry save already succeeded.
func (s *editorService) pushPreviews(ctx context.Context, sess *Session) {
	for _, side := range []editor.Side{editor.SideFront, editor.SideBack} {
		sess.debounce.Flush(side)
	}

	sess.mu.Lock()
	previews := make(map[editor.Side][]byte, len(sess.previews))
	for side, res := range sess.previews {
		if len(res.PNG) > 0 {
			previews[side] = res.PNG
		}
	}
	sess.mu.Unlock()

	for side, png := range previews {
		name := string(side) + ".png"
		if err := s.designs.UploadSideImage(ctx, sess.DesignID, string(side), name, png); err != nil {
			s.logger.Warnf("preview upload failed for %s side %s: %v", sess.DesignID, side, err)
		}
	}
}

func canvasStateFromImage(layer *editor.ImageLayer) *stores.CanvasState {
	if layer == nil {
		return nil
	}
	return &stores.CanvasState{
		X:             layer.X,
		Y:             layer.Y,
		Width:         layer.Width,
		Height:        layer.Height,
		Rotation:      layer.Rotation,
		NaturalWidth:  layer.NaturalWidth,
		NaturalHeight: layer.NaturalHeight,
	}
}

func textRecordsFromLayers(layers []editor.TextLayer) []stores.TextLayerRecord {
	records := make([]stores.TextLayerRecord, 0, len(layers))
	for _, l := range layers {
		records = append(records, stores.TextLayerRecord{
			ID:             l.ID,
			Text:           l.Text,
			X:              l.X,
			Y:              l.Y,
			Width:          l.Width,
			Height:         l.Height,
			Rotation:       l.Rotation,
			FontFamily:     l.FontFamily,
			FontSize:       l.FontSize,
			FontWeight:     l.FontWeight,
			FontStyle:      l.FontStyle,
			TextAlign:      l.TextAlign,
			Color:          l.Color,
			LineHeight:     l.LineHeight,
			LetterSpacing:  l.LetterSpacing,
			TextDecoration: l.TextDecoration,
		})
	}
	return records
}

func textLayerFromRecord(rec stores.TextLayerRecord) editor.TextLayer {
	return editor.TextLayer{
		ID:             rec.ID,
		Text:           rec.Text,
		X:              rec.X,
		Y:              rec.Y,
		Width:          rec.Width,
		Height:         rec.Height,
		Rotation:       rec.Rotation,
		FontFamily:     rec.FontFamily,
		FontSize:       rec.FontSize,
		FontWeight:     rec.FontWeight,
		FontStyle:      rec.FontStyle,
		TextAlign:      rec.TextAlign,
		Color:          rec.Color,
		LineHeight:     rec.LineHeight,
		LetterSpacing:  rec.LetterSpacing,
		TextDecoration: rec.TextDecoration,
	}
}
