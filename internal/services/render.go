package services

import (
	"context"
	"image"

	"github.com/mprint/editor/internal/compositor"
	"github.com/mprint/editor/internal/editor"
)

// scheduleRecompose queues a debounced recomposition for each side. A new
// request supersedes a pending one for the same side rather than stacking.
func (s *editorService) scheduleRecompose(sess *Session, sides ...editor.Side) {
	for _, side := range sides {
		side := side
		sess.debounce.Schedule(side, func() {
			s.recompose(sess, side)
		})
	}
}

// recompose renders one side with the full-card window and caches the
// settled result for the artifact contract.
func (s *editorService) recompose(sess *Session, side editor.Side) {
	req := s.renderRequestFor(sess, side, compositor.ModeFullCard)
	res, err := s.renderer.Render(context.Background(), req)
	if err != nil {
		s.logger.Warnf("recomposition failed for session %s side %s: %v", sess.ID, side, err)
		return
	}
	sess.mu.Lock()
	sess.previews[side] = res
	sess.mu.Unlock()
}

func (s *editorService) renderRequestFor(sess *Session, side editor.Side, mode compositor.Mode) compositor.Request {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	layers := sess.state.SideState(side)
	var raster image.Image
	if layers.Image != nil {
		raster = sess.rasterFor(side, layers.Image.Src)
	}
	return compositor.Request{
		Preset:       sess.state.Preset(),
		Side:         compositor.SideInput{Layers: layers, Raster: raster},
		Mode:         mode,
		CornerRadius: sess.CornerRadius,
	}
}

// Preview renders the requested side synchronously in the requested window
// mode. Full-card renders refresh the cached artifact preview as well.
func (s *editorService) Preview(ctx context.Context, sessionID string, side editor.Side, mode compositor.Mode) (compositor.Result, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return compositor.Result{}, err
	}

	req := s.renderRequestFor(sess, side, mode)
	res, err := s.renderer.Render(ctx, req)
	if err != nil {
		return compositor.Result{}, err
	}
	if mode == compositor.ModeFullCard {
		sess.mu.Lock()
		sess.previews[side] = res
		sess.mu.Unlock()
	}
	return res, nil
}

// Artifact flushes pending recompositions and assembles the settled per-side
// previews with the card's top-level presentation facts.
func (s *editorService) Artifact(ctx context.Context, sessionID string) (Artifact, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return Artifact{}, err
	}

	for _, side := range []editor.Side{editor.SideFront, editor.SideBack} {
		sess.debounce.Flush(side)
		if s.missingPreview(sess, side) {
			s.recompose(sess, side)
		}
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return Artifact{
		Front:          sidePreviewLocked(sess, editor.SideFront),
		Back:           sidePreviewLocked(sess, editor.SideBack),
		Orientation:    sess.state.Preset().Orientation,
		Shape:          compositor.ShapeFor(sess.CornerRadius),
		CardDimensions: sess.state.Preset().Size(),
	}, nil
}

func (s *editorService) missingPreview(sess *Session, side editor.Side) bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	_, ok := sess.previews[side]
	return !ok
}

func sidePreviewLocked(sess *Session, side editor.Side) SidePreview {
	res := sess.previews[side]
	return SidePreview{
		Preview:    res.PNG,
		Reference:  res.Reference,
		HasContent: sess.state.SideState(side).HasContent(),
	}
}

// Validity classifies both sides independently against the safe area.
func (s *editorService) Validity(ctx context.Context, sessionID string) (ValidityReport, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return ValidityReport{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	preset := sess.state.Preset()
	safeArea := sess.state.SafeArea()
	report := ValidityReport{}
	for _, side := range []editor.Side{editor.SideFront, editor.SideBack} {
		layers := sess.state.SideState(side)
		sv := SideValidity{
			Side:           side,
			Classification: editor.ClassifySide(layers, safeArea, preset),
			HasContent:     layers.HasContent(),
		}
		if side == editor.SideFront {
			report.Front = sv
		} else {
			report.Back = sv
		}
	}
	report.CanProceed = report.Front.HasContent && report.Back.HasContent
	return report, nil
}
