package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mprint/editor/internal/compositor"
	"github.com/mprint/editor/internal/editor"
	"github.com/mprint/editor/internal/platform/httpx"
	"github.com/mprint/editor/internal/services"
	"github.com/mprint/editor/internal/stores"
)

const (
	maxSessionRequestBody = 256 * 1024
	maxImageUploadBody    = 32 << 20
)

// SessionHandlers exposes the editor session endpoints.
type SessionHandlers struct {
	editor services.EditorService
}

// NewSessionHandlers constructs a new SessionHandlers instance.
func NewSessionHandlers(editorService services.EditorService) *SessionHandlers {
	return &SessionHandlers{editor: editorService}
}

// Routes registers the /sessions endpoints.
func (h *SessionHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createSession)
	r.Get("/{sessionID}", h.getSession)
	r.Delete("/{sessionID}", h.dropSession)

	r.Post("/{sessionID}/side", h.switchSide)
	r.Put("/{sessionID}/dimensions", h.setDimensions)

	r.Post("/{sessionID}/image", h.attachImage)
	r.Post("/{sessionID}/image/from-library", h.attachLibraryImage)
	r.Patch("/{sessionID}/image", h.updateImage)
	r.Delete("/{sessionID}/image", h.removeImage)
	r.Post("/{sessionID}/image/duplicate", h.duplicateImage)
	r.Post("/{sessionID}/image/fill", h.fillImage)

	r.Post("/{sessionID}/texts", h.addText)
	r.Patch("/{sessionID}/texts/{textID}", h.updateText)
	r.Delete("/{sessionID}/texts/{textID}", h.removeText)

	r.Post("/{sessionID}/selection", h.selectLayer)
	r.Post("/{sessionID}/pointer", h.pointer)

	r.Get("/{sessionID}/validity", h.validity)
	r.Get("/{sessionID}/preview", h.preview)
	r.Get("/{sessionID}/artifact", h.artifact)
	r.Post("/{sessionID}/save", h.save)
}

type createSessionRequest struct {
	DesignID          string  `json:"design_id"`
	PrintLengthInches float64 `json:"print_length_inches"`
	PrintWidthInches  float64 `json:"print_width_inches"`
	Orientation       string  `json:"orientation"`
	CornerRadius      float64 `json:"corner_radius"`
}

func (h *SessionHandlers) createSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.editor == nil {
		writeServiceUnavailable(ctx, w)
		return
	}

	var req createSessionRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	view, err := h.editor.CreateSession(ctx, services.CreateSessionCommand{
		DesignID:      req.DesignID,
		PrintLengthIn: req.PrintLengthInches,
		PrintWidthIn:  req.PrintWidthInches,
		Orientation:   editor.ParseOrientation(req.Orientation),
		CornerRadius:  req.CornerRadius,
	})
	if err != nil {
		h.writeEditorError(ctx, w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("%s/%s", strings.TrimSuffix(r.URL.Path, "/"), view.SessionID))
	writeJSONResponse(w, http.StatusCreated, view)
}

func (h *SessionHandlers) getSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	view, err := h.editor.GetSession(ctx, sessionID)
	if err != nil {
		h.writeEditorError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, view)
}

func (h *SessionHandlers) dropSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	if err := h.editor.DropSession(ctx, sessionID); err != nil {
		h.writeEditorError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type switchSideRequest struct {
	Side string `json:"side"`
}

func (h *SessionHandlers) switchSide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	var req switchSideRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	view, err := h.editor.SwitchSide(ctx, sessionID, editor.ParseSide(req.Side))
	if err != nil {
		h.writeEditorError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, view)
}

type setDimensionsRequest struct {
	PrintLengthInches float64 `json:"print_length_inches"`
	PrintWidthInches  float64 `json:"print_width_inches"`
	Orientation       string  `json:"orientation"`
}

func (h *SessionHandlers) setDimensions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	var req setDimensionsRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	view, err := h.editor.SetDimensions(ctx, sessionID, editor.PrintSize{
		LengthIn: req.PrintLengthInches,
		WidthIn:  req.PrintWidthInches,
	}, editor.ParseOrientation(req.Orientation))
	if err != nil {
		h.writeEditorError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, view)
}

func (h *SessionHandlers) attachImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxImageUploadBody); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "multipart form expected", http.StatusBadRequest))
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "image file is required", http.StatusBadRequest))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageUploadBody))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unreadable image file", http.StatusBadRequest))
		return
	}

	contentType := header.Header.Get("Content-Type")
	view, err := h.editor.AttachImage(ctx, services.AttachImageCommand{
		SessionID:   sessionID,
		Side:        editor.ParseSide(r.FormValue("side")),
		FileName:    header.Filename,
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		h.writeEditorError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, view)
}

type attachLibraryImageRequest struct {
	UploadID string `json:"upload_id"`
	FileURL  string `json:"file_url"`
	Side     string `json:"side"`
}

func (h *SessionHandlers) attachLibraryImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	var req attachLibraryImageRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	view, err := h.editor.AttachLibraryImage(ctx, services.AttachLibraryImageCommand{
		SessionID: sessionID,
		Side:      editor.ParseSide(req.Side),
		UploadID:  req.UploadID,
		FileURL:   req.FileURL,
	})
	if err != nil {
		h.writeEditorError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, view)
}

type imagePatchRequest struct {
	Src      *string  `json:"src"`
	X        *float64 `json:"x"`
	Y        *float64 `json:"y"`
	Width    *float64 `json:"width"`
	Height   *float64 `json:"height"`
	Rotation *float64 `json:"rotation"`
}

func (h *SessionHandlers) updateImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	var req imagePatchRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	view, err := h.editor.UpdateImage(ctx, sessionID, editor.ImagePatch{
		Src:      req.Src,
		X:        req.X,
		Y:        req.Y,
		Width:    req.Width,
		Height:   req.Height,
		Rotation: req.Rotation,
	})
	if err != nil {
		h.writeEditorError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, view)
}

func (h *SessionHandlers) removeImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	view, err := h.editor.RemoveImage(ctx, sessionID)
	if err != nil {
		h.writeEditorError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, view)
}

func (h *SessionHandlers) duplicateImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	view, err := h.editor.DuplicateImage(ctx, sessionID)
	if err != nil {
		h.writeEditorError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, view)
}

type fillImageRequest struct {
	Target string `json:"target"`
}

func (h *SessionHandlers) fillImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	var req fillImageRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	view, err := h.editor.FillImage(ctx, sessionID, editor.ParseFillTarget(req.Target))
	if err != nil {
		h.writeEditorError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, view)
}

func (h *SessionHandlers) addText(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	var layer editor.TextLayer
	if err := decodeJSONBody(w, r, &layer); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	view, err := h.editor.AddText(ctx, sessionID, layer)
	if err != nil {
		h.writeEditorError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, view)
}

type textPatchRequest struct {
	Text           *string  `json:"text"`
	X              *float64 `json:"x"`
	Y              *float64 `json:"y"`
	Width          *float64 `json:"width"`
	Height         *float64 `json:"height"`
	Rotation       *float64 `json:"rotation"`
	FontFamily     *string  `json:"fontFamily"`
	FontSize       *float64 `json:"fontSize"`
	FontWeight     *string  `json:"fontWeight"`
	FontStyle      *string  `json:"fontStyle"`
	TextAlign      *string  `json:"textAlign"`
	Color          *string  `json:"color"`
	LineHeight     *float64 `json:"lineHeight"`
	LetterSpacing  *float64 `json:"letterSpacing"`
	TextDecoration *string  `json:"textDecoration"`
}

func (h *SessionHandlers) updateText(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	textID := strings.TrimSpace(chi.URLParam(r, "textID"))
	if textID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "text id is required", http.StatusBadRequest))
		return
	}
	var req textPatchRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	view, err := h.editor.UpdateText(ctx, sessionID, textID, editor.TextPatch{
		Text:           req.Text,
		X:              req.X,
		Y:              req.Y,
		Width:          req.Width,
		Height:         req.Height,
		Rotation:       req.Rotation,
		FontFamily:     req.FontFamily,
		FontSize:       req.FontSize,
		FontWeight:     req.FontWeight,
		FontStyle:      req.FontStyle,
		TextAlign:      req.TextAlign,
		Color:          req.Color,
		LineHeight:     req.LineHeight,
		LetterSpacing:  req.LetterSpacing,
		TextDecoration: req.TextDecoration,
	})
	if err != nil {
		h.writeEditorError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, view)
}

func (h *SessionHandlers) removeText(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	textID := strings.TrimSpace(chi.URLParam(r, "textID"))
	if textID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "text id is required", http.StatusBadRequest))
		return
	}
	view, err := h.editor.RemoveText(ctx, sessionID, textID)
	if err != nil {
		h.writeEditorError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, view)
}

type selectionRequest struct {
	Kind   string `json:"kind"`
	TextID string `json:"text_id"`
}

func (h *SessionHandlers) selectLayer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	var req selectionRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	view, err := h.editor.Select(ctx, sessionID, editor.Selection{
		Kind:   editor.SelectionKind(req.Kind),
		TextID: req.TextID,
	})
	if err != nil {
		h.writeEditorError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, view)
}

type pointerRequest struct {
	Phase  string  `json:"phase"`
	Target string  `json:"target"`
	Handle string  `json:"handle"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Zoom   float64 `json:"zoom"`
}

func (h *SessionHandlers) pointer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	var req pointerRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	phase, err := services.ParsePointerPhase(req.Phase)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fmt.Sprintf("unknown pointer phase %q", req.Phase), http.StatusBadRequest))
		return
	}
	event := services.PointerEvent{
		Phase:  phase,
		Target: services.PointerTarget(req.Target),
		X:      req.X,
		Y:      req.Y,
		Zoom:   req.Zoom,
	}
	if event.Target == services.TargetHandle {
		handle, err := editor.ParseHandle(req.Handle)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fmt.Sprintf("unknown handle %q", req.Handle), http.StatusBadRequest))
			return
		}
		event.Handle = handle
	}

	view, err := h.editor.Pointer(ctx, sessionID, event)
	if err != nil {
		h.writeEditorError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, view)
}

func (h *SessionHandlers) validity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	report, err := h.editor.Validity(ctx, sessionID)
	if err != nil {
		h.writeEditorError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, report)
}

func (h *SessionHandlers) preview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	side := editor.ParseSide(r.URL.Query().Get("side"))
	mode := compositor.ParseMode(r.URL.Query().Get("mode"))

	res, err := h.editor.Preview(ctx, sessionID, side, mode)
	if err != nil {
		h.writeEditorError(ctx, w, err)
		return
	}
	switch {
	case res.Empty:
		w.WriteHeader(http.StatusNoContent)
	case len(res.PNG) > 0:
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(res.PNG)
	default:
		writeJSONResponse(w, http.StatusOK, map[string]string{"reference": res.Reference})
	}
}

func (h *SessionHandlers) artifact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	artifact, err := h.editor.Artifact(ctx, sessionID)
	if err != nil {
		h.writeEditorError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, artifact)
}

func (h *SessionHandlers) save(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	view, err := h.editor.Save(ctx, sessionID)
	if err != nil {
		h.writeEditorError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, view)
}

func (h *SessionHandlers) requireSession(w http.ResponseWriter, r *http.Request) (string, bool) {
	ctx := r.Context()
	if h.editor == nil {
		writeServiceUnavailable(ctx, w)
		return "", false
	}
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if sessionID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "session id is required", http.StatusBadRequest))
		return "", false
	}
	return sessionID, true
}

func (h *SessionHandlers) writeEditorError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("session_not_found", "session not found", http.StatusNotFound))
	case errors.Is(err, editor.ErrTextLayerNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("text_layer_not_found", "text layer not found", http.StatusNotFound))
	case errors.Is(err, editor.ErrNoImageLayer):
		httpx.WriteError(ctx, w, httpx.NewError("no_image_layer", "no image layer on the active side", http.StatusConflict))
	case errors.Is(err, editor.ErrInteractionActive):
		httpx.WriteError(ctx, w, httpx.NewError("interaction_active", "another drag or resize is already active", http.StatusConflict))
	case errors.Is(err, services.ErrEditorInvalidInput),
		errors.Is(err, stores.ErrUploadInvalidInput),
		errors.Is(err, editor.ErrUnsupportedHandle),
		errors.Is(err, editor.ErrInteractionIdle):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, stores.ErrDesignNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("design_not_found", "design not found", http.StatusNotFound))
	case errors.Is(err, stores.ErrUploadRejected), errors.Is(err, stores.ErrDesignRejected):
		httpx.WriteError(ctx, w, httpx.NewError("store_rejected", "the backing store rejected the request", http.StatusUnprocessableEntity))
	case errors.Is(err, stores.ErrUploadUnavailable), errors.Is(err, stores.ErrDesignUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "a backing store is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "internal server error", http.StatusInternalServerError))
	}
}

func writeServiceUnavailable(ctx context.Context, w http.ResponseWriter) {
	httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "editor service unavailable", http.StatusServiceUnavailable))
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("request body is required")
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSessionRequestBody)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
