package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/mprint/editor/internal/compositor"
	"github.com/mprint/editor/internal/editor"
	"github.com/mprint/editor/internal/services"
	"github.com/mprint/editor/internal/stores"
)

type stubEditorService struct {
	createFn   func(ctx context.Context, cmd services.CreateSessionCommand) (services.SessionView, error)
	getFn      func(ctx context.Context, id string) (services.SessionView, error)
	dropFn     func(ctx context.Context, id string) error
	attachFn   func(ctx context.Context, cmd services.AttachImageCommand) (services.SessionView, error)
	pointerFn  func(ctx context.Context, id string, event services.PointerEvent) (services.SessionView, error)
	previewFn  func(ctx context.Context, id string, side editor.Side, mode compositor.Mode) (compositor.Result, error)
	validityFn func(ctx context.Context, id string) (services.ValidityReport, error)
	artifactFn func(ctx context.Context, id string) (services.Artifact, error)
	saveFn     func(ctx context.Context, id string) (services.SessionView, error)
	selectFn   func(ctx context.Context, id string, sel editor.Selection) (services.SessionView, error)
	textFn     func(ctx context.Context, id string, layer editor.TextLayer) (services.SessionView, error)
	fillFn     func(ctx context.Context, id string, target editor.FillTarget) (services.SessionView, error)
}

func (s *stubEditorService) CreateSession(ctx context.Context, cmd services.CreateSessionCommand) (services.SessionView, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.SessionView{SessionID: "ses_stub"}, nil
}

func (s *stubEditorService) GetSession(ctx context.Context, id string) (services.SessionView, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id)
	}
	return services.SessionView{SessionID: id}, nil
}

func (s *stubEditorService) DropSession(ctx context.Context, id string) error {
	if s.dropFn != nil {
		return s.dropFn(ctx, id)
	}
	return nil
}

func (s *stubEditorService) SwitchSide(ctx context.Context, id string, side editor.Side) (services.SessionView, error) {
	return services.SessionView{SessionID: id, ActiveSide: side}, nil
}

func (s *stubEditorService) SetDimensions(ctx context.Context, id string, size editor.PrintSize, orientation editor.Orientation) (services.SessionView, error) {
	return services.SessionView{SessionID: id, Preset: editor.NewCardPreset(size, orientation)}, nil
}

func (s *stubEditorService) AttachImage(ctx context.Context, cmd services.AttachImageCommand) (services.SessionView, error) {
	if s.attachFn != nil {
		return s.attachFn(ctx, cmd)
	}
	return services.SessionView{SessionID: cmd.SessionID}, nil
}

func (s *stubEditorService) AttachLibraryImage(ctx context.Context, cmd services.AttachLibraryImageCommand) (services.SessionView, error) {
	return services.SessionView{SessionID: cmd.SessionID}, nil
}

func (s *stubEditorService) UpdateImage(ctx context.Context, id string, patch editor.ImagePatch) (services.SessionView, error) {
	return services.SessionView{SessionID: id}, nil
}

func (s *stubEditorService) RemoveImage(ctx context.Context, id string) (services.SessionView, error) {
	return services.SessionView{SessionID: id}, nil
}

func (s *stubEditorService) DuplicateImage(ctx context.Context, id string) (services.SessionView, error) {
	return services.SessionView{SessionID: id}, nil
}

func (s *stubEditorService) FillImage(ctx context.Context, id string, target editor.FillTarget) (services.SessionView, error) {
	if s.fillFn != nil {
		return s.fillFn(ctx, id, target)
	}
	return services.SessionView{SessionID: id}, nil
}

func (s *stubEditorService) AddText(ctx context.Context, id string, layer editor.TextLayer) (services.SessionView, error) {
	if s.textFn != nil {
		return s.textFn(ctx, id, layer)
	}
	return services.SessionView{SessionID: id}, nil
}

func (s *stubEditorService) UpdateText(ctx context.Context, id, layerID string, patch editor.TextPatch) (services.SessionView, error) {
	return services.SessionView{SessionID: id}, nil
}

func (s *stubEditorService) RemoveText(ctx context.Context, id, layerID string) (services.SessionView, error) {
	return services.SessionView{SessionID: id}, nil
}

func (s *stubEditorService) Select(ctx context.Context, id string, sel editor.Selection) (services.SessionView, error) {
	if s.selectFn != nil {
		return s.selectFn(ctx, id, sel)
	}
	return services.SessionView{SessionID: id, Selection: sel}, nil
}

func (s *stubEditorService) Pointer(ctx context.Context, id string, event services.PointerEvent) (services.SessionView, error) {
	if s.pointerFn != nil {
		return s.pointerFn(ctx, id, event)
	}
	return services.SessionView{SessionID: id}, nil
}

func (s *stubEditorService) Validity(ctx context.Context, id string) (services.ValidityReport, error) {
	if s.validityFn != nil {
		return s.validityFn(ctx, id)
	}
	return services.ValidityReport{}, nil
}

func (s *stubEditorService) Preview(ctx context.Context, id string, side editor.Side, mode compositor.Mode) (compositor.Result, error) {
	if s.previewFn != nil {
		return s.previewFn(ctx, id, side, mode)
	}
	return compositor.Result{PNG: []byte("png")}, nil
}

func (s *stubEditorService) Artifact(ctx context.Context, id string) (services.Artifact, error) {
	if s.artifactFn != nil {
		return s.artifactFn(ctx, id)
	}
	return services.Artifact{}, nil
}

func (s *stubEditorService) Save(ctx context.Context, id string) (services.SessionView, error) {
	if s.saveFn != nil {
		return s.saveFn(ctx, id)
	}
	return services.SessionView{SessionID: id}, nil
}

func newSessionRouter(svc services.EditorService) chi.Router {
	handlers := NewSessionHandlers(svc)
	return NewRouter(WithSessionRoutes(handlers.Routes))
}

func TestCreateSessionEndpoint(t *testing.T) {
	var captured services.CreateSessionCommand
	stub := &stubEditorService{
		createFn: func(ctx context.Context, cmd services.CreateSessionCommand) (services.SessionView, error) {
			captured = cmd
			return services.SessionView{SessionID: "ses_1"}, nil
		},
	}
	router := newSessionRouter(stub)

	body := `{"design_id":"dsg_1","print_length_inches":3.5,"print_width_inches":2,"orientation":"vertical","corner_radius":10}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != "/api/v1/sessions/ses_1" {
		t.Fatalf("Location = %q", got)
	}
	if captured.DesignID != "dsg_1" || captured.Orientation != editor.OrientationVertical {
		t.Fatalf("captured = %+v", captured)
	}
	if captured.CornerRadius != 10 {
		t.Fatalf("corner radius = %g", captured.CornerRadius)
	}

	var view services.SessionView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if view.SessionID != "ses_1" {
		t.Fatalf("session id = %q", view.SessionID)
	}
}

func TestCreateSessionRejectsBadJSON(t *testing.T) {
	router := newSessionRouter(&stubEditorService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader("{nope"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if payload["error"] != "invalid_request" {
		t.Fatalf("error code = %v", payload["error"])
	}
}

func TestGetSessionNotFound(t *testing.T) {
	stub := &stubEditorService{
		getFn: func(ctx context.Context, id string) (services.SessionView, error) {
			return services.SessionView{}, services.ErrSessionNotFound
		},
	}
	router := newSessionRouter(stub)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/ses_missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestAttachImageEndpoint(t *testing.T) {
	var captured services.AttachImageCommand
	stub := &stubEditorService{
		attachFn: func(ctx context.Context, cmd services.AttachImageCommand) (services.SessionView, error) {
			captured = cmd
			return services.SessionView{SessionID: cmd.SessionID}, nil
		},
	}
	router := newSessionRouter(stub)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("side", "back"); err != nil {
		t.Fatalf("write side: %v", err)
	}
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{`form-data; name="image"; filename="photo.png"`}
	header["Content-Type"] = []string{"image/png"}
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write([]byte("fake png bytes")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/ses_1/image", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	if captured.Side != editor.SideBack {
		t.Fatalf("side = %s, want back", captured.Side)
	}
	if captured.FileName != "photo.png" || captured.ContentType != "image/png" {
		t.Fatalf("file meta = %q %q", captured.FileName, captured.ContentType)
	}
	if string(captured.Data) != "fake png bytes" {
		t.Fatalf("data = %q", captured.Data)
	}
}

func TestAttachImageRequiresFile(t *testing.T) {
	router := newSessionRouter(&stubEditorService{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("side", "front")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/ses_1/image", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUploadValidationErrorMapsTo400(t *testing.T) {
	stub := &stubEditorService{
		attachFn: func(ctx context.Context, cmd services.AttachImageCommand) (services.SessionView, error) {
			return services.SessionView{}, stores.ErrUploadInvalidInput
		},
	}
	router := newSessionRouter(stub)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("image", "nope.txt")
	_, _ = part.Write([]byte("text"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/ses_1/image", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPointerEndpointParsesHandle(t *testing.T) {
	var captured services.PointerEvent
	stub := &stubEditorService{
		pointerFn: func(ctx context.Context, id string, event services.PointerEvent) (services.SessionView, error) {
			captured = event
			return services.SessionView{SessionID: id}, nil
		},
	}
	router := newSessionRouter(stub)

	body := `{"phase":"down","target":"handle","handle":"se","x":120,"y":80,"zoom":1.5}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/ses_1/pointer", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; body %s", rec.Code, rec.Body.String())
	}
	if captured.Phase != services.PhaseDown || captured.Target != services.TargetHandle {
		t.Fatalf("event = %+v", captured)
	}
	if captured.Handle != editor.HandleSE || captured.Zoom != 1.5 {
		t.Fatalf("event = %+v", captured)
	}
}

func TestPointerEndpointRejectsUnknownPhase(t *testing.T) {
	router := newSessionRouter(&stubEditorService{})

	body := `{"phase":"hover","target":"layer"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/ses_1/pointer", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPointerConflictWhenInteractionActive(t *testing.T) {
	stub := &stubEditorService{
		pointerFn: func(ctx context.Context, id string, event services.PointerEvent) (services.SessionView, error) {
			return services.SessionView{}, editor.ErrInteractionActive
		},
	}
	router := newSessionRouter(stub)

	body := `{"phase":"down","target":"layer"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/ses_1/pointer", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestPreviewEndpointServesPNG(t *testing.T) {
	stub := &stubEditorService{
		previewFn: func(ctx context.Context, id string, side editor.Side, mode compositor.Mode) (compositor.Result, error) {
			if side != editor.SideBack || mode != compositor.ModePrintCrop {
				t.Fatalf("side=%s mode=%s", side, mode)
			}
			return compositor.Result{PNG: []byte("rendered")}, nil
		},
	}
	router := newSessionRouter(stub)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/ses_1/preview?side=back&mode=print", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "image/png" {
		t.Fatalf("content type = %q", got)
	}
	if rec.Body.String() != "rendered" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestPreviewEndpointEmptySide(t *testing.T) {
	stub := &stubEditorService{
		previewFn: func(ctx context.Context, id string, side editor.Side, mode compositor.Mode) (compositor.Result, error) {
			return compositor.Result{Empty: true}, nil
		},
	}
	router := newSessionRouter(stub)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/ses_1/preview", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}

func TestPreviewEndpointReferenceFallback(t *testing.T) {
	stub := &stubEditorService{
		previewFn: func(ctx context.Context, id string, side editor.Side, mode compositor.Mode) (compositor.Result, error) {
			return compositor.Result{Reference: "https://img.example.com/raw.png"}, nil
		},
	}
	router := newSessionRouter(stub)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/ses_1/preview", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["reference"] != "https://img.example.com/raw.png" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestSaveEndpointStoreUnavailable(t *testing.T) {
	stub := &stubEditorService{
		saveFn: func(ctx context.Context, id string) (services.SessionView, error) {
			return services.SessionView{}, stores.ErrDesignUnavailable
		},
	}
	router := newSessionRouter(stub)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/ses_1/save", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestDropSessionEndpoint(t *testing.T) {
	dropped := ""
	stub := &stubEditorService{
		dropFn: func(ctx context.Context, id string) error {
			dropped = id
			return nil
		},
	}
	router := newSessionRouter(stub)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/ses_9", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if dropped != "ses_9" {
		t.Fatalf("dropped = %q", dropped)
	}
}

func TestTextLayerNotFoundMapsTo404(t *testing.T) {
	router := newSessionRouter(&stubEditorService{
		selectFn: func(ctx context.Context, id string, sel editor.Selection) (services.SessionView, error) {
			return services.SessionView{}, editor.ErrTextLayerNotFound
		},
	})

	body := `{"kind":"text","text_id":"txt_missing"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/ses_1/selection", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestAddTextEndpoint(t *testing.T) {
	var captured editor.TextLayer
	router := newSessionRouter(&stubEditorService{
		textFn: func(ctx context.Context, id string, layer editor.TextLayer) (services.SessionView, error) {
			captured = layer
			return services.SessionView{SessionID: id}, nil
		},
	})

	body := `{"text":"Hello","fontSize":32,"textAlign":"left"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/ses_1/texts", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", rec.Code, rec.Body.String())
	}
	if captured.Text != "Hello" || captured.FontSize != 32 || captured.TextAlign != "left" {
		t.Fatalf("captured = %+v", captured)
	}
}

func TestFillImageEndpoint(t *testing.T) {
	var captured editor.FillTarget
	router := newSessionRouter(&stubEditorService{
		fillFn: func(ctx context.Context, id string, target editor.FillTarget) (services.SessionView, error) {
			captured = target
			return services.SessionView{SessionID: id}, nil
		},
	})

	body := `{"target":"canvas"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/ses_1/image/fill", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	if captured != editor.FillCanvas {
		t.Fatalf("target = %q, want canvas", captured)
	}
}

func TestFillImageDefaultsToSafeArea(t *testing.T) {
	var captured editor.FillTarget
	router := newSessionRouter(&stubEditorService{
		fillFn: func(ctx context.Context, id string, target editor.FillTarget) (services.SessionView, error) {
			captured = target
			return services.SessionView{SessionID: id}, nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/ses_1/image/fill", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	if captured != editor.FillSafeArea {
		t.Fatalf("target = %q, want safe area", captured)
	}
}

func TestNilServiceUnavailable(t *testing.T) {
	router := newSessionRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/ses_1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestInternalErrorEnvelope(t *testing.T) {
	stub := &stubEditorService{
		getFn: func(ctx context.Context, id string) (services.SessionView, error) {
			return services.SessionView{}, errors.New("boom")
		},
	}
	router := newSessionRouter(stub)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/ses_1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["error"] != "internal_error" {
		t.Fatalf("error code = %v", payload["error"])
	}
	if payload["message"] == "boom" {
		t.Fatal("internal error details must not leak")
	}
}
