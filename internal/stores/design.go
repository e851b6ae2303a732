package stores

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

var (
	// ErrDesignNotFound indicates the design id is unknown to the store.
	ErrDesignNotFound = errors.New("design store: not found")
	// ErrDesignRejected indicates the store refused the payload.
	ErrDesignRejected = errors.New("design store: rejected")
	// ErrDesignUnavailable indicates the store could not be reached.
	ErrDesignUnavailable = errors.New("design store: unavailable")
)

// CanvasState is the geometry-only representation of one side's image layer
// as the Design Store persists it. Raw pixels are never part of this record.
type CanvasState struct {
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
	Rotation      float64 `json:"rotation"`
	NaturalWidth  float64 `json:"naturalWidth"`
	NaturalHeight float64 `json:"naturalHeight"`
}

// TextLayerRecord is the persisted attribute set of one text layer.
type TextLayerRecord struct {
	ID             string  `json:"id"`
	Text           string  `json:"text"`
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	Width          float64 `json:"width"`
	Height         float64 `json:"height"`
	Rotation       float64 `json:"rotation"`
	FontFamily     string  `json:"fontFamily"`
	FontSize       float64 `json:"fontSize"`
	FontWeight     string  `json:"fontWeight"`
	FontStyle      string  `json:"fontStyle"`
	TextAlign      string  `json:"textAlign"`
	Color          string  `json:"color"`
	LineHeight     float64 `json:"lineHeight"`
	LetterSpacing  float64 `json:"letterSpacing"`
	TextDecoration string  `json:"textDecoration"`
}

// EditState is the restoration payload for a design. The image URLs carry
// the side's baked preview; the background URLs carry the template asset
// without text, used when text layers are restored independently.
type EditState struct {
	FrontCanvasState   *CanvasState      `json:"front_canvas_state,omitempty"`
	BackCanvasState    *CanvasState      `json:"back_canvas_state,omitempty"`
	FrontImageURL      string            `json:"front_image_url,omitempty"`
	BackImageURL       string            `json:"back_image_url,omitempty"`
	FrontBackgroundURL string            `json:"front_background_url,omitempty"`
	BackBackgroundURL  string            `json:"back_background_url,omitempty"`
	FrontTextLayers    []TextLayerRecord `json:"front_text_layers,omitempty"`
	BackTextLayers     []TextLayerRecord `json:"back_text_layers,omitempty"`
}

// SavePayload is the idempotent upsert body for a design's layer geometry.
type SavePayload struct {
	FrontCanvasState *CanvasState      `json:"front_canvas_state"`
	BackCanvasState  *CanvasState      `json:"back_canvas_state"`
	FrontTextLayers  []TextLayerRecord `json:"front_text_layers"`
	BackTextLayers   []TextLayerRecord `json:"back_text_layers"`
}

// DesignClient talks to the Design Store.
type DesignClient struct {
	baseURL   string
	client    *http.Client
	authToken string
}

// DesignClientOptions configures a DesignClient.
type DesignClientOptions struct {
	BaseURL    string
	HTTPClient *http.Client
	// AuthToken, when set, is sent as a bearer token on every request.
	AuthToken string
}

// NewDesignClient constructs a client for the Design Store.
func NewDesignClient(opts DesignClientOptions) (*DesignClient, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("design store: base url is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: clientTimeout}
	}
	return &DesignClient{
		baseURL:   base,
		client:    client,
		authToken: strings.TrimSpace(opts.AuthToken),
	}, nil
}

// GetEditState fetches the persisted geometry for a design.
func (c *DesignClient) GetEditState(ctx context.Context, designID string) (EditState, error) {
	designID = strings.TrimSpace(designID)
	if designID == "" {
		return EditState{}, fmt.Errorf("%w: design id is required", ErrDesignRejected)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.designURL(designID, "edit"), nil)
	if err != nil {
		return EditState{}, fmt.Errorf("%w: %v", ErrDesignUnavailable, err)
	}

	resp, err := c.do(req)
	if err != nil {
		return EditState{}, fmt.Errorf("%w: %v", ErrDesignUnavailable, err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return EditState{}, err
	}

	var state EditState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return EditState{}, fmt.Errorf("%w: decode response: %v", ErrDesignUnavailable, err)
	}
	return state, nil
}

// SaveCanvasState upserts the per-side geometry. The call is idempotent on
// the store side and safe with only one side populated.
func (c *DesignClient) SaveCanvasState(ctx context.Context, designID string, payload SavePayload) error {
	designID = strings.TrimSpace(designID)
	if designID == "" {
		return fmt.Errorf("%w: design id is required", ErrDesignRejected)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: encode payload: %v", ErrDesignRejected, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.designURL(designID, "canvas-state"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDesignUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDesignUnavailable, err)
	}
	defer resp.Body.Close()

	return c.checkStatus(resp)
}

// UploadSideImage associates a raw file with a side of the design,
// independent of any geometry save.
func (c *DesignClient) UploadSideImage(ctx context.Context, designID, side, fileName string, data []byte) error {
	designID = strings.TrimSpace(designID)
	if designID == "" {
		return fmt.Errorf("%w: design id is required", ErrDesignRejected)
	}
	if strings.TrimSpace(fileName) == "" {
		fileName = "image"
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("side", side); err != nil {
		return fmt.Errorf("%w: %v", ErrDesignUnavailable, err)
	}
	part, err := writer.CreateFormFile("image", fileName)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDesignUnavailable, err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("%w: %v", ErrDesignUnavailable, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrDesignUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.designURL(designID, "upload"), &body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDesignUnavailable, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDesignUnavailable, err)
	}
	defer resp.Body.Close()

	return c.checkStatus(resp)
}

// CopyFromUpload promotes a library image into the design's own asset set.
func (c *DesignClient) CopyFromUpload(ctx context.Context, designID, uploadID, side string) error {
	designID = strings.TrimSpace(designID)
	uploadID = strings.TrimSpace(uploadID)
	if designID == "" || uploadID == "" {
		return fmt.Errorf("%w: design id and upload id are required", ErrDesignRejected)
	}

	body, err := json.Marshal(map[string]string{"upload_id": uploadID, "side": side})
	if err != nil {
		return fmt.Errorf("%w: encode payload: %v", ErrDesignRejected, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.designURL(designID, "copy-from-upload"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDesignUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDesignUnavailable, err)
	}
	defer resp.Body.Close()

	return c.checkStatus(resp)
}

func (c *DesignClient) do(req *http.Request) (*http.Response, error) {
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	return c.client.Do(req)
}

func (c *DesignClient) designURL(designID, suffix string) string {
	return fmt.Sprintf("%s/design/%s/%s", c.baseURL, url.PathEscape(designID), suffix)
}

func (c *DesignClient) checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: status %d", ErrDesignNotFound, resp.StatusCode)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("%w: status %d: %s", ErrDesignRejected, resp.StatusCode, readErrorBody(resp.Body))
	default:
		return fmt.Errorf("%w: status %d", ErrDesignUnavailable, resp.StatusCode)
	}
}
