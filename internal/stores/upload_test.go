package stores

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestValidateUpload(t *testing.T) {
	client, err := NewUploadClient(UploadClientOptions{BaseURL: "http://store.local", MaxBytes: 100})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	tests := []struct {
		name        string
		contentType string
		size        int64
		wantErr     bool
	}{
		{"png ok", "image/png", 50, false},
		{"jpeg ok", "image/jpeg", 50, false},
		{"jpg alias ok", "image/jpg", 50, false},
		{"webp ok", "image/webp", 50, false},
		{"gif ok", "image/gif", 50, false},
		{"charset parameter ignored", "image/png; charset=binary", 50, false},
		{"svg rejected", "image/svg+xml", 50, true},
		{"pdf rejected", "application/pdf", 50, true},
		{"empty file", "image/png", 0, true},
		{"oversized", "image/png", 101, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := client.ValidateUpload(tc.contentType, tc.size)
			if tc.wantErr && !errors.Is(err, ErrUploadInvalidInput) {
				t.Fatalf("err = %v, want ErrUploadInvalidInput", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestUploadRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/uploads" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			defer file.Close()
			if header.Filename != "photo.png" {
				t.Errorf("filename = %q", header.Filename)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"up_1","file_url":"https://cdn/up_1.png","thumbnail_url":"https://cdn/up_1_t.png"}`))
	}))
	defer srv.Close()

	client, err := NewUploadClient(UploadClientOptions{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	stored, err := client.Upload(context.Background(), "photo.png", "image/png", []byte("fakepngdata"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if stored.ID != "up_1" || stored.FileURL != "https://cdn/up_1.png" || stored.ThumbnailURL != "https://cdn/up_1_t.png" {
		t.Fatalf("descriptor = %+v", stored)
	}
}

func TestUploadValidationAbortsBeforeRequest(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	client, err := NewUploadClient(UploadClientOptions{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Upload(context.Background(), "doc.pdf", "application/pdf", []byte("x")); !errors.Is(err, ErrUploadInvalidInput) {
		t.Fatalf("err = %v, want ErrUploadInvalidInput", err)
	}
	if calls != 0 {
		t.Fatalf("store saw %d requests, want 0 for locally invalid input", calls)
	}
}

func TestUploadStoreErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"rejected", http.StatusUnprocessableEntity, ErrUploadRejected},
		{"unavailable", http.StatusBadGateway, ErrUploadUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tc.status)
			}))
			defer srv.Close()

			client, err := NewUploadClient(UploadClientOptions{BaseURL: srv.URL})
			if err != nil {
				t.Fatalf("new client: %v", err)
			}
			_, err = client.Upload(context.Background(), "a.png", "image/png", []byte("x"))
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestNewUploadClientRequiresBaseURL(t *testing.T) {
	if _, err := NewUploadClient(UploadClientOptions{BaseURL: "  "}); err == nil {
		t.Fatal("empty base url accepted")
	}
	client, err := NewUploadClient(UploadClientOptions{BaseURL: "http://store.local/"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if !strings.HasSuffix(client.baseURL, "store.local") {
		t.Fatalf("base url not trimmed: %q", client.baseURL)
	}
}
