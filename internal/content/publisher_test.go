package content

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nyuiela/revent/internal/publication/domain"
)

func TestPublishUploadsAssetThenDocument(t *testing.T) {
	var gotAssetBody []byte
	var gotDoc Document

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/upload":
			body, err := io.ReadAll(r.Body)
			if err != nil {
				t.Errorf("read asset body: %v", err)
			}
			gotAssetBody = body
			if r.Header.Get("Authorization") != "Bearer token-1" {
				t.Errorf("missing auth header on asset upload")
			}
			json.NewEncoder(w).Encode(map[string]string{"contentUrl": "https://cdn.example/poster.png"})
		case "/metadata":
			if err := json.NewDecoder(r.Body).Decode(&gotDoc); err != nil {
				t.Errorf("decode document: %v", err)
			}
			json.NewEncoder(w).Encode(map[string]string{"uri": "ipfs://bafydoc"})
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	publisher, err := NewPublisher(server.URL, "token-1")
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	ref, err := publisher.Publish(context.Background(), Document{Title: "Meetup", StartTime: 1, EndTime: 2},
		&Asset{Name: "poster.png", ContentType: "image/png", Data: []byte("png-bytes")})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if ref != "ipfs://bafydoc" {
		t.Fatalf("expected document uri, got %q", ref)
	}
	if string(gotAssetBody) != "png-bytes" {
		t.Fatalf("expected asset payload uploaded, got %q", gotAssetBody)
	}
	if gotDoc.Image != "https://cdn.example/poster.png" {
		t.Fatalf("expected document to reference uploaded asset, got %q", gotDoc.Image)
	}
}

func TestPublishSkipsAssetUploadWhenNoneStaged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/metadata" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{"uri": "ipfs://bafydoc"})
	}))
	defer server.Close()

	publisher, err := NewPublisher(server.URL, "")
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	ref, err := publisher.Publish(context.Background(), Document{Title: "Meetup"}, nil)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if ref != "ipfs://bafydoc" {
		t.Fatalf("expected document uri, got %q", ref)
	}
}

func TestPublishRejectsEmptyTitle(t *testing.T) {
	publisher, err := NewPublisher("http://localhost:1", "")
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	_, err = publisher.Publish(context.Background(), Document{Title: "  "}, nil)
	var validation *domain.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPublishNonSuccessStatusIsUploadError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	publisher, err := NewPublisher(server.URL, "")
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	_, err = publisher.Publish(context.Background(), Document{Title: "Meetup"}, nil)
	var upload *domain.UploadError
	if !errors.As(err, &upload) {
		t.Fatalf("expected upload error, got %v", err)
	}
	if upload.Target != "document" {
		t.Fatalf("expected document target, got %q", upload.Target)
	}
	if upload.Status != http.StatusBadGateway {
		t.Fatalf("expected 502 status, got %d", upload.Status)
	}
}

func TestPublishFailedAssetUploadAbortsDocumentUpload(t *testing.T) {
	documentUploads := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/upload":
			w.WriteHeader(http.StatusInternalServerError)
		case "/metadata":
			documentUploads++
		}
	}))
	defer server.Close()

	publisher, err := NewPublisher(server.URL, "")
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	_, err = publisher.Publish(context.Background(), Document{Title: "Meetup"},
		&Asset{Data: []byte("png-bytes")})
	var upload *domain.UploadError
	if !errors.As(err, &upload) {
		t.Fatalf("expected upload error, got %v", err)
	}
	if upload.Target != "asset" {
		t.Fatalf("expected asset target, got %q", upload.Target)
	}
	if documentUploads != 0 {
		t.Fatalf("expected no document upload after asset failure, got %d", documentUploads)
	}
}

func TestPublishCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
	}))
	defer server.Close()

	publisher, err := NewPublisher(server.URL, "")
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := publisher.Publish(ctx, Document{Title: "Meetup"}, nil); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
