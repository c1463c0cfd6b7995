package fetch

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

func TestFetch(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	src.SetNRGBA(2, 1, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
	data := encodePNG(t, src)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer ts.Close()

	img, err := Fetch(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 3 {
		t.Errorf("Expected 4x3 image, got %v", img.Bounds())
	}
	if got := img.NRGBAAt(2, 1); got != (color.NRGBA{R: 200, G: 100, B: 50, A: 255}) {
		t.Errorf("Pixel (2,1): got %v", got)
	}
}

func TestFetch_BadStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer ts.Close()

	if _, err := Fetch(context.Background(), ts.URL); err == nil {
		t.Error("Expected error for 404 response, got nil")
	}
}

func TestFetch_MalformedBytes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not an image"))
	}))
	defer ts.Close()

	if _, err := Fetch(context.Background(), ts.URL); err == nil {
		t.Error("Expected decode error, got nil")
	}
}

func TestFetch_ContextCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Fetch(ctx, ts.URL); err == nil {
		t.Error("Expected error for cancelled context, got nil")
	}
}

func TestLoadAndSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "img.png")

	src := image.NewNRGBA(image.Rect(0, 0, 5, 5))
	src.SetNRGBA(0, 0, color.NRGBA{R: 1, G: 2, B: 3, A: 255})

	if err := Save(path, src); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	img, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := img.NRGBAAt(0, 0); got != (color.NRGBA{R: 1, G: 2, B: 3, A: 255}) {
		t.Errorf("Pixel (0,0): got %v", got)
	}
}

func TestLoad_Missing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("Expected error for missing file, got nil")
	}
}

func TestSource_RoutesByScheme(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "local.png")
	if err := Save(path, image.NewNRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := Source(context.Background(), path); err != nil {
		t.Errorf("Source should load file paths: %v", err)
	}

	data := encodePNG(t, image.NewNRGBA(image.Rect(0, 0, 2, 2)))
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	defer ts.Close()

	if _, err := Source(context.Background(), ts.URL); err != nil {
		t.Errorf("Source should fetch URLs: %v", err)
	}
}

func TestToNRGBA_ZeroOrigin(t *testing.T) {
	src := image.NewNRGBA(image.Rect(5, 5, 15, 15))
	dst := ToNRGBA(src)

	if dst.Bounds().Min != (image.Point{}) {
		t.Errorf("Expected zero-origin bounds, got %v", dst.Bounds())
	}
	if dst.Bounds().Dx() != 10 || dst.Bounds().Dy() != 10 {
		t.Errorf("Expected 10x10, got %v", dst.Bounds())
	}
}
