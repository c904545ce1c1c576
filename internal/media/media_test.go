package media

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestUploadWritesFile(t *testing.T) {
	dir := t.TempDir()
	u, err := NewDiskUploader(dir, "http://localhost:5000/")
	if err != nil {
		t.Fatal(err)
	}

	payload := []byte("\x89PNG fake")
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload)

	url, err := u.Upload(context.Background(), uri)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(url, "http://localhost:5000/uploads/") || !strings.HasSuffix(url, ".png") {
		t.Fatalf("url = %q", url)
	}

	got, err := os.ReadFile(filepath.Join(dir, filepath.Base(url)))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(payload) {
		t.Errorf("file contents = %q", got)
	}
}

func TestUploadRejects(t *testing.T) {
	u, err := NewDiskUploader(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		uri  string
		want error
	}{
		{"plain url", "https://example.com/a.png", ErrNotDataURI},
		{"not base64", "data:image/png,rawbytes", ErrNotDataURI},
		{"svg", "data:image/svg+xml;base64,PHN2Zy8+", ErrUnsupportedImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := u.Upload(context.Background(), tt.uri); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := u.Upload(context.Background(), "data:image/png;base64,!!!"); err == nil {
		t.Error("invalid base64 should fail")
	}
}

func TestIsDataURI(t *testing.T) {
	if !IsDataURI("data:image/png;base64,AAAA") {
		t.Error("data URI not detected")
	}
	if IsDataURI("/uploads/a.png") {
		t.Error("path misdetected as data URI")
	}
}
