package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"recipebox/internal/config"
	"recipebox/internal/model"
	"recipebox/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// pngBytes 是一个最小的合法 PNG 文件头，足够内容嗅探判定类型。
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

func multipartImage(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("image", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return body, mw.FormDataContentType()
}

func newUploadServer(t *testing.T, recipes RecipeStore) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := &Server{
		cfg: &config.Config{
			Upload: config.UploadConfig{Dir: t.TempDir(), MaxUploadBytes: 1 << 20},
		},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		recipes: recipes,
	}
	return s, gin.New()
}

func TestUploadImage_Normal(t *testing.T) {
	var storedFilename string
	recipes := &mockRecipeStore{
		getFunc: func(ctx context.Context, ownerID, id uint) (*model.Recipe, error) {
			return &model.Recipe{ID: id, Title: "Pancakes", Price: decimal.Zero}, nil
		},
		setImageFunc: func(ctx context.Context, ownerID, id uint, filename string) (*model.Recipe, error) {
			storedFilename = filename
			return &model.Recipe{ID: id, Title: "Pancakes", Price: decimal.Zero, Image: filename}, nil
		},
	}
	s, r := newUploadServer(t, recipes)
	r.POST("/recipes/:id/upload-image", asUser(1, s.handleUploadImage))

	body, contentType := multipartImage(t, "photo.png", pngBytes)
	req := httptest.NewRequest(http.MethodPost, "/recipes/1/upload-image", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if storedFilename == "" || !strings.HasSuffix(storedFilename, ".png") {
		t.Fatalf("expected a stored .png filename, got %q", storedFilename)
	}
	if storedFilename == "photo.png" {
		t.Fatalf("stored filename must be randomized, got %q", storedFilename)
	}

	// 文件确实写到了上传目录
	if _, err := os.Stat(filepath.Join(s.cfg.Upload.Dir, "recipes", storedFilename)); err != nil {
		t.Fatalf("expected stored file to exist: %v", err)
	}

	var resp struct {
		ID    uint   `json:"id"`
		Image string `json:"image"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Image != "/media/recipes/"+storedFilename {
		t.Fatalf("unexpected image url: %q", resp.Image)
	}
}

func TestUploadImage_NotAnImage(t *testing.T) {
	recipes := &mockRecipeStore{
		getFunc: func(ctx context.Context, ownerID, id uint) (*model.Recipe, error) {
			return &model.Recipe{ID: id, Title: "Pancakes", Price: decimal.Zero}, nil
		},
		setImageFunc: func(ctx context.Context, ownerID, id uint, filename string) (*model.Recipe, error) {
			t.Fatal("store must not be called for a rejected upload")
			return nil, nil
		},
	}
	s, r := newUploadServer(t, recipes)
	r.POST("/recipes/:id/upload-image", asUser(1, s.handleUploadImage))

	body, contentType := multipartImage(t, "notes.png", []byte("plain text pretending to be a png"))
	req := httptest.NewRequest(http.MethodPost, "/recipes/1/upload-image", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestUploadImage_MissingFile(t *testing.T) {
	recipes := &mockRecipeStore{
		getFunc: func(ctx context.Context, ownerID, id uint) (*model.Recipe, error) {
			return &model.Recipe{ID: id, Title: "Pancakes", Price: decimal.Zero}, nil
		},
	}
	s, r := newUploadServer(t, recipes)
	r.POST("/recipes/:id/upload-image", asUser(1, s.handleUploadImage))

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/recipes/1/upload-image", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestUploadImage_NotOwned(t *testing.T) {
	recipes := &mockRecipeStore{
		getFunc: func(ctx context.Context, ownerID, id uint) (*model.Recipe, error) {
			return nil, store.ErrNotFound
		},
	}
	s, r := newUploadServer(t, recipes)
	r.POST("/recipes/:id/upload-image", asUser(1, s.handleUploadImage))

	body, contentType := multipartImage(t, "photo.png", pngBytes)
	req := httptest.NewRequest(http.MethodPost, "/recipes/1/upload-image", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestImageFilename(t *testing.T) {
	got := imageFilename("photo.JPG", ".png")
	if !strings.HasSuffix(got, ".jpg") {
		t.Fatalf("expected lowercased original extension, got %q", got)
	}
	got = imageFilename("no-extension", ".png")
	if !strings.HasSuffix(got, ".png") {
		t.Fatalf("expected sniffed extension fallback, got %q", got)
	}
	if a, b := imageFilename("a.png", ".png"), imageFilename("a.png", ".png"); a == b {
		t.Fatalf("filenames must be unique, got %q twice", a)
	}
}
