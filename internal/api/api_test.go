package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/imgclean/internal/apperr"
	"github.com/starford/imgclean/internal/models"
	"github.com/starford/imgclean/internal/storage"
	"github.com/starford/imgclean/internal/testutil"
)

type fakeService struct {
	runs    []models.Run
	images  map[string][]models.Image
	backups []models.Backup
	err     error
}

func (f *fakeService) Runs(context.Context, int) ([]models.Run, error) {
	return f.runs, f.err
}

func (f *fakeService) RunImages(_ context.Context, id string) ([]models.Image, error) {
	if f.err != nil {
		return nil, f.err
	}
	imgs, ok := f.images[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return imgs, nil
}

func (f *fakeService) Backups(context.Context) ([]models.Backup, error) {
	return f.backups, f.err
}

func testEnv(t *testing.T, svc Service) (http.Handler, string) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return NewRouter(svc, fs), fs.Root()
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealth(t *testing.T) {
	router, _ := testEnv(t, &fakeService{})
	w := get(t, router, "/health/live")
	if w.Code != http.StatusOK || w.Body.String() != "{\"status\":\"ok\"}\n" {
		t.Errorf("health = %d %q", w.Code, w.Body.String())
	}
}

func TestListRuns(t *testing.T) {
	router, _ := testEnv(t, &fakeService{runs: []models.Run{{ID: "r1", Mode: models.ModeClean}}})
	w := get(t, router, "/api/runs?limit=5")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body RunList
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Runs) != 1 || body.Runs[0].ID != "r1" {
		t.Errorf("runs = %+v", body.Runs)
	}

	router, _ = testEnv(t, &fakeService{})
	if w := get(t, router, "/api/runs"); w.Body.String() != "{\"runs\":[]}\n" {
		t.Errorf("empty list = %q", w.Body.String())
	}
}

func TestListRuns_CatalogDisabled(t *testing.T) {
	router, _ := testEnv(t, &fakeService{err: apperr.ErrCatalogDisabled})
	if w := get(t, router, "/api/runs"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", w.Code)
	}
}

func TestRunImages(t *testing.T) {
	svc := &fakeService{images: map[string][]models.Image{}}
	router, root := testEnv(t, svc)
	inside := filepath.Join(root, "app_12345678", "20240101_000000", "image_001.png")
	svc.images["r1"] = []models.Image{
		{RunID: "r1", Sequence: 1, Path: inside},
		{RunID: "r1", Sequence: 2, Path: "/elsewhere/image_002.png"},
	}

	w := get(t, router, "/api/runs/r1/images")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body ImageList
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Images) != 2 {
		t.Fatalf("images = %+v", body.Images)
	}
	if body.Images[0].URL != "/images/app_12345678/20240101_000000/image_001.png" {
		t.Errorf("url = %q", body.Images[0].URL)
	}
	if body.Images[1].URL != "" {
		t.Errorf("outside image got url %q", body.Images[1].URL)
	}

	if w := get(t, router, "/api/runs/nope/images"); w.Code != http.StatusNotFound {
		t.Errorf("unknown run status = %d", w.Code)
	}
}

func TestListBackups(t *testing.T) {
	router, _ := testEnv(t, &fakeService{backups: []models.Backup{{Name: "c.json.backup.1", Kind: "backup", Size: 3}}})
	w := get(t, router, "/api/backups")
	var body BackupList
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Backups) != 1 || body.Backups[0].Size != 3 {
		t.Errorf("backups = %+v", body.Backups)
	}
}

func TestServeImage(t *testing.T) {
	router, root := testEnv(t, &fakeService{})
	png := testutil.PNGBytes(64)
	testutil.WriteFile(t, root, filepath.Join("proj_1", "s", "image_001.png"), png)

	w := get(t, router, "/images/proj_1/s/image_001.png")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %s", ct)
	}
	if w.Body.Len() != len(png) {
		t.Errorf("body = %d bytes", w.Body.Len())
	}

	if w := get(t, router, "/images/proj_1/missing.png"); w.Code != http.StatusNotFound {
		t.Errorf("missing status = %d", w.Code)
	}
	if w := get(t, router, "/images/proj_1"); w.Code != http.StatusNotFound {
		t.Errorf("directory status = %d", w.Code)
	}
}

func TestServeImage_Traversal(t *testing.T) {
	router, root := testEnv(t, &fakeService{})
	secret := filepath.Join(filepath.Dir(root), "secret.txt")
	_ = os.WriteFile(secret, []byte("secret"), 0o644)
	t.Cleanup(func() { os.Remove(secret) })

	for _, p := range []string{"/images/..%2Fsecret.txt", "/images/%2E%2E/secret.txt"} {
		w := get(t, router, p)
		if w.Code == http.StatusOK {
			t.Errorf("%s served outside the images dir", p)
		}
	}
}

func TestServeImage_NoImagesDir(t *testing.T) {
	router := NewRouter(&fakeService{}, nil)
	if w := get(t, router, "/images/a.png"); w.Code != http.StatusNotFound {
		t.Errorf("status = %d", w.Code)
	}
}
