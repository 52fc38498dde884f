package apihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"mediastream/internal/domain"
	"mediastream/internal/usecase"
)

type fakeListAssets struct {
	assets []domain.Asset
	err    error
}

func (l fakeListAssets) Execute(_ context.Context) ([]domain.Asset, error) {
	return l.assets, l.err
}

type fakeDeleteAsset struct {
	deleted []domain.AssetID
	err     error
}

func (d *fakeDeleteAsset) Execute(_ context.Context, id domain.AssetID) error {
	if d.err != nil {
		return d.err
	}
	d.deleted = append(d.deleted, id)
	return nil
}

type fakeIngest struct {
	gotInput usecase.IngestVideoInput
	asset    domain.Asset
	err      error
}

func (i *fakeIngest) Execute(_ context.Context, input usecase.IngestVideoInput) (domain.Asset, error) {
	i.gotInput = input
	if i.err != nil {
		return domain.Asset{}, i.err
	}
	return i.asset, nil
}

func TestListVideos(t *testing.T) {
	assets := []domain.Asset{
		{ID: "a1", Title: "one", PrimaryHandle: "h1"},
		{ID: "a2", Title: "two", PrimaryHandle: "h2"},
	}
	s := NewServer(fixedGetAsset{err: domain.ErrNotFound}, WithListAssets(fakeListAssets{assets: assets}))
	t.Cleanup(s.Close)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/videos", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var out []assetResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 || out[0].ID != "a1" || out[1].Title != "two" {
		t.Fatalf("unexpected payload: %+v", out)
	}
}

func TestGetVideoByID(t *testing.T) {
	asset := domain.Asset{
		ID:    "a1",
		Title: "movie",
		Parts: []domain.Part{
			{Index: 2, Handle: "h2"},
			{Index: 1, Handle: "h1"},
		},
	}
	s := NewServer(fixedGetAsset{asset: asset})
	t.Cleanup(s.Close)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/videos/a1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var out assetResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Parts) != 2 || out.Parts[0].Index != 1 || out.Parts[1].Index != 2 {
		t.Fatalf("parts not ordered by index: %+v", out.Parts)
	}
}

func TestDeleteVideo(t *testing.T) {
	del := &fakeDeleteAsset{}
	s := NewServer(fixedGetAsset{}, WithDeleteAsset(del))
	t.Cleanup(s.Close)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/videos/a1", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status %d, want 204", rec.Code)
	}
	if len(del.deleted) != 1 || del.deleted[0] != "a1" {
		t.Fatalf("delete not forwarded: %v", del.deleted)
	}
}

func TestIngestVideoUpload(t *testing.T) {
	ingest := &fakeIngest{asset: domain.Asset{ID: "new-1", Title: "clip"}}
	s := NewServer(fixedGetAsset{}, WithIngestVideo(ingest))
	t.Cleanup(s.Close)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "clip.mp4")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	fw.Write([]byte("video-bytes"))
	mw.WriteField("title", "  clip  ")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/videos", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var out assetResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.ID != "new-1" {
		t.Fatalf("id = %q", out.ID)
	}
	if ingest.gotInput.Title != "clip" {
		t.Fatalf("title not trimmed: %q", ingest.gotInput.Title)
	}
	if ingest.gotInput.FilePath == "" {
		t.Fatalf("uploaded file path not forwarded")
	}
}

func TestIngestVideoMissingFile(t *testing.T) {
	s := NewServer(fixedGetAsset{}, WithIngestVideo(&fakeIngest{}))
	t.Cleanup(s.Close)

	req := httptest.NewRequest(http.MethodPost, "/videos", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestVideoByIDRejectsNestedPath(t *testing.T) {
	s := NewServer(fixedGetAsset{})
	t.Cleanup(s.Close)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/videos/a1/extra", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}
