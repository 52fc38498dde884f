package apihttp

import (
	"net/http"
	"os"
	"strings"
	"time"

	"mediastream/internal/domain"
	"mediastream/internal/usecase"
)

type assetResponse struct {
	ID              domain.AssetID `json:"id"`
	Title           string         `json:"title"`
	PrimaryHandle   domain.Handle  `json:"primaryHandle"`
	Parts           []partResponse `json:"parts"`
	DurationSeconds float64        `json:"durationSeconds"`
	SizeBytes       int64          `json:"sizeBytes"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

type partResponse struct {
	Index           int           `json:"index"`
	Handle          domain.Handle `json:"handle"`
	DurationSeconds float64       `json:"durationSeconds"`
}

func toAssetResponse(asset domain.Asset) assetResponse {
	parts := make([]partResponse, 0, len(asset.Parts))
	for _, p := range asset.OrderedParts() {
		parts = append(parts, partResponse{
			Index:           p.Index,
			Handle:          p.Handle,
			DurationSeconds: p.DurationSeconds,
		})
	}
	return assetResponse{
		ID:              asset.ID,
		Title:           asset.Title,
		PrimaryHandle:   asset.PrimaryHandle,
		Parts:           parts,
		DurationSeconds: asset.TotalDurationSeconds,
		SizeBytes:       asset.SizeBytes,
		CreatedAt:       asset.CreatedAt,
		UpdatedAt:       asset.UpdatedAt,
	}
}

// handleVideos handles the collection routes.
// POST /videos uploads a file and runs it through the ingest pipeline;
// GET /videos lists known assets.
func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleIngest(w, r)
	case http.MethodGet:
		assets, err := s.listAssets.Execute(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		out := make([]assetResponse, 0, len(assets))
		for _, a := range assets {
			out = append(out, toAssetResponse(a))
		}
		writeJSON(w, http.StatusOK, out)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET or POST")
	}
}

// handleVideoByID handles GET and DELETE on /videos/{id}.
func (s *Server) handleVideoByID(w http.ResponseWriter, r *http.Request) {
	id := domain.AssetID(strings.TrimPrefix(r.URL.Path, "/videos/"))
	if id == "" || strings.Contains(string(id), "/") {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid asset id")
		return
	}
	switch r.Method {
	case http.MethodGet:
		asset, err := s.getAsset.Execute(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAssetResponse(asset))
	case http.MethodDelete:
		if s.deleteAsset == nil {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "delete not available")
			return
		}
		if err := s.deleteAsset.Execute(r.Context(), id); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET or DELETE")
	}
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.ingestVideo == nil {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "ingest not available")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "multipart field 'file' is required")
		return
	}
	defer file.Close()

	path, err := saveUploadedFile(file, header.Filename)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "could not store upload")
		return
	}

	asset, err := s.ingestVideo.Execute(r.Context(), usecase.IngestVideoInput{
		FilePath: path,
		Title:    strings.TrimSpace(r.FormValue("title")),
	})
	if err != nil {
		os.Remove(path)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAssetResponse(asset))
}
