package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/otcheredev/dicom-catalog-indexer/internal/indexer"
	"github.com/rs/zerolog/log"
)

// IndexingHandler exposes the Indexer Coordinator's public API over HTTP.
type IndexingHandler struct {
	coordinator *indexer.Coordinator
}

// NewIndexingHandler creates a new indexing handler.
func NewIndexingHandler(coordinator *indexer.Coordinator) *IndexingHandler {
	return &IndexingHandler{coordinator: coordinator}
}

type addFileRequest struct {
	FilePath       string `json:"file_path"`
	DestinationDir string `json:"destination_dir"`
}

type addDirectoryRequest struct {
	DirPath        string `json:"dir_path"`
	DestinationDir string `json:"destination_dir"`
	IncludeHidden  bool   `json:"include_hidden"`
}

type addListOfFilesRequest struct {
	FilePaths      []string `json:"file_paths"`
	DestinationDir string   `json:"destination_dir"`
}

type addDicomdirRequest struct {
	DicomdirPath   string `json:"dicomdir_path"`
	DestinationDir string `json:"destination_dir"`
}

type boolResponse struct {
	OK bool `json:"ok"`
}

// AddFile submits a single file for indexing.
func (h *IndexingHandler) AddFile(w http.ResponseWriter, r *http.Request) {
	var req addFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FilePath == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	h.coordinator.AddFile(req.FilePath, req.DestinationDir)
	writeJSON(w, http.StatusAccepted, boolResponse{OK: true})
}

// AddDirectory submits a directory tree for recursive indexing.
func (h *IndexingHandler) AddDirectory(w http.ResponseWriter, r *http.Request) {
	var req addDirectoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DirPath == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	ok, err := h.coordinator.AddDirectory(req.DirPath, req.DestinationDir, req.IncludeHidden)
	if err != nil {
		log.Error().Err(err).Msg("failed to add directory")
		http.Error(w, "Failed to add directory", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, boolResponse{OK: ok})
}

// AddListOfFiles submits an explicit file list for indexing.
func (h *IndexingHandler) AddListOfFiles(w http.ResponseWriter, r *http.Request) {
	var req addListOfFilesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.FilePaths) == 0 {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	h.coordinator.AddListOfFiles(req.FilePaths, req.DestinationDir)
	writeJSON(w, http.StatusAccepted, boolResponse{OK: true})
}

// AddDicomdir submits a DICOMDIR manifest for indexing.
func (h *IndexingHandler) AddDicomdir(w http.ResponseWriter, r *http.Request) {
	var req addDicomdirRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DicomdirPath == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	ok, err := h.coordinator.AddDicomdir(req.DicomdirPath, req.DestinationDir)
	if err != nil {
		log.Error().Err(err).Msg("failed to add DICOMDIR")
		http.Error(w, "Failed to add DICOMDIR", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, boolResponse{OK: ok})
}

// Cancel requests cooperative cancellation of the current indexing run.
func (h *IndexingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.coordinator.Cancel()
	writeJSON(w, http.StatusAccepted, boolResponse{OK: true})
}

type statusResponse struct {
	Finished bool `json:"finished"`
}

// Status blocks (bounded by a timeout query param, default 30s) until
// the current batch finishes or the timeout elapses.
func (h *IndexingHandler) Status(w http.ResponseWriter, r *http.Request) {
	timeout := 30 * time.Second
	if raw := r.URL.Query().Get("timeout_ms"); raw != "" {
		if ms, err := time.ParseDuration(raw + "ms"); err == nil {
			timeout = ms
		}
	}
	finished := h.coordinator.WaitForImportFinished(timeout)
	writeJSON(w, http.StatusOK, statusResponse{Finished: finished})
}

type countsResponse struct {
	Patients  int64 `json:"patients"`
	Studies   int64 `json:"studies"`
	Series    int64 `json:"series"`
	Instances int64 `json:"instances"`
}

// Counts reports the current size of the catalog at every level.
func (h *IndexingHandler) Counts(w http.ResponseWriter, r *http.Request) {
	patients, studies, series, instances, err := h.coordinator.Counts(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to load catalog counts")
		http.Error(w, "Failed to load catalog counts", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, countsResponse{
		Patients: patients, Studies: studies, Series: series, Instances: instances,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
